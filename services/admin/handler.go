package admin

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"fanfan-translator/pkg/db/pagination"
	"fanfan-translator/pkg/errutil"
	"fanfan-translator/services/license"
	"fanfan-translator/services/reaper"
	"fanfan-translator/services/tenant"

	"github.com/gin-gonic/gin"
)

type Licenses interface {
	Available() bool
	Generate(ctx context.Context, count, days int) ([]license.LicenseCode, error)
	List(ctx context.Context, p pagination.Pagination) ([]license.LicenseCode, pagination.PageInfo, error)
	Export(ctx context.Context, w io.Writer, limit int) error
	ExpireMembers(ctx context.Context, now time.Time) (int64, error)
}

type Tenants interface {
	CreateSubscription(ctx context.Context, ownerID string, months int) (string, time.Time, error)
	AttachGroup(ctx context.Context, ownerID, groupID string) (bool, error)
	Get(ctx context.Context, ownerID string) (*tenant.Subscription, error)
	IsValid(ctx context.Context, ownerID string) bool
}

type Reaper interface {
	Run(ctx context.Context, now time.Time) (reaper.Report, error)
}

type Features interface {
	SetFeatures(ctx context.Context, groupID string, features []string) (string, error)
}

type Handler struct {
	licenses Licenses
	tenants  Tenants
	reaper   Reaper
	features Features
	now      func() time.Time
}

type Options struct {
	Licenses Licenses
	Tenants  Tenants
	Reaper   Reaper
	Features Features
	Clock    func() time.Time
}

func NewHandler(opts Options) *Handler {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Handler{
		licenses: opts.Licenses,
		tenants:  opts.Tenants,
		reaper:   opts.Reaper,
		features: opts.Features,
		now:      opts.Clock,
	}
}

var errNoDatabase = errutil.Internal("database not configured", nil)

func fail(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

func (h *Handler) requireDatabase(c *gin.Context) bool {
	if h.licenses == nil || !h.licenses.Available() {
		fail(c, errNoDatabase)
		return false
	}
	return true
}

type generateRequest struct {
	Count int `json:"count"`
	Days  int `json:"days"`
}

type generateResponse struct {
	Codes []string `json:"codes"`
	Days  int      `json:"days"`
}

func (h *Handler) GenerateCodes(c *gin.Context) {
	if !h.requireDatabase(c) {
		return
	}

	req := generateRequest{Count: 1, Days: license.DefaultDays}
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		fail(c, errutil.BadRequest("invalid request body", err))
		return
	}
	if req.Count < license.MinBatch || req.Count > license.MaxBatch {
		fail(c, errutil.BadRequest("count must be between 1 and 500", nil,
			errutil.WithDetails(errutil.Detail{Field: "count", Message: "out of range"})))
		return
	}
	if req.Days < 1 {
		fail(c, errutil.BadRequest("days must be at least 1", nil,
			errutil.WithDetails(errutil.Detail{Field: "days", Message: "out of range"})))
		return
	}

	codes, err := h.licenses.Generate(c.Request.Context(), req.Count, req.Days)
	if err != nil {
		fail(c, errutil.Internal("failed to generate codes", err))
		return
	}

	out := generateResponse{Codes: make([]string, 0, len(codes)), Days: req.Days}
	for _, lc := range codes {
		out.Codes = append(out.Codes, lc.Code)
	}
	c.JSON(http.StatusOK, out)
}

func queryLimit(c *gin.Context, fallback int) (int, error) {
	raw := c.Query("limit")
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errutil.BadRequest("limit must be a non-negative integer", err)
	}
	return n, nil
}

func (h *Handler) ListCodes(c *gin.Context) {
	if !h.requireDatabase(c) {
		return
	}

	limit, err := queryLimit(c, pagination.DefaultLimit)
	if err != nil {
		fail(c, err)
		return
	}

	codes, info, err := h.licenses.List(c.Request.Context(), pagination.Pagination{
		Cursor: c.Query("cursor"),
		Limit:  limit,
	})
	if errors.Is(err, license.ErrInvalidCursor) {
		fail(c, errutil.BadRequest("invalid cursor", err))
		return
	}
	if err != nil {
		fail(c, errutil.Internal("failed to list codes", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"codes": codes, "page_info": info})
}

func (h *Handler) ExportCodes(c *gin.Context) {
	if !h.requireDatabase(c) {
		return
	}

	limit, err := queryLimit(c, 0)
	if err != nil {
		fail(c, err)
		return
	}

	var buf bytes.Buffer
	if err := h.licenses.Export(c.Request.Context(), &buf, limit); err != nil {
		fail(c, errutil.Internal("failed to export codes", err))
		return
	}

	c.Header("Content-Disposition", `attachment; filename="license_codes.csv"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

func (h *Handler) RunExpiryCheck(c *gin.Context) {
	if !h.requireDatabase(c) {
		return
	}

	n, err := h.licenses.ExpireMembers(c.Request.Context(), h.now())
	if err != nil {
		fail(c, errutil.Internal("failed to expire members", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"expired_count": n})
}

type createTenantRequest struct {
	OwnerID string `json:"owner_id" binding:"required"`
	Months  int    `json:"months" binding:"required"`
}

func (h *Handler) CreateTenant(c *gin.Context) {
	var req createTenantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, errutil.BadRequest("owner_id and months are required", err))
		return
	}

	token, expires, err := h.tenants.CreateSubscription(c.Request.Context(), req.OwnerID, req.Months)
	switch {
	case errors.Is(err, tenant.ErrInvalidMonths), errors.Is(err, tenant.ErrInvalidOwner):
		fail(c, errutil.BadRequest(err.Error(), err))
		return
	case err != nil:
		fail(c, errutil.Internal("failed to create subscription", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "expires_at": expires})
}

type attachRequest struct {
	GroupID string `json:"group_id" binding:"required"`
}

func (h *Handler) AttachGroup(c *gin.Context) {
	var req attachRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, errutil.BadRequest("group_id is required", err))
		return
	}

	attached, err := h.tenants.AttachGroup(c.Request.Context(), c.Param("owner"), req.GroupID)
	switch {
	case errors.Is(err, tenant.ErrGroupOwned):
		fail(c, errutil.Conflict(err.Error(), err))
		return
	case err != nil:
		fail(c, errutil.Internal("failed to attach group", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"attached": attached})
}

type tenantResponse struct {
	*tenant.Subscription
	Valid bool `json:"valid"`
}

func (h *Handler) GetTenant(c *gin.Context) {
	owner := c.Param("owner")
	sub, err := h.tenants.Get(c.Request.Context(), owner)
	switch {
	case errors.Is(err, tenant.ErrNotFound):
		fail(c, errutil.NotFound(fmt.Sprintf("tenant %s not found", owner), err))
		return
	case err != nil:
		fail(c, errutil.Internal("failed to load tenant", err))
		return
	}
	c.JSON(http.StatusOK, tenantResponse{Subscription: sub, Valid: h.tenants.IsValid(c.Request.Context(), owner)})
}

func (h *Handler) Reap(c *gin.Context) {
	report, err := h.reaper.Run(c.Request.Context(), h.now())
	if err != nil {
		fail(c, errutil.Internal("reaper failed", err))
		return
	}
	c.JSON(http.StatusOK, report)
}

type featuresRequest struct {
	Features []string `json:"features"`
}

func (h *Handler) SetFeatures(c *gin.Context) {
	var req featuresRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, errutil.BadRequest("invalid request body", err))
		return
	}

	token, err := h.features.SetFeatures(c.Request.Context(), c.Param("group"), req.Features)
	if err != nil {
		fail(c, errutil.BadRequest(err.Error(), err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "features": req.Features})
}
