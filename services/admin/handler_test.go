package admin

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"fanfan-translator/pkg/filestore"
	"fanfan-translator/pkg/middleware"
	"fanfan-translator/services/feature"
	"fanfan-translator/services/license"
	"fanfan-translator/services/reaper"
	"fanfan-translator/services/tenant"
	"fanfan-translator/services/testutil"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
	gin.SetMode(gin.TestMode)
}

const adminToken = "s3cret"

var now = time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

type stubReaper struct{}

func (stubReaper) Run(ctx context.Context, at time.Time) (reaper.Report, error) {
	return reaper.Report{Scanned: 2, Reaped: 1, LeaveFailures: 1}, nil
}

func newRouter(t *testing.T, withDB bool) *gin.Engine {
	t.Helper()
	clock := func() time.Time { return now }

	var licenses *license.Service
	var tenants *tenant.Service
	if withDB {
		db := testutil.NewTestDB(t, append(license.Models(), tenant.Models()...)...)
		node, err := snowflake.NewNode(1)
		require.NoError(t, err)
		licenses = license.NewService(license.NewRepository(db, node), nil, clock)

		tenants, err = tenant.NewService(tenant.Options{Store: tenant.NewRepository(db), Clock: clock})
		require.NoError(t, err)
	} else {
		licenses = license.NewService(nil, nil, clock)
	}

	store, err := filestore.Open(filepath.Join(t.TempDir(), "data.json"))
	require.NoError(t, err)

	h := NewHandler(Options{
		Licenses: licenses,
		Tenants:  tenants,
		Reaper:   stubReaper{},
		Features: feature.NewService(nil, store, clock),
		Clock:    clock,
	})

	r := gin.New()
	r.Use(middleware.Error())
	Register(r.Group("/admin", middleware.AdminToken(adminToken)), h)
	return r
}

func do(t *testing.T, r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(middleware.AdminTokenHeader, adminToken)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRoutesRequireToken(t *testing.T) {
	r := newRouter(t, true)
	req := httptest.NewRequest(http.MethodPost, "/admin/generate_codes", strings.NewReader(`{"count":1}`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.JSONEq(t, `{"error":"unauthorized","code":"unauthorized"}`, w.Body.String())
}

func TestGenerateListAndExport(t *testing.T) {
	r := newRouter(t, true)

	w := do(t, r, http.MethodPost, "/admin/generate_codes", `{"count":3,"days":15}`)
	require.Equal(t, http.StatusOK, w.Code)
	var gen generateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &gen))
	require.Len(t, gen.Codes, 3)
	require.Equal(t, 15, gen.Days)
	for _, c := range gen.Codes {
		require.True(t, license.IsCode(c))
	}

	w = do(t, r, http.MethodGet, "/admin/codes?limit=2", "")
	require.Equal(t, http.StatusOK, w.Code)
	var page struct {
		Codes    []license.LicenseCode `json:"codes"`
		PageInfo struct {
			NextCursor string `json:"next_cursor"`
			HasMore    bool   `json:"has_more"`
		} `json:"page_info"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	require.Len(t, page.Codes, 2)
	require.True(t, page.PageInfo.HasMore)
	require.Equal(t, gen.Codes[2], page.Codes[0].Code)

	w = do(t, r, http.MethodGet, "/admin/codes?cursor="+page.PageInfo.NextCursor, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	require.Len(t, page.Codes, 1)
	require.False(t, page.PageInfo.HasMore)

	w = do(t, r, http.MethodGet, "/admin/export_codes", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, strings.HasPrefix(w.Header().Get("Content-Type"), "text/csv"))
	records, err := csv.NewReader(w.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)
	require.Equal(t, "code", records[0][0])
}

func TestGenerateValidation(t *testing.T) {
	r := newRouter(t, true)

	for _, body := range []string{`{"count":0,"days":30}`, `{"count":501,"days":30}`, `{"count":1,"days":0}`, `{"count":"x"}`} {
		w := do(t, r, http.MethodPost, "/admin/generate_codes", body)
		require.Equal(t, http.StatusBadRequest, w.Code, body)
	}

	w := do(t, r, http.MethodGet, "/admin/codes?limit=abc", "")
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodGet, "/admin/codes?cursor=%25%25", "")
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWithoutDatabase(t *testing.T) {
	r := newRouter(t, false)
	w := do(t, r, http.MethodPost, "/admin/generate_codes", `{"count":1,"days":1}`)
	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.JSONEq(t, `{"error":"database not configured","code":"internal"}`, w.Body.String())
}

func TestRunExpiryCheck(t *testing.T) {
	r := newRouter(t, true)
	w := do(t, r, http.MethodPost, "/admin/run_expiry_check", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"expired_count":0}`, w.Body.String())
}

func TestTenantLifecycle(t *testing.T) {
	r := newRouter(t, true)

	w := do(t, r, http.MethodPost, "/admin/tenants", `{"owner_id":"O1","months":13}`)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodPost, "/admin/tenants", `{"owner_id":"O1","months":2}`)
	require.Equal(t, http.StatusOK, w.Code)
	var created struct {
		Token     string    `json:"token"`
		ExpiresAt time.Time `json:"expires_at"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	require.NotEmpty(t, created.Token)
	require.True(t, created.ExpiresAt.Equal(now.Add(60*24*time.Hour)))

	w = do(t, r, http.MethodPost, "/admin/tenants/O1/groups", `{"group_id":"G1"}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"attached":true}`, w.Body.String())

	w = do(t, r, http.MethodPost, "/admin/tenants", `{"owner_id":"O2","months":1}`)
	require.Equal(t, http.StatusOK, w.Code)
	w = do(t, r, http.MethodPost, "/admin/tenants/O2/groups", `{"group_id":"G1"}`)
	require.Equal(t, http.StatusConflict, w.Code)

	w = do(t, r, http.MethodGet, "/admin/tenants/O1", "")
	require.Equal(t, http.StatusOK, w.Code)
	var got struct {
		OwnerID string   `json:"owner_id"`
		Groups  []string `json:"groups"`
		Valid   bool     `json:"valid"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Equal(t, "O1", got.OwnerID)
	require.Equal(t, []string{"G1"}, got.Groups)
	require.True(t, got.Valid)

	w = do(t, r, http.MethodGet, "/admin/tenants/nobody", "")
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestReapAndFeatures(t *testing.T) {
	r := newRouter(t, true)

	w := do(t, r, http.MethodPost, "/admin/reap", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"scanned":2,"reaped":1,"enqueued":0,"leave_failures":1,"purge_failures":0,"cleanup_failures":0}`, w.Body.String())

	w = do(t, r, http.MethodPost, "/admin/features/G1", `{"features":["translate"]}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, r, http.MethodPost, "/admin/features/G1", `{"features":["teleport"]}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
}
