package admin

import (
	"time"

	"fanfan-translator/pkg/config"
	"fanfan-translator/pkg/middleware"
	"fanfan-translator/services/feature"
	"fanfan-translator/services/license"
	"fanfan-translator/services/reaper"
	"fanfan-translator/services/tenant"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

var Module = fx.Module("admin",
	fx.Provide(provideHandler),
	fx.Invoke(registerRoutes),
)

type HandlerParams struct {
	fx.In
	License  *license.Service
	Tenant   *tenant.Service
	Reaper   *reaper.Reaper
	Features *feature.Service
	Clock    func() time.Time `optional:"true"`
}

func provideHandler(p HandlerParams) *Handler {
	return NewHandler(Options{
		Licenses: p.License,
		Tenants:  p.Tenant,
		Reaper:   p.Reaper,
		Features: p.Features,
		Clock:    p.Clock,
	})
}

func registerRoutes(r *gin.Engine, cfg *config.Config, h *Handler) {
	Register(r.Group("/admin", middleware.AdminToken(cfg.Admin.Token)), h)
}

func Register(g *gin.RouterGroup, h *Handler) {
	g.POST("/generate_codes", h.GenerateCodes)
	g.GET("/codes", h.ListCodes)
	g.GET("/export_codes", h.ExportCodes)
	g.POST("/run_expiry_check", h.RunExpiryCheck)
	g.POST("/tenants", h.CreateTenant)
	g.GET("/tenants/:owner", h.GetTenant)
	g.POST("/tenants/:owner/groups", h.AttachGroup)
	g.POST("/features/:group", h.SetFeatures)
	g.POST("/reap", h.Reap)
}
