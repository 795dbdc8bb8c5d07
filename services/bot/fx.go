package bot

import (
	"time"

	"fanfan-translator/pkg/config"
	"fanfan-translator/pkg/language"
	"fanfan-translator/services/feature"
	"fanfan-translator/services/group"
	"fanfan-translator/services/license"
	"fanfan-translator/services/reaper"
	"fanfan-translator/services/tenant"
	"fanfan-translator/services/translation"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

var Module = fx.Module("bot",
	fx.Provide(
		NewGatewayFromConfig,
		provideLeaver,
		provideMenu,
		provideCleaner,
		provideHandler,
		provideWebhook,
		provideStatus,
	),
	fx.Invoke(registerRoutes),
)

func provideLeaver(g Gateway) reaper.Leaver { return g }

type MenuParams struct {
	fx.In
	Groups    *group.Service
	Languages *language.Table
	Clock     func() time.Time `optional:"true"`
}

func provideMenu(p MenuParams) *Menu {
	return NewMenu(p.Groups, p.Languages, p.Clock)
}

func provideCleaner(m *Menu) reaper.Cleaner { return m }

type HandlerParams struct {
	fx.In
	Config     *config.Config
	Gateway    Gateway
	Groups     *group.Service
	Languages  *language.Table
	Menu       *Menu
	Dispatcher *translation.Dispatcher
	Pool       *translation.Pool
	Tenant     *tenant.Service  `optional:"true"`
	Features   *feature.Service `optional:"true"`
	License    *license.Service `optional:"true"`
	Clock      func() time.Time `optional:"true"`
}

func provideHandler(p HandlerParams) *Handler {
	opts := HandlerOptions{
		Gateway:    p.Gateway,
		Groups:     p.Groups,
		Languages:  p.Languages,
		Menu:       p.Menu,
		Translator: p.Dispatcher,
		Pool:       p.Pool,
		Masters:    p.Config.Line.MasterUserIDs,
		Clock:      p.Clock,
	}
	if p.Tenant != nil {
		opts.Access = p.Tenant
	}
	if p.Features != nil {
		opts.Features = p.Features
	}
	if p.License != nil {
		opts.Licenses = p.License
	}
	return NewHandler(opts)
}

func provideWebhook(cfg *config.Config, h *Handler) *Webhook {
	return NewWebhook(cfg.Line.ChannelSecret, h)
}

func provideStatus(h *Handler, pool *translation.Pool, d *translation.Dispatcher, g *group.Service) *StatusHandler {
	return NewStatusHandler(h, pool, map[string]CacheReporter{
		"translation": d,
		"group":       g,
	})
}

func registerRoutes(r *gin.Engine, w *Webhook, s *StatusHandler) {
	r.POST("/webhook", w.Serve)
	r.POST("/callback", w.Serve)
	r.GET("/status", s.Serve)
}
