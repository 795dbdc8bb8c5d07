package translation

import (
	"context"

	"fanfan-translator/pkg/cache"
	"fanfan-translator/pkg/config"
	"fanfan-translator/services/group"
	"fanfan-translator/services/provider"
	"fanfan-translator/services/tenant"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
)

var Module = fx.Module("translation",
	fx.Provide(
		provideDispatcher,
		providePool,
	),
	fx.Invoke(registerPoolShutdown),
)

type DispatcherParams struct {
	fx.In
	Config    *config.Config
	Providers *provider.Registry
	Group     *group.Service  `optional:"true"`
	Tenant    *tenant.Service `optional:"true"`
	Redis     *redis.Client   `optional:"true"`
}

func provideDispatcher(p DispatcherParams) *Dispatcher {
	cfg := p.Config.Translation
	opts := Options{
		Providers:     p.Providers,
		DefaultEngine: provider.Engine(cfg.DefaultEngine),
		Cache: cache.New[string, string](cache.Options{
			Name:       "translation",
			MaxEntries: cfg.CacheSize,
			TTL:        cfg.CacheTTL,
		}),
	}
	if p.Group != nil {
		opts.Preferences = p.Group
	}
	if p.Tenant != nil {
		opts.Usage = p.Tenant
	}
	if store := cache.NewRedisStore(p.Redis, cfg.CacheTTL); store != nil {
		opts.Remote = store
	}
	return NewDispatcher(opts)
}

func providePool(cfg *config.Config) *Pool {
	return NewPool(NewGate(cfg.Translation.GateCapacity), cfg.Translation.JobTimeout)
}

func registerPoolShutdown(lc fx.Lifecycle, pool *Pool) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return pool.Wait(ctx)
		},
	})
}
