package provider

import (
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("provider",
	fx.Provide(
		NewGoogleFromConfig,
		NewDeepLFromConfig,
		provideRegistry,
	),
	fx.Invoke(bootstrapDeepL),
)

// Registry resolves an engine name to its Translator.
type Registry struct {
	translators map[Engine]Translator
}

func NewRegistry(ts ...Translator) *Registry {
	r := &Registry{translators: make(map[Engine]Translator, len(ts))}
	for _, t := range ts {
		r.translators[t.Name()] = t
	}
	return r
}

func provideRegistry(g *GoogleTranslator, d *DeepLTranslator) *Registry {
	return NewRegistry(g, d)
}

func (r *Registry) Get(e Engine) (Translator, bool) {
	t, ok := r.translators[e]
	return t, ok
}

func bootstrapDeepL(lc fx.Lifecycle, d *DeepLTranslator) {
	var cancel context.CancelFunc
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			var ctx context.Context
			ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
			go func() {
				defer cancel()
				if err := d.Bootstrap(ctx); err != nil {
					zap.L().Warn("[DeepL] Using fallback target languages", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(context.Context) error {
			if cancel != nil {
				cancel()
			}
			return nil
		},
	})
}
