package translation

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"fanfan-translator/pkg/cache"
	"fanfan-translator/pkg/metrics"
	"fanfan-translator/pkg/rediskey"
	"fanfan-translator/services/provider"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

const (
	FailureText = "❌ 翻譯失敗，請稍後再試"
	BusyText    = "⏳ 翻譯忙碌中，請稍後再試"
)

var trivialPattern = regexp.MustCompile(`^[\d\s.,]*$`)

// IsTrivial reports text that is passed through untranslated: empty, or only
// digits, whitespace and separators.
func IsTrivial(text string) bool {
	return text == "" || trivialPattern.MatchString(text)
}

func CacheKey(text, lang string) string {
	return text + "|" + lang
}

type Providers interface {
	Get(e provider.Engine) (provider.Translator, bool)
}

type EnginePreferences interface {
	GetEnginePreference(ctx context.Context, groupID string) provider.Engine
}

type UsageAccruer interface {
	AccrueByGroup(ctx context.Context, groupID string, translates, chars int64) error
}

type RemoteCache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

type Options struct {
	Providers     Providers
	Preferences   EnginePreferences
	Usage         UsageAccruer
	Cache         *cache.Cache[string, string]
	Remote        RemoteCache
	DefaultEngine provider.Engine
}

type Dispatcher struct {
	providers     Providers
	prefs         EnginePreferences
	usage         UsageAccruer
	cache         *cache.Cache[string, string]
	remote        RemoteCache
	defaultEngine provider.Engine

	flight singleflight.Group
	tracer trace.Tracer
}

func NewDispatcher(opts Options) *Dispatcher {
	c := opts.Cache
	if c == nil {
		c = cache.New[string, string](cache.Options{MaxEntries: 1000})
	}
	engine := opts.DefaultEngine
	if _, ok := provider.ParseEngine(engine.String()); !ok {
		engine = provider.Google
	}
	return &Dispatcher{
		providers:     opts.Providers,
		prefs:         opts.Preferences,
		usage:         opts.Usage,
		cache:         c,
		remote:        opts.Remote,
		defaultEngine: engine,
		tracer:        otel.Tracer("fanfan-translator/translation"),
	}
}

// Translate never fails: on exhaustion it returns FailureText.
func (d *Dispatcher) Translate(ctx context.Context, text, lang, groupID string) string {
	if IsTrivial(text) {
		return text
	}

	ctx, span := d.tracer.Start(ctx, "translation.translate", trace.WithAttributes(
		attribute.String("lang", lang),
		attribute.String("group_id", groupID),
	))
	defer span.End()

	key := CacheKey(text, lang)
	if v, ok := d.cache.Get(key); ok {
		span.SetAttributes(attribute.String("source", "cache"))
		return v
	}

	v, _, shared := d.flight.Do(key, func() (any, error) {
		return d.resolve(ctx, span, key, text, lang, groupID), nil
	})
	if shared {
		span.SetAttributes(attribute.Bool("shared", true))
	}
	return v.(string)
}

func (d *Dispatcher) resolve(ctx context.Context, span trace.Span, key, text, lang, groupID string) string {
	zapLog := zap.L().With(zap.String("group_id", groupID), zap.String("lang", lang))

	if d.remote != nil {
		v, ok, err := d.remote.Get(ctx, rediskey.BuildTranslationKey(lang, text))
		if err != nil {
			zapLog.Warn("[Translation] remote cache read failed", zap.Error(err))
		} else if ok {
			d.cache.Set(key, v)
			span.SetAttributes(attribute.String("source", "remote"))
			return v
		}
	}

	preferred := d.engineFor(ctx, groupID)
	for _, engine := range []provider.Engine{preferred, preferred.Alternate()} {
		t, ok := d.providers.Get(engine)
		if !ok {
			continue
		}

		res := t.Translate(ctx, text, lang)
		if res.OK() {
			d.store(ctx, key, text, lang, res.Text)
			d.accrue(ctx, groupID, text)
			span.SetAttributes(attribute.String("source", engine.String()))
			return res.Text
		}

		zapLog.Warn("[Translation] provider failed",
			zap.String("engine", engine.String()),
			zap.String("outcome", res.Code()),
		)
	}

	metrics.TranslationFailures.Inc()
	span.SetAttributes(attribute.String("source", "failure"))
	return FailureText
}

func (d *Dispatcher) engineFor(ctx context.Context, groupID string) provider.Engine {
	if d.prefs == nil || groupID == "" {
		return d.defaultEngine
	}
	return d.prefs.GetEnginePreference(ctx, groupID)
}

func (d *Dispatcher) store(ctx context.Context, key, text, lang, value string) {
	d.cache.Set(key, value)
	if d.remote == nil {
		return
	}
	if err := d.remote.Set(ctx, rediskey.BuildTranslationKey(lang, text), value); err != nil {
		zap.L().Warn("[Translation] remote cache write failed", zap.Error(err))
	}
}

func (d *Dispatcher) accrue(ctx context.Context, groupID, text string) {
	if d.usage == nil || groupID == "" {
		return
	}
	if err := d.usage.AccrueByGroup(ctx, groupID, 1, int64(utf8.RuneCountInString(text))); err != nil {
		zap.L().Warn("[Translation] usage accrual failed", zap.String("group_id", groupID), zap.Error(err))
	}
}

// TranslateAll translates into every language concurrently and joins the
// results as "[lang] text" lines in the given order.
func (d *Dispatcher) TranslateAll(ctx context.Context, text string, langs []string, groupID string) string {
	if len(langs) == 0 {
		return ""
	}

	lines := make([]string, len(langs))
	var g errgroup.Group
	for i, lang := range langs {
		g.Go(func() error {
			lines[i] = fmt.Sprintf("[%s] %s", lang, d.Translate(ctx, text, lang, groupID))
			return nil
		})
	}
	_ = g.Wait()

	return strings.Join(lines, "\n")
}

func (d *Dispatcher) CacheStats() cache.Stats {
	return d.cache.Stats()
}
