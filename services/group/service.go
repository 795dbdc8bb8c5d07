package group

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"fanfan-translator/pkg/cache"
	"fanfan-translator/pkg/keylock"
	"fanfan-translator/pkg/language"
	"fanfan-translator/pkg/metrics"
	"fanfan-translator/services/provider"

	"go.uber.org/zap"
)

var (
	ErrUnknownLanguage = errors.New("unknown language code")
	ErrUnknownEngine   = errors.New("unknown translation engine")
	ErrNoStore         = errors.New("neither a database nor a data file is configured")
	ErrMirrorDisabled  = errors.New("data file is not configured")
)

type Options struct {
	Repository       Repository
	Mirror           Mirror
	Languages        *language.Table
	DefaultLanguages []string
	DefaultEngine    provider.Engine
	CacheSize        int
	CacheTTL         time.Duration
	Clock            func() time.Time
}

// Service resolves per-group translation settings: cache first, then the
// database, then the data file, then defaults.
type Service struct {
	repo          Repository
	mirror        Mirror
	languages     *language.Table
	defaults      []string
	defaultEngine provider.Engine

	langCache   *cache.Cache[string, []string]
	engineCache *cache.Cache[string, provider.Engine]
	locks       *keylock.KeyLock
}

func NewService(opts Options) (*Service, error) {
	if opts.Repository == nil && opts.Mirror == nil {
		return nil, ErrNoStore
	}
	if opts.Languages == nil {
		return nil, errors.New("group service requires a language table")
	}

	defaults := make([]string, 0, len(opts.DefaultLanguages))
	for _, c := range opts.DefaultLanguages {
		if !opts.Languages.Contains(c) {
			return nil, fmt.Errorf("default language %q: %w", c, ErrUnknownLanguage)
		}
		defaults = append(defaults, c)
	}

	engine, ok := provider.ParseEngine(opts.DefaultEngine.String())
	if !ok {
		engine = provider.Google
	}

	return &Service{
		repo:          opts.Repository,
		mirror:        opts.Mirror,
		languages:     opts.Languages,
		defaults:      opts.Languages.Sort(defaults),
		defaultEngine: engine,
		langCache: cache.New[string, []string](cache.Options{
			Name:       "group_languages",
			MaxEntries: opts.CacheSize,
			TTL:        opts.CacheTTL,
			Clock:      opts.Clock,
		}),
		engineCache: cache.New[string, provider.Engine](cache.Options{
			Name:       "group_engine",
			MaxEntries: opts.CacheSize,
			TTL:        opts.CacheTTL,
			Clock:      opts.Clock,
		}),
		locks: keylock.New(),
	}, nil
}

// GetLanguages returns a fresh copy in language-table order. It never fails;
// store errors degrade to the next source.
func (s *Service) GetLanguages(ctx context.Context, groupID string) []string {
	if v, ok := s.langCache.Get(groupID); ok {
		return slices.Clone(v)
	}

	// Misses fill under the group lock; writers hold it until they invalidate.
	unlock := s.locks.Lock(groupID)
	defer unlock()
	return slices.Clone(s.languagesLocked(ctx, groupID))
}

func (s *Service) languagesLocked(ctx context.Context, groupID string) []string {
	if v, ok := s.langCache.Get(groupID); ok {
		return v
	}

	codes, found := s.loadLanguages(ctx, groupID)
	if !found {
		codes = s.defaults
	}
	codes = s.languages.Sort(codes)
	s.langCache.Set(groupID, codes)
	return codes
}

func (s *Service) loadLanguages(ctx context.Context, groupID string) ([]string, bool) {
	if s.repo != nil {
		codes, found, err := s.repo.GetLanguages(ctx, groupID)
		if err == nil {
			return codes, found
		}
		zap.L().Warn("[Group] failed to read languages, falling back to data file", zap.String("group_id", groupID), zap.Error(err))
	}
	if s.mirror != nil {
		return s.mirror.Languages(groupID)
	}
	return nil, false
}

// SetLanguages replaces the language set. Unknown codes are rejected before
// any write.
func (s *Service) SetLanguages(ctx context.Context, groupID string, codes []string) error {
	if err := s.validate(codes); err != nil {
		return err
	}

	unlock := s.locks.Lock(groupID)
	defer unlock()

	return s.setLanguagesLocked(ctx, groupID, codes)
}

// ToggleLanguage flips membership of code and returns the resulting set.
func (s *Service) ToggleLanguage(ctx context.Context, groupID, code string) ([]string, error) {
	if err := s.validate([]string{code}); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(groupID)
	defer unlock()

	current := s.languagesLocked(ctx, groupID)
	next := slices.DeleteFunc(slices.Clone(current), func(c string) bool { return c == code })
	if len(next) == len(current) {
		next = append(next, code)
	}

	err := s.setLanguagesLocked(ctx, groupID, next)
	return s.languages.Sort(next), err
}

func (s *Service) setLanguagesLocked(ctx context.Context, groupID string, codes []string) error {
	codes = normalize(codes)
	defer s.langCache.Invalidate(groupID)

	var primary error
	if s.repo != nil {
		if err := s.repo.UpsertLanguages(ctx, groupID, codes); err != nil {
			metrics.StoreWriteFailures.WithLabelValues("group_language").Inc()
			zap.L().Error("[Group] failed to write languages", zap.String("group_id", groupID), zap.Error(err))
			primary = fmt.Errorf("failed to write languages: %w", err)
		}
	}

	if s.mirror != nil {
		if err := s.mirror.SetLanguages(groupID, codes); err != nil {
			metrics.MirrorWriteFailures.WithLabelValues("user_prefs").Inc()
			zap.L().Warn("[Group] failed to mirror languages", zap.String("group_id", groupID), zap.Error(err))
			if s.repo == nil {
				primary = fmt.Errorf("failed to write languages: %w", err)
			}
		}
	}

	return primary
}

// ResetLanguages forgets the group's choice so the default set applies again.
func (s *Service) ResetLanguages(ctx context.Context, groupID string) error {
	unlock := s.locks.Lock(groupID)
	defer unlock()
	defer s.langCache.Invalidate(groupID)

	var errs []error
	if s.repo != nil {
		if err := s.repo.DeleteLanguages(ctx, groupID); err != nil {
			metrics.StoreWriteFailures.WithLabelValues("group_language").Inc()
			errs = append(errs, fmt.Errorf("failed to delete languages: %w", err))
		}
	}
	if s.mirror != nil {
		if err := s.mirror.DeleteLanguages(groupID); err != nil {
			metrics.MirrorWriteFailures.WithLabelValues("user_prefs").Inc()
			errs = append(errs, fmt.Errorf("failed to delete mirrored languages: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (s *Service) validate(codes []string) error {
	for _, c := range codes {
		if !s.languages.Contains(c) {
			return fmt.Errorf("%q: %w", c, ErrUnknownLanguage)
		}
	}
	return nil
}

func (s *Service) GetEnginePreference(ctx context.Context, groupID string) provider.Engine {
	if v, ok := s.engineCache.Get(groupID); ok {
		return v
	}

	unlock := s.locks.Lock(groupID)
	defer unlock()
	if v, ok := s.engineCache.Get(groupID); ok {
		return v
	}

	engine := s.defaultEngine
	if raw, found := s.loadEngine(ctx, groupID); found {
		if e, ok := provider.ParseEngine(raw); ok {
			engine = e
		}
	}
	s.engineCache.Set(groupID, engine)
	return engine
}

func (s *Service) loadEngine(ctx context.Context, groupID string) (string, bool) {
	if s.repo != nil {
		engine, found, err := s.repo.GetEngine(ctx, groupID)
		if err == nil {
			return engine, found
		}
		zap.L().Warn("[Group] failed to read engine preference", zap.String("group_id", groupID), zap.Error(err))
	}
	if s.mirror != nil {
		return s.mirror.Engine(groupID)
	}
	return "", false
}

func (s *Service) SetEnginePreference(ctx context.Context, groupID string, engine provider.Engine) error {
	if _, ok := provider.ParseEngine(engine.String()); !ok {
		return fmt.Errorf("%q: %w", engine, ErrUnknownEngine)
	}

	unlock := s.locks.Lock(groupID)
	defer unlock()
	defer s.engineCache.Invalidate(groupID)

	var primary error
	if s.repo != nil {
		if err := s.repo.UpsertEngine(ctx, groupID, engine.String()); err != nil {
			metrics.StoreWriteFailures.WithLabelValues("group_engine").Inc()
			zap.L().Error("[Group] failed to write engine preference", zap.String("group_id", groupID), zap.Error(err))
			primary = fmt.Errorf("failed to write engine preference: %w", err)
		}
	}
	if s.mirror != nil {
		if err := s.mirror.SetEngine(groupID, engine.String()); err != nil {
			metrics.MirrorWriteFailures.WithLabelValues("translate_engine_pref").Inc()
			zap.L().Warn("[Group] failed to mirror engine preference", zap.String("group_id", groupID), zap.Error(err))
			if s.repo == nil {
				primary = fmt.Errorf("failed to write engine preference: %w", err)
			}
		}
	}
	return primary
}

// TouchActivity is a no-op without a database.
func (s *Service) TouchActivity(ctx context.Context, groupID string, at time.Time) error {
	if s.repo == nil {
		return nil
	}
	if err := s.repo.TouchActivity(ctx, groupID, at); err != nil {
		metrics.StoreWriteFailures.WithLabelValues("group_activity").Inc()
		return fmt.Errorf("failed to touch activity: %w", err)
	}
	return nil
}

func (s *Service) ListInactive(ctx context.Context, before time.Time) ([]string, error) {
	if s.repo == nil {
		return nil, nil
	}
	ids, err := s.repo.ListInactive(ctx, before)
	if err != nil {
		return nil, fmt.Errorf("failed to list inactive groups: %w", err)
	}
	return ids, nil
}

// Purge removes every trace of the group from both stores and the caches.
func (s *Service) Purge(ctx context.Context, groupID string) error {
	unlock := s.locks.Lock(groupID)
	defer unlock()
	defer func() {
		s.langCache.Invalidate(groupID)
		s.engineCache.Invalidate(groupID)
	}()

	var errs []error
	if s.repo != nil {
		if err := s.repo.Purge(ctx, groupID); err != nil {
			errs = append(errs, fmt.Errorf("failed to purge group rows: %w", err))
		}
	}
	if s.mirror != nil {
		if err := s.mirror.Purge(groupID); err != nil {
			metrics.MirrorWriteFailures.WithLabelValues("group").Inc()
			errs = append(errs, fmt.Errorf("failed to purge mirrored group: %w", err))
		}
	}
	return errors.Join(errs...)
}

// AutoTranslate defaults to on.
func (s *Service) AutoTranslate(groupID string) bool {
	if s.mirror == nil {
		return true
	}
	on, ok := s.mirror.AutoTranslate(groupID)
	if !ok {
		return true
	}
	return on
}

func (s *Service) SetAutoTranslate(groupID string, on bool) error {
	if s.mirror == nil {
		return ErrMirrorDisabled
	}
	unlock := s.locks.Lock(groupID)
	defer unlock()
	return s.mirror.SetAutoTranslate(groupID, on)
}

func (s *Service) GroupAdmin(groupID string) string {
	if s.mirror == nil {
		return ""
	}
	return s.mirror.GroupAdmin(groupID)
}

func (s *Service) IsWhitelisted(userID string) bool {
	if s.mirror == nil || userID == "" {
		return false
	}
	return s.mirror.IsWhitelisted(userID)
}

func (s *Service) CacheStats() cache.Stats {
	return s.langCache.Stats()
}
