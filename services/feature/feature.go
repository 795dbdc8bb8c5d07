package feature

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"fanfan-translator/pkg/cache"
	"fanfan-translator/pkg/featureflags"
	"fanfan-translator/pkg/filestore"
	"fanfan-translator/pkg/util"

	"go.uber.org/zap"
)

const (
	Translate     = "translate"
	Voice         = "voice"
	Admin         = "admin"
	AutoTranslate = "auto_translate"
	Statistics    = "statistics"
)

// All lists every switchable feature.
var All = []string{Translate, Voice, Admin, AutoTranslate, Statistics}

var (
	ErrUnknownFeature = errors.New("unknown feature")
	ErrNoDataFile     = errors.New("data file is not configured")
)

const flagCacheTTL = time.Minute

// Service answers per-group feature switches. Flagsmith wins when it has an
// answer; otherwise the data file decides, and a group without an entry has
// everything enabled.
type Service struct {
	flags featureflags.FeatureFlag
	store *filestore.Store
	now   func() time.Time
	cache *cache.Cache[string, bool]
}

func NewService(flags featureflags.FeatureFlag, store *filestore.Store, clock func() time.Time) *Service {
	if clock == nil {
		clock = time.Now
	}
	return &Service{
		flags: flags,
		store: store,
		now:   clock,
		cache: cache.New[string, bool](cache.Options{
			Name:       "feature_flags",
			MaxEntries: 1000,
			TTL:        flagCacheTTL,
			Clock:      clock,
		}),
	}
}

func (s *Service) Enabled(ctx context.Context, groupID, feature string) bool {
	if on, ok := s.remote(ctx, groupID, feature); ok {
		return on
	}
	return s.local(groupID, feature)
}

func (s *Service) remote(ctx context.Context, groupID, feature string) (bool, bool) {
	if s.flags == nil {
		return false, false
	}

	key := groupID + "|" + feature
	if on, ok := s.cache.Get(key); ok {
		return on, true
	}

	on, err := s.flags.IsEnabled(ctx, groupID, feature)
	if err != nil {
		if !errors.Is(err, featureflags.ErrNotConfigured) {
			zap.L().Debug("[Feature] flagsmith lookup failed", zap.String("group_id", groupID), zap.String("feature", feature), zap.Error(err))
		}
		return false, false
	}
	s.cache.Set(key, on)
	return on, true
}

func (s *Service) local(groupID, feature string) bool {
	if s.store == nil {
		return true
	}
	on := true
	s.store.Read(func(d *filestore.Data) {
		sw, ok := d.FeatureSwitches[groupID]
		if ok {
			on = slices.Contains(sw.Features, feature)
		}
	})
	return on
}

// SetFeatures replaces the group's enabled feature list in the data file and
// returns a fresh token for the entry.
func (s *Service) SetFeatures(ctx context.Context, groupID string, features []string) (string, error) {
	if s.store == nil {
		return "", ErrNoDataFile
	}
	for _, f := range features {
		if !slices.Contains(All, f) {
			return "", fmt.Errorf("%q: %w", f, ErrUnknownFeature)
		}
	}

	token, err := util.GenerateToken(16)
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}

	enabled := slices.Clone(features)
	slices.Sort(enabled)
	enabled = slices.Compact(enabled)

	err = s.store.Update(func(d *filestore.Data) error {
		d.FeatureSwitches[groupID] = filestore.FeatureSwitch{
			Features:  enabled,
			Token:     token,
			CreatedAt: filestore.FormatTime(s.now()),
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to save feature switches: %w", err)
	}

	for _, f := range All {
		s.cache.Invalidate(groupID + "|" + f)
	}
	return token, nil
}
