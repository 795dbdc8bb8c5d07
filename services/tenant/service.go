package tenant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"fanfan-translator/pkg/cache"
	"fanfan-translator/pkg/metrics"
	"fanfan-translator/pkg/util"

	"go.uber.org/zap"
)

const (
	MinMonths = 1
	MaxMonths = 12

	daysPerMonth = 30
	tokenBytes   = 16
)

var (
	ErrNotFound      = errors.New("subscription not found")
	ErrGroupOwned    = errors.New("group is attached to another tenant")
	ErrInvalidMonths = errors.New("months must be between 1 and 12")
	ErrInvalidOwner  = errors.New("owner id is required")
	ErrNoStore       = errors.New("tenant store is not configured")
)

type Options struct {
	// Store is authoritative. Mirror, when set, receives best-effort copies.
	Store     Store
	Mirror    Store
	Clock     func() time.Time
	CacheSize int
	CacheTTL  time.Duration
}

type Service struct {
	store  Store
	mirror Store
	now    func() time.Time

	// group id -> owner id; "" caches "no tenant"
	owners *cache.Cache[string, string]
}

func NewService(opts Options) (*Service, error) {
	if opts.Store == nil {
		return nil, ErrNoStore
	}
	now := opts.Clock
	if now == nil {
		now = time.Now
	}
	return &Service{
		store:  opts.Store,
		mirror: opts.Mirror,
		now:    now,
		owners: cache.New[string, string](cache.Options{
			Name:       "tenant_owner",
			MaxEntries: opts.CacheSize,
			TTL:        opts.CacheTTL,
			Clock:      now,
		}),
	}, nil
}

// CreateSubscription issues a fresh token and sets expiry to now + 30*months
// days. Re-creating an existing subscription keeps its counters and groups.
func (s *Service) CreateSubscription(ctx context.Context, ownerID string, months int) (string, time.Time, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return "", time.Time{}, ErrInvalidOwner
	}
	if months < MinMonths || months > MaxMonths {
		return "", time.Time{}, ErrInvalidMonths
	}

	token, err := util.GenerateToken(tokenBytes)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to generate token: %w", err)
	}

	now := s.now().UTC()
	sub := &Subscription{
		OwnerID:   ownerID,
		Token:     token,
		ExpiresAt: now.Add(time.Duration(daysPerMonth*months) * 24 * time.Hour),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Upsert(ctx, sub); err != nil {
		return "", time.Time{}, fmt.Errorf("failed to save subscription: %w", err)
	}

	s.mirrorWrite("tenants", func(m Store) error { return m.Upsert(ctx, sub) })

	zap.L().Info("[Tenant] subscription created",
		zap.String("owner_id", ownerID),
		zap.Time("expires_at", sub.ExpiresAt),
	)
	return token, sub.ExpiresAt, nil
}

func (s *Service) Get(ctx context.Context, ownerID string) (*Subscription, error) {
	sub, err := s.store.Get(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	groups, err := s.store.Groups(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tenant groups: %w", err)
	}
	if groups == nil {
		groups = []string{}
	}
	sub.Groups = groups
	return sub, nil
}

// IsValid is false for absent records and for records at or past expiry.
func (s *Service) IsValid(ctx context.Context, ownerID string) bool {
	sub, err := s.store.Get(ctx, ownerID)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			zap.L().Warn("[Tenant] failed to read subscription", zap.String("owner_id", ownerID), zap.Error(err))
		}
		return false
	}
	return sub.ValidAt(s.now())
}

// AttachGroup is idempotent. It reports false without error when the owner
// has no subscription or the group is already attached to this owner.
func (s *Service) AttachGroup(ctx context.Context, ownerID, groupID string) (bool, error) {
	if _, err := s.store.Get(ctx, ownerID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read subscription: %w", err)
	}

	attached, err := s.store.Attach(ctx, ownerID, groupID)
	s.owners.Invalidate(groupID)
	if err != nil {
		if errors.Is(err, ErrGroupOwned) {
			return false, err
		}
		return false, fmt.Errorf("failed to attach group: %w", err)
	}

	if attached {
		s.mirrorWrite("tenants", func(m Store) error {
			_, err := m.Attach(ctx, ownerID, groupID)
			return err
		})
	}
	return attached, nil
}

// ForgetGroup detaches groupID from whichever tenant owns it.
func (s *Service) ForgetGroup(ctx context.Context, groupID string) error {
	err := s.store.Detach(ctx, groupID)
	s.owners.Invalidate(groupID)
	if err != nil {
		return fmt.Errorf("failed to detach group: %w", err)
	}

	s.mirrorWrite("tenants", func(m Store) error {
		return m.Detach(ctx, groupID)
	})
	return nil
}

func (s *Service) ResolveByGroup(ctx context.Context, groupID string) (string, bool, error) {
	if owner, ok := s.owners.Get(groupID); ok {
		return owner, owner != "", nil
	}

	owner, ok, err := s.store.OwnerOf(ctx, groupID)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve tenant: %w", err)
	}
	s.owners.Set(groupID, owner)
	return owner, ok, nil
}

// CheckGroupAccess lets groups without a tenant through. A lookup failure
// also lets the group through.
func (s *Service) CheckGroupAccess(ctx context.Context, groupID string) bool {
	owner, ok, err := s.ResolveByGroup(ctx, groupID)
	if err != nil {
		zap.L().Warn("[Tenant] access check failed open", zap.String("group_id", groupID), zap.Error(err))
		return true
	}
	if !ok {
		return true
	}
	return s.IsValid(ctx, owner)
}

func (s *Service) AccrueUsage(ctx context.Context, ownerID string, translates, chars int64) error {
	if err := s.store.Accrue(ctx, ownerID, translates, chars); err != nil {
		metrics.StoreWriteFailures.WithLabelValues("tenant_usage").Inc()
		return fmt.Errorf("failed to accrue usage: %w", err)
	}
	return nil
}

// AccrueByGroup is a no-op for groups with no tenant.
func (s *Service) AccrueByGroup(ctx context.Context, groupID string, translates, chars int64) error {
	owner, ok, err := s.ResolveByGroup(ctx, groupID)
	if err != nil || !ok {
		return err
	}
	return s.AccrueUsage(ctx, owner, translates, chars)
}

func (s *Service) mirrorWrite(section string, fn func(m Store) error) {
	if s.mirror == nil {
		return
	}
	if err := fn(s.mirror); err != nil {
		metrics.MirrorWriteFailures.WithLabelValues(section).Inc()
		zap.L().Warn("[Tenant] failed to mirror tenant", zap.Error(err))
	}
}
