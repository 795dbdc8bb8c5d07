package tenant

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store persists subscriptions and group attachments.
type Store interface {
	Upsert(ctx context.Context, sub *Subscription) error
	Get(ctx context.Context, ownerID string) (*Subscription, error)
	Attach(ctx context.Context, ownerID, groupID string) (bool, error)
	Detach(ctx context.Context, groupID string) error
	OwnerOf(ctx context.Context, groupID string) (string, bool, error)
	Accrue(ctx context.Context, ownerID string, translates, chars int64) error
	Groups(ctx context.Context, ownerID string) ([]string, error)
}

type gormStore struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Store {
	if db == nil {
		return nil
	}
	return &gormStore{db: db}
}

// Upsert replaces token and expiry, keeping counters and groups.
func (r *gormStore) Upsert(ctx context.Context, sub *Subscription) error {
	if r == nil || r.db == nil {
		return gorm.ErrInvalidDB
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "owner_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"token", "expires_at", "updated_at"}),
	}).Create(sub).Error
}

func (r *gormStore) Get(ctx context.Context, ownerID string) (*Subscription, error) {
	if r == nil || r.db == nil {
		return nil, gorm.ErrInvalidDB
	}

	var sub Subscription
	err := r.db.WithContext(ctx).Where("owner_id = ?", ownerID).First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *gormStore) Attach(ctx context.Context, ownerID, groupID string) (bool, error) {
	if r == nil || r.db == nil {
		return false, gorm.ErrInvalidDB
	}

	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&TenantGroup{GroupID: groupID, OwnerID: ownerID})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 1 {
		return true, nil
	}

	owner, _, err := r.OwnerOf(ctx, groupID)
	if err != nil {
		return false, err
	}
	if owner != ownerID {
		return false, ErrGroupOwned
	}
	return false, nil
}

func (r *gormStore) Detach(ctx context.Context, groupID string) error {
	if r == nil || r.db == nil {
		return gorm.ErrInvalidDB
	}
	return r.db.WithContext(ctx).Where("group_id = ?", groupID).Delete(&TenantGroup{}).Error
}

func (r *gormStore) OwnerOf(ctx context.Context, groupID string) (string, bool, error) {
	if r == nil || r.db == nil {
		return "", false, gorm.ErrInvalidDB
	}

	var row TenantGroup
	err := r.db.WithContext(ctx).Where("group_id = ?", groupID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return row.OwnerID, true, nil
}

// Accrue is a single conditional UPDATE so concurrent callers never lose
// increments.
func (r *gormStore) Accrue(ctx context.Context, ownerID string, translates, chars int64) error {
	if r == nil || r.db == nil {
		return gorm.ErrInvalidDB
	}

	res := r.db.WithContext(ctx).
		Model(&Subscription{}).
		Where("owner_id = ?", ownerID).
		Updates(map[string]any{
			"translate_count": gorm.Expr("translate_count + ?", translates),
			"char_count":      gorm.Expr("char_count + ?", chars),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *gormStore) Groups(ctx context.Context, ownerID string) ([]string, error) {
	if r == nil || r.db == nil {
		return nil, gorm.ErrInvalidDB
	}

	var ids []string
	err := r.db.WithContext(ctx).
		Model(&TenantGroup{}).
		Where("owner_id = ?", ownerID).
		Order("created_at ASC").
		Pluck("group_id", &ids).Error
	return ids, err
}
