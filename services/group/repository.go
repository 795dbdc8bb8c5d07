package group

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository is the relational store for per-group settings.
type Repository interface {
	GetLanguages(ctx context.Context, groupID string) ([]string, bool, error)
	UpsertLanguages(ctx context.Context, groupID string, codes []string) error
	DeleteLanguages(ctx context.Context, groupID string) error
	GetEngine(ctx context.Context, groupID string) (string, bool, error)
	UpsertEngine(ctx context.Context, groupID, engine string) error
	TouchActivity(ctx context.Context, groupID string, at time.Time) error
	ListInactive(ctx context.Context, before time.Time) ([]string, error)
	Purge(ctx context.Context, groupID string) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository returns nil for a nil db so the resolver can run on the
// data file alone.
func NewRepository(db *gorm.DB) Repository {
	if db == nil {
		return nil
	}
	return &gormRepository{db: db}
}

func (r *gormRepository) GetLanguages(ctx context.Context, groupID string) ([]string, bool, error) {
	if r == nil || r.db == nil {
		return nil, false, gorm.ErrInvalidDB
	}

	var row GroupLanguageSetting
	err := r.db.WithContext(ctx).Where("group_id = ?", groupID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return row.Codes(), true, nil
}

func (r *gormRepository) UpsertLanguages(ctx context.Context, groupID string, codes []string) error {
	if r == nil || r.db == nil {
		return gorm.ErrInvalidDB
	}

	row := &GroupLanguageSetting{GroupID: groupID, Languages: joinCodes(codes)}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "group_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"languages", "updated_at"}),
	}).Create(row).Error
}

func (r *gormRepository) DeleteLanguages(ctx context.Context, groupID string) error {
	if r == nil || r.db == nil {
		return gorm.ErrInvalidDB
	}
	return r.db.WithContext(ctx).Where("group_id = ?", groupID).Delete(&GroupLanguageSetting{}).Error
}

func (r *gormRepository) GetEngine(ctx context.Context, groupID string) (string, bool, error) {
	if r == nil || r.db == nil {
		return "", false, gorm.ErrInvalidDB
	}

	var row GroupEnginePreference
	err := r.db.WithContext(ctx).Where("group_id = ?", groupID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return row.Engine, true, nil
}

func (r *gormRepository) UpsertEngine(ctx context.Context, groupID, engine string) error {
	if r == nil || r.db == nil {
		return gorm.ErrInvalidDB
	}

	row := &GroupEnginePreference{GroupID: groupID, Engine: engine}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "group_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"engine", "updated_at"}),
	}).Create(row).Error
}

func (r *gormRepository) TouchActivity(ctx context.Context, groupID string, at time.Time) error {
	if r == nil || r.db == nil {
		return gorm.ErrInvalidDB
	}

	row := &GroupActivity{GroupID: groupID, LastActiveAt: at.UTC()}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "group_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"last_active_at"}),
	}).Create(row).Error
}

func (r *gormRepository) ListInactive(ctx context.Context, before time.Time) ([]string, error) {
	if r == nil || r.db == nil {
		return nil, gorm.ErrInvalidDB
	}

	var ids []string
	err := r.db.WithContext(ctx).
		Model(&GroupActivity{}).
		Where("last_active_at < ?", before.UTC()).
		Order("last_active_at ASC").
		Pluck("group_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *gormRepository) Purge(ctx context.Context, groupID string) error {
	if r == nil || r.db == nil {
		return gorm.ErrInvalidDB
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, m := range Models() {
			if err := tx.Where("group_id = ?", groupID).Delete(m).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
