package license

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repository interface {
	InsertCode(ctx context.Context, code *LicenseCode) (bool, error)
	Redeem(ctx context.Context, code, lineUserID string, now time.Time) (*Redemption, error)
	List(ctx context.Context, beforeID int64, limit int) ([]LicenseCode, error)
	Export(ctx context.Context, limit int) ([]LicenseCode, error)
	ExpireMembers(ctx context.Context, now time.Time) (int64, error)
	GetMember(ctx context.Context, lineUserID string) (*Member, error)
}

type gormRepository struct {
	db   *gorm.DB
	node *snowflake.Node
}

func NewRepository(db *gorm.DB, node *snowflake.Node) Repository {
	if db == nil {
		return nil
	}
	return &gormRepository{db: db, node: node}
}

// InsertCode reports false when the code already exists.
func (r *gormRepository) InsertCode(ctx context.Context, code *LicenseCode) (bool, error) {
	if r == nil || r.db == nil {
		return false, gorm.ErrInvalidDB
	}

	if code.ID == 0 {
		code.ID = r.node.Generate().Int64()
	}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "code"}}, DoNothing: true}).
		Create(code)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// Redeem marks the code used and extends the member in one transaction. The
// conditional UPDATE is what makes a code redeemable exactly once.
func (r *gormRepository) Redeem(ctx context.Context, code, lineUserID string, now time.Time) (*Redemption, error) {
	if r == nil || r.db == nil {
		return nil, gorm.ErrInvalidDB
	}

	var out *Redemption
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		member, err := r.getOrCreateMember(tx, lineUserID, now)
		if err != nil {
			return err
		}

		res := tx.Model(&LicenseCode{}).
			Where("code = ? AND used = ?", code, false).
			Updates(map[string]any{
				"used":    true,
				"used_by": member.ID,
				"used_at": now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var n int64
			if err := tx.Model(&LicenseCode{}).Where("code = ?", code).Count(&n).Error; err != nil {
				return err
			}
			if n == 0 {
				return ErrCodeNotFound
			}
			return ErrCodeUsed
		}

		var lc LicenseCode
		if err := tx.Where("code = ?", code).First(&lc).Error; err != nil {
			return err
		}

		base := now
		if member.ActiveAt(now) {
			base = member.ExpireAt
		}
		member.ExpireAt = base.Add(time.Duration(lc.Days) * 24 * time.Hour)
		member.Status = MemberActive
		member.UpdatedAt = now

		if err := tx.Model(&Member{}).Where("id = ?", member.ID).Updates(map[string]any{
			"status":     member.Status,
			"expire_at":  member.ExpireAt,
			"updated_at": member.UpdatedAt,
		}).Error; err != nil {
			return err
		}

		out = &Redemption{
			Code:     lc.Code,
			Days:     lc.Days,
			MemberID: member.ID,
			ExpireAt: member.ExpireAt,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *gormRepository) getOrCreateMember(tx *gorm.DB, lineUserID string, now time.Time) (*Member, error) {
	var m Member
	err := tx.Where("line_user_id = ?", lineUserID).First(&m).Error
	if err == nil {
		return &m, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	m = Member{
		ID:         r.node.Generate().Int64(),
		LineUserID: lineUserID,
		Status:     MemberInactive,
		ExpireAt:   now,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := tx.Create(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// List returns codes newest first. Snowflake ids are time ordered, so the id
// alone serves as the cursor.
func (r *gormRepository) List(ctx context.Context, beforeID int64, limit int) ([]LicenseCode, error) {
	if r == nil || r.db == nil {
		return nil, gorm.ErrInvalidDB
	}

	query := r.db.WithContext(ctx).Model(&LicenseCode{})
	if beforeID > 0 {
		query = query.Where("id < ?", beforeID)
	}

	var codes []LicenseCode
	err := query.Order("id DESC").Limit(limit).Find(&codes).Error
	return codes, err
}

func (r *gormRepository) Export(ctx context.Context, limit int) ([]LicenseCode, error) {
	if r == nil || r.db == nil {
		return nil, gorm.ErrInvalidDB
	}

	query := r.db.WithContext(ctx).Model(&LicenseCode{}).Order("id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var codes []LicenseCode
	err := query.Find(&codes).Error
	return codes, err
}

func (r *gormRepository) ExpireMembers(ctx context.Context, now time.Time) (int64, error) {
	if r == nil || r.db == nil {
		return 0, gorm.ErrInvalidDB
	}

	res := r.db.WithContext(ctx).
		Model(&Member{}).
		Where("status = ? AND expire_at < ?", MemberActive, now).
		Updates(map[string]any{
			"status":     MemberInactive,
			"updated_at": now,
		})
	return res.RowsAffected, res.Error
}

func (r *gormRepository) GetMember(ctx context.Context, lineUserID string) (*Member, error) {
	if r == nil || r.db == nil {
		return nil, gorm.ErrInvalidDB
	}

	var m Member
	err := r.db.WithContext(ctx).Where("line_user_id = ?", lineUserID).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrMemberNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}
