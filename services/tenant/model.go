package tenant

import "time"

// Subscription is a tenant's subscription record, keyed by the owner's LINE
// user id. Records are never deleted; an expired one simply stops being valid.
type Subscription struct {
	OwnerID        string    `gorm:"column:owner_id;primaryKey;size:64" json:"owner_id"`
	Token          string    `gorm:"column:token;size:64;not null" json:"token"`
	ExpiresAt      time.Time `gorm:"column:expires_at;not null" json:"expires_at"`
	TranslateCount int64     `gorm:"column:translate_count;not null;default:0" json:"translate_count"`
	CharCount      int64     `gorm:"column:char_count;not null;default:0" json:"char_count"`
	CreatedAt      time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt      time.Time `gorm:"column:updated_at" json:"updated_at"`

	Groups []string `gorm:"-" json:"groups"`
}

func (Subscription) TableName() string { return "tenant_subscriptions" }

// ValidAt is strict: a subscription expiring exactly at now is expired.
func (s *Subscription) ValidAt(now time.Time) bool {
	return now.Before(s.ExpiresAt)
}

// TenantGroup maps a group to its single owning tenant.
type TenantGroup struct {
	GroupID   string    `gorm:"column:group_id;primaryKey;size:64"`
	OwnerID   string    `gorm:"column:owner_id;index;size:64;not null"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (TenantGroup) TableName() string { return "tenant_groups" }

func Models() []any {
	return []any{&Subscription{}, &TenantGroup{}}
}
