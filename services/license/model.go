package license

import "time"

type MemberStatus string

const (
	MemberActive   MemberStatus = "active"
	MemberInactive MemberStatus = "inactive"
)

type LicenseCode struct {
	ID        int64      `gorm:"column:id;primaryKey;autoIncrement:false" json:"id,string"`
	Code      string     `gorm:"column:code;uniqueIndex;size:32;not null" json:"code"`
	Days      int        `gorm:"column:days;not null" json:"days"`
	Used      bool       `gorm:"column:used;not null;default:false;index" json:"used"`
	UsedBy    *int64     `gorm:"column:used_by" json:"used_by,string,omitempty"`
	UsedAt    *time.Time `gorm:"column:used_at" json:"used_at,omitempty"`
	CreatedAt time.Time  `gorm:"column:created_at" json:"created_at"`
}

func (LicenseCode) TableName() string { return "license_codes" }

type Member struct {
	ID         int64        `gorm:"column:id;primaryKey;autoIncrement:false" json:"id,string"`
	LineUserID string       `gorm:"column:line_user_id;uniqueIndex;size:64;not null" json:"line_user_id"`
	Name       string       `gorm:"column:name" json:"name"`
	Status     MemberStatus `gorm:"column:status;size:16;not null;index" json:"status"`
	ExpireAt   time.Time    `gorm:"column:expire_at" json:"expire_at"`
	CreatedAt  time.Time    `gorm:"column:created_at" json:"created_at"`
	UpdatedAt  time.Time    `gorm:"column:updated_at" json:"updated_at"`
}

func (Member) TableName() string { return "members" }

func (m *Member) ActiveAt(now time.Time) bool {
	return m.Status == MemberActive && m.ExpireAt.After(now)
}

// Redemption is the outcome of a successful code redemption.
type Redemption struct {
	Code     string    `json:"code"`
	Days     int       `json:"days"`
	MemberID int64     `json:"member_id,string"`
	ExpireAt time.Time `json:"expire_at"`
}

func Models() []any {
	return []any{&LicenseCode{}, &Member{}}
}
