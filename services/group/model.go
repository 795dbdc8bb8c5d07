package group

import (
	"sort"
	"strings"
	"time"
)

type GroupLanguageSetting struct {
	ID        uint      `gorm:"column:id;primaryKey;autoIncrement"`
	GroupID   string    `gorm:"column:group_id;uniqueIndex;size:64;not null"`
	Languages string    `gorm:"column:languages;not null"`
	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (GroupLanguageSetting) TableName() string { return "group_translate_setting" }

func (m *GroupLanguageSetting) Codes() []string {
	return splitCodes(m.Languages)
}

type GroupEnginePreference struct {
	ID        uint      `gorm:"column:id;primaryKey;autoIncrement"`
	GroupID   string    `gorm:"column:group_id;uniqueIndex;size:64;not null"`
	Engine    string    `gorm:"column:engine;size:16;not null"`
	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (GroupEnginePreference) TableName() string { return "group_engine_preference" }

type GroupActivity struct {
	ID           uint      `gorm:"column:id;primaryKey;autoIncrement"`
	GroupID      string    `gorm:"column:group_id;uniqueIndex;size:64;not null"`
	LastActiveAt time.Time `gorm:"column:last_active_at;index"`
}

func (GroupActivity) TableName() string { return "group_activity" }

// Models lists every table owned by this package.
func Models() []any {
	return []any{&GroupLanguageSetting{}, &GroupEnginePreference{}, &GroupActivity{}}
}

// joinCodes dedupes and sorts codes into the stored comma form.
func joinCodes(codes []string) string {
	return strings.Join(normalize(codes), ",")
}

func splitCodes(s string) []string {
	if strings.TrimSpace(s) == "" {
		return []string{}
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func normalize(codes []string) []string {
	seen := make(map[string]struct{}, len(codes))
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}
