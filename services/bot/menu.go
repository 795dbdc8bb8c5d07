package bot

import (
	"context"
	"slices"
	"time"

	"fanfan-translator/pkg/cache"
	"fanfan-translator/pkg/config"
)

const menuCacheTTL = 60 * time.Second

type LanguageSource interface {
	GetLanguages(ctx context.Context, groupID string) []string
}

type LanguageTable interface {
	Entries() []config.Language
}

// Menu renders the per-group language picker. Rendered bubbles are cached
// briefly and dropped whenever the group's selection changes.
type Menu struct {
	groups LanguageSource
	table  LanguageTable
	cache  *cache.Cache[string, Message]
}

func NewMenu(groups LanguageSource, table LanguageTable, clock func() time.Time) *Menu {
	return &Menu{
		groups: groups,
		table:  table,
		cache: cache.New[string, Message](cache.Options{
			Name:       "menu",
			MaxEntries: 500,
			TTL:        menuCacheTTL,
			Clock:      clock,
		}),
	}
}

func (m *Menu) Render(ctx context.Context, groupID string) Message {
	if msg, ok := m.cache.Get(groupID); ok {
		return msg
	}

	selected := m.groups.GetLanguages(ctx, groupID)

	buttons := make([]map[string]any, 0, len(m.table.Entries())+1)
	for _, lang := range m.table.Entries() {
		on := slices.Contains(selected, lang.Code)
		label, color := lang.Label, "#FF6347"
		if on {
			label, color = "✅ "+lang.Label, "#DC143C"
		}
		buttons = append(buttons, map[string]any{
			"type":  "button",
			"style": "primary",
			"color": color,
			"action": map[string]any{
				"type":  "postback",
				"label": label,
				"data":  "lang:" + lang.Code,
			},
		})
	}
	buttons = append(buttons, map[string]any{
		"type":  "button",
		"style": "secondary",
		"action": map[string]any{
			"type":  "postback",
			"label": "🔄 重設翻譯設定",
			"data":  "reset",
		},
	})

	bubble := map[string]any{
		"type": "bubble",
		"header": map[string]any{
			"type":   "box",
			"layout": "vertical",
			"contents": []map[string]any{
				{"type": "text", "text": "🎊 群組翻譯設定", "weight": "bold", "size": "lg", "color": "#DC143C"},
				{"type": "text", "text": "請加上 / 取消要翻譯成的語言，可複選。", "size": "sm", "color": "#555555", "wrap": true},
			},
		},
		"body": map[string]any{
			"type":     "box",
			"layout":   "vertical",
			"spacing":  "sm",
			"contents": buttons,
		},
	}

	msg := FlexMessage("🎊 新春翻譯設定", bubble)
	m.cache.Set(groupID, msg)
	return msg
}

func (m *Menu) Invalidate(groupID string) {
	m.cache.Invalidate(groupID)
}

// ForgetGroup drops the cached menu of a reaped group.
func (m *Menu) ForgetGroup(_ context.Context, groupID string) error {
	m.Invalidate(groupID)
	return nil
}
