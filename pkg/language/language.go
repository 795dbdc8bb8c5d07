package language

import (
	"fmt"
	"sort"
	"strings"

	"fanfan-translator/pkg/config"

	"go.uber.org/fx"
	"golang.org/x/text/language"
)

var Module = fx.Module("language", fx.Provide(Provide))

// Table is the enumerated set of selectable target languages, in display order.
type Table struct {
	entries []config.Language
	index   map[string]int
}

func Provide(cfg *config.Config) (*Table, error) {
	return NewTable(cfg.Languages)
}

func NewTable(langs []config.Language) (*Table, error) {
	t := &Table{index: make(map[string]int, len(langs))}
	for _, l := range langs {
		code := strings.TrimSpace(l.Code)
		if code == "" {
			return nil, fmt.Errorf("language %q has an empty code", l.Label)
		}
		if _, err := language.Parse(code); err != nil {
			return nil, fmt.Errorf("invalid language code %q: %w", code, err)
		}
		if _, dup := t.index[code]; dup {
			return nil, fmt.Errorf("duplicate language code %q", code)
		}
		t.index[code] = len(t.entries)
		t.entries = append(t.entries, config.Language{Label: l.Label, Code: code})
	}
	return t, nil
}

func (t *Table) Contains(code string) bool {
	_, ok := t.index[code]
	return ok
}

func (t *Table) Label(code string) string {
	if i, ok := t.index[code]; ok {
		return t.entries[i].Label
	}
	return code
}

func (t *Table) Entries() []config.Language {
	return append([]config.Language(nil), t.entries...)
}

// Sort orders codes by table position. Codes missing from the table go last,
// alphabetically.
func (t *Table) Sort(codes []string) []string {
	out := append([]string(nil), codes...)
	sort.SliceStable(out, func(i, j int) bool {
		pi, oki := t.index[out[i]]
		pj, okj := t.index[out[j]]
		switch {
		case oki && okj:
			return pi < pj
		case oki != okj:
			return oki
		default:
			return out[i] < out[j]
		}
	})
	return out
}
