package discharge

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed templates/checklists.yaml
var defaultTemplates []byte

type templateItem struct {
	Category   Category `yaml:"category"`
	Text       string   `yaml:"text"`
	CreateTask bool     `yaml:"createTask"`
}

// Templates holds the default checklist for each discharge type.
type Templates struct {
	Common []templateItem                   `yaml:"common"`
	Types  map[DischargeType][]templateItem `yaml:"types"`
}

// ParseTemplates decodes and checks a checklist template document.
func ParseTemplates(b []byte) (*Templates, error) {
	var t Templates
	if err := yaml.Unmarshal(b, &t); err != nil {
		return nil, fmt.Errorf("parse checklist templates: %w", err)
	}
	check := func(where string, items []templateItem) error {
		for i, it := range items {
			if !it.Category.Valid() {
				return fmt.Errorf("checklist template %s[%d]: unknown category %q", where, i, it.Category)
			}
			if it.Text == "" {
				return fmt.Errorf("checklist template %s[%d]: empty text", where, i)
			}
		}
		return nil
	}
	if err := check("common", t.Common); err != nil {
		return nil, err
	}
	for dt, items := range t.Types {
		if !dt.Valid() {
			return nil, fmt.Errorf("checklist template: unknown discharge type %q", dt)
		}
		if err := check(string(dt), items); err != nil {
			return nil, err
		}
	}
	return &t, nil
}

// DefaultTemplates returns the embedded templates.
func DefaultTemplates() (*Templates, error) {
	return ParseTemplates(defaultTemplates)
}

// Seed builds the initial checklist items for a new record.
func (t *Templates) Seed(dt DischargeType) []*ChecklistItem {
	src := append(append([]templateItem{}, t.Common...), t.Types[dt]...)
	items := make([]*ChecklistItem, 0, len(src))
	for i, ti := range src {
		items = append(items, &ChecklistItem{
			Category:   ti.Category,
			ItemText:   ti.Text,
			SortOrder:  (i + 1) * 10,
			CreateTask: ti.CreateTask,
		})
	}
	return items
}
