package discharge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTemplates(t *testing.T) {
	tpl, err := DefaultTemplates()
	require.NoError(t, err)
	require.NotEmpty(t, tpl.Common)

	general := tpl.Seed(TypeGeneral)
	surgery := tpl.Seed(TypeSurgery)
	assert.Greater(t, len(surgery), len(general))

	for i, it := range surgery {
		assert.Equal(t, (i+1)*10, it.SortOrder)
		assert.True(t, it.Category.Valid(), "item %d category %q", i, it.Category)
		assert.NotEmpty(t, it.ItemText)
		assert.Nil(t, it.TaskID)
	}
	assert.Equal(t, tpl.Common[0].Text, surgery[0].ItemText)
}

func TestSeed_ReturnsFreshItems(t *testing.T) {
	tpl, err := DefaultTemplates()
	require.NoError(t, err)

	a := tpl.Seed(TypeStroke)
	a[0].ItemText = "changed"
	b := tpl.Seed(TypeStroke)
	assert.NotEqual(t, "changed", b[0].ItemText)
	assert.Len(t, b, len(a))
}

func TestParseTemplates(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr string
	}{
		{
			name: "valid",
			doc: `
common:
  - category: medications
    text: Fill prescriptions
    createTask: true
types:
  cardiac:
    - category: first_week
      text: Weigh daily
`,
		},
		{
			name:    "unknown category",
			doc:     "common:\n  - category: groceries\n    text: Buy milk\n",
			wantErr: "unknown category",
		},
		{
			name:    "empty text",
			doc:     "common:\n  - category: home_prep\n",
			wantErr: "empty text",
		},
		{
			name:    "unknown discharge type",
			doc:     "types:\n  dental:\n    - category: home_prep\n      text: Soft foods\n",
			wantErr: "unknown discharge type",
		},
		{
			name:    "not yaml",
			doc:     "common: [",
			wantErr: "parse checklist templates",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tpl, err := ParseTemplates([]byte(tt.doc))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			items := tpl.Seed(TypeCardiac)
			require.Len(t, items, 2)
			assert.True(t, items[0].CreateTask)
			assert.Equal(t, CategoryFirstWeek, items[1].Category)
			assert.Len(t, tpl.Seed(TypeFall), 1)
		})
	}
}
