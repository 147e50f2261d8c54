package templates

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultRegistry(t *testing.T) {
	t.Parallel()

	registry, err := Default()
	require.NoError(t, err)
	require.Equal(t, "standard", registry.DefaultName())
	require.True(t, registry.Has("standard"))
	require.True(t, registry.Has("landing"))
	require.False(t, registry.Has("missing"))

	placeholders, ok := registry.Placeholders("landing")
	require.True(t, ok)
	require.Len(t, placeholders, 3)
	require.Equal(t, "hero", placeholders[0].Name)

	choices := registry.Choices()
	require.Len(t, choices, 2)
	require.Equal(t, "standard", choices[0].Name)
}

func TestLoadRejectsInvalidDocuments(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
	}{
		{
			name: "missing default",
			raw:  `{"templates": [{"name": "standard", "label": "Standard"}]}`,
		},
		{
			name: "empty templates",
			raw:  `{"default": "standard", "templates": []}`,
		},
		{
			name: "bad template name",
			raw:  `{"default": "Standard Page", "templates": [{"name": "Standard Page", "label": "Standard"}]}`,
		},
		{
			name: "unknown widget",
			raw:  `{"default": "standard", "templates": [{"name": "standard", "label": "Standard", "placeholders": [{"name": "body", "widget": "flash"}]}]}`,
		},
		{
			name: "default not declared",
			raw:  `{"default": "other", "templates": [{"name": "standard", "label": "Standard"}]}`,
		},
		{
			name: "not json",
			raw:  `{"default": `,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := Load([]byte(tt.raw))
			require.Error(t, err)
		})
	}
}

func TestLoadRejectsDuplicateTemplates(t *testing.T) {
	t.Parallel()

	raw := `{"default": "standard", "templates": [
		{"name": "standard", "label": "One"},
		{"name": "standard", "label": "Two"}
	]}`

	_, err := Load([]byte(raw))
	require.Error(t, err)
	require.Contains(t, err.Error(), "duplicate template")
}
