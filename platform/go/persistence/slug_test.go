package persistence

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSlugify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		input  string
		expect string
	}{
		{
			name:   "already normalized",
			input:  "my-page",
			expect: "my-page",
		},
		{
			name:   "trims and lowercases",
			input:  "  My Page!  ",
			expect: "my-page",
		},
		{
			name:   "collapses punctuation runs",
			input:  "Hello -- World?!",
			expect: "hello-world",
		},
		{
			name:   "strips non-ascii",
			input:  "café & crème",
			expect: "caf-cr-me",
		},
		{
			name:   "empty input",
			input:  "   ",
			expect: "",
		},
		{
			name:   "only punctuation",
			input:  "!!!",
			expect: "",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			require.Equal(t, tt.expect, Slugify(tt.input))
		})
	}
}

func TestNormalizeSlug(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		input       string
		expectSlug  string
		expectError bool
	}{
		{
			name:       "already normalized",
			input:      "main-site",
			expectSlug: "main-site",
		},
		{
			name:       "trims whitespace and lowercases",
			input:      "  Main-Site ",
			expectSlug: "main-site",
		},
		{
			name:        "empty string",
			input:       "   ",
			expectError: true,
		},
		{
			name:        "invalid characters",
			input:       "main_site",
			expectError: true,
		},
		{
			name:        "leading hyphen",
			input:       "-bad-slug",
			expectError: true,
		},
		{
			name:        "trailing hyphen",
			input:       "bad-slug-",
			expectError: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			slug, err := NormalizeSlug(tt.input)
			if tt.expectError {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			require.Equal(t, tt.expectSlug, slug)
		})
	}
}
