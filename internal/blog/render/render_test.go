package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	r := New()

	tests := []struct {
		name        string
		src         string
		contains    []string
		notContains []string
	}{
		{
			name:     "headings and emphasis",
			src:      "# Hello\n\nSome **bold** and *italic* text.",
			contains: []string{"<h1", "Hello</h1>", "<strong>bold</strong>", "<em>italic</em>"},
		},
		{
			name:     "fenced code keeps language class",
			src:      "```go\nfmt.Println(1)\n```",
			contains: []string{`<code class="language-go">`},
		},
		{
			name:     "tables from GFM",
			src:      "| a | b |\n|---|---|\n| 1 | 2 |",
			contains: []string{"<table>", "<td>1</td>"},
		},
		{
			name:        "script tags are removed",
			src:         "hi <script>alert(1)</script>",
			contains:    []string{"hi"},
			notContains: []string{"<script", "alert(1)</script>"},
		},
		{
			name:        "event handlers are stripped",
			src:         `<img src="https://example.com/a.png" onerror="alert(1)">`,
			contains:    []string{`src="https://example.com/a.png"`},
			notContains: []string{"onerror"},
		},
		{
			name:        "javascript links are neutralized",
			src:         "[x](javascript:alert(1))",
			notContains: []string{"javascript:"},
		},
		{
			name:     "external links get nofollow",
			src:      "[site](https://example.com)",
			contains: []string{"nofollow", `target="_blank"`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := r.Render(tt.src)
			require.NoError(t, err)
			for _, s := range tt.contains {
				assert.Contains(t, out, s)
			}
			for _, s := range tt.notContains {
				assert.NotContains(t, out, s)
			}
		})
	}
}
