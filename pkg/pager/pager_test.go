package pager

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPaginate(t *testing.T) {
	tests := []struct {
		name       string
		paragraphs []string
		size       int
		want       []string
	}{
		{name: "empty", paragraphs: nil, size: 10, want: nil},
		{name: "blank paragraphs", paragraphs: []string{" ", ""}, size: 10, want: nil},
		{name: "fits one page", paragraphs: []string{"Hello.", "World."}, size: 100, want: []string{"Hello.\nWorld."}},
		{name: "page per paragraph", paragraphs: []string{"Hello.", "World."}, size: 8, want: []string{"Hello.", "World."}},
		{
			name:       "split at sentences",
			paragraphs: []string{"One two. Three four. Five."},
			size:       12,
			want:       []string{"One two.", "Three four.", "Five."},
		},
		{
			name:       "multiple marks",
			paragraphs: []string{"Stop!!! Go on"},
			size:       9,
			want:       []string{"Stop!!!", "Go on"},
		},
		{
			name:       "abbreviation is not a sentence end",
			paragraphs: []string{"See e.g. this text now"},
			size:       10,
			want:       []string{"See e.g.", "this text", "now"},
		},
		{
			name:       "long paragraph after short one",
			paragraphs: []string{"Hi.", "One two. Three."},
			size:       10,
			want:       []string{"Hi.", "One two.", "Three."},
		},
		{
			name:       "rune boundary",
			paragraphs: []string{"ЖЖЖ"},
			size:       3,
			want:       []string{"Ж", "Ж", "Ж"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, Paginate(tt.paragraphs, tt.size))
		})
	}
}

func TestPaginate_PageSize(t *testing.T) {
	text := strings.Repeat("Lorem ipsum dolor sit amet. ", 200)
	pages := Paginate([]string{text, text}, 500)
	require.NotEmpty(t, pages)
	for _, p := range pages {
		require.LessOrEqual(t, len(p), 500)
		require.NotEmpty(t, p)
	}
	require.Equal(t, strings.Fields(text+text), strings.Fields(strings.Join(pages, " ")))
}
