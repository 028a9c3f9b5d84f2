package console

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitWords(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{
			name:     "通常の入力",
			input:    "abc def",
			expected: []string{"abc", "def"},
		},
		{
			name:     "末尾に空白がある入力",
			input:    "abc def ",
			expected: []string{"abc", "def", ""},
		},
		{
			name:     "複数の空白を含む入力",
			input:    "  abc  def  ",
			expected: []string{"abc", "def", ""},
		},
		{
			name:     "引用符内の空白を保持",
			input:    "set nodes/1/name \"Living room\"",
			expected: []string{"set", "nodes/1/name", "Living room"},
		},
		{
			name:     "空の入力",
			input:    "",
			expected: []string{},
		},
		{
			name:     "空白のみの入力",
			input:    " ",
			expected: []string{""},
		},
		{
			name:     "タブを含む入力",
			input:    "abc\tdef ",
			expected: []string{"abc", "def", ""},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := splitWords(tt.input)
			if !reflect.DeepEqual(result, tt.expected) {
				t.Errorf("splitWords(%q) = %v, want %v", tt.input, result, tt.expected)
			}
		})
	}
}

type staticDomains []string

func (s staticDomains) Domains() []string { return s }

func completions(dc *dynamicCompleter, line string) ([]string, int) {
	r := []rune(line)
	got, length := dc.Do(r, len(r))
	out := make([]string, 0, len(got))
	for _, g := range got {
		out = append(out, string(g))
	}
	return out, length
}

func TestDynamicCompleter(t *testing.T) {
	dc := &dynamicCompleter{src: staticDomains{"nodes/1/", "nodes/1/info/", "nodes/1/info/version", "nodes/5/"}}

	got, length := completions(dc, "ex")
	assert.Equal(t, []string{"pand ", "it "}, got)
	assert.Equal(t, 2, length)

	got, _ = completions(dc, "expand nodes/1")
	assert.Equal(t, []string{"/ ", "/info/ "}, got, "expand only offers branches")

	got, _ = completions(dc, "show nodes/1/info/")
	assert.Equal(t, []string{" ", "version "}, got)

	got, _ = completions(dc, "watch o")
	assert.Equal(t, []string{"n ", "ff "}, got)

	got, _ = completions(dc, "reload ")
	assert.Empty(t, got)

	got, _ = completions(dc, "help s")
	assert.Equal(t, []string{"how ", "et "}, got)
}
