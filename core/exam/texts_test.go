package exam

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTexts(t *testing.T) {
	texts, err := ParseTexts(strings.NewReader(`
1:
  english: Problem
  french: Problème
2:
  english: Submit
`))
	require.NoError(t, err)

	tests := []struct {
		name     string
		position int
		locale   string
		want     string
	}{
		{name: "locale", position: 1, locale: "french", want: "Problème"},
		{name: "english fallback", position: 2, locale: "french", want: "Submit"},
		{name: "unknown locale", position: 1, locale: "klingon", want: "Problem"},
		{name: "unknown position", position: 9, locale: "english", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := texts.Text(tt.position, tt.locale); got != tt.want {
				t.Errorf("Text() = %q, want %q", got, tt.want)
			}
		})
	}

	assert.Equal(t, map[int]string{1: "Problème", 2: "Submit"}, texts.Labels("french"))
}

func TestLoadTexts(t *testing.T) {
	texts, err := LoadTexts("")
	require.NoError(t, err)
	assert.Equal(t, "Problem", texts.Text(LabelProblem, "english"))
	assert.Equal(t, "Esita", texts.Text(LabelSubmit, "estonian"))

	_, err = LoadTexts("/does/not/exist.yaml")
	assert.Error(t, err)

	empty, err := ParseTexts(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, empty.Labels("english"))
}
