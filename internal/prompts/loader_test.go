package prompts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet_ValidPrompt(t *testing.T) {
	ClearCache()

	prompt, err := Get("extraction.json", "system")
	require.NoError(t, err)
	assert.Contains(t, prompt, "{{.Categories}}")
	assert.Contains(t, prompt, "singular")
}

func TestGet_InvalidFile(t *testing.T) {
	ClearCache()

	_, err := Get("nonexistent.json", "some-key")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read prompt file")
}

func TestGet_InvalidKey(t *testing.T) {
	ClearCache()

	_, err := Get("audit.json", "nonexistent-key")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestMustGet_Panics(t *testing.T) {
	ClearCache()

	assert.Panics(t, func() {
		MustGet("nonexistent.json", "some-key")
	})
}

func TestFormat(t *testing.T) {
	template := "Report from {{.UserType}} near {{.Place}}"
	data := map[string]string{
		"UserType": "NGO",
		"Place":    "Tampere",
	}

	assert.Equal(t, "Report from NGO near Tampere", Format(template, data))
}

func TestFormat_ValuesAreNotExpanded(t *testing.T) {
	template := "{{.A}} {{.B}}"
	data := map[string]string{"A": "{{.B}}", "B": "b"}

	assert.Equal(t, "{{.B}} b", Format(template, data))
}

func TestFormat_EmptyData(t *testing.T) {
	template := "Hello {{.Name}}"
	assert.Equal(t, template, Format(template, map[string]string{}))
}

func TestRender(t *testing.T) {
	ClearCache()

	out, err := Render("matching.json", "user", map[string]string{"Situation": "flood in Pori", "Candidates": "[]"})
	require.NoError(t, err)
	assert.Contains(t, out, "flood in Pori")
	assert.NotContains(t, out, "{{.")

	_, err = Render("matching.json", "missing", nil)
	assert.Error(t, err)
}

func TestEveryFileHasSystemAndUserPrompts(t *testing.T) {
	ClearCache()

	files, err := Files()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"audit.json", "extraction.json", "matching.json"}, files)

	for _, f := range files {
		keys, err := List(f)
		require.NoError(t, err)
		assert.Equal(t, []string{"system", "user"}, keys, f)
	}
}

func TestCaching(t *testing.T) {
	ClearCache()

	prompt1, err := Get("audit.json", "system")
	require.NoError(t, err)

	prompt2, err := Get("audit.json", "system")
	require.NoError(t, err)

	assert.Equal(t, prompt1, prompt2)
}
