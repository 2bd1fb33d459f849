package ingestion

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanText_NormalizeBulletLists(t *testing.T) {
	input := "We have:\n- 20 blankets\n  * 3 tents\n• bottled water\n· diesel"
	result := CleanText(input)

	assert.Equal(t, "We have:\n- 20 blankets\n- 3 tents\n- bottled water\n- diesel", result)
}

func TestCleanText_NormalizeWhitespace(t *testing.T) {
	input := "Line    with \t multiple  spaces"
	result := CleanText(input)

	assert.Equal(t, "Line with multiple spaces", result)
}

func TestCleanText_RemoveExcessiveBlankLines(t *testing.T) {
	input := "Line 1\n\n\n\n\nLine 2"
	result := CleanText(input)

	assert.Equal(t, "Line 1\n\nLine 2", result)
}

func TestCleanText_NormalizeLineEndings(t *testing.T) {
	input := "Line 1\r\nLine 2\rLine 3\nLine 4"
	result := CleanText(input)

	assert.NotContains(t, result, "\r")
	assert.Equal(t, "Line 1\nLine 2\nLine 3\nLine 4", result)
}

func TestCleanText_StripsControlCharacters(t *testing.T) {
	input := "\uFEFFGenerator\x00 at the\u200B school\x07"
	result := CleanText(input)

	assert.Equal(t, "Generator at the school", result)
}

func TestCleanText_DeterministicOutput(t *testing.T) {
	input := "Test content   with   spaces\n\n\nMultiple   blank   lines"
	assert.Equal(t, CleanText(input), CleanText(input))
}

func TestCleanText_EmptyInput(t *testing.T) {
	assert.Empty(t, CleanText(""))
	assert.Empty(t, CleanText("   \n  \n\t "))
}

func TestCleanText_SpecialCharacters(t *testing.T) {
	input := "Meillä on 🚐 pakettiauto ja ruokaa Äänekoskella"
	result := CleanText(input)

	assert.Equal(t, input, result)
}

func TestHash(t *testing.T) {
	h := Hash("we have water")
	assert.Len(t, h, 64)
	assert.Equal(t, h, Hash("we have water"))
	assert.NotEqual(t, h, Hash("we have food"))
}

func TestReadReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.txt")
	require.NoError(t, os.WriteFile(path, []byte("  10   tents\r\n\r\n\r\n\r\nin Oulu  "), 0644))

	text, err := ReadReport(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "10 tents\n\nin Oulu", text)

	text, err = ReadReport("-", strings.NewReader("water\tpurification  tablets"))
	require.NoError(t, err)
	assert.Equal(t, "water purification tablets", text)

	_, err = ReadReport(filepath.Join(t.TempDir(), "missing.txt"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "file not found")
}
