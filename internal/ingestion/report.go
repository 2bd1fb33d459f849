// Package ingestion normalizes incoming report text before extraction.
package ingestion

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"unicode"
)

var (
	spaceRun      = regexp.MustCompile(`[ \t\p{Zs}]+`)
	blankLineRuns = regexp.MustCompile(`\n\n\n+`)
)

// bulletPrefixes are list markers kept at the start of a line. Reports often
// list one resource per line.
var bulletPrefixes = []string{"- ", "* ", "• ", "· "}

// CleanText normalizes a report while preserving its line structure
func CleanText(content string) string {
	if content == "" {
		return ""
	}

	// Normalize line endings (CRLF → LF)
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.ReplaceAll(content, "\r", "\n")

	lines := strings.Split(content, "\n")
	cleanedLines := make([]string, 0, len(lines))
	for _, line := range lines {
		cleanedLines = append(cleanedLines, cleanLine(line))
	}

	result := strings.Join(cleanedLines, "\n")

	// Remove excessive blank lines (max 1 blank line between paragraphs)
	result = blankLineRuns.ReplaceAllString(result, "\n\n")

	return strings.TrimSpace(result)
}

// cleanLine drops control characters, collapses spaces and strips indentation
func cleanLine(line string) string {
	line = strings.Map(func(r rune) rune {
		if r == '\t' {
			return ' '
		}
		if unicode.IsControl(r) || r == '\uFEFF' || r == '\u200B' {
			return -1
		}
		return r
	}, line)

	line = strings.TrimSpace(spaceRun.ReplaceAllString(line, " "))
	if line == "" {
		return ""
	}

	if isBulletLine(line) {
		// Normalize all bullet styles to "- "
		for _, prefix := range bulletPrefixes {
			if strings.HasPrefix(line, prefix) {
				return "- " + strings.TrimSpace(strings.TrimPrefix(line, prefix))
			}
		}
	}
	return line
}

// isBulletLine checks if a line is a bullet list item
func isBulletLine(line string) bool {
	for _, prefix := range bulletPrefixes {
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}
	return false
}

// Hash returns the SHA256 hex digest of a report. Logs carry the hash rather
// than the report, which may contain personal details.
func Hash(content string) string {
	hash := sha256.Sum256([]byte(content))
	return hex.EncodeToString(hash[:])
}

// ReadReport reads a report from path, or from stdin when path is "-", and cleans it.
func ReadReport(path string, stdin io.Reader) (string, error) {
	var content []byte
	var err error
	if path == "-" {
		content, err = io.ReadAll(stdin)
	} else {
		content, err = os.ReadFile(path)
	}
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("file not found: %w", err)
		}
		return "", fmt.Errorf("failed to read report: %w", err)
	}
	return CleanText(string(content)), nil
}
