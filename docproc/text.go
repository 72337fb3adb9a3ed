package docproc

import (
	"strconv"
	"strings"
)

// extractTextMetadata derives line/word/character statistics from a plain-text
// payload. Page count uses the configured lines-per-page approximation; the
// statistics land in Properties without displacing caller-supplied values.
func extractTextMetadata(data []byte, meta DocumentMetadata, linesPerPage int) (DocumentMetadata, error) {
	text := string(data)

	lines := splitLines(text)
	words := len(strings.Fields(text))
	chars := len([]rune(text))

	meta.HasText = true
	meta.PageCount = len(lines) / linesPerPage
	if meta.PageCount < 1 {
		meta.PageCount = 1
	}

	meta.setProperty("line_count", strconv.Itoa(len(lines)))
	meta.setProperty("word_count", strconv.Itoa(words))
	meta.setProperty("character_count", strconv.Itoa(chars))

	return meta, nil
}

// splitLines splits on any line-break convention (CRLF, LF, bare CR).
func splitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return strings.Split(text, "\n")
}
