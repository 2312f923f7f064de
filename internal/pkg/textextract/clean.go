package textextract

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Clean normalizes to NFKC, blanks out control characters and the general
// punctuation, supplemental punctuation and specials blocks, collapses
// horizontal whitespace, and keeps at most one blank line between paragraphs.
func Clean(text string) string {
	text = norm.NFKC.String(text)
	text = strings.ReplaceAll(text, "\r\n", "\n")

	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		switch {
		case r == '\n':
			b.WriteRune(r)
		case r == '\r':
			b.WriteRune('\n')
		case blanked(r):
			b.WriteRune(' ')
		default:
			b.WriteRune(r)
		}
	}

	lines := strings.Split(b.String(), "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.Join(strings.FieldsFunc(line, unicode.IsSpace), " ")
		if line == "" {
			blank = len(out) > 0
			continue
		}
		if blank {
			out = append(out, "")
			blank = false
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

func blanked(r rune) bool {
	switch {
	case r <= 0x1F, r >= 0x7F && r <= 0x9F:
		return true
	case r >= 0x2000 && r <= 0x206F:
		return true
	case r >= 0x2E00 && r <= 0x2E7F:
		return true
	case r >= 0xF000 && r <= 0xFFFF:
		return true
	}
	return false
}

// NormalizeSpace collapses every whitespace run, newlines included, into a
// single space.
func NormalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
