package chunker

import (
	"sort"
	"strings"
	"unicode/utf8"

	"gopherai-docqa/internal/pkg/textextract"
)

const (
	sampleRunes    = 200
	matchRunes     = 100
	longChunkRunes = 400
)

// PageRange locates chunk inside full and maps the match to pages.
//
// Both texts are whitespace-normalized, the chunk's first 100 runes are
// searched for, and for long chunks the end is found by searching for its
// last 100 runes after the start. Offsets in the normalized text are scaled
// back by the length ratio before the page lookup, so chunks whose opening
// text recurs earlier in the document can be attributed to the wrong page.
// The result is clamped to [1, numPages]; (1, 1) when nothing matches.
func PageRange(chunk, full string, pageMap textextract.PageMap, numPages int) (int, int) {
	if len(pageMap) == 0 {
		return 1, 1
	}

	startSample := textextract.NormalizeSpace(firstRunes(chunk, sampleRunes))
	endSample := textextract.NormalizeSpace(lastRunes(chunk, sampleRunes))
	normalizedFull := textextract.NormalizeSpace(full)
	normalizedChunk := textextract.NormalizeSpace(chunk)
	if startSample == "" {
		return 1, 1
	}

	start := strings.Index(normalizedFull, firstRunes(startSample, matchRunes))
	if start == -1 {
		return 1, 1
	}

	end := start + len(normalizedChunk)
	if utf8.RuneCountInString(chunk) > longChunkRunes {
		needle := lastRunes(endSample, matchRunes)
		from := min(start+len(startSample), len(normalizedFull))
		if idx := strings.Index(normalizedFull[from:], needle); idx != -1 {
			end = from + idx + len(needle)
		}
	}

	ratio := float64(len(full)) / float64(max(len(normalizedFull), 1))
	startPage, endPage := pagesFor(int(float64(start)*ratio), int(float64(end)*ratio), pageMap)
	return clampPages(startPage, endPage, numPages)
}

// pagesFor maps the half-open range [start, end) of the original text to
// the pages of its first and last byte.
func pagesFor(start, end int, pageMap textextract.PageMap) (int, int) {
	if end > start {
		end--
	}
	return pageAt(start, pageMap), pageAt(end, pageMap)
}

// pageAt returns the page whose [Start, End) holds pos. A position between
// two pages belongs to the next one; past the last page it is the last page.
func pageAt(pos int, pageMap textextract.PageMap) int {
	pages := make([]int, 0, len(pageMap))
	for p := range pageMap {
		pages = append(pages, p)
	}
	sort.Ints(pages)
	for _, p := range pages {
		span := pageMap[p]
		if span.Start <= pos && pos < span.End {
			return p
		}
	}
	for _, p := range pages {
		if pageMap[p].Start > pos {
			return p
		}
	}
	if len(pages) == 0 {
		return 1
	}
	return pages[len(pages)-1]
}

func clampPages(start, end, numPages int) (int, int) {
	if numPages < 1 {
		numPages = 1
	}
	start = min(max(start, 1), numPages)
	end = min(max(end, 1), numPages)
	if end < start {
		end = start
	}
	return start, end
}

func firstRunes(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

func lastRunes(s string, n int) string {
	count := utf8.RuneCountInString(s)
	if count <= n {
		return s
	}
	skip := count - n
	i := 0
	for pos := range s {
		if i == skip {
			return s[pos:]
		}
		i++
	}
	return s
}
