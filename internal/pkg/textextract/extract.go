// Package textextract turns uploaded PDF and DOCX files into cleaned text
// plus a page map. Page map offsets are byte offsets into Result.Text.
package textextract

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported document format")
	ErrPageLimitExceeded = errors.New("document page limit exceeded")
	ErrExtractionFailed  = errors.New("document extraction failed")
)

const (
	ExtPDF  = ".pdf"
	ExtDOCX = ".docx"

	pageSeparator = "\n\n"
)

// PageSpan is the half-open range [Start, End) a page occupies in the text.
type PageSpan struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

type PageMap map[int]PageSpan

type Result struct {
	Text     string
	PageMap  PageMap
	NumPages int
	Ext      string
}

// Supported reports whether fileName has an extension Extract understands.
func Supported(fileName string) bool {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ExtPDF, ExtDOCX:
		return true
	default:
		return false
	}
}

// Extract dispatches on the file extension. maxPages <= 0 disables the
// page limit.
func Extract(fileName string, data []byte, maxPages int) (*Result, error) {
	ext := strings.ToLower(filepath.Ext(fileName))

	var (
		pages []string
		err   error
	)
	switch ext {
	case ExtPDF:
		pages, err = pdfPages(data, maxPages)
	case ExtDOCX:
		pages, err = docxPages(data, maxPages)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fileName, err)
	}

	text, pageMap := joinPages(pages)
	return &Result{
		Text:     text,
		PageMap:  pageMap,
		NumPages: len(pages),
		Ext:      ext,
	}, nil
}

func checkPageLimit(pages, maxPages int) error {
	if maxPages > 0 && pages > maxPages {
		return fmt.Errorf("%w: %d pages, limit %d", ErrPageLimitExceeded, pages, maxPages)
	}
	return nil
}

// joinPages cleans every page and records where it lands in the joined text.
// Empty pages get an empty span at the current offset.
func joinPages(pages []string) (string, PageMap) {
	var b strings.Builder
	pageMap := make(PageMap, len(pages))
	for i, raw := range pages {
		cleaned := Clean(raw)
		if cleaned != "" && b.Len() > 0 {
			b.WriteString(pageSeparator)
		}
		start := b.Len()
		b.WriteString(cleaned)
		pageMap[i+1] = PageSpan{Start: start, End: b.Len()}
	}
	return b.String(), pageMap
}
