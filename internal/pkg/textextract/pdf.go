package textextract

import (
	"bytes"
	"fmt"

	"github.com/ledongthuc/pdf"
)

func pdfPages(data []byte, maxPages int) (pages []string, err error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty pdf", ErrExtractionFailed)
	}
	// the pdf reader panics on some malformed inputs
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = fmt.Errorf("%w: %v", ErrExtractionFailed, r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}

	total := reader.NumPage()
	if err := checkPageLimit(total, maxPages); err != nil {
		return nil, err
	}

	pages = make([]string, total)
	for i := 1; i <= total; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("%w: page %d: %v", ErrExtractionFailed, i, err)
		}
		pages[i-1] = text
	}
	return pages, nil
}
