package textextract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// DOCX has no layout information, so pages are estimated.
const paragraphsPerPage = 40

// maxDocumentXMLBytes caps the decompressed size of word/document.xml.
var maxDocumentXMLBytes int64 = 64 << 20

type documentXML struct {
	Body struct {
		Paragraphs []paragraph `xml:"p"`
	} `xml:"body"`
}

type paragraph struct {
	Runs []run `xml:"r"`
}

type run struct {
	Text []textElement `xml:"t"`
}

type textElement struct {
	Content string `xml:",chardata"`
}

func docxPages(data []byte, maxPages int) ([]string, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: not a docx archive: %v", ErrExtractionFailed, err)
	}

	paragraphs, err := readParagraphs(reader)
	if err != nil {
		return nil, err
	}

	var pages []string
	for start := 0; start < len(paragraphs); start += paragraphsPerPage {
		end := min(start+paragraphsPerPage, len(paragraphs))
		pages = append(pages, strings.Join(paragraphs[start:end], "\n"))
	}
	if len(pages) == 0 {
		pages = []string{""}
	}
	if err := checkPageLimit(len(pages), maxPages); err != nil {
		return nil, err
	}
	return pages, nil
}

func readParagraphs(reader *zip.Reader) ([]string, error) {
	for _, file := range reader.File {
		if file.Name != "word/document.xml" {
			continue
		}

		rc, err := file.Open()
		if err != nil {
			return nil, fmt.Errorf("%w: open document.xml: %v", ErrExtractionFailed, err)
		}
		content, err := io.ReadAll(io.LimitReader(rc, maxDocumentXMLBytes+1))
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("%w: read document.xml: %v", ErrExtractionFailed, err)
		}
		if int64(len(content)) > maxDocumentXMLBytes {
			return nil, fmt.Errorf("%w: document.xml exceeds %d bytes", ErrExtractionFailed, maxDocumentXMLBytes)
		}

		var doc documentXML
		if err := xml.Unmarshal(content, &doc); err != nil {
			return nil, fmt.Errorf("%w: parse document.xml: %v", ErrExtractionFailed, err)
		}

		paragraphs := make([]string, 0, len(doc.Body.Paragraphs))
		for _, para := range doc.Body.Paragraphs {
			var b strings.Builder
			for _, r := range para.Runs {
				for _, t := range r.Text {
					b.WriteString(t.Content)
				}
			}
			paragraphs = append(paragraphs, b.String())
		}
		return paragraphs, nil
	}
	return nil, fmt.Errorf("%w: missing word/document.xml", ErrExtractionFailed)
}
