package textextract

import (
	"archive/zip"
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestDOCX(t *testing.T, paragraphs []string) []byte {
	t.Helper()
	var body strings.Builder
	for _, p := range paragraphs {
		fmt.Fprintf(&body, "<w:p><w:r><w:t>%s</w:t></w:r></w:p>", p)
	}
	doc := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
		body.String() + `</w:body></w:document>`

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	f, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = f.Write([]byte(doc))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestExtractDOCX(t *testing.T) {
	data := createTestDOCX(t, []string{"Introduction", "Go is   a language.", "It has goroutines."})

	res, err := Extract("Notes.DOCX", data, 150)
	require.NoError(t, err)

	assert.Equal(t, ExtDOCX, res.Ext)
	assert.Equal(t, 1, res.NumPages)
	assert.Equal(t, "Introduction\nGo is a language.\nIt has goroutines.", res.Text)
	assert.Equal(t, PageSpan{Start: 0, End: len(res.Text)}, res.PageMap[1])
}

func TestExtractDOCXEstimatesPages(t *testing.T) {
	paragraphs := make([]string, 0, 85)
	for i := 0; i < 85; i++ {
		paragraphs = append(paragraphs, fmt.Sprintf("Paragraph %d.", i))
	}
	data := createTestDOCX(t, paragraphs)

	res, err := Extract("long.docx", data, 150)
	require.NoError(t, err)
	assert.Equal(t, 3, res.NumPages)
	require.Len(t, res.PageMap, 3)

	second := res.Text[res.PageMap[2].Start:res.PageMap[2].End]
	assert.True(t, strings.HasPrefix(second, "Paragraph 40."))
	assert.True(t, strings.HasSuffix(second, "Paragraph 79."))
	assert.Equal(t, res.PageMap[1].End+len(pageSeparator), res.PageMap[2].Start)

	_, err = Extract("long.docx", data, 2)
	assert.ErrorIs(t, err, ErrPageLimitExceeded)
}

func TestExtractDOCXRejectsOversizedDocumentXML(t *testing.T) {
	data := createTestDOCX(t, []string{strings.Repeat("compressible ", 200)})

	prev := maxDocumentXMLBytes
	maxDocumentXMLBytes = 512
	t.Cleanup(func() { maxDocumentXMLBytes = prev })

	res, err := Extract("bomb.docx", data, 150)
	assert.ErrorIs(t, err, ErrExtractionFailed)
	assert.Contains(t, err.Error(), "exceeds 512 bytes")
	assert.Nil(t, res)

	maxDocumentXMLBytes = 1 << 20
	res, err = Extract("bomb.docx", data, 150)
	require.NoError(t, err)
	assert.Equal(t, 1, res.NumPages)
}

func TestExtractRejects(t *testing.T) {
	_, err := Extract("slides.pptx", []byte("x"), 150)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = Extract("broken.docx", []byte("not a zip"), 150)
	assert.ErrorIs(t, err, ErrExtractionFailed)

	_, err = Extract("broken.pdf", []byte("%PDF-1.4 garbage"), 150)
	assert.ErrorIs(t, err, ErrExtractionFailed)

	_, err = Extract("empty.pdf", nil, 150)
	assert.ErrorIs(t, err, ErrExtractionFailed)

	assert.True(t, Supported("a.PDF"))
	assert.False(t, Supported("a.txt"))
}

func TestJoinPages(t *testing.T) {
	text, pageMap := joinPages([]string{"first  page", "", "third\tpage"})

	assert.Equal(t, "first page\n\nthird page", text)
	assert.Equal(t, PageSpan{0, 10}, pageMap[1])
	assert.Equal(t, PageSpan{10, 10}, pageMap[2])
	assert.Equal(t, "third page", text[pageMap[3].Start:pageMap[3].End])
}

func TestClean(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"collapses spaces", "a  \t b", "a b"},
		{"keeps one blank line", "para one\n\n\n\npara two", "para one\n\npara two"},
		{"trims edges", "\n\n  text  \n\n", "text"},
		{"crlf", "line one\r\nline two", "line one\nline two"},
		{"nfkc ligature", "ﬁle", "file"},
		{"control chars", "a\x00b\x7fc", "a b c"},
		{"general punctuation", "a•b", "a b"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Clean(tc.in))
		})
	}
}

func TestNormalizeSpace(t *testing.T) {
	assert.Equal(t, "a b c", NormalizeSpace(" a\n\nb \t c "))
}
