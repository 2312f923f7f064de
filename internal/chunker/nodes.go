package chunker

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

type NodeKind string

const (
	NodeText  NodeKind = "text"
	NodeTitle NodeKind = "title"
	NodeTable NodeKind = "table"
	NodeImage NodeKind = "image"
)

type Node struct {
	Kind NodeKind
	Text string
}

const (
	maxTitleWords = 12
	maxTitleRunes = 100
)

var (
	markdownHeading  = regexp.MustCompile(`^#{1,6}\s+\S`)
	markdownImage    = regexp.MustCompile(`^!\[[^\]]*\]\([^)]*\)$`)
	imagePlaceholder = regexp.MustCompile(`(?i)^[\[<(]\s*(image|figure|img)[^\]>)]*[\]>)]$`)
)

// parseNodes walks the text line by line. Blank lines end a block; inside a
// block consecutive table rows form one table, and title-like lines stand
// alone.
func parseNodes(text string) []Node {
	var (
		nodes    []Node
		textBuf  []string
		tableBuf []string
		prev     string
	)
	flushText := func() {
		if len(textBuf) > 0 {
			nodes = append(nodes, Node{Kind: NodeText, Text: strings.Join(textBuf, "\n")})
			textBuf = nil
		}
	}
	flushTable := func() {
		if len(tableBuf) == 0 {
			return
		}
		// a single pipe line is prose, not a table
		if len(tableBuf) == 1 {
			textBuf = append(textBuf, tableBuf[0])
		} else {
			flushText()
			nodes = append(nodes, Node{Kind: NodeTable, Text: strings.Join(tableBuf, "\n")})
		}
		tableBuf = nil
	}

	lines := strings.Split(text, "\n")
	for i, raw := range lines {
		line := strings.TrimSpace(raw)
		next := ""
		if i+1 < len(lines) {
			next = strings.TrimSpace(lines[i+1])
		}
		switch {
		case line == "":
			flushTable()
			flushText()
			prev = ""
			continue
		case isImageLine(line):
			flushTable()
			flushText()
			nodes = append(nodes, Node{Kind: NodeImage, Text: line})
		case isTableRow(line):
			tableBuf = append(tableBuf, line)
		case isTitleLine(line, prev, next):
			flushTable()
			flushText()
			nodes = append(nodes, Node{Kind: NodeTitle, Text: strings.TrimSpace(strings.TrimLeft(line, "#"))})
		default:
			flushTable()
			textBuf = append(textBuf, line)
		}
		prev = line
	}
	flushTable()
	flushText()
	return nodes
}

func isImageLine(line string) bool {
	return markdownImage.MatchString(line) || imagePlaceholder.MatchString(line)
}

func isTableRow(line string) bool {
	return strings.Count(line, "|") >= 2
}

// isTitleLine accepts markdown headings, and short capitalised lines without
// terminal punctuation that start a block or follow a finished sentence and
// are not continued in lower case on the next line.
func isTitleLine(line, prev, next string) bool {
	if markdownHeading.MatchString(line) {
		return true
	}
	if prev != "" && !endsSentence(prev) {
		return false
	}
	if utf8.RuneCountInString(line) > maxTitleRunes || len(strings.Fields(line)) > maxTitleWords {
		return false
	}
	first, _ := utf8.DecodeRuneInString(line)
	if !unicode.IsUpper(first) && !unicode.IsDigit(first) {
		return false
	}
	if endsSentence(line) || strings.HasSuffix(line, ",") {
		return false
	}
	if next != "" {
		head, _ := utf8.DecodeRuneInString(next)
		if unicode.IsLower(head) {
			return false
		}
	}
	return strings.IndexFunc(line, unicode.IsLetter) >= 0
}

func endsSentence(line string) bool {
	last, _ := utf8.DecodeLastRuneInString(line)
	return strings.ContainsRune(".!?:;", last)
}
