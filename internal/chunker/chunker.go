// Package chunker splits extracted document text into ordered chunks with
// page-range metadata.
package chunker

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/tmc/langchaingo/textsplitter"

	"gopherai-docqa/internal/model"
	"gopherai-docqa/internal/pkg/textextract"
	"gopherai-docqa/internal/pkg/tokens"
)

var (
	ErrChunkingFailed = errors.New("chunking failed")
	ErrNoContent      = errors.New("document has no text content")
)

const (
	DefaultNodeTokens      = 1000
	DefaultSubChunkTokens  = 750
	DefaultSubChunkOverlap = 75
	DefaultMaxNodeWords    = 200
)

type Input struct {
	DocumentID uuid.UUID
	Text       string
	// Metadata is copied into every chunk, except the page map.
	Metadata map[string]any
	PageMap  textextract.PageMap
	NumPages int
}

type Record struct {
	DocumentID uuid.UUID
	Index      int
	Content    string
	Metadata   map[string]any
}

type Option func(*Chunker)

// WithSubSplitter replaces the token splitter used for long text nodes.
func WithSubSplitter(s textsplitter.TextSplitter) Option {
	return func(c *Chunker) {
		c.subSplitter = s
	}
}

func WithMaxNodeWords(n int) Option {
	return func(c *Chunker) {
		if n > 0 {
			c.maxNodeWords = n
		}
	}
}

type Chunker struct {
	counter      tokens.Counter
	nodeSplitter textsplitter.TextSplitter
	subSplitter  textsplitter.TextSplitter
	maxNodeWords int
}

func New(counter tokens.Counter, opts ...Option) *Chunker {
	c := &Chunker{
		counter: counter,
		nodeSplitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithSeparators([]string{"\n", ". ", "? ", "! ", "; ", " ", ""}),
			textsplitter.WithChunkSize(DefaultNodeTokens),
			textsplitter.WithChunkOverlap(0),
			textsplitter.WithLenFunc(counter.Count),
		),
		subSplitter: textsplitter.NewTokenSplitter(
			textsplitter.WithChunkSize(DefaultSubChunkTokens),
			textsplitter.WithChunkOverlap(DefaultSubChunkOverlap),
			textsplitter.WithEncodingName(tokens.DefaultEncoding),
		),
		maxNodeWords: DefaultMaxNodeWords,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Chunk returns every chunk of the document or an error wrapping
// ErrChunkingFailed and no chunks.
func (c *Chunker) Chunk(in Input) ([]Record, error) {
	if strings.TrimSpace(in.Text) == "" {
		return nil, fmt.Errorf("%w: document %s: %w", ErrChunkingFailed, in.DocumentID, ErrNoContent)
	}

	nodes, err := c.nodes(in.Text)
	if err != nil {
		return nil, fmt.Errorf("%w: document %s: %w", ErrChunkingFailed, in.DocumentID, err)
	}

	numPages := in.NumPages
	if numPages <= 0 {
		for p := range in.PageMap {
			numPages = max(numPages, p)
		}
	}

	var records []Record
	emit := func(kind NodeKind, content string) {
		content = strings.TrimSpace(content)
		if content == "" {
			return
		}
		start, end := PageRange(content, in.Text, in.PageMap, numPages)
		meta := baseMetadata(in.Metadata)
		meta[model.MetaElementType] = string(kind)
		meta[model.MetaPageStart] = start
		meta[model.MetaPageEnd] = end
		records = append(records, Record{
			DocumentID: in.DocumentID,
			Index:      len(records),
			Content:    content,
			Metadata:   meta,
		})
	}

	for i := 0; i < len(nodes); i++ {
		node := nodes[i]
		switch node.Kind {
		case NodeTable:
			emit(NodeTable, textextract.NormalizeSpace(node.Text))
		case NodeTitle:
			if i+1 >= len(nodes) {
				emit(NodeTitle, textextract.NormalizeSpace(node.Text))
				continue
			}
			next := nodes[i+1]
			if next.Kind == NodeTitle {
				continue
			}
			emit(NodeTitle, textextract.NormalizeSpace(node.Text+"\n"+next.Text))
			i++
		default:
			if len(strings.Fields(node.Text)) <= c.maxNodeWords {
				emit(NodeText, textextract.NormalizeSpace(node.Text))
				continue
			}
			subs, err := c.subSplitter.SplitText(node.Text)
			if err != nil {
				return nil, fmt.Errorf("%w: document %s: split node %d: %w", ErrChunkingFailed, in.DocumentID, i, err)
			}
			for _, sub := range subs {
				emit(NodeText, sub)
			}
		}
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("%w: document %s: %w", ErrChunkingFailed, in.DocumentID, ErrNoContent)
	}
	return records, nil
}

// nodes parses the structure, drops images and packs oversized text nodes
// into pieces of at most DefaultNodeTokens tokens.
func (c *Chunker) nodes(text string) ([]Node, error) {
	parsed := parseNodes(text)
	out := make([]Node, 0, len(parsed))
	for _, node := range parsed {
		switch {
		case node.Kind == NodeImage:
			continue
		case node.Kind == NodeText && c.counter.Count(node.Text) > DefaultNodeTokens:
			pieces, err := c.nodeSplitter.SplitText(node.Text)
			if err != nil {
				return nil, fmt.Errorf("split text node: %w", err)
			}
			for _, p := range pieces {
				out = append(out, Node{Kind: NodeText, Text: p})
			}
		default:
			out = append(out, node)
		}
	}
	return out, nil
}

func baseMetadata(src map[string]any) map[string]any {
	dst := make(map[string]any, len(src)+3)
	for k, v := range src {
		if k == model.MetaPageMap {
			continue
		}
		dst[k] = v
	}
	return dst
}
