// Package tokens counts tokens the way the embedding model does.
package tokens

import (
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

// Encoding used by the text-embedding-3-small and text-embedding-3-large models.
const DefaultEncoding = "cl100k_base"

type Counter interface {
	Count(text string) int
}

type Tiktoken struct {
	enc *tiktoken.Tiktoken
}

// NewTiktoken loads the BPE ranks for encoding. The first call per process
// may download them.
func NewTiktoken(encoding string) (*Tiktoken, error) {
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("load tiktoken encoding %s failed: %w", encoding, err)
	}
	return &Tiktoken{enc: enc}, nil
}

func (t *Tiktoken) Count(text string) int {
	return len(t.enc.EncodeOrdinary(text))
}

// Words approximates one token per whitespace separated word.
type Words struct{}

func (Words) Count(text string) int {
	return len(strings.Fields(text))
}
