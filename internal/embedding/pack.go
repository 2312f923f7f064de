package embedding

import (
	"github.com/google/uuid"

	"gopherai-docqa/internal/pkg/tokens"
)

// Item is one chunk waiting for its vector.
type Item struct {
	ChunkID uuid.UUID
	Text    string
}

type Batch struct {
	Items  []Item
	Tokens int
}

// Pack groups items greedily in order so that each batch stays within
// limit tokens. An item that does not fit starts a new batch; an item larger
// than limit gets a batch of its own.
func Pack(items []Item, counter tokens.Counter, limit int) []Batch {
	var (
		batches []Batch
		current Batch
	)
	for _, item := range items {
		n := counter.Count(item.Text)
		if len(current.Items) > 0 && current.Tokens+n > limit {
			batches = append(batches, current)
			current = Batch{}
		}
		current.Items = append(current.Items, item)
		current.Tokens += n
	}
	if len(current.Items) > 0 {
		batches = append(batches, current)
	}
	return batches
}

func (b Batch) texts() []string {
	out := make([]string, len(b.Items))
	for i, item := range b.Items {
		out[i] = item.Text
	}
	return out
}
