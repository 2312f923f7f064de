package lifecycle

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"gopherai-docqa/internal/model"
)

// Machine is the state of one document plus the state it came from.
// Previous is what makes a retry possible after the document went ready.
type Machine struct {
	ID       uuid.UUID
	Current  State
	Previous State

	writer StatusWriter
}

// Track starts a freshly created document in Pending.
func Track(id uuid.UUID, w StatusWriter) *Machine {
	return &Machine{ID: id, Current: Pending, writer: w}
}

// Resume rebuilds the machine of a stored document.
func Resume(doc *model.Document, w StatusWriter) (*Machine, error) {
	current, err := FromStatus(doc.Status)
	if err != nil {
		return nil, err
	}
	m := &Machine{ID: doc.ID, Current: current, writer: w}
	switch current {
	case Chunked:
		m.Previous = Pending
	case Ready:
		m.Previous = Chunked
	}
	return m, nil
}

func (m *Machine) Involve(ctx context.Context) error {
	return m.fire(ctx, EventInvolve)
}

func (m *Machine) Fail(ctx context.Context) error {
	return m.fire(ctx, EventFail)
}

func (m *Machine) fire(ctx context.Context, ev Event) error {
	t, err := Next(m.Current, ev)
	if err != nil {
		return err
	}
	if err := Apply(ctx, m.writer, m.ID, t); err != nil {
		return err
	}
	m.Previous, m.Current = t.From, t.To
	return nil
}

// CanRetry reports whether the chunks may be re-embedded: only while the
// document sits in Chunked, or is Ready having come from Chunked.
func (m *Machine) CanRetry() error {
	switch {
	case m.Current == Chunked:
		return nil
	case m.Current == Ready && m.Previous == Chunked:
		return nil
	default:
		return fmt.Errorf("%w: document %s is %s", ErrRetryUnsupported, m.ID, m.Current)
	}
}
