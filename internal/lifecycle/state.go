// Package lifecycle drives a document through pending -> chunked -> ready,
// or into failed. Transitions are pure; persisting the resulting status is
// a separate effect so the state only advances once the write succeeded.
package lifecycle

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"gopherai-docqa/internal/model"
)

type State string

const (
	Pending State = "pending"
	Chunked State = "chunked"
	Ready   State = "ready"
	Failed  State = "failed"
)

type Event string

const (
	EventInvolve Event = "involve"
	EventFail    Event = "fail"
)

var (
	ErrInvalidTransition  = errors.New("invalid document state transition")
	ErrRetryUnsupported   = errors.New("retry is not supported in this state")
	ErrStatusUpdateFailed = errors.New("document status update failed")
)

// Effect is the side effect a transition requires: writing Status.
type Effect struct {
	Status model.DocumentStatus
}

type Transition struct {
	From   State
	To     State
	Effect Effect
}

var table = map[State]map[Event]State{
	Pending: {EventInvolve: Chunked, EventFail: Failed},
	Chunked: {EventInvolve: Ready, EventFail: Failed},
}

// Next returns the transition for ev from current. Ready and Failed accept
// no events.
func Next(current State, ev Event) (Transition, error) {
	to, ok := table[current][ev]
	if !ok {
		return Transition{}, fmt.Errorf("%w: %s on %s", ErrInvalidTransition, ev, current)
	}
	return Transition{From: current, To: to, Effect: Effect{Status: model.DocumentStatus(to)}}, nil
}

// FromStatus maps a stored status onto a state. The legacy "charged" status
// is treated as pending.
func FromStatus(status model.DocumentStatus) (State, error) {
	switch status {
	case model.DocumentPending, model.DocumentCharged, "":
		return Pending, nil
	case model.DocumentChunked:
		return Chunked, nil
	case model.DocumentReady:
		return Ready, nil
	case model.DocumentFailed:
		return Failed, nil
	default:
		return "", fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, status)
	}
}

type StatusWriter interface {
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.DocumentStatus) error
}

// Apply performs the effect of t for document id.
func Apply(ctx context.Context, w StatusWriter, id uuid.UUID, t Transition) error {
	if t.Effect.Status == "" {
		return nil
	}
	if err := w.UpdateStatus(ctx, id, t.Effect.Status); err != nil {
		return fmt.Errorf("%w: %s -> %s: %w", ErrStatusUpdateFailed, t.From, t.To, err)
	}
	return nil
}
