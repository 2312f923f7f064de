package lifecycle

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gopherai-docqa/internal/model"
)

type recordingWriter struct {
	writes []model.DocumentStatus
	err    error
}

func (w *recordingWriter) UpdateStatus(_ context.Context, _ uuid.UUID, status model.DocumentStatus) error {
	if w.err != nil {
		return w.err
	}
	w.writes = append(w.writes, status)
	return nil
}

func TestNextTable(t *testing.T) {
	cases := []struct {
		from State
		ev   Event
		to   State
		ok   bool
	}{
		{Pending, EventInvolve, Chunked, true},
		{Pending, EventFail, Failed, true},
		{Chunked, EventInvolve, Ready, true},
		{Chunked, EventFail, Failed, true},
		{Ready, EventInvolve, "", false},
		{Ready, EventFail, "", false},
		{Failed, EventInvolve, "", false},
		{Failed, EventFail, "", false},
	}
	for _, tc := range cases {
		t.Run(string(tc.from)+"/"+string(tc.ev), func(t *testing.T) {
			tr, err := Next(tc.from, tc.ev)
			if !tc.ok {
				assert.ErrorIs(t, err, ErrInvalidTransition)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.to, tr.To)
			assert.Equal(t, model.DocumentStatus(tc.to), tr.Effect.Status)
		})
	}
}

func TestMachineHappyPath(t *testing.T) {
	w := &recordingWriter{}
	m := Track(uuid.New(), w)
	ctx := context.Background()

	require.NoError(t, m.Involve(ctx))
	assert.Equal(t, Chunked, m.Current)
	assert.NoError(t, m.CanRetry())

	require.NoError(t, m.Involve(ctx))
	assert.Equal(t, Ready, m.Current)
	assert.Equal(t, Chunked, m.Previous)
	assert.NoError(t, m.CanRetry())

	assert.ErrorIs(t, m.Involve(ctx), ErrInvalidTransition)
	assert.ErrorIs(t, m.Fail(ctx), ErrInvalidTransition)
	assert.Equal(t, []model.DocumentStatus{model.DocumentChunked, model.DocumentReady}, w.writes)
}

func TestFailedIsAbsorbing(t *testing.T) {
	w := &recordingWriter{}
	m := Track(uuid.New(), w)
	ctx := context.Background()

	require.NoError(t, m.Fail(ctx))
	assert.Equal(t, Failed, m.Current)
	assert.ErrorIs(t, m.Involve(ctx), ErrInvalidTransition)
	assert.ErrorIs(t, m.Fail(ctx), ErrInvalidTransition)
	assert.ErrorIs(t, m.CanRetry(), ErrRetryUnsupported)
	assert.Equal(t, []model.DocumentStatus{model.DocumentFailed}, w.writes)
}

func TestWriteFailureLeavesStateUntouched(t *testing.T) {
	boom := errors.New("db down")
	m := Track(uuid.New(), &recordingWriter{err: boom})

	err := m.Involve(context.Background())
	assert.ErrorIs(t, err, ErrStatusUpdateFailed)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, Pending, m.Current)
	assert.ErrorIs(t, m.CanRetry(), ErrRetryUnsupported)
}

func TestResume(t *testing.T) {
	w := &recordingWriter{}

	m, err := Resume(&model.Document{ID: uuid.New(), Status: model.DocumentReady}, w)
	require.NoError(t, err)
	assert.Equal(t, Chunked, m.Previous)
	assert.NoError(t, m.CanRetry())

	m, err = Resume(&model.Document{ID: uuid.New(), Status: model.DocumentChunked}, w)
	require.NoError(t, err)
	require.NoError(t, m.Involve(context.Background()))
	assert.Equal(t, Ready, m.Current)

	m, err = Resume(&model.Document{ID: uuid.New(), Status: model.DocumentCharged}, w)
	require.NoError(t, err)
	assert.Equal(t, Pending, m.Current)
	assert.ErrorIs(t, m.CanRetry(), ErrRetryUnsupported)

	_, err = Resume(&model.Document{ID: uuid.New(), Status: "archived"}, w)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}
