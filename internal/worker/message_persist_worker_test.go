package worker

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"gopherai-docqa/internal/logger"
	"gopherai-docqa/internal/model"
	"gopherai-docqa/internal/repository"
)

type recordingAck struct {
	acked   int
	nacked  int
	requeue bool
}

func (a *recordingAck) Ack(uint64, bool) error {
	a.acked++
	return nil
}

func (a *recordingAck) Nack(_ uint64, _ bool, requeue bool) error {
	a.nacked++
	a.requeue = requeue
	return nil
}

func (a *recordingAck) Reject(_ uint64, requeue bool) error {
	a.nacked++
	a.requeue = requeue
	return nil
}

func newTestWorker(t *testing.T) (*MessagePersistWorker, *repository.MessageRepository) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{Logger: gormlogger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&model.Message{}))

	repo := repository.NewMessageRepository(db)
	return NewMessagePersistWorker(nil, repo, "test.queue", logger.Discard()), repo
}

func delivery(t *testing.T, ack amqp.Acknowledger, v any, redelivered bool) amqp.Delivery {
	t.Helper()
	body, err := json.Marshal(v)
	require.NoError(t, err)
	return amqp.Delivery{Acknowledger: ack, Body: body, Redelivered: redelivered}
}

func TestHandlePersistsMessage(t *testing.T) {
	ctx := context.Background()
	w, repo := newTestWorker(t)
	chatID := uuid.New()
	msg := model.Message{
		ID:        uuid.New(),
		ChatID:    chatID,
		Role:      model.RoleLLM,
		Content:   "answer",
		Sources:   []model.Source{{FileName: "plan.pdf", Content: "evidence"}},
		CreatedAt: time.Now(),
	}

	ack := &recordingAck{}
	w.handle(ctx, delivery(t, ack, msg, false))
	assert.Equal(t, 1, ack.acked)

	stored, err := repo.ListByChatID(ctx, chatID, 0)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, msg.ID, stored[0].ID)
	assert.Equal(t, "plan.pdf", stored[0].Sources[0].FileName)
}

func TestHandleRejectsBadPayloads(t *testing.T) {
	ctx := context.Background()
	w, _ := newTestWorker(t)

	ack := &recordingAck{}
	w.handle(ctx, amqp.Delivery{Acknowledger: ack, Body: []byte("{not json")})
	assert.Equal(t, 1, ack.nacked)
	assert.False(t, ack.requeue)

	ack = &recordingAck{}
	w.handle(ctx, delivery(t, ack, model.Message{Content: "no chat"}, false))
	assert.Equal(t, 1, ack.nacked)
	assert.False(t, ack.requeue)
}

func TestHandleRequeuesFailedInsertOnce(t *testing.T) {
	ctx := context.Background()
	w, _ := newTestWorker(t)
	msg := model.Message{ID: uuid.New(), ChatID: uuid.New(), Role: model.RoleUser, Content: "q"}

	first := &recordingAck{}
	w.handle(ctx, delivery(t, first, msg, false))
	require.Equal(t, 1, first.acked)

	dup := &recordingAck{}
	w.handle(ctx, delivery(t, dup, msg, false))
	assert.Equal(t, 1, dup.nacked)
	assert.True(t, dup.requeue)

	again := &recordingAck{}
	w.handle(ctx, delivery(t, again, msg, true))
	assert.Equal(t, 1, again.nacked)
	assert.False(t, again.requeue)
}
