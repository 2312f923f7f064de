package repository

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"gopherai-docqa/internal/model"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&model.User{},
		&model.Chat{},
		&model.Message{},
		&model.Document{},
		&model.Chunk{},
		&model.Embedding{},
	))
	return db
}

type fixture struct {
	chats  *ChatRepository
	docs   *DocumentRepository
	chunks *ChunkRepository
	embeds *EmbeddingRepository
	msgs   *MessageRepository
}

func newFixture(t *testing.T) fixture {
	db := newTestDB(t)
	return fixture{
		chats:  NewChatRepository(db),
		docs:   NewDocumentRepository(db),
		chunks: NewChunkRepository(db),
		embeds: NewEmbeddingRepository(db),
		msgs:   NewMessageRepository(db),
	}
}

func (f fixture) seedDocument(t *testing.T, chatID uuid.UUID, name string, vectors ...[]float32) (*model.Document, []model.Chunk) {
	t.Helper()
	ctx := context.Background()

	doc := &model.Document{ChatID: chatID, Title: name, MetaData: map[string]any{model.MetaFileName: name}}
	require.NoError(t, f.docs.Create(ctx, doc))

	chunks := make([]model.Chunk, len(vectors))
	for i := range vectors {
		chunks[i] = model.Chunk{DocumentID: doc.ID, ChunkIndex: i, Content: name + " chunk"}
	}
	require.NoError(t, f.chunks.CreateBatch(ctx, chunks))

	embeddings := make([]model.Embedding, len(vectors))
	for i, v := range vectors {
		embeddings[i] = model.Embedding{DocumentChunkID: chunks[i].ID, Vector: model.NewVector(v)}
	}
	require.NoError(t, f.embeds.CreateBatch(ctx, embeddings))
	return doc, chunks
}

func TestChunkCreateBatchAssignsIDsAndOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	doc := &model.Document{ChatID: uuid.New(), Title: "a.pdf"}
	require.NoError(t, f.docs.Create(ctx, doc))
	assert.Equal(t, model.DocumentPending, doc.Status)

	chunks := []model.Chunk{
		{DocumentID: doc.ID, ChunkIndex: 1, Content: "second"},
		{DocumentID: doc.ID, ChunkIndex: 0, Content: "first"},
	}
	require.NoError(t, f.chunks.CreateBatch(ctx, chunks))
	for _, c := range chunks {
		assert.NotEqual(t, uuid.Nil, c.ID)
	}

	listed, err := f.chunks.ListByDocumentID(ctx, doc.ID)
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, "first", listed[0].Content)
	assert.Equal(t, model.ChunkPending, listed[0].State)

	byIDs, err := f.chunks.ListByIDs(ctx, []uuid.UUID{chunks[0].ID, uuid.New(), chunks[1].ID})
	require.NoError(t, err)
	require.Len(t, byIDs, 2)
	assert.Equal(t, "second", byIDs[0].Content)
	assert.Equal(t, "first", byIDs[1].Content)
}

func TestEmbeddingCreateBatchMarksChunksSuccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	doc, chunks := f.seedDocument(t, uuid.New(), "a.pdf", []float32{1, 0})
	extra := []model.Chunk{{DocumentID: doc.ID, ChunkIndex: 1, Content: "left behind"}}
	require.NoError(t, f.chunks.CreateBatch(ctx, extra))

	pending, err := f.chunks.ListPending(ctx, doc.ID)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, extra[0].ID, pending[0].ID)

	listed, err := f.chunks.ListByIDs(ctx, []uuid.UUID{chunks[0].ID})
	require.NoError(t, err)
	assert.Equal(t, model.ChunkSuccess, listed[0].State)
}

func TestNearestScopedToChatAndOrdered(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	chatID := uuid.New()

	_, chunks := f.seedDocument(t, chatID, "a.pdf", []float32{1, 0}, []float32{0, 1}, []float32{0.9, 0.1})
	f.seedDocument(t, uuid.New(), "other.pdf", []float32{1, 0})

	hits, err := f.embeds.Nearest(ctx, []float32{1, 0}, chatID, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, chunks[0].ID, hits[0].ChunkID)
	assert.Equal(t, chunks[2].ID, hits[1].ChunkID)
	assert.InDelta(t, 0, hits[0].Distance, 1e-6)
	assert.Less(t, hits[0].Distance, hits[1].Distance)

	none, err := f.embeds.Nearest(ctx, []float32{1, 0}, uuid.New(), 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestDocumentStatusAndLookup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	chatID := uuid.New()

	doc, _ := f.seedDocument(t, chatID, "report.docx")
	require.NoError(t, f.docs.UpdateStatus(ctx, doc.ID, model.DocumentChunked))

	found, err := f.docs.FindByChatAndFileName(ctx, chatID, "report.docx")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, model.DocumentChunked, found.Status)
	assert.Equal(t, "report.docx", found.FileName())

	missing, err := f.docs.FindByChatAndFileName(ctx, chatID, "nope.pdf")
	require.NoError(t, err)
	assert.Nil(t, missing)

	assert.Error(t, f.docs.UpdateStatus(ctx, uuid.New(), model.DocumentReady))
}

func TestDeleteByChatExceptCascades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	chatID := uuid.New()

	keep, _ := f.seedDocument(t, chatID, "keep.pdf", []float32{1, 0})
	drop, dropChunks := f.seedDocument(t, chatID, "drop.pdf", []float32{0, 1})

	require.NoError(t, f.docs.DeleteByChatExcept(ctx, chatID, []uuid.UUID{keep.ID}))

	docs, err := f.docs.ListByChatID(ctx, chatID)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, keep.ID, docs[0].ID)

	gone, err := f.docs.GetByID(ctx, drop.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)

	left, err := f.chunks.ListByIDs(ctx, []uuid.UUID{dropChunks[0].ID})
	require.NoError(t, err)
	assert.Empty(t, left)

	hits, err := f.embeds.Nearest(ctx, []float32{0, 1}, chatID, 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
}

func TestChatIncrementFreezesAtLimit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	chat := &model.Chat{UserID: uuid.New()}
	require.NoError(t, f.chats.Create(ctx, chat))
	assert.Equal(t, model.DefaultChatTitle, chat.Title)
	assert.Equal(t, model.ChatUsable, chat.Status)

	updated, err := f.chats.IncrementMessages(ctx, chat.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, updated.NumMessages)
	assert.Equal(t, model.ChatUsable, updated.Status)

	updated, err = f.chats.IncrementMessages(ctx, chat.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, updated.NumMessages)
	assert.Equal(t, model.ChatUnusable, updated.Status)

	_, err = f.chats.IncrementMessages(ctx, chat.ID, 2)
	assert.ErrorIs(t, err, ErrChatFrozen)
	stored, err := f.chats.GetByID(ctx, chat.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.NumMessages)

	_, err = f.chats.IncrementMessages(ctx, uuid.New(), 2)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	assert.NotErrorIs(t, err, ErrChatFrozen)
}

func TestChatListCursor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		stamp := base.Add(time.Duration(i) * time.Hour)
		require.NoError(t, f.chats.Create(ctx, &model.Chat{UserID: userID, Title: "c", CreatedAt: stamp, UpdatedAt: stamp}))
	}
	require.NoError(t, f.chats.Create(ctx, &model.Chat{UserID: uuid.New()}))

	page, err := f.chats.ListByUserID(ctx, userID, nil, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.True(t, page[0].UpdatedAt.After(page[1].UpdatedAt))

	cursor := page[1].UpdatedAt
	rest, err := f.chats.ListByUserID(ctx, userID, &cursor, 2)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.True(t, rest[0].UpdatedAt.Equal(base))
}

func TestChatDeleteCascades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	chat := &model.Chat{UserID: uuid.New()}
	require.NoError(t, f.chats.Create(ctx, chat))
	f.seedDocument(t, chat.ID, "a.pdf", []float32{1, 0})
	require.NoError(t, f.msgs.Create(ctx, &model.Message{
		ChatID:  chat.ID,
		Role:    model.RoleLLM,
		Content: "answer",
		Sources: []model.Source{{FileName: "a.pdf", Content: "a.pdf chunk"}},
	}))

	msgs, err := f.msgs.ListByChatID(ctx, chat.ID, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.Len(t, msgs[0].Sources, 1)
	assert.Equal(t, "a.pdf", msgs[0].Sources[0].FileName)

	require.NoError(t, f.chats.Delete(ctx, chat.ID))

	got, err := f.chats.GetByID(ctx, chat.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	docs, err := f.docs.ListByChatID(ctx, chat.ID)
	require.NoError(t, err)
	assert.Empty(t, docs)

	msgs, err = f.msgs.ListByChatID(ctx, chat.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestUserLookup(t *testing.T) {
	db := newTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	user := &model.User{Username: "ada", Email: "ada@example.com", PasswordHash: "x"}
	require.NoError(t, repo.Create(ctx, user))

	byName, err := repo.GetByUsername(ctx, "ada")
	require.NoError(t, err)
	require.NotNil(t, byName)
	assert.Equal(t, user.ID, byName.ID)

	byID, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", byID.Email)

	missing, err := repo.GetByEmail(ctx, "nobody@example.com")
	require.NoError(t, err)
	assert.Nil(t, missing)
}
