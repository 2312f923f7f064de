package app

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/textsplitter"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"gopherai-docqa/internal/chunker"
	"gopherai-docqa/internal/embedding"
	"gopherai-docqa/internal/model"
	"gopherai-docqa/internal/pkg/tokens"
	"gopherai-docqa/internal/repository"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{Logger: gormlogger.Discard})
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

type repos struct {
	db     *gorm.DB
	users  *repository.UserRepository
	chats  *repository.ChatRepository
	docs   *repository.DocumentRepository
	chunks *repository.ChunkRepository
	embeds *repository.EmbeddingRepository
	msgs   *repository.MessageRepository
}

func newRepos(t *testing.T) repos {
	db := newTestDB(t)
	return repos{
		db:     db,
		users:  repository.NewUserRepository(db),
		chats:  repository.NewChatRepository(db),
		docs:   repository.NewDocumentRepository(db),
		chunks: repository.NewChunkRepository(db),
		embeds: repository.NewEmbeddingRepository(db),
		msgs:   repository.NewMessageRepository(db),
	}
}

func docx(t *testing.T, paragraphs ...string) []byte {
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

var errProviderRejected = errors.New("provider rejected input")

// poisonProvider embeds text as a small vector and rejects any batch that
// contains "poison" while poisoned is set.
type poisonProvider struct {
	mu       sync.Mutex
	poisoned bool
	calls    int
}

func (p *poisonProvider) setPoisoned(v bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.poisoned = v
}

func (p *poisonProvider) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	p.mu.Lock()
	p.calls++
	poisoned := p.poisoned
	p.mu.Unlock()

	out := make([][]float32, len(texts))
	for i, t := range texts {
		if poisoned && strings.Contains(t, "poison") {
			return nil, errProviderRejected
		}
		out[i] = []float32{float32(len(t)), 1, 0}
	}
	return out, nil
}

// newTestChunker counts words instead of tokens and sub-splits any node
// longer than three words into five-word chunks.
func newTestChunker() *chunker.Chunker {
	words := tokens.Words{}
	sub := textsplitter.NewRecursiveCharacter(
		textsplitter.WithSeparators([]string{" "}),
		textsplitter.WithChunkSize(5),
		textsplitter.WithChunkOverlap(0),
		textsplitter.WithLenFunc(words.Count),
	)
	return chunker.New(words, chunker.WithSubSplitter(sub), chunker.WithMaxNodeWords(3))
}

func newTestIngest(r repos, provider embedding.Provider, policy IngestPolicy) *IngestService {
	batcher := embedding.NewBatcher(provider, tokens.Words{},
		embedding.WithTokenLimit(5),
		embedding.WithPolicy(embedding.NewPolicy(0)),
	)
	return NewIngestService(r.chats, r.docs, r.chunks, r.embeds, newTestChunker(), batcher, IngestOptions{
		Policy: policy,
	})
}

