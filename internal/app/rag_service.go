package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"gopherai-docqa/internal/logger"
	"gopherai-docqa/internal/model"
	"gopherai-docqa/internal/repository"
)

const (
	defaultRetrievalLimit    = 100
	defaultGenerationTimeout = 120 * time.Second
)

type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// TextGenerator is used for titles, the general knowledge lookup and the
// final answer.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type VectorSearcher interface {
	Nearest(ctx context.Context, query []float32, chatID uuid.UUID, limit int) ([]repository.Neighbor, error)
}

type ChunkResolver interface {
	ListByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Chunk, error)
}

type RAGService struct {
	embedder          QueryEmbedder
	searcher          VectorSearcher
	chunks            ChunkResolver
	generator         TextGenerator
	limit             int
	generationTimeout time.Duration
	log               *slog.Logger
}

type RAGOptions struct {
	RetrievalLimit    int
	GenerationTimeout time.Duration
	Logger            *slog.Logger
}

type Answer struct {
	Text    string         `json:"answer"`
	Sources []model.Source `json:"sources"`
}

func NewRAGService(
	embedder QueryEmbedder,
	searcher VectorSearcher,
	chunks ChunkResolver,
	generator TextGenerator,
	opts RAGOptions,
) *RAGService {
	if opts.RetrievalLimit <= 0 {
		opts.RetrievalLimit = defaultRetrievalLimit
	}
	if opts.GenerationTimeout <= 0 {
		opts.GenerationTimeout = defaultGenerationTimeout
	}
	if opts.Logger == nil {
		opts.Logger = logger.Discard()
	}
	return &RAGService{
		embedder:          embedder,
		searcher:          searcher,
		chunks:            chunks,
		generator:         generator,
		limit:             opts.RetrievalLimit,
		generationTimeout: opts.GenerationTimeout,
		log:               opts.Logger.With("component", "rag"),
	}
}

// Answer runs retrieval and the general knowledge lookup side by side, then
// issues one generation request that merges both. It does not check the
// chat's usability; callers do.
func (s *RAGService) Answer(ctx context.Context, question string, chatID uuid.UUID) (*Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" || chatID == uuid.Nil {
		return nil, ErrInvalidInput
	}

	var (
		items            []evidence
		sources          []model.Source
		generalKnowledge string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		items, sources, err = s.retrieve(gctx, question, chatID)
		return err
	})
	g.Go(func() error {
		generalKnowledge = s.lookupGeneralKnowledge(gctx, question)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	prompt, err := answerPrompt(question, items, generalKnowledge)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGenerationFailed, err)
	}

	genCtx, cancel := context.WithTimeout(ctx, s.generationTimeout)
	defer cancel()
	text, err := s.generator.Generate(genCtx, prompt)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGenerationFailed, err)
	}
	if text == "" {
		return nil, fmt.Errorf("%w: empty answer", ErrGenerationFailed)
	}

	s.log.Debug("answered question",
		"chat_id", chatID,
		"evidence", len(items),
		"sources", len(sources),
	)
	return &Answer{Text: text, Sources: sources}, nil
}

func (s *RAGService) retrieve(ctx context.Context, question string, chatID uuid.UUID) ([]evidence, []model.Source, error) {
	vector, err := s.embedder.EmbedQuery(ctx, question)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: embed question: %w", ErrRetrievalFailed, err)
	}

	neighbors, err := s.searcher.Nearest(ctx, vector, chatID, s.limit)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: nearest chunks: %w", ErrRetrievalFailed, err)
	}
	if len(neighbors) == 0 {
		return nil, nil, nil
	}

	ids := make([]uuid.UUID, len(neighbors))
	for i, n := range neighbors {
		ids[i] = n.ChunkID
	}
	chunks, err := s.chunks.ListByIDs(ctx, ids)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: resolve chunks: %w", ErrRetrievalFailed, err)
	}

	items := make([]evidence, 0, len(chunks))
	sources := make([]model.Source, 0, len(chunks))
	seen := make(map[model.Source]struct{}, len(chunks))
	for _, c := range chunks {
		items = append(items, evidence{Content: c.Content, MetaData: c.MetaData})

		fileName, _ := c.MetaData[model.MetaFileName].(string)
		if fileName == "" {
			continue
		}
		src := model.Source{FileName: fileName, Content: c.Content}
		if _, dup := seen[src]; dup {
			continue
		}
		seen[src] = struct{}{}
		sources = append(sources, src)
	}
	return items, sources, nil
}

// lookupGeneralKnowledge never fails; a provider error degrades to a fixed
// notice inside the prompt.
func (s *RAGService) lookupGeneralKnowledge(ctx context.Context, question string) string {
	gkCtx, cancel := context.WithTimeout(ctx, s.generationTimeout)
	defer cancel()

	text, err := s.generator.Generate(gkCtx, generalKnowledgePrompt(question))
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			s.log.Warn("general knowledge lookup failed", "error", err)
		}
		return generalKnowledgeUnavailable
	}
	if text == "" {
		return generalKnowledgeUnavailable
	}
	return text
}
