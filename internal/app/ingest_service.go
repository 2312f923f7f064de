package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"gopherai-docqa/internal/chunker"
	"gopherai-docqa/internal/embedding"
	"gopherai-docqa/internal/lifecycle"
	"gopherai-docqa/internal/logger"
	"gopherai-docqa/internal/model"
	"gopherai-docqa/internal/pkg/textextract"
	"gopherai-docqa/internal/repository"
)

const (
	defaultMaxDocuments = 3
	defaultMaxPages     = 150
)

// IngestPolicy decides what happens to the remaining documents of an upload
// once one of them failed.
type IngestPolicy int

const (
	ContinueOnError IngestPolicy = iota
	AbortOnError
)

type UploadedFile struct {
	Name string
	Data []byte
}

type IngestInput struct {
	UserID uuid.UUID
	ChatID uuid.UUID
	Files  []UploadedFile
}

// DocumentResult is the outcome for one document: either it went through
// (Err nil) or it stopped at the stage recorded in Err.
type DocumentResult struct {
	Document     *model.Document `json:"document"`
	Reused       bool            `json:"reused"`
	Chunks       int             `json:"chunks"`
	Embedded     int             `json:"embedded"`
	FailedChunks int             `json:"failed_chunks"`
	Error        string          `json:"error,omitempty"`

	Err error `json:"-"`
}

func (r DocumentResult) OK() bool {
	return r.Err == nil
}

type IngestReport struct {
	ChatID    uuid.UUID        `json:"chat_id"`
	Documents []DocumentResult `json:"documents"`
}

// Err joins the per-document failures, nil when every document succeeded.
func (r *IngestReport) Err() error {
	var errs []error
	for _, d := range r.Documents {
		if d.Err != nil {
			errs = append(errs, d.Err)
		}
	}
	return errors.Join(errs...)
}

type IngestOptions struct {
	MaxDocuments int
	MaxPages     int
	Policy       IngestPolicy
	Logger       *slog.Logger
}

type IngestService struct {
	chatRepo      *repository.ChatRepository
	docRepo       *repository.DocumentRepository
	chunkRepo     *repository.ChunkRepository
	embeddingRepo *repository.EmbeddingRepository
	chunker       *chunker.Chunker
	batcher       *embedding.Batcher
	maxDocuments  int
	maxPages      int
	policy        IngestPolicy
	log           *slog.Logger
}

func NewIngestService(
	chatRepo *repository.ChatRepository,
	docRepo *repository.DocumentRepository,
	chunkRepo *repository.ChunkRepository,
	embeddingRepo *repository.EmbeddingRepository,
	chk *chunker.Chunker,
	batcher *embedding.Batcher,
	opts IngestOptions,
) *IngestService {
	if opts.MaxDocuments <= 0 {
		opts.MaxDocuments = defaultMaxDocuments
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = defaultMaxPages
	}
	if opts.Logger == nil {
		opts.Logger = logger.Discard()
	}
	return &IngestService{
		chatRepo:      chatRepo,
		docRepo:       docRepo,
		chunkRepo:     chunkRepo,
		embeddingRepo: embeddingRepo,
		chunker:       chk,
		batcher:       batcher,
		maxDocuments:  opts.MaxDocuments,
		maxPages:      opts.MaxPages,
		policy:        opts.Policy,
		log:           opts.Logger.With("component", "ingest"),
	}
}

type extracted struct {
	name   string
	result *textextract.Result
}

// Ingest stores the uploaded files in the chat, creating the chat if it
// does not exist yet. Files already present and ready are reused; every
// other document of the chat is replaced by the upload. Extraction errors
// reject the whole upload before anything is written.
func (s *IngestService) Ingest(ctx context.Context, input IngestInput) (*IngestReport, error) {
	if input.UserID == uuid.Nil {
		return nil, ErrInvalidInput
	}
	if len(input.Files) == 0 {
		return nil, ErrNoDocuments
	}
	if len(input.Files) > s.maxDocuments {
		return nil, fmt.Errorf("%w: %d uploaded, at most %d allowed", ErrTooManyDocuments, len(input.Files), s.maxDocuments)
	}

	chatID := input.ChatID
	if chatID == uuid.Nil {
		chatID = uuid.New()
	}
	chat, err := s.chatRepo.GetByID(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if chat != nil && chat.UserID != input.UserID {
		return nil, ErrChatNotFound
	}
	report := &IngestReport{ChatID: chatID}

	var (
		keep     []uuid.UUID
		newFiles []UploadedFile
		seen     = make(map[string]struct{}, len(input.Files))
	)
	for _, f := range input.Files {
		name := filepath.Base(strings.TrimSpace(f.Name))
		if name == "" || name == "." || name == string(filepath.Separator) {
			return nil, fmt.Errorf("%w: empty file name", ErrInvalidInput)
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}

		existing, err := s.docRepo.FindByChatAndFileName(ctx, chatID, name)
		if err != nil {
			return nil, err
		}
		if existing != nil && existing.Status == model.DocumentReady {
			keep = append(keep, existing.ID)
			report.Documents = append(report.Documents, DocumentResult{Document: existing, Reused: true})
			continue
		}
		newFiles = append(newFiles, UploadedFile{Name: name, Data: f.Data})
	}

	docs := make([]extracted, 0, len(newFiles))
	for _, f := range newFiles {
		res, err := textextract.Extract(f.Name, f.Data, s.maxPages)
		if err != nil {
			return nil, &DocumentError{FileName: f.Name, Stage: StageExtract, Err: err}
		}
		docs = append(docs, extracted{name: f.Name, result: res})
	}

	if chat == nil {
		chat = &model.Chat{ID: chatID, UserID: input.UserID}
		if err := s.chatRepo.Create(ctx, chat); err != nil {
			return nil, err
		}
	}
	if err := s.docRepo.DeleteByChatExcept(ctx, chatID, keep); err != nil {
		return nil, err
	}

	for _, d := range docs {
		result := s.ingestOne(ctx, chatID, d)
		report.Documents = append(report.Documents, result)
		if result.Err != nil && s.policy == AbortOnError {
			return report, result.Err
		}
	}
	return report, nil
}

// ingestOne runs create -> chunk -> chunked -> embed -> ready for a single
// document. Any failure after the document exists drives it to failed.
func (s *IngestService) ingestOne(ctx context.Context, chatID uuid.UUID, d extracted) DocumentResult {
	doc := &model.Document{
		ChatID: chatID,
		Title:  d.name,
		Text:   d.result.Text,
		MetaData: map[string]any{
			model.MetaFileName: d.name,
			model.MetaFileExt:  d.result.Ext,
			model.MetaNumPages: d.result.NumPages,
			model.MetaPageMap:  d.result.PageMap,
		},
	}
	if err := s.docRepo.Create(ctx, doc); err != nil {
		return DocumentResult{
			Error: err.Error(),
			Err:   &DocumentError{FileName: d.name, Stage: StageStore, Err: err},
		}
	}
	log := s.log.With("document_id", doc.ID, "file_name", d.name)
	machine := lifecycle.Track(doc.ID, s.docRepo)
	result := DocumentResult{Document: doc}

	fail := func(stage Stage, err error) DocumentResult {
		if ferr := machine.Fail(ctx); ferr != nil {
			log.Error("mark document failed", "error", ferr)
			err = errors.Join(err, ferr)
		}
		log.Warn("document ingestion failed", "stage", stage, "error", err)
		doc.Status = model.DocumentStatus(machine.Current)
		result.Err = &DocumentError{DocumentID: doc.ID, FileName: d.name, Stage: stage, Err: err}
		result.Error = result.Err.Error()
		return result
	}

	records, err := s.chunker.Chunk(chunker.Input{
		DocumentID: doc.ID,
		Text:       doc.Text,
		Metadata:   doc.MetaData,
		PageMap:    d.result.PageMap,
		NumPages:   d.result.NumPages,
	})
	if err != nil {
		return fail(StageChunk, err)
	}

	chunks := make([]model.Chunk, len(records))
	for i, r := range records {
		chunks[i] = model.Chunk{
			DocumentID: r.DocumentID,
			ChunkIndex: r.Index,
			Content:    r.Content,
			MetaData:   r.Metadata,
		}
	}
	if err := s.chunkRepo.CreateBatch(ctx, chunks); err != nil {
		return fail(StageChunk, fmt.Errorf("%w: %w", ErrChunkPersistFailed, err))
	}
	result.Chunks = len(chunks)

	if err := machine.Involve(ctx); err != nil {
		return fail(StageStatus, err)
	}

	report, err := s.embedChunks(ctx, chunks)
	result.Embedded = report.Embedded
	result.FailedChunks = len(report.FailedChunks)
	if err != nil {
		return fail(StageEmbed, err)
	}

	if err := machine.Involve(ctx); err != nil {
		return fail(StageStatus, err)
	}
	doc.Status = model.DocumentStatus(machine.Current)

	log.Info("document ingested",
		"chunks", result.Chunks,
		"embedded", result.Embedded,
		"failed_chunks", result.FailedChunks,
	)
	return result
}

// embedChunks embeds and stores vectors for chunks. Chunks of dropped
// batches are marked failed so a retry can pick them up.
func (s *IngestService) embedChunks(ctx context.Context, chunks []model.Chunk) (embedding.Report, error) {
	items := make([]embedding.Item, len(chunks))
	for i, c := range chunks {
		items[i] = embedding.Item{ChunkID: c.ID, Text: c.Content}
	}

	results, report, err := s.batcher.Embed(ctx, items)
	if err != nil {
		if len(report.FailedChunks) > 0 {
			if uerr := s.chunkRepo.UpdateState(ctx, report.FailedChunks, model.ChunkFailed); uerr != nil {
				s.log.Error("mark chunks failed", "error", uerr)
			}
		}
		return report, fmt.Errorf("%w: %w", ErrEmbeddingFailed, err)
	}

	embeddings := make([]model.Embedding, len(results))
	for i, r := range results {
		embeddings[i] = model.Embedding{DocumentChunkID: r.ChunkID, Vector: model.NewVector(r.Vector)}
	}
	if err := s.embeddingRepo.CreateBatch(ctx, embeddings); err != nil {
		return report, fmt.Errorf("%w: %w", ErrEmbeddingFailed, err)
	}
	if len(report.FailedChunks) > 0 {
		if err := s.chunkRepo.UpdateState(ctx, report.FailedChunks, model.ChunkFailed); err != nil {
			return report, fmt.Errorf("%w: %w", ErrEmbeddingFailed, err)
		}
	}
	return report, nil
}

// RetryDocument re-embeds the chunks of a document that have no vector yet.
// Only documents that reached the chunked stage can be retried.
func (s *IngestService) RetryDocument(ctx context.Context, userID, documentID uuid.UUID) (*DocumentResult, error) {
	if userID == uuid.Nil || documentID == uuid.Nil {
		return nil, ErrInvalidInput
	}
	doc, err := s.docRepo.GetByID(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, ErrDocumentNotFound
	}
	if _, err := ownedChat(ctx, s.chatRepo, userID, doc.ChatID); err != nil {
		return nil, err
	}

	machine, err := lifecycle.Resume(doc, s.docRepo)
	if err != nil {
		return nil, err
	}
	if err := machine.CanRetry(); err != nil {
		return nil, err
	}

	pending, err := s.chunkRepo.ListPending(ctx, doc.ID)
	if err != nil {
		return nil, err
	}
	result := &DocumentResult{Document: doc, Chunks: len(pending)}
	if len(pending) > 0 {
		report, err := s.embedChunks(ctx, pending)
		result.Embedded = report.Embedded
		result.FailedChunks = len(report.FailedChunks)
		if err != nil {
			result.Err = &DocumentError{DocumentID: doc.ID, FileName: doc.FileName(), Stage: StageEmbed, Err: err}
			result.Error = result.Err.Error()
			return result, result.Err
		}
	}

	if machine.Current == lifecycle.Chunked {
		if err := machine.Involve(ctx); err != nil {
			return result, err
		}
		doc.Status = model.DocumentStatus(machine.Current)
	}
	s.log.Info("document retried",
		"document_id", doc.ID,
		"embedded", result.Embedded,
		"failed_chunks", result.FailedChunks,
	)
	return result, nil
}

func (s *IngestService) ListDocuments(ctx context.Context, userID, chatID uuid.UUID) ([]model.Document, error) {
	if _, err := ownedChat(ctx, s.chatRepo, userID, chatID); err != nil {
		return nil, err
	}
	return s.docRepo.ListByChatID(ctx, chatID)
}

func (s *IngestService) DeleteDocuments(ctx context.Context, userID, chatID uuid.UUID) error {
	if _, err := ownedChat(ctx, s.chatRepo, userID, chatID); err != nil {
		return err
	}
	return s.docRepo.DeleteByChatID(ctx, chatID)
}
