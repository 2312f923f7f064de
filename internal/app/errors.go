package app

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"gopherai-docqa/internal/chunker"
	"gopherai-docqa/internal/embedding"
	"gopherai-docqa/internal/lifecycle"
	"gopherai-docqa/internal/pkg/textextract"
)

var (
	ErrInvalidInput = errors.New("invalid input")

	ErrUnsupportedFormat  = textextract.ErrUnsupportedFormat
	ErrPageLimitExceeded  = textextract.ErrPageLimitExceeded
	ErrChunkingFailed     = chunker.ErrChunkingFailed
	ErrAllBatchesFailed   = embedding.ErrAllBatchesFailed
	ErrStatusUpdateFailed = lifecycle.ErrStatusUpdateFailed
	ErrRetryUnsupported   = lifecycle.ErrRetryUnsupported

	ErrChunkPersistFailed = errors.New("chunk persist failed")
	ErrEmbeddingFailed    = errors.New("embedding failed")
	ErrRetrievalFailed    = errors.New("retrieval failed")
	ErrGenerationFailed   = errors.New("generation failed")

	ErrTooManyDocuments = errors.New("too many documents")
	ErrNoDocuments      = errors.New("no documents uploaded")
	ErrDocumentNotFound = errors.New("document not found")
	ErrChatNotFound     = errors.New("chat not found")
	ErrChatUnusable     = errors.New("chat is not usable")
	ErrChatNotReady     = errors.New("chat documents are not ready")
	ErrMessageEmpty     = errors.New("message content is empty")
	ErrMessageEnqueue   = errors.New("message enqueue failed")
)

// Stage names the ingestion step a document failed in.
type Stage string

const (
	StageExtract Stage = "extract"
	StageStore   Stage = "store"
	StageChunk   Stage = "chunk"
	StageEmbed   Stage = "embed"
	StageStatus  Stage = "status"
)

// DocumentError ties a pipeline failure to the document it happened on.
type DocumentError struct {
	DocumentID uuid.UUID
	FileName   string
	Stage      Stage
	Err        error
}

func (e *DocumentError) Error() string {
	return fmt.Sprintf("document %s (%s) failed at %s: %v", e.FileName, e.DocumentID, e.Stage, e.Err)
}

func (e *DocumentError) Unwrap() error {
	return e.Err
}
