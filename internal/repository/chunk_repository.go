package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"gopherai-docqa/internal/model"
)

const chunkInsertBatch = 200

type ChunkRepository struct {
	db *gorm.DB
}

func NewChunkRepository(db *gorm.DB) *ChunkRepository {
	return &ChunkRepository{db: db}
}

// CreateBatch stores all chunks of a document or none of them. Generated
// ids are written back into the slice.
func (r *ChunkRepository) CreateBatch(ctx context.Context, chunks []model.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(&chunks, chunkInsertBatch).Error
	})
	if err != nil {
		return fmt.Errorf("create chunks batch failed: %w", err)
	}
	return nil
}

func (r *ChunkRepository) ListByDocumentID(ctx context.Context, documentID uuid.UUID) ([]model.Chunk, error) {
	var chunks []model.Chunk
	if err := r.db.WithContext(ctx).Where("document_id = ?", documentID).Order("chunk_index ASC").Find(&chunks).Error; err != nil {
		return nil, fmt.Errorf("list chunks by document failed: %w", err)
	}
	return chunks, nil
}

// ListPending returns the chunks of a document that have no embedding yet.
func (r *ChunkRepository) ListPending(ctx context.Context, documentID uuid.UUID) ([]model.Chunk, error) {
	var chunks []model.Chunk
	if err := r.db.WithContext(ctx).
		Where("document_id = ? AND state <> ?", documentID, model.ChunkSuccess).
		Order("chunk_index ASC").
		Find(&chunks).Error; err != nil {
		return nil, fmt.Errorf("list pending chunks failed: %w", err)
	}
	return chunks, nil
}

// ListByIDs returns chunks in the order of ids. Unknown ids are skipped.
func (r *ChunkRepository) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Chunk, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var found []model.Chunk
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&found).Error; err != nil {
		return nil, fmt.Errorf("list chunks by ids failed: %w", err)
	}

	byID := make(map[uuid.UUID]model.Chunk, len(found))
	for _, c := range found {
		byID[c.ID] = c
	}
	ordered := make([]model.Chunk, 0, len(found))
	for _, id := range ids {
		if c, ok := byID[id]; ok {
			ordered = append(ordered, c)
			delete(byID, id)
		}
	}
	return ordered, nil
}

func (r *ChunkRepository) UpdateState(ctx context.Context, ids []uuid.UUID, state model.ChunkState) error {
	if len(ids) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Model(&model.Chunk{}).Where("id IN ?", ids).Update("state", state).Error; err != nil {
		return fmt.Errorf("update chunk state failed: %w", err)
	}
	return nil
}
