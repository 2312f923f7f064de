package repository

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"

	"gopherai-docqa/internal/model"
)

// Neighbor is one nearest-neighbour hit. Distance is cosine distance.
type Neighbor struct {
	ChunkID  uuid.UUID
	Distance float64
}

type EmbeddingRepository struct {
	db *gorm.DB
}

func NewEmbeddingRepository(db *gorm.DB) *EmbeddingRepository {
	return &EmbeddingRepository{db: db}
}

// CreateBatch stores embeddings and flips their chunks to success in one
// transaction.
func (r *EmbeddingRepository) CreateBatch(ctx context.Context, embeddings []model.Embedding) error {
	if len(embeddings) == 0 {
		return nil
	}
	chunkIDs := make([]uuid.UUID, len(embeddings))
	for i := range embeddings {
		chunkIDs[i] = embeddings[i].DocumentChunkID
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.CreateInBatches(&embeddings, chunkInsertBatch).Error; err != nil {
			return err
		}
		return tx.Model(&model.Chunk{}).Where("id IN ?", chunkIDs).Update("state", model.ChunkSuccess).Error
	})
	if err != nil {
		return fmt.Errorf("create embeddings batch failed: %w", err)
	}
	return nil
}

// Nearest returns up to limit chunks of the chat ordered by ascending
// cosine distance to query. Postgres ranks with pgvector; other dialects
// rank in process.
func (r *EmbeddingRepository) Nearest(ctx context.Context, query []float32, chatID uuid.UUID, limit int) ([]Neighbor, error) {
	if limit <= 0 || len(query) == 0 {
		return nil, nil
	}
	if r.db.Dialector.Name() == "postgres" {
		return r.nearestPgvector(ctx, query, chatID, limit)
	}
	return r.nearestInProcess(ctx, query, chatID, limit)
}

func (r *EmbeddingRepository) scoped(ctx context.Context, chatID uuid.UUID) *gorm.DB {
	return r.db.WithContext(ctx).
		Table("embeddings AS e").
		Joins("JOIN document_chunks AS c ON c.id = e.document_chunk_id").
		Joins("JOIN documents AS d ON d.id = c.document_id").
		Where("d.chat_id = ?", chatID)
}

func (r *EmbeddingRepository) nearestPgvector(ctx context.Context, query []float32, chatID uuid.UUID, limit int) ([]Neighbor, error) {
	var rows []struct {
		ChunkID  uuid.UUID
		Distance float64
	}
	err := r.scoped(ctx, chatID).
		Select("e.document_chunk_id AS chunk_id, e.vector <=> ? AS distance", pgvector.NewVector(query)).
		Order("distance ASC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("nearest embeddings failed: %w", err)
	}

	out := make([]Neighbor, len(rows))
	for i, row := range rows {
		out[i] = Neighbor{ChunkID: row.ChunkID, Distance: row.Distance}
	}
	return out, nil
}

func (r *EmbeddingRepository) nearestInProcess(ctx context.Context, query []float32, chatID uuid.UUID, limit int) ([]Neighbor, error) {
	var rows []struct {
		ChunkID uuid.UUID
		Vector  model.Vector
	}
	err := r.scoped(ctx, chatID).
		Select("e.document_chunk_id AS chunk_id, e.vector AS vector").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("load chat embeddings failed: %w", err)
	}

	out := make([]Neighbor, 0, len(rows))
	for _, row := range rows {
		out = append(out, Neighbor{
			ChunkID:  row.ChunkID,
			Distance: 1 - cosineSimilarity(query, row.Vector.Slice()),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Distance < out[j].Distance })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA <= 0 || normB <= 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
