package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"gopherai-docqa/internal/model"
)

type DocumentRepository struct {
	db *gorm.DB
}

func NewDocumentRepository(db *gorm.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func (r *DocumentRepository) Create(ctx context.Context, doc *model.Document) error {
	if err := r.db.WithContext(ctx).Create(doc).Error; err != nil {
		return fmt.Errorf("create document failed: %w", err)
	}
	return nil
}

func (r *DocumentRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Document, error) {
	var doc model.Document
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&doc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get document failed: %w", err)
	}
	return &doc, nil
}

func (r *DocumentRepository) ListByChatID(ctx context.Context, chatID uuid.UUID) ([]model.Document, error) {
	var docs []model.Document
	if err := r.db.WithContext(ctx).Where("chat_id = ?", chatID).Order("created_at ASC").Find(&docs).Error; err != nil {
		return nil, fmt.Errorf("list documents failed: %w", err)
	}
	return docs, nil
}

// FindByChatAndFileName looks a document up by the uploaded file name,
// which is stored as its title.
func (r *DocumentRepository) FindByChatAndFileName(ctx context.Context, chatID uuid.UUID, fileName string) (*model.Document, error) {
	var doc model.Document
	if err := r.db.WithContext(ctx).Where("chat_id = ? AND title = ?", chatID, fileName).First(&doc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("find document by file name failed: %w", err)
	}
	return &doc, nil
}

func (r *DocumentRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.DocumentStatus) error {
	result := r.db.WithContext(ctx).Model(&model.Document{}).Where("id = ?", id).Update("status", status)
	if result.Error != nil {
		return fmt.Errorf("update document status failed: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("update document status failed: %w", gorm.ErrRecordNotFound)
	}
	return nil
}

// Delete removes the document with its chunks and their embeddings.
func (r *DocumentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return deleteDocuments(tx, []uuid.UUID{id})
	})
	if err != nil {
		return fmt.Errorf("delete document failed: %w", err)
	}
	return nil
}

func (r *DocumentRepository) DeleteByChatID(ctx context.Context, chatID uuid.UUID) error {
	return r.DeleteByChatExcept(ctx, chatID, nil)
}

// DeleteByChatExcept removes every document of the chat whose id is not in keep.
func (r *DocumentRepository) DeleteByChatExcept(ctx context.Context, chatID uuid.UUID, keep []uuid.UUID) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Model(&model.Document{}).Where("chat_id = ?", chatID)
		if len(keep) > 0 {
			q = q.Where("id NOT IN ?", keep)
		}
		var ids []uuid.UUID
		if err := q.Pluck("id", &ids).Error; err != nil {
			return err
		}
		return deleteDocuments(tx, ids)
	})
	if err != nil {
		return fmt.Errorf("delete chat documents failed: %w", err)
	}
	return nil
}

// deleteDocuments cascades document -> chunks -> embeddings inside tx.
func deleteDocuments(tx *gorm.DB, docIDs []uuid.UUID) error {
	if len(docIDs) == 0 {
		return nil
	}
	var chunkIDs []uuid.UUID
	if err := tx.Model(&model.Chunk{}).Where("document_id IN ?", docIDs).Pluck("id", &chunkIDs).Error; err != nil {
		return err
	}
	if len(chunkIDs) > 0 {
		if err := tx.Where("document_chunk_id IN ?", chunkIDs).Delete(&model.Embedding{}).Error; err != nil {
			return err
		}
		if err := tx.Where("id IN ?", chunkIDs).Delete(&model.Chunk{}).Error; err != nil {
			return err
		}
	}
	return tx.Where("id IN ?", docIDs).Delete(&model.Document{}).Error
}
