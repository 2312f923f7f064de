package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"gopherai-docqa/internal/model"
)

// ErrChatFrozen is returned when a message is counted against a chat that is
// no longer usable.
var ErrChatFrozen = errors.New("chat is frozen")

type ChatRepository struct {
	db *gorm.DB
}

func NewChatRepository(db *gorm.DB) *ChatRepository {
	return &ChatRepository{db: db}
}

func (r *ChatRepository) Create(ctx context.Context, chat *model.Chat) error {
	if err := r.db.WithContext(ctx).Create(chat).Error; err != nil {
		return fmt.Errorf("create chat failed: %w", err)
	}
	return nil
}

func (r *ChatRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Chat, error) {
	var chat model.Chat
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&chat).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get chat failed: %w", err)
	}
	return &chat, nil
}

func (r *ChatRepository) GetByIDAndUserID(ctx context.Context, id, userID uuid.UUID) (*model.Chat, error) {
	var chat model.Chat
	if err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&chat).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get chat failed: %w", err)
	}
	return &chat, nil
}

// ListByUserID pages through a user's chats, most recently updated first.
// A non-nil before returns only chats updated strictly earlier.
func (r *ChatRepository) ListByUserID(ctx context.Context, userID uuid.UUID, before *time.Time, limit int) ([]model.Chat, error) {
	q := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if before != nil {
		q = q.Where("updated_at < ?", *before)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}

	var chats []model.Chat
	if err := q.Order("updated_at DESC").Find(&chats).Error; err != nil {
		return nil, fmt.Errorf("list chats failed: %w", err)
	}
	return chats, nil
}

func (r *ChatRepository) UpdateTitle(ctx context.Context, id uuid.UUID, title string) error {
	if err := r.db.WithContext(ctx).Model(&model.Chat{}).Where("id = ?", id).Update("title", title).Error; err != nil {
		return fmt.Errorf("update chat title failed: %w", err)
	}
	return nil
}

// IncrementMessages bumps the message counter and freezes the chat once the
// counter reaches limit. It returns the updated chat, or ErrChatFrozen when
// the chat was already unusable.
func (r *ChatRepository) IncrementMessages(ctx context.Context, id uuid.UUID, limit int) (*model.Chat, error) {
	var chat model.Chat
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&model.Chat{}).
			Where("id = ? AND status = ?", id, model.ChatUsable).
			Update("num_messages", gorm.Expr("num_messages + ?", 1))
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&model.Chat{}).Where("id = ?", id).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return gorm.ErrRecordNotFound
			}
			return ErrChatFrozen
		}
		if err := tx.Model(&model.Chat{}).
			Where("id = ? AND num_messages >= ?", id, limit).
			Update("status", model.ChatUnusable).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).First(&chat).Error
	})
	if err != nil {
		return nil, fmt.Errorf("increment chat messages failed: %w", err)
	}
	return &chat, nil
}

// Delete removes the chat with its messages and documents.
func (r *ChatRepository) Delete(ctx context.Context, id uuid.UUID) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var docIDs []uuid.UUID
		if err := tx.Model(&model.Document{}).Where("chat_id = ?", id).Pluck("id", &docIDs).Error; err != nil {
			return err
		}
		if err := deleteDocuments(tx, docIDs); err != nil {
			return err
		}
		if err := tx.Where("chat_id = ?", id).Delete(&model.Message{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&model.Chat{}).Error
	})
	if err != nil {
		return fmt.Errorf("delete chat failed: %w", err)
	}
	return nil
}
