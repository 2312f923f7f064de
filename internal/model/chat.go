package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ChatStatus string

const (
	ChatUsable   ChatStatus = "Usable"
	ChatUnusable ChatStatus = "Unusable"
)

const DefaultChatTitle = "New chat"

// Chat owns its documents and messages. Once NumMessages reaches the
// configured limit the chat is frozen as Unusable.
type Chat struct {
	ID          uuid.UUID  `gorm:"type:char(36);primaryKey" json:"id"`
	UserID      uuid.UUID  `gorm:"type:char(36);not null;index" json:"user_id"`
	Title       string     `gorm:"size:256;not null" json:"title"`
	NumMessages int        `gorm:"not null" json:"num_messages"`
	Status      ChatStatus `gorm:"size:16;not null" json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `gorm:"index" json:"updated_at"`
}

func (c *Chat) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.Title == "" {
		c.Title = DefaultChatTitle
	}
	if c.Status == "" {
		c.Status = ChatUsable
	}
	return nil
}
