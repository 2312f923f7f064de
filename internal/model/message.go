package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	RoleUser = "user"
	RoleLLM  = "llm"
)

// Source is one piece of retrieved evidence cited by an answer.
type Source struct {
	FileName string `json:"file_name"`
	Content  string `json:"content"`
}

type Message struct {
	ID        uuid.UUID                   `gorm:"type:char(36);primaryKey" json:"id"`
	ChatID    uuid.UUID                   `gorm:"type:char(36);not null;index" json:"chat_id"`
	Role      string                      `gorm:"size:16;not null;index" json:"role"`
	Content   string                      `gorm:"type:text;not null" json:"content"`
	Sources   datatypes.JSONSlice[Source] `json:"sources,omitempty"`
	CreatedAt time.Time                   `json:"created_at"`
}

func (m *Message) BeforeCreate(*gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
