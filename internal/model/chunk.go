package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ChunkState string

const (
	ChunkPending ChunkState = "pending"
	ChunkFailed  ChunkState = "failed"
	ChunkSuccess ChunkState = "success"
)

type Chunk struct {
	ID         uuid.UUID         `gorm:"type:char(36);primaryKey" json:"id"`
	DocumentID uuid.UUID         `gorm:"type:char(36);not null;index" json:"document_id"`
	ChunkIndex int               `gorm:"not null" json:"chunk_index"`
	Content    string            `gorm:"type:text;not null" json:"chunk_content"`
	State      ChunkState        `gorm:"size:16;not null;index" json:"state"`
	MetaData   datatypes.JSONMap `json:"meta_data"`
	CreatedAt  time.Time         `json:"created_at"`
}

func (Chunk) TableName() string {
	return "document_chunks"
}

func (c *Chunk) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.State == "" {
		c.State = ChunkPending
	}
	return nil
}

// MetaInt reads an integer metadata value regardless of how the JSON
// column decoded it.
func MetaInt(meta map[string]any, key string) (int, bool) {
	switch v := meta[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, false
		}
		return int(n), true
	default:
		return 0, false
	}
}
