package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// Vector stores as pgvector's vector(n) on Postgres and as its text form
// on other dialects. n comes from the field's size tag.
type Vector struct {
	pgvector.Vector
}

func NewVector(values []float32) Vector {
	return Vector{Vector: pgvector.NewVector(values)}
}

func (Vector) GormDBDataType(db *gorm.DB, field *schema.Field) string {
	if db.Dialector.Name() == "postgres" {
		return fmt.Sprintf("vector(%d)", field.Size)
	}
	return "text"
}

// Embedding is created once per chunk and never updated.
type Embedding struct {
	ID              uuid.UUID `gorm:"type:char(36);primaryKey" json:"id"`
	DocumentChunkID uuid.UUID `gorm:"type:char(36);not null;uniqueIndex" json:"document_chunk_id"`
	Vector          Vector    `gorm:"size:1536;not null" json:"-"`
	CreatedAt       time.Time `json:"created_at"`
}

func (e *Embedding) BeforeCreate(*gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
