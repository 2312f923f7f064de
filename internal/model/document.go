package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type DocumentStatus string

const (
	DocumentPending DocumentStatus = "pending"
	DocumentCharged DocumentStatus = "charged"
	DocumentChunked DocumentStatus = "chunked"
	DocumentReady   DocumentStatus = "ready"
	DocumentFailed  DocumentStatus = "failed"
)

// Metadata keys shared by documents and their chunks.
const (
	MetaFileName    = "file_name"
	MetaFileExt     = "file_ext"
	MetaNumPages    = "num_pages"
	MetaPageMap     = "page_map"
	MetaPageStart   = "page_start"
	MetaPageEnd     = "page_end"
	MetaElementType = "element_type"
)

// Document is an uploaded file and its extracted text. Status is only
// written through the lifecycle state machine.
type Document struct {
	ID        uuid.UUID         `gorm:"type:char(36);primaryKey" json:"id"`
	ChatID    uuid.UUID         `gorm:"type:char(36);not null;index" json:"chat_id"`
	Title     string            `gorm:"size:512" json:"title"`
	Text      string            `json:"text"`
	Status    DocumentStatus    `gorm:"size:16;not null;index" json:"status"`
	MetaData  datatypes.JSONMap `json:"meta_data"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

func (d *Document) BeforeCreate(*gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	if d.Status == "" {
		d.Status = DocumentPending
	}
	return nil
}

func (d *Document) FileName() string {
	name, _ := d.MetaData[MetaFileName].(string)
	return name
}
