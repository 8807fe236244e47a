package models

import (
	"time"

	"github.com/google/uuid"
)

// DocumentSequenceModel holds the counter and last hash of one numbering series
type DocumentSequenceModel struct {
	TenantID     uuid.UUID `gorm:"type:uuid;primaryKey"`
	DocumentType string    `gorm:"type:varchar(2);primaryKey"`
	FiscalYear   int       `gorm:"primaryKey"`
	LastValue    int64     `gorm:"not null;default:0"`
	LastHash     string    `gorm:"type:varchar(64);not null;default:''"`
	UpdatedAt    time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (DocumentSequenceModel) TableName() string {
	return "document_sequences"
}
