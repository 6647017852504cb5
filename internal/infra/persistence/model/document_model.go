package model

import (
	"time"

	"github.com/google/uuid"
)

// DocumentModel mirrors the 'merchant_documents' table.
type DocumentModel struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey"`
	MerchantID   uuid.UUID      `gorm:"type:uuid;not null;index"`
	Merchant     *MerchantModel `gorm:"foreignKey:MerchantID;references:ID;constraint:OnDelete:RESTRICT"`
	DocumentType string         `gorm:"type:varchar(100);not null"`
	FileURL      string         `gorm:"type:text"`
	Status       string         `gorm:"type:varchar(20);not null"`
	UploadedAt   time.Time      `gorm:"not null"`
	ReviewedBy   string         `gorm:"type:varchar(255)"`
	ReviewedAt   *time.Time
}

// TableName explicitly sets the table name for GORM.
func (DocumentModel) TableName() string {
	return "merchant_documents"
}

// All lists every model for schema migration.
func All() []any {
	return []any{&MerchantModel{}, &SetupTokenModel{}, &DocumentModel{}}
}
