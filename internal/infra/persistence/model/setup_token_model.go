package model

import (
	"time"

	"github.com/google/uuid"
)

// SetupTokenModel mirrors the 'setup_tokens' table, keyed by the SHA-256 hash of the raw token.
type SetupTokenModel struct {
	TokenHash  string         `gorm:"type:varchar(64);primaryKey"`
	MerchantID uuid.UUID      `gorm:"type:uuid;not null;index"`
	Merchant   *MerchantModel `gorm:"foreignKey:MerchantID;references:ID;constraint:OnDelete:RESTRICT"`
	IssuedAt   time.Time      `gorm:"not null"`
	ExpiresAt  time.Time      `gorm:"not null;index"`
	ConsumedAt *time.Time     `gorm:"index"`
}

// TableName explicitly sets the table name for GORM.
func (SetupTokenModel) TableName() string {
	return "setup_tokens"
}
