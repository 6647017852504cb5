// Package model holds the GORM table mappings of the persistence layer.
package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// DayHoursColumn is the JSON shape of one weekday inside business_hours.
type DayHoursColumn struct {
	OpenTime  string `json:"openTime"`
	CloseTime string `json:"closeTime"`
	Closed    bool   `json:"closed"`
}

// MerchantModel mirrors the 'merchants' table. Email is stored lower-cased under a unique index.
type MerchantModel struct {
	ID                 uuid.UUID                                     `gorm:"type:uuid;primaryKey"`
	Email              string                                        `gorm:"type:varchar(255);not null;uniqueIndex:idx_merchants_email"`
	BusinessName       string                                        `gorm:"type:varchar(255);not null"`
	Phone              string                                        `gorm:"type:varchar(50);not null"`
	BusinessType       string                                        `gorm:"type:varchar(50);not null"`
	Address            string                                        `gorm:"type:text;not null"`
	Description        string                                        `gorm:"type:text"`
	Website            string                                        `gorm:"type:varchar(500)"`
	BusinessHours      datatypes.JSONType[map[string]DayHoursColumn] `gorm:"not null"`
	VerificationStatus string                                        `gorm:"type:varchar(20);not null;index"`
	DocumentStatus     string                                        `gorm:"type:varchar(20);not null"`
	SetupCompleted     bool                                          `gorm:"not null"`
	PasswordHash       string                                        `gorm:"type:varchar(255)"`
	Version            int64                                         `gorm:"not null"`
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// TableName explicitly sets the table name for GORM.
func (MerchantModel) TableName() string {
	return "merchants"
}
