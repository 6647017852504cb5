// Package entity contains the core business objects of the project,
// each representing a unique, identifiable concept within the domain.
package entity

import (
	"time"

	"github.com/google/uuid"
)

// VerificationStatus is the trust state of a merchant.
type VerificationStatus string

const (
	VerificationUnverified VerificationStatus = "unverified"
	VerificationPending    VerificationStatus = "pending"
	VerificationVerified   VerificationStatus = "verified"
	VerificationRejected   VerificationStatus = "rejected"
)

// String returns the string representation of the VerificationStatus.
func (s VerificationStatus) String() string {
	return string(s)
}

// IsValid checks if the VerificationStatus is a valid value.
func (s VerificationStatus) IsValid() bool {
	switch s {
	case VerificationUnverified, VerificationPending, VerificationVerified, VerificationRejected:
		return true
	default:
		return false
	}
}

// DocumentStatus is the aggregate review state of a merchant's documents.
type DocumentStatus string

const (
	DocumentStatusNone          DocumentStatus = "none"
	DocumentStatusPendingReview DocumentStatus = "pending_review"
	DocumentStatusComplete      DocumentStatus = "complete"
	DocumentStatusRejected      DocumentStatus = "rejected"
)

// String returns the string representation of the DocumentStatus.
func (s DocumentStatus) String() string {
	return string(s)
}

// BusinessType is the enumerated category a merchant trades under.
type BusinessType string

const (
	BusinessTypeRetail        BusinessType = "retail"
	BusinessTypeFoodBeverage  BusinessType = "food_beverage"
	BusinessTypeServices      BusinessType = "services"
	BusinessTypeManufacturing BusinessType = "manufacturing"
	BusinessTypeWholesale     BusinessType = "wholesale"
	BusinessTypeOther         BusinessType = "other"
)

// IsValid checks if the BusinessType is a valid value.
func (t BusinessType) IsValid() bool {
	switch t {
	case BusinessTypeRetail, BusinessTypeFoodBeverage, BusinessTypeServices,
		BusinessTypeManufacturing, BusinessTypeWholesale, BusinessTypeOther:
		return true
	default:
		return false
	}
}

// Weekday keys used by BusinessHours.
const (
	Monday    = "monday"
	Tuesday   = "tuesday"
	Wednesday = "wednesday"
	Thursday  = "thursday"
	Friday    = "friday"
	Saturday  = "saturday"
	Sunday    = "sunday"
)

// Weekdays lists the seven BusinessHours keys in calendar order.
var Weekdays = []string{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

// DayHours holds the opening window of a single weekday. Times are "HH:MM".
type DayHours struct {
	OpenTime  string `json:"openTime"`
	CloseTime string `json:"closeTime"`
	Closed    bool   `json:"closed"`
}

// BusinessHours maps each weekday key to its opening window.
type BusinessHours map[string]DayHours

// DefaultBusinessHours is the Mon-Sat open, Sun closed template applied at provisioning.
func DefaultBusinessHours() BusinessHours {
	hours := make(BusinessHours, len(Weekdays))
	for _, day := range Weekdays {
		hours[day] = DayHours{OpenTime: "09:00", CloseTime: "17:00"}
	}
	hours[Sunday] = DayHours{Closed: true}

	return hours
}

// Merchant is the identity and trust record of a business on the marketplace.
type Merchant struct {
	ID                 uuid.UUID
	Email              string // Stored lower-cased; unique across merchants.
	BusinessName       string
	Phone              string
	BusinessType       BusinessType
	Address            string
	Description        string
	Website            string
	BusinessHours      BusinessHours
	VerificationStatus VerificationStatus
	DocumentStatus     DocumentStatus
	SetupCompleted     bool
	PasswordHash       string // Empty until setup completes or an admin assigns one.
	Version            int64  // Optimistic concurrency counter, bumped on every committed mutation.
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// MerchantSummary is the externally visible view of a merchant. It never carries the password hash.
type MerchantSummary struct {
	ID                 uuid.UUID          `json:"id"`
	Email              string             `json:"email"`
	BusinessName       string             `json:"businessName"`
	Phone              string             `json:"phone"`
	BusinessType       BusinessType       `json:"businessType"`
	Address            string             `json:"address"`
	Description        string             `json:"description,omitempty"`
	Website            string             `json:"website,omitempty"`
	BusinessHours      BusinessHours      `json:"businessHours"`
	VerificationStatus VerificationStatus `json:"verificationStatus"`
	DocumentStatus     DocumentStatus     `json:"documentStatus"`
	SetupCompleted     bool               `json:"setupCompleted"`
	CreatedAt          time.Time          `json:"createdAt"`
}

// Summary returns the merchant without credential material.
func (m *Merchant) Summary() *MerchantSummary {
	return &MerchantSummary{
		ID:                 m.ID,
		Email:              m.Email,
		BusinessName:       m.BusinessName,
		Phone:              m.Phone,
		BusinessType:       m.BusinessType,
		Address:            m.Address,
		Description:        m.Description,
		Website:            m.Website,
		BusinessHours:      m.BusinessHours,
		VerificationStatus: m.VerificationStatus,
		DocumentStatus:     m.DocumentStatus,
		SetupCompleted:     m.SetupCompleted,
		CreatedAt:          m.CreatedAt,
	}
}

// SetupInfo is the redacted view shown to whoever holds a valid setup token.
type SetupInfo struct {
	BusinessName string       `json:"businessName"`
	Email        string       `json:"email"`
	Phone        string       `json:"phone"`
	BusinessType BusinessType `json:"businessType"`
}

// SetupInfo returns the redacted setup view of the merchant.
func (m *Merchant) SetupInfo() *SetupInfo {
	return &SetupInfo{
		BusinessName: m.BusinessName,
		Email:        m.Email,
		Phone:        m.Phone,
		BusinessType: m.BusinessType,
	}
}
