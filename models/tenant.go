package models

import (
	"time"
)

type TenantStatus string

const (
	TenantStatusActive    TenantStatus = "active"
	TenantStatusSuspended TenantStatus = "suspended"
)

type Tenant struct {
	ID          string         `json:"id" gorm:"primaryKey"`
	CompanyName string         `json:"company_name" gorm:"not null"`
	AdminEmail  string         `json:"admin_email" gorm:"not null"`
	Plan        string         `json:"plan" gorm:"default:'starter'"`
	Status      TenantStatus   `json:"status" gorm:"default:'active';index"`
	APIKey      string         `json:"api_key" gorm:"uniqueIndex;not null"`
	Settings    TenantSettings `json:"settings" gorm:"serializer:json;type:jsonb"`
	Usage       TenantUsage    `json:"usage" gorm:"serializer:json;type:jsonb"`
	CreatedAt   time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt   time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
}

type TenantSettings struct {
	ProcessingEnabled      bool     `json:"processing_enabled"`
	AutoPayEnabled         bool     `json:"auto_pay_enabled"`
	NotificationsEnabled   bool     `json:"notifications_enabled"`
	EmailProcessingEnabled bool     `json:"email_processing_enabled"`
	BankAccountID          string   `json:"bank_account_id,omitempty"`
	CurrencyCode           string   `json:"currency_code,omitempty"`
	AuthorizedSenders      []string `json:"authorized_senders,omitempty"`
}

type TenantUsage struct {
	ReceiptsProcessed int64      `json:"receipts_processed"`
	StorageUsed       int64      `json:"storage_used"`
	LastProcessing    *time.Time `json:"last_processing,omitempty"`
}

type CreateTenantRequest struct {
	CompanyName string `json:"company_name"`
	AdminEmail  string `json:"admin_email"`
	Plan        string `json:"plan"`
}

type UpdateTenantSettingsRequest struct {
	ProcessingEnabled      *bool    `json:"processing_enabled"`
	AutoPayEnabled         *bool    `json:"auto_pay_enabled"`
	NotificationsEnabled   *bool    `json:"notifications_enabled"`
	EmailProcessingEnabled *bool    `json:"email_processing_enabled"`
	BankAccountID          *string  `json:"bank_account_id"`
	CurrencyCode           *string  `json:"currency_code"`
	AuthorizedSenders      []string `json:"authorized_senders"`
}
