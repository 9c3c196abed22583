package models

import (
	"time"
)

type AuditAction string

const (
	AuditActionAutoPayment    AuditAction = "auto_payment_created"
	AuditActionTenantCreated  AuditAction = "tenant_created"
	AuditActionEmailIngested  AuditAction = "email_ingested"
	AuditActionLedgerConnect  AuditAction = "ledger_connected"
	AuditActionSettingsUpdate AuditAction = "settings_updated"
)

// AuditEntry is an immutable record of a ledger-affecting side effect.
// Created once, never mutated.
type AuditEntry struct {
	ID        string      `json:"id" gorm:"primaryKey"`
	TenantID  string      `json:"tenant_id" gorm:"index;not null"`
	Action    AuditAction `json:"action" gorm:"index;not null"`
	Details   JSON        `json:"details" gorm:"type:jsonb"`
	CreatedAt time.Time   `json:"timestamp" gorm:"autoCreateTime"`
}

type AuditFilter struct {
	TenantID  string
	Action    string
	StartDate *time.Time
	EndDate   *time.Time
	Limit     int
	Offset    int
}
