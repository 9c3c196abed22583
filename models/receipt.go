package models

import (
	"time"
)

// ReceiptStatus tracks a document through the pipeline. Transitions only move
// forward: uploaded -> processing -> completed | failed.
type ReceiptStatus string

const (
	ReceiptStatusUploaded   ReceiptStatus = "uploaded"
	ReceiptStatusProcessing ReceiptStatus = "processing"
	ReceiptStatusCompleted  ReceiptStatus = "completed"
	ReceiptStatusFailed     ReceiptStatus = "failed"
)

// Terminal reports whether no further status transition is allowed.
func (s ReceiptStatus) Terminal() bool {
	return s == ReceiptStatusCompleted || s == ReceiptStatusFailed
}

// CanTransitionTo enforces the forward-only lifecycle.
func (s ReceiptStatus) CanTransitionTo(next ReceiptStatus) bool {
	switch s {
	case ReceiptStatusUploaded:
		return next == ReceiptStatusProcessing || next == ReceiptStatusFailed
	case ReceiptStatusProcessing:
		return next == ReceiptStatusCompleted || next == ReceiptStatusFailed
	default:
		return false
	}
}

type LedgerSyncStatus string

const (
	LedgerSyncPending LedgerSyncStatus = "pending"
	LedgerSyncSuccess LedgerSyncStatus = "success"
	LedgerSyncError   LedgerSyncStatus = "error"
)

type ReceiptOrigin string

const (
	ReceiptOriginUpload ReceiptOrigin = "upload"
	ReceiptOriginEmail  ReceiptOrigin = "email"
)

type LineItem struct {
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	UnitAmount  float64 `json:"unit_amount"`
}

// Receipt is the canonical record for one ingested document. Rows are
// append-only: status and ledger fields mutate, rows are never deleted.
type Receipt struct {
	ID              string           `json:"id" gorm:"primaryKey"`
	TenantID        string           `json:"tenant_id" gorm:"index;not null"`
	Filename        string           `json:"filename" gorm:"not null"`
	Origin          ReceiptOrigin    `json:"origin" gorm:"default:'upload'"`
	Merchant        string           `json:"merchant"`
	TransactionDate time.Time        `json:"transaction_date"`
	Total           float64          `json:"total"`
	Tax             float64          `json:"tax"`
	Items           []LineItem       `json:"items" gorm:"serializer:json;type:jsonb"`
	Status          ReceiptStatus    `json:"status" gorm:"index;default:'uploaded'"`
	LedgerInvoiceID *string          `json:"ledger_invoice_id"`
	LedgerSync      LedgerSyncStatus `json:"ledger_sync_status" gorm:"default:'pending'"`
	SenderEmail     string           `json:"sender_email,omitempty"`
	EmailSubject    string           `json:"email_subject,omitempty"`
	Version         int64            `json:"-" gorm:"default:1"`
	CreatedAt       time.Time        `json:"created_at" gorm:"autoCreateTime"`
	ProcessedAt     *time.Time       `json:"processed_at"`
}

type ReceiptFilter struct {
	TenantID string
	Status   ReceiptStatus
	Limit    int
	Offset   int
}

// ProcessingStatus summarizes a tenant's receipts by pipeline state.
type ProcessingStatus struct {
	Uploaded   int64 `json:"uploaded"`
	Processing int64 `json:"processing"`
	Completed  int64 `json:"completed"`
	Failed     int64 `json:"failed"`
}
