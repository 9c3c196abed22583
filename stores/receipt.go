package stores

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/ledgerflowhq/ledgerflow/models"
)

// ErrStaleReceipt is returned when an optimistic-concurrency write lost the
// race: another invocation mutated the receipt first, or the requested status
// transition would move a terminal receipt backwards.
var ErrStaleReceipt = errors.New("receipt was modified concurrently")

type ReceiptStore struct {
	BaseStore
}

func NewReceiptStore(db *gorm.DB) *ReceiptStore {
	return &ReceiptStore{BaseStore: BaseStore{db: db}}
}

func (s *ReceiptStore) Create(ctx context.Context, receipt *models.Receipt) error {
	return s.GetDB(ctx).Create(receipt).Error
}

func (s *ReceiptStore) GetByID(ctx context.Context, tenantID, id string) (*models.Receipt, error) {
	var receipt models.Receipt
	if err := s.GetDB(ctx).Where("tenant_id = ?", tenantID).First(&receipt, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &receipt, nil
}

func (s *ReceiptStore) List(ctx context.Context, filter models.ReceiptFilter) ([]*models.Receipt, int64, error) {
	var receipts []*models.Receipt
	var total int64

	query := s.GetDB(ctx).Model(&models.Receipt{}).Where("tenant_id = ?", filter.TenantID)
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}
	if err := query.Order("created_at DESC").Find(&receipts).Error; err != nil {
		return nil, 0, err
	}
	return receipts, total, nil
}

func (s *ReceiptStore) CountByStatus(ctx context.Context, tenantID string) (*models.ProcessingStatus, error) {
	type row struct {
		Status models.ReceiptStatus
		N      int64
	}
	var rows []row
	err := s.GetDB(ctx).Model(&models.Receipt{}).
		Select("status, count(*) as n").
		Where("tenant_id = ?", tenantID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	status := &models.ProcessingStatus{}
	for _, r := range rows {
		switch r.Status {
		case models.ReceiptStatusUploaded:
			status.Uploaded = r.N
		case models.ReceiptStatusProcessing:
			status.Processing = r.N
		case models.ReceiptStatusCompleted:
			status.Completed = r.N
		case models.ReceiptStatusFailed:
			status.Failed = r.N
		}
	}
	return status, nil
}

// UpdateStatus moves a receipt to a new pipeline status. The write is
// conditional on the version the caller read and on the transition being
// forward-only, so a sweeper cannot double-process a document another
// invocation holds.
func (s *ReceiptStore) UpdateStatus(ctx context.Context, receipt *models.Receipt, status models.ReceiptStatus, processedAt time.Time) error {
	if !receipt.Status.CanTransitionTo(status) {
		return ErrStaleReceipt
	}

	result := s.GetDB(ctx).Model(&models.Receipt{}).
		Where("id = ? AND version = ?", receipt.ID, receipt.Version).
		Updates(map[string]interface{}{
			"status":       status,
			"processed_at": processedAt,
			"version":      receipt.Version + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStaleReceipt
	}

	receipt.Status = status
	receipt.ProcessedAt = &processedAt
	receipt.Version++
	return nil
}

// SetLedgerResult records the sync outcome. The invoice id is written only
// together with a success status, preserving the invariant that a non-null
// invoice id implies a successful sync.
func (s *ReceiptStore) SetLedgerResult(ctx context.Context, receipt *models.Receipt, invoiceID *string, sync models.LedgerSyncStatus) error {
	if sync != models.LedgerSyncSuccess {
		invoiceID = nil
	}

	result := s.GetDB(ctx).Model(&models.Receipt{}).
		Where("id = ? AND version = ?", receipt.ID, receipt.Version).
		Updates(map[string]interface{}{
			"ledger_invoice_id": invoiceID,
			"ledger_sync":       sync,
			"version":           receipt.Version + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStaleReceipt
	}

	receipt.LedgerInvoiceID = invoiceID
	receipt.LedgerSync = sync
	receipt.Version++
	return nil
}
