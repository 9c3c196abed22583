package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ledgerflowhq/ledgerflow/extraction"
	"github.com/ledgerflowhq/ledgerflow/models"
	"github.com/ledgerflowhq/ledgerflow/storage"
	"github.com/ledgerflowhq/ledgerflow/stores"
	"github.com/ledgerflowhq/ledgerflow/utils"
)

// TenantSource is the slice of the tenant store the pipeline needs.
type TenantSource interface {
	GetByID(ctx context.Context, id string) (*models.Tenant, error)
	IncrementUsage(ctx context.Context, tenantID string, now time.Time) error
}

// ReceiptWriter persists receipt records with optimistic-concurrency writes.
type ReceiptWriter interface {
	Create(ctx context.Context, receipt *models.Receipt) error
	UpdateStatus(ctx context.Context, receipt *models.Receipt, status models.ReceiptStatus, processedAt time.Time) error
	SetLedgerResult(ctx context.Context, receipt *models.Receipt, invoiceID *string, sync models.LedgerSyncStatus) error
}

// Syncer pushes one receipt to the external ledger.
type Syncer interface {
	Sync(ctx context.Context, tenant *models.Tenant, receipt *models.Receipt) (string, error)
}

// IngestOptions carries origin metadata for documents arriving outside the
// plain upload path.
type IngestOptions struct {
	Origin      models.ReceiptOrigin
	SenderEmail string
	Subject     string
}

// IngestionService drives a document through upload -> processing ->
// completed | failed, invoking extraction and ledger sync and performing the
// storage moves. Side effects are ordered so a crash mid-pipeline never loses
// the source document: the upload copy is deleted only after a terminal
// receipt state is durably recorded.
type IngestionService struct {
	tenants  TenantSource
	receipts ReceiptWriter
	objects  storage.ObjectStore
	analyzer extraction.Analyzer
	syncer   Syncer
	logger   *utils.Logger

	now   func() time.Time
	newID func() string
}

func NewIngestionService(tenants TenantSource, receipts ReceiptWriter, objects storage.ObjectStore, analyzer extraction.Analyzer, syncer Syncer) *IngestionService {
	return &IngestionService{
		tenants:  tenants,
		receipts: receipts,
		objects:  objects,
		analyzer: analyzer,
		syncer:   syncer,
		logger:   utils.NewLogger("ingestion"),
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// Ingest processes one uploaded document end to end and returns its receipt.
// It errors without side effects when the tenant has processing disabled or
// extraction fails; in both cases the upload stays in place for a later sweep
// or manual retry.
func (s *IngestionService) Ingest(ctx context.Context, tenantID, filename string, content []byte, opts IngestOptions) (*models.Receipt, error) {
	ctx = utils.WithTenantID(ctx, tenantID)

	tenant, err := s.tenants.GetByID(ctx, tenantID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrProcessingDisabled
	}
	if err != nil {
		return nil, fmt.Errorf("load tenant: %w", err)
	}
	if tenant.Status != models.TenantStatusActive || !tenant.Settings.ProcessingEnabled {
		return nil, utils.ErrProcessingDisabled
	}

	raw, err := s.analyzer.Analyze(ctx, content)
	if err != nil {
		s.logger.Error(ctx, "extraction failed", map[string]interface{}{
			"filename": filename,
			"error":    err.Error(),
		})
		return nil, fmt.Errorf("%w: %v", utils.ErrExtractionFailed, err)
	}
	normalized := extraction.Normalize(raw, s.now())

	origin := opts.Origin
	if origin == "" {
		origin = models.ReceiptOriginUpload
	}
	receipt := &models.Receipt{
		ID:              s.newID(),
		TenantID:        tenantID,
		Filename:        filename,
		Origin:          origin,
		Merchant:        normalized.Merchant,
		TransactionDate: normalized.TransactionDate,
		Total:           normalized.Total,
		Tax:             normalized.Tax,
		Items:           normalized.Items,
		Status:          models.ReceiptStatusProcessing,
		LedgerSync:      models.LedgerSyncPending,
		SenderEmail:     opts.SenderEmail,
		EmailSubject:    opts.Subject,
		Version:         1,
	}
	if err := s.receipts.Create(ctx, receipt); err != nil {
		return nil, fmt.Errorf("persist receipt: %w", err)
	}

	// Durability checkpoint before any destructive ledger call. A failed
	// copy is logged but does not abort: the upload itself still exists.
	if err := s.objects.Put(ctx, storage.Namespace(tenantID, storage.StageProcessing), filename, content, nil); err != nil {
		s.logger.Warn(ctx, "failed to copy to processing namespace", map[string]interface{}{
			"filename": filename,
			"error":    err.Error(),
		})
	}

	invoiceID, syncErr := s.syncer.Sync(ctx, tenant, receipt)

	var terminal models.ReceiptStatus
	switch {
	case syncErr == nil:
		if err := s.objects.Put(ctx, storage.Namespace(tenantID, storage.StageComplete), filename, content, nil); err != nil {
			s.logger.Warn(ctx, "failed to copy to complete namespace", map[string]interface{}{
				"filename": filename,
				"error":    err.Error(),
			})
		}
		if err := s.receipts.SetLedgerResult(ctx, receipt, &invoiceID, models.LedgerSyncSuccess); err != nil {
			return s.abandon(ctx, receipt, err)
		}
		terminal = models.ReceiptStatusCompleted

	case errors.Is(syncErr, utils.ErrNotConfigured):
		// No integration: the sync is a benign no-op, but the pipeline
		// still reports a terminal non-success status. The sync status
		// stays pending since no ledger call was attempted.
		s.logger.Info(ctx, "ledger integration not configured, skipping sync", nil)
		terminal = models.ReceiptStatusFailed

	default:
		s.logger.Error(ctx, "ledger sync failed", map[string]interface{}{
			"receipt_id": receipt.ID,
			"error":      syncErr.Error(),
		})
		if err := s.receipts.SetLedgerResult(ctx, receipt, nil, models.LedgerSyncError); err != nil {
			return s.abandon(ctx, receipt, err)
		}
		terminal = models.ReceiptStatusFailed
	}

	if err := s.receipts.UpdateStatus(ctx, receipt, terminal, s.now()); err != nil {
		return s.abandon(ctx, receipt, err)
	}

	if err := s.tenants.IncrementUsage(ctx, tenantID, s.now()); err != nil {
		s.logger.Warn(ctx, "failed to update tenant usage", map[string]interface{}{"error": err.Error()})
	}

	// Cleanup happens last: any failure above leaves the source in the
	// uploads namespace, recoverable by the next sweep.
	if err := s.objects.Delete(ctx, storage.Namespace(tenantID, storage.StageUploads), filename); err != nil {
		s.logger.Warn(ctx, "failed to remove upload", map[string]interface{}{
			"filename": filename,
			"error":    err.Error(),
		})
	}

	return receipt, nil
}

// abandon handles a lost optimistic-concurrency race: another invocation owns
// the receipt now, so this one stops without touching the upload.
func (s *IngestionService) abandon(ctx context.Context, receipt *models.Receipt, err error) (*models.Receipt, error) {
	if errors.Is(err, stores.ErrStaleReceipt) {
		s.logger.Info(ctx, "receipt taken over by concurrent invocation", map[string]interface{}{
			"receipt_id": receipt.ID,
		})
		return receipt, nil
	}
	return nil, fmt.Errorf("update receipt %s: %w", receipt.ID, err)
}
