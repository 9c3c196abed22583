package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ledgerflowhq/ledgerflow/extraction"
	"github.com/ledgerflowhq/ledgerflow/models"
	"github.com/ledgerflowhq/ledgerflow/storage"
	"github.com/ledgerflowhq/ledgerflow/stores"
	"github.com/ledgerflowhq/ledgerflow/utils"
)

func activeTenant(id string) *models.Tenant {
	return &models.Tenant{
		ID:     id,
		Status: models.TenantStatusActive,
		Settings: models.TenantSettings{
			ProcessingEnabled: true,
		},
	}
}

func receiptDoc() *extraction.RawDocument {
	return &extraction.RawDocument{
		MerchantName:    strPtr("Coffee Corner"),
		TransactionDate: strPtr("2026-03-15"),
		Total:           amount(110),
	}
}

func newTestIngestion(tenants *fakeTenants, receipts *fakeReceipts, objects storage.ObjectStore, analyzer *fakeAnalyzer, syncer *fakeSyncer) *IngestionService {
	svc := NewIngestionService(tenants, receipts, objects, analyzer, syncer)
	svc.now = func() time.Time { return time.Date(2026, 3, 20, 12, 0, 0, 0, time.UTC) }
	svc.newID = func() string { return "receipt-test" }
	return svc
}

func seedUpload(t *testing.T, objects storage.ObjectStore, tenantID, filename string, content []byte) {
	t.Helper()
	ns := storage.Namespace(tenantID, storage.StageUploads)
	if err := objects.Put(context.Background(), ns, filename, content, nil); err != nil {
		t.Fatalf("seed upload: %v", err)
	}
}

func namespaceHas(t *testing.T, objects storage.ObjectStore, tenantID string, stage storage.Stage, filename string) bool {
	t.Helper()
	_, err := objects.Get(context.Background(), storage.Namespace(tenantID, stage), filename)
	return err == nil
}

func TestIngestSuccess(t *testing.T) {
	tenants := &fakeTenants{tenants: map[string]*models.Tenant{"t1": activeTenant("t1")}}
	receipts := &fakeReceipts{}
	objects := storage.NewMemoryStore()
	syncer := &fakeSyncer{invoiceID: "inv-1"}
	content := []byte("pdf-bytes")
	seedUpload(t, objects, "t1", "receipt.pdf", content)

	svc := newTestIngestion(tenants, receipts, objects, &fakeAnalyzer{doc: receiptDoc()}, syncer)
	receipt, err := svc.Ingest(context.Background(), "t1", "receipt.pdf", content, IngestOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if receipt.Status != models.ReceiptStatusCompleted {
		t.Errorf("expected completed, got %s", receipt.Status)
	}
	if receipt.LedgerSync != models.LedgerSyncSuccess {
		t.Errorf("expected sync success, got %s", receipt.LedgerSync)
	}
	if receipt.LedgerInvoiceID == nil || *receipt.LedgerInvoiceID != "inv-1" {
		t.Errorf("expected invoice inv-1, got %v", receipt.LedgerInvoiceID)
	}
	if receipt.Merchant != "Coffee Corner" || receipt.Total != 110 || receipt.Tax != 11 {
		t.Errorf("unexpected normalized fields: %+v", receipt)
	}
	if receipt.Origin != models.ReceiptOriginUpload {
		t.Errorf("expected upload origin, got %s", receipt.Origin)
	}

	if namespaceHas(t, objects, "t1", storage.StageUploads, "receipt.pdf") {
		t.Error("expected upload removed after completion")
	}
	if !namespaceHas(t, objects, "t1", storage.StageProcessing, "receipt.pdf") {
		t.Error("expected copy in processing namespace")
	}
	if !namespaceHas(t, objects, "t1", storage.StageComplete, "receipt.pdf") {
		t.Error("expected copy in complete namespace")
	}
	if tenants.usageIncrement != 1 {
		t.Errorf("expected one usage increment, got %d", tenants.usageIncrement)
	}
}

func TestIngestProcessingDisabled(t *testing.T) {
	tenant := activeTenant("t1")
	tenant.Settings.ProcessingEnabled = false
	tenants := &fakeTenants{tenants: map[string]*models.Tenant{"t1": tenant}}
	receipts := &fakeReceipts{}
	objects := storage.NewMemoryStore()
	content := []byte("pdf-bytes")
	seedUpload(t, objects, "t1", "receipt.pdf", content)

	svc := newTestIngestion(tenants, receipts, objects, &fakeAnalyzer{doc: receiptDoc()}, &fakeSyncer{})
	_, err := svc.Ingest(context.Background(), "t1", "receipt.pdf", content, IngestOptions{})
	if !errors.Is(err, utils.ErrProcessingDisabled) {
		t.Fatalf("expected ErrProcessingDisabled, got %v", err)
	}
	if len(receipts.created) != 0 {
		t.Error("expected no receipt record")
	}
	if !namespaceHas(t, objects, "t1", storage.StageUploads, "receipt.pdf") {
		t.Error("expected upload left in place")
	}
}

func TestIngestSuspendedTenant(t *testing.T) {
	tenant := activeTenant("t1")
	tenant.Status = models.TenantStatusSuspended
	tenants := &fakeTenants{tenants: map[string]*models.Tenant{"t1": tenant}}

	svc := newTestIngestion(tenants, &fakeReceipts{}, storage.NewMemoryStore(), &fakeAnalyzer{doc: receiptDoc()}, &fakeSyncer{})
	_, err := svc.Ingest(context.Background(), "t1", "receipt.pdf", []byte("x"), IngestOptions{})
	if !errors.Is(err, utils.ErrProcessingDisabled) {
		t.Fatalf("expected ErrProcessingDisabled, got %v", err)
	}
}

func TestIngestUnknownTenant(t *testing.T) {
	tenants := &fakeTenants{tenants: map[string]*models.Tenant{}}

	svc := newTestIngestion(tenants, &fakeReceipts{}, storage.NewMemoryStore(), &fakeAnalyzer{doc: receiptDoc()}, &fakeSyncer{})
	_, err := svc.Ingest(context.Background(), "ghost", "receipt.pdf", []byte("x"), IngestOptions{})
	if !errors.Is(err, utils.ErrProcessingDisabled) {
		t.Fatalf("expected ErrProcessingDisabled for unknown tenant, got %v", err)
	}
}

func TestIngestTenantLookupOutage(t *testing.T) {
	tenants := &fakeTenants{getErr: errors.New("connection refused")}
	objects := storage.NewMemoryStore()
	content := []byte("pdf-bytes")
	seedUpload(t, objects, "t1", "receipt.pdf", content)

	svc := newTestIngestion(tenants, &fakeReceipts{}, objects, &fakeAnalyzer{doc: receiptDoc()}, &fakeSyncer{})
	_, err := svc.Ingest(context.Background(), "t1", "receipt.pdf", content, IngestOptions{})
	if err == nil {
		t.Fatal("expected error on tenant lookup outage")
	}
	// An infrastructure failure is retryable. It must not look like the
	// tenant opted out of processing.
	if errors.Is(err, utils.ErrProcessingDisabled) {
		t.Fatalf("outage collapsed into ErrProcessingDisabled: %v", err)
	}
	if !namespaceHas(t, objects, "t1", storage.StageUploads, "receipt.pdf") {
		t.Error("upload must stay in place for the next sweep")
	}
}

func TestIngestExtractionFailure(t *testing.T) {
	tenants := &fakeTenants{tenants: map[string]*models.Tenant{"t1": activeTenant("t1")}}
	receipts := &fakeReceipts{}
	objects := storage.NewMemoryStore()
	content := []byte("not-a-receipt")
	seedUpload(t, objects, "t1", "junk.pdf", content)

	svc := newTestIngestion(tenants, receipts, objects, &fakeAnalyzer{err: errors.New("model refused")}, &fakeSyncer{})
	_, err := svc.Ingest(context.Background(), "t1", "junk.pdf", content, IngestOptions{})
	if !errors.Is(err, utils.ErrExtractionFailed) {
		t.Fatalf("expected ErrExtractionFailed, got %v", err)
	}
	if len(receipts.created) != 0 {
		t.Error("expected no receipt record on extraction failure")
	}
	if !namespaceHas(t, objects, "t1", storage.StageUploads, "junk.pdf") {
		t.Error("expected upload left for the next sweep")
	}
}

func TestIngestWithoutIntegration(t *testing.T) {
	tenants := &fakeTenants{tenants: map[string]*models.Tenant{"t1": activeTenant("t1")}}
	receipts := &fakeReceipts{}
	objects := storage.NewMemoryStore()
	content := []byte("pdf-bytes")
	seedUpload(t, objects, "t1", "receipt.pdf", content)

	svc := newTestIngestion(tenants, receipts, objects, &fakeAnalyzer{doc: receiptDoc()}, &fakeSyncer{err: utils.ErrNotConfigured})
	receipt, err := svc.Ingest(context.Background(), "t1", "receipt.pdf", content, IngestOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if receipt.Status != models.ReceiptStatusFailed {
		t.Errorf("expected failed, got %s", receipt.Status)
	}
	// No ledger call was attempted, so the sync marker must stay pending.
	if receipt.LedgerSync != models.LedgerSyncPending {
		t.Errorf("expected pending sync, got %s", receipt.LedgerSync)
	}
	if receipt.LedgerInvoiceID != nil {
		t.Errorf("expected no invoice id, got %v", *receipt.LedgerInvoiceID)
	}
	if namespaceHas(t, objects, "t1", storage.StageUploads, "receipt.pdf") {
		t.Error("expected upload removed after terminal state")
	}
	if namespaceHas(t, objects, "t1", storage.StageComplete, "receipt.pdf") {
		t.Error("expected no copy in complete namespace")
	}
}

func TestIngestSyncError(t *testing.T) {
	tenants := &fakeTenants{tenants: map[string]*models.Tenant{"t1": activeTenant("t1")}}
	receipts := &fakeReceipts{}
	objects := storage.NewMemoryStore()
	content := []byte("pdf-bytes")
	seedUpload(t, objects, "t1", "receipt.pdf", content)

	syncer := &fakeSyncer{err: &utils.InvoiceCreationError{Err: errors.New("bad line")}}
	svc := newTestIngestion(tenants, receipts, objects, &fakeAnalyzer{doc: receiptDoc()}, syncer)
	receipt, err := svc.Ingest(context.Background(), "t1", "receipt.pdf", content, IngestOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if receipt.Status != models.ReceiptStatusFailed {
		t.Errorf("expected failed, got %s", receipt.Status)
	}
	if receipt.LedgerSync != models.LedgerSyncError {
		t.Errorf("expected sync error, got %s", receipt.LedgerSync)
	}
	if receipt.LedgerInvoiceID != nil {
		t.Error("invoice id must only be set on success")
	}
	if namespaceHas(t, objects, "t1", storage.StageComplete, "receipt.pdf") {
		t.Error("expected no copy in complete namespace on sync failure")
	}
}

func TestIngestConcurrentTakeover(t *testing.T) {
	tenants := &fakeTenants{tenants: map[string]*models.Tenant{"t1": activeTenant("t1")}}
	receipts := &fakeReceipts{statusErr: stores.ErrStaleReceipt}
	objects := storage.NewMemoryStore()
	content := []byte("pdf-bytes")
	seedUpload(t, objects, "t1", "receipt.pdf", content)

	svc := newTestIngestion(tenants, receipts, objects, &fakeAnalyzer{doc: receiptDoc()}, &fakeSyncer{invoiceID: "inv-1"})
	_, err := svc.Ingest(context.Background(), "t1", "receipt.pdf", content, IngestOptions{})
	if err != nil {
		t.Fatalf("lost race should not error: %v", err)
	}
	// The winning invocation owns cleanup.
	if !namespaceHas(t, objects, "t1", storage.StageUploads, "receipt.pdf") {
		t.Error("loser of the race must not delete the upload")
	}
}

func TestIngestEmailOriginMetadata(t *testing.T) {
	tenants := &fakeTenants{tenants: map[string]*models.Tenant{"t1": activeTenant("t1")}}
	receipts := &fakeReceipts{}
	objects := storage.NewMemoryStore()
	content := []byte("pdf-bytes")
	seedUpload(t, objects, "t1", "email_receipt.pdf", content)

	svc := newTestIngestion(tenants, receipts, objects, &fakeAnalyzer{doc: receiptDoc()}, &fakeSyncer{invoiceID: "inv-9"})
	receipt, err := svc.Ingest(context.Background(), "t1", "email_receipt.pdf", content, IngestOptions{
		Origin:      models.ReceiptOriginEmail,
		SenderEmail: "owner@example.com",
		Subject:     "March receipts",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if receipt.Origin != models.ReceiptOriginEmail {
		t.Errorf("expected email origin, got %s", receipt.Origin)
	}
	if receipt.SenderEmail != "owner@example.com" || receipt.EmailSubject != "March receipts" {
		t.Errorf("expected sender metadata carried through, got %+v", receipt)
	}
}
