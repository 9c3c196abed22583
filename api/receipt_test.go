package api

import (
	"bytes"
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"github.com/ledgerflowhq/ledgerflow/extraction"
	"github.com/ledgerflowhq/ledgerflow/middleware"
	"github.com/ledgerflowhq/ledgerflow/models"
	"github.com/ledgerflowhq/ledgerflow/services"
	"github.com/ledgerflowhq/ledgerflow/storage"
)

type stubResolver struct {
	tenant *models.Tenant
}

func (s *stubResolver) GetByAPIKey(ctx context.Context, apiKey string) (*models.Tenant, error) {
	if apiKey != s.tenant.APIKey {
		return nil, errors.New("unknown api key")
	}
	return s.tenant, nil
}

type stubTenants struct {
	tenant *models.Tenant
}

func (s *stubTenants) GetByID(ctx context.Context, id string) (*models.Tenant, error) {
	return s.tenant, nil
}

func (s *stubTenants) IncrementUsage(ctx context.Context, tenantID string, now time.Time) error {
	return nil
}

type stubReceipts struct{}

func (s *stubReceipts) Create(ctx context.Context, receipt *models.Receipt) error {
	return nil
}

func (s *stubReceipts) UpdateStatus(ctx context.Context, receipt *models.Receipt, status models.ReceiptStatus, processedAt time.Time) error {
	receipt.Status = status
	return nil
}

func (s *stubReceipts) SetLedgerResult(ctx context.Context, receipt *models.Receipt, invoiceID *string, sync models.LedgerSyncStatus) error {
	receipt.LedgerSync = sync
	if sync == models.LedgerSyncSuccess {
		receipt.LedgerInvoiceID = invoiceID
	}
	return nil
}

type stubAnalyzer struct {
	err error
}

func (s *stubAnalyzer) Analyze(ctx context.Context, content []byte) (*extraction.RawDocument, error) {
	if s.err != nil {
		return nil, s.err
	}
	merchant := "Coffee Corner"
	date := "2026-03-15"
	total := 110.0
	return &extraction.RawDocument{
		MerchantName:    &merchant,
		TransactionDate: &date,
		Total:           &extraction.Amount{Currency: &total},
	}, nil
}

type stubSyncer struct{}

func (s *stubSyncer) Sync(ctx context.Context, tenant *models.Tenant, receipt *models.Receipt) (string, error) {
	return "inv-1", nil
}

func newUploadServer(analyzerErr error) (*mux.Router, storage.ObjectStore) {
	tenant := &models.Tenant{
		ID:     "t1",
		APIKey: "key-1",
		Status: models.TenantStatusActive,
		Settings: models.TenantSettings{
			ProcessingEnabled: true,
		},
	}
	objects := storage.NewMemoryStore()
	ingestion := services.NewIngestionService(
		&stubTenants{tenant: tenant}, &stubReceipts{}, objects,
		&stubAnalyzer{err: analyzerErr}, &stubSyncer{})
	handler := CreateReceiptHandler(nil, ingestion, objects)

	router := mux.NewRouter()
	authed := router.PathPrefix("/api").Subrouter()
	authed.Use(middleware.APIKeyAuth(&stubResolver{tenant: tenant}))
	authed.HandleFunc("/tenants/{id}/uploads", handler.HandleUpload).Methods("POST")
	return router, objects
}

func uploadRequest(t *testing.T, filename string, content []byte) *http.Request {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/tenants/t1/uploads", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("X-API-Key", "key-1")
	return req
}

func hasObject(t *testing.T, objects storage.ObjectStore, stage storage.Stage, filename string) bool {
	t.Helper()
	_, err := objects.Get(context.Background(), storage.Namespace("t1", stage), filename)
	return err == nil
}

func TestUploadPersistsSourceBeforePipeline(t *testing.T) {
	router, objects := newUploadServer(errors.New("extractor down"))

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, uploadRequest(t, "receipt.pdf", []byte("pdf-bytes")))

	if recorder.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 on extraction failure, got %d", recorder.Code)
	}
	// The document was stored before the pipeline ran, so the failed run
	// leaves it in the uploads namespace for the reconciliation sweep.
	if !hasObject(t, objects, storage.StageUploads, "receipt.pdf") {
		t.Error("upload missing from uploads namespace after failed run")
	}
}

func TestUploadCleansUploadAfterCompletion(t *testing.T) {
	router, objects := newUploadServer(nil)

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, uploadRequest(t, "receipt.pdf", []byte("pdf-bytes")))

	if recorder.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", recorder.Code, recorder.Body.String())
	}
	if hasObject(t, objects, storage.StageUploads, "receipt.pdf") {
		t.Error("upload should be removed once the pipeline completes")
	}
	if !hasObject(t, objects, storage.StageComplete, "receipt.pdf") {
		t.Error("completed document missing from complete namespace")
	}
}

func TestUploadRejectsForeignTenantPath(t *testing.T) {
	router, _ := newUploadServer(nil)

	req := uploadRequest(t, "receipt.pdf", []byte("pdf-bytes"))
	req.URL.Path = "/api/tenants/other/uploads"

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for mismatched tenant path, got %d", recorder.Code)
	}
}
