package services

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/ledgerflowhq/ledgerflow/extraction"
	"github.com/ledgerflowhq/ledgerflow/ledger"
	"github.com/ledgerflowhq/ledgerflow/models"
)

type fakeIntegrations struct {
	integration *models.Integration
	err         error
}

func (f *fakeIntegrations) GetByTenant(ctx context.Context, tenantID string) (*models.Integration, error) {
	return f.integration, f.err
}

type fakeTokens struct {
	token string
	err   error
}

func (f *fakeTokens) Token(ctx context.Context, tenantID string, integration *models.Integration) (string, error) {
	return f.token, f.err
}

// fakeLedgerAPI records every call and serves canned responses. It covers
// both the sync and auto-pay slices of the client.
type fakeLedgerAPI struct {
	contacts         []ledger.Contact
	searchErr        error
	createContactErr error
	nextContactID    string

	invoiceErr    error
	nextInvoiceID string

	bills   []ledger.Invoice
	listErr error

	paymentErr error

	createdContacts []ledger.Contact
	createdInvoices []ledger.Invoice
	payments        []ledger.Payment
}

func (f *fakeLedgerAPI) SearchContacts(ctx context.Context, session ledger.Session, nameContains string) ([]ledger.Contact, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.contacts, nil
}

func (f *fakeLedgerAPI) CreateContact(ctx context.Context, session ledger.Session, contact ledger.Contact) (*ledger.Contact, error) {
	if f.createContactErr != nil {
		return nil, f.createContactErr
	}
	contact.ContactID = f.nextContactID
	f.createdContacts = append(f.createdContacts, contact)
	return &contact, nil
}

func (f *fakeLedgerAPI) CreateInvoice(ctx context.Context, session ledger.Session, invoice ledger.Invoice) (*ledger.Invoice, error) {
	if f.invoiceErr != nil {
		return nil, f.invoiceErr
	}
	invoice.InvoiceID = f.nextInvoiceID
	f.createdInvoices = append(f.createdInvoices, invoice)
	return &invoice, nil
}

func (f *fakeLedgerAPI) ListAwaitingPaymentBills(ctx context.Context, session ledger.Session) ([]ledger.Invoice, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.bills, nil
}

func (f *fakeLedgerAPI) CreatePayment(ctx context.Context, session ledger.Session, payment ledger.Payment) (*ledger.Payment, error) {
	if f.paymentErr != nil {
		return nil, f.paymentErr
	}
	f.payments = append(f.payments, payment)
	return &payment, nil
}

type fakeTenants struct {
	tenants        map[string]*models.Tenant
	getErr         error
	usageIncrement int
}

func (f *fakeTenants) GetByID(ctx context.Context, id string) (*models.Tenant, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	tenant, ok := f.tenants[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return tenant, nil
}

func (f *fakeTenants) IncrementUsage(ctx context.Context, tenantID string, now time.Time) error {
	f.usageIncrement++
	return nil
}

func (f *fakeTenants) ListActiveWithProcessing(ctx context.Context) ([]*models.Tenant, error) {
	var out []*models.Tenant
	for _, t := range f.tenants {
		if t.Status == models.TenantStatusActive && t.Settings.ProcessingEnabled {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeTenants) ListActiveWithAutoPay(ctx context.Context) ([]*models.Tenant, error) {
	var out []*models.Tenant
	for _, t := range f.tenants {
		if t.Status == models.TenantStatusActive && t.Settings.AutoPayEnabled {
			out = append(out, t)
		}
	}
	return out, nil
}

// fakeReceipts mimics the store's optimistic-concurrency surface, mutating
// the passed receipt the way the real store does.
type fakeReceipts struct {
	created []*models.Receipt

	createErr error
	statusErr error
	ledgerErr error
}

func (f *fakeReceipts) Create(ctx context.Context, receipt *models.Receipt) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, receipt)
	return nil
}

func (f *fakeReceipts) UpdateStatus(ctx context.Context, receipt *models.Receipt, status models.ReceiptStatus, processedAt time.Time) error {
	if f.statusErr != nil {
		return f.statusErr
	}
	receipt.Status = status
	receipt.ProcessedAt = &processedAt
	receipt.Version++
	return nil
}

func (f *fakeReceipts) SetLedgerResult(ctx context.Context, receipt *models.Receipt, invoiceID *string, sync models.LedgerSyncStatus) error {
	if f.ledgerErr != nil {
		return f.ledgerErr
	}
	if sync != models.LedgerSyncSuccess {
		invoiceID = nil
	}
	receipt.LedgerInvoiceID = invoiceID
	receipt.LedgerSync = sync
	receipt.Version++
	return nil
}

type fakeAnalyzer struct {
	doc *extraction.RawDocument
	err error
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, content []byte) (*extraction.RawDocument, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.doc, nil
}

type fakeSyncer struct {
	invoiceID string
	err       error
	calls     int
}

func (f *fakeSyncer) Sync(ctx context.Context, tenant *models.Tenant, receipt *models.Receipt) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.invoiceID, nil
}

type ingestCall struct {
	TenantID string
	Filename string
	Opts     IngestOptions
}

type fakeIngestor struct {
	calls   []ingestCall
	failFor map[string]error
	failAll error
}

func (f *fakeIngestor) Ingest(ctx context.Context, tenantID, filename string, content []byte, opts IngestOptions) (*models.Receipt, error) {
	f.calls = append(f.calls, ingestCall{TenantID: tenantID, Filename: filename, Opts: opts})
	if f.failAll != nil {
		return nil, f.failAll
	}
	if err, ok := f.failFor[filename]; ok {
		return nil, err
	}
	return &models.Receipt{ID: "r-" + filename, TenantID: tenantID, Filename: filename}, nil
}

type fakeAuditWriter struct {
	entries []*models.AuditEntry
	err     error
}

func (f *fakeAuditWriter) Create(ctx context.Context, entry *models.AuditEntry) error {
	if f.err != nil {
		return f.err
	}
	f.entries = append(f.entries, entry)
	return nil
}

type sentMail struct {
	To      string
	Subject string
	Body    string
}

type fakeMailer struct {
	sent []sentMail
}

func (f *fakeMailer) Send(ctx context.Context, to, subject, htmlBody string) error {
	f.sent = append(f.sent, sentMail{To: to, Subject: subject, Body: htmlBody})
	return nil
}

type fakeMappings struct {
	mappings map[string]*models.EmailMapping
}

func (f *fakeMappings) GetByAddress(ctx context.Context, address string) (*models.EmailMapping, error) {
	return f.mappings[address], nil
}

func strPtr(s string) *string { return &s }

func floatPtr(v float64) *float64 { return &v }

func amount(v float64) *extraction.Amount {
	return &extraction.Amount{Currency: &v}
}
