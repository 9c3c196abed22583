package services

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/ledgerflowhq/ledgerflow/ledger"
	"github.com/ledgerflowhq/ledgerflow/models"
	"github.com/ledgerflowhq/ledgerflow/utils"
)

// AutoPayTenantSource lists tenants eligible for the auto-pay sweep.
type AutoPayTenantSource interface {
	ListActiveWithAutoPay(ctx context.Context) ([]*models.Tenant, error)
}

// PaymentAPI is the slice of the ledger client the auto-pay sweep needs.
type PaymentAPI interface {
	ListAwaitingPaymentBills(ctx context.Context, session ledger.Session) ([]ledger.Invoice, error)
	CreatePayment(ctx context.Context, session ledger.Session, payment ledger.Payment) (*ledger.Payment, error)
}

// AuditWriter appends immutable audit entries.
type AuditWriter interface {
	Create(ctx context.Context, entry *models.AuditEntry) error
}

// AutoPaySweeper pays each awaiting bill from the tenant's configured bank
// account, emitting one audit entry per payment. A single bill's failure is
// logged and does not stop the batch; earlier payments are never rolled back.
type AutoPaySweeper struct {
	tenants      AutoPayTenantSource
	integrations IntegrationSource
	tokens       TokenSource
	api          PaymentAPI
	audit        AuditWriter
	logger       *utils.Logger

	now func() time.Time
}

func NewAutoPaySweeper(tenants AutoPayTenantSource, integrations IntegrationSource, tokens TokenSource, api PaymentAPI, audit AuditWriter) *AutoPaySweeper {
	return &AutoPaySweeper{
		tenants:      tenants,
		integrations: integrations,
		tokens:       tokens,
		api:          api,
		audit:        audit,
		logger:       utils.NewLogger("autopay"),
		now:          time.Now,
	}
}

func (s *AutoPaySweeper) Run(ctx context.Context) {
	tenants, err := s.tenants.ListActiveWithAutoPay(ctx)
	if err != nil {
		s.logger.Error(ctx, "failed to list tenants for auto-pay", map[string]interface{}{"error": err.Error()})
		return
	}

	for _, tenant := range tenants {
		if ctx.Err() != nil {
			return
		}
		s.payTenant(ctx, tenant)
	}
}

func (s *AutoPaySweeper) payTenant(ctx context.Context, tenant *models.Tenant) {
	ctx = utils.WithTenantID(ctx, tenant.ID)

	integration, err := s.integrations.GetByTenant(ctx, tenant.ID)
	if err != nil {
		s.logger.Error(ctx, "failed to load integration", map[string]interface{}{"error": err.Error()})
		return
	}
	if integration == nil {
		s.logger.Info(ctx, "no ledger integration, skipping auto-pay", nil)
		return
	}

	token, err := s.tokens.Token(ctx, tenant.ID, integration)
	if err != nil {
		s.logger.Error(ctx, "failed to obtain token for auto-pay", map[string]interface{}{"error": err.Error()})
		return
	}
	session := ledger.Session{AccessToken: token, LedgerTenantID: integration.LedgerTenantID}

	bankAccountID := tenant.Settings.BankAccountID
	if bankAccountID == "" {
		s.logger.Info(ctx, "no bank account configured, skipping auto-pay", nil)
		return
	}

	bills, err := s.api.ListAwaitingPaymentBills(ctx, session)
	if err != nil {
		s.logger.Error(ctx, "failed to list awaiting bills", map[string]interface{}{"error": err.Error()})
		return
	}

	for _, bill := range bills {
		if err := s.payBill(ctx, tenant, session, bill, bankAccountID); err != nil {
			s.logger.Error(ctx, "auto-payment failed", map[string]interface{}{
				"invoice_id": bill.InvoiceID,
				"error":      err.Error(),
			})
		}
	}
}

func (s *AutoPaySweeper) payBill(ctx context.Context, tenant *models.Tenant, session ledger.Session, bill ledger.Invoice, bankAccountID string) error {
	paymentDate := s.paymentDate(bill.DueDate)

	_, err := s.api.CreatePayment(ctx, session, ledger.Payment{
		Invoice: ledger.InvoiceRef{InvoiceID: bill.InvoiceID},
		Account: ledger.AccountRef{AccountID: bankAccountID},
		Date:    paymentDate,
		Amount:  bill.AmountDue,
	})
	if err != nil {
		return &utils.PaymentCreationError{InvoiceID: bill.InvoiceID, Err: err}
	}

	s.logger.Info(ctx, "created auto-payment", map[string]interface{}{
		"invoice_id": bill.InvoiceID,
		"amount":     bill.AmountDue,
	})

	entry := &models.AuditEntry{
		TenantID: tenant.ID,
		Action:   models.AuditActionAutoPayment,
		Details: models.JSON{
			"invoice_id":   bill.InvoiceID,
			"amount":       bill.AmountDue,
			"payment_date": paymentDate,
		},
	}
	if err := s.audit.Create(ctx, entry); err != nil {
		// The payment went through; a lost audit entry is logged, not fatal.
		s.logger.Error(ctx, "failed to write audit entry", map[string]interface{}{
			"invoice_id": bill.InvoiceID,
			"error":      err.Error(),
		})
	}
	return nil
}

// paymentDate uses the bill's due date when it is parseable, today otherwise.
// Due dates arrive either as ISO dates or in the legacy /Date(ms)/ form.
func (s *AutoPaySweeper) paymentDate(dueDate string) string {
	if strings.HasPrefix(dueDate, "/Date(") && strings.HasSuffix(dueDate, ")/") {
		inner := strings.TrimSuffix(strings.TrimPrefix(dueDate, "/Date("), ")/")
		if plus := strings.IndexAny(inner, "+-"); plus > 0 {
			inner = inner[:plus]
		}
		if ms, err := strconv.ParseInt(inner, 10, 64); err == nil {
			return time.UnixMilli(ms).UTC().Format("2006-01-02")
		}
	}
	if len(dueDate) >= 10 {
		if _, err := time.Parse("2006-01-02", dueDate[:10]); err == nil {
			return dueDate[:10]
		}
	}
	return s.now().UTC().Format("2006-01-02")
}
