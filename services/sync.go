package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/ledgerflowhq/ledgerflow/ledger"
	"github.com/ledgerflowhq/ledgerflow/models"
	"github.com/ledgerflowhq/ledgerflow/utils"
)

const (
	maxLineDescriptionLen = 4000
	defaultCurrencyCode   = "AUD"
)

// IntegrationSource loads a tenant's ledger connection; (nil, nil) means the
// tenant never configured one.
type IntegrationSource interface {
	GetByTenant(ctx context.Context, tenantID string) (*models.Integration, error)
}

// TokenSource yields a usable access token for a tenant's integration.
type TokenSource interface {
	Token(ctx context.Context, tenantID string, integration *models.Integration) (string, error)
}

// LedgerAPI is the slice of the ledger client the sync engine needs.
type LedgerAPI interface {
	SearchContacts(ctx context.Context, session ledger.Session, nameContains string) ([]ledger.Contact, error)
	CreateContact(ctx context.Context, session ledger.Session, contact ledger.Contact) (*ledger.Contact, error)
	CreateInvoice(ctx context.Context, session ledger.Session, invoice ledger.Invoice) (*ledger.Invoice, error)
}

// SyncService pushes one receipt into the external ledger as a draft bill.
// It never retries internally; retry is the caller's responsibility on the
// next trigger.
type SyncService struct {
	integrations IntegrationSource
	tokens       TokenSource
	api          LedgerAPI
	logger       *utils.Logger
}

func NewSyncService(integrations IntegrationSource, tokens TokenSource, api LedgerAPI) *SyncService {
	return &SyncService{
		integrations: integrations,
		tokens:       tokens,
		api:          api,
		logger:       utils.NewLogger("sync"),
	}
}

// Sync resolves the merchant contact and creates a draft payable bill.
// Returns the created invoice id, or a tagged error: ErrNotConfigured,
// ErrAuthFailed, ErrContactResolution, or InvoiceCreationError.
func (s *SyncService) Sync(ctx context.Context, tenant *models.Tenant, receipt *models.Receipt) (string, error) {
	integration, err := s.integrations.GetByTenant(ctx, tenant.ID)
	if err != nil {
		return "", fmt.Errorf("load integration: %w", err)
	}
	if integration == nil {
		return "", utils.ErrNotConfigured
	}

	token, err := s.tokens.Token(ctx, tenant.ID, integration)
	if err != nil {
		return "", err
	}
	session := ledger.Session{AccessToken: token, LedgerTenantID: integration.LedgerTenantID}

	contactID, err := s.resolveContact(ctx, session, receipt.Merchant)
	if err != nil {
		return "", err
	}

	currency := tenant.Settings.CurrencyCode
	if currency == "" {
		currency = defaultCurrencyCode
	}
	date := receipt.TransactionDate.Format("2006-01-02")

	invoice := ledger.Invoice{
		Type:            ledger.InvoiceTypePayable,
		Contact:         ledger.ContactRef{ContactID: contactID},
		Date:            date,
		DueDate:         date,
		LineAmountTypes: ledger.LineAmountTypeInclusive,
		LineItems:       buildLineItems(receipt),
		Status:          ledger.InvoiceStatusDraft,
		CurrencyCode:    currency,
	}

	created, err := s.api.CreateInvoice(ctx, session, invoice)
	if err != nil {
		return "", &utils.InvoiceCreationError{Err: err}
	}

	s.logger.Info(ctx, "created draft bill", map[string]interface{}{
		"tenant_id":  tenant.ID,
		"receipt_id": receipt.ID,
		"invoice_id": created.InvoiceID,
	})
	return created.InvoiceID, nil
}

// resolveContact finds the merchant by exact case-insensitive name among
// name-contains search results, creating a supplier contact when absent.
// Search-before-create keeps resolution idempotent under retries.
func (s *SyncService) resolveContact(ctx context.Context, session ledger.Session, merchant string) (string, error) {
	contacts, searchErr := s.api.SearchContacts(ctx, session, merchant)
	if searchErr == nil {
		for _, contact := range contacts {
			if strings.EqualFold(contact.Name, merchant) {
				return contact.ContactID, nil
			}
		}
	}

	created, createErr := s.api.CreateContact(ctx, session, ledger.Contact{
		Name:       merchant,
		IsSupplier: true,
		IsCustomer: false,
	})
	if createErr != nil {
		if searchErr != nil {
			return "", fmt.Errorf("%w: search: %v, create: %v", utils.ErrContactResolution, searchErr, createErr)
		}
		return "", fmt.Errorf("%w: create: %v", utils.ErrContactResolution, createErr)
	}
	return created.ContactID, nil
}

// buildLineItems maps the receipt's itemization to bill lines, or emits one
// synthetic line for the total so every synced receipt produces a non-empty
// bill.
func buildLineItems(receipt *models.Receipt) []ledger.LineItem {
	taxType := ledger.TaxTypeNone
	if receipt.Tax > 0 {
		taxType = ledger.TaxTypeInput
	}

	if len(receipt.Items) == 0 {
		return []ledger.LineItem{{
			Description: fmt.Sprintf("%s - %s", receipt.Merchant, receipt.TransactionDate.Format("2006-01-02")),
			Quantity:    1,
			UnitAmount:  receipt.Total,
			AccountCode: ledger.DefaultExpenseAccountCode,
			TaxType:     taxType,
		}}
	}

	lines := make([]ledger.LineItem, 0, len(receipt.Items))
	for _, item := range receipt.Items {
		description := item.Description
		if runes := []rune(description); len(runes) > maxLineDescriptionLen {
			description = string(runes[:maxLineDescriptionLen])
		}
		lines = append(lines, ledger.LineItem{
			Description: description,
			Quantity:    item.Quantity,
			UnitAmount:  item.UnitAmount,
			AccountCode: ledger.DefaultExpenseAccountCode,
			TaxType:     taxType,
		})
	}
	return lines
}
