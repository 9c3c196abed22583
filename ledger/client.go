package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/ledgerflowhq/ledgerflow/utils"
)

// Pacer gates outbound calls and absorbs observed rate-limit rejections.
type Pacer interface {
	WaitIfNeeded(ctx context.Context) error
	ReportRateLimited()
}

type ClientConfig struct {
	BaseURL string
	Timeout time.Duration
}

// Client talks to the external ledger API over HTTP/JSON with bearer
// authentication. Every request is scoped to one ledger tenant via the
// tenant-scope-id header and passes through the pacer first.
type Client struct {
	baseURL    string
	pacer      Pacer
	httpClient *http.Client
}

func NewClient(config ClientConfig, pacer Pacer) *Client {
	if config.Timeout == 0 {
		config.Timeout = 60 * time.Second
	}
	return &Client{
		baseURL:    config.BaseURL,
		pacer:      pacer,
		httpClient: &http.Client{Timeout: config.Timeout},
	}
}

// Session carries the per-call credentials: a bearer token plus the ledger
// tenant scope it belongs to.
type Session struct {
	AccessToken    string
	LedgerTenantID string
}

func (c *Client) do(ctx context.Context, session Session, method, path string, query url.Values, body, out interface{}) error {
	if err := c.pacer.WaitIfNeeded(ctx); err != nil {
		return err
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+session.AccessToken)
	req.Header.Set("tenant-scope-id", session.LedgerTenantID)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		c.pacer.ReportRateLimited()
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 8192))
		return &utils.UpstreamError{
			Op:         fmt.Sprintf("%s %s", method, path),
			StatusCode: resp.StatusCode,
			Body:       string(data),
		}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%s %s: decode response: %w", method, path, err)
		}
	}
	return nil
}

// SearchContacts runs a name-contains query against the contacts endpoint.
func (c *Client) SearchContacts(ctx context.Context, session Session, nameContains string) ([]Contact, error) {
	query := url.Values{}
	query.Set("where", fmt.Sprintf("Name.Contains(%q)", nameContains))

	var envelope contactsEnvelope
	if err := c.do(ctx, session, http.MethodGet, "/contacts", query, nil, &envelope); err != nil {
		return nil, err
	}
	return envelope.Contacts, nil
}

// CreateContact registers a new supplier contact and returns it with its
// assigned id.
func (c *Client) CreateContact(ctx context.Context, session Session, contact Contact) (*Contact, error) {
	var envelope contactsEnvelope
	err := c.do(ctx, session, http.MethodPut, "/contacts", nil, contactsEnvelope{Contacts: []Contact{contact}}, &envelope)
	if err != nil {
		return nil, err
	}
	if len(envelope.Contacts) == 0 {
		return nil, fmt.Errorf("create contact: empty response")
	}
	return &envelope.Contacts[0], nil
}

// CreateInvoice creates one bill and returns it with its assigned id.
func (c *Client) CreateInvoice(ctx context.Context, session Session, invoice Invoice) (*Invoice, error) {
	var envelope invoicesEnvelope
	err := c.do(ctx, session, http.MethodPost, "/invoices", nil, invoicesEnvelope{Invoices: []Invoice{invoice}}, &envelope)
	if err != nil {
		return nil, err
	}
	if len(envelope.Invoices) == 0 {
		return nil, fmt.Errorf("create invoice: empty response")
	}
	return &envelope.Invoices[0], nil
}

// ListAwaitingPaymentBills returns authorised payable bills ordered by due
// date, filtered to those with a positive amount due.
func (c *Client) ListAwaitingPaymentBills(ctx context.Context, session Session) ([]Invoice, error) {
	query := url.Values{}
	query.Set("where", fmt.Sprintf("Type==%q AND Status==%q", InvoiceTypePayable, InvoiceStatusAuthorised))
	query.Set("order", "DueDate ASC")

	var envelope invoicesEnvelope
	if err := c.do(ctx, session, http.MethodGet, "/invoices", query, nil, &envelope); err != nil {
		return nil, err
	}

	bills := envelope.Invoices[:0]
	for _, inv := range envelope.Invoices {
		if inv.AmountDue > 0 {
			bills = append(bills, inv)
		}
	}
	return bills, nil
}

// CreatePayment applies a payment to one bill.
func (c *Client) CreatePayment(ctx context.Context, session Session, payment Payment) (*Payment, error) {
	var envelope paymentsEnvelope
	err := c.do(ctx, session, http.MethodPut, "/payments", nil, paymentsEnvelope{Payments: []Payment{payment}}, &envelope)
	if err != nil {
		return nil, err
	}
	if len(envelope.Payments) == 0 {
		return nil, fmt.Errorf("create payment: empty response")
	}
	return &envelope.Payments[0], nil
}
