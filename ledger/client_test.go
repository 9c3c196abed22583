package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ledgerflowhq/ledgerflow/utils"
)

type recordingPacer struct {
	waits      int
	rejections int
	waitErr    error
}

func (p *recordingPacer) WaitIfNeeded(ctx context.Context) error {
	p.waits++
	return p.waitErr
}

func (p *recordingPacer) ReportRateLimited() {
	p.rejections++
}

func TestClientSendsSessionHeaders(t *testing.T) {
	var gotAuth, gotScope string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotScope = r.Header.Get("tenant-scope-id")
		json.NewEncoder(w).Encode(contactsEnvelope{})
	}))
	defer server.Close()

	pacer := &recordingPacer{}
	client := NewClient(ClientConfig{BaseURL: server.URL}, pacer)
	session := Session{AccessToken: "tok-123", LedgerTenantID: "org-9"}

	if _, err := client.SearchContacts(context.Background(), session, "Coffee"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotAuth != "Bearer tok-123" {
		t.Errorf("expected bearer header, got %q", gotAuth)
	}
	if gotScope != "org-9" {
		t.Errorf("expected tenant scope header, got %q", gotScope)
	}
	if pacer.waits != 1 {
		t.Errorf("expected one pacer wait, got %d", pacer.waits)
	}
}

func TestClientReportsRateLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	pacer := &recordingPacer{}
	client := NewClient(ClientConfig{BaseURL: server.URL}, pacer)

	_, err := client.SearchContacts(context.Background(), Session{}, "Coffee")
	var upstream *utils.UpstreamError
	if !errors.As(err, &upstream) || upstream.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected 429 upstream error, got %v", err)
	}
	if pacer.rejections != 1 {
		t.Errorf("expected rejection reported to pacer, got %d", pacer.rejections)
	}
}

func TestClientPacerErrorShortCircuits(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	pacer := &recordingPacer{waitErr: context.Canceled}
	client := NewClient(ClientConfig{BaseURL: server.URL}, pacer)

	if _, err := client.SearchContacts(context.Background(), Session{}, "x"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context error, got %v", err)
	}
	if called {
		t.Error("request must not be sent when the pacer refuses")
	}
}

func TestListAwaitingPaymentBills(t *testing.T) {
	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("where")
		json.NewEncoder(w).Encode(invoicesEnvelope{Invoices: []Invoice{
			{InvoiceID: "inv-1", AmountDue: 25},
			{InvoiceID: "inv-2", AmountDue: 0},
			{InvoiceID: "inv-3", AmountDue: 0.01},
		}})
	}))
	defer server.Close()

	client := NewClient(ClientConfig{BaseURL: server.URL}, &recordingPacer{})
	bills, err := client.ListAwaitingPaymentBills(context.Background(), Session{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(bills) != 2 {
		t.Fatalf("expected fully-paid bills filtered out, got %d", len(bills))
	}
	if bills[0].InvoiceID != "inv-1" || bills[1].InvoiceID != "inv-3" {
		t.Errorf("unexpected bills: %+v", bills)
	}
	if gotQuery != `Type=="ACCPAY" AND Status=="AUTHORISED"` {
		t.Errorf("unexpected where clause %q", gotQuery)
	}
}

func TestCreateInvoiceUnwrapsEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		var envelope invoicesEnvelope
		json.NewDecoder(r.Body).Decode(&envelope)
		envelope.Invoices[0].InvoiceID = "inv-assigned"
		json.NewEncoder(w).Encode(envelope)
	}))
	defer server.Close()

	client := NewClient(ClientConfig{BaseURL: server.URL}, &recordingPacer{})
	created, err := client.CreateInvoice(context.Background(), Session{}, Invoice{Type: InvoiceTypePayable})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created.InvoiceID != "inv-assigned" {
		t.Errorf("expected assigned id, got %q", created.InvoiceID)
	}
}

func TestClientErrorCarriesBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"Message":"invalid account code"}`))
	}))
	defer server.Close()

	client := NewClient(ClientConfig{BaseURL: server.URL}, &recordingPacer{})
	_, err := client.CreateInvoice(context.Background(), Session{}, Invoice{})

	var upstream *utils.UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("expected upstream error, got %v", err)
	}
	if upstream.StatusCode != http.StatusBadRequest || upstream.Body == "" {
		t.Errorf("expected status and body preserved, got %+v", upstream)
	}
}
