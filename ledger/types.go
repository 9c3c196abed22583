package ledger

// Wire types for the external accounting API. Field names follow the
// provider's JSON contract.

type Contact struct {
	ContactID  string `json:"ContactID,omitempty"`
	Name       string `json:"Name"`
	IsSupplier bool   `json:"IsSupplier,omitempty"`
	IsCustomer bool   `json:"IsCustomer,omitempty"`
}

type ContactRef struct {
	ContactID string `json:"ContactID"`
}

type LineItem struct {
	Description string  `json:"Description"`
	Quantity    float64 `json:"Quantity"`
	UnitAmount  float64 `json:"UnitAmount"`
	AccountCode string  `json:"AccountCode"`
	TaxType     string  `json:"TaxType"`
}

type Invoice struct {
	InvoiceID       string     `json:"InvoiceID,omitempty"`
	Type            string     `json:"Type"`
	Contact         ContactRef `json:"Contact"`
	Date            string     `json:"Date,omitempty"`
	DueDate         string     `json:"DueDate,omitempty"`
	LineAmountTypes string     `json:"LineAmountTypes,omitempty"`
	LineItems       []LineItem `json:"LineItems,omitempty"`
	Status          string     `json:"Status,omitempty"`
	CurrencyCode    string     `json:"CurrencyCode,omitempty"`
	AmountDue       float64    `json:"AmountDue,omitempty"`
}

type AccountRef struct {
	AccountID string `json:"AccountID"`
}

type InvoiceRef struct {
	InvoiceID string `json:"InvoiceID"`
}

type Payment struct {
	PaymentID string     `json:"PaymentID,omitempty"`
	Invoice   InvoiceRef `json:"Invoice"`
	Account   AccountRef `json:"Account"`
	Date      string     `json:"Date"`
	Amount    float64    `json:"Amount"`
}

type contactsEnvelope struct {
	Contacts []Contact `json:"Contacts"`
}

type invoicesEnvelope struct {
	Invoices []Invoice `json:"Invoices"`
}

type paymentsEnvelope struct {
	Payments []Payment `json:"Payments"`
}

const (
	// InvoiceTypePayable marks a bill (accounts payable).
	InvoiceTypePayable = "ACCPAY"

	InvoiceStatusDraft      = "DRAFT"
	InvoiceStatusAuthorised = "AUTHORISED"

	LineAmountTypeInclusive = "Inclusive"

	TaxTypeInput = "INPUT"
	TaxTypeNone  = "NONE"

	// DefaultExpenseAccountCode is the account all receipt lines book to.
	DefaultExpenseAccountCode = "310"
)
