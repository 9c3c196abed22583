package extraction

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// RawLineItem is one itemization row as reported by the document
// understanding service. Every field is optional.
type RawLineItem struct {
	Description *string  `json:"description"`
	Quantity    *float64 `json:"quantity"`
	TotalPrice  *Amount  `json:"total_price"`
}

// Amount carries either a currency-typed or a plain-numeric value, depending
// on what the extractor recognized.
type Amount struct {
	Currency *float64 `json:"currency_amount"`
	Number   *float64 `json:"number"`
}

// Value resolves the currency-typed field first, then the numeric one.
func (a *Amount) Value() (float64, bool) {
	if a == nil {
		return 0, false
	}
	if a.Currency != nil {
		return *a.Currency, true
	}
	if a.Number != nil {
		return *a.Number, true
	}
	return 0, false
}

// RawDocument is the extractor's typed output for one receipt image.
type RawDocument struct {
	MerchantName    *string       `json:"merchant_name"`
	VendorName      *string       `json:"vendor_name"`
	TransactionDate *string       `json:"transaction_date"`
	Total           *Amount       `json:"total"`
	Items           []RawLineItem `json:"items"`
}

// Analyzer is the document understanding boundary: a black-box extractor
// returning typed, individually optional fields.
type Analyzer interface {
	Analyze(ctx context.Context, content []byte) (*RawDocument, error)
}

type ClientConfig struct {
	Endpoint string
	APIKey   string
	Model    string
	Timeout  time.Duration
}

// Client calls an HTTP document-intelligence endpoint with a prebuilt
// receipt model.
type Client struct {
	endpoint   string
	apiKey     string
	model      string
	httpClient *http.Client
}

func NewClient(config ClientConfig) *Client {
	if config.Model == "" {
		config.Model = "prebuilt-receipt"
	}
	if config.Timeout == 0 {
		config.Timeout = 60 * time.Second
	}
	return &Client{
		endpoint:   config.Endpoint,
		apiKey:     config.APIKey,
		model:      config.Model,
		httpClient: &http.Client{Timeout: config.Timeout},
	}
}

type analyzeRequest struct {
	Model       string `json:"model"`
	BytesSource string `json:"bytes_source"`
}

type analyzeResponse struct {
	Documents []RawDocument `json:"documents"`
}

func (c *Client) Analyze(ctx context.Context, content []byte) (*RawDocument, error) {
	body, err := json.Marshal(analyzeRequest{
		Model:       c.model,
		BytesSource: base64.StdEncoding.EncodeToString(content),
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/analyze", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Ocp-Apim-Subscription-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("analyze request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("analyze returned %d: %s", resp.StatusCode, string(data))
	}

	var result analyzeResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("analyze response decode failed: %w", err)
	}
	if len(result.Documents) == 0 {
		return &RawDocument{}, nil
	}
	return &result.Documents[0], nil
}
