package utils

import (
	"errors"
	"fmt"
	"net/http"
)

type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return e.Message
}

func NewAPIError(code int, message string) *APIError {
	return &APIError{
		Code:    code,
		Message: message,
	}
}

func NewAPIErrorWithDetails(code int, message, details string) *APIError {
	return &APIError{
		Code:    code,
		Message: message,
		Details: details,
	}
}

var (
	ErrInvalidRequest     = NewAPIError(http.StatusBadRequest, "Invalid request")
	ErrUnauthorized       = NewAPIError(http.StatusUnauthorized, "Unauthorized")
	ErrNotFound           = NewAPIError(http.StatusNotFound, "Resource not found")
	ErrConflict           = NewAPIError(http.StatusConflict, "Resource conflict")
	ErrTooManyRequests    = NewAPIError(http.StatusTooManyRequests, "Too many requests")
	ErrInternalServer     = NewAPIError(http.StatusInternalServerError, "Internal server error")
	ErrServiceUnavailable = NewAPIError(http.StatusServiceUnavailable, "Service unavailable")
)

// Pipeline error kinds. Each fallible step of the ingestion pipeline reports
// one of these so the caller can decide terminal-vs-retry without string
// matching.
var (
	// ErrProcessingDisabled: tenant missing or has opted out. Not retryable.
	ErrProcessingDisabled = errors.New("processing disabled for tenant")

	// ErrExtractionFailed: document understanding call failed or returned
	// unusable data. The upload is left in place for a later sweep.
	ErrExtractionFailed = errors.New("receipt extraction failed")

	// ErrNotConfigured: tenant has no ledger integration. A benign no-op for
	// the sync engine.
	ErrNotConfigured = errors.New("ledger integration not configured")

	// ErrAuthFailed: token missing, expired beyond refresh, or refresh
	// rejected. Retryable on the next trigger, not within this one.
	ErrAuthFailed = errors.New("ledger authentication failed")

	// ErrContactResolution: both contact search and contact create failed.
	ErrContactResolution = errors.New("contact resolution failed")
)

// UpstreamError carries the status and body of a non-success response from
// the external ledger API.
type UpstreamError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: upstream returned %d: %s", e.Op, e.StatusCode, e.Body)
}

// InvoiceCreationError tags a failed bill creation, wrapping the upstream
// response when there was one.
type InvoiceCreationError struct {
	Err error
}

func (e *InvoiceCreationError) Error() string {
	return fmt.Sprintf("invoice creation failed: %v", e.Err)
}

func (e *InvoiceCreationError) Unwrap() error {
	return e.Err
}

// PaymentCreationError tags a failed auto-payment for one bill.
type PaymentCreationError struct {
	InvoiceID string
	Err       error
}

func (e *PaymentCreationError) Error() string {
	return fmt.Sprintf("payment creation failed for invoice %s: %v", e.InvoiceID, e.Err)
}

func (e *PaymentCreationError) Unwrap() error {
	return e.Err
}

func WrapError(err error, message string) error {
	return fmt.Errorf("%s: %w", message, err)
}
