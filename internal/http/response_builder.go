// Package http exposes the ledger as a JSON API.
//
// This file holds the response builder and the error codes every handler
// answers with.

package http

import (
	"context"
	"errors"
	"net/http"

	jsoniter "github.com/json-iterator/go"

	"orcamento/internal/core"
	"orcamento/internal/ledger"
	applog "orcamento/internal/log"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Error codes returned in APIError.Code.
const (
	// Request errors
	ErrInvalidRequest       = "VAL_001" // body or query could not be decoded
	ErrMissingRequiredData  = "VAL_002" // required field absent
	ErrInvalidFormat        = "VAL_003" // field present but malformed
	ErrValidation           = "VAL_004" // domain rule rejected the input
	ErrConfirmationRequired = "VAL_005" // destructive call without confirm=true
	ErrBodyTooLarge         = "VAL_006"

	// Resource errors
	ErrNotFound         = "RES_001"
	ErrMethodNotAllowed = "RES_002"
	ErrConflict         = "RES_003" // another process changed the ledger first

	// Traffic errors
	ErrRateLimited = "REQ_001"

	// Server errors
	ErrInternalServer = "SRV_001"
	ErrStorage        = "SRV_002"
	ErrUnavailable    = "SRV_003"
)

var httpStatusMap = map[string]int{
	ErrInvalidRequest:       http.StatusBadRequest,
	ErrMissingRequiredData:  http.StatusBadRequest,
	ErrInvalidFormat:        http.StatusBadRequest,
	ErrValidation:           http.StatusUnprocessableEntity,
	ErrConfirmationRequired: http.StatusPreconditionRequired,
	ErrBodyTooLarge:         http.StatusRequestEntityTooLarge,
	ErrNotFound:             http.StatusNotFound,
	ErrMethodNotAllowed:     http.StatusMethodNotAllowed,
	ErrConflict:             http.StatusConflict,
	ErrRateLimited:          http.StatusTooManyRequests,
	ErrInternalServer:       http.StatusInternalServerError,
	ErrStorage:              http.StatusInternalServerError,
	ErrUnavailable:          http.StatusServiceUnavailable,
}

// APIError is the body of every non-2xx response.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
	Details any    `json:"details,omitempty"`
}

// StatusFor returns the HTTP status of an error code.
func StatusFor(code string) int {
	if status, ok := httpStatusMap[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// ResponseBuilder provides a fluent API for building JSON responses.
type ResponseBuilder struct {
	statusCode int
	headers    map[string]string
	body       any
	raw        []byte
}

// NewResponse creates a builder with a 200 status.
func NewResponse() *ResponseBuilder {
	return &ResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *ResponseBuilder) Status(code int) *ResponseBuilder {
	b.statusCode = code
	return b
}

func (b *ResponseBuilder) Header(name, value string) *ResponseBuilder {
	b.headers[name] = value
	return b
}

// JSON sets a value to be encoded as the body.
func (b *ResponseBuilder) JSON(v any) *ResponseBuilder {
	b.body = v
	b.raw = nil
	return b
}

// Raw sets an already encoded JSON body.
func (b *ResponseBuilder) Raw(doc []byte) *ResponseBuilder {
	b.raw = doc
	b.body = nil
	return b
}

// Attachment marks the body as a download named filename.
func (b *ResponseBuilder) Attachment(filename string) *ResponseBuilder {
	return b.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
}

// Write sends the response. A body that fails to encode becomes a 500.
func (b *ResponseBuilder) Write(w http.ResponseWriter) {
	payload := b.raw
	if b.body != nil {
		var err error
		payload, err = json.Marshal(b.body)
		if err != nil {
			WriteError(w, ErrInternalServer, "failed to encode response", nil)
			return
		}
	}

	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if b.statusCode == http.StatusNoContent {
		w.WriteHeader(b.statusCode)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	_, _ = w.Write(payload)
}

// WriteError writes an APIError with the status mapped from code.
func WriteError(w http.ResponseWriter, code, message string, details any) {
	NewResponse().
		Status(StatusFor(code)).
		JSON(APIError{Code: code, Message: message, Details: details}).
		Write(w)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	NewResponse().Status(status).JSON(v).Write(w)
}

func noContent(w http.ResponseWriter) {
	NewResponse().Status(http.StatusNoContent).Write(w)
}

// validationErrors are domain errors caused by the caller's input.
var validationErrors = []error{
	core.ErrInvalidAmount,
	core.ErrEmptyDescription,
	core.ErrDescriptionLong,
	core.ErrEmptyCategory,
	core.ErrEmptyCardName,
	core.ErrEmptyBank,
	core.ErrCardRequired,
	core.ErrInvalidStatus,
	core.ErrInvalidDate,
	core.ErrInvalidPeriod,
	core.ErrInvalidThreshold,
	core.ErrInvalidMonthStartDay,
	core.ErrInvalidCurrency,
	core.ErrDuplicateCategory,
	ledger.ErrInvalidExpenseKind,
	ledger.ErrInvalidFilter,
}

// classify maps a ledger error to an API error code.
func classify(err error) string {
	if errors.Is(err, ledger.ErrNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, ledger.ErrConflict) {
		return ErrConflict
	}
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return ErrValidation
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ErrUnavailable
	}
	return ErrStorage
}

// writeLedgerError answers a failed ledger operation. Client errors carry the
// domain message; anything else is logged and hidden behind a generic one.
func writeLedgerError(w http.ResponseWriter, r *http.Request, op string, err error) {
	code := classify(err)
	switch code {
	case ErrNotFound, ErrValidation, ErrConflict:
		WriteError(w, code, err.Error(), nil)
	default:
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Ledger operation failed",
			applog.FieldOperation, op,
			applog.FieldError, err)
		WriteError(w, code, "operation failed", nil)
	}
}
