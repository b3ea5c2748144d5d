package ingest

import (
	"errors"
	"fmt"
	"strings"

	"github.com/reseller/backend/internal/domain/shared"
)

// Ingestion error codes
const (
	ErrCodeIngestUnknownKind   = "ERR_INGEST_UNKNOWN_KIND"
	ErrCodeIngestMalformed     = "ERR_INGEST_MALFORMED_RECORD"
	ErrCodeIngestRequiredField = "ERR_INGEST_REQUIRED_FIELD"
	ErrCodeIngestInvalidType   = "ERR_INGEST_INVALID_TYPE"
	ErrCodeIngestInvalidEAN    = "ERR_INGEST_INVALID_EAN"
	ErrCodeIngestInvalidLength = "ERR_INGEST_INVALID_LENGTH"
	ErrCodeIngestInvalidRange  = "ERR_INGEST_INVALID_RANGE"
	ErrCodeIngestConflict      = "ERR_INGEST_CONFLICTING_FIELDS"
	ErrCodeIngestValidation    = "ERR_INGEST_VALIDATION"
)

// IngestionError describes why one field of one input row was rejected.
// errors.Is(err, shared.ErrIngestion) holds for every IngestionError.
type IngestionError struct {
	Row     int    `json:"row"`
	Field   string `json:"field,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Value   string `json:"value,omitempty"`
}

// Error implements the error interface
func (e *IngestionError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("row %d, field '%s': %s", e.Row, e.Field, e.Message)
	}
	return fmt.Sprintf("row %d: %s", e.Row, e.Message)
}

// Unwrap returns shared.ErrIngestion
func (e *IngestionError) Unwrap() error {
	return shared.ErrIngestion
}

func newIngestionError(row int, field, code, message, value string) *IngestionError {
	return &IngestionError{Row: row, Field: field, Code: code, Message: message, Value: value}
}

// RowErrors holds every problem found in one row
type RowErrors []*IngestionError

// Error implements the error interface
func (r RowErrors) Error() string {
	msgs := make([]string, len(r))
	for i, e := range r {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}

// Unwrap exposes the individual errors to errors.Is and errors.As
func (r RowErrors) Unwrap() []error {
	out := make([]error, len(r))
	for i, e := range r {
		out[i] = e
	}
	return out
}

// AsIngestionErrors flattens err into IngestionErrors. Errors that are not
// ingestion errors are reported against row with a generic code.
func AsIngestionErrors(row int, err error) []*IngestionError {
	if err == nil {
		return nil
	}
	var rowErrs RowErrors
	if errors.As(err, &rowErrs) {
		return rowErrs
	}
	var single *IngestionError
	if errors.As(err, &single) {
		return []*IngestionError{single}
	}
	return []*IngestionError{newIngestionError(row, "", ErrCodeIngestValidation, err.Error(), "")}
}

// ErrorCollection gathers row errors up to a limit while counting them all
type ErrorCollection struct {
	errors     []*IngestionError
	maxErrors  int
	totalCount int
}

// NewErrorCollection creates a new ErrorCollection with a maximum error limit
func NewErrorCollection(maxErrors int) *ErrorCollection {
	if maxErrors <= 0 {
		maxErrors = 100
	}
	return &ErrorCollection{
		errors:    make([]*IngestionError, 0),
		maxErrors: maxErrors,
	}
}

// Add adds errors to the collection
func (ec *ErrorCollection) Add(errs ...*IngestionError) {
	for _, err := range errs {
		ec.totalCount++
		if len(ec.errors) < ec.maxErrors {
			ec.errors = append(ec.errors, err)
		}
	}
}

// Errors returns the collected errors
func (ec *ErrorCollection) Errors() []*IngestionError {
	return ec.errors
}

// TotalCount returns the total number of errors including those not collected
func (ec *ErrorCollection) TotalCount() int {
	return ec.totalCount
}

// HasErrors returns true if there are any errors
func (ec *ErrorCollection) HasErrors() bool {
	return ec.totalCount > 0
}

// IsTruncated returns true if some errors were not collected due to the limit
func (ec *ErrorCollection) IsTruncated() bool {
	return ec.totalCount > ec.maxErrors
}

// ErrorSummary returns the number of collected errors per code
func (ec *ErrorCollection) ErrorSummary() map[string]int {
	summary := make(map[string]int)
	for _, err := range ec.errors {
		summary[err.Code]++
	}
	return summary
}

// String returns a string representation of all errors
func (ec *ErrorCollection) String() string {
	if !ec.HasErrors() {
		return "no errors"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d error(s) found", ec.totalCount))
	if ec.IsTruncated() {
		sb.WriteString(fmt.Sprintf(" (showing first %d)", ec.maxErrors))
	}
	sb.WriteString(":\n")
	for _, err := range ec.errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}
