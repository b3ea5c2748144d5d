package shared

import "errors"

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Engine error kinds. Callers attach detail with fmt.Errorf("%w: ...") and
// match with errors.Is.
var (
	ErrNotFound              = NewDomainError("NOT_FOUND", "Resource not found")
	ErrInvalidInput          = NewDomainError("INVALID_INPUT", "Invalid input provided")
	ErrMissingTaxRate        = NewDomainError("MISSING_TAX_RATE", "No VAT rate resolves for product and country")
	ErrMissingReferralFee    = NewDomainError("MISSING_REFERRAL_FEE", "No referral fee resolves for product and country")
	ErrMissingExchangeRate   = NewDomainError("MISSING_EXCHANGE_RATE", "No exchange rate for currency and date")
	ErrInvalidReferenceData  = NewDomainError("INVALID_REFERENCE_DATA", "Reference data violates an integrity rule")
	ErrDanglingReference     = NewDomainError("DANGLING_REFERENCE", "Reference points to a missing entity")
	ErrInsufficientStock     = NewDomainError("INSUFFICIENT_STOCK", "Insufficient stock available")
	ErrOverReceipt           = NewDomainError("OVER_RECEIPT", "Received quantity exceeds shipped quantity")
	ErrBelowMinimumThreshold = NewDomainError("BELOW_MINIMUM_THRESHOLD", "Price is below the minimum threshold")
	ErrLockTimeout           = NewDomainError("LOCK_TIMEOUT", "Timed out waiting for stock lock")
	ErrDriftDetected         = NewDomainError("DRIFT_DETECTED", "Reported stock diverges from ledger stock")
	ErrIngestion             = NewDomainError("INGESTION_ERROR", "Malformed ingestion record")
	ErrConcurrencyConflict   = NewDomainError("CONCURRENCY_CONFLICT", "Resource was modified by another process")
	ErrOfferNotSaved         = NewDomainError("OFFER_NOT_SAVED", "Priced offer could not be stored")
)

// CodeOf returns the DomainError code wrapped in err, or "" if there is none.
func CodeOf(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// IsRetryable reports whether the operation that produced err may succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrLockTimeout) || errors.Is(err, ErrConcurrencyConflict)
}
