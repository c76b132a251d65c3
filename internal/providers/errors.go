// internal/providers/errors.go
package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/spar65/aiassessmenttool/internal/appconfig"
)

// ErrorCategory tags a vendor failure so callers can tell problems with the
// user's own provider account apart from everything else.
type ErrorCategory string

const (
	// CategoryInvalidKey means the key failed format validation before any network call.
	CategoryInvalidKey ErrorCategory = "invalid_key"
	// CategoryAuth covers 401/403 responses from the vendor.
	CategoryAuth ErrorCategory = "auth"
	// CategoryRateLimit covers 429 and textual rate-limit markers.
	CategoryRateLimit ErrorCategory = "rate_limit"
	// CategoryTimeout covers requests abandoned at the 30-second deadline.
	CategoryTimeout ErrorCategory = "timeout"
	// CategorySafetyBlock marks responses suppressed by the vendor's safety filter.
	CategorySafetyBlock ErrorCategory = "safety_block"
	// CategoryInsufficientCredit marks quota/billing exhaustion on the user's account.
	CategoryInsufficientCredit ErrorCategory = "insufficient_credit"
	// CategoryUnknownModel marks a model name the vendor does not recognize.
	CategoryUnknownModel ErrorCategory = "unknown_model"
	// CategoryVendor is the catch-all for other vendor-reported errors.
	CategoryVendor ErrorCategory = "vendor"
)

// Error is a typed vendor failure carrying the vendor's own message rather
// than a bare status code.
type Error struct {
	Vendor     appconfig.Provider
	Category   ErrorCategory
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: %s (%d): %s", e.Vendor, e.Category, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Vendor, e.Category, e.Message)
}

// Transient reports whether the failure is worth retrying. Auth and
// malformed-request failures retry to the same outcome and only waste quota.
func (e *Error) Transient() bool {
	return e.Category == CategoryRateLimit || e.Category == CategoryTimeout
}

// NewInvalidKeyError builds the typed error returned when a key fails format
// validation.
func NewInvalidKeyError(vendor appconfig.Provider, err error) *Error {
	return &Error{Vendor: vendor, Category: CategoryInvalidKey, Message: err.Error()}
}

// NewTimeoutError builds the typed error for a request abandoned at its deadline.
func NewTimeoutError(vendor appconfig.Provider, timeoutSeconds int) *Error {
	return &Error{
		Vendor:   vendor,
		Category: CategoryTimeout,
		Message:  fmt.Sprintf("request timed out after %d seconds", timeoutSeconds),
	}
}

// ClassifyStatus maps a non-success HTTP status plus the vendor's error
// message to a typed error. The textual checks catch vendors that report
// quota or safety conditions under generic status codes.
func ClassifyStatus(vendor appconfig.Provider, status int, message string) *Error {
	category := CategoryVendor
	lower := strings.ToLower(message)
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		category = CategoryAuth
	case status == http.StatusTooManyRequests:
		category = CategoryRateLimit
	case status == http.StatusPaymentRequired,
		strings.Contains(lower, "insufficient") && (strings.Contains(lower, "credit") || strings.Contains(lower, "quota") || strings.Contains(lower, "balance")),
		strings.Contains(lower, "billing"):
		category = CategoryInsufficientCredit
	case status == http.StatusNotFound && strings.Contains(lower, "model"),
		strings.Contains(lower, "model not found"),
		strings.Contains(lower, "unknown model"):
		category = CategoryUnknownModel
	case strings.Contains(lower, "safety"), strings.Contains(lower, "blocked"):
		category = CategorySafetyBlock
	case strings.Contains(lower, "rate limit"), strings.Contains(lower, "too many requests"):
		category = CategoryRateLimit
	}
	if strings.TrimSpace(message) == "" {
		message = http.StatusText(status)
	}
	return &Error{Vendor: vendor, Category: category, StatusCode: status, Message: message}
}

// WrapTransport converts low-level transport failures to typed errors,
// distinguishing the request-timeout condition from generic network errors.
func WrapTransport(vendor appconfig.Provider, err error, timeoutSeconds int) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || strings.Contains(strings.ToLower(err.Error()), "context deadline exceeded") {
		return NewTimeoutError(vendor, timeoutSeconds)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return &Error{Vendor: vendor, Category: CategoryVendor, Message: err.Error()}
}

// CategoryOf extracts the error category, or CategoryVendor for untyped errors.
func CategoryOf(err error) ErrorCategory {
	var typed *Error
	if errors.As(err, &typed) {
		return typed.Category
	}
	return CategoryVendor
}

// IsTransient reports whether an error should be absorbed by local retry.
func IsTransient(err error) bool {
	var typed *Error
	if errors.As(err, &typed) {
		return typed.Transient()
	}
	return false
}

// IsRateLimited reports whether an error carries rate-limit indicators:
// a typed 429 category, or textual markers on untyped errors.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	var typed *Error
	if errors.As(err, &typed) {
		return typed.Category == CategoryRateLimit
	}
	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, "429") ||
		strings.Contains(lower, "rate") ||
		strings.Contains(lower, "too many requests")
}
