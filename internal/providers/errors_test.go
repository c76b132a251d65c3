// internal/providers/errors_test.go
package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/spar65/aiassessmenttool/internal/appconfig"
)

func TestClassifyStatus(t *testing.T) {
	cases := []struct {
		status  int
		message string
		want    ErrorCategory
	}{
		{http.StatusUnauthorized, "bad key", CategoryAuth},
		{http.StatusForbidden, "forbidden", CategoryAuth},
		{http.StatusTooManyRequests, "slow down", CategoryRateLimit},
		{http.StatusPaymentRequired, "add credits", CategoryInsufficientCredit},
		{http.StatusBadRequest, "insufficient quota remaining", CategoryInsufficientCredit},
		{http.StatusNotFound, "model not found", CategoryUnknownModel},
		{http.StatusBadRequest, "blocked by safety system", CategorySafetyBlock},
		{http.StatusServiceUnavailable, "rate limit exceeded for tier", CategoryRateLimit},
		{http.StatusInternalServerError, "something broke", CategoryVendor},
	}

	for _, tc := range cases {
		got := ClassifyStatus(appconfig.ProviderOpenAI, tc.status, tc.message)
		if got.Category != tc.want {
			t.Fatalf("ClassifyStatus(%d, %q) = %s, want %s", tc.status, tc.message, got.Category, tc.want)
		}
		if got.StatusCode != tc.status {
			t.Fatalf("expected status %d preserved, got %d", tc.status, got.StatusCode)
		}
	}
}

func TestClassifyStatusFillsEmptyMessage(t *testing.T) {
	got := ClassifyStatus(appconfig.ProviderGrok, http.StatusBadGateway, "  ")
	if got.Message != http.StatusText(http.StatusBadGateway) {
		t.Fatalf("expected status text fallback, got %q", got.Message)
	}
}

func TestTransient(t *testing.T) {
	transient := []ErrorCategory{CategoryRateLimit, CategoryTimeout}
	for _, category := range transient {
		err := &Error{Vendor: appconfig.ProviderOpenAI, Category: category}
		if !err.Transient() {
			t.Fatalf("expected %s to be transient", category)
		}
	}
	sticky := []ErrorCategory{CategoryAuth, CategoryInvalidKey, CategorySafetyBlock, CategoryInsufficientCredit, CategoryUnknownModel, CategoryVendor}
	for _, category := range sticky {
		err := &Error{Vendor: appconfig.ProviderOpenAI, Category: category}
		if err.Transient() {
			t.Fatalf("expected %s to be non-transient", category)
		}
	}
}

func TestWrapTransportDistinguishesTimeout(t *testing.T) {
	err := WrapTransport(appconfig.ProviderGemini, context.DeadlineExceeded, 30)
	var typed *Error
	if !errors.As(err, &typed) || typed.Category != CategoryTimeout {
		t.Fatalf("expected timeout category, got %v", err)
	}

	if err := WrapTransport(appconfig.ProviderGemini, context.Canceled, 30); !errors.Is(err, context.Canceled) {
		t.Fatalf("cancellation must propagate untyped, got %v", err)
	}

	err = WrapTransport(appconfig.ProviderGemini, fmt.Errorf("connection refused"), 30)
	if !errors.As(err, &typed) || typed.Category != CategoryVendor {
		t.Fatalf("expected vendor category for transport error, got %v", err)
	}
}

func TestIsRateLimitedTextualMarkers(t *testing.T) {
	cases := map[string]bool{
		"got 429 from upstream":           true,
		"rate limited, slow down":         true,
		"Too Many Requests":               true,
		"invalid api key":                 false,
	}
	for msg, want := range cases {
		if got := IsRateLimited(errors.New(msg)); got != want {
			t.Fatalf("IsRateLimited(%q) = %t, want %t", msg, got, want)
		}
	}
	if IsRateLimited(nil) {
		t.Fatal("nil error must not be rate limited")
	}
	typed := &Error{Category: CategoryRateLimit}
	if !IsRateLimited(typed) {
		t.Fatal("typed rate_limit error must be detected")
	}
}

func TestEnhanceSystemPromptAppendsOnce(t *testing.T) {
	enhanced := EnhanceSystemPrompt("You are helpful.")
	if enhanced == "You are helpful." {
		t.Fatal("expected answer instruction appended")
	}
	if EnhanceSystemPrompt(enhanced) != enhanced {
		t.Fatal("instruction must not be appended twice")
	}
	if EnhanceSystemPrompt("  ") == "" {
		t.Fatal("empty prompt must still yield the instruction")
	}
}
