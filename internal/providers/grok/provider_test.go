// internal/providers/grok/provider_test.go
package grok

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/spar65/aiassessmenttool/internal/appconfig"
	"github.com/spar65/aiassessmenttool/internal/providers"
)

func testConfig() *appconfig.Config {
	cfg := &appconfig.Config{
		Provider:     appconfig.ProviderGrok,
		APIKey:       "xai-testkey0123456789abcdef",
		SystemPrompt: "You are helpful.",
	}
	appconfig.Normalize(cfg)
	return cfg
}

func TestNewRejectsMalformedKey(t *testing.T) {
	cfg := testConfig()
	cfg.APIKey = "sk-openaikeynotxai0123456789"
	_, err := New(cfg)
	var typed *providers.Error
	if !errors.As(err, &typed) || typed.Category != providers.CategoryInvalidKey {
		t.Fatalf("expected invalid_key category, got %v", err)
	}
}

// Grok speaks the OpenAI wire format; the adapter only differs in endpoint
// and key prefix. One round trip covers the shared path.
func TestSendIsolatedRoundTrip(t *testing.T) {
	var gotReq chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth := r.Header.Get("Authorization"); auth != "Bearer xai-testkey0123456789abcdef" {
			t.Errorf("unexpected Authorization header: %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"model": "grok-2-latest",
			"choices": []map[string]any{
				{"message": map[string]any{"content": "A"}, "finish_reason": "stop"},
			},
		})
	}))
	defer server.Close()

	provider, err := New(testConfig())
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	provider.BaseURL = server.URL

	result, err := provider.SendIsolated(context.Background(), "Question 1?")
	if err != nil {
		t.Fatalf("SendIsolated returned error: %v", err)
	}
	if !result.Resolved || result.Answer != "A" {
		t.Fatalf("expected resolved answer A, got %+v", result)
	}
	if gotReq.Messages[0].Role != "system" {
		t.Fatalf("expected leading system message, got %q", gotReq.Messages[0].Role)
	}
}

func TestSendMapsRateLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{"message": "Too many requests", "code": "rate_limited"},
		})
	}))
	defer server.Close()

	provider, err := New(testConfig())
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	provider.BaseURL = server.URL

	_, err = provider.SendIsolated(context.Background(), "Question 1?")
	var typed *providers.Error
	if !errors.As(err, &typed) || typed.Category != providers.CategoryRateLimit {
		t.Fatalf("expected rate_limit category, got %v", err)
	}
}
