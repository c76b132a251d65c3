// internal/providers/openai/provider_test.go
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/spar65/aiassessmenttool/internal/appconfig"
	"github.com/spar65/aiassessmenttool/internal/providers"
)

func testConfig() *appconfig.Config {
	cfg := &appconfig.Config{
		Provider:     appconfig.ProviderOpenAI,
		APIKey:       "sk-testkey0123456789abcdef",
		SystemPrompt: "You are helpful.",
	}
	appconfig.Normalize(cfg)
	return cfg
}

func TestNewRejectsMalformedKey(t *testing.T) {
	cfg := testConfig()
	cfg.APIKey = "not-a-key"
	_, err := New(cfg)
	if err == nil {
		t.Fatal("expected error for malformed key")
	}
	var typed *providers.Error
	if !errors.As(err, &typed) || typed.Category != providers.CategoryInvalidKey {
		t.Fatalf("expected invalid_key category, got %v", err)
	}
}

func TestSendIsolatedExtractsLetter(t *testing.T) {
	var gotReq chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth := r.Header.Get("Authorization"); auth != "Bearer sk-testkey0123456789abcdef" {
			t.Errorf("unexpected Authorization header: %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"model": "gpt-4o-mini",
			"choices": []map[string]any{
				{"message": map[string]any{"content": "The answer is B"}, "finish_reason": "stop"},
			},
			"usage": map[string]int{"prompt_tokens": 42, "completion_tokens": 5},
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
	if !result.Resolved || result.Answer != "B" {
		t.Fatalf("expected resolved answer B, got %+v", result)
	}
	if result.Meta.PromptTokens != 42 {
		t.Fatalf("expected prompt token count 42, got %d", result.Meta.PromptTokens)
	}

	if len(gotReq.Messages) != 2 {
		t.Fatalf("expected system + user messages, got %d", len(gotReq.Messages))
	}
	if gotReq.Messages[0].Role != "system" {
		t.Fatalf("expected leading system message, got role %q", gotReq.Messages[0].Role)
	}
	if gotReq.Messages[1].Content != "Question 1?" {
		t.Fatalf("unexpected user content: %q", gotReq.Messages[1].Content)
	}
	if gotReq.Temperature != 0 {
		t.Fatalf("expected temperature 0, got %v", gotReq.Temperature)
	}
}

func TestSendKeepsRawTextWhenUnresolved(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": "I cannot answer this question."}},
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
	if result.Resolved {
		t.Fatal("expected unresolved result")
	}
	if result.Answer != "I cannot answer this question." {
		t.Fatalf("expected raw text as answer, got %q", result.Answer)
	}
}

func TestSendMapsErrorStatuses(t *testing.T) {
	cases := []struct {
		status  int
		message string
		want    providers.ErrorCategory
	}{
		{http.StatusUnauthorized, "Incorrect API key provided", providers.CategoryAuth},
		{http.StatusTooManyRequests, "Rate limit reached", providers.CategoryRateLimit},
		{http.StatusNotFound, "The model does not exist: model not found", providers.CategoryUnknownModel},
		{http.StatusForbidden, "You exceeded your current quota, insufficient credit balance", providers.CategoryAuth},
	}

	for _, tc := range cases {
		status := tc.status
		message := tc.message
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(status)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"error": map[string]any{"message": message, "type": "api_error"},
			})
		}))

		provider, err := New(testConfig())
		if err != nil {
			t.Fatalf("New returned error: %v", err)
		}
		provider.BaseURL = server.URL

		_, err = provider.SendIsolated(context.Background(), "Question 1?")
		server.Close()
		if err == nil {
			t.Fatalf("status %d: expected error", status)
		}
		var typed *providers.Error
		if !errors.As(err, &typed) {
			t.Fatalf("status %d: expected typed error, got %v", status, err)
		}
		if typed.Category != tc.want {
			t.Fatalf("status %d: expected category %s, got %s", status, tc.want, typed.Category)
		}
		if typed.Message != message {
			t.Fatalf("status %d: expected vendor message surfaced, got %q", status, typed.Message)
		}
	}
}

func TestSendTimesOutWithTypedError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer server.Close()

	cfg := testConfig()
	cfg.TimeoutSeconds = 0
	provider, err := New(cfg)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	provider.BaseURL = server.URL
	provider.timeout = 50 * time.Millisecond
	provider.client.Timeout = 50 * time.Millisecond

	_, err = provider.SendIsolated(context.Background(), "Question 1?")
	if err == nil {
		t.Fatal("expected timeout error")
	}
	var typed *providers.Error
	if !errors.As(err, &typed) || typed.Category != providers.CategoryTimeout {
		t.Fatalf("expected timeout category, got %v", err)
	}
}
