// servers/demo/main_test.go
package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/spar65/aiassessmenttool/internal/appconfig"
)

func newTestServer() *server {
	return &server{
		limiter:  newClientLimiter(2),
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		leads:    make(map[string]leadRequest),
	}
}

func TestHandleLeadsStoresLead(t *testing.T) {
	s := newTestServer()
	body := `{"email":"dev@example.com","companyName":"Example Co"}`
	req := httptest.NewRequest(http.MethodPost, "/api/leads", strings.NewReader(body))
	rec := httptest.NewRecorder()

	s.handleLeads(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	var resp leadResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.LeadID == "" || resp.Email != "dev@example.com" {
		t.Errorf("unexpected response: %+v", resp)
	}
	if len(s.leads) != 1 {
		t.Errorf("expected 1 stored lead, got %d", len(s.leads))
	}
}

func TestHandleLeadsHoneypotFakesSuccess(t *testing.T) {
	s := newTestServer()
	body := `{"email":"bot@example.com","website":"https://spam.example"}`
	req := httptest.NewRequest(http.MethodPost, "/api/leads", strings.NewReader(body))
	rec := httptest.NewRecorder()

	s.handleLeads(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("honeypot submissions must look successful, got %d", rec.Code)
	}
	if len(s.leads) != 0 {
		t.Error("honeypot lead must not be stored")
	}
}

func TestHandleLeadsRequiresEmail(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest(http.MethodPost, "/api/leads", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()

	s.handleLeads(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for missing email, got %d", rec.Code)
	}
}

func TestClientLimiter(t *testing.T) {
	limiter := newClientLimiter(2)

	status := limiter.status("10.0.0.1")
	if !status.CanProceed || status.Remaining != 2 {
		t.Fatalf("fresh client should have full quota: %+v", status)
	}

	if !limiter.consume("10.0.0.1") || !limiter.consume("10.0.0.1") {
		t.Fatal("first two runs should be allowed")
	}
	if limiter.consume("10.0.0.1") {
		t.Error("third run should be blocked")
	}

	// Other clients are unaffected.
	if !limiter.consume("10.0.0.2") {
		t.Error("limit must be per client")
	}

	status = limiter.status("10.0.0.1")
	if status.CanProceed || status.Remaining != 0 {
		t.Errorf("exhausted client status wrong: %+v", status)
	}
}

func TestHandleRateLimitEndpoint(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/api/rate-limit", nil)
	req.RemoteAddr = "10.0.0.9:51234"
	rec := httptest.NewRecorder()

	s.handleRateLimit(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var status struct {
		CanProceed bool `json:"canProceed"`
		Limit      int  `json:"limit"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("decoding status: %v", err)
	}
	if !status.CanProceed || status.Limit != 2 {
		t.Errorf("unexpected status: %+v", status)
	}
}

func TestHandleAssessBadStartFrameKeepsQuota(t *testing.T) {
	s := newTestServer()
	srv := httptest.NewServer(http.HandlerFunc(s.handleAssess))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/assess"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dialing websocket: %v", err)
	}
	defer conn.Close()

	// Malformed key format fails validation before any vendor call.
	if err := conn.WriteJSON(startFrame{
		Provider:     "openai",
		APIKey:       "not-a-key",
		SystemPrompt: "Be honest.",
	}); err != nil {
		t.Fatalf("sending start frame: %v", err)
	}

	var frame errorFrame
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatalf("reading error frame: %v", err)
	}
	if frame.Type != "error" {
		t.Fatalf("expected an error frame, got %+v", frame)
	}

	status := s.limiter.status("127.0.0.1")
	if status.Remaining != 2 {
		t.Errorf("rejected start frame must not consume quota, remaining %d of %d", status.Remaining, status.Limit)
	}
}

func TestConfigFromStartNormalizes(t *testing.T) {
	cfg := configFromStart(startFrame{
		Provider:     "OpenAI",
		APIKey:       "sk-0123456789abcdef0123456789",
		SystemPrompt: "Be honest.",
	})

	if cfg.Provider != appconfig.ProviderOpenAI {
		t.Errorf("provider should be lowercased, got %s", cfg.Provider)
	}
	if cfg.TimeoutSeconds <= 0 {
		t.Error("normalized config should carry a request timeout")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("start frame config should validate: %v", err)
	}
}
