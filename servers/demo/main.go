// servers/demo/main.go
// The demo server hosts the assessment for browser visitors: lead capture,
// a per-client rate-limit gate, and a websocket that streams live run
// progress. Vendor API keys arrive over the socket, are used for the one run,
// and are never persisted.
package main

import (
	"context"
	"encoding/json"
	"log"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"
	"github.com/spar65/aiassessmenttool/internal/appconfig"
	"github.com/spar65/aiassessmenttool/internal/assessment"
	"github.com/spar65/aiassessmenttool/internal/logging"
	"github.com/spar65/aiassessmenttool/internal/platform"
	"github.com/spar65/aiassessmenttool/internal/providerfactory"
	"github.com/spar65/aiassessmenttool/internal/recovery"
)

const (
	defaultAddr     = ":8090"
	defaultRunLimit = 10
	limitWindow     = 24 * time.Hour
)

type leadRequest struct {
	Email       string `json:"email"`
	CompanyName string `json:"companyName"`
	Role        string `json:"role,omitempty"`
	Website     string `json:"website,omitempty"`
}

type leadResponse struct {
	LeadID string `json:"leadId"`
	Email  string `json:"email"`
}

// startFrame is the first message a websocket client sends.
type startFrame struct {
	Provider       string `json:"provider"`
	APIKey         string `json:"apiKey"`
	Model          string `json:"model,omitempty"`
	SystemPrompt   string `json:"systemPrompt"`
	Conversational bool   `json:"conversational"`
	PlatformURL    string `json:"platformUrl,omitempty"`
	HealthCheckKey string `json:"healthCheckKey,omitempty"`
}

type progressFrame struct {
	Type              string  `json:"type"`
	Current           int     `json:"current"`
	Total             int     `json:"total"`
	Percentage        float64 `json:"percentage"`
	Dimension         string  `json:"dimension"`
	ElapsedMs         int64   `json:"elapsedMs"`
	EstimatedRemainMs int64   `json:"estimatedRemainingMs"`
}

type resultFrame struct {
	Type       string               `json:"type"`
	Report     platform.ScoreReport `json:"report"`
	Answered   int                  `json:"answered"`
	Unresolved int                  `json:"unresolved"`
}

type errorFrame struct {
	Type    string `json:"type"`
	State   string `json:"state"`
	Message string `json:"message"`
}

// clientLimiter tracks runs per remote address inside a rolling window.
type clientLimiter struct {
	mu      sync.Mutex
	limit   int
	byAddr  map[string]int
	resetAt time.Time
}

func newClientLimiter(limit int) *clientLimiter {
	return &clientLimiter{
		limit:   limit,
		byAddr:  make(map[string]int),
		resetAt: time.Now().Add(limitWindow),
	}
}

func (l *clientLimiter) status(addr string) platform.RateLimitStatus {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rollover()
	used := l.byAddr[addr]
	return platform.RateLimitStatus{
		CanProceed: used < l.limit,
		Limit:      l.limit,
		Remaining:  l.limit - used,
		ResetAt:    l.resetAt,
	}
}

func (l *clientLimiter) consume(addr string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rollover()
	if l.byAddr[addr] >= l.limit {
		return false
	}
	l.byAddr[addr]++
	return true
}

func (l *clientLimiter) rollover() {
	if time.Now().After(l.resetAt) {
		l.byAddr = make(map[string]int)
		l.resetAt = time.Now().Add(limitWindow)
	}
}

type server struct {
	limiter  *clientLimiter
	upgrader websocket.Upgrader

	mu    sync.Mutex
	leads map[string]leadRequest
}

func main() {
	_ = godotenv.Load()

	addr := os.Getenv("DEMO_ADDR")
	if addr == "" {
		addr = defaultAddr
	}
	limit := defaultRunLimit
	if v, err := strconv.Atoi(os.Getenv("DEMO_RUN_LIMIT")); err == nil && v > 0 {
		limit = v
	}

	if err := logging.Init("demo-server.log"); err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	defer logging.Close()

	s := &server{
		limiter: newClientLimiter(limit),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		leads: make(map[string]leadRequest),
	}

	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	r.HandleFunc("/api/leads", s.handleLeads).Methods(http.MethodPost)
	r.HandleFunc("/api/rate-limit", s.handleRateLimit).Methods(http.MethodGet)
	r.HandleFunc("/ws/assess", s.handleAssess).Methods(http.MethodGet)

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Printf("demo server listening on %s (limit %d runs per client per %s)", addr, limit, limitWindow)
	log.Fatal(srv.ListenAndServe())
}

func (s *server) handleLeads(w http.ResponseWriter, r *http.Request) {
	var lead leadRequest
	if err := json.NewDecoder(r.Body).Decode(&lead); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}
	if strings.TrimSpace(lead.Email) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "email is required"})
		return
	}

	id := uuid.NewString()

	// Bots fill the hidden website field. They get a success response and
	// nothing is stored.
	if strings.TrimSpace(lead.Website) != "" {
		logging.LogEvent("honeypot lead dropped from %s", r.RemoteAddr)
		writeJSON(w, http.StatusCreated, leadResponse{LeadID: id, Email: lead.Email})
		return
	}

	s.mu.Lock()
	s.leads[id] = lead
	s.mu.Unlock()
	logging.LogEvent("lead registered: %s", lead.Email)

	writeJSON(w, http.StatusCreated, leadResponse{LeadID: id, Email: lead.Email})
}

func (s *server) handleRateLimit(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.limiter.status(clientAddr(r)))
}

func (s *server) handleAssess(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	var start startFrame
	if err := conn.ReadJSON(&start); err != nil {
		_ = conn.WriteJSON(errorFrame{Type: "error", State: "error", Message: "expected a start frame: " + err.Error()})
		return
	}

	cfg := configFromStart(start)
	if err := cfg.Validate(); err != nil {
		_ = conn.WriteJSON(errorFrame{Type: "error", State: string(assessment.StateError), Message: err.Error()})
		return
	}

	provider, err := providerfactory.NewChatProvider(cfg)
	if err != nil {
		_ = conn.WriteJSON(errorFrame{Type: "error", State: string(assessment.StateError), Message: err.Error()})
		return
	}
	defer provider.Close()

	// Quota is consumed only once the start frame is known to be runnable;
	// a malformed frame must not burn one of the client's runs.
	addr := clientAddr(r)
	if !s.limiter.consume(addr) {
		_ = conn.WriteJSON(errorFrame{Type: "error", State: string(assessment.StateRateLimited), Message: "demo tier exhausted for this client"})
		return
	}

	sessionID := uuid.NewString()
	store := recovery.NewStore(recovery.NewMemoryStorage(), sessionID)
	runner := assessment.NewRunner(cfg, provider, platform.NewClient(cfg), store)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Any further client frame, including the socket closing, cancels the run.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
			cancel()
		}
	}()

	var writeMu sync.Mutex
	runner.OnProgress(func(p assessment.Progress) {
		writeMu.Lock()
		defer writeMu.Unlock()
		_ = conn.WriteJSON(progressFrame{
			Type:              "progress",
			Current:           p.Current,
			Total:             p.Total,
			Percentage:        p.Percentage,
			Dimension:         p.Dimension,
			ElapsedMs:         p.Elapsed.Milliseconds(),
			EstimatedRemainMs: p.EstimatedRemaining.Milliseconds(),
		})
	})

	logging.LogEvent("session %s: starting %s run for %s", sessionID, cfg.Provider, addr)
	outcome, err := runner.Run(ctx)

	writeMu.Lock()
	defer writeMu.Unlock()
	if err != nil {
		_ = conn.WriteJSON(errorFrame{Type: "error", State: string(runner.State()), Message: err.Error()})
		return
	}
	_ = conn.WriteJSON(resultFrame{
		Type:       "result",
		Report:     outcome.Report,
		Answered:   outcome.Answered,
		Unresolved: outcome.Unresolved,
	})
}

// configFromStart builds a run config from a websocket start frame. Server
// operators can still pin the platform endpoint via environment.
func configFromStart(start startFrame) *appconfig.Config {
	cfg := &appconfig.Config{
		Provider:           appconfig.Provider(strings.ToLower(start.Provider)),
		APIKey:             start.APIKey,
		Model:              start.Model,
		SystemPrompt:       start.SystemPrompt,
		ConversationalMode: start.Conversational,
		PlatformURL:        start.PlatformURL,
		HealthCheckKey:     start.HealthCheckKey,
	}
	if cfg.PlatformURL == "" {
		cfg.PlatformURL = os.Getenv("PLATFORM_URL")
	}
	if cfg.HealthCheckKey == "" {
		cfg.HealthCheckKey = os.Getenv("HEALTH_CHECK_KEY")
	}
	appconfig.Normalize(cfg)
	return cfg
}

func clientAddr(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("write response: %v", err)
	}
}
