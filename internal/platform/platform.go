// internal/platform/platform.go
// Package platform is the HTTP client for the assessment platform's own API:
// lead registration, the pre-run rate-limit check, question-set delivery, and
// answer scoring. The platform is a black box; in particular the mapping
// token it issues is carried opaquely and never decoded here.
package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spar65/aiassessmenttool/internal/appconfig"
	"github.com/spar65/aiassessmenttool/internal/logging"
	"github.com/xeipuuv/gojsonschema"
)

// Error codes returned by the platform client. These identify problems with
// the assessment platform itself, never with the user's AI vendor account.
const (
	CodeInvalidHealthKey = "invalid_health_key"
	CodeTierExhausted    = "tier_exhausted"
	CodePlatform         = "platform"
)

// Error is a typed platform failure.
type Error struct {
	Code       string
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("platform: %s (%d): %s", e.Code, e.StatusCode, e.Message)
}

// Lead is a demo-access registration.
type Lead struct {
	Email       string `json:"email"`
	CompanyName string `json:"companyName"`
	Role        string `json:"role,omitempty"`
	Source      string `json:"source"`
	// Website is the honeypot field. Humans never see it; bots fill it in.
	Website string `json:"website,omitempty"`
}

// LeadReceipt is the platform's acknowledgement of a registration.
type LeadReceipt struct {
	LeadID string `json:"leadId"`
	Email  string `json:"email"`
}

// RateLimitStatus reports whether the shared demo credential still has
// capacity for a run.
type RateLimitStatus struct {
	CanProceed bool      `json:"canProceed"`
	Limit      int       `json:"limit"`
	Remaining  int       `json:"remaining"`
	ResetAt    time.Time `json:"resetAt"`
}

// Question is one entry of the platform-issued question set. Option order is
// randomized server-side; the mapping token encodes the corresponding answer
// key.
type Question struct {
	ID        int      `json:"id"`
	Text      string   `json:"text"`
	Options   []string `json:"options"`
	Dimension string   `json:"dimension"`
}

// QuestionSet is the payload of the config endpoint.
type QuestionSet struct {
	Questions    []Question `json:"questions"`
	MappingToken string     `json:"mappingToken"`
}

// Response is one answered question submitted for scoring.
type Response struct {
	QuestionID int    `json:"questionId"`
	Answer     string `json:"answer"`
	Dimension  string `json:"dimension"`
}

// DimensionResult is the platform's verdict for one ethical axis.
type DimensionResult struct {
	Score     float64 `json:"score"`
	Threshold float64 `json:"threshold"`
	Passed    bool    `json:"passed"`
}

// ScoreReport is the scored outcome of a completed run.
type ScoreReport struct {
	Overall struct {
		Score  float64 `json:"score"`
		Passed bool    `json:"passed"`
	} `json:"overall"`
	Dimensions map[string]DimensionResult `json:"dimensions"`
	Responses  []struct {
		QuestionID int  `json:"questionId"`
		Correct    bool `json:"correct"`
	} `json:"responses"`
}

// questionSetSchema validates the config payload before the run depends on
// it. The platform is external; a malformed question set should fail loudly
// here, not 40 questions into a run.
const questionSetSchema = `{
  "type": "object",
  "required": ["questions", "mappingToken"],
  "properties": {
    "mappingToken": {"type": "string", "minLength": 1},
    "questions": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["id", "text", "options", "dimension"],
        "properties": {
          "id": {"type": "integer"},
          "text": {"type": "string", "minLength": 1},
          "options": {
            "type": "array",
            "minItems": 2,
            "maxItems": 4,
            "items": {"type": "string"}
          },
          "dimension": {"type": "string", "minLength": 1}
        }
      }
    }
  }
}`

// Client talks to the assessment platform.
type Client struct {
	baseURL   string
	healthKey string
	client    *http.Client
}

// NewClient builds a Client from the application configuration.
func NewClient(cfg *appconfig.Config) *Client {
	return &Client{
		baseURL:   cfg.PlatformBaseURL(),
		healthKey: cfg.HealthCheckKey,
		client:    &http.Client{Timeout: cfg.RequestTimeout()},
	}
}

// RegisterLead submits a demo-access registration. A non-empty honeypot
// field means a bot filled the form: the caller gets a fake success and the
// request is never forwarded.
func (c *Client) RegisterLead(ctx context.Context, lead Lead) (LeadReceipt, error) {
	if strings.TrimSpace(lead.Website) != "" {
		logging.LogEvent("honeypot field set; suppressing lead registration for %s", lead.Email)
		return LeadReceipt{LeadID: "ok", Email: lead.Email}, nil
	}

	body, err := c.post(ctx, "/api/leads", lead)
	if err != nil {
		return LeadReceipt{}, err
	}
	var receipt LeadReceipt
	if err := json.Unmarshal(body, &receipt); err != nil {
		return LeadReceipt{}, fmt.Errorf("decoding lead receipt: %w", err)
	}
	return receipt, nil
}

// CheckRateLimit asks whether the shared demo credential can start a run.
func (c *Client) CheckRateLimit(ctx context.Context) (RateLimitStatus, error) {
	body, err := c.get(ctx, "/api/rate-limit")
	if err != nil {
		return RateLimitStatus{}, err
	}
	var status RateLimitStatus
	if err := json.Unmarshal(body, &status); err != nil {
		return RateLimitStatus{}, fmt.Errorf("decoding rate-limit status: %w", err)
	}
	return status, nil
}

// FetchQuestionSet retrieves the randomized question set and its opaque
// mapping token, validating the payload shape before returning it.
func (c *Client) FetchQuestionSet(ctx context.Context) (QuestionSet, error) {
	body, err := c.get(ctx, "/api/assessment/config")
	if err != nil {
		return QuestionSet{}, err
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(questionSetSchema),
		gojsonschema.NewBytesLoader(body),
	)
	if err != nil {
		return QuestionSet{}, fmt.Errorf("validating question set: %w", err)
	}
	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}
		return QuestionSet{}, fmt.Errorf("question set failed validation: %s", strings.Join(details, "; "))
	}

	var set QuestionSet
	if err := json.Unmarshal(body, &set); err != nil {
		return QuestionSet{}, fmt.Errorf("decoding question set: %w", err)
	}
	return set, nil
}

// SubmitAnswers sends the collected responses and the mapping token for
// scoring.
func (c *Client) SubmitAnswers(ctx context.Context, responses []Response, mappingToken string) (ScoreReport, error) {
	payload := map[string]any{
		"responses":    responses,
		"mappingToken": mappingToken,
	}
	body, err := c.post(ctx, "/api/assess", payload)
	if err != nil {
		return ScoreReport{}, err
	}
	var report ScoreReport
	if err := json.Unmarshal(body, &report); err != nil {
		return ScoreReport{}, fmt.Errorf("decoding score report: %w", err)
	}
	return report, nil
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	return c.do(req)
}

func (c *Client) post(ctx context.Context, path string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	if c.healthKey != "" {
		req.Header.Set("X-API-Key", c.healthKey)
	}
	logging.LogRequest("APP->PLATFORM", "platform", "", map[string]string{"method": req.Method, "url": req.URL.String()})

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &Error{Code: CodePlatform, Message: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Code: CodePlatform, Message: err.Error()}
	}
	logging.LogRequest("PLATFORM->APP", "platform", "", body)

	if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated {
		return body, nil
	}

	message := strings.TrimSpace(string(body))
	var apiErr struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error != "" {
		message = apiErr.Error
	}

	code := CodePlatform
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		code = CodeInvalidHealthKey
	case http.StatusTooManyRequests:
		code = CodeTierExhausted
	}
	return nil, &Error{Code: code, StatusCode: resp.StatusCode, Message: message}
}
