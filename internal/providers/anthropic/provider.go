// internal/providers/anthropic/provider.go
// Package anthropic provides a ChatProvider backed by the Anthropic messages API.
package anthropic

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
	"github.com/spar65/aiassessmenttool/internal/extract"
	"github.com/spar65/aiassessmenttool/internal/logging"
	"github.com/spar65/aiassessmenttool/internal/providers"
)

const (
	defaultBaseURL = "https://api.anthropic.com"
	// apiVersion is the dated API revision the messages endpoint requires.
	apiVersion = "2023-06-01"
)

// Provider implements the providers.ChatProvider interface using the Anthropic HTTP API.
type Provider struct {
	// BaseURL may be overridden in tests; defaults to the public endpoint.
	BaseURL string

	client       *http.Client
	apiKey       string
	model        string
	systemPrompt string
	maxTokens    int
	timeout      time.Duration
}

// New constructs a Provider after validating the API key format.
func New(cfg *appconfig.Config) (*Provider, error) {
	if err := appconfig.ValidateAPIKey(appconfig.ProviderAnthropic, cfg.APIKey); err != nil {
		return nil, providers.NewInvalidKeyError(appconfig.ProviderAnthropic, err)
	}
	timeout := cfg.RequestTimeout()
	return &Provider{
		BaseURL:      defaultBaseURL,
		client:       &http.Client{Timeout: timeout},
		apiKey:       strings.TrimSpace(cfg.APIKey),
		model:        cfg.ModelName(),
		systemPrompt: providers.EnhanceSystemPrompt(cfg.SystemPrompt),
		maxTokens:    cfg.CompletionTokens(),
		timeout:      timeout,
	}, nil
}

// Vendor identifies the vendor this adapter talks to.
func (p *Provider) Vendor() appconfig.Provider { return appconfig.ProviderAnthropic }

// SendIsolated sends a single question with no prior context.
func (p *Provider) SendIsolated(ctx context.Context, question string) (providers.CallResult, error) {
	return p.send(ctx, []providers.ChatMessage{{Role: "user", Content: question}})
}

// SendWindowed sends a windowed conversation history ending in the current question.
func (p *Provider) SendWindowed(ctx context.Context, history []providers.ChatMessage) (providers.CallResult, error) {
	return p.send(ctx, history)
}

type messagesRequest struct {
	Model     string                  `json:"model"`
	System    string                  `json:"system,omitempty"`
	Messages  []providers.ChatMessage `json:"messages"`
	MaxTokens int                     `json:"max_tokens"`
}

type messagesResponse struct {
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

type errorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func (p *Provider) send(ctx context.Context, history []providers.ChatMessage) (providers.CallResult, error) {
	// The system prompt goes in its own field; the messages array holds only
	// user/assistant turns.
	payload := messagesRequest{
		Model:     p.model,
		System:    p.systemPrompt,
		Messages:  history,
		MaxTokens: p.maxTokens,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return providers.CallResult{}, err
	}
	logging.LogRequest("APP->LLM", "anthropic", p.model, body)

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.BaseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return providers.CallResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", p.apiKey)
	req.Header.Set("anthropic-version", apiVersion)

	start := time.Now()
	resp, err := p.client.Do(req)
	if err != nil {
		return providers.CallResult{}, providers.WrapTransport(appconfig.ProviderAnthropic, err, int(p.timeout.Seconds()))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return providers.CallResult{}, providers.WrapTransport(appconfig.ProviderAnthropic, err, int(p.timeout.Seconds()))
	}
	logging.LogRequest("LLM->APP", "anthropic", p.model, respBody)

	if resp.StatusCode != http.StatusOK {
		var apiErr errorResponse
		message := strings.TrimSpace(string(respBody))
		if err := json.Unmarshal(respBody, &apiErr); err == nil && apiErr.Error.Message != "" {
			message = apiErr.Error.Message
		}
		return providers.CallResult{}, providers.ClassifyStatus(appconfig.ProviderAnthropic, resp.StatusCode, message)
	}

	var result messagesResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return providers.CallResult{}, fmt.Errorf("anthropic: decoding response: %w", err)
	}
	if result.StopReason == "refusal" {
		return providers.CallResult{}, &providers.Error{
			Vendor:   appconfig.ProviderAnthropic,
			Category: providers.CategorySafetyBlock,
			Message:  "the model declined to answer",
		}
	}

	var text strings.Builder
	for _, block := range result.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	raw := strings.TrimSpace(text.String())
	if raw == "" {
		return providers.CallResult{}, &providers.Error{
			Vendor:   appconfig.ProviderAnthropic,
			Category: providers.CategoryVendor,
			Message:  "response contained no text content",
		}
	}

	letter, resolved := extract.Answer(raw)
	answer := letter
	if !resolved {
		answer = raw
	}
	modelName := result.Model
	if modelName == "" {
		modelName = p.model
	}
	return providers.CallResult{
		Answer:   answer,
		Resolved: resolved,
		Raw:      raw,
		Meta: providers.ResponseMeta{
			Model:            modelName,
			PromptTokens:     result.Usage.InputTokens,
			CompletionTokens: result.Usage.OutputTokens,
			Duration:         time.Since(start),
		},
	}, nil
}

// Close releases any resources held by the provider.
func (p *Provider) Close() error {
	return nil
}
