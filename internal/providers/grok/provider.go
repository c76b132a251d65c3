// internal/providers/grok/provider.go
// Package grok provides a ChatProvider backed by the xAI Grok API, which
// speaks the OpenAI chat-completions wire format.
package grok

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

const defaultBaseURL = "https://api.x.ai"

// Provider implements the providers.ChatProvider interface using the xAI HTTP API.
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
	if err := appconfig.ValidateAPIKey(appconfig.ProviderGrok, cfg.APIKey); err != nil {
		return nil, providers.NewInvalidKeyError(appconfig.ProviderGrok, err)
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
func (p *Provider) Vendor() appconfig.Provider { return appconfig.ProviderGrok }

// SendIsolated sends a single question with no prior context.
func (p *Provider) SendIsolated(ctx context.Context, question string) (providers.CallResult, error) {
	return p.send(ctx, []providers.ChatMessage{{Role: "user", Content: question}})
}

// SendWindowed sends a windowed conversation history ending in the current question.
func (p *Provider) SendWindowed(ctx context.Context, history []providers.ChatMessage) (providers.CallResult, error) {
	return p.send(ctx, history)
}

type chatRequest struct {
	Model       string                  `json:"model"`
	Messages    []providers.ChatMessage `json:"messages"`
	MaxTokens   int                     `json:"max_tokens"`
	Temperature float64                 `json:"temperature"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	} `json:"error"`
}

func (p *Provider) send(ctx context.Context, history []providers.ChatMessage) (providers.CallResult, error) {
	messages := append([]providers.ChatMessage{{Role: "system", Content: p.systemPrompt}}, history...)

	payload := chatRequest{
		Model:       p.model,
		Messages:    messages,
		MaxTokens:   p.maxTokens,
		Temperature: 0,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return providers.CallResult{}, err
	}
	logging.LogRequest("APP->LLM", "grok", p.model, body)

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.BaseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return providers.CallResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	start := time.Now()
	resp, err := p.client.Do(req)
	if err != nil {
		return providers.CallResult{}, providers.WrapTransport(appconfig.ProviderGrok, err, int(p.timeout.Seconds()))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return providers.CallResult{}, providers.WrapTransport(appconfig.ProviderGrok, err, int(p.timeout.Seconds()))
	}
	logging.LogRequest("LLM->APP", "grok", p.model, respBody)

	if resp.StatusCode != http.StatusOK {
		var apiErr errorResponse
		message := strings.TrimSpace(string(respBody))
		if err := json.Unmarshal(respBody, &apiErr); err == nil && apiErr.Error.Message != "" {
			message = apiErr.Error.Message
		}
		return providers.CallResult{}, providers.ClassifyStatus(appconfig.ProviderGrok, resp.StatusCode, message)
	}

	var result chatResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return providers.CallResult{}, fmt.Errorf("grok: decoding response: %w", err)
	}
	if len(result.Choices) == 0 {
		return providers.CallResult{}, &providers.Error{
			Vendor:   appconfig.ProviderGrok,
			Category: providers.CategoryVendor,
			Message:  "response contained no choices",
		}
	}

	raw := strings.TrimSpace(result.Choices[0].Message.Content)
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
			PromptTokens:     result.Usage.PromptTokens,
			CompletionTokens: result.Usage.CompletionTokens,
			Duration:         time.Since(start),
		},
	}, nil
}

// Close releases any resources held by the provider.
func (p *Provider) Close() error {
	return nil
}
