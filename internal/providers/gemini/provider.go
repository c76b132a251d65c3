// internal/providers/gemini/provider.go
// Package gemini provides a ChatProvider backed by the Google Gemini
// generateContent API. Gemini has no native system role and mandates strict
// user/model turn alternation, so the system prompt is injected as a
// synthesized first exchange.
package gemini

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

const defaultBaseURL = "https://generativelanguage.googleapis.com"

// systemAck is the synthesized model reply that closes the fake first
// exchange carrying the system prompt.
const systemAck = "Understood. I will answer each multiple-choice question with exactly one letter."

// Provider implements the providers.ChatProvider interface using the Gemini HTTP API.
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
	if err := appconfig.ValidateAPIKey(appconfig.ProviderGemini, cfg.APIKey); err != nil {
		return nil, providers.NewInvalidKeyError(appconfig.ProviderGemini, err)
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
func (p *Provider) Vendor() appconfig.Provider { return appconfig.ProviderGemini }

// SendIsolated sends a single question with no prior context.
func (p *Provider) SendIsolated(ctx context.Context, question string) (providers.CallResult, error) {
	return p.send(ctx, []providers.ChatMessage{{Role: "user", Content: question}})
}

// SendWindowed sends a windowed conversation history ending in the current question.
func (p *Provider) SendWindowed(ctx context.Context, history []providers.ChatMessage) (providers.CallResult, error) {
	return p.send(ctx, history)
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role"`
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents         []content `json:"contents"`
	GenerationConfig struct {
		MaxOutputTokens int     `json:"maxOutputTokens"`
		Temperature     float64 `json:"temperature"`
	} `json:"generationConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []part `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// buildContents converts a conversation to Gemini's alternating user/model
// turns. The system prompt becomes a fake first exchange so the sequence
// still starts with a user turn.
func (p *Provider) buildContents(history []providers.ChatMessage) []content {
	contents := make([]content, 0, len(history)+2)
	contents = append(contents,
		content{Role: "user", Parts: []part{{Text: p.systemPrompt}}},
		content{Role: "model", Parts: []part{{Text: systemAck}}},
	)
	for _, msg := range history {
		role := "user"
		if msg.Role == "assistant" {
			role = "model"
		}
		contents = append(contents, content{Role: role, Parts: []part{{Text: msg.Content}}})
	}
	return contents
}

func (p *Provider) send(ctx context.Context, history []providers.ChatMessage) (providers.CallResult, error) {
	payload := generateRequest{Contents: p.buildContents(history)}
	payload.GenerationConfig.MaxOutputTokens = p.maxTokens
	payload.GenerationConfig.Temperature = 0

	body, err := json.Marshal(payload)
	if err != nil {
		return providers.CallResult{}, err
	}
	logging.LogRequest("APP->LLM", "gemini", p.model, body)

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", p.BaseURL, p.model, p.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return providers.CallResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := p.client.Do(req)
	if err != nil {
		return providers.CallResult{}, providers.WrapTransport(appconfig.ProviderGemini, err, int(p.timeout.Seconds()))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return providers.CallResult{}, providers.WrapTransport(appconfig.ProviderGemini, err, int(p.timeout.Seconds()))
	}
	logging.LogRequest("LLM->APP", "gemini", p.model, respBody)

	if resp.StatusCode != http.StatusOK {
		var apiErr errorResponse
		message := strings.TrimSpace(string(respBody))
		if err := json.Unmarshal(respBody, &apiErr); err == nil && apiErr.Error.Message != "" {
			message = apiErr.Error.Message
		}
		return providers.CallResult{}, providers.ClassifyStatus(appconfig.ProviderGemini, resp.StatusCode, message)
	}

	var result generateResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return providers.CallResult{}, fmt.Errorf("gemini: decoding response: %w", err)
	}
	if result.PromptFeedback.BlockReason != "" {
		return providers.CallResult{}, &providers.Error{
			Vendor:   appconfig.ProviderGemini,
			Category: providers.CategorySafetyBlock,
			Message:  fmt.Sprintf("prompt blocked: %s", result.PromptFeedback.BlockReason),
		}
	}
	if len(result.Candidates) == 0 {
		return providers.CallResult{}, &providers.Error{
			Vendor:   appconfig.ProviderGemini,
			Category: providers.CategoryVendor,
			Message:  "response contained no candidates",
		}
	}
	if result.Candidates[0].FinishReason == "SAFETY" {
		return providers.CallResult{}, &providers.Error{
			Vendor:   appconfig.ProviderGemini,
			Category: providers.CategorySafetyBlock,
			Message:  "response was blocked by the safety filter",
		}
	}

	var text strings.Builder
	for _, prt := range result.Candidates[0].Content.Parts {
		text.WriteString(prt.Text)
	}
	raw := strings.TrimSpace(text.String())

	letter, resolved := extract.Answer(raw)
	answer := letter
	if !resolved {
		answer = raw
	}
	return providers.CallResult{
		Answer:   answer,
		Resolved: resolved,
		Raw:      raw,
		Meta: providers.ResponseMeta{
			Model:            p.model,
			PromptTokens:     result.UsageMetadata.PromptTokenCount,
			CompletionTokens: result.UsageMetadata.CandidatesTokenCount,
			Duration:         time.Since(start),
		},
	}, nil
}

// Close releases any resources held by the provider.
func (p *Provider) Close() error {
	return nil
}
