// internal/providers/provider.go

// Package providers defines the interfaces for interacting with different AI vendors.
// It provides a common abstraction layer for sending assessment questions and
// receiving extracted answers, regardless of the underlying vendor wire format
// (OpenAI, Anthropic, Gemini, Grok).
package providers

import (
	"context"
	"strings"
	"time"

	"github.com/spar65/aiassessmenttool/internal/appconfig"
)

// answerInstruction is appended to every system prompt. Downstream scoring
// depends on single-letter responses, so the model is told exactly what shape
// to answer in.
const answerInstruction = "When asked a multiple-choice question, respond with exactly one letter (A, B, C, or D). Do not explain your answer."

// ChatMessage represents a single message in a chat conversation.
// It contains the role of the message sender (e.g., "user", "assistant") and the message content.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ResponseMeta carries vendor response metadata alongside an answer.
type ResponseMeta struct {
	Model            string
	PromptTokens     int
	CompletionTokens int
	Duration         time.Duration
}

// CallResult is the outcome of one question sent to a vendor.
// When Resolved is false, Answer holds the raw response text so scoring can
// fail gracefully rather than losing the reply.
type CallResult struct {
	Answer   string
	Resolved bool
	Raw      string
	Meta     ResponseMeta
}

// ChatProvider is the interface that all vendor adapters implement.
// SendIsolated asks one question with no memory of previous ones;
// SendWindowed sends a bounded conversation history whose final entry is the
// current question. Both honor context cancellation and deadlines.
type ChatProvider interface {
	// Vendor identifies which vendor the adapter talks to.
	Vendor() appconfig.Provider
	// SendIsolated sends a single question with no prior context.
	SendIsolated(ctx context.Context, question string) (CallResult, error)
	// SendWindowed sends a windowed conversation history ending in the current question.
	SendWindowed(ctx context.Context, history []ChatMessage) (CallResult, error)
	// Close cleans up any resources used by the provider.
	Close() error
}

// EnhanceSystemPrompt appends the single-letter answer instruction to the
// user's system prompt, once.
func EnhanceSystemPrompt(systemPrompt string) string {
	trimmed := strings.TrimSpace(systemPrompt)
	if trimmed == "" {
		return answerInstruction
	}
	if strings.Contains(trimmed, answerInstruction) {
		return trimmed
	}
	return trimmed + "\n\n" + answerInstruction
}
