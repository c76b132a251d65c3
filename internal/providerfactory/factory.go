// internal/providerfactory/factory.go
package providerfactory

import (
	"fmt"

	"github.com/spar65/aiassessmenttool/internal/appconfig"
	"github.com/spar65/aiassessmenttool/internal/logging"
	"github.com/spar65/aiassessmenttool/internal/providers"
	"github.com/spar65/aiassessmenttool/internal/providers/anthropic"
	"github.com/spar65/aiassessmenttool/internal/providers/gemini"
	"github.com/spar65/aiassessmenttool/internal/providers/grok"
	"github.com/spar65/aiassessmenttool/internal/providers/openai"
	"github.com/spar65/aiassessmenttool/internal/throttle"
)

// NewChatProvider selects and configures the vendor adapter named by the
// application configuration and wraps it with inter-call pacing and
// rate-limit retry. The returned provider is what the assessment loop talks
// to; callers never see a bare adapter.
func NewChatProvider(cfg *appconfig.Config) (providers.ChatProvider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config provided to provider factory")
	}

	var provider providers.ChatProvider
	var err error

	switch cfg.Provider {
	case appconfig.ProviderOpenAI:
		provider, err = openai.New(cfg)
	case appconfig.ProviderAnthropic:
		provider, err = anthropic.New(cfg)
	case appconfig.ProviderGemini:
		provider, err = gemini.New(cfg)
	case appconfig.ProviderGrok:
		provider, err = grok.New(cfg)
	default:
		return nil, fmt.Errorf("unsupported provider %q", cfg.Provider)
	}
	if err != nil {
		logging.LogEvent("%s provider unavailable: %v", cfg.Provider, err)
		return nil, err
	}
	logging.LogEvent("%s provider ready: model %s", cfg.Provider, cfg.ModelName())

	return throttle.Wrap(provider, cfg), nil
}
