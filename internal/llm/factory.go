package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/abhisek/studylm/internal/store"
)

// ErrNotConfigured is returned by NewProviderFromEnv when no provider is
// selected and no API key can be discovered.
var ErrNotConfigured = errors.New("no LLM provider configured: set GEMINI_API_KEY or STUDYLM_LLM_PROVIDER")

// NewProvider creates a Provider from configuration.
// It returns the provider wrapped with retry and logging middleware.
// eventRepo may be nil, in which case requests are only logged to log.
func NewProvider(ctx context.Context, cfg Config, eventRepo store.EventRepo, log logrus.FieldLogger) (StreamingProvider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var base StreamingProvider
	var err error

	switch cfg.Provider {
	case "anthropic":
		base, err = NewAnthropicProvider(cfg.Anthropic)
	case "openai":
		base, err = NewOpenAIProvider(cfg.OpenAI)
	case "gemini":
		base, err = NewGeminiProvider(ctx, cfg.Gemini)
	case "openrouter":
		base, err = NewOpenRouterProvider(cfg.OpenRouter)
	case "mock":
		return NewMockProvider(), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider: %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("initializing %s provider: %w", cfg.Provider, err)
	}

	// Wrap with middleware: caller → retry → logging → base
	logged := WithLogging(base, eventRepo, log)
	retried := WithRetry(logged, cfg.Retry)

	return retried, nil
}

// NewProviderFromEnv resolves configuration from STUDYLM_* variables and,
// when those select nothing usable, from the vendors' standard API key
// variables.
func NewProviderFromEnv(ctx context.Context, eventRepo store.EventRepo, log logrus.FieldLogger) (StreamingProvider, Config, error) {
	cfg, explicit := ConfigFromEnv()
	if !explicit && cfg.Validate() != nil {
		discovered, ok := DiscoverConfig()
		if !ok {
			return nil, Config{}, ErrNotConfigured
		}
		discovered.Timeout = cfg.Timeout
		cfg = discovered
	}

	p, err := NewProvider(ctx, cfg, eventRepo, log)
	if err != nil {
		return nil, Config{}, err
	}
	return p, cfg, nil
}
