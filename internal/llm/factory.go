package llm

import (
	"context"
	"fmt"

	"github.com/abhisek/lessonloop/internal/logger"
)

// NewProvider creates a Provider from configuration, wrapped with event
// logging. Retries and timeouts are added per call by Client.
func NewProvider(ctx context.Context, cfg Config, recorder EventRecorder, log *logger.Logger) (Provider, error) {
	var base Provider
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
		base = NewMockProvider()
	default:
		return nil, fmt.Errorf("unknown LLM provider: %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("initializing %s provider: %w", cfg.Provider, err)
	}

	return WithLogging(base, cfg.Provider, recorder, log), nil
}

// NewClientFromConfig builds the provider stack and the Client over it.
func NewClientFromConfig(ctx context.Context, cfg Config, recorder EventRecorder, log *logger.Logger) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	p, err := NewProvider(ctx, cfg, recorder, log)
	if err != nil {
		return nil, err
	}
	return NewClient(p, cfg.ClientConfig(), log), nil
}
