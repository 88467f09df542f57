package transform

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/mindprints/diff-commit/internal/core/config"
	"github.com/mindprints/diff-commit/internal/core/operation"
)

// Factory builds transformers for the configured provider. Transformers from
// one factory share its rate limiter.
type Factory struct {
	prompt  *PromptTransformer
	command *Command
}

// NewFactory validates the provider settings. For the API providers the key
// is read from the environment variable named by cfg.APIKeyEnv.
func NewFactory(cfg config.TransformConfig, log zerolog.Logger) (*Factory, error) {
	switch cfg.Provider {
	case config.ProviderCommand:
		return &Factory{command: NewCommand(cfg, nil)}, nil
	case config.ProviderOpenAI, config.ProviderAnthropic:
		key := os.Getenv(cfg.APIKeyEnv)
		if key == "" {
			return nil, fmt.Errorf("environment variable %s is not set", cfg.APIKeyEnv)
		}

		var p Provider
		if cfg.Provider == config.ProviderOpenAI {
			p = NewOpenAI(key, cfg.BaseURL, cfg.Model, cfg.MaxTokens)
		} else {
			p = NewAnthropic(key, cfg.BaseURL, cfg.Model, cfg.MaxTokens)
		}

		limiter := NewLimiter(cfg.RateLimit, cfg.Burst)
		return &Factory{prompt: NewPromptTransformer(p, cfg, limiter, log)}, nil
	default:
		return nil, fmt.Errorf("unknown transform provider %q", cfg.Provider)
	}
}

// For returns a transformer passing instruction to kinds that take one.
func (f *Factory) For(instruction string) operation.Transformer {
	if f.command != nil {
		return f.command.WithInstruction(instruction)
	}
	return f.prompt.WithInstruction(instruction)
}

// New is NewFactory followed by For.
func New(cfg config.TransformConfig, instruction string, log zerolog.Logger) (operation.Transformer, error) {
	f, err := NewFactory(cfg, log)
	if err != nil {
		return nil, err
	}
	return f.For(instruction), nil
}
