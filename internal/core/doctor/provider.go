package doctor

import (
	"context"
	"os"
	"os/exec"

	"github.com/mindprints/diff-commit/internal/core/config"
)

// ProviderCheck verifies that the configured transform provider can run.
type ProviderCheck struct {
	cfg      config.TransformConfig
	getenv   func(string) string
	lookPath func(string) (string, error)
}

// NewProviderCheck creates a provider check reading the real environment.
func NewProviderCheck(cfg config.TransformConfig) *ProviderCheck {
	return &ProviderCheck{cfg: cfg, getenv: os.Getenv, lookPath: exec.LookPath}
}

func (c *ProviderCheck) Name() string {
	return "Transform Provider"
}

func (c *ProviderCheck) Run(_ context.Context) Result {
	result := Result{Name: c.Name()}
	result.add("provider", StatusPass, c.cfg.Provider)

	switch c.cfg.Provider {
	case config.ProviderCommand:
		if path, err := c.lookPath("sh"); err != nil {
			result.add("sh", StatusFail, "not found on PATH (required by the command provider)")
		} else {
			result.add("sh", StatusPass, path)
		}
	default:
		if c.getenv(c.cfg.APIKeyEnv) == "" {
			result.add(c.cfg.APIKeyEnv, StatusFail, "not set; transforms will fail")
		} else {
			result.add(c.cfg.APIKeyEnv, StatusPass, "set")
		}
		if c.cfg.BaseURL != "" {
			result.add("base_url", StatusPass, c.cfg.BaseURL)
		}
	}

	return result
}
