package config

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/hay-kot/criterio"

	"github.com/mindprints/diff-commit/internal/core/diff"
	"github.com/mindprints/diff-commit/internal/core/styles"
	"github.com/mindprints/diff-commit/pkg/tmpl"
)

// ValidationWarning represents a non-fatal configuration issue.
type ValidationWarning struct {
	Category string `json:"category"`
	Item     string `json:"item,omitempty"`
	Message  string `json:"message"`
}

// Validate checks that the configuration is structurally valid.
func (c *Config) Validate() error {
	return criterio.ValidateStruct(
		criterio.Run("data_dir", c.DataDir, required),
		criterio.Run("storage.backend", c.Storage.Backend, oneOf(BackendSQLite, BackendJSON)),
		criterio.Run("storage.drafts", c.Storage.Drafts, oneOf("", DraftsBadger)),
		criterio.Run("diff.granularity", c.Diff.Granularity, granularity),
		criterio.Run("diff.max_edits", c.Diff.MaxEdits, positive),
		criterio.Run("diff.context_lines", c.Diff.ContextLines, nonNegative),
		criterio.Run("autosave.interval", c.Autosave.Interval.Seconds(), atLeast(0.1)),
		criterio.Run("transform.provider", c.Transform.Provider, oneOf(ProviderOpenAI, ProviderAnthropic, ProviderCommand)),
		criterio.Run("transform.rate_limit", c.Transform.RateLimit, atLeast(0)),
		criterio.Run("theme", c.Theme, oneOf(styles.ThemeNames()...)),
		c.validateProvider(),
		c.validateKinds(),
	)
}

// ValidateDeep performs Validate plus template rendering checks and file
// access checks. configPath is the config file to check; empty skips it.
func (c *Config) ValidateDeep(configPath string) error {
	if err := c.Validate(); err != nil {
		return err
	}

	return criterio.ValidateStruct(
		validateConfigFile(configPath),
		criterio.Run("data_dir", c.DataDir, isDirectoryOrNotExist),
		c.validateTemplates(),
	)
}

// Warnings returns non-fatal configuration issues.
func (c *Config) Warnings() []ValidationWarning {
	var warnings []ValidationWarning

	if env := c.Transform.APIKeyEnv; env != "" && c.Transform.Provider != ProviderCommand {
		if os.Getenv(env) == "" {
			warnings = append(warnings, ValidationWarning{
				Category: "Transform",
				Item:     "api_key_env",
				Message:  fmt.Sprintf("%s is not set; transforms will fail", env),
			})
		}
	}

	if !c.Autosave.Enabled {
		warnings = append(warnings, ValidationWarning{
			Category: "Autosave",
			Message:  "autosave is disabled; unsaved edits are lost on crash",
		})
	}

	return warnings
}

// KindNames returns the configured transform kinds sorted by name.
func (c *Config) KindNames() []string {
	names := make([]string, 0, len(c.Transform.Kinds))
	for name := range c.Transform.Kinds {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (c *Config) validateProvider() error {
	var errs criterio.FieldErrorsBuilder
	switch c.Transform.Provider {
	case ProviderOpenAI, ProviderAnthropic:
		if c.Transform.Model == "" {
			errs = errs.Append("transform.model", fmt.Errorf("required for provider %q", c.Transform.Provider))
		}
	case ProviderCommand:
		if strings.TrimSpace(c.Transform.Command) == "" {
			errs = errs.Append("transform.command", fmt.Errorf("required for provider %q", ProviderCommand))
		}
	}
	return errs.ToError()
}

func (c *Config) validateKinds() error {
	var errs criterio.FieldErrorsBuilder
	for _, name := range c.KindNames() {
		kind := c.Transform.Kinds[name]
		if strings.TrimSpace(kind.Prompt) == "" {
			errs = errs.Append(fmt.Sprintf("transform.kinds[%q].prompt", name), fmt.Errorf("prompt is required"))
		}
	}
	return errs.ToError()
}

// validateTemplates renders every prompt and the command template against
// sample data.
func (c *Config) validateTemplates() error {
	sample := PromptData{Kind: "sample", Text: "sample text", Instruction: "sample instruction"}

	var errs criterio.FieldErrorsBuilder
	for _, name := range c.KindNames() {
		if err := tmpl.Check(c.Transform.Kinds[name].Prompt, sample); err != nil {
			errs = errs.Append(fmt.Sprintf("transform.kinds[%q].prompt", name), fmt.Errorf("template error: %w", err))
		}
	}
	if c.Transform.Command != "" {
		if err := tmpl.Check(c.Transform.Command, sample); err != nil {
			errs = errs.Append("transform.command", fmt.Errorf("template error: %w", err))
		}
	}
	return errs.ToError()
}

func validateConfigFile(configPath string) error {
	if configPath == "" {
		return nil
	}

	info, err := os.Stat(configPath)
	if os.IsNotExist(err) {
		return nil // not found is fine, using defaults
	}
	if err != nil {
		return criterio.NewFieldErrors("config_file", fmt.Errorf("cannot access: %w", err))
	}
	if info.IsDir() {
		return criterio.NewFieldErrors("config_file", fmt.Errorf("%s is a directory, not a file", configPath))
	}
	return nil
}

// isDirectoryOrNotExist validates that a path is a directory or doesn't exist.
func isDirectoryOrNotExist(path string) error {
	if path == "" {
		return nil
	}
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil // will be created
	}
	if err != nil {
		return fmt.Errorf("cannot access: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("exists but is not a directory")
	}
	return nil
}

func required(s string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("cannot be empty")
	}
	return nil
}

func oneOf(allowed ...string) func(string) error {
	return func(s string) error {
		for _, a := range allowed {
			if s == a {
				return nil
			}
		}
		return fmt.Errorf("must be one of %s, got %q", strings.Join(quoted(allowed), ", "), s)
	}
}

func quoted(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = fmt.Sprintf("%q", v)
	}
	return out
}

func granularity(s string) error {
	if !diff.Granularity(s).IsValid() {
		return fmt.Errorf("must be word, line or char, got %q", s)
	}
	return nil
}

func positive(n int) error {
	if n < 1 {
		return fmt.Errorf("must be at least 1")
	}
	return nil
}

func nonNegative(n int) error {
	if n < 0 {
		return fmt.Errorf("cannot be negative")
	}
	return nil
}

func atLeast(floor float64) func(float64) error {
	return func(v float64) error {
		if v < floor {
			return fmt.Errorf("must be at least %g", floor)
		}
		return nil
	}
}
