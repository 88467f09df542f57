// Package config handles configuration loading and validation for diffcommit.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mindprints/diff-commit/internal/core/diff"
	"github.com/mindprints/diff-commit/internal/core/styles"
)

// Storage backends.
const (
	BackendSQLite = "sqlite"
	BackendJSON   = "json"
	DraftsBadger  = "badger"
)

// Transform providers.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderCommand   = "command"
)

// Config holds the application configuration.
type Config struct {
	Storage   StorageConfig   `yaml:"storage"`
	Diff      DiffConfig      `yaml:"diff"`
	Autosave  AutosaveConfig  `yaml:"autosave"`
	Transform TransformConfig `yaml:"transform"`
	Watch     WatchConfig     `yaml:"watch"`
	Theme     string          `yaml:"theme"`
	DataDir   string          `yaml:"-"` // set by caller, not from config file
}

// StorageConfig selects the persistence collaborators.
type StorageConfig struct {
	Backend string `yaml:"backend"` // sqlite or json
	Drafts  string `yaml:"drafts"`  // empty to use the backend, or badger
}

// DiffConfig tunes the diff engine.
type DiffConfig struct {
	Granularity  string `yaml:"granularity"`   // word, line or char
	MaxEdits     int    `yaml:"max_edits"`     // edit budget before full replacement
	ContextLines int    `yaml:"context_lines"` // unified diff context for log -p
}

// Options converts the configuration into diff engine options.
func (d DiffConfig) Options() diff.Options {
	return diff.Options{Granularity: diff.Granularity(d.Granularity), MaxEdits: d.MaxEdits}
}

// AutosaveConfig controls draft autosave.
type AutosaveConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
}

// TransformConfig configures the transform transport and the available kinds.
type TransformConfig struct {
	Provider  string          `yaml:"provider"`
	Model     string          `yaml:"model"`
	BaseURL   string          `yaml:"base_url"`
	APIKeyEnv string          `yaml:"api_key_env"`
	MaxTokens int             `yaml:"max_tokens"`
	Timeout   time.Duration   `yaml:"timeout"`
	RateLimit float64         `yaml:"rate_limit"` // requests per second, 0 disables
	Burst     int             `yaml:"burst"`
	Command   string          `yaml:"command"` // shell template for the command provider
	System    string          `yaml:"system"`
	Kinds     map[string]Kind `yaml:"kinds"`
}

// Kind is a named transform with its prompt template.
type Kind struct {
	Description string `yaml:"description"`
	// Prompt is rendered with PromptData.
	Prompt string `yaml:"prompt"`
	// Instruction marks kinds that need a free-form instruction from the user.
	Instruction bool `yaml:"instruction"`
}

// PromptData defines the fields available to prompt and command templates.
type PromptData struct {
	Kind        string
	Text        string
	Instruction string
}

// WatchConfig configures the watch command.
type WatchConfig struct {
	Debounce    time.Duration `yaml:"debounce"`
	MetricsAddr string        `yaml:"metrics_addr"` // empty disables the metrics endpoint
}

// defaultKinds are the built-in transforms users can override or extend.
var defaultKinds = map[string]Kind{
	"spelling": {
		Description: "fix spelling mistakes",
		Prompt:      "Correct the spelling mistakes in the text below. Change nothing else.\n\n{{ .Text }}",
	},
	"grammar": {
		Description: "fix grammar and punctuation",
		Prompt:      "Correct the grammar and punctuation of the text below. Keep the wording where it is already correct.\n\n{{ .Text }}",
	},
	"polish": {
		Description: "improve clarity and flow",
		Prompt:      "Improve the clarity and flow of the text below while keeping its meaning, tone and structure.\n\n{{ .Text }}",
	},
	"prompt": {
		Description: "apply a free-form instruction",
		Prompt:      "{{ .Instruction }}\n\nApply the instruction above to the text below.\n\n{{ .Text }}",
		Instruction: true,
	},
}

const defaultSystem = "You are a careful editor. Reply with the full revised text only, without commentary or code fences."

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Storage: StorageConfig{Backend: BackendSQLite},
		Diff: DiffConfig{
			Granularity:  string(diff.GranularityWord),
			MaxEdits:     diff.DefaultMaxEdits,
			ContextLines: diff.DefaultContextLines,
		},
		Autosave: AutosaveConfig{Enabled: true, Interval: 5 * time.Second},
		Transform: TransformConfig{
			Provider:  ProviderOpenAI,
			Model:     "gpt-4o-mini",
			APIKeyEnv: "OPENAI_API_KEY",
			MaxTokens: 4096,
			Timeout:   2 * time.Minute,
			RateLimit: 1,
			Burst:     1,
			System:    defaultSystem,
			Kinds:     map[string]Kind{},
		},
		Watch: WatchConfig{Debounce: 250 * time.Millisecond},
		Theme: styles.DefaultTheme,
	}
}

// Load reads configuration from the given path and sets the data directory.
// If configPath is empty or doesn't exist, returns defaults with the provided dataDir.
func Load(configPath, dataDir string) (*Config, error) {
	cfg := DefaultConfig()
	cfg.DataDir = dataDir

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			data, err := os.ReadFile(configPath)
			if err != nil {
				return nil, fmt.Errorf("read config file: %w", err)
			}

			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config file: %w", err)
			}

			// Re-set dataDir since Unmarshal may have cleared it
			cfg.DataDir = dataDir
		}
	}

	// User kinds override built-ins of the same name.
	cfg.Transform.Kinds = mergeKinds(defaultKinds, cfg.Transform.Kinds)

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// applyDefaults sets default values for any unset configuration options.
func (c *Config) applyDefaults() {
	defaults := DefaultConfig()
	if c.Storage.Backend == "" {
		c.Storage.Backend = defaults.Storage.Backend
	}
	if c.Diff.Granularity == "" {
		c.Diff.Granularity = defaults.Diff.Granularity
	}
	if c.Diff.MaxEdits == 0 {
		c.Diff.MaxEdits = defaults.Diff.MaxEdits
	}
	if c.Autosave.Interval == 0 {
		c.Autosave.Interval = defaults.Autosave.Interval
	}
	if c.Transform.Timeout == 0 {
		c.Transform.Timeout = defaults.Transform.Timeout
	}
	if c.Transform.MaxTokens == 0 {
		c.Transform.MaxTokens = defaults.Transform.MaxTokens
	}
	if c.Transform.Burst == 0 {
		c.Transform.Burst = defaults.Transform.Burst
	}
	if c.Transform.System == "" {
		c.Transform.System = defaults.Transform.System
	}
	if c.Transform.APIKeyEnv == "" {
		switch c.Transform.Provider {
		case ProviderOpenAI:
			c.Transform.APIKeyEnv = "OPENAI_API_KEY"
		case ProviderAnthropic:
			c.Transform.APIKeyEnv = "ANTHROPIC_API_KEY"
		}
	}
	if c.Watch.Debounce == 0 {
		c.Watch.Debounce = defaults.Watch.Debounce
	}
	if c.Theme == "" {
		c.Theme = defaults.Theme
	}
}

func mergeKinds(defaults, user map[string]Kind) map[string]Kind {
	result := make(map[string]Kind, len(defaults)+len(user))
	for k, v := range defaults {
		result[k] = v
	}
	for k, v := range user {
		result[k] = v
	}
	return result
}

// DatabaseFile returns the path of the SQLite database.
func (c *Config) DatabaseFile() string {
	return filepath.Join(c.DataDir, "diffcommit.db")
}

// HistoryDir returns the directory used by the JSON backend.
func (c *Config) HistoryDir() string {
	return filepath.Join(c.DataDir, "history")
}

// DraftsDir returns the directory used by the Badger draft slot.
func (c *Config) DraftsDir() string {
	return filepath.Join(c.DataDir, "drafts")
}

// LogsDir returns the directory for batch run logs.
func (c *Config) LogsDir() string {
	return filepath.Join(c.DataDir, "logs")
}
