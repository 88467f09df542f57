package doctor

import (
	"context"
	"errors"
	"os"

	"github.com/hay-kot/criterio"

	"github.com/mindprints/diff-commit/internal/core/config"
)

// ConfigCheck validates the loaded configuration and reports its warnings.
type ConfigCheck struct {
	cfg  *config.Config
	path string
}

// NewConfigCheck creates a config check for cfg loaded from path.
func NewConfigCheck(cfg *config.Config, path string) *ConfigCheck {
	return &ConfigCheck{cfg: cfg, path: path}
}

func (c *ConfigCheck) Name() string {
	return "Configuration"
}

func (c *ConfigCheck) Run(_ context.Context) Result {
	result := Result{Name: c.Name()}

	switch _, err := os.Stat(c.path); {
	case c.path == "" || os.IsNotExist(err):
		result.add("config file", StatusPass, "not found, using defaults")
	case err != nil:
		result.add("config file", StatusFail, err.Error())
	default:
		result.add("config file", StatusPass, c.path)
	}

	if err := c.cfg.ValidateDeep(c.path); err != nil {
		var fieldErrs criterio.FieldErrors
		if errors.As(err, &fieldErrs) {
			for _, fe := range fieldErrs {
				result.add(fe.Field, StatusFail, fe.Err.Error())
			}
		} else {
			result.add("validation", StatusFail, err.Error())
		}
	} else {
		result.add("validation", StatusPass, "")
	}

	for _, w := range c.cfg.Warnings() {
		label := w.Category
		if w.Item != "" {
			label += " " + w.Item
		}
		result.add(label, StatusWarn, w.Message)
	}

	return result
}
