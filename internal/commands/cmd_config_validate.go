package commands

import (
	"context"
	"errors"
	"strings"

	"github.com/hay-kot/criterio"
	"github.com/urfave/cli/v3"

	"github.com/mindprints/diff-commit/internal/core/config"
	"github.com/mindprints/diff-commit/internal/printer"
	"github.com/mindprints/diff-commit/pkg/iojson"
)

type ConfigValidateCmd struct {
	flags  *Flags
	format string
}

// NewConfigValidateCmd creates a new config validate command.
func NewConfigValidateCmd(flags *Flags) *ConfigValidateCmd {
	return &ConfigValidateCmd{flags: flags}
}

// Register adds the config validate command to the application.
func (cmd *ConfigValidateCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:  "config",
		Usage: "Configuration management commands",
		Commands: []*cli.Command{
			{
				Name:        "validate",
				Usage:       "Validate configuration file",
				UsageText:   "diffcommit config validate [options]",
				Description: "Validates the configuration file, checking prompt and command templates, provider settings, and the data directory.",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:        "format",
						Usage:       "output format (text, json)",
						Value:       "text",
						Destination: &cmd.format,
					},
				},
				Action: cmd.run,
			},
		},
	})

	return app
}

// validationIssue is one failed check.
type validationIssue struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

type validationReport struct {
	Valid    bool                       `json:"valid"`
	Config   string                     `json:"config,omitempty"`
	Kinds    []string                   `json:"kinds"`
	Errors   []validationIssue          `json:"errors,omitempty"`
	Warnings []config.ValidationWarning `json:"warnings,omitempty"`
}

func (cmd *ConfigValidateCmd) run(ctx context.Context, c *cli.Command) error {
	cfg := cmd.flags.Config
	report := validationReport{
		Config:   cmd.flags.ConfigPath,
		Kinds:    cfg.KindNames(),
		Errors:   issuesOf(cfg.ValidateDeep(cmd.flags.ConfigPath)),
		Warnings: cfg.Warnings(),
	}
	report.Valid = len(report.Errors) == 0

	if cmd.format == "json" {
		if err := iojson.WriteWith(c.Root().Writer, c.Root().ErrWriter, report); err != nil {
			return err
		}
	} else {
		cmd.outputText(printer.Ctx(ctx), report)
	}

	if !report.Valid {
		return cli.Exit("", 1)
	}
	return nil
}

// issuesOf flattens a validation error into one issue per field.
func issuesOf(err error) []validationIssue {
	if err == nil {
		return nil
	}

	var fieldErrs criterio.FieldErrors
	if !errors.As(err, &fieldErrs) {
		return []validationIssue{{Message: err.Error()}}
	}

	issues := make([]validationIssue, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		issues = append(issues, validationIssue{Field: fe.Field, Message: fe.Err.Error()})
	}
	return issues
}

func (cmd *ConfigValidateCmd) outputText(p *printer.Printer, report validationReport) {
	if report.Config != "" {
		p.Infof("Config: %s", report.Config)
	}
	p.Infof("Transform kinds: %s", strings.Join(report.Kinds, ", "))

	for _, warn := range report.Warnings {
		p.Warnf("%s: %s", warn.Category, warn.Message)
		if warn.Item != "" {
			p.Printf("  Item: %s", warn.Item)
		}
	}

	for _, issue := range report.Errors {
		if issue.Field != "" {
			p.Errorf("%s: %s", issue.Field, issue.Message)
		} else {
			p.Errorf("%s", issue.Message)
		}
	}

	p.Printf("")
	if report.Valid {
		p.Successf("Configuration is valid")
		return
	}
	p.Errorf("%d error(s) found", len(report.Errors))
}
