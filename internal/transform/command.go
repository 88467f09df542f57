package transform

import (
	"context"
	"fmt"

	"github.com/mindprints/diff-commit/internal/core/config"
	"github.com/mindprints/diff-commit/internal/core/operation"
	"github.com/mindprints/diff-commit/pkg/executil"
	"github.com/mindprints/diff-commit/pkg/tmpl"
)

// Command pipes the document through a shell command. The command template
// is rendered with config.PromptData, and the text is written to stdin.
type Command struct {
	template    string
	kinds       map[string]config.Kind
	instruction string
	filter      executil.Filter
}

var _ operation.Transformer = (*Command)(nil)

// NewCommand creates a command transformer. A nil filter runs commands
// through sh.
func NewCommand(cfg config.TransformConfig, filter executil.Filter) *Command {
	if filter == nil {
		filter = &executil.Shell{}
	}
	return &Command{template: cfg.Command, kinds: cfg.Kinds, filter: filter}
}

// WithInstruction returns a copy exposing instruction to the template.
func (c *Command) WithInstruction(instruction string) *Command {
	cp := *c
	cp.instruction = instruction
	return &cp
}

// Transform implements operation.Transformer.
func (c *Command) Transform(ctx context.Context, req operation.Request) (string, error) {
	if _, ok := c.kinds[req.Kind]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, req.Kind)
	}

	cmd, err := tmpl.Render(c.template, config.PromptData{
		Kind:        req.Kind,
		Text:        req.Text,
		Instruction: c.instruction,
	})
	if err != nil {
		return "", fmt.Errorf("render command: %w", err)
	}

	report(req, "running command")
	out, err := c.filter.Filter(ctx, cmd, req.Text)
	if err != nil {
		return "", fmt.Errorf("transform command: %w", err)
	}
	return out, nil
}
