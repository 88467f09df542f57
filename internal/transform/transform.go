// Package transform implements operation.Transformer on top of language
// model providers and shell commands.
package transform

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/mindprints/diff-commit/internal/core/config"
	"github.com/mindprints/diff-commit/internal/core/operation"
	"github.com/mindprints/diff-commit/pkg/tmpl"
)

// Sentinel errors for transforms.
var (
	ErrUnknownKind        = errors.New("unknown transform kind")
	ErrMissingInstruction = errors.New("transform kind requires an instruction")
	ErrEmptyResult        = errors.New("provider returned empty text")
)

// Provider completes a single prompt.
type Provider interface {
	Name() string
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// PromptTransformer renders a kind's prompt template and sends it to a
// Provider.
type PromptTransformer struct {
	provider    Provider
	kinds       map[string]config.Kind
	system      string
	instruction string
	limiter     *rate.Limiter
	log         zerolog.Logger
}

var _ operation.Transformer = (*PromptTransformer)(nil)

// NewPromptTransformer builds a transformer for the configured kinds.
// limiter may be nil.
func NewPromptTransformer(p Provider, cfg config.TransformConfig, limiter *rate.Limiter, log zerolog.Logger) *PromptTransformer {
	return &PromptTransformer{
		provider: p,
		kinds:    cfg.Kinds,
		system:   cfg.System,
		limiter:  limiter,
		log:      log,
	}
}

// WithInstruction returns a copy that supplies instruction to kinds that
// need one.
func (t *PromptTransformer) WithInstruction(instruction string) *PromptTransformer {
	c := *t
	c.instruction = instruction
	return &c
}

// Transform implements operation.Transformer.
func (t *PromptTransformer) Transform(ctx context.Context, req operation.Request) (string, error) {
	prompt, err := t.Prompt(req.Kind, req.Text)
	if err != nil {
		return "", err
	}

	if t.limiter != nil && t.limiter.Tokens() < 1 {
		report(req, "waiting for rate limit")
	}
	if err := wait(ctx, t.limiter); err != nil {
		return "", err
	}

	report(req, "calling "+t.provider.Name())
	t.log.Debug().Str("kind", req.Kind).Str("provider", t.provider.Name()).Int("prompt_len", len(prompt)).Msg("sending transform")

	out, err := t.provider.Complete(ctx, t.system, prompt)
	if err != nil {
		return "", err
	}

	report(req, "received response")
	return Clean(req.Text, out)
}

// Prompt renders the prompt for kind over text.
func (t *PromptTransformer) Prompt(kind, text string) (string, error) {
	k, ok := t.kinds[kind]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	if k.Instruction && strings.TrimSpace(t.instruction) == "" {
		return "", fmt.Errorf("%w: %q", ErrMissingInstruction, kind)
	}
	return tmpl.Render(k.Prompt, config.PromptData{Kind: kind, Text: text, Instruction: t.instruction})
}

// Clean strips a code fence wrapped around the whole reply and matches the
// trailing newline of the input, since models rarely preserve either.
func Clean(input, output string) (string, error) {
	out := strings.TrimSpace(output)
	if strings.HasPrefix(out, "```") && strings.HasSuffix(out, "```") && len(out) >= 6 {
		body := strings.TrimSuffix(out, "```")
		if nl := strings.IndexByte(body, '\n'); nl >= 0 {
			out = strings.TrimSpace(body[nl+1:])
		}
	}
	if out == "" && strings.TrimSpace(input) != "" {
		return "", ErrEmptyResult
	}

	trailing := len(input) - len(strings.TrimRight(input, "\n"))
	return out + strings.Repeat("\n", trailing), nil
}

// NewLimiter converts requests per second and burst into a limiter. A
// non-positive rps disables limiting.
func NewLimiter(rps float64, burst int) *rate.Limiter {
	if rps <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(rps), max(burst, 1))
}

func wait(ctx context.Context, l *rate.Limiter) error {
	if l == nil {
		return nil
	}
	return l.Wait(ctx)
}

func report(req operation.Request, label string) {
	if req.Progress != nil {
		req.Progress(label)
	}
}
