// Package printer writes styled status lines for CLI commands.
package printer

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/mindprints/diff-commit/internal/core/styles"
)

type ctxKey struct{}

// Printer writes human-facing output. Status lines go to out; errors and
// warnings go to errOut.
type Printer struct {
	out    io.Writer
	errOut io.Writer
}

// New creates a printer.
func New(out, errOut io.Writer) *Printer {
	return &Printer{out: out, errOut: errOut}
}

// NewContext returns a context carrying p.
func NewContext(ctx context.Context, p *Printer) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

// Ctx returns the printer stored in ctx, or one writing to stdout and stderr.
func Ctx(ctx context.Context) *Printer {
	if p, ok := ctx.Value(ctxKey{}).(*Printer); ok {
		return p
	}
	return New(os.Stdout, os.Stderr)
}

// Out returns the writer for regular output.
func (p *Printer) Out() io.Writer {
	return p.out
}

// Printf prints one unstyled line.
func (p *Printer) Printf(format string, args ...any) {
	fmt.Fprintln(p.out, fmt.Sprintf(format, args...))
}

func (p *Printer) Successf(format string, args ...any) {
	fmt.Fprintln(p.out, styles.SuccessStyle.Render("✓")+" "+fmt.Sprintf(format, args...))
}

func (p *Printer) Infof(format string, args ...any) {
	fmt.Fprintln(p.out, styles.MutedStyle.Render("•")+" "+fmt.Sprintf(format, args...))
}

func (p *Printer) Warnf(format string, args ...any) {
	fmt.Fprintln(p.errOut, styles.WarningStyle.Render("!")+" "+fmt.Sprintf(format, args...))
}

func (p *Printer) Errorf(format string, args ...any) {
	fmt.Fprintln(p.errOut, styles.ErrorStyle.Render("✗")+" "+fmt.Sprintf(format, args...))
}

// Section prints a bold heading.
func (p *Printer) Section(title string) {
	fmt.Fprintln(p.out, styles.HeaderStyle.Render(title))
}

// Success prints a title with a muted detail line beneath it.
func (p *Printer) Success(title, detail string) {
	p.Successf("%s", title)
	if detail != "" {
		fmt.Fprintln(p.out, "  "+styles.MutedStyle.Render(detail))
	}
}
