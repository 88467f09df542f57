package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/mindprints/diff-commit/internal/core/eventbus"
	"github.com/mindprints/diff-commit/internal/core/operation"
	"github.com/mindprints/diff-commit/internal/core/validate"
	"github.com/mindprints/diff-commit/internal/printer"
)

type TransformCmd struct {
	flags *Flags

	instruction string
	draft       bool
	quiet       bool
}

// NewTransformCmd creates a new transform command.
func NewTransformCmd(flags *Flags) *TransformCmd {
	return &TransformCmd{flags: flags}
}

// Register adds the transform command to the application.
func (cmd *TransformCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "transform",
		Usage:     "Run a transform over a document",
		ArgsUsage: "FILE KIND",
		Description: `Sends the document text through the configured provider and writes the
result back to the file, where it shows up as pending changes. With --draft
the result goes to the recovery draft instead and the file is untouched.

Kinds come from the transform.kinds config section. Built-in kinds are
spelling, grammar, polish and prompt; prompt takes --instruction.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "instruction",
				Aliases:     []string{"i"},
				Usage:       "free-form instruction for kinds that take one",
				Destination: &cmd.instruction,
			},
			&cli.BoolFlag{
				Name:        "draft",
				Usage:       "save the result as a draft instead of writing the file",
				Destination: &cmd.draft,
			},
			&cli.BoolFlag{
				Name:        "quiet",
				Aliases:     []string{"q"},
				Usage:       "do not print the resulting changes",
				Destination: &cmd.quiet,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *TransformCmd) run(ctx context.Context, c *cli.Command) error {
	if c.Args().Len() != 2 {
		return fmt.Errorf("expected FILE KIND")
	}
	kinds := cmd.flags.Config.Transform.Kinds
	kind := c.Args().Get(1)
	if err := validate.Kind(kinds)(kind); err != nil {
		return fmt.Errorf("%w (available: %s)", err, strings.Join(cmd.flags.Config.KindNames(), ", "))
	}
	if kinds[kind].Instruction && strings.TrimSpace(cmd.instruction) == "" {
		return fmt.Errorf("kind %q needs --instruction", kind)
	}

	app := cmd.flags.App
	doc, err := openArg(ctx, c, app)
	if err != nil {
		return err
	}

	if _, ok := doc.RecoveredDraft(); ok && cmd.draft {
		return fmt.Errorf("a draft for %s awaits recovery; restore or discard it first", doc.Path)
	}

	p := printer.Ctx(ctx)
	app.Bus.SubscribeOperationProgress(func(pl eventbus.OperationProgressPayload) {
		if pl.DocumentID == doc.Path && !cmd.quiet {
			p.Infof("%s", pl.Operation.Progress)
		}
	})

	id, err := doc.Transform(kind, cmd.instruction)
	if err != nil {
		return err
	}

	op, err := doc.Operations().Wait(ctx, id)
	if err != nil {
		doc.Operations().Cancel(id)
		return err
	}

	switch op.Status {
	case operation.StatusError:
		return op.Err
	case operation.StatusCancelled:
		p.Warnf("Transform cancelled")
		return nil
	}
	if op.Resolution != operation.ResolutionApplied {
		_ = doc.Operations().DiscardStale(id)
		return fmt.Errorf("the document changed while the transform ran; nothing was written")
	}

	if !cmd.quiet {
		r := segmentRenderer{color: isTerminal(c.Root().Writer), numbered: true}
		fmt.Fprintln(c.Root().Writer, r.render(doc.Items()))
	}

	if cmd.draft {
		if err := doc.SaveDraft(ctx); err != nil {
			return err
		}
		p.Success("Saved result as draft", "restore it with 'diffcommit draft restore "+c.Args().First()+"'")
		return nil
	}

	if err := doc.Write(ctx); err != nil {
		return err
	}
	p.Successf("Applied %s to %s (%s)", kind, doc.Path, summaryLine(doc.Stats()))
	return nil
}
