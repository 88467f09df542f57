package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/mindprints/diff-commit/internal/core/session"
	"github.com/mindprints/diff-commit/internal/core/validate"
	"github.com/mindprints/diff-commit/internal/diffcommit"
	"github.com/mindprints/diff-commit/internal/printer"
)

type CommitCmd struct {
	flags *Flags

	message   string
	reject    []string
	rejectAll bool
	save      bool
}

// NewCommitCmd creates a new commit command.
func NewCommitCmd(flags *Flags) *CommitCmd {
	return &CommitCmd{flags: flags}
}

// Register adds the commit command to the application.
func (cmd *CommitCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "commit",
		Usage:     "Checkpoint the reviewed text of a document",
		ArgsUsage: "FILE",
		Description: `Records the file's pending changes as a new checkpoint.

Changes listed with --reject (indices from 'diffcommit diff') are left out
of the checkpoint. With --save the checkpointed text is also written back to
the file, dropping the rejected changes from it.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "message",
				Aliases:     []string{"m"},
				Usage:       "checkpoint message",
				Destination: &cmd.message,
			},
			&cli.StringSliceFlag{
				Name:        "reject",
				Aliases:     []string{"r"},
				Usage:       "reject the change at index `N` (repeatable)",
				Destination: &cmd.reject,
			},
			&cli.BoolFlag{
				Name:        "reject-all",
				Usage:       "reject every change",
				Destination: &cmd.rejectAll,
			},
			&cli.BoolFlag{
				Name:        "save",
				Aliases:     []string{"s"},
				Usage:       "write the checkpointed text to the file",
				Destination: &cmd.save,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *CommitCmd) run(ctx context.Context, c *cli.Command) error {
	if err := validate.Message(cmd.message); err != nil {
		return err
	}

	doc, err := openArg(ctx, c, cmd.flags.App)
	if err != nil {
		return err
	}

	if cmd.rejectAll {
		doc.RejectAll()
	} else if err := rejectSegments(doc, cmd.reject); err != nil {
		return err
	}

	return checkpoint(ctx, doc, cmd.message, cmd.save)
}

// checkpoint commits doc and reports the outcome. An export failure is a
// warning: the checkpoint itself was recorded.
func checkpoint(ctx context.Context, doc *diffcommit.Document, message string, save bool) error {
	p := printer.Ctx(ctx)

	if !doc.Dirty() {
		p.Infof("Nothing to commit")
		if save && doc.EditorText() != doc.Materialize() {
			doc.SetEditorText(doc.Materialize())
			if err := doc.Write(ctx); err != nil {
				return err
			}
			p.Infof("Dropped rejected changes from %s", doc.Path)
		}
		return nil
	}

	stats := doc.Stats()
	commit, err := doc.Checkpoint(ctx, session.CheckpointOptions{Message: message, Save: save})
	switch {
	case errors.Is(err, session.ErrExport):
		p.Warnf("Checkpoint recorded but the file was not written: %v", err)
	case err != nil:
		return fmt.Errorf("checkpoint: %w", err)
	}

	detail := commit.ID
	if commit.Message != "" {
		detail += "  " + commit.Message
	}
	p.Success(fmt.Sprintf("Checkpoint #%d (%s)", commit.Seq, summaryLine(stats)), detail)

	if !save && stats.Rejected > 0 {
		p.Infof("Rejected changes are still in the file; use --save to drop them")
	}
	return nil
}
