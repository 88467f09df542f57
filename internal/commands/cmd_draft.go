package commands

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/urfave/cli/v3"

	"github.com/mindprints/diff-commit/internal/core/diff"
	"github.com/mindprints/diff-commit/internal/diffcommit"
	"github.com/mindprints/diff-commit/internal/printer"
)

type DraftCmd struct {
	flags *Flags

	yes bool
}

// NewDraftCmd creates a new draft command.
func NewDraftCmd(flags *Flags) *DraftCmd {
	return &DraftCmd{flags: flags}
}

// Register adds the draft command to the application.
func (cmd *DraftCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:  "draft",
		Usage: "Inspect and recover unsaved drafts",
		Description: `Drafts are written by autosave during 'diffcommit watch' and by
'diffcommit transform --draft'. A draft newer than the latest checkpoint
is offered for recovery until it is restored or discarded.`,
		Commands: []*cli.Command{
			{
				Name:      "show",
				Usage:     "Show how the draft differs from the file",
				ArgsUsage: "FILE",
				Action:    cmd.runShow,
			},
			{
				Name:      "restore",
				Usage:     "Write the draft into the file",
				ArgsUsage: "FILE",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:        "yes",
						Aliases:     []string{"y"},
						Usage:       "do not ask for confirmation",
						Destination: &cmd.yes,
					},
				},
				Action: cmd.runRestore,
			},
			{
				Name:      "discard",
				Usage:     "Delete the draft",
				ArgsUsage: "FILE",
				Action:    cmd.runDiscard,
			},
		},
	})

	return app
}

// recovered opens the document and returns its recoverable draft content.
func (cmd *DraftCmd) recovered(ctx context.Context, c *cli.Command) (*diffcommit.Document, string, error) {
	doc, err := openArg(ctx, c, cmd.flags.App)
	if err != nil {
		return nil, "", err
	}
	d, ok := doc.RecoveredDraft()
	if !ok {
		return doc, "", fmt.Errorf("no recoverable draft for %s", doc.Path)
	}
	return doc, d.Content, nil
}

func (cmd *DraftCmd) runShow(ctx context.Context, c *cli.Command) error {
	doc, draft, err := cmd.recovered(ctx, c)
	if err != nil {
		return err
	}

	out, err := diff.Unified(doc.Path, "draft", doc.EditorText(), draft, cmd.flags.Config.Diff.ContextLines)
	if err != nil {
		return err
	}
	fmt.Fprint(c.Root().Writer, renderUnified(out, isTerminal(c.Root().Writer)))
	return nil
}

func (cmd *DraftCmd) runRestore(ctx context.Context, c *cli.Command) error {
	doc, _, err := cmd.recovered(ctx, c)
	if err != nil {
		return err
	}

	p := printer.Ctx(ctx)
	if !cmd.yes {
		if !isTerminal(os.Stdin) {
			return fmt.Errorf("restoring overwrites %s; pass --yes to confirm", doc.Path)
		}
		confirm := false
		err := huh.NewConfirm().
			Title(fmt.Sprintf("Overwrite %s with the draft?", doc.Path)).
			Affirmative("Restore").
			Negative("Cancel").
			Value(&confirm).
			Run()
		if err != nil && !errors.Is(err, huh.ErrUserAborted) {
			return err
		}
		if !confirm {
			p.Infof("Draft left untouched")
			return nil
		}
	}

	if err := doc.RestoreRecoveredDraft(); err != nil {
		return err
	}
	if err := doc.Write(ctx); err != nil {
		return err
	}
	p.Successf("Restored draft into %s (%s)", doc.Path, summaryLine(doc.Stats()))
	return nil
}

func (cmd *DraftCmd) runDiscard(ctx context.Context, c *cli.Command) error {
	doc, _, err := cmd.recovered(ctx, c)
	if err != nil {
		return err
	}
	if err := doc.DiscardRecoveredDraft(ctx); err != nil {
		return err
	}
	printer.Ctx(ctx).Successf("Discarded draft for %s", doc.Path)
	return nil
}
