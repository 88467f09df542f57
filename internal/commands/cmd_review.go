package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/urfave/cli/v3"

	"github.com/mindprints/diff-commit/internal/core/diff"
	"github.com/mindprints/diff-commit/internal/core/review"
	"github.com/mindprints/diff-commit/internal/core/validate"
	"github.com/mindprints/diff-commit/internal/diffcommit"
	"github.com/mindprints/diff-commit/internal/printer"
)

// maxPromptText bounds how much of a segment is shown in a prompt title.
const maxPromptText = 120

type ReviewCmd struct {
	flags *Flags

	message string
	noSave  bool
}

// NewReviewCmd creates a new review command.
func NewReviewCmd(flags *Flags) *ReviewCmd {
	return &ReviewCmd{flags: flags}
}

// Register adds the review command to the application.
func (cmd *ReviewCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "review",
		Usage:     "Accept or reject each change interactively, then checkpoint",
		ArgsUsage: "FILE",
		Description: `Walks through the pending changes of a document one at a time.
Kept changes go into the checkpoint; rejected ones are undone. The merged
text is written back to the file unless --no-save is given.

Requires a terminal. For scripted use see 'diffcommit commit --reject'.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "message",
				Aliases:     []string{"m"},
				Usage:       "checkpoint message (prompted when empty)",
				Destination: &cmd.message,
			},
			&cli.BoolFlag{
				Name:        "no-save",
				Usage:       "record the checkpoint without rewriting the file",
				Destination: &cmd.noSave,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *ReviewCmd) run(ctx context.Context, c *cli.Command) error {
	if !isTerminal(os.Stdin) || !isTerminal(os.Stdout) {
		return fmt.Errorf("review needs a terminal; use 'diffcommit commit --reject N' instead")
	}

	doc, err := openArg(ctx, c, cmd.flags.App)
	if err != nil {
		return err
	}

	p := printer.Ctx(ctx)
	if !doc.Dirty() {
		p.Infof("Nothing to review")
		return nil
	}

	r := segmentRenderer{color: true, numbered: true}
	fmt.Fprintln(c.Root().Writer, r.render(doc.Items()))

	if err := cmd.decide(doc); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			p.Infof("Review cancelled")
			return nil
		}
		return err
	}

	if cmd.message == "" {
		err := huh.NewInput().
			Title("Checkpoint message").
			Validate(validate.Message).
			Value(&cmd.message).
			Run()
		if err != nil {
			if errors.Is(err, huh.ErrUserAborted) {
				p.Infof("Review cancelled")
				return nil
			}
			return err
		}
	} else if err := validate.Message(cmd.message); err != nil {
		return err
	}

	return checkpoint(ctx, doc, cmd.message, !cmd.noSave)
}

// decide prompts once per change segment and rejects the ones not kept.
func (cmd *ReviewCmd) decide(doc *diffcommit.Document) error {
	for _, it := range doc.Items() {
		if it.Kind == diff.Unchanged {
			continue
		}

		keep := true
		err := huh.NewConfirm().
			Title(promptTitle(it)).
			Affirmative("Keep").
			Negative("Reject").
			Value(&keep).
			Run()
		if err != nil {
			return err
		}
		if !keep {
			doc.Toggle(it.ID)
		}
	}
	return nil
}

func promptTitle(it review.Item) string {
	verb := "Insert"
	if it.Kind == diff.Deleted {
		verb = "Delete"
	}
	text := strings.TrimSpace(it.Text)
	if text == "" {
		text = fmt.Sprintf("%q", it.Text)
	}
	if r := []rune(text); len(r) > maxPromptText {
		text = string(r[:maxPromptText]) + "…"
	}
	return fmt.Sprintf("#%d %s: %s", it.ID.Index, verb, text)
}
