package commands

import (
	"context"
	"fmt"
	"strconv"

	"github.com/urfave/cli/v3"

	"github.com/mindprints/diff-commit/internal/core/validate"
	"github.com/mindprints/diff-commit/internal/printer"
)

type RevertCmd struct {
	flags *Flags

	commit  bool
	message string
}

// NewRevertCmd creates a new revert command.
func NewRevertCmd(flags *Flags) *RevertCmd {
	return &RevertCmd{flags: flags}
}

// Register adds the revert command to the application.
func (cmd *RevertCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "revert",
		Usage:     "Restore the text of an earlier checkpoint",
		ArgsUsage: "FILE SEQ",
		Description: `Writes the text of checkpoint SEQ back to the file, where it shows up
as pending changes against the latest checkpoint. Review it with
'diffcommit diff' or record it straight away with --commit.

History is never rewritten: reverting adds a new checkpoint.`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "commit",
				Usage:       "checkpoint the restored text immediately",
				Destination: &cmd.commit,
			},
			&cli.StringFlag{
				Name:        "message",
				Aliases:     []string{"m"},
				Usage:       "checkpoint message for --commit",
				Destination: &cmd.message,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *RevertCmd) run(ctx context.Context, c *cli.Command) error {
	if c.Args().Len() != 2 {
		return fmt.Errorf("expected FILE SEQ")
	}
	seq, err := strconv.Atoi(c.Args().Get(1))
	if err != nil {
		return fmt.Errorf("invalid checkpoint number %q", c.Args().Get(1))
	}
	if err := validate.Message(cmd.message); err != nil {
		return err
	}

	doc, err := openArg(ctx, c, cmd.flags.App)
	if err != nil {
		return err
	}

	commits := doc.Commits()
	if seq < 1 || seq > len(commits) {
		return fmt.Errorf("checkpoint #%d does not exist (latest is #%d)", seq, len(commits))
	}
	if err := doc.Revert(commits[seq-1].ID); err != nil {
		return err
	}

	if cmd.commit {
		message := cmd.message
		if message == "" {
			message = fmt.Sprintf("revert to #%d", seq)
		}
		return checkpoint(ctx, doc, message, true)
	}

	if err := doc.Write(ctx); err != nil {
		return err
	}
	printer.Ctx(ctx).Successf("Restored checkpoint #%d into %s (%s)", seq, doc.Path, summaryLine(doc.Stats()))
	return nil
}
