package commands

import (
	"context"
	"fmt"
	"slices"

	"github.com/urfave/cli/v3"

	"github.com/mindprints/diff-commit/internal/core/diff"
	"github.com/mindprints/diff-commit/internal/core/history"
	"github.com/mindprints/diff-commit/internal/core/styles"
	"github.com/mindprints/diff-commit/internal/printer"
	"github.com/mindprints/diff-commit/pkg/iojson"
)

type LogCmd struct {
	flags *Flags

	patch      bool
	limit      int
	jsonOutput bool
	noColor    bool
}

// NewLogCmd creates a new log command.
func NewLogCmd(flags *Flags) *LogCmd {
	return &LogCmd{flags: flags}
}

// Register adds the log command to the application.
func (cmd *LogCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "log",
		Usage:     "Show the checkpoint history of a document",
		ArgsUsage: "FILE",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "patch",
				Aliases:     []string{"p"},
				Usage:       "show a unified diff against each checkpoint's parent",
				Destination: &cmd.patch,
			},
			&cli.IntFlag{
				Name:        "limit",
				Aliases:     []string{"n"},
				Usage:       "show at most `N` checkpoints (0 for all)",
				Destination: &cmd.limit,
			},
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "output checkpoints as JSON lines",
				Destination: &cmd.jsonOutput,
			},
			&cli.BoolFlag{
				Name:        "no-color",
				Usage:       "disable colored output",
				Destination: &cmd.noColor,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *LogCmd) run(ctx context.Context, c *cli.Command) error {
	doc, err := openArg(ctx, c, cmd.flags.App)
	if err != nil {
		return err
	}

	commits := doc.Commits()
	if len(commits) == 0 {
		printer.Ctx(ctx).Infof("No checkpoints yet")
		return nil
	}

	// Newest first, each paired with its parent's content.
	parents := make(map[string]string, len(commits))
	for _, cm := range commits {
		parents[cm.ID] = cm.Content
	}
	slices.Reverse(commits)
	if cmd.limit > 0 && len(commits) > cmd.limit {
		commits = commits[:cmd.limit]
	}

	w := c.Root().Writer
	color := !cmd.noColor && isTerminal(w)

	for _, cm := range commits {
		if cmd.jsonOutput {
			if err := iojson.WriteLine(w, cm); err != nil {
				return err
			}
			continue
		}

		fmt.Fprintln(w, commitHeader(cm, color))
		if !cmd.patch {
			continue
		}

		patch, err := diff.Unified(parentName(cm), fmt.Sprintf("#%d", cm.Seq), parents[cm.ParentID], cm.Content, cmd.flags.Config.Diff.ContextLines)
		if err != nil {
			return fmt.Errorf("diff checkpoint #%d: %w", cm.Seq, err)
		}
		fmt.Fprintln(w, renderUnified(patch, color))
	}
	return nil
}

func commitHeader(cm history.Commit, color bool) string {
	id := cm.ID
	if len(id) > 8 {
		id = id[:8]
	}
	seq := fmt.Sprintf("#%d", cm.Seq)
	when := cm.CreatedAt.Local().Format("2006-01-02 15:04:05")
	if color {
		seq = styles.HeaderStyle.Render(seq)
		id = styles.WarningStyle.Render(id)
		when = styles.MutedStyle.Render(when)
	}

	line := fmt.Sprintf("%s %s %s", seq, id, when)
	if cm.Message != "" {
		line += "  " + cm.Message
	}
	return line
}

func parentName(cm history.Commit) string {
	if cm.IsRoot() {
		return "/dev/null"
	}
	return fmt.Sprintf("#%d", cm.Seq-1)
}
