package commands

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/mindprints/diff-commit/internal/core/diff"
	"github.com/mindprints/diff-commit/internal/core/review"
	"github.com/mindprints/diff-commit/internal/printer"
	"github.com/mindprints/diff-commit/pkg/iojson"
)

type DiffCmd struct {
	flags *Flags

	granularity string
	stat        bool
	jsonOutput  bool
	noColor     bool
}

// NewDiffCmd creates a new diff command.
func NewDiffCmd(flags *Flags) *DiffCmd {
	return &DiffCmd{flags: flags}
}

// Register adds the diff command to the application.
func (cmd *DiffCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "diff",
		Usage:     "Show pending changes of a document",
		ArgsUsage: "FILE [OTHER]",
		Description: `With one file, shows the changes between the last checkpoint and the file.
With two files, compares them directly without touching history.

Each change is prefixed with its index (#N); pass indices to
'diffcommit commit --reject N' to drop a change from the checkpoint.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "granularity",
				Aliases:     []string{"g"},
				Usage:       "diff granularity (word, line, char)",
				Destination: &cmd.granularity,
			},
			&cli.BoolFlag{
				Name:        "stat",
				Usage:       "print only a change summary",
				Destination: &cmd.stat,
			},
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "output segments as JSON",
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

func (cmd *DiffCmd) run(ctx context.Context, c *cli.Command) error {
	opts, err := granularityOption(cmd.flags.Config.Diff.Options(), cmd.granularity)
	if err != nil {
		return err
	}

	var (
		items []review.Item
		stats review.Summary
	)
	switch c.Args().Len() {
	case 1:
		doc, err := openArg(ctx, c, cmd.flags.App)
		if err != nil {
			return err
		}
		if cmd.granularity == "" {
			items, stats = doc.Items(), doc.Stats()
		} else {
			m := review.New(diff.ComputeWith(doc.Baseline(), doc.EditorText(), opts))
			items, stats = m.Items(), m.Stats()
		}
	case 2:
		a, err := os.ReadFile(c.Args().Get(0))
		if err != nil {
			return err
		}
		b, err := os.ReadFile(c.Args().Get(1))
		if err != nil {
			return err
		}
		m := review.New(diff.ComputeWith(string(a), string(b), opts))
		items, stats = m.Items(), m.Stats()
	default:
		return fmt.Errorf("expected FILE or FILE OTHER")
	}

	w := c.Root().Writer

	if cmd.jsonOutput {
		return iojson.WriteWith(w, os.Stderr, struct {
			Segments []review.Item `json:"segments"`
			Stats    review.Summary `json:"stats"`
		}{items, stats})
	}

	p := printer.Ctx(ctx)
	if cmd.stat || stats.Changes == 0 {
		p.Infof("%s", summaryLine(stats))
		return nil
	}

	r := segmentRenderer{color: !cmd.noColor && isTerminal(w), numbered: true}
	out := r.render(items)
	if !strings.HasSuffix(out, "\n") {
		out += "\n"
	}
	fmt.Fprint(w, out)
	return nil
}
