package commands

import (
	"context"
	"fmt"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/urfave/cli/v3"

	"github.com/mindprints/diff-commit/internal/core/history"
	"github.com/mindprints/diff-commit/pkg/iojson"
)

type DocsCmd struct {
	flags *Flags

	match string
	json  bool
}

// NewDocsCmd creates a new docs command.
func NewDocsCmd(flags *Flags) *DocsCmd {
	return &DocsCmd{flags: flags}
}

// Register adds the docs command to the application.
func (cmd *DocsCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:    "docs",
		Aliases: []string{"ls"},
		Usage:   "List documents with history",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "match",
				Usage:       "only list documents whose path matches this glob (supports **)",
				Destination: &cmd.match,
			},
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "output as JSON lines",
				Destination: &cmd.json,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *DocsCmd) run(ctx context.Context, c *cli.Command) error {
	if cmd.match != "" && !doublestar.ValidatePattern(cmd.match) {
		return fmt.Errorf("invalid --match pattern %q", cmd.match)
	}

	docs, err := cmd.flags.App.Documents(ctx)
	if err != nil {
		return err
	}
	docs, err = filterDocuments(docs, cmd.match)
	if err != nil {
		return err
	}

	out := c.Root().Writer

	if cmd.json {
		for _, d := range docs {
			if err := iojson.WriteLine(out, d); err != nil {
				return err
			}
		}
		return nil
	}

	if len(docs) == 0 {
		_, _ = fmt.Fprintln(out, "No documents found")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "CHECKPOINTS\tLAST\tDRAFT\tPATH")
	for _, d := range docs {
		draft := ""
		if d.HasDraft {
			draft = "yes"
		}
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", d.Commits, formatTime(d.LastCommit), draft, d.DocumentID)
	}
	return w.Flush()
}

// filterDocuments keeps the documents whose ID matches pattern. Relative
// patterns match against the path relative to the working directory.
func filterDocuments(docs []history.DocumentInfo, pattern string) ([]history.DocumentInfo, error) {
	if pattern == "" {
		return docs, nil
	}

	if !filepath.IsAbs(pattern) {
		abs, err := filepath.Abs(pattern)
		if err != nil {
			return nil, err
		}
		pattern = abs
	}
	pattern = filepath.ToSlash(pattern)

	var out []history.DocumentInfo
	for _, d := range docs {
		ok, err := doublestar.Match(pattern, filepath.ToSlash(d.DocumentID))
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, d)
		}
	}
	return out, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}
