package commands

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"
)

// defaultWrap is the render width when the terminal size is unknown.
const defaultWrap = 100

var markdownExts = []string{".md", ".markdown", ".mdown"}

type ShowCmd struct {
	flags *Flags

	render bool
	raw    bool
}

// NewShowCmd creates a new show command.
func NewShowCmd(flags *Flags) *ShowCmd {
	return &ShowCmd{flags: flags}
}

// Register adds the show command to the application.
func (cmd *ShowCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "show",
		Usage:     "Print the text of a checkpoint",
		ArgsUsage: "FILE [SEQ]",
		Description: `Prints checkpoint SEQ of a document, or the latest one when SEQ is
omitted. Markdown documents are rendered when writing to a terminal; use
--raw for the stored text.`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "render",
				Usage:       "render as markdown regardless of file extension",
				Destination: &cmd.render,
			},
			&cli.BoolFlag{
				Name:        "raw",
				Usage:       "print the stored text without rendering",
				Destination: &cmd.raw,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *ShowCmd) run(ctx context.Context, c *cli.Command) error {
	doc, err := openArg(ctx, c, cmd.flags.App)
	if err != nil {
		return err
	}

	commits := doc.Commits()
	if len(commits) == 0 {
		return fmt.Errorf("%s has no checkpoints", doc.Path)
	}

	seq := len(commits)
	if c.Args().Len() > 1 {
		seq, err = strconv.Atoi(c.Args().Get(1))
		if err != nil || seq < 1 || seq > len(commits) {
			return fmt.Errorf("checkpoint %q does not exist (latest is #%d)", c.Args().Get(1), len(commits))
		}
	}
	text := commits[seq-1].Content

	out := c.Root().Writer
	if !cmd.raw && (cmd.render || (isMarkdown(doc.Path) && isTerminal(out))) {
		rendered, err := renderMarkdown(text, terminalWidth())
		if err != nil {
			return err
		}
		_, err = fmt.Fprint(out, rendered)
		return err
	}

	_, err = fmt.Fprint(out, text)
	if err == nil && !strings.HasSuffix(text, "\n") {
		_, err = fmt.Fprintln(out)
	}
	return err
}

func isMarkdown(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range markdownExts {
		if ext == e {
			return true
		}
	}
	return false
}

func renderMarkdown(text string, width int) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithStylePath("dark"),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", fmt.Errorf("create markdown renderer: %w", err)
	}
	return r.Render(text)
}

func terminalWidth() int {
	w, _, err := term.GetSize(1)
	if err != nil || w <= 0 {
		return defaultWrap
	}
	return w
}
