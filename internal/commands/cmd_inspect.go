package commands

import (
	"context"
	"fmt"

	"github.com/sanity-io/litter"
	"github.com/urfave/cli/v3"

	"github.com/mindprints/diff-commit/internal/core/history"
	"github.com/mindprints/diff-commit/internal/core/operation"
	"github.com/mindprints/diff-commit/internal/core/review"
	"github.com/mindprints/diff-commit/internal/diffcommit"
)

type InspectCmd struct {
	flags *Flags
}

// NewInspectCmd creates a new inspect command.
func NewInspectCmd(flags *Flags) *InspectCmd {
	return &InspectCmd{flags: flags}
}

// Register adds the inspect command to the application.
func (cmd *InspectCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "inspect",
		Usage:     "Dump the full session state of a document",
		ArgsUsage: "FILE",
		Hidden:    true,
		Action:    cmd.run,
	})

	return app
}

// documentState is the debug view of an open document.
type documentState struct {
	Path           string
	Baseline       string
	Editor         string
	Dirty          bool
	Generation     uint64
	Stats          review.Summary
	Items          []review.Item
	Commits        []history.Commit
	RecoveredDraft *history.Draft
	Operations     []operation.Operation
}

func stateOf(doc *diffcommit.Document) documentState {
	st := documentState{
		Path:       doc.Path,
		Baseline:   doc.Baseline(),
		Editor:     doc.EditorText(),
		Dirty:      doc.Dirty(),
		Generation: doc.Generation(),
		Stats:      doc.Stats(),
		Items:      doc.Items(),
		Commits:    doc.Commits(),
		Operations: doc.Operations().List(),
	}
	if d, ok := doc.RecoveredDraft(); ok {
		st.RecoveredDraft = &d
	}
	return st
}

func (cmd *InspectCmd) run(ctx context.Context, c *cli.Command) error {
	doc, err := openArg(ctx, c, cmd.flags.App)
	if err != nil {
		return err
	}

	opts := litter.Options{
		HidePrivateFields: true,
		StripPackageNames: true,
		Compact:           false,
	}
	_, err = fmt.Fprintln(c.Root().Writer, opts.Sdump(stateOf(doc)))
	return err
}
