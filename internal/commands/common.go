package commands

import (
	"context"
	"fmt"
	"strconv"

	"github.com/urfave/cli/v3"

	"github.com/mindprints/diff-commit/internal/core/diff"
	"github.com/mindprints/diff-commit/internal/core/review"
	"github.com/mindprints/diff-commit/internal/core/validate"
	"github.com/mindprints/diff-commit/internal/diffcommit"
)

// openArg opens the document named by the first positional argument.
func openArg(ctx context.Context, c *cli.Command, app *diffcommit.App) (*diffcommit.Document, error) {
	if c.Args().Len() < 1 {
		return nil, fmt.Errorf("missing FILE argument")
	}
	path := c.Args().First()
	if err := validate.DocumentPath(path); err != nil {
		return nil, err
	}
	return app.Open(ctx, path)
}

// rejectSegments toggles the change segments at the given positions to
// rejected.
func rejectSegments(doc *diffcommit.Document, positions []string) error {
	gen := doc.Generation()
	for _, raw := range positions {
		idx, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("invalid segment index %q", raw)
		}
		id := review.ID{Generation: gen, Index: idx}
		if !doc.Toggle(id) {
			return fmt.Errorf("segment #%d is not a change", idx)
		}
	}
	return nil
}

// granularityOption overrides the configured granularity when g is set.
func granularityOption(base diff.Options, g string) (diff.Options, error) {
	if g == "" {
		return base, nil
	}
	if !diff.Granularity(g).IsValid() {
		return base, fmt.Errorf("granularity must be word, line or char, got %q", g)
	}
	base.Granularity = diff.Granularity(g)
	return base, nil
}
