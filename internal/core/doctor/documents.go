package doctor

import (
	"context"
	"fmt"
	"os"

	"github.com/mindprints/diff-commit/internal/core/history"
)

// DocumentsCheck looks for stored history whose file no longer exists. A
// draft left for such a document can never be recovered; autofix clears it.
type DocumentsCheck struct {
	list    func(ctx context.Context) ([]history.DocumentInfo, error)
	drafts  history.DraftSlot
	autofix bool
}

// NewDocumentsCheck creates a documents check. list is typically
// App.Documents.
func NewDocumentsCheck(list func(ctx context.Context) ([]history.DocumentInfo, error), drafts history.DraftSlot, autofix bool) *DocumentsCheck {
	return &DocumentsCheck{list: list, drafts: drafts, autofix: autofix}
}

func (c *DocumentsCheck) Name() string {
	return "Documents"
}

func (c *DocumentsCheck) Run(ctx context.Context) Result {
	result := Result{Name: c.Name()}

	docs, err := c.list(ctx)
	if err != nil {
		result.add("history", StatusWarn, fmt.Sprintf("cannot list documents: %v", err))
		return result
	}

	missing := 0
	for _, d := range docs {
		if _, err := os.Stat(d.DocumentID); !os.IsNotExist(err) {
			continue
		}
		missing++

		item := CheckItem{
			Label:  d.DocumentID,
			Status: StatusWarn,
			Detail: "file no longer exists",
		}
		if d.HasDraft {
			item.Fixable = true
			item.Detail = "file no longer exists; orphaned draft"
			if c.autofix {
				if err := c.drafts.ClearDraft(ctx, d.DocumentID); err != nil {
					item.Status = StatusFail
					item.Detail = fmt.Sprintf("clear orphaned draft: %v", err)
				} else {
					item.Fixed = true
					item.Detail = "file no longer exists; draft cleared"
				}
			}
		}
		result.Items = append(result.Items, item)
	}

	if missing == 0 {
		result.add("history", StatusPass, fmt.Sprintf("%d document(s)", len(docs)))
	}
	return result
}
