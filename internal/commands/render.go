package commands

import (
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/mindprints/diff-commit/internal/core/diff"
	"github.com/mindprints/diff-commit/internal/core/review"
	"github.com/mindprints/diff-commit/internal/core/styles"
)

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// segmentRenderer prints review items inline. Without color, deletions are
// written as [-text-] and insertions as {+text+}. Rejected changes are
// marked with ~ instead of the sign.
type segmentRenderer struct {
	color    bool
	numbered bool
}

func (r segmentRenderer) render(items []review.Item) string {
	var b strings.Builder
	for _, it := range items {
		if it.Kind == diff.Unchanged {
			b.WriteString(it.Text)
			continue
		}
		b.WriteString(r.change(it))
	}
	return b.String()
}

func (r segmentRenderer) change(it review.Item) string {
	var out string
	rejected := it.State == review.StateRejected

	if r.color {
		switch {
		case rejected:
			out = styles.RejectedStyle.Render(it.Text)
		case it.Kind == diff.Inserted:
			out = styles.InsertStyle.Render(it.Text)
		default:
			out = styles.DeleteStyle.Render(it.Text)
		}
	} else {
		open, closing := "{+", "+}"
		if it.Kind == diff.Deleted {
			open, closing = "[-", "-]"
		}
		if rejected {
			open, closing = open[:1]+"~", "~"+closing[1:]
		}
		out = open + it.Text + closing
	}

	if r.numbered {
		idx := fmt.Sprintf("#%d", it.ID.Index)
		if r.color {
			idx = styles.IndexStyle.Render(idx)
		}
		out = idx + out
	}
	return out
}

// renderUnified colors the lines of a unified diff.
func renderUnified(text string, color bool) string {
	if !color {
		return text
	}

	lines := strings.SplitAfter(text, "\n")
	var b strings.Builder
	for _, line := range lines {
		body := strings.TrimSuffix(line, "\n")
		nl := line[len(body):]
		switch {
		case strings.HasPrefix(body, "+++"), strings.HasPrefix(body, "---"):
			b.WriteString(styles.HeaderStyle.Render(body))
		case strings.HasPrefix(body, "@@"):
			b.WriteString(styles.HunkStyle.Render(body))
		case strings.HasPrefix(body, "+"):
			b.WriteString(styles.SuccessStyle.Render(body))
		case strings.HasPrefix(body, "-"):
			b.WriteString(styles.ErrorStyle.Render(body))
		default:
			b.WriteString(body)
		}
		b.WriteString(nl)
	}
	return b.String()
}

// summaryLine describes the pending changes of a review.
func summaryLine(s review.Summary) string {
	if s.Changes == 0 {
		return "no changes"
	}
	parts := []string{fmt.Sprintf("%d change(s)", s.Changes)}
	if s.Rejected > 0 {
		parts = append(parts, fmt.Sprintf("%d rejected", s.Rejected))
	}
	if s.Restored > 0 {
		parts = append(parts, fmt.Sprintf("%d restored", s.Restored))
	}
	return strings.Join(parts, ", ")
}
