package diff

import (
	"strings"

	godiff "github.com/sourcegraph/go-diff/diff"
)

// DefaultContextLines is the number of unchanged lines kept around each hunk.
const DefaultContextLines = 3

type lineOp struct {
	kind Kind
	text string
}

// Unified renders a line-level unified diff between two texts. It returns an
// empty string when the texts are equal.
func Unified(origName, newName, original, modified string, contextLines int) (string, error) {
	if original == modified {
		return "", nil
	}
	if contextLines < 0 {
		contextLines = DefaultContextLines
	}

	segs := ComputeWith(original, modified, Options{Granularity: GranularityLine})

	var lines []lineOp
	for _, s := range segs {
		for _, l := range splitLines(s.Text) {
			lines = append(lines, lineOp{kind: s.Kind, text: l})
		}
	}

	fd := &godiff.FileDiff{
		OrigName: origName,
		NewName:  newName,
		Hunks:    buildHunks(lines, contextLines),
	}

	out, err := godiff.PrintFileDiff(fd)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// buildHunks groups changed lines with their surrounding context. Hunks whose
// context windows touch are merged.
func buildHunks(lines []lineOp, contextLines int) []*godiff.Hunk {
	var hunks []*godiff.Hunk

	i := 0
	for i < len(lines) {
		for i < len(lines) && lines[i].kind == Unchanged {
			i++
		}
		if i >= len(lines) {
			break
		}

		start := max(i-contextLines, 0)

		// Extend past changes until a run of unchanged lines longer than two
		// context windows (or the end) is found.
		end := i
		for end < len(lines) {
			if lines[end].kind != Unchanged {
				end++
				continue
			}
			run := end
			for run < len(lines) && lines[run].kind == Unchanged {
				run++
			}
			if run == len(lines) || run-end > 2*contextLines {
				end = min(end+contextLines, len(lines))
				break
			}
			end = run
		}

		hunks = append(hunks, makeHunk(lines, start, end))
		i = end
	}

	return hunks
}

func makeHunk(lines []lineOp, start, end int) *godiff.Hunk {
	var origLine, newLine int32 = 1, 1
	for _, l := range lines[:start] {
		if l.kind != Inserted {
			origLine++
		}
		if l.kind != Deleted {
			newLine++
		}
	}

	h := &godiff.Hunk{OrigStartLine: origLine, NewStartLine: newLine}

	var body strings.Builder
	for _, l := range lines[start:end] {
		switch l.kind {
		case Unchanged:
			body.WriteByte(' ')
			h.OrigLines++
			h.NewLines++
		case Deleted:
			body.WriteByte('-')
			h.OrigLines++
		case Inserted:
			body.WriteByte('+')
			h.NewLines++
		}
		body.WriteString(strings.TrimSuffix(l.text, "\n"))
		body.WriteByte('\n')
	}

	if h.OrigLines == 0 {
		h.OrigStartLine--
	}
	if h.NewLines == 0 {
		h.NewStartLine--
	}
	h.Body = []byte(body.String())
	return h
}
