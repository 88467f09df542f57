package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"

	"github.com/mindprints/diff-commit/internal/core/config"
	"github.com/mindprints/diff-commit/internal/core/diff"
	"github.com/mindprints/diff-commit/internal/core/history"
	"github.com/mindprints/diff-commit/internal/core/operation"
	"github.com/mindprints/diff-commit/internal/core/review"
	"github.com/mindprints/diff-commit/internal/diffcommit"
	"github.com/mindprints/diff-commit/internal/printer"
)

type registrar interface {
	Register(app *cli.Command) *cli.Command
}

func upperTransformer(string) (operation.Transformer, error) {
	return operation.TransformFunc(func(_ context.Context, req operation.Request) (string, error) {
		return strings.ToUpper(req.Text), nil
	}), nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load("", t.TempDir())
	require.NoError(t, err)
	cfg.Autosave.Enabled = false
	return cfg
}

func writeDoc(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func readDoc(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

// harness runs commands the way main does, with a fresh App per run so
// every run sees the files as a new process would.
type harness struct {
	t   *testing.T
	cfg *config.Config
}

func newHarness(t *testing.T) *harness {
	return &harness{t: t, cfg: testConfig(t)}
}

func (h *harness) run(newCmd func(*Flags) registrar, args ...string) (string, string, error) {
	h.t.Helper()

	app, err := diffcommit.New(h.cfg, diffcommit.WithTransformer(upperTransformer))
	require.NoError(h.t, err)
	defer func() { _ = app.Close() }()

	var out, errOut bytes.Buffer
	flags := &Flags{LogLevel: "info", Config: h.cfg, App: app}
	root := &cli.Command{Name: "diffcommit", Writer: &out, ErrWriter: &errOut}
	newCmd(flags).Register(root)

	ctx := printer.NewContext(context.Background(), printer.New(&out, &errOut))
	err = root.Run(ctx, append([]string{"diffcommit"}, args...))
	return out.String(), errOut.String(), err
}

func commitCmd(f *Flags) registrar { return NewCommitCmd(f) }
func logCmd(f *Flags) registrar    { return NewLogCmd(f) }
func diffCmd(f *Flags) registrar   { return NewDiffCmd(f) }
func revertCmd(f *Flags) registrar { return NewRevertCmd(f) }
func showCmd(f *Flags) registrar   { return NewShowCmd(f) }
func docsCmd(f *Flags) registrar   { return NewDocsCmd(f) }

func TestSegmentRenderer_Plain(t *testing.T) {
	items := []review.Item{
		{ID: review.ID{Index: 0}, Kind: diff.Unchanged, Text: "the "},
		{ID: review.ID{Index: 1}, Kind: diff.Deleted, Text: "quick"},
		{ID: review.ID{Index: 2}, Kind: diff.Inserted, Text: "slow", State: review.StateRejected},
		{ID: review.ID{Index: 3}, Kind: diff.Inserted, Text: "brown"},
	}

	plain := segmentRenderer{}
	assert.Equal(t, "the [-quick-]{~slow~}{+brown+}", plain.render(items))

	numbered := segmentRenderer{numbered: true}
	assert.Equal(t, "the #1[-quick-]#2{~slow~}#3{+brown+}", numbered.render(items))
}

func TestSummaryLine(t *testing.T) {
	assert.Equal(t, "no changes", summaryLine(review.Summary{}))
	assert.Equal(t, "3 change(s), 1 rejected", summaryLine(review.Summary{Changes: 3, Rejected: 1}))
	assert.Equal(t, "2 change(s), 1 restored", summaryLine(review.Summary{Changes: 2, Restored: 1}))
}

func TestRenderUnified_Plain(t *testing.T) {
	text := "--- a\n+++ b\n@@ -1 +1 @@\n-x\n+y\n"
	assert.Equal(t, text, renderUnified(text, false))
}

func TestGranularityOption(t *testing.T) {
	base := diff.Options{Granularity: diff.GranularityWord, MaxEdits: 10}

	got, err := granularityOption(base, "")
	require.NoError(t, err)
	assert.Equal(t, base, got)

	got, err = granularityOption(base, "line")
	require.NoError(t, err)
	assert.Equal(t, diff.GranularityLine, got.Granularity)
	assert.Equal(t, 10, got.MaxEdits)

	_, err = granularityOption(base, "sentence")
	assert.Error(t, err)
}

func TestRejectSegments(t *testing.T) {
	cfg := testConfig(t)
	app, err := diffcommit.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })

	path := writeDoc(t, t.TempDir(), "a.txt", "one two")
	doc, err := app.Open(context.Background(), path)
	require.NoError(t, err)
	doc.ApplyCandidate("one three")

	var change int
	for _, it := range doc.Items() {
		if it.Kind != diff.Unchanged {
			change = it.ID.Index
			break
		}
	}

	require.NoError(t, rejectSegments(doc, []string{strconv.Itoa(change)}))
	assert.Equal(t, 1, doc.Stats().Rejected)

	assert.Error(t, rejectSegments(doc, []string{"x"}))
	assert.Error(t, rejectSegments(doc, []string{"999"}))
}

func TestCommitAndLog(t *testing.T) {
	h := newHarness(t)
	path := writeDoc(t, t.TempDir(), "notes.txt", "first draft")

	out, _, err := h.run(commitCmd, "commit", "-m", "start", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Checkpoint #1")

	require.NoError(t, os.WriteFile(path, []byte("second draft"), 0o644))
	out, _, err = h.run(commitCmd, "commit", "-m", "keep", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Checkpoint #2")

	require.NoError(t, os.WriteFile(path, []byte("third draft"), 0o644))
	out, _, err = h.run(commitCmd, "commit", "--reject-all", "--save", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Nothing to commit")
	assert.Equal(t, "second draft", readDoc(t, path))

	out, _, err = h.run(logCmd, "log", "--json", path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)

	var newest history.Commit
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &newest))
	assert.Equal(t, 2, newest.Seq)
	assert.Equal(t, "keep", newest.Message)
	assert.Equal(t, "second draft", newest.Content)
}

func TestCommit_InvalidMessage(t *testing.T) {
	h := newHarness(t)
	path := writeDoc(t, t.TempDir(), "notes.txt", "text")

	_, _, err := h.run(commitCmd, "commit", "-m", "two\nlines", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "single line")
}

func TestLog_Patch(t *testing.T) {
	h := newHarness(t)
	path := writeDoc(t, t.TempDir(), "notes.txt", "alpha\n")

	_, _, err := h.run(commitCmd, "commit", path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, []byte("beta\n"), 0o644))
	_, _, err = h.run(commitCmd, "commit", path)
	require.NoError(t, err)

	out, _, err := h.run(logCmd, "log", "--patch", "--limit", "1", path)
	require.NoError(t, err)
	assert.Contains(t, out, "#2")
	assert.Contains(t, out, "-alpha")
	assert.Contains(t, out, "+beta")
	assert.NotContains(t, out, "/dev/null")
}

func TestDiff_TwoFiles(t *testing.T) {
	h := newHarness(t)
	dir := t.TempDir()
	a := writeDoc(t, dir, "a.txt", "the quick fox")
	b := writeDoc(t, dir, "b.txt", "the slow fox")

	out, _, err := h.run(diffCmd, "diff", "--no-color", a, b)
	require.NoError(t, err)
	assert.Contains(t, out, "[-quick-]")
	assert.Contains(t, out, "{+slow+}")

	out, _, err = h.run(diffCmd, "diff", "--stat", a, a)
	require.NoError(t, err)
	assert.Contains(t, out, "no changes")
}

func TestRevert(t *testing.T) {
	h := newHarness(t)
	path := writeDoc(t, t.TempDir(), "notes.txt", "version one")

	_, _, err := h.run(commitCmd, "commit", path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, []byte("version two"), 0o644))
	_, _, err = h.run(commitCmd, "commit", path)
	require.NoError(t, err)

	out, _, err := h.run(revertCmd, "revert", path, "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Restored checkpoint #1")
	assert.Equal(t, "version one", readDoc(t, path))

	_, _, err = h.run(revertCmd, "revert", "--commit", path, "1")
	require.NoError(t, err)

	out, _, err = h.run(logCmd, "log", "--json", path)
	require.NoError(t, err)
	var newest history.Commit
	require.NoError(t, json.Unmarshal([]byte(strings.SplitN(out, "\n", 2)[0]), &newest))
	assert.Equal(t, 3, newest.Seq)
	assert.Equal(t, "version one", newest.Content)
	assert.Equal(t, "revert to #1", newest.Message)

	_, _, err = h.run(revertCmd, "revert", path, "9")
	assert.Error(t, err)
}

func TestShow_Raw(t *testing.T) {
	h := newHarness(t)
	path := writeDoc(t, t.TempDir(), "notes.md", "# Title")

	_, _, err := h.run(showCmd, "show", path)
	require.Error(t, err)

	_, _, err = h.run(commitCmd, "commit", path)
	require.NoError(t, err)

	out, _, err := h.run(showCmd, "show", "--raw", path, "1")
	require.NoError(t, err)
	assert.Equal(t, "# Title\n", out)
}

func TestIsMarkdown(t *testing.T) {
	assert.True(t, isMarkdown("README.md"))
	assert.True(t, isMarkdown("notes.MARKDOWN"))
	assert.False(t, isMarkdown("main.go"))
}

func TestDocs(t *testing.T) {
	h := newHarness(t)
	dir := t.TempDir()
	a := writeDoc(t, dir, "a.md", "a")
	b := writeDoc(t, filepath.Join(dir), "b.txt", "b")

	for _, p := range []string{a, b} {
		_, _, err := h.run(commitCmd, "commit", p)
		require.NoError(t, err)
	}

	out, _, err := h.run(docsCmd, "docs")
	require.NoError(t, err)
	assert.Contains(t, out, "CHECKPOINTS")
	assert.Contains(t, out, a)
	assert.Contains(t, out, b)

	out, _, err = h.run(docsCmd, "docs", "--json", "--match", filepath.Join(dir, "**", "*.md"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "a.md")
}

func TestFilterDocuments(t *testing.T) {
	docs := []history.DocumentInfo{
		{DocumentID: "/work/notes/a.md"},
		{DocumentID: "/work/notes/deep/b.md"},
		{DocumentID: "/work/src/c.txt"},
	}

	got, err := filterDocuments(docs, "/work/**/*.md")
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = filterDocuments(docs, "")
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestIssuesOf(t *testing.T) {
	assert.Nil(t, issuesOf(nil))

	cfg := testConfig(t)
	cfg.Diff.Granularity = "sentence"
	cfg.Theme = "neon"

	issues := issuesOf(cfg.Validate())
	require.Len(t, issues, 2)
	fields := []string{issues[0].Field, issues[1].Field}
	assert.Contains(t, fields, "diff.granularity")
	assert.Contains(t, fields, "theme")
}

func TestConfigValidate_JSON(t *testing.T) {
	h := newHarness(t)

	out, _, err := h.run(func(f *Flags) registrar { return NewConfigValidateCmd(f) }, "config", "validate", "--format", "json")
	require.NoError(t, err)

	var report validationReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.True(t, report.Valid)
	assert.Contains(t, report.Kinds, "spelling")
}
