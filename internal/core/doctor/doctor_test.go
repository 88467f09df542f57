package doctor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mindprints/diff-commit/internal/core/config"
	"github.com/mindprints/diff-commit/internal/core/history"
)

type staticCheck struct {
	name  string
	items []CheckItem
}

func (c staticCheck) Name() string { return c.name }

func (c staticCheck) Run(context.Context) Result {
	return Result{Name: c.name, Items: c.items}
}

func TestRunAll_Summary(t *testing.T) {
	results := RunAll(context.Background(), []Check{
		staticCheck{name: "a", items: []CheckItem{{Status: StatusPass}, {Status: StatusWarn, Fixable: true}}},
		staticCheck{name: "b", items: []CheckItem{{Status: StatusFail}, {Status: StatusWarn, Fixable: true, Fixed: true}}},
	})

	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].Name)

	passed, warned, failed := Summary(results)
	assert.Equal(t, 1, passed)
	assert.Equal(t, 2, warned)
	assert.Equal(t, 1, failed)
	assert.Equal(t, 1, CountFixable(results))
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load("", t.TempDir())
	require.NoError(t, err)
	return cfg
}

func TestConfigCheck_Valid(t *testing.T) {
	cfg := testConfig(t)
	cfg.Autosave.Enabled = false

	result := NewConfigCheck(cfg, filepath.Join(t.TempDir(), "missing.yaml")).Run(context.Background())

	require.NotEmpty(t, result.Items)
	assert.Equal(t, StatusPass, result.Items[0].Status)
	assert.Contains(t, result.Items[0].Detail, "using defaults")
	assert.Equal(t, "validation", result.Items[1].Label)
	assert.Equal(t, StatusPass, result.Items[1].Status)

	var warned bool
	for _, it := range result.Items {
		if it.Status == StatusWarn && it.Label == "Autosave" {
			warned = true
		}
	}
	assert.True(t, warned)
}

func TestConfigCheck_Invalid(t *testing.T) {
	cfg := testConfig(t)
	cfg.Diff.Granularity = "sentence"

	result := NewConfigCheck(cfg, "").Run(context.Background())

	var failed []string
	for _, it := range result.Items {
		if it.Status == StatusFail {
			failed = append(failed, it.Label)
		}
	}
	assert.Equal(t, []string{"diff.granularity"}, failed)
}

func TestProviderCheck(t *testing.T) {
	tests := []struct {
		name   string
		cfg    config.TransformConfig
		env    map[string]string
		path   bool
		status Status
	}{
		{
			name:   "api key set",
			cfg:    config.TransformConfig{Provider: config.ProviderOpenAI, APIKeyEnv: "KEY"},
			env:    map[string]string{"KEY": "secret"},
			status: StatusPass,
		},
		{
			name:   "api key missing",
			cfg:    config.TransformConfig{Provider: config.ProviderAnthropic, APIKeyEnv: "KEY"},
			status: StatusFail,
		},
		{
			name:   "command with shell",
			cfg:    config.TransformConfig{Provider: config.ProviderCommand},
			path:   true,
			status: StatusPass,
		},
		{
			name:   "command without shell",
			cfg:    config.TransformConfig{Provider: config.ProviderCommand},
			status: StatusFail,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			check := NewProviderCheck(tt.cfg)
			check.getenv = func(k string) string { return tt.env[k] }
			check.lookPath = func(string) (string, error) {
				if tt.path {
					return "/bin/sh", nil
				}
				return "", errors.New("not found")
			}

			result := check.Run(context.Background())
			require.Len(t, result.Items, 2)
			assert.Equal(t, tt.status, result.Items[1].Status)
		})
	}
}

type fakeDrafts struct {
	cleared []string
	err     error
}

func (f *fakeDrafts) SaveDraft(context.Context, history.Draft) error { return nil }

func (f *fakeDrafts) LoadDraft(context.Context, string) (history.Draft, error) {
	return history.Draft{}, history.ErrNoDraft
}

func (f *fakeDrafts) ClearDraft(_ context.Context, id string) error {
	if f.err != nil {
		return f.err
	}
	f.cleared = append(f.cleared, id)
	return nil
}

func TestDocumentsCheck(t *testing.T) {
	existing := filepath.Join(t.TempDir(), "here.md")
	require.NoError(t, writeFile(existing))
	gone := filepath.Join(t.TempDir(), "gone.md")
	goneDraft := filepath.Join(t.TempDir(), "gone-draft.md")

	list := func(context.Context) ([]history.DocumentInfo, error) {
		return []history.DocumentInfo{
			{DocumentID: existing, Commits: 1},
			{DocumentID: gone, Commits: 2},
			{DocumentID: goneDraft, HasDraft: true},
		}, nil
	}

	t.Run("report", func(t *testing.T) {
		drafts := &fakeDrafts{}
		result := NewDocumentsCheck(list, drafts, false).Run(context.Background())

		require.Len(t, result.Items, 2)
		assert.Equal(t, gone, result.Items[0].Label)
		assert.False(t, result.Items[0].Fixable)
		assert.True(t, result.Items[1].Fixable)
		assert.Empty(t, drafts.cleared)
		assert.Equal(t, 1, CountFixable([]Result{result}))
	})

	t.Run("autofix", func(t *testing.T) {
		drafts := &fakeDrafts{}
		result := NewDocumentsCheck(list, drafts, true).Run(context.Background())

		assert.Equal(t, []string{goneDraft}, drafts.cleared)
		assert.True(t, result.Items[1].Fixed)
		assert.Equal(t, 0, CountFixable([]Result{result}))
	})

	t.Run("autofix failure", func(t *testing.T) {
		drafts := &fakeDrafts{err: errors.New("locked")}
		result := NewDocumentsCheck(list, drafts, true).Run(context.Background())

		assert.Equal(t, StatusFail, result.Items[1].Status)
		assert.Contains(t, result.Items[1].Detail, "locked")
	})
}

func TestDocumentsCheck_Healthy(t *testing.T) {
	list := func(context.Context) ([]history.DocumentInfo, error) { return nil, nil }

	result := NewDocumentsCheck(list, &fakeDrafts{}, false).Run(context.Background())
	require.Len(t, result.Items, 1)
	assert.Equal(t, StatusPass, result.Items[0].Status)
}

func TestDocumentsCheck_ListError(t *testing.T) {
	list := func(context.Context) ([]history.DocumentInfo, error) { return nil, errors.New("unsupported") }

	result := NewDocumentsCheck(list, &fakeDrafts{}, false).Run(context.Background())
	require.Len(t, result.Items, 1)
	assert.Equal(t, StatusWarn, result.Items[0].Status)
}

func writeFile(path string) error {
	return os.WriteFile(path, []byte("text"), 0o644)
}

func TestStorageCheck(t *testing.T) {
	tests := []struct {
		name   string
		info   StorageInfo
		err    error
		want   map[string]Status
		detail string
	}{
		{
			name: "current sqlite",
			info: StorageInfo{Backend: "sqlite", SchemaVersion: 2, LatestSchema: 2},
			want: map[string]Status{"backend": StatusPass, "schema": StatusPass},
		},
		{
			name: "json with badger drafts",
			info: StorageInfo{Backend: "json", Drafts: "badger"},
			want: map[string]Status{"backend": StatusPass, "drafts": StatusPass},
		},
		{
			name:   "behind",
			info:   StorageInfo{Backend: "sqlite", SchemaVersion: 1, LatestSchema: 2},
			want:   map[string]Status{"backend": StatusPass, "schema": StatusFail},
			detail: "version 1, expected 2",
		},
		{
			name: "ahead",
			info: StorageInfo{Backend: "sqlite", SchemaVersion: 3, LatestSchema: 2},
			want: map[string]Status{"backend": StatusPass, "schema": StatusWarn},
		},
		{
			name: "unavailable",
			err:  errors.New("database is locked"),
			want: map[string]Status{"backend": StatusFail},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			check := NewStorageCheck(func(context.Context) (StorageInfo, error) { return tt.info, tt.err })
			result := check.Run(context.Background())

			assert.Equal(t, "Storage", result.Name)
			got := make(map[string]Status, len(result.Items))
			for _, item := range result.Items {
				got[item.Label] = item.Status
				if tt.detail != "" && item.Label == "schema" {
					assert.Equal(t, tt.detail, item.Detail)
				}
			}
			assert.Equal(t, tt.want, got)
		})
	}
}
