package validate

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hay-kot/criterio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentPath(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "notes.md")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"existing file", file, false},
		{"not yet created", filepath.Join(dir, "new.md"), false},
		{"directory", dir, true},
		{"empty", "", true},
		{"only spaces", "   ", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := DocumentPath(tt.input)
			assert.Equal(t, tt.wantErr, err != nil, "DocumentPath(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
		})
	}
}

func TestMessage(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"empty", "", false},
		{"short", "fix typos", false},
		{"at limit", strings.Repeat("é", MaxMessageLength), false},
		{"over limit", strings.Repeat("a", MaxMessageLength+1), true},
		{"multi line", "first\nsecond", true},
		{"carriage return", "first\rsecond", true},
		{"invalid utf8", "bad \xff byte", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Message(tt.input)
			assert.Equal(t, tt.wantErr, err != nil, "Message(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
		})
	}
}

func TestKind(t *testing.T) {
	check := Kind(map[string]int{"spelling": 1})

	assert.NoError(t, check("spelling"))
	assert.Error(t, check("grammar"))
	assert.Error(t, check(""))
}

func TestMessageField(t *testing.T) {
	err := criterio.ValidateStruct(MessageField("message", "a\nb"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "message")

	assert.NoError(t, MessageField("message", "ok"))
}
