package logutils

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_AppendsToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "run.log")

	for _, msg := range []string{"first", "second"} {
		log, closer, err := New("info", path)
		require.NoError(t, err)
		log.Info().Msg(msg)
		log.Debug().Msg("hidden")
		closer()
	}

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"message":"first"`)
	assert.Contains(t, lines[1], `"message":"second"`)
}

func TestNew_InvalidLevel(t *testing.T) {
	_, _, err := New("loud", "")
	assert.Error(t, err)
}
