package debug

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogWritesWhenEnabled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "debug.log")

	Log("gate", "dropped before enable")
	require.NoError(t, Enable(path))
	t.Cleanup(Disable)
	assert.True(t, Enabled())

	Log("gate", "NoteOn %d: %s", 60, "PASS")
	Disable()
	Log("gate", "dropped after disable")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "=== Debug logging started ===")
	assert.Contains(t, lines[1], "gate       NoteOn 60: PASS")
}

func TestLogEvery(t *testing.T) {
	path := filepath.Join(t.TempDir(), "debug.log")
	require.NoError(t, Enable(path))
	t.Cleanup(Disable)

	for i := 0; i < 10; i++ {
		LogEvery(4, "router", "tick")
	}
	Disable()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(data), "tick (every 4"))
	assert.Contains(t, string(data), "count=8")
}

func TestDefaultPath(t *testing.T) {
	t.Setenv("HOME", "/tmp/gate-home")
	assert.Equal(t, "/tmp/gate-home/.config/note-gate/debug.log", DefaultPath())
}
