package conversation

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultScript(t *testing.T) {
	s := DefaultScript()
	assert.Equal(t, 7, s.Len())
	assert.Equal(t, defaultQuestions, s.Questions())

	qs := s.Questions()
	qs[0] = "mutated"
	assert.Equal(t, defaultQuestions[0], s.Question(0))
}

func TestNewScript_Invalid(t *testing.T) {
	_, err := NewScript(nil)
	require.Error(t, err)

	_, err = NewScript([]string{"ok", "  "})
	require.Error(t, err)
}

func TestLoadScript(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "script.yaml")
	require.NoError(t, os.WriteFile(path, []byte("questions:\n  - What process?\n  - Thanks, finalize when ready.\n"), 0o600))

	s, err := LoadScript(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"What process?", "Thanks, finalize when ready."}, s.Questions())
}

func TestLoadScript_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadScript(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)

	empty := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(empty, []byte("questions: []\n"), 0o600))
	_, err = LoadScript(empty)
	require.Error(t, err)

	broken := filepath.Join(dir, "broken.yaml")
	require.NoError(t, os.WriteFile(broken, []byte("questions: [unterminated\n"), 0o600))
	_, err = LoadScript(broken)
	require.Error(t, err)
}
