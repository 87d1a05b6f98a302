package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "podcleaner.log")
	log, err := New("DEBUG", "json", path)
	require.NoError(t, err)

	log.Debug("found unhealthy pod")
	require.NoError(t, log.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"found unhealthy pod"`)
	assert.Contains(t, string(data), `"app":"podcleaner"`)
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New("verbose", "console", "")
	assert.Error(t, err)
}
