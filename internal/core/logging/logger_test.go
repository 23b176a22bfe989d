package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "acctabs.log")

	logger, err := New(DefaultConfig(path))
	require.NoError(t, err)

	logger.Info("account added")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"account added"`)
}

func TestNewRejectsBadLevel(t *testing.T) {
	_, err := New(Config{Level: "loud", OutputPaths: []string{"stderr"}})
	assert.Error(t, err)
}

func TestParseLevelDefaultsToInfo(t *testing.T) {
	l, err := parseLevel("")
	require.NoError(t, err)
	assert.Equal(t, "info", l.String())
}

func TestNewWithStderrEcho(t *testing.T) {
	path := filepath.Join(t.TempDir(), "acctabs.log")
	cfg := DefaultConfig(path)
	cfg.StderrLevel = "warn"

	logger, err := New(cfg)
	require.NoError(t, err)
	logger.Warn("storage teardown incomplete")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "storage teardown incomplete")

	cfg.StderrLevel = "shouty"
	_, err = New(cfg)
	assert.Error(t, err)
}
