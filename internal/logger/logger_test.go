package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetOutputFileWritesRotatedLog(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "pfs.log")

	SetOutputFile(logPath, 1, 1, 1)
	SetLogFormat(FormatText)
	SetLogLevel(LevelDebug)
	defer SetOutputFile("", 0, 0, 0)

	Infof("hello %s", "world")

	content, err := os.ReadFile(logPath)
	require.NoError(t, err)
	require.Contains(t, string(content), "hello world")
	require.Contains(t, string(content), "INFO")
}

func TestLogLevelFiltering(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "pfs.log")

	SetOutputFile(logPath, 1, 1, 1)
	SetLogFormat(FormatText)
	SetLogLevel(LevelWarn)
	defer SetOutputFile("", 0, 0, 0)

	Debug("should not appear")
	Info("should not appear either")
	Warn("should appear")

	content, err := os.ReadFile(logPath)
	require.NoError(t, err)
	require.NotContains(t, string(content), "should not appear")
	require.Contains(t, string(content), "should appear")
}

func TestJSONFormat(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "pfs.log")

	SetOutputFile(logPath, 1, 1, 1)
	SetLogFormat(FormatJSON)
	SetLogLevel(LevelDebug)
	defer func() {
		SetOutputFile("", 0, 0, 0)
		SetLogFormat(FormatText)
	}()

	Errorf("boom: %d", 42)

	content, err := os.ReadFile(logPath)
	require.NoError(t, err)
	require.Contains(t, string(content), `"level":"ERROR"`)
	require.Contains(t, string(content), "boom: 42")
}
