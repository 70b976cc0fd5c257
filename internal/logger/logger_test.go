package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoggerWritesFormattedEntries(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "test.log")

	l, err := NewDefaultLogger(&Config{
		LogFilePath:   logPath,
		MaxFileSize:   1024 * 1024,
		MaxBackups:    1,
		Level:         LevelDebug,
		EnableConsole: false,
	})
	if err != nil {
		t.Fatalf("NewDefaultLogger() error = %v", err)
	}
	defer l.Close()

	l.Info("job created", String("jobID", "abc"), Int("chunks", 5))
	l.Warn("slow provider", Duration("elapsed", 0))

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	content := string(data)

	if !strings.Contains(content, "[INFO] job created jobID=abc chunks=5") {
		t.Errorf("info entry missing or malformed: %q", content)
	}
	if !strings.Contains(content, "[WARN] slow provider") {
		t.Errorf("warn entry missing: %q", content)
	}
}

func TestLoggerLevelFiltering(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "test.log")

	l, err := NewDefaultLogger(&Config{
		LogFilePath:   logPath,
		MaxFileSize:   1024 * 1024,
		MaxBackups:    1,
		Level:         LevelWarn,
		EnableConsole: false,
	})
	if err != nil {
		t.Fatalf("NewDefaultLogger() error = %v", err)
	}
	defer l.Close()

	l.Debug("hidden")
	l.Info("also hidden")
	l.Error("visible", nil)

	data, _ := os.ReadFile(logPath)
	content := string(data)

	if strings.Contains(content, "hidden") {
		t.Errorf("filtered entries leaked: %q", content)
	}
	if !strings.Contains(content, "[ERROR] visible") {
		t.Errorf("error entry missing: %q", content)
	}
}

func TestLoggerRotation(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "test.log")

	l, err := NewDefaultLogger(&Config{
		LogFilePath:   logPath,
		MaxFileSize:   128,
		MaxBackups:    2,
		Level:         LevelInfo,
		EnableConsole: false,
	})
	if err != nil {
		t.Fatalf("NewDefaultLogger() error = %v", err)
	}
	defer l.Close()

	for i := 0; i < 20; i++ {
		l.Info("padding entry to force rotation", Int("i", i))
	}

	if _, err := os.Stat(logPath + ".1"); err != nil {
		t.Errorf("expected rotated backup file: %v", err)
	}
}

func TestGlobalLoggerNoopWhenUninitialized(t *testing.T) {
	SetGlobalLogger(nil)
	// Must not panic.
	Info("discarded")
	Error("discarded", nil)
}
