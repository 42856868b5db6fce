package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestInit_RejectsUnknownLevel(t *testing.T) {
	prev := Logger
	t.Cleanup(func() { Logger = prev })

	if err := Init(Config{Level: "loud"}); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

func TestInit_WritesToRotatingFile(t *testing.T) {
	prev := Logger
	t.Cleanup(func() { Logger = prev })

	path := filepath.Join(t.TempDir(), "logs", "todo.log")
	if err := Init(Config{Level: "info", File: path}); err != nil {
		t.Fatalf("init: %v", err)
	}

	Info("server started", "addr", ":5000")
	Debug("hidden below info")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	out := string(data)
	if !strings.Contains(out, "server started") || !strings.Contains(out, ":5000") {
		t.Errorf("log file missing info record: %q", out)
	}
	if strings.Contains(out, "hidden below info") {
		t.Errorf("debug record written at info level: %q", out)
	}
}
