package logger

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestNewRejectsUnknownLevel(t *testing.T) {
	if _, err := New(&Config{Level: "loud", Output: "stdout"}); err == nil {
		t.Fatalf("expected error for invalid level")
	}
}

func TestFileOutputWritesJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archive.log")
	l, err := New(&Config{Level: "info", Format: "json", Output: path})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	l.With(String("job", "grade")).Info("graded",
		Int64("id", 7),
		Float64("actual", 25),
		Duration("took", 1500*time.Millisecond),
		Error(errors.New("boom")),
	)
	l.Debug("hidden")

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	out := string(b)
	for _, want := range []string{`"job":"grade"`, `"id":7`, `"actual":25`, `"took":1500`, `"error":"boom"`, `"message":"graded"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("log line %q missing %s", out, want)
		}
	}
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug line written at info level")
	}
}

func TestNopDiscards(t *testing.T) {
	Nop().Error("nothing", String("k", "v"))
}
