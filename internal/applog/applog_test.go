package applog

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteFormatsKeyValues(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(nil)

	Info("tab.created", "tab", 3, "title", "two words")
	Warn("tab.destroy.repeat", "tab", 3)
	Error("saving.tab", errors.New("disk full"), "unique_id", "abc")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3: %q", len(lines), buf.String())
	}
	if !strings.Contains(lines[0], "INFO tab.created tab=3 title=\"two words\"") {
		t.Errorf("unexpected info line: %s", lines[0])
	}
	if !strings.Contains(lines[1], "WARN tab.destroy.repeat tab=3") {
		t.Errorf("unexpected warn line: %s", lines[1])
	}
	if !strings.Contains(lines[2], "ERROR saving.tab err=\"disk full\" unique_id=abc") {
		t.Errorf("unexpected error line: %s", lines[2])
	}
}

func TestNoOutputIsNoop(t *testing.T) {
	SetOutput(nil)
	Info("nothing", "k", "v") // must not panic
}

func TestQuoteTruncates(t *testing.T) {
	got := quote(strings.Repeat("a", maxValueLen+10))
	if !strings.HasSuffix(got, truncSuffix) {
		t.Errorf("expected truncated value, got %q", got)
	}
}

func TestInitCreatesFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	if err := Init(dir); err != nil {
		t.Fatalf("Init: %v", err)
	}
	Info("started")
	Close()

	data, err := os.ReadFile(filepath.Join(dir, "flowtabs.log"))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "INFO started") {
		t.Errorf("log file missing line: %q", data)
	}
}
