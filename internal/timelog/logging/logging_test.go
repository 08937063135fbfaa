package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewWritesToRotatedFile(t *testing.T) {
	dir := t.TempDir()
	logger, err := New("[test] ", Options{Dir: dir})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Println("hello")

	data, err := os.ReadFile(filepath.Join(dir, "timelogd.log"))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "hello") {
		t.Errorf("log file = %q, want it to contain %q", data, "hello")
	}
	if !strings.Contains(string(data), "[test]") {
		t.Errorf("log file = %q, want prefix [test]", data)
	}
}

func TestNewFallsBackToStderrWithoutDir(t *testing.T) {
	logger, err := New("[test] ", Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if logger == nil {
		t.Fatal("New returned nil logger")
	}
}
