package main

import (
	"path/filepath"
	"testing"
)

func TestSentinel_ExitCodes(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("STORE_DIR", filepath.Join(dir, "daily"))
	t.Setenv("SQLITE_PATH", filepath.Join(dir, "history.db"))
	t.Setenv("OUTPUT_DIR", filepath.Join(dir, "output"))
	t.Setenv("LOG_LEVEL", "error")
	cfg := filepath.Join(dir, "missing.yaml")

	tests := []struct {
		name string
		argv []string
		want int
	}{
		{"no command", nil, 2},
		{"bad flag", []string{"screen", "-nope"}, 2},
		{"unknown command", []string{"bogus", "-config", cfg}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sentinel(tt.argv); got != tt.want {
				t.Errorf("sentinel(%v) = %d, want %d", tt.argv, got, tt.want)
			}
		})
	}
}
