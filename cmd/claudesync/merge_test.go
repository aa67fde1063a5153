package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gorewood/claudesync/internal/gittest"
)

func TestMergeCommand(t *testing.T) {
	setupEnv(t)
	ws := t.TempDir()
	if _, _, err := runCmd(t, "workspace", "add", ws, "--name", "api"); err != nil {
		t.Fatal(err)
	}
	gittest.WriteFile(t, filepath.Join(ws, "CLAUDE.shared.md"), "# Team\n")
	gittest.WriteFile(t, filepath.Join(ws, "CLAUDE.local.md"), "# Mine\n")

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"by name", []string{"merge", "api"}, "1 file(s) changed"},
		{"all, unchanged", []string{"merge"}, "0 file(s) changed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _, err := runCmd(t, tt.args...)
			if err != nil {
				t.Fatalf("merge error = %v", err)
			}
			if !strings.Contains(out, tt.want) {
				t.Errorf("output = %q, want %q", out, tt.want)
			}
		})
	}

	data, err := os.ReadFile(filepath.Join(ws, "CLAUDE.md"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "# Team") || !strings.Contains(string(data), "# Mine") {
		t.Errorf("merged output = %q", data)
	}
}
