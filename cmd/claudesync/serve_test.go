package main

import (
	"strings"
	"testing"
)

func TestServeCommand_Registered(t *testing.T) {
	root := newRootCmd()
	cmd, _, err := root.Find([]string{"serve"})
	if err != nil {
		t.Fatalf("Find(serve) error = %v", err)
	}
	if cmd.Use != "serve" || cmd.GroupID != "agent" {
		t.Errorf("serve command = %q in group %q", cmd.Use, cmd.GroupID)
	}
	for _, tool := range []string{"status", "resources", "pull", "sync"} {
		if !strings.Contains(cmd.Long, tool) {
			t.Errorf("serve help should list tool %q", tool)
		}
	}
}
