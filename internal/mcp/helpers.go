package mcp

import (
	"fmt"

	"github.com/gorewood/claudesync/internal/output"
	"github.com/gorewood/claudesync/internal/repo"
	"github.com/gorewood/claudesync/internal/resource"
)

// parseKind validates a resource kind filter. Empty means all kinds.
func parseKind(value string) (resource.Kind, error) {
	switch resource.Kind(value) {
	case "", resource.Skill, resource.Agent:
		return resource.Kind(value), nil
	}
	return "", fmt.Errorf("kind must be %q or %q, got %q", resource.Skill, resource.Agent, value)
}

// withHint appends the recovery action to the error text so agents can
// relay it.
func withHint(prefix string, err error) error {
	err = repo.AsExitError(err)
	if hint := output.GetHint(err); hint != "" {
		return fmt.Errorf("%s: %w (hint: %s)", prefix, err, hint)
	}
	return fmt.Errorf("%s: %w", prefix, err)
}

// nonNil keeps empty lists as [] in JSON output.
func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
