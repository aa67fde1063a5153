// Package merge combines shared and private rule content into the merged
// file the end tool reads.
package merge

import "strings"

// Separator sits between the shared and private sections of merged output.
const Separator = "\n\n---\n\n# Project-Specific Configuration\n\n"

// Merge returns the merged-output content for a workspace.
//
// When only one side has content it is returned unchanged. When both do,
// each side is trimmed and joined by Separator with a single trailing newline.
// Emptiness is byte length, so whitespace-only input counts as content.
func Merge(shared, private string) string {
	switch {
	case shared == "" && private == "":
		return ""
	case private == "":
		return shared
	case shared == "":
		return private
	}
	return strings.TrimSpace(shared) + Separator + strings.TrimSpace(private) + "\n"
}
