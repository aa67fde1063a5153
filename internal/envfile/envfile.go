// Package envfile loads KEY=VALUE lines from the claudesync env file into the
// process environment. Variables already set in the environment win, so a
// supervisor can still override anything in the file.
package envfile

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
)

// Entry is one assignment from an env file.
type Entry struct {
	Key   string
	Value string
}

// Parse reads assignments in file order. Blank lines and # comments are
// skipped; malformed lines are ignored.
func Parse(r io.Reader) ([]Entry, error) {
	var entries []Entry
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := parseEnvLine(line)
		if !ok {
			continue
		}
		entries = append(entries, Entry{Key: key, Value: value})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// Load applies the file at path to the environment and returns the keys it
// set. A missing file is not an error.
func Load(path string) ([]string, error) {
	file, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening env file %s: %w", path, err)
	}
	defer file.Close() //nolint:errcheck // read-only

	entries, err := Parse(file)
	if err != nil {
		return nil, fmt.Errorf("reading env file %s: %w", path, err)
	}

	var applied []string
	for _, e := range entries {
		if _, set := os.LookupEnv(e.Key); set {
			continue
		}
		if err := os.Setenv(e.Key, e.Value); err != nil {
			return applied, fmt.Errorf("setting %s: %w", e.Key, err)
		}
		applied = append(applied, e.Key)
	}
	return applied, nil
}

// parseEnvLine extracts KEY=VALUE from a line. Values may be quoted; an
// unquoted value ends at " #".
func parseEnvLine(line string) (key, value string, ok bool) {
	key, value, found := strings.Cut(line, "=")
	if !found {
		return "", "", false
	}

	key = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(key), "export "))
	value = strings.TrimSpace(value)
	if key == "" || strings.ContainsAny(key, " \t") {
		return "", "", false
	}

	if len(value) >= 2 && (value[0] == '"' || value[0] == '\'') {
		if end := strings.IndexByte(value[1:], value[0]); end >= 0 {
			return key, value[1 : end+1], true
		}
	}
	if i := strings.Index(value, " #"); i >= 0 {
		value = strings.TrimSpace(value[:i])
	}
	return key, value, true
}
