package e2e

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// BuildPayload reads the step's fixture and applies its overrides
func BuildPayload(fixturesDir string, step Step) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(fixturesDir, step.Fixture))
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture %s: %w", step.Fixture, err)
	}
	if len(step.Set) == 0 {
		return data, nil
	}

	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("fixture %s is not a JSON object: %w", step.Fixture, err)
	}
	for path, value := range step.Set {
		if err := setPath(doc, path, value); err != nil {
			return nil, fmt.Errorf("fixture %s: %w", step.Fixture, err)
		}
	}
	return json.Marshal(doc)
}

// setPath assigns value at a dotted path, creating intermediate objects
func setPath(doc map[string]any, path string, value any) error {
	parts := strings.Split(path, ".")
	current := doc
	for _, part := range parts[:len(parts)-1] {
		next, ok := current[part]
		if !ok || next == nil {
			child := map[string]any{}
			current[part] = child
			current = child
			continue
		}
		child, ok := next.(map[string]any)
		if !ok {
			return fmt.Errorf("cannot set %s: %s is not an object", path, part)
		}
		current = child
	}
	current[parts[len(parts)-1]] = value
	return nil
}

// DiffEvents returns a unified diff of two event lists, or "" when equal
func DiffEvents(expected, actual []string) string {
	a := strings.Join(expected, "\n") + "\n"
	b := strings.Join(actual, "\n") + "\n"
	if a == b {
		return ""
	}

	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(a),
		B:        difflib.SplitLines(b),
		FromFile: "expected",
		ToFile:   "actual",
		Context:  3,
	})
	if err != nil {
		return fmt.Sprintf("expected %q, got %q", expected, actual)
	}
	return diff
}
