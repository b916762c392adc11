// Package projectroot locates the workspace an agentready command runs in.
package projectroot

import (
	"errors"
	"os"
	"path/filepath"
)

// ErrNotFound is returned when no marker exists between start and the
// filesystem root.
var ErrNotFound = errors.New("project root not found")

// Markers are checked in order at each level. The configuration file wins
// over repository markers so nested projects resolve to themselves.
var Markers = []string{".agentready.yaml", ".git", "go.mod"}

// Find walks up from start and returns the first directory containing one
// of Markers.
func Find(start string) (string, error) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", err
	}
	for {
		for _, m := range Markers {
			if _, err := os.Stat(filepath.Join(dir, m)); err == nil {
				return dir, nil
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", ErrNotFound
		}
		dir = parent
	}
}

// FindOr is Find with a fallback for directories outside any project.
func FindOr(start, fallback string) string {
	root, err := Find(start)
	if err != nil {
		return fallback
	}
	return root
}
