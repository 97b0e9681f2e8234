package flash

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// RemoveStaleArtifacts deletes the directories in dir whose names start with
// prefix. Files are left alone. An empty prefix removes nothing.
// Returns the removed paths and any removal errors combined.
func RemoveStaleArtifacts(dir, prefix string) ([]string, error) {
	if prefix == "" {
		return nil, nil
	}
	if dir == "" {
		dir = "."
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}

	var removed []string
	var result *multierror.Error
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), prefix) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			result = multierror.Append(result, fmt.Errorf("remove %s: %w", path, err))
			continue
		}
		removed = append(removed, path)
	}

	return removed, result.ErrorOrNil()
}
