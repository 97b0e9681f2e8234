package tool

import (
	"errors"
	"os/exec"
	"path/filepath"
	"strings"
)

// resolvePath finds the executable for path the way a station operator
// expects: a bare name is looked up in dir first, then on PATH. A match that
// exec reports as relative to the current directory (exec.ErrDot) is accepted
// only when it lies inside dir, or when dir is unset and so is the current
// directory. Paths with a separator are returned unchanged.
func resolvePath(dir, path string) (string, error) {
	if path == "" {
		return "", exec.ErrNotFound
	}
	if strings.ContainsRune(path, '/') || strings.ContainsRune(path, filepath.Separator) {
		return path, nil
	}

	if dir != "" {
		if found, err := exec.LookPath(filepath.Join(dir, path)); err == nil {
			return filepath.Abs(found)
		}
	}

	found, err := exec.LookPath(path)
	if err == nil {
		return found, nil
	}
	if !errors.Is(err, exec.ErrDot) {
		return "", err
	}

	abs, absErr := filepath.Abs(found)
	if absErr != nil {
		return "", err
	}
	if dir == "" || within(dir, abs) {
		return abs, nil
	}
	return "", err
}

// within reports whether file sits inside dir.
func within(dir, file string) bool {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(absDir, file)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
