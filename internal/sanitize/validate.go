package sanitize

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

var (
	// ErrEmptyPath indicates an empty path was provided.
	ErrEmptyPath = errors.New("path cannot be empty")

	// ErrPathTraversal indicates a path escapes its allowed root.
	ErrPathTraversal = errors.New("path escapes allowed root")
)

// ValidatePath cleans path and returns it absolute. When allowedRoot is set
// the result must lie inside it. Paths containing ".." elements are refused
// outright.
func ValidatePath(path, allowedRoot string) (string, error) {
	if path == "" {
		return "", ErrEmptyPath
	}
	for _, elem := range strings.FieldsFunc(filepath.ToSlash(path), func(r rune) bool { return r == '/' }) {
		if elem == ".." {
			return "", fmt.Errorf("%w: %q contains '..'", ErrPathTraversal, path)
		}
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolving %q: %w", path, err)
	}
	if allowedRoot == "" {
		return abs, nil
	}

	root, err := filepath.Abs(allowedRoot)
	if err != nil {
		return "", fmt.Errorf("resolving root %q: %w", allowedRoot, err)
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q not under %q", ErrPathTraversal, path, allowedRoot)
	}
	return abs, nil
}
