// Package security holds small guards for untrusted input.
package security

import (
	"errors"
	"path/filepath"
	"strings"
)

var (
	// ErrPathTraversal is returned when a relative path would leave its base directory.
	ErrPathTraversal = errors.New("path traversal detected")
	// ErrInvalidPath is returned for empty or absolute relative paths.
	ErrInvalidPath = errors.New("invalid file path")
)

// JoinWithin joins the slash-separated rel onto baseDir and returns the result,
// rejecting anything that does not stay strictly inside baseDir.
func JoinWithin(baseDir, rel string) (string, error) {
	if strings.TrimSpace(rel) == "" || strings.HasPrefix(rel, "/") || filepath.IsAbs(rel) {
		return "", ErrInvalidPath
	}
	base, err := filepath.Abs(baseDir)
	if err != nil {
		return "", err
	}
	target := filepath.Join(base, filepath.FromSlash(rel))
	inside, err := filepath.Rel(base, target)
	if err != nil || inside == "." || inside == ".." || strings.HasPrefix(inside, ".."+string(filepath.Separator)) {
		return "", ErrPathTraversal
	}
	return target, nil
}
