// Package security guards the files the CLI writes: chart outputs must stay
// inside the working directory or the temp directory, and names derived from
// dataset identifiers are reduced to a safe character set.
package security

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// maxFilenameLen caps SanitizeFilename output.
const maxFilenameLen = 128

// canonicalPath resolves path to an absolute, symlink-free form. For paths
// that do not exist yet, the deepest existing ancestor is resolved and the
// remaining components are re-attached, so a symlinked parent cannot be used
// to escape.
func canonicalPath(path string) (string, error) {
	abs, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("failed to resolve absolute path: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved, nil
	}
	for dir := filepath.Dir(abs); ; dir = filepath.Dir(dir) {
		if resolved, err := filepath.EvalSymlinks(dir); err == nil {
			rest, _ := filepath.Rel(dir, abs)
			return filepath.Join(resolved, rest), nil
		}
		if parent := filepath.Dir(dir); parent == dir {
			return abs, nil
		}
	}
}

// ValidatePathWithinDirectory returns an error unless filePath resolves to a
// location inside baseDir.
func ValidatePathWithinDirectory(filePath, baseDir string) error {
	target, err := canonicalPath(filePath)
	if err != nil {
		return err
	}
	absBase, err := filepath.Abs(baseDir)
	if err != nil {
		return fmt.Errorf("failed to resolve base directory: %w", err)
	}
	base, err := filepath.EvalSymlinks(absBase)
	if err != nil {
		return fmt.Errorf("failed to resolve base directory symlinks: %w", err)
	}

	rel, err := filepath.Rel(base, target)
	if err != nil {
		return fmt.Errorf("path is outside %s: %w", baseDir, err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return fmt.Errorf("path traversal detected: %s escapes %s", filePath, baseDir)
	}
	return nil
}

// ValidatePathWithinAllowedDirs accepts filePath if it lies inside any of dirs.
func ValidatePathWithinAllowedDirs(filePath string, dirs []string) error {
	if len(dirs) == 0 {
		return fmt.Errorf("no allowed directories specified")
	}
	for _, dir := range dirs {
		if ValidatePathWithinDirectory(filePath, dir) == nil {
			return nil
		}
	}
	return fmt.Errorf("path %s must be within one of %v", filePath, dirs)
}

// ValidateOutputPath checks a render (PNG, HTML) or SQLite database output
// path. Outputs may be written below the working directory or the system
// temp directory.
func ValidateOutputPath(filePath string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get working directory: %w", err)
	}
	return ValidatePathWithinAllowedDirs(filePath, []string{cwd, os.TempDir()})
}

// SanitizeFilename maps s onto [A-Za-z0-9._-], collapsing runs of other
// characters into a single underscore. Empty results become "unknown".
func SanitizeFilename(s string) string {
	var b strings.Builder
	pendingUnderscore := false
	for _, r := range s {
		if b.Len() >= maxFilenameLen {
			break
		}
		safe := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') ||
			r == '.' || r == '_' || r == '-'
		if !safe {
			if !pendingUnderscore {
				b.WriteByte('_')
				pendingUnderscore = true
			}
			continue
		}
		b.WriteRune(r)
		pendingUnderscore = false
	}
	out := strings.Trim(b.String(), "._")
	if out == "" {
		return "unknown"
	}
	return out
}

// OutputFile returns path unchanged, or when path names an existing
// directory, a file inside it named after stem with the given extension.
func OutputFile(path, stem, ext string) string {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return path
	}
	return filepath.Join(path, SanitizeFilename(stem)+ext)
}
