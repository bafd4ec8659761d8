// Package utils contains general helper functions used across the engine.
package utils

import (
	"path/filepath"
	"strings"
)

// Well-known filesystem names used across the project.
const (
	// GitIgnoreFileName is the name of the Git ignore file.
	GitIgnoreFileName = ".gitignore"
	// GitDirectoryName is the name of the Git repository directory.
	GitDirectoryName = ".git"
	// SettingsDirectoryName is the per-user directory holding persisted state.
	SettingsDirectoryName = "pickctx"
	// GlobalConfigDirectoryName is the home-relative directory holding the global configuration.
	GlobalConfigDirectoryName = ".pickctx"
	// ConfigFileName is the name of the application configuration file.
	ConfigFileName = "pickctx.yaml"
)

// DeduplicatePatterns removes duplicate patterns from a slice while preserving order.
// The first occurrence of each unique pattern is kept.
func DeduplicatePatterns(patterns []string) []string {
	encounteredPatterns := make(map[string]struct{})
	result := make([]string, 0, len(patterns))
	for _, pattern := range patterns {
		if _, exists := encounteredPatterns[pattern]; !exists {
			encounteredPatterns[pattern] = struct{}{}
			result = append(result, pattern)
		}
	}
	return result
}

// RelativePathOrSelf calculates the forward-slash relative path from root to fullPath.
// Returns the cleaned fullPath if relative calculation fails.
// Returns "." if fullPath and root resolve to the same directory.
func RelativePathOrSelf(fullPath, root string) string {
	cleanPath := filepath.Clean(fullPath)
	absoluteRoot, err := filepath.Abs(root)
	if err != nil {
		return cleanPath
	}
	cleanAbsoluteRoot := filepath.Clean(absoluteRoot)

	if cleanPath == cleanAbsoluteRoot {
		return "."
	}

	relativePath, relErr := filepath.Rel(cleanAbsoluteRoot, cleanPath)
	if relErr != nil {
		return cleanPath
	}
	return filepath.ToSlash(relativePath)
}

// IsHiddenName reports whether a file or directory name is hidden by the
// dot-prefix convention. The current and parent directory aliases are not hidden.
func IsHiddenName(name string) bool {
	if name == "." || name == ".." {
		return false
	}
	return strings.HasPrefix(name, ".")
}

// virtualenvNames lists directory names that identify Python virtual
// environments regardless of ignore rules.
var virtualenvNames = map[string]struct{}{
	"venv":       {},
	"virtualenv": {},
	"env":        {},
	".venv":      {},
}

// IsVirtualenvName reports whether a directory name identifies a Python
// virtual environment ("venv", ".venv", "env", "virtualenv", or "venv-*").
func IsVirtualenvName(name string) bool {
	if _, known := virtualenvNames[name]; known {
		return true
	}
	return strings.HasPrefix(name, "venv-")
}
