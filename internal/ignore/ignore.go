// Package ignore compiles gitignore-style rules found along a scan root and
// answers whether a relative path is excluded by them.
package ignore

import (
	"bufio"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	gitignore "github.com/sabhiram/go-gitignore"

	"github.com/pickctx/pickctx/internal/utils"
)

const (
	commentPrefix       = "#"
	negationPrefix      = "!"
	pathSeparator       = "/"
	currentDirectory    = "."
	warningLoadFormat   = "skipping unreadable ignore file %s: %v"
	errorWalkRootFormat = "collect ignore files under %s: %w"
)

// Config controls rule-set compilation.
type Config struct {
	// UseGitignoreFiles loads .gitignore files found in the root and nested directories.
	UseGitignoreFiles bool
	// ExtraPatterns is appended after file-sourced rules, in gitignore syntax.
	ExtraPatterns []string
	// Warn receives non-fatal load problems. May be nil.
	Warn func(message string)
}

// Matcher is a compiled, toggleable gitignore rule set. The zero value matches
// nothing; use Compile or NewFromPatterns.
type Matcher struct {
	rules    *gitignore.GitIgnore
	patterns []string
	disabled atomic.Bool
}

// Compile builds a Matcher from the ignore files discovered under rootPath plus
// the configured extra patterns. Patterns from nested ignore files are
// re-anchored by prefixing their directory's relative path, matching how a
// per-directory ignore file scopes its rules. Unreadable ignore files degrade
// to a warning; the rest of the rule set stays usable.
func Compile(rootPath string, config Config) (*Matcher, error) {
	var collectedPatterns []string

	if config.UseGitignoreFiles {
		filePatterns, collectError := collectIgnoreFilePatterns(rootPath, config.Warn)
		if collectError != nil {
			return nil, collectError
		}
		collectedPatterns = append(collectedPatterns, filePatterns...)
	}

	for _, pattern := range config.ExtraPatterns {
		trimmedPattern := strings.TrimSpace(pattern)
		if trimmedPattern == "" || strings.HasPrefix(trimmedPattern, commentPrefix) {
			continue
		}
		collectedPatterns = append(collectedPatterns, trimmedPattern)
	}

	return NewFromPatterns(collectedPatterns), nil
}

// NewFromPatterns builds an enabled Matcher from literal gitignore pattern lines.
func NewFromPatterns(patterns []string) *Matcher {
	deduplicated := utils.DeduplicatePatterns(patterns)
	matcher := &Matcher{patterns: deduplicated}
	if len(deduplicated) > 0 {
		matcher.rules = gitignore.CompileIgnoreLines(deduplicated...)
	}
	return matcher
}

// IsIgnored reports whether the forward-slash relative path is excluded by the
// active rules. Directory candidates are matched with a trailing slash so that
// directory-only patterns apply. A disabled matcher ignores nothing.
func (matcher *Matcher) IsIgnored(relativePath string, isDirectory bool) bool {
	if matcher == nil || matcher.rules == nil || matcher.disabled.Load() {
		return false
	}
	normalizedPath := filepath.ToSlash(relativePath)
	if normalizedPath == "" || normalizedPath == currentDirectory {
		return false
	}
	if isDirectory && !strings.HasSuffix(normalizedPath, pathSeparator) {
		normalizedPath += pathSeparator
	}
	return matcher.rules.MatchesPath(normalizedPath)
}

// SetEnabled toggles rule application without recompiling.
func (matcher *Matcher) SetEnabled(enabled bool) {
	matcher.disabled.Store(!enabled)
}

// Enabled reports whether rules are currently applied.
func (matcher *Matcher) Enabled() bool {
	return !matcher.disabled.Load()
}

// PatternCount returns the number of compiled pattern lines.
func (matcher *Matcher) PatternCount() int {
	if matcher == nil {
		return 0
	}
	return len(matcher.patterns)
}

// collectIgnoreFilePatterns walks rootPath and aggregates pattern lines from
// every .gitignore file. Lines from nested files are prefixed with the file's
// directory relative to the root; negations keep their leading "!" ahead of
// the prefix, and anchored patterns lose their leading "/" before prefixing.
func collectIgnoreFilePatterns(rootPath string, warn func(string)) ([]string, error) {
	var aggregatedPatterns []string

	walkFunction := func(currentDirectoryPath string, directoryEntry fs.DirEntry, walkError error) error {
		if walkError != nil {
			if warn != nil {
				warn(fmt.Sprintf(warningLoadFormat, currentDirectoryPath, walkError))
			}
			if directoryEntry != nil && directoryEntry.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !directoryEntry.IsDir() {
			return nil
		}
		if directoryEntry.Name() == utils.GitDirectoryName {
			return filepath.SkipDir
		}
		if utils.IsVirtualenvName(directoryEntry.Name()) {
			return filepath.SkipDir
		}

		relativeDirectory := utils.RelativePathOrSelf(currentDirectoryPath, rootPath)
		prefix := ""
		if relativeDirectory != currentDirectory {
			prefix = relativeDirectory + pathSeparator
		}

		ignoreFilePath := filepath.Join(currentDirectoryPath, utils.GitIgnoreFileName)
		filePatterns, loadError := loadPatternLines(ignoreFilePath)
		if loadError != nil {
			if warn != nil {
				warn(fmt.Sprintf(warningLoadFormat, ignoreFilePath, loadError))
			}
			return nil
		}
		for _, pattern := range filePatterns {
			aggregatedPatterns = append(aggregatedPatterns, anchorPattern(pattern, prefix))
		}
		return nil
	}

	if walkError := filepath.WalkDir(rootPath, walkFunction); walkError != nil {
		return nil, fmt.Errorf(errorWalkRootFormat, rootPath, walkError)
	}
	return aggregatedPatterns, nil
}

// anchorPattern scopes a single pattern line under the given directory prefix.
func anchorPattern(pattern string, prefix string) string {
	if prefix == "" {
		return pattern
	}
	negated := strings.HasPrefix(pattern, negationPrefix)
	body := pattern
	if negated {
		body = strings.TrimPrefix(body, negationPrefix)
	}
	body = strings.TrimPrefix(body, pathSeparator)
	if negated {
		return negationPrefix + prefix + body
	}
	return prefix + body
}

// loadPatternLines reads one ignore file, dropping blank lines and comments.
// A missing file yields no patterns and no error.
func loadPatternLines(ignoreFilePath string) ([]string, error) {
	fileHandle, openError := os.Open(ignoreFilePath)
	if openError != nil {
		if os.IsNotExist(openError) {
			return nil, nil
		}
		return nil, openError
	}
	defer fileHandle.Close()

	var patterns []string
	scanner := bufio.NewScanner(fileHandle)
	for scanner.Scan() {
		trimmedLine := strings.TrimSpace(scanner.Text())
		if trimmedLine == "" || strings.HasPrefix(trimmedLine, commentPrefix) {
			continue
		}
		patterns = append(patterns, trimmedLine)
	}
	if scanError := scanner.Err(); scanError != nil {
		return patterns, scanError
	}
	return patterns, nil
}
