// Package scan produces flat entry lists for a directory root. The engine
// drives a Provider; the filesystem implementation applies the always-on
// exclusions (hidden names, version control metadata, virtualenv directories)
// so those paths never reach the tree. Ignore rules are not the scanner's
// concern: matched entries stay in the listing and are flagged during tree
// construction.
package scan

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pickctx/pickctx/internal/types"
	"github.com/pickctx/pickctx/internal/utils"
)

const (
	scanRootErrorFormat        = "scan root %s: %w"
	scanRootNotDirectoryFormat = "scan root %s is not a directory"
)

// Provider supplies directory entries for a root path. recursive=false lists
// only the immediate children, used when expanding a single directory.
type Provider interface {
	Scan(executionContext context.Context, rootPath string, recursive bool) ([]types.Entry, error)
}

// Options control filesystem traversal.
type Options struct {
	// ShowHidden includes dot-prefixed names. Version control metadata is
	// excluded regardless.
	ShowHidden bool
	// FollowSymlinks descends into symlinked directories and sizes symlinked
	// files by their targets. Cycles are detected and not re-entered.
	FollowSymlinks bool
}

// FilesystemScanner walks the real filesystem.
type FilesystemScanner struct {
	options Options
}

var _ Provider = (*FilesystemScanner)(nil)

// NewFilesystemScanner returns a scanner with the given traversal options.
func NewFilesystemScanner(options Options) *FilesystemScanner {
	return &FilesystemScanner{options: options}
}

// Scan lists the entries under rootPath. The root itself is not included.
// A directory whose listing fails is kept as an entry carrying its read error
// and contributes no children; a failure to list the root aborts the call.
func (scanner *FilesystemScanner) Scan(executionContext context.Context, rootPath string, recursive bool) ([]types.Entry, error) {
	rootInformation, statError := os.Stat(rootPath)
	if statError != nil {
		return nil, fmt.Errorf(scanRootErrorFormat, rootPath, statError)
	}
	if !rootInformation.IsDir() {
		return nil, fmt.Errorf(scanRootNotDirectoryFormat, rootPath)
	}

	var visitedDirectories map[string]struct{}
	if scanner.options.FollowSymlinks {
		visitedDirectories = make(map[string]struct{})
		if resolvedRoot, resolveError := filepath.EvalSymlinks(rootPath); resolveError == nil {
			visitedDirectories[resolvedRoot] = struct{}{}
		}
	}

	var collectedEntries []types.Entry
	if walkError := scanner.walkDirectory(executionContext, rootPath, recursive, visitedDirectories, &collectedEntries); walkError != nil {
		return nil, walkError
	}
	return collectedEntries, nil
}

func (scanner *FilesystemScanner) walkDirectory(executionContext context.Context, directoryPath string, recursive bool, visitedDirectories map[string]struct{}, collectedEntries *[]types.Entry) error {
	select {
	case <-executionContext.Done():
		return executionContext.Err()
	default:
	}

	directoryEntries, readError := os.ReadDir(directoryPath)
	if readError != nil {
		return readError
	}

	for _, directoryEntry := range directoryEntries {
		entryName := directoryEntry.Name()
		entryPath := filepath.Join(directoryPath, entryName)
		isDirectory := directoryEntry.IsDir()
		isSymlink := directoryEntry.Type()&fs.ModeSymlink != 0

		if scanner.shouldExcludeName(entryName, isDirectory) {
			continue
		}

		entry := types.Entry{
			Path:        entryPath,
			IsDirectory: isDirectory,
			IsSymlink:   isSymlink,
		}

		entryInformation, informationError := directoryEntry.Info()
		if informationError != nil {
			entry.ReadError = informationError.Error()
			*collectedEntries = append(*collectedEntries, entry)
			continue
		}
		entry.ModTime = entryInformation.ModTime()
		if !isDirectory {
			entry.SizeBytes = entryInformation.Size()
		}

		if isSymlink && scanner.options.FollowSymlinks {
			targetInformation, targetError := os.Stat(entryPath)
			if targetError != nil {
				entry.ReadError = targetError.Error()
				*collectedEntries = append(*collectedEntries, entry)
				continue
			}
			entry.ModTime = targetInformation.ModTime()
			if targetInformation.IsDir() {
				entry.IsDirectory = true
				entry.SizeBytes = 0
				isDirectory = true
			} else {
				entry.SizeBytes = targetInformation.Size()
			}
		}

		*collectedEntries = append(*collectedEntries, entry)
		appendedIndex := len(*collectedEntries) - 1

		if !recursive || !isDirectory {
			continue
		}
		if scanner.options.FollowSymlinks && scanner.alreadyVisited(entryPath, visitedDirectories) {
			continue
		}

		if descendError := scanner.walkDirectory(executionContext, entryPath, recursive, visitedDirectories, collectedEntries); descendError != nil {
			if contextError := executionContext.Err(); contextError != nil {
				return contextError
			}
			(*collectedEntries)[appendedIndex].ReadError = descendError.Error()
		}
	}
	return nil
}

// shouldExcludeName applies the name-based exclusions that never enter a tree.
func (scanner *FilesystemScanner) shouldExcludeName(entryName string, isDirectory bool) bool {
	if isDirectory && entryName == utils.GitDirectoryName {
		return true
	}
	if isDirectory && utils.IsVirtualenvName(entryName) {
		return true
	}
	if !scanner.options.ShowHidden && utils.IsHiddenName(entryName) {
		return true
	}
	return false
}

// alreadyVisited records directoryPath's resolved location and reports whether
// it was seen before, guarding symlink cycles.
func (scanner *FilesystemScanner) alreadyVisited(directoryPath string, visitedDirectories map[string]struct{}) bool {
	resolvedPath, resolveError := filepath.EvalSymlinks(directoryPath)
	if resolveError != nil {
		return false
	}
	if _, seen := visitedDirectories[resolvedPath]; seen {
		return true
	}
	visitedDirectories[resolvedPath] = struct{}{}
	return false
}
