// Package output renders the checked selection into the two-section context
// document: a <file_map> tree of every selected path and a <file_contents>
// section with each file's decoded text inside a fenced block. Rendering is
// byte-stable for identical input.
package output

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/pickctx/pickctx/internal/decode"
	"github.com/pickctx/pickctx/internal/tree"
	"github.com/pickctx/pickctx/internal/types"
)

const (
	fileMapOpenTag       = "<file_map>"
	fileMapCloseTag      = "</file_map>"
	fileContentsOpenTag  = "<file_contents>"
	fileContentsCloseTag = "</file_contents>"

	emptySelectionLine = "// (no files or folders selected)"
	fallbackRootName   = "project_root"

	fileHeaderPrefix = "File: "
	fenceMarker      = "```"

	lastConnector   = "└── "
	middleConnector = "├── "
	lastPadding     = "    "
	middlePadding   = "│   "

	directorySuffix = "/"
)

// Document is a rendered selection.
type Document struct {
	// Text is the full document, or just the file map when built map-only.
	Text string
	// TotalFiles is the number of selected file items.
	TotalFiles int
	// RenderedFiles is the number of files whose content made it into the
	// document.
	RenderedFiles int
	// SkippedFiles lists relative paths left out of the contents section
	// because they could not be read or decoded.
	SkippedFiles []string
}

// BuildDocument renders the selection against rootPath. With mapOnly set only
// the file map section is produced.
func BuildDocument(rootPath string, selectedItems []types.SelectedItem, mapOnly bool) Document {
	fileItems := make([]types.SelectedItem, 0, len(selectedItems))
	for _, selectedItem := range selectedItems {
		if !selectedItem.IsDirectory {
			fileItems = append(fileItems, selectedItem)
		}
	}
	sort.SliceStable(fileItems, func(firstIndex, secondIndex int) bool {
		return pathLess(fileItems[firstIndex].RelativePath, fileItems[secondIndex].RelativePath)
	})

	document := Document{TotalFiles: len(fileItems)}
	mapSection := renderFileMap(rootPath, selectedItems)
	if mapOnly {
		document.Text = mapSection
		return document
	}

	contentsSection, renderedCount, skippedFiles := renderFileContents(fileItems)
	document.Text = mapSection + "\n\n" + contentsSection
	document.RenderedFiles = renderedCount
	document.SkippedFiles = skippedFiles
	return document
}

// mapEntry is one name in the rendered map tree. Directories hold a non-nil
// children map; a file later discovered to have descendants is upgraded.
type mapEntry struct {
	children map[string]*mapEntry
}

func (entry *mapEntry) isDirectory() bool {
	return entry.children != nil
}

func renderFileMap(rootPath string, selectedItems []types.SelectedItem) string {
	rootName := filepath.Base(filepath.Clean(rootPath))
	if rootName == "." || rootName == string(filepath.Separator) || rootName == "" {
		rootName = fallbackRootName
	}

	topLevel := make(map[string]*mapEntry)
	for _, selectedItem := range selectedItems {
		relativePath := filepath.ToSlash(selectedItem.RelativePath)
		if relativePath == "" || relativePath == tree.RootRelativePath {
			continue
		}
		insertMapPath(topLevel, strings.Split(relativePath, "/"), selectedItem.IsDirectory)
	}

	lines := []string{fileMapOpenTag, rootName + directorySuffix}
	if len(topLevel) == 0 {
		lines = append(lines, emptySelectionLine)
	} else {
		lines = append(lines, renderMapLevel(topLevel, "")...)
	}
	lines = append(lines, fileMapCloseTag)
	return strings.Join(lines, "\n")
}

func insertMapPath(level map[string]*mapEntry, parts []string, isDirectory bool) {
	for index, part := range parts {
		entry := level[part]
		lastPart := index == len(parts)-1
		if entry == nil {
			entry = &mapEntry{}
			level[part] = entry
		}
		if !lastPart || isDirectory {
			if entry.children == nil {
				entry.children = make(map[string]*mapEntry)
			}
		}
		if !lastPart {
			level = entry.children
		}
	}
}

// renderMapLevel emits one level sorted by raw name, files and directories
// interleaved, with box-drawing connectors.
func renderMapLevel(level map[string]*mapEntry, parentPrefix string) []string {
	names := make([]string, 0, len(level))
	for name := range level {
		names = append(names, name)
	}
	sort.Strings(names)

	var lines []string
	for index, name := range names {
		entry := level[name]
		lastInLevel := index == len(names)-1
		connector := middleConnector
		padding := middlePadding
		if lastInLevel {
			connector = lastConnector
			padding = lastPadding
		}

		line := parentPrefix + connector + name
		if entry.isDirectory() {
			line += directorySuffix
		}
		lines = append(lines, line)
		if entry.isDirectory() {
			lines = append(lines, renderMapLevel(entry.children, parentPrefix+padding)...)
		}
	}
	return lines
}

func renderFileContents(fileItems []types.SelectedItem) (string, int, []string) {
	lines := []string{fileContentsOpenTag}
	renderedCount := 0
	var skippedFiles []string

	for _, fileItem := range fileItems {
		decoded, decodeError := decode.File(fileItem.AbsolutePath)
		if decodeError != nil {
			skippedFiles = append(skippedFiles, fileItem.RelativePath)
			continue
		}
		lines = append(lines,
			fileHeaderPrefix+filepath.ToSlash(fileItem.RelativePath),
			fenceMarker+LanguageForFile(fileItem.RelativePath),
			decoded.Text,
			fenceMarker,
			"",
		)
		renderedCount++
	}

	lines = append(lines, fileContentsCloseTag)
	return strings.Join(lines, "\n"), renderedCount, skippedFiles
}

// pathLess orders slash-separated relative paths component by component, so
// "a/b" sorts after "a.txt" the way path-aware ordering expects.
func pathLess(firstPath string, secondPath string) bool {
	firstParts := strings.Split(filepath.ToSlash(firstPath), "/")
	secondParts := strings.Split(filepath.ToSlash(secondPath), "/")
	for index := 0; index < len(firstParts) && index < len(secondParts); index++ {
		if firstParts[index] != secondParts[index] {
			return firstParts[index] < secondParts[index]
		}
	}
	return len(firstParts) < len(secondParts)
}
