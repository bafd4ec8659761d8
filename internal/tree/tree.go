// Package tree builds the node tree for a scanned root and keeps it indexed
// by relative path. Nodes are owned by the tree that created them; opening a
// new root builds a new tree rather than mutating the old one.
package tree

import (
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pickctx/pickctx/internal/ignore"
	"github.com/pickctx/pickctx/internal/types"
	"github.com/pickctx/pickctx/internal/utils"
)

const (
	// RootRelativePath identifies the root node in relative-path keyed sets.
	RootRelativePath = "."

	relativePathSeparator = "/"
	parentDirectoryPrefix = ".."
)

// Node is one filesystem entry in the tree. CheckState is mutated only by the
// selection manager; everything else is fixed at build or merge time.
type Node struct {
	Path         string
	RelativePath string
	Name         string
	Kind         types.NodeKind
	Hidden       bool
	Ignored      bool
	CheckState   types.CheckState
	SizeBytes    int64
	ModTime      time.Time
	ReadError    string
	TokenCount   int
	TokenCounted bool
	Scanned      bool
	Parent       *Node
	Children     []*Node
}

// IsDirectory reports whether the node can carry children.
func (node *Node) IsDirectory() bool {
	return node.Kind == types.KindDirectory
}

// ChildByName returns the directly attached child with the given name, or nil.
func (node *Node) ChildByName(name string) *Node {
	for _, childNode := range node.Children {
		if childNode.Name == name {
			return childNode
		}
	}
	return nil
}

// Tree pairs the root node with a relative-path index over every node.
type Tree struct {
	Root                *Node
	nodesByRelativePath map[string]*Node
}

// Build constructs a tree from scanner entries in two passes: the first pass
// creates a node for every directory implied by any entry's ancestry, the
// second attaches the remaining entries to their parents. Hidden entries are
// left out entirely when showHidden is false; each node's ignored flag comes
// from matching its own relative path against the rule set. With recursive
// false the listed directories stay unscanned until MergeChildren loads them.
func Build(rootPath string, entries []types.Entry, matcher *ignore.Matcher, showHidden bool, recursive bool) *Tree {
	cleanedRootPath := filepath.Clean(rootPath)
	rootNode := &Node{
		Path:         cleanedRootPath,
		RelativePath: RootRelativePath,
		Name:         filepath.Base(cleanedRootPath),
		Kind:         types.KindDirectory,
		Scanned:      true,
	}
	builtTree := &Tree{
		Root:                rootNode,
		nodesByRelativePath: map[string]*Node{RootRelativePath: rootNode},
	}

	directoryEntriesByRelativePath := make(map[string]types.Entry)
	fileEntries := make([]types.Entry, 0, len(entries))
	directoryRelativePaths := make(map[string]struct{})

	for _, entry := range entries {
		relativePath, usable := relativeTo(cleanedRootPath, entry.Path)
		if !usable {
			continue
		}
		if entry.IsDirectory {
			directoryRelativePaths[relativePath] = struct{}{}
			directoryEntriesByRelativePath[relativePath] = entry
		} else {
			fileEntries = append(fileEntries, entry)
		}
		for _, ancestorPath := range ancestorRelativePaths(relativePath) {
			directoryRelativePaths[ancestorPath] = struct{}{}
		}
	}

	orderedDirectoryPaths := make([]string, 0, len(directoryRelativePaths))
	for relativePath := range directoryRelativePaths {
		orderedDirectoryPaths = append(orderedDirectoryPaths, relativePath)
	}
	sort.Strings(orderedDirectoryPaths)

	for _, relativePath := range orderedDirectoryPaths {
		parentNode := builtTree.nodesByRelativePath[parentRelativePath(relativePath)]
		if parentNode == nil {
			continue
		}
		directoryNode := newDirectoryNode(cleanedRootPath, relativePath, parentNode, matcher)
		directoryNode.Scanned = recursive
		if directoryNode.Hidden && !showHidden {
			continue
		}
		if entry, known := directoryEntriesByRelativePath[relativePath]; known {
			applyEntryMetadata(directoryNode, entry)
		}
		attach(builtTree, parentNode, directoryNode)
	}

	for _, entry := range fileEntries {
		relativePath, _ := relativeTo(cleanedRootPath, entry.Path)
		parentNode := builtTree.nodesByRelativePath[parentRelativePath(relativePath)]
		if parentNode == nil {
			continue
		}
		leafNode := newLeafNode(relativePath, parentNode, entry, matcher)
		if leafNode.Hidden && !showHidden {
			continue
		}
		attach(builtTree, parentNode, leafNode)
	}

	sortChildrenRecursively(rootNode)
	return builtTree
}

// MergeChildren attaches one directory's freshly scanned immediate entries
// under parentNode, updating nodes that already exist and leaving siblings
// untouched. Newly discovered nodes under a Checked parent start Checked so an
// expanded selection stays whole; ignored nodes never inherit a check.
func (tree *Tree) MergeChildren(parentNode *Node, entries []types.Entry, matcher *ignore.Matcher, showHidden bool) {
	for _, entry := range entries {
		relativePath, usable := relativeTo(tree.Root.Path, entry.Path)
		if !usable {
			continue
		}
		entryName := lastSegment(relativePath)
		if existingNode := parentNode.ChildByName(entryName); existingNode != nil {
			applyEntryMetadata(existingNode, entry)
			continue
		}

		var childNode *Node
		if entry.IsDirectory {
			childNode = newDirectoryNode(tree.Root.Path, relativePath, parentNode, matcher)
			applyEntryMetadata(childNode, entry)
		} else {
			childNode = newLeafNode(relativePath, parentNode, entry, matcher)
		}
		if childNode.Hidden && !showHidden {
			continue
		}
		if parentNode.CheckState == types.Checked && !childNode.Ignored {
			childNode.CheckState = types.Checked
		}
		attach(tree, parentNode, childNode)
	}
	parentNode.Scanned = true
	sortChildren(parentNode)
}

// NodeAt returns the node stored under the given relative path, or nil.
func (tree *Tree) NodeAt(relativePath string) *Node {
	return tree.nodesByRelativePath[relativePath]
}

// Walk visits every node in preorder, root first.
func (tree *Tree) Walk(visit func(*Node)) {
	walkNode(tree.Root, visit)
}

// Size returns the number of nodes including the root.
func (tree *Tree) Size() int {
	return len(tree.nodesByRelativePath)
}

func walkNode(node *Node, visit func(*Node)) {
	visit(node)
	for _, childNode := range node.Children {
		walkNode(childNode, visit)
	}
}

// Ignored flags are matched per path, not inherited: a directory-only pattern
// already matches everything beneath the directory, and a negation line can
// still re-include a single descendant.
func newDirectoryNode(rootPath string, relativePath string, parentNode *Node, matcher *ignore.Matcher) *Node {
	name := lastSegment(relativePath)
	return &Node{
		Path:         filepath.Join(rootPath, filepath.FromSlash(relativePath)),
		RelativePath: relativePath,
		Name:         name,
		Kind:         types.KindDirectory,
		Hidden:       utils.IsHiddenName(name),
		Ignored:      matcher.IsIgnored(relativePath, true),
		Parent:       parentNode,
	}
}

func newLeafNode(relativePath string, parentNode *Node, entry types.Entry, matcher *ignore.Matcher) *Node {
	name := lastSegment(relativePath)
	leafNode := &Node{
		Path:         entry.Path,
		RelativePath: relativePath,
		Name:         name,
		Kind:         leafKind(entry),
		Hidden:       utils.IsHiddenName(name),
		Ignored:      matcher.IsIgnored(relativePath, false),
		SizeBytes:    entry.SizeBytes,
		ModTime:      entry.ModTime,
		ReadError:    entry.ReadError,
		Parent:       parentNode,
	}
	return leafNode
}

func leafKind(entry types.Entry) types.NodeKind {
	switch {
	case entry.ReadError != "":
		return types.KindUnreadable
	case entry.IsSymlink:
		return types.KindSymlink
	default:
		return types.KindFile
	}
}

func applyEntryMetadata(node *Node, entry types.Entry) {
	node.SizeBytes = entry.SizeBytes
	node.ModTime = entry.ModTime
	node.ReadError = entry.ReadError
	if entry.ReadError != "" && !entry.IsDirectory {
		node.Kind = types.KindUnreadable
	}
}

func attach(tree *Tree, parentNode *Node, childNode *Node) {
	parentNode.Children = append(parentNode.Children, childNode)
	tree.nodesByRelativePath[childNode.RelativePath] = childNode
}

// sortChildren orders one directory's children: directories first, then the
// rest, each group lexicographic by name, case-insensitive, stable.
func sortChildren(node *Node) {
	sort.SliceStable(node.Children, func(firstIndex, secondIndex int) bool {
		firstChild := node.Children[firstIndex]
		secondChild := node.Children[secondIndex]
		if firstChild.IsDirectory() != secondChild.IsDirectory() {
			return firstChild.IsDirectory()
		}
		return strings.ToLower(firstChild.Name) < strings.ToLower(secondChild.Name)
	})
}

func sortChildrenRecursively(node *Node) {
	sortChildren(node)
	for _, childNode := range node.Children {
		if childNode.IsDirectory() {
			sortChildrenRecursively(childNode)
		}
	}
}

// relativeTo converts an absolute entry path to the slash-separated path
// relative to the root, rejecting paths that escape it.
func relativeTo(rootPath string, entryPath string) (string, bool) {
	relativePath, relativeError := filepath.Rel(rootPath, entryPath)
	if relativeError != nil {
		return "", false
	}
	normalizedPath := filepath.ToSlash(relativePath)
	if normalizedPath == RootRelativePath || strings.HasPrefix(normalizedPath, parentDirectoryPrefix) {
		return "", false
	}
	return normalizedPath, true
}

func parentRelativePath(relativePath string) string {
	separatorIndex := strings.LastIndex(relativePath, relativePathSeparator)
	if separatorIndex < 0 {
		return RootRelativePath
	}
	return relativePath[:separatorIndex]
}

func lastSegment(relativePath string) string {
	separatorIndex := strings.LastIndex(relativePath, relativePathSeparator)
	if separatorIndex < 0 {
		return relativePath
	}
	return relativePath[separatorIndex+1:]
}

// ancestorRelativePaths lists every ancestor directory of relativePath,
// nearest last, excluding the root itself.
func ancestorRelativePaths(relativePath string) []string {
	var ancestors []string
	current := parentRelativePath(relativePath)
	for current != RootRelativePath {
		ancestors = append(ancestors, current)
		current = parentRelativePath(current)
	}
	for leftIndex, rightIndex := 0, len(ancestors)-1; leftIndex < rightIndex; leftIndex, rightIndex = leftIndex+1, rightIndex-1 {
		ancestors[leftIndex], ancestors[rightIndex] = ancestors[rightIndex], ancestors[leftIndex]
	}
	return ancestors
}
