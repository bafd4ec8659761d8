// Package types defines every cross-package data structure used by the pickctx engine.
package types

import "time"

const (
	CommandPack = "pack"
	CommandMap  = "map"

	FormatText = "text"
	FormatJSON = "json"
)

// NodeKind classifies a filesystem entry inside a scanned tree.
type NodeKind int

const (
	KindFile NodeKind = iota
	KindDirectory
	KindSymlink
	KindUnreadable
)

// String returns the lower-case name of the node kind.
func (kind NodeKind) String() string {
	switch kind {
	case KindFile:
		return "file"
	case KindDirectory:
		return "directory"
	case KindSymlink:
		return "symlink"
	case KindUnreadable:
		return "unreadable"
	default:
		return "unknown"
	}
}

// CheckState is the tri-state selection value carried by every node.
// Partial is only ever derived for directories with mixed descendants.
type CheckState int

const (
	Unchecked CheckState = iota
	Checked
	Partial
)

// String returns the lower-case name of the check state.
func (state CheckState) String() string {
	switch state {
	case Unchecked:
		return "unchecked"
	case Checked:
		return "checked"
	case Partial:
		return "partial"
	default:
		return "unknown"
	}
}

// Entry is one filesystem record produced by a scan provider.
type Entry struct {
	Path        string
	IsDirectory bool
	IsSymlink   bool
	SizeBytes   int64
	ModTime     time.Time
	ReadError   string
}

// ValidatedPath is an absolute input path that already passed existence checks.
type ValidatedPath struct {
	AbsolutePath string
	IsDir        bool
}

// SelectionSnapshot is the read-only view of a completed selection pass.
type SelectionSnapshot struct {
	CheckedFiles       []string
	CheckedDirectories []string
	FileCount          int
	DirectoryCount     int
}

// SelectedItem is one checked node handed to the document builder.
type SelectedItem struct {
	AbsolutePath string
	RelativePath string
	IsDirectory  bool
}

// TokenTotal aggregates a token recount over the checked file set.
type TokenTotal struct {
	Tokens       int
	CountedFiles int
	SkippedFiles int
	FailedFiles  int
	Model        string
}

// OutputSummary captures aggregate information about a produced document.
type OutputSummary struct {
	TotalFiles   int    `json:"totalFiles"`
	TotalSize    string `json:"totalSize"`
	TotalTokens  int    `json:"totalTokens,omitempty"`
	SkippedFiles int    `json:"skippedFiles,omitempty"`
	FailedFiles  int    `json:"failedFiles,omitempty"`
	Model        string `json:"model,omitempty"`
}
