// Package stream drives a pack run end to end and publishes its progress as a
// typed event sequence: a selection snapshot after every completed propagation
// pass, token recount progress, the aggregate summary, and the rendered
// document. Producers send events into a channel; renderers consume them and
// never touch the selection tree directly.
package stream

// SchemaVersion stamps every event so stream consumers can detect layout
// changes.
const SchemaVersion = 1

// EventKind names the payload variant carried by an Event.
type EventKind string

const (
	EventKindStart         EventKind = "start"
	EventKindSelection     EventKind = "selection"
	EventKindTokenProgress EventKind = "token_progress"
	EventKindSummary       EventKind = "summary"
	EventKindDocument      EventKind = "document"
	EventKindWarning       EventKind = "warning"
	EventKindError         EventKind = "error"
	EventKindDone          EventKind = "done"
)

// Event is one element of a run's event stream. Exactly one payload pointer
// matching Kind is set.
type Event struct {
	Version int       `json:"version"`
	Kind    EventKind `json:"kind"`
	Command string    `json:"command,omitempty"`
	Path    string    `json:"path,omitempty"`

	Selection *SelectionEvent `json:"selection,omitempty"`
	Progress  *ProgressEvent  `json:"progress,omitempty"`
	Summary   *SummaryEvent   `json:"summary,omitempty"`
	Document  *DocumentEvent  `json:"document,omitempty"`
	Message   *LogEvent       `json:"message,omitempty"`
	Err       *ErrorEvent     `json:"error,omitempty"`
}

// SelectionEvent reports the checked sets after one completed propagation
// pass. Consumers never observe a half-propagated tree.
type SelectionEvent struct {
	FileCount          int      `json:"fileCount"`
	DirectoryCount     int      `json:"directoryCount"`
	CheckedFiles       []string `json:"checkedFiles,omitempty"`
	CheckedDirectories []string `json:"checkedDirectories,omitempty"`
}

// ProgressEvent reports token recount completion as files finish counting.
type ProgressEvent struct {
	Completed int `json:"completed"`
	Total     int `json:"total"`
}

// SummaryEvent aggregates the run after selection and counting settle. Token
// fields stay zero when counting is disabled; Model names the counter that
// produced the token figures.
type SummaryEvent struct {
	Files        int    `json:"files"`
	Directories  int    `json:"directories"`
	Bytes        int64  `json:"bytes"`
	Tokens       int    `json:"tokens,omitempty"`
	CountedFiles int    `json:"countedFiles,omitempty"`
	SkippedFiles int    `json:"skippedFiles,omitempty"`
	FailedFiles  int    `json:"failedFiles,omitempty"`
	Model        string `json:"model,omitempty"`
}

// DocumentEvent carries the rendered two-section document.
type DocumentEvent struct {
	Text          string   `json:"text"`
	TotalFiles    int      `json:"totalFiles"`
	RenderedFiles int      `json:"renderedFiles"`
	SkippedFiles  []string `json:"skippedFiles,omitempty"`
	// CopiedToClipboard is set by a consumer that routed Text to the
	// clipboard, telling renderers to print a confirmation instead of the
	// document itself.
	CopiedToClipboard bool `json:"copiedToClipboard,omitempty"`
}

// LogEvent is a non-fatal diagnostic attached to a warning event.
type LogEvent struct {
	Level   string `json:"level,omitempty"`
	Message string `json:"message"`
}

// ErrorEvent reports the failure that ended the run.
type ErrorEvent struct {
	Message string `json:"message"`
}
