package stream

import (
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/pickctx/pickctx/internal/engine"
	"github.com/pickctx/pickctx/internal/tokenizer"
	"github.com/pickctx/pickctx/internal/tree"
	"github.com/pickctx/pickctx/internal/types"
)

const (
	emptyRootErrorMessage       = "stream: pack root path is empty"
	nilEventChannelErrorMessage = "stream: event channel is nil"
	warningLevelName            = "warning"
	selectPathWarningFormat     = "selection path %s: %v"
	selectNothingCheckedWarning = "selection matched nothing; the document will be empty"
	countTokensErrorFormat      = "count tokens under %s: %w"
	buildDocumentErrorFormat    = "build document for %s: %w"
)

// PackOptions configures one pack run.
type PackOptions struct {
	// Command labels the emitted events; empty defaults to the pack command.
	Command string
	// Root is the directory to scan.
	Root string
	// SelectPaths are root-relative paths to check. Empty selects the whole
	// tree.
	SelectPaths []string

	ShowHidden        bool
	FollowSymlinks    bool
	ApplyIgnoreRules  bool
	UseGitignoreFiles bool
	ExtraPatterns     []string

	// TokenCounter enables token accounting when non-nil.
	TokenCounter tokenizer.Counter
	// MapOnly restricts the document to the file map section.
	MapOnly bool
}

type emitter struct {
	executionContext context.Context
	out              chan<- Event
	command          string
}

func newEmitter(executionContext context.Context, out chan<- Event, command string) *emitter {
	if executionContext == nil {
		executionContext = context.Background()
	}
	return &emitter{executionContext: executionContext, out: out, command: command}
}

func (eventEmitter *emitter) send(event Event) error {
	if eventEmitter.out == nil {
		return errors.New(nilEventChannelErrorMessage)
	}
	event.Version = SchemaVersion
	if event.Command == "" {
		event.Command = eventEmitter.command
	}
	select {
	case <-eventEmitter.executionContext.Done():
		return eventEmitter.executionContext.Err()
	case eventEmitter.out <- event:
		return nil
	}
}

func (eventEmitter *emitter) warn(eventPath string, message string) {
	trimmed := strings.TrimRight(message, "\n")
	if trimmed == "" {
		return
	}
	_ = eventEmitter.send(Event{
		Kind:    EventKindWarning,
		Path:    eventPath,
		Message: &LogEvent{Level: warningLevelName, Message: trimmed},
	})
}

// fail emits the terminal error event and hands the error back to the caller.
func (eventEmitter *emitter) fail(eventPath string, runError error) error {
	_ = eventEmitter.send(Event{
		Kind: EventKindError,
		Path: eventPath,
		Err:  &ErrorEvent{Message: runError.Error()},
	})
	return runError
}

// Pack runs scan, selection, token accounting, and document rendering for one
// root, sending events to out. Selection events come from the engine's
// subscription point, so every one reflects a completed propagation pass.
// Pack never closes out; the caller owns the channel.
func Pack(executionContext context.Context, options PackOptions, out chan<- Event) error {
	if options.Root == "" {
		return errors.New(emptyRootErrorMessage)
	}
	command := options.Command
	if command == "" {
		command = types.CommandPack
	}
	eventEmitter := newEmitter(executionContext, out, command)
	if sendError := eventEmitter.send(Event{Kind: EventKindStart, Path: options.Root}); sendError != nil {
		return sendError
	}

	selectionEngine, newError := engine.New(engine.Config{
		Counter:           options.TokenCounter,
		ShowHidden:        options.ShowHidden,
		FollowSymlinks:    options.FollowSymlinks,
		ApplyIgnoreRules:  options.ApplyIgnoreRules,
		UseGitignoreFiles: options.UseGitignoreFiles,
		ExtraPatterns:     options.ExtraPatterns,
		Warn: func(message string) {
			eventEmitter.warn(options.Root, message)
		},
	})
	if newError != nil {
		return eventEmitter.fail(options.Root, newError)
	}
	defer selectionEngine.Close()

	cancelSubscription := selectionEngine.Subscribe(func(snapshot types.SelectionSnapshot) {
		_ = eventEmitter.send(Event{
			Kind: EventKindSelection,
			Path: options.Root,
			Selection: &SelectionEvent{
				FileCount:          snapshot.FileCount,
				DirectoryCount:     snapshot.DirectoryCount,
				CheckedFiles:       snapshot.CheckedFiles,
				CheckedDirectories: snapshot.CheckedDirectories,
			},
		})
	})
	defer cancelSubscription()

	if _, openError := selectionEngine.OpenRoot(executionContext, options.Root, true); openError != nil {
		return eventEmitter.fail(options.Root, openError)
	}

	selectPaths := options.SelectPaths
	if len(selectPaths) == 0 {
		selectPaths = []string{tree.RootRelativePath}
	}
	for _, selectPath := range selectPaths {
		normalizedPath := normalizeSelectPath(selectPath)
		if _, checkError := selectionEngine.SetChecked(normalizedPath, true); checkError != nil {
			eventEmitter.warn(normalizedPath, fmt.Sprintf(selectPathWarningFormat, selectPath, checkError))
		}
	}

	snapshot, snapshotError := selectionEngine.Snapshot()
	if snapshotError != nil {
		return eventEmitter.fail(options.Root, snapshotError)
	}
	if snapshot.FileCount == 0 && snapshot.DirectoryCount == 0 {
		eventEmitter.warn(options.Root, selectNothingCheckedWarning)
	}

	summary := SummaryEvent{
		Files:       snapshot.FileCount,
		Directories: snapshot.DirectoryCount,
		Bytes:       selectedFileBytes(selectionEngine),
	}

	if options.TokenCounter != nil {
		total, countError := selectionEngine.CountTokens(executionContext, func(completedFiles int, totalFiles int) {
			_ = eventEmitter.send(Event{
				Kind:     EventKindTokenProgress,
				Path:     options.Root,
				Progress: &ProgressEvent{Completed: completedFiles, Total: totalFiles},
			})
		})
		if countError != nil {
			return eventEmitter.fail(options.Root, fmt.Errorf(countTokensErrorFormat, options.Root, countError))
		}
		summary.Tokens = total.Tokens
		summary.CountedFiles = total.CountedFiles
		summary.SkippedFiles = total.SkippedFiles
		summary.FailedFiles = total.FailedFiles
		summary.Model = total.Model
	}

	if sendError := eventEmitter.send(Event{Kind: EventKindSummary, Path: options.Root, Summary: &summary}); sendError != nil {
		return sendError
	}

	document, documentError := selectionEngine.BuildDocument(options.MapOnly)
	if documentError != nil {
		return eventEmitter.fail(options.Root, fmt.Errorf(buildDocumentErrorFormat, options.Root, documentError))
	}
	if sendError := eventEmitter.send(Event{
		Kind: EventKindDocument,
		Path: options.Root,
		Document: &DocumentEvent{
			Text:          document.Text,
			TotalFiles:    document.TotalFiles,
			RenderedFiles: document.RenderedFiles,
			SkippedFiles:  document.SkippedFiles,
		},
	}); sendError != nil {
		return sendError
	}
	return eventEmitter.send(Event{Kind: EventKindDone, Path: options.Root})
}

// normalizeSelectPath turns user input into the forward-slash relative form
// the tree is keyed by. Empty input and "." both address the root.
func normalizeSelectPath(selectPath string) string {
	cleaned := strings.TrimPrefix(path.Clean(filepath.ToSlash(strings.TrimSpace(selectPath))), "/")
	if cleaned == "" {
		return tree.RootRelativePath
	}
	return cleaned
}

// selectedFileBytes totals the on-disk sizes of the checked files.
func selectedFileBytes(selectionEngine *engine.Engine) int64 {
	selectedItems, selectedError := selectionEngine.SelectedItems()
	if selectedError != nil {
		return 0
	}
	var totalBytes int64
	for _, selectedItem := range selectedItems {
		if selectedItem.IsDirectory {
			continue
		}
		if node := selectionEngine.NodeAt(selectedItem.RelativePath); node != nil {
			totalBytes += node.SizeBytes
		}
	}
	return totalBytes
}
