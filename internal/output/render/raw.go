package render

import (
	"fmt"
	"io"

	"github.com/pickctx/pickctx/internal/services/stream"
	"github.com/pickctx/pickctx/internal/types"
	"github.com/pickctx/pickctx/internal/utils"
)

// rawStreamRenderer prints warnings as they arrive and holds the summary and
// document until Flush, so the document lands on stdout in one piece.
type rawStreamRenderer struct {
	stdout         io.Writer
	stderr         io.Writer
	includeSummary bool
	summary        *stream.SummaryEvent
	document       *stream.DocumentEvent
}

// NewRawStreamRenderer returns the plain text renderer. The document goes to
// stdout; warnings and the optional summary line go to stderr, keeping stdout
// safe to pipe.
func NewRawStreamRenderer(stdout, stderr io.Writer, includeSummary bool) StreamRenderer {
	return &rawStreamRenderer{stdout: stdout, stderr: stderr, includeSummary: includeSummary}
}

func (renderer *rawStreamRenderer) Handle(event stream.Event) error {
	switch event.Kind {
	case stream.EventKindWarning:
		if event.Message != nil && renderer.stderr != nil {
			fmt.Fprintf(renderer.stderr, "Warning: %s\n", event.Message.Message)
		}
	case stream.EventKindSummary:
		if event.Summary != nil {
			summaryCopy := *event.Summary
			renderer.summary = &summaryCopy
		}
	case stream.EventKindDocument:
		if event.Document != nil {
			documentCopy := *event.Document
			renderer.document = &documentCopy
		}
	}
	return nil
}

func (renderer *rawStreamRenderer) Flush() error {
	if renderer.document != nil && renderer.stderr != nil {
		for _, skippedPath := range renderer.document.SkippedFiles {
			fmt.Fprintf(renderer.stderr, "Warning: could not read %s\n", skippedPath)
		}
	}
	if renderer.document != nil && renderer.stdout != nil {
		if renderer.document.CopiedToClipboard {
			renderer.printCopyConfirmation()
		} else {
			fmt.Fprintln(renderer.stdout, renderer.document.Text)
		}
	}
	if renderer.includeSummary && renderer.summary != nil && renderer.stderr != nil {
		fmt.Fprintln(renderer.stderr, FormatSummaryLine(summaryForDisplay(renderer.summary)))
	}
	return nil
}

func (renderer *rawStreamRenderer) printCopyConfirmation() {
	fileCount := renderer.document.TotalFiles
	if renderer.summary != nil && renderer.summary.Model != "" {
		fmt.Fprintf(renderer.stdout, "Copied %d %s (%s tokens) to clipboard\n", fileCount, fileLabel(fileCount), utils.FormatCount(renderer.summary.Tokens))
		return
	}
	fmt.Fprintf(renderer.stdout, "Copied %d %s to clipboard\n", fileCount, fileLabel(fileCount))
}

// summaryForDisplay folds a summary event into the aggregate display shape.
func summaryForDisplay(summary *stream.SummaryEvent) *types.OutputSummary {
	return &types.OutputSummary{
		TotalFiles:   summary.Files,
		TotalSize:    utils.FormatFileSize(summary.Bytes),
		TotalTokens:  summary.Tokens,
		SkippedFiles: summary.SkippedFiles,
		FailedFiles:  summary.FailedFiles,
		Model:        summary.Model,
	}
}

func fileLabel(count int) string {
	if count == 1 {
		return "file"
	}
	return "files"
}

// FormatSummaryLine formats an OutputSummary into the single summary line.
func FormatSummaryLine(summary *types.OutputSummary) string {
	if summary == nil {
		summary = &types.OutputSummary{}
	}
	line := fmt.Sprintf("Summary: %d %s, %s", summary.TotalFiles, fileLabel(summary.TotalFiles), summary.TotalSize)
	if summary.TotalTokens > 0 {
		line += fmt.Sprintf(", %s tokens", utils.FormatCount(summary.TotalTokens))
	}
	if summary.Model != "" {
		line += fmt.Sprintf(" (model: %s)", summary.Model)
	}
	if summary.SkippedFiles > 0 {
		line += fmt.Sprintf(", %d binary skipped", summary.SkippedFiles)
	}
	if summary.FailedFiles > 0 {
		line += fmt.Sprintf(", %d failed", summary.FailedFiles)
	}
	return line
}
