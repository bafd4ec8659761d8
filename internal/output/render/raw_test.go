package render_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/pickctx/pickctx/internal/output/render"
	"github.com/pickctx/pickctx/internal/services/stream"
	"github.com/pickctx/pickctx/internal/types"
)

func TestRawStreamRendererPrintsDocumentAndSummary(t *testing.T) {
	t.Parallel()

	documentText := "<file_map>\nroot/\n└── main.go\n</file_map>\n\n<file_contents>\nFile: main.go\n```go\npackage main\n```\n\n</file_contents>"
	events := []stream.Event{
		{Kind: stream.EventKindStart, Path: "/tmp/root"},
		{Kind: stream.EventKindSelection, Selection: &stream.SelectionEvent{FileCount: 1}},
		{Kind: stream.EventKindWarning, Message: &stream.LogEvent{Level: "warning", Message: "alert"}},
		{Kind: stream.EventKindTokenProgress, Progress: &stream.ProgressEvent{Completed: 1, Total: 1}},
		{Kind: stream.EventKindSummary, Summary: &stream.SummaryEvent{Files: 1, Bytes: 13, Tokens: 3, CountedFiles: 1, Model: "stub"}},
		{Kind: stream.EventKindDocument, Document: &stream.DocumentEvent{Text: documentText, TotalFiles: 1, RenderedFiles: 1}},
		{Kind: stream.EventKindDone},
	}

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	renderer := render.NewRawStreamRenderer(&stdout, &stderr, true)
	for index, event := range events {
		if err := renderer.Handle(event); err != nil {
			t.Fatalf("handle event %d failed: %v", index, err)
		}
	}
	if err := renderer.Flush(); err != nil {
		t.Fatalf("flush failed: %v", err)
	}

	if stdout.String() != documentText+"\n" {
		t.Fatalf("stdout = %q, want the document text with one trailing newline", stdout.String())
	}
	if !strings.Contains(stderr.String(), "Warning: alert") {
		t.Fatalf("expected warning on stderr, got %q", stderr.String())
	}
	if !strings.Contains(stderr.String(), "Summary: 1 file, 13b, 3 tokens (model: stub)") {
		t.Fatalf("expected summary line on stderr, got %q", stderr.String())
	}
}

func TestRawStreamRendererWithoutSummary(t *testing.T) {
	t.Parallel()

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	renderer := render.NewRawStreamRenderer(&stdout, &stderr, false)
	events := []stream.Event{
		{Kind: stream.EventKindSummary, Summary: &stream.SummaryEvent{Files: 2, Bytes: 20}},
		{Kind: stream.EventKindDocument, Document: &stream.DocumentEvent{Text: "<file_map>\nroot/\n</file_map>", TotalFiles: 2}},
	}
	for _, event := range events {
		if err := renderer.Handle(event); err != nil {
			t.Fatalf("handle event failed: %v", err)
		}
	}
	if err := renderer.Flush(); err != nil {
		t.Fatalf("flush failed: %v", err)
	}
	if stderr.Len() != 0 {
		t.Fatalf("expected no stderr output, got %q", stderr.String())
	}
	if !strings.HasPrefix(stdout.String(), "<file_map>") {
		t.Fatalf("expected document on stdout, got %q", stdout.String())
	}
}

func TestRawStreamRendererCopyConfirmation(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name         string
		summary      *stream.SummaryEvent
		expectedLine string
	}{
		{
			name:         "with token count",
			summary:      &stream.SummaryEvent{Files: 3, Bytes: 4096, Tokens: 1234, Model: "gpt-4o"},
			expectedLine: "Copied 3 files (1,234 tokens) to clipboard\n",
		},
		{
			name:         "without token count",
			summary:      &stream.SummaryEvent{Files: 3, Bytes: 4096},
			expectedLine: "Copied 3 files to clipboard\n",
		},
	}

	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			var stdout bytes.Buffer
			var stderr bytes.Buffer
			renderer := render.NewRawStreamRenderer(&stdout, &stderr, false)
			events := []stream.Event{
				{Kind: stream.EventKindSummary, Summary: testCase.summary},
				{Kind: stream.EventKindDocument, Document: &stream.DocumentEvent{Text: "ignored", TotalFiles: 3, CopiedToClipboard: true}},
			}
			for _, event := range events {
				if err := renderer.Handle(event); err != nil {
					t.Fatalf("handle event failed: %v", err)
				}
			}
			if err := renderer.Flush(); err != nil {
				t.Fatalf("flush failed: %v", err)
			}
			if stdout.String() != testCase.expectedLine {
				t.Fatalf("stdout = %q, want %q", stdout.String(), testCase.expectedLine)
			}
		})
	}
}

func TestRawStreamRendererReportsSkippedFiles(t *testing.T) {
	t.Parallel()

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	renderer := render.NewRawStreamRenderer(&stdout, &stderr, false)
	document := &stream.DocumentEvent{
		Text:         "<file_map>\nroot/\n</file_map>",
		TotalFiles:   2,
		SkippedFiles: []string{"broken.dat"},
	}
	if err := renderer.Handle(stream.Event{Kind: stream.EventKindDocument, Document: document}); err != nil {
		t.Fatalf("handle event failed: %v", err)
	}
	if err := renderer.Flush(); err != nil {
		t.Fatalf("flush failed: %v", err)
	}
	if !strings.Contains(stderr.String(), "Warning: could not read broken.dat") {
		t.Fatalf("expected skipped file warning on stderr, got %q", stderr.String())
	}
}

func TestFormatSummaryLine(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		summary  *types.OutputSummary
		expected string
	}{
		{
			name:     "nil summary",
			summary:  nil,
			expected: "Summary: 0 files, ",
		},
		{
			name:     "files and size only",
			summary:  &types.OutputSummary{TotalFiles: 1, TotalSize: "42b"},
			expected: "Summary: 1 file, 42b",
		},
		{
			name:     "tokens with model",
			summary:  &types.OutputSummary{TotalFiles: 5, TotalSize: "2.0kb", TotalTokens: 12345, Model: "gpt-4o"},
			expected: "Summary: 5 files, 2.0kb, 12,345 tokens (model: gpt-4o)",
		},
		{
			name:     "skipped and failed",
			summary:  &types.OutputSummary{TotalFiles: 4, TotalSize: "1kb", TotalTokens: 9, Model: "o1", SkippedFiles: 2, FailedFiles: 1},
			expected: "Summary: 4 files, 1kb, 9 tokens (model: o1), 2 binary skipped, 1 failed",
		},
	}

	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			formatted := render.FormatSummaryLine(testCase.summary)
			if formatted != testCase.expected {
				t.Fatalf("FormatSummaryLine = %q, want %q", formatted, testCase.expected)
			}
		})
	}
}
