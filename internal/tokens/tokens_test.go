package tokens_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pickctx/pickctx/internal/tokens"
)

// countingWordCounter counts one token per field and records how often it ran.
type countingWordCounter struct {
	mutex sync.Mutex
	calls int
}

func (counter *countingWordCounter) Name() string {
	return "word-counter"
}

func (counter *countingWordCounter) CountString(input string) (int, error) {
	counter.mutex.Lock()
	counter.calls++
	counter.mutex.Unlock()
	return len(strings.Fields(input)), nil
}

func (counter *countingWordCounter) callCount() int {
	counter.mutex.Lock()
	defer counter.mutex.Unlock()
	return counter.calls
}

func writeFixtureFile(testingInstance *testing.T, directory string, name string, content []byte) string {
	testingInstance.Helper()
	path := filepath.Join(directory, name)
	if writeError := os.WriteFile(path, content, 0o644); writeError != nil {
		testingInstance.Fatalf("write %s: %v", name, writeError)
	}
	return path
}

func TestTotalAggregates(testingInstance *testing.T) {
	directory := testingInstance.TempDir()
	textPath := writeFixtureFile(testingInstance, directory, "text.txt", []byte("three short words"))
	binaryPath := writeFixtureFile(testingInstance, directory, "blob.dat", []byte{0x00, 0x01, 0x02})

	counter := &countingWordCounter{}
	accountant, newError := tokens.NewAccountant(counter, 0, 0)
	if newError != nil {
		testingInstance.Fatalf("NewAccountant: %v", newError)
	}

	files := []tokens.FileRef{
		{AbsolutePath: textPath, RelativePath: "text.txt"},
		{AbsolutePath: binaryPath, RelativePath: "blob.dat"},
		{AbsolutePath: filepath.Join(directory, "missing.txt"), RelativePath: "missing.txt"},
	}

	var progressCalls int
	total, tokensByPath, totalError := accountant.Total(context.Background(), files, func(completed int, totalFiles int) {
		progressCalls++
		if totalFiles != len(files) {
			testingInstance.Errorf("progress total = %d, want %d", totalFiles, len(files))
		}
	})
	if totalError != nil {
		testingInstance.Fatalf("Total: %v", totalError)
	}

	if total.Tokens != 3 || total.CountedFiles != 1 {
		testingInstance.Errorf("total = %+v, want 3 tokens over 1 counted file", total)
	}
	if total.SkippedFiles != 1 {
		testingInstance.Errorf("SkippedFiles = %d, want 1", total.SkippedFiles)
	}
	if total.FailedFiles != 1 {
		testingInstance.Errorf("FailedFiles = %d, want 1", total.FailedFiles)
	}
	if total.Model != "word-counter" {
		testingInstance.Errorf("Model = %q, want word-counter", total.Model)
	}
	if tokensByPath["text.txt"] != 3 {
		testingInstance.Errorf("tokensByPath = %v, want text.txt=3", tokensByPath)
	}
	if _, present := tokensByPath["blob.dat"]; present {
		testingInstance.Error("skipped file should not appear in the per-file map")
	}
	if progressCalls != len(files) {
		testingInstance.Errorf("progress calls = %d, want %d", progressCalls, len(files))
	}
}

func TestFileTokensCachesBySignature(testingInstance *testing.T) {
	directory := testingInstance.TempDir()
	path := writeFixtureFile(testingInstance, directory, "cached.txt", []byte("alpha beta"))

	counter := &countingWordCounter{}
	accountant, newError := tokens.NewAccountant(counter, 16, 1)
	if newError != nil {
		testingInstance.Fatalf("NewAccountant: %v", newError)
	}
	file := tokens.FileRef{AbsolutePath: path, RelativePath: "cached.txt"}

	first, firstError := accountant.FileTokens(file)
	if firstError != nil {
		testingInstance.Fatalf("FileTokens: %v", firstError)
	}
	if first.Tokens != 2 {
		testingInstance.Fatalf("Tokens = %d, want 2", first.Tokens)
	}
	if _, secondError := accountant.FileTokens(file); secondError != nil {
		testingInstance.Fatalf("FileTokens: %v", secondError)
	}
	if counter.callCount() != 1 {
		testingInstance.Errorf("counter calls = %d, want 1 (second read served from cache)", counter.callCount())
	}

	// A different size/mtime signature invalidates the entry.
	if writeError := os.WriteFile(path, []byte("alpha beta gamma"), 0o644); writeError != nil {
		testingInstance.Fatalf("rewrite: %v", writeError)
	}
	futureTime := time.Now().Add(2 * time.Second)
	if touchError := os.Chtimes(path, futureTime, futureTime); touchError != nil {
		testingInstance.Fatalf("chtimes: %v", touchError)
	}
	refreshed, refreshError := accountant.FileTokens(file)
	if refreshError != nil {
		testingInstance.Fatalf("FileTokens: %v", refreshError)
	}
	if refreshed.Tokens != 3 {
		testingInstance.Errorf("Tokens after rewrite = %d, want 3", refreshed.Tokens)
	}
	if counter.callCount() != 2 {
		testingInstance.Errorf("counter calls = %d, want 2 after invalidation", counter.callCount())
	}

	accountant.Reset()
	if _, resetError := accountant.FileTokens(file); resetError != nil {
		testingInstance.Fatalf("FileTokens: %v", resetError)
	}
	if counter.callCount() != 3 {
		testingInstance.Errorf("counter calls = %d, want 3 after reset", counter.callCount())
	}
}

func TestTotalCancellation(testingInstance *testing.T) {
	directory := testingInstance.TempDir()
	path := writeFixtureFile(testingInstance, directory, "text.txt", []byte("words"))

	accountant, newError := tokens.NewAccountant(&countingWordCounter{}, 16, 1)
	if newError != nil {
		testingInstance.Fatalf("NewAccountant: %v", newError)
	}

	cancelledContext, cancelFunction := context.WithCancel(context.Background())
	cancelFunction()

	files := []tokens.FileRef{{AbsolutePath: path, RelativePath: "text.txt"}}
	if _, _, totalError := accountant.Total(cancelledContext, files, nil); !errors.Is(totalError, context.Canceled) {
		testingInstance.Errorf("Total error = %v, want context.Canceled", totalError)
	}
}
