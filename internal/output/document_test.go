package output_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pickctx/pickctx/internal/output"
	"github.com/pickctx/pickctx/internal/types"
)

func TestLanguageForFile(testingInstance *testing.T) {
	testCases := []struct {
		fileName string
		want     string
	}{
		{fileName: "main.go", want: "go"},
		{fileName: "script.PY", want: "python"},
		{fileName: "notes.md", want: "markdown"},
		{fileName: "Dockerfile", want: "text"},
		{fileName: "odd.unknownext", want: "text"},
		{fileName: "no-extension", want: "text"},
	}
	for _, testCase := range testCases {
		if got := output.LanguageForFile(testCase.fileName); got != testCase.want {
			testingInstance.Errorf("LanguageForFile(%q) = %q, want %q", testCase.fileName, got, testCase.want)
		}
	}
}

func buildDocumentFixture(testingInstance *testing.T) (string, []types.SelectedItem) {
	testingInstance.Helper()
	rootDirectory := testingInstance.TempDir()
	if makeError := os.MkdirAll(filepath.Join(rootDirectory, "src"), 0o755); makeError != nil {
		testingInstance.Fatalf("mkdir: %v", makeError)
	}
	files := map[string][]byte{
		"README.md":   []byte("hello\n"),
		"src/main.go": []byte("package main\n"),
		"data.bin":    {0x00, 0x01, 0x02},
	}
	for relativePath, content := range files {
		fullPath := filepath.Join(rootDirectory, filepath.FromSlash(relativePath))
		if writeError := os.WriteFile(fullPath, content, 0o644); writeError != nil {
			testingInstance.Fatalf("write %s: %v", relativePath, writeError)
		}
	}

	selectedItems := []types.SelectedItem{
		{AbsolutePath: filepath.Join(rootDirectory, "src"), RelativePath: "src", IsDirectory: true},
		{AbsolutePath: filepath.Join(rootDirectory, "src", "main.go"), RelativePath: "src/main.go"},
		{AbsolutePath: filepath.Join(rootDirectory, "README.md"), RelativePath: "README.md"},
		{AbsolutePath: filepath.Join(rootDirectory, "data.bin"), RelativePath: "data.bin"},
	}
	return rootDirectory, selectedItems
}

func TestBuildDocument(testingInstance *testing.T) {
	rootDirectory, selectedItems := buildDocumentFixture(testingInstance)
	rootName := filepath.Base(rootDirectory)

	document := output.BuildDocument(rootDirectory, selectedItems, false)

	expectedText := strings.Join([]string{
		"<file_map>",
		rootName + "/",
		"├── README.md",
		"├── data.bin",
		"└── src/",
		"    └── main.go",
		"</file_map>",
		"",
		"<file_contents>",
		"File: README.md",
		"```markdown",
		"hello\n",
		"```",
		"",
		"File: src/main.go",
		"```go",
		"package main\n",
		"```",
		"",
		"</file_contents>",
	}, "\n")

	if document.Text != expectedText {
		testingInstance.Errorf("document text mismatch:\n--- got ---\n%s\n--- want ---\n%s", document.Text, expectedText)
	}
	if document.TotalFiles != 3 || document.RenderedFiles != 2 {
		testingInstance.Errorf("file counts = (%d total, %d rendered), want (3, 2)", document.TotalFiles, document.RenderedFiles)
	}
	if len(document.SkippedFiles) != 1 || document.SkippedFiles[0] != "data.bin" {
		testingInstance.Errorf("SkippedFiles = %v, want [data.bin]", document.SkippedFiles)
	}
}

func TestBuildDocumentDeterministic(testingInstance *testing.T) {
	rootDirectory, selectedItems := buildDocumentFixture(testingInstance)

	first := output.BuildDocument(rootDirectory, selectedItems, false)
	second := output.BuildDocument(rootDirectory, selectedItems, false)
	if first.Text != second.Text {
		testingInstance.Error("two renderings of the same selection should be byte-identical")
	}

	// Input order must not influence the rendering.
	reversed := make([]types.SelectedItem, 0, len(selectedItems))
	for index := len(selectedItems) - 1; index >= 0; index-- {
		reversed = append(reversed, selectedItems[index])
	}
	third := output.BuildDocument(rootDirectory, reversed, false)
	if first.Text != third.Text {
		testingInstance.Error("rendering should not depend on selection input order")
	}
}

func TestBuildDocumentMapOnly(testingInstance *testing.T) {
	rootDirectory, selectedItems := buildDocumentFixture(testingInstance)

	document := output.BuildDocument(rootDirectory, selectedItems, true)

	if !strings.HasSuffix(document.Text, "</file_map>") {
		testingInstance.Errorf("map-only document should end with the map close tag, got:\n%s", document.Text)
	}
	if strings.Contains(document.Text, "<file_contents>") {
		testingInstance.Error("map-only document must not contain a contents section")
	}
	if document.RenderedFiles != 0 {
		testingInstance.Errorf("RenderedFiles = %d, want 0 for map-only", document.RenderedFiles)
	}
}

func TestBuildDocumentEmptySelection(testingInstance *testing.T) {
	rootDirectory := testingInstance.TempDir()

	document := output.BuildDocument(rootDirectory, nil, false)

	if !strings.Contains(document.Text, "// (no files or folders selected)") {
		testingInstance.Errorf("empty selection should render the placeholder line, got:\n%s", document.Text)
	}
	if !strings.Contains(document.Text, "<file_contents>\n</file_contents>") {
		testingInstance.Errorf("empty selection should render an empty contents section, got:\n%s", document.Text)
	}
}

func TestBuildDocumentSynthesizesAncestors(testingInstance *testing.T) {
	rootDirectory := testingInstance.TempDir()
	nestedDirectory := filepath.Join(rootDirectory, "a", "b")
	if makeError := os.MkdirAll(nestedDirectory, 0o755); makeError != nil {
		testingInstance.Fatalf("mkdir: %v", makeError)
	}
	filePath := filepath.Join(nestedDirectory, "c.txt")
	if writeError := os.WriteFile(filePath, []byte("deep\n"), 0o644); writeError != nil {
		testingInstance.Fatalf("write: %v", writeError)
	}

	document := output.BuildDocument(rootDirectory, []types.SelectedItem{
		{AbsolutePath: filePath, RelativePath: "a/b/c.txt"},
	}, false)

	for _, requiredLine := range []string{"└── a/", "    └── b/", "        └── c.txt"} {
		if !strings.Contains(document.Text, requiredLine) {
			testingInstance.Errorf("document missing map line %q:\n%s", requiredLine, document.Text)
		}
	}
}
