package decode_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/pickctx/pickctx/internal/decode"
)

func TestBytesDecodingChain(testingInstance *testing.T) {
	testCases := []struct {
		name         string
		content      []byte
		expectText   string
		expectCoding string
	}{
		{
			name:         "plain utf-8",
			content:      []byte("héllo wörld\n"),
			expectText:   "héllo wörld\n",
			expectCoding: decode.EncodingUTF8,
		},
		{
			name:         "empty content",
			content:      nil,
			expectText:   "",
			expectCoding: decode.EncodingUTF8,
		},
		{
			name:         "utf-8 with byte order mark",
			content:      []byte{0xEF, 0xBB, 0xBF, 'o', 'k'},
			expectText:   "ok",
			expectCoding: decode.EncodingUTF8,
		},
		{
			name:         "utf-16 little endian",
			content:      []byte{0xFF, 0xFE, 'h', 0x00, 'i', 0x00},
			expectText:   "hi",
			expectCoding: decode.EncodingUTF16LE,
		},
		{
			name:         "utf-16 big endian",
			content:      []byte{0xFE, 0xFF, 0x00, 'h', 0x00, 'i'},
			expectText:   "hi",
			expectCoding: decode.EncodingUTF16BE,
		},
		{
			name:         "euc-kr hangul",
			content:      []byte{0xB0, 0xA1},
			expectText:   "가",
			expectCoding: decode.EncodingEUCKR,
		},
		{
			name:         "windows-1251 tail byte",
			content:      []byte{'h', 'i', 0xFF},
			expectText:   "hiя",
			expectCoding: decode.EncodingWindows1251,
		},
	}

	for _, testCase := range testCases {
		testingInstance.Run(testCase.name, func(subtestInstance *testing.T) {
			result, decodeError := decode.Bytes(testCase.content)
			if decodeError != nil {
				subtestInstance.Fatalf("Bytes: %v", decodeError)
			}
			if result.Text != testCase.expectText {
				subtestInstance.Errorf("Text = %q, want %q", result.Text, testCase.expectText)
			}
			if result.Encoding != testCase.expectCoding {
				subtestInstance.Errorf("Encoding = %q, want %q", result.Encoding, testCase.expectCoding)
			}
		})
	}
}

func TestBytesRejectsBinary(testingInstance *testing.T) {
	content := []byte{'E', 'L', 'F', 0x00, 0x01, 0x02}
	if _, decodeError := decode.Bytes(content); !errors.Is(decodeError, decode.ErrBinary) {
		testingInstance.Errorf("Bytes error = %v, want ErrBinary", decodeError)
	}
}

func TestBytesAllowsNULInUTF16(testingInstance *testing.T) {
	// UTF-16 text is full of NUL bytes; the BOM check must run before the
	// binary sniff.
	content := []byte{0xFF, 0xFE, 'o', 0x00, 'k', 0x00}
	result, decodeError := decode.Bytes(content)
	if decodeError != nil {
		testingInstance.Fatalf("Bytes: %v", decodeError)
	}
	if result.Text != "ok" {
		testingInstance.Errorf("Text = %q, want %q", result.Text, "ok")
	}
}

func TestIsBinaryExtension(testingInstance *testing.T) {
	testCases := []struct {
		fileName string
		want     bool
	}{
		{fileName: "photo.PNG", want: true},
		{fileName: "archive.zip", want: true},
		{fileName: "doc.pdf", want: true},
		{fileName: "main.go", want: false},
		{fileName: "notes.txt", want: false},
		{fileName: "Makefile", want: false},
	}
	for _, testCase := range testCases {
		if got := decode.IsBinaryExtension(testCase.fileName); got != testCase.want {
			testingInstance.Errorf("IsBinaryExtension(%q) = %v, want %v", testCase.fileName, got, testCase.want)
		}
	}
}

func TestFileBinaryExtensionFastPath(testingInstance *testing.T) {
	directoryPath := testingInstance.TempDir()

	// Extension wins even over perfectly decodable content.
	textyBinaryPath := filepath.Join(directoryPath, "fake.png")
	if writeError := os.WriteFile(textyBinaryPath, []byte("plain text"), 0o644); writeError != nil {
		testingInstance.Fatalf("write: %v", writeError)
	}
	if _, decodeError := decode.File(textyBinaryPath); !errors.Is(decodeError, decode.ErrBinary) {
		testingInstance.Errorf("File error = %v, want ErrBinary", decodeError)
	}

	// Empty files stay readable regardless of extension.
	emptyBinaryPath := filepath.Join(directoryPath, "empty.png")
	if writeError := os.WriteFile(emptyBinaryPath, nil, 0o644); writeError != nil {
		testingInstance.Fatalf("write: %v", writeError)
	}
	result, decodeError := decode.File(emptyBinaryPath)
	if decodeError != nil {
		testingInstance.Fatalf("File: %v", decodeError)
	}
	if result.Text != "" {
		testingInstance.Errorf("Text = %q, want empty", result.Text)
	}
}

func TestFile(testingInstance *testing.T) {
	filePath := filepath.Join(testingInstance.TempDir(), "sample.txt")
	if writeError := os.WriteFile(filePath, []byte("content\n"), 0o644); writeError != nil {
		testingInstance.Fatalf("write: %v", writeError)
	}

	result, decodeError := decode.File(filePath)
	if decodeError != nil {
		testingInstance.Fatalf("File: %v", decodeError)
	}
	if result.Text != "content\n" {
		testingInstance.Errorf("Text = %q, want %q", result.Text, "content\n")
	}

	if _, missingError := decode.File(filepath.Join(testingInstance.TempDir(), "missing.txt")); missingError == nil {
		testingInstance.Error("expected an error for a missing file")
	}
}
