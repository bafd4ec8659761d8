// Package decode turns raw file bytes into text. UTF-8 and BOM-marked UTF-16
// are recognized first; remaining content falls through a short chain of
// common legacy encodings, ending in Windows-1252 which accepts any byte
// sequence. Content that trips the binary sniff is rejected up front.
package decode

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/unicode"

	"github.com/pickctx/pickctx/internal/utils"
)

const (
	EncodingUTF8        = "utf-8"
	EncodingUTF16LE     = "utf-16le"
	EncodingUTF16BE     = "utf-16be"
	EncodingEUCKR       = "euc-kr"
	EncodingShiftJIS    = "shift-jis"
	EncodingGB18030     = "gb18030"
	EncodingWindows1251 = "windows-1251"
	EncodingWindows1252 = "windows-1252"
	EncodingLatin1      = "iso-8859-1"

	readFileErrorFormat = "read %s: %w"
)

// ErrBinary marks content that is binary rather than text in any supported
// encoding.
var ErrBinary = errors.New("binary content")

var (
	utf8ByteOrderMark    = []byte{0xEF, 0xBB, 0xBF}
	utf16LEByteOrderMark = []byte{0xFF, 0xFE}
	utf16BEByteOrderMark = []byte{0xFE, 0xFF}
)

// fallbackEncodings are tried in order once UTF-8 and BOM detection fail. A
// decode attempt that yields a replacement rune falls through to the next
// entry; ISO-8859-1 maps all 256 bytes, so the chain always succeeds for
// non-binary content.
var fallbackEncodings = []struct {
	name     string
	encoding encoding.Encoding
}{
	{name: EncodingEUCKR, encoding: korean.EUCKR},
	{name: EncodingShiftJIS, encoding: japanese.ShiftJIS},
	{name: EncodingGB18030, encoding: simplifiedchinese.GB18030},
	{name: EncodingWindows1251, encoding: charmap.Windows1251},
	{name: EncodingWindows1252, encoding: charmap.Windows1252},
	{name: EncodingLatin1, encoding: charmap.ISO8859_1},
}

// Result is decoded text together with the encoding that produced it.
type Result struct {
	Text     string
	Encoding string
}

// Bytes decodes content. It returns ErrBinary for NUL-bearing content without
// a Unicode byte order mark.
func Bytes(content []byte) (Result, error) {
	if bomResult, decoded := decodeByteOrderMark(content); decoded {
		return bomResult, nil
	}
	if utils.IsBinary(content) {
		return Result{}, ErrBinary
	}
	if utf8.Valid(content) {
		return Result{Text: string(content), Encoding: EncodingUTF8}, nil
	}
	for _, candidate := range fallbackEncodings {
		decodedBytes, decodeError := candidate.encoding.NewDecoder().Bytes(content)
		if decodeError != nil {
			continue
		}
		if bytes.ContainsRune(decodedBytes, utf8.RuneError) {
			continue
		}
		return Result{Text: string(decodedBytes), Encoding: candidate.name}, nil
	}
	return Result{}, ErrBinary
}

// File reads and decodes the file at path. Files with a well-known binary
// extension are rejected without reading their content, except empty ones,
// which still decode to empty text.
func File(path string) (Result, error) {
	if IsBinaryExtension(path) {
		fileInfo, statError := os.Stat(path)
		if statError != nil {
			return Result{}, fmt.Errorf(readFileErrorFormat, path, statError)
		}
		if fileInfo.Size() > 0 {
			return Result{}, ErrBinary
		}
	}
	content, readError := os.ReadFile(path)
	if readError != nil {
		return Result{}, fmt.Errorf(readFileErrorFormat, path, readError)
	}
	return Bytes(content)
}

// decodeByteOrderMark handles BOM-marked content before the binary sniff:
// UTF-16 text is full of NUL bytes and must not be classified binary.
func decodeByteOrderMark(content []byte) (Result, bool) {
	switch {
	case bytes.HasPrefix(content, utf8ByteOrderMark):
		trimmed := bytes.TrimPrefix(content, utf8ByteOrderMark)
		if utf8.Valid(trimmed) {
			return Result{Text: string(trimmed), Encoding: EncodingUTF8}, true
		}
	case bytes.HasPrefix(content, utf16LEByteOrderMark):
		if decoded, decodeError := decodeUTF16(content, unicode.LittleEndian); decodeError == nil {
			return Result{Text: decoded, Encoding: EncodingUTF16LE}, true
		}
	case bytes.HasPrefix(content, utf16BEByteOrderMark):
		if decoded, decodeError := decodeUTF16(content, unicode.BigEndian); decodeError == nil {
			return Result{Text: decoded, Encoding: EncodingUTF16BE}, true
		}
	}
	return Result{}, false
}

func decodeUTF16(content []byte, endianness unicode.Endianness) (string, error) {
	decoder := unicode.UTF16(endianness, unicode.ExpectBOM).NewDecoder()
	decodedBytes, decodeError := decoder.Bytes(content)
	if decodeError != nil {
		return "", decodeError
	}
	return string(decodedBytes), nil
}
