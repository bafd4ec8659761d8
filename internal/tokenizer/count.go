package tokenizer

import (
	"errors"
	"os"

	"github.com/pickctx/pickctx/internal/decode"
)

// CountResult captures the outcome of counting a file or byte slice. Counted
// is false for binary or undecodable content, which contributes zero to
// aggregates without being an error.
type CountResult struct {
	Tokens  int
	Counted bool
}

// CountBytes decodes data and estimates its token count using counter. A
// counter failure is returned as an error; undecodable content is not.
func CountBytes(counter Counter, data []byte) (CountResult, error) {
	if counter == nil {
		return CountResult{}, errors.New("nil tokenizer counter")
	}
	if len(data) == 0 {
		tokens, countError := counter.CountString("")
		if countError != nil {
			return CountResult{}, countError
		}
		return CountResult{Tokens: tokens, Counted: true}, nil
	}

	decoded, decodeError := decode.Bytes(data)
	if decodeError != nil {
		return CountResult{Counted: false}, nil
	}
	tokens, countError := counter.CountString(decoded.Text)
	if countError != nil {
		return CountResult{}, countError
	}
	return CountResult{Tokens: tokens, Counted: true}, nil
}

// CountFile reads the file at path and estimates its token count. Well-known
// binary extensions skip the read and count as zero.
func CountFile(counter Counter, path string) (CountResult, error) {
	if counter == nil {
		return CountResult{}, errors.New("nil tokenizer counter")
	}
	if decode.IsBinaryExtension(path) {
		return CountResult{Counted: false}, nil
	}
	data, readError := os.ReadFile(path)
	if readError != nil {
		return CountResult{}, readError
	}
	return CountBytes(counter, data)
}
