// Package tokenizer provides token counters for the supported language
// models: a built-in counter over tiktoken BPE encodings and a counter backed
// by a local HuggingFace tokenizer definition file.
package tokenizer

import (
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

const initializeEncodingErrorFormat = "initialize tokenizer encoding %s: %w"

// Counter estimates token counts for text content.
type Counter interface {
	Name() string
	CountString(input string) (int, error)
}

// Config captures tokenizer selection parameters provided by the CLI.
type Config struct {
	// Model names a catalog model for the built-in counter.
	Model string
	// TokenizerFile points at a local tokenizer.json definition; when set it
	// takes precedence over Model.
	TokenizerFile string
}

// NewCounter returns a Counter for the requested configuration along with the
// resolved counter name. Unknown catalog models resolve to DefaultModel;
// callers can compare the resolved name against the request to warn about the
// substitution.
func NewCounter(cfg Config) (Counter, string, error) {
	if tokenizerFile := strings.TrimSpace(cfg.TokenizerFile); tokenizerFile != "" {
		counter, newError := newHuggingFaceCounter(tokenizerFile)
		if newError != nil {
			return nil, "", newError
		}
		return counter, counter.Name(), nil
	}

	resolvedModel, _ := ResolveModel(strings.TrimSpace(cfg.Model))
	specification := modelCatalog[resolvedModel]
	encoding, encodingError := tiktoken.GetEncoding(specification.Encoding)
	if encodingError != nil {
		return nil, "", fmt.Errorf(initializeEncodingErrorFormat, specification.Encoding, encodingError)
	}
	return openAICounter{encoding: encoding, name: resolvedModel}, resolvedModel, nil
}
