package tokenizer

import (
	"fmt"
	"path/filepath"

	hf "github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/pretrained"
)

const loadTokenizerFileErrorFormat = "load tokenizer definition %s: %w"

// huggingFaceCounter counts with a tokenizer loaded from a local
// tokenizer.json definition. Nothing is ever fetched from the network; the
// file must already exist on disk.
type huggingFaceCounter struct {
	backing *hf.Tokenizer
	name    string
}

func newHuggingFaceCounter(tokenizerFilePath string) (*huggingFaceCounter, error) {
	backing, loadError := pretrained.FromFile(tokenizerFilePath)
	if loadError != nil {
		return nil, fmt.Errorf(loadTokenizerFileErrorFormat, tokenizerFilePath, loadError)
	}
	return &huggingFaceCounter{
		backing: backing,
		name:    filepath.Base(tokenizerFilePath),
	}, nil
}

func (counter *huggingFaceCounter) Name() string {
	return counter.name
}

func (counter *huggingFaceCounter) CountString(input string) (int, error) {
	if input == "" {
		return 0, nil
	}
	encoded, encodeError := counter.backing.EncodeSingle(input)
	if encodeError != nil {
		return 0, encodeError
	}
	return len(encoded.Tokens), nil
}
