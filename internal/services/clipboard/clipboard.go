// Package clipboard routes rendered documents to the system clipboard.
package clipboard

import (
	"github.com/atotto/clipboard"
)

// Sink receives a rendered document for delivery to the system clipboard.
type Sink interface {
	Write(document string) error
}

// Service implements Sink using github.com/atotto/clipboard.
type Service struct{}

// NewService constructs a clipboard-backed Sink.
func NewService() *Service {
	return &Service{}
}

// Write places the document on the system clipboard, replacing any previous
// contents.
func (service *Service) Write(document string) error {
	return clipboard.WriteAll(document)
}

var _ Sink = (*Service)(nil)
