// Package render materializes the pack event stream for the terminal, either
// as plain text or as JSON lines.
package render

import (
	"github.com/pickctx/pickctx/internal/services/stream"
)

// StreamRenderer consumes pack events as they arrive and materializes the
// final output in Flush once the stream has drained.
type StreamRenderer interface {
	Handle(event stream.Event) error
	Flush() error
}
