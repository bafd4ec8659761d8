package render

import (
	"encoding/json"
	"io"

	"github.com/pickctx/pickctx/internal/services/stream"
)

// jsonStreamRenderer writes every event as one JSON object per line, in
// arrival order. Machine consumers get the full stream, progress and warnings
// included; nothing is buffered.
type jsonStreamRenderer struct {
	encoder *json.Encoder
}

// NewJSONStreamRenderer returns the JSON lines renderer writing to stdout.
func NewJSONStreamRenderer(stdout io.Writer) StreamRenderer {
	return &jsonStreamRenderer{encoder: json.NewEncoder(stdout)}
}

func (renderer *jsonStreamRenderer) Handle(event stream.Event) error {
	return renderer.encoder.Encode(event)
}

func (renderer *jsonStreamRenderer) Flush() error {
	return nil
}
