package output

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/mrzor/xpcspy/internal/correlator"
)

// JSONFormatter writes one JSON object per record, newline delimited.
type JSONFormatter struct {
	enc     *json.Encoder
	builder *Builder
}

// NewJSONFormatter writes to w.
func NewJSONFormatter(w io.Writer, builder *Builder) *JSONFormatter {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &JSONFormatter{enc: enc, builder: builder}
}

// HandleRecord writes rec.
func (f *JSONFormatter) HandleRecord(_ context.Context, rec *correlator.Record) error {
	if err := f.enc.Encode(f.builder.Build(rec)); err != nil {
		return fmt.Errorf("failed to write JSON output: %w", err)
	}
	return nil
}
