package output

import (
	"context"
	"fmt"
	"io"

	"github.com/mrzor/xpcspy/internal/correlator"
	"gopkg.in/yaml.v3"
)

// YAMLFormatter writes one YAML document per record.
type YAMLFormatter struct {
	enc     *yaml.Encoder
	builder *Builder
}

// NewYAMLFormatter writes to w. Close must be called to terminate the stream.
func NewYAMLFormatter(w io.Writer, builder *Builder) *YAMLFormatter {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	return &YAMLFormatter{enc: enc, builder: builder}
}

// HandleRecord writes rec as a new document.
func (f *YAMLFormatter) HandleRecord(_ context.Context, rec *correlator.Record) error {
	if err := f.enc.Encode(f.builder.Build(rec)); err != nil {
		return fmt.Errorf("failed to write YAML output: %w", err)
	}
	return nil
}

// Close flushes the encoder.
func (f *YAMLFormatter) Close() error {
	return f.enc.Close()
}
