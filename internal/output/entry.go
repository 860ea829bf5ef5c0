package output

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/mrzor/xpcspy/internal/conninfo"
	"github.com/mrzor/xpcspy/internal/correlator"
	"github.com/mrzor/xpcspy/internal/timesync"
)

// Entry is the serializable form of one record.
type Entry struct {
	ID                string `json:"id" yaml:"id"`
	Symbol            string `json:"symbol" yaml:"symbol"`
	Timestamp         int64  `json:"timestamp" yaml:"timestamp"`
	RenderedTimestamp string `json:"rendered_timestamp,omitempty" yaml:"rendered_timestamp,omitempty"`
	Connection        any    `json:"connection" yaml:"connection"`
	Message           any    `json:"message" yaml:"message"`
	// Incomplete holds the sentinel when the message body is synthetic.
	Incomplete string `json:"incomplete,omitempty" yaml:"incomplete,omitempty"`
	Service    string `json:"service,omitempty" yaml:"service,omitempty"`
	PID        *int   `json:"pid,omitempty" yaml:"pid,omitempty"`
}

// Builder turns records into entries.
type Builder struct {
	resolver  *conninfo.Resolver
	converter *timesync.Converter
	timestamp bool
	newID     func() string
}

// NewBuilder creates a builder. When timestamp is set, entries carry the
// wall-clock rendering of their timestamp. resolver may be nil.
func NewBuilder(resolver *conninfo.Resolver, converter *timesync.Converter, timestamp bool) *Builder {
	return &Builder{
		resolver:  resolver,
		converter: converter,
		timestamp: timestamp,
		newID:     uuid.NewString,
	}
}

// Build returns the entry for rec.
func (b *Builder) Build(rec *correlator.Record) *Entry {
	e := &Entry{
		ID:        b.newID(),
		Symbol:    rec.Symbol,
		Timestamp: rec.Timestamp,
	}
	if b.timestamp && b.converter != nil {
		e.RenderedTimestamp = b.converter.Render(rec.Timestamp)
	}

	if rec.Data != nil {
		e.Connection = rec.Data.Conn
		e.Message = rec.Data.Message
		if s, ok := rec.Data.Sentinel(); ok {
			e.Message = nil
			e.Incomplete = string(s)
		}
		if b.resolver != nil {
			if info := b.resolver.Lookup(rec.Data.Conn); info != nil {
				e.Service = info.Service
				if info.PID >= 0 {
					pid := info.PID
					e.PID = &pid
				}
			}
		}
	}
	return e
}

// renderValue renders a connection or message body for humans: strings as
// they are, structured values as 2-space indented JSON.
func renderValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "<nil>"
	case string:
		return val
	case correlator.Sentinel:
		return string(val)
	}

	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(out)
}
