package output

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/mrzor/xpcspy/internal/correlator"
	"github.com/mrzor/xpcspy/internal/timesync"
)

var rule = strings.Repeat("-", 60)

// TextFormatter prints each record as a block:
//
//	(blank line)
//	------------------------------------------------------------
//	2023-11-14 22:13:20.123000      (only with timestamps enabled)
//	<symbol>
//	<connection>
//	<message>
//	------------------------------------------------------------
//	(blank line)
type TextFormatter struct {
	w         *bufio.Writer
	converter *timesync.Converter
	timestamp bool
}

// NewTextFormatter writes to w. converter is only used when timestamp is set.
func NewTextFormatter(w io.Writer, converter *timesync.Converter, timestamp bool) *TextFormatter {
	return &TextFormatter{
		w:         bufio.NewWriter(w),
		converter: converter,
		timestamp: timestamp,
	}
}

// HandleRecord prints rec and flushes.
func (f *TextFormatter) HandleRecord(_ context.Context, rec *correlator.Record) error {
	fmt.Fprintf(f.w, "\n%s\n", rule)
	if f.timestamp && f.converter != nil {
		fmt.Fprintln(f.w, f.converter.Render(rec.Timestamp))
	}

	var conn, msg any
	if rec.Data != nil {
		conn, msg = rec.Data.Conn, rec.Data.Message
	}
	fmt.Fprintf(f.w, "%s\n%s\n%s\n", rec.Symbol, renderValue(conn), renderValue(msg))
	fmt.Fprintf(f.w, "%s\n\n", rule)

	if err := f.w.Flush(); err != nil {
		return fmt.Errorf("failed to write text output: %w", err)
	}
	return nil
}
