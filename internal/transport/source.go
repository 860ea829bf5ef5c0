package transport

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// MaxLineSize bounds a single notification. Decoded bodies of large XPC
// messages routinely exceed bufio's 64KiB default.
const MaxLineSize = 16 << 20

// Source yields one raw notification per call.
type Source interface {
	// Next returns the next non-empty line, or io.EOF once the input ends.
	Next(ctx context.Context) ([]byte, error)
	Close() error
}

// ReaderSource reads newline-delimited notifications from a reader.
type ReaderSource struct {
	scanner *bufio.Scanner
	closer  io.Closer
}

// NewReaderSource creates a source over r. If r is an io.Closer it is closed
// by Close.
func NewReaderSource(r io.Reader) *ReaderSource {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), MaxLineSize)

	s := &ReaderSource{scanner: scanner}
	if c, ok := r.(io.Closer); ok {
		s.closer = c
	}
	return s
}

// Next returns the next non-empty line. It blocks on the underlying reader and
// only checks ctx between lines.
func (s *ReaderSource) Next(ctx context.Context) ([]byte, error) {
	for s.scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		line := bytes.TrimSpace(s.scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		out := make([]byte, len(line))
		copy(out, line)
		return out, nil
	}
	if err := s.scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}
	return nil, io.EOF
}

// Close closes the underlying reader if it can be closed.
func (s *ReaderSource) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

// Open returns the source for input:
//   - "" or "-": standard input
//   - ws:// or wss:// URLs: a websocket feed
//   - anything else: a capture file, tailed when follow is set
func Open(ctx context.Context, input string, follow bool) (Source, error) {
	switch {
	case input == "" || input == "-":
		if follow {
			return nil, errors.New("--follow requires a file input")
		}
		return NewReaderSource(io.NopCloser(os.Stdin)), nil
	case strings.HasPrefix(input, "ws://"), strings.HasPrefix(input, "wss://"):
		if follow {
			return nil, errors.New("--follow requires a file input")
		}
		return DialWebSocket(ctx, input)
	case follow:
		return NewFollowSource(input)
	default:
		return OpenFile(input)
	}
}
