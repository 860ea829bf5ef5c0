package transport

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fsnotify/fsnotify"
)

// FollowSource reads a capture file and keeps waiting for appended lines
// after reaching its end. It never returns io.EOF; cancel ctx to stop.
type FollowSource struct {
	file    *os.File
	reader  *bufio.Reader
	watcher *fsnotify.Watcher
	partial []byte
}

// NewFollowSource opens path and starts watching it for writes.
func NewFollowSource(path string) (*FollowSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		f.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", path, err)
	}

	return &FollowSource{
		file:    f,
		reader:  bufio.NewReaderSize(f, 64*1024),
		watcher: watcher,
	}, nil
}

// Next returns the next complete, non-empty line, waiting for the file to grow
// when needed.
func (s *FollowSource) Next(ctx context.Context) ([]byte, error) {
	for {
		chunk, err := s.reader.ReadBytes('\n')
		s.partial = append(s.partial, chunk...)
		if len(s.partial) > MaxLineSize {
			s.partial = nil
			return nil, fmt.Errorf("failed to read input: line exceeds %d bytes", MaxLineSize)
		}

		if err == nil {
			line := bytes.TrimSpace(s.partial)
			s.partial = nil
			if len(line) == 0 {
				continue
			}
			return line, nil
		}
		if !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("failed to read input: %w", err)
		}

		if err := s.wait(ctx); err != nil {
			return nil, err
		}
	}
}

// wait blocks until the file is written to again.
func (s *FollowSource) wait(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-s.watcher.Events:
			if !ok {
				return io.EOF
			}
			if event.Has(fsnotify.Write) {
				return nil
			}
			if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				return fmt.Errorf("input %s was removed", event.Name)
			}
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return io.EOF
			}
			return fmt.Errorf("failed to watch input: %w", err)
		}
	}
}

// Close stops watching and closes the file.
func (s *FollowSource) Close() error {
	return errors.Join(s.watcher.Close(), s.file.Close())
}
