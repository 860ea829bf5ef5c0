package transport

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
)

var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// OpenFile opens a capture file. Compressed captures are recognized by the
// zstd frame magic and decompressed on the fly.
func OpenFile(path string) (*ReaderSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input: %w", err)
	}

	r, err := maybeDecompress(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	return r, nil
}

// maybeDecompress wraps rc in a zstd decoder when its first bytes are a zstd
// frame header.
func maybeDecompress(rc io.ReadCloser) (*ReaderSource, error) {
	br := bufio.NewReader(rc)
	head, err := br.Peek(len(zstdMagic))
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}

	if !bytes.Equal(head, zstdMagic) {
		return NewReaderSource(readCloser{Reader: br, closer: rc}), nil
	}

	dec, err := zstd.NewReader(br)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	return NewReaderSource(readCloser{Reader: dec, closer: closerFunc(func() error {
		dec.Close()
		return rc.Close()
	})}), nil
}

type readCloser struct {
	io.Reader
	closer io.Closer
}

func (r readCloser) Close() error { return r.closer.Close() }

type closerFunc func() error

func (f closerFunc) Close() error { return f() }
