// Package decoder turns tagged message bodies into structured values.
//
// The agent cannot decode some payload formats in the target process and
// ships them as "<tag>:<base64>" strings instead. A Registry maps each tag to a
// Decoder; strings whose prefix is not a registered tag are not tagged and are
// used as-is. New formats are added by registering a Decoder, without touching
// the correlation code.
package decoder

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

var (
	// ErrDecode is the root of every decoding failure.
	ErrDecode = errors.New("decode failed")
	// ErrDecodeTimeout is returned when a decoder does not answer in time.
	ErrDecodeTimeout = fmt.Errorf("%w: timed out", ErrDecode)
	// ErrUnknownTag is returned when no decoder is registered for a tag.
	ErrUnknownTag = fmt.Errorf("%w: unknown tag", ErrDecode)
)

// Decoder decodes raw bytes of the format identified by tag.
type Decoder interface {
	Decode(ctx context.Context, tag string, raw []byte) (any, error)
}

// Func adapts a plain function to the Decoder interface.
type Func func(ctx context.Context, tag string, raw []byte) (any, error)

// Decode calls f.
func (f Func) Decode(ctx context.Context, tag string, raw []byte) (any, error) {
	return f(ctx, tag, raw)
}

// Registry maps payload tags to decoders.
type Registry struct {
	decoders map[string]Decoder
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{decoders: make(map[string]Decoder)}
}

// Register installs d for tag, replacing any previous decoder.
func (r *Registry) Register(tag string, d Decoder) {
	r.decoders[tag] = d
}

// Tags returns the registered tags in sorted order.
func (r *Registry) Tags() []string {
	tags := make([]string, 0, len(r.decoders))
	for tag := range r.decoders {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// Split reports whether s is a tagged payload for a registered tag and returns
// the tag and the base64 blob.
func (r *Registry) Split(s string) (tag, blob string, ok bool) {
	tag, rest, found := strings.Cut(s, ":")
	if !found {
		return "", "", false
	}
	if _, registered := r.decoders[tag]; !registered {
		return "", "", false
	}
	// Only the first segment after the tag carries data.
	blob, _, _ = strings.Cut(rest, ":")
	return tag, strings.TrimSpace(blob), true
}

// Decode decodes a tagged payload string.
func (r *Registry) Decode(ctx context.Context, s string) (any, error) {
	tag, blob, ok := r.Split(s)
	if !ok {
		prefix, _, _ := strings.Cut(s, ":")
		return nil, fmt.Errorf("%w: %q", ErrUnknownTag, prefix)
	}

	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: invalid base64: %w", ErrDecode, tag, err)
	}

	value, err := r.decoders[tag].Decode(ctx, tag, raw)
	if err != nil {
		if errors.Is(err, ErrDecode) {
			return nil, fmt.Errorf("%s: %w", tag, err)
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrDecode, tag, err)
	}
	return value, nil
}

// timeoutDecoder bounds the time spent in the wrapped decoder.
type timeoutDecoder struct {
	next    Decoder
	timeout time.Duration
}

// WithTimeout wraps d so that Decode returns ErrDecodeTimeout once timeout has
// elapsed, even if d ignores its context. A non-positive timeout returns d.
func WithTimeout(d Decoder, timeout time.Duration) Decoder {
	if timeout <= 0 {
		return d
	}
	return &timeoutDecoder{next: d, timeout: timeout}
}

func (d *timeoutDecoder) Decode(ctx context.Context, tag string, raw []byte) (any, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	type result struct {
		value any
		err   error
	}
	done := make(chan result, 1)
	go func() {
		value, err := d.next.Decode(ctx, tag, raw)
		done <- result{value: value, err: err}
	}()

	select {
	case res := <-done:
		return res.value, res.err
	case <-ctx.Done():
		return nil, fmt.Errorf("%w after %s", ErrDecodeTimeout, d.timeout)
	}
}
