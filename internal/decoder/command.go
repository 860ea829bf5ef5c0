package decoder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/mrzor/xpcspy/internal/jsonvalue"
)

// CommandDecoder runs an external program for each payload. The raw bytes are
// written to its stdin and the tag is exported as XPCSPY_DECODE_TAG. Output that
// parses as JSON becomes a structured value, anything else is kept as text.
type CommandDecoder struct {
	Path string
	Args []string
}

// NewCommandDecoder builds a CommandDecoder from a whitespace-separated
// command line.
func NewCommandDecoder(commandLine string) (*CommandDecoder, error) {
	fields := strings.Fields(commandLine)
	if len(fields) == 0 {
		return nil, errors.New("empty decoder command")
	}
	return &CommandDecoder{Path: fields[0], Args: fields[1:]}, nil
}

// Decode runs the command; it is killed when ctx is done.
func (d *CommandDecoder) Decode(ctx context.Context, tag string, raw []byte) (any, error) {
	//nolint:gosec // The decoder command is operator configuration
	cmd := exec.CommandContext(ctx, d.Path, d.Args...)
	cmd.Stdin = bytes.NewReader(raw)
	cmd.Env = append(os.Environ(), "XPCSPY_DECODE_TAG="+tag)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %s", ErrDecodeTimeout, d.Path)
		}
		return nil, fmt.Errorf("%w: %s: %w: %s", ErrDecode, d.Path, err, strings.TrimSpace(stderr.String()))
	}

	out := bytes.TrimSpace(stdout.Bytes())
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %s produced no output", ErrDecode, d.Path)
	}
	if value, err := jsonvalue.Parse(out); err == nil {
		return value, nil
	}
	return string(out), nil
}
