package main

import (
	"testing"
	"time"

	"github.com/mrzor/xpcspy/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupDecoders(t *testing.T) {
	tests := []struct {
		name     string
		command  string
		wantTags []string
	}{
		{name: "plist only without a command", wantTags: []string{"bplist00"}},
		{name: "command takes the configured tags", command: "plutil -convert json -o - -", wantTags: []string{"bplist00", "bplist17", "custom"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			registry, err := setupDecoders(&config.EnvConfig{
				DecoderCommand: tt.command,
				DecoderTags:    []string{"bplist17", "custom"},
				DecodeTimeout:  time.Second,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.wantTags, registry.Tags())

			_, _, tagged := registry.Split("bplist17:AAAA")
			assert.Equal(t, tt.command != "", tagged, "untagged payloads pass through raw")
		})
	}
}

func TestSetupDecoders_BlankCommand(t *testing.T) {
	_, err := setupDecoders(&config.EnvConfig{DecoderCommand: "   ", DecoderTags: []string{"bplist17"}})
	assert.Error(t, err)
}
