package decoder

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"howett.net/plist"
)

func echoDecoder() Decoder {
	return Func(func(_ context.Context, tag string, raw []byte) (any, error) {
		return tag + "=" + string(raw), nil
	})
}

func tagged(tag string, raw []byte) string {
	return tag + ":" + base64.StdEncoding.EncodeToString(raw)
}

func TestRegistry_Split(t *testing.T) {
	r := NewRegistry()
	r.Register("bplist17", echoDecoder())

	tests := []struct {
		name     string
		input    string
		wantTag  string
		wantBlob string
		wantOK   bool
	}{
		{name: "registered tag", input: "bplist17:AAEC", wantTag: "bplist17", wantBlob: "AAEC", wantOK: true},
		{name: "extra segments ignored", input: "bplist17:AAEC:trailer", wantTag: "bplist17", wantBlob: "AAEC", wantOK: true},
		{name: "unregistered tag", input: "http://example.com", wantOK: false},
		{name: "no colon", input: "plain message", wantOK: false},
		{name: "tag only in the middle", input: "x bplist17:AAEC", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tag, blob, ok := r.Split(tt.input)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantTag, tag)
			assert.Equal(t, tt.wantBlob, blob)
		})
	}
}

func TestRegistry_Tags(t *testing.T) {
	r := NewRegistry()
	r.Register("zz", echoDecoder())
	r.Register("bplist17", echoDecoder())

	assert.Equal(t, []string{"bplist17", "zz"}, r.Tags())
}

func TestRegistry_Decode(t *testing.T) {
	r := NewRegistry()
	r.Register("bplist17", echoDecoder())

	got, err := r.Decode(context.Background(), tagged("bplist17", []byte("payload")))
	require.NoError(t, err)
	assert.Equal(t, "bplist17=payload", got)
}

func TestRegistry_DecodeInvalidBase64(t *testing.T) {
	r := NewRegistry()
	r.Register("bplist17", echoDecoder())

	_, err := r.Decode(context.Background(), "bplist17:!!not-base64!!")
	require.ErrorIs(t, err, ErrDecode)
	assert.Contains(t, err.Error(), "invalid base64")
}

func TestRegistry_DecodeUnknownTag(t *testing.T) {
	r := NewRegistry()

	_, err := r.Decode(context.Background(), "mystery:AAAA")
	require.ErrorIs(t, err, ErrUnknownTag)
	require.ErrorIs(t, err, ErrDecode)
}

func TestRegistry_DecoderFailureIsWrapped(t *testing.T) {
	boom := errors.New("boom")
	r := NewRegistry()
	r.Register("bad", Func(func(context.Context, string, []byte) (any, error) {
		return nil, boom
	}))

	_, err := r.Decode(context.Background(), tagged("bad", []byte{1}))
	require.ErrorIs(t, err, ErrDecode)
	require.ErrorIs(t, err, boom)
}

func TestWithTimeout_HangingDecoder(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	hanging := Func(func(context.Context, string, []byte) (any, error) {
		<-release
		return "late", nil
	})

	d := WithTimeout(hanging, 20*time.Millisecond)
	start := time.Now()
	_, err := d.Decode(context.Background(), "x", nil)

	require.ErrorIs(t, err, ErrDecodeTimeout)
	require.ErrorIs(t, err, ErrDecode)
	assert.Less(t, time.Since(start), time.Second)
}

func TestWithTimeout_FastDecoder(t *testing.T) {
	d := WithTimeout(echoDecoder(), time.Second)

	got, err := d.Decode(context.Background(), "t", []byte("v"))
	require.NoError(t, err)
	assert.Equal(t, "t=v", got)
}

func TestWithTimeout_Disabled(t *testing.T) {
	inner := echoDecoder()
	assert.NotNil(t, WithTimeout(inner, 0))
	_, isWrapped := WithTimeout(inner, 0).(*timeoutDecoder)
	assert.False(t, isWrapped)
}

func TestPlistDecoder_Binary(t *testing.T) {
	raw, err := plist.Marshal(map[string]any{
		"name":  "com.apple.example",
		"count": 3,
	}, plist.BinaryFormat)
	require.NoError(t, err)

	got, err := PlistDecoder{}.Decode(context.Background(), "bplist00", raw)
	require.NoError(t, err)

	dict, ok := got.(map[string]any)
	require.True(t, ok, "decoded value should be a dictionary, got %T", got)
	assert.Equal(t, "com.apple.example", dict["name"])
	assert.EqualValues(t, 3, dict["count"])
}

func TestPlistDecoder_Garbage(t *testing.T) {
	_, err := PlistDecoder{}.Decode(context.Background(), "bplist17", []byte(`{ "unterminated" = `))
	require.ErrorIs(t, err, ErrDecode)
}

func TestCommandDecoder_JSONOutput(t *testing.T) {
	d, err := NewCommandDecoder("cat")
	require.NoError(t, err)

	got, err := d.Decode(context.Background(), "json", []byte(`{"k":"v"}`))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"k": "v"}, got)
}

func TestCommandDecoder_TextOutput(t *testing.T) {
	d, err := NewCommandDecoder("cat")
	require.NoError(t, err)

	got, err := d.Decode(context.Background(), "txt", []byte("  plain text \n"))
	require.NoError(t, err)
	assert.Equal(t, "plain text", got)
}

func TestCommandDecoder_Failure(t *testing.T) {
	d, err := NewCommandDecoder("false")
	require.NoError(t, err)

	_, err = d.Decode(context.Background(), "x", []byte("data"))
	require.ErrorIs(t, err, ErrDecode)
}

func TestCommandDecoder_Timeout(t *testing.T) {
	d, err := NewCommandDecoder("sleep 5")
	require.NoError(t, err)

	_, err = WithTimeout(d, 50*time.Millisecond).Decode(context.Background(), "x", nil)
	require.ErrorIs(t, err, ErrDecodeTimeout)
}

func TestNewCommandDecoder_Empty(t *testing.T) {
	_, err := NewCommandDecoder("   ")
	require.Error(t, err)
}
