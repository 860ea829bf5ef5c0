package jsonvalue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  any
	}{
		{name: "string", input: `"hello"`, want: "hello"},
		{name: "integer", input: `1700000000123`, want: int64(1700000000123)},
		{name: "float", input: `1.5`, want: 1.5},
		{name: "bool", input: `true`, want: true},
		{name: "null", input: `null`, want: nil},
		{
			name:  "nested",
			input: `{"a":[1,"x",{"b":false}],"c":null}`,
			want: map[string]any{
				"a": []any{int64(1), "x", map[string]any{"b": false}},
				"c": nil,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse([]byte(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParse_Invalid(t *testing.T) {
	_, err := Parse([]byte(`{"a":`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing JSON")
}
