package llmjson

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractObject(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "bare object", in: `{"a": 1}`, want: `{"a": 1}`},
		{name: "json fence", in: "```json\n{\"a\": 1}\n```", want: `{"a": 1}`},
		{name: "plain fence", in: "```\n{\"a\": 1}\n```", want: `{"a": 1}`},
		{
			name: "surrounding prose",
			in:   "Here is the data you asked for:\n{\"total\": 42}\nLet me know if you need more.",
			want: `{"total": 42}`,
		},
		{name: "no object", in: "I could not find any information.", want: ""},
		{name: "nested braces", in: `{"a": {"b": 2}}`, want: `{"a": {"b": 2}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractObject(tt.in))
		})
	}
}

func TestExtractArray(t *testing.T) {
	assert.Equal(t, `[{"title": "x"}]`, ExtractArray("```json\n[{\"title\": \"x\"}]\n```"))
	assert.Equal(t, `[1, 2]`, ExtractArray("the results: [1, 2] done"))
	assert.Equal(t, "", ExtractArray("no list here"))
}

func TestCoerceInt(t *testing.T) {
	tests := []struct {
		name    string
		in      any
		want    int
		wantErr bool
	}{
		{name: "float64", in: float64(12345), want: 12345},
		{name: "int", in: 7, want: 7},
		{name: "string", in: "250", want: 250},
		{name: "string with separators", in: "12,345", want: 12345},
		{name: "empty string", in: "", want: 0},
		{name: "nil", in: nil, want: 0},
		{name: "garbage string", in: "about fifty", wantErr: true},
		{name: "bool", in: true, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CoerceInt(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
