package cache

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"already normal", "What is force majeure?", "What is force majeure?"},
		{"surrounding space", "  hello  ", "hello"},
		{"internal runs", "a \t b\n\nc", "a b c"},
		{"empty", "   ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestKey(t *testing.T) {
	base := Key("What is force majeure?")

	assert.True(t, strings.HasPrefix(base, KeyPrefix))
	assert.Len(t, base, len(KeyPrefix)+32)
	assert.Equal(t, base, Key("  What   is force\tmajeure? "), "whitespace must not change the key")
	assert.NotEqual(t, base, Key("what is force majeure?"), "keys are case sensitive")
	assert.NotEqual(t, base, Key("What is force majeure"))
}
