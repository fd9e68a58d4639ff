package fallback

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSafeInt(t *testing.T) {
	tests := []struct {
		name  string
		value interface{}
		want  int
	}{
		{name: "float from json", value: float64(15), want: 15},
		{name: "json number", value: json.Number("42"), want: 42},
		{name: "numeric string", value: " 8 ", want: 8},
		{name: "negative falls back", value: -3, want: 5},
		{name: "zero falls back", value: 0, want: 5},
		{name: "garbage falls back", value: "abc", want: 5},
		{name: "nil falls back", value: nil, want: 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SafeInt(tt.value, 5))
		})
	}
}

func TestClampInt(t *testing.T) {
	assert.Equal(t, 1, ClampInt(-10, 1, 60))
	assert.Equal(t, 60, ClampInt(90, 1, 60))
	assert.Equal(t, 15, ClampInt(15, 1, 60))
}

func TestSafeAspectRatio(t *testing.T) {
	allowed := []string{"16:9", "9:16", "1:1"}

	assert.Equal(t, "9:16", SafeAspectRatio("9:16", allowed))
	assert.Equal(t, "16:9", SafeAspectRatio("4:3", allowed))
	assert.Equal(t, "16:9", SafeAspectRatio(nil, allowed))
}

func TestSafeString(t *testing.T) {
	assert.Equal(t, "x", SafeString("  x ", "y"))
	assert.Equal(t, "y", SafeString("   ", "y"))
	assert.Equal(t, "y", SafeString(12, "y"))
}
