package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewCanonicalID(t *testing.T) {
	id := NewCanonicalID()
	assert.True(t, IsCanonicalID(id))

	// Two IDs should never collide
	assert.NotEqual(t, id, NewCanonicalID())
}

func TestIsCanonicalID(t *testing.T) {
	tests := []struct {
		name string
		id   string
		want bool
	}{
		{"valid uuid", "0c4aabae-5ec1-4de3-9a50-d2a0dbf9f06e", true},
		{"uppercase uuid", "0C4AABAE-5EC1-4DE3-9A50-D2A0DBF9F06E", true},
		{"google books volume id", "zyTCAlFPjgYC", false},
		{"open library key", "OL7353617M", false},
		{"isbn", "9780553293357", false},
		{"empty", "", false},
		{"uuid without hyphens", "0c4aabae5ec14de39a50d2a0dbf9f06e", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsCanonicalID(tt.id))
		})
	}
}

func TestNormalizeISBN(t *testing.T) {
	assert.Equal(t, "9780553293357", NormalizeISBN("978-0-553-29335-7"))
	assert.Equal(t, "0553293354", NormalizeISBN("0 553 29335 4"))
	assert.Equal(t, "9780553293357", NormalizeISBN("9780553293357"))
}
