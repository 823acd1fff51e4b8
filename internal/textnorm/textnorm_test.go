package textnorm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lowercases and collapses", "  Hello   WORLD  ", "hello world"},
		{"punctuation becomes a boundary", "wifi, down. again!", "wifi down again"},
		{"straight apostrophe folds away", "I don't understand", "i dont understand"},
		{"curly apostrophe folds away", "I don’t understand", "i dont understand"},
		{"digits kept", "error 404 on page 2", "error 404 on page 2"},
		{"empty", "", ""},
		{"only punctuation", "?!...", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestNormalizeLoose(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"keeps signal punctuation", "Can you help me?!", "can you help me?!"},
		{"maps curly quotes", "it’s “broken”", "it's broken"},
		{"collapses whitespace", "hi    there", "hi there"},
		{"drops emoji", "help 🙂 please", "help please"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeLoose(tt.in))
		})
	}
}

func TestContainsAny(t *testing.T) {
	assert.True(t, ContainsAny("they want a gift card now", []string{"wire transfer", "gift card"}))
	assert.False(t, ContainsAny("my printer is offline", []string{"gift card"}))
	assert.False(t, ContainsAny("anything", nil))
	// Empty phrases never match.
	assert.False(t, ContainsAny("anything", []string{""}))
}
