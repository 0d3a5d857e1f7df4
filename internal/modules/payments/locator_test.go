package payments

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLocator(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		locator, err := NewLocator()
		require.NoError(t, err)
		assert.Len(t, locator, 64)
		assert.Regexp(t, "^[0-9a-f]{64}$", locator)
		assert.False(t, seen[locator], "locator repeated")
		seen[locator] = true
	}
}

func TestEncodeOrderRef(t *testing.T) {
	tests := []struct {
		order uint64
		want  string
	}{
		{0, "0000000"},
		{1, "0000001"},
		{35, "000000Z"},
		{36, "0000010"},
		{12345, "00009IX"},
		{MaxOrder - 1, "ZZZZZZZ"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, EncodeOrderRef(tt.order), "order %d", tt.order)
	}
}

func TestReturnURLSubstitutesPlaceholders(t *testing.T) {
	got := ReturnURL("http://pay.example.com", "https://shop.example.com/done/{action}/{locator}", "abc123", "confirm")
	assert.Equal(t, "https://shop.example.com/done/confirm/abc123", got)
}

func TestReturnURLFallsBackToActionEndpoint(t *testing.T) {
	tests := []struct {
		name    string
		reverse string
	}{
		{"autorender", ReverseAutorender},
		{"relative path", "done"},
		{"empty", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ReturnURL("http://pay.example.com/", tt.reverse, "abc123", "cancel")
			assert.Equal(t, "http://pay.example.com/payments/action/abc123/cancel", got)
		})
	}
}
