package feed

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEndpoint(t *testing.T) {
	cases := []struct {
		origin string
		path   string
		want   string
	}{
		{"http://localhost:8000", "/ws", "ws://localhost:8000/ws"},
		{"https://admin.example.com", "/ws", "wss://admin.example.com/ws"},
		{"https://admin.example.com/accounts?page=2#top", "", "wss://admin.example.com/ws"},
		{"HTTPS://admin.example.com", "feed", "wss://admin.example.com/feed"},
		{"wss://admin.example.com", "/ws", "wss://admin.example.com/ws"},
	}

	for _, tc := range cases {
		t.Run(tc.origin, func(t *testing.T) {
			got, err := Endpoint(tc.origin, tc.path)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestEndpointRejectsBadOrigins(t *testing.T) {
	for _, origin := range []string{"", "ftp://example.com", "localhost:8000/ws", "://x"} {
		_, err := Endpoint(origin, "/ws")
		assert.ErrorIs(t, err, ErrInvalidOrigin, origin)
	}
}

func TestHTTPURL(t *testing.T) {
	got, err := HTTPURL("https://admin.example.com/some/page", "api/status/snapshot")
	require.NoError(t, err)
	assert.Equal(t, "https://admin.example.com/api/status/snapshot", got)

	_, err = HTTPURL("ws://admin.example.com", "/x")
	assert.ErrorIs(t, err, ErrInvalidOrigin)
}
