package collector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractID(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"s_68e5d5037b4c8191b33992ce7f8feaee", "s_68e5d5037b4c8191b33992ce7f8feaee"},
		{"https://host.example.test/p/s_68e5d5037b4c8191b33992ce7f8feaee", "s_68e5d5037b4c8191b33992ce7f8feaee"},
		{"https://host.example.test/backend/project_y/post/s_ABCdef12", "s_ABCdef12"},
		{"  s_abc123  ", "s_abc123"},
	}
	for _, tt := range tests {
		got, err := ExtractID(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}

	for _, bad := range []string{"", "https://host.example.test/p/", "hello", "https://host.example.test/p/x_123"} {
		_, err := ExtractID(bad)
		assert.ErrorIs(t, err, ErrInvalidRef, bad)
	}
}

func TestNormalizeRef(t *testing.T) {
	e := Endpoint{BaseURL: "https://api.example.test/backend/post/", FeedPath: "remix_feed"}

	assert.Equal(t, "https://api.example.test/backend/post/s_abc", e.NormalizeRef("s_abc", ""))
	assert.Equal(t,
		"https://api.example.test/backend/post/s_abc/remix_feed?cursor=a%2Bb%2Fc%3D",
		e.NormalizeRef("s_abc", "a+b/c="))

	full := "https://elsewhere.example.test/item/s_abc"
	assert.Equal(t, full, e.NormalizeRef(full, ""))
	assert.Equal(t,
		"https://api.example.test/backend/post/s_abc/remix_feed?cursor=c1",
		e.NormalizeRef(full, "c1"), "a post URL with a cursor pages through its id")
	assert.Equal(t,
		"https://elsewhere.example.test/feed?cursor=c1&page=2",
		e.NormalizeRef("https://elsewhere.example.test/feed?page=2", "c1"))
	assert.Equal(t, "not-an-id", e.NormalizeRef("not-an-id", ""))

	noFeed := Endpoint{BaseURL: "https://api.example.test/post"}
	assert.Equal(t, "https://api.example.test/post/s_1/remix_feed?cursor=x", noFeed.NormalizeRef("s_1", "x"))
}
