package storage

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutAvatarRoundTrip(t *testing.T) {
	ctx := context.Background()
	backend := NewMemory("test")
	s := NewStorage(backend, "/uploads/")

	url, err := s.PutAvatar(ctx, "user-1", strings.NewReader("png-bytes"), 9, "image/png")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "/uploads/avatars/user-1/"))
	assert.True(t, strings.HasSuffix(url, ".png"))

	key, ok := s.KeyFromURL(url)
	require.True(t, ok)

	rc, err := s.Get(ctx, key)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))

	require.NoError(t, s.DeleteURL(ctx, url))
	assert.Equal(t, 0, backend.Len())

	_, err = s.Get(ctx, key)
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestPutAvatarRejectsNonImages(t *testing.T) {
	s := NewStorage(NewMemory("test"), "/uploads")
	_, err := s.PutAvatar(context.Background(), "u", strings.NewReader("x"), 1, "application/pdf")
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestKeyFromURL(t *testing.T) {
	s := NewStorage(NewMemory("test"), "https://cdn.example.com/uploads")

	tests := []struct {
		url  string
		key  string
		want bool
	}{
		{"https://cdn.example.com/uploads/avatars/a/b.png", "avatars/a/b.png", true},
		{"https://elsewhere.com/uploads/avatars/a/b.png", "", false},
		{"https://cdn.example.com/uploads/", "", false},
		{"https://cdn.example.com/uploads/../secret", "", false},
	}
	for _, tt := range tests {
		key, ok := s.KeyFromURL(tt.url)
		assert.Equal(t, tt.want, ok, tt.url)
		assert.Equal(t, tt.key, key, tt.url)
	}
}

func TestDeleteURLIgnoresForeignURLs(t *testing.T) {
	backend := NewMemory("test")
	s := NewStorage(backend, "/uploads")
	require.NoError(t, backend.Put(context.Background(), "avatars/x.png", strings.NewReader("x"), 1, "image/png"))

	require.NoError(t, s.DeleteURL(context.Background(), "https://gravatar.com/x.png"))
	assert.Equal(t, 1, backend.Len())
}
