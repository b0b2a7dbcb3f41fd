package storage

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore("http://localhost/objects")

	_, err := s.PresignGet(ctx, "repairs/r1/a.jpg", time.Minute)
	assert.Error(t, err)

	require.NoError(t, s.Put(ctx, "repairs/r1/a.jpg", strings.NewReader("jpeg"), 4, "image/jpeg"))
	data, ct, ok := s.Get("repairs/r1/a.jpg")
	require.True(t, ok)
	assert.Equal(t, "jpeg", string(data))
	assert.Equal(t, "image/jpeg", ct)

	url, err := s.PresignGet(ctx, "repairs/r1/a.jpg", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost/objects/repairs/r1/a.jpg?expires=60", url)

	require.NoError(t, s.Delete(ctx, "repairs/r1/a.jpg"))
	_, _, ok = s.Get("repairs/r1/a.jpg")
	assert.False(t, ok)
}
