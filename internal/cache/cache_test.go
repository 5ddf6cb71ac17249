package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCache_SetGet(t *testing.T) {
	c := New(time.Hour)
	defer c.Stop()

	c.Set("k", "v", time.Minute)
	v, ok := c.Get("k")
	require.True(t, ok)
	require.Equal(t, "v", v)

	_, ok = c.Get("missing")
	require.False(t, ok)
}

func TestCache_NilValueIsAHit(t *testing.T) {
	c := New(time.Hour)
	defer c.Stop()

	c.Set("negative", nil, time.Minute)
	v, ok := c.Get("negative")
	require.True(t, ok)
	require.Nil(t, v)
}

func TestCache_Expiry(t *testing.T) {
	c := New(time.Hour)
	defer c.Stop()

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Set("k", 1, time.Minute)
	now = now.Add(2 * time.Minute)

	_, ok := c.Get("k")
	require.False(t, ok)
	require.Equal(t, 1, c.Len())

	c.cleanup()
	require.Equal(t, 0, c.Len())
}

func TestCache_StopTwice(t *testing.T) {
	c := New(time.Millisecond)
	c.Stop()
	c.Stop()
}

func TestGenerateKey(t *testing.T) {
	require.Equal(t, GenerateKey("Frieren"), GenerateKey(" frieren "))
	require.NotEqual(t, GenerateKey("ab", "c"), GenerateKey("a", "bc"))
}
