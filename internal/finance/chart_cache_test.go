package finance

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChartCache(t *testing.T) {
	now := time.Date(2024, 1, 2, 12, 0, 0, 0, time.UTC)
	c := NewChartCache(time.Minute)
	c.now = func() time.Time { return now }

	_, ok := c.Get("run")
	assert.False(t, ok)

	c.Set("run", []byte{1, 2, 3})
	img, ok := c.Get("run")
	require.True(t, ok)
	assert.Equal(t, []byte{1, 2, 3}, img)

	img[0] = 9
	again, _ := c.Get("run")
	assert.Equal(t, byte(1), again[0], "callers get a copy")

	now = now.Add(time.Minute)
	_, ok = c.Get("run")
	assert.False(t, ok, "entry expires at ttl")
}

func TestChartCache_GetOrRender(t *testing.T) {
	c := NewChartCache(0)
	renders := 0
	render := func() ([]byte, error) {
		renders++
		return []byte("png"), nil
	}
	for i := 0; i < 3; i++ {
		img, err := c.GetOrRender("k", render)
		require.NoError(t, err)
		assert.Equal(t, []byte("png"), img)
	}
	assert.Equal(t, 1, renders)

	_, err := c.GetOrRender("bad", func() ([]byte, error) { return nil, errors.New("render failed") })
	assert.EqualError(t, err, "render failed")
	_, ok := c.Get("bad")
	assert.False(t, ok, "failures are not cached")
}
