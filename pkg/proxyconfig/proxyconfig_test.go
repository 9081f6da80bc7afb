package proxyconfig

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZeroValueIsDisabled(t *testing.T) {
	c := New()
	assert.False(t, c.Enabled())

	u, ok := c.Snapshot()
	assert.False(t, ok)
	assert.Empty(t, u)
}

func TestSetAndSnapshot(t *testing.T) {
	c := New()
	require.Nil(t, c.Set("http://upstream:8080"))

	u, ok := c.Snapshot()
	assert.True(t, ok)
	assert.Equal(t, "http://upstream:8080", u)
	assert.True(t, c.Enabled())
}

func TestSetReplaces(t *testing.T) {
	c := New()
	require.Nil(t, c.Set("http://a"))
	require.Nil(t, c.Set("http://b"))

	u, _ := c.Snapshot()
	assert.Equal(t, "http://b", u)
}

func TestClear(t *testing.T) {
	c := New()
	require.Nil(t, c.Set("http://upstream"))
	c.Clear()

	assert.False(t, c.Enabled())
	_, ok := c.Snapshot()
	assert.False(t, ok)
}

func TestSetRejectsMalformed(t *testing.T) {
	c := New()

	for _, raw := range []string{"", "not a url", "/relative/path", "://missing-scheme", "http://"} {
		err := c.Set(raw)
		require.NotNil(t, err, "expected rejection for %q", raw)
		assert.Equal(t, "invalid", string(err.Kind))
	}

	// A failed Set must not clobber a previously valid value.
	require.Nil(t, c.Set("http://keep"))
	require.NotNil(t, c.Set("not a url"))
	u, ok := c.Snapshot()
	assert.True(t, ok)
	assert.Equal(t, "http://keep", u)
}

func TestConcurrentAccess(t *testing.T) {
	c := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = c.Set("http://upstream")
		}()
		go func() {
			defer wg.Done()
			_, _ = c.Snapshot()
		}()
	}
	wg.Wait()
}
