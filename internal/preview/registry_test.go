package preview

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireAndLookup(t *testing.T) {
	r := NewRegistry()

	h := r.Acquire("photo.jpg", []byte("payload"))

	require.NotNil(t, h)
	assert.Equal(t, "photo.jpg", h.Key())
	assert.NotEmpty(t, h.Token())
	assert.Equal(t, []byte("payload"), h.Bytes())
	assert.Equal(t, 1, r.Count())

	got, ok := r.Lookup(h.Token())
	require.True(t, ok)
	assert.Same(t, h, got)

	token, ok := r.TokenFor("photo.jpg")
	require.True(t, ok)
	assert.Equal(t, h.Token(), token)
}

func TestAcquireReplacesPreviousHandle(t *testing.T) {
	r := NewRegistry()

	old := r.Acquire("photo.jpg", []byte("v1"))
	newer := r.Acquire("photo.jpg", []byte("v2"))

	// One key, one live handle.
	assert.Equal(t, 1, r.Count())
	assert.True(t, old.Released())
	assert.Nil(t, old.Bytes())
	assert.False(t, newer.Released())

	_, ok := r.Lookup(old.Token())
	assert.False(t, ok, "displaced token must stop resolving")

	got, ok := r.Lookup(newer.Token())
	require.True(t, ok)
	assert.Equal(t, []byte("v2"), got.Bytes())
}

func TestReleaseIsIdempotent(t *testing.T) {
	r := NewRegistry()

	h := r.Acquire("photo.jpg", []byte("payload"))
	r.Release(h)

	assert.True(t, h.Released())
	assert.Equal(t, 0, r.Count())
	_, ok := r.Lookup(h.Token())
	assert.False(t, ok)

	// Second release is a no-op.
	r.Release(h)
	assert.Equal(t, 0, r.Count())

	// Releasing nil is harmless too.
	r.Release(nil)
}

func TestReleaseStaleHandleKeepsReplacement(t *testing.T) {
	r := NewRegistry()

	old := r.Acquire("photo.jpg", []byte("v1"))
	newer := r.Acquire("photo.jpg", []byte("v2"))

	// Releasing the displaced handle must not touch the live one.
	r.Release(old)

	assert.Equal(t, 1, r.Count())
	assert.False(t, newer.Released())
	_, ok := r.Lookup(newer.Token())
	assert.True(t, ok)
}

func TestReleaseAll(t *testing.T) {
	r := NewRegistry()

	h1 := r.Acquire("a.jpg", []byte("a"))
	h2 := r.Acquire("b.png", []byte("b"))
	r.ReleaseAll()

	assert.Equal(t, 0, r.Count())
	assert.True(t, h1.Released())
	assert.True(t, h2.Released())

	_, ok := r.Lookup(h1.Token())
	assert.False(t, ok)
	_, ok = r.Lookup(h2.Token())
	assert.False(t, ok)

	// Empty registry: ReleaseAll is a no-op.
	r.ReleaseAll()
}

func TestConcurrentAcquireRelease(t *testing.T) {
	r := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			key := fmt.Sprintf("file-%d.jpg", n%4)
			for j := 0; j < 100; j++ {
				h := r.Acquire(key, []byte("x"))
				if j%2 == 0 {
					r.Release(h)
				}
			}
		}(i)
	}
	wg.Wait()

	// At most one live handle per distinct key.
	assert.LessOrEqual(t, r.Count(), 4)
}
