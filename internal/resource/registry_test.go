package resource

import (
	"sync"
	"testing"

	domerrors "github.com/garyellow/line-carousel-composer/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_PutGetRelease(t *testing.T) {
	r := NewRegistry(nil)

	h := r.Put(Blob{Data: []byte("jpeg"), ContentType: "image/jpeg", Width: 900, Height: 900})
	require.False(t, h.IsZero())

	b, ok := r.Get(h)
	require.True(t, ok)
	assert.Equal(t, 900, b.Width)
	assert.Equal(t, 1, r.Live())

	r.Release(h)
	_, ok = r.Get(h)
	assert.False(t, ok)
	assert.Equal(t, 0, r.Live())
	assert.EqualValues(t, 1, r.Released())

	// releasing twice counts once
	r.Release(h)
	r.Release("")
	assert.EqualValues(t, 1, r.Released())
}

func TestRegistry_Duplicate(t *testing.T) {
	r := NewRegistry(nil)
	h := r.Put(Blob{Data: []byte("png"), ContentType: "image/png"})

	dup, err := r.Duplicate(h)
	require.NoError(t, err)
	assert.NotEqual(t, h, dup)
	assert.Equal(t, 2, r.Live())

	r.Release(h)
	_, ok := r.Get(dup)
	assert.True(t, ok, "duplicate must survive release of the source")

	empty, err := r.Duplicate("")
	require.NoError(t, err)
	assert.True(t, empty.IsZero())

	_, err = r.Duplicate("missing")
	assert.ErrorIs(t, err, domerrors.ErrNotFound)
}

func TestRegistry_Concurrent(t *testing.T) {
	r := NewRegistry(nil)

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h := r.Put(Blob{Data: []byte{1}})
			r.Release(h)
		}()
	}
	wg.Wait()

	assert.Equal(t, 0, r.Live())
	assert.EqualValues(t, 50, r.Released())
}
