package objectstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryProviderExactKey(t *testing.T) {
	t.Parallel()

	m := NewMemoryProvider()
	ctx := context.Background()

	ok, err := m.Exists(ctx, "20241125/20241125000001.html")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.Upload(ctx, "20241125/20241125000001.html", []byte("<html/>"), "text/html; charset=UTF-8"))

	ok, err = m.Exists(ctx, "20241125/20241125000001.html")
	require.NoError(t, err)
	assert.True(t, ok)

	data, ct, found := m.Get("20241125/20241125000001.html")
	require.True(t, found)
	assert.Equal(t, []byte("<html/>"), data)
	assert.Equal(t, "text/html; charset=UTF-8", ct)
}

func TestMemoryProviderPrefixWildcard(t *testing.T) {
	t.Parallel()

	m := NewMemoryProvider()
	ctx := context.Background()
	require.NoError(t, m.Upload(ctx, "20241125/20241125000001.xml", []byte("<doc/>"), "application/xml; charset=UTF-8"))

	// Wildcard matches regardless of the stored extension.
	ok, err := m.Exists(ctx, "20241125/20241125000001*")
	require.NoError(t, err)
	assert.True(t, ok)

	// A different receipt under the same date does not match.
	ok, err = m.Exists(ctx, "20241125/20241125000002*")
	require.NoError(t, err)
	assert.False(t, ok)

	// Exact lookup with the wrong extension does not match.
	ok, err = m.Exists(ctx, "20241125/20241125000001.html")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryProviderUploadCopiesData(t *testing.T) {
	t.Parallel()

	m := NewMemoryProvider()
	buf := []byte("original")
	require.NoError(t, m.Upload(context.Background(), "k", buf, "application/octet-stream"))
	buf[0] = 'X'

	data, _, ok := m.Get("k")
	require.True(t, ok)
	assert.Equal(t, []byte("original"), data)
}
