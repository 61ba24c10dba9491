package cache

import (
	"net"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupCacheUsesEnv(t *testing.T) {
	mr := miniredis.RunT(t)
	host, port, err := net.SplitHostPort(mr.Addr())
	require.NoError(t, err)
	t.Setenv("CACHE_HOST", host)
	t.Setenv("CACHE_PORT", port)
	t.Setenv("CACHE_DB", "2")
	SetClient(nil)
	t.Cleanup(func() { SetClient(nil) })

	c := GetClient()
	require.NotNil(t, c)
	assert.Equal(t, mr.Addr(), c.Options().Addr)
	assert.Equal(t, 2, c.Options().DB)

	require.NoError(t, c.Set(ctx, "k", "v", 0).Err())
	mr.Select(2)
	assert.True(t, mr.Exists("k"))
}

func TestGetClientReusesClient(t *testing.T) {
	SetClient(nil)
	t.Cleanup(func() { SetClient(nil) })
	t.Setenv("CACHE_HOST", "127.0.0.1")
	t.Setenv("CACHE_PORT", "1")

	first := GetClient()
	assert.Same(t, first, GetClient())
}
