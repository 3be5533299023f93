package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDial(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := Config{URL: "redis://" + mr.Addr(), ReadTimeout: 1, WriteTimeout: 1, DialTimeout: 1}

	client, err := cfg.Dial(context.Background())
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.Set(context.Background(), "k", "v", 0).Err())
	v, err := mr.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v", v)
}

func TestDialWithoutURL(t *testing.T) {
	cfg := Config{}
	_, err := cfg.Dial(context.Background())
	assert.ErrorIs(t, err, ErrNoURL)
}

func TestDialUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	cfg := Config{URL: "redis://" + addr, DialTimeout: 1, ReadTimeout: 1, WriteTimeout: 1}
	_, err := cfg.Dial(context.Background())
	assert.Error(t, err)
}

func TestDialRejectsMalformedURL(t *testing.T) {
	cfg := Config{URL: "not-a-url"}
	_, err := cfg.Dial(context.Background())
	assert.Error(t, err)
}
