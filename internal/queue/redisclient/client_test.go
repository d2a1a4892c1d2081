package redisclient

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilClientIsSafe(t *testing.T) {
	c := New(Config{})
	require.Nil(t, c)

	assert.True(t, errors.Is(c.Ping(context.Background()), ErrNotConfigured))
	assert.NoError(t, c.Wake(context.Background()))
	assert.NoError(t, c.Close())
	assert.Nil(t, c.Raw())

	_, open := <-c.SubscribeWake(context.Background())
	assert.False(t, open, "nil client should hand back a closed channel")
}

func TestNewWithAddress(t *testing.T) {
	c := New(Config{Addr: "127.0.0.1:0"})
	require.NotNil(t, c)
	require.NotNil(t, c.Raw())
	assert.NoError(t, c.Close())
}
