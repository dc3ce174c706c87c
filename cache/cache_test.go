package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

// A nil *Cache is what every caller gets when Redis isn't configured, so
// every method on it must behave as a safe miss/no-op. There is no
// in-process Redis server available to exercise the connected path here.

func TestNewWithEmptyAddrReturnsNil(t *testing.T) {
	c := New("")
	assert.Nil(t, c)
}

func TestNewWithUnreachableAddrReturnsNil(t *testing.T) {
	c := New("127.0.0.1:1")
	assert.Nil(t, c)
}

func TestNilCacheGetIsAMiss(t *testing.T) {
	var c *Cache
	var dest string
	err := c.Get(context.Background(), "k", &dest)
	assert.ErrorIs(t, err, redis.Nil)
}

func TestNilCacheSetErrors(t *testing.T) {
	var c *Cache
	err := c.Set(context.Background(), "k", "v", time.Second)
	assert.Error(t, err)
}

func TestNilCacheCloseIsNoop(t *testing.T) {
	var c *Cache
	assert.NoError(t, c.Close())
}
