package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInt64GateGetSet(t *testing.T) {
	g := newInt64Gate(5)
	assert.Equal(t, int64(5), g.Get())

	g.Set(42)
	assert.Equal(t, int64(42), g.Get())
}

func TestInt64GateConcurrentAccess(t *testing.T) {
	g := newInt64Gate(0)
	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func(n int64) {
			g.Set(n)
			g.Get()
			done <- struct{}{}
		}(int64(i))
	}
	for i := 0; i < 8; i++ {
		<-done
	}
}
