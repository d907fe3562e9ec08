package tracking

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeySetDownUp(t *testing.T) {
	s := NewKeySet()
	assert.False(t, s.IsPressed(63))

	s.Down(63)
	s.Down(63)
	assert.True(t, s.IsPressed(63))
	assert.Equal(t, 1, s.Len())

	s.Up(63)
	assert.False(t, s.IsPressed(63))

	s.Up(64)
	assert.Zero(t, s.Len())
}

func TestKeySetClear(t *testing.T) {
	s := NewKeySet()
	s.Down(1)
	s.Down(2)
	s.Clear()
	assert.Zero(t, s.Len())
	assert.False(t, s.IsPressed(1))
}

func TestKeySetConcurrentAccess(t *testing.T) {
	s := NewKeySet()
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			s.Down(uint16(i % 8))
			s.Up(uint16((i + 4) % 8))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			_ = s.IsPressed(uint16(i % 8))
		}
	}()
	wg.Wait()
	assert.LessOrEqual(t, s.Len(), 8)
}
