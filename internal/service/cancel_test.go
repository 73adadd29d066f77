package service

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCancelRegistry(t *testing.T) {
	r := NewCancelRegistry()

	token := r.Acquire("a")
	assert.NoError(t, token.Err())
	assert.False(t, r.Requested("a"))

	r.Request("a")
	assert.ErrorIs(t, token.Err(), ErrTaskCancelled)
	assert.True(t, r.Requested("a"))
	assert.False(t, r.Requested("b"), "tokens are per task id")

	r.Clear("a")
	assert.False(t, r.Requested("a"))
	assert.NoError(t, r.Acquire("a").Err(), "a cleared id starts fresh")
}

func TestCancelRegistryPendingRequest(t *testing.T) {
	r := NewCancelRegistry()
	r.Request("x")
	assert.ErrorIs(t, r.Acquire("x").Err(), ErrTaskCancelled)
}

func TestKeyLockTryLock(t *testing.T) {
	k := newKeyLock()

	unlock, ok := k.TryLock("a")
	require.True(t, ok)
	_, ok = k.TryLock("a")
	assert.False(t, ok)

	other, ok := k.TryLock("b")
	require.True(t, ok)
	other()

	unlock()
	again, ok := k.TryLock("a")
	require.True(t, ok)
	again()
	assert.Empty(t, k.locks, "released keys are dropped")
}

func TestKeyLockSerializes(t *testing.T) {
	k := newKeyLock()
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		active  int
		maxSeen int
	)
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := k.Lock("post")
			defer unlock()
			mu.Lock()
			active++
			maxSeen = max(maxSeen, active)
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			active--
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxSeen)
}
