package economy_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/emberplay/economy-engine/economy"
)

func TestSlidingWindow_ExactLimit(t *testing.T) {
	// GIVEN: A limit of 10 per window
	// WHEN: 11 acquisitions arrive inside one window
	// THEN: Calls 1-10 succeed, call 11 is denied

	sw := economy.NewSlidingWindow(10, time.Minute)
	for i := 0; i < 10; i++ {
		assert.True(t, sw.TryAcquire("acct-1"), "call %d should be admitted", i+1)
	}
	assert.False(t, sw.TryAcquire("acct-1"), "call 11 should be denied")
	assert.False(t, sw.TryAcquire("acct-1"), "denials do not consume budget either")
}

func TestSlidingWindow_PerAccountIsolation(t *testing.T) {
	sw := economy.NewSlidingWindow(2, time.Minute)
	assert.True(t, sw.TryAcquire("acct-1"))
	assert.True(t, sw.TryAcquire("acct-1"))
	assert.False(t, sw.TryAcquire("acct-1"))

	// A different account has its own window.
	assert.True(t, sw.TryAcquire("acct-2"))
}

func TestSlidingWindow_ReadmitsAfterWindow(t *testing.T) {
	// Short real window: once the oldest hits age out, the account is
	// admitted again.
	sw := economy.NewSlidingWindow(2, 50*time.Millisecond)
	assert.True(t, sw.TryAcquire("acct-1"))
	assert.True(t, sw.TryAcquire("acct-1"))
	assert.False(t, sw.TryAcquire("acct-1"))

	time.Sleep(70 * time.Millisecond)
	assert.True(t, sw.TryAcquire("acct-1"), "window slid past the old hits")
}
