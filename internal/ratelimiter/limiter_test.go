package ratelimiter_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notifyhub/reminder-scheduler/internal/ratelimiter"
)

func TestKeyedLimiters_BurstPerKey(t *testing.T) {
	kl := ratelimiter.New(2)

	assert.True(t, kl.Allow("msteams"))
	assert.True(t, kl.Allow("msteams"))
	assert.False(t, kl.Allow("msteams"), "burst exhausted")

	assert.True(t, kl.Allow("slack"), "keys do not share a bucket")
}

func TestKeyedLimiters_Disabled(t *testing.T) {
	kl := ratelimiter.New(0)
	for i := 0; i < 1000; i++ {
		require.True(t, kl.Allow("msteams"))
	}
}

func TestKeyedLimiters_WaitHonoursContext(t *testing.T) {
	kl := ratelimiter.New(1)
	require.NoError(t, kl.Wait(context.Background(), "msteams"))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.Error(t, kl.Wait(ctx, "msteams"))
}
