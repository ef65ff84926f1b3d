package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ordersync/backend/internal/domain/integration"
)

type countingSubmitter struct {
	mu     sync.Mutex
	counts map[integration.SyncPass]int
	err    error
}

func (c *countingSubmitter) Submit(pass integration.SyncPass, trigger Trigger) (Job, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[pass]++
	if c.err != nil {
		return Job{}, c.err
	}
	return *NewJob(pass, trigger), nil
}

func (c *countingSubmitter) count(pass integration.SyncPass) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[pass]
}

func TestIntervalTrigger_FiresPerPass(t *testing.T) {
	sub := &countingSubmitter{counts: map[integration.SyncPass]int{}}
	trig := NewIntervalTrigger(map[integration.SyncPass]time.Duration{
		integration.SyncPassInbound:  10 * time.Millisecond,
		integration.SyncPassOutbound: time.Hour,
		integration.SyncPassSweep:    0,
	}, sub, zaptest.NewLogger(t))

	require.NoError(t, trig.Start(context.Background()))
	require.NoError(t, trig.Start(context.Background()))

	require.Eventually(t, func() bool { return sub.count(integration.SyncPassInbound) >= 3 }, 2*time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, trig.Stop(ctx))

	// submitted once at start, then waiting on the hour tick
	assert.Equal(t, 1, sub.count(integration.SyncPassOutbound))
	assert.Equal(t, 0, sub.count(integration.SyncPassSweep))

	after := sub.count(integration.SyncPassInbound)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, sub.count(integration.SyncPassInbound))
}

func TestIntervalTrigger_KeepsFiringAfterRejection(t *testing.T) {
	sub := &countingSubmitter{counts: map[integration.SyncPass]int{}, err: ErrPassAlreadyQueued}
	trig := NewIntervalTrigger(map[integration.SyncPass]time.Duration{
		integration.SyncPassSweep: 5 * time.Millisecond,
	}, sub, zaptest.NewLogger(t))

	require.NoError(t, trig.Start(context.Background()))
	require.Eventually(t, func() bool { return sub.count(integration.SyncPassSweep) >= 2 }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, trig.Stop(context.Background()))
}
