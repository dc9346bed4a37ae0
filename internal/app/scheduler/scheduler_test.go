package scheduler

import (
	"context"
	stderrors "errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sweepStub struct{ calls int32 }

func (s *sweepStub) Sweep(context.Context) (int, error) {
	atomic.AddInt32(&s.calls, 1)
	return 1, nil
}

type refreshStub struct{ err error }

func (r refreshStub) Refresh(context.Context) error { return r.err }

func TestAddValidatesJobs(t *testing.T) {
	s := New(nil)
	assert.Error(t, s.Add(Job{Name: "x", Schedule: "@every 1m"}))
	assert.Error(t, s.Add(Job{Name: "x", Schedule: "sometimes", Run: func(context.Context) error { return nil }}))
	require.NoError(t, s.Add(SubscriptionSweep("@every 1h", &sweepStub{})))
	require.NoError(t, s.Add(ExchangeRateRefresh("0 */6 * * *", refreshStub{})))
	assert.Equal(t, []string{"subscription_sweep", "exchange_rate_refresh"}, s.Jobs())
}

func TestScheduledJobRuns(t *testing.T) {
	sweeper := &sweepStub{}
	s := New(nil)
	require.NoError(t, s.Add(SubscriptionSweep("@every 1s", sweeper)))
	require.NoError(t, s.Start(context.Background()))

	assert.Eventually(t, func() bool { return atomic.LoadInt32(&sweeper.calls) > 0 }, 3*time.Second, 50*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
	assert.NoError(t, s.Add(Job{Name: "late", Schedule: "@every 1s", Run: func(context.Context) error { return nil }}))
}

func TestRunNowSurvivesFailures(t *testing.T) {
	s := New(nil)
	s.RunNow(context.Background(), ExchangeRateRefresh("@every 1h", refreshStub{err: stderrors.New("boom")}))

	var deadline time.Time
	s.RunNow(context.Background(), Job{Name: "deadline", Run: func(ctx context.Context) error {
		deadline, _ = ctx.Deadline()
		return nil
	}})
	assert.False(t, deadline.IsZero())
}
