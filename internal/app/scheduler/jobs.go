package scheduler

import (
	"context"
	"time"
)

// Sweeper downgrades lapsed subscriptions.
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

// Refresher pulls fresh exchange rates.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// SubscriptionSweep builds the job that expires lapsed subscriptions.
func SubscriptionSweep(schedule string, sweeper Sweeper) Job {
	return Job{
		Name:     "subscription_sweep",
		Schedule: schedule,
		Timeout:  2 * time.Minute,
		Run: func(ctx context.Context) error {
			_, err := sweeper.Sweep(ctx)
			return err
		},
	}
}

// ExchangeRateRefresh builds the job that refreshes stored exchange rates.
func ExchangeRateRefresh(schedule string, refresher Refresher) Job {
	return Job{
		Name:     "exchange_rate_refresh",
		Schedule: schedule,
		Timeout:  30 * time.Second,
		Run:      refresher.Refresh,
	}
}
