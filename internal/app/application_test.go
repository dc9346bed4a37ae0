package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/R3E-Network/fortivo/internal/app/domain/currency"
	"github.com/R3E-Network/fortivo/internal/app/domain/subscription"
	"github.com/R3E-Network/fortivo/internal/app/services/auth"
	"github.com/R3E-Network/fortivo/internal/app/services/exchange"
	"github.com/R3E-Network/fortivo/internal/app/storage/memory"
	"github.com/R3E-Network/fortivo/internal/uploads"
)

func testOptions(t *testing.T) Options {
	t.Helper()
	blobs, err := uploads.NewDiskStore(t.TempDir(), 1<<20)
	require.NoError(t, err)
	return Options{
		Tokens: auth.NewTokenIssuer("test-secret", time.Hour),
		Blobs:  blobs,
	}
}

func TestNewRequiresBlobsAndTokens(t *testing.T) {
	_, err := New(Stores{}, Options{}, nil)
	require.Error(t, err)

	opts := testOptions(t)
	opts.Tokens = nil
	_, err = New(Stores{}, opts, nil)
	require.Error(t, err)
}

func TestApplicationLifecycle(t *testing.T) {
	mem := memory.New()
	opts := testOptions(t)
	opts.SweepSchedule = "@every 1h"
	opts.RatesSchedule = "@every 6h"
	opts.RatesFetcher = exchange.FetcherFunc(func(context.Context) (currency.Rates, error) {
		return currency.Rates{currency.EUR: 0.9}, nil
	})
	opts.Prices = []subscription.Price{{ID: "price_custom", Tier: subscription.TierPro}}

	application, err := New(Stores{Billing: mem, ExchangeRates: mem}, opts, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"scheduler"}, application.Services())
	assert.ElementsMatch(t, []string{"subscription_sweep", "exchange_rate_refresh"}, application.Scheduler.Jobs())

	ctx := context.Background()
	require.NoError(t, application.Start(ctx))
	defer application.Stop(ctx)

	price, err := mem.GetPrice(ctx, "price_custom")
	require.NoError(t, err)
	assert.Equal(t, subscription.TierPro, price.Tier)

	view, err := application.Exchange.Rates(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0.9, view.Rates[currency.EUR])
}

func TestServicesShareStores(t *testing.T) {
	application, err := New(Stores{}, testOptions(t), nil)
	require.NoError(t, err)
	ctx := context.Background()

	session, err := application.Auth.Signup(ctx, "owner@example.com", "Str0ng!pass")
	require.NoError(t, err)

	profile, err := application.Profiles.Get(ctx, session.User.ID)
	require.NoError(t, err)
	assert.Equal(t, string(subscription.TierFree), profile.SubscriptionTier)

	_, err = application.Subscriptions.Change(ctx, session.User.ID, "pro")
	require.NoError(t, err)
	tier, err := application.Subscriptions.EffectiveTier(ctx, session.User.ID)
	require.NoError(t, err)
	assert.Equal(t, subscription.TierPro, tier)

	assert.False(t, application.Billing.Enabled())
	assert.Len(t, application.Chat.Tools().List(), 11)
}
