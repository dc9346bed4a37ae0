package subscriptions

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/R3E-Network/fortivo/internal/app/domain/account"
	"github.com/R3E-Network/fortivo/internal/app/domain/asset"
	"github.com/R3E-Network/fortivo/internal/app/domain/subscription"
	"github.com/R3E-Network/fortivo/internal/app/storage/memory"
	"github.com/R3E-Network/fortivo/internal/errors"
)

func setup(t *testing.T) (*Service, *memory.Store, string) {
	t.Helper()
	store := memory.New()
	p, err := store.CreateProfile(context.Background(), account.Profile{UserID: "u1"})
	require.NoError(t, err)
	return New(store, store, store, store, nil), store, p.UserID
}

func TestEffectiveTierDefaultsToFree(t *testing.T) {
	svc, _, userID := setup(t)
	tier, err := svc.EffectiveTier(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, subscription.TierFree, tier)
}

func TestChangeCancelsPreviousAndSyncsProfile(t *testing.T) {
	svc, store, userID := setup(t)
	ctx := context.Background()

	first, err := svc.Change(ctx, userID, "pro")
	require.NoError(t, err)
	assert.True(t, first.CurrentPeriodEnd.After(time.Now().AddDate(99, 0, 0)))

	_, err = svc.Change(ctx, userID, "premium")
	require.NoError(t, err)

	subs, err := svc.List(ctx, userID)
	require.NoError(t, err)
	require.Len(t, subs, 2)
	assert.Equal(t, subscription.TierPremium, subs[0].Tier)
	assert.Equal(t, subscription.StatusActive, subs[0].Status)
	assert.Equal(t, subscription.StatusCanceled, subs[1].Status)

	profile, err := store.GetProfileByUser(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, "premium", profile.SubscriptionTier)

	_, err = svc.Change(ctx, userID, "gold")
	assert.True(t, errors.HasCode(err, "invalid_tier"))
}

func TestAssetLimitOnFreeTier(t *testing.T) {
	svc, store, userID := setup(t)
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		_, err := store.CreateAsset(ctx, asset.Asset{UserID: userID, Name: fmt.Sprintf("a%d", i)})
		require.NoError(t, err)
	}
	err := svc.CheckAssetLimit(ctx, userID)
	require.True(t, errors.HasCode(err, "asset_limit_reached"))
	assert.Equal(t, http.StatusForbidden, errors.StatusOf(err))
	assert.Equal(t, "Your free plan allows a maximum of 20 assets. Please upgrade to add more.", errors.GetServiceError(err).Message)

	_, err = svc.Change(ctx, userID, "pro")
	require.NoError(t, err)
	assert.NoError(t, svc.CheckAssetLimit(ctx, userID))
}

func TestBeneficiaryLimit(t *testing.T) {
	svc, store, userID := setup(t)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		_, err := store.CreateBeneficiary(ctx, asset.Beneficiary{UserID: userID, FullName: fmt.Sprintf("b%d", i)})
		require.NoError(t, err)
	}
	err := svc.CheckBeneficiaryLimit(ctx, userID)
	require.True(t, errors.HasCode(err, "beneficiary_limit_reached"))
	assert.Contains(t, errors.GetServiceError(err).Message, "maximum of 10 beneficiaries")
}

func TestDocumentPermission(t *testing.T) {
	svc, _, userID := setup(t)
	ctx := context.Background()

	err := svc.CheckDocumentPermission(ctx, userID)
	require.True(t, errors.HasCode(err, "documents_not_allowed"))
	assert.Equal(t, "Document uploads are not available on the free plan. Please upgrade to Pro or Premium.", errors.GetServiceError(err).Message)

	_, err = svc.Change(ctx, userID, "premium")
	require.NoError(t, err)
	assert.NoError(t, svc.CheckDocumentPermission(ctx, userID))
}

func TestSweepMarksLapsedPastDue(t *testing.T) {
	svc, store, userID := setup(t)
	ctx := context.Background()

	_, err := svc.Change(ctx, userID, "pro")
	require.NoError(t, err)

	svc.now = func() time.Time { return time.Now().UTC().AddDate(101, 0, 0) }
	n, err := svc.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	tier, err := svc.EffectiveTier(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, subscription.TierFree, tier)

	profile, err := store.GetProfileByUser(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, "free", profile.SubscriptionTier)
}
