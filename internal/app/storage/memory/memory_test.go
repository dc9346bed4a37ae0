package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/R3E-Network/fortivo/internal/app/domain/account"
	"github.com/R3E-Network/fortivo/internal/app/domain/asset"
	"github.com/R3E-Network/fortivo/internal/app/domain/chat"
	"github.com/R3E-Network/fortivo/internal/app/domain/document"
	"github.com/R3E-Network/fortivo/internal/app/domain/subscription"
	"github.com/R3E-Network/fortivo/internal/app/storage"
)

func ptr[T any](v T) *T { return &v }

func TestUsersUniqueEmail(t *testing.T) {
	ctx := context.Background()
	store := New()

	u, err := store.CreateUser(ctx, account.User{Email: "a@example.com", PasswordHash: "x"})
	require.NoError(t, err)
	assert.NotEmpty(t, u.ID)

	_, err = store.CreateUser(ctx, account.User{Email: "A@example.com"})
	assert.ErrorIs(t, err, storage.ErrConflict)

	got, err := store.GetUserByEmail(ctx, "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = store.GetUser(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestProfileUpdateKeepsTier(t *testing.T) {
	ctx := context.Background()
	store := New()

	p, err := store.CreateProfile(ctx, account.Profile{UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, "free", p.SubscriptionTier)

	require.NoError(t, store.SetProfileTier(ctx, "u1", subscription.TierPro))

	p.FullName = ptr("Ada")
	p.SubscriptionTier = "premium"
	updated, err := store.UpdateProfile(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, "pro", updated.SubscriptionTier)
	assert.Equal(t, "Ada", *updated.FullName)
}

func TestAssetsNewestFirstWithBeneficiary(t *testing.T) {
	ctx := context.Background()
	store := New()
	fixed := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return fixed }

	ben, err := store.CreateBeneficiary(ctx, asset.Beneficiary{UserID: "u1", FullName: "Maria"})
	require.NoError(t, err)

	first, err := store.CreateAsset(ctx, asset.Asset{UserID: "u1", Name: "House", Type: asset.TypePhysical})
	require.NoError(t, err)
	second, err := store.CreateAsset(ctx, asset.Asset{UserID: "u1", Name: "Stocks", Type: asset.TypeFinancial, BeneficiaryID: &ben.ID})
	require.NoError(t, err)
	_, err = store.CreateAsset(ctx, asset.Asset{UserID: "u2", Name: "Other"})
	require.NoError(t, err)

	list, err := store.ListAssets(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)
	require.NotNil(t, list[0].Beneficiary)
	assert.Equal(t, "Maria", list[0].Beneficiary.FullName)

	n, err := store.CountAssets(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, store.ClearBeneficiary(ctx, ben.ID))
	got, err := store.GetAsset(ctx, second.ID)
	require.NoError(t, err)
	assert.Nil(t, got.BeneficiaryID)
	assert.Nil(t, got.Beneficiary)
}

func TestDeleteAssetRemovesDocuments(t *testing.T) {
	ctx := context.Background()
	store := New()

	a, err := store.CreateAsset(ctx, asset.Asset{UserID: "u1", Name: "Car"})
	require.NoError(t, err)
	doc, err := store.CreateDocument(ctx, document.Document{AssetID: a.ID, Name: "title.pdf"})
	require.NoError(t, err)

	require.NoError(t, store.DeleteAsset(ctx, a.ID))
	_, err = store.GetDocument(ctx, doc.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.ErrorIs(t, store.DeleteAsset(ctx, a.ID), storage.ErrNotFound)

	_, err = store.CreateDocument(ctx, document.Document{AssetID: "gone"})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSubscriptionsCancelAndLapse(t *testing.T) {
	ctx := context.Background()
	store := New()
	now := time.Now().UTC()

	old, err := store.CreateSubscription(ctx, subscription.Subscription{
		UserID: "u1", Tier: subscription.TierPro, Status: subscription.StatusActive,
		CurrentPeriodStart: now.Add(-48 * time.Hour), CurrentPeriodEnd: now.Add(-time.Hour),
	})
	require.NoError(t, err)
	keep, err := store.CreateSubscription(ctx, subscription.Subscription{
		UserID: "u1", Tier: subscription.TierPremium, Status: subscription.StatusActive,
		CurrentPeriodStart: now, CurrentPeriodEnd: now.Add(time.Hour),
		StripeSubscriptionID: ptr("sub_1"),
	})
	require.NoError(t, err)

	lapsed, err := store.ListLapsedSubscriptions(ctx, now)
	require.NoError(t, err)
	require.Len(t, lapsed, 1)
	assert.Equal(t, old.ID, lapsed[0].ID)

	n, err := store.CancelActiveSubscriptions(ctx, "u1", keep.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := store.GetSubscriptionByStripeID(ctx, "sub_1")
	require.NoError(t, err)
	assert.Equal(t, subscription.StatusActive, got.Status)

	_, err = store.CreateSubscription(ctx, subscription.Subscription{UserID: "u1", StripeSubscriptionID: ptr("sub_1")})
	assert.ErrorIs(t, err, storage.ErrConflict)
}

func TestStripeEventsAreIdempotent(t *testing.T) {
	ctx := context.Background()
	store := New()

	fresh, err := store.RecordStripeEvent(ctx, subscription.StripeEvent{ID: "evt_1", Type: "checkout.session.completed"})
	require.NoError(t, err)
	assert.True(t, fresh)

	fresh, err = store.RecordStripeEvent(ctx, subscription.StripeEvent{ID: "evt_1"})
	require.NoError(t, err)
	assert.False(t, fresh)

	price, err := store.GetPrice(ctx, "price_pro_monthly")
	require.NoError(t, err)
	assert.Equal(t, subscription.TierPro, price.Tier)
}

func TestConversationsOrderAndCascade(t *testing.T) {
	ctx := context.Background()
	store := New()
	fixed := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return fixed }

	a, err := store.CreateConversation(ctx, chat.Conversation{UserID: "u1"})
	require.NoError(t, err)
	b, err := store.CreateConversation(ctx, chat.Conversation{UserID: "u1"})
	require.NoError(t, err)

	_, err = store.UpdateConversation(ctx, chat.Conversation{ID: a.ID, Title: ptr("Estate")})
	require.NoError(t, err)

	list, err := store.ListConversations(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, a.ID, list[0].ID)
	assert.Equal(t, b.ID, list[1].ID)

	_, err = store.AppendMessage(ctx, chat.StoredMessage{ConversationID: a.ID, Role: chat.RoleUser, Content: "hi"})
	require.NoError(t, err)
	_, err = store.AppendMessage(ctx, chat.StoredMessage{ConversationID: a.ID, Role: chat.RoleAssistant, Content: "hello"})
	require.NoError(t, err)
	msgs, err := store.ListMessages(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "hi", msgs[0].Content)

	require.NoError(t, store.DeleteConversation(ctx, a.ID))
	msgs, err = store.ListMessages(ctx, a.ID)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestRates(t *testing.T) {
	ctx := context.Background()
	store := New()

	_, err := store.LatestRates(ctx)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
