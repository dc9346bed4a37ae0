package profiles

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/R3E-Network/fortivo/internal/app/domain/account"
	"github.com/R3E-Network/fortivo/internal/app/storage/memory"
	"github.com/R3E-Network/fortivo/internal/errors"
)

func decodePatch(t *testing.T, raw string) Patch {
	t.Helper()
	var p Patch
	require.NoError(t, json.Unmarshal([]byte(raw), &p))
	return p
}

func TestUpdateOnlyTouchesPresentFields(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	city := "Lisbon"
	_, err := store.CreateProfile(ctx, account.Profile{UserID: "u1", City: &city})
	require.NoError(t, err)

	svc := New(store, nil)
	updated, err := svc.Update(ctx, "u1", decodePatch(t, `{"full_name":"Ada Lovelace","date_of_birth":"1815-12-10","subscription_tier":"premium"}`))
	require.NoError(t, err)

	require.NotNil(t, updated.FullName)
	assert.Equal(t, "Ada Lovelace", *updated.FullName)
	require.NotNil(t, updated.City)
	assert.Equal(t, "Lisbon", *updated.City)
	require.NotNil(t, updated.DateOfBirth)
	assert.Equal(t, 1815, updated.DateOfBirth.Year())
	assert.Equal(t, "free", updated.SubscriptionTier)

	cleared, err := svc.Update(ctx, "u1", decodePatch(t, `{"city":null,"date_of_birth":""}`))
	require.NoError(t, err)
	assert.Nil(t, cleared.City)
	assert.Nil(t, cleared.DateOfBirth)
	assert.Equal(t, "Ada Lovelace", *cleared.FullName)
}

func TestUpdateRejectsBadDate(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	_, _ = store.CreateProfile(ctx, account.Profile{UserID: "u1"})

	_, err := New(store, nil).Update(ctx, "u1", decodePatch(t, `{"date_of_birth":"yesterday"}`))
	assert.True(t, errors.HasCode(err, "invalid_date"))
}

func TestGetMissingProfile(t *testing.T) {
	_, err := New(memory.New(), nil).Get(context.Background(), "nobody")
	assert.True(t, errors.HasCode(err, "profile_not_found"))
}

func TestSetAvatar(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	_, _ = store.CreateProfile(ctx, account.Profile{UserID: "u1"})

	res, err := New(store, nil).SetAvatar(ctx, "u1", "/uploads/avatars/1-2.png")
	require.NoError(t, err)
	assert.Equal(t, "/uploads/avatars/1-2.png", res.AvatarURL)
	require.NotNil(t, res.Profile.AvatarURL)
	assert.Equal(t, res.AvatarURL, *res.Profile.AvatarURL)
	assert.Equal(t, "free", res.Profile.SubscriptionTier)
}
