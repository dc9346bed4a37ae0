package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/R3E-Network/fortivo/internal/app/domain/account"
	"github.com/R3E-Network/fortivo/internal/app/domain/asset"
	"github.com/R3E-Network/fortivo/internal/platform/migrations"
)

func TestStoreIntegration(t *testing.T) {
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set; skipping postgres integration test")
	}

	db, err := sqlx.Open("postgres", dsn)
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, migrations.Apply(db.DB))

	store := New(db)
	ctx := context.Background()

	user, err := store.CreateUser(ctx, account.User{Email: "it-" + newID() + "@example.com", PasswordHash: "x"})
	require.NoError(t, err)
	_, err = store.CreateProfile(ctx, account.Profile{UserID: user.ID})
	require.NoError(t, err)

	ben, err := store.CreateBeneficiary(ctx, asset.Beneficiary{UserID: user.ID, FullName: "Maria"})
	require.NoError(t, err)
	a, err := store.CreateAsset(ctx, asset.Asset{UserID: user.ID, Name: "House", Type: asset.TypePhysical, BeneficiaryID: &ben.ID})
	require.NoError(t, err)
	require.NotNil(t, a.Beneficiary)
	assert.Equal(t, "Maria", a.Beneficiary.FullName)

	require.NoError(t, store.DeleteBeneficiary(ctx, ben.ID))
	got, err := store.GetAsset(ctx, a.ID)
	require.NoError(t, err)
	assert.Nil(t, got.BeneficiaryID)
}
