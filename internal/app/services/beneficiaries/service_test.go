package beneficiaries

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/R3E-Network/fortivo/internal/app/domain/asset"
	"github.com/R3E-Network/fortivo/internal/app/storage/memory"
	"github.com/R3E-Network/fortivo/internal/errors"
)

type limitStub struct{ err error }

func (l limitStub) CheckBeneficiaryLimit(context.Context, string) error { return l.err }

func decodeInput(t *testing.T, raw string) Input {
	t.Helper()
	var in Input
	require.NoError(t, json.Unmarshal([]byte(raw), &in))
	return in
}

func TestCreateAcceptsBothKeyStyles(t *testing.T) {
	svc := New(memory.New(), nil, limitStub{}, nil)
	ctx := context.Background()

	a, err := svc.Create(ctx, "u1", decodeInput(t, `{"full_name":"Ann","contact_email":"ann@example.com"}`))
	require.NoError(t, err)
	assert.Equal(t, "Ann", a.FullName)
	assert.Equal(t, "ann@example.com", *a.ContactEmail)

	b, err := svc.Create(ctx, "u1", decodeInput(t, `{"fullName":"Bob","contactPhone":"555"}`))
	require.NoError(t, err)
	assert.Equal(t, "Bob", b.FullName)
	assert.Equal(t, "555", *b.ContactPhone)

	_, err = svc.Create(ctx, "u1", decodeInput(t, `{"relationship":"son"}`))
	assert.True(t, errors.HasCode(err, errors.CodeMissingFields))
}

func TestCreateRespectsLimit(t *testing.T) {
	svc := New(memory.New(), nil, limitStub{err: errors.Forbidden("beneficiary_limit_reached", "limit")}, nil)
	_, err := svc.Create(context.Background(), "u1", decodeInput(t, `{"full_name":"Ann"}`))
	assert.True(t, errors.HasCode(err, "beneficiary_limit_reached"))
}

func TestUpdateKeepsAbsentFields(t *testing.T) {
	store := memory.New()
	svc := New(store, store, limitStub{}, nil)
	ctx := context.Background()
	created, err := svc.Create(ctx, "u1", decodeInput(t, `{"full_name":"Ann","relationship":"daughter"}`))
	require.NoError(t, err)

	updated, err := svc.Update(ctx, "u1", created.ID, decodeInput(t, `{"contactEmail":"ann@example.com"}`))
	require.NoError(t, err)
	assert.Equal(t, "Ann", updated.FullName)
	assert.Equal(t, "daughter", *updated.Relationship)
	assert.Equal(t, "ann@example.com", *updated.ContactEmail)

	_, err = svc.Update(ctx, "u2", created.ID, decodeInput(t, `{"full_name":"Mallory"}`))
	assert.True(t, errors.HasCode(err, errors.CodeNotFound))
}

func TestDeleteClearsAssignedAssets(t *testing.T) {
	store := memory.New()
	svc := New(store, store, limitStub{}, nil)
	ctx := context.Background()
	ben, err := svc.Create(ctx, "u1", decodeInput(t, `{"full_name":"Ann"}`))
	require.NoError(t, err)
	a, err := store.CreateAsset(ctx, asset.Asset{UserID: "u1", Name: "Ring", Type: asset.TypePhysical, BeneficiaryID: &ben.ID})
	require.NoError(t, err)

	assert.True(t, errors.HasCode(svc.Delete(ctx, "u2", ben.ID), errors.CodeNotFound))
	require.NoError(t, svc.Delete(ctx, "u1", ben.ID))

	got, err := store.GetAsset(ctx, a.ID)
	require.NoError(t, err)
	assert.Nil(t, got.BeneficiaryID)
	assert.Nil(t, got.Beneficiary)
}
