package auth

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/R3E-Network/fortivo/internal/app/storage/memory"
	"github.com/R3E-Network/fortivo/internal/errors"
)

const strongPassword = "Str0ng!pass"

func newTestService() (*Service, *memory.Store) {
	store := memory.New()
	return New(store, store, NewTokenIssuer("test-secret", time.Hour), nil, nil), store
}

func TestSignupCreatesFreeProfile(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()

	sess, err := svc.Signup(ctx, "ada@example.com", strongPassword)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", sess.User.Email)
	assert.NotEmpty(t, sess.Token)

	profile, err := store.GetProfileByUser(ctx, sess.User.ID)
	require.NoError(t, err)
	assert.Equal(t, "free", profile.SubscriptionTier)

	userID, err := svc.Authenticate(ctx, sess.Token)
	require.NoError(t, err)
	assert.Equal(t, sess.User.ID, userID)
}

func TestSignupValidation(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Signup(ctx, "", strongPassword)
	assert.True(t, errors.HasCode(err, errors.CodeMissingFields))

	_, err = svc.Signup(ctx, "ada@example.com", "short")
	require.True(t, errors.HasCode(err, "weak_password"))
	assert.Equal(t, "Password must be at least 8 characters long", errors.GetServiceError(err).Message)

	_, err = svc.Signup(ctx, "ada@example.com", strongPassword)
	require.NoError(t, err)
	_, err = svc.Signup(ctx, "ada@example.com", strongPassword)
	assert.True(t, errors.HasCode(err, "user_exists"))
	assert.Equal(t, http.StatusConflict, errors.StatusOf(err))
}

func TestLogin(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Signup(ctx, "ada@example.com", strongPassword)
	require.NoError(t, err)

	sess, err := svc.Login(ctx, "ada@example.com", strongPassword)
	require.NoError(t, err)
	assert.NotEmpty(t, sess.Token)

	_, err = svc.Login(ctx, "ada@example.com", "Wr0ng!pass")
	assert.True(t, errors.HasCode(err, "invalid_credentials"))
	assert.Equal(t, http.StatusUnauthorized, errors.StatusOf(err))

	_, err = svc.Login(ctx, "nobody@example.com", strongPassword)
	assert.True(t, errors.HasCode(err, "invalid_credentials"))

	_, err = svc.Login(ctx, "ada@example.com", "")
	assert.True(t, errors.HasCode(err, errors.CodeMissingFields))
}

func TestLogoutRevokesToken(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	sess, err := svc.Signup(ctx, "ada@example.com", strongPassword)
	require.NoError(t, err)
	require.NoError(t, svc.Logout(ctx, sess.Token))

	_, err = svc.Authenticate(ctx, sess.Token)
	assert.True(t, errors.HasCode(err, errors.CodeUnauthorized))

	assert.NoError(t, svc.Logout(ctx, "garbage"))
}

func TestAuthenticateRejectsForeignSignature(t *testing.T) {
	svc, _ := newTestService()
	other := NewTokenIssuer("other-secret", time.Hour)
	token, err := other.Issue("u1")
	require.NoError(t, err)

	_, err = svc.Authenticate(context.Background(), token)
	assert.Equal(t, http.StatusUnauthorized, errors.StatusOf(err))
}

func TestTokenExpiry(t *testing.T) {
	issuer := NewTokenIssuer("s", time.Minute)
	issuer.now = func() time.Time { return time.Now().Add(-2 * time.Minute) }
	token, err := issuer.Issue("u1")
	require.NoError(t, err)

	issuer.now = time.Now
	_, err = issuer.Parse(token)
	assert.Error(t, err)
}

func TestDevBootstrapIsIdempotent(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	first, err := svc.DevBootstrap(ctx)
	require.NoError(t, err)
	assert.Equal(t, DevEmail, first.Email)

	second, err := svc.DevBootstrap(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	_, err = svc.Login(ctx, DevEmail, DevPassword)
	assert.NoError(t, err)
}

func TestMe(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	sess, err := svc.Signup(ctx, "ada@example.com", strongPassword)
	require.NoError(t, err)
	me, err := svc.Me(ctx, sess.User.ID)
	require.NoError(t, err)
	assert.Equal(t, sess.User, me)

	_, err = svc.Me(ctx, "missing")
	assert.Equal(t, http.StatusNotFound, errors.StatusOf(err))
}
