// Package auth signs users up and in, and resolves session tokens.
package auth

import (
	"context"
	stderrors "errors"
	"net/http"
	"strings"
	"time"

	"github.com/R3E-Network/fortivo/internal/app/domain/account"
	"github.com/R3E-Network/fortivo/internal/app/domain/subscription"
	"github.com/R3E-Network/fortivo/internal/app/storage"
	"github.com/R3E-Network/fortivo/internal/errors"
	"github.com/R3E-Network/fortivo/pkg/logger"
)

// Dev bootstrap credentials.
const (
	DevEmail    = "dev@example.com"
	DevPassword = "dev"
)

// Session is the outcome of a successful signup or login.
type Session struct {
	User      account.Identity
	Token     string
	ExpiresAt time.Time
}

// Service implements signup, login and token resolution.
type Service struct {
	users    storage.UserStore
	profiles storage.ProfileStore
	tokens   *TokenIssuer
	revoked  RevocationList
	log      *logger.Logger
}

// New constructs an auth service. A nil revocation list keeps revocations in
// memory.
func New(users storage.UserStore, profiles storage.ProfileStore, tokens *TokenIssuer, revoked RevocationList, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("auth")
	}
	if revoked == nil {
		revoked = NewMemoryRevocations()
	}
	return &Service{users: users, profiles: profiles, tokens: tokens, revoked: revoked, log: log}
}

// Signup registers a user with a free profile and signs them in.
func (s *Service) Signup(ctx context.Context, email, password string) (Session, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return Session{}, errors.BadRequest(errors.CodeMissingFields, "")
	}
	if msg := ValidatePassword(password); msg != "" {
		return Session{}, errors.BadRequest("weak_password", msg)
	}

	if _, err := s.users.GetUserByEmail(ctx, email); err == nil {
		return Session{}, errors.Conflict("user_exists")
	} else if !stderrors.Is(err, storage.ErrNotFound) {
		return Session{}, errors.Internal("signup_failed", err)
	}

	user, err := s.createUser(ctx, email, password)
	if err != nil {
		return Session{}, err
	}

	s.log.WithContext(ctx).WithField("user_id", user.ID).Info("user signed up")
	return s.session(user)
}

func (s *Service) createUser(ctx context.Context, email, password string) (account.User, error) {
	hash, err := HashPassword(password)
	if err != nil {
		return account.User{}, errors.Internal("signup_failed", err)
	}
	user, err := s.users.CreateUser(ctx, account.User{Email: email, PasswordHash: hash})
	if stderrors.Is(err, storage.ErrConflict) {
		return account.User{}, errors.Conflict("user_exists")
	}
	if err != nil {
		return account.User{}, errors.Internal("signup_failed", err)
	}
	if _, err := s.profiles.CreateProfile(ctx, account.Profile{
		UserID:           user.ID,
		SubscriptionTier: string(subscription.TierFree),
	}); err != nil && !stderrors.Is(err, storage.ErrConflict) {
		return account.User{}, errors.Internal("signup_failed", err)
	}
	return user, nil
}

// Login verifies credentials and signs the user in.
func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return Session{}, errors.BadRequest(errors.CodeMissingFields, "")
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if stderrors.Is(err, storage.ErrNotFound) {
		return Session{}, invalidCredentials()
	}
	if err != nil {
		return Session{}, errors.Internal("login_failed", err)
	}
	if !CheckPassword(user.PasswordHash, password) {
		s.log.LogSecurityEvent(ctx, "login_failed", map[string]interface{}{"user_id": user.ID})
		return Session{}, invalidCredentials()
	}
	return s.session(user)
}

func invalidCredentials() *errors.ServiceError {
	return errors.New(http.StatusUnauthorized, "invalid_credentials", "")
}

// Logout revokes the token so it is rejected until it would have expired.
// Invalid tokens are ignored.
func (s *Service) Logout(ctx context.Context, raw string) error {
	if raw == "" {
		return nil
	}
	claims, err := s.tokens.Parse(raw)
	if err != nil || claims.ID == "" {
		return nil
	}
	until := time.Now().Add(s.tokens.TTL())
	if claims.ExpiresAt != nil {
		until = claims.ExpiresAt.Time
	}
	if err := s.revoked.Revoke(ctx, claims.ID, until); err != nil {
		return errors.Internal("logout_failed", err)
	}
	return nil
}

// Authenticate resolves a token to the user id it was issued for.
func (s *Service) Authenticate(ctx context.Context, raw string) (string, error) {
	if raw == "" {
		return "", errors.Unauthorized("")
	}
	claims, err := s.tokens.Parse(raw)
	if err != nil {
		return "", errors.InvalidToken(err)
	}
	if claims.ID != "" {
		revoked, err := s.revoked.IsRevoked(ctx, claims.ID)
		if err != nil {
			s.log.WithContext(ctx).WithError(err).Warn("revocation lookup failed")
		} else if revoked {
			return "", errors.Unauthorized("")
		}
	}
	return claims.Subject, nil
}

// Me returns the identity of userID.
func (s *Service) Me(ctx context.Context, userID string) (account.Identity, error) {
	user, err := s.users.GetUser(ctx, userID)
	if stderrors.Is(err, storage.ErrNotFound) {
		return account.Identity{}, errors.NotFound(errors.CodeNotFound)
	}
	if err != nil {
		return account.Identity{}, errors.Internal("failed_to_load_user", err)
	}
	return account.Identity{ID: user.ID, Email: user.Email}, nil
}

// DevBootstrap ensures the development account exists.
func (s *Service) DevBootstrap(ctx context.Context) (account.Identity, error) {
	user, err := s.users.GetUserByEmail(ctx, DevEmail)
	if stderrors.Is(err, storage.ErrNotFound) {
		user, err = s.createUser(ctx, DevEmail, DevPassword)
		if err != nil && !errors.HasCode(err, "user_exists") {
			return account.Identity{}, err
		}
		if err != nil {
			user, err = s.users.GetUserByEmail(ctx, DevEmail)
		}
	}
	if err != nil {
		return account.Identity{}, errors.Internal("bootstrap_failed", err)
	}
	if _, err := s.profiles.GetProfileByUser(ctx, user.ID); stderrors.Is(err, storage.ErrNotFound) {
		if _, err := s.profiles.CreateProfile(ctx, account.Profile{UserID: user.ID, SubscriptionTier: string(subscription.TierFree)}); err != nil && !stderrors.Is(err, storage.ErrConflict) {
			return account.Identity{}, errors.Internal("bootstrap_failed", err)
		}
	}
	return account.Identity{ID: user.ID, Email: user.Email}, nil
}

func (s *Service) session(user account.User) (Session, error) {
	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return Session{}, errors.Internal("token_issue_failed", err)
	}
	return Session{
		User:      account.Identity{ID: user.ID, Email: user.Email},
		Token:     token,
		ExpiresAt: time.Now().Add(s.tokens.TTL()),
	}, nil
}
