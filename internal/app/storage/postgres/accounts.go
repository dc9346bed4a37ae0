package postgres

import (
	"context"

	"github.com/R3E-Network/fortivo/internal/app/domain/account"
	"github.com/R3E-Network/fortivo/internal/app/domain/subscription"
)

const profileColumns = `id, user_id, full_name, date_of_birth, avatar_url, phone_number, email,
	street_address, city, state, zip_code, country,
	emergency_contact_name, emergency_contact_phone, emergency_contact_relationship,
	special_instructions, executor_name, executor_phone, executor_email,
	subscription_tier, created_at, updated_at`

// --- UserStore --------------------------------------------------------------

func (s *Store) CreateUser(ctx context.Context, user account.User) (account.User, error) {
	if user.ID == "" {
		user.ID = newID()
	}
	now := s.now()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`, user.ID, user.Email, user.PasswordHash, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		return account.User{}, mapErr(err)
	}
	return user, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (account.User, error) {
	var user account.User
	err := s.db.GetContext(ctx, &user, `
		SELECT id, email, password_hash, created_at, updated_at
		FROM users
		WHERE id = $1
	`, id)
	return user, mapErr(err)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (account.User, error) {
	var user account.User
	err := s.db.GetContext(ctx, &user, `
		SELECT id, email, password_hash, created_at, updated_at
		FROM users
		WHERE LOWER(email) = LOWER($1)
	`, email)
	return user, mapErr(err)
}

// --- ProfileStore -----------------------------------------------------------

func (s *Store) CreateProfile(ctx context.Context, p account.Profile) (account.Profile, error) {
	if p.ID == "" {
		p.ID = newID()
	}
	if p.SubscriptionTier == "" {
		p.SubscriptionTier = string(subscription.TierFree)
	}
	now := s.now()
	p.CreatedAt = now
	p.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO profiles (`+profileColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
	`, p.ID, p.UserID, p.FullName, p.DateOfBirth, p.AvatarURL, p.PhoneNumber, p.Email,
		p.StreetAddress, p.City, p.State, p.ZipCode, p.Country,
		p.EmergencyContactName, p.EmergencyContactPhone, p.EmergencyContactRelationship,
		p.SpecialInstructions, p.ExecutorName, p.ExecutorPhone, p.ExecutorEmail,
		p.SubscriptionTier, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return account.Profile{}, mapErr(err)
	}
	return p, nil
}

func (s *Store) GetProfileByUser(ctx context.Context, userID string) (account.Profile, error) {
	var p account.Profile
	err := s.db.GetContext(ctx, &p, `SELECT `+profileColumns+` FROM profiles WHERE user_id = $1`, userID)
	return p, mapErr(err)
}

func (s *Store) UpdateProfile(ctx context.Context, p account.Profile) (account.Profile, error) {
	var out account.Profile
	err := s.db.GetContext(ctx, &out, `
		UPDATE profiles SET
			full_name = $2, date_of_birth = $3, avatar_url = $4, phone_number = $5, email = $6,
			street_address = $7, city = $8, state = $9, zip_code = $10, country = $11,
			emergency_contact_name = $12, emergency_contact_phone = $13, emergency_contact_relationship = $14,
			special_instructions = $15, executor_name = $16, executor_phone = $17, executor_email = $18,
			updated_at = $19
		WHERE user_id = $1
		RETURNING `+profileColumns,
		p.UserID, p.FullName, p.DateOfBirth, p.AvatarURL, p.PhoneNumber, p.Email,
		p.StreetAddress, p.City, p.State, p.ZipCode, p.Country,
		p.EmergencyContactName, p.EmergencyContactPhone, p.EmergencyContactRelationship,
		p.SpecialInstructions, p.ExecutorName, p.ExecutorPhone, p.ExecutorEmail,
		s.now())
	return out, mapErr(err)
}

func (s *Store) SetProfileTier(ctx context.Context, userID string, tier subscription.Tier) error {
	return expectRows(s.db.ExecContext(ctx, `
		UPDATE profiles SET subscription_tier = $2, updated_at = $3 WHERE user_id = $1
	`, userID, string(tier), s.now()))
}
