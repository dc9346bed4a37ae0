// Package account holds user and profile records.
package account

import "time"

// User is a login identity.
type User struct {
	ID           string    `json:"id" db:"id"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// Identity is the minimal user view returned by auth endpoints.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Profile carries the personal and legacy-planning details for a user.
type Profile struct {
	ID     string `json:"id" db:"id"`
	UserID string `json:"-" db:"user_id"`

	FullName    *string    `json:"full_name" db:"full_name"`
	DateOfBirth *time.Time `json:"date_of_birth" db:"date_of_birth"`
	AvatarURL   *string    `json:"avatar_url" db:"avatar_url"`

	PhoneNumber *string `json:"phone_number" db:"phone_number"`
	Email       *string `json:"email" db:"email"`

	StreetAddress *string `json:"street_address" db:"street_address"`
	City          *string `json:"city" db:"city"`
	State         *string `json:"state" db:"state"`
	ZipCode       *string `json:"zip_code" db:"zip_code"`
	Country       *string `json:"country" db:"country"`

	EmergencyContactName         *string `json:"emergency_contact_name" db:"emergency_contact_name"`
	EmergencyContactPhone        *string `json:"emergency_contact_phone" db:"emergency_contact_phone"`
	EmergencyContactRelationship *string `json:"emergency_contact_relationship" db:"emergency_contact_relationship"`

	SpecialInstructions *string `json:"special_instructions" db:"special_instructions"`
	ExecutorName        *string `json:"executor_name" db:"executor_name"`
	ExecutorPhone       *string `json:"executor_phone" db:"executor_phone"`
	ExecutorEmail       *string `json:"executor_email" db:"executor_email"`

	SubscriptionTier string    `json:"subscription_tier" db:"subscription_tier"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at"`
}

// AvatarView is the profile subset returned after an avatar upload.
type AvatarView struct {
	ID               string    `json:"id"`
	FullName         *string   `json:"full_name"`
	AvatarURL        *string   `json:"avatar_url"`
	SubscriptionTier string    `json:"subscription_tier"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// AvatarView projects the profile for avatar responses.
func (p Profile) AvatarView() AvatarView {
	return AvatarView{
		ID:               p.ID,
		FullName:         p.FullName,
		AvatarURL:        p.AvatarURL,
		SubscriptionTier: p.SubscriptionTier,
		CreatedAt:        p.CreatedAt,
		UpdatedAt:        p.UpdatedAt,
	}
}
