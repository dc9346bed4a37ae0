// Package profiles reads and edits user profiles.
package profiles

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	"github.com/R3E-Network/fortivo/internal/app/domain/account"
	"github.com/R3E-Network/fortivo/internal/app/domain/patch"
	"github.com/R3E-Network/fortivo/internal/app/storage"
	"github.com/R3E-Network/fortivo/internal/errors"
	"github.com/R3E-Network/fortivo/pkg/logger"
)

// Patch lists the editable profile fields. Absent keys are left alone and
// null clears a field. subscription_tier is not editable here.
type Patch struct {
	FullName    patch.Field[string] `json:"full_name"`
	DateOfBirth patch.Field[string] `json:"date_of_birth"`
	AvatarURL   patch.Field[string] `json:"avatar_url"`

	PhoneNumber patch.Field[string] `json:"phone_number"`
	Email       patch.Field[string] `json:"email"`

	StreetAddress patch.Field[string] `json:"street_address"`
	City          patch.Field[string] `json:"city"`
	State         patch.Field[string] `json:"state"`
	ZipCode       patch.Field[string] `json:"zip_code"`
	Country       patch.Field[string] `json:"country"`

	EmergencyContactName         patch.Field[string] `json:"emergency_contact_name"`
	EmergencyContactPhone        patch.Field[string] `json:"emergency_contact_phone"`
	EmergencyContactRelationship patch.Field[string] `json:"emergency_contact_relationship"`

	SpecialInstructions patch.Field[string] `json:"special_instructions"`
	ExecutorName        patch.Field[string] `json:"executor_name"`
	ExecutorPhone       patch.Field[string] `json:"executor_phone"`
	ExecutorEmail       patch.Field[string] `json:"executor_email"`
}

// AvatarResult is returned after an avatar upload.
type AvatarResult struct {
	AvatarURL string             `json:"avatar_url"`
	Profile   account.AvatarView `json:"profile"`
}

// Service manages profiles.
type Service struct {
	store storage.ProfileStore
	log   *logger.Logger
}

// New constructs a profile service.
func New(store storage.ProfileStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("profiles")
	}
	return &Service{store: store, log: log}
}

// Get returns the profile of userID.
func (s *Service) Get(ctx context.Context, userID string) (account.Profile, error) {
	p, err := s.store.GetProfileByUser(ctx, userID)
	if stderrors.Is(err, storage.ErrNotFound) {
		return account.Profile{}, errors.NotFound("profile_not_found")
	}
	if err != nil {
		return account.Profile{}, errors.Internal("failed_to_fetch_profile", err)
	}
	return p, nil
}

// Update applies the fields present in p.
func (s *Service) Update(ctx context.Context, userID string, p Patch) (account.Profile, error) {
	profile, err := s.Get(ctx, userID)
	if err != nil {
		return account.Profile{}, err
	}

	if p.DateOfBirth.Set {
		dob, err := parseDate(p.DateOfBirth.Value)
		if err != nil {
			return account.Profile{}, errors.BadRequest("invalid_date", "date_of_birth must be an ISO date")
		}
		profile.DateOfBirth = dob
	}

	p.FullName.Apply(&profile.FullName)
	p.AvatarURL.Apply(&profile.AvatarURL)
	p.PhoneNumber.Apply(&profile.PhoneNumber)
	p.Email.Apply(&profile.Email)
	p.StreetAddress.Apply(&profile.StreetAddress)
	p.City.Apply(&profile.City)
	p.State.Apply(&profile.State)
	p.ZipCode.Apply(&profile.ZipCode)
	p.Country.Apply(&profile.Country)
	p.EmergencyContactName.Apply(&profile.EmergencyContactName)
	p.EmergencyContactPhone.Apply(&profile.EmergencyContactPhone)
	p.EmergencyContactRelationship.Apply(&profile.EmergencyContactRelationship)
	p.SpecialInstructions.Apply(&profile.SpecialInstructions)
	p.ExecutorName.Apply(&profile.ExecutorName)
	p.ExecutorPhone.Apply(&profile.ExecutorPhone)
	p.ExecutorEmail.Apply(&profile.ExecutorEmail)

	updated, err := s.store.UpdateProfile(ctx, profile)
	if err != nil {
		return account.Profile{}, errors.Internal("failed_to_update_profile", err)
	}
	return updated, nil
}

// SetAvatar stores url as the profile avatar.
func (s *Service) SetAvatar(ctx context.Context, userID, url string) (AvatarResult, error) {
	profile, err := s.Get(ctx, userID)
	if err != nil {
		return AvatarResult{}, err
	}
	profile.AvatarURL = &url
	updated, err := s.store.UpdateProfile(ctx, profile)
	if err != nil {
		return AvatarResult{}, errors.Internal("failed_to_upload_avatar", err)
	}
	s.log.WithContext(ctx).WithField("user_id", userID).Debug("avatar updated")
	return AvatarResult{AvatarURL: url, Profile: updated.AvatarView()}, nil
}

// parseDate accepts a calendar date or an RFC 3339 timestamp. Empty clears.
func parseDate(raw *string) (*time.Time, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	v := strings.TrimSpace(*raw)
	for _, layout := range []string{"2006-01-02", time.RFC3339, time.RFC3339Nano} {
		if t, err := time.Parse(layout, v); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, stderrors.New("unrecognised date")
}
