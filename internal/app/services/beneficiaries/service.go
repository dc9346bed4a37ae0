// Package beneficiaries manages the people a user's assets go to.
package beneficiaries

import (
	"context"
	stderrors "errors"
	"strings"

	"github.com/R3E-Network/fortivo/internal/app/domain/asset"
	"github.com/R3E-Network/fortivo/internal/app/domain/patch"
	"github.com/R3E-Network/fortivo/internal/app/storage"
	"github.com/R3E-Network/fortivo/internal/errors"
	"github.com/R3E-Network/fortivo/pkg/logger"
)

// LimitChecker enforces the tier beneficiary limit.
type LimitChecker interface {
	CheckBeneficiaryLimit(ctx context.Context, userID string) error
}

// Input is the beneficiary payload in snake_case or camelCase.
type Input struct {
	FullName      patch.Field[string] `json:"full_name"`
	FullNameCamel patch.Field[string] `json:"fullName"`
	Relationship  patch.Field[string] `json:"relationship"`

	ContactEmail      patch.Field[string] `json:"contact_email"`
	ContactEmailCamel patch.Field[string] `json:"contactEmail"`
	ContactPhone      patch.Field[string] `json:"contact_phone"`
	ContactPhoneCamel patch.Field[string] `json:"contactPhone"`
}

func (in Input) fullName() patch.Field[string] { return in.FullName.Or(in.FullNameCamel) }

func (in Input) contactEmail() patch.Field[string] { return in.ContactEmail.Or(in.ContactEmailCamel) }

func (in Input) contactPhone() patch.Field[string] { return in.ContactPhone.Or(in.ContactPhoneCamel) }

// Service manages beneficiaries.
type Service struct {
	store  storage.BeneficiaryStore
	assets storage.AssetStore
	limits LimitChecker
	log    *logger.Logger
}

// New constructs a beneficiary service.
func New(store storage.BeneficiaryStore, assets storage.AssetStore, limits LimitChecker, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("beneficiaries")
	}
	return &Service{store: store, assets: assets, limits: limits, log: log}
}

// List returns the user's beneficiaries, newest first.
func (s *Service) List(ctx context.Context, userID string) ([]asset.Beneficiary, error) {
	items, err := s.store.ListBeneficiaries(ctx, userID)
	if err != nil {
		return nil, errors.Internal("failed_to_list_beneficiaries", err)
	}
	return items, nil
}

// Get returns one of the user's beneficiaries.
func (s *Service) Get(ctx context.Context, userID, id string) (asset.Beneficiary, error) {
	b, err := s.store.GetBeneficiary(ctx, id)
	if stderrors.Is(err, storage.ErrNotFound) || (err == nil && b.UserID != userID) {
		return asset.Beneficiary{}, errors.NotFound(errors.CodeNotFound)
	}
	if err != nil {
		return asset.Beneficiary{}, errors.Internal("failed_to_fetch_beneficiary", err)
	}
	return b, nil
}

// Create adds a beneficiary after checking the tier limit.
func (s *Service) Create(ctx context.Context, userID string, in Input) (asset.Beneficiary, error) {
	if s.limits != nil {
		if err := s.limits.CheckBeneficiaryLimit(ctx, userID); err != nil {
			return asset.Beneficiary{}, err
		}
	}

	name := in.fullName()
	if name.Value == nil || strings.TrimSpace(*name.Value) == "" {
		return asset.Beneficiary{}, errors.BadRequest(errors.CodeMissingFields, "full_name is required")
	}

	b := asset.Beneficiary{UserID: userID}
	s.apply(&b, in)

	created, err := s.store.CreateBeneficiary(ctx, b)
	if err != nil {
		return asset.Beneficiary{}, errors.Internal("failed_to_create_beneficiary", err)
	}
	s.log.WithContext(ctx).WithField("beneficiary_id", created.ID).Info("beneficiary created")
	return created, nil
}

// Update applies the present fields; absent fields keep their values.
func (s *Service) Update(ctx context.Context, userID, id string, in Input) (asset.Beneficiary, error) {
	b, err := s.Get(ctx, userID, id)
	if err != nil {
		return asset.Beneficiary{}, err
	}
	if name := in.fullName(); name.Set && (name.Value == nil || strings.TrimSpace(*name.Value) == "") {
		return asset.Beneficiary{}, errors.BadRequest(errors.CodeMissingFields, "full_name cannot be empty")
	}
	s.apply(&b, in)

	updated, err := s.store.UpdateBeneficiary(ctx, b)
	if err != nil {
		return asset.Beneficiary{}, errors.Internal("failed_to_update_beneficiary", err)
	}
	return updated, nil
}

// Delete removes the beneficiary and unassigns its assets.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	if _, err := s.Get(ctx, userID, id); err != nil {
		return err
	}
	if err := s.assets.ClearBeneficiary(ctx, id); err != nil {
		return errors.Internal("failed_to_delete_beneficiary", err)
	}
	if err := s.store.DeleteBeneficiary(ctx, id); err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return errors.NotFound(errors.CodeNotFound)
		}
		return errors.Internal("failed_to_delete_beneficiary", err)
	}
	s.log.WithContext(ctx).WithField("beneficiary_id", id).Info("beneficiary deleted")
	return nil
}

func (s *Service) apply(b *asset.Beneficiary, in Input) {
	if name := in.fullName(); name.Value != nil {
		b.FullName = strings.TrimSpace(*name.Value)
	}
	in.Relationship.Apply(&b.Relationship)
	in.contactEmail().Apply(&b.ContactEmail)
	in.contactPhone().Apply(&b.ContactPhone)
}
