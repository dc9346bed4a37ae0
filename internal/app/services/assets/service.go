// Package assets manages the estate assets of a user.
package assets

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	"github.com/R3E-Network/fortivo/internal/app/domain/asset"
	"github.com/R3E-Network/fortivo/internal/app/domain/patch"
	"github.com/R3E-Network/fortivo/internal/app/storage"
	"github.com/R3E-Network/fortivo/internal/errors"
	"github.com/R3E-Network/fortivo/pkg/logger"
)

// LimitChecker enforces the tier asset limit.
type LimitChecker interface {
	CheckAssetLimit(ctx context.Context, userID string) error
}

// BlobDeleter removes uploaded files.
type BlobDeleter interface {
	Delete(ctx context.Context, path string) error
}

// Input is the asset payload. Both snake_case and camelCase keys are accepted
// for the multi-word fields; snake_case wins when both are sent. Absent keys
// are left alone on update and null clears a field.
type Input struct {
	Name        patch.Field[string] `json:"name"`
	Type        patch.Field[string] `json:"type"`
	Description patch.Field[string] `json:"description"`
	Location    patch.Field[string] `json:"location"`

	EstimatedValue      patch.Field[patch.Number] `json:"estimated_value"`
	EstimatedValueCamel patch.Field[patch.Number] `json:"estimatedValue"`

	BeneficiaryID      patch.Field[string] `json:"beneficiary_id"`
	BeneficiaryIDCamel patch.Field[string] `json:"beneficiaryId"`

	AcquisitionDate      patch.Field[string] `json:"acquisition_date"`
	AcquisitionDateCamel patch.Field[string] `json:"acquisitionDate"`
}

func (in Input) estimatedValue() patch.Field[patch.Number] {
	return in.EstimatedValue.Or(in.EstimatedValueCamel)
}

func (in Input) beneficiaryID() patch.Field[string] {
	return in.BeneficiaryID.Or(in.BeneficiaryIDCamel)
}

func (in Input) acquisitionDate() patch.Field[string] {
	return in.AcquisitionDate.Or(in.AcquisitionDateCamel)
}

// Service manages assets.
type Service struct {
	store         storage.AssetStore
	beneficiaries storage.BeneficiaryStore
	documents     storage.DocumentStore
	blobs         BlobDeleter
	limits        LimitChecker
	log           *logger.Logger
}

// New constructs an asset service. blobs may be nil.
func New(store storage.AssetStore, beneficiaries storage.BeneficiaryStore, documents storage.DocumentStore, blobs BlobDeleter, limits LimitChecker, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("assets")
	}
	return &Service{
		store:         store,
		beneficiaries: beneficiaries,
		documents:     documents,
		blobs:         blobs,
		limits:        limits,
		log:           log,
	}
}

// List returns the user's assets, newest first.
func (s *Service) List(ctx context.Context, userID string) ([]asset.Asset, error) {
	items, err := s.store.ListAssets(ctx, userID)
	if err != nil {
		return nil, errors.Internal("failed_to_list_assets", err)
	}
	return items, nil
}

// Get returns one of the user's assets.
func (s *Service) Get(ctx context.Context, userID, id string) (asset.Asset, error) {
	a, err := s.store.GetAsset(ctx, id)
	if stderrors.Is(err, storage.ErrNotFound) || (err == nil && a.UserID != userID) {
		return asset.Asset{}, errors.NotFound(errors.CodeNotFound)
	}
	if err != nil {
		return asset.Asset{}, errors.Internal("failed_to_fetch_asset", err)
	}
	return a, nil
}

// Create adds an asset after checking the tier limit.
func (s *Service) Create(ctx context.Context, userID string, in Input) (asset.Asset, error) {
	if s.limits != nil {
		if err := s.limits.CheckAssetLimit(ctx, userID); err != nil {
			return asset.Asset{}, err
		}
	}

	a := asset.Asset{UserID: userID, Type: asset.TypeOther}
	if in.Name.Value == nil || strings.TrimSpace(*in.Name.Value) == "" {
		return asset.Asset{}, errors.BadRequest(errors.CodeMissingFields, "name is required")
	}
	if err := s.apply(ctx, userID, &a, in); err != nil {
		return asset.Asset{}, err
	}

	created, err := s.store.CreateAsset(ctx, a)
	if err != nil {
		return asset.Asset{}, errors.Internal("failed_to_create_asset", err)
	}
	s.log.WithContext(ctx).WithField("asset_id", created.ID).Info("asset created")
	return created, nil
}

// Update applies the fields present in the input. Ownership is verified
// before anything is written.
func (s *Service) Update(ctx context.Context, userID, id string, in Input) (asset.Asset, error) {
	a, err := s.Get(ctx, userID, id)
	if err != nil {
		return asset.Asset{}, err
	}
	if in.Name.Set && (in.Name.Value == nil || strings.TrimSpace(*in.Name.Value) == "") {
		return asset.Asset{}, errors.BadRequest(errors.CodeMissingFields, "name cannot be empty")
	}
	if err := s.apply(ctx, userID, &a, in); err != nil {
		return asset.Asset{}, err
	}

	updated, err := s.store.UpdateAsset(ctx, a)
	if err != nil {
		return asset.Asset{}, errors.Internal("failed_to_update_asset", err)
	}
	return updated, nil
}

// Delete removes the asset, its documents and their blobs.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	if _, err := s.Get(ctx, userID, id); err != nil {
		return err
	}

	if s.documents != nil {
		docs, err := s.documents.ListDocuments(ctx, id)
		if err != nil {
			return errors.Internal("failed_to_delete_asset", err)
		}
		for _, doc := range docs {
			if s.blobs != nil {
				if err := s.blobs.Delete(ctx, doc.FilePath); err != nil {
					s.log.WithContext(ctx).WithError(err).WithField("path", doc.FilePath).Warn("failed to delete document file")
				}
			}
			if err := s.documents.DeleteDocument(ctx, doc.ID); err != nil && !stderrors.Is(err, storage.ErrNotFound) {
				return errors.Internal("failed_to_delete_asset", err)
			}
		}
	}

	if err := s.store.DeleteAsset(ctx, id); err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return errors.NotFound(errors.CodeNotFound)
		}
		return errors.Internal("failed_to_delete_asset", err)
	}
	s.log.WithContext(ctx).WithField("asset_id", id).Info("asset deleted")
	return nil
}

func (s *Service) apply(ctx context.Context, userID string, a *asset.Asset, in Input) error {
	if in.Name.Value != nil {
		a.Name = strings.TrimSpace(*in.Name.Value)
	}
	if in.Type.Set {
		t := asset.TypeOther
		if in.Type.Value != nil && *in.Type.Value != "" {
			t = asset.Type(strings.ToLower(strings.TrimSpace(*in.Type.Value)))
		}
		if !t.Valid() {
			return errors.BadRequest("invalid_type", "type must be one of financial, physical, digital, other")
		}
		a.Type = t
	}

	in.Description.Apply(&a.Description)
	in.Location.Apply(&a.Location)
	if v := in.estimatedValue(); v.Set {
		a.EstimatedValue = patch.Float(v)
	}

	if d := in.acquisitionDate(); d.Set {
		when, err := parseDate(d.Value)
		if err != nil {
			return errors.BadRequest("invalid_date", "acquisition_date must be an ISO date")
		}
		a.AcquisitionDate = when
	}

	if b := in.beneficiaryID(); b.Set {
		if b.Value == nil || *b.Value == "" {
			a.BeneficiaryID = nil
			a.Beneficiary = nil
		} else {
			ben, err := s.beneficiaries.GetBeneficiary(ctx, *b.Value)
			if stderrors.Is(err, storage.ErrNotFound) || (err == nil && ben.UserID != userID) {
				return errors.BadRequest("invalid_beneficiary", "beneficiary does not exist")
			}
			if err != nil {
				return errors.Internal("failed_to_fetch_beneficiary", err)
			}
			a.BeneficiaryID = &ben.ID
			a.Beneficiary = ben.Ref()
		}
	}
	return nil
}

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
