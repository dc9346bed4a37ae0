package postgres

import (
	"context"
	"database/sql"

	"github.com/R3E-Network/fortivo/internal/app/domain/asset"
)

const assetSelect = `
	SELECT a.id, a.user_id, a.name, a.type, a.description, a.estimated_value, a.beneficiary_id,
		a.location, a.acquisition_date, a.created_at, a.updated_at,
		b.full_name AS beneficiary_full_name
	FROM assets a
	LEFT JOIN beneficiaries b ON b.id = a.beneficiary_id`

type assetRow struct {
	asset.Asset
	BeneficiaryFullName sql.NullString `db:"beneficiary_full_name"`
}

func (r assetRow) toAsset() asset.Asset {
	a := r.Asset
	a.Beneficiary = nil
	if a.BeneficiaryID != nil && r.BeneficiaryFullName.Valid {
		a.Beneficiary = &asset.BeneficiaryRef{ID: *a.BeneficiaryID, FullName: r.BeneficiaryFullName.String}
	}
	return a
}

const beneficiaryColumns = `id, user_id, full_name, relationship, contact_email, contact_phone, created_at, updated_at`

// --- AssetStore -------------------------------------------------------------

func (s *Store) CreateAsset(ctx context.Context, a asset.Asset) (asset.Asset, error) {
	if a.ID == "" {
		a.ID = newID()
	}
	now := s.now()
	a.CreatedAt = now
	a.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO assets (id, user_id, name, type, description, estimated_value, beneficiary_id, location, acquisition_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, a.ID, a.UserID, a.Name, string(a.Type), a.Description, a.EstimatedValue, a.BeneficiaryID, a.Location, a.AcquisitionDate, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return asset.Asset{}, mapErr(err)
	}
	return s.GetAsset(ctx, a.ID)
}

func (s *Store) UpdateAsset(ctx context.Context, a asset.Asset) (asset.Asset, error) {
	err := expectRows(s.db.ExecContext(ctx, `
		UPDATE assets
		SET name = $2, type = $3, description = $4, estimated_value = $5, beneficiary_id = $6,
			location = $7, acquisition_date = $8, updated_at = $9
		WHERE id = $1
	`, a.ID, a.Name, string(a.Type), a.Description, a.EstimatedValue, a.BeneficiaryID, a.Location, a.AcquisitionDate, s.now()))
	if err != nil {
		return asset.Asset{}, err
	}
	return s.GetAsset(ctx, a.ID)
}

func (s *Store) GetAsset(ctx context.Context, id string) (asset.Asset, error) {
	var row assetRow
	if err := s.db.GetContext(ctx, &row, assetSelect+` WHERE a.id = $1`, id); err != nil {
		return asset.Asset{}, mapErr(err)
	}
	return row.toAsset(), nil
}

func (s *Store) ListAssets(ctx context.Context, userID string) ([]asset.Asset, error) {
	var rows []assetRow
	if err := s.db.SelectContext(ctx, &rows, assetSelect+` WHERE a.user_id = $1 ORDER BY a.created_at DESC`, userID); err != nil {
		return nil, mapErr(err)
	}
	result := make([]asset.Asset, 0, len(rows))
	for _, r := range rows {
		result = append(result, r.toAsset())
	}
	return result, nil
}

// DeleteAsset relies on the documents foreign key cascade.
func (s *Store) DeleteAsset(ctx context.Context, id string) error {
	return expectRows(s.db.ExecContext(ctx, `DELETE FROM assets WHERE id = $1`, id))
}

func (s *Store) CountAssets(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM assets WHERE user_id = $1`, userID)
	return n, mapErr(err)
}

func (s *Store) ClearBeneficiary(ctx context.Context, beneficiaryID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE assets SET beneficiary_id = NULL, updated_at = $2 WHERE beneficiary_id = $1
	`, beneficiaryID, s.now())
	return mapErr(err)
}

// --- BeneficiaryStore -------------------------------------------------------

func (s *Store) CreateBeneficiary(ctx context.Context, b asset.Beneficiary) (asset.Beneficiary, error) {
	if b.ID == "" {
		b.ID = newID()
	}
	now := s.now()
	b.CreatedAt = now
	b.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO beneficiaries (`+beneficiaryColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, b.ID, b.UserID, b.FullName, b.Relationship, b.ContactEmail, b.ContactPhone, b.CreatedAt, b.UpdatedAt)
	if err != nil {
		return asset.Beneficiary{}, mapErr(err)
	}
	return b, nil
}

func (s *Store) UpdateBeneficiary(ctx context.Context, b asset.Beneficiary) (asset.Beneficiary, error) {
	var out asset.Beneficiary
	err := s.db.GetContext(ctx, &out, `
		UPDATE beneficiaries
		SET full_name = $2, relationship = $3, contact_email = $4, contact_phone = $5, updated_at = $6
		WHERE id = $1
		RETURNING `+beneficiaryColumns,
		b.ID, b.FullName, b.Relationship, b.ContactEmail, b.ContactPhone, s.now())
	return out, mapErr(err)
}

func (s *Store) GetBeneficiary(ctx context.Context, id string) (asset.Beneficiary, error) {
	var b asset.Beneficiary
	err := s.db.GetContext(ctx, &b, `SELECT `+beneficiaryColumns+` FROM beneficiaries WHERE id = $1`, id)
	return b, mapErr(err)
}

func (s *Store) ListBeneficiaries(ctx context.Context, userID string) ([]asset.Beneficiary, error) {
	result := make([]asset.Beneficiary, 0)
	err := s.db.SelectContext(ctx, &result, `
		SELECT `+beneficiaryColumns+` FROM beneficiaries WHERE user_id = $1 ORDER BY created_at DESC
	`, userID)
	return result, mapErr(err)
}

func (s *Store) DeleteBeneficiary(ctx context.Context, id string) error {
	return expectRows(s.db.ExecContext(ctx, `DELETE FROM beneficiaries WHERE id = $1`, id))
}

func (s *Store) CountBeneficiaries(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM beneficiaries WHERE user_id = $1`, userID)
	return n, mapErr(err)
}
