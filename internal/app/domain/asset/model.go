// Package asset holds estate assets and the beneficiaries they go to.
package asset

import "time"

// Type classifies an asset.
type Type string

const (
	TypeFinancial Type = "financial"
	TypePhysical  Type = "physical"
	TypeDigital   Type = "digital"
	TypeOther     Type = "other"
)

// Valid reports whether t is a known asset type.
func (t Type) Valid() bool {
	switch t {
	case TypeFinancial, TypePhysical, TypeDigital, TypeOther:
		return true
	}
	return false
}

// Asset is a single catalogued item of an estate.
type Asset struct {
	ID              string          `json:"id" db:"id"`
	UserID          string          `json:"userId" db:"user_id"`
	Name            string          `json:"name" db:"name"`
	Type            Type            `json:"type" db:"type"`
	Description     *string         `json:"description" db:"description"`
	EstimatedValue  *float64        `json:"estimatedValue" db:"estimated_value"`
	BeneficiaryID   *string         `json:"beneficiaryId" db:"beneficiary_id"`
	Location        *string         `json:"location" db:"location"`
	AcquisitionDate *time.Time      `json:"acquisitionDate" db:"acquisition_date"`
	CreatedAt       time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt       time.Time       `json:"updatedAt" db:"updated_at"`
	Beneficiary     *BeneficiaryRef `json:"beneficiary" db:"-"`
}

// BeneficiaryRef is the beneficiary expansion on asset output.
type BeneficiaryRef struct {
	ID       string `json:"id"`
	FullName string `json:"fullName"`
}

// Beneficiary is a person who inherits assets.
type Beneficiary struct {
	ID           string    `json:"id" db:"id"`
	UserID       string    `json:"userId" db:"user_id"`
	FullName     string    `json:"fullName" db:"full_name"`
	Relationship *string   `json:"relationship" db:"relationship"`
	ContactEmail *string   `json:"contactEmail" db:"contact_email"`
	ContactPhone *string   `json:"contactPhone" db:"contact_phone"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time `json:"updatedAt" db:"updated_at"`
}

// Ref returns the expansion used on asset output.
func (b Beneficiary) Ref() *BeneficiaryRef {
	return &BeneficiaryRef{ID: b.ID, FullName: b.FullName}
}
