// Package subscription defines plan tiers, their limits and subscription
// records.
package subscription

import (
	"encoding/json"
	"time"
)

// Tier is a subscription plan.
type Tier string

const (
	TierFree    Tier = "free"
	TierPro     Tier = "pro"
	TierPremium Tier = "premium"
)

// Valid reports whether t is a known tier.
func (t Tier) Valid() bool {
	switch t {
	case TierFree, TierPro, TierPremium:
		return true
	}
	return false
}

// Unlimited marks a limit without a cap.
const Unlimited = -1

// Limits bounds what a tier may store.
type Limits struct {
	MaxAssets        int  `json:"maxAssets"`
	MaxBeneficiaries int  `json:"maxBeneficiaries"`
	AllowDocuments   bool `json:"allowDocuments"`
}

var tierLimits = map[Tier]Limits{
	TierFree:    {MaxAssets: 20, MaxBeneficiaries: 10, AllowDocuments: false},
	TierPro:     {MaxAssets: Unlimited, MaxBeneficiaries: 50, AllowDocuments: true},
	TierPremium: {MaxAssets: Unlimited, MaxBeneficiaries: Unlimited, AllowDocuments: true},
}

// LimitsFor returns the limits of t. Unknown tiers get free limits.
func LimitsFor(t Tier) Limits {
	if l, ok := tierLimits[t]; ok {
		return l
	}
	return tierLimits[TierFree]
}

// Reached reports whether count has hit max.
func Reached(count, max int) bool {
	return max != Unlimited && count >= max
}

// Status is the lifecycle state of a subscription.
type Status string

const (
	StatusActive   Status = "active"
	StatusCanceled Status = "canceled"
	StatusPastDue  Status = "past_due"
)

// Subscription is a user's plan over a billing period.
type Subscription struct {
	ID                   string    `json:"id" db:"id"`
	UserID               string    `json:"user_id" db:"user_id"`
	Tier                 Tier      `json:"tier" db:"tier"`
	Status               Status    `json:"status" db:"status"`
	CurrentPeriodStart   time.Time `json:"current_period_start" db:"current_period_start"`
	CurrentPeriodEnd     time.Time `json:"current_period_end" db:"current_period_end"`
	StripeCustomerID     *string   `json:"stripe_customer_id" db:"stripe_customer_id"`
	StripeSubscriptionID *string   `json:"stripe_subscription_id" db:"stripe_subscription_id"`
	StripePriceID        *string   `json:"stripe_price_id" db:"stripe_price_id"`
	CreatedAt            time.Time `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time `json:"updated_at" db:"updated_at"`
}

// Price maps a Stripe price id onto a tier.
type Price struct {
	ID   string `json:"id" db:"id"`
	Tier Tier   `json:"tier" db:"tier"`
}

// DefaultPrices seeds the price table.
var DefaultPrices = []Price{
	{ID: "price_pro_monthly", Tier: TierPro},
	{ID: "price_premium_monthly", Tier: TierPremium},
}

// StripeEvent is a received webhook event kept for auditing.
type StripeEvent struct {
	ID        string          `json:"id" db:"id"`
	Type      string          `json:"event_type" db:"event_type"`
	Data      json.RawMessage `json:"data" db:"data"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}
