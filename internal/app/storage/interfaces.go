// Package storage declares the persistence contracts used by the services.
// Implementations live in the memory and postgres subpackages.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/R3E-Network/fortivo/internal/app/domain/account"
	"github.com/R3E-Network/fortivo/internal/app/domain/asset"
	"github.com/R3E-Network/fortivo/internal/app/domain/chat"
	"github.com/R3E-Network/fortivo/internal/app/domain/currency"
	"github.com/R3E-Network/fortivo/internal/app/domain/document"
	"github.com/R3E-Network/fortivo/internal/app/domain/subscription"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a unique constraint would be violated.
	ErrConflict = errors.New("record already exists")
)

// UserStore persists login identities.
type UserStore interface {
	CreateUser(ctx context.Context, user account.User) (account.User, error)
	GetUser(ctx context.Context, id string) (account.User, error)
	GetUserByEmail(ctx context.Context, email string) (account.User, error)
}

// ProfileStore persists user profiles. There is exactly one per user.
type ProfileStore interface {
	CreateProfile(ctx context.Context, profile account.Profile) (account.Profile, error)
	GetProfileByUser(ctx context.Context, userID string) (account.Profile, error)
	// UpdateProfile overwrites every editable column except the tier.
	UpdateProfile(ctx context.Context, profile account.Profile) (account.Profile, error)
	SetProfileTier(ctx context.Context, userID string, tier subscription.Tier) error
}

// AssetStore persists assets.
type AssetStore interface {
	CreateAsset(ctx context.Context, a asset.Asset) (asset.Asset, error)
	UpdateAsset(ctx context.Context, a asset.Asset) (asset.Asset, error)
	GetAsset(ctx context.Context, id string) (asset.Asset, error)
	// ListAssets returns the user's assets, newest first.
	ListAssets(ctx context.Context, userID string) ([]asset.Asset, error)
	DeleteAsset(ctx context.Context, id string) error
	CountAssets(ctx context.Context, userID string) (int, error)
	// ClearBeneficiary unassigns every asset pointing at beneficiaryID.
	ClearBeneficiary(ctx context.Context, beneficiaryID string) error
}

// BeneficiaryStore persists beneficiaries.
type BeneficiaryStore interface {
	CreateBeneficiary(ctx context.Context, b asset.Beneficiary) (asset.Beneficiary, error)
	UpdateBeneficiary(ctx context.Context, b asset.Beneficiary) (asset.Beneficiary, error)
	GetBeneficiary(ctx context.Context, id string) (asset.Beneficiary, error)
	ListBeneficiaries(ctx context.Context, userID string) ([]asset.Beneficiary, error)
	DeleteBeneficiary(ctx context.Context, id string) error
	CountBeneficiaries(ctx context.Context, userID string) (int, error)
}

// DocumentStore persists document metadata.
type DocumentStore interface {
	CreateDocument(ctx context.Context, doc document.Document) (document.Document, error)
	GetDocument(ctx context.Context, id string) (document.Document, error)
	// ListDocuments returns the asset's documents, newest first.
	ListDocuments(ctx context.Context, assetID string) ([]document.Document, error)
	DeleteDocument(ctx context.Context, id string) error
}

// SubscriptionStore persists subscriptions.
type SubscriptionStore interface {
	CreateSubscription(ctx context.Context, sub subscription.Subscription) (subscription.Subscription, error)
	UpdateSubscription(ctx context.Context, sub subscription.Subscription) (subscription.Subscription, error)
	ListSubscriptions(ctx context.Context, userID string) ([]subscription.Subscription, error)
	GetSubscriptionByStripeID(ctx context.Context, stripeSubscriptionID string) (subscription.Subscription, error)
	// CancelActiveSubscriptions cancels the user's active subscriptions except
	// exceptID and returns how many changed.
	CancelActiveSubscriptions(ctx context.Context, userID, exceptID string) (int, error)
	// ListLapsedSubscriptions returns active subscriptions whose period ended
	// before the given time.
	ListLapsedSubscriptions(ctx context.Context, before time.Time) ([]subscription.Subscription, error)
}

// BillingStore persists the Stripe price catalogue and received events.
type BillingStore interface {
	UpsertPrice(ctx context.Context, price subscription.Price) error
	GetPrice(ctx context.Context, id string) (subscription.Price, error)
	ListPrices(ctx context.Context) ([]subscription.Price, error)
	// RecordStripeEvent stores the event and reports whether it was new.
	RecordStripeEvent(ctx context.Context, event subscription.StripeEvent) (bool, error)
}

// ConversationStore persists chat conversations and their messages.
type ConversationStore interface {
	CreateConversation(ctx context.Context, conv chat.Conversation) (chat.Conversation, error)
	GetConversation(ctx context.Context, id string) (chat.Conversation, error)
	// ListConversations returns the user's conversations, most recently
	// updated first.
	ListConversations(ctx context.Context, userID string) ([]chat.Conversation, error)
	UpdateConversation(ctx context.Context, conv chat.Conversation) (chat.Conversation, error)
	// DeleteConversation removes the conversation and its messages.
	DeleteConversation(ctx context.Context, id string) error
	AppendMessage(ctx context.Context, msg chat.StoredMessage) (chat.StoredMessage, error)
	// ListMessages returns the conversation's messages, oldest first.
	ListMessages(ctx context.Context, conversationID string) ([]chat.StoredMessage, error)
}

// ExchangeRateStore keeps the latest exchange rate snapshot.
type ExchangeRateStore interface {
	SaveRates(ctx context.Context, snap currency.Snapshot) error
	LatestRates(ctx context.Context) (currency.Snapshot, error)
}
