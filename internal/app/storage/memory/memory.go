// Package memory is an in-memory implementation of the storage interfaces.
// It is safe for concurrent use and backs local development and tests.
package memory

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/R3E-Network/fortivo/internal/app/domain/account"
	"github.com/R3E-Network/fortivo/internal/app/domain/asset"
	"github.com/R3E-Network/fortivo/internal/app/domain/chat"
	"github.com/R3E-Network/fortivo/internal/app/domain/currency"
	"github.com/R3E-Network/fortivo/internal/app/domain/document"
	"github.com/R3E-Network/fortivo/internal/app/domain/subscription"
	"github.com/R3E-Network/fortivo/internal/app/storage"
)

// Store holds every table in maps guarded by a single lock.
type Store struct {
	mu  sync.RWMutex
	seq int64
	// order records insertion sequence so equal timestamps still sort stably.
	order map[string]int64

	users         map[string]account.User
	usersByEmail  map[string]string
	profiles      map[string]account.Profile
	assets        map[string]asset.Asset
	beneficiaries map[string]asset.Beneficiary
	documents     map[string]document.Document
	subscriptions map[string]subscription.Subscription
	prices        map[string]subscription.Price
	stripeEvents  map[string]subscription.StripeEvent
	conversations map[string]chat.Conversation
	messages      map[string][]chat.StoredMessage
	rates         *currency.Snapshot
	now           func() time.Time
}

var _ storage.UserStore = (*Store)(nil)
var _ storage.ProfileStore = (*Store)(nil)
var _ storage.AssetStore = (*Store)(nil)
var _ storage.BeneficiaryStore = (*Store)(nil)
var _ storage.DocumentStore = (*Store)(nil)
var _ storage.SubscriptionStore = (*Store)(nil)
var _ storage.BillingStore = (*Store)(nil)
var _ storage.ConversationStore = (*Store)(nil)
var _ storage.ExchangeRateStore = (*Store)(nil)

// New creates an empty store seeded with the default price catalogue.
func New() *Store {
	s := &Store{
		order:         make(map[string]int64),
		users:         make(map[string]account.User),
		usersByEmail:  make(map[string]string),
		profiles:      make(map[string]account.Profile),
		assets:        make(map[string]asset.Asset),
		beneficiaries: make(map[string]asset.Beneficiary),
		documents:     make(map[string]document.Document),
		subscriptions: make(map[string]subscription.Subscription),
		prices:        make(map[string]subscription.Price),
		stripeEvents:  make(map[string]subscription.StripeEvent),
		conversations: make(map[string]chat.Conversation),
		messages:      make(map[string][]chat.StoredMessage),
		now:           func() time.Time { return time.Now().UTC() },
	}
	for _, p := range subscription.DefaultPrices {
		s.prices[p.ID] = p
	}
	return s
}

func (s *Store) newIDLocked() string {
	id := uuid.NewString()
	s.seq++
	s.order[id] = s.seq
	return id
}

// newestFirst sorts by timestamp descending, breaking ties by insertion order.
func (s *Store) newestFirst(n int, at func(int) time.Time, id func(int) string, swap func(i, j int)) {
	sort.Sort(sorter{n: n, less: func(i, j int) bool {
		ti, tj := at(i), at(j)
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return s.order[id(i)] > s.order[id(j)]
	}, swap: swap})
}

type sorter struct {
	n    int
	less func(i, j int) bool
	swap func(i, j int)
}

func (s sorter) Len() int           { return s.n }
func (s sorter) Less(i, j int) bool { return s.less(i, j) }
func (s sorter) Swap(i, j int)      { s.swap(i, j) }

// UserStore implementation ----------------------------------------------------

func (s *Store) CreateUser(_ context.Context, user account.User) (account.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(user.Email)
	if _, exists := s.usersByEmail[key]; exists {
		return account.User{}, storage.ErrConflict
	}
	if user.ID == "" {
		user.ID = s.newIDLocked()
	}
	now := s.now()
	user.CreatedAt = now
	user.UpdatedAt = now
	s.users[user.ID] = user
	s.usersByEmail[key] = user.ID
	return user, nil
}

func (s *Store) GetUser(_ context.Context, id string) (account.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return account.User{}, storage.ErrNotFound
	}
	return user, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (account.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.usersByEmail[strings.ToLower(email)]
	if !ok {
		return account.User{}, storage.ErrNotFound
	}
	return s.users[id], nil
}

// ProfileStore implementation -------------------------------------------------

func (s *Store) CreateProfile(_ context.Context, p account.Profile) (account.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.profiles[p.UserID]; exists {
		return account.Profile{}, storage.ErrConflict
	}
	if p.ID == "" {
		p.ID = s.newIDLocked()
	}
	if p.SubscriptionTier == "" {
		p.SubscriptionTier = string(subscription.TierFree)
	}
	now := s.now()
	p.CreatedAt = now
	p.UpdatedAt = now
	s.profiles[p.UserID] = p
	return p, nil
}

func (s *Store) GetProfileByUser(_ context.Context, userID string) (account.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[userID]
	if !ok {
		return account.Profile{}, storage.ErrNotFound
	}
	return p, nil
}

func (s *Store) UpdateProfile(_ context.Context, p account.Profile) (account.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.profiles[p.UserID]
	if !ok {
		return account.Profile{}, storage.ErrNotFound
	}
	p.ID = existing.ID
	p.SubscriptionTier = existing.SubscriptionTier
	p.CreatedAt = existing.CreatedAt
	p.UpdatedAt = s.now()
	s.profiles[p.UserID] = p
	return p, nil
}

func (s *Store) SetProfileTier(_ context.Context, userID string, tier subscription.Tier) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[userID]
	if !ok {
		return storage.ErrNotFound
	}
	p.SubscriptionTier = string(tier)
	p.UpdatedAt = s.now()
	s.profiles[userID] = p
	return nil
}

// AssetStore implementation ---------------------------------------------------

func (s *Store) CreateAsset(_ context.Context, a asset.Asset) (asset.Asset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if a.ID == "" {
		a.ID = s.newIDLocked()
	}
	now := s.now()
	a.CreatedAt = now
	a.UpdatedAt = now
	a.Beneficiary = nil
	s.assets[a.ID] = a
	return s.expandLocked(a), nil
}

func (s *Store) UpdateAsset(_ context.Context, a asset.Asset) (asset.Asset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.assets[a.ID]
	if !ok {
		return asset.Asset{}, storage.ErrNotFound
	}
	a.UserID = existing.UserID
	a.CreatedAt = existing.CreatedAt
	a.UpdatedAt = s.now()
	a.Beneficiary = nil
	s.assets[a.ID] = a
	return s.expandLocked(a), nil
}

func (s *Store) GetAsset(_ context.Context, id string) (asset.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.assets[id]
	if !ok {
		return asset.Asset{}, storage.ErrNotFound
	}
	return s.expandLocked(a), nil
}

func (s *Store) ListAssets(_ context.Context, userID string) ([]asset.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]asset.Asset, 0)
	for _, a := range s.assets {
		if a.UserID == userID {
			result = append(result, s.expandLocked(a))
		}
	}
	s.newestFirst(len(result),
		func(i int) time.Time { return result[i].CreatedAt },
		func(i int) string { return result[i].ID },
		func(i, j int) { result[i], result[j] = result[j], result[i] })
	return result, nil
}

func (s *Store) DeleteAsset(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.assets[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.assets, id)
	for docID, doc := range s.documents {
		if doc.AssetID == id {
			delete(s.documents, docID)
		}
	}
	return nil
}

func (s *Store) CountAssets(_ context.Context, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, a := range s.assets {
		if a.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (s *Store) ClearBeneficiary(_ context.Context, beneficiaryID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, a := range s.assets {
		if a.BeneficiaryID != nil && *a.BeneficiaryID == beneficiaryID {
			a.BeneficiaryID = nil
			a.UpdatedAt = s.now()
			s.assets[id] = a
		}
	}
	return nil
}

func (s *Store) expandLocked(a asset.Asset) asset.Asset {
	a.Beneficiary = nil
	if a.BeneficiaryID != nil {
		if b, ok := s.beneficiaries[*a.BeneficiaryID]; ok {
			a.Beneficiary = b.Ref()
		}
	}
	return a
}

// BeneficiaryStore implementation ---------------------------------------------

func (s *Store) CreateBeneficiary(_ context.Context, b asset.Beneficiary) (asset.Beneficiary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if b.ID == "" {
		b.ID = s.newIDLocked()
	}
	now := s.now()
	b.CreatedAt = now
	b.UpdatedAt = now
	s.beneficiaries[b.ID] = b
	return b, nil
}

func (s *Store) UpdateBeneficiary(_ context.Context, b asset.Beneficiary) (asset.Beneficiary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.beneficiaries[b.ID]
	if !ok {
		return asset.Beneficiary{}, storage.ErrNotFound
	}
	b.UserID = existing.UserID
	b.CreatedAt = existing.CreatedAt
	b.UpdatedAt = s.now()
	s.beneficiaries[b.ID] = b
	return b, nil
}

func (s *Store) GetBeneficiary(_ context.Context, id string) (asset.Beneficiary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.beneficiaries[id]
	if !ok {
		return asset.Beneficiary{}, storage.ErrNotFound
	}
	return b, nil
}

func (s *Store) ListBeneficiaries(_ context.Context, userID string) ([]asset.Beneficiary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]asset.Beneficiary, 0)
	for _, b := range s.beneficiaries {
		if b.UserID == userID {
			result = append(result, b)
		}
	}
	s.newestFirst(len(result),
		func(i int) time.Time { return result[i].CreatedAt },
		func(i int) string { return result[i].ID },
		func(i, j int) { result[i], result[j] = result[j], result[i] })
	return result, nil
}

func (s *Store) DeleteBeneficiary(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.beneficiaries[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.beneficiaries, id)
	return nil
}

func (s *Store) CountBeneficiaries(_ context.Context, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, b := range s.beneficiaries {
		if b.UserID == userID {
			n++
		}
	}
	return n, nil
}

// DocumentStore implementation ------------------------------------------------

func (s *Store) CreateDocument(_ context.Context, doc document.Document) (document.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.assets[doc.AssetID]; !ok {
		return document.Document{}, storage.ErrNotFound
	}
	if doc.ID == "" {
		doc.ID = s.newIDLocked()
	}
	doc.UploadedAt = s.now()
	s.documents[doc.ID] = doc
	return doc, nil
}

func (s *Store) GetDocument(_ context.Context, id string) (document.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.documents[id]
	if !ok {
		return document.Document{}, storage.ErrNotFound
	}
	return doc, nil
}

func (s *Store) ListDocuments(_ context.Context, assetID string) ([]document.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]document.Document, 0)
	for _, doc := range s.documents {
		if doc.AssetID == assetID {
			result = append(result, doc)
		}
	}
	s.newestFirst(len(result),
		func(i int) time.Time { return result[i].UploadedAt },
		func(i int) string { return result[i].ID },
		func(i, j int) { result[i], result[j] = result[j], result[i] })
	return result, nil
}

func (s *Store) DeleteDocument(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.documents[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.documents, id)
	return nil
}

// SubscriptionStore implementation --------------------------------------------

func (s *Store) CreateSubscription(_ context.Context, sub subscription.Subscription) (subscription.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sub.StripeSubscriptionID != nil {
		for _, existing := range s.subscriptions {
			if existing.StripeSubscriptionID != nil && *existing.StripeSubscriptionID == *sub.StripeSubscriptionID {
				return subscription.Subscription{}, storage.ErrConflict
			}
		}
	}
	if sub.ID == "" {
		sub.ID = s.newIDLocked()
	}
	now := s.now()
	sub.CreatedAt = now
	sub.UpdatedAt = now
	s.subscriptions[sub.ID] = sub
	return sub, nil
}

func (s *Store) UpdateSubscription(_ context.Context, sub subscription.Subscription) (subscription.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.subscriptions[sub.ID]
	if !ok {
		return subscription.Subscription{}, storage.ErrNotFound
	}
	sub.UserID = existing.UserID
	sub.CreatedAt = existing.CreatedAt
	sub.UpdatedAt = s.now()
	s.subscriptions[sub.ID] = sub
	return sub, nil
}

func (s *Store) ListSubscriptions(_ context.Context, userID string) ([]subscription.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]subscription.Subscription, 0)
	for _, sub := range s.subscriptions {
		if sub.UserID == userID {
			result = append(result, sub)
		}
	}
	s.newestFirst(len(result),
		func(i int) time.Time { return result[i].CreatedAt },
		func(i int) string { return result[i].ID },
		func(i, j int) { result[i], result[j] = result[j], result[i] })
	return result, nil
}

func (s *Store) GetSubscriptionByStripeID(_ context.Context, stripeID string) (subscription.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, sub := range s.subscriptions {
		if sub.StripeSubscriptionID != nil && *sub.StripeSubscriptionID == stripeID {
			return sub, nil
		}
	}
	return subscription.Subscription{}, storage.ErrNotFound
}

func (s *Store) CancelActiveSubscriptions(_ context.Context, userID, exceptID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for id, sub := range s.subscriptions {
		if sub.UserID != userID || sub.Status != subscription.StatusActive || id == exceptID {
			continue
		}
		sub.Status = subscription.StatusCanceled
		sub.UpdatedAt = s.now()
		s.subscriptions[id] = sub
		n++
	}
	return n, nil
}

func (s *Store) ListLapsedSubscriptions(_ context.Context, before time.Time) ([]subscription.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []subscription.Subscription
	for _, sub := range s.subscriptions {
		if sub.Status == subscription.StatusActive && sub.CurrentPeriodEnd.Before(before) {
			result = append(result, sub)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CurrentPeriodEnd.Before(result[j].CurrentPeriodEnd) })
	return result, nil
}

// BillingStore implementation -------------------------------------------------

func (s *Store) UpsertPrice(_ context.Context, price subscription.Price) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.prices[price.ID] = price
	return nil
}

func (s *Store) GetPrice(_ context.Context, id string) (subscription.Price, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.prices[id]
	if !ok {
		return subscription.Price{}, storage.ErrNotFound
	}
	return p, nil
}

func (s *Store) ListPrices(_ context.Context) ([]subscription.Price, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]subscription.Price, 0, len(s.prices))
	for _, p := range s.prices {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (s *Store) RecordStripeEvent(_ context.Context, ev subscription.StripeEvent) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.stripeEvents[ev.ID]; exists {
		return false, nil
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = s.now()
	}
	ev.Data = append(json.RawMessage(nil), ev.Data...)
	s.stripeEvents[ev.ID] = ev
	return true, nil
}

// ConversationStore implementation --------------------------------------------

func (s *Store) CreateConversation(_ context.Context, conv chat.Conversation) (chat.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if conv.ID == "" {
		conv.ID = s.newIDLocked()
	}
	now := s.now()
	conv.CreatedAt = now
	conv.UpdatedAt = now
	s.conversations[conv.ID] = conv
	return conv, nil
}

func (s *Store) GetConversation(_ context.Context, id string) (chat.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.conversations[id]
	if !ok {
		return chat.Conversation{}, storage.ErrNotFound
	}
	return conv, nil
}

func (s *Store) ListConversations(_ context.Context, userID string) ([]chat.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]chat.Conversation, 0)
	for _, conv := range s.conversations {
		if conv.UserID == userID {
			result = append(result, conv)
		}
	}
	s.newestFirst(len(result),
		func(i int) time.Time { return result[i].UpdatedAt },
		func(i int) string { return result[i].ID },
		func(i, j int) { result[i], result[j] = result[j], result[i] })
	return result, nil
}

func (s *Store) UpdateConversation(_ context.Context, conv chat.Conversation) (chat.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.conversations[conv.ID]
	if !ok {
		return chat.Conversation{}, storage.ErrNotFound
	}
	conv.UserID = existing.UserID
	conv.CreatedAt = existing.CreatedAt
	conv.UpdatedAt = s.now()
	s.conversations[conv.ID] = conv
	// bump ordering so the updated conversation wins timestamp ties
	s.seq++
	s.order[conv.ID] = s.seq
	return conv, nil
}

func (s *Store) DeleteConversation(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.conversations[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.conversations, id)
	delete(s.messages, id)
	return nil
}

func (s *Store) AppendMessage(_ context.Context, msg chat.StoredMessage) (chat.StoredMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.conversations[msg.ConversationID]; !ok {
		return chat.StoredMessage{}, storage.ErrNotFound
	}
	if msg.ID == "" {
		msg.ID = s.newIDLocked()
	}
	msg.CreatedAt = s.now()
	msg.ToolCalls = append(json.RawMessage(nil), msg.ToolCalls...)
	s.messages[msg.ConversationID] = append(s.messages[msg.ConversationID], msg)
	return msg, nil
}

func (s *Store) ListMessages(_ context.Context, conversationID string) ([]chat.StoredMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := s.messages[conversationID]
	result := make([]chat.StoredMessage, len(msgs))
	copy(result, msgs)
	return result, nil
}

// ExchangeRateStore implementation --------------------------------------------

func (s *Store) SaveRates(_ context.Context, snap currency.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := currency.Snapshot{Rates: make(currency.Rates, len(snap.Rates)), FetchedAt: snap.FetchedAt}
	for k, v := range snap.Rates {
		cp.Rates[k] = v
	}
	if cp.FetchedAt.IsZero() {
		cp.FetchedAt = s.now()
	}
	s.rates = &cp
	return nil
}

func (s *Store) LatestRates(_ context.Context) (currency.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.rates == nil {
		return currency.Snapshot{}, storage.ErrNotFound
	}
	cp := currency.Snapshot{Rates: make(currency.Rates, len(s.rates.Rates)), FetchedAt: s.rates.FetchedAt}
	for k, v := range s.rates.Rates {
		cp.Rates[k] = v
	}
	return cp, nil
}
