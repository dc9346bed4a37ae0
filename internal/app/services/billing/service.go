// Package billing sells tier upgrades through Stripe Checkout and applies
// Stripe webhook events to local subscriptions.
package billing

import (
	"context"
	stderrors "errors"
	"net/http"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v76/webhook"
	"github.com/tidwall/gjson"

	"github.com/R3E-Network/fortivo/internal/app/domain/subscription"
	"github.com/R3E-Network/fortivo/internal/app/metrics"
	"github.com/R3E-Network/fortivo/internal/app/storage"
	"github.com/R3E-Network/fortivo/internal/errors"
	"github.com/R3E-Network/fortivo/pkg/logger"
)

// Stripe event types handled by the webhook.
const (
	EventCheckoutCompleted   = "checkout.session.completed"
	EventSubscriptionUpdated = "customer.subscription.updated"
	EventSubscriptionDeleted = "customer.subscription.deleted"
)

// WebhookError is reported to Stripe as {"error": message} with status 400.
type WebhookError string

func (e WebhookError) Error() string { return string(e) }

const (
	errNoSignature    WebhookError = "No signature"
	errBadSignature   WebhookError = "Invalid signature"
	errMissingSession WebhookError = "Missing required session data"
	errInvalidPrice   WebhookError = "Invalid price ID"
	errMalformedEvent WebhookError = "Malformed event"
)

// TierSyncer recomputes a user's profile tier.
type TierSyncer interface {
	SyncProfileTier(ctx context.Context, userID string) error
}

// Stores groups the persistence billing needs.
type Stores struct {
	Users         storage.UserStore
	Subscriptions storage.SubscriptionStore
	Billing       storage.BillingStore
}

// CheckoutInput is the checkout request body.
type CheckoutInput struct {
	PriceID    string `json:"priceId"`
	SuccessURL string `json:"successUrl"`
	CancelURL  string `json:"cancelUrl"`
}

// Service handles Stripe checkout and webhooks. A Service without a gateway
// is disabled.
type Service struct {
	gateway       Gateway
	webhookSecret string
	stores        Stores
	tiers         TierSyncer
	log           *logger.Logger
}

// New constructs a billing service. gateway may be nil to disable billing.
func New(gateway Gateway, webhookSecret string, stores Stores, tiers TierSyncer, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("billing")
	}
	return &Service{
		gateway:       gateway,
		webhookSecret: webhookSecret,
		stores:        stores,
		tiers:         tiers,
		log:           log,
	}
}

// Enabled reports whether a Stripe gateway is configured.
func (s *Service) Enabled() bool { return s != nil && s.gateway != nil }

func disabled() error {
	return errors.Unavailable("billing_disabled", "Billing is not configured")
}

// SeedPrices registers price ids with their tiers.
func (s *Service) SeedPrices(ctx context.Context, prices ...subscription.Price) error {
	for _, p := range prices {
		if p.ID == "" || !p.Tier.Valid() {
			continue
		}
		if err := s.stores.Billing.UpsertPrice(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// CreateCheckoutSession starts a Stripe checkout for the user.
func (s *Service) CreateCheckoutSession(ctx context.Context, userID string, in CheckoutInput) (Session, error) {
	if !s.Enabled() {
		return Session{}, disabled()
	}
	in.PriceID = strings.TrimSpace(in.PriceID)
	if in.PriceID == "" || in.SuccessURL == "" || in.CancelURL == "" {
		return Session{}, errors.BadRequest(errors.CodeMissingFields, "priceId, successUrl and cancelUrl are required")
	}
	if _, err := s.stores.Billing.GetPrice(ctx, in.PriceID); err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return Session{}, errors.BadRequest("invalid_price", "")
		}
		return Session{}, errors.Internal("failed_to_create_checkout_session", err)
	}

	user, err := s.stores.Users.GetUser(ctx, userID)
	if err != nil {
		return Session{}, errors.Internal("failed_to_create_checkout_session", err)
	}
	subs, err := s.stores.Subscriptions.ListSubscriptions(ctx, userID)
	if err != nil {
		return Session{}, errors.Internal("failed_to_create_checkout_session", err)
	}

	var customerID string
	for _, sub := range subs {
		if customerID == "" && sub.StripeCustomerID != nil {
			customerID = *sub.StripeCustomerID
		}
		if sub.Status == subscription.StatusActive && sub.StripeSubscriptionID != nil {
			if err := s.gateway.CancelSubscription(ctx, *sub.StripeSubscriptionID); err != nil {
				return Session{}, errors.Wrap(err, http.StatusBadGateway, "failed_to_create_checkout_session", "Could not cancel the current subscription")
			}
		}
	}
	if customerID == "" {
		customerID, err = s.gateway.CreateCustomer(ctx, user.Email, userID)
		if err != nil {
			return Session{}, errors.Wrap(err, http.StatusBadGateway, "failed_to_create_checkout_session", "")
		}
	}

	session, err := s.gateway.CreateCheckoutSession(ctx, CheckoutRequest{
		CustomerID: customerID,
		PriceID:    in.PriceID,
		SuccessURL: in.SuccessURL,
		CancelURL:  in.CancelURL,
		UserID:     userID,
	})
	if err != nil {
		return Session{}, errors.Wrap(err, http.StatusBadGateway, "failed_to_create_checkout_session", "")
	}

	s.log.WithContext(ctx).WithField("price_id", in.PriceID).Info("checkout session created")
	return session, nil
}

// HandleWebhook verifies and applies a Stripe event. Errors are
// WebhookError values or wrap one.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) (err error) {
	if signature == "" {
		return errNoSignature
	}
	if err := webhook.ValidatePayload(payload, signature, s.webhookSecret); err != nil {
		s.log.WithContext(ctx).WithError(err).Warn("stripe signature rejected")
		return errBadSignature
	}

	event := gjson.ParseBytes(payload)
	id, eventType := event.Get("id").String(), event.Get("type").String()
	if id == "" || eventType == "" {
		return errMalformedEvent
	}
	defer func() { metrics.RecordWebhookEvent(eventType, err == nil) }()

	obj := event.Get("data.object")
	fresh, err := s.stores.Billing.RecordStripeEvent(ctx, subscription.StripeEvent{
		ID:   id,
		Type: eventType,
		Data: []byte(obj.Raw),
	})
	if err != nil {
		return err
	}
	if !fresh {
		// Redeliveries are reapplied; every handler below is idempotent.
		s.log.WithContext(ctx).WithField("event_id", id).Debug("stripe event redelivered")
	}

	switch eventType {
	case EventCheckoutCompleted:
		err = s.checkoutCompleted(ctx, obj)
	case EventSubscriptionUpdated, EventSubscriptionDeleted:
		err = s.subscriptionChanged(ctx, obj)
	default:
		s.log.WithContext(ctx).WithField("event_type", eventType).Debug("stripe event not handled")
	}
	if err != nil {
		s.log.WithContext(ctx).WithError(err).WithField("event_type", eventType).Error("stripe event failed")
	}
	return err
}

func (s *Service) checkoutCompleted(ctx context.Context, session gjson.Result) error {
	if !s.Enabled() {
		return disabled()
	}
	userID := session.Get("metadata.user_id").String()
	customerID := session.Get("customer").String()
	stripeSubID := session.Get("subscription").String()
	if userID == "" || customerID == "" || stripeSubID == "" {
		return errMissingSession
	}

	remote, err := s.gateway.GetSubscription(ctx, stripeSubID)
	if err != nil {
		return err
	}
	price, err := s.stores.Billing.GetPrice(ctx, remote.PriceID)
	if stderrors.Is(err, storage.ErrNotFound) {
		return errInvalidPrice
	}
	if err != nil {
		return err
	}

	sub, err := s.stores.Subscriptions.GetSubscriptionByStripeID(ctx, stripeSubID)
	exists := err == nil
	if err != nil && !stderrors.Is(err, storage.ErrNotFound) {
		return err
	}
	sub.UserID = userID
	sub.Tier = price.Tier
	sub.Status = subscription.StatusActive
	sub.StripeCustomerID = &customerID
	sub.StripeSubscriptionID = &stripeSubID
	sub.StripePriceID = &price.ID
	sub.CurrentPeriodStart = remote.PeriodStart
	sub.CurrentPeriodEnd = remote.PeriodEnd

	if exists {
		sub, err = s.stores.Subscriptions.UpdateSubscription(ctx, sub)
	} else {
		sub, err = s.stores.Subscriptions.CreateSubscription(ctx, sub)
	}
	if err != nil {
		return err
	}
	if _, err := s.stores.Subscriptions.CancelActiveSubscriptions(ctx, userID, sub.ID); err != nil {
		return err
	}

	s.log.WithContext(ctx).
		WithField("user_id", userID).
		WithField("tier", price.Tier).
		Info("checkout completed")
	return s.sync(ctx, userID)
}

func (s *Service) subscriptionChanged(ctx context.Context, obj gjson.Result) error {
	stripeSubID := obj.Get("id").String()
	if stripeSubID == "" {
		return errMalformedEvent
	}
	sub, err := s.stores.Subscriptions.GetSubscriptionByStripeID(ctx, stripeSubID)
	if stderrors.Is(err, storage.ErrNotFound) {
		s.log.WithContext(ctx).WithField("stripe_subscription_id", stripeSubID).Warn("stripe subscription unknown")
		return nil
	}
	if err != nil {
		return err
	}

	sub.Status = subscription.StatusCanceled
	if obj.Get("status").String() == "active" {
		sub.Status = subscription.StatusActive
	}
	if end := obj.Get("current_period_end").Int(); end > 0 {
		sub.CurrentPeriodEnd = time.Unix(end, 0).UTC()
	}
	if _, err := s.stores.Subscriptions.UpdateSubscription(ctx, sub); err != nil {
		return err
	}
	return s.sync(ctx, sub.UserID)
}

func (s *Service) sync(ctx context.Context, userID string) error {
	if s.tiers == nil {
		return nil
	}
	return s.tiers.SyncProfileTier(ctx, userID)
}
