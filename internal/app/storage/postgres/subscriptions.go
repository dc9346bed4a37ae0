package postgres

import (
	"context"
	"time"

	"github.com/R3E-Network/fortivo/internal/app/domain/subscription"
)

const subscriptionColumns = `id, user_id, tier, status, current_period_start, current_period_end,
	stripe_customer_id, stripe_subscription_id, stripe_price_id, created_at, updated_at`

// --- SubscriptionStore ------------------------------------------------------

func (s *Store) CreateSubscription(ctx context.Context, sub subscription.Subscription) (subscription.Subscription, error) {
	if sub.ID == "" {
		sub.ID = newID()
	}
	now := s.now()
	sub.CreatedAt = now
	sub.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO subscriptions (`+subscriptionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, sub.ID, sub.UserID, string(sub.Tier), string(sub.Status), sub.CurrentPeriodStart, sub.CurrentPeriodEnd,
		sub.StripeCustomerID, sub.StripeSubscriptionID, sub.StripePriceID, sub.CreatedAt, sub.UpdatedAt)
	if err != nil {
		return subscription.Subscription{}, mapErr(err)
	}
	return sub, nil
}

func (s *Store) UpdateSubscription(ctx context.Context, sub subscription.Subscription) (subscription.Subscription, error) {
	var out subscription.Subscription
	err := s.db.GetContext(ctx, &out, `
		UPDATE subscriptions
		SET tier = $2, status = $3, current_period_start = $4, current_period_end = $5,
			stripe_customer_id = $6, stripe_subscription_id = $7, stripe_price_id = $8, updated_at = $9
		WHERE id = $1
		RETURNING `+subscriptionColumns,
		sub.ID, string(sub.Tier), string(sub.Status), sub.CurrentPeriodStart, sub.CurrentPeriodEnd,
		sub.StripeCustomerID, sub.StripeSubscriptionID, sub.StripePriceID, s.now())
	return out, mapErr(err)
}

func (s *Store) ListSubscriptions(ctx context.Context, userID string) ([]subscription.Subscription, error) {
	result := make([]subscription.Subscription, 0)
	err := s.db.SelectContext(ctx, &result, `
		SELECT `+subscriptionColumns+` FROM subscriptions WHERE user_id = $1 ORDER BY created_at DESC
	`, userID)
	return result, mapErr(err)
}

func (s *Store) GetSubscriptionByStripeID(ctx context.Context, stripeID string) (subscription.Subscription, error) {
	var sub subscription.Subscription
	err := s.db.GetContext(ctx, &sub, `
		SELECT `+subscriptionColumns+` FROM subscriptions WHERE stripe_subscription_id = $1
	`, stripeID)
	return sub, mapErr(err)
}

func (s *Store) CancelActiveSubscriptions(ctx context.Context, userID, exceptID string) (int, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE subscriptions SET status = 'canceled', updated_at = $3
		WHERE user_id = $1 AND status = 'active' AND id::text <> $2
	`, userID, exceptID, s.now())
	if err != nil {
		return 0, mapErr(err)
	}
	n, _ := result.RowsAffected()
	return int(n), nil
}

func (s *Store) ListLapsedSubscriptions(ctx context.Context, before time.Time) ([]subscription.Subscription, error) {
	var result []subscription.Subscription
	err := s.db.SelectContext(ctx, &result, `
		SELECT `+subscriptionColumns+` FROM subscriptions
		WHERE status = 'active' AND current_period_end < $1
		ORDER BY current_period_end
	`, before)
	return result, mapErr(err)
}

// --- BillingStore -----------------------------------------------------------

func (s *Store) UpsertPrice(ctx context.Context, price subscription.Price) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO stripe_prices (id, tier) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET tier = EXCLUDED.tier
	`, price.ID, string(price.Tier))
	return mapErr(err)
}

func (s *Store) GetPrice(ctx context.Context, id string) (subscription.Price, error) {
	var p subscription.Price
	err := s.db.GetContext(ctx, &p, `SELECT id, tier FROM stripe_prices WHERE id = $1`, id)
	return p, mapErr(err)
}

func (s *Store) ListPrices(ctx context.Context) ([]subscription.Price, error) {
	result := make([]subscription.Price, 0)
	err := s.db.SelectContext(ctx, &result, `SELECT id, tier FROM stripe_prices ORDER BY id`)
	return result, mapErr(err)
}

func (s *Store) RecordStripeEvent(ctx context.Context, ev subscription.StripeEvent) (bool, error) {
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = s.now()
	}
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO stripe_events (id, event_type, data, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING
	`, ev.ID, ev.Type, jsonArg(ev.Data), ev.CreatedAt)
	if err != nil {
		return false, mapErr(err)
	}
	n, _ := result.RowsAffected()
	return n > 0, nil
}
