// Package subscriptions resolves a user's effective tier, enforces the tier
// limits and manages subscription records.
package subscriptions

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/R3E-Network/fortivo/internal/app/domain/subscription"
	"github.com/R3E-Network/fortivo/internal/app/metrics"
	"github.com/R3E-Network/fortivo/internal/app/storage"
	"github.com/R3E-Network/fortivo/internal/errors"
	"github.com/R3E-Network/fortivo/pkg/logger"
)

// manualPeriod is the period length of subscriptions changed without billing.
const manualPeriod = 100

// Service manages subscriptions and tier limits.
type Service struct {
	store         storage.SubscriptionStore
	profiles      storage.ProfileStore
	assets        storage.AssetStore
	beneficiaries storage.BeneficiaryStore
	log           *logger.Logger
	now           func() time.Time
}

// New constructs a subscription service.
func New(store storage.SubscriptionStore, profiles storage.ProfileStore, assets storage.AssetStore, beneficiaries storage.BeneficiaryStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("subscriptions")
	}
	return &Service{
		store:         store,
		profiles:      profiles,
		assets:        assets,
		beneficiaries: beneficiaries,
		log:           log,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// EffectiveTier returns the tier of the newest active subscription, or free.
func (s *Service) EffectiveTier(ctx context.Context, userID string) (subscription.Tier, error) {
	subs, err := s.store.ListSubscriptions(ctx, userID)
	if err != nil {
		return "", err
	}
	for _, sub := range subs {
		if sub.Status == subscription.StatusActive {
			return sub.Tier, nil
		}
	}
	return subscription.TierFree, nil
}

// Limits returns the effective tier and its limits.
func (s *Service) Limits(ctx context.Context, userID string) (subscription.Tier, subscription.Limits, error) {
	tier, err := s.EffectiveTier(ctx, userID)
	if err != nil {
		return "", subscription.Limits{}, err
	}
	return tier, subscription.LimitsFor(tier), nil
}

// CheckAssetLimit refuses when the user already holds the maximum number of
// assets for their tier.
func (s *Service) CheckAssetLimit(ctx context.Context, userID string) error {
	tier, limits, err := s.Limits(ctx, userID)
	if err != nil {
		return errors.Internal("failed_to_check_limits", err)
	}
	if limits.MaxAssets == subscription.Unlimited {
		return nil
	}
	count, err := s.assets.CountAssets(ctx, userID)
	if err != nil {
		return errors.Internal("failed_to_check_limits", err)
	}
	if subscription.Reached(count, limits.MaxAssets) {
		metrics.RecordLimitRejection("assets", string(tier))
		return errors.Forbidden("asset_limit_reached",
			fmt.Sprintf("Your %s plan allows a maximum of %d assets. Please upgrade to add more.", tier, limits.MaxAssets))
	}
	return nil
}

// CheckBeneficiaryLimit refuses when the user already holds the maximum
// number of beneficiaries for their tier.
func (s *Service) CheckBeneficiaryLimit(ctx context.Context, userID string) error {
	tier, limits, err := s.Limits(ctx, userID)
	if err != nil {
		return errors.Internal("failed_to_check_limits", err)
	}
	if limits.MaxBeneficiaries == subscription.Unlimited {
		return nil
	}
	count, err := s.beneficiaries.CountBeneficiaries(ctx, userID)
	if err != nil {
		return errors.Internal("failed_to_check_limits", err)
	}
	if subscription.Reached(count, limits.MaxBeneficiaries) {
		metrics.RecordLimitRejection("beneficiaries", string(tier))
		return errors.Forbidden("beneficiary_limit_reached",
			fmt.Sprintf("Your %s plan allows a maximum of %d beneficiaries. Please upgrade to add more.", tier, limits.MaxBeneficiaries))
	}
	return nil
}

// CheckDocumentPermission refuses uploads on tiers without documents.
func (s *Service) CheckDocumentPermission(ctx context.Context, userID string) error {
	tier, limits, err := s.Limits(ctx, userID)
	if err != nil {
		return errors.Internal("failed_to_check_permissions", err)
	}
	if !limits.AllowDocuments {
		metrics.RecordLimitRejection("documents", string(tier))
		return errors.Forbidden("documents_not_allowed",
			fmt.Sprintf("Document uploads are not available on the %s plan. Please upgrade to Pro or Premium.", tier))
	}
	return nil
}

// List returns the user's subscriptions, newest first.
func (s *Service) List(ctx context.Context, userID string) ([]subscription.Subscription, error) {
	subs, err := s.store.ListSubscriptions(ctx, userID)
	if err != nil {
		return nil, errors.Internal("failed_to_list_subscriptions", err)
	}
	return subs, nil
}

// Change switches the user to tier, canceling any active subscription.
func (s *Service) Change(ctx context.Context, userID, rawTier string) (subscription.Subscription, error) {
	tier := subscription.Tier(strings.ToLower(strings.TrimSpace(rawTier)))
	if !tier.Valid() {
		return subscription.Subscription{}, errors.BadRequest("invalid_tier", "")
	}

	if _, err := s.store.CancelActiveSubscriptions(ctx, userID, ""); err != nil {
		return subscription.Subscription{}, errors.Internal("failed_to_update_subscription", err)
	}

	now := s.now()
	sub, err := s.store.CreateSubscription(ctx, subscription.Subscription{
		UserID:             userID,
		Tier:               tier,
		Status:             subscription.StatusActive,
		CurrentPeriodStart: now,
		CurrentPeriodEnd:   now.AddDate(manualPeriod, 0, 0),
	})
	if err != nil {
		return subscription.Subscription{}, errors.Internal("failed_to_update_subscription", err)
	}
	if err := s.SyncProfileTier(ctx, userID); err != nil {
		s.log.WithContext(ctx).WithError(err).Warn("profile tier sync failed")
	}

	s.log.WithContext(ctx).
		WithField("user_id", userID).
		WithField("tier", tier).
		Info("subscription changed")
	return sub, nil
}

// SyncProfileTier copies the effective tier onto the user's profile.
func (s *Service) SyncProfileTier(ctx context.Context, userID string) error {
	tier, err := s.EffectiveTier(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.profiles.SetProfileTier(ctx, userID, tier); err != nil && !stderrors.Is(err, storage.ErrNotFound) {
		return err
	}
	return nil
}

// Sweep marks lapsed active subscriptions past_due and resyncs the affected
// profiles. It returns the number of subscriptions changed.
func (s *Service) Sweep(ctx context.Context) (int, error) {
	lapsed, err := s.store.ListLapsedSubscriptions(ctx, s.now())
	if err != nil {
		return 0, err
	}
	users := make(map[string]struct{})
	changed := 0
	for _, sub := range lapsed {
		sub.Status = subscription.StatusPastDue
		if _, err := s.store.UpdateSubscription(ctx, sub); err != nil {
			s.log.WithError(err).WithField("subscription_id", sub.ID).Warn("mark subscription past due failed")
			continue
		}
		users[sub.UserID] = struct{}{}
		changed++
	}
	for userID := range users {
		if err := s.SyncProfileTier(ctx, userID); err != nil {
			s.log.WithError(err).WithField("user_id", userID).Warn("profile tier sync failed")
		}
	}
	if changed > 0 {
		s.log.WithField("count", changed).Info("lapsed subscriptions marked past due")
	}
	return changed, nil
}
