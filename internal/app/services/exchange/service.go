// Package exchange serves currency rates and conversions and keeps the
// stored rate snapshot fresh.
package exchange

import (
	"context"
	stderrors "errors"
	"strconv"
	"strings"
	"time"

	"github.com/R3E-Network/fortivo/internal/app/domain/currency"
	"github.com/R3E-Network/fortivo/internal/app/storage"
	"github.com/R3E-Network/fortivo/internal/errors"
	"github.com/R3E-Network/fortivo/pkg/logger"
)

// Service reads and refreshes exchange rates.
type Service struct {
	store   storage.ExchangeRateStore
	fetcher Fetcher
	log     *logger.Logger
	now     func() time.Time
}

// New constructs the service. fetcher may be nil when no rate source is
// configured; Refresh is then a no-op.
func New(store storage.ExchangeRateStore, fetcher Fetcher, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("exchange")
	}
	return &Service{store: store, fetcher: fetcher, log: log, now: time.Now}
}

// RatesView is the rates payload.
type RatesView struct {
	Base       currency.Code       `json:"base"`
	Rates      currency.Rates      `json:"rates"`
	Currencies []currency.Currency `json:"currencies"`
	FetchedAt  *time.Time          `json:"fetched_at"`
}

// Rates returns USD:1 merged with the latest stored snapshot.
func (s *Service) Rates(ctx context.Context) (RatesView, error) {
	view := RatesView{Base: currency.USD, Rates: currency.Rates{currency.USD: 1}, Currencies: currency.Supported}
	snap, err := s.store.LatestRates(ctx)
	switch {
	case stderrors.Is(err, storage.ErrNotFound):
		return view, nil
	case err != nil:
		return RatesView{}, errors.Internal("failed_to_fetch_rates", err)
	}
	for code, rate := range snap.Rates {
		view.Rates[code] = rate
	}
	view.Rates[currency.USD] = 1
	fetched := snap.FetchedAt
	view.FetchedAt = &fetched
	return view, nil
}

// Conversion is the result of converting an amount.
type Conversion struct {
	Amount    float64       `json:"amount"`
	From      currency.Code `json:"from"`
	To        currency.Code `json:"to"`
	Result    float64       `json:"result"`
	Formatted string        `json:"formatted"`
}

// Convert converts the textual amount between two currency codes using the
// current rates.
func (s *Service) Convert(ctx context.Context, amount, from, to string) (Conversion, error) {
	value, err := strconv.ParseFloat(strings.TrimSpace(amount), 64)
	if err != nil {
		return Conversion{}, errors.BadRequest("invalid_amount", "amount must be a number")
	}
	fromCode := currency.Code(strings.ToUpper(strings.TrimSpace(from)))
	toCode := currency.Code(strings.ToUpper(strings.TrimSpace(to)))
	if fromCode == "" {
		fromCode = currency.USD
	}
	if toCode == "" {
		return Conversion{}, errors.BadRequest(errors.CodeMissingFields, "to is required")
	}

	view, err := s.Rates(ctx)
	if err != nil {
		return Conversion{}, err
	}
	result, err := currency.Convert(value, fromCode, toCode, view.Rates)
	if err != nil {
		return Conversion{}, errors.BadRequest("unsupported_currency", err.Error())
	}
	return Conversion{
		Amount:    value,
		From:      fromCode,
		To:        toCode,
		Result:    result,
		Formatted: currency.Format(result, toCode),
	}, nil
}

// Refresh fetches rates and stores them as the latest snapshot.
func (s *Service) Refresh(ctx context.Context) error {
	if s.fetcher == nil {
		return nil
	}
	rates, err := s.fetcher.Fetch(ctx)
	if err != nil {
		return err
	}
	rates[currency.USD] = 1
	if err := s.store.SaveRates(ctx, currency.Snapshot{Rates: rates, FetchedAt: s.now().UTC()}); err != nil {
		return err
	}
	s.log.WithContext(ctx).WithField("currencies", len(rates)).Info("exchange rates refreshed")
	return nil
}
