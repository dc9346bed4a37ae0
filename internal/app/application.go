package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/R3E-Network/fortivo/internal/app/domain/subscription"
	"github.com/R3E-Network/fortivo/internal/app/scheduler"
	"github.com/R3E-Network/fortivo/internal/app/services/assets"
	"github.com/R3E-Network/fortivo/internal/app/services/auth"
	"github.com/R3E-Network/fortivo/internal/app/services/beneficiaries"
	"github.com/R3E-Network/fortivo/internal/app/services/billing"
	"github.com/R3E-Network/fortivo/internal/app/services/chat"
	"github.com/R3E-Network/fortivo/internal/app/services/documents"
	"github.com/R3E-Network/fortivo/internal/app/services/exchange"
	"github.com/R3E-Network/fortivo/internal/app/services/profiles"
	"github.com/R3E-Network/fortivo/internal/app/services/subscriptions"
	"github.com/R3E-Network/fortivo/internal/app/storage"
	"github.com/R3E-Network/fortivo/internal/app/storage/memory"
	"github.com/R3E-Network/fortivo/internal/app/system"
	"github.com/R3E-Network/fortivo/internal/llm"
	"github.com/R3E-Network/fortivo/internal/uploads"
	"github.com/R3E-Network/fortivo/pkg/logger"
)

// Stores encapsulates persistence dependencies. Nil stores default to the
// in-memory implementation.
type Stores struct {
	Users         storage.UserStore
	Profiles      storage.ProfileStore
	Assets        storage.AssetStore
	Beneficiaries storage.BeneficiaryStore
	Documents     storage.DocumentStore
	Subscriptions storage.SubscriptionStore
	Billing       storage.BillingStore
	Conversations storage.ConversationStore
	ExchangeRates storage.ExchangeRateStore
}

func (s *Stores) fillDefaults() {
	mem := memory.New()
	if s.Users == nil {
		s.Users = mem
	}
	if s.Profiles == nil {
		s.Profiles = mem
	}
	if s.Assets == nil {
		s.Assets = mem
	}
	if s.Beneficiaries == nil {
		s.Beneficiaries = mem
	}
	if s.Documents == nil {
		s.Documents = mem
	}
	if s.Subscriptions == nil {
		s.Subscriptions = mem
	}
	if s.Billing == nil {
		s.Billing = mem
	}
	if s.Conversations == nil {
		s.Conversations = mem
	}
	if s.ExchangeRates == nil {
		s.ExchangeRates = mem
	}
}

// Options carries the integrations selected by the runtime. Only Blobs and
// Tokens are required.
type Options struct {
	Tokens      *auth.TokenIssuer
	Revocations auth.RevocationList
	Blobs       uploads.Store

	LLM           llm.Provider
	Agent         chat.AgentInvoker
	MaxToolRounds int

	BillingGateway billing.Gateway
	WebhookSecret  string
	Prices         []subscription.Price

	RatesFetcher  exchange.Fetcher
	RatesSchedule string
	SweepSchedule string
}

// Application ties domain services together and manages their lifecycle.
type Application struct {
	manager *system.Manager
	log     *logger.Logger

	Blobs     uploads.Store
	Scheduler *scheduler.Scheduler

	Auth          *auth.Service
	Profiles      *profiles.Service
	Subscriptions *subscriptions.Service
	Assets        *assets.Service
	Beneficiaries *beneficiaries.Service
	Documents     *documents.Service
	Billing       *billing.Service
	Chat          *chat.Service
	Exchange      *exchange.Service

	prices []subscription.Price
}

// New builds a fully initialised application with the provided stores.
func New(stores Stores, opts Options, log *logger.Logger) (*Application, error) {
	if log == nil {
		log = logger.NewDefault("app")
	}
	if opts.Blobs == nil {
		return nil, errors.New("blob store is required")
	}
	if opts.Tokens == nil {
		return nil, errors.New("token issuer is required")
	}
	stores.fillDefaults()

	authService := auth.New(stores.Users, stores.Profiles, opts.Tokens, opts.Revocations, log.Named("auth"))
	profileService := profiles.New(stores.Profiles, log.Named("profiles"))
	subService := subscriptions.New(stores.Subscriptions, stores.Profiles, stores.Assets, stores.Beneficiaries, log.Named("subscriptions"))
	assetService := assets.New(stores.Assets, stores.Beneficiaries, stores.Documents, opts.Blobs, subService, log.Named("assets"))
	beneficiaryService := beneficiaries.New(stores.Beneficiaries, stores.Assets, subService, log.Named("beneficiaries"))
	documentService := documents.New(stores.Documents, stores.Assets, opts.Blobs, subService, log.Named("documents"))
	billingService := billing.New(opts.BillingGateway, opts.WebhookSecret, billing.Stores{
		Users:         stores.Users,
		Subscriptions: stores.Subscriptions,
		Billing:       stores.Billing,
	}, subService, log.Named("billing"))

	tools := chat.NewTools(assetService, beneficiaryService, profileService)
	commands := chat.NewCommands(assetService, beneficiaryService)
	chatService := chat.New(opts.LLM, tools, commands, stores.Conversations, chat.Options{
		Agent:         opts.Agent,
		MaxToolRounds: opts.MaxToolRounds,
	}, log.Named("chat"))

	exchangeService := exchange.New(stores.ExchangeRates, opts.RatesFetcher, log.Named("exchange"))

	sched := scheduler.New(log.Named("scheduler"))
	if opts.SweepSchedule != "" {
		if err := sched.Add(scheduler.SubscriptionSweep(opts.SweepSchedule, subService)); err != nil {
			return nil, fmt.Errorf("register subscription sweep: %w", err)
		}
	}
	if opts.RatesFetcher != nil && opts.RatesSchedule != "" {
		if err := sched.Add(scheduler.ExchangeRateRefresh(opts.RatesSchedule, exchangeService)); err != nil {
			return nil, fmt.Errorf("register exchange rate refresh: %w", err)
		}
	}

	manager := system.NewManager(log.Named("system"))
	if err := manager.Register(sched); err != nil {
		return nil, fmt.Errorf("register %s: %w", sched.Name(), err)
	}

	prices := append([]subscription.Price(nil), subscription.DefaultPrices...)
	prices = append(prices, opts.Prices...)

	return &Application{
		manager:       manager,
		log:           log,
		Blobs:         opts.Blobs,
		Scheduler:     sched,
		Auth:          authService,
		Profiles:      profileService,
		Subscriptions: subService,
		Assets:        assetService,
		Beneficiaries: beneficiaryService,
		Documents:     documentService,
		Billing:       billingService,
		Chat:          chatService,
		Exchange:      exchangeService,
		prices:        prices,
	}, nil
}

// Attach registers an additional lifecycle-managed service. Call before Start.
func (a *Application) Attach(service system.Service) error {
	return a.manager.Register(service)
}

// Services lists the registered lifecycle services in start order.
func (a *Application) Services() []string {
	return a.manager.Services()
}

// Start seeds reference data and begins all registered services.
func (a *Application) Start(ctx context.Context) error {
	seedCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := a.Billing.SeedPrices(seedCtx, a.prices...); err != nil {
		return fmt.Errorf("seed stripe prices: %w", err)
	}
	if err := a.Exchange.Refresh(seedCtx); err != nil {
		a.log.WithError(err).Warn("initial exchange rate refresh failed")
	}
	return a.manager.Start(ctx)
}

// Stop stops all services.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}
