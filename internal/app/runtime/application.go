// Package runtime builds the production wiring from configuration: stores,
// providers, the HTTP server and the background services around them.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	app "github.com/R3E-Network/fortivo/internal/app"
	"github.com/R3E-Network/fortivo/internal/app/domain/subscription"
	"github.com/R3E-Network/fortivo/internal/app/httpapi"
	"github.com/R3E-Network/fortivo/internal/app/services/auth"
	"github.com/R3E-Network/fortivo/internal/app/services/billing"
	"github.com/R3E-Network/fortivo/internal/app/services/chat"
	"github.com/R3E-Network/fortivo/internal/app/services/exchange"
	"github.com/R3E-Network/fortivo/internal/app/storage/postgres"
	"github.com/R3E-Network/fortivo/internal/config"
	"github.com/R3E-Network/fortivo/internal/llm"
	"github.com/R3E-Network/fortivo/internal/middleware"
	"github.com/R3E-Network/fortivo/internal/platform/migrations"
	"github.com/R3E-Network/fortivo/internal/uploads"
	"github.com/R3E-Network/fortivo/pkg/logger"
	supabase "github.com/R3E-Network/fortivo/supabase/client"
)

// Application owns the process-level resources and the HTTP listener.
type Application struct {
	cfg     *config.Config
	log     *logger.Logger
	app     *app.Application
	handler *httpapi.Handler
	server  *httpServer

	db    *sqlx.DB
	redis *redis.Client
	audit *httpapi.FileAuditSink
}

// NewApplication loads configuration from path (or FORTIVO_CONFIG) and builds
// the application.
func NewApplication(path string) (*Application, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return New(cfg, logger.New(cfg.Logging))
}

// New builds the application from cfg. A nil log is created from cfg.
func New(cfg *config.Config, log *logger.Logger) (*Application, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if log == nil {
		log = logger.New(cfg.Logging)
	}
	if cfg.UsingDefaultSecret() {
		log.Warn("JWT_SECRET is not set; using the development secret")
	}

	rt := &Application{cfg: cfg, log: log}
	ok := false
	defer func() {
		if !ok {
			rt.closeResources()
		}
	}()

	stores, pinger, err := rt.buildStores()
	if err != nil {
		return nil, fmt.Errorf("configure stores: %w", err)
	}

	var memRevocations *auth.MemoryRevocations
	var revocations auth.RevocationList
	if cfg.Redis.URL.IsSet() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		client, err := auth.DialRedis(ctx, cfg.Redis.URL.Value())
		cancel()
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		rt.redis = client
		revocations = auth.NewRedisRevocations(client)
	} else {
		memRevocations = auth.NewMemoryRevocations()
		revocations = memRevocations
	}

	blobs, diskDir, err := buildBlobs(cfg.Uploads)
	if err != nil {
		return nil, fmt.Errorf("configure uploads: %w", err)
	}

	provider, agent, err := buildProvider(cfg.LLM, log)
	if err != nil {
		return nil, fmt.Errorf("configure llm: %w", err)
	}

	opts := app.Options{
		Tokens:        auth.NewTokenIssuer(cfg.Auth.JWTSecret.Value(), cfg.Auth.TokenTTL),
		Revocations:   revocations,
		Blobs:         blobs,
		LLM:           provider,
		Agent:         agent,
		MaxToolRounds: cfg.LLM.MaxToolRounds,
		WebhookSecret: cfg.Billing.WebhookSecret.Value(),
		Prices:        configuredPrices(cfg.Billing),
		RatesSchedule: cfg.ExchangeRates.Schedule,
		SweepSchedule: cfg.Jobs.SubscriptionSweepSchedule,
	}
	if cfg.Billing.Enabled() {
		opts.BillingGateway = billing.NewStripeGateway(cfg.Billing.StripeSecretKey.Value())
	}
	if cfg.ExchangeRates.URL != "" {
		opts.RatesFetcher = exchange.NewHTTPFetcher(cfg.ExchangeRates.URL, cfg.ExchangeRates.APIKey.Value())
	}

	application, err := app.New(stores, opts, log)
	if err != nil {
		return nil, err
	}
	rt.app = application

	sink, err := httpapi.NewFileAuditSink(cfg.Server.AuditLog)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	rt.audit = sink
	var auditSink httpapi.AuditSink
	if sink != nil {
		auditSink = sink
	}

	hcfg := httpapi.Config{
		CookieName:     cfg.Auth.CookieName,
		CookieSecure:   cfg.Auth.CookieSecure,
		TokenTTL:       cfg.Auth.TokenTTL,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		RateLimitRPS:   float64(cfg.RateLimit.RequestsPerSecond),
		RateLimitBurst: cfg.RateLimit.Burst,
		MaxUploadBytes: cfg.Uploads.MaxBytes,
		DevBootstrap:   cfg.Auth.DevBootstrap,
		UploadsDir:     diskDir,
		Audit:          httpapi.NewAuditLog(0, auditSink, log.Named("audit")),
	}
	if pinger != nil {
		hcfg.Database = pinger
	}
	if remote, ok := blobs.(*uploads.SupabaseStore); ok {
		hcfg.StorageCircuit = remote.Breaker()
	}
	rt.handler = httpapi.NewHandler(application, hcfg, log.Named("http"))

	rt.server = newHTTPServer(cfg.Server, rt.handler, log.Named("http"))
	if err := application.Attach(newJanitor(rt.handler.Limiter(), memRevocations)); err != nil {
		return nil, err
	}
	if err := application.Attach(rt.server); err != nil {
		return nil, err
	}

	ok = true
	return rt, nil
}

// App exposes the wired domain application.
func (a *Application) App() *app.Application { return a.app }

// Handler exposes the HTTP handler.
func (a *Application) Handler() http.Handler { return a.handler }

// Addr returns the bound listen address once running.
func (a *Application) Addr() string { return a.server.Addr() }

// Run starts all services and blocks until ctx is cancelled or the listener
// fails.
func (a *Application) Run(ctx context.Context) error {
	if err := a.app.Start(ctx); err != nil {
		return err
	}
	a.log.WithField("addr", a.server.Addr()).Info("fortivo listening")
	select {
	case <-ctx.Done():
		return nil
	case err := <-a.server.errs:
		return err
	}
}

// Shutdown stops services in reverse order and releases connections.
func (a *Application) Shutdown(ctx context.Context) error {
	timeout := a.cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := a.app.Stop(shutdownCtx)
	a.closeResources()
	return err
}

func (a *Application) closeResources() {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.WithError(err).Warn("error closing database connection")
		}
		a.db = nil
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.WithError(err).Warn("error closing redis connection")
		}
		a.redis = nil
	}
	if a.audit != nil {
		_ = a.audit.Close()
		a.audit = nil
	}
}

func (a *Application) buildStores() (app.Stores, httpapi.Pinger, error) {
	if !a.cfg.Database.DSN.IsSet() {
		a.log.Warn("DATABASE_URL is not set; data is kept in memory")
		return app.Stores{}, nil, nil
	}
	db, err := openDatabase(a.cfg.Database)
	if err != nil {
		return app.Stores{}, nil, err
	}
	a.db = db
	if a.cfg.Database.MigrateOnStart {
		if err := migrations.Apply(db.DB); err != nil {
			return app.Stores{}, nil, fmt.Errorf("apply migrations: %w", err)
		}
	}
	store := postgres.New(db)
	return app.Stores{
		Users:         store,
		Profiles:      store,
		Assets:        store,
		Beneficiaries: store,
		Documents:     store,
		Subscriptions: store,
		Billing:       store,
		Conversations: store,
		ExchangeRates: store,
	}, store, nil
}

func openDatabase(cfg config.DatabaseConfig) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", cfg.DSN.Value())
	if err != nil {
		return nil, err
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// buildBlobs returns the blob store and, for the disk backend, its root.
func buildBlobs(cfg config.UploadsConfig) (uploads.Store, string, error) {
	if cfg.Supabase.Enabled() {
		client, err := supabase.New(supabase.Config{
			URL:     cfg.Supabase.URL,
			APIKey:  cfg.Supabase.ServiceKey.Value(),
			Breaker: supabase.DefaultCircuitBreakerConfig(),
		})
		if err != nil {
			return nil, "", err
		}
		return uploads.NewSupabaseStore(client, cfg.Supabase.Bucket, cfg.MaxBytes), "", nil
	}
	disk, err := uploads.NewDiskStore(cfg.Dir, cfg.MaxBytes)
	if err != nil {
		return nil, "", err
	}
	return disk, disk.Root(), nil
}

func buildProvider(cfg config.LLMConfig, log *logger.Logger) (llm.Provider, chat.AgentInvoker, error) {
	opts := llm.Options{Temperature: cfg.Temperature, MaxTokens: cfg.MaxTokens}
	switch cfg.Provider {
	case config.ProviderBedrock:
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		awsCfg, err := llm.LoadAWSConfig(ctx, cfg.AWSRegion)
		if err != nil {
			return nil, nil, err
		}
		provider := llm.NewBedrockFromConfig(awsCfg, cfg.BedrockModelID, opts)
		if cfg.BedrockAgentID == "" {
			return provider, nil, nil
		}
		log.WithField("agent_id", cfg.BedrockAgentID).Info("chat answers through the bedrock agent")
		return provider, llm.NewAgentFromConfig(awsCfg, cfg.BedrockAgentID, cfg.BedrockAgentAliasID), nil
	case config.ProviderOllama:
		return llm.NewOllama(cfg.OllamaURL, cfg.OllamaModel, opts), nil, nil
	default:
		return llm.None{}, nil, nil
	}
}

func configuredPrices(cfg config.BillingConfig) []subscription.Price {
	var prices []subscription.Price
	if cfg.ProPriceID != "" {
		prices = append(prices, subscription.Price{ID: cfg.ProPriceID, Tier: subscription.TierPro})
	}
	if cfg.PremiumPriceID != "" {
		prices = append(prices, subscription.Price{ID: cfg.PremiumPriceID, Tier: subscription.TierPremium})
	}
	return prices
}

// httpServer runs the listener as a lifecycle service.
type httpServer struct {
	srv  *http.Server
	log  *logger.Logger
	addr string
	errs chan error
}

func newHTTPServer(cfg config.ServerConfig, handler http.Handler, log *logger.Logger) *httpServer {
	return &httpServer{
		srv: &http.Server{
			Addr:              cfg.Addr(),
			Handler:           handler,
			ReadTimeout:       cfg.ReadTimeout,
			ReadHeaderTimeout: 10 * time.Second,
			WriteTimeout:      cfg.WriteTimeout,
		},
		log:  log,
		addr: cfg.Addr(),
		errs: make(chan error, 1),
	}
}

func (s *httpServer) Name() string { return "http" }

// Addr reports the bound address after Start.
func (s *httpServer) Addr() string { return s.addr }

func (s *httpServer) Start(context.Context) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.srv.Addr, err)
	}
	s.addr = ln.Addr().String()
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.WithError(err).Error("http server stopped")
			s.errs <- err
		}
	}()
	return nil
}

func (s *httpServer) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// janitor prunes per-client limiters and expired in-memory revocations.
type janitor struct {
	limiter     *middleware.RateLimiter
	revocations *auth.MemoryRevocations
	interval    time.Duration
	stop        chan struct{}
}

func newJanitor(limiter *middleware.RateLimiter, revocations *auth.MemoryRevocations) *janitor {
	return &janitor{limiter: limiter, revocations: revocations, interval: time.Minute}
}

func (j *janitor) Name() string { return "janitor" }

func (j *janitor) Start(context.Context) error {
	j.stop = make(chan struct{})
	if j.limiter != nil {
		j.limiter.StartCleanup(j.interval, j.stop)
	}
	if j.revocations != nil {
		go func(stop <-chan struct{}) {
			ticker := time.NewTicker(j.interval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					j.revocations.Prune()
				case <-stop:
					return
				}
			}
		}(j.stop)
	}
	return nil
}

func (j *janitor) Stop(context.Context) error {
	if j.stop != nil {
		close(j.stop)
		j.stop = nil
	}
	return nil
}
