// Package httpapi exposes the application services over HTTP.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	app "github.com/R3E-Network/fortivo/internal/app"
	"github.com/R3E-Network/fortivo/internal/app/metrics"
	"github.com/R3E-Network/fortivo/internal/errors"
	"github.com/R3E-Network/fortivo/internal/httputil"
	"github.com/R3E-Network/fortivo/internal/middleware"
	"github.com/R3E-Network/fortivo/internal/uploads"
	"github.com/R3E-Network/fortivo/pkg/logger"
)

// Pinger reports database reachability for /health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config holds router settings.
type Config struct {
	CookieName     string
	CookieSecure   bool
	TokenTTL       time.Duration
	AllowedOrigins []string
	RateLimitRPS   float64
	RateLimitBurst int
	MaxUploadBytes int64
	DevBootstrap   bool
	// UploadsDir is reported on /health when blobs live on local disk.
	UploadsDir string
	// Database is nil when the in-memory store is active.
	Database Pinger
	// StorageCircuit is set when blobs go through the Supabase client.
	StorageCircuit CircuitReporter
	Audit    *AuditLog
}

func (c *Config) fillDefaults() {
	if c.CookieName == "" {
		c.CookieName = "fortaivo_token"
	}
	if c.TokenTTL <= 0 {
		c.TokenTTL = 7 * 24 * time.Hour
	}
	if c.RateLimitRPS <= 0 {
		c.RateLimitRPS = 10
	}
	if c.RateLimitBurst <= 0 {
		c.RateLimitBurst = 20
	}
	if c.MaxUploadBytes <= 0 {
		c.MaxUploadBytes = 10 << 20
	}
}

// handler bundles HTTP endpoints for the application services.
type handler struct {
	app      *app.Application
	cfg      Config
	log      *logger.Logger
	upgrader websocket.Upgrader
}

// Handler is the root HTTP handler of the API.
type Handler struct {
	root    http.Handler
	limiter *middleware.RateLimiter
}

// NewHandler builds the router and its middleware chain.
func NewHandler(application *app.Application, cfg Config, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.NewDefault("httpapi")
	}
	cfg.fillDefaults()

	h := &handler{app: application, cfg: cfg, log: log}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     middleware.NewCORSMiddleware(cfg.AllowedOrigins).OriginAllowed,
	}

	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, log.Named("ratelimit"))
	requireAuth := middleware.NewAuthMiddleware(application.Auth, cfg.CookieName, log.Named("auth"))

	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(notFound)
	r.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowed)

	r.HandleFunc("/health", h.health).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	r.PathPrefix(uploads.URLPrefix).Handler(uploads.Handler(application.Blobs)).Methods(http.MethodGet, http.MethodHead)

	authRoutes := r.PathPrefix("/auth").Subrouter()
	authRoutes.Use(limiter.Handler)
	authRoutes.HandleFunc("/signup", h.signup).Methods(http.MethodPost)
	authRoutes.HandleFunc("/login", h.login).Methods(http.MethodPost)
	authRoutes.HandleFunc("/logout", h.logout).Methods(http.MethodPost)
	authRoutes.Handle("/me", requireAuth.Handler(http.HandlerFunc(h.me))).Methods(http.MethodGet)

	if cfg.DevBootstrap {
		r.HandleFunc("/dev/bootstrap", h.devBootstrap).Methods(http.MethodPost)
	}

	// Stripe calls the webhook without a session.
	r.HandleFunc("/api/billing/webhook", h.billingWebhook).Methods(http.MethodPost)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(requireAuth.Handler)

	api.HandleFunc("/profile", h.getProfile).Methods(http.MethodGet)
	api.HandleFunc("/profile", h.updateProfile).Methods(http.MethodPatch)
	api.HandleFunc("/profile/avatar", h.uploadAvatar).Methods(http.MethodPost)

	api.HandleFunc("/assets", h.listAssets).Methods(http.MethodGet)
	api.HandleFunc("/assets", h.createAsset).Methods(http.MethodPost)
	api.HandleFunc("/assets/{id}", h.updateAsset).Methods(http.MethodPatch)
	api.HandleFunc("/assets/{id}", h.deleteAsset).Methods(http.MethodDelete)

	api.HandleFunc("/assets/{assetId}/documents", h.listDocuments).Methods(http.MethodGet)
	api.HandleFunc("/assets/{assetId}/documents", h.uploadDocument).Methods(http.MethodPost)
	api.HandleFunc("/assets/{assetId}/documents/{documentId}", h.deleteDocument).Methods(http.MethodDelete)

	api.HandleFunc("/beneficiaries", h.listBeneficiaries).Methods(http.MethodGet)
	api.HandleFunc("/beneficiaries", h.createBeneficiary).Methods(http.MethodPost)
	api.HandleFunc("/beneficiaries/{id}", h.updateBeneficiary).Methods(http.MethodPatch)
	api.HandleFunc("/beneficiaries/{id}", h.deleteBeneficiary).Methods(http.MethodDelete)

	api.HandleFunc("/subscriptions", h.listSubscriptions).Methods(http.MethodGet)
	api.HandleFunc("/subscriptions", h.changeSubscription).Methods(http.MethodPost)

	api.HandleFunc("/billing/checkout", h.checkout).Methods(http.MethodPost)

	chatRoutes := api.PathPrefix("/chat").Subrouter()
	chatRoutes.Use(limiter.Handler)
	chatRoutes.HandleFunc("", h.complete).Methods(http.MethodPost)
	chatRoutes.HandleFunc("/tools", h.listTools).Methods(http.MethodGet)
	chatRoutes.HandleFunc("/tools/{name}", h.executeTool).Methods(http.MethodPost)
	chatRoutes.HandleFunc("/command", h.executeCommand).Methods(http.MethodPost)
	chatRoutes.HandleFunc("/health", h.chatHealth).Methods(http.MethodGet)
	chatRoutes.HandleFunc("/ws", h.chatSocket).Methods(http.MethodGet)

	api.HandleFunc("/conversations", h.listConversations).Methods(http.MethodGet)
	api.HandleFunc("/conversations", h.createConversation).Methods(http.MethodPost)
	api.HandleFunc("/conversations/{id}", h.getConversation).Methods(http.MethodGet)
	api.HandleFunc("/conversations/{id}", h.updateConversation).Methods(http.MethodPatch)
	api.HandleFunc("/conversations/{id}", h.deleteConversation).Methods(http.MethodDelete)
	api.HandleFunc("/conversations/{id}/messages", h.sendMessage).Methods(http.MethodPost)

	api.HandleFunc("/exchange-rates", h.exchangeRates).Methods(http.MethodGet)
	api.HandleFunc("/exchange-rates/convert", h.convert).Methods(http.MethodGet)

	// Outermost first: recovery, tracing, metrics, CORS.
	var root http.Handler = r
	if cfg.Audit != nil {
		root = cfg.Audit.Wrap(root)
	}
	root = middleware.NewCORSMiddleware(cfg.AllowedOrigins).Handler(root)
	root = metrics.InstrumentHandler(root)
	root = middleware.NewTracingMiddleware(log.Named("http")).Handler(root)
	root = middleware.Recovery(log)(root)

	return &Handler{root: root, limiter: limiter}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.root.ServeHTTP(w, r)
}

// Limiter exposes the rate limiter so the runtime can manage its janitor.
func (h *Handler) Limiter() *middleware.RateLimiter {
	return h.limiter
}

func notFound(w http.ResponseWriter, r *http.Request) {
	httputil.WriteErrorResponse(w, r, http.StatusNotFound, string(errors.CodeNotFound), "", nil)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	httputil.WriteErrorResponse(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "", nil)
}

// userID returns the authenticated user. Routes behind requireAuth always
// have one.
func userID(r *http.Request) string {
	return middleware.GetUserID(r.Context())
}

func (h *handler) fail(w http.ResponseWriter, r *http.Request, err error, fallback errors.ErrorCode) {
	status := httputil.WriteServiceError(w, r, err, fallback)
	if status >= http.StatusInternalServerError {
		h.log.WithContext(r.Context()).WithError(err).WithField("path", r.URL.Path).Error("request failed")
	}
}

func (h *handler) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := httputil.DecodeJSON(w, r, v); err != nil {
		httputil.WriteServiceError(w, r, err, "invalid_json")
		return false
	}
	return true
}
