package routes

import (
	"encoding/json"
	"net/http"
	"time"

	"paylink/config"
	"paylink/controllers"
	"paylink/middleware"
	"paylink/services"
	"paylink/utils"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	redis "github.com/redis/go-redis/v9"
)

// Deps carries everything the router wires into controllers and middleware.
type Deps struct {
	Service       *services.Service
	Checkout      *services.Checkout
	Tokens        *utils.Tokens
	Redis         *redis.Client
	CronKey       string
	WebhookSecret string
	HTTP          config.HTTPConfig
	RateLimit     config.RateLimitConfig
}

func optionsHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func InitRouter(d Deps) *mux.Router {
	r := mux.NewRouter()

	// Health check endpoint for container health checks
	r.Handle("/health", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"status":    "healthy",
			"timestamp": time.Now().Unix(),
			"service":   "paylink-api",
		})
	})).Methods(http.MethodGet)

	r.Use(func(next http.Handler) http.Handler {
		return handlers.CORS(
			handlers.AllowedOrigins(d.HTTP.Origins()),
			handlers.AllowedMethods([]string{"GET", "POST", "DELETE", "OPTIONS", "PATCH"}),
			handlers.AllowedHeaders([]string{"Content-Type", "Authorization", "X-CRON-KEY", "X-Requested-With", "X-Request-ID"}),
			handlers.AllowCredentials(),
		)(next)
	})

	api := r.PathPrefix("/v1").Subrouter()

	// catch-all OPTIONS handler for CORS preflight
	api.PathPrefix("/").HandlerFunc(optionsHandler).Methods(http.MethodOptions)

	proxies := d.HTTP.Proxies()
	window := d.RateLimit.Window()
	auth := middleware.NewAuth(d.Tokens).Middleware
	issuers := middleware.RequireRole(services.RolePayee, services.RoleAdmin)
	createLimiter := middleware.NewRateLimiter(d.Redis, "links:create", d.RateLimit.CreatePerWindow, window, proxies).Middleware
	redeemLimiter := middleware.NewRateLimiter(d.Redis, "pay", d.RateLimit.RedeemPerWindow, window, proxies).Middleware
	cronLimiter := middleware.NewRateLimiter(d.Redis, "cron", 1000, time.Hour, proxies).Middleware
	webhookLimiter := middleware.NewRateLimiter(d.Redis, "callback", 500, time.Hour, proxies).Middleware

	links := controllers.NewLinkController(d.Service)
	pay := controllers.NewPayController(d.Service, d.Checkout)
	txns := controllers.NewTransactionController(d.Service)
	callback := controllers.NewCallbackController(d.Service, d.WebhookSecret)
	cron := controllers.NewCronController(d.Service)

	handle := func(path string, h http.HandlerFunc, method string, mws ...func(http.Handler) http.Handler) {
		api.Handle(path, middleware.Chain(h, mws...)).Methods(method)
	}

	// Issuer endpoints
	handle("/links", links.Create, http.MethodPost, auth, issuers, createLimiter)
	handle("/links", links.List, http.MethodGet, auth, issuers)
	handle("/links/{id:[0-9]+}", links.Detail, http.MethodGet, auth, issuers)
	handle("/links/{id:[0-9]+}/status", links.UpdateStatus, http.MethodPatch, auth, issuers)
	handle("/links/{id:[0-9]+}", links.Delete, http.MethodDelete, auth, issuers)

	// Payer endpoints
	handle("/pay/{token}", pay.Fetch, http.MethodGet, auth, redeemLimiter)
	handle("/pay/{token}", pay.Checkout, http.MethodPost, auth, redeemLimiter)

	// Ledger
	handle("/transactions", txns.History, http.MethodGet, auth)
	handle("/transactions/unacknowledged", txns.Unacknowledged, http.MethodGet, auth, issuers)
	handle("/transactions/{id:[0-9]+}/acknowledge", txns.Acknowledge, http.MethodPost, auth, issuers)

	// Processor webhook (signature verified in the controller)
	handle("/callback/payments", callback.Payments, http.MethodPost, webhookLimiter)

	// Cron endpoint for expired links (protected via X-CRON-KEY header)
	handle("/cron/expired-links", cron.ExpiredLinks, http.MethodPost, cronLimiter, middleware.RequireCronKey(d.CronKey))

	return r
}
