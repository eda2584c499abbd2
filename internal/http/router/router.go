// Package router arma el http.Handler completo del servicio.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	authctrl "github.com/dropDatabas3/linerelay/internal/http/controllers/auth"
	healthctrl "github.com/dropDatabas3/linerelay/internal/http/controllers/health"
	messagectrl "github.com/dropDatabas3/linerelay/internal/http/controllers/message"
	webhookctrl "github.com/dropDatabas3/linerelay/internal/http/controllers/webhook"
	mw "github.com/dropDatabas3/linerelay/internal/http/middlewares"
	"github.com/dropDatabas3/linerelay/internal/metrics"
	"github.com/dropDatabas3/linerelay/internal/rate"
)

// Deps contains all dependencies for the router.
type Deps struct {
	// Controllers
	Auth    *authctrl.Controllers
	Webhook *webhookctrl.WebhookController
	Message *messagectrl.MessageController
	Health  *healthctrl.HealthController

	// /metrics handler (promhttp). Nil deshabilita el endpoint.
	Metrics http.Handler

	// Admin API
	AdminAPIKeyHash string

	// Rate limiting (nil ⇒ sin límite)
	SendLimiter     rate.Limiter
	CallbackLimiter rate.Limiter
	RateWhitelist   []string

	// CORS
	AllowedOrigins []string
}

// New construye el router con todos los middlewares y rutas.
func New(deps Deps) http.Handler {
	r := chi.NewRouter()

	sendLimiter := deps.SendLimiter
	if sendLimiter == nil {
		sendLimiter = rate.Noop{}
	}
	callbackLimiter := deps.CallbackLimiter
	if callbackLimiter == nil {
		callbackLimiter = rate.Noop{}
	}

	r.Use(mw.WithRequestID())
	r.Use(mw.WithRecover())
	r.Use(mw.WithLogging())
	r.Use(metrics.WithHTTP)
	r.Use(mw.WithCORS(deps.AllowedOrigins))

	// ===========================================================================
	// Health / Metrics
	// ===========================================================================
	if deps.Health != nil {
		r.Get("/healthz", deps.Health.Live)
		r.Get("/readyz", deps.Health.Ready)
	}
	if deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics)
	}

	// ===========================================================================
	// LINE Login
	// ===========================================================================
	if deps.Auth != nil {
		r.Group(func(g chi.Router) {
			g.Use(mw.WithNoStore())
			g.Use(mw.WithRateLimit(callbackLimiter, deps.RateWhitelist))
			g.Get("/auth/line/start", deps.Auth.Start.Start)
			g.Post("/line-callback", deps.Auth.Callback.Callback)
		})
	}

	// ===========================================================================
	// Messaging API webhook
	// ===========================================================================
	if deps.Webhook != nil {
		r.Post("/webhook", deps.Webhook.Receive)
	}

	// ===========================================================================
	// Admin (API key + rate limit)
	// ===========================================================================
	if deps.Message != nil {
		r.Group(func(g chi.Router) {
			g.Use(mw.RequireAdminKey(deps.AdminAPIKeyHash))
			g.Use(mw.WithRateLimit(sendLimiter, deps.RateWhitelist))
			g.Post("/send-message", deps.Message.Send)
			g.Get("/users", deps.Message.ListUsers)
			g.Get("/messages", deps.Message.ListMessages)
		})
	}

	return r
}
