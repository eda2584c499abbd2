// Package server arma todas las dependencias del servicio y expone el
// http.Handler listo para servir.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/dropDatabas3/linerelay/internal/cache"
	memcache "github.com/dropDatabas3/linerelay/internal/cache/memory"
	redcache "github.com/dropDatabas3/linerelay/internal/cache/redis"
	"github.com/dropDatabas3/linerelay/internal/config"
	authctrl "github.com/dropDatabas3/linerelay/internal/http/controllers/auth"
	healthctrl "github.com/dropDatabas3/linerelay/internal/http/controllers/health"
	messagectrl "github.com/dropDatabas3/linerelay/internal/http/controllers/message"
	webhookctrl "github.com/dropDatabas3/linerelay/internal/http/controllers/webhook"
	"github.com/dropDatabas3/linerelay/internal/http/router"
	authsvc "github.com/dropDatabas3/linerelay/internal/http/services/auth"
	messagesvc "github.com/dropDatabas3/linerelay/internal/http/services/message"
	webhooksvc "github.com/dropDatabas3/linerelay/internal/http/services/webhook"
	"github.com/dropDatabas3/linerelay/internal/jwt"
	msgline "github.com/dropDatabas3/linerelay/internal/messaging/line"
	"github.com/dropDatabas3/linerelay/internal/metrics"
	oidcline "github.com/dropDatabas3/linerelay/internal/oauth/line"
	"github.com/dropDatabas3/linerelay/internal/observability/logger"
	"github.com/dropDatabas3/linerelay/internal/rate"
	"github.com/dropDatabas3/linerelay/internal/scheduler"
	"github.com/dropDatabas3/linerelay/internal/security/secretbox"
	"github.com/dropDatabas3/linerelay/internal/store"
	memstore "github.com/dropDatabas3/linerelay/internal/store/memory"
	pgstore "github.com/dropDatabas3/linerelay/internal/store/pg"
	"github.com/dropDatabas3/linerelay/migrations"

	"github.com/jackc/pgx/v5/pgxpool"
)

// App agrupa lo que el proceso necesita para correr: el handler HTTP, el
// sweeper de jobs programados (nil si está deshabilitado) y el cleanup.
type App struct {
	Handler http.Handler
	Sweeper *scheduler.Sweeper
	Cleanup func() error
}

// Build construye el grafo completo de dependencias a partir de la config.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	log := logger.L().With(logger.Component("server.build"))

	// ===========================================================================
	// Secretos
	// ===========================================================================
	loginSecret, err := secretbox.Resolve(cfg.Line.Login.ChannelSecret)
	if err != nil {
		return nil, fmt.Errorf("server: resolve line login secret: %w", err)
	}
	messagingToken, err := secretbox.Resolve(cfg.Line.Messaging.ChannelAccessToken)
	if err != nil {
		return nil, fmt.Errorf("server: resolve messaging token: %w", err)
	}
	messagingSecret, err := secretbox.Resolve(cfg.Line.Messaging.ChannelSecret)
	if err != nil {
		return nil, fmt.Errorf("server: resolve messaging secret: %w", err)
	}
	jwtSeed, err := secretbox.Resolve(cfg.JWT.Ed25519Seed)
	if err != nil {
		return nil, fmt.Errorf("server: resolve jwt seed: %w", err)
	}

	// ===========================================================================
	// Cache (state/nonce) y rate limiter
	// ===========================================================================
	var (
		authCache cache.Cache
		redisC    *redcache.Cache
	)
	switch cfg.Cache.Kind {
	case "redis":
		redisC = redcache.New(cfg.Cache.Redis.Addr, cfg.Cache.Redis.DB, cfg.Cache.Redis.Prefix)
		authCache = redisC
	default:
		authCache = memcache.New(config.Dur(cfg.Cache.Memory.DefaultTTL, 10*time.Minute))
	}

	var (
		sendLimiter     rate.Limiter = rate.Noop{}
		callbackLimiter rate.Limiter = rate.Noop{}
	)
	if cfg.Rate.Enabled && redisC != nil {
		if cfg.Rate.Send.Limit > 0 {
			sendLimiter = rate.NewRedisLimiter(
				redisC.Client(),
				"rl:send:",
				cfg.Rate.Send.Limit,
				config.Dur(cfg.Rate.Send.Window, time.Minute),
			)
		}
		if cfg.Rate.Callback.Limit > 0 {
			callbackLimiter = rate.NewRedisLimiter(
				redisC.Client(),
				"rl:cb:",
				cfg.Rate.Callback.Limit,
				config.Dur(cfg.Rate.Callback.Window, time.Minute),
			)
		}
	}

	// ===========================================================================
	// Storage
	// ===========================================================================
	var (
		st      store.Store
		pool    *pgxpool.Pool
		cleanup = func() error { return nil }
	)
	switch cfg.Storage.Driver {
	case "postgres":
		pg, err := pgstore.New(ctx, cfg.Storage.DSN, pgstore.Config{
			MaxOpenConns:    cfg.Storage.Postgres.MaxOpenConns,
			ConnMaxLifetime: cfg.Storage.Postgres.ConnMaxLifetime,
		})
		if err != nil {
			return nil, fmt.Errorf("server: postgres: %w", err)
		}
		applied, err := pgstore.RunMigrations(ctx, pg.Pool(), migrations.Postgres, "postgres")
		if err != nil {
			pg.Close()
			return nil, fmt.Errorf("server: migrations: %w", err)
		}
		if applied > 0 {
			log.Info("migrations applied", logger.Count(applied))
		}
		st = pg
		pool = pg.Pool()
		cleanup = func() error { pg.Close(); return nil }
	default:
		st = memstore.New()
	}

	// ===========================================================================
	// Clientes LINE
	// ===========================================================================
	oidc := oidcline.New(cfg.Line.Login.ChannelID, loginSecret, cfg.Line.Login.CallbackURL)
	messaging := msgline.NewClient(messagingToken)

	// ===========================================================================
	// Credencial de sesión (opcional)
	// ===========================================================================
	var issuer authsvc.CredentialIssuer
	if jwtSeed != "" {
		iss, err := jwt.NewIssuer(cfg.JWT.Issuer, cfg.JWT.Audience, jwtSeed,
			config.Dur(cfg.JWT.AccessTTL, time.Hour))
		if err != nil {
			return nil, fmt.Errorf("server: jwt issuer: %w", err)
		}
		issuer = iss
	} else {
		log.Warn("jwt seed not configured, login responses will omit customToken")
	}

	// ===========================================================================
	// Servicios
	// ===========================================================================
	sessions := authsvc.NewSessionStore(authCache, config.Dur(cfg.Auth.SessionTTL, 10*time.Minute))

	startSvc := authsvc.NewStartService(authsvc.StartDeps{OIDC: oidc, Sessions: sessions})
	callbackSvc := authsvc.NewCallbackService(authsvc.CallbackDeps{
		Provider:   oidc,
		Sessions:   sessions,
		Identities: st,
		Issuer:     issuer,
	})

	routerSvc := webhooksvc.NewRouterService(webhooksvc.RouterDeps{
		Messaging:  messaging,
		Recipients: st,
	})

	dispatcher := messagesvc.NewDispatcher(
		messaging,
		cfg.Dispatch.WindowSize,
		config.Dur(cfg.Dispatch.WindowPause, 100*time.Millisecond),
		config.Dur(cfg.Dispatch.PushTimeout, 10*time.Second),
	)
	jobSvc := messagesvc.NewJobService(messagesvc.JobDeps{
		Jobs:       st,
		Resolver:   &messagesvc.TargetResolver{Recipients: st},
		Dispatcher: dispatcher,
	})

	var sweeper *scheduler.Sweeper
	if cfg.Scheduler.Enabled {
		sweeper = scheduler.New(st, jobSvc, config.Dur(cfg.Scheduler.Interval, 30*time.Second))
	}

	// ===========================================================================
	// Métricas y health
	// ===========================================================================
	mcfg := metrics.Config{}
	if pool != nil {
		mcfg.PgPool = func() *pgxpool.Pool { return pool }
	}
	metricsHandler, err := metrics.Register(mcfg)
	if err != nil {
		return nil, fmt.Errorf("server: metrics: %w", err)
	}

	checks := []healthctrl.Check{}
	if pool != nil {
		checks = append(checks, healthctrl.Check{
			Name: "postgres",
			Fn:   func(ctx context.Context) error { return pool.Ping(ctx) },
		})
	}

	// ===========================================================================
	// Router
	// ===========================================================================
	handler := router.New(router.Deps{
		Auth:            authctrl.NewControllers(startSvc, callbackSvc),
		Webhook:         webhookctrl.NewWebhookController(messagingSecret, routerSvc),
		Message:         messagectrl.NewMessageController(jobSvc, st),
		Health:          healthctrl.NewHealthController(checks...),
		Metrics:         metricsHandler,
		AdminAPIKeyHash: cfg.Admin.APIKeyHash,
		SendLimiter:     sendLimiter,
		CallbackLimiter: callbackLimiter,
		AllowedOrigins:  cfg.Server.CORSAllowedOrigins,
	})

	return &App{Handler: handler, Sweeper: sweeper, Cleanup: cleanup}, nil
}
