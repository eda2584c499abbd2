package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/dropDatabas3/linerelay/internal/config"
	"github.com/dropDatabas3/linerelay/internal/http/server"
	"github.com/dropDatabas3/linerelay/internal/observability/logger"
)

func main() {
	// .env es opcional; en producción la config llega por entorno.
	_ = godotenv.Load()

	cfgPath := os.Getenv("LINERELAY_CONFIG")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Init(logger.Config{Env: "dev", ServiceName: "linerelay"})
		logger.L().Fatal("config load failed", logger.Err(err))
	}

	logger.Init(logger.Config{
		Env:         cfg.App.Env,
		Level:       cfg.Log.Level,
		ServiceName: "linerelay",
	})
	log := logger.L()
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := server.Build(ctx, cfg)
	if err != nil {
		log.Fatal("wiring failed", logger.Err(err))
	}
	defer func() {
		if err := app.Cleanup(); err != nil {
			log.Warn("cleanup failed", logger.Err(err))
		}
	}()

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      app.Handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("http server listening", logger.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if app.Sweeper != nil {
		g.Go(func() error {
			log.Info("scheduler sweeper running")
			if err := app.Sweeper.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatal("server exited with error", logger.Err(err))
	}
	log.Info("bye")
}
