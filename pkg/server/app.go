package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"MarketPull/internal/domain/repository"
	"MarketPull/internal/handler/api"
	"MarketPull/internal/usecase"
	"MarketPull/pkg/cache"
	pkgch "MarketPull/pkg/clickhouse"
	"MarketPull/pkg/config"
	pkghttp "MarketPull/pkg/http"
	"MarketPull/pkg/logger"
)

// App encapsulates the application lifecycle: crawl orchestrator plus the
// HTTP surface, started together and shut down in reverse order.
type App struct {
	cfg        *config.Config
	log        *logger.Logger
	orch       *usecase.Orchestrator
	handler    *api.FactsHandler
	chClient   *pkgch.Client
	cache      cache.Service
	publisher  repository.Publisher
	httpServer *pkghttp.Server
}

// New creates the application with all dependencies injected.
func New(
	cfg *config.Config,
	log *logger.Logger,
	orch *usecase.Orchestrator,
	handler *api.FactsHandler,
	chClient *pkgch.Client,
	c cache.Service,
	publisher repository.Publisher,
) *App {
	return &App{
		cfg:       cfg,
		log:       log,
		orch:      orch,
		handler:   handler,
		chClient:  chClient,
		cache:     c,
		publisher: publisher,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.orch.Start(ctx)

	a.httpServer = pkghttp.NewServer(a.handler, a.log,
		pkghttp.WithPort(a.cfg.Server.Port),
		pkghttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	)
	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", logger.Err(err))
		return err
	}
	a.log.Info("serving",
		logger.Int("port", a.cfg.Server.Port),
		logger.String("environment", a.cfg.Environment),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.log.Info("shutdown signal received")
	cancel()
	return a.shutdown()
}

// shutdown stops accepting traffic, drains in-flight crawls, then closes
// the infrastructure clients.
func (a *App) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.log.Error("http shutdown error", logger.Err(err))
	}

	a.orch.Stop()

	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.log.Warn("publisher close error", logger.Err(err))
		}
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.log.Warn("cache close error", logger.Err(err))
		}
	}
	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.log.Warn("clickhouse close error", logger.Err(err))
		}
	}

	a.log.Info("shutdown complete")
	return nil
}
