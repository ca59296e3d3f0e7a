// Package main provides the duel server binary that serves the
// websocket gateway and the operator HTTP endpoints.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/duelhall/duelhall/internal/catalog"
	"github.com/duelhall/duelhall/internal/config"
	"github.com/duelhall/duelhall/internal/game/registry"
	"github.com/duelhall/duelhall/internal/game/state"
	"github.com/duelhall/duelhall/internal/gateway"
	"github.com/duelhall/duelhall/internal/hub"
	"github.com/duelhall/duelhall/internal/identity"
	"github.com/duelhall/duelhall/internal/observability"
	"github.com/duelhall/duelhall/internal/server"
	"github.com/duelhall/duelhall/internal/storage/postgres"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	catalogPath := flag.String("catalog", "", "path to card catalog YAML; overrides the config value")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting duel server",
		zap.String("http_addr", cfg.Server.Addr()),
	)

	// Load the card catalog.
	catalogStart := time.Now()
	catalogFile := cfg.Catalog.Path
	if *catalogPath != "" {
		catalogFile = *catalogPath
	}
	cards, err := catalog.LoadFile(catalogFile)
	if err != nil {
		logger.Fatal("loading card catalog", zap.Error(err))
	}
	logger.Info("card catalog loaded",
		zap.String("path", catalogFile),
		zap.Int("cards", cards.Len()),
		zap.Duration("elapsed", time.Since(catalogStart)),
	)

	// Connect to PostgreSQL for duel persistence and identity lookups.
	dbStart := time.Now()
	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		logger.Fatal("connecting to database", zap.Error(err))
	}
	logger.Info("database connected",
		zap.String("host", cfg.Database.Host),
		zap.Duration("elapsed", time.Since(dbStart)),
	)
	duelRepo := postgres.NewDuelRepository(pool.DB())
	idProvider := identity.NewTokenProvider(pool.DB())

	// Create managers
	reg := registry.NewRegistry(cfg.Game.AutoCreate, cfg.Game.StartingLife, logger)
	rooms := hub.NewHub(cfg.Server.WriteTimeout, logger)

	gw := gateway.NewGateway(reg, rooms, cards, idProvider, duelRepo, pool, cfg.Server, logger)

	httpServer := &http.Server{
		Addr:    cfg.Server.Addr(),
		Handler: gw.Routes(),
	}

	// Wire lifecycle
	lifecycle := server.NewLifecycle(logger)

	lifecycle.Add("http", &server.FuncService{
		StartFn: func() error {
			lis, err := net.Listen("tcp", cfg.Server.Addr())
			if err != nil {
				return fmt.Errorf("listening on %s: %w", cfg.Server.Addr(), err)
			}
			logger.Info("HTTP server listening",
				zap.String("addr", lis.Addr().String()),
			)
			if err := httpServer.Serve(lis); err != http.ErrServerClosed {
				return err
			}
			return nil
		},
		StopFn: func() {
			shutdownCtx, cancel := context.WithTimeout(ctx, cfg.Server.ShutdownTimeout)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.Warn("http shutdown", zap.Error(err))
			}
		},
	})

	if cfg.Game.IdleTimeout > 0 {
		sweeper := registry.NewSweeper(reg, cfg.Game.SweepInterval, cfg.Game.IdleTimeout,
			func(sess *registry.Session, snap state.Snapshot) {
				gw.NotifyAbandoned(sess, snap)
			}, logger)
		lifecycle.Add("sweeper", sweeper)
	}

	lifecycle.Add("postgres", &server.FuncService{
		StartFn: func() error {
			for {
				time.Sleep(30 * time.Second)
				if err := pool.Health(ctx, 5*time.Second); err != nil {
					logger.Warn("database health check failed", zap.Error(err))
				}
			}
		},
		StopFn: func() {
			pool.Close()
		},
	})

	logger.Info("duel server initialized",
		zap.Duration("startup", time.Since(start)),
		zap.String("http_addr", cfg.Server.Addr()),
	)

	if err := lifecycle.Run(ctx); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}
