// Package main provides the tabletop-net broker: the WebSocket gateway,
// session coordination, payload validation, and the admin API.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/tabletop-net/internal/admin"
	"github.com/cory-johannsen/tabletop-net/internal/config"
	"github.com/cory-johannsen/tabletop-net/internal/dispatch"
	"github.com/cory-johannsen/tabletop-net/internal/game"
	"github.com/cory-johannsen/tabletop-net/internal/gateway"
	"github.com/cory-johannsen/tabletop-net/internal/observability"
	"github.com/cory-johannsen/tabletop-net/internal/server"
	"github.com/cory-johannsen/tabletop-net/internal/storage/postgres"
	"github.com/cory-johannsen/tabletop-net/internal/validation"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting tabletop-net broker",
		zap.String("addr", cfg.Server.Addr()),
		zap.String("ws_path", cfg.Server.WSPath),
	)

	ctx := context.Background()
	dbStart := time.Now()
	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		logger.Fatal("connecting to database", zap.Error(err))
	}
	logger.Info("database connected",
		zap.String("host", cfg.Database.Host),
		zap.Int("port", cfg.Database.Port),
		zap.String("database", cfg.Database.Name),
		zap.Duration("elapsed", time.Since(dbStart)),
	)

	// Repositories and validation
	schemas := postgres.NewSchemaRepository(pool.DB())
	keyValues := postgres.NewKeyValueRepository(pool.DB())
	cache := validation.NewCache(schemas, logger)

	// Session coordination
	connections := game.NewConnectionRegistry()
	games := game.NewGameRegistry()
	coordinator := game.NewCoordinator(games, cfg.Game.OrphanTimeout, logger)
	reaper := game.NewReaper(coordinator, cfg.Game.ReapInterval, logger)
	dispatcher := dispatch.NewDispatcher(coordinator, cache, schemas, logger)

	var adminHandler http.Handler
	if cfg.Admin.Enabled {
		adminHandler = admin.NewHandler(schemas, keyValues, cache, cfg.Admin.TokenHash, logger)
	}

	gw := gateway.NewServer(cfg.Server, keyValues, connections, dispatcher, adminHandler, logger)

	// Wire lifecycle
	lifecycle := server.NewLifecycle(logger)

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

	lifecycle.Add("reaper", reaper)

	lifecycle.Add("gateway", &server.FuncService{
		StartFn: gw.ListenAndServe,
		StopFn:  gw.Stop,
	})

	logger.Info("broker initialized",
		zap.Duration("startup", time.Since(start)),
		zap.Duration("orphan_timeout", cfg.Game.OrphanTimeout),
		zap.Duration("reap_interval", cfg.Game.ReapInterval),
		zap.Bool("admin_api", cfg.Admin.Enabled),
	)

	if err := lifecycle.Run(ctx); err != nil {
		logger.Fatal("broker error", zap.Error(err))
	}
}
