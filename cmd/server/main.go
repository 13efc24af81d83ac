// Package main provides the FruitDuel server binary: HTTP matchmaking
// endpoints plus the websocket game channel, all backed by a single
// lobby coordinator.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/fruitduel/fruitduel/internal/config"
	"github.com/fruitduel/fruitduel/internal/lobby"
	"github.com/fruitduel/fruitduel/internal/observability"
	"github.com/fruitduel/fruitduel/internal/server"
	"github.com/fruitduel/fruitduel/internal/transport"
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

	coord := lobby.NewCoordinator(cfg.Lobby.QueueCapacity, logger)
	coordCtx, stopCoord := context.WithCancel(context.Background())

	httpServer := &http.Server{
		Addr:    cfg.Server.Addr(),
		Handler: transport.NewRouter(coord, cfg.Lobby.SinkCapacity, logger),
	}

	lifecycle := server.NewLifecycle(logger)

	lifecycle.Add("coordinator", &server.FuncService{
		StartFn: func() error {
			err := coord.Run(coordCtx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
		StopFn: stopCoord,
	})

	lifecycle.Add("http", &server.FuncService{
		StartFn: func() error {
			logger.Info("http server listening",
				zap.String("addr", cfg.Server.Addr()),
			)
			err := httpServer.ListenAndServe()
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		},
		StopFn: func() {
			ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			if err := httpServer.Shutdown(ctx); err != nil {
				logger.Warn("http shutdown", zap.Error(err))
				_ = httpServer.Close()
			}
		},
	})

	logger.Info("server initialized",
		zap.Duration("startup", time.Since(start)),
		zap.String("addr", cfg.Server.Addr()),
	)

	if err := lifecycle.Run(context.Background()); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}
