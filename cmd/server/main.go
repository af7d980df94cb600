// Package main runs the chess session server: room registry, seat assignment,
// clock accounting and move relay over HTTP and websockets.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	httpapi "chess-session/internal/api/http"
	"chess-session/internal/api/ws"
	"chess-session/internal/config"
	"chess-session/internal/game"
	"chess-session/internal/observability"
	"chess-session/internal/pubsub"
	"chess-session/internal/room"
	"chess-session/internal/server"
	"chess-session/internal/store"
)

// @title Chess Session API
// @version 1.0
// @description Room, seat and clock coordination for two-player chess
// @BasePath /
func main() {
	start := time.Now()

	configPath := flag.String("config", "", "path to configuration file (env only when empty)")
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

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observability.NewMetrics(reg)

	lifecycle := server.NewLifecycle(logger)
	hub := ws.NewHub(cfg.Websocket, cfg.Server.AllowedOrigin, logger, metrics)

	var broadcaster room.Broadcaster = hub
	if cfg.PubSub.Driver == "redis" {
		rdb, err := pubsub.NewClient(context.Background(), cfg.PubSub)
		if err != nil {
			logger.Fatal("connecting to redis", zap.Error(err))
		}
		defer rdb.Close()
		broadcaster = pubsub.NewRedisBroadcaster(rdb, cfg.PubSub.ChannelPrefix, cfg.PubSub.PublishTimeout)
		lifecycle.Add("redis-bridge", pubsub.NewBridge(rdb, cfg.PubSub.ChannelPrefix, hub, logger))
		logger.Info("redis fan-out enabled",
			zap.String("addr", cfg.PubSub.RedisAddr),
			zap.String("prefix", cfg.PubSub.ChannelPrefix),
		)
	}

	rooms := room.NewManager(store.NewMemoryStore(), cfg.Game, broadcaster, logger, metrics)
	relay := room.NewRelay(rooms, game.NewChess(), broadcaster, cfg.Game, logger, metrics)
	hub.SetMoveHandler(relay)

	srv := &http.Server{
		Addr:    cfg.Server.Addr(),
		Handler: httpapi.NewRouter(rooms, hub, reg, cfg.Server, logger),
	}
	lifecycle.Add("http", &server.FuncService{
		StartFn: func() error {
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
		StopFn: func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				logger.Warn("http shutdown", zap.Error(err))
			}
			hub.Close()
		},
	})

	if cfg.Registry.RoomTTL > 0 {
		lifecycle.Add("room-sweeper", room.NewSweeper(rooms, cfg.Registry.RoomTTL, cfg.Registry.SweepInterval, logger, metrics))
	}

	logger.Info("server initialized",
		zap.String("addr", cfg.Server.Addr()),
		zap.Int64("budget_seconds", cfg.Game.DefaultBudgetSeconds),
		zap.Bool("validate_moves", cfg.Game.ValidateMoves),
		zap.Duration("startup", time.Since(start)),
	)

	if err := lifecycle.Run(context.Background()); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}
