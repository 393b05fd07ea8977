// Package main provides the mapward relay: a transparent proxy between a
// MUD client and the game server that builds and queries a persistent map.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/mapward/mapward/internal/atlas"
	"github.com/mapward/mapward/internal/config"
	"github.com/mapward/mapward/internal/observability"
	"github.com/mapward/mapward/internal/proxy"
	"github.com/mapward/mapward/internal/server"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/mapward.yaml", "path to configuration file")
	mapFile := flag.String("map", "", "map snapshot path (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	if *mapFile != "" {
		cfg.Mapper.MapFile = *mapFile
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting mapward",
		zap.String("listen_addr", cfg.Proxy.ListenAddr()),
		zap.String("server_addr", cfg.Proxy.ServerAddr()),
		zap.String("map_file", cfg.Mapper.MapFile),
	)

	mapStart := time.Now()
	store, err := atlas.LoadOrCreate(cfg.Mapper.MapFile)
	if err != nil {
		logger.Fatal("loading map snapshot", zap.Error(err))
	}
	logger.Info("map loaded",
		zap.Int("rooms", store.RoomCount()),
		zap.Duration("elapsed", time.Since(mapStart)),
	)

	acceptor := proxy.NewAcceptor(cfg, store, logger)

	proc := server.NewProc("proxy", acceptor, logger)
	// Persist the map on shutdown so edits survive restarts.
	proc.OnShutdown("save map", func() error {
		if err := store.Save(cfg.Mapper.MapFile); err != nil {
			return err
		}
		logger.Info("map saved",
			zap.String("map_file", cfg.Mapper.MapFile),
			zap.Int("rooms", store.RoomCount()),
		)
		return nil
	})

	logger.Info("mapward initialized",
		zap.Duration("startup", time.Since(start)),
	)

	if err := proc.Run(context.Background()); err != nil {
		logger.Fatal("proxy error", zap.Error(err))
	}
}
