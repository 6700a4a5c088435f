package main

import (
	"context"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"snipbin/cfg"
	"snipbin/metrics"
	"snipbin/svc/api"
	"snipbin/svc/cache"
	"snipbin/svc/db"
	"snipbin/svc/svc"
	"snipbin/svc/util"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "-health" {
		dbPath := os.Getenv("DATABASE_PATH")
		if dbPath == "" {
			dbPath = "snipbin.db"
		}
		sqlDB, err := db.NewSQLite(dbPath)
		if err != nil {
			os.Exit(1)
		}
		defer sqlDB.Close()
		pingCtx, pingCancel := context.WithTimeout(context.Background(), 1*time.Second)
		defer pingCancel()
		if err := sqlDB.Ping(pingCtx); err != nil {
			os.Exit(1)
		}
		os.Exit(0)
	}

	_ = godotenv.Load()
	util.InitLog("info", true)

	c, err := cfg.Load()
	if err != nil {
		util.Fatal().Err(err).Msg("failed to load configuration")
		os.Exit(1)
	}
	if err := cfg.Validate(c); err != nil {
		util.Fatal().Err(err).Msg("invalid configuration")
		os.Exit(1)
	}
	defer c.Wipe()
	util.InitLog(c.LogLevel, c.Environment == "development")
	util.Info().Msg("starting snipbin")
	metrics.Init()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sqlDB, err := db.NewSQLiteWithConfig(c.DatabasePath, c.DBMaxOpenConns, c.DBMaxIdleConns, c.DBQueryTimeout)
	if err != nil {
		util.Fatal().Err(err).Msg("failed to initialize database")
		os.Exit(1)
	}
	defer sqlDB.Close()
	util.Info().Str("path", c.DatabasePath).Msg("database initialized")

	var rdb *db.Redis
	if c.RedisURL != "" {
		rdb, err = db.NewRedis(c.RedisURL, c)
		if err != nil {
			if c.Environment == "production" {
				util.Fatal().Err(err).Msg("CRITICAL: Redis required in production")
				os.Exit(1)
			}
			util.Warn().Err(err).Msg("redis unavailable (dev mode)")
		} else {
			util.Info().Msg("redis connected")
		}
	}
	if rdb != nil {
		defer rdb.Close()
	}

	lruCache, err := cache.NewLRU(c.LRUCacheSize)
	if err != nil {
		util.Fatal().Err(err).Msg("failed to create LRU cache")
		os.Exit(1)
	}
	util.Info().Int("size", c.LRUCacheSize).Msg("LRU cache initialized")

	pasteSvc := svc.NewPaste(sqlDB, lruCache, rdb, c)
	util.Info().Int("view_workers", c.ViewWorkers).Msg("paste service initialized")

	server := api.NewServer(c, pasteSvc, sqlDB, rdb)

	quitWAL := make(chan struct{})
	go db.StartWALMaintenance(sqlDB.DB(), quitWAL)
	util.Info().Msg("WAL maintenance worker started")

	if err := svc.StartSweeper(ctx, sqlDB, c.SweepInterval, c.RetentionWindow); err != nil {
		util.Error().Err(err).Msg("failed to start sweeper")
	} else {
		util.Info().
			Dur("interval", c.SweepInterval).
			Dur("retention", c.RetentionWindow).
			Msg("expiration sweeper started")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Start()
	})
	if c.Environment == "development" {
		g.Go(func() error {
			util.Info().Msg("starting pprof server on :6060")
			if err := http.ListenAndServe(":6060", nil); err != nil {
				util.Warn().Err(err).Msg("pprof server failed")
			}
			return nil
		})
	}

	util.Info().Str("port", c.Port).Str("environment", c.Environment).Msg("server started")
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	select {
	case <-sigCh:
	case <-gctx.Done():
	}
	util.Info().Msg("shutting down gracefully...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		util.Error().Err(err).Msg("server shutdown error")
	}
	close(quitWAL)
	cancel()
	pasteSvc.Shutdown()
	util.Info().Msg("shutdown complete")
}
