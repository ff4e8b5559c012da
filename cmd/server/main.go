package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/playperu/photohunt/internal/config"
	"github.com/playperu/photohunt/internal/database"
	"github.com/playperu/photohunt/internal/engine"
	"github.com/playperu/photohunt/internal/events"
	"github.com/playperu/photohunt/internal/handler/health"
	"github.com/playperu/photohunt/internal/handler/wsfeed"
	"github.com/playperu/photohunt/internal/migrations"
	"github.com/playperu/photohunt/internal/scenario"
	"github.com/playperu/photohunt/internal/server"
	"github.com/playperu/photohunt/internal/store"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, stdout io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	// --- SQLite ---
	// Scenarios always live in SQLite; sessions follow STORE_BACKEND.
	db, err := database.Open(ctx, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("connecting to sqlite: %w", err)
	}
	defer db.Close()

	if err := migrations.Run(ctx, db); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	logger.Info("connected to sqlite", "path", cfg.DBPath)

	scenarios := scenario.NewDocStore(db)
	if cfg.SeedDemo {
		n, err := scenarios.SeedDemo(ctx)
		if err != nil {
			return fmt.Errorf("seeding demo scenarios: %w", err)
		}
		if n > 0 {
			logger.Info("seeded demo scenarios", "count", n)
		}
	}

	checks := map[string]health.Checker{
		"sqlite": dbChecker{db},
	}

	// --- Session store ---
	var sessions store.Store
	switch cfg.StoreBackend {
	case config.BackendRedis:
		rdb, err := openRedis(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		defer rdb.Close()
		logger.Info("connected to redis")

		sessions = store.NewRedisStore(rdb, cfg.RedisPrefix)
		checks["redis"] = redisChecker{rdb}
	case config.BackendMemory:
		logger.Warn("sessions are kept in memory and lost on restart")
		sessions = store.NewMemoryStore()
	default:
		sessions = store.NewDocStore(db)
	}
	logger.Info("session store ready", "backend", cfg.StoreBackend)

	// --- Engine ---
	broker := events.NewBroker()
	eng := engine.New(sessions, scenarios,
		engine.WithLogger(logger),
		engine.WithNotifier(broker),
		engine.WithMaxDistance(cfg.MaxDistanceMeters),
		engine.WithMaxAttempts(cfg.MaxUpdateAttempts),
	)

	// --- HTTP Server ---
	deps := server.Deps{
		Engine:     eng,
		Scenarios:  scenarios,
		Broker:     broker,
		AdminToken: cfg.AdminToken,
	}
	srv := server.New(cfg.HTTPAddr, logger, deps, func(r chi.Router) {
		r.Mount("/healthz", health.NewHandler(logger, checks).Routes())
		r.Mount("/ws", wsfeed.NewHandler(logger, broker, func(ctx context.Context, userID, sessionID string) error {
			_, err := eng.Session(ctx, userID, sessionID)
			return err
		}).Routes())
	})

	// --- Run ---
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting http server", "addr", cfg.HTTPAddr)
		return srv.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down http server")
		return srv.Shutdown(context.Background())
	})

	return g.Wait()
}

func openRedis(ctx context.Context, rawURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return rdb, nil
}

// dbChecker adapts *sql.DB to health.Checker.
type dbChecker struct{ db *sql.DB }

func (d dbChecker) Check(ctx context.Context) error { return d.db.PingContext(ctx) }

// redisChecker adapts *redis.Client to health.Checker.
type redisChecker struct{ client *redis.Client }

func (r redisChecker) Check(ctx context.Context) error { return r.client.Ping(ctx).Err() }
