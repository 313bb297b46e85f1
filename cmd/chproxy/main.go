// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Command chproxy is the production entrypoint: it wires the wire-protocol
// filter, its policy blocklist, persistence, metrics, health checks, and
// the ambient resilience stack into a running TCP proxy.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/clickhouse-wire/chproxy/pkg/breaker"
	"github.com/clickhouse-wire/chproxy/pkg/filter"
	"github.com/clickhouse-wire/chproxy/pkg/health"
	"github.com/clickhouse-wire/chproxy/pkg/metrics"
	"github.com/clickhouse-wire/chproxy/pkg/policy"
	"github.com/clickhouse-wire/chproxy/pkg/pool"
	"github.com/clickhouse-wire/chproxy/pkg/ratelimit"
	"github.com/clickhouse-wire/chproxy/pkg/server/tcp"
	"github.com/clickhouse-wire/chproxy/pkg/storage"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Config holds the proxy's runtime configuration, populated from the
// environment (and an optional .env file).
type Config struct {
	ListenAddress string `env:"LISTEN_ADDRESS" envDefault:":9001"`
	TargetAddress string `env:"TARGET_ADDRESS" envDefault:"localhost:9000"`

	MetricsPort int    `env:"METRICS_PORT" envDefault:"9090"`
	HealthPort  int    `env:"HEALTH_PORT"  envDefault:"8080"`
	LogLevel    string `env:"LOG_LEVEL"    envDefault:"info"`
	LogFormat   string `env:"LOG_FORMAT"   envDefault:"json"`

	DBPath string `env:"DB_PATH" envDefault:"chproxy.db"`

	MaxGoroutines int `env:"MAX_GOROUTINES" envDefault:"50000"`

	BlocklistExpectedUsers     uint    `env:"BLOCKLIST_EXPECTED_USERS"      envDefault:"1000"`
	BlocklistFalsePositiveRate float64 `env:"BLOCKLIST_FALSE_POSITIVE_RATE" envDefault:"0.01"`

	RateLimitCapacity   int64 `env:"RATE_LIMIT_CAPACITY"    envDefault:"100"`
	RateLimitRefill     int64 `env:"RATE_LIMIT_REFILL"      envDefault:"10"`
	RateLimitMaxClients int   `env:"RATE_LIMIT_MAX_CLIENTS" envDefault:"10000"`

	BreakerMaxFailures  int           `env:"BREAKER_MAX_FAILURES"  envDefault:"5"`
	BreakerResetTimeout time.Duration `env:"BREAKER_RESET_TIMEOUT" envDefault:"60s"`
	BreakerTimeout      time.Duration `env:"BREAKER_TIMEOUT"       envDefault:"30s"`

	PoolMaxIdle     int           `env:"POOL_MAX_IDLE"     envDefault:"10"`
	PoolMaxActive   int           `env:"POOL_MAX_ACTIVE"   envDefault:"100"`
	PoolIdleTimeout time.Duration `env:"POOL_IDLE_TIMEOUT" envDefault:"5m"`
	PoolDialTimeout time.Duration `env:"POOL_DIAL_TIMEOUT" envDefault:"5s"`

	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`
}

func main() {
	cfg := Config{}
	if err := godotenv.Load(); err != nil {
		// .env file is optional
	}
	if err := env.Parse(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "failed to parse config: %v\n", err)
		os.Exit(1)
	}

	log := setupLogger(cfg.LogLevel, cfg.LogFormat)
	log.Info("starting chproxy",
		slog.String("listen", cfg.ListenAddress),
		slog.String("target", cfg.TargetAddress))

	m := metrics.New("chproxy")
	go startMetricsServer(cfg.MetricsPort, log)

	db, err := gorm.Open(sqlite.Open(cfg.DBPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		log.Error("failed to open database", slog.String("error", err.Error()))
		os.Exit(1)
	}

	repo, err := storage.NewRepository(db)
	if err != nil {
		log.Error("failed to migrate schema", slog.String("error", err.Error()))
		os.Exit(1)
	}

	blocklist := policy.NewBlocklist(cfg.BlocklistExpectedUsers, cfg.BlocklistFalsePositiveRate)
	if entries, err := repo.LoadBlockedUsers(); err != nil {
		log.Error("failed to load blocklist", slog.String("error", err.Error()))
	} else {
		blocklist.Reload(entries)
		log.Info("blocklist loaded", slog.Int("count", blocklist.Count()))
	}

	healthChecker := health.NewChecker(10 * time.Second)
	healthChecker.Register("goroutines", func(ctx context.Context) error {
		count := runtime.NumGoroutine()
		m.GoroutinesActive.WithLabelValues("all").Set(float64(count))
		if count > cfg.MaxGoroutines {
			return fmt.Errorf("too many goroutines: %d > %d", count, cfg.MaxGoroutines)
		}
		return nil
	})
	healthChecker.Register("memory", func(ctx context.Context) error {
		var stats runtime.MemStats
		runtime.ReadMemStats(&stats)
		m.MemoryAllocated.WithLabelValues("heap").Set(float64(stats.HeapAlloc))
		m.MemoryAllocated.WithLabelValues("sys").Set(float64(stats.Sys))
		return nil
	})
	var lastBlocklistReload atomic.Int64
	lastBlocklistReload.Store(time.Now().Unix())

	const blocklistStaleAfter = time.Hour
	healthChecker.Register("blocklist_fresh", func(ctx context.Context) error {
		age := time.Since(time.Unix(lastBlocklistReload.Load(), 0))
		if age > blocklistStaleAfter {
			return fmt.Errorf("blocklist not reloaded in %s", age.Round(time.Second))
		}
		return nil
	})

	// chproxyctl reload --pid sends SIGHUP to pick up blocklist changes
	// without restarting the proxy.
	reload := make(chan os.Signal, 1)
	signal.Notify(reload, syscall.SIGHUP)
	go func() {
		for range reload {
			entries, err := repo.LoadBlockedUsers()
			if err != nil {
				log.Error("failed to reload blocklist", slog.String("error", err.Error()))
				continue
			}
			blocklist.Reload(entries)
			lastBlocklistReload.Store(time.Now().Unix())
			log.Info("blocklist reloaded", slog.Int("count", blocklist.Count()))
		}
	}()

	// backendPool is not used on the data plane — every proxied connection
	// gets its own dedicated, long-lived backend connection, dialed by
	// server/tcp directly. It backs a health check instead: a successful
	// Get/Close round trip proves the backend is reachable without
	// disturbing any in-flight client session.
	backendPool := pool.New(
		func(ctx context.Context) (net.Conn, error) {
			return net.DialTimeout("tcp", cfg.TargetAddress, cfg.PoolDialTimeout)
		},
		pool.Config{
			MaxIdle:         cfg.PoolMaxIdle,
			MaxActive:       cfg.PoolMaxActive,
			IdleTimeout:     cfg.PoolIdleTimeout,
			MaxConnLifetime: 30 * time.Minute,
			DialTimeout:     cfg.PoolDialTimeout,
			WaitTimeout:     2 * time.Second,
		},
	)
	defer backendPool.Close()

	healthChecker.Register("backend_reachable", func(ctx context.Context) error {
		conn, err := backendPool.Get(ctx)
		if err != nil {
			return fmt.Errorf("backend unreachable: %w", err)
		}
		idle, active := backendPool.Stats()
		m.BackendActiveConnections.WithLabelValues(cfg.TargetAddress).Set(float64(active))
		log.Debug("backend pool stats", slog.Int("idle", idle), slog.Int("active", active))
		return conn.Close()
	})

	go startHealthServer(cfg.HealthPort, healthChecker, log)

	limiter := ratelimit.NewLimiter(cfg.RateLimitCapacity, cfg.RateLimitRefill, cfg.RateLimitMaxClients)
	defer limiter.Close()

	cb := breaker.New(breaker.Config{
		MaxFailures:      cfg.BreakerMaxFailures,
		ResetTimeout:     cfg.BreakerResetTimeout,
		SuccessThreshold: 2,
		Timeout:          cfg.BreakerTimeout,
	})
	cb.OnStateChange(func(from, to breaker.State) {
		log.Warn("circuit breaker state changed",
			slog.String("from", from.String()),
			slog.String("to", to.String()))
		m.CircuitBreakerState.WithLabelValues(cfg.TargetAddress).Set(float64(to))
		if to == breaker.StateOpen {
			m.CircuitBreakerTrips.WithLabelValues(cfg.TargetAddress).Inc()
		}
	})

	newFilter := func(sessionID, remoteAddr string) *filter.Filter {
		return filter.New(filter.Config{
			SessionID:  sessionID,
			RemoteAddr: remoteAddr,
			Handler:    &sessionHandler{sessionID: sessionID, remoteAddr: remoteAddr, repo: repo, logger: log},
			Blocklist:  blocklist,
			Metrics:    m,
			Logger:     log,
		})
	}

	server := tcp.New(tcp.Config{
		Address:         cfg.ListenAddress,
		TargetAddress:   cfg.TargetAddress,
		ShutdownTimeout: cfg.ShutdownTimeout,
		NewFilter:       newFilter,
		Limiter:         limiter,
		Breaker:         cb,
		Metrics:         m,
		Logger:          log,
	})

	ctx, cancel := context.WithCancel(context.Background())
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Listen(ctx)
	})

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Info("received shutdown signal", slog.String("signal", sig.String()))
	case <-ctx.Done():
		log.Info("context cancelled")
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	select {
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Error("shutdown error", slog.String("error", err.Error()))
			os.Exit(1)
		}
		log.Info("graceful shutdown completed")
	case <-shutdownCtx.Done():
		log.Warn("shutdown timeout exceeded, forcing exit")
		os.Exit(1)
	}
}

// sessionHandler persists every decoded handshake (blocked or not) for one
// connection.
type sessionHandler struct {
	sessionID  string
	remoteAddr string
	repo       *storage.Repository
	logger     *slog.Logger
}

var _ filter.Handler = (*sessionHandler)(nil)

// OnHello records a completed handshake.
func (h *sessionHandler) OnHello(info filter.HelloInfo) error {
	rec := storage.HandshakeRecord{
		SessionID:       h.sessionID,
		RemoteAddr:      h.remoteAddr,
		User:            info.User,
		ProtocolVersion: info.TCPProtocolVersion,
		ChunkedClient:   info.ChunkedClient,
		ChunkedServer:   info.ChunkedServer,
		SSHBasedAuth:    info.IsSSHBasedAuth,
	}
	if err := h.repo.RecordHandshake(rec); err != nil {
		h.logger.Warn("failed to record handshake", slog.String("error", err.Error()))
	}
	h.logger.Info("handshake decoded",
		slog.String("session", h.sessionID),
		slog.String("remote", h.remoteAddr),
		slog.String("user", info.User))
	return nil
}

// OnProtocolError records a hand-off, noting whether it was policy-driven.
func (h *sessionHandler) OnProtocolError(dir filter.Direction, err error) error {
	blocked := errors.Is(err, filter.ErrBlockedUser)
	if blocked {
		rec := storage.HandshakeRecord{
			SessionID:  h.sessionID,
			RemoteAddr: h.remoteAddr,
			Blocked:    true,
		}
		if err := h.repo.RecordHandshake(rec); err != nil {
			h.logger.Warn("failed to record blocked handshake", slog.String("error", err.Error()))
		}
	}
	h.logger.Warn("handshake hand-off",
		slog.String("session", h.sessionID),
		slog.String("direction", string(dir)),
		slog.Bool("blocked", blocked),
		slog.String("error", err.Error()))
	return nil
}

func setupLogger(level, format string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: logLevel}

	var h slog.Handler
	if format == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(h)
}

func startMetricsServer(port int, log *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	addr := fmt.Sprintf(":%d", port)
	log.Info("starting metrics server", slog.String("address", addr))

	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("metrics server error", slog.String("error", err.Error()))
	}
}

func startHealthServer(port int, checker *health.Checker, log *slog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", checker.HTTPHandler())
	mux.HandleFunc("/ready", checker.ReadinessHandler())
	mux.HandleFunc("/live", health.LivenessHandler())

	addr := fmt.Sprintf(":%d", port)
	log.Info("starting health server", slog.String("address", addr))

	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("health server error", slog.String("error", err.Error()))
	}
}
