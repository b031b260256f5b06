package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"salonbook/internal/api"
	"salonbook/internal/booking"
	"salonbook/internal/cache"
	"salonbook/internal/config"
	"salonbook/internal/events"
	"salonbook/internal/metrics"
	"salonbook/internal/store"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	cfg, err := config.Load(os.Getenv("SALONBOOK_CONFIG_PATH"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	var st store.Store
	var sqliteStore *store.SQLiteStore
	switch cfg.Database.Driver {
	case "memory":
		st = store.NewMemoryStore()
		logger.Warn().Msg("using in-memory store; data is lost on restart")
	case "sqlite":
		sqliteStore, err = store.NewSQLiteStore(cfg.Database.Path)
		if err != nil {
			logger.Fatal().Err(err).Str("path", cfg.Database.Path).Msg("open db error")
		}
		defer sqliteStore.Close()
		st = sqliteStore
	default:
		logger.Fatal().Str("driver", cfg.Database.Driver).Msg("unknown database driver")
	}

	var rdb *redis.Client
	opts := []booking.Option{}
	if cfg.Redis.Enabled && cfg.Redis.Address != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		opts = append(opts, booking.WithSlotCache(cache.New(rdb, cfg.RedisTTL())))
	}

	bus := events.NewBus()
	registerEventLogging(bus, logger)
	opts = append(opts, booking.WithEventBus(bus))

	rules := booking.Rules{
		MinAdvance:           cfg.BookingMinAdvance(),
		MaxAdvanceDays:       cfg.Booking.MaxAdvanceDays,
		MaxActivePerCustomer: cfg.Booking.MaxActivePerCustomer,
	}
	engine := booking.NewEngine(st, rules, logger, opts...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if sqliteStore != nil && cfg.Backup.Enabled {
		backupper := store.NewBackupper(cfg.Database.Path, store.BackupConfig{
			Enabled:       true,
			Interval:      cfg.BackupInterval(),
			Dir:           cfg.Backup.Dir,
			RetentionDays: cfg.Backup.RetentionDays,
		}, logger)
		go backupper.Run(ctx)
	}

	if cfg.Monitoring.HealthCheckPort == 0 {
		cfg.Monitoring.HealthCheckPort = 8090
	}
	go startHealthServer(ctx, cfg.Monitoring.HealthCheckPort, sqliteStore, rdb, &logger)

	if cfg.Monitoring.PrometheusEnabled {
		if cfg.Monitoring.PrometheusPort == 0 {
			cfg.Monitoring.PrometheusPort = 9090
		}
		metrics.Register()
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger)
	}

	apiServer := api.NewServer(engine, st, logger, cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst)
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      apiServer.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()

	logger.Info().Int("port", cfg.Server.Port).Msg("salonbook API started")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal().Err(err).Msg("api server error")
	}
	logger.Info().Msg("salonbook API stopped")
}

// registerEventLogging mirrors booking lifecycle events into the log stream.
func registerEventLogging(bus *events.Bus, logger zerolog.Logger) {
	for _, eventType := range []string{
		events.TypeBookingCreated,
		events.TypeBookingConfirmed,
		events.TypeBookingCancelled,
		events.TypeBookingCompleted,
	} {
		et := eventType
		bus.Subscribe(et, func(ev events.Event) error {
			logger.Debug().Str("event", et).RawJSON("payload", ev.Payload).Msg("booking event")
			return nil
		})
	}
}

func startHealthServer(ctx context.Context, port int, sqliteStore *store.SQLiteStore, rdb *redis.Client, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		ctxPing, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		if sqliteStore != nil {
			if err := sqliteStore.Ping(ctxPing); err != nil {
				http.Error(w, "db not ready", http.StatusServiceUnavailable)
				return
			}
		}
		if rdb != nil {
			if err := rdb.Ping(ctxPing).Err(); err != nil {
				http.Error(w, "redis not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("health server error")
	}
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
