// qihd runs the quantum optimization hub as a standalone HTTP service.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/nqba/qih/httpapi"
	"github.com/nqba/qih/pkg/breaker"
	"github.com/nqba/qih/pkg/core"
	"github.com/nqba/qih/pkg/hub"
	"github.com/nqba/qih/pkg/solver"
	"github.com/nqba/qih/pkg/storage"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "qihd",
		Short: "Quantum optimization job scheduler service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context())
		},
	}

	flags := cmd.Flags()
	flags.String("listen", ":8080", "HTTP listen address")
	flags.Int("workers", hub.DefaultWorkers, "queue consumer pool size")
	flags.Int("max-retries", hub.DefaultMaxRetries, "default retry budget per job")
	flags.Int("ttl-days", hub.DefaultTTLDays, "retention window before terminal jobs are archived")
	flags.String("sweep-schedule", hub.DefaultSweepSpec, "cron schedule for the archival sweep")
	flags.String("db", "", "sqlite database path for durable job records (empty = in-memory)")
	flags.Int("breaker-threshold", breaker.DefaultFailureThreshold, "consecutive primary failures before the circuit opens")
	flags.Duration("breaker-recovery", breaker.DefaultRecoveryTimeout, "cooldown before a recovery probe is allowed")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")

	viper.SetEnvPrefix("QIH")
	viper.AutomaticEnv()
	if err := viper.BindPFlags(flags); err != nil {
		panic(err)
	}

	return cmd
}

func run(ctx context.Context) error {
	logger := newLogger(viper.GetString("log-level"))
	slog.SetDefault(logger)

	store, err := newStore()
	if err != nil {
		return err
	}
	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate job store: %w", err)
	}

	registry := solver.NewRegistry()
	registry.AddFallback(solver.NewTabu())

	h := hub.New(store, registry,
		hub.WithWorkers(viper.GetInt("workers")),
		hub.WithMaxRetries(viper.GetInt("max-retries")),
		hub.WithTTLDays(viper.GetInt("ttl-days")),
		hub.WithSweepSpec(viper.GetString("sweep-schedule")),
		hub.WithBreaker(breaker.New(
			viper.GetInt("breaker-threshold"),
			viper.GetDuration("breaker-recovery"),
		)),
		hub.WithLogger(logger),
	)

	mux := http.NewServeMux()
	mux.Handle("/", httpapi.NewServer(h).Router())
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:    viper.GetString("listen"),
		Handler: mux,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 2)
	go func() {
		logger.Info("starting scheduler", "workers", viper.GetInt("workers"))
		if err := h.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- err
		}
	}()
	go func() {
		logger.Info("listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newStore() (core.JobStore, error) {
	path := viper.GetString("db")
	if path == "" {
		return storage.NewMemoryStore(), nil
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	return storage.NewGormStore(db), nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
