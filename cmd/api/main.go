package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/baharkarakas/broker-ledger/internal/api"
	"github.com/baharkarakas/broker-ledger/internal/api/handlers"
	"github.com/baharkarakas/broker-ledger/internal/auth"
	"github.com/baharkarakas/broker-ledger/internal/config"
	"github.com/baharkarakas/broker-ledger/internal/db"
	"github.com/baharkarakas/broker-ledger/internal/logger"
	"github.com/baharkarakas/broker-ledger/internal/metrics"
	"github.com/baharkarakas/broker-ledger/internal/middleware"
	"github.com/baharkarakas/broker-ledger/internal/notify"
	"github.com/baharkarakas/broker-ledger/internal/repository"
	"github.com/baharkarakas/broker-ledger/internal/repository/memory"
	"github.com/baharkarakas/broker-ledger/internal/repository/postgres"
	"github.com/baharkarakas/broker-ledger/internal/services"
	"github.com/baharkarakas/broker-ledger/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config", "err", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Env, cfg.LogLevel)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	wp := worker.NewPool(cfg.WorkerCount, 1024)
	defer wp.Stop()

	sinks := []notify.Sink{notify.LogSink{Log: log}}
	var store repository.Store
	switch cfg.StoreDriver {
	case "memory":
		log.Warn("using in-memory store, state is lost on exit")
		store = memory.New()
	default:
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, 10)
		if err != nil {
			log.Error("db connect", "err", err)
			os.Exit(1)
		}
		defer pool.Close()

		if cfg.Migrate {
			applied, err := db.RunMigrations(ctx, pool)
			if err != nil {
				log.Error("migrations", "err", err)
				os.Exit(1)
			}
			log.Info("migrations applied", "versions", applied)
		}
		store = postgres.NewStore(pool)
		sinks = append(sinks, postgres.NewNotificationSink(pool))
	}

	metrics.Init()

	deps := services.Deps{
		Store:         store,
		Notifier:      notify.NewDispatcher(wp, log, sinks...),
		Log:           log,
		Currency:      cfg.Currency,
		DefaultMargin: cfg.DefaultMargin,
	}
	ledger := services.NewLedger(deps)
	escrow := services.NewEscrow(deps, ledger)
	tm := auth.NewTokenManager(cfg.JWTAccessSecret, cfg.JWTRefreshSecret, cfg.JWTIssuer, 15*time.Minute, 7*24*time.Hour)

	r := api.NewRouter(api.RouterDeps{
		Cfg: cfg,
		Handlers: &handlers.Handlers{
			Ledger:      ledger,
			Market:      services.NewMarketplace(deps, escrow),
			Disputes:    services.NewDisputes(deps, escrow),
			Withdrawals: services.NewWithdrawals(deps, ledger),
			Tokens:      tm,
		},
		Auth: middleware.NewAuthMiddleware(tm, cfg.Env),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("server starting", "port", cfg.HTTPPort, "env", cfg.Env, "store", cfg.StoreDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown", "err", err)
	}
	// drain notifications before the pool closes
	wp.Stop()
}
