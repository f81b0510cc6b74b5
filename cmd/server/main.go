package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-redis/redis/v8"
	"github.com/ruralpay/txauth/internal/config"
	"github.com/ruralpay/txauth/internal/database"
	"github.com/ruralpay/txauth/internal/handlers"
	"github.com/ruralpay/txauth/internal/logging"
	mW "github.com/ruralpay/txauth/internal/middleware"
	"github.com/ruralpay/txauth/internal/services"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "txauth: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	path := os.Getenv("CONFIG_FILE")
	if path == "" {
		path = ".env"
	}
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Logging())
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	settings, err := cfg.TransactionSettings()
	if err != nil {
		return fmt.Errorf("transaction settings: %w", err)
	}

	notifiers := services.FanoutNotifier{services.NewLogNotifier(logger)}
	opts := []services.TransactionOption{services.WithLogger(logger)}

	var db *sql.DB
	if cfg.Database.Enabled {
		db, err = database.InitDB(ctx, cfg.Database, logger)
		if err != nil {
			return err
		}
		defer db.Close()

		archive := services.NewPostgresArchive(db)
		if err := archive.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("ensure archive schema: %w", err)
		}
		opts = append(opts, services.WithArchive(archive))
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		// A nil client means Redis was unreachable; alerts stay log-only.
		if redisClient = database.InitRedis(ctx, cfg.Redis, logger); redisClient != nil {
			defer redisClient.Close()
			notifiers = append(notifiers, services.NewRedisNotifier(redisClient, cfg.Redis.AlertKey))
		}
	}
	opts = append(opts, services.WithNotifier(notifiers))

	ledger := services.NewLedger()
	transactionService := services.NewTransactionService(ledger, settings, opts...)
	accountService := services.NewAccountService(cfg.FeatureSettings(), logger)
	scheduler := services.NewScheduler(transactionService, cfg.Scheduler.Interval, logger)

	accountHandler := handlers.NewAccountHandler(accountService, logger)
	transactionHandler := handlers.NewTransactionHandler(transactionService, accountService, scheduler, logger)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      newRouter(cfg, logger, accountHandler, transactionHandler),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server starting", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return scheduler.Run(gCtx)
	})
	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("server shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	err = g.Wait()
	transactionService.Wait()
	logger.Info("server stopped", zap.Int("ledger_records", ledger.Len()))
	return err
}

func newRouter(cfg *config.Config, logger *zap.Logger, accountHandler *handlers.AccountHandler, transactionHandler *handlers.TransactionHandler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(mW.RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(mW.SecurityHeaders)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", mW.HeaderInitiatorID, mW.HeaderInitiatorRole},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/accounts", accountHandler.OpenAccount)
		r.Get("/accounts", accountHandler.ListAccounts)
		r.Get("/accounts/{accountId}", accountHandler.GetAccount)
		r.Put("/accounts/{accountId}/state", accountHandler.SetState)
		r.Post("/accounts/{accountId}/invest", accountHandler.Invest)
		r.Post("/accounts/{accountId}/liquidate", accountHandler.Liquidate)

		r.Get("/transactions", transactionHandler.ListTransactions)
		r.Get("/reports/daily", transactionHandler.DailyReport)

		// Every ledger entry carries its initiator.
		r.Group(func(r chi.Router) {
			r.Use(mW.Initiator)

			r.Post("/transactions/deposit", transactionHandler.Deposit)
			r.Post("/transactions/withdraw", transactionHandler.Withdraw)
			r.Post("/transactions/transfer", transactionHandler.Transfer)

			r.Post("/schedules", transactionHandler.CreateSchedule)
			r.Get("/schedules", transactionHandler.ListSchedules)
		})
	})

	return r
}
