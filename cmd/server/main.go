package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/atmx/ledger-engine/internal/app"
	"github.com/atmx/ledger-engine/internal/config"
	"github.com/atmx/ledger-engine/internal/feed"
	"github.com/atmx/ledger-engine/internal/ledger"
	"github.com/atmx/ledger-engine/internal/logging"
	"github.com/atmx/ledger-engine/internal/metrics"
	"github.com/atmx/ledger-engine/internal/trade"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- WebSocket hub and event publisher ---
	wsHub := trade.NewWSHub(logger.Named("ws"))
	go wsHub.Run(ctx)

	hooks := []ledger.Option{ledger.OnCommit(wsHub.Publish)}
	var publisher *feed.Publisher
	if cfg.KafkaEnabled() {
		publisher = feed.NewPublisher(feed.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaEventsTopic), 1024, logger.Named("publisher"))
		hooks = append(hooks, ledger.OnCommit(publisher.Enqueue))
	}

	// --- Store, pricing and ledger ---
	a, err := app.Open(ctx, cfg, logger, hooks...)
	if err != nil {
		logger.Fatal("startup failed", zap.Error(err))
	}
	defer a.Close()

	// --- Kafka feed ---
	feedDone := make(chan struct{})
	if cfg.KafkaEnabled() {
		consumer := feed.NewQuoteConsumer(cfg.KafkaBrokers, cfg.KafkaQuotesTopic, cfg.KafkaGroupID, a.Book, logger.Named("quotes"))
		go func() {
			defer close(feedDone)
			if err := publisher.Run(ctx); err != nil {
				logger.Error("event publisher stopped", zap.Error(err))
			}
		}()
		go func() {
			if err := consumer.Run(ctx); err != nil {
				logger.Error("quote consumer stopped", zap.Error(err))
			}
		}()
		logger.Info("kafka feed enabled",
			zap.Strings("brokers", cfg.KafkaBrokers),
			zap.String("quotes_topic", cfg.KafkaQuotesTopic),
			zap.String("events_topic", cfg.KafkaEventsTopic),
		)
	} else {
		close(feedDone)
	}

	// --- Trade service ---
	tradeSvc := trade.NewService(a.Ledger, a.Portfolio, cfg.Currency, logger.Named("http"))

	// --- HTTP router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.Middleware(logger.Named("access")))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metrics.Middleware)

	// CORS middleware for frontend cross-origin requests.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", cfg.CORSOrigin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"ledger-engine"}`))
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// WebSocket endpoint for committed ledger events.
		r.Get("/ws", wsHub.HandleWS)

		// Trade execution.
		r.Post("/trade", tradeSvc.ExecuteTrade)

		// Portfolio.
		r.Get("/portfolio", tradeSvc.GetPortfolio)
		r.Post("/portfolio/exercise", tradeSvc.ExerciseOption)

		// History and watchlist.
		r.Get("/transactions", tradeSvc.ListTransactions)
		r.Get("/watchlist", tradeSvc.GetWatchlist)
		r.Put("/watchlist", tradeSvc.ReplaceWatchlist)
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("ledger-engine listening", zap.String("port", cfg.Port), zap.String("store", cfg.StoreKind()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// Graceful shutdown.
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	logger.Info("shutting down ledger-engine...")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}
	<-feedDone
	logger.Info("ledger-engine stopped")
}
