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

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/example/able-marketplace/internal/ai"
	"github.com/example/able-marketplace/internal/application"
	"github.com/example/able-marketplace/internal/config"
	httptransport "github.com/example/able-marketplace/internal/http"
	"github.com/example/able-marketplace/internal/logging"
	"github.com/example/able-marketplace/internal/payments"
	"github.com/example/able-marketplace/internal/persistence/sqlite"
	"github.com/example/able-marketplace/internal/recurrence"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(os.Stdout, cfg.LogLevel)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := sqlite.Open(cfg.SQLiteDSN)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			logger.Error("failed to close store", "error", cerr)
		}
	}()

	if err := store.Migrate(context.Background()); err != nil {
		logger.Error("failed to apply migrations", "error", err)
		os.Exit(1)
	}

	idGenerator := uuid.NewString
	now := time.Now
	engine := recurrence.NewEngine(cfg.Location())

	var paymentGateway application.PaymentGateway
	if cfg.PaymentsServerKey != "" {
		gateway, err := payments.NewMidtransGateway(cfg.PaymentsServerKey, cfg.PaymentsProduction, logger)
		if err != nil {
			logger.Error("failed to configure payment gateway", "error", err)
			os.Exit(1)
		}
		paymentGateway = gateway
	} else {
		logger.Warn("payment gateway disabled, gigs settle without holds")
	}

	var textGenerator application.TextGenerator
	if cfg.AIEndpoint != "" {
		client, err := ai.NewClient(cfg.AIEndpoint, cfg.AIAPIKey)
		if err != nil {
			logger.Error("failed to configure AI client", "error", err)
			os.Exit(1)
		}
		textGenerator = client
	}

	availabilityService := application.NewAvailabilityService(store.Rules(), store.Gigs(), store.Users(), engine, logger, idGenerator, now)
	gigService := application.NewGigService(store.Gigs(), store.Users(), paymentGateway, logger, idGenerator, now)
	userService := application.NewUserService(store.Users(), store.Rules(), idGenerator, now)
	authService := application.NewAuthService(store.Users(), store.Sessions(), []byte(cfg.SessionSecret), nil, idGenerator, now, cfg.SessionTTL, logger)
	suggestionService := application.NewSuggestionService(textGenerator, logger)

	handler := httptransport.NewRouter(httptransport.RouterConfig{
		Auth:         httptransport.NewAuthHandler(authService, logger),
		Users:        httptransport.NewUserHandler(userService, logger),
		Availability: httptransport.NewAvailabilityHandler(availabilityService, logger),
		Gigs:         httptransport.NewGigHandler(gigService, logger),
		Suggestions:  httptransport.NewSuggestionHandler(suggestionService, logger),
		Middleware: []func(http.Handler) http.Handler{
			httptransport.RequestLogger(logger),
			httptransport.RequireSession(authService, logger, "POST /sessions", "POST /users"),
		},
	})

	purger := cron.New()
	if _, err := purger.AddFunc("@hourly", func() {
		purgeCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := authService.PurgeExpiredSessions(purgeCtx); err != nil {
			logger.Error("failed to purge expired sessions", "error", err)
		}
	}); err != nil {
		logger.Error("failed to schedule session purge", "error", err)
		os.Exit(1)
	}
	purger.Start()
	defer purger.Stop()

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
	}()

	logger.Info("marketplace API listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server encountered error", "error", err)
		os.Exit(1)
	}
}
