package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"mpesa-recon/internal/config"
	"mpesa-recon/internal/handler"
	"mpesa-recon/internal/middleware"
	"mpesa-recon/internal/repository"
	"mpesa-recon/internal/service"
	"mpesa-recon/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	appLogger := logger.New(cfg.LogLevel)
	appLogger.Info("Starting payment reconciliation service")

	// Open database and initialize repositories
	db, err := repository.Open(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	tokenRepo, err := repository.NewTokenRepository(db)
	if err != nil {
		log.Fatalf("Failed to initialize token repository: %v", err)
	}
	qrRepo, err := repository.NewQRPaymentRepository(db)
	if err != nil {
		log.Fatalf("Failed to initialize qr payment repository: %v", err)
	}
	entryRepo, err := repository.NewManualEntryRepository(db)
	if err != nil {
		log.Fatalf("Failed to initialize manual entry repository: %v", err)
	}
	unmatchedRepo, err := repository.NewUnmatchedRepository(db)
	if err != nil {
		log.Fatalf("Failed to initialize unmatched repository: %v", err)
	}

	// Initialize services
	tokenCache := service.NewTokenCache(tokenRepo, &cfg.Gateway, cfg.Payments.TokenBuffer, appLogger)
	gatewayClient := service.NewGatewayClient(tokenCache, &cfg.Gateway, appLogger)
	qrService := service.NewQRPaymentService(qrRepo, gatewayClient, &cfg.Gateway, &cfg.Payments, appLogger)
	entryService := service.NewManualEntryService(entryRepo, service.NewParser(), appLogger)
	matcher := service.NewMatcher(qrService, unmatchedRepo, appLogger)

	// Register callback URLs with the gateway. Idempotent; a failure here
	// is logged and the service keeps running since pushes and QR payments
	// work without it.
	if cfg.Gateway.ConfirmationURL != "" && cfg.Gateway.ValidationURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Gateway.Timeout)
		if err := gatewayClient.RegisterCallbackURLs(ctx); err != nil {
			appLogger.Warn("Callback URL registration failed", "error", err)
		}
		cancel()
	}

	// Start background sweeps
	stopExpiry := qrService.StartExpirySweep(cfg.Sweep.ExpiryInterval)
	defer stopExpiry()
	stopMatcher := matcher.StartSweep(cfg.Sweep.MatcherInterval)
	defer stopMatcher()

	// Initialize handlers
	paymentHandler := handler.NewPaymentHandler(gatewayClient, appLogger)
	qrHandler := handler.NewQRPaymentHandler(qrService, appLogger)
	manualHandler := handler.NewManualEntryHandler(entryService, appLogger)
	reconcileHandler := handler.NewReconcileHandler(unmatchedRepo, matcher, appLogger)
	healthHandler := handler.NewHealthHandler(db, cfg, appLogger)

	// Initialize middleware
	authMiddleware := middleware.NewAuthMiddleware(cfg.Security.APIKey, appLogger)

	// Setup HTTP routes
	router := mux.NewRouter()

	// Public routes
	router.HandleFunc("/health", healthHandler.CheckHealth).Methods(http.MethodGet)

	// Protected routes
	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(authMiddleware.Authenticate)
	api.HandleFunc("/payments/push", paymentHandler.RequestPush).Methods(http.MethodPost)
	api.HandleFunc("/payments/push/{checkoutRequestId}/status", paymentHandler.QueryStatus).Methods(http.MethodPost)
	api.HandleFunc("/payments/qr", qrHandler.Create).Methods(http.MethodPost)
	api.HandleFunc("/payments/qr", qrHandler.List).Methods(http.MethodGet)
	api.HandleFunc("/payments/qr/{reference}", qrHandler.Get).Methods(http.MethodGet)
	api.HandleFunc("/payments/qr/{reference}/paid", qrHandler.MarkPaid).Methods(http.MethodPost)
	api.HandleFunc("/payments/qr/{reference}/sale", qrHandler.LinkSale).Methods(http.MethodPost)
	api.HandleFunc("/manual", manualHandler.Submit).Methods(http.MethodPost)
	api.HandleFunc("/manual/pending", manualHandler.ListPending).Methods(http.MethodGet)
	api.HandleFunc("/manual/{entryId}/verify", manualHandler.Verify).Methods(http.MethodPost)
	api.HandleFunc("/manual/{entryId}/sale", manualHandler.LinkSale).Methods(http.MethodPost)
	api.HandleFunc("/unmatched", reconcileHandler.IngestUnmatched).Methods(http.MethodPost)
	api.HandleFunc("/reconcile", reconcileHandler.RunNow).Methods(http.MethodPost)

	// Create HTTP server
	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 45 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		appLogger.Info("HTTP server starting", "address", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Error("HTTP server error", "error", err)
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	appLogger.Info("Payment reconciliation service started successfully",
		"address", addr,
		"expiry_sweep", cfg.Sweep.ExpiryInterval.String(),
		"matcher_sweep", cfg.Sweep.MatcherInterval.String(),
	)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		appLogger.Error("Server forced to shutdown", "error", err)
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	appLogger.Info("Server stopped gracefully")
}
