package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"regexp"
	"strings"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/spf13/cobra"

	"github.com/kfimusic/beatstore/api"
	"github.com/kfimusic/beatstore/config"
	"github.com/kfimusic/beatstore/datastore"
	"github.com/kfimusic/beatstore/delivery"
	"github.com/kfimusic/beatstore/fulfillment"
	"github.com/kfimusic/beatstore/metrics"
	"github.com/kfimusic/beatstore/payments"
	"github.com/kfimusic/beatstore/policy"
	"github.com/kfimusic/beatstore/products"
	rh "github.com/kfimusic/beatstore/route-handlers"
	"github.com/kfimusic/beatstore/storage"
	"github.com/kfimusic/beatstore/webhooks"
	"github.com/kfimusic/beatstore/webutil"
)

const (
	dbPingTimeout     = 5 * time.Second
	shutdownTimeout   = 15 * time.Second
	dbMaxOpenConns    = 25
	dbMaxIdleConns    = 25
	dbConnMaxLifetime = 5 * time.Minute
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:     "beatstore",
		Short:   "Post-payment fulfillment service for the KFI beat store",
		Version: Version,
		RunE:    runServe,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(filesCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server (default)",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	setupLogging(cfg.LogLevel, cfg.LogFormat)
	metrics.Register()

	var (
		store    fulfillment.FulfillmentStore
		records  rh.RecordGetter
		sold     fulfillment.SoldMarker
		attempts delivery.AttemptRecorder
		history  rh.AttemptLister
	)
	if cfg.DatabaseURL != "" {
		db, err := setupDatabase(cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("database setup failed: %w", err)
		}
		defer db.Close()
		fulfillments := datastore.NewFulfillmentRepository(db)
		store, records = fulfillments, fulfillments
		sold = datastore.NewProductRepository(db)
		attemptRepo := datastore.NewDeliveryAttemptRepository(db)
		attempts, history = attemptRepo, attemptRepo
	} else {
		log.Println("WARNING: DB_CONNECTION_STRING not set; fulfillment records are kept in memory only.")
		memory := datastore.NewMemoryFulfillmentStore()
		store, records = memory, memory
	}

	var sessions payments.SessionRetriever
	if client := payments.NewStripeClient(cfg.Stripe.SecretKey); client != nil {
		sessions = client
	}

	var (
		objects *storage.SupabaseStore
		lister  fulfillment.FileLister
		signer  rh.URLSigner
	)
	if cfg.Storage.Enabled() {
		objects = storage.NewSupabaseStore(cfg.Storage.URL, cfg.Storage.Key, cfg.Storage.Bucket)
		lister = storage.NewFileLister(objects)
		signer = objects
	}

	filePolicy := policy.Default()
	notifier, err := buildNotifier(cfg, filePolicy, attempts)
	if err != nil {
		return err
	}

	orchestrator := fulfillment.NewOrchestrator(fulfillment.Options{
		Sessions:    sessions,
		Resolver:    products.NewResolver(cfg.Catalog),
		Lister:      lister,
		Policy:      filePolicy,
		Notifier:    notifier,
		Store:       store,
		SoldMarker:  sold,
		Fingerprint: webutil.Fingerprint,
	})

	router := api.SetupRoutes(api.Handlers{
		Payment:    webhooks.NewPaymentHandler(cfg.Stripe.WebhookSecret, orchestrator),
		Downloads:  rh.NewDownloadHandler(orchestrator),
		Preview:    rh.NewPreviewHandler(cfg.Catalog, signer),
		EmailAdmin: rh.NewEmailAdminHandler(notifier, orchestrator),
		History:    rh.NewDeliveryHistoryHandler(records, history),
		Health:     rh.NewHealthHandler(cfg.FrontendURL),
		AdminToken: cfg.AdminToken,
	})

	return startServer(cfg.Port, router)
}

func buildNotifier(cfg config.Config, p policy.Policy, attempts delivery.AttemptRecorder) (*delivery.Notifier, error) {
	var unverified *regexp.Regexp
	if cfg.Email.UnverifiedPattern != "" {
		re, err := regexp.Compile(cfg.Email.UnverifiedPattern)
		if err != nil {
			return nil, fmt.Errorf("UNVERIFIED_SENDER_PATTERN is not a valid pattern: %w", err)
		}
		unverified = re
	}

	mode, err := delivery.ParseSenderMode(cfg.Email.SenderMode)
	if err != nil {
		return nil, err
	}

	opts := delivery.NotifierOptions{
		Renderer: delivery.NewRenderer(delivery.Brand{
			FrontendURL:  cfg.FrontendURL,
			InstagramURL: cfg.InstagramURL,
			LogoURL:      cfg.LogoURL,
			SupportEmail: cfg.SupportEmail,
		}, p),
		Identities: delivery.SenderIdentities{
			Branded:    cfg.Email.From,
			Fallback:   cfg.Email.FallbackFrom,
			Onboarding: cfg.Email.OnboardingFrom,
			Unverified: unverified,
		},
		Modes:       delivery.NewModeSwitch(mode),
		Fingerprint: webutil.Fingerprint,
	}
	// Nil transports stay untyped so the notifier can skip them.
	if resend := delivery.NewResendTransport(cfg.Email.ResendAPIKey, ""); resend != nil {
		opts.Primary = resend
	}
	if cfg.SMTP.Enabled() {
		opts.SMTP = delivery.NewSMTPTransport(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.User, cfg.SMTP.Password, cfg.SMTP.From)
		opts.SMTPFrom = cfg.SMTP.From
	}
	if attempts != nil {
		opts.Attempts = attempts
	}
	return delivery.NewNotifier(opts), nil
}

func setupLogging(level, format string) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}

	var handler slog.Handler
	if strings.EqualFold(format, "text") {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func setupDatabase(connStr string) (*sql.DB, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(dbMaxOpenConns)
	db.SetMaxIdleConns(dbMaxIdleConns)
	db.SetConnMaxLifetime(dbConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), dbPingTimeout)
	defer cancel()

	if err = db.PingContext(ctx); err != nil {
		db.Close() // Close unusable connection pool
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if err = datastore.EnsureSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	log.Println("Database connection successful")
	return db, nil
}

func startServer(port string, router http.Handler) error {
	server := &http.Server{
		Addr:              ":" + port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	shutdownSignal := make(chan os.Signal, 1)
	signal.Notify(shutdownSignal, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(shutdownSignal)

	return serveUntil(server, shutdownSignal)
}

// serveUntil runs server until stop fires, then shuts it down gracefully.
// A listener failure is returned instead of exiting so deferred cleanup runs.
func serveUntil(server *http.Server, stop <-chan os.Signal) error {
	serverErr := make(chan error, 1)
	go func() {
		log.Printf("Server starting on %s", server.Addr)
		serverErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	case <-stop:
	}
	log.Println("Shutdown signal received, initiating graceful shutdown...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Graceful shutdown failed: %v", err)
		return err
	}

	log.Println("Server gracefully stopped")
	return nil
}
