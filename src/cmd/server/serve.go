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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/aspoi/membership-payments/src/internal/adapter/gateway"
	"github.com/aspoi/membership-payments/src/internal/adapter/http/controller"
	"github.com/aspoi/membership-payments/src/internal/adapter/http/middleware"
	"github.com/aspoi/membership-payments/src/internal/adapter/http/router"
	"github.com/aspoi/membership-payments/src/internal/adapter/repository/cache"
	"github.com/aspoi/membership-payments/src/internal/adapter/repository/dynamo"
	"github.com/aspoi/membership-payments/src/internal/adapter/repository/implementations"
	"github.com/aspoi/membership-payments/src/internal/adapter/repository/memory"
	"github.com/aspoi/membership-payments/src/internal/adapter/storage"
	"github.com/aspoi/membership-payments/src/internal/config"
	"github.com/aspoi/membership-payments/src/internal/domain"
	"github.com/aspoi/membership-payments/src/internal/logger"
	"github.com/aspoi/membership-payments/src/internal/metrics"
	"github.com/aspoi/membership-payments/src/internal/usecase/services"
)

const shutdownTimeout = 15 * time.Second

func newServeCommand(configPath *string) *cobra.Command {
	var migrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return serve(ctx, cfg, migrate)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply pending migrations before serving (postgres store only)")
	return cmd
}

func serve(ctx context.Context, cfg config.Config, migrate bool) error {
	catalog, err := config.LoadCatalog(cfg.PricingCatalogPath)
	if err != nil {
		return fmt.Errorf("load pricing catalog: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	observer, err := metrics.NewObserver("membership_payments", registry)
	if err != nil {
		return fmt.Errorf("create metrics observer: %w", err)
	}

	intents, memberships, closeStores, err := openStores(ctx, cfg, migrate)
	if err != nil {
		return err
	}
	defer closeStores()

	cached, err := cache.NewIntentRepository(intents, cfg.OutcomeCacheSize)
	if err != nil {
		return err
	}

	objects, filesRoot, err := openReceiptStore(ctx, cfg)
	if err != nil {
		return err
	}

	gateways := newGatewayRegistry(cfg, observer)
	if _, err := gateways.Get(domain.Provider(cfg.DefaultProvider)); err != nil {
		return fmt.Errorf("default provider: %w", err)
	}

	pricing := services.NewPricingService(catalog, observer)
	receipts := services.NewReceiptService(objects, cfg.Receipts.MaxBytes, observer)
	intentService := services.NewIntentService(cached, pricing, receipts, gateways, domain.Provider(cfg.DefaultProvider), cfg.ReferencePrefix, observer)
	reconciliation := services.NewReconciliationService(cached, memberships, pricing, gateways, observer)
	membershipService := services.NewMembershipService(memberships)

	mux := router.New(
		router.Options{
			AuthMiddleware: middleware.BasicAuth(cfg.ChannelID, cfg.ChannelKey),
			MetricsHandler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
			FilesRoot:      filesRoot,
		},
		controller.NewIntentController(intentService, cfg.Receipts.MaxBytes),
		controller.NewVerificationController(reconciliation),
		controller.NewWebhookController(reconciliation),
		controller.NewMemberController(membershipService),
	)

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      cfg.GatewayTimeout + 30*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", logger.Fields{
			"addr":            cfg.HTTPAddr,
			"storeDriver":     cfg.StoreDriver,
			"receiptStorage":  cfg.Receipts.Storage,
			"providers":       gateways.Providers(),
			"defaultProvider": cfg.DefaultProvider,
			"catalogVersion":  catalog.Version,
		})
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("http server shutting down", nil)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return nil
}

func openStores(ctx context.Context, cfg config.Config, migrate bool) (domain.IntentRepository, domain.MembershipRepository, func(), error) {
	switch cfg.StoreDriver {
	case "postgres":
		if migrate {
			if err := implementations.RunMigrations(ctx, cfg.DatabaseDSN, cfg.MigrationsDir); err != nil {
				return nil, nil, nil, fmt.Errorf("run migrations: %w", err)
			}
		}
		db, err := implementations.Open(ctx, cfg.DatabaseDSN)
		if err != nil {
			return nil, nil, nil, err
		}
		closeDB := func() {
			if err := db.Close(); err != nil {
				logger.Error("close postgres connection failed", err, nil)
			}
		}
		return implementations.NewIntentRepository(db), implementations.NewMembershipRepository(db), closeDB, nil

	case "dynamodb":
		client, err := dynamo.NewClientFromEnv(ctx, cfg.DynamoDB.Region)
		if err != nil {
			return nil, nil, nil, err
		}
		return dynamo.NewIntentRepository(client, cfg.DynamoDB.IntentsTable, cfg.DynamoDB.MembershipsTable),
			dynamo.NewMembershipRepository(client, cfg.DynamoDB.MembershipsTable),
			func() {}, nil

	default:
		logger.Warn("using in-memory store, state is lost on restart", nil)
		memberships := memory.NewMembershipRepository()
		return memory.NewIntentRepository(memberships), memberships, func() {}, nil
	}
}

func openReceiptStore(ctx context.Context, cfg config.Config) (storage.ObjectStore, string, error) {
	if cfg.Receipts.Storage == "s3" {
		store, err := storage.NewS3StoreFromEnv(ctx, cfg.Receipts.S3Bucket, cfg.Receipts.AWSRegion)
		if err != nil {
			return nil, "", err
		}
		return store, "", nil
	}

	store := storage.NewFilesystemStore(cfg.Receipts.Dir, cfg.Receipts.PublicBaseURL)
	return store, store.Root(), nil
}

// newGatewayRegistry enables every provider that has a secret key configured.
func newGatewayRegistry(cfg config.Config, observer *metrics.Observer) *gateway.Registry {
	verifyURL := cfg.BaseURL + "/payments/verify"
	adapters := make([]gateway.Adapter, 0, 3)

	if cfg.Paystack.SecretKey != "" {
		adapters = append(adapters, gateway.NewPaystack(gateway.PaystackConfig{
			BaseURL:     cfg.Paystack.BaseURL,
			SecretKey:   cfg.Paystack.SecretKey,
			CallbackURL: verifyURL,
			Timeout:     cfg.GatewayTimeout,
		}, observer))
	}
	if cfg.Flutterwave.SecretKey != "" {
		adapters = append(adapters, gateway.NewFlutterwave(gateway.FlutterwaveConfig{
			BaseURL:     cfg.Flutterwave.BaseURL,
			SecretKey:   cfg.Flutterwave.SecretKey,
			WebhookHash: cfg.Flutterwave.WebhookHash,
			RedirectURL: verifyURL,
			LogoURL:     cfg.Flutterwave.LogoURL,
			Timeout:     cfg.GatewayTimeout,
		}, observer))
	}
	if cfg.Stripe.SecretKey != "" {
		adapters = append(adapters, gateway.NewStripe(gateway.StripeConfig{
			SecretKey:     cfg.Stripe.SecretKey,
			WebhookSecret: cfg.Stripe.WebhookSecret,
			ReturnURL:     verifyURL,
			Timeout:       cfg.GatewayTimeout,
		}, observer))
	}

	return gateway.NewRegistry(adapters...)
}
