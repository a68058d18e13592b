package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jkariuki/nyumbani-backend/api/routes"
	"github.com/jkariuki/nyumbani-backend/internal/apartments"
	authsvc "github.com/jkariuki/nyumbani-backend/internal/auth"
	"github.com/jkariuki/nyumbani-backend/internal/invoices"
	"github.com/jkariuki/nyumbani-backend/internal/notifications"
	"github.com/jkariuki/nyumbani-backend/internal/payments"
	"github.com/jkariuki/nyumbani-backend/internal/properties"
	"github.com/jkariuki/nyumbani-backend/internal/reconcile"
	"github.com/jkariuki/nyumbani-backend/internal/tenants"
	"github.com/jkariuki/nyumbani-backend/internal/users"
	"github.com/jkariuki/nyumbani-backend/pkg/auth/session"
	"github.com/jkariuki/nyumbani-backend/pkg/config"
	"github.com/jkariuki/nyumbani-backend/pkg/db"
	"github.com/jkariuki/nyumbani-backend/pkg/logger"
	"github.com/jkariuki/nyumbani-backend/pkg/metrics"
	"github.com/jkariuki/nyumbani-backend/pkg/migrate"
	"github.com/jkariuki/nyumbani-backend/pkg/mpesa"
	"github.com/jkariuki/nyumbani-backend/pkg/redis"
	"github.com/jkariuki/nyumbani-backend/pkg/sms"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		logg.Error(ctx, "failed to create session manager", err)
		os.Exit(1)
	}

	mpesaClient, err := mpesa.NewClient(ctx, cfg.Mpesa, logg)
	if err != nil {
		logg.Error(ctx, "failed to create mpesa client", err)
		os.Exit(1)
	}

	smsClient, err := sms.NewClient(ctx, cfg.SMS, logg)
	if err != nil {
		logg.Error(ctx, "failed to create sms client", err)
		os.Exit(1)
	}

	reconciliationMetrics := metrics.NewReconciliationMetrics(prometheus.DefaultRegisterer)

	userRepo := users.NewRepository(dbClient.DB())
	propertyRepo := properties.NewRepository(dbClient.DB())
	apartmentRepo := apartments.NewRepository(dbClient.DB())
	tenantRepo := tenants.NewRepository(dbClient.DB())
	invoiceRepo := invoices.NewRepository(dbClient.DB())
	paymentRepo := payments.NewRepository(dbClient.DB())

	authService, err := authsvc.NewService(authsvc.ServiceParams{
		Repo:     userRepo,
		Sessions: sessionManager,
		JWT:      cfg.JWT,
		Password: cfg.Password,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to create auth service", err)
		os.Exit(1)
	}

	propertyService, err := properties.NewService(properties.ServiceParams{
		Repo:   propertyRepo,
		Logger: logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to create property service", err)
		os.Exit(1)
	}

	apartmentService, err := apartments.NewService(apartments.ServiceParams{
		Repo:         apartmentRepo,
		PropertyRepo: propertyRepo,
		Logger:       logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to create apartment service", err)
		os.Exit(1)
	}

	tenantService, err := tenants.NewService(tenants.ServiceParams{
		Repo:              tenantRepo,
		ApartmentRepo:     apartmentRepo,
		PropertyRepo:      propertyRepo,
		TransactionRunner: dbClient,
		Logger:            logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to create tenant service", err)
		os.Exit(1)
	}

	invoiceService, err := invoices.NewService(invoices.ServiceParams{
		Repo:          invoiceRepo,
		TenantRepo:    tenantRepo,
		ApartmentRepo: apartmentRepo,
		PropertyRepo:  propertyRepo,
		PaymentRepo:   paymentRepo,
		Logger:        logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to create invoice service", err)
		os.Exit(1)
	}

	paymentService, err := payments.NewService(payments.ServiceParams{
		Repo:          paymentRepo,
		TenantRepo:    tenantRepo,
		ApartmentRepo: apartmentRepo,
		PropertyRepo:  propertyRepo,
		Gateway:       mpesaClient,
		Logger:        logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to create payment service", err)
		os.Exit(1)
	}

	notificationService, err := notifications.NewService(notifications.ServiceParams{
		TenantRepo:    tenantRepo,
		ApartmentRepo: apartmentRepo,
		PropertyRepo:  propertyRepo,
		PaymentRepo:   paymentRepo,
		Sender:        smsClient,
		Billing:       cfg.Billing,
		Paybill:       cfg.Mpesa.ShortCode,
		Logger:        logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to create notification service", err)
		os.Exit(1)
	}

	reconcileService, err := reconcile.NewService(reconcile.ServiceParams{
		ApartmentRepo:     apartmentRepo,
		TenantRepo:        tenantRepo,
		PaymentRepo:       paymentRepo,
		InvoiceRepo:       invoiceRepo,
		TransactionRunner: dbClient,
		Notifier:          notificationService,
		Metrics:           reconciliationMetrics,
		Logger:            logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to create reconciliation engine", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	startCtx := logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(startCtx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(cfg, logg, dbClient, redisClient, sessionManager, routes.Services{
			Auth:          authService,
			Properties:    propertyService,
			Apartments:    apartmentService,
			Tenants:       tenantService,
			Invoices:      invoiceService,
			Payments:      paymentService,
			Notifications: notificationService,
			Reconcile:     reconcileService,
		}),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logg.Info(context.Background(), "shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(shutdownCtx, "error during shutdown", err)
		}
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logg.Error(context.Background(), "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	}
}
