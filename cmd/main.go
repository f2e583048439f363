package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/joho/godotenv"

	"dinemart/internal/analytics"
	"dinemart/internal/caching"
	"dinemart/internal/config"
	"dinemart/internal/handlers"
	"dinemart/internal/jobs/background"
	"dinemart/internal/middleware"
	"dinemart/internal/repositories"
	"dinemart/internal/services"
	"dinemart/pkg/database"
)

func main() {
	if err := godotenv.Load(); err != nil {
		logrus.Debug("no .env file found, using process environment")
	}

	logrus.SetFormatter(&logrus.JSONFormatter{})

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		logrus.Fatal("DATABASE_URL environment variable is required")
	}

	pool, err := database.NewPool(databaseURL)
	if err != nil {
		logrus.WithError(err).Fatal("failed to connect to database")
	}
	defer pool.Close()

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		logrus.Fatal("JWT_SECRET environment variable is required")
	}
	webhookSecret := os.Getenv("RAZORPAY_WEBHOOK_SECRET")
	if webhookSecret == "" {
		logrus.Fatal("RAZORPAY_WEBHOOK_SECRET environment variable is required")
	}

	// Billing rules from billing.toml, falling back to defaults.
	billingConfigPath := os.Getenv("BILLING_CONFIG")
	if billingConfigPath == "" {
		billingConfigPath = "billing.toml"
	}
	cfg, err := config.LoadBillingConfig(billingConfigPath)
	if err != nil {
		logrus.WithError(err).Fatal("failed to load billing config")
	}

	// Redis
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}
	redisDB := 0
	if raw := os.Getenv("REDIS_DB"); raw != "" {
		if db, err := strconv.Atoi(raw); err == nil {
			redisDB = db
		}
	}
	redisClient := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       redisDB,
	})
	cacheSvc := caching.NewRedisCacheServiceFromClient(redisClient)

	// MinIO snapshot archive
	minioEndpoint := os.Getenv("MINIO_ENDPOINT")
	if minioEndpoint == "" {
		minioEndpoint = "localhost:9000"
	}
	minioBucket := os.Getenv("MINIO_BUCKET")
	if minioBucket == "" {
		minioBucket = "invoice-snapshots"
	}
	snapshotStore, err := services.NewMinioSnapshotStore(
		minioEndpoint,
		os.Getenv("MINIO_ACCESS_KEY"),
		os.Getenv("MINIO_SECRET_KEY"),
		minioBucket,
		os.Getenv("MINIO_USE_SSL") == "true",
	)
	if err != nil {
		logrus.WithError(err).Fatal("failed to initialize snapshot store")
	}
	bucketCtx, cancelBucket := context.WithTimeout(context.Background(), 10*time.Second)
	if err := snapshotStore.EnsureBucket(bucketCtx); err != nil {
		logrus.WithError(err).Warn("snapshot bucket check failed; archives will fail until storage is reachable")
	}
	cancelBucket()

	// Repositories
	tenantRepo := repositories.NewTenantRepo(pool)
	subscriptionRepo := repositories.NewSubscriptionRepo(pool)
	invoiceRepo := repositories.NewInvoiceRepo(pool)
	orderFactsRepo := repositories.NewOrderFactsRepo(pool)
	auditLogRepo := repositories.NewAuditLogsRepo(pool)

	// Services
	aggregationSvc := services.NewAggregationService(
		tenantRepo, orderFactsRepo, cacheSvc,
		time.Duration(cfg.Generation.AggregateCacheTTLDays)*24*time.Hour,
	)
	subscriptionSvc := services.NewSubscriptionService(subscriptionRepo, auditLogRepo, cfg.Billing.PaymentGraceDays)
	billingSvc := services.NewBillingService(subscriptionRepo, invoiceRepo, aggregationSvc, cfg.Generation.Workers)
	invoiceSvc := services.NewInvoiceService(invoiceRepo, tenantRepo, auditLogRepo)
	summarySvc := analytics.NewSummaryService(invoiceRepo, subscriptionRepo, cacheSvc)
	gatewaySvc := services.NewRazorpayGateway(webhookSecret)

	// Handlers
	tenantHandlers := handlers.NewTenantHandlers(tenantRepo)
	subscriptionHandlers := handlers.NewSubscriptionHandlers(subscriptionSvc, cfg.Billing.TrialDays)
	billingHandlers := handlers.NewBillingHandlers(billingSvc, invoiceSvc, summarySvc, cfg.Billing.DueWindowDays)
	invoiceHandlers := handlers.NewInvoiceHandlers(invoiceSvc, snapshotStore)
	webhookHandlers := handlers.NewWebhookHandlers(gatewaySvc, subscriptionSvc, invoiceSvc)
	healthHandlers := handlers.NewHealthHandlers(pool, redisClient)

	// Background jobs
	scheduler, err := background.NewJobScheduler(billingSvc, invoiceSvc, subscriptionSvc, summarySvc, cfg.Billing.DueWindowDays)
	if err != nil {
		logrus.WithError(err).Fatal("failed to create job scheduler")
	}
	scheduler.Start()
	defer func() {
		if err := scheduler.Stop(); err != nil {
			logrus.WithError(err).Error("failed to stop job scheduler")
		}
	}()

	e := echo.New()
	e.Use(echoMiddleware.Logger())
	e.Use(echoMiddleware.Recover())
	e.Use(echoMiddleware.CORS())
	e.Use(echoMiddleware.RemoveTrailingSlash())

	// Health and webhooks stay outside auth.
	e.GET("/health", healthHandlers.HealthCheck)
	e.GET("/health/live", healthHandlers.LivenessCheck)
	e.POST("/webhooks/razorpay", webhookHandlers.RazorpayWebhook)

	v1 := e.Group("/v1")
	v1.Use(echojwt.WithConfig(middleware.JWTConfig(jwtSecret)))

	// Tenant routes
	v1.GET("/tenants", tenantHandlers.ListTenants)
	v1.POST("/tenants", tenantHandlers.CreateTenant)
	v1.GET("/tenants/:id", tenantHandlers.GetTenant)
	v1.GET("/tenants/:tenant_id/invoices", invoiceHandlers.ListTenantInvoices)

	// Subscription routes
	v1.POST("/tenants/:tenant_id/subscription", subscriptionHandlers.CreateSubscription)
	v1.GET("/tenants/:tenant_id/subscription", subscriptionHandlers.GetSubscription)
	v1.POST("/tenants/:tenant_id/subscription/activate", subscriptionHandlers.ActivateSubscription)
	v1.POST("/tenants/:tenant_id/subscription/suspend", subscriptionHandlers.SuspendSubscription)
	v1.POST("/tenants/:tenant_id/subscription/reactivate", subscriptionHandlers.ReactivateSubscription)
	v1.POST("/tenants/:tenant_id/subscription/cancel", subscriptionHandlers.CancelSubscription)

	// Billing routes
	v1.POST("/billing/generate", billingHandlers.GenerateInvoices)
	v1.POST("/billing/tenants/:tenant_id/generate", billingHandlers.GenerateTenantInvoice)
	v1.POST("/billing/finalize", billingHandlers.FinalizeMonth)
	v1.POST("/billing/sweep-overdue", billingHandlers.SweepOverdue)
	v1.GET("/billing/summary", billingHandlers.GetBillingSummary)

	// Ops
	v1.GET("/jobs/status", func(c echo.Context) error {
		return c.JSON(http.StatusOK, scheduler.GetJobStatus())
	})

	// Invoice routes
	v1.GET("/invoices", invoiceHandlers.ListInvoices)
	v1.GET("/invoices/:id", invoiceHandlers.GetInvoice)
	v1.POST("/invoices/:id/pay", invoiceHandlers.MarkPaid)
	v1.POST("/invoices/:id/pending", invoiceHandlers.MarkPending)
	v1.POST("/invoices/:id/reopen", invoiceHandlers.ReopenInvoice)
	v1.POST("/invoices/:id/snapshot", invoiceHandlers.ArchiveSnapshot)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	logrus.WithField("port", port).Info("dinemart billing engine starting")
	e.Logger.Fatal(e.Start(fmt.Sprintf(":%s", port)))
}
