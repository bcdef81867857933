package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/digibazaar/digibazaar-backend/api/routes"
	"github.com/digibazaar/digibazaar-backend/internal/bank"
	"github.com/digibazaar/digibazaar-backend/internal/disputes"
	"github.com/digibazaar/digibazaar-backend/internal/invoices"
	"github.com/digibazaar/digibazaar-backend/internal/ledger"
	"github.com/digibazaar/digibazaar-backend/internal/orders"
	"github.com/digibazaar/digibazaar-backend/internal/payouts"
	"github.com/digibazaar/digibazaar-backend/pkg/commission"
	"github.com/digibazaar/digibazaar-backend/pkg/config"
	"github.com/digibazaar/digibazaar-backend/pkg/db"
	"github.com/digibazaar/digibazaar-backend/pkg/logger"
	"github.com/digibazaar/digibazaar-backend/pkg/metrics"
	"github.com/digibazaar/digibazaar-backend/pkg/migrate"
	"github.com/digibazaar/digibazaar-backend/pkg/outbox"
	"github.com/digibazaar/digibazaar-backend/pkg/outbox/idempotency"
	"github.com/digibazaar/digibazaar-backend/pkg/redis"
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

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	webhookGuard, err := idempotency.NewManager(redisClient, cfg.Gateway.WebhookTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to build webhook replay guard", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	stats := metrics.NewSettlementMetrics(registry)

	rates := commission.Rates{
		CommissionBps: cfg.Settlement.CommissionRateBps,
		GSTBps:        cfg.Settlement.GSTRateBps,
	}

	outboxSvc := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	ledgerSvc, err := ledger.NewService(ledger.NewRepository(dbClient.DB()), logg, cfg.Settlement.HoldingPeriod())
	if err != nil {
		logg.Error(context.Background(), "failed to create ledger service", err)
		os.Exit(1)
	}

	invoicesSvc, err := invoices.NewService(invoices.NewRepository(dbClient.DB()), dbClient, rates)
	if err != nil {
		logg.Error(context.Background(), "failed to create invoice service", err)
		os.Exit(1)
	}

	ordersRepo := orders.NewRepository(dbClient.DB())
	ordersSvc, err := orders.NewService(ordersRepo, dbClient, outboxSvc, invoicesSvc, rates)
	if err != nil {
		logg.Error(context.Background(), "failed to create order service", err)
		os.Exit(1)
	}

	bankRepo := bank.NewRepository(dbClient.DB())
	payoutsRepo := payouts.NewRepository(dbClient.DB())

	payoutsSvc, err := payouts.NewService(payoutsRepo, ledgerSvc, bankRepo, dbClient, outboxSvc, stats, cfg.Settlement)
	if err != nil {
		logg.Error(context.Background(), "failed to create payout service", err)
		os.Exit(1)
	}

	bankSvc, err := bank.NewService(bankRepo, payoutsRepo, dbClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create bank account service", err)
		os.Exit(1)
	}

	disputesSvc, err := disputes.NewService(disputes.NewRepository(dbClient.DB()), ordersRepo, payoutsRepo, dbClient, outboxSvc, stats)
	if err != nil {
		logg.Error(context.Background(), "failed to create dispute service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			webhookGuard,
			registry,
			ledgerSvc,
			ordersSvc,
			invoicesSvc,
			payoutsSvc,
			bankSvc,
			disputesSvc,
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
