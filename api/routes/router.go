package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/digibazaar/digibazaar-backend/api/controllers"
	webhookcontrollers "github.com/digibazaar/digibazaar-backend/api/controllers/webhooks"
	"github.com/digibazaar/digibazaar-backend/api/middleware"
	internalbank "github.com/digibazaar/digibazaar-backend/internal/bank"
	internaldisputes "github.com/digibazaar/digibazaar-backend/internal/disputes"
	internalinvoices "github.com/digibazaar/digibazaar-backend/internal/invoices"
	"github.com/digibazaar/digibazaar-backend/internal/ledger"
	internalorders "github.com/digibazaar/digibazaar-backend/internal/orders"
	internalpayouts "github.com/digibazaar/digibazaar-backend/internal/payouts"
	"github.com/digibazaar/digibazaar-backend/pkg/config"
	"github.com/digibazaar/digibazaar-backend/pkg/db"
	"github.com/digibazaar/digibazaar-backend/pkg/logger"
	"github.com/digibazaar/digibazaar-backend/pkg/outbox/idempotency"
	pkgredis "github.com/digibazaar/digibazaar-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *pkgredis.Client,
	webhookGuard *idempotency.Manager,
	promGatherer prometheus.Gatherer,
	ledgerService ledger.Service,
	ordersService internalorders.Service,
	invoicesService internalinvoices.Service,
	payoutsService internalpayouts.Service,
	bankService internalbank.Service,
	disputesService internaldisputes.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, map[string]db.Pinger{
			"postgres": dbP,
			"redis":    redisClient,
		}))
	})

	if promGatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(promGatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/payments", webhookcontrollers.PaymentGateway(ordersService, cfg.Gateway, webhookGuard, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RateLimit(cfg.RateLimit, redisClient, logg))
		r.Use(middleware.Idempotency(redisClient, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Post("/checkout", controllers.Checkout(ordersService, logg))
			r.Get("/{orderId}", controllers.OrderDetail(ordersService, logg))
		})
		r.Post("/disputes", controllers.OpenDispute(disputesService, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireSeller(logg))

			r.Route("/seller", func(r chi.Router) {
				r.Get("/balance", controllers.SellerBalance(ledgerService, bankService, cfg.Settlement, logg))
				r.Get("/statement", controllers.SellerStatement(ledgerService, logg))
				r.Get("/orders", controllers.SellerOrders(ordersService, logg))
				r.Get("/orders/{orderId}/invoice", controllers.OrderInvoice(invoicesService, logg))
				r.Get("/invoices", controllers.SellerInvoices(invoicesService, logg))
				r.Get("/disputes", controllers.SellerDisputes(disputesService, logg))
			})

			r.Route("/payouts", func(r chi.Router) {
				r.Post("/request", controllers.RequestPayout(payoutsService, cfg.Settlement, logg))
				r.Get("/", controllers.PayoutHistory(payoutsService, logg))
				r.Get("/{payoutId}", controllers.PayoutDetail(payoutsService, logg))
				r.Post("/{payoutId}/cancel", controllers.CancelPayout(payoutsService, logg))
			})

			r.Route("/bank-accounts", func(r chi.Router) {
				r.Post("/", controllers.AddBankAccount(bankService, logg))
				r.Get("/", controllers.ListBankAccounts(bankService, logg))
				r.Get("/{accountId}", controllers.GetBankAccount(bankService, logg))
				r.Post("/{accountId}/primary", controllers.SetPrimaryBankAccount(bankService, logg))
				r.Delete("/{accountId}", controllers.RemoveBankAccount(bankService, logg))
			})
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireRole("admin", logg))

			r.Route("/payouts", func(r chi.Router) {
				r.Get("/", controllers.AdminPayouts(payoutsService, logg))
				r.Post("/{payoutId}/acknowledge", controllers.AdminAcknowledgePayout(payoutsService, logg))
				r.Post("/{payoutId}/mark-paid", controllers.AdminMarkPayoutPaid(payoutsService, logg))
				r.Post("/{payoutId}/reject", controllers.AdminRejectPayout(payoutsService, logg))
			})
			r.Route("/disputes", func(r chi.Router) {
				r.Get("/", controllers.AdminDisputes(disputesService, logg))
				r.Get("/{disputeId}", controllers.AdminDisputeDetail(disputesService, logg))
				r.Post("/{disputeId}/approve", controllers.AdminApproveDispute(disputesService, logg))
				r.Post("/{disputeId}/reject", controllers.AdminRejectDispute(disputesService, logg))
			})
			r.Post("/bank-accounts/{accountId}/verify", controllers.AdminVerifyBankAccount(bankService, logg))
		})
	})

	return r
}
