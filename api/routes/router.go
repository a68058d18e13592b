package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jkariuki/nyumbani-backend/api/controllers"
	webhookcontrollers "github.com/jkariuki/nyumbani-backend/api/controllers/webhooks"
	"github.com/jkariuki/nyumbani-backend/api/middleware"
	"github.com/jkariuki/nyumbani-backend/internal/apartments"
	authsvc "github.com/jkariuki/nyumbani-backend/internal/auth"
	"github.com/jkariuki/nyumbani-backend/internal/invoices"
	"github.com/jkariuki/nyumbani-backend/internal/notifications"
	"github.com/jkariuki/nyumbani-backend/internal/payments"
	"github.com/jkariuki/nyumbani-backend/internal/properties"
	"github.com/jkariuki/nyumbani-backend/internal/tenants"
	"github.com/jkariuki/nyumbani-backend/pkg/auth/session"
	"github.com/jkariuki/nyumbani-backend/pkg/config"
	"github.com/jkariuki/nyumbani-backend/pkg/db"
	"github.com/jkariuki/nyumbani-backend/pkg/enums"
	"github.com/jkariuki/nyumbani-backend/pkg/logger"
	"github.com/jkariuki/nyumbani-backend/pkg/redis"
)

// Services groups everything the router wires into handlers.
type Services struct {
	Auth          *authsvc.Service
	Properties    *properties.Service
	Apartments    *apartments.Service
	Tenants       *tenants.Service
	Invoices      *invoices.Service
	Payments      *payments.Service
	Notifications *notifications.Service
	Reconcile     webhookcontrollers.ReconcileService
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisP redis.Pinger,
	sessions session.AccessSessionChecker,
	svcs Services,
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
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisP))
	})

	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// Gateway callbacks are unauthenticated; Daraja cannot carry a bearer
	// token.
	r.Route("/api/payments/mpesa", func(r chi.Router) {
		r.Post("/callback", webhookcontrollers.MpesaC2BCallback(svcs.Reconcile, logg))
		r.Post("/stk-callback", webhookcontrollers.MpesaSTKCallback(logg))
	})

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/register", controllers.AuthRegister(svcs.Auth, logg))
		r.Post("/login", controllers.AuthLogin(svcs.Auth, logg))
		r.Post("/refresh", controllers.AuthRefresh(svcs.Auth, logg))
		r.Post("/logout", controllers.AuthLogout(svcs.Auth, cfg.JWT, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, sessions, logg))
			r.Get("/profile", controllers.AuthProfile(svcs.Auth, logg))
			r.Put("/profile", controllers.AuthProfileUpdate(svcs.Auth, logg))
		})
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, sessions, logg))
		r.Use(middleware.RequireRole(string(enums.UserRoleLandlord), logg))

		r.Route("/properties", func(r chi.Router) {
			r.Post("/", controllers.PropertyCreate(svcs.Properties, logg))
			r.Get("/", controllers.PropertyList(svcs.Properties, logg))
			r.Get("/{propertyId}", controllers.PropertyDetail(svcs.Properties, logg))
			r.Put("/{propertyId}", controllers.PropertyUpdate(svcs.Properties, logg))
			r.Delete("/{propertyId}", controllers.PropertyDelete(svcs.Properties, logg))
			r.Get("/{propertyId}/apartments", controllers.ApartmentList(svcs.Apartments, logg))
		})

		r.Route("/apartments", func(r chi.Router) {
			r.Post("/", controllers.ApartmentCreate(svcs.Apartments, logg))
			r.Get("/{apartmentId}", controllers.ApartmentDetail(svcs.Apartments, logg))
			r.Put("/{apartmentId}", controllers.ApartmentUpdate(svcs.Apartments, logg))
			r.Delete("/{apartmentId}", controllers.ApartmentDelete(svcs.Apartments, logg))
		})

		r.Route("/tenants", func(r chi.Router) {
			r.Post("/", controllers.TenantCreate(svcs.Tenants, logg))
			r.Get("/", controllers.TenantList(svcs.Tenants, logg))
			r.Get("/{tenantId}", controllers.TenantDetail(svcs.Tenants, logg))
			r.Put("/{tenantId}", controllers.TenantUpdate(svcs.Tenants, logg))
			r.Post("/{tenantId}/end-lease", controllers.TenantEndLease(svcs.Tenants, logg))
		})

		r.Route("/invoices", func(r chi.Router) {
			r.Post("/", controllers.InvoiceCreate(svcs.Invoices, logg))
			r.Get("/", controllers.InvoiceList(svcs.Invoices, logg))
			r.Get("/{invoiceId}", controllers.InvoiceDetail(svcs.Invoices, logg))
			r.Put("/{invoiceId}", controllers.InvoiceUpdate(svcs.Invoices, logg))
			r.Delete("/{invoiceId}", controllers.InvoiceDelete(svcs.Invoices, logg))
			r.Post("/{invoiceId}/mark-paid", controllers.InvoiceMarkPaid(svcs.Invoices, logg))
		})

		r.Route("/payments", func(r chi.Router) {
			r.Get("/", controllers.PaymentList(svcs.Payments, logg))
			r.Get("/summary", controllers.PaymentSummary(svcs.Payments, logg))
			r.Get("/by-property", controllers.PaymentByProperty(svcs.Payments, logg))
			r.Get("/{paymentId}", controllers.PaymentDetail(svcs.Payments, logg))
			r.Get("/mpesa/verify/{transactionId}", controllers.PaymentVerify(svcs.Payments, logg))
			r.Post("/mpesa/stkpush", controllers.PaymentSTKPush(svcs.Payments, logg))
			r.Post("/mpesa/stkpush/query", controllers.PaymentSTKQuery(svcs.Payments, logg))
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Post("/sms", controllers.NotificationSendCustom(svcs.Notifications, logg))
			r.Post("/reminders", controllers.NotificationSendReminders(svcs.Notifications, logg))
			r.Post("/reminders/bulk", controllers.NotificationSendBulkReminders(svcs.Notifications, logg))
			r.Post("/overdue", controllers.NotificationSendOverdueNotices(svcs.Notifications, logg))
		})
	})

	return r
}
