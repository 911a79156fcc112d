package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kfimusic/beatstore/metrics"
	rh "github.com/kfimusic/beatstore/route-handlers"
	"github.com/kfimusic/beatstore/webhooks"
	"github.com/kfimusic/beatstore/webutil"
)

const (
	apiBasePath       = "/api"
	webhookBasePath   = "/webhook"
	downloadsBasePath = "/downloads"
	previewBasePath   = "/preview"
	emailBasePath     = "/email"
)

const (
	paymentSubPath      = "/payment"
	stripeSubPath       = "/stripe" // Alias used by the processor dashboard
	senderSubPath       = "/sender"
	transportSubPath    = "/transport"
	testDownloadSubPath = "/test-download"
	attemptsSubPath     = "/attempts"
)

// Handlers groups everything the router dispatches to.
type Handlers struct {
	Payment    *webhooks.PaymentHandler
	Downloads  *rh.DownloadHandler
	Preview    *rh.PreviewHandler
	EmailAdmin *rh.EmailAdminHandler
	History    *rh.DeliveryHistoryHandler
	Health     *rh.HealthHandler
	AdminToken string
}

func SetupRoutes(h Handlers) http.Handler {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(metrics.Instrument)
	r.Use(SetHeader(webutil.HeaderContentType, webutil.ContentTypeJSONUTF8)) // Default Content-Type

	r.Route(webhookBasePath, func(r chi.Router) {
		configureWebhookRoutes(r, h.Payment)
	})

	r.Route(apiBasePath, func(r chi.Router) {
		configureDownloadRoutes(r, h.Downloads)
		configurePreviewRoutes(r, h.Preview)
		r.Get("/health", webutil.MakeHandler(h.Health.HandleHealth))
		r.Route(emailBasePath, func(r chi.Router) {
			r.Use(AdminAuth(h.AdminToken))
			configureEmailRoutes(r, h.EmailAdmin, h.History)
		})
	})

	r.Get("/healthz", handleHealthCheck)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return r
}

// Helper for constructing paths with a parameter
func pathWithParam(basePath string, paramName string) string {
	if basePath == "" {
		return "/{" + paramName + "}"
	}
	return basePath + "/{" + paramName + "}"
}

// --- Webhook Routes ---
func configureWebhookRoutes(r chi.Router, handler *webhooks.PaymentHandler) {
	r.Post(paymentSubPath, handler.HandlePayment)
	r.Post(stripeSubPath, handler.HandlePayment)
}

// --- Download Routes ---
func configureDownloadRoutes(r chi.Router, handler *rh.DownloadHandler) {
	path := pathWithParam(pathWithParam(downloadsBasePath, rh.ParamProductKey), rh.ParamSessionID)
	r.Get(path, webutil.MakeHandler(handler.HandleGetDownloads)) // GET /api/downloads/{productKey}/{sessionId}
}

// --- Preview Routes ---
func configurePreviewRoutes(r chi.Router, handler *rh.PreviewHandler) {
	r.Get(pathWithParam(previewBasePath, rh.ParamProductKey), webutil.MakeHandler(handler.HandleGetPreview))
}

// --- Email Admin Routes ---
func configureEmailRoutes(r chi.Router, handler *rh.EmailAdminHandler, history *rh.DeliveryHistoryHandler) {
	r.Get(senderSubPath, webutil.MakeHandler(handler.HandleGetSender))
	r.Post(senderSubPath, webutil.MakeHandler(handler.HandleSetSender))
	r.Get(transportSubPath, webutil.MakeHandler(handler.HandleGetTransport))
	r.Post(testDownloadSubPath, webutil.MakeHandler(handler.HandleTestDownload))
	r.Get(pathWithParam(attemptsSubPath, rh.ParamSessionID), webutil.MakeHandler(history.HandleGetAttempts)) // GET /api/email/attempts/{sessionId}
}

// --- Utility Functions ---

// handleHealthCheck responds to a health check request.
func handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set(webutil.HeaderContentType, webutil.ContentTypeTextPlainUTF8)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}
