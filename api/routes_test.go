package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kfimusic/beatstore/config"
	"github.com/kfimusic/beatstore/datastore"
	"github.com/kfimusic/beatstore/delivery"
	"github.com/kfimusic/beatstore/fulfillment"
	"github.com/kfimusic/beatstore/policy"
	rh "github.com/kfimusic/beatstore/route-handlers"
	"github.com/kfimusic/beatstore/webhooks"
)

type stubConfirmer struct{}

func (stubConfirmer) ConfirmDownloads(_ context.Context, productKey, sessionID string) (*fulfillment.DownloadConfirmation, error) {
	return &fulfillment.DownloadConfirmation{Product: productKey, SessionID: sessionID}, nil
}

func newTestRouter(token string) http.Handler {
	records := datastore.NewMemoryFulfillmentStore()
	_, _, _ = records.Claim(context.Background(), "cs_claimed")

	notifier := delivery.NewNotifier(delivery.NotifierOptions{
		Renderer: delivery.NewRenderer(delivery.Brand{}, policy.Default()),
	})
	return SetupRoutes(Handlers{
		Payment:    webhooks.NewPaymentHandler("", nil),
		Downloads:  rh.NewDownloadHandler(stubConfirmer{}),
		Preview:    rh.NewPreviewHandler(config.Catalog{}, nil),
		EmailAdmin: rh.NewEmailAdminHandler(notifier, nil),
		History:    rh.NewDeliveryHistoryHandler(records, nil),
		Health:     rh.NewHealthHandler("https://kfimusic.com"),
		AdminToken: token,
	})
}

func TestSetupRoutes(t *testing.T) {
	router := newTestRouter("")

	tests := []struct {
		method string
		path   string
		want   int
		body   string
	}{
		{http.MethodGet, "/healthz", http.StatusOK, "OK"},
		{http.MethodGet, "/api/health", http.StatusOK, `"frontend":"https://kfimusic.com"`},
		{http.MethodGet, "/api/downloads/lucid/cs_1", http.StatusOK, `"sessionId":"cs_1"`},
		{http.MethodPost, "/webhook/payment", http.StatusOK, `"received":true`},
		{http.MethodPost, "/webhook/stripe", http.StatusOK, `"received":true`},
		{http.MethodGet, "/api/email/sender", http.StatusOK, `"mode":"auto"`},
		{http.MethodGet, "/api/email/attempts/cs_claimed", http.StatusOK, `"status":"sending"`},
		{http.MethodGet, "/api/email/attempts/cs_unknown", http.StatusNotFound, "No fulfillment record for session"},
		{http.MethodGet, "/api/preview/lucid", http.StatusInternalServerError, "Storage not configured"},
		{http.MethodGet, "/webhook/payment", http.StatusMethodNotAllowed, ""},
		{http.MethodGet, "/metrics", http.StatusOK, ""},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, strings.NewReader("{}")))
			if rec.Code != tt.want {
				t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
			}
			if tt.body != "" && !strings.Contains(rec.Body.String(), tt.body) {
				t.Fatalf("body %q missing %q", rec.Body.String(), tt.body)
			}
		})
	}
}

func TestAdminAuth(t *testing.T) {
	router := newTestRouter("s3cret")

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong", "Bearer nope", http.StatusUnauthorized},
		{"not bearer", "s3cret", http.StatusUnauthorized},
		{"valid", "Bearer s3cret", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/email/transport", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
			}
			if tt.want == http.StatusUnauthorized && !strings.Contains(rec.Body.String(), `"error":"Unauthorized"`) {
				t.Fatalf("body=%s", rec.Body.String())
			}
		})
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/email/attempts/cs_claimed", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("attempt history must require the token, status=%d", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("public route must stay open, status=%d", rec.Code)
	}
}
