package routehandlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/kfimusic/beatstore/fulfillment"
	"github.com/kfimusic/beatstore/webutil"
)

const (
	ParamProductKey = "productKey"
	ParamSessionID  = "sessionId"
)

// DownloadConfirmer is the polling entry point of the orchestrator.
type DownloadConfirmer interface {
	ConfirmDownloads(ctx context.Context, productKey, sessionID string) (*fulfillment.DownloadConfirmation, error)
}

type DownloadHandler struct {
	Confirmer DownloadConfirmer
}

func NewDownloadHandler(confirmer DownloadConfirmer) *DownloadHandler {
	return &DownloadHandler{Confirmer: confirmer}
}

// HandleGetDownloads returns short-lived links for a paid session.
func (h *DownloadHandler) HandleGetDownloads(w http.ResponseWriter, r *http.Request) error {
	productKey := strings.ToLower(strings.TrimSpace(chi.URLParam(r, ParamProductKey)))
	sessionID := strings.TrimSpace(chi.URLParam(r, ParamSessionID))
	if productKey == "" || sessionID == "" {
		return webutil.ErrBadRequest("Missing product or session")
	}

	result, err := h.Confirmer.ConfirmDownloads(r.Context(), productKey, sessionID)
	switch {
	case err == nil:
		webutil.RespondWithJSON(w, http.StatusOK, result)
		return nil
	case errors.Is(err, fulfillment.ErrPaymentNotVerified):
		return webutil.ErrForbidden("Payment not verified")
	case errors.Is(err, fulfillment.ErrNoFiles):
		return webutil.ErrNotFound(capitalize(err.Error()))
	case errors.Is(err, fulfillment.ErrNotConfigured):
		return webutil.ErrInternalServerWrap("Downloads are not configured", err)
	default:
		return webutil.ErrInternalServerWrap("Failed to generate download URLs", err)
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
