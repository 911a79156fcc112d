package routehandlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/kfimusic/beatstore/datastore"
	"github.com/kfimusic/beatstore/models"
	"github.com/kfimusic/beatstore/webutil"
)

type RecordGetter interface {
	GetRecord(ctx context.Context, sessionID string) (*models.FulfillmentRecord, error)
}

type AttemptLister interface {
	ListAttemptsBySession(ctx context.Context, sessionID string) ([]models.DeliveryAttempt, error)
}

// DeliveryHistoryHandler reports what happened to one session's download
// email. Attempts is nil when no database is configured.
type DeliveryHistoryHandler struct {
	Records  RecordGetter
	Attempts AttemptLister
}

func NewDeliveryHistoryHandler(records RecordGetter, attempts AttemptLister) *DeliveryHistoryHandler {
	return &DeliveryHistoryHandler{Records: records, Attempts: attempts}
}

type deliveryHistoryResponse struct {
	OK       bool                      `json:"ok"`
	Record   *models.FulfillmentRecord `json:"record"`
	Attempts []models.DeliveryAttempt  `json:"attempts"`
}

func (h *DeliveryHistoryHandler) HandleGetAttempts(w http.ResponseWriter, r *http.Request) error {
	sessionID := chi.URLParam(r, ParamSessionID)

	rec, err := h.Records.GetRecord(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, datastore.ErrRecordNotFound) {
			return webutil.ErrNotFoundWrap("No fulfillment record for session", err)
		}
		return webutil.ErrInternalServerWrap("Failed to load fulfillment record", err)
	}

	attempts := []models.DeliveryAttempt{}
	if h.Attempts != nil {
		list, err := h.Attempts.ListAttemptsBySession(r.Context(), sessionID)
		if err != nil {
			return webutil.ErrInternalServerWrap("Failed to load delivery attempts", err)
		}
		attempts = append(attempts, list...)
	}

	webutil.RespondWithJSON(w, http.StatusOK, deliveryHistoryResponse{OK: true, Record: rec, Attempts: attempts})
	return nil
}
