package webhooks

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/kfimusic/beatstore/fulfillment"
	"github.com/kfimusic/beatstore/metrics"
	"github.com/kfimusic/beatstore/models"
	"github.com/kfimusic/beatstore/payments"
	"github.com/kfimusic/beatstore/webutil"
)

// maxPayloadBytes bounds webhook bodies; processor events are far smaller.
const maxPayloadBytes = 1 << 20

// EventProcessor runs fulfillment for an authenticated event.
type EventProcessor interface {
	HandleEvent(ctx context.Context, ev models.PurchaseEvent) fulfillment.Outcome
}

type PaymentHandler struct {
	secret    string
	processor EventProcessor
}

// NewPaymentHandler acknowledges and ignores every delivery when secret is
// empty or processor is nil.
func NewPaymentHandler(secret string, processor EventProcessor) *PaymentHandler {
	return &PaymentHandler{secret: secret, processor: processor}
}

// HandlePayment answers 400 only when the signature does not verify. Once the
// event is authenticated the processor always gets 200, whatever happens
// downstream, so it does not redeliver.
func (h *PaymentHandler) HandlePayment(w http.ResponseWriter, r *http.Request) {
	if h.secret == "" || h.processor == nil {
		metrics.WebhookEventsTotal.WithLabelValues("unconfigured").Inc()
		acknowledge(w, "ignored")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPayloadBytes))
	if err != nil {
		metrics.WebhookEventsTotal.WithLabelValues("unreadable").Inc()
		log.Printf("WARN (PaymentHandler): failed to read body: %v", err)
		webutil.RespondWithError(w, http.StatusBadRequest, "Unreadable payload")
		return
	}

	sigHeader := r.Header.Get(webutil.HeaderStripeSignature)
	if err := payments.VerifySignature(body, sigHeader, h.secret); err != nil {
		reason := payments.RejectionReason(err)
		metrics.WebhookEventsTotal.WithLabelValues(reason).Inc()
		log.Printf("WARN (PaymentHandler): signature verification failed (%s): %v", reason, err)
		webutil.RespondWithError(w, http.StatusBadRequest, "Invalid signature")
		return
	}

	ev, err := payments.ParseEvent(body, sigHeader)
	if err != nil {
		handleProcessingError(w, "could not decode authenticated event", err)
		return
	}

	outcome := h.processor.HandleEvent(r.Context(), ev)
	metrics.WebhookEventsTotal.WithLabelValues(string(outcome.State)).Inc()
	if outcome.Err != nil {
		log.Printf("ERROR (PaymentHandler): event %s (%s) ended in %s: %v", ev.ID, ev.Type, outcome.State, outcome.Err)
	}
	acknowledge(w, string(outcome.State))
}

// handleProcessingError logs err and still acknowledges the delivery.
func handleProcessingError(w http.ResponseWriter, logMessage string, err error) {
	metrics.WebhookEventsTotal.WithLabelValues("malformed").Inc()
	if errors.Is(err, payments.ErrMalformedEvent) {
		log.Printf("WARN (PaymentHandler): %s: %v", logMessage, err)
	} else {
		log.Printf("ERROR (PaymentHandler): %s: %v", logMessage, err)
	}
	acknowledge(w, "ignored")
}

func acknowledge(w http.ResponseWriter, state string) {
	webutil.RespondWithJSON(w, http.StatusOK, map[string]any{"received": true, "state": state})
}
