package payments

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/kfimusic/beatstore/models"
	"github.com/stripe/stripe-go/v78"
)

var ErrMalformedEvent = errors.New("malformed event payload")

// ParseEvent decodes an already verified webhook body. Non-checkout event
// types parse successfully with Kind set to ignored.
func ParseEvent(body []byte, signatureHeader string) (models.PurchaseEvent, error) {
	var event stripe.Event
	if err := json.Unmarshal(body, &event); err != nil {
		return models.PurchaseEvent{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if event.Type == "" {
		return models.PurchaseEvent{}, fmt.Errorf("%w: missing type", ErrMalformedEvent)
	}

	out := models.PurchaseEvent{
		ID:              event.ID,
		Type:            string(event.Type),
		Kind:            models.KindForEventType(string(event.Type)),
		SignatureHeader: signatureHeader,
		Payload:         body,
	}
	if out.Kind == models.PurchaseEventIgnored || event.Data == nil || len(event.Data.Raw) == 0 {
		return out, nil
	}

	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return models.PurchaseEvent{}, fmt.Errorf("%w: checkout session: %v", ErrMalformedEvent, err)
	}
	out.SessionID = session.ID
	out.CustomerEmail = sessionEmail(&session)
	out.Metadata = session.Metadata
	out.ClientReference = session.ClientReferenceID
	return out, nil
}

func sessionEmail(s *stripe.CheckoutSession) string {
	if s.CustomerDetails != nil && strings.TrimSpace(s.CustomerDetails.Email) != "" {
		return strings.TrimSpace(s.CustomerDetails.Email)
	}
	return strings.TrimSpace(s.CustomerEmail)
}
