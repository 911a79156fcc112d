package payments

import (
	"context"
	"errors"
	"fmt"

	"github.com/kfimusic/beatstore/models"
	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
)

var ErrProcessorNotConfigured = errors.New("payment processor not configured")

// SessionRetriever fetches the processor's authoritative checkout session.
type SessionRetriever interface {
	RetrieveSession(ctx context.Context, sessionID string) (models.CheckoutSession, error)
}

// StripeClient retrieves checkout sessions with their line items expanded.
type StripeClient struct {
	api *client.API
}

// NewStripeClient returns nil when no secret key is configured.
func NewStripeClient(secretKey string) *StripeClient {
	if secretKey == "" {
		return nil
	}
	return NewStripeClientWithBackend(secretKey, nil)
}

// NewStripeClientWithBackend uses backend for every API call. A nil backend
// selects the library defaults.
func NewStripeClientWithBackend(secretKey string, backend stripe.Backend) *StripeClient {
	var backends *stripe.Backends
	if backend != nil {
		backends = &stripe.Backends{API: backend, Connect: backend, Uploads: backend}
	}
	return &StripeClient{api: client.New(secretKey, backends)}
}

func (c *StripeClient) RetrieveSession(ctx context.Context, sessionID string) (models.CheckoutSession, error) {
	if c == nil || c.api == nil {
		return models.CheckoutSession{}, ErrProcessorNotConfigured
	}

	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	params.AddExpand("line_items.data.price.product")

	s, err := c.api.CheckoutSessions.Get(sessionID, params)
	if err != nil {
		return models.CheckoutSession{}, fmt.Errorf("retrieve checkout session %s: %w", sessionID, err)
	}
	return toCheckoutSession(s), nil
}

func toCheckoutSession(s *stripe.CheckoutSession) models.CheckoutSession {
	out := models.CheckoutSession{
		ID:              s.ID,
		PaymentStatus:   string(s.PaymentStatus),
		Status:          string(s.Status),
		CustomerEmail:   sessionEmail(s),
		Metadata:        s.Metadata,
		ClientReference: s.ClientReferenceID,
	}
	if s.LineItems == nil || len(s.LineItems.Data) == 0 {
		return out
	}

	item := s.LineItems.Data[0]
	if item == nil {
		return out
	}
	if item.Price != nil {
		out.PriceID = item.Price.ID
		if item.Price.Product != nil {
			out.ProductID = item.Price.Product.ID
			out.ProductName = item.Price.Product.Name
		}
	}
	if out.ProductName == "" {
		out.ProductName = item.Description
	}
	return out
}
