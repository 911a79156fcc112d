package models

// PurchaseEventKind classifies a payment event by whether it should trigger fulfillment.
type PurchaseEventKind string

const (
	PurchaseEventCompleted      PurchaseEventKind = "completed"
	PurchaseEventAsyncSucceeded PurchaseEventKind = "async_succeeded"
	PurchaseEventIgnored        PurchaseEventKind = "ignored"
)

const (
	EventTypeCheckoutCompleted      = "checkout.session.completed"
	EventTypeCheckoutAsyncSucceeded = "checkout.session.async_payment_succeeded"
)

// KindForEventType maps a processor event type onto a PurchaseEventKind.
func KindForEventType(eventType string) PurchaseEventKind {
	switch eventType {
	case EventTypeCheckoutCompleted:
		return PurchaseEventCompleted
	case EventTypeCheckoutAsyncSucceeded:
		return PurchaseEventAsyncSucceeded
	default:
		return PurchaseEventIgnored
	}
}

// PurchaseEvent is one authenticated confirmation from the payment processor.
// It is only built after the signature over Payload has been verified.
type PurchaseEvent struct {
	ID              string
	Type            string
	Kind            PurchaseEventKind
	SignatureHeader string
	Payload         []byte

	SessionID       string
	CustomerEmail   string
	Metadata        map[string]string
	ClientReference string
}

// TriggersFulfillment reports whether the event kind warrants delivering files.
func (e PurchaseEvent) TriggersFulfillment() bool {
	return e.Kind == PurchaseEventCompleted || e.Kind == PurchaseEventAsyncSucceeded
}
