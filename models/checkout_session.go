package models

// CheckoutSession is the processor's authoritative view of a purchase session,
// flattened to the fields fulfillment needs.
type CheckoutSession struct {
	ID              string
	PaymentStatus   string
	Status          string
	CustomerEmail   string
	Metadata        map[string]string
	ClientReference string
	PriceID         string
	ProductID       string
	ProductName     string
}

// Paid reports whether the processor considers the session settled.
func (s CheckoutSession) Paid() bool {
	return s.PaymentStatus == "paid" || s.Status == "complete"
}
