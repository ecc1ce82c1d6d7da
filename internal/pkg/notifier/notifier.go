package notifier

import "context"

// Delivery carries everything needed to hand a purchased asset to the buyer.
type Delivery struct {
	To           string
	ProductTitle string
	AssetLink    string
	PaymentID    string
	AmountPaid   float64
}

// Notifier delivers the asset reference to the customer after a payment is
// confirmed. The channel (email, SMS, ...) is an implementation detail;
// callers only see success or failure.
type Notifier interface {
	Send(ctx context.Context, d Delivery) error
}
