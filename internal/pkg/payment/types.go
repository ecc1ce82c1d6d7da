package payment

import "strings"

// Notes keys the checkout flow writes into the payment metadata.
const (
	NoteKeyCustomerEmail = "customer_email"
	NoteKeyEmail         = "email"
	NoteKeyProductTitle  = "productTitle"
	NoteKeyProduct       = "product"
	NoteKeyAssetLink     = "assetLink"
)

// CapturedPayment is the normalized, provider-decoded shape of one captured
// payment taken from a webhook event. Amount is in major currency units.
type CapturedPayment struct {
	PaymentID string `validate:"required"`
	OrderID   string
	Amount    float64
	Notes     map[string]string
}

func (p CapturedPayment) note(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(p.Notes[k]); v != "" {
			return v
		}
	}
	return ""
}

// Contact returns the buyer contact carried in the notes, if any.
func (p CapturedPayment) Contact() string {
	return p.note(NoteKeyCustomerEmail, NoteKeyEmail)
}

// ProductTitle returns the purchased product name carried in the notes.
func (p CapturedPayment) ProductTitle() string {
	return p.note(NoteKeyProductTitle, NoteKeyProduct)
}

// AssetLink returns the asset download link carried in the notes. Callers
// fall back to the configured default asset URL when empty.
func (p CapturedPayment) AssetLink() string {
	return p.note(NoteKeyAssetLink)
}

// Dispatcher hands a captured payment off for asynchronous fulfillment after
// the sender has been acknowledged. eventID is the reserved ledger entry,
// zero when the reservation could not be persisted.
type Dispatcher interface {
	Dispatch(p CapturedPayment, eventID uint) error
}
