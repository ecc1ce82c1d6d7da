package payment

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// EventPaymentCaptured is the only event type this pipeline acts on.
const EventPaymentCaptured = "payment.captured"

// ErrMissingPayment marks a captured-payment event whose payload lacks the
// expected nested payment entity. The sender cannot fix this by retrying, so
// handlers acknowledge it and surface it to operators instead.
var ErrMissingPayment = errors.New("captured-payment event has no payment entity")

type webhookEnvelope struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity *struct {
				ID      string                 `json:"id"`
				OrderID string                 `json:"order_id"`
				Amount  float64                `json:"amount"`
				Notes   map[string]interface{} `json:"notes"`
			} `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

var validate = validator.New()

// ParseWebhookEvent decodes a verified raw webhook body. It returns the event
// type for every well-formed body; the normalized payment is only populated
// for captured-payment events. A captured-payment event without a usable
// payment entity yields ErrMissingPayment.
//
// The processor reports amounts in minor currency units; they are converted
// to major units here.
func ParseWebhookEvent(raw []byte) (string, *CapturedPayment, error) {
	var env webhookEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return "", nil, fmt.Errorf("failed to decode webhook body: %w", err)
	}

	eventType := strings.TrimSpace(env.Event)
	if eventType != EventPaymentCaptured {
		return eventType, nil, nil
	}

	entity := env.Payload.Payment.Entity
	if entity == nil {
		return eventType, nil, ErrMissingPayment
	}

	p := &CapturedPayment{
		PaymentID: strings.TrimSpace(entity.ID),
		OrderID:   strings.TrimSpace(entity.OrderID),
		Amount:    entity.Amount / 100,
		Notes:     stringNotes(entity.Notes),
	}
	if err := validate.Struct(p); err != nil {
		return eventType, nil, fmt.Errorf("%w: %v", ErrMissingPayment, err)
	}
	return eventType, p, nil
}

// stringNotes keeps only string-valued notes; the processor allows arbitrary
// JSON values but the checkout flow writes strings.
func stringNotes(raw map[string]interface{}) map[string]string {
	notes := make(map[string]string, len(raw))
	for k, v := range raw {
		if s, ok := v.(string); ok {
			notes[k] = s
		}
	}
	return notes
}
