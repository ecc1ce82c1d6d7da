package payment

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2/log"
	"github.com/vikrampresence-a11y/storefront/internal/pkg/notifier"
)

// Fulfiller runs the post-acknowledgment half of the pipeline: deliver the
// asset through the notifier, then finalize the ledger entry and the
// purchase. The sender has already disconnected when this runs; every failure
// here is handled through logging and the ledger, never surfaced upstream.
type Fulfiller struct {
	svc              *Service
	notifier         notifier.Notifier
	fallbackAssetURL string
}

// NewFulfiller wires the fulfillment task with its injected dependencies.
func NewFulfiller(svc *Service, n notifier.Notifier, fallbackAssetURL string) *Fulfiller {
	return &Fulfiller{svc: svc, notifier: n, fallbackAssetURL: fallbackAssetURL}
}

// Fulfill delivers the asset for one captured payment and records the
// outcome. eventID is the ledger entry reserved for this payment; zero means
// the reservation failed earlier and only the notification is attempted.
//
// A returned error means the notifier failed and the attempt is retryable.
// Unfixable payloads (missing contact) return nil after marking the ledger
// entry failed, because a retry cannot repair the payload.
func (f *Fulfiller) Fulfill(ctx context.Context, p CapturedPayment, eventID uint) error {
	contact := p.Contact()
	if err := validator.New().Var(contact, "required,email"); err != nil {
		log.Errorf("[Fulfillment] No usable contact for payment %s (order %s), manual follow-up required: notes=%v",
			p.PaymentID, p.OrderID, p.Notes)
		if eventID != 0 {
			if ferr := f.svc.FailWebhookEvent(ctx, eventID, fmt.Errorf("missing buyer contact")); ferr != nil {
				log.Errorf("[Fulfillment] Failed to mark event %d failed: %v", eventID, ferr)
			}
		}
		return nil
	}

	product := p.ProductTitle()
	if product == "" {
		product = "your purchase"
	}
	assetLink := p.AssetLink()
	if assetLink == "" {
		assetLink = f.fallbackAssetURL
	}

	delivery := notifier.Delivery{
		To:           contact,
		ProductTitle: product,
		AssetLink:    assetLink,
		PaymentID:    p.PaymentID,
		AmountPaid:   p.Amount,
	}
	if err := f.notifier.Send(ctx, delivery); err != nil {
		log.Errorf("[Fulfillment] Notifier failed for payment %s (contact=%s, product=%s): %v",
			p.PaymentID, contact, product, err)
		if eventID != 0 {
			if rerr := f.svc.RecordWebhookError(ctx, eventID, err); rerr != nil {
				log.Errorf("[Fulfillment] Failed to record error on event %d: %v", eventID, rerr)
			}
		}
		return err
	}

	// Ledger and purchase finalization are independent best-effort updates.
	// Neither failure blocks the other, and neither re-triggers the notifier:
	// the customer already has the asset.
	if eventID != 0 {
		if err := f.svc.CompleteWebhookEvent(ctx, eventID); err != nil {
			log.Errorf("[Fulfillment] Failed to complete ledger entry %d for payment %s: %v",
				eventID, p.PaymentID, err)
		}
	}
	if p.OrderID != "" {
		if err := f.svc.FinalizePurchase(ctx, p.OrderID, p.PaymentID); err != nil {
			log.Errorf("[Fulfillment] Failed to finalize purchase %s for payment %s: %v",
				p.OrderID, p.PaymentID, err)
		}
	} else {
		log.Warnf("[Fulfillment] Payment %s carries no order id, no purchase to finalize", p.PaymentID)
	}
	return nil
}

// Abandon marks the ledger entry failed after fulfillment retries are
// exhausted, so the dead-lettered payment stays visible to operators.
func (f *Fulfiller) Abandon(ctx context.Context, eventID uint, cause error) {
	if eventID == 0 {
		return
	}
	if err := f.svc.FailWebhookEvent(ctx, eventID, cause); err != nil {
		log.Errorf("[Fulfillment] Failed to mark event %d abandoned: %v", eventID, err)
	}
}
