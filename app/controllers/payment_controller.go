package controllers

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/vikrampresence-a11y/storefront/internal/pkg/env"
	"github.com/vikrampresence-a11y/storefront/internal/pkg/metrics/counter"
	"github.com/vikrampresence-a11y/storefront/internal/pkg/payment"
)

// SignatureHeader carries the processor's hex HMAC-SHA256 over the raw body.
const SignatureHeader = "X-Razorpay-Signature"

// PaymentController handles payment processor webhooks. Everything it needs
// is injected so handler tests run against fakes.
type PaymentController struct {
	svc        *payment.Service
	dispatcher payment.Dispatcher
	secret     func() string
}

// NewPaymentController wires the webhook handler with its dependencies.
func NewPaymentController(svc *payment.Service, dispatcher payment.Dispatcher, secret func() string) *PaymentController {
	return &PaymentController{svc: svc, dispatcher: dispatcher, secret: secret}
}

// WebhookSecretFromEnv is the production secret source.
func WebhookSecretFromEnv() string {
	return env.GetEnv("PAYMENT_WEBHOOK_SECRET", "")
}

// HandlePaymentWebhook is the acknowledgment gate of the pipeline. Signature
// check, parse/filter and the idempotency reservation happen before the
// response; delivery of the asset happens on the fulfillment queue after the
// sender has been answered. The processor retries aggressively on slow
// responses, so nothing slow runs on this path.
func (pc *PaymentController) HandlePaymentWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)
	signature := strings.TrimSpace(c.Get(SignatureHeader))

	secret := pc.secret()
	if secret == "" {
		log.Error("[Webhook] PAYMENT_WEBHOOK_SECRET is not configured, rejecting all events")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"status": "error", "error": "webhook_not_configured",
		})
	}

	if signature == "" {
		_ = counter.AddOutcome(counter.OutcomeInvalidSignature)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"status": "error", "error": "missing_signature",
		})
	}
	if !payment.VerifyWebhookSignature(rawBody, signature, secret) {
		_ = counter.AddOutcome(counter.OutcomeInvalidSignature)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"status": "error", "error": "invalid_signature",
		})
	}

	eventType, p, err := payment.ParseWebhookEvent(rawBody)
	if err != nil {
		if errors.Is(err, payment.ErrMissingPayment) {
			// The payload is broken in a way the sender's retry cannot fix:
			// acknowledge to stop the retry storm, scream at operators.
			log.Errorf("[Webhook] Captured-payment event without payment entity, manual review required: %v", err)
			_ = counter.AddOutcome(counter.OutcomeIntegrityError)
			return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "error"})
		}
		_ = counter.AddOutcome(counter.OutcomeParseError)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"status": "error", "error": "invalid_payload",
		})
	}
	if eventType != payment.EventPaymentCaptured {
		_ = counter.AddOutcome(counter.OutcomeIgnored)
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ignored"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	var eventID uint
	created, stored, err := pc.svc.ReserveWebhookEvent(ctx, *p)
	switch {
	case err != nil:
		// Ledger unreachable. Fulfilling without dedup beats dropping a paid
		// order, so log loudly and continue with no reservation.
		log.Errorf("[Webhook] Idempotency ledger unreachable for payment %s, proceeding without dedup: %v", p.PaymentID, err)
		_ = counter.AddOutcome(counter.OutcomeLedgerError)
	case !created:
		_ = counter.AddOutcome(counter.OutcomeDuplicate)
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status": "duplicate", "paymentId": p.PaymentID,
		})
	default:
		eventID = stored.ID
	}

	if err := pc.dispatcher.Dispatch(*p, eventID); err != nil {
		// Post-acknowledgment work could not be scheduled; the sender still
		// gets its 200 since its retry would be deduplicated away anyway.
		log.Errorf("[Webhook] Failed to dispatch fulfillment for payment %s (contact=%s): %v",
			p.PaymentID, p.Contact(), err)
		_ = counter.AddOutcome(counter.OutcomeDispatchError)
	}

	_ = counter.AddOutcome(counter.OutcomeProcessed)
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "processed", "paymentId": p.PaymentID,
	})
}
