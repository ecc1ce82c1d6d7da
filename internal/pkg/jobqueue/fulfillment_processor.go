package jobqueue

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2/log"

	"github.com/vikrampresence-a11y/storefront/internal/pkg/payment"
)

// EnqueueFulfillmentJob enqueues asynchronous fulfillment for a captured
// payment. This is the only work the webhook handler schedules; the push is
// cheap so the sender's acknowledgment is never held up by delivery.
func (q *Queue) EnqueueFulfillmentJob(p payment.CapturedPayment, eventID uint) (*Job, error) {
	payload := FulfillmentJobPayload{
		EventID:   eventID,
		PaymentID: p.PaymentID,
		OrderID:   p.OrderID,
		Amount:    p.Amount,
		Notes:     p.Notes,
	}
	return q.EnqueueJob(JobTypeFulfillment, payload.ToMap())
}

// Dispatch implements payment.Dispatcher.
func (q *Queue) Dispatch(p payment.CapturedPayment, eventID uint) error {
	_, err := q.EnqueueFulfillmentJob(p, eventID)
	return err
}

// processFulfillmentJob runs one fulfillment attempt with a bounded timeout.
// A returned error makes the queue retry with backoff.
func (q *Queue) processFulfillmentJob(ctx context.Context, job *Job) error {
	payload, perr := FulfillmentJobPayloadFromMap(job.Payload)
	if perr != nil {
		return fmt.Errorf("failed to parse fulfillment payload: %w", perr)
	}

	if q.fulfiller == nil {
		return fmt.Errorf("fulfiller is not configured")
	}

	jobCtx, cancel := context.WithTimeout(ctx, JobTimeout)
	defer cancel()

	p := payment.CapturedPayment{
		PaymentID: payload.PaymentID,
		OrderID:   payload.OrderID,
		Amount:    payload.Amount,
		Notes:     payload.Notes,
	}
	return q.fulfiller.Fulfill(jobCtx, p, payload.EventID)
}

// abandonFulfillment moves the ledger entry for a permanently failed
// fulfillment job into its dead-letter state.
func (q *Queue) abandonFulfillment(ctx context.Context, job *Job, cause error) {
	if job.Type != JobTypeFulfillment || q.fulfiller == nil {
		return
	}
	payload, err := FulfillmentJobPayloadFromMap(job.Payload)
	if err != nil {
		log.Errorf("[JobQueue] Cannot abandon job %s, payload unreadable: %v", job.ID, err)
		return
	}
	log.Errorf("[JobQueue] Abandoning fulfillment for payment %s (order %s) after %d attempts: %v",
		payload.PaymentID, payload.OrderID, job.RetryCount, cause)
	q.fulfiller.Abandon(ctx, payload.EventID, cause)
}
