package payment

import (
	"context"
	"errors"
	"strings"

	"github.com/vikrampresence-a11y/storefront/app/models"
	"gorm.io/gorm"
)

// Service provides the idempotency ledger and purchase finalization
// operations used by the webhook handler and the fulfillment task.
type Service struct {
	repo Repository
}

// NewService creates a payment service from an injected repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// NewServiceFromDB creates a payment service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB) *Service {
	return NewService(NewRepository(db))
}

// ReserveWebhookEvent atomically claims the payment id in the ledger.
// created=false means another delivery of the same payment already holds the
// reservation and the caller must not fulfill again.
func (s *Service) ReserveWebhookEvent(ctx context.Context, p CapturedPayment) (bool, *models.WebhookEvent, error) {
	_ = ctx
	paymentID := strings.TrimSpace(p.PaymentID)
	if paymentID == "" {
		return false, nil, errors.New("payment_id is required")
	}

	event := &models.WebhookEvent{
		PaymentID: paymentID,
		OrderID:   strings.TrimSpace(p.OrderID),
		EventType: EventPaymentCaptured,
		Amount:    p.Amount,
		Status:    models.WebhookStatusProcessing,
	}
	return s.repo.CreateWebhookEventIfNotExists(event)
}

// CompleteWebhookEvent marks a ledger entry as fulfilled.
func (s *Service) CompleteWebhookEvent(ctx context.Context, eventID uint) error {
	_ = ctx
	if eventID == 0 {
		return errors.New("webhook_event_id is required")
	}
	return s.repo.MarkWebhookCompleted(eventID)
}

// FailWebhookEvent moves a ledger entry into its terminal failure state with
// a reason operators can act on.
func (s *Service) FailWebhookEvent(ctx context.Context, eventID uint, processingErr error) error {
	_ = ctx
	if eventID == 0 {
		return errors.New("webhook_event_id is required")
	}
	reason := ""
	if processingErr != nil {
		reason = processingErr.Error()
	}
	return s.repo.MarkWebhookFailed(eventID, reason)
}

// RecordWebhookError stores the latest failure on a still-processing entry.
func (s *Service) RecordWebhookError(ctx context.Context, eventID uint, processingErr error) error {
	_ = ctx
	if eventID == 0 {
		return errors.New("webhook_event_id is required")
	}
	reason := ""
	if processingErr != nil {
		reason = processingErr.Error()
	}
	return s.repo.RecordWebhookError(eventID, reason)
}

// FinalizePurchase attaches the payment id to the matching purchase and moves
// it to SUCCESS, at most once per order.
func (s *Service) FinalizePurchase(ctx context.Context, orderID, paymentID string) error {
	_ = ctx
	if strings.TrimSpace(orderID) == "" {
		return errors.New("order_id is required")
	}
	return s.repo.MarkPurchaseSuccess(strings.TrimSpace(orderID), strings.TrimSpace(paymentID))
}

// ListRecentWebhookEvents returns the newest ledger entries for the ops API.
func (s *Service) ListRecentWebhookEvents(ctx context.Context, limit int) ([]models.WebhookEvent, error) {
	_ = ctx
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.repo.ListRecentWebhookEvents(limit)
}
