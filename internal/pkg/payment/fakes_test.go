package payment

import (
	"context"
	"sync"

	"github.com/vikrampresence-a11y/storefront/app/models"
	"github.com/vikrampresence-a11y/storefront/internal/pkg/notifier"
	"gorm.io/gorm"
)

// fakeRepository is an in-memory Repository with the same dedup semantics as
// the GORM implementation.
type fakeRepository struct {
	mu        sync.Mutex
	nextID    uint
	byPayment map[string]*models.WebhookEvent
	byID      map[uint]*models.WebhookEvent
	purchases map[string]*models.Purchase

	createErr   error
	completeErr error
	failErr     error
	purchaseErr error
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		byPayment: make(map[string]*models.WebhookEvent),
		byID:      make(map[uint]*models.WebhookEvent),
		purchases: make(map[string]*models.Purchase),
	}
}

func (r *fakeRepository) CreateWebhookEventIfNotExists(event *models.WebhookEvent) (bool, *models.WebhookEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return false, nil, r.createErr
	}
	if existing, ok := r.byPayment[event.PaymentID]; ok {
		return false, existing, nil
	}
	r.nextID++
	event.ID = r.nextID
	r.byPayment[event.PaymentID] = event
	r.byID[event.ID] = event
	return true, event, nil
}

func (r *fakeRepository) MarkWebhookCompleted(id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.completeErr != nil {
		return r.completeErr
	}
	ev, ok := r.byID[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	ev.Status = models.WebhookStatusCompleted
	ev.ProcessingError = ""
	return nil
}

func (r *fakeRepository) MarkWebhookFailed(id uint, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failErr != nil {
		return r.failErr
	}
	ev, ok := r.byID[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	ev.Status = models.WebhookStatusFailed
	ev.ProcessingError = reason
	return nil
}

func (r *fakeRepository) RecordWebhookError(id uint, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ev, ok := r.byID[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	ev.ProcessingError = reason
	return nil
}

func (r *fakeRepository) FindPurchaseByOrderID(orderID string) (*models.Purchase, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.purchases[orderID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return p, nil
}

func (r *fakeRepository) MarkPurchaseSuccess(orderID, paymentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.purchaseErr != nil {
		return r.purchaseErr
	}
	p, ok := r.purchases[orderID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if p.Status != models.PurchaseStatusSuccess {
		p.Status = models.PurchaseStatusSuccess
		p.PaymentID = paymentID
	}
	return nil
}

func (r *fakeRepository) ListRecentWebhookEvents(limit int) ([]models.WebhookEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	events := make([]models.WebhookEvent, 0, len(r.byID))
	for _, ev := range r.byID {
		events = append(events, *ev)
		if len(events) == limit {
			break
		}
	}
	return events, nil
}

func (r *fakeRepository) event(paymentID string) *models.WebhookEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byPayment[paymentID]
}

// fakeNotifier records deliveries and can fail or block on demand.
type fakeNotifier struct {
	mu         sync.Mutex
	deliveries []notifier.Delivery
	sendErr    error
	started    chan struct{}
	proceed    chan struct{}
}

func (n *fakeNotifier) Send(ctx context.Context, d notifier.Delivery) error {
	if n.started != nil {
		n.started <- struct{}{}
	}
	if n.proceed != nil {
		select {
		case <-n.proceed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.sendErr != nil {
		return n.sendErr
	}
	n.deliveries = append(n.deliveries, d)
	return nil
}

func (n *fakeNotifier) sent() []notifier.Delivery {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]notifier.Delivery, len(n.deliveries))
	copy(out, n.deliveries)
	return out
}
