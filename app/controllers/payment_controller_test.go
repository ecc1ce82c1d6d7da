package controllers

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/vikrampresence-a11y/storefront/app/models"
	"github.com/vikrampresence-a11y/storefront/internal/pkg/notifier"
	"github.com/vikrampresence-a11y/storefront/internal/pkg/payment"
)

const testSecret = "whsec_test"

type memoryRepo struct {
	mu        sync.Mutex
	nextID    uint
	byPayment map[string]*models.WebhookEvent
	byID      map[uint]*models.WebhookEvent
	purchases map[string]*models.Purchase
	createErr error
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		byPayment: make(map[string]*models.WebhookEvent),
		byID:      make(map[uint]*models.WebhookEvent),
		purchases: make(map[string]*models.Purchase),
	}
}

func (r *memoryRepo) CreateWebhookEventIfNotExists(event *models.WebhookEvent) (bool, *models.WebhookEvent, error) {
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

func (r *memoryRepo) MarkWebhookCompleted(id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ev, ok := r.byID[id]; ok {
		ev.Status = models.WebhookStatusCompleted
		return nil
	}
	return gorm.ErrRecordNotFound
}

func (r *memoryRepo) MarkWebhookFailed(id uint, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ev, ok := r.byID[id]; ok {
		ev.Status = models.WebhookStatusFailed
		ev.ProcessingError = reason
		return nil
	}
	return gorm.ErrRecordNotFound
}

func (r *memoryRepo) RecordWebhookError(id uint, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ev, ok := r.byID[id]; ok {
		ev.ProcessingError = reason
		return nil
	}
	return gorm.ErrRecordNotFound
}

func (r *memoryRepo) FindPurchaseByOrderID(orderID string) (*models.Purchase, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.purchases[orderID]; ok {
		return p, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memoryRepo) MarkPurchaseSuccess(orderID, paymentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.purchases[orderID]; ok {
		if p.Status != models.PurchaseStatusSuccess {
			p.Status = models.PurchaseStatusSuccess
			p.PaymentID = paymentID
		}
		return nil
	}
	return gorm.ErrRecordNotFound
}

func (r *memoryRepo) ListRecentWebhookEvents(limit int) ([]models.WebhookEvent, error) {
	return nil, nil
}

func (r *memoryRepo) eventCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}

type recordingDispatcher struct {
	mu       sync.Mutex
	payments []payment.CapturedPayment
	eventIDs []uint
	err      error
}

func (d *recordingDispatcher) Dispatch(p payment.CapturedPayment, eventID uint) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.payments = append(d.payments, p)
	d.eventIDs = append(d.eventIDs, eventID)
	return nil
}

func (d *recordingDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.payments)
}

func sign(body []byte) string {
	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func newTestApp(repo payment.Repository, dispatcher payment.Dispatcher, secret string) *fiber.App {
	ctrl := NewPaymentController(payment.NewService(repo), dispatcher, func() string { return secret })
	app := fiber.New()
	app.Post("/webhooks/payment", ctrl.HandlePaymentWebhook)
	return app
}

func webhookRequest(body []byte, signature string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/payment", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set(SignatureHeader, signature)
	}
	return req
}

func decodeStatus(t *testing.T, resp *http.Response) map[string]string {
	t.Helper()
	var out map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func capturedBody(paymentID string) []byte {
	return []byte(`{
		"event": "payment.captured",
		"payload": {"payment": {"entity": {
			"id": "` + paymentID + `",
			"order_id": "order_001",
			"amount": 49900,
			"notes": {"customer_email": "a@b.com", "productTitle": "Guide"}
		}}}
	}`)
}

func TestHandlePaymentWebhook_Processed(t *testing.T) {
	repo := newMemoryRepo()
	dispatcher := &recordingDispatcher{}
	app := newTestApp(repo, dispatcher, testSecret)

	body := capturedBody("pay_001")
	resp, err := app.Test(webhookRequest(body, sign(body)))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	out := decodeStatus(t, resp)
	assert.Equal(t, "processed", out["status"])
	assert.Equal(t, "pay_001", out["paymentId"])

	require.Equal(t, 1, dispatcher.count())
	assert.Equal(t, "pay_001", dispatcher.payments[0].PaymentID)
	assert.Equal(t, "order_001", dispatcher.payments[0].OrderID)
	assert.Equal(t, 499.0, dispatcher.payments[0].Amount)
	assert.NotZero(t, dispatcher.eventIDs[0])

	ev := repo.byPayment["pay_001"]
	require.NotNil(t, ev)
	assert.Equal(t, models.WebhookStatusProcessing, ev.Status)
}

func TestHandlePaymentWebhook_DuplicateShortCircuits(t *testing.T) {
	repo := newMemoryRepo()
	dispatcher := &recordingDispatcher{}
	app := newTestApp(repo, dispatcher, testSecret)

	body := capturedBody("pay_001")
	resp, err := app.Test(webhookRequest(body, sign(body)))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, 1, dispatcher.count())

	// Replay of the same payment id: acknowledged, zero side effects.
	resp, err = app.Test(webhookRequest(body, sign(body)))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	out := decodeStatus(t, resp)
	assert.Equal(t, "duplicate", out["status"])
	assert.Equal(t, 1, dispatcher.count())
	assert.Equal(t, 1, repo.eventCount())
}

func TestHandlePaymentWebhook_MissingSignature(t *testing.T) {
	repo := newMemoryRepo()
	dispatcher := &recordingDispatcher{}
	app := newTestApp(repo, dispatcher, testSecret)

	resp, err := app.Test(webhookRequest(capturedBody("pay_001"), ""))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, 0, dispatcher.count())
	assert.Equal(t, 0, repo.eventCount())
}

func TestHandlePaymentWebhook_InvalidSignature(t *testing.T) {
	repo := newMemoryRepo()
	dispatcher := &recordingDispatcher{}
	app := newTestApp(repo, dispatcher, testSecret)

	body := capturedBody("pay_001")
	resp, err := app.Test(webhookRequest(body, "deadbeef"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, 0, dispatcher.count())
	assert.Equal(t, 0, repo.eventCount())
}

func TestHandlePaymentWebhook_IgnoredEventType(t *testing.T) {
	repo := newMemoryRepo()
	dispatcher := &recordingDispatcher{}
	app := newTestApp(repo, dispatcher, testSecret)

	body := []byte(`{"event": "payment.failed", "payload": {}}`)
	resp, err := app.Test(webhookRequest(body, sign(body)))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	out := decodeStatus(t, resp)
	assert.Equal(t, "ignored", out["status"])
	assert.Equal(t, 0, dispatcher.count())
	assert.Equal(t, 0, repo.eventCount())
}

func TestHandlePaymentWebhook_MalformedBody(t *testing.T) {
	repo := newMemoryRepo()
	dispatcher := &recordingDispatcher{}
	app := newTestApp(repo, dispatcher, testSecret)

	body := []byte(`{"event": "payment.captured"`)
	resp, err := app.Test(webhookRequest(body, sign(body)))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, 0, dispatcher.count())
}

func TestHandlePaymentWebhook_MissingEntityAcknowledged(t *testing.T) {
	repo := newMemoryRepo()
	dispatcher := &recordingDispatcher{}
	app := newTestApp(repo, dispatcher, testSecret)

	body := []byte(`{"event": "payment.captured", "payload": {"payment": {}}}`)
	resp, err := app.Test(webhookRequest(body, sign(body)))
	require.NoError(t, err)

	// Acknowledged so the sender stops retrying an unfixable payload,
	// but tagged as an error for operators.
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	out := decodeStatus(t, resp)
	assert.Equal(t, "error", out["status"])
	assert.Equal(t, 0, dispatcher.count())
	assert.Equal(t, 0, repo.eventCount())
}

func TestHandlePaymentWebhook_MissingSecret(t *testing.T) {
	repo := newMemoryRepo()
	dispatcher := &recordingDispatcher{}
	app := newTestApp(repo, dispatcher, "")

	body := capturedBody("pay_001")
	resp, err := app.Test(webhookRequest(body, sign(body)))
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, 0, dispatcher.count())
}

func TestHandlePaymentWebhook_LedgerDownStillFulfills(t *testing.T) {
	repo := newMemoryRepo()
	repo.createErr = assert.AnError
	dispatcher := &recordingDispatcher{}
	app := newTestApp(repo, dispatcher, testSecret)

	body := capturedBody("pay_001")
	resp, err := app.Test(webhookRequest(body, sign(body)))
	require.NoError(t, err)

	// Availability over strict dedup: the event is still fulfilled,
	// with no ledger reservation attached.
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	out := decodeStatus(t, resp)
	assert.Equal(t, "processed", out["status"])
	require.Equal(t, 1, dispatcher.count())
	assert.Zero(t, dispatcher.eventIDs[0])
}

// blockingNotifier holds every delivery until released, so tests can observe
// the acknowledgment completing while fulfillment is still in flight.
type blockingNotifier struct {
	mu       sync.Mutex
	sent     int
	released chan struct{}
}

func (n *blockingNotifier) Send(ctx context.Context, d notifier.Delivery) error {
	select {
	case <-n.released:
	case <-ctx.Done():
		return ctx.Err()
	}
	n.mu.Lock()
	n.sent++
	n.mu.Unlock()
	return nil
}

func (n *blockingNotifier) delivered() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.sent
}

// goroutineDispatcher runs fulfillment detached, the way the production
// queue worker does.
type goroutineDispatcher struct {
	fulfiller *payment.Fulfiller
	wg        sync.WaitGroup
}

func (d *goroutineDispatcher) Dispatch(p payment.CapturedPayment, eventID uint) error {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		_ = d.fulfiller.Fulfill(context.Background(), p, eventID)
	}()
	return nil
}

func TestHandlePaymentWebhook_AcknowledgesBeforeNotifier(t *testing.T) {
	repo := newMemoryRepo()
	svc := payment.NewService(repo)
	slow := &blockingNotifier{released: make(chan struct{})}
	dispatcher := &goroutineDispatcher{fulfiller: payment.NewFulfiller(svc, slow, "")}
	app := newTestApp(repo, dispatcher, testSecret)

	body := capturedBody("pay_001")
	resp, err := app.Test(webhookRequest(body, sign(body)))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// The response is complete while the notifier is still blocked.
	assert.Equal(t, 0, slow.delivered())

	close(slow.released)
	dispatcher.wg.Wait()
	assert.Equal(t, 1, slow.delivered())
	assert.Equal(t, models.WebhookStatusCompleted, repo.byPayment["pay_001"].Status)
}
