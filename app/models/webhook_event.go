package models

import "time"

// Webhook event processing states. An event starts as processing, moves to
// completed after the asset notification went out, or to failed when
// fulfillment gave up (missing contact, exhausted retries).
const (
	WebhookStatusProcessing = "processing"
	WebhookStatusCompleted  = "completed"
	WebhookStatusFailed     = "failed"
)

// WebhookEvent is the idempotency ledger for payment processor notifications.
// PaymentID carries a unique index so concurrent deliveries of the same
// payment collapse into a single row; entries are never deleted.
type WebhookEvent struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	PaymentID       string     `gorm:"type:varchar(64);not null;uniqueIndex:ux_webhook_events_payment_id" json:"payment_id"`
	OrderID         string     `gorm:"type:varchar(64);not null;default:'';index" json:"order_id"`
	EventType       string     `gorm:"type:varchar(100);not null;index" json:"event_type"`
	Amount          float64    `gorm:"type:decimal(12,2)" json:"amount"`
	Status          string     `gorm:"type:varchar(20);not null;default:'processing';index" json:"status"`
	ProcessingError string     `gorm:"type:text" json:"processing_error"`
	ProcessedAt     *time.Time `gorm:"type:timestamp;default:null" json:"processed_at,omitempty"`
	CreatedAt       time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
