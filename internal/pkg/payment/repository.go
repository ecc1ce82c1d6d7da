package payment

import (
	"time"

	"github.com/vikrampresence-a11y/storefront/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository provides DB operations used by the payment service.
type Repository interface {
	CreateWebhookEventIfNotExists(event *models.WebhookEvent) (bool, *models.WebhookEvent, error)
	MarkWebhookCompleted(id uint) error
	MarkWebhookFailed(id uint, reason string) error
	RecordWebhookError(id uint, reason string) error
	FindPurchaseByOrderID(orderID string) (*models.Purchase, error)
	MarkPurchaseSuccess(orderID, paymentID string) error
	ListRecentWebhookEvents(limit int) ([]models.WebhookEvent, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a payment repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

// CreateWebhookEventIfNotExists reserves the payment id in the ledger. The
// insert and the duplicate check are a single statement: the unique index on
// payment_id plus ON CONFLICT DO NOTHING makes concurrent deliveries of the
// same payment race-free, with RowsAffected telling the winner apart.
func (r *gormRepository) CreateWebhookEventIfNotExists(event *models.WebhookEvent) (bool, *models.WebhookEvent, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "payment_id"},
		},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.WebhookEvent
	if err := r.db.Where("payment_id = ?", event.PaymentID).
		First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

func (r *gormRepository) MarkWebhookCompleted(id uint) error {
	now := time.Now()
	updates := map[string]interface{}{
		"status":           models.WebhookStatusCompleted,
		"processed_at":     &now,
		"processing_error": "",
	}
	return r.db.Model(&models.WebhookEvent{}).Where("id = ?", id).Updates(updates).Error
}

func (r *gormRepository) MarkWebhookFailed(id uint, reason string) error {
	now := time.Now()
	updates := map[string]interface{}{
		"status":           models.WebhookStatusFailed,
		"processed_at":     &now,
		"processing_error": reason,
	}
	return r.db.Model(&models.WebhookEvent{}).Where("id = ?", id).Updates(updates).Error
}

// RecordWebhookError stores the latest failure detail without leaving the
// processing state, so a queue retry can still complete the event.
func (r *gormRepository) RecordWebhookError(id uint, reason string) error {
	return r.db.Model(&models.WebhookEvent{}).Where("id = ?", id).
		Update("processing_error", reason).Error
}

func (r *gormRepository) FindPurchaseByOrderID(orderID string) (*models.Purchase, error) {
	return models.FindPurchaseByOrderID(r.db, orderID)
}

func (r *gormRepository) MarkPurchaseSuccess(orderID, paymentID string) error {
	return models.MarkPurchaseSuccess(r.db, orderID, paymentID)
}

func (r *gormRepository) ListRecentWebhookEvents(limit int) ([]models.WebhookEvent, error) {
	var events []models.WebhookEvent
	err := r.db.Order("created_at DESC").Limit(limit).Find(&events).Error
	return events, err
}
