package models

import (
	"time"

	"gorm.io/gorm"
)

// Purchase states. Checkout creates the record as PENDING; the payment
// pipeline completes it.
const (
	PurchaseStatusPending = "PENDING"
	PurchaseStatusSuccess = "SUCCESS"
	PurchaseStatusFailed  = "FAILED"
)

// Purchase is the durable record of a customer's order. It is created during
// checkout (outside this pipeline) and finalized here once the matching
// captured-payment event is fulfilled.
type Purchase struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	OrderID      string    `gorm:"type:varchar(64);not null;uniqueIndex:ux_purchases_order_id" json:"order_id"`
	BuyerEmail   string    `gorm:"type:varchar(191)" json:"buyer_email"`
	ProductTitle string    `gorm:"type:varchar(255)" json:"product_title"`
	AssetURL     string    `gorm:"type:varchar(500)" json:"asset_url"`
	Amount       float64   `gorm:"type:decimal(12,2)" json:"amount"`
	Status       string    `gorm:"type:varchar(20);not null;default:'PENDING';index" json:"status"`
	PaymentID    string    `gorm:"type:varchar(64);not null;default:'';index" json:"payment_id"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// FindPurchaseByOrderID looks up a purchase by its order identifier.
func FindPurchaseByOrderID(db *gorm.DB, orderID string) (*Purchase, error) {
	var p Purchase
	err := db.Where("order_id = ?", orderID).First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// MarkPurchaseSuccess finalizes a purchase with the captured payment id.
// The status guard keeps the SUCCESS transition one-shot per order even if
// fulfillment finalization runs more than once.
func MarkPurchaseSuccess(db *gorm.DB, orderID, paymentID string) error {
	return db.Model(&Purchase{}).
		Where("order_id = ? AND status <> ?", orderID, PurchaseStatusSuccess).
		Updates(map[string]interface{}{
			"status":     PurchaseStatusSuccess,
			"payment_id": paymentID,
		}).Error
}
