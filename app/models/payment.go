package models

import "time"

const (
	PaymentStatusPaid = "paid"
)

// Payment is an append-only ledger row. ProviderOrderID is unique so a
// redelivered order can never produce a second row.
type Payment struct {
	ID                    uint      `gorm:"primaryKey" json:"id"`
	UserID                string    `gorm:"type:varchar(64);not null;index" json:"user_id"`
	SubscriptionID        *uint     `gorm:"index" json:"subscription_id,omitempty"`
	Plan                  string    `gorm:"type:varchar(32);not null" json:"plan"`
	AmountCents           int64     `gorm:"not null;default:0" json:"amount_cents"`
	Currency              string    `gorm:"type:varchar(3);not null;default:'BRL'" json:"currency"`
	PaymentMethod         string    `gorm:"type:varchar(50);default:''" json:"payment_method"`
	ProviderOrderID       string    `gorm:"type:varchar(191);not null;uniqueIndex:ux_payments_provider_order_id" json:"provider_order_id"`
	ProviderTransactionID string    `gorm:"type:varchar(191);default:''" json:"provider_transaction_id"`
	PaymentStatus         string    `gorm:"type:varchar(32);not null;default:'paid'" json:"payment_status"`
	PaidAt                time.Time `gorm:"type:timestamp;not null" json:"paid_at"`
	CreatedAt             time.Time `gorm:"autoCreateTime" json:"created_at"`
}
