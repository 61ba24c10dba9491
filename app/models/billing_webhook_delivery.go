package models

import "time"

// Column limits shared by the billing tables.
const (
	MaxUserIDLength         = 64
	MaxProviderIDLength     = 191
	MaxEventTypeLength      = 100
	MaxDeliveryPayloadBytes = 65535
)

// BillingWebhookDelivery records every delivery that reached reconciliation.
// PayloadSHA256 is indexed so redeliveries of the same body can be counted.
// PayloadJSON holds at most MaxDeliveryPayloadBytes; longer bodies are cut and
// flagged, the hash always covers the full body.
type BillingWebhookDelivery struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	CorrelationID    string    `gorm:"type:varchar(32);not null;index" json:"correlation_id"`
	EventType        string    `gorm:"type:varchar(100);not null;index" json:"event_type"`
	PayloadSHA256    string    `gorm:"type:char(64);not null;index" json:"payload_sha256"`
	UserID           string    `gorm:"type:varchar(64);not null;index" json:"user_id"`
	Outcome          string    `gorm:"type:varchar(32);not null" json:"outcome"`
	PayloadJSON      string    `gorm:"type:text;not null" json:"payload_json"`
	PayloadTruncated bool      `gorm:"not null;default:false" json:"payload_truncated"`
	CreatedAt        time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}
