package models

import "time"

// Billing provider constants used across billing-related models.
const (
	BillingProviderStripe = "stripe"
)

// BillingWebhookEvent stores inbound gateway notifications that passed
// signature verification. The row is the durable copy of a queued envelope
// and is never mutated after creation.
type BillingWebhookEvent struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	Provider        string    `gorm:"type:varchar(20);not null;index:ux_billing_webhook_events_provider_event,unique,priority:1;index" json:"provider"`
	ProviderEventID string    `gorm:"type:varchar(191);not null;index:ux_billing_webhook_events_provider_event,unique,priority:2" json:"provider_event_id"`
	EventType       string    `gorm:"type:varchar(100);not null;index" json:"event_type"`
	AccountRef      string    `gorm:"type:varchar(191);not null;default:'';index" json:"account_ref"`
	PayloadJSON     string    `gorm:"type:longtext;not null" json:"payload_json"`
	Signature       string    `gorm:"type:text" json:"-"`
	ReceivedAt      time.Time `gorm:"type:timestamp;not null;index" json:"received_at"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
}
