package models

import "time"

const (
	ProcessingStatusPending    = "pending"
	ProcessingStatusProcessing = "processing"
	ProcessingStatusSucceeded  = "succeeded"
	ProcessingStatusFailed     = "failed"
)

// BillingProcessingRecord tracks the dispatch state of one gateway event.
// EventID is the idempotence key: a succeeded record is never re-applied.
type BillingProcessingRecord struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	EventID      string     `gorm:"type:varchar(191);not null;index:ux_billing_processing_records_event,unique" json:"event_id"`
	EventType    string     `gorm:"type:varchar(100);not null;index" json:"event_type"`
	AccountID    *uint      `gorm:"index" json:"account_id,omitempty"`
	Status       string     `gorm:"type:varchar(16);not null;default:'pending';index:idx_billing_processing_records_status,priority:1" json:"status"`
	Exhausted    bool       `gorm:"default:false;index:idx_billing_processing_records_status,priority:2" json:"exhausted"`
	AttemptCount int        `gorm:"not null;default:0" json:"attempt_count"`
	Outcome      string     `gorm:"type:varchar(16);not null;default:''" json:"outcome"`
	LastError    string     `gorm:"type:text" json:"last_error"`
	ProcessedAt  *time.Time `gorm:"type:timestamp;default:null" json:"processed_at,omitempty"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsTerminal reports whether the record will not be dispatched again without
// operator intervention.
func (r *BillingProcessingRecord) IsTerminal() bool {
	if r == nil {
		return false
	}
	return r.Status == ProcessingStatusSucceeded || (r.Status == ProcessingStatusFailed && r.Exhausted)
}
