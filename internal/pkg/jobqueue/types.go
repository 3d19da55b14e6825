package jobqueue

import (
	"encoding/json"
	"time"

	"github.com/ManuelReschke/PayFox/internal/pkg/billing"
)

// JobType defines the type of job
type JobType string

const (
	JobTypeBillingEvent JobType = "billing_event"
)

// JobStatus defines the status of a job
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusRetrying   JobStatus = "retrying"
)

// Job represents a background job
type Job struct {
	ID          string                 `json:"id"`
	Type        JobType                `json:"type"`
	Status      JobStatus              `json:"status"`
	Payload     map[string]interface{} `json:"payload"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
	ProcessedAt *time.Time             `json:"processed_at,omitempty"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
	RetryAt     *time.Time             `json:"retry_at,omitempty"`
	ErrorMsg    string                 `json:"error_msg,omitempty"`
	RetryCount  int                    `json:"retry_count"`
}

// BillingEventJobPayload carries one queued gateway event
type BillingEventJobPayload struct {
	EventID    string    `json:"event_id"`
	EventType  string    `json:"event_type"`
	AccountRef string    `json:"account_ref,omitempty"`
	ReceivedAt time.Time `json:"received_at"`
	Payload    string    `json:"payload"`
	Signature  string    `json:"signature,omitempty"`
}

// BillingEventJobPayloadFromEnvelope copies an envelope into a job payload
func BillingEventJobPayloadFromEnvelope(env billing.Envelope) BillingEventJobPayload {
	return BillingEventJobPayload{
		EventID:    env.EventID,
		EventType:  env.EventType,
		AccountRef: env.AccountRef,
		ReceivedAt: env.ReceivedAt,
		Payload:    string(env.Payload),
		Signature:  env.Signature,
	}
}

// Envelope converts the payload back into a dispatchable envelope
func (p BillingEventJobPayload) Envelope() billing.Envelope {
	return billing.Envelope{
		EventID:    p.EventID,
		EventType:  p.EventType,
		AccountRef: p.AccountRef,
		ReceivedAt: p.ReceivedAt,
		Payload:    []byte(p.Payload),
		Signature:  p.Signature,
	}
}

// ToMap converts the payload to a map for storage
func (p BillingEventJobPayload) ToMap() map[string]interface{} {
	m := map[string]interface{}{
		"event_id":    p.EventID,
		"event_type":  p.EventType,
		"received_at": p.ReceivedAt.Format(time.RFC3339Nano),
		"payload":     p.Payload,
	}
	if p.AccountRef != "" {
		m["account_ref"] = p.AccountRef
	}
	if p.Signature != "" {
		m["signature"] = p.Signature
	}
	return m
}

// BillingEventJobPayloadFromMap creates a payload from a map
func BillingEventJobPayloadFromMap(data map[string]interface{}) (*BillingEventJobPayload, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	var payload BillingEventJobPayload
	err = json.Unmarshal(jsonData, &payload)
	return &payload, err
}

// MarkAsProcessing updates the job status to processing
func (j *Job) MarkAsProcessing() {
	now := time.Now()
	j.Status = JobStatusProcessing
	j.UpdatedAt = now
	j.ProcessedAt = &now
	j.RetryAt = nil
}

// MarkAsCompleted updates the job status to completed
func (j *Job) MarkAsCompleted() {
	now := time.Now()
	j.Status = JobStatusCompleted
	j.UpdatedAt = now
	j.CompletedAt = &now
	j.ErrorMsg = ""
}

// MarkAsFailed updates the job status to failed
func (j *Job) MarkAsFailed(errorMsg string) {
	j.Status = JobStatusFailed
	j.UpdatedAt = time.Now()
	j.ErrorMsg = errorMsg
}

// MarkAsRetrying records a failed attempt that will be redelivered at retryAt
func (j *Job) MarkAsRetrying(errorMsg string, retryAt time.Time) {
	j.Status = JobStatusRetrying
	j.UpdatedAt = time.Now()
	j.ErrorMsg = errorMsg
	j.RetryCount++
	j.RetryAt = &retryAt
}

// MarkAsPending puts the job back into the pending state
func (j *Job) MarkAsPending() {
	j.Status = JobStatusPending
	j.UpdatedAt = time.Now()
}
