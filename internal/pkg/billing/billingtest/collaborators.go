package billingtest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/ManuelReschke/PayFox/app/models"
	"github.com/ManuelReschke/PayFox/internal/pkg/billing"
)

// Queue records enqueued envelopes.
type Queue struct {
	mu        sync.Mutex
	Envelopes []billing.Envelope
	Err       error
}

func (q *Queue) EnqueueEnvelope(_ context.Context, env billing.Envelope) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.Err != nil {
		return q.Err
	}
	q.Envelopes = append(q.Envelopes, env)
	return nil
}

// Len returns the number of enqueued envelopes.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.Envelopes)
}

// Notifier records trial ending notices.
type Notifier struct {
	mu       sync.Mutex
	Notified []uint
	Err      error
}

func (n *Notifier) SendTrialEndingNotice(_ context.Context, account *models.Account, _ *time.Time) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Notified = append(n.Notified, account.ID)
	return n.Err
}

// Calls returns the number of notices attempted.
func (n *Notifier) Calls() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.Notified)
}

// EventPayload builds a gateway event body with the given data.object.
func EventPayload(id, eventType string, created time.Time, object map[string]interface{}) []byte {
	body, err := json.Marshal(map[string]interface{}{
		"id":       id,
		"object":   "event",
		"type":     eventType,
		"created":  created.Unix(),
		"livemode": false,
		"data":     map[string]interface{}{"object": object},
	})
	if err != nil {
		panic(fmt.Sprintf("billingtest: marshal event: %v", err))
	}
	return body
}

// Envelope builds a queued envelope around EventPayload.
func Envelope(id, eventType string, created time.Time, object map[string]interface{}) billing.Envelope {
	payload := EventPayload(id, eventType, created, object)
	ref := ""
	if ev, err := billing.ParseStripeEvent(payload); err == nil {
		ref = ev.CustomerRef()
	}
	return billing.Envelope{
		EventID:    id,
		EventType:  eventType,
		AccountRef: ref,
		ReceivedAt: created,
		Payload:    payload,
	}
}
