package jobqueue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/PayFox/internal/pkg/billing"
)

var errNoDispatcher = errors.New("no billing dispatcher configured")

// processBillingEventJob hands a queued gateway event to the dispatcher. The
// dispatcher owns the retry policy; its *billing.RetryError is passed through.
func (q *Queue) processBillingEventJob(ctx context.Context, job *Job) error {
	payload, err := BillingEventJobPayloadFromMap(job.Payload)
	if err != nil {
		return billing.Permanent(fmt.Errorf("invalid billing event payload: %w", err))
	}
	if payload.EventID == "" {
		return billing.Permanent(fmt.Errorf("billing event job %s has no event id", job.ID))
	}

	q.mu.Lock()
	d := q.dispatcher
	q.mu.Unlock()
	if d == nil {
		log.Errorf("[JobQueue] Cannot process billing event %s: %v", payload.EventID, errNoDispatcher)
		return &billing.RetryError{Err: errNoDispatcher, After: time.Minute, Attempt: job.RetryCount + 1}
	}

	return d.Dispatch(ctx, payload.Envelope())
}
