package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/PayFox/app/models"
)

var errInFlight = errors.New("event is being processed by another worker")

// Dispatcher applies queued gateway events to the billing attribute store.
// Work for one account is serialized through the AccountLocker; the
// processing record guards against applying an event twice.
type Dispatcher struct {
	repo     Repository
	locker   AccountLocker
	notifier TrialEndingNotifier
	routes   Routes
	cfg      Config
	now      func() time.Time
}

// DispatcherOption customizes a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithRoutes replaces the routing table.
func WithRoutes(routes Routes) DispatcherOption {
	return func(d *Dispatcher) { d.routes = routes }
}

// WithClock overrides the time source used for lease cutoffs.
func WithClock(now func() time.Time) DispatcherOption {
	return func(d *Dispatcher) { d.now = now }
}

// NewDispatcher wires a dispatcher. notifier may be nil.
func NewDispatcher(repo Repository, locker AccountLocker, notifier TrialEndingNotifier, cfg Config, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		repo:     repo,
		locker:   locker,
		notifier: notifier,
		routes:   DefaultRoutes(),
		cfg:      cfg.normalized(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch processes one envelope. A nil error means the envelope reached a
// state where it must not be delivered again. A *RetryError asks for
// redelivery after a delay; any other error is terminal for the delivery.
func (d *Dispatcher) Dispatch(ctx context.Context, env Envelope) error {
	start := time.Now()
	defer func() {
		dispatchDuration.WithLabelValues(env.EventType).Observe(time.Since(start).Seconds())
	}()

	rec, started, err := d.repo.BeginAttempt(ctx, env, d.now().Add(-d.cfg.ProcessingLease))
	if err != nil {
		log.Errorf("[BillingDispatcher] Could not start attempt for event %s: %v", env.EventID, err)
		return &RetryError{Err: fmt.Errorf("begin attempt: %w", err), After: d.cfg.Backoff.Delay(1), Attempt: 0}
	}
	if !started {
		switch {
		case rec.Status == models.ProcessingStatusSucceeded:
			log.Infof("[BillingDispatcher] Event %s already processed, discarding duplicate delivery", env.EventID)
			dispatchTotal.WithLabelValues(env.EventType, models.AuditOutcomeDuplicate).Inc()
			return nil
		case rec.IsTerminal():
			log.Warnf("[BillingDispatcher] Event %s is exhausted, awaiting operator replay", env.EventID)
			return nil
		default:
			return &RetryError{Err: errInFlight, After: d.cfg.ProcessingLease, Attempt: rec.AttemptCount}
		}
	}

	outcome, err := d.process(ctx, env, rec)
	if err == nil {
		log.Infof("[BillingDispatcher] Event %s (%s) %s on attempt %d", env.EventID, env.EventType, outcome, rec.AttemptCount)
		dispatchTotal.WithLabelValues(env.EventType, outcome).Inc()
		return nil
	}
	if errors.Is(err, ErrLeaseLost) {
		log.Warnf("[BillingDispatcher] Event %s was reclaimed by another worker, dropping this attempt", env.EventID)
		return nil
	}
	return d.fail(ctx, env, rec, err)
}

func (d *Dispatcher) process(ctx context.Context, env Envelope, rec *models.BillingProcessingRecord) (string, error) {
	ev, err := ParseStripeEvent(env.Payload)
	if err != nil {
		return "", Permanent(err)
	}
	if ev.ID != env.EventID {
		return "", Permanent(fmt.Errorf("%w: payload id %q does not match envelope id %q", ErrMalformedEvent, ev.ID, env.EventID))
	}

	route, ok := d.routes[ev.Type]
	if !ok {
		log.Infof("[BillingDispatcher] Acknowledging unhandled event type %s (%s)", ev.Type, ev.ID)
		return d.repo.CompleteAttempt(ctx, rec, Completion{Outcome: models.AuditOutcomeIgnored})
	}

	customerRef := ev.CustomerRef()
	key := "event:" + ev.ID
	if customerRef != "" {
		key = "account:" + customerRef
	}
	unlock, err := d.locker.Lock(ctx, key)
	if err != nil {
		return "", fmt.Errorf("acquire lock %s: %w", key, err)
	}
	defer unlock()

	hctx, cancel := context.WithTimeout(ctx, d.cfg.HandlerTimeout)
	defer cancel()

	ec := &EventContext{Event: ev, Notifier: d.notifier}
	if customerRef != "" {
		account, err := d.repo.GetAccountByCustomerRef(hctx, customerRef)
		switch {
		case err == nil:
			ec.Account = account
			id := account.ID
			rec.AccountID = &id
		case errors.Is(err, ErrAccountNotFound):
		default:
			return "", fmt.Errorf("load account for %s: %w", customerRef, err)
		}
	}
	if route.NeedsAccount && ec.Account == nil {
		log.Infof("[BillingDispatcher] No local account for customer %q, ignoring %s (%s)", customerRef, ev.Type, ev.ID)
		return d.repo.CompleteAttempt(ctx, rec, Completion{Outcome: models.AuditOutcomeIgnored})
	}

	update, err := route.Handle(hctx, ec)
	if err != nil {
		return "", err
	}
	if err := hctx.Err(); err != nil {
		return "", fmt.Errorf("handler for %s exceeded %s: %w", ev.Type, d.cfg.HandlerTimeout, err)
	}

	return d.repo.CompleteAttempt(ctx, rec, Completion{
		AccountID: rec.AccountID,
		Update:    update,
		EventAt:   ev.CreatedAt(),
		Outcome:   models.AuditOutcomeSucceeded,
	})
}

func (d *Dispatcher) fail(ctx context.Context, env Envelope, rec *models.BillingProcessingRecord, cause error) error {
	exhausted := IsPermanent(cause) || rec.AttemptCount >= d.cfg.MaxAttempts
	if err := d.repo.FailAttempt(ctx, rec, cause.Error(), exhausted); err != nil {
		if errors.Is(err, ErrLeaseLost) {
			return nil
		}
		log.Errorf("[BillingDispatcher] Could not record failure of event %s: %v", env.EventID, err)
		return &RetryError{
			Err:     fmt.Errorf("%v (recording failure: %w)", cause, err),
			After:   d.cfg.Backoff.Delay(rec.AttemptCount),
			Attempt: rec.AttemptCount,
		}
	}

	if exhausted {
		log.Errorf("[BillingDispatcher] Event %s (%s) failed permanently after %d attempt(s), needs operator review: %v",
			env.EventID, env.EventType, rec.AttemptCount, cause)
		dispatchTotal.WithLabelValues(env.EventType, models.AuditOutcomeExhausted).Inc()
		return Permanent(cause)
	}

	delay := d.cfg.Backoff.Delay(rec.AttemptCount)
	log.Warnf("[BillingDispatcher] Event %s (%s) attempt %d/%d failed, retrying in %s: %v",
		env.EventID, env.EventType, rec.AttemptCount, d.cfg.MaxAttempts, delay, cause)
	dispatchTotal.WithLabelValues(env.EventType, models.AuditOutcomeFailed).Inc()
	return &RetryError{Err: cause, After: delay, Attempt: rec.AttemptCount}
}
