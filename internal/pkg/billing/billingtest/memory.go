// Package billingtest provides in-memory collaborators for exercising the
// billing core without MySQL, Redis or SMTP.
package billingtest

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/ManuelReschke/PayFox/app/models"
	"github.com/ManuelReschke/PayFox/internal/pkg/billing"
)

// MemoryRepository implements billing.Repository with the same conditional
// update semantics as the GORM repository.
type MemoryRepository struct {
	mu       sync.Mutex
	nextID   uint
	accounts map[uint]*models.Account
	events   map[string]*models.BillingWebhookEvent
	records  map[string]*models.BillingProcessingRecord
	audit    []models.BillingAuditEntry

	// AccountWrites counts applied account updates.
	AccountWrites int
	// FailNext makes the next n repository calls return Err.
	FailNext int
	Err      error
}

var _ billing.Repository = (*MemoryRepository)(nil)

// NewMemoryRepository returns an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		accounts: map[uint]*models.Account{},
		events:   map[string]*models.BillingWebhookEvent{},
		records:  map[string]*models.BillingProcessingRecord{},
		Err:      errors.New("store unavailable"),
	}
}

func (m *MemoryRepository) id() uint {
	m.nextID++
	return m.nextID
}

func (m *MemoryRepository) injected() error {
	if m.FailNext > 0 {
		m.FailNext--
		return m.Err
	}
	return nil
}

// AddAccount stores a copy of a and returns the assigned id.
func (m *MemoryRepository) AddAccount(a models.Account) uint {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.ID == 0 {
		a.ID = m.id()
	}
	m.accounts[a.ID] = &a
	return a.ID
}

// Account returns a copy of the stored account.
func (m *MemoryRepository) Account(id uint) *models.Account {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return nil
	}
	cp := *a
	return &cp
}

// Record returns a copy of the processing record for eventID.
func (m *MemoryRepository) Record(eventID string) *models.BillingProcessingRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[eventID]
	if !ok {
		return nil
	}
	cp := *r
	return &cp
}

// RecordCount returns the number of processing records.
func (m *MemoryRepository) RecordCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

// AuditEntries returns a copy of the audit log.
func (m *MemoryRepository) AuditEntries() []models.BillingAuditEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.BillingAuditEntry(nil), m.audit...)
}

// StoredEvent returns the stored envelope copy, if any.
func (m *MemoryRepository) StoredEvent(eventID string) *models.BillingWebhookEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev, ok := m.events[eventID]
	if !ok {
		return nil
	}
	cp := *ev
	return &cp
}

// SetRecord overwrites a processing record, for arranging test state.
func (m *MemoryRepository) SetRecord(rec models.BillingProcessingRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec.ID == 0 {
		rec.ID = m.id()
	}
	m.records[rec.EventID] = &rec
}

func (m *MemoryRepository) GetAccountByID(_ context.Context, id uint) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.injected(); err != nil {
		return nil, err
	}
	a, ok := m.accounts[id]
	if !ok {
		return nil, billing.ErrAccountNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *MemoryRepository) GetAccountByCustomerRef(_ context.Context, customerRef string) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.injected(); err != nil {
		return nil, err
	}
	for _, a := range m.accounts {
		if a.StripeCustomerID == customerRef {
			cp := *a
			return &cp, nil
		}
	}
	return nil, billing.ErrAccountNotFound
}

func (m *MemoryRepository) CreateWebhookEventIfNotExists(_ context.Context, event *models.BillingWebhookEvent) (bool, *models.BillingWebhookEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.injected(); err != nil {
		return false, nil, err
	}
	if stored, ok := m.events[event.ProviderEventID]; ok {
		cp := *stored
		return false, &cp, nil
	}
	cp := *event
	cp.ID = m.id()
	m.events[event.ProviderEventID] = &cp
	out := cp
	return true, &out, nil
}

func (m *MemoryRepository) GetWebhookEvent(_ context.Context, eventID string) (*models.BillingWebhookEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.injected(); err != nil {
		return nil, err
	}
	ev, ok := m.events[eventID]
	if !ok {
		return nil, billing.ErrRecordNotFound
	}
	cp := *ev
	return &cp, nil
}

func (m *MemoryRepository) GetProcessingRecord(_ context.Context, eventID string) (*models.BillingProcessingRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.injected(); err != nil {
		return nil, err
	}
	r, ok := m.records[eventID]
	if !ok {
		return nil, billing.ErrRecordNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *MemoryRepository) BeginAttempt(_ context.Context, env billing.Envelope, leaseCutoff time.Time) (*models.BillingProcessingRecord, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.injected(); err != nil {
		return nil, false, err
	}
	r, ok := m.records[env.EventID]
	if !ok {
		r = &models.BillingProcessingRecord{
			ID:        m.id(),
			EventID:   env.EventID,
			EventType: env.EventType,
			Status:    models.ProcessingStatusPending,
			CreatedAt: time.Now(),
			UpdatedAt: time.Now(),
		}
		m.records[env.EventID] = r
	}

	claimable := !r.Exhausted && (r.Status == models.ProcessingStatusPending ||
		r.Status == models.ProcessingStatusFailed ||
		(r.Status == models.ProcessingStatusProcessing && r.UpdatedAt.Before(leaseCutoff)))
	if claimable {
		r.Status = models.ProcessingStatusProcessing
		r.AttemptCount++
		r.UpdatedAt = time.Now()
	}
	cp := *r
	return &cp, claimable, nil
}

func (m *MemoryRepository) CompleteAttempt(_ context.Context, rec *models.BillingProcessingRecord, c billing.Completion) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.injected(); err != nil {
		return "", err
	}
	r, ok := m.records[rec.EventID]
	if !ok || r.ID != rec.ID || r.Status != models.ProcessingStatusProcessing {
		return "", billing.ErrLeaseLost
	}

	outcome := c.Outcome
	if outcome == "" {
		outcome = models.AuditOutcomeSucceeded
	}
	if c.AccountID != nil && !c.Update.Empty() {
		a, ok := m.accounts[*c.AccountID]
		if ok && (a.BillingEventAt == nil || !a.BillingEventAt.After(c.EventAt)) {
			snap := billing.SnapshotFromAccount(a)
			c.Update.ApplyTo(snap)
			a.Active, a.CancelledAt, a.ExpiresAt, a.PausedPlan = snap.Active, snap.CancelledAt, snap.ExpiresAt, snap.PausedPlan
			at := c.EventAt
			a.BillingEventAt = &at
			m.AccountWrites++
		} else {
			outcome = models.AuditOutcomeStale
		}
	}

	now := time.Now()
	r.Status = models.ProcessingStatusSucceeded
	r.Outcome = outcome
	r.AccountID = c.AccountID
	r.LastError = ""
	r.ProcessedAt = &now
	r.UpdatedAt = now
	m.appendAudit(models.BillingAuditEntry{
		EventID:   r.EventID,
		EventType: r.EventType,
		AccountID: c.AccountID,
		Attempt:   r.AttemptCount,
		Outcome:   outcome,
	})
	return outcome, nil
}

func (m *MemoryRepository) FailAttempt(_ context.Context, rec *models.BillingProcessingRecord, errMsg string, exhausted bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.injected(); err != nil {
		return err
	}
	r, ok := m.records[rec.EventID]
	if !ok || r.ID != rec.ID || r.Status != models.ProcessingStatusProcessing {
		return billing.ErrLeaseLost
	}
	outcome := models.AuditOutcomeFailed
	if exhausted {
		outcome = models.AuditOutcomeExhausted
		now := time.Now()
		r.ProcessedAt = &now
	}
	r.Status = models.ProcessingStatusFailed
	r.Exhausted = exhausted
	r.Outcome = outcome
	r.LastError = errMsg
	r.UpdatedAt = time.Now()
	m.appendAudit(models.BillingAuditEntry{
		EventID:   r.EventID,
		EventType: r.EventType,
		AccountID: rec.AccountID,
		Attempt:   r.AttemptCount,
		Outcome:   outcome,
		Error:     errMsg,
	})
	return nil
}

func (m *MemoryRepository) ListExhausted(_ context.Context, limit int) ([]models.BillingProcessingRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.injected(); err != nil {
		return nil, err
	}
	var out []models.BillingProcessingRecord
	for _, r := range m.records {
		if r.Status == models.ProcessingStatusFailed && r.Exhausted {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryRepository) ResetForReplay(_ context.Context, eventID string) (*models.BillingProcessingRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.injected(); err != nil {
		return nil, err
	}
	r, ok := m.records[eventID]
	if !ok || !((r.Status == models.ProcessingStatusFailed && r.Exhausted) || r.Status == models.ProcessingStatusPending) {
		return nil, billing.ErrNotReplayable
	}
	r.Status = models.ProcessingStatusPending
	r.Exhausted = false
	r.AttemptCount = 0
	r.Outcome = ""
	r.UpdatedAt = time.Now()
	m.appendAudit(models.BillingAuditEntry{EventID: eventID, Outcome: models.AuditOutcomeReplayed})
	cp := *r
	return &cp, nil
}

func (m *MemoryRepository) AppendAudit(_ context.Context, entry *models.BillingAuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.injected(); err != nil {
		return err
	}
	m.appendAudit(*entry)
	return nil
}

func (m *MemoryRepository) appendAudit(e models.BillingAuditEntry) {
	e.ID = m.id()
	e.CreatedAt = time.Now()
	m.audit = append(m.audit, e)
}

func (m *MemoryRepository) ListAudit(_ context.Context, eventID string) ([]models.BillingAuditEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.injected(); err != nil {
		return nil, err
	}
	var out []models.BillingAuditEntry
	for _, e := range m.audit {
		if e.EventID == eventID {
			out = append(out, e)
		}
	}
	return out, nil
}
