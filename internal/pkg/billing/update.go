package billing

import "time"

// Change is an optional assignment to one billing attribute.
type Change[T any] struct {
	Value T
	Set   bool
}

func set[T any](v T) Change[T] { return Change[T]{Value: v, Set: true} }

// AccountUpdate lists the billing attributes a handler wants to change.
// Attributes without Set are left untouched.
type AccountUpdate struct {
	Active      Change[bool]
	CancelledAt Change[*time.Time]
	ExpiresAt   Change[*time.Time]
	PausedPlan  Change[*string]
}

// Empty reports whether the update changes nothing.
func (u AccountUpdate) Empty() bool {
	return !u.Active.Set && !u.CancelledAt.Set && !u.ExpiresAt.Set && !u.PausedPlan.Set
}

// Columns returns the column assignments for a GORM Updates call.
func (u AccountUpdate) Columns() map[string]interface{} {
	cols := make(map[string]interface{}, 4)
	if u.Active.Set {
		cols["active"] = u.Active.Value
	}
	if u.CancelledAt.Set {
		cols["cancelled_at"] = u.CancelledAt.Value
	}
	if u.ExpiresAt.Set {
		cols["expires_at"] = u.ExpiresAt.Value
	}
	if u.PausedPlan.Set {
		cols["paused_plan"] = u.PausedPlan.Value
	}
	return cols
}

// ApplyTo writes the update into s.
func (u AccountUpdate) ApplyTo(s *BillingSnapshot) {
	if s == nil {
		return
	}
	if u.Active.Set {
		s.Active = u.Active.Value
	}
	if u.CancelledAt.Set {
		s.CancelledAt = u.CancelledAt.Value
	}
	if u.ExpiresAt.Set {
		s.ExpiresAt = u.ExpiresAt.Value
	}
	if u.PausedPlan.Set {
		s.PausedPlan = u.PausedPlan.Value
	}
}
