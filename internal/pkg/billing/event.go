package billing

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var eventValidator = validator.New()

// StripeEvent is the gateway notification envelope as delivered on the wire.
type StripeEvent struct {
	ID       string `json:"id" validate:"required,max=191"`
	Type     string `json:"type" validate:"required,max=100"`
	Created  int64  `json:"created" validate:"gt=0"`
	Livemode bool   `json:"livemode"`
	Data     struct {
		Object json.RawMessage `json:"object" validate:"required"`
	} `json:"data"`
}

// ParseStripeEvent decodes and validates a raw notification body.
func ParseStripeEvent(raw []byte) (*StripeEvent, error) {
	var ev StripeEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	ev.ID = strings.TrimSpace(ev.ID)
	ev.Type = strings.TrimSpace(ev.Type)
	if err := eventValidator.Struct(&ev); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	return &ev, nil
}

// CreatedAt is the gateway's own timestamp for the event.
func (e *StripeEvent) CreatedAt() time.Time {
	return time.Unix(e.Created, 0).UTC()
}

// DecodeObject unmarshals data.object into v.
func (e *StripeEvent) DecodeObject(v interface{}) error {
	if err := json.Unmarshal(e.Data.Object, v); err != nil {
		return fmt.Errorf("%w: decode %s object: %v", ErrMalformedEvent, e.Type, err)
	}
	return nil
}

// CustomerRef returns the gateway customer id the event refers to, or "" if
// the object carries none.
func (e *StripeEvent) CustomerRef() string {
	var obj struct {
		ID       string          `json:"id"`
		Object   string          `json:"object"`
		Customer json.RawMessage `json:"customer"`
	}
	if err := json.Unmarshal(e.Data.Object, &obj); err != nil {
		return ""
	}
	if obj.Object == "customer" {
		return strings.TrimSpace(obj.ID)
	}
	return expandableID(obj.Customer)
}

// expandableID reads a field that is either an id string or an expanded
// object with an "id" member.
func expandableID(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var id string
	if err := json.Unmarshal(raw, &id); err == nil {
		return strings.TrimSpace(id)
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return strings.TrimSpace(obj.ID)
	}
	return ""
}

type stripeSubscription struct {
	ID                string `json:"id"`
	Status            string `json:"status"`
	CancelAtPeriodEnd bool   `json:"cancel_at_period_end"`
	CanceledAt        *int64 `json:"canceled_at"`
	CurrentPeriodEnd  int64  `json:"current_period_end"`
	TrialEnd          *int64 `json:"trial_end"`
	PauseCollection   *struct {
		Behavior string `json:"behavior"`
	} `json:"pause_collection"`
	Plan *struct {
		ID string `json:"id"`
	} `json:"plan"`
	Items struct {
		Data []struct {
			CurrentPeriodEnd int64 `json:"current_period_end"`
			Price            struct {
				ID string `json:"id"`
			} `json:"price"`
		} `json:"data"`
	} `json:"items"`
}

// planRef picks the plan identifier recorded as paused_plan.
func (s *stripeSubscription) planRef() string {
	if s.Plan != nil && strings.TrimSpace(s.Plan.ID) != "" {
		return strings.TrimSpace(s.Plan.ID)
	}
	for _, item := range s.Items.Data {
		if id := strings.TrimSpace(item.Price.ID); id != "" {
			return id
		}
	}
	return s.ID
}

// periodEnd returns the end of the current billing period, reading the
// item-level field newer API versions use when the top-level one is absent.
func (s *stripeSubscription) periodEnd() *time.Time {
	end := s.CurrentPeriodEnd
	if end == 0 {
		for _, item := range s.Items.Data {
			if item.CurrentPeriodEnd > end {
				end = item.CurrentPeriodEnd
			}
		}
	}
	return unixPtr(end)
}

func unixPtr(sec int64) *time.Time {
	if sec <= 0 {
		return nil
	}
	t := time.Unix(sec, 0).UTC()
	return &t
}
