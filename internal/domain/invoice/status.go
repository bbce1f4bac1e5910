package invoice

import (
	"errors"
	"fmt"
)

// Status is the reconciliation lifecycle state of an invoice
type Status string

const (
	StatusPending    Status = "pending"
	StatusReview     Status = "review"
	StatusReconciled Status = "reconciled"
)

// Event drives a lifecycle transition
type Event string

const (
	EventAutoMatchHigh   Event = "auto_match_high"
	EventAutoMatchReview Event = "auto_match_review"
	EventManualReconcile Event = "manual_reconcile"
)

var ErrUnknownStatus = errors.New("unknown invoice status")

// ErrInvalidTransition is returned when an event is not allowed from the current status
type ErrInvalidTransition struct {
	From  Status
	Event Event
}

func (e ErrInvalidTransition) Error() string {
	return fmt.Sprintf("invalid transition: %s from status %s", e.Event, e.From)
}

// Is matches any ErrInvalidTransition when the target carries no status
func (e ErrInvalidTransition) Is(target error) bool {
	t, ok := target.(ErrInvalidTransition)
	if !ok {
		return false
	}
	if t.From == "" && t.Event == "" {
		return true
	}
	return e.From == t.From && e.Event == t.Event
}

var transitions = map[Status]map[Event]Status{
	StatusPending: {
		EventAutoMatchHigh:   StatusReconciled,
		EventAutoMatchReview: StatusReview,
		EventManualReconcile: StatusReconciled,
	},
	StatusReview: {
		EventAutoMatchHigh:   StatusReconciled,
		EventAutoMatchReview: StatusReview,
		EventManualReconcile: StatusReconciled,
	},
	StatusReconciled: {
		EventManualReconcile: StatusReconciled,
	},
}

// Transition is the single place where lifecycle moves are decided.
// Reconciled is terminal for automatic matching; only a manual reconcile may touch it again.
func Transition(from Status, event Event) (Status, error) {
	allowed, ok := transitions[from]
	if !ok {
		return from, ErrInvalidTransition{From: from, Event: event}
	}
	to, ok := allowed[event]
	if !ok {
		return from, ErrInvalidTransition{From: from, Event: event}
	}
	return to, nil
}

// ParseStatus converts a stored or user supplied value into a Status
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPending, StatusReview, StatusReconciled:
		return Status(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStatus, s)
}
