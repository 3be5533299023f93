package draft

import (
	"errors"
	"fmt"
)

// Status is the lifecycle stage of a draft.
type Status string

const (
	StatusCollecting           Status = "collecting"
	StatusAwaitingConfirmation Status = "awaiting_confirmation"
	StatusConfirmed            Status = "confirmed"
	StatusCompleted            Status = "completed"
)

// Event drives a status transition.
type Event string

const (
	EventRequestConfirmation Event = "request_confirmation"
	EventConfirm             Event = "confirm"
	EventEdit                Event = "edit"
	EventComplete            Event = "complete"
	EventReset               Event = "reset"
)

// ErrIllegalTransition is returned when an event is not allowed from the current status.
var ErrIllegalTransition = errors.New("illegal draft status transition")

var transitions = map[Status]map[Event]Status{
	StatusCollecting: {
		EventRequestConfirmation: StatusAwaitingConfirmation,
		EventEdit:                StatusCollecting,
	},
	StatusAwaitingConfirmation: {
		EventConfirm: StatusConfirmed,
		EventEdit:    StatusCollecting,
	},
	StatusConfirmed: {
		EventComplete: StatusCompleted,
	},
}

// Normalize reads an empty status as collecting.
func (s Status) Normalize() Status {
	if s == "" {
		return StatusCollecting
	}
	return s
}

// Transition returns the status reached by applying ev to from. Reset is
// accepted from every status.
func Transition(from Status, ev Event) (Status, error) {
	from = from.Normalize()
	if ev == EventReset {
		return StatusCollecting, nil
	}
	if to, ok := transitions[from][ev]; ok {
		return to, nil
	}
	return from, fmt.Errorf("%w: %s on %s", ErrIllegalTransition, ev, from)
}
