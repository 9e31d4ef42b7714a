package session

import "fmt"

// Status is the lifecycle state of a session.
type Status string

const (
	StatusDraft           Status = "draft"
	StatusSubmitted       Status = "submitted"
	StatusVLMProcessing   Status = "vlm_processing"
	StatusAwaitingDoctor  Status = "awaiting_doctor"
	StatusDoctorReviewing Status = "doctor_reviewing"
	StatusCompleted       Status = "completed"
	StatusPendingTests    Status = "pending_tests"
	StatusVLMFailed       Status = "vlm_failed"
)

// Event drives a status transition.
type Event string

const (
	EventSubmit                Event = "submit"
	EventVLMStart              Event = "vlm_start"
	EventVLMComplete           Event = "vlm_complete"
	EventVLMFail               Event = "vlm_fail"
	EventEnterReview           Event = "enter_review"
	EventClose                 Event = "close"
	EventCloseWithPendingTests Event = "close_with_pending_tests"
)

// ErrInvalidTransition is returned by Transition for any status/event pair
// not in the lifecycle table.
type ErrInvalidTransition struct {
	From  Status
	Event Event
}

func (e *ErrInvalidTransition) Error() string {
	return fmt.Sprintf("session: no transition for event %q from status %q", e.Event, e.From)
}

var transitions = map[Status]map[Event]Status{
	StatusDraft: {
		EventSubmit: StatusSubmitted,
	},
	StatusSubmitted: {
		EventVLMStart: StatusVLMProcessing,
	},
	StatusVLMProcessing: {
		EventVLMComplete: StatusAwaitingDoctor,
		EventVLMFail:     StatusVLMFailed,
	},
	StatusAwaitingDoctor: {
		EventEnterReview:           StatusDoctorReviewing,
		EventClose:                 StatusCompleted,
		EventCloseWithPendingTests: StatusPendingTests,
	},
	StatusDoctorReviewing: {
		EventClose:                 StatusCompleted,
		EventCloseWithPendingTests: StatusPendingTests,
	},
	StatusVLMFailed: {
		EventClose:                 StatusCompleted,
		EventCloseWithPendingTests: StatusPendingTests,
	},
}

// Transition applies event to the current status and returns the next one.
func Transition(from Status, event Event) (Status, error) {
	if next, ok := transitions[from][event]; ok {
		return next, nil
	}
	return from, &ErrInvalidTransition{From: from, Event: event}
}

// IsTerminal reports whether a session in this status accepts no further
// transitions.
func IsTerminal(s Status) bool {
	return s == StatusCompleted || s == StatusPendingTests
}

// CanEditDraft reports whether details and files are still mutable.
func CanEditDraft(s Status) bool {
	return s == StatusDraft
}

// CanDiagnose reports whether a doctor may record or amend a diagnosis.
// A failed analysis still allows manual diagnosis.
func CanDiagnose(s Status) bool {
	switch s {
	case StatusAwaitingDoctor, StatusDoctorReviewing, StatusVLMFailed:
		return true
	}
	return false
}

// CanClose reports whether closure is reachable from this status.
func CanClose(s Status) bool {
	return CanDiagnose(s)
}

// Forward reports whether to is reachable from from by some event sequence.
// Equal statuses count as forward so stale poll results never look like a
// regression.
func Forward(from, to Status) bool {
	if from == to {
		return true
	}
	seen := map[Status]bool{from: true}
	frontier := []Status{from}
	for len(frontier) > 0 {
		next := frontier[0]
		frontier = frontier[1:]
		for _, dst := range transitions[next] {
			if dst == to {
				return true
			}
			if !seen[dst] {
				seen[dst] = true
				frontier = append(frontier, dst)
			}
		}
	}
	return false
}
