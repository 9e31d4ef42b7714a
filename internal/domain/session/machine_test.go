package session

import (
	"errors"
	"testing"
)

func TestTransitionTable(t *testing.T) {
	cases := []struct {
		name  string
		from  Status
		event Event
		want  Status
		ok    bool
	}{
		{"draft submits", StatusDraft, EventSubmit, StatusSubmitted, true},
		{"submitted starts analysis", StatusSubmitted, EventVLMStart, StatusVLMProcessing, true},
		{"analysis completes", StatusVLMProcessing, EventVLMComplete, StatusAwaitingDoctor, true},
		{"analysis fails", StatusVLMProcessing, EventVLMFail, StatusVLMFailed, true},
		{"doctor opens review", StatusAwaitingDoctor, EventEnterReview, StatusDoctorReviewing, true},
		{"close from review", StatusDoctorReviewing, EventClose, StatusCompleted, true},
		{"close with tests from review", StatusDoctorReviewing, EventCloseWithPendingTests, StatusPendingTests, true},
		{"close without opening review", StatusAwaitingDoctor, EventClose, StatusCompleted, true},
		{"close after failed analysis", StatusVLMFailed, EventClose, StatusCompleted, true},
		{"draft cannot close", StatusDraft, EventClose, StatusDraft, false},
		{"completed is terminal", StatusCompleted, EventSubmit, StatusCompleted, false},
		{"pending tests is terminal", StatusPendingTests, EventEnterReview, StatusPendingTests, false},
		{"cannot resubmit", StatusSubmitted, EventSubmit, StatusSubmitted, false},
		{"review cannot restart analysis", StatusDoctorReviewing, EventVLMStart, StatusDoctorReviewing, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Transition(tc.from, tc.event)
			if tc.ok {
				if err != nil {
					t.Fatalf("Transition(%s, %s): unexpected error %v", tc.from, tc.event, err)
				}
				if got != tc.want {
					t.Fatalf("Transition(%s, %s) = %s, want %s", tc.from, tc.event, got, tc.want)
				}
				return
			}
			var inv *ErrInvalidTransition
			if !errors.As(err, &inv) {
				t.Fatalf("Transition(%s, %s): want ErrInvalidTransition, got %v", tc.from, tc.event, err)
			}
			if got != tc.from {
				t.Fatalf("failed transition moved status to %s", got)
			}
		})
	}
}

func TestTerminalStatusesAcceptNoEvent(t *testing.T) {
	events := []Event{EventSubmit, EventVLMStart, EventVLMComplete, EventVLMFail, EventEnterReview, EventClose, EventCloseWithPendingTests}
	for _, s := range []Status{StatusCompleted, StatusPendingTests} {
		if !IsTerminal(s) {
			t.Fatalf("IsTerminal(%s) = false", s)
		}
		for _, ev := range events {
			if _, err := Transition(s, ev); err == nil {
				t.Fatalf("terminal status %s accepted event %s", s, ev)
			}
		}
	}
}

func TestLifecycleHelpers(t *testing.T) {
	if !CanEditDraft(StatusDraft) || CanEditDraft(StatusSubmitted) {
		t.Fatal("CanEditDraft must hold for draft only")
	}
	for _, s := range []Status{StatusAwaitingDoctor, StatusDoctorReviewing, StatusVLMFailed} {
		if !CanDiagnose(s) {
			t.Fatalf("CanDiagnose(%s) = false", s)
		}
		if !CanClose(s) {
			t.Fatalf("CanClose(%s) = false", s)
		}
	}
	for _, s := range []Status{StatusDraft, StatusSubmitted, StatusVLMProcessing, StatusCompleted, StatusPendingTests} {
		if CanDiagnose(s) {
			t.Fatalf("CanDiagnose(%s) = true", s)
		}
	}
}

func TestForward(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		{StatusDraft, StatusCompleted, true},
		{StatusDraft, StatusVLMFailed, true},
		{StatusSubmitted, StatusPendingTests, true},
		{StatusAwaitingDoctor, StatusAwaitingDoctor, true},
		{StatusCompleted, StatusDraft, false},
		{StatusDoctorReviewing, StatusSubmitted, false},
		{StatusVLMFailed, StatusAwaitingDoctor, false},
	}
	for _, tc := range cases {
		if got := Forward(tc.from, tc.to); got != tc.want {
			t.Errorf("Forward(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestFilterMedications(t *testing.T) {
	meds := []Medication{
		{Name: "Amoxicillin", Dosage: "500mg", Duration: "7 days"},
		{Name: "", Dosage: "500mg", Duration: "7 days"},
		{Name: "Ibuprofen", Dosage: "  ", Duration: "5 days"},
		{Name: "Paracetamol", Dosage: "1g", Duration: ""},
		{Name: "Cetirizine", Dosage: "10mg", Duration: "14 days", Instructions: "at night"},
	}
	got := FilterMedications(meds)
	if len(got) != 2 {
		t.Fatalf("FilterMedications kept %d rows, want 2", len(got))
	}
	if got[0].Name != "Amoxicillin" || got[1].Name != "Cetirizine" {
		t.Fatalf("FilterMedications changed order: %+v", got)
	}
}

func TestChatMessageAnswer(t *testing.T) {
	msg := VLMChatMessage{VLMResponse: []byte(`{"answer":"The opacity suggests consolidation."}`)}
	if got := msg.Answer(); got != "The opacity suggests consolidation." {
		t.Fatalf("Answer() = %q", got)
	}
	raw := VLMChatMessage{VLMResponse: []byte(`{"verdict":"benign"}`)}
	if got := raw.Answer(); got != `{"verdict":"benign"}` {
		t.Fatalf("Answer() fallback = %q", got)
	}
}
