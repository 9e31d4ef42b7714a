package stubapi

import (
	"time"

	"github.com/careflow/careflow/internal/domain/patient"
	"github.com/careflow/careflow/internal/domain/session"
)

// SeedDemo loads a small realistic data set for the demo mode: two patients,
// one session already waiting for a doctor and one fresh draft.
func (s *Server) SeedDemo() {
	now := time.Now().UTC()

	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	p1 := &patient.Patient{
		PatientID:         s.store.newPatientID(),
		FullName:          "Amina Hassan",
		DateOfBirth:       "1984-03-12",
		Gender:            "female",
		NationalID:        "8403125512087",
		Phone:             "+27-82-555-0134",
		BloodType:         "O+",
		Allergies:         []string{"penicillin"},
		ChronicConditions: []string{"hypertension"},
		CreatedAt:         now.Add(-90 * 24 * time.Hour),
		CreatedBy:         "U-00004",
		LastUpdated:       now.Add(-90 * 24 * time.Hour),
	}
	p2 := &patient.Patient{
		PatientID:         s.store.newPatientID(),
		FullName:          "Jonas Weber",
		DateOfBirth:       "1972-11-02",
		Gender:            "male",
		NationalID:        "7211025041080",
		Phone:             "+27-83-555-0199",
		BloodType:         "A-",
		Allergies:         []string{},
		ChronicConditions: []string{"type 2 diabetes"},
		CreatedAt:         now.Add(-30 * 24 * time.Hour),
		CreatedBy:         "U-00004",
		LastUpdated:       now.Add(-30 * 24 * time.Hour),
	}
	s.store.patients[p1.PatientID] = p1
	s.store.patients[p2.PatientID] = p2

	waiting := &session.Session{
		SessionID:               s.store.newSessionID(),
		PatientID:               p1.PatientID,
		PatientName:             p1.FullName,
		SessionType:             session.TypeNewProblem,
		AssignedDoctorID:        "U-00002",
		AssignedDoctorName:      "Dr. Wei Chen",
		NurseID:                 "U-00004",
		NurseName:               "Chidi Okafor",
		ChiefComplaint:          "persistent dry cough",
		CurrentStateDescription: "cough for three weeks, worse at night, no fever",
		SessionDate:             now.Add(-2 * time.Hour),
		SessionStatus:           session.StatusAwaitingDoctor,
		UploadedFiles:           []session.UploadedFile{},
		VLMInitialStatus:        "completed",
		VLMChatHistory:          []session.VLMChatMessage{},
		CreatedAt:               now.Add(-2 * time.Hour),
		CreatedBy:               "U-00004",
		LastUpdated:             now.Add(-1 * time.Hour),
		LastUpdatedBy:           "U-00004",
	}
	completed := now.Add(-1 * time.Hour)
	waiting.VLMInitialCompletedAt = &completed
	waiting.VLMInitialOutput = mockAnalysis(waiting)
	waiting.StatusHistory = []session.StatusHistoryEntry{
		{Status: session.StatusDraft, Timestamp: waiting.CreatedAt, UserID: "U-00004"},
		{Status: session.StatusSubmitted, Timestamp: waiting.CreatedAt.Add(10 * time.Minute), UserID: "U-00004"},
		{Status: session.StatusVLMProcessing, Timestamp: waiting.CreatedAt.Add(11 * time.Minute), UserID: "U-00004"},
		{Status: session.StatusAwaitingDoctor, Timestamp: completed, UserID: "U-00004"},
	}
	s.store.sessions[waiting.SessionID] = waiting

	draft := &session.Session{
		SessionID:               s.store.newSessionID(),
		PatientID:               p2.PatientID,
		PatientName:             p2.FullName,
		SessionType:             session.TypeNewProblem,
		NurseID:                 "U-00004",
		NurseName:               "Chidi Okafor",
		ChiefComplaint:          "left knee pain after fall",
		CurrentStateDescription: "swelling and limited mobility since yesterday",
		SessionDate:             now.Add(-20 * time.Minute),
		SessionStatus:           session.StatusDraft,
		UploadedFiles:           []session.UploadedFile{},
		VLMInitialStatus:        "not_started",
		VLMChatHistory:          []session.VLMChatMessage{},
		CreatedAt:               now.Add(-20 * time.Minute),
		CreatedBy:               "U-00004",
		LastUpdated:             now.Add(-20 * time.Minute),
		LastUpdatedBy:           "U-00004",
		StatusHistory: []session.StatusHistoryEntry{
			{Status: session.StatusDraft, Timestamp: now.Add(-20 * time.Minute), UserID: "U-00004"},
		},
	}
	s.store.sessions[draft.SessionID] = draft
}
