package session

import (
	"encoding/json"
	"time"
)

// Type distinguishes a fresh complaint from a follow-up spawned by pending
// tests on an earlier session.
type Type string

const (
	TypeNewProblem Type = "new_problem"
	TypeFollowUp   Type = "follow_up"
)

// FileType tags an uploaded attachment.
type FileType string

const (
	FileXRay      FileType = "xray"
	FileCT        FileType = "ct"
	FileLabResult FileType = "lab_result"
	FileECG       FileType = "ecg"
	FileReport    FileType = "report"
	FileOther     FileType = "other"
)

// ValidFileType reports whether t is one of the accepted attachment tags.
func ValidFileType(t FileType) bool {
	switch t {
	case FileXRay, FileCT, FileLabResult, FileECG, FileReport, FileOther:
		return true
	}
	return false
}

// UploadedFile is an attachment as the backend describes it. CanDelete is
// server-authoritative: the client never derives it from role logic.
type UploadedFile struct {
	FileID          string    `json:"file_id"`
	FileName        string    `json:"file_name"`
	FileType        FileType  `json:"file_type"`
	FilePath        string    `json:"file_path"`
	MimeType        string    `json:"mime_type"`
	FileSizeMB      float64   `json:"file_size_mb"`
	UploadTimestamp time.Time `json:"upload_timestamp"`
	UploadedBy      string    `json:"uploaded_by"`
	CanDelete       bool      `json:"can_delete"`
}

// VLMOutput is the structured initial analysis produced by the model.
type VLMOutput struct {
	Findings                string   `json:"findings"`
	KeyObservations         []string `json:"key_observations"`
	TechnicalAssessment     string   `json:"technical_assessment"`
	SuggestedConsiderations []string `json:"suggested_considerations"`
	DifferentialPatterns    []string `json:"differential_patterns"`
	ModelVersion            string   `json:"model_version"`
	ProcessingTimeSeconds   int      `json:"processing_time_seconds"`
}

// VLMChatMessage is one doctor turn and its paired model response in the
// append-only transcript.
type VLMChatMessage struct {
	MessageID   string          `json:"message_id"`
	Timestamp   time.Time       `json:"timestamp"`
	Sender      string          `json:"sender"`
	Content     string          `json:"content"`
	VLMResponse json.RawMessage `json:"vlm_response,omitempty"`
}

// Answer extracts the model's answer text from the response payload. When the
// payload carries no answer field the raw JSON is returned as-is.
func (m VLMChatMessage) Answer() string {
	var out struct {
		Answer string `json:"answer"`
	}
	if err := json.Unmarshal(m.VLMResponse, &out); err == nil && out.Answer != "" {
		return out.Answer
	}
	return string(m.VLMResponse)
}

// Severity grades a diagnosis.
type Severity string

const (
	SeverityMild     Severity = "mild"
	SeverityModerate Severity = "moderate"
	SeveritySevere   Severity = "severe"
)

// Medication is one prescription row of a diagnosis.
type Medication struct {
	Name         string `json:"name"`
	Dosage       string `json:"dosage"`
	Duration     string `json:"duration"`
	Instructions string `json:"instructions"`
}

// Complete reports whether the row carries every required field. Incomplete
// rows are silently dropped before submission rather than rejected.
func (m Medication) Complete() bool {
	return trimmed(m.Name) && trimmed(m.Dosage) && trimmed(m.Duration)
}

// FilterMedications returns only the complete rows, preserving order.
func FilterMedications(meds []Medication) []Medication {
	out := make([]Medication, 0, len(meds))
	for _, m := range meds {
		if m.Complete() {
			out = append(out, m)
		}
	}
	return out
}

// Diagnosis is the doctor's clinical resolution of a session.
type Diagnosis struct {
	PrimaryDiagnosis string       `json:"primary_diagnosis"`
	Severity         Severity     `json:"severity"`
	Medications      []Medication `json:"medications"`
	Recommendations  string       `json:"recommendations"`
	FollowUpRequired bool         `json:"follow_up_required"`
	FollowUpReason   string       `json:"follow_up_reason,omitempty"`
	FollowUpDate     *time.Time   `json:"follow_up_date,omitempty"`
	DoctorNotes      string       `json:"doctor_notes"`
}

// PendingTests marks tests the patient must complete before a follow-up.
// Required=true makes session closure spawn a linked child session.
type PendingTests struct {
	Required              bool     `json:"required"`
	TestsRequested        []string `json:"tests_requested"`
	InstructionsToPatient string   `json:"instructions_to_patient"`
}

// StatusHistoryEntry records one status transition.
type StatusHistoryEntry struct {
	Status    Status    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	UserID    string    `json:"user_id"`
}

// Create is the payload for opening a new session.
type Create struct {
	PatientID               string `json:"patient_id"`
	SessionType             Type   `json:"session_type"`
	AssignedDoctorID        string `json:"assigned_doctor_id"`
	ChiefComplaint          string `json:"chief_complaint"`
	CurrentStateDescription string `json:"current_state_description"`
}

// Update carries the draft-only editable fields.
type Update struct {
	ChiefComplaint          *string `json:"chief_complaint,omitempty"`
	CurrentStateDescription *string `json:"current_state_description,omitempty"`
	AssignedDoctorID        *string `json:"assigned_doctor_id,omitempty"`
}

// Session is one clinical encounter record tracked from creation through
// diagnosis and closure.
type Session struct {
	SessionID               string `json:"session_id"`
	PatientID               string `json:"patient_id"`
	PatientName             string `json:"patient_name"`
	SessionType             Type   `json:"session_type"`
	AssignedDoctorID        string `json:"assigned_doctor_id"`
	AssignedDoctorName      string `json:"assigned_doctor_name"`
	NurseID                 string `json:"nurse_id"`
	NurseName               string `json:"nurse_name"`
	ChiefComplaint          string `json:"chief_complaint"`
	CurrentStateDescription string `json:"current_state_description"`

	SessionDate   time.Time `json:"session_date"`
	SessionStatus Status    `json:"session_status"`

	ParentSessionID string `json:"parent_session_id,omitempty"`
	ChildSessionID  string `json:"child_session_id,omitempty"`

	UploadedFiles []UploadedFile `json:"uploaded_files"`

	VLMInitialStatus      string     `json:"vlm_initial_status"`
	VLMInitialTriggeredAt *time.Time `json:"vlm_initial_triggered_at,omitempty"`
	VLMInitialCompletedAt *time.Time `json:"vlm_initial_completed_at,omitempty"`
	VLMInitialOutput      *VLMOutput `json:"vlm_initial_output,omitempty"`
	VLMErrorMessage       string     `json:"vlm_error_message,omitempty"`

	VLMChatHistory []VLMChatMessage `json:"vlm_chat_history"`

	DoctorID       string        `json:"doctor_id,omitempty"`
	DoctorName     string        `json:"doctor_name,omitempty"`
	DoctorOpenedAt *time.Time    `json:"doctor_opened_at,omitempty"`
	Diagnosis      *Diagnosis    `json:"diagnosis,omitempty"`
	PendingTests   *PendingTests `json:"pending_tests,omitempty"`

	SessionClosedAt *time.Time `json:"session_closed_at,omitempty"`
	SessionClosedBy string     `json:"session_closed_by,omitempty"`

	CreatedAt     time.Time            `json:"created_at"`
	CreatedBy     string               `json:"created_by"`
	LastUpdated   time.Time            `json:"last_updated"`
	LastUpdatedBy string               `json:"last_updated_by"`
	StatusHistory []StatusHistoryEntry `json:"status_history"`
}

// Summary is the queue/listing projection of a session.
type Summary struct {
	SessionID          string    `json:"session_id"`
	PatientID          string    `json:"patient_id"`
	PatientName        string    `json:"patient_name"`
	SessionDate        time.Time `json:"session_date"`
	SessionType        Type      `json:"session_type"`
	SessionStatus      Status    `json:"session_status"`
	ChiefComplaint     string    `json:"chief_complaint"`
	AssignedDoctorName string    `json:"assigned_doctor_name"`
}

func trimmed(s string) bool {
	for _, r := range s {
		if r != ' ' && r != '\t' && r != '\n' {
			return true
		}
	}
	return false
}
