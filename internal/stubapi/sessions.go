package stubapi

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/careflow/careflow/internal/domain/session"
)

func (s *Server) handleCreateSession(c echo.Context) error {
	var in session.Create
	if err := c.Bind(&in); err != nil {
		return fail(c, http.StatusBadRequest, "malformed request body")
	}
	if strings.TrimSpace(in.PatientID) == "" {
		return failValidation(c, missing("patient_id", "field required"))
	}
	if in.SessionType == "" {
		in.SessionType = session.TypeNewProblem
	}

	a := currentAccount(c)
	now := time.Now().UTC()

	s.store.mu.Lock()
	p, ok := s.store.patients[in.PatientID]
	if !ok {
		s.store.mu.Unlock()
		return fail(c, http.StatusNotFound, "patient not found")
	}
	var doctorName string
	if in.AssignedDoctorID != "" {
		doc, ok := s.store.users[in.AssignedDoctorID]
		if !ok || doc.Role != "doctor" {
			s.store.mu.Unlock()
			return failValidation(c, missing("assigned_doctor_id", "unknown doctor"))
		}
		doctorName = doc.FullName
	}
	sess := &session.Session{
		SessionID:               s.store.newSessionID(),
		PatientID:               p.PatientID,
		PatientName:             p.FullName,
		SessionType:             in.SessionType,
		AssignedDoctorID:        in.AssignedDoctorID,
		AssignedDoctorName:      doctorName,
		NurseID:                 a.UserID,
		NurseName:               a.FullName,
		ChiefComplaint:          in.ChiefComplaint,
		CurrentStateDescription: in.CurrentStateDescription,
		SessionDate:             now,
		SessionStatus:           session.StatusDraft,
		UploadedFiles:           []session.UploadedFile{},
		VLMInitialStatus:        "not_started",
		VLMChatHistory:          []session.VLMChatMessage{},
		CreatedAt:               now,
		CreatedBy:               a.UserID,
		LastUpdated:             now,
		LastUpdatedBy:           a.UserID,
		StatusHistory: []session.StatusHistoryEntry{
			{Status: session.StatusDraft, Timestamp: now, UserID: a.UserID},
		},
	}
	s.store.sessions[sess.SessionID] = sess
	out := snapshotSession(sess)
	s.store.mu.Unlock()

	return c.JSON(http.StatusCreated, out)
}

func (s *Server) handleGetSession(c echo.Context) error {
	out, err := s.sessionSnapshot(c.Param("id"))
	if err != nil {
		return fail(c, http.StatusNotFound, "session not found")
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) sessionSnapshot(id string) (*session.Session, error) {
	var out *session.Session
	if !s.store.withSession(id, func(sess *session.Session) {
		out = snapshotSession(sess)
	}) {
		return nil, echo.ErrNotFound
	}
	return out, nil
}

func (s *Server) handleUpdateSession(c echo.Context) error {
	var in session.Update
	if err := c.Bind(&in); err != nil {
		return fail(c, http.StatusBadRequest, "malformed request body")
	}

	a := currentAccount(c)
	var out *session.Session
	var conflict bool
	var badDoctor bool
	found := s.store.withSession(c.Param("id"), func(sess *session.Session) {
		if !session.CanEditDraft(sess.SessionStatus) {
			conflict = true
			return
		}
		if in.ChiefComplaint != nil {
			sess.ChiefComplaint = *in.ChiefComplaint
		}
		if in.CurrentStateDescription != nil {
			sess.CurrentStateDescription = *in.CurrentStateDescription
		}
		if in.AssignedDoctorID != nil {
			doc, ok := s.store.users[*in.AssignedDoctorID]
			if !ok || doc.Role != "doctor" {
				badDoctor = true
				return
			}
			sess.AssignedDoctorID = doc.UserID
			sess.AssignedDoctorName = doc.FullName
		}
		sess.LastUpdated = time.Now().UTC()
		sess.LastUpdatedBy = a.UserID
		out = snapshotSession(sess)
	})
	switch {
	case !found:
		return fail(c, http.StatusNotFound, "session not found")
	case conflict:
		return fail(c, http.StatusBadRequest, "only draft sessions can be edited")
	case badDoctor:
		return failValidation(c, missing("assigned_doctor_id", "unknown doctor"))
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) handleDeleteSession(c echo.Context) error {
	id := c.Param("id")
	s.store.mu.Lock()
	sess, ok := s.store.sessions[id]
	if !ok {
		s.store.mu.Unlock()
		return fail(c, http.StatusNotFound, "session not found")
	}
	if !session.CanEditDraft(sess.SessionStatus) {
		s.store.mu.Unlock()
		return fail(c, http.StatusBadRequest, "only draft sessions can be deleted")
	}
	delete(s.store.sessions, id)
	s.store.mu.Unlock()
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleSubmitSession(c echo.Context) error {
	a := currentAccount(c)
	var out *session.Session
	var fields []fieldError
	var conflict bool
	found := s.store.withSession(c.Param("id"), func(sess *session.Session) {
		if !session.CanEditDraft(sess.SessionStatus) {
			conflict = true
			return
		}
		if strings.TrimSpace(sess.ChiefComplaint) == "" {
			fields = append(fields, missing("chief_complaint", "field required"))
		}
		if strings.TrimSpace(sess.CurrentStateDescription) == "" {
			fields = append(fields, missing("current_state_description", "field required"))
		}
		if strings.TrimSpace(sess.AssignedDoctorID) == "" {
			fields = append(fields, missing("assigned_doctor_id", "field required"))
		}
		if len(fields) > 0 {
			return
		}

		recordStatus(sess, session.StatusSubmitted, a.UserID)
		// Uploaded files are locked from here on.
		for i := range sess.UploadedFiles {
			sess.UploadedFiles[i].CanDelete = false
		}
		out = snapshotSession(sess)
	})
	switch {
	case !found:
		return fail(c, http.StatusNotFound, "session not found")
	case conflict:
		return fail(c, http.StatusBadRequest, "only draft sessions can be submitted")
	case len(fields) > 0:
		return failValidation(c, fields...)
	}

	s.startAnalysis(out.SessionID, a.UserID)
	return c.JSON(http.StatusOK, out)
}

// startAnalysis runs the simulated analysis pipeline for a submitted
// session: a short hop into vlm_processing, then the terminal analysis state
// after the configured latency.
func (s *Server) startAnalysis(sessionID, userID string) {
	processingDelay := s.cfg.VLMLatency / 3
	go func() {
		time.Sleep(processingDelay)
		s.store.withSession(sessionID, func(sess *session.Session) {
			if sess.SessionStatus != session.StatusSubmitted {
				return
			}
			now := time.Now().UTC()
			recordStatus(sess, session.StatusVLMProcessing, userID)
			sess.VLMInitialStatus = "processing"
			sess.VLMInitialTriggeredAt = &now
		})

		time.Sleep(s.cfg.VLMLatency - processingDelay)
		s.store.withSession(sessionID, func(sess *session.Session) {
			if sess.SessionStatus != session.StatusVLMProcessing {
				return
			}
			now := time.Now().UTC()
			if s.cfg.FailAnalysis != nil && s.cfg.FailAnalysis(sess) {
				recordStatus(sess, session.StatusVLMFailed, userID)
				sess.VLMInitialStatus = "failed"
				sess.VLMErrorMessage = "analysis service unavailable"
				return
			}
			recordStatus(sess, session.StatusAwaitingDoctor, userID)
			sess.VLMInitialStatus = "completed"
			sess.VLMInitialCompletedAt = &now
			sess.VLMInitialOutput = mockAnalysis(sess)
		})
	}()
}

// mockAnalysis fabricates a plausible structured output from the session
// contents. Callers hold the store lock.
func mockAnalysis(sess *session.Session) *session.VLMOutput {
	out := &session.VLMOutput{
		Findings:                "Automated review of the submitted material for: " + sess.ChiefComplaint,
		KeyObservations:         []string{"no acute distress indicated in provided description"},
		TechnicalAssessment:     "image quality adequate for preliminary assessment",
		SuggestedConsiderations: []string{"correlate with physical examination", "consider baseline laboratory panel"},
		DifferentialPatterns:    []string{"pattern consistent with reported symptoms"},
		ModelVersion:            "stub-vlm-1.0",
		ProcessingTimeSeconds:   int(time.Since(sess.SessionDate).Seconds()),
	}
	for _, f := range sess.UploadedFiles {
		out.KeyObservations = append(out.KeyObservations, "reviewed "+string(f.FileType)+" attachment "+f.FileName)
	}
	return out
}

func (s *Server) handleUploadFile(c echo.Context) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return failValidation(c, missing("file", "field required"))
	}
	fileType := session.FileType(c.FormValue("file_type"))
	if !session.ValidFileType(fileType) {
		return failValidation(c, missing("file_type", "unknown file type"))
	}
	src, err := fileHeader.Open()
	if err != nil {
		return fail(c, http.StatusBadRequest, "unreadable file upload")
	}
	content, err := io.ReadAll(src)
	src.Close()
	if err != nil {
		return fail(c, http.StatusBadRequest, "unreadable file upload")
	}

	a := currentAccount(c)
	var out *session.UploadedFile
	var conflict bool
	found := s.store.withSession(c.Param("id"), func(sess *session.Session) {
		if !session.CanEditDraft(sess.SessionStatus) {
			conflict = true
			return
		}
		f := session.UploadedFile{
			FileID:          newFileID(),
			FileName:        fileHeader.Filename,
			FileType:        fileType,
			FilePath:        "/uploads/" + sess.SessionID + "/" + fileHeader.Filename,
			MimeType:        fileHeader.Header.Get("Content-Type"),
			FileSizeMB:      float64(fileHeader.Size) / (1 << 20),
			UploadTimestamp: time.Now().UTC(),
			UploadedBy:      a.UserID,
			CanDelete:       true,
		}
		sess.UploadedFiles = append(sess.UploadedFiles, f)
		sess.LastUpdated = f.UploadTimestamp
		sess.LastUpdatedBy = a.UserID
		s.store.files[f.FileID] = content
		out = &f
	})
	switch {
	case !found:
		return fail(c, http.StatusNotFound, "session not found")
	case conflict:
		return fail(c, http.StatusBadRequest, "files can only be added to draft sessions")
	}
	return c.JSON(http.StatusCreated, out)
}

func (s *Server) handleDeleteFile(c echo.Context) error {
	fileID := c.Param("fileID")
	a := currentAccount(c)
	var conflict, fileFound bool
	found := s.store.withSession(c.Param("id"), func(sess *session.Session) {
		for i, f := range sess.UploadedFiles {
			if f.FileID != fileID {
				continue
			}
			fileFound = true
			if !f.CanDelete {
				conflict = true
				return
			}
			sess.UploadedFiles = append(sess.UploadedFiles[:i], sess.UploadedFiles[i+1:]...)
			sess.LastUpdated = time.Now().UTC()
			sess.LastUpdatedBy = a.UserID
			delete(s.store.files, fileID)
			return
		}
	})
	switch {
	case !found:
		return fail(c, http.StatusNotFound, "session not found")
	case !fileFound:
		return fail(c, http.StatusNotFound, "file not found")
	case conflict:
		return fail(c, http.StatusBadRequest, "file can no longer be deleted")
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleFileURL(c echo.Context) error {
	sessionID := c.Param("id")
	fileID := c.Param("fileID")
	var fileFound bool
	found := s.store.withSession(sessionID, func(sess *session.Session) {
		for _, f := range sess.UploadedFiles {
			if f.FileID == fileID {
				fileFound = true
				return
			}
		}
	})
	switch {
	case !found:
		return fail(c, http.StatusNotFound, "session not found")
	case !fileFound:
		return fail(c, http.StatusNotFound, "file not found")
	}
	return c.JSON(http.StatusOK, map[string]string{
		"url": c.Scheme() + "://" + c.Request().Host + "/api/v1/sessions/" + sessionID + "/files/" + fileID,
	})
}

func (s *Server) handleDownloadFile(c echo.Context) error {
	fileID := c.Param("fileID")
	var mimeType string
	var data []byte
	var fileFound bool
	found := s.store.withSession(c.Param("id"), func(sess *session.Session) {
		for _, f := range sess.UploadedFiles {
			if f.FileID == fileID {
				fileFound = true
				mimeType = f.MimeType
				data = s.store.files[fileID]
				return
			}
		}
	})
	switch {
	case !found:
		return fail(c, http.StatusNotFound, "session not found")
	case !fileFound:
		return fail(c, http.StatusNotFound, "file not found")
	}
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	return c.Blob(http.StatusOK, mimeType, data)
}
