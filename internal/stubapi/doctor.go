package stubapi

import (
	"encoding/json"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/careflow/careflow/internal/domain/doctor"
	"github.com/careflow/careflow/internal/domain/session"
	"github.com/careflow/careflow/pkg/pagination"
)

// reviewableStatuses are the statuses listed by an unfiltered queue read.
var reviewableStatuses = map[session.Status]bool{
	session.StatusAwaitingDoctor:  true,
	session.StatusDoctorReviewing: true,
	session.StatusVLMFailed:       true,
}

func (s *Server) handleQueue(c echo.Context) error {
	statusFilter := session.Status(c.QueryParam("status"))
	mineOnly := c.QueryParam("assigned_to_me") == "true"
	page := pagination.FromContext(c)
	a := currentAccount(c)

	s.store.mu.Lock()
	out := []session.Summary{}
	for _, sess := range s.store.sessions {
		if statusFilter != "" {
			if sess.SessionStatus != statusFilter {
				continue
			}
		} else if !reviewableStatuses[sess.SessionStatus] {
			continue
		}
		if mineOnly && sess.AssignedDoctorID != a.UserID {
			continue
		}
		out = append(out, summarize(sess))
	}
	s.store.mu.Unlock()

	// Oldest first so the longest-waiting patient is handled next.
	sort.Slice(out, func(i, j int) bool { return out[i].SessionDate.Before(out[j].SessionDate) })
	lo, hi := page.Window(len(out))
	return c.JSON(http.StatusOK, out[lo:hi])
}

func (s *Server) handleReview(c echo.Context) error {
	a := currentAccount(c)
	var out *session.Session
	found := s.store.withSession(c.Param("id"), func(sess *session.Session) {
		// Opening an unclaimed session claims it for this doctor.
		if sess.SessionStatus == session.StatusAwaitingDoctor {
			now := time.Now().UTC()
			recordStatus(sess, session.StatusDoctorReviewing, a.UserID)
			sess.DoctorID = a.UserID
			sess.DoctorName = a.FullName
			sess.DoctorOpenedAt = &now
		}
		out = snapshotSession(sess)
	})
	if !found {
		return fail(c, http.StatusNotFound, "session not found")
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) handleSaveDiagnosis(c echo.Context) error {
	var in session.Diagnosis
	if err := c.Bind(&in); err != nil {
		return fail(c, http.StatusBadRequest, "malformed request body")
	}
	if strings.TrimSpace(in.PrimaryDiagnosis) == "" {
		return failValidation(c, missing("primary_diagnosis", "field required"))
	}
	in.Medications = session.FilterMedications(in.Medications)

	a := currentAccount(c)
	var out *session.Session
	var conflict bool
	found := s.store.withSession(c.Param("id"), func(sess *session.Session) {
		if !session.CanDiagnose(sess.SessionStatus) {
			conflict = true
			return
		}
		sess.Diagnosis = &in
		sess.DoctorID = a.UserID
		sess.DoctorName = a.FullName
		sess.LastUpdated = time.Now().UTC()
		sess.LastUpdatedBy = a.UserID
		out = snapshotSession(sess)
	})
	switch {
	case !found:
		return fail(c, http.StatusNotFound, "session not found")
	case conflict:
		return fail(c, http.StatusBadRequest, "session cannot be diagnosed in its current status")
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) handleSavePendingTests(c echo.Context) error {
	var in session.PendingTests
	if err := c.Bind(&in); err != nil {
		return fail(c, http.StatusBadRequest, "malformed request body")
	}
	if in.Required && len(in.TestsRequested) == 0 {
		return failValidation(c, missing("tests_requested", "at least one test is required"))
	}

	a := currentAccount(c)
	var out *session.Session
	var conflict bool
	found := s.store.withSession(c.Param("id"), func(sess *session.Session) {
		if !session.CanDiagnose(sess.SessionStatus) {
			conflict = true
			return
		}
		sess.PendingTests = &in
		sess.LastUpdated = time.Now().UTC()
		sess.LastUpdatedBy = a.UserID
		out = snapshotSession(sess)
	})
	switch {
	case !found:
		return fail(c, http.StatusNotFound, "session not found")
	case conflict:
		return fail(c, http.StatusBadRequest, "session cannot be modified in its current status")
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) handleCloseSession(c echo.Context) error {
	a := currentAccount(c)
	now := time.Now().UTC()

	s.store.mu.Lock()
	sess, ok := s.store.sessions[c.Param("id")]
	if !ok {
		s.store.mu.Unlock()
		return fail(c, http.StatusNotFound, "session not found")
	}
	if !session.CanClose(sess.SessionStatus) {
		s.store.mu.Unlock()
		return fail(c, http.StatusBadRequest, "session cannot be closed in its current status")
	}
	if sess.Diagnosis == nil {
		s.store.mu.Unlock()
		return fail(c, http.StatusBadRequest, "a diagnosis must be recorded before closing")
	}

	res := doctor.CloseResult{}
	if sess.PendingTests != nil && sess.PendingTests.Required {
		recordStatus(sess, session.StatusPendingTests, a.UserID)

		child := &session.Session{
			SessionID:               s.store.newSessionID(),
			PatientID:               sess.PatientID,
			PatientName:             sess.PatientName,
			SessionType:             session.TypeFollowUp,
			AssignedDoctorID:        sess.AssignedDoctorID,
			AssignedDoctorName:      sess.AssignedDoctorName,
			NurseID:                 sess.NurseID,
			NurseName:               sess.NurseName,
			ChiefComplaint:          "Follow-up for: " + sess.ChiefComplaint,
			CurrentStateDescription: sess.PendingTests.InstructionsToPatient,
			SessionDate:             now,
			SessionStatus:           session.StatusDraft,
			ParentSessionID:         sess.SessionID,
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
		s.store.sessions[child.SessionID] = child
		sess.ChildSessionID = child.SessionID
		res.FollowUpSession = snapshotSession(child)
	} else {
		recordStatus(sess, session.StatusCompleted, a.UserID)
	}
	sess.SessionClosedAt = &now
	sess.SessionClosedBy = a.UserID
	res.Session = snapshotSession(sess)
	s.store.mu.Unlock()

	return c.JSON(http.StatusOK, res)
}

func (s *Server) handleChat(c echo.Context) error {
	var in struct {
		Content string `json:"content"`
	}
	if err := c.Bind(&in); err != nil {
		return fail(c, http.StatusBadRequest, "malformed request body")
	}
	if strings.TrimSpace(in.Content) == "" {
		return failValidation(c, missing("content", "field required"))
	}

	a := currentAccount(c)
	var out *session.VLMChatMessage
	var noAnalysis bool
	found := s.store.withSession(c.Param("id"), func(sess *session.Session) {
		if sess.VLMInitialOutput == nil {
			noAnalysis = true
			return
		}
		reply, _ := json.Marshal(map[string]string{
			"answer": "Based on the initial analysis: " + sess.VLMInitialOutput.Findings,
		})
		msg := session.VLMChatMessage{
			MessageID:   newMessageID(),
			Timestamp:   time.Now().UTC(),
			Sender:      a.UserID,
			Content:     in.Content,
			VLMResponse: reply,
		}
		sess.VLMChatHistory = append(sess.VLMChatHistory, msg)
		out = &msg
	})
	switch {
	case !found:
		return fail(c, http.StatusNotFound, "session not found")
	case noAnalysis:
		return fail(c, http.StatusBadRequest, "no analysis is available to discuss")
	}
	return c.JSON(http.StatusOK, out)
}
