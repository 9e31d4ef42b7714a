package stubapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/careflow/careflow/internal/domain/doctor"
	"github.com/careflow/careflow/internal/domain/patient"
	"github.com/careflow/careflow/internal/domain/session"
	"github.com/careflow/careflow/internal/domain/user"
)

type testEnv struct {
	t      *testing.T
	srv    *httptest.Server
	tokens map[string]string
}

func newEnv(t *testing.T, cfg Config) *testEnv {
	t.Helper()
	cfg.Logger = zerolog.Nop()
	if cfg.VLMLatency == 0 {
		cfg.VLMLatency = 60 * time.Millisecond
	}
	stub := New(cfg)
	srv := httptest.NewServer(stub.Handler())
	t.Cleanup(srv.Close)

	env := &testEnv{t: t, srv: srv, tokens: map[string]string{}}
	for username, password := range map[string]string{
		"admin":        "admin123",
		"dr.chen":      "doctor123",
		"nurse.okafor": "nurse123",
	} {
		var resp user.LoginResponse
		env.do("", http.MethodPost, "/api/v1/auth/login", user.LoginRequest{Username: username, Password: password}, http.StatusOK, &resp)
		env.tokens[username] = resp.AccessToken
	}
	return env
}

// do issues a JSON request as the named user and decodes the response.
func (e *testEnv) do(as, method, path string, body any, wantStatus int, out any) {
	e.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			e.t.Fatal(err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, reader)
	if err != nil {
		e.t.Fatal(err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if as != "" {
		req.Header.Set("Authorization", "Bearer "+e.tokens[as])
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		e.t.Fatal(err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != wantStatus {
		e.t.Fatalf("%s %s as %q: status %d, want %d (body %s)", method, path, as, resp.StatusCode, wantStatus, raw)
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			e.t.Fatalf("decode %s %s response: %v (body %s)", method, path, err, raw)
		}
	}
}

func (e *testEnv) createPatient(nationalID string) patient.Patient {
	e.t.Helper()
	var p patient.Patient
	e.do("nurse.okafor", http.MethodPost, "/api/v1/patients", patient.Create{
		FullName:    "Test Patient " + nationalID,
		DateOfBirth: "1990-01-01",
		Gender:      "female",
		NationalID:  nationalID,
		Phone:       "+1-555-0101",
	}, http.StatusCreated, &p)
	return p
}

func (e *testEnv) createDraft(patientID string) session.Session {
	e.t.Helper()
	var s session.Session
	e.do("nurse.okafor", http.MethodPost, "/api/v1/sessions", session.Create{
		PatientID:               patientID,
		SessionType:             session.TypeNewProblem,
		AssignedDoctorID:        "U-00002",
		ChiefComplaint:          "persistent cough",
		CurrentStateDescription: "three weeks, worse at night",
	}, http.StatusCreated, &s)
	return s
}

// submitAndAwait submits the draft and waits out the simulated analysis.
func (e *testEnv) submitAndAwait(sessionID string) session.Session {
	e.t.Helper()
	var s session.Session
	e.do("nurse.okafor", http.MethodPost, "/api/v1/sessions/"+sessionID+"/submit", nil, http.StatusOK, &s)
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		e.do("nurse.okafor", http.MethodGet, "/api/v1/sessions/"+sessionID, nil, http.StatusOK, &s)
		if s.SessionStatus != session.StatusSubmitted && s.SessionStatus != session.StatusVLMProcessing {
			return s
		}
		time.Sleep(10 * time.Millisecond)
	}
	e.t.Fatalf("analysis never finished, status %s", s.SessionStatus)
	return s
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	env := newEnv(t, Config{})
	var body struct {
		Detail string `json:"detail"`
	}
	env.do("", http.MethodPost, "/api/v1/auth/login", user.LoginRequest{Username: "admin", Password: "wrong"}, http.StatusUnauthorized, &body)
	if body.Detail == "" {
		t.Fatal("error body missing detail")
	}
}

func TestLoginValidationShape(t *testing.T) {
	env := newEnv(t, Config{})
	var body struct {
		Detail []struct {
			Loc []string `json:"loc"`
			Msg string   `json:"msg"`
		} `json:"detail"`
	}
	env.do("", http.MethodPost, "/api/v1/auth/login", user.LoginRequest{}, http.StatusUnprocessableEntity, &body)
	if len(body.Detail) != 2 {
		t.Fatalf("want 2 field errors, got %+v", body.Detail)
	}
	if len(body.Detail[0].Loc) == 0 || body.Detail[0].Msg == "" {
		t.Fatalf("field error missing loc/msg: %+v", body.Detail[0])
	}
}

func TestDoctorRoutesRequireRole(t *testing.T) {
	env := newEnv(t, Config{})
	env.do("nurse.okafor", http.MethodGet, "/api/v1/doctor/queue", nil, http.StatusForbidden, nil)
	env.do("dr.chen", http.MethodGet, "/api/v1/doctor/queue", nil, http.StatusOK, nil)
	env.do("admin", http.MethodGet, "/api/v1/doctor/queue", nil, http.StatusOK, nil)
	env.do("", http.MethodGet, "/api/v1/doctor/queue", nil, http.StatusUnauthorized, nil)
}

func TestNationalIDImmutable(t *testing.T) {
	env := newEnv(t, Config{})
	p := env.createPatient("9001011234567")

	var updated patient.Patient
	env.do("nurse.okafor", http.MethodPut, "/api/v1/patients/"+p.PatientID, map[string]string{
		"full_name":   "Renamed Patient",
		"national_id": "0000000000000",
	}, http.StatusOK, &updated)
	if updated.FullName != "Renamed Patient" {
		t.Fatalf("full name not updated: %q", updated.FullName)
	}
	if updated.NationalID != "9001011234567" {
		t.Fatalf("national id changed to %q", updated.NationalID)
	}
}

func TestSessionLifecycle(t *testing.T) {
	env := newEnv(t, Config{})
	p := env.createPatient("8001015678901")
	draft := env.createDraft(p.PatientID)
	if draft.SessionStatus != session.StatusDraft {
		t.Fatalf("new session status %s", draft.SessionStatus)
	}

	// Attach a file while in draft.
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "chest.png")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := part.Write([]byte("fake image")); err != nil {
		t.Fatal(err)
	}
	if err := mw.WriteField("file_type", "xray"); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	req, err := http.NewRequest(http.MethodPost, env.srv.URL+"/api/v1/sessions/"+draft.SessionID+"/files", &buf)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+env.tokens["nurse.okafor"])
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var f session.UploadedFile
	if err := json.NewDecoder(resp.Body).Decode(&f); err != nil {
		t.Fatal(err)
	}
	if !f.CanDelete {
		t.Fatal("fresh draft upload not deletable")
	}

	var loc map[string]string
	env.do("nurse.okafor", http.MethodGet, "/api/v1/sessions/"+draft.SessionID+"/files/"+f.FileID+"/url", nil, http.StatusOK, &loc)
	if loc["url"] == "" {
		t.Fatal("file url endpoint returned no url")
	}
	dlReq, err := http.NewRequest(http.MethodGet, loc["url"], nil)
	if err != nil {
		t.Fatal(err)
	}
	dlReq.Header.Set("Authorization", "Bearer "+env.tokens["nurse.okafor"])
	dlResp, err := http.DefaultClient.Do(dlReq)
	if err != nil {
		t.Fatal(err)
	}
	body, err := io.ReadAll(dlResp.Body)
	dlResp.Body.Close()
	if err != nil {
		t.Fatal(err)
	}
	if dlResp.StatusCode != http.StatusOK || string(body) != "fake image" {
		t.Fatalf("download got %d %q", dlResp.StatusCode, body)
	}

	done := env.submitAndAwait(draft.SessionID)
	if done.SessionStatus != session.StatusAwaitingDoctor {
		t.Fatalf("post-analysis status %s", done.SessionStatus)
	}
	if done.VLMInitialOutput == nil || done.VLMInitialOutput.Findings == "" {
		t.Fatal("analysis output missing")
	}
	if done.UploadedFiles[0].CanDelete {
		t.Fatal("file still deletable after submission")
	}

	// Draft-only operations now refuse.
	env.do("nurse.okafor", http.MethodPut, "/api/v1/sessions/"+draft.SessionID, session.Update{}, http.StatusBadRequest, nil)
	env.do("nurse.okafor", http.MethodDelete, "/api/v1/sessions/"+draft.SessionID+"/files/"+f.FileID, nil, http.StatusBadRequest, nil)
	env.do("nurse.okafor", http.MethodDelete, "/api/v1/sessions/"+draft.SessionID, nil, http.StatusBadRequest, nil)
}

func TestSubmitRequiresDetails(t *testing.T) {
	env := newEnv(t, Config{})
	p := env.createPatient("7501015678902")
	var draft session.Session
	env.do("nurse.okafor", http.MethodPost, "/api/v1/sessions", session.Create{PatientID: p.PatientID}, http.StatusCreated, &draft)

	var body struct {
		Detail []struct {
			Loc []string `json:"loc"`
			Msg string   `json:"msg"`
		} `json:"detail"`
	}
	env.do("nurse.okafor", http.MethodPost, "/api/v1/sessions/"+draft.SessionID+"/submit", nil, http.StatusUnprocessableEntity, &body)
	if len(body.Detail) != 3 {
		t.Fatalf("want 3 missing fields, got %+v", body.Detail)
	}
}

func TestAnalysisFailurePath(t *testing.T) {
	env := newEnv(t, Config{
		FailAnalysis: func(*session.Session) bool { return true },
	})
	p := env.createPatient("6901015678903")
	draft := env.createDraft(p.PatientID)

	done := env.submitAndAwait(draft.SessionID)
	if done.SessionStatus != session.StatusVLMFailed {
		t.Fatalf("status %s, want vlm_failed", done.SessionStatus)
	}
	if done.VLMErrorMessage == "" {
		t.Fatal("failure carries no error message")
	}

	// A failed analysis still allows diagnosis and closure.
	env.do("dr.chen", http.MethodPut, "/api/v1/doctor/sessions/"+draft.SessionID+"/diagnosis",
		session.Diagnosis{PrimaryDiagnosis: "acute bronchitis", Severity: session.SeverityMild}, http.StatusOK, nil)
	var res doctor.CloseResult
	env.do("dr.chen", http.MethodPost, "/api/v1/doctor/sessions/"+draft.SessionID+"/close", nil, http.StatusOK, &res)
	if res.Session.SessionStatus != session.StatusCompleted {
		t.Fatalf("closed status %s", res.Session.SessionStatus)
	}
}

func TestReviewClaimsAndQueue(t *testing.T) {
	env := newEnv(t, Config{})
	p := env.createPatient("8801015678904")
	draft := env.createDraft(p.PatientID)
	env.submitAndAwait(draft.SessionID)

	var queue []session.Summary
	env.do("dr.chen", http.MethodGet, "/api/v1/doctor/queue?status=awaiting_doctor", nil, http.StatusOK, &queue)
	if len(queue) != 1 || queue[0].SessionID != draft.SessionID {
		t.Fatalf("queue = %+v", queue)
	}

	var reviewed session.Session
	env.do("dr.chen", http.MethodGet, "/api/v1/doctor/sessions/"+draft.SessionID+"/review", nil, http.StatusOK, &reviewed)
	if reviewed.SessionStatus != session.StatusDoctorReviewing {
		t.Fatalf("review did not claim: status %s", reviewed.SessionStatus)
	}
	if reviewed.DoctorID != "U-00002" || reviewed.DoctorName == "" {
		t.Fatalf("reviewer not stamped: %+v", reviewed.DoctorID)
	}

	// A second open is idempotent for status.
	env.do("dr.chen", http.MethodGet, "/api/v1/doctor/sessions/"+draft.SessionID+"/review", nil, http.StatusOK, &reviewed)
	if reviewed.SessionStatus != session.StatusDoctorReviewing {
		t.Fatalf("second review open changed status to %s", reviewed.SessionStatus)
	}

	env.do("dr.chen", http.MethodGet, "/api/v1/doctor/queue?status=awaiting_doctor", nil, http.StatusOK, &queue)
	if len(queue) != 0 {
		t.Fatalf("claimed session still in awaiting queue: %+v", queue)
	}
}

func TestCloseRequiresDiagnosis(t *testing.T) {
	env := newEnv(t, Config{})
	p := env.createPatient("7701015678905")
	draft := env.createDraft(p.PatientID)
	env.submitAndAwait(draft.SessionID)

	env.do("dr.chen", http.MethodPost, "/api/v1/doctor/sessions/"+draft.SessionID+"/close", nil, http.StatusBadRequest, nil)
}

func TestCloseWithPendingTestsSpawnsFollowUp(t *testing.T) {
	env := newEnv(t, Config{})
	p := env.createPatient("6601015678906")
	draft := env.createDraft(p.PatientID)
	env.submitAndAwait(draft.SessionID)

	env.do("dr.chen", http.MethodPut, "/api/v1/doctor/sessions/"+draft.SessionID+"/diagnosis",
		session.Diagnosis{PrimaryDiagnosis: "suspected pneumonia", Severity: session.SeverityModerate}, http.StatusOK, nil)
	env.do("dr.chen", http.MethodPut, "/api/v1/doctor/sessions/"+draft.SessionID+"/pending-tests",
		session.PendingTests{Required: true, TestsRequested: []string{"chest CT"}, InstructionsToPatient: "fast for 4 hours"}, http.StatusOK, nil)

	var res doctor.CloseResult
	env.do("dr.chen", http.MethodPost, "/api/v1/doctor/sessions/"+draft.SessionID+"/close", nil, http.StatusOK, &res)
	if res.Session.SessionStatus != session.StatusPendingTests {
		t.Fatalf("parent status %s", res.Session.SessionStatus)
	}
	child := res.FollowUpSession
	if child == nil {
		t.Fatal("no follow-up spawned")
	}
	if child.SessionStatus != session.StatusDraft || child.SessionType != session.TypeFollowUp {
		t.Fatalf("follow-up %+v", child)
	}
	if child.ParentSessionID != draft.SessionID || res.Session.ChildSessionID != child.SessionID {
		t.Fatal("parent/child links not set")
	}
	wantComplaint := "Follow-up for: persistent cough"
	if child.ChiefComplaint != wantComplaint {
		t.Fatalf("follow-up complaint %q, want %q", child.ChiefComplaint, wantComplaint)
	}

	// Exactly one child: the portfolio lists parent and follow-up only.
	var pf patient.Portfolio
	env.do("nurse.okafor", http.MethodGet, "/api/v1/patients/"+p.PatientID+"/portfolio", nil, http.StatusOK, &pf)
	if len(pf.Sessions) != 2 {
		t.Fatalf("portfolio has %d sessions, want 2", len(pf.Sessions))
	}
}

func TestChatAppendsToTranscript(t *testing.T) {
	env := newEnv(t, Config{})
	p := env.createPatient("5501015678907")
	draft := env.createDraft(p.PatientID)
	env.submitAndAwait(draft.SessionID)

	var msg session.VLMChatMessage
	env.do("dr.chen", http.MethodPost, "/api/v1/doctor/sessions/"+draft.SessionID+"/vlm-chat",
		map[string]string{"content": "what does the opacity suggest?"}, http.StatusOK, &msg)
	if msg.MessageID == "" || len(msg.VLMResponse) == 0 {
		t.Fatalf("chat message incomplete: %+v", msg)
	}
	if msg.Content != "what does the opacity suggest?" {
		t.Fatalf("chat message content %q", msg.Content)
	}

	var s session.Session
	env.do("dr.chen", http.MethodGet, "/api/v1/sessions/"+draft.SessionID, nil, http.StatusOK, &s)
	if len(s.VLMChatHistory) != 1 || s.VLMChatHistory[0].MessageID != msg.MessageID {
		t.Fatalf("transcript %+v", s.VLMChatHistory)
	}
}

func TestDashboardScopedByRole(t *testing.T) {
	env := newEnv(t, Config{})
	env.createPatient("4401015678908")

	var nurseStats, doctorStats map[string]any
	env.do("nurse.okafor", http.MethodGet, "/api/v1/dashboard/stats", nil, http.StatusOK, &nurseStats)
	env.do("dr.chen", http.MethodGet, "/api/v1/dashboard/stats", nil, http.StatusOK, &doctorStats)

	if _, ok := nurseStats["total_patients"]; !ok {
		t.Fatalf("nurse stats missing total_patients: %v", nurseStats)
	}
	if _, ok := nurseStats["total_users"]; ok {
		t.Fatal("nurse stats leak admin counters")
	}
	if _, ok := doctorStats["awaiting_doctor"]; !ok {
		t.Fatalf("doctor stats missing awaiting_doctor: %v", doctorStats)
	}
	if _, ok := doctorStats["total_patients"]; ok {
		t.Fatal("doctor stats leak nurse counters")
	}
}

func TestIDFormats(t *testing.T) {
	env := newEnv(t, Config{})
	p := env.createPatient("3301015678909")
	s := env.createDraft(p.PatientID)
	if want := fmt.Sprintf("P-%05d", 1); p.PatientID != want {
		t.Fatalf("patient id %q, want %q", p.PatientID, want)
	}
	if want := fmt.Sprintf("S-%05d", 1); s.SessionID != want {
		t.Fatalf("session id %q, want %q", s.SessionID, want)
	}
}
