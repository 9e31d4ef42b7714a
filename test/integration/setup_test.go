// Package integration runs the full client stack against the in-memory
// backend stub: real HTTP, real JSON, real cache invalidation.
package integration

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/careflow/careflow/internal/domain/dashboard"
	"github.com/careflow/careflow/internal/domain/doctor"
	"github.com/careflow/careflow/internal/domain/patient"
	"github.com/careflow/careflow/internal/domain/session"
	"github.com/careflow/careflow/internal/domain/user"
	"github.com/careflow/careflow/internal/platform/api"
	"github.com/careflow/careflow/internal/platform/cache"
	"github.com/careflow/careflow/internal/platform/identity"
	"github.com/careflow/careflow/internal/stubapi"
)

// env is one wired client stack talking to a fresh stub.
type env struct {
	ids      *identity.Store
	cache    *cache.Cache
	users    *user.Client
	patients *patient.Client
	sessions *session.Client
	doctors  *doctor.Client
	dash     *dashboard.Client
}

func newEnv(t *testing.T, cfg stubapi.Config) *env {
	t.Helper()
	cfg.Logger = zerolog.Nop()
	if cfg.VLMLatency == 0 {
		cfg.VLMLatency = 60 * time.Millisecond
	}
	stub := stubapi.New(cfg)
	srv := httptest.NewServer(stub.Handler())
	t.Cleanup(srv.Close)

	logger := zerolog.Nop()
	ids := identity.NewStoreFromFile(t.TempDir() + "/token")
	store := cache.New(logger)
	apiClient := api.New(srv.URL, 5*time.Second, ids, logger)
	return &env{
		ids:      ids,
		cache:    store,
		users:    user.NewClient(apiClient, ids, store, logger),
		patients: patient.NewClient(apiClient, store, logger),
		sessions: session.NewClient(apiClient, store, logger),
		doctors:  doctor.NewClient(apiClient, store, logger),
		dash:     dashboard.NewClient(apiClient, store, logger),
	}
}

func (e *env) loginAs(t *testing.T, username, password string) {
	t.Helper()
	if _, err := e.users.Login(context.Background(), username, password); err != nil {
		t.Fatalf("login as %s: %v", username, err)
	}
}

func (e *env) registerPatient(t *testing.T, nationalID string) *patient.Patient {
	t.Helper()
	p, err := e.patients.Create(context.Background(), patient.Create{
		FullName:    "Integration Patient " + nationalID,
		DateOfBirth: "1985-06-15",
		Gender:      "female",
		NationalID:  nationalID,
		Phone:       "+1-555-0100",
	})
	if err != nil {
		t.Fatalf("register patient: %v", err)
	}
	return p
}

// createAndSubmit runs a session through the wizard and waits for the
// simulated analysis to finish.
func (e *env) createAndSubmit(t *testing.T, patientID, complaint string) *session.Session {
	t.Helper()
	ctx := context.Background()
	w := session.NewWizard(e.sessions, zerolog.Nop())
	if _, err := w.SubmitDetails(ctx, session.Create{
		PatientID:               patientID,
		SessionType:             session.TypeNewProblem,
		AssignedDoctorID:        "U-00002",
		ChiefComplaint:          complaint,
		CurrentStateDescription: "symptoms described at intake",
	}); err != nil {
		t.Fatalf("wizard details: %v", err)
	}
	if err := w.Next(); err != nil {
		t.Fatal(err)
	}
	s, err := w.Confirm(ctx)
	if err != nil {
		t.Fatalf("wizard confirm: %v", err)
	}
	return e.awaitAnalysis(t, s.SessionID)
}

func (e *env) awaitAnalysis(t *testing.T, sessionID string) *session.Session {
	t.Helper()
	ctx := context.Background()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		s, err := e.sessions.Refresh(ctx, sessionID)
		if err != nil {
			t.Fatalf("refresh session: %v", err)
		}
		switch s.SessionStatus {
		case session.StatusSubmitted, session.StatusVLMProcessing:
			time.Sleep(10 * time.Millisecond)
		default:
			return s
		}
	}
	t.Fatal("analysis never finished")
	return nil
}
