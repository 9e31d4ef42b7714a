package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/careflow/careflow/internal/platform/api"
	"github.com/careflow/careflow/internal/platform/cache"
)

type staticTokens struct{}

func (staticTokens) Token() string      { return "test-token" }
func (staticTokens) HandleAuthFailure() {}

func newTestClient(t *testing.T, handler http.Handler) (*Client, *cache.Cache, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	logger := zerolog.Nop()
	store := cache.New(logger)
	apiClient := api.New(srv.URL, 5*time.Second, staticTokens{}, logger)
	return NewClient(apiClient, store, logger), store, srv
}

func writeJSON(t *testing.T, w http.ResponseWriter, status int, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Errorf("encode response: %v", err)
	}
}

func TestCreateCachesAndInvalidatesListings(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/sessions", func(w http.ResponseWriter, r *http.Request) {
		var in Create
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			t.Fatalf("decode create: %v", err)
		}
		writeJSON(t, w, http.StatusCreated, Session{
			SessionID:      "S-00001",
			PatientID:      in.PatientID,
			ChiefComplaint: in.ChiefComplaint,
			SessionStatus:  StatusDraft,
		})
	})
	client, store, _ := newTestClient(t, mux)

	// Pre-seed a queue listing that the write must invalidate.
	if _, err := store.Get(context.Background(), cache.Key("queue", "awaiting_doctor", "all"), func(ctx context.Context) (any, error) {
		return []Summary{{SessionID: "S-99999"}}, nil
	}); err != nil {
		t.Fatal(err)
	}

	s, err := client.Create(context.Background(), Create{PatientID: "P-00001", ChiefComplaint: "persistent cough"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if s.SessionID != "S-00001" {
		t.Fatalf("SessionID = %q", s.SessionID)
	}
	if _, ok := store.Peek(cache.Key("queue", "awaiting_doctor", "all")); ok {
		t.Fatal("queue listing survived a session write")
	}
}

func TestCreateRequiresPatient(t *testing.T) {
	client, _, _ := newTestClient(t, http.NewServeMux())
	_, err := client.Create(context.Background(), Create{ChiefComplaint: "fever"})
	if !api.IsValidation(err) {
		t.Fatalf("want validation error, got %v", err)
	}
}

func TestGetServedFromCache(t *testing.T) {
	var hits int
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/sessions/S-00002", func(w http.ResponseWriter, r *http.Request) {
		hits++
		writeJSON(t, w, http.StatusOK, Session{SessionID: "S-00002", SessionStatus: StatusAwaitingDoctor})
	})
	client, _, _ := newTestClient(t, mux)

	for i := 0; i < 3; i++ {
		if _, err := client.Get(context.Background(), "S-00002"); err != nil {
			t.Fatalf("Get: %v", err)
		}
	}
	if hits != 1 {
		t.Fatalf("backend hit %d times, want 1", hits)
	}

	if _, err := client.Refresh(context.Background(), "S-00002"); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if hits != 2 {
		t.Fatalf("backend hit %d times after refresh, want 2", hits)
	}
}

func TestUpdateRefusedOnceSubmitted(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/sessions/S-00003", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, Session{SessionID: "S-00003", SessionStatus: StatusSubmitted})
	})
	client, _, _ := newTestClient(t, mux)

	if _, err := client.Get(context.Background(), "S-00003"); err != nil {
		t.Fatal(err)
	}
	complaint := "updated complaint"
	_, err := client.Update(context.Background(), "S-00003", Update{ChiefComplaint: &complaint})
	if !api.IsValidation(err) {
		t.Fatalf("want local validation error, got %v", err)
	}
}

func TestSubmitChecksRequiredDetails(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/sessions/S-00004", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, Session{
			SessionID:      "S-00004",
			SessionStatus:  StatusDraft,
			ChiefComplaint: "chest pain",
			// current state description and doctor missing
		})
	})
	client, _, _ := newTestClient(t, mux)

	if _, err := client.Get(context.Background(), "S-00004"); err != nil {
		t.Fatal(err)
	}
	_, err := client.Submit(context.Background(), "S-00004")
	if !api.IsValidation(err) {
		t.Fatalf("want validation error, got %v", err)
	}
	if !strings.Contains(err.Error(), "current_state_description") {
		t.Fatalf("error does not name the missing field: %v", err)
	}
}

func TestSubmitInvalidatesCachedRecord(t *testing.T) {
	status := StatusDraft
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/sessions/S-00005", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, Session{
			SessionID:               "S-00005",
			SessionStatus:           status,
			ChiefComplaint:          "migraine",
			CurrentStateDescription: "recurring for two weeks",
			AssignedDoctorID:        "U-00002",
		})
	})
	mux.HandleFunc("POST /api/v1/sessions/S-00005/submit", func(w http.ResponseWriter, r *http.Request) {
		status = StatusSubmitted
		writeJSON(t, w, http.StatusOK, Session{SessionID: "S-00005", SessionStatus: status})
	})
	client, _, _ := newTestClient(t, mux)

	if _, err := client.Get(context.Background(), "S-00005"); err != nil {
		t.Fatal(err)
	}
	if _, err := client.Submit(context.Background(), "S-00005"); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	s, err := client.Get(context.Background(), "S-00005")
	if err != nil {
		t.Fatal(err)
	}
	if s.SessionStatus != StatusSubmitted {
		t.Fatalf("read after submit returned status %s", s.SessionStatus)
	}
}

func TestUploadRejectsUnknownFileType(t *testing.T) {
	client, _, _ := newTestClient(t, http.NewServeMux())
	_, err := client.UploadFile(context.Background(), "S-00006", "scan.png", strings.NewReader("data"), FileType("hologram"))
	if !api.IsValidation(err) {
		t.Fatalf("want validation error, got %v", err)
	}
}

func TestDeleteFileHonorsServerFlag(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/sessions/S-00007", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, Session{
			SessionID:     "S-00007",
			SessionStatus: StatusSubmitted,
			UploadedFiles: []UploadedFile{{FileID: "f1a2b3c4", FileName: "xray.png", CanDelete: false}},
		})
	})
	client, _, _ := newTestClient(t, mux)

	if _, err := client.Get(context.Background(), "S-00007"); err != nil {
		t.Fatal(err)
	}
	err := client.DeleteFile(context.Background(), "S-00007", "f1a2b3c4")
	if !api.IsValidation(err) {
		t.Fatalf("want validation error for locked file, got %v", err)
	}
}

func TestFileURLComesFromBackend(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/sessions/S-00008/files/f1a2b3c4/url", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, map[string]string{"url": "https://files.example.test/f1a2b3c4"})
	})
	client, _, _ := newTestClient(t, mux)

	url, err := client.FileURL(context.Background(), "S-00008", "f1a2b3c4")
	if err != nil {
		t.Fatal(err)
	}
	if url != "https://files.example.test/f1a2b3c4" {
		t.Fatalf("url %q", url)
	}
}
