package stubapi

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/careflow/careflow/internal/domain/patient"
	"github.com/careflow/careflow/internal/domain/session"
	"github.com/careflow/careflow/internal/platform/identity"
)

// Account is a stub user record. Passwords are plain text: the stub exists
// for demos and tests, never for real credentials.
type Account struct {
	UserID    string
	Username  string
	Password  string
	Email     string
	FullName  string
	Role      identity.Role
	IsActive  bool
	CreatedAt time.Time
	LastLogin time.Time
}

// Store is the in-memory backend state. All access goes through the mutex;
// the VLM simulator mutates sessions from its own goroutines.
type Store struct {
	mu          sync.Mutex
	users       map[string]*Account
	byUsername  map[string]*Account
	patients    map[string]*patient.Patient
	sessions    map[string]*session.Session
	files       map[string][]byte
	nextPatient int
	nextSession int
}

// NewStore returns a store seeded with one account per role.
func NewStore() *Store {
	s := &Store{
		users:      make(map[string]*Account),
		byUsername: make(map[string]*Account),
		patients:   make(map[string]*patient.Patient),
		sessions:   make(map[string]*session.Session),
		files:      make(map[string][]byte),
	}
	now := time.Now().UTC()
	seed := []*Account{
		{UserID: "U-00001", Username: "admin", Password: "admin123", Email: "admin@clinic.local", FullName: "System Administrator", Role: identity.RoleAdmin, IsActive: true, CreatedAt: now},
		{UserID: "U-00002", Username: "dr.chen", Password: "doctor123", Email: "chen@clinic.local", FullName: "Dr. Wei Chen", Role: identity.RoleDoctor, IsActive: true, CreatedAt: now},
		{UserID: "U-00003", Username: "dr.alvarez", Password: "doctor123", Email: "alvarez@clinic.local", FullName: "Dr. Lucia Alvarez", Role: identity.RoleDoctor, IsActive: true, CreatedAt: now},
		{UserID: "U-00004", Username: "nurse.okafor", Password: "nurse123", Email: "okafor@clinic.local", FullName: "Chidi Okafor", Role: identity.RoleNurse, IsActive: true, CreatedAt: now},
	}
	for _, a := range seed {
		s.users[a.UserID] = a
		s.byUsername[a.Username] = a
	}
	return s
}

func (s *Store) account(username string) (*Account, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.byUsername[username]
	return a, ok
}

func (s *Store) accountByID(id string) (*Account, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.users[id]
	return a, ok
}

func (s *Store) doctors() []*Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Account
	for _, a := range s.users {
		if a.Role == identity.RoleDoctor && a.IsActive {
			out = append(out, a)
		}
	}
	return out
}

func (s *Store) newPatientID() string {
	s.nextPatient++
	return fmt.Sprintf("P-%05d", s.nextPatient)
}

func (s *Store) newSessionID() string {
	s.nextSession++
	return fmt.Sprintf("S-%05d", s.nextSession)
}

func newFileID() string {
	return "F-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

func newMessageID() string {
	return "M-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// withSession runs fn under the store lock with the named session, or
// returns false when it does not exist.
func (s *Store) withSession(id string, fn func(*session.Session)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return false
	}
	fn(sess)
	return true
}

// snapshotSession returns a deep copy safe to marshal outside the lock.
func snapshotSession(sess *session.Session) *session.Session {
	cp := *sess
	cp.UploadedFiles = append([]session.UploadedFile(nil), sess.UploadedFiles...)
	cp.VLMChatHistory = append([]session.VLMChatMessage(nil), sess.VLMChatHistory...)
	cp.StatusHistory = append([]session.StatusHistoryEntry(nil), sess.StatusHistory...)
	if sess.Diagnosis != nil {
		d := *sess.Diagnosis
		d.Medications = append([]session.Medication(nil), sess.Diagnosis.Medications...)
		cp.Diagnosis = &d
	}
	if sess.PendingTests != nil {
		pt := *sess.PendingTests
		pt.TestsRequested = append([]string(nil), sess.PendingTests.TestsRequested...)
		cp.PendingTests = &pt
	}
	if sess.VLMInitialOutput != nil {
		o := *sess.VLMInitialOutput
		cp.VLMInitialOutput = &o
	}
	return &cp
}

func snapshotPatient(p *patient.Patient) *patient.Patient {
	cp := *p
	cp.Allergies = append([]string(nil), p.Allergies...)
	cp.ChronicConditions = append([]string(nil), p.ChronicConditions...)
	return &cp
}

// recordStatus appends a history entry. Callers hold the store lock.
func recordStatus(sess *session.Session, status session.Status, userID string) {
	now := time.Now().UTC()
	sess.SessionStatus = status
	sess.LastUpdated = now
	sess.LastUpdatedBy = userID
	sess.StatusHistory = append(sess.StatusHistory, session.StatusHistoryEntry{
		Status:    status,
		Timestamp: now,
		UserID:    userID,
	})
}
