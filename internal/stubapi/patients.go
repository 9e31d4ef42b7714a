package stubapi

import (
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/careflow/careflow/internal/domain/patient"
	"github.com/careflow/careflow/internal/domain/session"
	"github.com/careflow/careflow/pkg/pagination"
)

func (s *Server) handleCreatePatient(c echo.Context) error {
	var in patient.Create
	if err := c.Bind(&in); err != nil {
		return fail(c, http.StatusBadRequest, "malformed request body")
	}
	var fields []fieldError
	if strings.TrimSpace(in.FullName) == "" {
		fields = append(fields, missing("full_name", "field required"))
	}
	if strings.TrimSpace(in.NationalID) == "" {
		fields = append(fields, missing("national_id", "field required"))
	}
	if strings.TrimSpace(in.DateOfBirth) == "" {
		fields = append(fields, missing("date_of_birth", "field required"))
	}
	if len(fields) > 0 {
		return failValidation(c, fields...)
	}

	a := currentAccount(c)
	now := time.Now().UTC()

	s.store.mu.Lock()
	for _, p := range s.store.patients {
		if p.NationalID == in.NationalID {
			s.store.mu.Unlock()
			return fail(c, http.StatusConflict, "a patient with this national id already exists")
		}
	}
	p := &patient.Patient{
		PatientID:         s.store.newPatientID(),
		FullName:          in.FullName,
		DateOfBirth:       in.DateOfBirth,
		Gender:            in.Gender,
		NationalID:        in.NationalID,
		Phone:             in.Phone,
		Email:             in.Email,
		Address:           in.Address,
		BloodType:         in.BloodType,
		Allergies:         append([]string{}, in.Allergies...),
		ChronicConditions: append([]string{}, in.ChronicConditions...),
		CreatedAt:         now,
		CreatedBy:         a.UserID,
		LastUpdated:       now,
	}
	s.store.patients[p.PatientID] = p
	out := snapshotPatient(p)
	s.store.mu.Unlock()

	return c.JSON(http.StatusCreated, out)
}

func (s *Server) handleSearchPatients(c echo.Context) error {
	q := strings.ToLower(strings.TrimSpace(c.QueryParam("q")))
	page := pagination.FromContext(c)

	s.store.mu.Lock()
	out := []*patient.Patient{}
	for _, p := range s.store.patients {
		if q == "" || matchesPatient(p, q) {
			out = append(out, snapshotPatient(p))
		}
	}
	s.store.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].PatientID < out[j].PatientID })
	lo, hi := page.Window(len(out))
	return c.JSON(http.StatusOK, out[lo:hi])
}

func matchesPatient(p *patient.Patient, q string) bool {
	return strings.Contains(strings.ToLower(p.FullName), q) ||
		strings.Contains(strings.ToLower(p.PatientID), q) ||
		strings.Contains(p.NationalID, q) ||
		strings.Contains(p.Phone, q)
}

func (s *Server) handleGetPatient(c echo.Context) error {
	s.store.mu.Lock()
	p, ok := s.store.patients[c.Param("id")]
	var out *patient.Patient
	if ok {
		out = snapshotPatient(p)
	}
	s.store.mu.Unlock()
	if !ok {
		return fail(c, http.StatusNotFound, "patient not found")
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) handleUpdatePatient(c echo.Context) error {
	var in patient.Update
	if err := c.Bind(&in); err != nil {
		return fail(c, http.StatusBadRequest, "malformed request body")
	}

	s.store.mu.Lock()
	p, ok := s.store.patients[c.Param("id")]
	if !ok {
		s.store.mu.Unlock()
		return fail(c, http.StatusNotFound, "patient not found")
	}
	// The national id is immutable: the update payload has no such field and
	// stray values in the raw body are ignored by the bind above.
	if in.FullName != nil {
		p.FullName = *in.FullName
	}
	if in.Phone != nil {
		p.Phone = *in.Phone
	}
	if in.Email != nil {
		p.Email = *in.Email
	}
	if in.Address != nil {
		p.Address = *in.Address
	}
	if in.BloodType != nil {
		p.BloodType = *in.BloodType
	}
	if in.Allergies != nil {
		p.Allergies = append([]string{}, (*in.Allergies)...)
	}
	if in.ChronicConditions != nil {
		p.ChronicConditions = append([]string{}, (*in.ChronicConditions)...)
	}
	p.LastUpdated = time.Now().UTC()
	out := snapshotPatient(p)
	s.store.mu.Unlock()

	return c.JSON(http.StatusOK, out)
}

func (s *Server) handlePortfolio(c echo.Context) error {
	id := c.Param("id")

	s.store.mu.Lock()
	p, ok := s.store.patients[id]
	if !ok {
		s.store.mu.Unlock()
		return fail(c, http.StatusNotFound, "patient not found")
	}
	pf := patient.Portfolio{Patient: *snapshotPatient(p), Sessions: []session.Summary{}}
	for _, sess := range s.store.sessions {
		if sess.PatientID == id {
			pf.Sessions = append(pf.Sessions, summarize(sess))
		}
	}
	s.store.mu.Unlock()

	// Newest first.
	sort.Slice(pf.Sessions, func(i, j int) bool {
		return pf.Sessions[i].SessionDate.After(pf.Sessions[j].SessionDate)
	})
	return c.JSON(http.StatusOK, pf)
}

func summarize(sess *session.Session) session.Summary {
	return session.Summary{
		SessionID:          sess.SessionID,
		PatientID:          sess.PatientID,
		PatientName:        sess.PatientName,
		SessionDate:        sess.SessionDate,
		SessionType:        sess.SessionType,
		SessionStatus:      sess.SessionStatus,
		ChiefComplaint:     sess.ChiefComplaint,
		AssignedDoctorName: sess.AssignedDoctorName,
	}
}
