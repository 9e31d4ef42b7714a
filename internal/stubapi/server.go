// Package stubapi is an in-memory rendition of the clinical backend. It
// serves the same wire contract the real service exposes so the client
// packages, the CLI demo mode, and the integration tests can run against a
// local process with no external dependencies.
package stubapi

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/careflow/careflow/internal/domain/session"
)

// Config tunes stub behavior. The zero value is usable for tests.
type Config struct {
	// SigningKey signs issued tokens. A fixed development key applies when
	// empty.
	SigningKey []byte
	// VLMLatency is the simulated analysis duration from submission to a
	// terminal analysis state. Tests set this low to observe the
	// intermediate vlm_processing status.
	VLMLatency time.Duration
	// FailAnalysis, when non-nil, decides per session whether the simulated
	// analysis fails instead of completing.
	FailAnalysis func(s *session.Session) bool
	Logger       zerolog.Logger
}

// Server hosts the stub endpoints.
type Server struct {
	e      *echo.Echo
	store  *Store
	cfg    Config
	logger zerolog.Logger
}

// New builds a seeded stub server.
func New(cfg Config) *Server {
	if len(cfg.SigningKey) == 0 {
		cfg.SigningKey = []byte("careflow-dev-signing-key")
	}
	if cfg.VLMLatency <= 0 {
		cfg.VLMLatency = 3 * time.Second
	}

	s := &Server{
		e:      echo.New(),
		store:  NewStore(),
		cfg:    cfg,
		logger: cfg.Logger,
	}
	s.e.HideBanner = true
	s.e.HidePort = true
	s.routes()
	return s
}

// Store exposes the backing store so demo seeding and tests can arrange
// state directly.
func (s *Server) Store() *Store { return s.store }

// Handler returns the server as an http.Handler for httptest wiring.
func (s *Server) Handler() http.Handler { return s.e }

// Start serves on addr until the process ends or Shutdown runs.
func (s *Server) Start(addr string) error { return s.e.Start(addr) }

func (s *Server) routes() {
	v1 := s.e.Group("/api/v1")

	v1.POST("/auth/login", s.handleLogin)

	authed := v1.Group("", s.requireToken)
	authed.POST("/auth/logout", s.handleLogout)
	authed.GET("/auth/me", s.handleMe)
	authed.GET("/users/doctors", s.handleListDoctors)

	authed.POST("/patients", s.handleCreatePatient)
	authed.GET("/patients/search", s.handleSearchPatients)
	authed.GET("/patients/:id", s.handleGetPatient)
	authed.PUT("/patients/:id", s.handleUpdatePatient)
	authed.GET("/patients/:id/portfolio", s.handlePortfolio)

	authed.POST("/sessions", s.handleCreateSession)
	authed.GET("/sessions/:id", s.handleGetSession)
	authed.PUT("/sessions/:id", s.handleUpdateSession)
	authed.DELETE("/sessions/:id", s.handleDeleteSession)
	authed.POST("/sessions/:id/submit", s.handleSubmitSession)
	authed.POST("/sessions/:id/files", s.handleUploadFile)
	authed.GET("/sessions/:id/files/:fileID", s.handleDownloadFile)
	authed.GET("/sessions/:id/files/:fileID/url", s.handleFileURL)
	authed.DELETE("/sessions/:id/files/:fileID", s.handleDeleteFile)

	doctor := authed.Group("/doctor", s.requireRole("doctor", "admin"))
	doctor.GET("/queue", s.handleQueue)
	doctor.GET("/sessions/:id/review", s.handleReview)
	doctor.PUT("/sessions/:id/diagnosis", s.handleSaveDiagnosis)
	doctor.PUT("/sessions/:id/pending-tests", s.handleSavePendingTests)
	doctor.POST("/sessions/:id/close", s.handleCloseSession)
	doctor.POST("/sessions/:id/vlm-chat", s.handleChat)

	authed.GET("/dashboard/stats", s.handleDashboardStats)
}

// fieldError is the wire shape of one validation failure.
type fieldError struct {
	Loc []string `json:"loc"`
	Msg string   `json:"msg"`
}

// fail writes an error body with a string detail.
func fail(c echo.Context, status int, msg string) error {
	return c.JSON(status, map[string]string{"detail": msg})
}

// failValidation writes the list-shaped detail used for field errors.
func failValidation(c echo.Context, fields ...fieldError) error {
	return c.JSON(http.StatusUnprocessableEntity, map[string][]fieldError{"detail": fields})
}

func missing(field, msg string) fieldError {
	return fieldError{Loc: []string{"body", field}, Msg: msg}
}
