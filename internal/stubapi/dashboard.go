package stubapi

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/careflow/careflow/internal/domain/dashboard"
	"github.com/careflow/careflow/internal/domain/session"
	"github.com/careflow/careflow/internal/platform/identity"
)

func (s *Server) handleDashboardStats(c echo.Context) error {
	a := currentAccount(c)
	now := time.Now().UTC()
	today := now.Truncate(24 * time.Hour)
	weekAgo := now.AddDate(0, 0, -7)

	s.store.mu.Lock()
	counts := map[session.Status]int{}
	completedToday, lastWeek, mine := 0, 0, 0
	for _, sess := range s.store.sessions {
		counts[sess.SessionStatus]++
		if sess.SessionStatus == session.StatusCompleted && sess.SessionClosedAt != nil && !sess.SessionClosedAt.Before(today) {
			completedToday++
		}
		if sess.SessionDate.After(weekAgo) {
			lastWeek++
		}
		if sess.AssignedDoctorID == a.UserID && !session.IsTerminal(sess.SessionStatus) {
			mine++
		}
	}
	totalPatients := len(s.store.patients)
	totalUsers := len(s.store.users)
	activeUsers := 0
	for _, u := range s.store.users {
		if u.IsActive {
			activeUsers++
		}
	}
	s.store.mu.Unlock()

	active := counts[session.StatusSubmitted] + counts[session.StatusVLMProcessing] +
		counts[session.StatusAwaitingDoctor] + counts[session.StatusDoctorReviewing]

	stats := dashboard.Stats{}
	switch a.Role {
	case identity.RoleNurse:
		stats.TotalPatients = ptr(totalPatients)
		stats.ActiveSessions = ptr(active)
		stats.DraftSessions = ptr(counts[session.StatusDraft])
		stats.PendingTests = ptr(counts[session.StatusPendingTests])
		stats.CompletedToday = ptr(completedToday)
	case identity.RoleDoctor:
		stats.AwaitingDoctor = ptr(counts[session.StatusAwaitingDoctor])
		stats.InReview = ptr(counts[session.StatusDoctorReviewing])
		stats.FailedAnalyses = ptr(counts[session.StatusVLMFailed])
		stats.MyAssignedSessions = ptr(mine)
		stats.CompletedToday = ptr(completedToday)
	case identity.RoleAdmin:
		stats.TotalPatients = ptr(totalPatients)
		stats.ActiveSessions = ptr(active)
		stats.DraftSessions = ptr(counts[session.StatusDraft])
		stats.AwaitingDoctor = ptr(counts[session.StatusAwaitingDoctor])
		stats.InReview = ptr(counts[session.StatusDoctorReviewing])
		stats.CompletedToday = ptr(completedToday)
		stats.PendingTests = ptr(counts[session.StatusPendingTests])
		stats.FailedAnalyses = ptr(counts[session.StatusVLMFailed])
		stats.TotalUsers = ptr(totalUsers)
		stats.ActiveUsers = ptr(activeUsers)
		stats.SessionsLastSevenDay = ptr(lastWeek)
	}
	return c.JSON(http.StatusOK, stats)
}

func ptr(n int) *int { return &n }
