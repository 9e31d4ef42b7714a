// Package session models the clinical encounter lifecycle: the wire types,
// the status machine, the resource client, and the three-step creation
// wizard.
package session

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"

	"github.com/careflow/careflow/internal/platform/api"
	"github.com/careflow/careflow/internal/platform/cache"
)

// WriteKind is the resource kind declared to the cache for dependent
// invalidation on session writes.
const WriteKind = "session"

// CacheKey is the canonical cache key for one session record.
func CacheKey(sessionID string) string {
	return cache.Key("session", sessionID)
}

// Client performs session CRUD and draft file management against the
// backend, keeping the shared cache coherent after every write.
type Client struct {
	api    *api.Client
	cache  *cache.Cache
	logger zerolog.Logger
}

// NewClient wires the client and declares which cached listings a session
// write invalidates.
func NewClient(a *api.Client, c *cache.Cache, logger zerolog.Logger) *Client {
	c.DeclareDependents(WriteKind, func(id string) []string {
		return []string{
			cache.Key("session", id),
			cache.Key("queue"),
			cache.Key("doctor", "session", id),
			cache.Key("dashboard"),
			cache.Key("patient", "portfolio"),
		}
	})
	return &Client{api: a, cache: c, logger: logger}
}

// Create opens a draft session.
func (c *Client) Create(ctx context.Context, in Create) (*Session, error) {
	if strings.TrimSpace(in.PatientID) == "" {
		return nil, api.NewValidationError("patient_id", "patient is required")
	}
	var s Session
	if err := c.api.Post(ctx, "/sessions", in, &s); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	c.cache.WriteResolved(WriteKind, s.SessionID)
	c.logger.Info().Str("session_id", s.SessionID).Str("patient_id", s.PatientID).Msg("session created")
	return &s, nil
}

// Get fetches one session, served from cache when fresh.
func (c *Client) Get(ctx context.Context, sessionID string) (*Session, error) {
	return cache.GetAs(ctx, c.cache, CacheKey(sessionID), func(ctx context.Context) (*Session, error) {
		return c.fetch(ctx, sessionID)
	})
}

// fetch loads the record from the backend, bypassing the cache.
func (c *Client) fetch(ctx context.Context, sessionID string) (*Session, error) {
	var s Session
	if err := c.api.Get(ctx, "/sessions/"+sessionID, nil, &s); err != nil {
		return nil, fmt.Errorf("get session %s: %w", sessionID, err)
	}
	return &s, nil
}

// Refresh drops the cached record and fetches the current one.
func (c *Client) Refresh(ctx context.Context, sessionID string) (*Session, error) {
	c.cache.Invalidate(CacheKey(sessionID))
	return c.Get(ctx, sessionID)
}

// Update edits draft details. The backend rejects edits past draft; the
// client checks first when it already holds the record.
func (c *Client) Update(ctx context.Context, sessionID string, in Update) (*Session, error) {
	if cached, ok := c.cache.Peek(CacheKey(sessionID)); ok {
		if s, ok := cached.(*Session); ok && !CanEditDraft(s.SessionStatus) {
			return nil, api.NewValidationError("session_status", "session is no longer editable")
		}
	}
	var s Session
	if err := c.api.Put(ctx, "/sessions/"+sessionID, in, &s); err != nil {
		return nil, fmt.Errorf("update session %s: %w", sessionID, err)
	}
	c.cache.WriteResolved(WriteKind, sessionID)
	return &s, nil
}

// Submit hands the draft to the analysis pipeline. The required-detail
// checks run locally so the wizard can surface them without a round trip.
func (c *Client) Submit(ctx context.Context, sessionID string) (*Session, error) {
	if cached, ok := c.cache.Peek(CacheKey(sessionID)); ok {
		if s, ok := cached.(*Session); ok {
			if err := checkSubmittable(s); err != nil {
				return nil, err
			}
		}
	}
	var s Session
	if err := c.api.Post(ctx, "/sessions/"+sessionID+"/submit", nil, &s); err != nil {
		return nil, fmt.Errorf("submit session %s: %w", sessionID, err)
	}
	c.cache.WriteResolved(WriteKind, sessionID)
	c.logger.Info().Str("session_id", sessionID).Str("status", string(s.SessionStatus)).Msg("session submitted")
	return &s, nil
}

// Delete discards a draft. Non-draft sessions are refused by the backend.
func (c *Client) Delete(ctx context.Context, sessionID string) error {
	if err := c.api.Delete(ctx, "/sessions/"+sessionID); err != nil {
		return fmt.Errorf("delete session %s: %w", sessionID, err)
	}
	c.cache.WriteResolved(WriteKind, sessionID)
	return nil
}

// UploadFile attaches a file to a draft session.
func (c *Client) UploadFile(ctx context.Context, sessionID, fileName string, file io.Reader, fileType FileType) (*UploadedFile, error) {
	if !ValidFileType(fileType) {
		return nil, api.NewValidationError("file_type", fmt.Sprintf("unknown file type %q", fileType))
	}
	var f UploadedFile
	if err := c.api.Upload(ctx, "/sessions/"+sessionID+"/files", fileName, file, string(fileType), &f); err != nil {
		return nil, fmt.Errorf("upload file to session %s: %w", sessionID, err)
	}
	c.cache.WriteResolved(WriteKind, sessionID)
	return &f, nil
}

// FileURL asks the backend for the download URL of an attachment. File
// locations are server-authoritative; the client never derives them.
func (c *Client) FileURL(ctx context.Context, sessionID, fileID string) (string, error) {
	var out struct {
		URL string `json:"url"`
	}
	if err := c.api.Get(ctx, "/sessions/"+sessionID+"/files/"+fileID+"/url", nil, &out); err != nil {
		return "", fmt.Errorf("file url for %s: %w", fileID, err)
	}
	return out.URL, nil
}

// DeleteFile removes an attachment. Honors the server-declared CanDelete
// flag when the record is cached.
func (c *Client) DeleteFile(ctx context.Context, sessionID, fileID string) error {
	if cached, ok := c.cache.Peek(CacheKey(sessionID)); ok {
		if s, ok := cached.(*Session); ok {
			for _, f := range s.UploadedFiles {
				if f.FileID == fileID && !f.CanDelete {
					return api.NewValidationError("file_id", "file can no longer be deleted")
				}
			}
		}
	}
	if err := c.api.Delete(ctx, "/sessions/"+sessionID+"/files/"+fileID); err != nil {
		return fmt.Errorf("delete file %s: %w", fileID, err)
	}
	c.cache.WriteResolved(WriteKind, sessionID)
	return nil
}

// checkSubmittable mirrors the backend's submission preconditions.
func checkSubmittable(s *Session) error {
	if !CanEditDraft(s.SessionStatus) {
		return api.NewValidationError("session_status", "only draft sessions can be submitted")
	}
	if strings.TrimSpace(s.ChiefComplaint) == "" {
		return api.NewValidationError("chief_complaint", "chief complaint is required")
	}
	if strings.TrimSpace(s.CurrentStateDescription) == "" {
		return api.NewValidationError("current_state_description", "current state description is required")
	}
	if strings.TrimSpace(s.AssignedDoctorID) == "" {
		return api.NewValidationError("assigned_doctor_id", "an assigned doctor is required")
	}
	return nil
}
