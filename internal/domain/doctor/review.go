package doctor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/careflow/careflow/internal/domain/session"
)

// View is one tab of the review surface.
type View string

const (
	ViewPatientInfo View = "patient_info"
	ViewFiles       View = "files"
	ViewAnalysis    View = "analysis"
	ViewChat        View = "chat"
	ViewDiagnosis   View = "diagnosis"
)

// Review drives one open review: it claims the session, keeps the record
// fresh on a poll interval, and serializes chat turns. Safe for use from the
// UI goroutine plus the poll goroutine.
type Review struct {
	client    *Client
	sessionID string

	mu       sync.Mutex
	current  *session.Session
	view     View
	chatBusy bool
	cancel   func()
}

// NewReview claims the session through the review endpoint and returns a
// controller around it.
func (c *Client) NewReview(ctx context.Context, sessionID string) (*Review, error) {
	s, err := c.OpenReview(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return &Review{
		client:    c,
		sessionID: sessionID,
		current:   s,
		view:      ViewPatientInfo,
	}, nil
}

// Session returns the most recently observed record.
func (r *Review) Session() *session.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// View returns the active tab.
func (r *Review) View() View {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.view
}

// Show switches tabs. Tabs are always reachable; the diagnosis tab shows a
// read-only rendering once the session can no longer be diagnosed.
func (r *Review) Show(v View) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.view = v
}

// Watch begins background refresh of the session on the given interval,
// delivering each accepted update to onUpdate. A poll result whose status
// would move backwards is discarded: stale reads never regress the view.
func (r *Review) Watch(ctx context.Context, interval time.Duration, onUpdate func(*session.Session)) func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		r.cancel()
	}
	id := r.sessionID
	r.cancel = r.client.cache.Subscribe(ctx, ReviewKey(id), interval, func(ctx context.Context) (any, error) {
		var s session.Session
		if err := r.client.api.Get(ctx, "/doctor/sessions/"+id+"/review", nil, &s); err != nil {
			return nil, fmt.Errorf("refresh review for %s: %w", id, err)
		}
		return &s, nil
	}, func(v any) {
		s, ok := v.(*session.Session)
		if !ok {
			return
		}
		r.mu.Lock()
		if r.current != nil && !session.Forward(r.current.SessionStatus, s.SessionStatus) {
			r.mu.Unlock()
			return
		}
		r.current = s
		r.mu.Unlock()
		onUpdate(s)
	})
	return r.cancel
}

// Ask sends one chat turn to the model. Turns are strictly serialized: a
// second Ask while one is in flight is refused rather than queued.
func (r *Review) Ask(ctx context.Context, content string) (*session.VLMChatMessage, error) {
	r.mu.Lock()
	if r.chatBusy {
		r.mu.Unlock()
		return nil, fmt.Errorf("review: a chat turn is already in flight")
	}
	r.chatBusy = true
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.chatBusy = false
		r.mu.Unlock()
	}()

	var msg session.VLMChatMessage
	body := map[string]string{"content": content}
	if err := r.client.api.Post(ctx, "/doctor/sessions/"+r.sessionID+"/vlm-chat", body, &msg); err != nil {
		return nil, fmt.Errorf("chat on session %s: %w", r.sessionID, err)
	}

	r.mu.Lock()
	if r.current != nil {
		r.current.VLMChatHistory = append(r.current.VLMChatHistory, msg)
	}
	r.mu.Unlock()
	r.client.cache.Invalidate(ReviewKey(r.sessionID), session.CacheKey(r.sessionID))
	return &msg, nil
}

// SaveDiagnosis records the diagnosis through the owning client and adopts
// the returned record.
func (r *Review) SaveDiagnosis(ctx context.Context, d session.Diagnosis, tests *session.PendingTests) error {
	s, err := r.client.SaveDiagnosis(ctx, r.sessionID, d, tests)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.current = s
	r.mu.Unlock()
	return nil
}

// CanClose reports whether closure would currently succeed: the lifecycle
// must allow it and a diagnosis must be on record.
func (r *Review) CanClose() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current != nil && session.CanClose(r.current.SessionStatus) && r.current.Diagnosis != nil
}

// Close finishes the review, stopping the background refresh on success.
func (r *Review) Close(ctx context.Context) (*CloseResult, error) {
	res, err := r.client.Close(ctx, r.sessionID)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.current = res.Session
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	r.mu.Unlock()
	return res, nil
}

// Stop halts background refresh without closing the session.
func (r *Review) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
}
