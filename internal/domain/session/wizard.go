package session

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
)

// WizardStep is one screen of the session creation flow.
type WizardStep int

const (
	StepDetails WizardStep = iota + 1
	StepFiles
	StepReview
)

func (s WizardStep) String() string {
	switch s {
	case StepDetails:
		return "details"
	case StepFiles:
		return "files"
	case StepReview:
		return "review"
	}
	return fmt.Sprintf("WizardStep(%d)", int(s))
}

// Wizard drives the three-step session creation flow. Completing the details
// step creates the draft and pins its id: the wizard then edits that one
// draft for its whole lifetime and never returns to the details-entry state.
type Wizard struct {
	client *Client
	logger zerolog.Logger

	step      WizardStep
	sessionID string
}

// NewWizard starts a wizard at the details step.
func NewWizard(client *Client, logger zerolog.Logger) *Wizard {
	return &Wizard{client: client, logger: logger, step: StepDetails}
}

// Step returns the current screen.
func (w *Wizard) Step() WizardStep { return w.step }

// SessionID returns the pinned draft id, empty before the details step
// completes.
func (w *Wizard) SessionID() string { return w.sessionID }

// SubmitDetails completes step 1: it creates the draft, pins its id, and
// advances to the files step. After this the details-entry state is gone;
// detail corrections happen through EditDetails against the pinned draft.
func (w *Wizard) SubmitDetails(ctx context.Context, in Create) (*Session, error) {
	if w.step != StepDetails {
		return nil, fmt.Errorf("wizard: details already completed for session %s", w.sessionID)
	}
	s, err := w.client.Create(ctx, in)
	if err != nil {
		return nil, err
	}
	w.sessionID = s.SessionID
	w.step = StepFiles
	return s, nil
}

// EditDetails amends the pinned draft's details from any later step.
func (w *Wizard) EditDetails(ctx context.Context, in Update) (*Session, error) {
	if w.sessionID == "" {
		return nil, fmt.Errorf("wizard: no draft created yet")
	}
	return w.client.Update(ctx, w.sessionID, in)
}

// Upload attaches a file during the files step.
func (w *Wizard) Upload(ctx context.Context, fileName string, file io.Reader, fileType FileType) (*UploadedFile, error) {
	if w.step != StepFiles {
		return nil, fmt.Errorf("wizard: uploads only accepted on the files step, current step is %s", w.step)
	}
	return w.client.UploadFile(ctx, w.sessionID, fileName, file, fileType)
}

// RemoveFile deletes an attachment during the files step.
func (w *Wizard) RemoveFile(ctx context.Context, fileID string) error {
	if w.step != StepFiles {
		return fmt.Errorf("wizard: file removal only accepted on the files step, current step is %s", w.step)
	}
	return w.client.DeleteFile(ctx, w.sessionID, fileID)
}

// WatchFiles polls the draft while the files step is visible so uploads made
// elsewhere appear. Returns a cancel to run when leaving the step.
func (w *Wizard) WatchFiles(ctx context.Context, interval time.Duration, onUpdate func([]UploadedFile)) (cancel func(), err error) {
	if w.step != StepFiles {
		return nil, fmt.Errorf("wizard: file watching only available on the files step")
	}
	id := w.sessionID
	stop := w.client.cache.Subscribe(ctx, CacheKey(id), interval, func(ctx context.Context) (any, error) {
		return w.client.fetch(ctx, id)
	}, func(v any) {
		if s, ok := v.(*Session); ok {
			onUpdate(s.UploadedFiles)
		}
	})
	return stop, nil
}

// Next advances files to review. Files are optional so there is no
// precondition beyond being on the files step.
func (w *Wizard) Next() error {
	if w.step != StepFiles {
		return fmt.Errorf("wizard: cannot advance from step %s", w.step)
	}
	w.step = StepReview
	return nil
}

// Back returns from review to files. Backing past files into the details
// entry state is not allowed: the draft already exists, so detail fixes go
// through EditDetails instead.
func (w *Wizard) Back() error {
	if w.step != StepReview {
		return fmt.Errorf("wizard: cannot go back from step %s", w.step)
	}
	w.step = StepFiles
	return nil
}

// Confirm completes the wizard from the review step, submitting the draft
// into the analysis pipeline.
func (w *Wizard) Confirm(ctx context.Context) (*Session, error) {
	if w.step != StepReview {
		return nil, fmt.Errorf("wizard: confirm only accepted on the review step, current step is %s", w.step)
	}
	// On failure the wizard stays on review so the user can back up and fix
	// the draft.
	s, err := w.client.Submit(ctx, w.sessionID)
	if err != nil {
		return nil, err
	}
	w.logger.Info().Str("session_id", w.sessionID).Msg("wizard completed")
	return s, nil
}

// Abandon leaves the wizard without submitting. The draft stays on the
// backend and remains reachable through normal session listings.
func (w *Wizard) Abandon() string {
	id := w.sessionID
	if id != "" {
		w.logger.Info().Str("session_id", id).Msg("wizard abandoned, draft retained")
	}
	return id
}
