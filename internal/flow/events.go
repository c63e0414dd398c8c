// Package flow implements the onboarding wizard state machine.
package flow

import (
	"context"
	"time"

	"github.com/qkeluna/lunaxcode-onboarding/internal/models"
)

// Event describes one transition of a flow session. The engine emits an event
// for every transition it commits (and for every rejected validation attempt);
// the progress tracker observes them to maintain StepProgress records.
type Event struct {
	SessionID        string
	Action           models.NavigationAction
	FromStep         models.StepName // empty on flow start
	ToStep           models.StepName // empty when no step is entered
	At               time.Time
	DurationMs       int64 // client-reported time spent on FromStep, if any
	RawInput         models.StepData
	ValidationErrors []models.FieldError
}

// Tracker observes flow transitions. Implemented by the progress tracker.
type Tracker interface {
	OnTransition(ctx context.Context, event Event) error
}

// Notifier is told about newly persisted submissions. Notification failures
// never fail the transition that produced the submission.
type Notifier interface {
	SubmissionCreated(ctx context.Context, submission models.Submission) error
}
