// Package progress records step-level progress for onboarding sessions and
// derives flow-level analytics from it.
//
// The tracker is a read/write observer of flow engine transitions: every event
// updates the StepProgress record of the step being left and the step being
// entered. Analytics are never stored; Snapshot recomputes them as a pure fold
// over the session's StepProgress records, so it is safe to call at any time.
package progress

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/qkeluna/lunaxcode-onboarding/internal/catalog"
	"github.com/qkeluna/lunaxcode-onboarding/internal/flow"
	"github.com/qkeluna/lunaxcode-onboarding/internal/models"
	"github.com/qkeluna/lunaxcode-onboarding/internal/store"
)

// Tracker maintains StepProgress records and computes FlowAnalytics.
type Tracker struct {
	st store.Store
}

// NewTracker creates a Tracker over the given store.
func NewTracker(st store.Store) *Tracker {
	return &Tracker{st: st}
}

var _ flow.Tracker = (*Tracker)(nil)

// OnTransition updates the StepProgress records affected by one flow event.
func (t *Tracker) OnTransition(ctx context.Context, event flow.Event) error {
	switch event.Action {
	case models.NavigationNext:
		if event.FromStep != "" {
			if err := t.leaveStep(event, models.StepStatusCompleted); err != nil {
				return err
			}
		}
		return t.enterStep(event)
	case models.NavigationRetry:
		return t.recordFailedAttempt(event)
	case models.NavigationBack:
		if err := t.leaveStep(event, models.StepStatusInProgress); err != nil {
			return err
		}
		return t.enterStep(event)
	case models.NavigationSkip:
		if err := t.leaveStep(event, models.StepStatusSkipped); err != nil {
			return err
		}
		return t.enterStep(event)
	case models.NavigationExit:
		return t.recordExit(event)
	default:
		return fmt.Errorf("%w: %s", models.ErrInvalidNavigation, event.Action)
	}
}

// Snapshot recomputes the aggregate analytics for a session by folding over
// its StepProgress records. The terminal confirmation step never counts toward
// totals or completion-rate weighting.
func (t *Tracker) Snapshot(ctx context.Context, sessionID string) (*models.FlowAnalytics, error) {
	state, err := t.st.GetFlowState(sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load flow state: %w", err)
	}
	if state == nil {
		return nil, models.ErrFlowNotFound
	}
	rows, err := t.st.ListStepProgress(sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load step progress: %w", err)
	}

	analytics := models.FlowAnalytics{
		SessionID:        sessionID,
		ConversionStatus: models.ConversionInProgress,
	}

	for _, cfg := range catalog.StepsFor(state.ServiceType) {
		if cfg.Name != models.StepConfirmation {
			analytics.TotalSteps++
		}
	}

	var fastest, slowest int64
	completedWeight := 0
	for _, row := range rows {
		if row.StepName == models.StepConfirmation {
			continue
		}
		switch row.Status {
		case models.StepStatusCompleted:
			analytics.CompletedSteps++
			if cfg, err := catalog.Get(row.StepName, state.ServiceType); err == nil {
				completedWeight += cfg.ProgressWeight
			}
		case models.StepStatusSkipped:
			analytics.SkippedSteps++
		case models.StepStatusError:
			analytics.ErrorSteps++
		}

		analytics.TotalTimeMs += row.TimeSpentMs
		if row.TimeSpentMs > 0 {
			if fastest == 0 || row.TimeSpentMs < fastest {
				fastest = row.TimeSpentMs
				analytics.FastestStep = row.StepName
			}
			if row.TimeSpentMs > slowest {
				slowest = row.TimeSpentMs
				analytics.SlowestStep = row.StepName
			}
		}
		if len(row.ValidationErrors) > 0 {
			analytics.ErrorCount++
		}
		for _, nav := range row.NavigationLog {
			switch nav.Action {
			case models.NavigationBack:
				analytics.BackNavigationCount++
			case models.NavigationRetry:
				analytics.RetryCount++
			}
		}
	}

	if len(rows) > 0 {
		analytics.AverageTimeMs = analytics.TotalTimeMs / int64(len(rows))
	}
	if total := catalog.TotalWeight(state.ServiceType); total > 0 {
		analytics.CompletionRate = 100 * completedWeight / total
	}

	switch {
	case state.Completed:
		analytics.ConversionStatus = models.ConversionCompleted
	case state.Abandoned:
		analytics.ConversionStatus = models.ConversionAbandoned
		analytics.AbandonedAt = state.CurrentStep
	}

	slog.Debug("Tracker.Snapshot: analytics computed", "sessionID", sessionID,
		"completed", analytics.CompletedSteps, "rate", analytics.CompletionRate, "status", analytics.ConversionStatus)
	return &analytics, nil
}

// leaveStep finalizes the record of the step being left with the given status
// and appends the navigation event to its append-only log.
func (t *Tracker) leaveStep(event flow.Event, status models.StepStatus) error {
	row, err := t.loadOrCreate(event.SessionID, event.FromStep, event.At)
	if err != nil {
		return err
	}

	// Review is left twice, once when its data is submitted and again when
	// finalize moves past it. The second pass only records the navigation;
	// the step's time was already counted on the first.
	alreadyCompleted := row.Status == models.StepStatusCompleted
	row.Status = status
	if status == models.StepStatusCompleted && !alreadyCompleted {
		completedAt := event.At
		row.CompletedAt = &completedAt
		row.ValidationErrors = nil
	}
	if event.RawInput != nil {
		row.RawInput = event.RawInput
	}
	if event.ToStep != "" {
		row.NextStep = event.ToStep
	}
	if !alreadyCompleted {
		row.TimeSpentMs += t.elapsed(row, event)
	}
	row.NavigationLog = append(row.NavigationLog, models.NavigationEvent{
		Timestamp: event.At,
		Action:    event.Action,
		FromStep:  event.FromStep,
		ToStep:    event.ToStep,
		Duration:  event.DurationMs,
	})
	row.UpdatedAt = event.At
	return t.st.SaveStepProgress(*row)
}

// enterStep opens (or re-opens) the record of the step being entered.
func (t *Tracker) enterStep(event flow.Event) error {
	if event.ToStep == "" || event.ToStep == models.StepConfirmation {
		return nil
	}
	row, err := t.loadOrCreate(event.SessionID, event.ToStep, event.At)
	if err != nil {
		return err
	}

	row.Status = models.StepStatusInProgress
	startedAt := event.At
	row.StartedAt = &startedAt
	row.AttemptCount++
	if event.FromStep != "" {
		row.PreviousStep = event.FromStep
	}
	row.UpdatedAt = event.At
	return t.st.SaveStepProgress(*row)
}

// recordFailedAttempt marks a rejected validation on the current step.
func (t *Tracker) recordFailedAttempt(event flow.Event) error {
	row, err := t.loadOrCreate(event.SessionID, event.FromStep, event.At)
	if err != nil {
		return err
	}

	row.Status = models.StepStatusError
	row.AttemptCount++
	row.RawInput = event.RawInput
	row.ValidationErrors = event.ValidationErrors
	row.TimeSpentMs += event.DurationMs
	row.NavigationLog = append(row.NavigationLog, models.NavigationEvent{
		Timestamp: event.At,
		Action:    models.NavigationRetry,
		FromStep:  event.FromStep,
		Duration:  event.DurationMs,
	})
	row.UpdatedAt = event.At
	return t.st.SaveStepProgress(*row)
}

// recordExit appends the abandonment event to the current step's log without
// disturbing its status.
func (t *Tracker) recordExit(event flow.Event) error {
	row, err := t.loadOrCreate(event.SessionID, event.FromStep, event.At)
	if err != nil {
		return err
	}
	row.TimeSpentMs += t.elapsed(row, event)
	row.NavigationLog = append(row.NavigationLog, models.NavigationEvent{
		Timestamp: event.At,
		Action:    models.NavigationExit,
		FromStep:  event.FromStep,
	})
	row.UpdatedAt = event.At
	return t.st.SaveStepProgress(*row)
}

// loadOrCreate fetches the progress record for a (session, step) pair,
// creating a fresh pending record on first touch.
func (t *Tracker) loadOrCreate(sessionID string, step models.StepName, at time.Time) (*models.StepProgress, error) {
	row, err := t.st.GetStepProgress(sessionID, step)
	if err != nil {
		return nil, fmt.Errorf("failed to load step progress: %w", err)
	}
	if row == nil {
		row = &models.StepProgress{
			SessionID: sessionID,
			StepName:  step,
			Status:    models.StepStatusPending,
			CreatedAt: at,
			UpdatedAt: at,
		}
	}
	return row, nil
}

// elapsed prefers the client-reported duration and falls back to wall time
// since the step was entered.
func (t *Tracker) elapsed(row *models.StepProgress, event flow.Event) int64 {
	if event.DurationMs > 0 {
		return event.DurationMs
	}
	if row.StartedAt != nil && event.At.After(*row.StartedAt) {
		return event.At.Sub(*row.StartedAt).Milliseconds()
	}
	return 0
}
