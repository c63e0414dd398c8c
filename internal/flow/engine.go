// Package flow implements the onboarding wizard state machine.
//
// The engine owns every FlowState mutation: starting a session, committing
// validated step data, user navigation, abandonment, and finalization. All
// state is passed through the store; there is no hidden shared mutable state.
// Recoverable outcomes (failed validation, disallowed navigation) are returned
// as values or sentinel errors; catalog/registry mismatches surface as
// programming-error signals distinct from user errors.
package flow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/qkeluna/lunaxcode-onboarding/internal/assembler"
	"github.com/qkeluna/lunaxcode-onboarding/internal/catalog"
	"github.com/qkeluna/lunaxcode-onboarding/internal/models"
	"github.com/qkeluna/lunaxcode-onboarding/internal/schema"
	"github.com/qkeluna/lunaxcode-onboarding/internal/store"
)

// Engine drives onboarding flow sessions.
type Engine struct {
	st       store.Store
	tracker  Tracker
	notifier Notifier // optional
}

// NewEngine creates an Engine over the given store and tracker. The notifier
// may be nil when submission alerts are not configured.
func NewEngine(st store.Store, tracker Tracker, notifier Notifier) *Engine {
	return &Engine{st: st, tracker: tracker, notifier: notifier}
}

// Start opens a new onboarding session for the given service type. The
// returned FlowState is positioned on service_selection with the chosen
// service type recorded; it becomes immutable once basic_info is reached.
func (e *Engine) Start(ctx context.Context, req models.StartFlowRequest) (*models.FlowState, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := time.Now()
	state := &models.FlowState{
		SessionID:    uuid.NewString(),
		CurrentStep:  models.StepServiceSelection,
		StepHistory:  []models.StepName{models.StepServiceSelection},
		FormData:     make(map[models.StepName]models.StepData),
		ServiceType:  req.ServiceType,
		UserAgent:    req.UserAgent,
		DeviceType:   req.DeviceType,
		StartedAt:    now,
		LastActiveAt: now,
	}
	if err := e.st.SaveFlowState(*state); err != nil {
		slog.Error("Engine.Start: failed to save flow state", "error", err, "sessionID", state.SessionID)
		return nil, fmt.Errorf("failed to save flow state: %w", err)
	}

	e.emit(ctx, Event{
		SessionID: state.SessionID,
		Action:    models.NavigationNext,
		ToStep:    models.StepServiceSelection,
		At:        now,
	})
	slog.Info("Engine.Start: flow started", "sessionID", state.SessionID, "serviceType", req.ServiceType)
	return state, nil
}

// SubmitStep validates and commits the data for the session's current step.
//
// On a failed validation the flow state is left unchanged except that the
// step's attempt count grows and an error entry is appended to its navigation
// log; the rejected data is echoed back in the progress record so the caller
// can correct and resubmit. On success the data is committed and the flow
// advances to the next catalog step, except on review where the flow holds
// until Finalize persists the submission.
func (e *Engine) SubmitStep(ctx context.Context, sessionID string, step models.StepName, req models.SubmitStepRequest) (models.ValidationResult, *models.FlowState, error) {
	if !models.IsValidStepName(step) {
		slog.Error("Engine.SubmitStep: unknown step", "step", step, "sessionID", sessionID)
		return models.ValidationResult{}, nil, fmt.Errorf("%w: %s", models.ErrUnknownStep, step)
	}
	state, err := e.loadActive(sessionID)
	if err != nil {
		return models.ValidationResult{}, nil, err
	}
	if step != state.CurrentStep {
		return models.ValidationResult{}, nil, fmt.Errorf("%w: submitted %s, current is %s", models.ErrStepMismatch, step, state.CurrentStep)
	}
	if err := req.Validate(); err != nil {
		return models.ValidationResult{}, nil, err
	}

	// The service type is locked in once the flow has moved past step 1.
	if step == models.StepServiceSelection {
		if chosen, ok := req.StepData["serviceType"].(string); ok &&
			len(state.FormData) > 0 && models.ServiceType(chosen) != state.ServiceType {
			return models.ValidationResult{}, nil, models.ErrServiceTypeImmutable
		}
	}

	result, err := schema.Validate(step, state.ServiceType, req.StepData)
	if err != nil {
		// Schema resolution failure is a catalog/registry fault, not user input.
		slog.Error("Engine.SubmitStep: schema resolution failed", "error", err, "sessionID", sessionID, "step", step)
		return models.ValidationResult{}, nil, err
	}

	now := time.Now()
	if !result.IsValid {
		e.emit(ctx, Event{
			SessionID:        sessionID,
			Action:           models.NavigationRetry,
			FromStep:         step,
			At:               now,
			DurationMs:       req.TimeSpentMs,
			RawInput:         req.StepData,
			ValidationErrors: result.Errors,
		})
		slog.Debug("Engine.SubmitStep: validation failed", "sessionID", sessionID, "step", step, "errors", len(result.Errors))
		return result, state, nil
	}

	// Commit the validated data.
	if state.FormData == nil {
		state.FormData = make(map[models.StepName]models.StepData)
	}
	state.FormData[step] = req.StepData
	if step == models.StepServiceSelection {
		if chosen, ok := req.StepData["serviceType"].(string); ok {
			state.ServiceType = models.ServiceType(chosen)
		}
	}
	state.LastActiveAt = now

	next, err := catalog.Next(step, state.ServiceType)
	if err != nil {
		slog.Error("Engine.SubmitStep: catalog lookup failed", "error", err, "sessionID", sessionID, "step", step)
		return models.ValidationResult{}, nil, err
	}

	event := Event{
		SessionID:  sessionID,
		Action:     models.NavigationNext,
		FromStep:   step,
		At:         now,
		DurationMs: req.TimeSpentMs,
		RawInput:   req.StepData,
	}
	// review -> confirmation only happens through Finalize; committing review
	// data completes the step but holds the flow on review.
	if next != nil && next.Name != models.StepConfirmation {
		state.CurrentStep = next.Name
		state.StepHistory = append(state.StepHistory, next.Name)
		event.ToStep = next.Name
	}

	if err := e.st.SaveFlowState(*state); err != nil {
		slog.Error("Engine.SubmitStep: failed to save flow state", "error", err, "sessionID", sessionID)
		return models.ValidationResult{}, nil, fmt.Errorf("failed to save flow state: %w", err)
	}
	e.emit(ctx, event)

	slog.Info("Engine.SubmitStep: step committed", "sessionID", sessionID, "step", step, "currentStep", state.CurrentStep)
	return result, state, nil
}

// Navigate performs a user navigation action (next, back, skip) and returns
// the updated state together with the config of the resulting step.
func (e *Engine) Navigate(ctx context.Context, sessionID string, action models.NavigationAction) (*models.FlowState, *models.StepConfig, error) {
	state, err := e.loadActive(sessionID)
	if err != nil {
		return nil, nil, err
	}

	switch action {
	case models.NavigationNext:
		return e.navigateNext(ctx, state)
	case models.NavigationBack:
		return e.navigateBack(ctx, state)
	case models.NavigationSkip:
		return e.navigateSkip(ctx, state)
	default:
		return nil, nil, fmt.Errorf("%w: %s", models.ErrInvalidNavigation, action)
	}
}

func (e *Engine) navigateNext(ctx context.Context, state *models.FlowState) (*models.FlowState, *models.StepConfig, error) {
	cfg, err := catalog.Get(state.CurrentStep, state.ServiceType)
	if err != nil {
		return nil, nil, err
	}
	// Advancing requires the step's data to have passed validation at some
	// point in this session; steps without required fields may pass through.
	if _, ok := state.FormData[state.CurrentStep]; !ok && len(cfg.RequiredFields) > 0 {
		return nil, nil, models.ErrStepDataNotValidated
	}

	next, err := catalog.Next(state.CurrentStep, state.ServiceType)
	if err != nil {
		return nil, nil, err
	}
	if next == nil || next.Name == models.StepConfirmation {
		// The terminal step is only reachable through Finalize.
		return nil, nil, models.ErrNavigationNotAllowed
	}

	from := state.CurrentStep
	now := time.Now()
	state.CurrentStep = next.Name
	state.StepHistory = append(state.StepHistory, next.Name)
	state.LastActiveAt = now
	if err := e.st.SaveFlowState(*state); err != nil {
		return nil, nil, fmt.Errorf("failed to save flow state: %w", err)
	}
	e.emit(ctx, Event{SessionID: state.SessionID, Action: models.NavigationNext, FromStep: from, ToStep: next.Name, At: now})
	return state, next, nil
}

func (e *Engine) navigateBack(ctx context.Context, state *models.FlowState) (*models.FlowState, *models.StepConfig, error) {
	prev, err := catalog.Previous(state.CurrentStep, state.ServiceType)
	if err != nil {
		return nil, nil, err
	}
	if prev == nil {
		slog.Debug("Engine.navigateBack: back not allowed", "sessionID", state.SessionID, "step", state.CurrentStep)
		return nil, nil, models.ErrNavigationNotAllowed
	}

	from := state.CurrentStep
	now := time.Now()
	state.CurrentStep = prev.Name
	state.StepHistory = append(state.StepHistory, prev.Name)
	state.LastActiveAt = now
	if err := e.st.SaveFlowState(*state); err != nil {
		return nil, nil, fmt.Errorf("failed to save flow state: %w", err)
	}
	e.emit(ctx, Event{SessionID: state.SessionID, Action: models.NavigationBack, FromStep: from, ToStep: prev.Name, At: now})
	return state, prev, nil
}

func (e *Engine) navigateSkip(ctx context.Context, state *models.FlowState) (*models.FlowState, *models.StepConfig, error) {
	cfg, err := catalog.Get(state.CurrentStep, state.ServiceType)
	if err != nil {
		return nil, nil, err
	}
	if !cfg.Skippable {
		return nil, nil, fmt.Errorf("%w: %s", models.ErrStepNotSkippable, state.CurrentStep)
	}

	next, err := catalog.Next(state.CurrentStep, state.ServiceType)
	if err != nil {
		return nil, nil, err
	}

	from := state.CurrentStep
	now := time.Now()
	event := Event{SessionID: state.SessionID, Action: models.NavigationSkip, FromStep: from, At: now}
	resulting := &cfg
	// Skipping the last pre-terminal step leaves the flow parked there until
	// Finalize runs; the step itself is still marked skipped.
	if next != nil && next.Name != models.StepConfirmation {
		state.CurrentStep = next.Name
		state.StepHistory = append(state.StepHistory, next.Name)
		event.ToStep = next.Name
		resulting = next
	}
	state.LastActiveAt = now
	if err := e.st.SaveFlowState(*state); err != nil {
		return nil, nil, fmt.Errorf("failed to save flow state: %w", err)
	}
	e.emit(ctx, event)
	return state, resulting, nil
}

// Abandon moves a non-terminal flow into the abandoned pseudo-state. The flow
// state is retained for analytics; only the abandoned marker is set.
func (e *Engine) Abandon(ctx context.Context, sessionID string) (*models.FlowState, error) {
	state, err := e.loadActive(sessionID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	state.Abandoned = true
	state.LastActiveAt = now
	if err := e.st.SaveFlowState(*state); err != nil {
		return nil, fmt.Errorf("failed to save flow state: %w", err)
	}
	e.emit(ctx, Event{SessionID: sessionID, Action: models.NavigationExit, FromStep: state.CurrentStep, At: now})
	slog.Info("Engine.Abandon: flow abandoned", "sessionID", sessionID, "step", state.CurrentStep)
	return state, nil
}

// Finalize assembles and persists the submission for a flow whose required
// steps are all completed, then advances review -> confirmation.
//
// Persistence is the single blocking point of the whole flow: either the
// submission is durably created and the flow advances, or the flow remains on
// review with an error surfaced so the user can retry without data loss.
func (e *Engine) Finalize(ctx context.Context, sessionID string) (*models.Submission, error) {
	state, err := e.loadActive(sessionID)
	if err != nil {
		return nil, err
	}
	if state.CurrentStep != models.StepReview {
		return nil, fmt.Errorf("%w: finalize requires the review step, current is %s", models.ErrNavigationNotAllowed, state.CurrentStep)
	}

	progress, err := e.st.ListStepProgress(sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load step progress: %w", err)
	}
	submission, err := assembler.Assemble(*state, progress)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := e.st.AddSubmission(*submission); err != nil {
		// The flow remains on review; the caller retries.
		slog.Error("Engine.Finalize: failed to persist submission", "error", err, "sessionID", sessionID)
		return nil, fmt.Errorf("failed to persist submission: %w", err)
	}

	now := time.Now()
	state.SubmissionID = submission.ID
	state.CurrentStep = models.StepConfirmation
	state.StepHistory = append(state.StepHistory, models.StepConfirmation)
	state.Completed = true
	state.LastActiveAt = now
	if err := e.st.SaveFlowState(*state); err != nil {
		slog.Error("Engine.Finalize: failed to save flow state after submission", "error", err, "sessionID", sessionID)
		return nil, fmt.Errorf("failed to save flow state: %w", err)
	}
	e.emit(ctx, Event{SessionID: sessionID, Action: models.NavigationNext, FromStep: models.StepReview, ToStep: models.StepConfirmation, At: now})

	if e.notifier != nil {
		if err := e.notifier.SubmissionCreated(ctx, *submission); err != nil {
			slog.Warn("Engine.Finalize: submission notification failed", "error", err, "submissionID", submission.ID)
		}
	}

	slog.Info("Engine.Finalize: submission created", "sessionID", sessionID, "submissionID", submission.ID)
	return submission, nil
}

// GetState returns the current flow state for a session.
func (e *Engine) GetState(ctx context.Context, sessionID string) (*models.FlowState, error) {
	state, err := e.st.GetFlowState(sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load flow state: %w", err)
	}
	if state == nil {
		return nil, models.ErrFlowNotFound
	}
	return state, nil
}

// loadActive loads a flow state and rejects terminal sessions.
func (e *Engine) loadActive(sessionID string) (*models.FlowState, error) {
	state, err := e.st.GetFlowState(sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load flow state: %w", err)
	}
	if state == nil {
		return nil, models.ErrFlowNotFound
	}
	if state.Completed {
		return nil, models.ErrFlowCompleted
	}
	if state.Abandoned {
		return nil, models.ErrFlowAbandoned
	}
	return state, nil
}

// emit forwards an event to the tracker. Tracker failures are logged and do
// not fail the transition that produced them; analytics are best-effort
// relative to the flow itself.
func (e *Engine) emit(ctx context.Context, event Event) {
	if e.tracker == nil {
		return
	}
	if err := e.tracker.OnTransition(ctx, event); err != nil {
		slog.Error("Engine.emit: tracker failed to record transition", "error", err,
			"sessionID", event.SessionID, "action", event.Action, "from", event.FromStep, "to", event.ToStep)
	}
}
