package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/qkeluna/lunaxcode-onboarding/internal/models"
)

// rowScanner abstracts over *sql.Row and *sql.Rows so the scan helpers can be
// shared by both backends.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// nilIfEmpty returns nil if s is empty, otherwise returns s.
// Used for nullable database columns.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// marshalField encodes v as a JSON column value, returning nil for nil input
// so the column stays NULL.
func marshalField(v interface{}) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal column value: %w", err)
	}
	return string(data), nil
}

// scanFlowState scans one flow_states row.
func scanFlowState(scanner rowScanner) (*models.FlowState, error) {
	var state models.FlowState
	var submissionID, formData, userAgent, deviceType sql.NullString
	var history string

	err := scanner.Scan(
		&state.SessionID, &submissionID, &state.CurrentStep, &history, &formData,
		&state.ServiceType, &state.Completed, &state.Abandoned, &userAgent, &deviceType,
		&state.StartedAt, &state.LastActiveAt,
	)
	if err != nil {
		return nil, err
	}

	state.SubmissionID = submissionID.String
	state.UserAgent = userAgent.String
	state.DeviceType = deviceType.String

	if err := json.Unmarshal([]byte(history), &state.StepHistory); err != nil {
		return nil, fmt.Errorf("unmarshal step history: %w", err)
	}
	if formData.Valid && formData.String != "" {
		state.FormData = make(map[models.StepName]models.StepData)
		if err := json.Unmarshal([]byte(formData.String), &state.FormData); err != nil {
			return nil, fmt.Errorf("unmarshal form data: %w", err)
		}
	}
	return &state, nil
}

// scanStepProgress scans one step_progress row.
func scanStepProgress(scanner rowScanner) (*models.StepProgress, error) {
	var p models.StepProgress
	var rawInput, validationErrors, previousStep, nextStep, navigationLog sql.NullString
	var startedAt, completedAt sql.NullTime

	err := scanner.Scan(
		&p.SessionID, &p.StepName, &p.Status, &rawInput, &validationErrors,
		&startedAt, &completedAt, &p.TimeSpentMs, &p.AttemptCount,
		&previousStep, &nextStep, &navigationLog, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.PreviousStep = models.StepName(previousStep.String)
	p.NextStep = models.StepName(nextStep.String)
	if startedAt.Valid {
		p.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		p.CompletedAt = &completedAt.Time
	}
	if rawInput.Valid && rawInput.String != "" {
		if err := json.Unmarshal([]byte(rawInput.String), &p.RawInput); err != nil {
			return nil, fmt.Errorf("unmarshal raw input: %w", err)
		}
	}
	if validationErrors.Valid && validationErrors.String != "" {
		if err := json.Unmarshal([]byte(validationErrors.String), &p.ValidationErrors); err != nil {
			return nil, fmt.Errorf("unmarshal validation errors: %w", err)
		}
	}
	if navigationLog.Valid && navigationLog.String != "" {
		if err := json.Unmarshal([]byte(navigationLog.String), &p.NavigationLog); err != nil {
			return nil, fmt.Errorf("unmarshal navigation log: %w", err)
		}
	}
	return &p, nil
}

// scanSubmission scans one submissions row.
func scanSubmission(scanner rowScanner) (*models.Submission, error) {
	var sub models.Submission
	var name, phone, preferredContact, budget, timeline, additionalRequirements, inspiration sql.NullString
	var addOns string

	err := scanner.Scan(
		&sub.ID, &sub.SessionID, &sub.ProjectName, &sub.CompanyName, &sub.Industry,
		&sub.Description, &name, &sub.Email, &phone, &preferredContact, &sub.ServiceType,
		&budget, &timeline, &sub.Urgency, &sub.ServiceSpecificData, &additionalRequirements,
		&inspiration, &addOns, &sub.Status, &sub.Priority, &sub.CreatedAt, &sub.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	sub.Name = name.String
	sub.Phone = phone.String
	sub.PreferredContact = preferredContact.String
	sub.Budget = budget.String
	sub.Timeline = timeline.String
	sub.AdditionalRequirements = additionalRequirements.String
	sub.Inspiration = inspiration.String
	if err := json.Unmarshal([]byte(addOns), &sub.AddOns); err != nil {
		return nil, fmt.Errorf("unmarshal add-ons: %w", err)
	}
	return &sub, nil
}
