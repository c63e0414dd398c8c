// Package assembler merges the per-step data of a completed flow into one
// normalized submission record ready for persistence.
package assembler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/qkeluna/lunaxcode-onboarding/internal/catalog"
	"github.com/qkeluna/lunaxcode-onboarding/internal/models"
)

// submissionNamespace seeds the deterministic submission ID so that
// re-assembling the same session yields the same record.
var submissionNamespace = uuid.MustParse("7b0dca31-9e4c-4f52-9d2a-60bd6fe1f8c5")

// Assemble builds the normalized Submission from a flow state and its step
// progress records.
//
// Precondition: every step the catalog marks required for the flow's service
// type has status completed; otherwise an IncompleteStepsError lists the
// missing steps and no submission is produced. Assemble is idempotent: the
// same input state yields a value-equal submission, timestamps excepted.
func Assemble(state models.FlowState, progress []models.StepProgress) (*models.Submission, error) {
	if missing := missingRequiredSteps(state.ServiceType, progress); len(missing) > 0 {
		slog.Debug("assembler.Assemble: required steps incomplete", "sessionID", state.SessionID, "missing", len(missing))
		return nil, &models.IncompleteStepsError{Missing: missing}
	}

	basicInfo := state.FormData[models.StepBasicInfo]
	review := state.FormData[models.StepReview]

	serviceData, err := encodeServiceData(state)
	if err != nil {
		return nil, err
	}

	urgency := stringField(review, "urgency")
	if urgency == "" {
		urgency = string(models.PriorityMedium)
	}
	addOns := sliceField(review, "addOns")
	if addOns == nil {
		addOns = []string{}
	}

	now := time.Now()
	submission := &models.Submission{
		ID:                     uuid.NewSHA1(submissionNamespace, []byte(state.SessionID)).String(),
		SessionID:              state.SessionID,
		ProjectName:            stringField(basicInfo, "projectName"),
		CompanyName:            stringField(basicInfo, "companyName"),
		Industry:               stringField(basicInfo, "industry"),
		Description:            stringField(basicInfo, "projectDescription"),
		Name:                   stringField(basicInfo, "contactName"),
		Email:                  stringField(basicInfo, "contactEmail"),
		Phone:                  stringField(basicInfo, "contactPhone"),
		PreferredContact:       stringField(basicInfo, "preferredContact"),
		ServiceType:            state.ServiceType,
		Budget:                 stringField(review, "budget"),
		Timeline:               stringField(review, "timeline"),
		Urgency:                urgency,
		ServiceSpecificData:    serviceData,
		AdditionalRequirements: stringField(review, "additionalRequirements"),
		Inspiration:            stringField(review, "inspiration"),
		AddOns:                 addOns,
		Status:                 models.SubmissionStatusPending,
		Priority:               models.PriorityMedium,
		CreatedAt:              now,
		UpdatedAt:              now,
	}
	return submission, nil
}

// missingRequiredSteps lists every required step without a completed progress record.
func missingRequiredSteps(serviceType models.ServiceType, progress []models.StepProgress) []models.StepName {
	byStep := make(map[models.StepName]models.StepStatus, len(progress))
	for _, row := range progress {
		byStep[row.StepName] = row.Status
	}

	var missing []models.StepName
	for _, step := range catalog.RequiredSteps(serviceType) {
		if byStep[step] != models.StepStatusCompleted {
			missing = append(missing, step)
		}
	}
	return missing
}

// encodeServiceData serializes the service_requirements payload as an opaque
// JSON blob tagged with the originating service type.
func encodeServiceData(state models.FlowState) (string, error) {
	payload := struct {
		ServiceType  models.ServiceType `json:"service_type"`
		Requirements models.StepData    `json:"requirements"`
	}{
		ServiceType:  state.ServiceType,
		Requirements: state.FormData[models.StepServiceRequirements],
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to encode service requirements: %w", err)
	}
	return string(data), nil
}

func stringField(data models.StepData, key string) string {
	if data == nil {
		return ""
	}
	if s, ok := data[key].(string); ok {
		return s
	}
	return ""
}

func sliceField(data models.StepData, key string) []string {
	if data == nil {
		return nil
	}
	switch v := data[key].(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
