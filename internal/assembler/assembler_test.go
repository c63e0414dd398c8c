package assembler

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/qkeluna/lunaxcode-onboarding/internal/models"
)

func completedProgress(sessionID string) []models.StepProgress {
	now := time.Now()
	steps := []models.StepName{models.StepServiceSelection, models.StepBasicInfo, models.StepServiceRequirements}
	out := make([]models.StepProgress, 0, len(steps))
	for _, step := range steps {
		out = append(out, models.StepProgress{
			SessionID: sessionID,
			StepName:  step,
			Status:    models.StepStatusCompleted,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}
	return out
}

func completedState(sessionID string) models.FlowState {
	return models.FlowState{
		SessionID:   sessionID,
		CurrentStep: models.StepReview,
		ServiceType: models.ServiceLandingPage,
		FormData: map[models.StepName]models.StepData{
			models.StepServiceSelection: {"serviceType": "landing_page"},
			models.StepBasicInfo: {
				"projectName":        "Cafe Launch",
				"companyName":        "Brew Bros",
				"industry":           "food",
				"projectDescription": "A landing page for the new cafe.",
				"contactEmail":       "owner@brewbros.test",
				"contactName":        "Alex",
				"contactPhone":       "+63 900 000 0000",
				"preferredContact":   "email",
			},
			models.StepServiceRequirements: {
				"pageType":    "product",
				"designStyle": "minimal",
				"sections":    []string{"hero", "pricing"},
				"ctaGoal":     "bookings",
			},
			models.StepReview: {
				"budget":                 "50k-100k",
				"timeline":               "1 month",
				"urgency":                "high",
				"additionalRequirements": "Tagalog copy for the hero section",
				"addOns":                 []interface{}{"seo"},
			},
		},
	}
}

func TestAssembleFieldMapping(t *testing.T) {
	sub, err := Assemble(completedState("sess-1"), completedProgress("sess-1"))
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}

	if sub.SessionID != "sess-1" {
		t.Errorf("SessionID = %s", sub.SessionID)
	}
	if sub.ProjectName != "Cafe Launch" {
		t.Errorf("ProjectName = %s", sub.ProjectName)
	}
	if sub.Email != "owner@brewbros.test" {
		t.Errorf("Email = %s", sub.Email)
	}
	if sub.Name != "Alex" {
		t.Errorf("Name = %s", sub.Name)
	}
	if sub.Phone != "+63 900 000 0000" {
		t.Errorf("Phone = %s", sub.Phone)
	}
	if sub.Description != "A landing page for the new cafe." {
		t.Errorf("Description = %s", sub.Description)
	}
	if sub.ServiceType != models.ServiceLandingPage {
		t.Errorf("ServiceType = %s", sub.ServiceType)
	}
	if sub.Budget != "50k-100k" || sub.Timeline != "1 month" || sub.Urgency != "high" {
		t.Errorf("review fields: budget=%s timeline=%s urgency=%s", sub.Budget, sub.Timeline, sub.Urgency)
	}
	if len(sub.AddOns) != 1 || sub.AddOns[0] != "seo" {
		t.Errorf("AddOns = %v", sub.AddOns)
	}
	if sub.Status != models.SubmissionStatusPending {
		t.Errorf("Status = %s, want pending", sub.Status)
	}
	if sub.Priority != models.PriorityMedium {
		t.Errorf("Priority = %s, want medium", sub.Priority)
	}
}

func TestAssembleServiceSpecificData(t *testing.T) {
	sub, err := Assemble(completedState("sess-1"), completedProgress("sess-1"))
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}

	var payload struct {
		ServiceType  models.ServiceType `json:"service_type"`
		Requirements models.StepData    `json:"requirements"`
	}
	if err := json.Unmarshal([]byte(sub.ServiceSpecificData), &payload); err != nil {
		t.Fatalf("ServiceSpecificData is not valid JSON: %v", err)
	}
	if payload.ServiceType != models.ServiceLandingPage {
		t.Errorf("service_type tag = %s", payload.ServiceType)
	}
	if payload.Requirements["pageType"] != "product" {
		t.Errorf("requirements round trip failed: %+v", payload.Requirements)
	}
}

func TestAssembleDefaults(t *testing.T) {
	state := completedState("sess-1")
	delete(state.FormData, models.StepReview)

	sub, err := Assemble(state, completedProgress("sess-1"))
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if sub.Urgency != "medium" {
		t.Errorf("Urgency = %s, want the medium default", sub.Urgency)
	}
	if sub.AddOns == nil || len(sub.AddOns) != 0 {
		t.Errorf("AddOns = %v, want an empty slice", sub.AddOns)
	}
	if sub.Budget != "" || sub.Timeline != "" {
		t.Errorf("optional review fields should be empty: budget=%s timeline=%s", sub.Budget, sub.Timeline)
	}
}

func TestAssembleIdempotentID(t *testing.T) {
	first, err := Assemble(completedState("sess-1"), completedProgress("sess-1"))
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	second, err := Assemble(completedState("sess-1"), completedProgress("sess-1"))
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if first.ID != second.ID {
		t.Errorf("re-assembly should yield the same ID: %s vs %s", first.ID, second.ID)
	}

	// Apart from the assembly timestamps the two submissions are identical.
	a, b := *first, *second
	a.CreatedAt, a.UpdatedAt = time.Time{}, time.Time{}
	b.CreatedAt, b.UpdatedAt = time.Time{}, time.Time{}
	if !reflect.DeepEqual(a, b) {
		t.Errorf("re-assembly should reproduce the submission:\n%+v\n%+v", a, b)
	}

	other, err := Assemble(completedState("sess-2"), completedProgress("sess-2"))
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if other.ID == first.ID {
		t.Error("different sessions must yield different IDs")
	}
}

func TestAssembleIncompleteSteps(t *testing.T) {
	progress := completedProgress("sess-1")
	progress[1].Status = models.StepStatusError // basic_info not completed

	_, err := Assemble(completedState("sess-1"), progress)
	if !errors.Is(err, models.ErrIncompleteSteps) {
		t.Fatalf("expected ErrIncompleteSteps, got %v", err)
	}
	var incomplete *models.IncompleteStepsError
	if !errors.As(err, &incomplete) {
		t.Fatal("expected IncompleteStepsError")
	}
	if len(incomplete.Missing) != 1 || incomplete.Missing[0] != models.StepBasicInfo {
		t.Errorf("Missing = %v, want [basic_info]", incomplete.Missing)
	}
}

func TestAssembleSkippedRequiredStepStillMissing(t *testing.T) {
	progress := completedProgress("sess-1")
	progress[2].Status = models.StepStatusSkipped

	_, err := Assemble(completedState("sess-1"), progress)
	if !errors.Is(err, models.ErrIncompleteSteps) {
		t.Errorf("a skipped required step must block assembly, got %v", err)
	}
}
