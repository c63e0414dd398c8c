package catalog

import (
	"errors"
	"testing"

	"github.com/qkeluna/lunaxcode-onboarding/internal/models"
)

func TestStepsForResolvesOneRequirementsVariant(t *testing.T) {
	for _, st := range models.AllServiceTypes {
		ordered := StepsFor(st)
		if len(ordered) != 5 {
			t.Errorf("StepsFor(%s): expected 5 steps, got %d", st, len(ordered))
		}

		count := 0
		for _, cfg := range ordered {
			if cfg.Name == models.StepServiceRequirements {
				count++
			}
		}
		if count != 1 {
			t.Errorf("StepsFor(%s): expected exactly one service_requirements variant, got %d", st, count)
		}
	}
}

func TestStepsForOrdering(t *testing.T) {
	want := []models.StepName{
		models.StepServiceSelection,
		models.StepBasicInfo,
		models.StepServiceRequirements,
		models.StepReview,
		models.StepConfirmation,
	}
	ordered := StepsFor(models.ServiceWebApp)
	for i, cfg := range ordered {
		if cfg.Name != want[i] {
			t.Errorf("step %d: expected %s, got %s", i, want[i], cfg.Name)
		}
	}
}

func TestGetRequirementsVariantPerServiceType(t *testing.T) {
	tests := []struct {
		serviceType models.ServiceType
		wantField   string
	}{
		{models.ServiceLandingPage, "pageType"},
		{models.ServiceWebApp, "websiteType"},
		{models.ServiceMobileApp, "appCategory"},
	}
	for _, tt := range tests {
		cfg, err := Get(models.StepServiceRequirements, tt.serviceType)
		if err != nil {
			t.Fatalf("Get(service_requirements, %s): %v", tt.serviceType, err)
		}
		found := false
		for _, f := range cfg.RequiredFields {
			if f == tt.wantField {
				found = true
			}
		}
		if !found {
			t.Errorf("Get(service_requirements, %s): expected required field %q in %v", tt.serviceType, tt.wantField, cfg.RequiredFields)
		}
	}
}

func TestGetUnknownStep(t *testing.T) {
	_, err := Get("payment", models.ServiceWebApp)
	if !errors.Is(err, models.ErrUnknownStep) {
		t.Errorf("expected ErrUnknownStep, got %v", err)
	}
}

func TestNextWalksTheFlow(t *testing.T) {
	tests := []struct {
		current models.StepName
		want    models.StepName
	}{
		{models.StepServiceSelection, models.StepBasicInfo},
		{models.StepBasicInfo, models.StepServiceRequirements},
		{models.StepServiceRequirements, models.StepReview},
		{models.StepReview, models.StepConfirmation},
	}
	for _, tt := range tests {
		next, err := Next(tt.current, models.ServiceLandingPage)
		if err != nil {
			t.Fatalf("Next(%s): %v", tt.current, err)
		}
		if next == nil || next.Name != tt.want {
			t.Errorf("Next(%s): expected %s, got %+v", tt.current, tt.want, next)
		}
	}
}

func TestNextTerminal(t *testing.T) {
	next, err := Next(models.StepConfirmation, models.ServiceMobileApp)
	if err != nil {
		t.Fatalf("Next(confirmation): %v", err)
	}
	if next != nil {
		t.Errorf("expected nil config after confirmation, got %+v", next)
	}
}

func TestPrevious(t *testing.T) {
	prev, err := Previous(models.StepBasicInfo, models.ServiceWebApp)
	if err != nil {
		t.Fatalf("Previous(basic_info): %v", err)
	}
	if prev == nil || prev.Name != models.StepServiceSelection {
		t.Errorf("Previous(basic_info): expected service_selection, got %+v", prev)
	}

	// First step does not allow going back.
	prev, err = Previous(models.StepServiceSelection, models.ServiceWebApp)
	if err != nil {
		t.Fatalf("Previous(service_selection): %v", err)
	}
	if prev != nil {
		t.Errorf("expected nil for first step, got %+v", prev)
	}

	// Confirmation is terminal and never allows back.
	prev, err = Previous(models.StepConfirmation, models.ServiceWebApp)
	if err != nil {
		t.Fatalf("Previous(confirmation): %v", err)
	}
	if prev != nil {
		t.Errorf("expected nil for confirmation, got %+v", prev)
	}
}

func TestRequiredSteps(t *testing.T) {
	required := RequiredSteps(models.ServiceLandingPage)
	want := []models.StepName{
		models.StepServiceSelection,
		models.StepBasicInfo,
		models.StepServiceRequirements,
	}
	if len(required) != len(want) {
		t.Fatalf("expected %d required steps, got %d: %v", len(want), len(required), required)
	}
	for i, name := range want {
		if required[i] != name {
			t.Errorf("required step %d: expected %s, got %s", i, name, required[i])
		}
	}
}

func TestTotalWeight(t *testing.T) {
	for _, st := range models.AllServiceTypes {
		if got := TotalWeight(st); got != 100 {
			t.Errorf("TotalWeight(%s): expected 100, got %d", st, got)
		}
	}
}

func TestConfirmationCarriesNoWeight(t *testing.T) {
	cfg, err := Get(models.StepConfirmation, models.ServiceWebApp)
	if err != nil {
		t.Fatalf("Get(confirmation): %v", err)
	}
	if cfg.ProgressWeight != 0 {
		t.Errorf("confirmation should carry zero progress weight, got %d", cfg.ProgressWeight)
	}
	if cfg.BackAllowed {
		t.Error("confirmation should not allow back navigation")
	}
}
