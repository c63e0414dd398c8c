package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/qkeluna/lunaxcode-onboarding/internal/models"
)

// exerciseStore drives the full Store contract against a backend.
func exerciseStore(t *testing.T, s Store) {
	t.Helper()

	started := time.Now().UTC().Truncate(time.Second)

	// Missing records come back as nil, nil.
	state, err := s.GetFlowState("missing")
	if err != nil {
		t.Fatalf("GetFlowState(missing): %v", err)
	}
	if state != nil {
		t.Errorf("GetFlowState(missing): expected nil, got %+v", state)
	}

	flow := models.FlowState{
		SessionID:   "sess-1",
		CurrentStep: models.StepBasicInfo,
		StepHistory: []models.StepName{models.StepServiceSelection, models.StepBasicInfo},
		FormData: map[models.StepName]models.StepData{
			models.StepServiceSelection: {"serviceType": "web_app"},
		},
		ServiceType:  models.ServiceWebApp,
		UserAgent:    "Mozilla/5.0",
		StartedAt:    started,
		LastActiveAt: started,
	}
	if err := s.SaveFlowState(flow); err != nil {
		t.Fatalf("SaveFlowState: %v", err)
	}

	got, err := s.GetFlowState("sess-1")
	if err != nil {
		t.Fatalf("GetFlowState: %v", err)
	}
	if got == nil {
		t.Fatal("GetFlowState returned nil for saved session")
	}
	if got.CurrentStep != models.StepBasicInfo {
		t.Errorf("CurrentStep = %s, want basic_info", got.CurrentStep)
	}
	if len(got.StepHistory) != 2 || got.StepHistory[1] != models.StepBasicInfo {
		t.Errorf("StepHistory = %v", got.StepHistory)
	}
	if v := got.FormData[models.StepServiceSelection]["serviceType"]; v != "web_app" {
		t.Errorf("FormData round trip failed, got %v", v)
	}

	// Save is an upsert: the second write replaces the first.
	flow.CurrentStep = models.StepServiceRequirements
	flow.StepHistory = append(flow.StepHistory, models.StepServiceRequirements)
	if err := s.SaveFlowState(flow); err != nil {
		t.Fatalf("SaveFlowState (update): %v", err)
	}
	got, err = s.GetFlowState("sess-1")
	if err != nil {
		t.Fatalf("GetFlowState after update: %v", err)
	}
	if got.CurrentStep != models.StepServiceRequirements {
		t.Errorf("CurrentStep after update = %s, want service_requirements", got.CurrentStep)
	}

	// Step progress.
	p, err := s.GetStepProgress("sess-1", models.StepBasicInfo)
	if err != nil {
		t.Fatalf("GetStepProgress(missing): %v", err)
	}
	if p != nil {
		t.Errorf("GetStepProgress(missing): expected nil, got %+v", p)
	}

	startedAt := started.Add(time.Minute)
	progress := models.StepProgress{
		SessionID: "sess-1",
		StepName:  models.StepBasicInfo,
		Status:    models.StepStatusInProgress,
		RawInput:  models.StepData{"projectName": "Demo"},
		ValidationErrors: []models.FieldError{
			{Field: "contactEmail", Message: "contactEmail is required", Code: "required"},
		},
		StartedAt:    &startedAt,
		AttemptCount: 2,
		PreviousStep: models.StepServiceSelection,
		NavigationLog: []models.NavigationEvent{
			{Timestamp: startedAt, Action: models.NavigationNext, FromStep: models.StepServiceSelection, ToStep: models.StepBasicInfo},
		},
		CreatedAt: startedAt,
		UpdatedAt: startedAt,
	}
	if err := s.SaveStepProgress(progress); err != nil {
		t.Fatalf("SaveStepProgress: %v", err)
	}
	p, err = s.GetStepProgress("sess-1", models.StepBasicInfo)
	if err != nil {
		t.Fatalf("GetStepProgress: %v", err)
	}
	if p == nil {
		t.Fatal("GetStepProgress returned nil for saved record")
	}
	if p.AttemptCount != 2 {
		t.Errorf("AttemptCount = %d, want 2", p.AttemptCount)
	}
	if len(p.ValidationErrors) != 1 || p.ValidationErrors[0].Code != "required" {
		t.Errorf("ValidationErrors round trip failed: %+v", p.ValidationErrors)
	}
	if len(p.NavigationLog) != 1 || p.NavigationLog[0].Action != models.NavigationNext {
		t.Errorf("NavigationLog round trip failed: %+v", p.NavigationLog)
	}
	if p.PreviousStep != models.StepServiceSelection {
		t.Errorf("PreviousStep = %s, want service_selection", p.PreviousStep)
	}

	second := models.StepProgress{
		SessionID:    "sess-1",
		StepName:     models.StepServiceSelection,
		Status:       models.StepStatusCompleted,
		AttemptCount: 1,
		CreatedAt:    started,
		UpdatedAt:    started,
	}
	if err := s.SaveStepProgress(second); err != nil {
		t.Fatalf("SaveStepProgress (second): %v", err)
	}
	list, err := s.ListStepProgress("sess-1")
	if err != nil {
		t.Fatalf("ListStepProgress: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("ListStepProgress: expected 2 records, got %d", len(list))
	}
	if list[0].StepName != models.StepServiceSelection {
		t.Errorf("ListStepProgress should be ordered by creation time, got %s first", list[0].StepName)
	}

	// Submissions.
	sub, err := s.GetSubmission("missing")
	if err != nil {
		t.Fatalf("GetSubmission(missing): %v", err)
	}
	if sub != nil {
		t.Errorf("GetSubmission(missing): expected nil, got %+v", sub)
	}

	submission := models.Submission{
		ID:                  "sub-1",
		SessionID:           "sess-1",
		ProjectName:         "Demo",
		CompanyName:         "Acme",
		Industry:            "retail",
		Description:         "An online store for handmade goods.",
		Email:               "owner@acme.test",
		ServiceType:         models.ServiceWebApp,
		Urgency:             "medium",
		ServiceSpecificData: `{"service_type":"web_app"}`,
		AddOns:              []string{"seo"},
		Status:              models.SubmissionStatusPending,
		Priority:            models.PriorityMedium,
		CreatedAt:           started,
		UpdatedAt:           started,
	}
	if err := s.AddSubmission(submission); err != nil {
		t.Fatalf("AddSubmission: %v", err)
	}
	sub, err = s.GetSubmission("sub-1")
	if err != nil {
		t.Fatalf("GetSubmission: %v", err)
	}
	if sub == nil {
		t.Fatal("GetSubmission returned nil for saved record")
	}
	if sub.Email != "owner@acme.test" {
		t.Errorf("Email = %s", sub.Email)
	}
	if len(sub.AddOns) != 1 || sub.AddOns[0] != "seo" {
		t.Errorf("AddOns round trip failed: %v", sub.AddOns)
	}

	subs, err := s.ListSubmissions()
	if err != nil {
		t.Fatalf("ListSubmissions: %v", err)
	}
	if len(subs) != 1 {
		t.Errorf("ListSubmissions: expected 1, got %d", len(subs))
	}

	// Re-adding the same ID must not error; finalize retries reproduce the
	// deterministic submission after a partial failure.
	submission.Status = models.SubmissionStatusReviewed
	if err := s.AddSubmission(submission); err != nil {
		t.Fatalf("AddSubmission retry: %v", err)
	}
	subs, err = s.ListSubmissions()
	if err != nil {
		t.Fatalf("ListSubmissions: %v", err)
	}
	if len(subs) != 1 {
		t.Errorf("ListSubmissions after retry: expected 1, got %d", len(subs))
	}
	sub, err = s.GetSubmission("sub-1")
	if err != nil {
		t.Fatalf("GetSubmission after retry: %v", err)
	}
	if sub.Status != models.SubmissionStatusReviewed {
		t.Errorf("Status after retry = %s, want reviewed", sub.Status)
	}

	// Delete.
	if err := s.DeleteFlowState("sess-1"); err != nil {
		t.Fatalf("DeleteFlowState: %v", err)
	}
	got, err = s.GetFlowState("sess-1")
	if err != nil {
		t.Fatalf("GetFlowState after delete: %v", err)
	}
	if got != nil {
		t.Errorf("flow state should be gone after delete, got %+v", got)
	}
}

func TestInMemoryStore(t *testing.T) {
	s := NewInMemoryStore()
	defer s.Close()
	exerciseStore(t, s)
}

func TestSQLiteStore(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "onboarding.db")
	s, err := NewSQLiteStore(WithDSN(dsn))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	defer s.Close()
	exerciseStore(t, s)
}

func TestSQLiteStoreRequiresDSN(t *testing.T) {
	_, err := NewSQLiteStore()
	if err == nil {
		t.Error("expected error when DSN is not set")
	}
}

func TestSQLiteStoreCreatesParentDirs(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "nested", "state", "onboarding.db")
	s, err := NewSQLiteStore(WithDSN(dsn))
	if err != nil {
		t.Fatalf("NewSQLiteStore with nested path: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(filepath.Dir(dsn)); os.IsNotExist(err) {
		t.Errorf("parent directory should have been created: %s", filepath.Dir(dsn))
	}
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set; skipping PostgreSQL store test")
	}
	s, err := NewPostgresStore(WithDSN(dsn))
	if err != nil {
		t.Fatalf("NewPostgresStore: %v", err)
	}
	defer s.Close()
	exerciseStore(t, s)
}
