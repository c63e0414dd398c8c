// Package store provides storage backends for the onboarding service.
//
// It includes an in-memory store for tests, and SQLite and PostgreSQL backed
// stores for persistent deployments.
package store

import (
	"sort"
	"strings"
	"sync"

	"github.com/qkeluna/lunaxcode-onboarding/internal/models"
)

// Store is the narrow repository interface consumed by the flow engine,
// progress tracker, and submission assembler.
type Store interface {
	SaveFlowState(state models.FlowState) error
	GetFlowState(sessionID string) (*models.FlowState, error)
	DeleteFlowState(sessionID string) error

	SaveStepProgress(progress models.StepProgress) error
	GetStepProgress(sessionID string, step models.StepName) (*models.StepProgress, error)
	ListStepProgress(sessionID string) ([]models.StepProgress, error)

	AddSubmission(submission models.Submission) error
	GetSubmission(id string) (*models.Submission, error)
	ListSubmissions() ([]models.Submission, error)

	Close() error
}

// Opts holds configuration options for store construction.
type Opts struct {
	DSN string
}

// Option defines a configuration option for a store.
type Option func(*Opts)

// WithDSN sets the data source name (file path for SQLite, connection string
// for PostgreSQL).
func WithDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// DetectDSNType classifies a DSN as "postgres" or "sqlite". Connection URLs
// and key=value connection strings are PostgreSQL; anything else is treated as
// a SQLite file path.
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return "postgres"
	}
	return "sqlite"
}

// InMemoryStore is a simple in-memory store, used in tests and as a fallback.
type InMemoryStore struct {
	mu          sync.Mutex
	flows       map[string]models.FlowState
	progress    map[string]map[models.StepName]models.StepProgress
	submissions map[string]models.Submission
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		flows:       make(map[string]models.FlowState),
		progress:    make(map[string]map[models.StepName]models.StepProgress),
		submissions: make(map[string]models.Submission),
	}
}

// SaveFlowState stores or replaces the flow state for a session.
func (s *InMemoryStore) SaveFlowState(state models.FlowState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flows[state.SessionID] = state
	return nil
}

// GetFlowState retrieves the flow state for a session, or nil when absent.
func (s *InMemoryStore) GetFlowState(sessionID string) (*models.FlowState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.flows[sessionID]
	if !ok {
		return nil, nil
	}
	return &state, nil
}

// DeleteFlowState removes the flow state for a session.
func (s *InMemoryStore) DeleteFlowState(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.flows, sessionID)
	return nil
}

// SaveStepProgress stores or replaces the progress record for a (session, step) pair.
func (s *InMemoryStore) SaveStepProgress(progress models.StepProgress) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byStep, ok := s.progress[progress.SessionID]
	if !ok {
		byStep = make(map[models.StepName]models.StepProgress)
		s.progress[progress.SessionID] = byStep
	}
	byStep[progress.StepName] = progress
	return nil
}

// GetStepProgress retrieves the progress record for a (session, step) pair, or nil when absent.
func (s *InMemoryStore) GetStepProgress(sessionID string, step models.StepName) (*models.StepProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	byStep, ok := s.progress[sessionID]
	if !ok {
		return nil, nil
	}
	p, ok := byStep[step]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

// ListStepProgress returns every progress record for a session, ordered by creation time.
func (s *InMemoryStore) ListStepProgress(sessionID string) ([]models.StepProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	byStep, ok := s.progress[sessionID]
	if !ok {
		return nil, nil
	}
	out := make([]models.StepProgress, 0, len(byStep))
	for _, p := range byStep {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// AddSubmission stores a completed submission.
func (s *InMemoryStore) AddSubmission(submission models.Submission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submissions[submission.ID] = submission
	return nil
}

// GetSubmission retrieves a submission by ID, or nil when absent.
func (s *InMemoryStore) GetSubmission(id string) (*models.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.submissions[id]
	if !ok {
		return nil, nil
	}
	return &sub, nil
}

// ListSubmissions returns every stored submission ordered by creation time.
func (s *InMemoryStore) ListSubmissions() ([]models.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Submission, 0, len(s.submissions))
	for _, sub := range s.submissions {
		out = append(out, sub)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error { return nil }
