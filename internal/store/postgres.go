// Package store provides storage backends for the onboarding service.
//
// This file implements the PostgreSQL-backed store.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/qkeluna/lunaxcode-onboarding/internal/models"
	_ "github.com/lib/pq"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// PostgresStore is a Store backed by PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("PostgresStore.NewPostgresStore: creating Postgres store", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run Postgres migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")

	return &PostgresStore{db: db}, nil
}

// Close closes the Postgres database connection.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing Postgres database connection")
	return s.db.Close()
}

// SaveFlowState stores or updates the flow state for a session.
func (s *PostgresStore) SaveFlowState(state models.FlowState) error {
	history, err := json.Marshal(state.StepHistory)
	if err != nil {
		slog.Error("PostgresStore SaveFlowState history marshal failed", "error", err, "sessionID", state.SessionID)
		return err
	}
	formData, err := marshalField(state.FormData)
	if err != nil {
		slog.Error("PostgresStore SaveFlowState form data marshal failed", "error", err, "sessionID", state.SessionID)
		return err
	}

	query := `
		INSERT INTO flow_states
			(session_id, submission_id, current_step, step_history, form_data, service_type,
			 completed, abandoned, user_agent, device_type, started_at, last_active_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (session_id) DO UPDATE SET
			submission_id = EXCLUDED.submission_id,
			current_step = EXCLUDED.current_step,
			step_history = EXCLUDED.step_history,
			form_data = EXCLUDED.form_data,
			service_type = EXCLUDED.service_type,
			completed = EXCLUDED.completed,
			abandoned = EXCLUDED.abandoned,
			user_agent = EXCLUDED.user_agent,
			device_type = EXCLUDED.device_type,
			last_active_at = EXCLUDED.last_active_at`
	_, err = s.db.Exec(query,
		state.SessionID, nilIfEmpty(state.SubmissionID), state.CurrentStep, string(history), formData,
		state.ServiceType, state.Completed, state.Abandoned,
		nilIfEmpty(state.UserAgent), nilIfEmpty(state.DeviceType), state.StartedAt, state.LastActiveAt)
	if err != nil {
		slog.Error("PostgresStore SaveFlowState failed", "error", err, "sessionID", state.SessionID)
		return fmt.Errorf("failed to save flow state for %s: %w", state.SessionID, err)
	}
	slog.Debug("PostgresStore SaveFlowState succeeded", "sessionID", state.SessionID, "step", state.CurrentStep)
	return nil
}

// GetFlowState retrieves the flow state for a session, or nil when absent.
func (s *PostgresStore) GetFlowState(sessionID string) (*models.FlowState, error) {
	query := `SELECT session_id, submission_id, current_step, step_history, form_data, service_type,
				completed, abandoned, user_agent, device_type, started_at, last_active_at
			  FROM flow_states WHERE session_id = $1`
	state, err := scanFlowState(s.db.QueryRow(query, sessionID))
	if err == sql.ErrNoRows {
		slog.Debug("PostgresStore GetFlowState not found", "sessionID", sessionID)
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetFlowState failed", "error", err, "sessionID", sessionID)
		return nil, err
	}
	return state, nil
}

// DeleteFlowState removes the flow state for a session.
func (s *PostgresStore) DeleteFlowState(sessionID string) error {
	_, err := s.db.Exec(`DELETE FROM flow_states WHERE session_id = $1`, sessionID)
	if err != nil {
		slog.Error("PostgresStore DeleteFlowState failed", "error", err, "sessionID", sessionID)
		return err
	}
	return nil
}

// SaveStepProgress stores or updates the progress record for a (session, step) pair.
func (s *PostgresStore) SaveStepProgress(p models.StepProgress) error {
	rawInput, err := marshalField(p.RawInput)
	if err != nil {
		return err
	}
	validationErrors, err := marshalField(p.ValidationErrors)
	if err != nil {
		return err
	}
	navigationLog, err := marshalField(p.NavigationLog)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO step_progress
			(session_id, step_name, status, raw_input, validation_errors, started_at, completed_at,
			 time_spent_ms, attempt_count, previous_step, next_step, navigation_log, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (session_id, step_name) DO UPDATE SET
			status = EXCLUDED.status,
			raw_input = EXCLUDED.raw_input,
			validation_errors = EXCLUDED.validation_errors,
			started_at = EXCLUDED.started_at,
			completed_at = EXCLUDED.completed_at,
			time_spent_ms = EXCLUDED.time_spent_ms,
			attempt_count = EXCLUDED.attempt_count,
			previous_step = EXCLUDED.previous_step,
			next_step = EXCLUDED.next_step,
			navigation_log = EXCLUDED.navigation_log,
			updated_at = EXCLUDED.updated_at`
	_, err = s.db.Exec(query,
		p.SessionID, p.StepName, p.Status, rawInput, validationErrors, p.StartedAt, p.CompletedAt,
		p.TimeSpentMs, p.AttemptCount, nilIfEmpty(string(p.PreviousStep)), nilIfEmpty(string(p.NextStep)),
		navigationLog, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		slog.Error("PostgresStore SaveStepProgress failed", "error", err, "sessionID", p.SessionID, "step", p.StepName)
		return fmt.Errorf("failed to save step progress for %s/%s: %w", p.SessionID, p.StepName, err)
	}
	return nil
}

// GetStepProgress retrieves the progress record for a (session, step) pair, or nil when absent.
func (s *PostgresStore) GetStepProgress(sessionID string, step models.StepName) (*models.StepProgress, error) {
	query := `SELECT session_id, step_name, status, raw_input, validation_errors, started_at, completed_at,
				time_spent_ms, attempt_count, previous_step, next_step, navigation_log, created_at, updated_at
			  FROM step_progress WHERE session_id = $1 AND step_name = $2`
	p, err := scanStepProgress(s.db.QueryRow(query, sessionID, step))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetStepProgress failed", "error", err, "sessionID", sessionID, "step", step)
		return nil, err
	}
	return p, nil
}

// ListStepProgress returns every progress record for a session, ordered by creation time.
func (s *PostgresStore) ListStepProgress(sessionID string) ([]models.StepProgress, error) {
	query := `SELECT session_id, step_name, status, raw_input, validation_errors, started_at, completed_at,
				time_spent_ms, attempt_count, previous_step, next_step, navigation_log, created_at, updated_at
			  FROM step_progress WHERE session_id = $1 ORDER BY created_at`
	rows, err := s.db.Query(query, sessionID)
	if err != nil {
		slog.Error("PostgresStore ListStepProgress query failed", "error", err, "sessionID", sessionID)
		return nil, fmt.Errorf("failed to query step progress: %w", err)
	}
	defer rows.Close()

	var out []models.StepProgress
	for rows.Next() {
		p, err := scanStepProgress(rows)
		if err != nil {
			slog.Error("PostgresStore ListStepProgress scan failed", "error", err, "sessionID", sessionID)
			return nil, fmt.Errorf("failed to scan step progress row: %w", err)
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate step progress rows: %w", err)
	}
	return out, nil
}

// AddSubmission stores a completed submission.
func (s *PostgresStore) AddSubmission(sub models.Submission) error {
	addOns, err := json.Marshal(sub.AddOns)
	if err != nil {
		return err
	}
	// Submission IDs are deterministic per session, so a finalize retried
	// after a partial failure must land on the same row instead of erroring.
	query := `
		INSERT INTO submissions
			(id, session_id, project_name, company_name, industry, description, name, email, phone,
			 preferred_contact, service_type, budget, timeline, urgency, service_specific_data,
			 additional_requirements, inspiration, add_ons, status, priority, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status, priority = EXCLUDED.priority, updated_at = EXCLUDED.updated_at`
	_, err = s.db.Exec(query,
		sub.ID, sub.SessionID, sub.ProjectName, sub.CompanyName, sub.Industry, sub.Description,
		nilIfEmpty(sub.Name), sub.Email, nilIfEmpty(sub.Phone), nilIfEmpty(sub.PreferredContact),
		sub.ServiceType, nilIfEmpty(sub.Budget), nilIfEmpty(sub.Timeline), sub.Urgency,
		sub.ServiceSpecificData, nilIfEmpty(sub.AdditionalRequirements), nilIfEmpty(sub.Inspiration),
		string(addOns), sub.Status, sub.Priority, sub.CreatedAt, sub.UpdatedAt)
	if err != nil {
		slog.Error("PostgresStore AddSubmission failed", "error", err, "id", sub.ID)
		return fmt.Errorf("failed to insert submission %s: %w", sub.ID, err)
	}
	slog.Debug("PostgresStore AddSubmission succeeded", "id", sub.ID, "sessionID", sub.SessionID)
	return nil
}

// GetSubmission retrieves a submission by ID, or nil when absent.
func (s *PostgresStore) GetSubmission(id string) (*models.Submission, error) {
	query := `SELECT id, session_id, project_name, company_name, industry, description, name, email, phone,
				preferred_contact, service_type, budget, timeline, urgency, service_specific_data,
				additional_requirements, inspiration, add_ons, status, priority, created_at, updated_at
			  FROM submissions WHERE id = $1`
	sub, err := scanSubmission(s.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetSubmission failed", "error", err, "id", id)
		return nil, err
	}
	return sub, nil
}

// ListSubmissions returns every stored submission ordered by creation time.
func (s *PostgresStore) ListSubmissions() ([]models.Submission, error) {
	query := `SELECT id, session_id, project_name, company_name, industry, description, name, email, phone,
				preferred_contact, service_type, budget, timeline, urgency, service_specific_data,
				additional_requirements, inspiration, add_ons, status, priority, created_at, updated_at
			  FROM submissions ORDER BY created_at`
	rows, err := s.db.Query(query)
	if err != nil {
		slog.Error("PostgresStore ListSubmissions query failed", "error", err)
		return nil, fmt.Errorf("failed to query submissions: %w", err)
	}
	defer rows.Close()

	var out []models.Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan submission row: %w", err)
		}
		out = append(out, *sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate submission rows: %w", err)
	}
	return out, nil
}
