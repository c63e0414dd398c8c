// Package store provides storage backends for the onboarding service.
//
// This file implements the SQLite-backed store.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "embed"

	"github.com/qkeluna/lunaxcode-onboarding/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// DefaultDirPermissions defines the default permissions for database directories.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// SQLiteStore is a Store backed by a local SQLite database file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN is a file path to the SQLite database file; missing parent
// directories are created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("SQLiteStore.NewSQLiteStore: creating SQLite store", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run SQLite migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite database connection")
	return s.db.Close()
}

// SaveFlowState stores or updates the flow state for a session.
func (s *SQLiteStore) SaveFlowState(state models.FlowState) error {
	history, err := json.Marshal(state.StepHistory)
	if err != nil {
		slog.Error("SQLiteStore SaveFlowState history marshal failed", "error", err, "sessionID", state.SessionID)
		return err
	}
	formData, err := marshalField(state.FormData)
	if err != nil {
		slog.Error("SQLiteStore SaveFlowState form data marshal failed", "error", err, "sessionID", state.SessionID)
		return err
	}

	query := `
		INSERT OR REPLACE INTO flow_states
			(session_id, submission_id, current_step, step_history, form_data, service_type,
			 completed, abandoned, user_agent, device_type, started_at, last_active_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = s.db.Exec(query,
		state.SessionID, nilIfEmpty(state.SubmissionID), state.CurrentStep, string(history), formData,
		state.ServiceType, state.Completed, state.Abandoned,
		nilIfEmpty(state.UserAgent), nilIfEmpty(state.DeviceType), state.StartedAt, state.LastActiveAt)
	if err != nil {
		slog.Error("SQLiteStore SaveFlowState failed", "error", err, "sessionID", state.SessionID)
		return fmt.Errorf("failed to save flow state for %s: %w", state.SessionID, err)
	}
	slog.Debug("SQLiteStore SaveFlowState succeeded", "sessionID", state.SessionID, "step", state.CurrentStep)
	return nil
}

// GetFlowState retrieves the flow state for a session, or nil when absent.
func (s *SQLiteStore) GetFlowState(sessionID string) (*models.FlowState, error) {
	query := `SELECT session_id, submission_id, current_step, step_history, form_data, service_type,
				completed, abandoned, user_agent, device_type, started_at, last_active_at
			  FROM flow_states WHERE session_id = ?`
	state, err := scanFlowState(s.db.QueryRow(query, sessionID))
	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore GetFlowState not found", "sessionID", sessionID)
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetFlowState failed", "error", err, "sessionID", sessionID)
		return nil, err
	}
	return state, nil
}

// DeleteFlowState removes the flow state for a session.
func (s *SQLiteStore) DeleteFlowState(sessionID string) error {
	_, err := s.db.Exec(`DELETE FROM flow_states WHERE session_id = ?`, sessionID)
	if err != nil {
		slog.Error("SQLiteStore DeleteFlowState failed", "error", err, "sessionID", sessionID)
		return err
	}
	slog.Debug("SQLiteStore DeleteFlowState succeeded", "sessionID", sessionID)
	return nil
}

// SaveStepProgress stores or updates the progress record for a (session, step) pair.
func (s *SQLiteStore) SaveStepProgress(p models.StepProgress) error {
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
		INSERT OR REPLACE INTO step_progress
			(session_id, step_name, status, raw_input, validation_errors, started_at, completed_at,
			 time_spent_ms, attempt_count, previous_step, next_step, navigation_log, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = s.db.Exec(query,
		p.SessionID, p.StepName, p.Status, rawInput, validationErrors, p.StartedAt, p.CompletedAt,
		p.TimeSpentMs, p.AttemptCount, nilIfEmpty(string(p.PreviousStep)), nilIfEmpty(string(p.NextStep)),
		navigationLog, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		slog.Error("SQLiteStore SaveStepProgress failed", "error", err, "sessionID", p.SessionID, "step", p.StepName)
		return fmt.Errorf("failed to save step progress for %s/%s: %w", p.SessionID, p.StepName, err)
	}
	slog.Debug("SQLiteStore SaveStepProgress succeeded", "sessionID", p.SessionID, "step", p.StepName, "status", p.Status)
	return nil
}

// GetStepProgress retrieves the progress record for a (session, step) pair, or nil when absent.
func (s *SQLiteStore) GetStepProgress(sessionID string, step models.StepName) (*models.StepProgress, error) {
	query := `SELECT session_id, step_name, status, raw_input, validation_errors, started_at, completed_at,
				time_spent_ms, attempt_count, previous_step, next_step, navigation_log, created_at, updated_at
			  FROM step_progress WHERE session_id = ? AND step_name = ?`
	p, err := scanStepProgress(s.db.QueryRow(query, sessionID, step))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetStepProgress failed", "error", err, "sessionID", sessionID, "step", step)
		return nil, err
	}
	return p, nil
}

// ListStepProgress returns every progress record for a session, ordered by creation time.
func (s *SQLiteStore) ListStepProgress(sessionID string) ([]models.StepProgress, error) {
	query := `SELECT session_id, step_name, status, raw_input, validation_errors, started_at, completed_at,
				time_spent_ms, attempt_count, previous_step, next_step, navigation_log, created_at, updated_at
			  FROM step_progress WHERE session_id = ? ORDER BY created_at`
	rows, err := s.db.Query(query, sessionID)
	if err != nil {
		slog.Error("SQLiteStore ListStepProgress query failed", "error", err, "sessionID", sessionID)
		return nil, fmt.Errorf("failed to query step progress: %w", err)
	}
	defer rows.Close()

	var out []models.StepProgress
	for rows.Next() {
		p, err := scanStepProgress(rows)
		if err != nil {
			slog.Error("SQLiteStore ListStepProgress scan failed", "error", err, "sessionID", sessionID)
			return nil, fmt.Errorf("failed to scan step progress row: %w", err)
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		slog.Error("SQLiteStore ListStepProgress rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate step progress rows: %w", err)
	}
	return out, nil
}

// AddSubmission stores a completed submission.
func (s *SQLiteStore) AddSubmission(sub models.Submission) error {
	addOns, err := json.Marshal(sub.AddOns)
	if err != nil {
		return err
	}
	// Submission IDs are deterministic per session, so a finalize retried
	// after a partial failure must land on the same row instead of erroring.
	query := `
		INSERT OR REPLACE INTO submissions
			(id, session_id, project_name, company_name, industry, description, name, email, phone,
			 preferred_contact, service_type, budget, timeline, urgency, service_specific_data,
			 additional_requirements, inspiration, add_ons, status, priority, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = s.db.Exec(query,
		sub.ID, sub.SessionID, sub.ProjectName, sub.CompanyName, sub.Industry, sub.Description,
		nilIfEmpty(sub.Name), sub.Email, nilIfEmpty(sub.Phone), nilIfEmpty(sub.PreferredContact),
		sub.ServiceType, nilIfEmpty(sub.Budget), nilIfEmpty(sub.Timeline), sub.Urgency,
		sub.ServiceSpecificData, nilIfEmpty(sub.AdditionalRequirements), nilIfEmpty(sub.Inspiration),
		string(addOns), sub.Status, sub.Priority, sub.CreatedAt, sub.UpdatedAt)
	if err != nil {
		slog.Error("SQLiteStore AddSubmission failed", "error", err, "id", sub.ID)
		return fmt.Errorf("failed to insert submission %s: %w", sub.ID, err)
	}
	slog.Debug("SQLiteStore AddSubmission succeeded", "id", sub.ID, "sessionID", sub.SessionID)
	return nil
}

// GetSubmission retrieves a submission by ID, or nil when absent.
func (s *SQLiteStore) GetSubmission(id string) (*models.Submission, error) {
	query := `SELECT id, session_id, project_name, company_name, industry, description, name, email, phone,
				preferred_contact, service_type, budget, timeline, urgency, service_specific_data,
				additional_requirements, inspiration, add_ons, status, priority, created_at, updated_at
			  FROM submissions WHERE id = ?`
	sub, err := scanSubmission(s.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetSubmission failed", "error", err, "id", id)
		return nil, err
	}
	return sub, nil
}

// ListSubmissions returns every stored submission ordered by creation time.
func (s *SQLiteStore) ListSubmissions() ([]models.Submission, error) {
	query := `SELECT id, session_id, project_name, company_name, industry, description, name, email, phone,
				preferred_contact, service_type, budget, timeline, urgency, service_specific_data,
				additional_requirements, inspiration, add_ons, status, priority, created_at, updated_at
			  FROM submissions ORDER BY created_at`
	rows, err := s.db.Query(query)
	if err != nil {
		slog.Error("SQLiteStore ListSubmissions query failed", "error", err)
		return nil, fmt.Errorf("failed to query submissions: %w", err)
	}
	defer rows.Close()

	var out []models.Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			slog.Error("SQLiteStore ListSubmissions scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan submission row: %w", err)
		}
		out = append(out, *sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate submission rows: %w", err)
	}
	return out, nil
}
