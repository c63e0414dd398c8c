// Package api provides HTTP handlers for the onboarding endpoints.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/qkeluna/lunaxcode-onboarding/internal/models"
)

// startFlowResult is the payload returned when a flow is opened.
type startFlowResult struct {
	SessionID string            `json:"session_id"`
	FlowState *models.FlowState `json:"flow_state"`
}

// submitStepResult pairs a validation outcome with the (possibly unchanged) flow state.
type submitStepResult struct {
	Validation models.ValidationResult `json:"validation"`
	FlowState  *models.FlowState       `json:"flow_state"`
}

// navigateResult pairs the updated flow state with the resulting step's config.
type navigateResult struct {
	FlowState  *models.FlowState  `json:"flow_state"`
	StepConfig *models.StepConfig `json:"step_config"`
}

func (s *Server) startFlowHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.startFlowHandler: processing request", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		slog.Warn("Server.startFlowHandler: method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req models.StartFlowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.startFlowHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := req.Validate(); err != nil {
		slog.Warn("Server.startFlowHandler: validation failed", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}
	if req.UserAgent == "" {
		req.UserAgent = r.UserAgent()
	}

	state, err := s.engine.Start(r.Context(), req)
	if err != nil {
		writeFlowError(w, err)
		return
	}

	slog.Info("Server.startFlowHandler: flow started", "sessionID", state.SessionID, "serviceType", req.ServiceType)
	writeJSONResponse(w, http.StatusCreated, models.Success(startFlowResult{
		SessionID: state.SessionID,
		FlowState: state,
	}))
}

func (s *Server) getFlowHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	state, err := s.engine.GetState(r.Context(), r.PathValue("sessionID"))
	if err != nil {
		writeFlowError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(state))
}

func (s *Server) submitStepHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.submitStepHandler: processing request", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	sessionID := r.PathValue("sessionID")
	step := models.StepName(r.PathValue("step"))

	var req models.SubmitStepRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.submitStepHandler: failed to decode JSON", "error", err, "sessionID", sessionID)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := req.Validate(); err != nil {
		slog.Warn("Server.submitStepHandler: validation failed", "error", err, "sessionID", sessionID)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	result, state, err := s.engine.SubmitStep(r.Context(), sessionID, step, req)
	if err != nil {
		writeFlowError(w, err)
		return
	}

	payload := submitStepResult{Validation: result, FlowState: state}
	if !result.IsValid {
		slog.Debug("Server.submitStepHandler: step data invalid", "sessionID", sessionID, "step", step, "errors", len(result.Errors))
		writeJSONResponse(w, http.StatusOK, models.Invalid("Step data failed validation", payload))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(payload))
}

func (s *Server) navigateHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.navigateHandler: processing request", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	sessionID := r.PathValue("sessionID")

	var req models.NavigateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.navigateHandler: failed to decode JSON", "error", err, "sessionID", sessionID)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := req.Validate(); err != nil {
		slog.Warn("Server.navigateHandler: validation failed", "error", err, "sessionID", sessionID)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	state, cfg, err := s.engine.Navigate(r.Context(), sessionID, req.Action)
	if err != nil {
		writeFlowError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(navigateResult{FlowState: state, StepConfig: cfg}))
}

func (s *Server) abandonHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	sessionID := r.PathValue("sessionID")
	state, err := s.engine.Abandon(r.Context(), sessionID)
	if err != nil {
		writeFlowError(w, err)
		return
	}
	slog.Info("Server.abandonHandler: flow abandoned", "sessionID", sessionID, "step", state.CurrentStep)
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Flow abandoned", state))
}

func (s *Server) finalizeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	sessionID := r.PathValue("sessionID")
	submission, err := s.engine.Finalize(r.Context(), sessionID)
	if err != nil {
		writeFlowError(w, err)
		return
	}
	slog.Info("Server.finalizeHandler: submission created", "sessionID", sessionID, "submissionID", submission.ID)
	writeJSONResponse(w, http.StatusCreated, models.Success(submission))
}

func (s *Server) analyticsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	analytics, err := s.tracker.Snapshot(r.Context(), r.PathValue("sessionID"))
	if err != nil {
		writeFlowError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(analytics))
}

func (s *Server) listSubmissionsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	submissions, err := s.st.ListSubmissions()
	if err != nil {
		slog.Error("Server.listSubmissionsHandler: failed to list submissions", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to list submissions"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(submissions))
}

func (s *Server) getSubmissionHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	id := r.PathValue("id")
	submission, err := s.st.GetSubmission(id)
	if err != nil {
		slog.Error("Server.getSubmissionHandler: failed to load submission", "error", err, "id", id)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load submission"))
		return
	}
	if submission == nil {
		writeJSONResponse(w, http.StatusNotFound, models.Error(models.ErrSubmissionNotFound.Error()))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(submission))
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("ok", nil))
}
