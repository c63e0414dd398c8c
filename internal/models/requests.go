// Package models defines API request payloads for the onboarding endpoints.
package models

import "errors"

// StartFlowRequest is the payload for opening a new onboarding session.
type StartFlowRequest struct {
	ServiceType ServiceType `json:"service_type"`
	UserAgent   string      `json:"user_agent,omitempty"`
	DeviceType  string      `json:"device_type,omitempty"`
}

// Validate validates a StartFlowRequest.
func (r *StartFlowRequest) Validate() error {
	if r.ServiceType == "" {
		return errors.New("service_type is required")
	}
	if !IsValidServiceType(r.ServiceType) {
		return ErrInvalidServiceType
	}
	return nil
}

// SubmitStepRequest is the payload for submitting one step's data.
type SubmitStepRequest struct {
	StepData    StepData `json:"step_data"`
	TimeSpentMs int64    `json:"time_spent_ms,omitempty"`
	DeviceType  string   `json:"device_type,omitempty"`
}

// Validate validates a SubmitStepRequest.
func (r *SubmitStepRequest) Validate() error {
	if r.StepData == nil {
		return errors.New("step_data is required")
	}
	if r.TimeSpentMs < 0 {
		return errors.New("time_spent_ms must be non-negative")
	}
	return nil
}

// NavigateRequest is the payload for a navigation action within a session.
type NavigateRequest struct {
	Action NavigationAction `json:"action"`
}

// Validate validates a NavigateRequest.
func (r *NavigateRequest) Validate() error {
	if r.Action == "" {
		return errors.New("action is required")
	}
	switch r.Action {
	case NavigationNext, NavigationBack, NavigationSkip:
		return nil
	default:
		return ErrInvalidNavigation
	}
}
