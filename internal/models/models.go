// Package models defines the core data structures for the lunaxcode onboarding service.
//
// It includes the service types, wizard step definitions, flow/session state,
// step-level progress records, and the final submission record shared across modules.
package models

import (
	"errors"
	"time"
)

// ServiceType identifies the category of project being onboarded.
// It is selected once per flow and gates which requirements schema applies.
type ServiceType string

const (
	// ServiceLandingPage is a single marketing/landing page project.
	ServiceLandingPage ServiceType = "landing_page"
	// ServiceWebApp is a multi-page website or web application project.
	ServiceWebApp ServiceType = "web_app"
	// ServiceMobileApp is a mobile application project.
	ServiceMobileApp ServiceType = "mobile_app"
)

// AllServiceTypes lists every supported service type in display order.
var AllServiceTypes = []ServiceType{ServiceLandingPage, ServiceWebApp, ServiceMobileApp}

// IsValidServiceType checks if the given service type is supported.
func IsValidServiceType(st ServiceType) bool {
	switch st {
	case ServiceLandingPage, ServiceWebApp, ServiceMobileApp:
		return true
	default:
		return false
	}
}

// StepName identifies a step of the onboarding wizard.
type StepName string

const (
	// StepServiceSelection is the first step where the service type is chosen.
	StepServiceSelection StepName = "service_selection"
	// StepBasicInfo collects project and contact details.
	StepBasicInfo StepName = "basic_info"
	// StepServiceRequirements collects the service-type-specific requirements.
	StepServiceRequirements StepName = "service_requirements"
	// StepReview lets the user review entered data and add optional extras.
	StepReview StepName = "review"
	// StepConfirmation is the terminal display state after a successful submission.
	StepConfirmation StepName = "confirmation"
)

// IsValidStepName checks if the given step name is part of the wizard.
func IsValidStepName(name StepName) bool {
	switch name {
	case StepServiceSelection, StepBasicInfo, StepServiceRequirements, StepReview, StepConfirmation:
		return true
	default:
		return false
	}
}

// StepStatus represents the lifecycle status of a single step within a session.
type StepStatus string

const (
	StepStatusPending    StepStatus = "pending"
	StepStatusInProgress StepStatus = "in_progress"
	StepStatusCompleted  StepStatus = "completed"
	StepStatusSkipped    StepStatus = "skipped"
	StepStatusError      StepStatus = "error"
)

// NavigationAction represents a user-driven transition between steps.
type NavigationAction string

const (
	NavigationNext  NavigationAction = "next"
	NavigationBack  NavigationAction = "back"
	NavigationSkip  NavigationAction = "skip"
	NavigationRetry NavigationAction = "retry"
	NavigationExit  NavigationAction = "exit"
)

// IsValidNavigationAction checks if the action is one of the supported navigation verbs.
func IsValidNavigationAction(a NavigationAction) bool {
	switch a {
	case NavigationNext, NavigationBack, NavigationSkip, NavigationRetry, NavigationExit:
		return true
	default:
		return false
	}
}

// ConversionStatus classifies the outcome of a flow for analytics.
type ConversionStatus string

const (
	ConversionCompleted  ConversionStatus = "completed"
	ConversionAbandoned  ConversionStatus = "abandoned"
	ConversionInProgress ConversionStatus = "in_progress"
)

// Error variables for better error handling and testability
var (
	ErrInvalidServiceType    = errors.New("invalid service type")
	ErrUnknownStep           = errors.New("unknown step")
	ErrSchemaNotFound        = errors.New("no schema registered for step and service type")
	ErrFlowNotFound          = errors.New("flow session not found")
	ErrFlowCompleted         = errors.New("flow already completed")
	ErrFlowAbandoned         = errors.New("flow already abandoned")
	ErrNavigationNotAllowed  = errors.New("navigation not allowed from current step")
	ErrServiceTypeImmutable  = errors.New("service type cannot change after basic info is reached")
	ErrStepMismatch          = errors.New("submitted step does not match current step")
	ErrSubmissionNotFound    = errors.New("submission not found")
	ErrIncompleteSteps       = errors.New("required steps are not completed")
	ErrInvalidNavigation     = errors.New("invalid navigation action")
	ErrStepNotSkippable      = errors.New("step cannot be skipped")
	ErrStepDataNotValidated  = errors.New("current step data has not been validated")
)

// StepConfig is the static definition of one wizard step.
// Configs are created at catalog-definition time and are read-only at runtime.
type StepConfig struct {
	Number         int           `json:"number"`          // positive, unique within the flow
	Name           StepName      `json:"name"`
	Title          string        `json:"title"`
	Description    string        `json:"description,omitempty"`
	ServiceTypes   []ServiceType `json:"service_types,omitempty"` // empty = applies to all
	RequiredFields []string      `json:"required_fields,omitempty"`
	OptionalFields []string      `json:"optional_fields,omitempty"`
	Component      string        `json:"component,omitempty"` // rendering hint for the client
	BackAllowed    bool          `json:"back_allowed"`
	Skippable      bool          `json:"skippable"`
	IsRequired     bool          `json:"is_required"` // must be completed before submission
	DisplayOrder   int           `json:"display_order"`
	ProgressWeight int           `json:"progress_weight"` // weighted completion-rate contribution
	EstimatedTime  time.Duration `json:"estimated_time,omitempty"`
}

// AppliesTo reports whether the step applies to the given service type.
// An empty ServiceTypes set means the step applies to every service type.
func (c StepConfig) AppliesTo(st ServiceType) bool {
	if len(c.ServiceTypes) == 0 {
		return true
	}
	for _, s := range c.ServiceTypes {
		if s == st {
			return true
		}
	}
	return false
}

// StepData is the validated payload collected at a single step.
type StepData map[string]interface{}

// FlowState is the live state of one onboarding session.
// There is exactly one FlowState per active session; every transition mutates it
// through the flow engine and persists the result.
type FlowState struct {
	SessionID    string                `json:"session_id"`
	SubmissionID string                `json:"submission_id,omitempty"` // set once persisted
	CurrentStep  StepName              `json:"current_step"`
	StepHistory  []StepName            `json:"step_history"` // append-only; last entry == CurrentStep
	FormData     map[StepName]StepData `json:"form_data,omitempty"`
	ServiceType  ServiceType           `json:"service_type"`
	Completed    bool                  `json:"completed"`
	Abandoned    bool                  `json:"abandoned"`
	UserAgent    string                `json:"user_agent,omitempty"`
	DeviceType   string                `json:"device_type,omitempty"`
	StartedAt    time.Time             `json:"started_at"`
	LastActiveAt time.Time             `json:"last_active_at"`
}

// Terminal reports whether the flow can no longer accept transitions.
func (f *FlowState) Terminal() bool {
	return f.Completed || f.Abandoned
}

// NavigationEvent is one entry in a step's append-only navigation log.
// Prior entries are never mutated so the log can be replayed deterministically.
type NavigationEvent struct {
	Timestamp time.Time        `json:"timestamp"`
	Action    NavigationAction `json:"action"`
	FromStep  StepName         `json:"from_step"`
	ToStep    StepName         `json:"to_step,omitempty"`
	Duration  int64            `json:"duration_ms,omitempty"` // milliseconds spent before the action
}

// FieldError describes a single field-level validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// ValidationResult is the outcome of validating one step's data.
// A step's data is atomically valid or invalid; there is no partial success.
type ValidationResult struct {
	IsValid  bool         `json:"is_valid"`
	Errors   []FieldError `json:"errors,omitempty"`
	Warnings []string     `json:"warnings,omitempty"`
}

// StepProgress is the audit record for one (session, step) pair.
// It is created when the step is first entered and only ever appended to.
type StepProgress struct {
	SessionID        string            `json:"session_id"`
	StepName         StepName          `json:"step_name"`
	Status           StepStatus        `json:"status"`
	RawInput         StepData          `json:"raw_input,omitempty"`
	ValidationErrors []FieldError      `json:"validation_errors,omitempty"`
	StartedAt        *time.Time        `json:"started_at,omitempty"`
	CompletedAt      *time.Time        `json:"completed_at,omitempty"`
	TimeSpentMs      int64             `json:"time_spent_ms"` // non-negative
	AttemptCount     int               `json:"attempt_count"` // >=1 once entered, monotonically non-decreasing
	PreviousStep     StepName          `json:"previous_step,omitempty"`
	NextStep         StepName          `json:"next_step,omitempty"`
	NavigationLog    []NavigationEvent `json:"navigation_log,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// FlowAnalytics is the aggregate view derived from a session's StepProgress records.
// It is recomputed on demand and never independently mutated.
type FlowAnalytics struct {
	SessionID           string           `json:"session_id"`
	TotalSteps          int              `json:"total_steps"`
	CompletedSteps      int              `json:"completed_steps"`
	SkippedSteps        int              `json:"skipped_steps"`
	ErrorSteps          int              `json:"error_steps"`
	TotalTimeMs         int64            `json:"total_time_ms"`
	AverageTimeMs       int64            `json:"average_time_ms"`
	FastestStep         StepName         `json:"fastest_step,omitempty"`
	SlowestStep         StepName         `json:"slowest_step,omitempty"`
	CompletionRate      int              `json:"completion_rate"` // 0-100, weighted
	AbandonedAt         StepName         `json:"abandoned_at,omitempty"`
	ConversionStatus    ConversionStatus `json:"conversion_status"`
	BackNavigationCount int              `json:"back_navigation_count"`
	ErrorCount          int              `json:"error_count"`
	RetryCount          int              `json:"retry_count"`
}

// SubmissionStatus is the CRM-side status of a persisted submission.
type SubmissionStatus string

const (
	SubmissionStatusPending    SubmissionStatus = "pending"
	SubmissionStatusReviewed   SubmissionStatus = "reviewed"
	SubmissionStatusInProgress SubmissionStatus = "in_progress"
	SubmissionStatusDone       SubmissionStatus = "done"
)

// SubmissionPriority is the CRM-side priority of a persisted submission.
type SubmissionPriority string

const (
	PriorityLow    SubmissionPriority = "low"
	PriorityMedium SubmissionPriority = "medium"
	PriorityHigh   SubmissionPriority = "high"
)

// Submission is the terminal normalized record handed off to the CRM/admin side.
// It is created once per completed flow by the submission assembler.
type Submission struct {
	ID                     string             `json:"id"`
	SessionID              string             `json:"session_id"`
	ProjectName            string             `json:"project_name"`
	CompanyName            string             `json:"company_name"`
	Industry               string             `json:"industry"`
	Description            string             `json:"description"`
	Name                   string             `json:"name,omitempty"`
	Email                  string             `json:"email"`
	Phone                  string             `json:"phone,omitempty"`
	PreferredContact       string             `json:"preferred_contact,omitempty"`
	ServiceType            ServiceType        `json:"service_type"`
	Budget                 string             `json:"budget,omitempty"`
	Timeline               string             `json:"timeline,omitempty"`
	Urgency                string             `json:"urgency"`
	ServiceSpecificData    string             `json:"service_specific_data"` // opaque JSON keyed by ServiceType
	AdditionalRequirements string             `json:"additional_requirements,omitempty"`
	Inspiration            string             `json:"inspiration,omitempty"`
	AddOns                 []string           `json:"add_ons"`
	Status                 SubmissionStatus   `json:"status"`
	Priority               SubmissionPriority `json:"priority"`
	CreatedAt              time.Time          `json:"created_at"`
	UpdatedAt              time.Time          `json:"updated_at"`
}
