// Package catalog defines the static step catalog for the onboarding wizard.
//
// The catalog is the single source of truth for step ordering, applicability per
// service type, back-navigation rules, and progress weighting. Configs are defined
// once at package initialization and are read-only at runtime.
package catalog

import (
	"fmt"
	"sort"
	"time"

	"github.com/qkeluna/lunaxcode-onboarding/internal/models"
)

// steps holds every step configuration across all service types. The
// service_requirements step has one variant per service type so that each
// variant can carry its own required-field list; StepsFor resolves exactly
// one of them for a given flow.
var steps = []models.StepConfig{
	{
		Number:         1,
		Name:           models.StepServiceSelection,
		Title:          "Choose Your Service",
		Description:    "Select the type of project you want to build",
		RequiredFields: []string{"serviceType"},
		Component:      "ServicePicker",
		BackAllowed:    false,
		IsRequired:     true,
		DisplayOrder:   1,
		ProgressWeight: 10,
		EstimatedTime:  time.Minute,
	},
	{
		Number:         2,
		Name:           models.StepBasicInfo,
		Title:          "Project Details",
		Description:    "Tell us about your project and how to reach you",
		RequiredFields: []string{"projectName", "companyName", "industry", "projectDescription", "contactEmail"},
		OptionalFields: []string{"contactName", "contactPhone", "preferredContact"},
		Component:      "BasicInfoForm",
		BackAllowed:    true,
		IsRequired:     true,
		DisplayOrder:   2,
		ProgressWeight: 25,
		EstimatedTime:  5 * time.Minute,
	},
	{
		Number:         3,
		Name:           models.StepServiceRequirements,
		Title:          "Landing Page Requirements",
		Description:    "Describe the landing page you need",
		ServiceTypes:   []models.ServiceType{models.ServiceLandingPage},
		RequiredFields: []string{"pageType", "designStyle", "sections", "ctaGoal"},
		Component:      "RequirementsForm",
		BackAllowed:    true,
		IsRequired:     true,
		DisplayOrder:   3,
		ProgressWeight: 40,
		EstimatedTime:  7 * time.Minute,
	},
	{
		Number:         3,
		Name:           models.StepServiceRequirements,
		Title:          "Website Requirements",
		Description:    "Describe the website or web app you need",
		ServiceTypes:   []models.ServiceType{models.ServiceWebApp},
		RequiredFields: []string{"websiteType", "pageCount", "features", "contentSource"},
		Component:      "RequirementsForm",
		BackAllowed:    true,
		IsRequired:     true,
		DisplayOrder:   3,
		ProgressWeight: 40,
		EstimatedTime:  7 * time.Minute,
	},
	{
		Number:         3,
		Name:           models.StepServiceRequirements,
		Title:          "Mobile App Requirements",
		Description:    "Describe the mobile application you need",
		ServiceTypes:   []models.ServiceType{models.ServiceMobileApp},
		RequiredFields: []string{"appCategory", "platforms", "coreFeatures", "backend"},
		Component:      "RequirementsForm",
		BackAllowed:    true,
		IsRequired:     true,
		DisplayOrder:   3,
		ProgressWeight: 40,
		EstimatedTime:  10 * time.Minute,
	},
	{
		Number:         4,
		Name:           models.StepReview,
		Title:          "Review & Extras",
		Description:    "Review your answers and add budget, timeline, or add-ons",
		OptionalFields: []string{"budget", "timeline", "urgency", "additionalRequirements", "inspiration", "addOns"},
		Component:      "ReviewPanel",
		BackAllowed:    true,
		Skippable:      true,
		IsRequired:     false,
		DisplayOrder:   4,
		ProgressWeight: 25,
		EstimatedTime:  3 * time.Minute,
	},
	{
		// Terminal display state. Carries zero progress weight so it never
		// counts toward the weighted completion rate.
		Number:         5,
		Name:           models.StepConfirmation,
		Title:          "All Set",
		Description:    "Your project request has been submitted",
		Component:      "ConfirmationPanel",
		BackAllowed:    false,
		IsRequired:     false,
		DisplayOrder:   5,
		ProgressWeight: 0,
	},
}

// StepsFor returns the ordered list of step configs that apply to the given
// service type, sorted by display order.
func StepsFor(serviceType models.ServiceType) []models.StepConfig {
	var out []models.StepConfig
	for _, cfg := range steps {
		if cfg.AppliesTo(serviceType) {
			out = append(out, cfg)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DisplayOrder < out[j].DisplayOrder
	})
	return out
}

// Get returns the step config for the given step name under the given service
// type. A missing entry is a catalog/registry consistency fault, not a user error.
func Get(name models.StepName, serviceType models.ServiceType) (models.StepConfig, error) {
	for _, cfg := range StepsFor(serviceType) {
		if cfg.Name == name {
			return cfg, nil
		}
	}
	return models.StepConfig{}, fmt.Errorf("%w: %s for service type %s", models.ErrUnknownStep, name, serviceType)
}

// Next returns the step config following the given step for the service type.
// A nil config with a nil error means the current step is terminal.
func Next(current models.StepName, serviceType models.ServiceType) (*models.StepConfig, error) {
	ordered := StepsFor(serviceType)
	for i, cfg := range ordered {
		if cfg.Name == current {
			if i+1 >= len(ordered) {
				return nil, nil
			}
			next := ordered[i+1]
			return &next, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", models.ErrUnknownStep, current)
}

// Previous returns the step config preceding the given step, or nil when the
// current step does not allow back navigation or no prior step exists.
func Previous(current models.StepName, serviceType models.ServiceType) (*models.StepConfig, error) {
	ordered := StepsFor(serviceType)
	for i, cfg := range ordered {
		if cfg.Name == current {
			if !cfg.BackAllowed || i == 0 {
				return nil, nil
			}
			prev := ordered[i-1]
			return &prev, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", models.ErrUnknownStep, current)
}

// RequiredSteps returns the names of every step that must be completed before a
// submission can be assembled for the given service type.
func RequiredSteps(serviceType models.ServiceType) []models.StepName {
	var out []models.StepName
	for _, cfg := range StepsFor(serviceType) {
		if cfg.IsRequired {
			out = append(out, cfg.Name)
		}
	}
	return out
}

// TotalWeight returns the sum of progress weights for the service type,
// excluding the zero-weight terminal confirmation step by construction.
func TotalWeight(serviceType models.ServiceType) int {
	total := 0
	for _, cfg := range StepsFor(serviceType) {
		total += cfg.ProgressWeight
	}
	return total
}
