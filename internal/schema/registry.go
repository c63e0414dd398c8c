// Package schema declares the per-step validation schemas for the onboarding
// wizard and resolves them by step name and service type.
//
// Every step except service_requirements has a single static schema. The
// service_requirements schema is a discriminated dispatch on the flow's
// ServiceType, resolved through an exhaustive switch that fails loudly on an
// unhandled case rather than falling back silently.
package schema

import (
	"fmt"
	"log/slog"

	"github.com/qkeluna/lunaxcode-onboarding/internal/models"
)

// FieldKind describes the expected shape of a field value.
type FieldKind string

const (
	// KindString expects a string value.
	KindString FieldKind = "string"
	// KindArray expects an array of strings (multi-select).
	KindArray FieldKind = "array"
)

// FieldRule declares the validation constraints for a single field.
type FieldRule struct {
	Name          string
	Kind          FieldKind
	Required      bool
	MinLength     int      // minimum length for string fields
	Email         bool     // string must be a plausible email address
	Enum          []string // string must be one of these values
	MinItems      int      // minimum number of elements for array fields
	AllowedValues []string // array members must be drawn from this set
}

// Schema is the full validation rule set for one step (and, for
// service_requirements, one service type).
type Schema struct {
	Step        models.StepName
	ServiceType models.ServiceType // empty for service-type-independent steps
	Fields      []FieldRule
}

var serviceSelectionSchema = Schema{
	Step: models.StepServiceSelection,
	Fields: []FieldRule{
		{Name: "serviceType", Kind: KindString, Required: true, Enum: []string{
			string(models.ServiceLandingPage), string(models.ServiceWebApp), string(models.ServiceMobileApp),
		}},
	},
}

var basicInfoSchema = Schema{
	Step: models.StepBasicInfo,
	Fields: []FieldRule{
		{Name: "projectName", Kind: KindString, Required: true},
		{Name: "companyName", Kind: KindString, Required: true},
		{Name: "industry", Kind: KindString, Required: true},
		{Name: "projectDescription", Kind: KindString, Required: true, MinLength: 10},
		{Name: "contactEmail", Kind: KindString, Required: true, Email: true},
		{Name: "contactName", Kind: KindString},
		{Name: "contactPhone", Kind: KindString},
		{Name: "preferredContact", Kind: KindString, Enum: []string{"email", "phone", "whatsapp"}},
	},
}

var landingPageSchema = Schema{
	Step:        models.StepServiceRequirements,
	ServiceType: models.ServiceLandingPage,
	Fields: []FieldRule{
		{Name: "pageType", Kind: KindString, Required: true},
		{Name: "designStyle", Kind: KindString, Required: true},
		{Name: "sections", Kind: KindArray, Required: true, MinItems: 1},
		{Name: "ctaGoal", Kind: KindString, Required: true},
	},
}

var webAppSchema = Schema{
	Step:        models.StepServiceRequirements,
	ServiceType: models.ServiceWebApp,
	Fields: []FieldRule{
		{Name: "websiteType", Kind: KindString, Required: true},
		{Name: "pageCount", Kind: KindString, Required: true, Enum: []string{"1-5", "6-10", "11-20", "20+"}},
		{Name: "features", Kind: KindArray, Required: true, MinItems: 1},
		{Name: "contentSource", Kind: KindString, Required: true},
	},
}

var mobileAppSchema = Schema{
	Step:        models.StepServiceRequirements,
	ServiceType: models.ServiceMobileApp,
	Fields: []FieldRule{
		{Name: "appCategory", Kind: KindString, Required: true},
		{Name: "platforms", Kind: KindArray, Required: true, MinItems: 1, AllowedValues: []string{"ios", "android", "both"}},
		{Name: "coreFeatures", Kind: KindArray, Required: true, MinItems: 1},
		{Name: "backend", Kind: KindArray, Required: true, MinItems: 1},
	},
}

var reviewSchema = Schema{
	Step: models.StepReview,
	Fields: []FieldRule{
		{Name: "budget", Kind: KindString},
		{Name: "timeline", Kind: KindString},
		{Name: "urgency", Kind: KindString, Enum: []string{"low", "medium", "high"}},
		{Name: "additionalRequirements", Kind: KindString},
		{Name: "inspiration", Kind: KindString},
		{Name: "addOns", Kind: KindArray},
	},
}

// Confirmation is a terminal display state; it collects no data.
var confirmationSchema = Schema{
	Step: models.StepConfirmation,
}

// Resolve returns the validation schema for the given step name. The service
// type is only consulted for service_requirements; every other step has a
// single static schema.
//
// An unknown service type on service_requirements returns ErrSchemaNotFound.
// ServiceType is constrained at step 1, so hitting that path indicates a
// catalog/registry mismatch and is treated as a fatal condition by callers.
func Resolve(step models.StepName, serviceType models.ServiceType) (Schema, error) {
	switch step {
	case models.StepServiceSelection:
		return serviceSelectionSchema, nil
	case models.StepBasicInfo:
		return basicInfoSchema, nil
	case models.StepReview:
		return reviewSchema, nil
	case models.StepConfirmation:
		return confirmationSchema, nil
	case models.StepServiceRequirements:
		switch serviceType {
		case models.ServiceLandingPage:
			return landingPageSchema, nil
		case models.ServiceWebApp:
			return webAppSchema, nil
		case models.ServiceMobileApp:
			return mobileAppSchema, nil
		default:
			slog.Error("schema.Resolve: no requirements schema for service type", "service_type", serviceType)
			return Schema{}, fmt.Errorf("%w: %s/%s", models.ErrSchemaNotFound, step, serviceType)
		}
	default:
		slog.Error("schema.Resolve: unknown step", "step", step)
		return Schema{}, fmt.Errorf("%w: %s", models.ErrUnknownStep, step)
	}
}
