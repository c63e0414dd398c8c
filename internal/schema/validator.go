package schema

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/qkeluna/lunaxcode-onboarding/internal/models"
)

// Validation error codes surfaced in FieldError.Code.
const (
	CodeRequired      = "required"
	CodeMinLength     = "min_length"
	CodeInvalidEmail  = "invalid_email"
	CodeInvalidOption = "invalid_option"
	CodeEmptyArray    = "empty_array"
	CodeInvalidType   = "invalid_type"
)

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// Validate checks the candidate data for a step against the schema resolved
// for the step name and service type. It is a pure function: no state is read
// or written beyond the registry and the input.
//
// Every violated field produces exactly one FieldError; the result is
// atomically valid or invalid. Keys in the payload that the schema does not
// declare produce warnings, not errors.
func Validate(step models.StepName, serviceType models.ServiceType, data models.StepData) (models.ValidationResult, error) {
	sch, err := Resolve(step, serviceType)
	if err != nil {
		return models.ValidationResult{}, err
	}

	result := models.ValidationResult{IsValid: true}
	known := make(map[string]bool, len(sch.Fields))

	for _, rule := range sch.Fields {
		known[rule.Name] = true
		if fieldErr := checkField(rule, data); fieldErr != nil {
			result.Errors = append(result.Errors, *fieldErr)
		}
	}

	for key := range data {
		if !known[key] {
			result.Warnings = append(result.Warnings, fmt.Sprintf("unrecognized field %q ignored", key))
		}
	}

	result.IsValid = len(result.Errors) == 0
	return result, nil
}

// checkField applies a single field rule, returning nil when the value passes.
func checkField(rule FieldRule, data models.StepData) *models.FieldError {
	raw, present := data[rule.Name]
	if !present || raw == nil {
		if rule.Required {
			return fieldError(rule.Name, CodeRequired, "%s is required", rule.Name)
		}
		return nil
	}

	switch rule.Kind {
	case KindArray:
		return checkArrayField(rule, raw)
	default:
		return checkStringField(rule, raw)
	}
}

func checkStringField(rule FieldRule, raw interface{}) *models.FieldError {
	s, ok := raw.(string)
	if !ok {
		return fieldError(rule.Name, CodeInvalidType, "%s must be a string", rule.Name)
	}
	s = strings.TrimSpace(s)

	if s == "" {
		if rule.Required {
			return fieldError(rule.Name, CodeRequired, "%s is required", rule.Name)
		}
		return nil
	}
	if rule.MinLength > 0 && len(s) < rule.MinLength {
		return fieldError(rule.Name, CodeMinLength, "%s must be at least %d characters", rule.Name, rule.MinLength)
	}
	if rule.Email && !emailPattern.MatchString(s) {
		return fieldError(rule.Name, CodeInvalidEmail, "%s must be a valid email address", rule.Name)
	}
	if len(rule.Enum) > 0 && !contains(rule.Enum, s) {
		return fieldError(rule.Name, CodeInvalidOption, "%s must be one of %s", rule.Name, strings.Join(rule.Enum, ", "))
	}
	return nil
}

func checkArrayField(rule FieldRule, raw interface{}) *models.FieldError {
	items, err := toStringSlice(raw)
	if err != nil {
		return fieldError(rule.Name, CodeInvalidType, "%s must be an array of strings", rule.Name)
	}
	if rule.Required && len(items) == 0 {
		return fieldError(rule.Name, CodeEmptyArray, "%s must have at least one selection", rule.Name)
	}
	if rule.MinItems > 0 && len(items) < rule.MinItems {
		return fieldError(rule.Name, CodeEmptyArray, "%s must have at least %d selections", rule.Name, rule.MinItems)
	}
	if len(rule.AllowedValues) > 0 {
		for _, item := range items {
			if !contains(rule.AllowedValues, item) {
				return fieldError(rule.Name, CodeInvalidOption, "%s contains invalid option %q", rule.Name, item)
			}
		}
	}
	return nil
}

// toStringSlice normalizes the two shapes an array field arrives in: a typed
// []string from internal callers, or []interface{} from decoded JSON.
func toStringSlice(raw interface{}) ([]string, error) {
	switch v := raw.(type) {
	case []string:
		return v, nil
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("non-string array element %v", item)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("value %v is not an array", raw)
	}
}

func fieldError(field, code, format string, args ...interface{}) *models.FieldError {
	return &models.FieldError{
		Field:   field,
		Message: fmt.Sprintf(format, args...),
		Code:    code,
	}
}

func contains(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}
