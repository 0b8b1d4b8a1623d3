package validation

import (
	"fmt"
	"sort"

	"github.com/go-playground/validator/v10"

	"github.com/fresh-schedules/apiframework/pkg/apierror"
)

// FieldErrors maps a field's JSON path to its messages.
type FieldErrors map[string][]string

// Add appends msg to field.
func (f FieldErrors) Add(field, msg string) {
	f[field] = append(f[field], msg)
}

// Merge copies other into f.
func (f FieldErrors) Merge(other FieldErrors) {
	for field, msgs := range other {
		f[field] = append(f[field], msgs...)
	}
}

// Any reports whether any field has an error.
func (f FieldErrors) Any() bool { return len(f) > 0 }

// Fields returns the failing field names, sorted.
func (f FieldErrors) Fields() []string {
	out := make([]string, 0, len(f))
	for k := range f {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Err returns the errors as a VALIDATION_ERROR, or nil when empty.
func (f FieldErrors) Err() error {
	if !f.Any() {
		return nil
	}
	return apierror.Validation(f)
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_if", "required_unless", "required_with", "required_without":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "uuid", "uuid4":
		return "must be a valid UUID"
	case "url":
		return "must be a valid URL"
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "min", "gte":
		if isSized(fe) {
			return fmt.Sprintf("must contain at least %s items", fe.Param())
		}
		if fe.Kind().String() == "string" {
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max", "lte":
		if isSized(fe) {
			return fmt.Sprintf("must contain at most %s items", fe.Param())
		}
		if fe.Kind().String() == "string" {
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "lt":
		return fmt.Sprintf("must be less than %s", fe.Param())
	case "len":
		return fmt.Sprintf("must have length %s", fe.Param())
	case "datetime":
		return fmt.Sprintf("must be a datetime in format %s", fe.Param())
	case "gtfield", "gtefield":
		return "must be after " + fe.Param()
	default:
		return fmt.Sprintf("failed %q validation", fe.Tag())
	}
}

func isSized(fe validator.FieldError) bool {
	switch fe.Kind().String() {
	case "slice", "array", "map":
		return true
	}
	return false
}
