// Package validation checks request input against declarative schemas.
//
// A schema is built once, when a route is registered, from a Go struct whose
// fields carry `json` names and `validate` rules (go-playground/validator):
//
//	type CreateShift struct {
//		StartsAt time.Time `json:"startsAt" validate:"required"`
//		Slots    int       `json:"slots" validate:"gte=1,lte=50"`
//		Notes    string    `json:"notes" validate:"max=500"`
//	}
//
//	schema := validation.For[CreateShift]()
//
// Reads (GET, HEAD) are decoded from the query string; everything else
// from the JSON body. An empty body decodes as an empty object so that
// required-field rules still report per-field messages.
//
// Failures are returned as a VALIDATION_ERROR whose details map each field's
// JSON path to its messages:
//
//	{"error": {"code": "VALIDATION_ERROR", "details": {"slots": ["must be at least 1"]}}}
package validation
