package validation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"

	"github.com/fresh-schedules/apiframework/pkg/apierror"
)

// BodyField is the details key used for errors that concern the body as a
// whole rather than a single field.
const BodyField = "body"

// Schema validates raw request input and returns the decoded value.
type Schema interface {
	Validate(method string, query url.Values, body []byte) (any, error)
}

// SchemaFunc adapts a function into a Schema.
type SchemaFunc func(method string, query url.Values, body []byte) (any, error)

// Validate calls f.
func (f SchemaFunc) Validate(method string, query url.Values, body []byte) (any, error) {
	return f(method, query, body)
}

// Check is an extra rule run after the struct rules pass.
type Check[T any] func(v *T) FieldErrors

// StructSchema decodes into T and applies T's validate tags.
type StructSchema[T any] struct {
	validate *validator.Validate
	root     string
	checks   []Check[T]
}

var (
	sharedOnce     sync.Once
	sharedValidate *validator.Validate
)

func defaultValidator() *validator.Validate {
	sharedOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(jsonFieldName)
		sharedValidate = v
	})
	return sharedValidate
}

func jsonFieldName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	switch name {
	case "-":
		return ""
	case "":
		return fld.Name
	}
	return name
}

// For builds a schema for T. It panics if T is not a struct type, so a bad
// schema fails at registration instead of on the first request.
func For[T any](checks ...Check[T]) *StructSchema[T] {
	t := reflect.TypeOf((*T)(nil)).Elem()
	if t.Kind() != reflect.Struct {
		panic(fmt.Sprintf("validation: schema type %s is not a struct", t))
	}
	return &StructSchema[T]{validate: defaultValidator(), root: t.Name(), checks: checks}
}

// Validate implements Schema. The returned value is a T.
func (s *StructSchema[T]) Validate(method string, query url.Values, body []byte) (any, error) {
	v, err := s.Decode(method, query, body)
	if err != nil {
		return nil, err
	}
	return v, nil
}

// Decode is Validate with a typed result.
func (s *StructSchema[T]) Decode(method string, query url.Values, body []byte) (T, error) {
	var v T

	var fields FieldErrors
	if readsQuery(method) {
		fields = decodeQuery(query, &v)
	} else {
		fields = decodeBody(body, &v)
	}
	if fields.Any() {
		return v, fields.Err()
	}
	return v, s.ValidateValue(&v)
}

// ValidateValue applies the struct rules and checks to an already decoded
// value, such as one item of a batch.
func (s *StructSchema[T]) ValidateValue(v *T) error {
	fields := FieldErrors{}
	if err := s.validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return apierror.Internal(fmt.Errorf("validate input: %w", err))
		}
		for _, fe := range verrs {
			fields.Add(fieldPath(s.root, fe), message(fe))
		}
		return fields.Err()
	}

	for _, check := range s.checks {
		fields.Merge(check(v))
	}
	return fields.Err()
}

func readsQuery(method string) bool {
	return method == http.MethodGet || method == http.MethodHead
}

func decodeBody(body []byte, dst any) FieldErrors {
	fields := FieldErrors{}
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		trimmed = []byte("{}")
	}

	if err := json.Unmarshal(trimmed, dst); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			fields.Add(typeErr.Field, "must be of type "+jsonKind(typeErr.Type))
			return fields
		}
		fields.Add(BodyField, "malformed JSON")
	}
	return fields
}

func decodeQuery(query url.Values, dst any) FieldErrors {
	fields := FieldErrors{}

	input := make(map[string]interface{}, len(query))
	for k, vs := range query {
		if len(vs) == 1 {
			input[k] = vs[0]
		} else {
			input[k] = vs
		}
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           dst,
		TagName:          "json",
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeHookFunc("2006-01-02T15:04:05Z07:00"),
	})
	if err != nil {
		fields.Add("query", err.Error())
		return fields
	}
	if err := dec.Decode(input); err != nil {
		var merr *mapstructure.Error
		if errors.As(err, &merr) {
			for _, msg := range merr.Errors {
				fields.Add(queryErrorField(msg), "has an invalid value")
			}
		} else {
			fields.Add("query", "has an invalid value")
		}
	}
	return fields
}

// mapstructure reports "'<field>' expected type ..." style messages.
func queryErrorField(msg string) string {
	if i := strings.Index(msg, "'"); i >= 0 {
		if j := strings.Index(msg[i+1:], "'"); j >= 0 {
			if name := msg[i+1 : i+1+j]; name != "" {
				return name
			}
		}
	}
	return "query"
}

// fieldPath strips the root struct name from the namespace, so
// "CreateShift.slots" becomes "slots" and nested fields keep their dots.
// Generic type names carry package paths, so the root is matched whole.
func fieldPath(root string, fe validator.FieldError) string {
	ns := fe.Namespace()
	if root != "" && strings.HasPrefix(ns, root+".") {
		return ns[len(root)+1:]
	}
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func jsonKind(t reflect.Type) string {
	switch t.Kind() {
	case reflect.String:
		return "string"
	case reflect.Bool:
		return "boolean"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return "number"
	case reflect.Slice, reflect.Array:
		return "array"
	default:
		return "object"
	}
}
