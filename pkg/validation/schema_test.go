package validation

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fresh-schedules/apiframework/pkg/apierror"
)

type createShift struct {
	Title    string   `json:"title" validate:"required,max=20"`
	Slots    int      `json:"slots" validate:"gte=1,lte=50"`
	Role     string   `json:"role" validate:"omitempty,oneof=staff manager"`
	Contact  string   `json:"contact,omitempty" validate:"omitempty,email"`
	Tags     []string `json:"tags" validate:"max=3"`
	Location *struct {
		Name string `json:"name" validate:"required"`
	} `json:"location,omitempty"`
}

type listShifts struct {
	Page     int      `json:"page" validate:"omitempty,gte=1"`
	Status   string   `json:"status" validate:"omitempty,oneof=open closed"`
	Verbose  bool     `json:"verbose"`
	Location []string `json:"location"`
}

func details(t *testing.T, err error) map[string]any {
	t.Helper()
	require.Error(t, err)
	apiErr := apierror.From(err)
	require.Equal(t, apierror.CodeValidation, apiErr.Code)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.False(t, apiErr.Retryable)
	return apiErr.Details
}

func TestForPanicsOnNonStruct(t *testing.T) {
	assert.Panics(t, func() { For[string]() })
	assert.NotPanics(t, func() { For[createShift]() })
}

func TestValidBody(t *testing.T) {
	schema := For[createShift]()

	v, err := schema.Validate(http.MethodPost, nil, []byte(`{"title":"Morning","slots":3,"role":"staff","extra":"ignored"}`))
	require.NoError(t, err)

	in, ok := v.(createShift)
	require.True(t, ok)
	assert.Equal(t, "Morning", in.Title)
	assert.Equal(t, 3, in.Slots)
}

func TestFieldMessages(t *testing.T) {
	schema := For[createShift]()

	tests := []struct {
		name  string
		body  string
		field string
		msg   string
	}{
		{"missing required", `{"slots":1}`, "title", "is required"},
		{"too long", `{"title":"aaaaaaaaaaaaaaaaaaaaaaaaa","slots":1}`, "title", "must be at most 20 characters"},
		{"below minimum", `{"title":"x","slots":0}`, "slots", "must be at least 1"},
		{"above maximum", `{"title":"x","slots":51}`, "slots", "must be at most 50"},
		{"enum", `{"title":"x","slots":1,"role":"ceo"}`, "role", "must be one of [staff manager]"},
		{"email", `{"title":"x","slots":1,"contact":"nope"}`, "contact", "must be a valid email address"},
		{"too many items", `{"title":"x","slots":1,"tags":["a","b","c","d"]}`, "tags", "must contain at most 3 items"},
		{"nested", `{"title":"x","slots":1,"location":{}}`, "location.name", "is required"},
		{"wrong type", `{"title":"x","slots":"many"}`, "slots", "must be of type number"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := schema.Validate(http.MethodPost, nil, []byte(tt.body))
			d := details(t, err)
			assert.Equal(t, []string{tt.msg}, d[tt.field])
		})
	}
}

type envelope[T any] struct {
	Items []T `json:"items" validate:"required,dive"`
}

func TestGenericSchemaFieldPaths(t *testing.T) {
	schema := For[envelope[createShift]]()

	_, err := schema.Validate(http.MethodPost, nil, []byte(`{"items":[{"title":"ok","slots":1},{"slots":1}]}`))
	d := details(t, err)
	assert.Equal(t, []string{"is required"}, d["items[1].title"])
	assert.Len(t, d, 1)
}

func TestEmptyBodyReportsRequiredFields(t *testing.T) {
	_, err := For[createShift]().Validate(http.MethodPost, nil, nil)
	d := details(t, err)
	assert.Contains(t, d, "title")
	assert.Contains(t, d, "slots")
}

func TestMalformedJSON(t *testing.T) {
	_, err := For[createShift]().Validate(http.MethodPut, nil, []byte(`{"title":`))
	d := details(t, err)
	assert.Equal(t, []string{"malformed JSON"}, d[BodyField])
}

func TestQueryDecoding(t *testing.T) {
	schema := For[listShifts]()

	q := url.Values{}
	q.Set("page", "2")
	q.Set("status", "open")
	q.Set("verbose", "true")
	q.Add("location", "north")
	q.Add("location", "south")

	v, err := schema.Decode(http.MethodGet, q, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, v.Page)
	assert.Equal(t, "open", v.Status)
	assert.True(t, v.Verbose)
	assert.Equal(t, []string{"north", "south"}, v.Location)
}

func TestQueryValidationFailures(t *testing.T) {
	schema := For[listShifts]()

	_, err := schema.Decode(http.MethodGet, url.Values{"status": {"pending"}}, nil)
	d := details(t, err)
	assert.Equal(t, []string{"must be one of [open closed]"}, d["status"])

	_, err = schema.Decode(http.MethodGet, url.Values{"page": {"abc"}}, nil)
	d = details(t, err)
	assert.Contains(t, d, "page")
}

func TestGetIgnoresBody(t *testing.T) {
	v, err := For[listShifts]().Decode(http.MethodGet, url.Values{}, []byte(`not json`))
	require.NoError(t, err)
	assert.Zero(t, v.Page)
}

func TestChecksRunAfterStructRules(t *testing.T) {
	noMorningOvertime := func(v *createShift) FieldErrors {
		if v.Title == "Morning" && v.Slots > 10 {
			return FieldErrors{"slots": {"morning shifts take at most 10 people"}}
		}
		return nil
	}
	schema := For[createShift](noMorningOvertime)

	_, err := schema.Validate(http.MethodPost, nil, []byte(`{"title":"Morning","slots":12}`))
	d := details(t, err)
	assert.Equal(t, []string{"morning shifts take at most 10 people"}, d["slots"])

	_, err = schema.Validate(http.MethodPost, nil, []byte(`{"title":"Evening","slots":12}`))
	assert.NoError(t, err)
}

func TestSchemaFunc(t *testing.T) {
	var s Schema = SchemaFunc(func(method string, query url.Values, body []byte) (any, error) {
		return string(body), nil
	})
	v, err := s.Validate(http.MethodPost, nil, []byte("raw"))
	require.NoError(t, err)
	assert.Equal(t, "raw", v)
}

func TestFieldErrors(t *testing.T) {
	f := FieldErrors{}
	assert.NoError(t, f.Err())

	f.Add("b", "x")
	f.Merge(FieldErrors{"a": {"y"}, "b": {"z"}})
	assert.Equal(t, []string{"a", "b"}, f.Fields())
	assert.Equal(t, []string{"x", "z"}, f["b"])
	assert.True(t, apierror.IsCode(f.Err(), apierror.CodeValidation))
}
