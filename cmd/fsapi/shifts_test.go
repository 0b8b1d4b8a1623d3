package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fresh-schedules/apiframework/pkg/apitest"
	"github.com/fresh-schedules/apiframework/pkg/batch"
	"github.com/fresh-schedules/apiframework/pkg/rbac"
	"github.com/fresh-schedules/apiframework/pkg/webhooks"
)

const token = "fedcba9876543210fedcba9876543210"

func newTestRouter(t *testing.T) (*mux.Router, *apitest.Harness, *shiftAPI) {
	h := apitest.NewHarness(t)
	h.AddMember("org-1", "sched", rbac.RoleScheduler)
	h.AddMember("org-1", "staff", rbac.RoleStaff)
	h.AddMember("org-1", "owner", rbac.RoleOrgOwner)

	api := newShiftAPI(h.Factory)
	router := mux.NewRouter()
	api.register(router.PathPrefix("/api").Subrouter())
	return router, h, api
}

func serve(router http.Handler, r *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, r)
	return rec
}

func TestCreateAndListShifts(t *testing.T) {
	router, _, _ := newTestRouter(t)

	create := apitest.NewRequest(http.MethodPost, "/api/orgs/org-1/shifts").As("sched").CSRF(token).
		Body(`{"title":"Morning","startsAt":"2026-01-05T08:00:00Z","endsAt":"2026-01-05T16:00:00Z"}`).Build()
	rec := serve(router, create)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Header().Get("Location"), "/api/orgs/org-1/shifts/")

	rec = serve(router, apitest.NewRequest(http.MethodGet, "/api/orgs/org-1/shifts?pageSize=10").As("staff").Build())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"title":"Morning"`)
	assert.Contains(t, rec.Body.String(), `"pagination"`)
}

func TestCreateShiftRejectsStaffAndBadWindow(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rec := serve(router, apitest.NewRequest(http.MethodPost, "/api/orgs/org-1/shifts").As("staff").CSRF(token).
		Body(`{"title":"Late","startsAt":"2026-01-05T08:00:00Z","endsAt":"2026-01-05T16:00:00Z"}`).Build())
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "INSUFFICIENT_ROLE")

	rec = serve(router, apitest.NewRequest(http.MethodPost, "/api/orgs/org-1/shifts").As("sched").CSRF(token).
		Body(`{"title":"Backwards","startsAt":"2026-01-05T16:00:00Z","endsAt":"2026-01-05T08:00:00Z"}`).Build())
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "endsAt")
}

func TestBatchShiftsNeedKeyAndReportPerItem(t *testing.T) {
	router, _, _ := newTestRouter(t)
	body := `{"items":[
		{"title":"Opening","startsAt":"2026-01-05T08:00:00Z","endsAt":"2026-01-05T12:00:00Z"},
		{"title":"Closing","startsAt":"2026-01-05T12:00:00Z","endsAt":"2026-01-05T10:00:00Z"},
		{"title":"X","startsAt":"2026-01-05T13:00:00Z","endsAt":"2026-01-05T14:00:00Z"}
	]}`

	rec := serve(router, apitest.NewRequest(http.MethodPost, "/api/orgs/org-1/shifts/batch").As("owner").CSRF(token).
		Body(body).Build())
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Idempotency-Key")

	rec = serve(router, apitest.NewRequest(http.MethodPost, "/api/orgs/org-1/shifts/batch").As("owner").CSRF(token).
		IdempotencyKey("batch-1").Body(body).Build())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var env apitest.Envelope[batch.Summary[Shift]]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	summary := env.Data
	assert.Equal(t, 3, summary.TotalItems)
	assert.Equal(t, 1, summary.SuccessCount)
	assert.Equal(t, 2, summary.FailureCount)
	assert.True(t, summary.PartialSuccess)

	require.Len(t, summary.Results, 3)
	assert.True(t, summary.Results[0].Success)
	require.NotNil(t, summary.Results[1].Error)
	assert.Equal(t, "VALIDATION_ERROR", summary.Results[1].Error.Code)
	assert.Contains(t, summary.Results[1].Error.Details, "endsAt")
	require.NotNil(t, summary.Results[2].Error)
	assert.Contains(t, summary.Results[2].Error.Details, "title")
}

func TestBatchShiftsRejectsEmptyBatch(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rec := serve(router, apitest.NewRequest(http.MethodPost, "/api/orgs/org-1/shifts/batch").As("owner").CSRF(token).
		IdempotencyKey("batch-empty").Body(`{"items":[]}`).Build())
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"items"`)
}

func TestSettingsNeedAdmin(t *testing.T) {
	router, _, _ := newTestRouter(t)
	body := `{"timezone":"Europe/Berlin","weekStartsOn":"monday"}`

	rec := serve(router, apitest.NewRequest(http.MethodPut, "/api/orgs/org-1/settings").As("sched").CSRF(token).Body(body).Build())
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = serve(router, apitest.NewRequest(http.MethodPut, "/api/orgs/org-1/settings").As("owner").CSRF(token).Body(body).Build())
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestContactIsRateLimited(t *testing.T) {
	router, _, _ := newTestRouter(t)
	for i := 0; i < 5; i++ {
		rec := serve(router, apitest.NewRequest(http.MethodPost, "/api/contact").
			Body(`{"email":"a@example.com","message":"hi"}`).Build())
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}
	rec := serve(router, apitest.NewRequest(http.MethodPost, "/api/contact").
		Body(`{"email":"a@example.com","message":"hi"}`).Build())
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestBillingEvent(t *testing.T) {
	_, _, api := newTestRouter(t)

	err := api.onBillingEvent(context.Background(), &webhooks.Event{
		ID: "evt-1", Type: "subscription.updated", Payload: []byte(`{"orgId":"org-1","plan":"pro"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, "pro", api.plans["org-1"])

	err = api.onBillingEvent(context.Background(), &webhooks.Event{ID: "evt-2", Payload: []byte(`{}`)})
	assert.Error(t, err)
}
