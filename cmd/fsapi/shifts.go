package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/fresh-schedules/apiframework/pkg/apierror"
	"github.com/fresh-schedules/apiframework/pkg/batch"
	"github.com/fresh-schedules/apiframework/pkg/endpoint"
	"github.com/fresh-schedules/apiframework/pkg/httputil"
	"github.com/fresh-schedules/apiframework/pkg/observability"
	"github.com/fresh-schedules/apiframework/pkg/orgs"
	"github.com/fresh-schedules/apiframework/pkg/ratelimit"
	"github.com/fresh-schedules/apiframework/pkg/rbac"
	"github.com/fresh-schedules/apiframework/pkg/validation"
	"github.com/fresh-schedules/apiframework/pkg/webhooks"
)

// Shift is the sample resource served by this binary.
type Shift struct {
	ID        string    `json:"id"`
	OrgID     string    `json:"orgId"`
	Title     string    `json:"title"`
	StartsAt  time.Time `json:"startsAt"`
	EndsAt    time.Time `json:"endsAt"`
	CreatedBy string    `json:"createdBy"`
}

type shiftInput struct {
	Title    string    `json:"title" validate:"required,min=2,max=120"`
	StartsAt time.Time `json:"startsAt" validate:"required"`
	EndsAt   time.Time `json:"endsAt" validate:"required"`
}

func checkShiftWindow(in *shiftInput) validation.FieldErrors {
	fe := validation.FieldErrors{}
	if !in.StartsAt.IsZero() && !in.EndsAt.After(in.StartsAt) {
		fe.Add("endsAt", "must be after startsAt")
	}
	return fe
}

type listQuery struct {
	Page     int    `json:"page" validate:"omitempty,gte=1"`
	PageSize int    `json:"pageSize" validate:"omitempty,gte=1,lte=100"`
	Title    string `json:"title" validate:"omitempty,max=120"`
}

type orgSettings struct {
	Timezone     string `json:"timezone" validate:"required"`
	WeekStartsOn string `json:"weekStartsOn" validate:"required,oneof=monday sunday"`
}

type contactInput struct {
	Email   string `json:"email" validate:"required,email"`
	Message string `json:"message" validate:"required,max=2000"`
}

// shiftAPI keeps shifts in memory. A real deployment backs it with the
// document store.
type shiftAPI struct {
	factory *endpoint.Factory
	item    *validation.StructSchema[shiftInput]

	mu       sync.RWMutex
	shifts   map[string][]Shift
	settings map[string]orgSettings
	plans    map[string]string
}

func newShiftAPI(f *endpoint.Factory) *shiftAPI {
	return &shiftAPI{
		factory:  f,
		item:     validation.For[shiftInput](checkShiftWindow),
		shifts:   make(map[string][]Shift),
		settings: make(map[string]orgSettings),
		plans:    make(map[string]string),
	}
}

func (a *shiftAPI) register(r *mux.Router) {
	f := a.factory

	r.Handle("/me", f.New(endpoint.Authenticated(endpoint.Config{
		Name:    "me.show",
		Handler: a.me,
	}))).Methods(http.MethodGet)

	r.Handle("/orgs/{orgId}/shifts", f.New(endpoint.OrgScoped(endpoint.Config{
		Name:    "shifts.list",
		Input:   validation.For[listQuery](),
		Handler: a.list,
	}))).Methods(http.MethodGet)

	r.Handle("/orgs/{orgId}/shifts", f.New(endpoint.OrgScoped(endpoint.Config{
		Name:      "shifts.create",
		Roles:     []rbac.Role{rbac.RoleScheduler},
		RateLimit: rateLimit(60, time.Minute),
		Input:     validation.For[shiftInput](checkShiftWindow),
		Handler:   a.create,
	}))).Methods(http.MethodPost)

	r.Handle("/orgs/{orgId}/shifts/batch", f.New(endpoint.OrgScoped(endpoint.Config{
		Name:        "shifts.batch",
		Roles:       []rbac.Role{rbac.RoleManager},
		Input:       validation.For[batch.Request[shiftInput]](),
		Idempotency: endpoint.IdempotencyPolicy{Required: true},
		Handler:     a.createBatch,
	}))).Methods(http.MethodPost)

	r.Handle("/orgs/{orgId}/settings", f.New(endpoint.Admin(endpoint.Config{
		Name:    "settings.update",
		Input:   validation.For[orgSettings](),
		Handler: a.updateSettings,
	}))).Methods(http.MethodPut)

	r.Handle("/contact", f.New(endpoint.RateLimited(5, time.Minute)(endpoint.Public(endpoint.Config{
		Name:    "contact.send",
		Input:   validation.For[contactInput](),
		Handler: a.contact,
	})))).Methods(http.MethodPost)
}

func rateLimit(max int, window time.Duration) *ratelimit.Limit {
	return &ratelimit.Limit{Max: max, Window: window}
}

func (a *shiftAPI) me(_ context.Context, req *endpoint.Request) (endpoint.Result, error) {
	ac := req.Context.Auth
	return endpoint.Value(map[string]any{
		"userId":        ac.UserID,
		"email":         ac.Email,
		"emailVerified": ac.EmailVerified,
	}), nil
}

func (a *shiftAPI) list(_ context.Context, req *endpoint.Request) (endpoint.Result, error) {
	q, _ := endpoint.InputAs[listQuery](req)
	p := httputil.ParsePagination(req.HTTP)
	orgID := req.Context.OrgID()

	a.mu.RLock()
	var matched []Shift
	for _, s := range a.shifts[orgID] {
		if q.Title == "" || s.Title == q.Title {
			matched = append(matched, s)
		}
	}
	a.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool { return matched[i].StartsAt.Before(matched[j].StartsAt) })

	page := []Shift{}
	if off := p.Offset(); off < len(matched) {
		end := off + p.PageSize
		if end > len(matched) {
			end = len(matched)
		}
		page = matched[off:end]
	}
	return endpoint.Paged(page, httputil.NewPaginationMeta(p, int64(len(matched)))), nil
}

func (a *shiftAPI) add(orgID, userID string, in shiftInput) Shift {
	s := Shift{
		ID:        uuid.NewString(),
		OrgID:     orgID,
		Title:     in.Title,
		StartsAt:  in.StartsAt,
		EndsAt:    in.EndsAt,
		CreatedBy: userID,
	}
	a.mu.Lock()
	a.shifts[orgID] = append(a.shifts[orgID], s)
	a.mu.Unlock()
	return s
}

func (a *shiftAPI) create(_ context.Context, req *endpoint.Request) (endpoint.Result, error) {
	in, _ := endpoint.InputAs[shiftInput](req)
	s := a.add(req.Context.OrgID(), req.Context.UserID(), in)

	resp, err := httputil.NewJSON(http.StatusCreated, map[string]any{"data": s})
	if err != nil {
		return endpoint.Result{}, err
	}
	resp.Header.Set("Location", fmt.Sprintf("/api/orgs/%s/shifts/%s", s.OrgID, s.ID))
	return endpoint.Raw(resp), nil
}

func (a *shiftAPI) createBatch(ctx context.Context, req *endpoint.Request) (endpoint.Result, error) {
	in, _ := endpoint.InputAs[batch.Request[shiftInput]](req)
	orgID, userID := req.Context.OrgID(), req.Context.UserID()

	p := batch.NewProcessor[shiftInput, Shift]()
	p.ContinueOnError = true
	p.Metrics = a.factory.Metrics

	summary, err := p.Process(ctx, in.Items, func(_ context.Context, _ int, item shiftInput) (Shift, error) {
		if err := a.item.ValidateValue(&item); err != nil {
			return Shift{}, err
		}
		return a.add(orgID, userID, item), nil
	})
	if err != nil {
		return endpoint.Result{}, err
	}
	return endpoint.Value(summary), nil
}

func (a *shiftAPI) updateSettings(_ context.Context, req *endpoint.Request) (endpoint.Result, error) {
	in, _ := endpoint.InputAs[orgSettings](req)
	if _, err := time.LoadLocation(in.Timezone); err != nil {
		return endpoint.Result{}, apierror.Validation(map[string][]string{"timezone": {"must be an IANA time zone"}})
	}
	a.mu.Lock()
	a.settings[req.Context.OrgID()] = in
	a.mu.Unlock()
	return endpoint.Value(in), nil
}

func (a *shiftAPI) contact(ctx context.Context, req *endpoint.Request) (endpoint.Result, error) {
	in, _ := endpoint.InputAs[contactInput](req)
	observability.FromContext(ctx).WithField("from", in.Email).Info("Contact message received")
	return endpoint.Value(map[string]bool{"queued": true}), nil
}

type billingPayload struct {
	OrgID string `json:"orgId"`
	Plan  string `json:"plan"`
}

func (a *shiftAPI) onBillingEvent(ctx context.Context, ev *webhooks.Event) error {
	var p billingPayload
	if err := json.Unmarshal(ev.Payload, &p); err != nil {
		return apierror.Validation(map[string][]string{"payload": {"malformed JSON"}})
	}
	if p.OrgID == "" {
		return apierror.Validation(map[string][]string{"payload.orgId": {"is required"}})
	}
	a.mu.Lock()
	a.plans[p.OrgID] = p.Plan
	a.mu.Unlock()
	observability.FromContext(ctx).WithFields(map[string]interface{}{
		"org_id": p.OrgID,
		"plan":   p.Plan,
	}).Infof("Applied %s", ev.Type)
	return nil
}

// seedMembers gives the in-memory store a demo organization.
func seedMembers(store *orgs.MemoryStore) {
	store.Put(&orgs.Membership{ID: "m-demo-owner", OrgID: "demo", UserID: "demo-owner", Roles: []rbac.Role{rbac.RoleOrgOwner}})
	store.Put(&orgs.Membership{ID: "m-demo-staff", OrgID: "demo", UserID: "demo-staff", Roles: []rbac.Role{rbac.RoleStaff}})
}
