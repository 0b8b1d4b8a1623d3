package rbac

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fresh-schedules/apiframework/pkg/apierror"
)

func TestRoleLevels(t *testing.T) {
	roles := AllRoles()
	for i := 1; i < len(roles); i++ {
		assert.Greater(t, roles[i-1].Level(), roles[i].Level(), "%s should outrank %s", roles[i-1], roles[i])
	}
	assert.Equal(t, 0, Role("intern").Level())
}

func TestParseRole(t *testing.T) {
	r, err := ParseRole(" Admin ")
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, r)

	_, err = ParseRole("superuser")
	assert.Error(t, err)
}

func TestHighest(t *testing.T) {
	top, ok := Highest([]Role{RoleStaff, "ghost", RoleManager})
	assert.True(t, ok)
	assert.Equal(t, RoleManager, top)

	_, ok = Highest([]Role{"ghost"})
	assert.False(t, ok)
}

func TestSatisfies(t *testing.T) {
	tests := []struct {
		name     string
		have     []Role
		required []Role
		want     bool
	}{
		{"no requirement", nil, nil, true},
		{"exact match", []Role{RoleAdmin}, []Role{RoleAdmin}, true},
		{"higher satisfies lower", []Role{RoleOrgOwner}, []Role{RoleStaff}, true},
		{"lower fails higher", []Role{RoleStaff}, []Role{RoleManager}, false},
		{"below every required role", []Role{RoleScheduler}, []Role{RoleAdmin, RoleOrgOwner}, false},
		{"at or above any required role", []Role{RoleManager}, []Role{RoleOrgOwner, RoleScheduler}, true},
		{"highest of many used", []Role{RoleStaff, RoleAdmin}, []Role{RoleManager}, true},
		{"corporate above staff", []Role{RoleCorporate}, []Role{RoleStaff}, true},
		{"corporate below scheduler", []Role{RoleCorporate}, []Role{RoleScheduler}, false},
		{"no roles", nil, []Role{RoleStaff}, false},
		{"unknown role never satisfies", []Role{"root"}, []Role{RoleStaff}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Satisfies(tt.have, tt.required))
		})
	}
}

// Exhaustive check of the ordering property over every pair of known roles.
func TestSatisfiesMatchesHierarchy(t *testing.T) {
	for _, have := range AllRoles() {
		for _, req := range AllRoles() {
			want := have.Level() >= req.Level()
			assert.Equal(t, want, Satisfies([]Role{have}, []Role{req}), "%s vs %s", have, req)
		}
	}
}

func TestGate(t *testing.T) {
	gate := NewGate(RoleAdmin, RoleOrgOwner)

	assert.NoError(t, gate.Check([]Role{RoleOrgOwner}))
	assert.NoError(t, gate.Check([]Role{RoleAdmin}))

	err := gate.Check([]Role{RoleManager})
	require.Error(t, err)
	assert.True(t, apierror.IsCode(err, apierror.CodeInsufficientRole))
	assert.Equal(t, []Role{RoleAdmin, RoleOrgOwner}, gate.Required())
	assert.Equal(t, "gate[admin,org_owner]", gate.String())
}

func TestNewGatePanicsOnUnknownRole(t *testing.T) {
	assert.Panics(t, func() { NewGate("adminn") })
}
