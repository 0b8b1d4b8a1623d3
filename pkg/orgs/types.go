package orgs

import (
	"context"
	"errors"
	"fmt"

	"github.com/fresh-schedules/apiframework/pkg/rbac"
)

// Mode controls whether an endpoint needs an organization membership.
type Mode string

const (
	ModeNone     Mode = "none"
	ModeOptional Mode = "optional"
	ModeRequired Mode = "required"
)

// ParseMode converts a config value, defaulting empty strings to ModeNone.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "":
		return ModeNone, nil
	case ModeNone, ModeOptional, ModeRequired:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown org mode %q", s)
}

// OrgContext is the caller's membership in the target organization.
// Roles is never empty.
type OrgContext struct {
	OrgID        string
	MembershipID string
	Roles        []rbac.Role
}

// HighestRole returns the caller's most privileged role.
func (o *OrgContext) HighestRole() rbac.Role {
	r, _ := rbac.Highest(o.Roles)
	return r
}

// Membership is a stored user/org binding.
type Membership struct {
	ID     string
	OrgID  string
	UserID string
	Roles  []rbac.Role
}

// ErrNotMember is returned by stores when no active membership exists.
var ErrNotMember = errors.New("not a member")

// MembershipStore looks up memberships. Implementations must honor ctx
// deadlines.
type MembershipStore interface {
	GetMembership(ctx context.Context, orgID, userID string) (*Membership, error)
}
