package rbac

import (
	"fmt"
	"strings"

	"github.com/fresh-schedules/apiframework/pkg/apierror"
)

// Satisfies reports whether a caller holding have meets the required set.
// An empty required set is always satisfied.
func Satisfies(have, required []Role) bool {
	if len(required) == 0 {
		return true
	}
	top, ok := Highest(have)
	if !ok {
		return false
	}
	for _, r := range required {
		if top.AtLeast(r) {
			return true
		}
	}
	return false
}

// Gate enforces a fixed required role set.
type Gate struct {
	required []Role
}

// NewGate creates a gate. It panics on unknown roles because gates are
// built at route registration, where a typo must fail startup.
func NewGate(required ...Role) *Gate {
	for _, r := range required {
		if !r.Valid() {
			panic(fmt.Sprintf("rbac: unknown required role %q", r))
		}
	}
	return &Gate{required: append([]Role(nil), required...)}
}

// Required returns a copy of the required roles.
func (g *Gate) Required() []Role {
	return append([]Role(nil), g.required...)
}

// Check returns an INSUFFICIENT_ROLE error when have does not satisfy g.
func (g *Gate) Check(have []Role) error {
	if Satisfies(have, g.required) {
		return nil
	}
	names := make([]string, len(g.required))
	for i, r := range g.required {
		names[i] = string(r)
	}
	return apierror.InsufficientRole("").WithDetails(map[string]any{
		"required": names,
	})
}

func (g *Gate) String() string {
	names := make([]string, len(g.required))
	for i, r := range g.required {
		names[i] = string(r)
	}
	return "gate[" + strings.Join(names, ",") + "]"
}
