package orgs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/fresh-schedules/apiframework/pkg/rbac"
)

// PostgresStore reads memberships from PostgreSQL.
//
// Expected schema:
//
//	CREATE TABLE org_memberships (
//	    id         TEXT PRIMARY KEY,
//	    org_id     TEXT NOT NULL,
//	    user_id    TEXT NOT NULL,
//	    roles      TEXT[] NOT NULL,
//	    status     TEXT NOT NULL DEFAULT 'active',
//	    UNIQUE (org_id, user_id)
//	);
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a store over db.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const getMembershipQuery = `
		SELECT id, roles
		FROM org_memberships
		WHERE org_id = $1 AND user_id = $2 AND status = 'active'
	`

// GetMembership implements MembershipStore. Unknown role names in the row
// are dropped; a row left with no known roles counts as no membership.
func (s *PostgresStore) GetMembership(ctx context.Context, orgID, userID string) (*Membership, error) {
	var (
		id    string
		names []string
	)
	err := s.db.QueryRowContext(ctx, getMembershipQuery, orgID, userID).Scan(&id, pq.Array(&names))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotMember
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}

	roles := make([]rbac.Role, 0, len(names))
	for _, name := range names {
		if r, err := rbac.ParseRole(name); err == nil {
			roles = append(roles, r)
		}
	}
	if len(roles) == 0 {
		return nil, ErrNotMember
	}

	return &Membership{ID: id, OrgID: orgID, UserID: userID, Roles: roles}, nil
}
