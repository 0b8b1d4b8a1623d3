package orgs

import (
	"context"
	"sync"
)

// MemoryStore keeps memberships in a map.
type MemoryStore struct {
	mu      sync.RWMutex
	members map[string]*Membership
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{members: make(map[string]*Membership)}
}

func memberKey(orgID, userID string) string {
	return orgID + "\x00" + userID
}

// Put adds or replaces a membership.
func (s *MemoryStore) Put(m *Membership) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *m
	s.members[memberKey(m.OrgID, m.UserID)] = &cp
}

// Remove deletes a membership.
func (s *MemoryStore) Remove(orgID, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.members, memberKey(orgID, userID))
}

// GetMembership implements MembershipStore.
func (s *MemoryStore) GetMembership(ctx context.Context, orgID, userID string) (*Membership, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.members[memberKey(orgID, userID)]
	if !ok || len(m.Roles) == 0 {
		return nil, ErrNotMember
	}
	cp := *m
	return &cp, nil
}
