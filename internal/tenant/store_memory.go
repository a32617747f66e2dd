package tenant

import (
	"context"
	"sort"
	"sync"
	"time"

	"daftar/pkg/domain"
	"daftar/pkg/platform/sentinel"
)

// MemoryStores is the in-memory merchant-store implementation for unit tests.
type MemoryStores struct {
	mu     sync.RWMutex
	stores map[domain.StoreID]Store
}

func NewMemoryStores() *MemoryStores {
	return &MemoryStores{stores: make(map[domain.StoreID]Store)}
}

func (s *MemoryStores) Create(_ context.Context, st Store) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.stores[st.ID]; ok {
		return sentinel.ErrConflict
	}
	s.stores[st.ID] = st
	return nil
}

func (s *MemoryStores) GetByID(_ context.Context, id domain.StoreID) (Store, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.stores[id]
	if !ok {
		return Store{}, sentinel.ErrNotFound
	}
	return st, nil
}

func (s *MemoryStores) update(id domain.StoreID, fn func(*Store)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.stores[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	fn(&st)
	s.stores[id] = st
	return nil
}

func (s *MemoryStores) SetVerificationPending(_ context.Context, id domain.StoreID) error {
	return s.update(id, func(st *Store) {
		st.VerificationStatus = VerificationPending
	})
}

func (s *MemoryStores) ApproveVerification(_ context.Context, id domain.StoreID, name string, end time.Time, quota int) error {
	return s.update(id, func(st *Store) {
		st.Verified = true
		st.VerificationStatus = VerificationApproved
		st.Name = name
		st.Plan = PlanTrial
		e := end
		st.SubscriptionEnd = &e
		st.MessageQuota = quota
		st.MessageUsed = 0
	})
}

func (s *MemoryStores) RejectVerification(_ context.Context, id domain.StoreID) error {
	return s.update(id, func(st *Store) {
		st.Verified = false
		st.VerificationStatus = VerificationRejected
	})
}

func (s *MemoryStores) ApplySubscription(_ context.Context, id domain.StoreID, plan Plan, end time.Time, quota int) error {
	return s.update(id, func(st *Store) {
		st.Plan = plan
		e := end
		st.SubscriptionEnd = &e
		st.MessageQuota = quota
		st.MessageUsed = 0
	})
}

func (s *MemoryStores) IncrementUsage(_ context.Context, id domain.StoreID) error {
	return s.update(id, func(st *Store) {
		st.MessageUsed++
	})
}

func (s *MemoryStores) ReassignIdentity(_ context.Context, from, to domain.IdentityID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, st := range s.stores {
		if st.OwnerID == from {
			st.OwnerID = to
			s.stores[id] = st
		}
	}
	return nil
}

// MemoryGrants is the in-memory collaborator-grant implementation.
type MemoryGrants struct {
	mu     sync.RWMutex
	grants map[domain.GrantID]CollaboratorGrant
}

func NewMemoryGrants() *MemoryGrants {
	return &MemoryGrants{grants: make(map[domain.GrantID]CollaboratorGrant)}
}

func (s *MemoryGrants) Add(_ context.Context, g CollaboratorGrant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.grants {
		if existing.StoreID == g.StoreID && existing.IdentityID == g.IdentityID {
			return sentinel.ErrConflict
		}
	}
	s.grants[g.ID] = g
	return nil
}

func (s *MemoryGrants) Remove(_ context.Context, storeID domain.StoreID, identityID domain.IdentityID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, g := range s.grants {
		if g.StoreID == storeID && g.IdentityID == identityID {
			delete(s.grants, id)
			return nil
		}
	}
	return sentinel.ErrNotFound
}

func (s *MemoryGrants) Get(_ context.Context, storeID domain.StoreID, identityID domain.IdentityID) (CollaboratorGrant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, g := range s.grants {
		if g.StoreID == storeID && g.IdentityID == identityID {
			return g, nil
		}
	}
	return CollaboratorGrant{}, sentinel.ErrNotFound
}

func (s *MemoryGrants) ListByStore(_ context.Context, storeID domain.StoreID) ([]CollaboratorGrant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []CollaboratorGrant
	for _, g := range s.grants {
		if g.StoreID == storeID {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryGrants) ReassignIdentity(_ context.Context, from, to domain.IdentityID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	taken := make(map[domain.StoreID]bool)
	for _, g := range s.grants {
		if g.IdentityID == to {
			taken[g.StoreID] = true
		}
	}
	for id, g := range s.grants {
		if g.IdentityID != from {
			continue
		}
		if taken[g.StoreID] {
			delete(s.grants, id)
			continue
		}
		g.IdentityID = to
		s.grants[id] = g
	}
	return nil
}

// MemoryRequests is the in-memory verification-request implementation.
type MemoryRequests struct {
	mu       sync.RWMutex
	requests map[domain.RequestID]VerificationRequest
}

func NewMemoryRequests() *MemoryRequests {
	return &MemoryRequests{requests: make(map[domain.RequestID]VerificationRequest)}
}

func (s *MemoryRequests) Create(_ context.Context, r VerificationRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.requests[r.ID]; ok {
		return sentinel.ErrConflict
	}
	s.requests[r.ID] = r
	return nil
}

func (s *MemoryRequests) GetByID(_ context.Context, id domain.RequestID) (VerificationRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.requests[id]
	if !ok {
		return VerificationRequest{}, sentinel.ErrNotFound
	}
	return r, nil
}

func (s *MemoryRequests) ListPending(_ context.Context) ([]VerificationRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []VerificationRequest
	for _, r := range s.requests {
		if r.Status == VerificationPending {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryRequests) Settle(_ context.Context, id domain.RequestID, status VerificationStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	if r.Status != VerificationPending {
		return sentinel.ErrInvalidState
	}
	r.Status = status
	s.requests[id] = r
	return nil
}

func (s *MemoryRequests) ReassignIdentity(_ context.Context, from, to domain.IdentityID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, r := range s.requests {
		if r.SubmitterID == from {
			r.SubmitterID = to
			s.requests[id] = r
		}
	}
	return nil
}
