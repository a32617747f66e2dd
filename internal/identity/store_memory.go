package identity

import (
	"context"
	"sync"

	"daftar/pkg/domain"
	"daftar/pkg/platform/sentinel"
)

// MemoryStore is the in-memory identity store used by unit tests.
type MemoryStore struct {
	mu      sync.RWMutex
	byID    map[domain.IdentityID]Identity
	byPhone map[string]domain.IdentityID
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:    make(map[domain.IdentityID]Identity),
		byPhone: make(map[string]domain.IdentityID),
	}
}

func (s *MemoryStore) Create(_ context.Context, ident Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[ident.ID]; ok {
		return sentinel.ErrConflict
	}
	if ident.Phone != "" {
		if _, ok := s.byPhone[ident.Phone]; ok {
			return sentinel.ErrConflict
		}
		s.byPhone[ident.Phone] = ident.ID
	}
	s.byID[ident.ID] = ident
	return nil
}

func (s *MemoryStore) GetByID(_ context.Context, id domain.IdentityID) (Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ident, ok := s.byID[id]
	if !ok {
		return Identity{}, sentinel.ErrNotFound
	}
	return ident, nil
}

func (s *MemoryStore) GetByPhone(_ context.Context, phone string) (Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byPhone[phone]
	if !ok {
		return Identity{}, sentinel.ErrNotFound
	}
	return s.byID[id], nil
}

func (s *MemoryStore) UpdateProfile(_ context.Context, id domain.IdentityID, displayName, language string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ident, ok := s.byID[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	ident.DisplayName = displayName
	ident.Language = language
	s.byID[id] = ident
	return nil
}

func (s *MemoryStore) SetLastActiveStore(_ context.Context, id domain.IdentityID, storeID domain.StoreID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ident, ok := s.byID[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	ident.LastActiveStore = storeID
	s.byID[id] = ident
	return nil
}

func (s *MemoryStore) Promote(_ context.Context, id domain.IdentityID, phone string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ident, ok := s.byID[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	if owner, ok := s.byPhone[phone]; ok && owner != id {
		return sentinel.ErrConflict
	}
	ident.Kind = KindVerified
	ident.Phone = phone
	s.byID[id] = ident
	s.byPhone[phone] = id
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id domain.IdentityID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ident, ok := s.byID[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	if ident.Phone != "" {
		delete(s.byPhone, ident.Phone)
	}
	delete(s.byID, id)
	return nil
}
