package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"daftar/pkg/domain"
	"daftar/pkg/platform/sentinel"
)

// MemoryDebtors is the in-memory debtor store for unit tests.
type MemoryDebtors struct {
	mu      sync.RWMutex
	debtors map[domain.DebtorID]Debtor
	txs     *MemoryTransactions
}

// NewMemoryDebtors builds a debtor store. When txs is non-nil, deleting a
// debtor drops its transactions too, mirroring the schema's cascade.
func NewMemoryDebtors(txs *MemoryTransactions) *MemoryDebtors {
	return &MemoryDebtors{debtors: make(map[domain.DebtorID]Debtor), txs: txs}
}

func (s *MemoryDebtors) Create(_ context.Context, d Debtor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.debtors[d.ID]; ok {
		return sentinel.ErrConflict
	}
	s.debtors[d.ID] = d
	return nil
}

func (s *MemoryDebtors) GetByID(_ context.Context, id domain.DebtorID) (Debtor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.debtors[id]
	if !ok {
		return Debtor{}, sentinel.ErrNotFound
	}
	return d, nil
}

func (s *MemoryDebtors) ListByStore(_ context.Context, storeID domain.StoreID) ([]Debtor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Debtor
	for _, d := range s.debtors {
		if d.StoreID == storeID {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastActivity.After(out[j].LastActivity) })
	return out, nil
}

func (s *MemoryDebtors) AdjustBalance(_ context.Context, id domain.DebtorID, delta decimal.Decimal) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.debtors[id]
	if !ok {
		return decimal.Decimal{}, sentinel.ErrNotFound
	}
	d.Balance = d.Balance.Add(delta)
	d.LastActivity = time.Now().UTC()
	s.debtors[id] = d
	return d.Balance, nil
}

func (s *MemoryDebtors) Delete(_ context.Context, id domain.DebtorID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.debtors[id]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.debtors, id)
	if s.txs != nil {
		s.txs.dropByDebtor(id)
	}
	return nil
}

func (s *MemoryDebtors) ReassignIdentity(_ context.Context, from, to domain.IdentityID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, d := range s.debtors {
		if d.CreatedBy == from {
			d.CreatedBy = to
			s.debtors[id] = d
		}
	}
	return nil
}

// MemoryTransactions is the in-memory transaction store for unit tests.
type MemoryTransactions struct {
	mu  sync.RWMutex
	txs map[domain.TransactionID]Transaction
}

func NewMemoryTransactions() *MemoryTransactions {
	return &MemoryTransactions{txs: make(map[domain.TransactionID]Transaction)}
}

func (s *MemoryTransactions) Insert(_ context.Context, t Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.txs[t.ID]; ok {
		return sentinel.ErrConflict
	}
	s.txs[t.ID] = t
	return nil
}

func (s *MemoryTransactions) GetByID(_ context.Context, id domain.TransactionID) (Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.txs[id]
	if !ok {
		return Transaction{}, sentinel.ErrNotFound
	}
	return t, nil
}

func (s *MemoryTransactions) ListByDebtor(_ context.Context, debtorID domain.DebtorID) ([]Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Transaction
	for _, t := range s.txs {
		if t.DebtorID == debtorID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryTransactions) Delete(_ context.Context, id domain.TransactionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.txs[id]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.txs, id)
	return nil
}

func (s *MemoryTransactions) dropByDebtor(debtorID domain.DebtorID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.txs {
		if t.DebtorID == debtorID {
			delete(s.txs, id)
		}
	}
}
