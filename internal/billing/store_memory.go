package billing

import (
	"context"
	"sort"
	"sync"
	"time"

	"daftar/pkg/domain"
	"daftar/pkg/platform/sentinel"
)

// MemoryInvoices is the in-memory invoice store for unit tests.
type MemoryInvoices struct {
	mu      sync.Mutex
	byOrder map[string]Invoice
}

func NewMemoryInvoices() *MemoryInvoices {
	return &MemoryInvoices{byOrder: make(map[string]Invoice)}
}

func (s *MemoryInvoices) Create(_ context.Context, inv Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byOrder[inv.OrderID]; ok {
		return sentinel.ErrConflict
	}
	s.byOrder[inv.OrderID] = inv
	return nil
}

func (s *MemoryInvoices) GetByOrderID(_ context.Context, orderID string) (Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.byOrder[orderID]
	if !ok {
		return Invoice{}, sentinel.ErrNotFound
	}
	return inv, nil
}

func (s *MemoryInvoices) MarkPaidIfPending(_ context.Context, orderID, paymentID string) (Invoice, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.byOrder[orderID]
	if !ok {
		return Invoice{}, false, sentinel.ErrNotFound
	}
	if inv.Status != InvoicePending {
		return inv, false, nil
	}
	inv.Status = InvoicePaid
	if paymentID != "" {
		inv.ExternalRef = paymentID
	}
	s.byOrder[orderID] = inv
	return inv, true, nil
}

// MemoryNotifications is the in-memory notification outbox for unit tests.
type MemoryNotifications struct {
	mu    sync.Mutex
	queue map[domain.DispatchID]Notification
}

func NewMemoryNotifications() *MemoryNotifications {
	return &MemoryNotifications{queue: make(map[domain.DispatchID]Notification)}
}

func (s *MemoryNotifications) Enqueue(_ context.Context, n Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue[n.ID] = n
	return nil
}

func (s *MemoryNotifications) ListPending(_ context.Context, limit int) ([]Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Notification
	for _, n := range s.queue {
		if n.SentAt == nil {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryNotifications) MarkSent(_ context.Context, id domain.DispatchID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.queue[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	now := time.Now().UTC()
	n.SentAt = &now
	s.queue[id] = n
	return nil
}
