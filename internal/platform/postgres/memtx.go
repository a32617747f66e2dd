package postgres

import (
	"context"
	"sync"
)

// MemTxRunner is the in-memory counterpart of TxRunner: a coarse process lock
// that serializes atomic units against the in-memory stores. It provides the
// same write-write exclusion the database gives, not rollback.
type MemTxRunner struct {
	mu sync.Mutex
}

func NewMemTxRunner() *MemTxRunner {
	return &MemTxRunner{}
}

func (r *MemTxRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn(ctx)
}
