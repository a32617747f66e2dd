package ledger

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"daftar/internal/audit"
	"daftar/internal/platform/metrics"
	"daftar/internal/tenant"
	"daftar/pkg/domain"
	dErrors "daftar/pkg/domain-errors"
	"daftar/pkg/platform/sentinel"
	"daftar/pkg/platform/tx"
)

// Engine applies, reverses, and erases ledger entries. Every mutation
// resolves the caller's access first, then runs balance movement and history
// write in one atomic unit.
type Engine struct {
	runner       tx.Runner
	debtors      Debtors
	transactions Transactions
	resolver     *tenant.AccessResolver
	audit        audit.Publisher
	logger       *slog.Logger
	metrics      *metrics.Metrics
	tracer       trace.Tracer
	now          func() time.Time
}

type Option func(*Engine)

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

func WithAuditPublisher(p audit.Publisher) Option {
	return func(e *Engine) { e.audit = p }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func NewEngine(runner tx.Runner, debtors Debtors, transactions Transactions, resolver *tenant.AccessResolver, opts ...Option) *Engine {
	e := &Engine{
		runner:       runner,
		debtors:      debtors,
		transactions: transactions,
		resolver:     resolver,
		audit:        audit.Nop{},
		logger:       slog.Default(),
		tracer:       otel.Tracer("daftar/ledger"),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CreateDebtor adds a customer to the store's book. Any member may do this.
func (e *Engine) CreateDebtor(ctx context.Context, actorID domain.IdentityID, storeID domain.StoreID, name, phone string) (Debtor, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Debtor{}, dErrors.New(dErrors.CodeValidation, "debtor name is required")
	}
	if phone != "" {
		normalized, err := domain.NormalizePhone(phone)
		if err != nil {
			return Debtor{}, err
		}
		phone = normalized
	}
	if _, err := e.resolver.Resolve(ctx, actorID, storeID); err != nil {
		return Debtor{}, err
	}

	d := Debtor{
		ID:           domain.NewDebtorID(),
		StoreID:      storeID,
		Name:         name,
		Phone:        phone,
		Balance:      decimal.Zero,
		CreatedBy:    actorID,
		LastActivity: e.now().UTC(),
	}
	if err := e.debtors.Create(ctx, d); err != nil {
		return Debtor{}, dErrors.Wrap(err, dErrors.CodeInternal, "create debtor")
	}
	e.logger.InfoContext(ctx, "debtor created", "debtor_id", d.ID, "store_id", storeID)
	return d, nil
}

// ApplyInput describes one ledger entry to apply.
type ApplyInput struct {
	ActorID     domain.IdentityID
	ActorLabel  string
	StoreID     domain.StoreID
	DebtorID    domain.DebtorID
	Type        TransactionType
	Amount      decimal.Decimal
	Description string
}

// Apply records a debt or payment: the debtor's balance moves by the signed
// delta and the entry is written with the resulting balance snapshot, both in
// one transaction.
func (e *Engine) Apply(ctx context.Context, in ApplyInput) (Transaction, error) {
	ctx, span := e.tracer.Start(ctx, "ledger.apply",
		trace.WithAttributes(
			attribute.String("debtor.id", in.DebtorID.String()),
			attribute.String("transaction.type", string(in.Type)),
		))
	defer span.End()

	if err := domain.ValidateAmount(in.Amount); err != nil {
		return Transaction{}, err
	}
	access, err := e.resolver.Resolve(ctx, in.ActorID, in.StoreID)
	if err != nil {
		return Transaction{}, err
	}
	if err := requireTypeBit(access.Permissions, in.Type); err != nil {
		return Transaction{}, err
	}

	entry := Transaction{
		ID:          domain.NewTransactionID(),
		DebtorID:    in.DebtorID,
		Type:        in.Type,
		Amount:      in.Amount,
		Description: strings.TrimSpace(in.Description),
		ActorLabel:  in.ActorLabel,
		CreatedAt:   e.now().UTC(),
	}
	err = e.runner.RunInTx(ctx, func(ctx context.Context) error {
		debtor, err := e.loadStoreDebtor(ctx, in.StoreID, in.DebtorID)
		if err != nil {
			return err
		}
		balance, err := e.debtors.AdjustBalance(ctx, debtor.ID, in.Type.Delta(in.Amount))
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "adjust balance")
		}
		entry.BalanceAfter = balance
		if err := e.transactions.Insert(ctx, entry); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "insert transaction")
		}
		return e.audit.Emit(ctx, audit.ActionTransactionApplied, map[string]any{
			"transaction_id": entry.ID.String(),
			"debtor_id":      in.DebtorID.String(),
			"type":           string(in.Type),
			"amount":         in.Amount.String(),
		})
	})
	if err != nil {
		return Transaction{}, err
	}
	if e.metrics != nil {
		e.metrics.TransactionsApplied.WithLabelValues(string(in.Type)).Inc()
	}
	e.logger.InfoContext(ctx, "transaction applied",
		"transaction_id", entry.ID, "debtor_id", in.DebtorID,
		"type", in.Type, "amount", in.Amount)
	return entry, nil
}

// Reverse undoes a ledger entry: the balance moves back by the entry's delta
// and the entry is removed from history. The permission required is the one
// that created the entry, so whoever may add debts may also take a mistaken
// debt back.
func (e *Engine) Reverse(ctx context.Context, actorID domain.IdentityID, storeID domain.StoreID, transactionID domain.TransactionID) error {
	ctx, span := e.tracer.Start(ctx, "ledger.reverse",
		trace.WithAttributes(attribute.String("transaction.id", transactionID.String())))
	defer span.End()

	access, err := e.resolver.Resolve(ctx, actorID, storeID)
	if err != nil {
		return err
	}

	err = e.runner.RunInTx(ctx, func(ctx context.Context) error {
		entry, err := e.transactions.GetByID(ctx, transactionID)
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "transaction not found")
		}
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "load transaction")
		}
		if err := requireTypeBit(access.Permissions, entry.Type); err != nil {
			return err
		}
		if _, err := e.loadStoreDebtor(ctx, storeID, entry.DebtorID); err != nil {
			return err
		}
		if _, err := e.debtors.AdjustBalance(ctx, entry.DebtorID, entry.Type.Delta(entry.Amount).Neg()); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "revert balance")
		}
		if err := e.transactions.Delete(ctx, transactionID); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "delete transaction")
		}
		return e.audit.Emit(ctx, audit.ActionTransactionReversed, map[string]any{
			"transaction_id": transactionID.String(),
			"debtor_id":      entry.DebtorID.String(),
		})
	})
	if err != nil {
		return err
	}
	if e.metrics != nil {
		e.metrics.TransactionsReversed.Inc()
	}
	e.logger.InfoContext(ctx, "transaction reversed", "transaction_id", transactionID)
	return nil
}

// DeleteDebtor erases the debtor and the whole transaction history. Requires
// the delete-debtor bit, which collaborators do not get by default.
func (e *Engine) DeleteDebtor(ctx context.Context, actorID domain.IdentityID, storeID domain.StoreID, debtorID domain.DebtorID) error {
	access, err := e.resolver.Resolve(ctx, actorID, storeID)
	if err != nil {
		return err
	}
	if !access.Permissions.DeleteDebtor {
		return dErrors.New(dErrors.CodeForbidden, "no permission to delete debtors")
	}

	err = e.runner.RunInTx(ctx, func(ctx context.Context) error {
		if _, err := e.loadStoreDebtor(ctx, storeID, debtorID); err != nil {
			return err
		}
		if err := e.debtors.Delete(ctx, debtorID); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "delete debtor")
		}
		return e.audit.Emit(ctx, audit.ActionDebtorDeleted, map[string]any{
			"debtor_id": debtorID.String(),
			"store_id":  storeID.String(),
		})
	})
	if err != nil {
		return err
	}
	if e.metrics != nil {
		e.metrics.DebtorsDeleted.Inc()
	}
	e.logger.InfoContext(ctx, "debtor deleted", "debtor_id", debtorID, "store_id", storeID)
	return nil
}

// GetDebtor returns one debtor after an access check.
func (e *Engine) GetDebtor(ctx context.Context, actorID domain.IdentityID, storeID domain.StoreID, debtorID domain.DebtorID) (Debtor, error) {
	if _, err := e.resolver.Resolve(ctx, actorID, storeID); err != nil {
		return Debtor{}, err
	}
	return e.loadStoreDebtor(ctx, storeID, debtorID)
}

// ListDebtors returns the store's book, most recently active first.
func (e *Engine) ListDebtors(ctx context.Context, actorID domain.IdentityID, storeID domain.StoreID) ([]Debtor, error) {
	if _, err := e.resolver.Resolve(ctx, actorID, storeID); err != nil {
		return nil, err
	}
	out, err := e.debtors.ListByStore(ctx, storeID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list debtors")
	}
	return out, nil
}

// ListTransactions returns a debtor's history, newest first.
func (e *Engine) ListTransactions(ctx context.Context, actorID domain.IdentityID, storeID domain.StoreID, debtorID domain.DebtorID) ([]Transaction, error) {
	if _, err := e.resolver.Resolve(ctx, actorID, storeID); err != nil {
		return nil, err
	}
	if _, err := e.loadStoreDebtor(ctx, storeID, debtorID); err != nil {
		return nil, err
	}
	out, err := e.transactions.ListByDebtor(ctx, debtorID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list transactions")
	}
	return out, nil
}

// loadStoreDebtor fetches the debtor and confirms it belongs to the store the
// caller was authorized against. A debtor in another store reads as missing.
func (e *Engine) loadStoreDebtor(ctx context.Context, storeID domain.StoreID, debtorID domain.DebtorID) (Debtor, error) {
	debtor, err := e.debtors.GetByID(ctx, debtorID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return Debtor{}, dErrors.New(dErrors.CodeNotFound, "debtor not found")
	}
	if err != nil {
		return Debtor{}, dErrors.Wrap(err, dErrors.CodeInternal, "load debtor")
	}
	if debtor.StoreID != storeID {
		return Debtor{}, dErrors.New(dErrors.CodeNotFound, "debtor not found")
	}
	return debtor, nil
}

func requireTypeBit(p domain.Permissions, t TransactionType) error {
	switch t {
	case TypeDebt:
		if !p.AddDebt {
			return dErrors.New(dErrors.CodeForbidden, "no permission to add debts")
		}
	case TypePayment:
		if !p.AddPayment {
			return dErrors.New(dErrors.CodeForbidden, "no permission to add payments")
		}
	}
	return nil
}
