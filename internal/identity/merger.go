package identity

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"daftar/internal/audit"
	"daftar/internal/platform/metrics"
	"daftar/pkg/domain"
	dErrors "daftar/pkg/domain-errors"
	"daftar/pkg/platform/sentinel"
	"daftar/pkg/platform/tx"
)

// Merger resolves a proven phone number against the identity table. It is the
// only path that promotes an ephemeral identity to verified, and the only
// path that merges one identity into another.
//
// The rules, in order:
//   - the phone belongs to nobody: the acting identity is promoted in place;
//   - the phone belongs to the acting identity already: no-op;
//   - the phone belongs to another identity and the acting one is ephemeral:
//     everything the acting identity owns is reassigned to the canonical
//     owner and the acting row is deleted;
//   - the phone belongs to another identity and the acting one is verified:
//     both survive, the caller simply continues as the canonical owner.
//
// All of it happens inside one transaction.
type Merger struct {
	runner     tx.Runner
	identities Store
	rewriters  []ReferenceRewriter
	audit      audit.Publisher
	logger     *slog.Logger
	metrics    *metrics.Metrics
	tracer     trace.Tracer
}

type MergerOption func(*Merger)

func WithMergerLogger(l *slog.Logger) MergerOption {
	return func(m *Merger) { m.logger = l }
}

func WithMergerAuditPublisher(p audit.Publisher) MergerOption {
	return func(m *Merger) { m.audit = p }
}

func WithMergerMetrics(mx *metrics.Metrics) MergerOption {
	return func(m *Merger) { m.metrics = mx }
}

func NewMerger(runner tx.Runner, identities Store, rewriters []ReferenceRewriter, opts ...MergerOption) *Merger {
	m := &Merger{
		runner:     runner,
		identities: identities,
		rewriters:  rewriters,
		audit:      audit.Nop{},
		logger:     slog.Default(),
		tracer:     otel.Tracer("daftar/identity"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Resolve binds a proven phone to the acting identity and returns the
// identity the caller should continue the session as.
func (m *Merger) Resolve(ctx context.Context, actingID domain.IdentityID, phone string) (Identity, error) {
	ctx, span := m.tracer.Start(ctx, "identity.resolve",
		trace.WithAttributes(attribute.String("identity.id", actingID.String())))
	defer span.End()

	var result Identity
	err := m.runner.RunInTx(ctx, func(ctx context.Context) error {
		acting, err := m.identities.GetByID(ctx, actingID)
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "identity not found")
		}
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "load acting identity")
		}

		canonical, err := m.identities.GetByPhone(ctx, phone)
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			result, err = m.promote(ctx, acting, phone)
			return err
		case err != nil:
			return dErrors.Wrap(err, dErrors.CodeInternal, "load canonical identity")
		}

		if canonical.ID == acting.ID {
			result = canonical
			return nil
		}
		if acting.Verified() {
			// Two established accounts; never merge across proven phones.
			result = canonical
			return nil
		}

		result, err = m.merge(ctx, acting, canonical)
		return err
	})
	if err != nil {
		return Identity{}, err
	}
	return result, nil
}

func (m *Merger) promote(ctx context.Context, acting Identity, phone string) (Identity, error) {
	if err := m.identities.Promote(ctx, acting.ID, phone); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			// Another request bound the phone between our lookup and the
			// update. The transaction retries from the caller's side.
			return Identity{}, dErrors.New(dErrors.CodeConflict, "phone was claimed concurrently")
		}
		return Identity{}, dErrors.Wrap(err, dErrors.CodeInternal, "promote identity")
	}
	acting.Kind = KindVerified
	acting.Phone = phone

	if err := m.audit.Emit(ctx, audit.ActionIdentityPromoted, map[string]any{
		"identity_id": acting.ID.String(),
	}); err != nil {
		return Identity{}, err
	}
	m.logger.InfoContext(ctx, "identity promoted", "identity_id", acting.ID)
	return acting, nil
}

func (m *Merger) merge(ctx context.Context, acting, canonical Identity) (Identity, error) {
	for _, rw := range m.rewriters {
		if err := rw.ReassignIdentity(ctx, acting.ID, canonical.ID); err != nil {
			return Identity{}, dErrors.Wrap(err, dErrors.CodeInternal, "reassign identity references")
		}
	}
	if err := m.identities.Delete(ctx, acting.ID); err != nil {
		return Identity{}, dErrors.Wrap(err, dErrors.CodeInternal, "delete merged identity")
	}

	if err := m.audit.Emit(ctx, audit.ActionIdentityMerged, map[string]any{
		"from_identity_id": acting.ID.String(),
		"into_identity_id": canonical.ID.String(),
	}); err != nil {
		return Identity{}, err
	}
	if m.metrics != nil {
		m.metrics.IdentityMerges.Inc()
	}
	m.logger.InfoContext(ctx, "identity merged",
		"from_identity_id", acting.ID, "into_identity_id", canonical.ID)
	return canonical, nil
}
