package tenant

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"daftar/internal/audit"
	"daftar/pkg/domain"
	dErrors "daftar/pkg/domain-errors"
	"daftar/pkg/platform/sentinel"
	"daftar/pkg/platform/tx"
)

// Service drives store lifecycle, collaborator management, and the
// verification flow.
type Service struct {
	runner   tx.Runner
	stores   Stores
	grants   Grants
	requests Requests
	resolver *AccessResolver
	audit    audit.Publisher
	logger   *slog.Logger
	now      func() time.Time
}

type Option func(*Service)

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func WithAuditPublisher(p audit.Publisher) Option {
	return func(s *Service) { s.audit = p }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(runner tx.Runner, stores Stores, grants Grants, requests Requests, resolver *AccessResolver, opts ...Option) *Service {
	s := &Service{
		runner:   runner,
		stores:   stores,
		grants:   grants,
		requests: requests,
		resolver: resolver,
		audit:    audit.Nop{},
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateStore opens a new ledger book owned by the creator.
func (s *Service) CreateStore(ctx context.Context, ownerID domain.IdentityID, name string) (Store, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Store{}, dErrors.New(dErrors.CodeValidation, "store name is required")
	}

	st := Store{
		ID:                 domain.NewStoreID(),
		Name:               name,
		OwnerID:            ownerID,
		VerificationStatus: VerificationNone,
		Plan:               PlanFree,
		CreatedAt:          s.now().UTC(),
	}
	err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.stores.Create(ctx, st); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "create store")
		}
		return s.audit.Emit(ctx, audit.ActionStoreCreated, map[string]any{
			"store_id": st.ID.String(),
			"owner_id": ownerID.String(),
		})
	})
	if err != nil {
		return Store{}, err
	}
	s.logger.InfoContext(ctx, "store created", "store_id", st.ID, "owner_id", ownerID)
	return st, nil
}

// Access resolves the caller's permissions on a store.
func (s *Service) Access(ctx context.Context, identityID domain.IdentityID, storeID domain.StoreID) (Access, error) {
	return s.resolver.Resolve(ctx, identityID, storeID)
}

// AddCollaborator grants another identity access to the store. Owner only.
// A nil perms uses the defaults: add debts and payments, no debtor deletion.
func (s *Service) AddCollaborator(ctx context.Context, actorID domain.IdentityID, storeID domain.StoreID, collaboratorID domain.IdentityID, perms *domain.Permissions) (CollaboratorGrant, error) {
	if _, err := s.resolver.ResolveOwner(ctx, actorID, storeID); err != nil {
		return CollaboratorGrant{}, err
	}
	if collaboratorID == actorID {
		return CollaboratorGrant{}, dErrors.New(dErrors.CodeValidation, "owner cannot be added as collaborator")
	}

	p := domain.DefaultCollaboratorPermissions()
	if perms != nil {
		p = *perms
	}
	grant := CollaboratorGrant{
		ID:          domain.NewGrantID(),
		StoreID:     storeID,
		IdentityID:  collaboratorID,
		Permissions: p,
		CreatedAt:   s.now().UTC(),
	}
	err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.grants.Add(ctx, grant); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.New(dErrors.CodeConflict, "identity is already a collaborator")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "add collaborator")
		}
		return s.audit.Emit(ctx, audit.ActionCollaboratorAdded, map[string]any{
			"store_id":    storeID.String(),
			"identity_id": collaboratorID.String(),
		})
	})
	if err != nil {
		return CollaboratorGrant{}, err
	}
	return grant, nil
}

// RemoveCollaborator revokes a grant. Owner only.
func (s *Service) RemoveCollaborator(ctx context.Context, actorID domain.IdentityID, storeID domain.StoreID, collaboratorID domain.IdentityID) error {
	if _, err := s.resolver.ResolveOwner(ctx, actorID, storeID); err != nil {
		return err
	}
	return s.runner.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.grants.Remove(ctx, storeID, collaboratorID); err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "collaborator not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "remove collaborator")
		}
		return s.audit.Emit(ctx, audit.ActionCollaboratorRemoved, map[string]any{
			"store_id":    storeID.String(),
			"identity_id": collaboratorID.String(),
		})
	})
}

// ListCollaborators returns all grants on the store. Any member may look.
func (s *Service) ListCollaborators(ctx context.Context, actorID domain.IdentityID, storeID domain.StoreID) ([]CollaboratorGrant, error) {
	if _, err := s.resolver.Resolve(ctx, actorID, storeID); err != nil {
		return nil, err
	}
	grants, err := s.grants.ListByStore(ctx, storeID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list collaborators")
	}
	return grants, nil
}

// SubmitVerification files a business-verification claim for review and
// flips the store's status to PENDING. Owner only.
func (s *Service) SubmitVerification(ctx context.Context, actorID domain.IdentityID, storeID domain.StoreID, documentType, proposedName string) (VerificationRequest, error) {
	documentType = strings.TrimSpace(documentType)
	proposedName = strings.TrimSpace(proposedName)
	if documentType == "" || proposedName == "" {
		return VerificationRequest{}, dErrors.New(dErrors.CodeValidation, "document type and store name are required")
	}
	access, err := s.resolver.ResolveOwner(ctx, actorID, storeID)
	if err != nil {
		return VerificationRequest{}, err
	}
	if access.Store.VerificationStatus == VerificationPending {
		return VerificationRequest{}, dErrors.New(dErrors.CodeConflict, "verification already pending")
	}

	req := VerificationRequest{
		ID:           domain.NewRequestID(),
		StoreID:      storeID,
		SubmitterID:  actorID,
		DocumentType: documentType,
		ProposedName: proposedName,
		Status:       VerificationPending,
		CreatedAt:    s.now().UTC(),
	}
	err = s.runner.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.requests.Create(ctx, req); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "create verification request")
		}
		if err := s.stores.SetVerificationPending(ctx, storeID); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "mark store verification pending")
		}
		return nil
	})
	if err != nil {
		return VerificationRequest{}, err
	}
	s.logger.InfoContext(ctx, "verification submitted", "store_id", storeID, "request_id", req.ID)
	return req, nil
}

// ListPendingVerifications returns requests awaiting review. Admin surface.
func (s *Service) ListPendingVerifications(ctx context.Context) ([]VerificationRequest, error) {
	out, err := s.requests.ListPending(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list pending verifications")
	}
	return out, nil
}

// ReviewVerification settles a pending request. Approval verifies the store,
// renames it to the proposed name, and grants a one-month trial subscription
// in the same atomic unit. Admin surface.
func (s *Service) ReviewVerification(ctx context.Context, requestID domain.RequestID, approve bool) (VerificationRequest, error) {
	var req VerificationRequest
	err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		req, err = s.requests.GetByID(ctx, requestID)
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "verification request not found")
		}
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "load verification request")
		}

		status := VerificationRejected
		if approve {
			status = VerificationApproved
		}
		if err := s.requests.Settle(ctx, requestID, status); err != nil {
			if errors.Is(err, sentinel.ErrInvalidState) {
				return dErrors.New(dErrors.CodeConflict, "verification request already reviewed")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "settle verification request")
		}
		req.Status = status

		if approve {
			end := s.now().UTC().AddDate(0, 1, 0)
			if err := s.stores.ApproveVerification(ctx, req.StoreID, req.ProposedName, end, PlanTrial.Quota()); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "approve store verification")
			}
			if err := s.audit.Emit(ctx, audit.ActionStoreVerified, map[string]any{
				"store_id":   req.StoreID.String(),
				"request_id": requestID.String(),
			}); err != nil {
				return err
			}
		} else {
			if err := s.stores.RejectVerification(ctx, req.StoreID); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "reject store verification")
			}
		}
		return s.audit.Emit(ctx, audit.ActionVerificationReviewed, map[string]any{
			"request_id": requestID.String(),
			"status":     string(req.Status),
		})
	})
	if err != nil {
		return VerificationRequest{}, err
	}
	s.logger.InfoContext(ctx, "verification reviewed", "request_id", requestID, "status", req.Status)
	return req, nil
}
