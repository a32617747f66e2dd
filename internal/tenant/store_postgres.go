package tenant

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"daftar/internal/platform/postgres"
	"daftar/pkg/domain"
	"daftar/pkg/platform/sentinel"
	txcontext "daftar/pkg/platform/tx"
)

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func pick(ctx context.Context, db *sql.DB) execer {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return db
}

func mustAffect(res sql.Result, err error, op string) error {
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", op, err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// PostgresStores persists merchant stores.
type PostgresStores struct {
	db *sql.DB
}

func NewPostgresStores(db *sql.DB) *PostgresStores {
	return &PostgresStores{db: db}
}

const storeColumns = `id, name, owner_id, verified, verification_status, plan,
	subscription_end, message_quota, message_used, created_at`

func scanStore(row *sql.Row) (Store, error) {
	var (
		s      Store
		status string
		plan   string
		end    sql.NullTime
	)
	err := row.Scan(&s.ID, &s.Name, &s.OwnerID, &s.Verified, &status, &plan,
		&end, &s.MessageQuota, &s.MessageUsed, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Store{}, sentinel.ErrNotFound
	}
	if err != nil {
		return Store{}, fmt.Errorf("scan store: %w", err)
	}
	s.VerificationStatus = VerificationStatus(status)
	s.Plan = Plan(plan)
	if end.Valid {
		t := end.Time
		s.SubscriptionEnd = &t
	}
	return s, nil
}

func (s *PostgresStores) Create(ctx context.Context, st Store) error {
	const q = `
		INSERT INTO stores (id, name, owner_id, verified, verification_status, plan,
			subscription_end, message_quota, message_used, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	var end any
	if st.SubscriptionEnd != nil {
		end = *st.SubscriptionEnd
	}
	_, err := pick(ctx, s.db).ExecContext(ctx, q,
		st.ID, st.Name, st.OwnerID, st.Verified, string(st.VerificationStatus),
		string(st.Plan), end, st.MessageQuota, st.MessageUsed, st.CreatedAt)
	return postgres.ConflictOr(err, "create store")
}

func (s *PostgresStores) GetByID(ctx context.Context, id domain.StoreID) (Store, error) {
	q := `SELECT ` + storeColumns + ` FROM stores WHERE id = $1`
	return scanStore(pick(ctx, s.db).QueryRowContext(ctx, q, id))
}

func (s *PostgresStores) SetVerificationPending(ctx context.Context, id domain.StoreID) error {
	const q = `UPDATE stores SET verification_status = 'PENDING' WHERE id = $1`
	res, err := pick(ctx, s.db).ExecContext(ctx, q, id)
	return mustAffect(res, err, "set verification pending")
}

func (s *PostgresStores) ApproveVerification(ctx context.Context, id domain.StoreID, name string, end time.Time, quota int) error {
	const q = `
		UPDATE stores
		SET verified = TRUE, verification_status = 'APPROVED', name = $2,
			plan = 'TRIAL', subscription_end = $3, message_quota = $4, message_used = 0
		WHERE id = $1`
	res, err := pick(ctx, s.db).ExecContext(ctx, q, id, name, end, quota)
	return mustAffect(res, err, "approve verification")
}

func (s *PostgresStores) RejectVerification(ctx context.Context, id domain.StoreID) error {
	const q = `UPDATE stores SET verified = FALSE, verification_status = 'REJECTED' WHERE id = $1`
	res, err := pick(ctx, s.db).ExecContext(ctx, q, id)
	return mustAffect(res, err, "reject verification")
}

func (s *PostgresStores) ApplySubscription(ctx context.Context, id domain.StoreID, plan Plan, end time.Time, quota int) error {
	const q = `
		UPDATE stores
		SET plan = $2, subscription_end = $3, message_quota = $4, message_used = 0
		WHERE id = $1`
	res, err := pick(ctx, s.db).ExecContext(ctx, q, id, string(plan), end, quota)
	return mustAffect(res, err, "apply subscription")
}

func (s *PostgresStores) IncrementUsage(ctx context.Context, id domain.StoreID) error {
	const q = `UPDATE stores SET message_used = message_used + 1 WHERE id = $1`
	res, err := pick(ctx, s.db).ExecContext(ctx, q, id)
	return mustAffect(res, err, "increment message usage")
}

func (s *PostgresStores) ReassignIdentity(ctx context.Context, from, to domain.IdentityID) error {
	const q = `UPDATE stores SET owner_id = $2 WHERE owner_id = $1`
	if _, err := pick(ctx, s.db).ExecContext(ctx, q, from, to); err != nil {
		return fmt.Errorf("reassign store ownership: %w", err)
	}
	return nil
}

// PostgresGrants persists collaborator grants.
type PostgresGrants struct {
	db *sql.DB
}

func NewPostgresGrants(db *sql.DB) *PostgresGrants {
	return &PostgresGrants{db: db}
}

func (s *PostgresGrants) Add(ctx context.Context, g CollaboratorGrant) error {
	const q = `
		INSERT INTO store_collaborators (id, store_id, identity_id,
			perm_add_debt, perm_add_payment, perm_delete_debtor, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := pick(ctx, s.db).ExecContext(ctx, q,
		g.ID, g.StoreID, g.IdentityID,
		g.Permissions.AddDebt, g.Permissions.AddPayment, g.Permissions.DeleteDebtor,
		g.CreatedAt)
	return postgres.ConflictOr(err, "add collaborator grant")
}

func (s *PostgresGrants) Remove(ctx context.Context, storeID domain.StoreID, identityID domain.IdentityID) error {
	const q = `DELETE FROM store_collaborators WHERE store_id = $1 AND identity_id = $2`
	res, err := pick(ctx, s.db).ExecContext(ctx, q, storeID, identityID)
	return mustAffect(res, err, "remove collaborator grant")
}

func (s *PostgresGrants) Get(ctx context.Context, storeID domain.StoreID, identityID domain.IdentityID) (CollaboratorGrant, error) {
	const q = `
		SELECT id, store_id, identity_id, perm_add_debt, perm_add_payment, perm_delete_debtor, created_at
		FROM store_collaborators
		WHERE store_id = $1 AND identity_id = $2`
	var g CollaboratorGrant
	err := pick(ctx, s.db).QueryRowContext(ctx, q, storeID, identityID).Scan(
		&g.ID, &g.StoreID, &g.IdentityID,
		&g.Permissions.AddDebt, &g.Permissions.AddPayment, &g.Permissions.DeleteDebtor,
		&g.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return CollaboratorGrant{}, sentinel.ErrNotFound
	}
	if err != nil {
		return CollaboratorGrant{}, fmt.Errorf("get collaborator grant: %w", err)
	}
	return g, nil
}

func (s *PostgresGrants) ListByStore(ctx context.Context, storeID domain.StoreID) ([]CollaboratorGrant, error) {
	const q = `
		SELECT id, store_id, identity_id, perm_add_debt, perm_add_payment, perm_delete_debtor, created_at
		FROM store_collaborators
		WHERE store_id = $1
		ORDER BY created_at`
	rows, err := pick(ctx, s.db).QueryContext(ctx, q, storeID)
	if err != nil {
		return nil, fmt.Errorf("list collaborator grants: %w", err)
	}
	defer rows.Close()

	var grants []CollaboratorGrant
	for rows.Next() {
		var g CollaboratorGrant
		if err := rows.Scan(&g.ID, &g.StoreID, &g.IdentityID,
			&g.Permissions.AddDebt, &g.Permissions.AddPayment, &g.Permissions.DeleteDebtor,
			&g.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan collaborator grant: %w", err)
		}
		grants = append(grants, g)
	}
	return grants, rows.Err()
}

// ReassignIdentity moves grants to the surviving identity, dropping any that
// would collide with a grant the survivor already holds on the same store.
func (s *PostgresGrants) ReassignIdentity(ctx context.Context, from, to domain.IdentityID) error {
	ex := pick(ctx, s.db)
	const move = `
		UPDATE store_collaborators sc
		SET identity_id = $2
		WHERE sc.identity_id = $1
		  AND NOT EXISTS (
			SELECT 1 FROM store_collaborators other
			WHERE other.store_id = sc.store_id AND other.identity_id = $2
		  )`
	if _, err := ex.ExecContext(ctx, move, from, to); err != nil {
		return fmt.Errorf("reassign collaborator grants: %w", err)
	}
	const drop = `DELETE FROM store_collaborators WHERE identity_id = $1`
	if _, err := ex.ExecContext(ctx, drop, from); err != nil {
		return fmt.Errorf("drop colliding collaborator grants: %w", err)
	}
	return nil
}

// PostgresRequests persists verification requests.
type PostgresRequests struct {
	db *sql.DB
}

func NewPostgresRequests(db *sql.DB) *PostgresRequests {
	return &PostgresRequests{db: db}
}

func (s *PostgresRequests) Create(ctx context.Context, r VerificationRequest) error {
	const q = `
		INSERT INTO verification_requests (id, store_id, submitter_id, document_type, proposed_name, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := pick(ctx, s.db).ExecContext(ctx, q,
		r.ID, r.StoreID, r.SubmitterID, r.DocumentType, r.ProposedName,
		string(r.Status), r.CreatedAt)
	return postgres.ConflictOr(err, "create verification request")
}

func (s *PostgresRequests) GetByID(ctx context.Context, id domain.RequestID) (VerificationRequest, error) {
	const q = `
		SELECT id, store_id, submitter_id, document_type, proposed_name, status, created_at
		FROM verification_requests
		WHERE id = $1`
	return scanRequest(pick(ctx, s.db).QueryRowContext(ctx, q, id))
}

func scanRequest(row *sql.Row) (VerificationRequest, error) {
	var (
		r      VerificationRequest
		status string
	)
	err := row.Scan(&r.ID, &r.StoreID, &r.SubmitterID, &r.DocumentType,
		&r.ProposedName, &status, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return VerificationRequest{}, sentinel.ErrNotFound
	}
	if err != nil {
		return VerificationRequest{}, fmt.Errorf("scan verification request: %w", err)
	}
	r.Status = VerificationStatus(status)
	return r, nil
}

func (s *PostgresRequests) ListPending(ctx context.Context) ([]VerificationRequest, error) {
	const q = `
		SELECT id, store_id, submitter_id, document_type, proposed_name, status, created_at
		FROM verification_requests
		WHERE status = 'PENDING'
		ORDER BY created_at`
	rows, err := pick(ctx, s.db).QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list pending verification requests: %w", err)
	}
	defer rows.Close()

	var out []VerificationRequest
	for rows.Next() {
		var (
			r      VerificationRequest
			status string
		)
		if err := rows.Scan(&r.ID, &r.StoreID, &r.SubmitterID, &r.DocumentType,
			&r.ProposedName, &status, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan verification request: %w", err)
		}
		r.Status = VerificationStatus(status)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PostgresRequests) Settle(ctx context.Context, id domain.RequestID, status VerificationStatus) error {
	const q = `UPDATE verification_requests SET status = $2 WHERE id = $1 AND status = 'PENDING'`
	res, err := pick(ctx, s.db).ExecContext(ctx, q, id, string(status))
	if err != nil {
		return fmt.Errorf("settle verification request: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("settle verification request: rows affected: %w", err)
	}
	if n == 0 {
		// Either missing or already settled; disambiguate for the caller.
		if _, getErr := s.GetByID(ctx, id); getErr != nil {
			return getErr
		}
		return sentinel.ErrInvalidState
	}
	return nil
}

func (s *PostgresRequests) ReassignIdentity(ctx context.Context, from, to domain.IdentityID) error {
	const q = `UPDATE verification_requests SET submitter_id = $2 WHERE submitter_id = $1`
	if _, err := pick(ctx, s.db).ExecContext(ctx, q, from, to); err != nil {
		return fmt.Errorf("reassign verification requests: %w", err)
	}
	return nil
}
