package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// schema is applied at startup and by the integration test harness. Statements
// are idempotent so repeated boots are safe.
const schema = `
CREATE TABLE IF NOT EXISTS identities (
	id UUID PRIMARY KEY,
	kind TEXT NOT NULL CHECK (kind IN ('verified', 'ephemeral')),
	phone TEXT UNIQUE,
	display_name TEXT NOT NULL DEFAULT '',
	language TEXT NOT NULL DEFAULT 'tg',
	last_active_store UUID,
	last_seen_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS stores (
	id UUID PRIMARY KEY,
	name TEXT NOT NULL,
	owner_id UUID NOT NULL REFERENCES identities(id),
	verified BOOLEAN NOT NULL DEFAULT FALSE,
	verification_status TEXT NOT NULL DEFAULT 'NONE',
	plan TEXT NOT NULL DEFAULT 'FREE',
	subscription_end TIMESTAMPTZ,
	message_quota INT NOT NULL DEFAULT 0,
	message_used INT NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS store_collaborators (
	id UUID PRIMARY KEY,
	store_id UUID NOT NULL REFERENCES stores(id) ON DELETE CASCADE,
	identity_id UUID NOT NULL,
	perm_add_debt BOOLEAN NOT NULL DEFAULT TRUE,
	perm_add_payment BOOLEAN NOT NULL DEFAULT TRUE,
	perm_delete_debtor BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (store_id, identity_id)
);

CREATE TABLE IF NOT EXISTS debtors (
	id UUID PRIMARY KEY,
	store_id UUID NOT NULL REFERENCES stores(id) ON DELETE CASCADE,
	name TEXT NOT NULL,
	phone TEXT NOT NULL DEFAULT '',
	balance NUMERIC(12,2) NOT NULL DEFAULT 0,
	created_by UUID NOT NULL,
	last_activity TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS transactions (
	id UUID PRIMARY KEY,
	debtor_id UUID NOT NULL REFERENCES debtors(id) ON DELETE CASCADE,
	type TEXT NOT NULL CHECK (type IN ('DEBT', 'PAYMENT')),
	amount NUMERIC(12,2) NOT NULL CHECK (amount > 0),
	description TEXT NOT NULL DEFAULT '',
	actor_label TEXT NOT NULL DEFAULT '',
	balance_after NUMERIC(12,2) NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS verification_requests (
	id UUID PRIMARY KEY,
	store_id UUID NOT NULL REFERENCES stores(id) ON DELETE CASCADE,
	submitter_id UUID NOT NULL,
	document_type TEXT NOT NULL,
	proposed_name TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'PENDING' CHECK (status IN ('PENDING', 'APPROVED', 'REJECTED')),
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS invoices (
	id UUID PRIMARY KEY,
	order_id TEXT NOT NULL UNIQUE,
	store_id UUID NOT NULL REFERENCES stores(id) ON DELETE CASCADE,
	amount NUMERIC(12,2) NOT NULL,
	plan TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'PENDING' CHECK (status IN ('PENDING', 'PAID')),
	external_ref TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS otp_request_log (
	id BIGSERIAL PRIMARY KEY,
	phone TEXT NOT NULL,
	source TEXT NOT NULL,
	device TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS otp_request_log_phone_idx ON otp_request_log (phone, created_at);
CREATE INDEX IF NOT EXISTS otp_request_log_source_idx ON otp_request_log (source, created_at);

CREATE TABLE IF NOT EXISTS admin_login_attempts (
	id BIGSERIAL PRIMARY KEY,
	source TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS admin_login_attempts_source_idx ON admin_login_attempts (source, created_at);

CREATE TABLE IF NOT EXISTS reminder_dispatches (
	id UUID PRIMARY KEY,
	store_id UUID NOT NULL REFERENCES stores(id) ON DELETE CASCADE,
	debtor_id UUID NOT NULL REFERENCES debtors(id) ON DELETE CASCADE,
	message_id TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS reminder_dispatches_debtor_idx ON reminder_dispatches (store_id, debtor_id, created_at DESC);

CREATE TABLE IF NOT EXISTS audit_outbox (
	id UUID PRIMARY KEY,
	action TEXT NOT NULL,
	payload JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	published_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS audit_outbox_unpublished_idx ON audit_outbox (created_at) WHERE published_at IS NULL;

CREATE TABLE IF NOT EXISTS billing_notifications (
	id UUID PRIMARY KEY,
	store_id UUID NOT NULL,
	plan TEXT NOT NULL,
	subscription_end TIMESTAMPTZ NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	sent_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS billing_notifications_pending_idx ON billing_notifications (created_at) WHERE sent_at IS NULL;
`

// EnsureSchema creates all tables and indexes if they do not exist.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
