// Package tenant owns merchant stores, collaborator grants, and the
// verification flow. Access decisions for every ledger operation go through
// the AccessResolver here.
package tenant

import (
	"time"

	"github.com/shopspring/decimal"

	"daftar/pkg/domain"
	dErrors "daftar/pkg/domain-errors"
)

// Plan is a subscription tier. FREE and TRIAL are granted, STANDARD and PRO
// are purchased.
type Plan string

const (
	PlanFree     Plan = "FREE"
	PlanTrial    Plan = "TRIAL"
	PlanStandard Plan = "STANDARD"
	PlanPro      Plan = "PRO"
)

// Quota is the monthly reminder-message allowance for the plan.
func (p Plan) Quota() int {
	if p == PlanPro {
		return 300
	}
	return 100
}

// Price returns the monthly price in TJS for purchasable plans.
func (p Plan) Price() (decimal.Decimal, error) {
	switch p {
	case PlanStandard:
		return decimal.NewFromInt(15), nil
	case PlanPro:
		return decimal.NewFromInt(25), nil
	default:
		return decimal.Decimal{}, dErrors.Newf(dErrors.CodeValidation, "plan %q is not purchasable", p)
	}
}

// ParsePaidPlan validates a plan name from external input against the
// purchasable tiers.
func ParsePaidPlan(s string) (Plan, error) {
	switch Plan(s) {
	case PlanStandard:
		return PlanStandard, nil
	case PlanPro:
		return PlanPro, nil
	default:
		return "", dErrors.Newf(dErrors.CodeValidation, "unknown plan %q", s)
	}
}

type VerificationStatus string

const (
	VerificationNone     VerificationStatus = "NONE"
	VerificationPending  VerificationStatus = "PENDING"
	VerificationApproved VerificationStatus = "APPROVED"
	VerificationRejected VerificationStatus = "REJECTED"
)

// Store is one merchant ledger book. MessageQuota/MessageUsed track the
// reminder allowance for the current subscription period.
type Store struct {
	ID                 domain.StoreID
	Name               string
	OwnerID            domain.IdentityID
	Verified           bool
	VerificationStatus VerificationStatus
	Plan               Plan
	SubscriptionEnd    *time.Time
	MessageQuota       int
	MessageUsed        int
	CreatedAt          time.Time
}

// SubscriptionActive reports whether the store has an unexpired subscription.
func (s Store) SubscriptionActive(now time.Time) bool {
	return s.SubscriptionEnd != nil && now.Before(*s.SubscriptionEnd)
}

// QuotaRemaining is the number of reminder messages left this period.
func (s Store) QuotaRemaining() int {
	if r := s.MessageQuota - s.MessageUsed; r > 0 {
		return r
	}
	return 0
}

// CollaboratorGrant lets a non-owner identity work a store's ledger with the
// granted permission bits.
type CollaboratorGrant struct {
	ID          domain.GrantID
	StoreID     domain.StoreID
	IdentityID  domain.IdentityID
	Permissions domain.Permissions
	CreatedAt   time.Time
}

// VerificationRequest is an owner's claim that the store is a real business,
// reviewed by an admin.
type VerificationRequest struct {
	ID           domain.RequestID
	StoreID      domain.StoreID
	SubmitterID  domain.IdentityID
	DocumentType string
	ProposedName string
	Status       VerificationStatus
	CreatedAt    time.Time
}
