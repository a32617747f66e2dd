// Package identity owns identity records and the merge path that promotes
// ephemeral identities when a phone number is proven via OTP.
package identity

import (
	"time"

	"daftar/pkg/domain"
)

// Kind tags how much trust an identity carries. Ephemeral identities are
// created on first contact with nothing but a device; verified identities
// have proven a phone number. The only way to become verified is through the
// Merger.
type Kind string

const (
	KindVerified  Kind = "verified"
	KindEphemeral Kind = "ephemeral"
)

// Identity is one account. Phone is empty for ephemeral identities and
// unique among verified ones.
type Identity struct {
	ID              domain.IdentityID
	Kind            Kind
	Phone           string
	DisplayName     string
	Language        string
	LastActiveStore domain.StoreID
	LastSeenAt      time.Time
	CreatedAt       time.Time
}

// Verified reports whether the identity has a proven phone number.
func (i Identity) Verified() bool {
	return i.Kind == KindVerified
}
