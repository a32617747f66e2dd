// Package domain holds shared value types: typed IDs, permission bits, money
// amounts, and phone normalization. Typed IDs prevent cross-entity assignment
// at compile time; parse helpers enforce validity at trust boundaries.
package domain

import (
	"database/sql/driver"

	"github.com/google/uuid"

	dErrors "daftar/pkg/domain-errors"
)

// Typed IDs. Construct from external input via the ParseXxxID helpers; direct
// casting bypasses validation and is reserved for code that already holds a
// valid UUID.
type (
	IdentityID    uuid.UUID
	StoreID       uuid.UUID
	DebtorID      uuid.UUID
	TransactionID uuid.UUID
	GrantID       uuid.UUID
	RequestID     uuid.UUID
	InvoiceID     uuid.UUID
	DispatchID    uuid.UUID
)

func parseUUID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id cannot be empty")
	}
	if len(s) > 64 {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id too long")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid id")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id cannot be nil")
	}
	return u, nil
}

func ParseIdentityID(s string) (IdentityID, error) {
	u, err := parseUUID(s)
	return IdentityID(u), err
}

func ParseStoreID(s string) (StoreID, error) {
	u, err := parseUUID(s)
	return StoreID(u), err
}

func ParseDebtorID(s string) (DebtorID, error) {
	u, err := parseUUID(s)
	return DebtorID(u), err
}

func ParseTransactionID(s string) (TransactionID, error) {
	u, err := parseUUID(s)
	return TransactionID(u), err
}

func ParseRequestID(s string) (RequestID, error) {
	u, err := parseUUID(s)
	return RequestID(u), err
}

func NewIdentityID() IdentityID       { return IdentityID(uuid.New()) }
func NewStoreID() StoreID             { return StoreID(uuid.New()) }
func NewDebtorID() DebtorID           { return DebtorID(uuid.New()) }
func NewTransactionID() TransactionID { return TransactionID(uuid.New()) }
func NewGrantID() GrantID             { return GrantID(uuid.New()) }
func NewRequestID() RequestID         { return RequestID(uuid.New()) }
func NewInvoiceID() InvoiceID         { return InvoiceID(uuid.New()) }
func NewDispatchID() DispatchID       { return DispatchID(uuid.New()) }

func (id IdentityID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id IdentityID) String() string { return uuid.UUID(id).String() }

func (id StoreID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id StoreID) String() string { return uuid.UUID(id).String() }

func (id DebtorID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id DebtorID) String() string { return uuid.UUID(id).String() }

func (id TransactionID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id TransactionID) String() string { return uuid.UUID(id).String() }

func (id GrantID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id GrantID) String() string { return uuid.UUID(id).String() }

func (id RequestID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id RequestID) String() string { return uuid.UUID(id).String() }

func (id InvoiceID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id InvoiceID) String() string { return uuid.UUID(id).String() }

func (id DispatchID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id DispatchID) String() string { return uuid.UUID(id).String() }

// Defined types do not inherit uuid.UUID's methods, so each ID delegates the
// database and text codecs explicitly.

func (id IdentityID) Value() (driver.Value, error)  { return uuid.UUID(id).Value() }
func (id *IdentityID) Scan(src any) error           { return (*uuid.UUID)(id).Scan(src) }
func (id IdentityID) MarshalText() ([]byte, error)  { return uuid.UUID(id).MarshalText() }
func (id *IdentityID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }

func (id StoreID) Value() (driver.Value, error)  { return uuid.UUID(id).Value() }
func (id *StoreID) Scan(src any) error           { return (*uuid.UUID)(id).Scan(src) }
func (id StoreID) MarshalText() ([]byte, error)  { return uuid.UUID(id).MarshalText() }
func (id *StoreID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }

func (id DebtorID) Value() (driver.Value, error)  { return uuid.UUID(id).Value() }
func (id *DebtorID) Scan(src any) error           { return (*uuid.UUID)(id).Scan(src) }
func (id DebtorID) MarshalText() ([]byte, error)  { return uuid.UUID(id).MarshalText() }
func (id *DebtorID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }

func (id TransactionID) Value() (driver.Value, error)  { return uuid.UUID(id).Value() }
func (id *TransactionID) Scan(src any) error           { return (*uuid.UUID)(id).Scan(src) }
func (id TransactionID) MarshalText() ([]byte, error)  { return uuid.UUID(id).MarshalText() }
func (id *TransactionID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }

func (id GrantID) Value() (driver.Value, error)  { return uuid.UUID(id).Value() }
func (id *GrantID) Scan(src any) error           { return (*uuid.UUID)(id).Scan(src) }
func (id GrantID) MarshalText() ([]byte, error)  { return uuid.UUID(id).MarshalText() }
func (id *GrantID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }

func (id RequestID) Value() (driver.Value, error)  { return uuid.UUID(id).Value() }
func (id *RequestID) Scan(src any) error           { return (*uuid.UUID)(id).Scan(src) }
func (id RequestID) MarshalText() ([]byte, error)  { return uuid.UUID(id).MarshalText() }
func (id *RequestID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }

func (id InvoiceID) Value() (driver.Value, error)  { return uuid.UUID(id).Value() }
func (id *InvoiceID) Scan(src any) error           { return (*uuid.UUID)(id).Scan(src) }
func (id InvoiceID) MarshalText() ([]byte, error)  { return uuid.UUID(id).MarshalText() }
func (id *InvoiceID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }

func (id DispatchID) Value() (driver.Value, error)  { return uuid.UUID(id).Value() }
func (id *DispatchID) Scan(src any) error           { return (*uuid.UUID)(id).Scan(src) }
func (id DispatchID) MarshalText() ([]byte, error)  { return uuid.UUID(id).MarshalText() }
func (id *DispatchID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }
