package domain

// Permissions are the collaborator grant bits. The three bits are independent;
// an owner always holds all of them. Reversing a transaction requires the bit
// matching the transaction's own type (creation and undo share a bit).
type Permissions struct {
	AddDebt      bool `json:"canAddDebt"`
	AddPayment   bool `json:"canAddPayment"`
	DeleteDebtor bool `json:"canDeleteDebtor"`
}

// FullPermissions is what an owner resolves to.
func FullPermissions() Permissions {
	return Permissions{AddDebt: true, AddPayment: true, DeleteDebtor: true}
}

// DefaultCollaboratorPermissions matches the grant created when the caller
// supplies no explicit bits: record debts and payments, no debtor deletion.
func DefaultCollaboratorPermissions() Permissions {
	return Permissions{AddDebt: true, AddPayment: true, DeleteDebtor: false}
}
