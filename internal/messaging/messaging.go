// Package messaging defines the outbound SMS capability. The gateway wire
// format lives in the osonsms subpackage; everything else depends only on the
// Sender interface.
package messaging

import "context"

// Status is the delivery state reported by the gateway for a sent message.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusDelivered Status = "DELIVERED"
	StatusFailed    Status = "FAILED"
	StatusUnknown   Status = "UNKNOWN"
)

// Sender dispatches messages and answers delivery-status queries.
type Sender interface {
	// Send dispatches text to a normalized phone number and returns the
	// gateway's message id.
	Send(ctx context.Context, phone, text string) (string, error)
	// QueryStatus asks the gateway for the delivery state of a previously
	// sent message. Transport failures degrade to StatusUnknown, not error.
	QueryStatus(ctx context.Context, messageID string) (Status, error)
}
