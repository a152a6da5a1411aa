package port

import "context"

// CodeSender delivers a one-time code to an out-of-band destination. The
// concrete messaging integration lives behind this boundary.
type CodeSender interface {
	SendCode(ctx context.Context, deliveryID, code string) error
}
