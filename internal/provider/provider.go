package provider

import (
	"context"
	"errors"

	"edu-payments-backend/internal/ledger"
)

// ErrNotFound is returned by GetTransaction when the provider has no record
// of the UID. Not an error condition for the engine: such records usually
// entered the store through a side channel.
var ErrNotFound = errors.New("provider: transaction not found")

// CapabilityError signals the provider cannot serve the request for this
// account — scope restrictions, rate-limit exhaustion, operator-restricted
// listings. Under auto mode the engine falls back to per-UID verification.
type CapabilityError struct {
	Reason string
}

func (e *CapabilityError) Error() string {
	return "provider capability: " + e.Reason
}

// Page is one page of the provider's transaction listing. An empty
// NextCursor means the listing is exhausted.
type Page struct {
	Transactions []ledger.Transaction
	NextCursor   string
}

// Client is the external payment provider surface the engine consumes.
type Client interface {
	ListTransactions(ctx context.Context, period ledger.Period, cursor string) (Page, error)
	GetTransaction(ctx context.Context, uid string) (*ledger.Transaction, error)
}
