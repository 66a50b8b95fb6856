package ledger

import (
	"regexp"
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is one normalized row of the provider's ledger, either parsed
// from an export file or fetched over the provider API. Status and type are
// kept raw; canonicalization happens on read via CanonicalStatus.
type Transaction struct {
	UID           string
	RawStatus     string
	RawType       string
	Description   string
	Amount        decimal.Decimal
	Currency      string
	PaidAt        time.Time
	CustomerEmail string
	CardBrand     string
	CardLast4     string
}

// CanonicalStatus maps the transaction's raw vocabulary onto the fixed
// status taxonomy.
func (t Transaction) CanonicalStatus() Status {
	return Canonicalize(t.RawStatus, t.RawType, t.Description)
}

var uidPattern = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// ValidUID reports whether s is a provider transaction identifier in the
// strict hex-grouped 8-4-4-4-12 form. Export files carry footer and summary
// rows; anything without a valid UID is not a transaction.
func ValidUID(s string) bool {
	return uidPattern.MatchString(s)
}

// Period is the inclusive [From, To] reconciliation window.
type Period struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

func (p Period) Contains(t time.Time) bool {
	return !t.Before(p.From) && !t.After(p.To)
}
