package matching

import (
	"strings"

	"github.com/shopspring/decimal"

	"edu-payments-backend/internal/ledger"
	"edu-payments-backend/internal/models"
)

type Classification string

const (
	ClassMatched        Classification = "matched"
	ClassMissingInStore Classification = "missing_in_store"
	ClassExtraInStore   Classification = "extra_in_store"
	ClassMismatched     Classification = "mismatched"
)

type MismatchType string

const (
	MismatchNone     MismatchType = ""
	MismatchStatus   MismatchType = "status"
	MismatchAmount   MismatchType = "amount"
	MismatchTxType   MismatchType = "type"
	MismatchMultiple MismatchType = "multiple"
)

// amountTolerance is the agreement window for amounts: one minor currency
// unit, absorbing provider rounding.
var amountTolerance = decimal.RequireFromString("0.01")

// FieldDelta is one store-vs-ledger field disagreement on a mismatched pair.
type FieldDelta struct {
	Field  string `json:"field"`
	Store  string `json:"store"`
	Ledger string `json:"ledger"`
}

// Entry is one diffed UID. Ledger and Record point into the diff inputs;
// either may be nil depending on the classification.
type Entry struct {
	UID      string         `json:"uid"`
	Class    Classification `json:"class"`
	Mismatch MismatchType   `json:"mismatch,omitempty"`
	Deltas   []FieldDelta   `json:"deltas,omitempty"`
	Ledger   *ledger.Transaction
	Record   *models.PaymentRecord
}

// Diff is the full comparison of a canonicalized ledger snapshot against the
// store snapshot for the same period. Set ordering preserves input order, so
// identical snapshots always produce an identical Diff.
type Diff struct {
	Matched        []Entry
	MissingInStore []Entry
	ExtraInStore   []Entry
	Mismatched     []Entry

	// Absolute-amount sums per set.
	MatchedSum    decimal.Decimal
	MissingSum    decimal.Decimal
	ExtraSum      decimal.Decimal
	MismatchedSum decimal.Decimal

	// Per-canonical-status amount rollups for each side.
	LedgerTotals map[ledger.Status]decimal.Decimal
	StoreTotals  map[ledger.Status]decimal.Decimal

	// NetRevenue is the ledger side's successes minus refunds minus
	// cancellations.
	NetRevenue decimal.Decimal
}

// Compute diffs ledger transactions against store records by UID equality
// only. Both inputs are read-only snapshots; the result's element order
// follows the ledger input for matched/missing/mismatched and the store
// input for extra.
func Compute(ledgerTxs []ledger.Transaction, records []models.PaymentRecord) Diff {
	diff := Diff{
		MatchedSum:    decimal.Zero,
		MissingSum:    decimal.Zero,
		ExtraSum:      decimal.Zero,
		MismatchedSum: decimal.Zero,
		LedgerTotals:  make(map[ledger.Status]decimal.Decimal),
		StoreTotals:   make(map[ledger.Status]decimal.Decimal),
		NetRevenue:    decimal.Zero,
	}

	byUID := make(map[string]*models.PaymentRecord, len(records))
	for i := range records {
		byUID[strings.ToLower(records[i].ProviderUID)] = &records[i]
	}

	seen := make(map[string]bool, len(ledgerTxs))
	for i := range ledgerTxs {
		tx := &ledgerTxs[i]
		seen[tx.UID] = true

		st := tx.CanonicalStatus()
		addTotal(diff.LedgerTotals, st, tx.Amount)
		switch st {
		case ledger.StatusSucceeded:
			diff.NetRevenue = diff.NetRevenue.Add(tx.Amount.Abs())
		case ledger.StatusRefunded, ledger.StatusCanceled:
			diff.NetRevenue = diff.NetRevenue.Sub(tx.Amount.Abs())
		}

		rec, ok := byUID[tx.UID]
		if !ok {
			diff.MissingInStore = append(diff.MissingInStore, Entry{
				UID:    tx.UID,
				Class:  ClassMissingInStore,
				Ledger: tx,
			})
			diff.MissingSum = diff.MissingSum.Add(tx.Amount.Abs())
			continue
		}

		deltas, mismatch := compare(rec, tx, st)
		if mismatch == MismatchNone {
			diff.Matched = append(diff.Matched, Entry{
				UID:    tx.UID,
				Class:  ClassMatched,
				Ledger: tx,
				Record: rec,
			})
			diff.MatchedSum = diff.MatchedSum.Add(tx.Amount.Abs())
			continue
		}
		diff.Mismatched = append(diff.Mismatched, Entry{
			UID:      tx.UID,
			Class:    ClassMismatched,
			Mismatch: mismatch,
			Deltas:   deltas,
			Ledger:   tx,
			Record:   rec,
		})
		diff.MismatchedSum = diff.MismatchedSum.Add(tx.Amount.Abs())
	}

	for i := range records {
		rec := &records[i]
		addTotal(diff.StoreTotals, ledger.Status(rec.CanonicalStatus), rec.Amount)
		if seen[strings.ToLower(rec.ProviderUID)] {
			continue
		}
		diff.ExtraInStore = append(diff.ExtraInStore, Entry{
			UID:    strings.ToLower(rec.ProviderUID),
			Class:  ClassExtraInStore,
			Record: rec,
		})
		diff.ExtraSum = diff.ExtraSum.Add(rec.Amount.Abs())
	}

	return diff
}

// compare checks the three diffable fields. Currency disagreement is folded
// into the amount check: amounts in different currencies never agree.
func compare(rec *models.PaymentRecord, tx *ledger.Transaction, st ledger.Status) ([]FieldDelta, MismatchType) {
	var deltas []FieldDelta

	if rec.CanonicalStatus != string(st) {
		deltas = append(deltas, FieldDelta{Field: "status", Store: rec.CanonicalStatus, Ledger: string(st)})
	}

	sameCurrency := strings.EqualFold(rec.Currency, tx.Currency)
	if !sameCurrency || rec.Amount.Sub(tx.Amount).Abs().GreaterThan(amountTolerance) {
		deltas = append(deltas, FieldDelta{
			Field:  "amount",
			Store:  rec.Amount.StringFixed(2) + " " + rec.Currency,
			Ledger: tx.Amount.StringFixed(2) + " " + tx.Currency,
		})
	}

	ledgerType := ledger.NormalizeType(tx.RawType)
	if rec.TransactionType != ledgerType {
		deltas = append(deltas, FieldDelta{Field: "type", Store: rec.TransactionType, Ledger: ledgerType})
	}

	switch len(deltas) {
	case 0:
		return nil, MismatchNone
	case 1:
		return deltas, MismatchType(deltas[0].Field)
	default:
		return deltas, MismatchMultiple
	}
}

func addTotal(totals map[ledger.Status]decimal.Decimal, st ledger.Status, amount decimal.Decimal) {
	cur, ok := totals[st]
	if !ok {
		cur = decimal.Zero
	}
	totals[st] = cur.Add(amount.Abs())
}
