package reconciliation

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"edu-payments-backend/internal/ledger"
	"edu-payments-backend/internal/services/matching"
)

const defaultSampleLimit = 50

// RecordError is one per-UID failure collected during a run. Op says which
// stage failed: fetch, insert or update.
type RecordError struct {
	UID string `json:"uid"`
	Op  string `json:"op"`
	Err string `json:"error"`
}

// Sample is a bounded window into one diff category, enough for an operator
// screen without shipping the full set.
type Sample struct {
	UID      string                `json:"uid"`
	Mismatch matching.MismatchType `json:"mismatch,omitempty"`
	Deltas   []matching.FieldDelta `json:"deltas,omitempty"`
	Amount   string                `json:"amount,omitempty"`
}

// Report is the structured result of one reconciliation run. It is the only
// state that survives the run; the engine persists nothing.
type Report struct {
	Period         ledger.Period `json:"period"`
	DryRun         bool          `json:"dry_run"`
	ModeRequested  Mode          `json:"mode_requested"`
	ModeUsed       Mode          `json:"mode_used"`
	FallbackReason string        `json:"fallback_reason,omitempty"`

	LedgerCount int `json:"ledger_count"`
	StoreCount  int `json:"store_count"`

	MatchedCount    int `json:"matched_count"`
	MissingCount    int `json:"missing_count"`
	ExtraCount      int `json:"extra_count"`
	MismatchedCount int `json:"mismatched_count"`

	MatchedSum    decimal.Decimal `json:"matched_sum"`
	MissingSum    decimal.Decimal `json:"missing_sum"`
	ExtraSum      decimal.Decimal `json:"extra_sum"`
	MismatchedSum decimal.Decimal `json:"mismatched_sum"`

	LedgerTotals map[string]decimal.Decimal `json:"ledger_totals"`
	StoreTotals  map[string]decimal.Decimal `json:"store_totals"`
	NetRevenue   decimal.Decimal            `json:"net_revenue"`

	MissingSamples    []Sample `json:"missing_samples,omitempty"`
	ExtraSamples      []Sample `json:"extra_samples,omitempty"`
	MismatchedSamples []Sample `json:"mismatched_samples,omitempty"`

	UnknownStatusUIDs []string      `json:"unknown_status_uids,omitempty"`
	Unverifiable      []string      `json:"unverifiable,omitempty"`
	Inserted          int           `json:"inserted"`
	Updated           int           `json:"updated"`
	Errors            []RecordError `json:"errors,omitempty"`

	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`

	sampleLimit int
}

func newReport(params RunParams, fetch fetchResult, sampleLimit int) *Report {
	if sampleLimit <= 0 {
		sampleLimit = defaultSampleLimit
	}
	return &Report{
		Period:         params.Period,
		DryRun:         params.DryRun,
		ModeRequested:  params.Mode,
		ModeUsed:       fetch.modeUsed,
		FallbackReason: fetch.fallbackReason,
		Unverifiable:   fetch.unverifiable,
		Errors:         fetch.fetchErrors,
		MatchedSum:     decimal.Zero,
		MissingSum:     decimal.Zero,
		ExtraSum:       decimal.Zero,
		MismatchedSum:  decimal.Zero,
		NetRevenue:     decimal.Zero,
		StartedAt:      time.Now().UTC(),
		sampleLimit:    sampleLimit,
	}
}

func (r *Report) fillFromDiff(diff matching.Diff) {
	r.LedgerCount = len(diff.Matched) + len(diff.MissingInStore) + len(diff.Mismatched)
	r.StoreCount = len(diff.Matched) + len(diff.ExtraInStore) + len(diff.Mismatched)

	r.MatchedCount = len(diff.Matched)
	r.MissingCount = len(diff.MissingInStore)
	r.ExtraCount = len(diff.ExtraInStore)
	r.MismatchedCount = len(diff.Mismatched)

	r.MatchedSum = diff.MatchedSum
	r.MissingSum = diff.MissingSum
	r.ExtraSum = diff.ExtraSum
	r.MismatchedSum = diff.MismatchedSum
	r.NetRevenue = diff.NetRevenue

	r.LedgerTotals = stringTotals(diff.LedgerTotals)
	r.StoreTotals = stringTotals(diff.StoreTotals)

	r.MissingSamples = r.sample(diff.MissingInStore)
	r.ExtraSamples = r.sample(diff.ExtraInStore)
	r.MismatchedSamples = r.sample(diff.Mismatched)
}

func (r *Report) sample(entries []matching.Entry) []Sample {
	n := len(entries)
	if n > r.sampleLimit {
		n = r.sampleLimit
	}
	if n == 0 {
		return nil
	}
	out := make([]Sample, 0, n)
	for _, e := range entries[:n] {
		s := Sample{UID: e.UID, Mismatch: e.Mismatch, Deltas: e.Deltas}
		switch {
		case e.Ledger != nil:
			s.Amount = e.Ledger.Amount.StringFixed(2) + " " + e.Ledger.Currency
		case e.Record != nil:
			s.Amount = e.Record.Amount.StringFixed(2) + " " + e.Record.Currency
		}
		out = append(out, s)
	}
	return out
}

// NothingToReconcile reports whether the run found no discrepancies at all.
// A clean run is a success, not an error.
func (r *Report) NothingToReconcile() bool {
	return r.MissingCount == 0 && r.MismatchedCount == 0 && r.ExtraCount == 0
}

// FlatExport projects the report into a line-oriented text form for logs and
// file export. Pure projection, no additional business rules.
func (r *Report) FlatExport() string {
	var b strings.Builder

	fmt.Fprintf(&b, "period: %s .. %s\n", r.Period.From.Format("2006-01-02"), r.Period.To.Format("2006-01-02"))
	fmt.Fprintf(&b, "mode: requested=%s used=%s dry_run=%t\n", r.ModeRequested, r.ModeUsed, r.DryRun)
	if r.FallbackReason != "" {
		fmt.Fprintf(&b, "fallback_reason: %s\n", r.FallbackReason)
	}
	fmt.Fprintf(&b, "ledger: %d records, store: %d records\n", r.LedgerCount, r.StoreCount)
	fmt.Fprintf(&b, "matched: %d (%s)\n", r.MatchedCount, r.MatchedSum.StringFixed(2))
	fmt.Fprintf(&b, "missing_in_store: %d (%s)\n", r.MissingCount, r.MissingSum.StringFixed(2))
	fmt.Fprintf(&b, "extra_in_store: %d (%s)\n", r.ExtraCount, r.ExtraSum.StringFixed(2))
	fmt.Fprintf(&b, "mismatched: %d (%s)\n", r.MismatchedCount, r.MismatchedSum.StringFixed(2))
	fmt.Fprintf(&b, "net_revenue: %s\n", r.NetRevenue.StringFixed(2))

	writeTotals(&b, "ledger_totals", r.LedgerTotals)
	writeTotals(&b, "store_totals", r.StoreTotals)

	for _, s := range r.MissingSamples {
		fmt.Fprintf(&b, "missing\t%s\t%s\n", s.UID, s.Amount)
	}
	for _, s := range r.MismatchedSamples {
		fmt.Fprintf(&b, "mismatch\t%s\t%s\t%s\n", s.UID, s.Mismatch, formatDeltas(s.Deltas))
	}
	for _, s := range r.ExtraSamples {
		fmt.Fprintf(&b, "extra\t%s\t%s\n", s.UID, s.Amount)
	}
	for _, uid := range r.UnknownStatusUIDs {
		fmt.Fprintf(&b, "unknown_status\t%s\n", uid)
	}
	for _, uid := range r.Unverifiable {
		fmt.Fprintf(&b, "unverifiable\t%s\n", uid)
	}

	if !r.DryRun {
		fmt.Fprintf(&b, "applied: inserted=%d updated=%d errors=%d\n", r.Inserted, r.Updated, len(r.Errors))
		for _, e := range r.Errors {
			fmt.Fprintf(&b, "error\t%s\t%s\t%s\n", e.UID, e.Op, e.Err)
		}
	}
	if r.NothingToReconcile() {
		b.WriteString("nothing to reconcile\n")
	}
	return b.String()
}

func writeTotals(b *strings.Builder, label string, totals map[string]decimal.Decimal) {
	if len(totals) == 0 {
		return
	}
	keys := make([]string, 0, len(totals))
	for k := range totals {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+totals[k].StringFixed(2))
	}
	fmt.Fprintf(b, "%s: %s\n", label, strings.Join(parts, " "))
}

func formatDeltas(deltas []matching.FieldDelta) string {
	parts := make([]string, 0, len(deltas))
	for _, d := range deltas {
		parts = append(parts, fmt.Sprintf("%s: %s -> %s", d.Field, d.Store, d.Ledger))
	}
	return strings.Join(parts, "; ")
}

func stringTotals(totals map[ledger.Status]decimal.Decimal) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(totals))
	for k, v := range totals {
		out[string(k)] = v
	}
	return out
}
