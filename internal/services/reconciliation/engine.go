package reconciliation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"edu-payments-backend/internal/ledger"
	"edu-payments-backend/internal/models"
	"edu-payments-backend/internal/provider"
	"edu-payments-backend/internal/services/matching"
)

// Mode selects how the ledger side of the diff is obtained.
type Mode string

const (
	// ModeList pages through the provider's full listing for the period.
	ModeList Mode = "list"
	// ModeUIDVerify iterates the store's UIDs and asks the provider about
	// each one. Used when the account cannot be served a bulk listing.
	ModeUIDVerify Mode = "uid_verify"
	// ModeAuto tries list and falls back to uid_verify on a
	// provider-signaled capability failure.
	ModeAuto Mode = "auto"
	// ModeFile marks upload-driven runs where the ledger side was parsed
	// from an export file.
	ModeFile Mode = "file"
)

// RunParams are the invocation parameters of one reconciliation run.
type RunParams struct {
	Period ledger.Period
	DryRun bool
	Mode   Mode
}

func (p RunParams) validate() error {
	if p.Period.From.IsZero() || p.Period.To.IsZero() {
		return errors.New("period is required")
	}
	if p.Period.To.Before(p.Period.From) {
		return errors.New("period end precedes period start")
	}
	switch p.Mode {
	case ModeList, ModeUIDVerify, ModeAuto:
		return nil
	default:
		return fmt.Errorf("unknown mode %q", p.Mode)
	}
}

// PaymentStore is the internal payment-record surface the engine reconciles
// against. Writes are isolated per record; no cross-record transaction is
// assumed.
type PaymentStore interface {
	QueryPeriod(ctx context.Context, period ledger.Period) ([]models.PaymentRecord, error)
	Insert(ctx context.Context, rec *models.PaymentRecord) error
	UpdateFields(ctx context.Context, uid string, fields map[string]interface{}) error
}

// Engine computes and applies ledger-vs-store reconciliation. All run state
// lives in the Report value threaded through one invocation; the engine
// itself is stateless and safe for concurrent runs.
type Engine struct {
	store       PaymentStore
	provider    provider.Client
	log         *zap.Logger
	sampleLimit int
}

func NewEngine(store PaymentStore, pc provider.Client, log *zap.Logger) *Engine {
	return &Engine{
		store:       store,
		provider:    pc,
		log:         log,
		sampleLimit: defaultSampleLimit,
	}
}

// fetchResult is the tagged outcome of the ledger-side fetch: which mode
// actually ran and, under auto fallback, why.
type fetchResult struct {
	modeUsed       Mode
	fallbackReason string
	transactions   []ledger.Transaction
	unverifiable   []string
	fetchErrors    []RecordError
}

// Run fetches the ledger side from the live provider per params.Mode, diffs
// it against the store and, unless DryRun, applies corrective writes.
func (e *Engine) Run(ctx context.Context, params RunParams) (*Report, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}
	if e.provider == nil {
		return nil, errors.New("no provider client configured")
	}

	fetch, err := e.fetchLedger(ctx, params)
	if err != nil {
		return nil, err
	}
	return e.reconcile(ctx, params, fetch)
}

// RunFile reconciles a pre-parsed ledger export against the store. Rows
// outside the period are ignored; the store snapshot is period-bounded and
// out-of-period rows would otherwise read as missing.
func (e *Engine) RunFile(ctx context.Context, params RunParams, txs []ledger.Transaction) (*Report, error) {
	params.Mode = ModeFile
	if params.Period.From.IsZero() || params.Period.To.IsZero() {
		return nil, errors.New("period is required")
	}
	if params.Period.To.Before(params.Period.From) {
		return nil, errors.New("period end precedes period start")
	}

	inPeriod := make([]ledger.Transaction, 0, len(txs))
	for _, tx := range txs {
		if tx.PaidAt.IsZero() || params.Period.Contains(tx.PaidAt) {
			inPeriod = append(inPeriod, tx)
		}
	}
	return e.reconcile(ctx, params, fetchResult{modeUsed: ModeFile, transactions: inPeriod})
}

func (e *Engine) fetchLedger(ctx context.Context, params RunParams) (fetchResult, error) {
	switch params.Mode {
	case ModeList:
		return e.fetchList(ctx, params.Period)
	case ModeUIDVerify:
		return e.fetchUIDVerify(ctx, params.Period)
	default: // ModeAuto
		res, err := e.fetchList(ctx, params.Period)
		var capErr *provider.CapabilityError
		if err == nil {
			return res, nil
		}
		if !errors.As(err, &capErr) {
			return fetchResult{}, err
		}
		e.log.Info("bulk listing unavailable, falling back to uid verification",
			zap.String("reason", capErr.Reason))
		res, err = e.fetchUIDVerify(ctx, params.Period)
		if err != nil {
			return fetchResult{}, err
		}
		res.fallbackReason = capErr.Reason
		return res, nil
	}
}

// maxListPages bounds listing pagination so a provider cursor bug can never
// hold a run open forever.
const maxListPages = 1000

func (e *Engine) fetchList(ctx context.Context, period ledger.Period) (fetchResult, error) {
	res := fetchResult{modeUsed: ModeList}
	cursor := ""
	for page := 0; page < maxListPages; page++ {
		p, err := e.provider.ListTransactions(ctx, period, cursor)
		if err != nil {
			return fetchResult{}, err
		}
		res.transactions = append(res.transactions, p.Transactions...)
		if p.NextCursor == "" {
			return res, nil
		}
		cursor = p.NextCursor
	}
	return res, fmt.Errorf("listing did not terminate after %d pages", maxListPages)
}

// fetchUIDVerify builds the ledger side from per-UID detail lookups over the
// store's own records. A UID the provider has no record of is unverifiable,
// not an error; any other per-UID failure is recorded and skipped.
func (e *Engine) fetchUIDVerify(ctx context.Context, period ledger.Period) (fetchResult, error) {
	records, err := e.store.QueryPeriod(ctx, period)
	if err != nil {
		return fetchResult{}, fmt.Errorf("query store snapshot: %w", err)
	}

	res := fetchResult{modeUsed: ModeUIDVerify}
	for _, rec := range records {
		tx, err := e.provider.GetTransaction(ctx, rec.ProviderUID)
		if err != nil {
			if errors.Is(err, provider.ErrNotFound) {
				res.unverifiable = append(res.unverifiable, strings.ToLower(rec.ProviderUID))
				continue
			}
			res.fetchErrors = append(res.fetchErrors, RecordError{
				UID: strings.ToLower(rec.ProviderUID), Op: "fetch", Err: err.Error(),
			})
			e.log.Warn("uid verification failed", zap.String("uid", rec.ProviderUID), zap.Error(err))
			continue
		}
		res.transactions = append(res.transactions, *tx)
	}
	return res, nil
}

// reconcile is the shared diff-then-apply path. Execute re-diffs against a
// fresh store snapshot on every invocation, so a second run over unchanged
// inputs naturally produces zero actions.
func (e *Engine) reconcile(ctx context.Context, params RunParams, fetch fetchResult) (*Report, error) {
	report := newReport(params, fetch, e.sampleLimit)

	// Rows the canonicalizer cannot place are excluded from everything
	// downstream; they need manual review, not a guessed status.
	kept := make([]ledger.Transaction, 0, len(fetch.transactions))
	for _, tx := range fetch.transactions {
		if tx.CanonicalStatus() == ledger.StatusUnknown {
			report.UnknownStatusUIDs = append(report.UnknownStatusUIDs, tx.UID)
			e.log.Warn("unrecognized provider status, row excluded",
				zap.String("uid", tx.UID),
				zap.String("raw_status", tx.RawStatus),
				zap.String("raw_type", tx.RawType))
			continue
		}
		kept = append(kept, tx)
	}

	snapshot, err := e.store.QueryPeriod(ctx, params.Period)
	if err != nil {
		return nil, fmt.Errorf("query store snapshot: %w", err)
	}

	diff := matching.Compute(kept, snapshot)
	report.fillFromDiff(diff)

	if params.DryRun {
		report.CompletedAt = time.Now().UTC()
		return report, nil
	}

	e.apply(ctx, diff, report)
	report.CompletedAt = time.Now().UTC()
	return report, nil
}

// apply executes the plan derived from the diff: missing rows are inserted,
// mismatched rows updated, everything else left alone. Extra store records
// are never deleted here; they are flagged for human review only. Each write
// is independent — one failure is recorded and the batch continues.
func (e *Engine) apply(ctx context.Context, diff matching.Diff, report *Report) {
	for _, entry := range diff.MissingInStore {
		rec := recordFromLedger(entry.Ledger)
		if err := e.store.Insert(ctx, rec); err != nil {
			report.Errors = append(report.Errors, RecordError{UID: entry.UID, Op: "insert", Err: err.Error()})
			e.log.Error("insert failed", zap.String("uid", entry.UID), zap.Error(err))
			continue
		}
		report.Inserted++
	}

	for _, entry := range diff.Mismatched {
		fields := updateFields(entry.Ledger)
		if err := e.store.UpdateFields(ctx, entry.UID, fields); err != nil {
			report.Errors = append(report.Errors, RecordError{UID: entry.UID, Op: "update", Err: err.Error()})
			e.log.Error("update failed", zap.String("uid", entry.UID), zap.Error(err))
			continue
		}
		report.Updated++
	}
}

func recordFromLedger(tx *ledger.Transaction) *models.PaymentRecord {
	now := time.Now().UTC()
	return &models.PaymentRecord{
		ID:              uuid.New(),
		ProviderUID:     tx.UID,
		CustomerEmail:   tx.CustomerEmail,
		Amount:          tx.Amount,
		Currency:        tx.Currency,
		CanonicalStatus: string(tx.CanonicalStatus()),
		TransactionType: ledger.NormalizeType(tx.RawType),
		CardDetails:     cardJSON(tx),
		PaidAt:          tx.PaidAt,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func updateFields(tx *ledger.Transaction) map[string]interface{} {
	return map[string]interface{}{
		"amount":           tx.Amount,
		"currency":         tx.Currency,
		"canonical_status": string(tx.CanonicalStatus()),
		"transaction_type": ledger.NormalizeType(tx.RawType),
		"card_details":     cardJSON(tx),
		"updated_at":       time.Now().UTC(),
	}
}

func cardJSON(tx *ledger.Transaction) datatypes.JSON {
	if tx.CardBrand == "" && tx.CardLast4 == "" {
		return nil
	}
	b, _ := json.Marshal(map[string]string{"brand": tx.CardBrand, "last4": tx.CardLast4})
	return datatypes.JSON(b)
}
