package reconciliation

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"edu-payments-backend/internal/ledger"
	"edu-payments-backend/internal/models"
)

func TestFlatExport(t *testing.T) {
	store := newFakeStore()
	store.seed(models.PaymentRecord{
		ProviderUID:     uidZ,
		Amount:          decimal.RequireFromString("75.00"),
		Currency:        "RUB",
		CanonicalStatus: "succeeded",
		TransactionType: "payment",
		PaidAt:          time.Date(2024, 5, 11, 9, 0, 0, 0, time.UTC),
	})
	pc := &fakeProvider{pages: [][]ledger.Transaction{{
		ledgerTx(uidX, "succeeded", "payment", "100.00"),
	}}}
	engine := newTestEngine(store, pc)

	report, err := engine.Run(context.Background(), RunParams{Period: testPeriod, DryRun: true, Mode: ModeList})
	require.NoError(t, err)

	export := report.FlatExport()
	assert.Contains(t, export, "mode: requested=list used=list dry_run=true")
	assert.Contains(t, export, "missing_in_store: 1 (100.00)")
	assert.Contains(t, export, "extra_in_store: 1 (75.00)")
	assert.Contains(t, export, "missing\t"+uidX)
	assert.Contains(t, export, "extra\t"+uidZ)
	assert.Contains(t, export, "net_revenue: 100.00")
	assert.NotContains(t, export, "nothing to reconcile")
	// Dry run never reports applied actions.
	assert.NotContains(t, export, "applied:")
}

func TestFlatExportCleanRun(t *testing.T) {
	store := newFakeStore()
	store.seed(models.PaymentRecord{
		ProviderUID:     uidX,
		Amount:          decimal.RequireFromString("100.00"),
		Currency:        "RUB",
		CanonicalStatus: "succeeded",
		TransactionType: "payment",
		PaidAt:          time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC),
	})
	pc := &fakeProvider{pages: [][]ledger.Transaction{{
		ledgerTx(uidX, "succeeded", "payment", "100.00"),
	}}}
	engine := newTestEngine(store, pc)

	report, err := engine.Run(context.Background(), RunParams{Period: testPeriod, Mode: ModeList})
	require.NoError(t, err)

	assert.True(t, report.NothingToReconcile())
	export := report.FlatExport()
	assert.Contains(t, export, "nothing to reconcile")
	assert.Contains(t, export, "applied: inserted=0 updated=0 errors=0")
}

func TestReportSampleBound(t *testing.T) {
	store := newFakeStore()
	var txs []ledger.Transaction
	for i := 0; i < 60; i++ {
		uid := strings.Replace(uidX, "000000000001", "0000000000", 1)
		// 60 distinct valid UIDs: vary the last two hex digits.
		uid += string("0123456789ab"[i/10]) + string("0123456789ab"[i%10])
		txs = append(txs, ledgerTx(uid, "succeeded", "payment", "10.00"))
	}
	pc := &fakeProvider{pages: [][]ledger.Transaction{txs}}
	engine := newTestEngine(store, pc)

	report, err := engine.Run(context.Background(), RunParams{Period: testPeriod, DryRun: true, Mode: ModeList})
	require.NoError(t, err)

	assert.Equal(t, 60, report.MissingCount)
	assert.Len(t, report.MissingSamples, defaultSampleLimit)
}
