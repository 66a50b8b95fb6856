package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"edu-payments-backend/internal/ledger"
)

const (
	uidA = "a1b2c3d4-1111-4222-8333-000000000001"
	uidB = "a1b2c3d4-1111-4222-8333-000000000002"
)

var testPeriod = ledger.Period{
	From: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
	To:   time.Date(2024, 5, 31, 0, 0, 0, 0, time.UTC),
}

func apiTx(uid string) apiTransaction {
	return apiTransaction{
		ID:        uid,
		Status:    "succeeded",
		Type:      "payment",
		Amount:    "100.50",
		Currency:  "rub",
		CreatedAt: time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC),
	}
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewHTTPClient(srv.URL, "test-key", 1000, zap.NewNop())
}

func TestListTransactionsPagination(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		switch r.URL.Query().Get("cursor") {
		case "":
			json.NewEncoder(w).Encode(listResponse{Items: []apiTransaction{apiTx(uidA)}, NextCursor: "p2"})
		case "p2":
			json.NewEncoder(w).Encode(listResponse{Items: []apiTransaction{apiTx(uidB)}})
		default:
			http.Error(w, "bad cursor", http.StatusBadRequest)
		}
	})

	page, err := c.ListTransactions(context.Background(), testPeriod, "")
	require.NoError(t, err)
	require.Len(t, page.Transactions, 1)
	assert.Equal(t, uidA, page.Transactions[0].UID)
	assert.Equal(t, "RUB", page.Transactions[0].Currency)
	assert.True(t, decimal.RequireFromString("100.50").Equal(page.Transactions[0].Amount))
	require.Equal(t, "p2", page.NextCursor)

	page, err = c.ListTransactions(context.Background(), testPeriod, page.NextCursor)
	require.NoError(t, err)
	require.Len(t, page.Transactions, 1)
	assert.Equal(t, uidB, page.Transactions[0].UID)
	assert.Empty(t, page.NextCursor)
}

func TestListTransactionsDropsMalformedUIDs(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		bad := apiTx(uidA)
		bad.ID = "summary-row"
		json.NewEncoder(w).Encode(listResponse{Items: []apiTransaction{bad, apiTx(uidB)}})
	})

	page, err := c.ListTransactions(context.Background(), testPeriod, "")
	require.NoError(t, err)
	require.Len(t, page.Transactions, 1)
	assert.Equal(t, uidB, page.Transactions[0].UID)
}

func TestGetTransactionNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"no such transaction"}`, http.StatusNotFound)
	})

	_, err := c.GetTransaction(context.Background(), uidA)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCapabilityErrorFromScopeRestriction(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		json.NewEncoder(w).Encode(errorResponse{Error: "listing restricted for this token"})
	})

	_, err := c.ListTransactions(context.Background(), testPeriod, "")
	var capErr *CapabilityError
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, "listing restricted for this token", capErr.Reason)
}

func TestRetryOnceOnServerError(t *testing.T) {
	attempts := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			http.Error(w, "try later", http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(listResponse{Items: []apiTransaction{apiTx(uidA)}})
	})

	page, err := c.ListTransactions(context.Background(), testPeriod, "")
	require.NoError(t, err)
	require.Len(t, page.Transactions, 1)
	assert.Equal(t, 2, attempts)
}

func TestRetryIsBounded(t *testing.T) {
	attempts := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		http.Error(w, "still down", http.StatusInternalServerError)
	})

	_, err := c.ListTransactions(context.Background(), testPeriod, "")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, 2, attempts)
}
