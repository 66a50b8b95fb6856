package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"edu-payments-backend/internal/ledger"
)

const (
	listPageSize = 100
	retryDelay   = 500 * time.Millisecond
)

// HTTPClient talks to the provider's REST API. Calls are paced by a token
// bucket and retried at most once on 429/5xx; anything beyond that surfaces
// to the caller.
type HTTPClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
	limiter *rate.Limiter
	log     *zap.Logger
}

func NewHTTPClient(baseURL, apiKey string, requestsPerSecond float64, log *zap.Logger) *HTTPClient {
	if requestsPerSecond <= 0 {
		requestsPerSecond = 5
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
		log:     log,
	}
}

type apiTransaction struct {
	ID            string    `json:"id"`
	Status        string    `json:"status"`
	Type          string    `json:"type"`
	Description   string    `json:"description"`
	Amount        string    `json:"amount"`
	Currency      string    `json:"currency"`
	CreatedAt     time.Time `json:"created_at"`
	CustomerEmail string    `json:"customer_email"`
	CardBrand     string    `json:"card_brand"`
	CardLast4     string    `json:"card_last4"`
}

type listResponse struct {
	Items      []apiTransaction `json:"items"`
	NextCursor string           `json:"next_cursor"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (c *HTTPClient) ListTransactions(ctx context.Context, period ledger.Period, cursor string) (Page, error) {
	q := url.Values{}
	q.Set("from", period.From.Format(time.RFC3339))
	q.Set("to", period.To.Format(time.RFC3339))
	q.Set("limit", fmt.Sprint(listPageSize))
	if cursor != "" {
		q.Set("cursor", cursor)
	}

	body, err := c.get(ctx, "/transactions?"+q.Encode())
	if err != nil {
		return Page{}, err
	}

	var resp listResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return Page{}, fmt.Errorf("decode listing: %w", err)
	}

	page := Page{NextCursor: resp.NextCursor}
	for _, item := range resp.Items {
		if tx, ok := item.toTransaction(); ok {
			page.Transactions = append(page.Transactions, tx)
		}
	}
	return page, nil
}

func (c *HTTPClient) GetTransaction(ctx context.Context, uid string) (*ledger.Transaction, error) {
	body, err := c.get(ctx, "/transactions/"+url.PathEscape(uid))
	if err != nil {
		return nil, err
	}

	var item apiTransaction
	if err := json.Unmarshal(body, &item); err != nil {
		return nil, fmt.Errorf("decode transaction %s: %w", uid, err)
	}
	tx, ok := item.toTransaction()
	if !ok {
		return nil, fmt.Errorf("transaction %s has malformed identifier", uid)
	}
	return &tx, nil
}

// get issues one paced GET and retries once on a retryable status.
func (c *HTTPClient) get(ctx context.Context, path string) ([]byte, error) {
	body, status, err := c.do(ctx, path)
	if err == nil && retryable(status) {
		c.log.Debug("provider request retried", zap.String("path", path), zap.Int("status", status))
		select {
		case <-time.After(retryDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		body, status, err = c.do(ctx, path)
	}
	if err != nil {
		return nil, err
	}
	return classify(body, status)
}

func (c *HTTPClient) do(ctx context.Context, path string) ([]byte, int, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, 0, err
	}
	return body, resp.StatusCode, nil
}

func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

func classify(body []byte, status int) ([]byte, error) {
	switch {
	case status == http.StatusOK:
		return body, nil
	case status == http.StatusNotFound:
		return nil, ErrNotFound
	case status == http.StatusUnauthorized || status == http.StatusForbidden || status == http.StatusTooManyRequests:
		return nil, &CapabilityError{Reason: apiError(body, status)}
	default:
		return nil, fmt.Errorf("provider returned status %d: %s", status, apiError(body, status))
	}
}

func apiError(body []byte, status int) string {
	var resp errorResponse
	if err := json.Unmarshal(body, &resp); err == nil && resp.Error != "" {
		return resp.Error
	}
	return http.StatusText(status)
}

func (t apiTransaction) toTransaction() (ledger.Transaction, bool) {
	if !ledger.ValidUID(t.ID) {
		return ledger.Transaction{}, false
	}
	amount, err := decimal.NewFromString(t.Amount)
	if err != nil {
		amount = decimal.Zero
	}
	return ledger.Transaction{
		UID:           strings.ToLower(t.ID),
		RawStatus:     t.Status,
		RawType:       t.Type,
		Description:   t.Description,
		Amount:        amount,
		Currency:      strings.ToUpper(t.Currency),
		PaidAt:        t.CreatedAt,
		CustomerEmail: strings.ToLower(t.CustomerEmail),
		CardBrand:     t.CardBrand,
		CardLast4:     t.CardLast4,
	}, true
}
