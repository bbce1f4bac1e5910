// Package ledger is the client for the external accounting ledger invoices are reconciled against.
package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/invoice-reconciler/internal/config"
	"github.com/invoice-reconciler/internal/platform/resilience"
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

var (
	ErrTransactionNotFound = eris.New("ledger transaction not found")
	ErrTenantNotFound      = eris.New("ledger tenant not found")
	ErrUnauthorized        = eris.New("ledger rejected credentials")
	ErrMalformedResponse   = eris.New("malformed ledger response")
)

// Transaction is a ledger record an invoice can be settled by
type Transaction struct {
	ID               string          `json:"id"`
	Reference        string          `json:"reference"`
	Total            decimal.Decimal `json:"total"`
	Date             Date            `json:"date"`
	CounterpartyName string          `json:"counterparty_name"`
}

// Date accepts both calendar dates and RFC 3339 timestamps
type Date struct {
	time.Time
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			d.Time = t
			return nil
		}
	}
	return fmt.Errorf("unsupported date %q", s)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Format("2006-01-02"))
}

type transactionsResponse struct {
	Transactions []Transaction `json:"transactions"`
}

type costCenterUpdate struct {
	CostCenter string `json:"cost_center"`
}

// Client talks to the ledger REST API
type Client struct {
	baseURL    string
	token      string
	tenantID   string
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *resilience.CircuitBreaker
	logger     *slog.Logger
}

// Option configures the client
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient builds a client from cfg. Requests are rate limited and guarded by a circuit breaker.
func NewClient(logger *slog.Logger, cfg config.LedgerConfig, opts ...Option) *Client {
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 1
	}
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}

	c := &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      cfg.APIToken,
		tenantID:   cfg.TenantID,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(limit, burst),
		logger:     logger,
		breaker: resilience.NewCircuitBreaker(logger, resilience.BreakerConfig{
			Name:             "ledger",
			FailureThreshold: cfg.BreakerFailures,
			ResetTimeout:     cfg.BreakerReset,
			ShouldTrip:       isOutage,
		}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListTransactions returns the tenant's ledger transactions. An empty tenantID uses the configured tenant.
func (c *Client) ListTransactions(ctx context.Context, tenantID string) ([]Transaction, error) {
	if tenantID == "" {
		tenantID = c.tenantID
	}
	endpoint := fmt.Sprintf("%s/tenants/%s/transactions", c.baseURL, url.PathEscape(tenantID))

	return resilience.ExecuteVal(ctx, c.breaker, func(ctx context.Context) ([]Transaction, error) {
		body, err := c.do(ctx, http.MethodGet, endpoint, nil)
		if errors.Is(err, errNotFound) {
			return nil, eris.Wrapf(ErrTenantNotFound, "tenant %s", tenantID)
		}
		if err != nil {
			return nil, err
		}

		var resp transactionsResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, eris.Wrap(ErrMalformedResponse, err.Error())
		}
		for _, tx := range resp.Transactions {
			if tx.ID == "" {
				return nil, eris.Wrap(ErrMalformedResponse, "transaction without id")
			}
		}
		return resp.Transactions, nil
	})
}

// UpdateTransaction sets the cost center on a ledger transaction
func (c *Client) UpdateTransaction(ctx context.Context, transactionID, costCenter string) error {
	payload, err := json.Marshal(costCenterUpdate{CostCenter: costCenter})
	if err != nil {
		return eris.Wrap(err, "failed to encode cost center update")
	}
	endpoint := fmt.Sprintf("%s/transactions/%s/cost-center", c.baseURL, url.PathEscape(transactionID))

	return c.breaker.Execute(ctx, func(ctx context.Context) error {
		if _, err := c.do(ctx, http.MethodPut, endpoint, payload); err != nil {
			if errors.Is(err, errNotFound) {
				err = ErrTransactionNotFound
			}
			return eris.Wrapf(err, "failed to update ledger transaction %s", transactionID)
		}
		c.logger.Info("Updated ledger transaction cost center", "transaction_id", transactionID, "cost_center", costCenter)
		return nil
	})
}

// errNotFound is mapped by each caller to the resource its endpoint names
var errNotFound = eris.New("ledger resource not found")

func (c *Client) do(ctx context.Context, method, endpoint string, payload []byte) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "ledger rate limiter")
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, eris.Wrap(err, "failed to build ledger request")
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "ledger request %s %s", method, endpoint)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, eris.Wrap(err, "failed to read ledger response")
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, errNotFound
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, ErrUnauthorized
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, eris.Errorf("ledger returned status %d: %s", resp.StatusCode, truncate(string(respBody), 200))
	}
	return respBody, nil
}

// isOutage keeps caller errors from opening the circuit
func isOutage(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, ErrTransactionNotFound) &&
		!errors.Is(err, ErrTenantNotFound) &&
		!errors.Is(err, ErrUnauthorized) &&
		!errors.Is(err, context.Canceled)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
