package openbanking

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL = "https://bankaccountdata.gocardless.com/api/v2"
	defaultTimeout = 30 * time.Second
	maxErrorBody   = 4 << 10

	tokenNewPath     = "/token/new/"
	tokenRefreshPath = "/token/refresh/"
	institutionsPath = "/institutions/"
	agreementsPath   = "/agreements/enduser/"
	requisitionsPath = "/requisitions/"
	accountsPath     = "/accounts/"
)

var (
	providerTracer = otel.Tracer("tavola/openbanking")
	providerMeter  = otel.Meter("tavola/openbanking")
)

var providerRequestDuration, _ = providerMeter.Float64Histogram("provider.request.duration",
	metric.WithDescription("Provider API request duration in seconds"),
	metric.WithUnit("s"),
)

// Config configures the provider client.
type Config struct {
	BaseURL string
	Timeout time.Duration
	// RateLimit caps outbound requests per second; zero disables limiting.
	RateLimit float64
}

// Client handles communication with the bank account data provider
type Client struct {
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
}

// Ensure Client implements ClientInterface
var _ ClientInterface = (*Client)(nil)

// NewClient creates a new provider API client
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	c := &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    cfg.BaseURL,
	}
	if cfg.RateLimit > 0 {
		burst := int(cfg.RateLimit)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return c
}

// NewToken issues a new access/refresh token pair from the secret pair.
func (c *Client) NewToken(ctx context.Context, secretID, secretKey string) (*TokenResponse, error) {
	body := map[string]string{"secret_id": secretID, "secret_key": secretKey}

	var resp TokenResponse
	if err := c.do(ctx, http.MethodPost, tokenNewPath, "", nil, body, &resp); err != nil {
		return nil, err
	}
	if resp.Access == "" {
		return nil, fmt.Errorf("%w: token response without access token", ErrMalformedResponse)
	}
	return &resp, nil
}

// RefreshToken exchanges a refresh token for a new access token.
func (c *Client) RefreshToken(ctx context.Context, refresh string) (*TokenResponse, error) {
	body := map[string]string{"refresh": refresh}

	var resp TokenResponse
	if err := c.do(ctx, http.MethodPost, tokenRefreshPath, "", nil, body, &resp); err != nil {
		return nil, err
	}
	if resp.Access == "" {
		return nil, fmt.Errorf("%w: refresh response without access token", ErrMalformedResponse)
	}
	return &resp, nil
}

// ListInstitutions lists the banks available in a country.
func (c *Client) ListInstitutions(ctx context.Context, token, country string) ([]Institution, error) {
	query := url.Values{}
	if country != "" {
		query.Set("country", country)
	}

	var institutions []Institution
	if err := c.do(ctx, http.MethodGet, institutionsPath, token, query, nil, &institutions); err != nil {
		return nil, err
	}
	return institutions, nil
}

// CreateAgreement creates an end-user agreement.
func (c *Client) CreateAgreement(ctx context.Context, token string, req AgreementRequest) (*Agreement, error) {
	var agreement Agreement
	if err := c.do(ctx, http.MethodPost, agreementsPath, token, nil, req, &agreement); err != nil {
		return nil, err
	}
	if agreement.ID == "" {
		return nil, fmt.Errorf("%w: agreement without id", ErrMalformedResponse)
	}
	return &agreement, nil
}

// CreateRequisition creates a requisition and returns its authorization link.
func (c *Client) CreateRequisition(ctx context.Context, token string, req RequisitionRequest) (*Requisition, error) {
	var requisition Requisition
	if err := c.do(ctx, http.MethodPost, requisitionsPath, token, nil, req, &requisition); err != nil {
		return nil, err
	}
	if requisition.ID == "" || requisition.Link == "" {
		return nil, fmt.Errorf("%w: requisition without id or link", ErrMalformedResponse)
	}
	return &requisition, nil
}

// GetRequisition fetches the current status and linked accounts of a requisition.
func (c *Client) GetRequisition(ctx context.Context, token, id string) (*Requisition, error) {
	var requisition Requisition
	if err := c.do(ctx, http.MethodGet, requisitionsPath+url.PathEscape(id)+"/", token, nil, nil, &requisition); err != nil {
		return nil, err
	}
	return &requisition, nil
}

// GetAccountDetails fetches account metadata.
func (c *Client) GetAccountDetails(ctx context.Context, token, accountID string) (*AccountDetails, error) {
	var resp accountDetailsResponse
	if err := c.do(ctx, http.MethodGet, accountsPath+url.PathEscape(accountID)+"/details/", token, nil, nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Account, nil
}

// GetAccountBalances fetches every balance entry of an account.
func (c *Client) GetAccountBalances(ctx context.Context, token, accountID string) ([]Balance, error) {
	var resp balancesResponse
	if err := c.do(ctx, http.MethodGet, accountsPath+url.PathEscape(accountID)+"/balances/", token, nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Balances, nil
}

// GetAccountTransactions fetches booked and pending transactions of an account.
func (c *Client) GetAccountTransactions(ctx context.Context, token, accountID string, dateFrom time.Time) (*AccountTransactions, error) {
	query := url.Values{}
	if !dateFrom.IsZero() {
		query.Set("date_from", dateFrom.Format("2006-01-02"))
	}

	var resp transactionsResponse
	if err := c.do(ctx, http.MethodGet, accountsPath+url.PathEscape(accountID)+"/transactions/", token, query, nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Transactions, nil
}

// do executes one request. A non-2xx status becomes *APIError; transport failures become
// transportError. Both match ErrProviderUnavailable.
func (c *Client) do(ctx context.Context, method, path, token string, query url.Values, in, out any) (err error) {
	ctx, span := providerTracer.Start(ctx, "provider "+method+" "+routeOf(path),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("http.route", routeOf(path)),
		),
	)
	start := time.Now()
	status := 0
	defer func() {
		providerRequestDuration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("http.route", routeOf(path)),
			attribute.Int("http.status_code", status),
		))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &transportError{method: method, path: path, err: err}
	}
	defer resp.Body.Close()
	status = resp.StatusCode
	span.SetAttributes(attribute.Int("http.status_code", status))

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &transportError{method: method, path: path, err: fmt.Errorf("failed to read response body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       truncate(string(respBody), maxErrorBody),
		}
		var errResp errorResponse
		if json.Unmarshal(respBody, &errResp) == nil {
			apiErr.Summary = errResp.Summary
			apiErr.Detail = errResp.Detail
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrMalformedResponse, method, path, err)
	}
	return nil
}

// routeOf collapses ids out of a path so spans and metrics keep a low cardinality.
func routeOf(path string) string {
	switch {
	case len(path) > len(accountsPath) && path[:len(accountsPath)] == accountsPath:
		return accountsPath + "{id}/" + lastSegment(path)
	case len(path) > len(requisitionsPath) && path[:len(requisitionsPath)] == requisitionsPath:
		return requisitionsPath + "{id}/"
	}
	return path
}

func lastSegment(path string) string {
	end := len(path)
	if end > 0 && path[end-1] == '/' {
		end--
	}
	start := end
	for start > 0 && path[start-1] != '/' {
		start--
	}
	return path[start:end] + "/"
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
