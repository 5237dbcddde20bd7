package openbanking

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// RetryConfig bounds the retry policy.
type RetryConfig struct {
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// RetryingClient wraps a ClientInterface and retries transient provider failures
// (429, 5xx, transport). Everything else is returned on the first attempt.
type RetryingClient struct {
	next   ClientInterface
	cfg    RetryConfig
	logger *zap.Logger
}

var _ ClientInterface = (*RetryingClient)(nil)

// NewRetryingClient wraps next with the retry policy.
func NewRetryingClient(next ClientInterface, cfg RetryConfig, logger *zap.Logger) *RetryingClient {
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = 500 * time.Millisecond
	}
	if cfg.MaxInterval <= 0 {
		cfg.MaxInterval = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RetryingClient{next: next, cfg: cfg, logger: logger}
}

func retry[T any](ctx context.Context, r *RetryingClient, op string, fn func() (T, error)) (T, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.cfg.InitialInterval
	b.MaxInterval = r.cfg.MaxInterval
	b.MaxElapsedTime = 0

	policy := backoff.WithContext(backoff.WithMaxRetries(b, r.cfg.MaxRetries), ctx)

	attempt := 0
	return backoff.RetryNotifyWithData(func() (T, error) {
		attempt++
		v, err := fn()
		if err != nil && !IsRetryable(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}, policy, func(err error, wait time.Duration) {
		r.logger.Warn("retrying provider call",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	})
}

func (r *RetryingClient) NewToken(ctx context.Context, secretID, secretKey string) (*TokenResponse, error) {
	return retry(ctx, r, "new_token", func() (*TokenResponse, error) {
		return r.next.NewToken(ctx, secretID, secretKey)
	})
}

func (r *RetryingClient) RefreshToken(ctx context.Context, refresh string) (*TokenResponse, error) {
	return retry(ctx, r, "refresh_token", func() (*TokenResponse, error) {
		return r.next.RefreshToken(ctx, refresh)
	})
}

func (r *RetryingClient) ListInstitutions(ctx context.Context, token, country string) ([]Institution, error) {
	return retry(ctx, r, "list_institutions", func() ([]Institution, error) {
		return r.next.ListInstitutions(ctx, token, country)
	})
}

// CreateAgreement may leave an orphan agreement behind when a 5xx hid a success. Orphans
// are never referenced by a requisition and expire on the provider side.
func (r *RetryingClient) CreateAgreement(ctx context.Context, token string, req AgreementRequest) (*Agreement, error) {
	return retry(ctx, r, "create_agreement", func() (*Agreement, error) {
		return r.next.CreateAgreement(ctx, token, req)
	})
}

func (r *RetryingClient) CreateRequisition(ctx context.Context, token string, req RequisitionRequest) (*Requisition, error) {
	return retry(ctx, r, "create_requisition", func() (*Requisition, error) {
		return r.next.CreateRequisition(ctx, token, req)
	})
}

func (r *RetryingClient) GetRequisition(ctx context.Context, token, id string) (*Requisition, error) {
	return retry(ctx, r, "get_requisition", func() (*Requisition, error) {
		return r.next.GetRequisition(ctx, token, id)
	})
}

func (r *RetryingClient) GetAccountDetails(ctx context.Context, token, accountID string) (*AccountDetails, error) {
	return retry(ctx, r, "get_account_details", func() (*AccountDetails, error) {
		return r.next.GetAccountDetails(ctx, token, accountID)
	})
}

func (r *RetryingClient) GetAccountBalances(ctx context.Context, token, accountID string) ([]Balance, error) {
	return retry(ctx, r, "get_account_balances", func() ([]Balance, error) {
		return r.next.GetAccountBalances(ctx, token, accountID)
	})
}

func (r *RetryingClient) GetAccountTransactions(ctx context.Context, token, accountID string, dateFrom time.Time) (*AccountTransactions, error) {
	return retry(ctx, r, "get_account_transactions", func() (*AccountTransactions, error) {
		return r.next.GetAccountTransactions(ctx, token, accountID, dateFrom)
	})
}
