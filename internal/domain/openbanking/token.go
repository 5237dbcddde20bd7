package openbanking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"tavola/internal/domain/credential"
	ofclient "tavola/internal/infrastructure/openbanking"
)

// DefaultTokenSkew is subtracted from a token's expiry so that a request started just before
// expiry does not reach the provider with a dead token.
const DefaultTokenSkew = 30 * time.Second

// DefaultRenewTimeout bounds a shared renewal, which runs detached from the callers waiting on it.
const DefaultRenewTimeout = 30 * time.Second

// TokenConfig holds the provider secret pair.
type TokenConfig struct {
	SecretID     string
	SecretKey    string
	Skew         time.Duration
	RenewTimeout time.Duration
}

// TokenManager owns the provider access credential.
type TokenManager struct {
	client ofclient.ClientInterface
	repo   credential.Repository
	cfg    TokenConfig
	logger *zap.Logger
	now    func() time.Time
	group  singleflight.Group
}

var _ TokenSource = (*TokenManager)(nil)

// NewTokenManager creates a new token manager
func NewTokenManager(client ofclient.ClientInterface, repo credential.Repository, cfg TokenConfig, logger *zap.Logger) *TokenManager {
	if cfg.Skew <= 0 {
		cfg.Skew = DefaultTokenSkew
	}
	if cfg.RenewTimeout <= 0 {
		cfg.RenewTimeout = DefaultRenewTimeout
	}
	return &TokenManager{
		client: client,
		repo:   repo,
		cfg:    cfg,
		logger: logger.Named("token"),
		now:    time.Now,
	}
}

// GetValidToken returns the active access token, renewing it when it is about to expire.
// Concurrent callers in this process share a single renewal; across processes Rotate
// keeps at most one credential active.
func (m *TokenManager) GetValidToken(ctx context.Context) (string, error) {
	current, err := m.activeCredential(ctx)
	if err != nil {
		return "", err
	}
	if current.ValidAt(m.now(), m.cfg.Skew) {
		return current.AccessToken, nil
	}

	// The renewal outlives the caller that started it, so one cancelled request cannot
	// fail the others waiting on the same result.
	ch := m.group.DoChan("renew", func() (any, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.cfg.RenewTimeout)
		defer cancel()
		return m.renew(rctx)
	})
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

// CheckConfigured reports ErrConfigMissing when the secret pair is absent and the stored
// credential can neither be used nor refreshed, meaning no provider call could succeed.
func (m *TokenManager) CheckConfigured(ctx context.Context) error {
	if m.cfg.SecretID != "" && m.cfg.SecretKey != "" {
		return nil
	}
	current, err := m.activeCredential(ctx)
	if err != nil {
		return err
	}
	now := m.now()
	if current.ValidAt(now, m.cfg.Skew) || current.CanRefreshAt(now, m.cfg.Skew) {
		return nil
	}
	return ErrConfigMissing
}

func (m *TokenManager) activeCredential(ctx context.Context) (*credential.Credential, error) {
	c, err := m.repo.GetActive(ctx)
	if errors.Is(err, credential.ErrNoActiveCredential) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read active credential: %w", err)
	}
	return c, nil
}

func (m *TokenManager) renew(ctx context.Context) (string, error) {
	ctx, span := syncTracer.Start(ctx, "token.renew")
	defer span.End()

	// Another caller may have renewed while this one waited.
	current, err := m.activeCredential(ctx)
	if err != nil {
		return "", err
	}
	now := m.now()
	if current.ValidAt(now, m.cfg.Skew) {
		return current.AccessToken, nil
	}

	var next *credential.Credential
	if current.CanRefreshAt(now, m.cfg.Skew) {
		next, err = m.refresh(ctx, current, now)
		if err != nil {
			if ctx.Err() != nil {
				return "", err
			}
			m.logger.Warn("token refresh failed, issuing a new token", zap.Error(err))
		}
	}

	if next == nil {
		next, err = m.issue(ctx, now)
		if err != nil {
			return "", err
		}
	}

	var previousID int64
	if current != nil {
		previousID = current.ID
	}
	saved, err := m.repo.Rotate(ctx, previousID, *next)
	if err != nil {
		return "", fmt.Errorf("failed to store credential: %w", err)
	}
	if saved.AccessToken != next.AccessToken {
		m.logger.Info("credential already renewed by another process")
	}
	return saved.AccessToken, nil
}

func (m *TokenManager) refresh(ctx context.Context, current *credential.Credential, now time.Time) (*credential.Credential, error) {
	resp, err := m.client.RefreshToken(ctx, current.RefreshToken)
	if err != nil {
		return nil, fmt.Errorf("failed to refresh provider token: %w", err)
	}
	tokenRenewals.Add(ctx, 1, metric.WithAttributes(attribute.String("method", "refresh")))
	m.logger.Info("provider token refreshed", zap.Int("expires_in", resp.AccessExpires))

	return &credential.Credential{
		AccessToken:      resp.Access,
		RefreshToken:     current.RefreshToken,
		IssuedAt:         now,
		ExpiresAt:        now.Add(time.Duration(resp.AccessExpires) * time.Second),
		RefreshExpiresAt: current.RefreshExpiresAt,
		Active:           true,
	}, nil
}

func (m *TokenManager) issue(ctx context.Context, now time.Time) (*credential.Credential, error) {
	if m.cfg.SecretID == "" || m.cfg.SecretKey == "" {
		return nil, ErrConfigMissing
	}

	resp, err := m.client.NewToken(ctx, m.cfg.SecretID, m.cfg.SecretKey)
	if err != nil {
		return nil, fmt.Errorf("failed to issue provider token: %w", err)
	}
	tokenRenewals.Add(ctx, 1, metric.WithAttributes(attribute.String("method", "new")))
	m.logger.Info("provider token issued", zap.Int("expires_in", resp.AccessExpires))

	return &credential.Credential{
		AccessToken:      resp.Access,
		RefreshToken:     resp.Refresh,
		IssuedAt:         now,
		ExpiresAt:        now.Add(time.Duration(resp.AccessExpires) * time.Second),
		RefreshExpiresAt: now.Add(time.Duration(resp.RefreshExpires) * time.Second),
		Active:           true,
	}, nil
}
