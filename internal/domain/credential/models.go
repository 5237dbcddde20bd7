package credential

import (
	"errors"
	"time"
)

// ErrNoActiveCredential is returned when no credential is currently marked active.
var ErrNoActiveCredential = errors.New("no active credential")

// Credential is a provider access credential. At most one credential is active at a time;
// renewals supersede the previous row instead of deleting it.
type Credential struct {
	ID               int64
	AccessToken      string
	RefreshToken     string
	IssuedAt         time.Time
	ExpiresAt        time.Time
	RefreshExpiresAt time.Time
	Active           bool
}

// ValidAt reports whether the access token can still be used at t, leaving skew as margin
// for in-flight requests.
func (c *Credential) ValidAt(t time.Time, skew time.Duration) bool {
	if c == nil || c.AccessToken == "" || !c.Active {
		return false
	}
	return t.Add(skew).Before(c.ExpiresAt)
}

// CanRefreshAt reports whether the refresh token can still renew the access token at t.
func (c *Credential) CanRefreshAt(t time.Time, skew time.Duration) bool {
	if c == nil || c.RefreshToken == "" {
		return false
	}
	return t.Add(skew).Before(c.RefreshExpiresAt)
}
