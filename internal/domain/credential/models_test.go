package credential

import (
	"testing"
	"time"
)

func TestCredential_ValidAt(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		cred *Credential
		want bool
	}{
		{"nil credential", nil, false},
		{"inactive", &Credential{AccessToken: "a", ExpiresAt: now.Add(time.Hour)}, false},
		{"empty token", &Credential{Active: true, ExpiresAt: now.Add(time.Hour)}, false},
		{"valid", &Credential{AccessToken: "a", Active: true, ExpiresAt: now.Add(time.Hour)}, true},
		{"inside skew", &Credential{AccessToken: "a", Active: true, ExpiresAt: now.Add(10 * time.Second)}, false},
		{"expired", &Credential{AccessToken: "a", Active: true, ExpiresAt: now.Add(-time.Minute)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cred.ValidAt(now, 30*time.Second); got != tt.want {
				t.Errorf("ValidAt() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCredential_CanRefreshAt(t *testing.T) {
	now := time.Now()
	c := &Credential{RefreshToken: "r", RefreshExpiresAt: now.Add(24 * time.Hour)}
	if !c.CanRefreshAt(now, time.Minute) {
		t.Error("CanRefreshAt() = false, want true for a live refresh token")
	}

	c.RefreshExpiresAt = now.Add(-time.Second)
	if c.CanRefreshAt(now, time.Minute) {
		t.Error("CanRefreshAt() = true, want false for an expired refresh token")
	}

	if (&Credential{}).CanRefreshAt(now, 0) {
		t.Error("CanRefreshAt() = true, want false without a refresh token")
	}
}
