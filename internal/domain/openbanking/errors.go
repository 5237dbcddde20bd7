// Package openbanking implements the bank-linking flow: token lifecycle, consent creation,
// callback resolution and the account and transaction synchronizers.
package openbanking

import (
	"context"
	"errors"
	"fmt"
)

// ErrConfigMissing is returned when the provider secret pair is not configured and no
// refreshable credential exists. It is fatal and never retried.
var ErrConfigMissing = errors.New("provider secrets are not configured")

// Steps of CreateConnection, reported by StepError.
const (
	StepToken       = "token"
	StepAgreement   = "agreement"
	StepRequisition = "requisition"
	StepPersist     = "persist"
)

// StepError identifies which step of a multi-step operation failed.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s step failed: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// TokenSource hands out a provider bearer token that is valid right now.
type TokenSource interface {
	GetValidToken(ctx context.Context) (string, error)
}
