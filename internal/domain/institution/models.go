package institution

import (
	"errors"
	"time"
)

var (
	ErrInstitutionNotFound = errors.New("institution not found")
	ErrInvalidInstitution  = errors.New("invalid institution")
)

// Institution is a bank supported by the provider. ID is assigned by the provider and
// stays stable across refreshes.
type Institution struct {
	ID                      string    `json:"id"`
	Name                    string    `json:"name"`
	BIC                     string    `json:"bic"`
	LogoURL                 string    `json:"logoUrl"`
	Countries               []string  `json:"countries"`
	SupportedFeatures       []string  `json:"supportedFeatures"`
	SupportedPayments       []string  `json:"supportedPayments"`
	HistoricalDaysSupported int       `json:"historicalDaysSupported"`
	UpdatedAt               time.Time `json:"updatedAt"`
}

// Validate checks the fields required to store an institution.
func (i Institution) Validate() error {
	if i.ID == "" {
		return errors.Join(ErrInvalidInstitution, errors.New("id is required"))
	}
	if i.Name == "" {
		return errors.Join(ErrInvalidInstitution, errors.New("name is required"))
	}
	return nil
}
