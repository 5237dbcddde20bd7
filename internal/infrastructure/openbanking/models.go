package openbanking

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TokenResponse is returned by token issuance and refresh. Refresh responses leave the
// refresh fields empty.
type TokenResponse struct {
	Access         string `json:"access"`
	AccessExpires  int    `json:"access_expires"` // seconds
	Refresh        string `json:"refresh"`
	RefreshExpires int    `json:"refresh_expires"` // seconds
}

// Institution represents a bank from the provider catalogue
type Institution struct {
	ID                   string   `json:"id"`
	Name                 string   `json:"name"`
	BIC                  string   `json:"bic"`
	Logo                 string   `json:"logo"`
	Countries            []string `json:"countries"`
	TransactionTotalDays flexInt  `json:"transaction_total_days"` // served as a string by some deployments
	SupportedFeatures    []string `json:"supported_features"`
	SupportedPayments    []string `json:"supported_payments"`
}

// HistoricalDays returns how far back the institution serves transactions.
func (i Institution) HistoricalDays() int { return int(i.TransactionTotalDays) }

// AgreementRequest is the body of POST /agreements/enduser/
type AgreementRequest struct {
	InstitutionID      string   `json:"institution_id"`
	MaxHistoricalDays  int      `json:"max_historical_days"`
	AccessValidForDays int      `json:"access_valid_for_days"`
	AccessScope        []string `json:"access_scope"`
}

// Agreement is an end-user agreement as returned by the provider
type Agreement struct {
	ID                 string       `json:"id"`
	Created            string       `json:"created"`
	InstitutionID      string       `json:"institution_id"`
	MaxHistoricalDays  int          `json:"max_historical_days"`
	AccessValidForDays int          `json:"access_valid_for_days"`
	AccessScope        []string     `json:"access_scope"`
	Accepted           acceptedFlag `json:"accepted"`
}

// IsAccepted reports whether the end user has accepted the agreement.
func (a Agreement) IsAccepted() bool { return bool(a.Accepted) }

// RequisitionRequest is the body of POST /requisitions/
type RequisitionRequest struct {
	Redirect      string `json:"redirect"`
	InstitutionID string `json:"institution_id"`
	Agreement     string `json:"agreement,omitempty"`
	Reference     string `json:"reference"`
	UserLanguage  string `json:"user_language,omitempty"`
}

// Requisition is the provider-side bank-linking attempt
type Requisition struct {
	ID            string   `json:"id"`
	Created       string   `json:"created"`
	Redirect      string   `json:"redirect"`
	Status        string   `json:"status"` // CR, GC, UA, RJ, SA, GA, LN, EX, SU
	InstitutionID string   `json:"institution_id"`
	Agreement     string   `json:"agreement"`
	Reference     string   `json:"reference"`
	Accounts      []string `json:"accounts"`
	Link          string   `json:"link"`
}

type accountDetailsResponse struct {
	Account AccountDetails `json:"account"`
}

// AccountDetails holds the account metadata from GET /accounts/{id}/details/
type AccountDetails struct {
	ResourceID      string `json:"resourceId"`
	IBAN            string `json:"iban"`
	BIC             string `json:"bic"`
	Currency        string `json:"currency"`
	Name            string `json:"name"`
	Product         string `json:"product"`
	CashAccountType string `json:"cashAccountType"`
	OwnerName       string `json:"ownerName"`
}

type balancesResponse struct {
	Balances []Balance `json:"balances"`
}

// Balance is one balance entry, e.g. closingBooked or interimAvailable
type Balance struct {
	BalanceAmount Amount `json:"balanceAmount"`
	BalanceType   string `json:"balanceType"`
	ReferenceDate string `json:"referenceDate"`
}

// Amount is a decimal string with its ISO 4217 currency
type Amount struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

type transactionsResponse struct {
	Transactions AccountTransactions `json:"transactions"`
}

// AccountTransactions splits an account's transactions into booked and pending
type AccountTransactions struct {
	Booked  []BookedTransaction `json:"booked"`
	Pending []BookedTransaction `json:"pending"`
}

// BookedTransaction is a single transaction entry. Raw keeps the exact JSON the provider
// sent so the row can be reprocessed later.
type BookedTransaction struct {
	TransactionID                          string   `json:"transactionId"`
	InternalTransactionID                  string   `json:"internalTransactionId"`
	BookingDate                            string   `json:"bookingDate"`
	ValueDate                              string   `json:"valueDate"`
	TransactionAmount                      Amount   `json:"transactionAmount"`
	CreditorName                           string   `json:"creditorName"`
	DebtorName                             string   `json:"debtorName"`
	RemittanceInformationUnstructured      string   `json:"remittanceInformationUnstructured"`
	RemittanceInformationUnstructuredArray []string `json:"remittanceInformationUnstructuredArray"`
	AdditionalInformation                  string   `json:"additionalInformation"`

	Raw json.RawMessage `json:"-"`
}

func (t *BookedTransaction) UnmarshalJSON(data []byte) error {
	type plain BookedTransaction
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*t = BookedTransaction(p)
	t.Raw = append(json.RawMessage(nil), data...)
	return nil
}

// GetBookingDate parses the booking date ("2006-01-02")
func (t *BookedTransaction) GetBookingDate() (time.Time, error) {
	return parseDate(t.BookingDate)
}

// GetValueDate parses the value date, returning nil when absent
func (t *BookedTransaction) GetValueDate() (*time.Time, error) {
	if t.ValueDate == "" {
		return nil, nil
	}
	d, err := parseDate(t.ValueDate)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// Description returns the most specific human-readable text the bank provided
func (t *BookedTransaction) Description() string {
	if s := strings.TrimSpace(t.RemittanceInformationUnstructured); s != "" {
		return s
	}
	if len(t.RemittanceInformationUnstructuredArray) > 0 {
		return strings.TrimSpace(strings.Join(t.RemittanceInformationUnstructuredArray, " "))
	}
	return strings.TrimSpace(t.AdditionalInformation)
}

// Counterparty returns whichever of creditor or debtor name is populated
func (t *BookedTransaction) Counterparty() string {
	if s := strings.TrimSpace(t.CreditorName); s != "" {
		return s
	}
	return strings.TrimSpace(t.DebtorName)
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("date is empty")
	}
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		d, err = time.Parse(time.RFC3339, s)
		if err != nil {
			return time.Time{}, fmt.Errorf("failed to parse date '%s': %w", s, err)
		}
	}
	return d, nil
}

type errorResponse struct {
	Summary    string `json:"summary"`
	Detail     string `json:"detail"`
	StatusCode int    `json:"status_code"`
}

// flexInt accepts both 540 and "540".
type flexInt int

func (f *flexInt) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("invalid integer %s: %w", data, err)
	}
	*f = flexInt(n)
	return nil
}

// acceptedFlag decodes the agreement acceptance field, which is either null, a boolean or
// the acceptance timestamp.
type acceptedFlag bool

func (a *acceptedFlag) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch string(data) {
	case "null", `""`, "false":
		*a = false
	default:
		*a = true
	}
	return nil
}
