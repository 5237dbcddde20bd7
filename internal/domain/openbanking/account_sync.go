package openbanking

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"tavola/internal/domain/account"
	"tavola/internal/domain/requisition"
	ofclient "tavola/internal/infrastructure/openbanking"
)

// DefaultBalanceType is the balance entry used for the account snapshot.
const DefaultBalanceType = "closingBooked"

// DefaultCurrency is stored when neither the account details nor its balances name a currency.
const DefaultCurrency = "EUR"

// DefaultAccountWorkers bounds concurrent account synchronization.
const DefaultAccountWorkers = 4

// AccountSyncConfig configures the account synchronizer.
type AccountSyncConfig struct {
	// BalanceTypes lists balance types in order of preference.
	BalanceTypes    []string
	Workers         int
	DefaultCurrency string
}

// AccountOutcome is the per-account result of a batch.
type AccountOutcome struct {
	AccountID    string
	Account      *account.Account
	Transactions *TransactionSyncResult
	Err          error
}

// OK reports whether the account itself was synchronized.
func (o AccountOutcome) OK() bool { return o.Err == nil && o.Account != nil }

// AccountSynchronizer mirrors provider accounts into local storage.
type AccountSynchronizer struct {
	client   ofclient.ClientInterface
	accounts *account.Service
	cfg      AccountSyncConfig
	logger   *zap.Logger
	now      func() time.Time
}

// NewAccountSynchronizer creates a new account synchronizer
func NewAccountSynchronizer(client ofclient.ClientInterface, accounts *account.Service, cfg AccountSyncConfig, logger *zap.Logger) *AccountSynchronizer {
	if len(cfg.BalanceTypes) == 0 {
		cfg.BalanceTypes = []string{DefaultBalanceType}
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultAccountWorkers
	}
	if cfg.DefaultCurrency == "" {
		cfg.DefaultCurrency = DefaultCurrency
	}
	return &AccountSynchronizer{
		client:   client,
		accounts: accounts,
		cfg:      cfg,
		logger:   logger.Named("account_sync"),
		now:      time.Now,
	}
}

// SyncAccount fetches details and balances for one account and upserts it.
func (s *AccountSynchronizer) SyncAccount(ctx context.Context, accountID, token string, req *requisition.Requisition) (*account.Account, error) {
	ctx, span := syncTracer.Start(ctx, "account.sync", trace.WithAttributes(attribute.String("account.id", accountID)))
	defer span.End()

	details, err := s.client.GetAccountDetails(ctx, token, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch account details: %w", err)
	}

	balances, err := s.client.GetAccountBalances(ctx, token, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch account balances: %w", err)
	}

	balance, balanceCurrency, found, err := selectBalance(balances, s.cfg.BalanceTypes)
	if err != nil {
		return nil, err
	}
	if !found {
		s.logger.Warn("no preferred balance entry, storing zero balance",
			zap.String("account_id", accountID),
			zap.Strings("balance_types", s.cfg.BalanceTypes),
			zap.Int("entries", len(balances)),
		)
	}

	currency := details.Currency
	if currency == "" {
		currency = balanceCurrency
	}
	if currency == "" {
		s.logger.Warn("account has no currency, using default",
			zap.String("account_id", accountID),
			zap.String("currency", s.cfg.DefaultCurrency),
		)
		currency = s.cfg.DefaultCurrency
	}

	params := account.UpsertParams{
		ID:           accountID,
		Name:         displayName(details),
		IBAN:         details.IBAN,
		Currency:     currency,
		Balance:      balance,
		Status:       account.StatusActive,
		LastSyncedAt: s.now(),
	}
	if req != nil {
		params.InstitutionID = req.InstitutionID
		params.RequisitionID = req.ID
	}

	acc, err := s.accounts.UpsertAccount(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert account: %w", err)
	}
	return acc, nil
}

// SyncAccounts synchronizes every account id with bounded concurrency. A failing account
// never stops the others; outcomes keep the order of accountIDs.
func (s *AccountSynchronizer) SyncAccounts(ctx context.Context, token string, req *requisition.Requisition, accountIDs []string) []AccountOutcome {
	outcomes := make([]AccountOutcome, len(accountIDs))

	var g errgroup.Group
	g.SetLimit(s.cfg.Workers)
	for i, id := range accountIDs {
		g.Go(func() error {
			outcomes[i] = AccountOutcome{AccountID: id}
			if err := ctx.Err(); err != nil {
				outcomes[i].Err = fmt.Errorf("deferred: %w", err)
				countAccount(ctx, "deferred")
				return nil
			}

			acc, err := s.SyncAccount(ctx, id, token, req)
			if err != nil {
				s.logger.Error("account sync failed", zap.String("account_id", id), zap.Error(err))
				outcomes[i].Err = err
				countAccount(ctx, "failed")
				return nil
			}
			outcomes[i].Account = acc
			countAccount(ctx, "synced")
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

// selectBalance returns the first balance whose type matches the preference order.
// found is false when no entry matches; the balance is then zero.
func selectBalance(balances []ofclient.Balance, preference []string) (amount decimal.Decimal, currency string, found bool, err error) {
	for _, want := range preference {
		for _, b := range balances {
			if b.BalanceType != want {
				continue
			}
			v, perr := decimal.NewFromString(strings.TrimSpace(b.BalanceAmount.Amount))
			if perr != nil {
				return decimal.Zero, "", false, fmt.Errorf("invalid %s balance %q: %w", want, b.BalanceAmount.Amount, perr)
			}
			return v, b.BalanceAmount.Currency, true, nil
		}
	}

	if len(balances) > 0 {
		currency = balances[0].BalanceAmount.Currency
	}
	return decimal.Zero, currency, false, nil
}

// displayName picks a human label for the account.
func displayName(d *ofclient.AccountDetails) string {
	for _, candidate := range []string{d.Name, d.Product, d.CashAccountType} {
		if s := strings.TrimSpace(candidate); s != "" {
			return s
		}
	}
	iban := strings.ReplaceAll(d.IBAN, " ", "")
	if len(iban) >= 4 {
		return "Account ••••" + iban[len(iban)-4:]
	}
	return "Account"
}
