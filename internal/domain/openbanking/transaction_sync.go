package openbanking

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"tavola/internal/domain/transaction"
	ofclient "tavola/internal/infrastructure/openbanking"
)

// DefaultTransactionCap is the most booked transactions stored in one run.
const DefaultTransactionCap = 100

// TransactionSyncConfig configures the transaction synchronizer.
type TransactionSyncConfig struct {
	Cap int
	// LookbackDays limits the provider window; zero lets the agreement decide.
	LookbackDays int
}

// TransactionSyncResult contains the results of a transaction sync operation
type TransactionSyncResult struct {
	AccountID string `json:"accountId"`
	Found     int    `json:"found"`
	Created   int    `json:"created"`
	Updated   int    `json:"updated"`
	Failed    int    `json:"failed"`
	// Deferred counts older entries left for a later run.
	Deferred int `json:"deferred"`
}

// Synced is the number of transactions written in this run.
func (r *TransactionSyncResult) Synced() int {
	if r == nil {
		return 0
	}
	return r.Created + r.Updated
}

// TransactionSynchronizer mirrors booked transactions into local storage.
type TransactionSynchronizer struct {
	client ofclient.ClientInterface
	repo   transaction.Repository
	cfg    TransactionSyncConfig
	logger *zap.Logger
	now    func() time.Time
}

// NewTransactionSynchronizer creates a new transaction synchronizer
func NewTransactionSynchronizer(client ofclient.ClientInterface, repo transaction.Repository, cfg TransactionSyncConfig, logger *zap.Logger) *TransactionSynchronizer {
	if cfg.Cap <= 0 {
		cfg.Cap = DefaultTransactionCap
	}
	return &TransactionSynchronizer{
		client: client,
		repo:   repo,
		cfg:    cfg,
		logger: logger.Named("transaction_sync"),
		now:    time.Now,
	}
}

// SyncTransactions stores the most recent booked transactions of an account, at most
// cfg.Cap per run. Per-transaction failures are counted and skipped.
func (s *TransactionSynchronizer) SyncTransactions(ctx context.Context, accountID, token string) (*TransactionSyncResult, error) {
	ctx, span := syncTracer.Start(ctx, "transactions.sync", trace.WithAttributes(attribute.String("account.id", accountID)))
	defer span.End()

	var dateFrom time.Time
	if s.cfg.LookbackDays > 0 {
		dateFrom = s.now().AddDate(0, 0, -s.cfg.LookbackDays)
	}

	resp, err := s.client.GetAccountTransactions(ctx, token, accountID, dateFrom)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch transactions: %w", err)
	}

	booked := mostRecentFirst(resp.Booked)
	result := &TransactionSyncResult{AccountID: accountID, Found: len(booked)}
	if len(booked) > s.cfg.Cap {
		result.Deferred = len(booked) - s.cfg.Cap
		booked = booked[:s.cfg.Cap]
	}

	log := s.logger.With(zap.String("account_id", accountID))

	for i, entry := range booked {
		if ctx.Err() != nil {
			result.Deferred += len(booked) - i
			log.Warn("transaction sync interrupted", zap.Int("remaining", len(booked)-i), zap.Error(ctx.Err()))
			break
		}

		params, err := toUpsertParams(accountID, entry)
		if err != nil {
			result.Failed++
			log.Warn("skipping transaction", zap.String("transaction_id", entry.TransactionID), zap.Error(err))
			continue
		}

		created, err := s.repo.Upsert(ctx, params)
		if err != nil {
			result.Failed++
			log.Error("failed to upsert transaction", zap.String("transaction_id", params.ID), zap.Error(err))
			continue
		}
		if created {
			result.Created++
		} else {
			result.Updated++
		}
	}

	countTransactions(ctx, "created", result.Created)
	countTransactions(ctx, "updated", result.Updated)
	countTransactions(ctx, "failed", result.Failed)
	countTransactions(ctx, "deferred", result.Deferred)

	log.Info("transaction sync complete",
		zap.Int("found", result.Found),
		zap.Int("created", result.Created),
		zap.Int("updated", result.Updated),
		zap.Int("failed", result.Failed),
		zap.Int("deferred", result.Deferred),
	)

	return result, nil
}

// mostRecentFirst sorts by booking date descending. Entries with an unreadable date go
// last and keep their relative order.
func mostRecentFirst(entries []ofclient.BookedTransaction) []ofclient.BookedTransaction {
	type dated struct {
		entry ofclient.BookedTransaction
		date  time.Time
		ok    bool
	}

	items := make([]dated, len(entries))
	for i, e := range entries {
		d, err := e.GetBookingDate()
		items[i] = dated{entry: e, date: d, ok: err == nil}
	}

	sort.SliceStable(items, func(i, j int) bool {
		if items[i].ok != items[j].ok {
			return items[i].ok
		}
		return items[i].date.After(items[j].date)
	})

	out := make([]ofclient.BookedTransaction, len(items))
	for i, it := range items {
		out[i] = it.entry
	}
	return out
}

func toUpsertParams(accountID string, entry ofclient.BookedTransaction) (transaction.UpsertTransactionParams, error) {
	bookingDate, err := entry.GetBookingDate()
	if err != nil {
		return transaction.UpsertTransactionParams{}, err
	}
	valueDate, err := entry.GetValueDate()
	if err != nil {
		return transaction.UpsertTransactionParams{}, err
	}

	amount, err := decimal.NewFromString(strings.TrimSpace(entry.TransactionAmount.Amount))
	if err != nil {
		return transaction.UpsertTransactionParams{}, fmt.Errorf("invalid amount %q: %w", entry.TransactionAmount.Amount, err)
	}

	description := entry.Description()

	id := strings.TrimSpace(entry.TransactionID)
	if id == "" {
		id = strings.TrimSpace(entry.InternalTransactionID)
	}
	if id == "" {
		id = transaction.FallbackKey(accountID, bookingDate.Format("2006-01-02"), amount, description)
	}

	params := transaction.UpsertTransactionParams{
		ID:               id,
		AccountID:        accountID,
		Amount:           amount,
		Currency:         strings.ToUpper(strings.TrimSpace(entry.TransactionAmount.Currency)),
		Description:      description,
		BookingDate:      bookingDate,
		ValueDate:        valueDate,
		CounterpartyName: entry.Counterparty(),
		Type:             transaction.TypeFromAmount(amount),
		Status:           transaction.StatusBooked,
		RawPayload:       entry.Raw,
	}
	return params, params.Validate()
}
