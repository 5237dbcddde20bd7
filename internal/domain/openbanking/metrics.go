package openbanking

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	syncTracer = otel.Tracer("tavola/sync")
	syncMeter  = otel.Meter("tavola/sync")
)

var (
	accountsTotal, _     = syncMeter.Int64Counter("sync.accounts.total", metric.WithDescription("Accounts synchronized by status"))
	transactionsTotal, _ = syncMeter.Int64Counter("sync.transactions.total", metric.WithDescription("Transactions processed by status"))
	tokenRenewals, _     = syncMeter.Int64Counter("provider.token.renewals", metric.WithDescription("Provider token renewals by method"))
)

func countAccount(ctx context.Context, status string) {
	accountsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

func countTransactions(ctx context.Context, status string, n int) {
	if n == 0 {
		return
	}
	transactionsTotal.Add(ctx, int64(n), metric.WithAttributes(attribute.String("status", status)))
}
