// Package listener reacts to Postgres NOTIFY events.
package listener

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"tavola/internal/domain/openbanking"
)

const (
	// ResyncChannel carries requisition ids queued for a resync.
	ResyncChannel     = "requisition_resync"
	reconnectInterval = 5 * time.Second
	resyncTimeout     = 2 * time.Minute
)

// ResyncNotification is the NOTIFY payload.
type ResyncNotification struct {
	RequisitionID string `json:"requisition_id"`
}

// Resyncer runs the account and transaction sync for one requisition.
type Resyncer interface {
	ResyncRequisition(ctx context.Context, requisitionID string) (*openbanking.CallbackResult, error)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// ResyncListener resyncs requisitions queued through NotifyResync. Notifications are
// handled one at a time, so queued resyncs never compete for the provider rate limit.
type ResyncListener struct {
	connStr    string
	resyncer   Resyncer
	logger     *zap.Logger
	shutdownCh chan struct{}
	done       chan struct{}
}

func NewResyncListener(connStr string, resyncer Resyncer, logger *zap.Logger) *ResyncListener {
	return &ResyncListener{
		connStr:    connStr,
		resyncer:   resyncer,
		logger:     logger.Named("resync_listener"),
		shutdownCh: make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Start begins listening in a background goroutine
func (l *ResyncListener) Start(ctx context.Context) {
	go l.listen(ctx)
	l.logger.Info("resync listener started", zap.String("channel", ResyncChannel))
}

// Stop waits for the in-flight resync, if any, to finish
func (l *ResyncListener) Stop() {
	close(l.shutdownCh)
	<-l.done
	l.logger.Info("resync listener stopped")
}

func (l *ResyncListener) listen(ctx context.Context) {
	defer close(l.done)

	for {
		select {
		case <-l.shutdownCh:
			return
		case <-ctx.Done():
			return
		default:
			l.connectAndListen(ctx)
		}

		select {
		case <-l.shutdownCh:
			return
		case <-ctx.Done():
			return
		case <-time.After(reconnectInterval):
			l.logger.Info("reconnecting notification listener")
		}
	}
}

func (l *ResyncListener) connectAndListen(ctx context.Context) {
	pl := pq.NewListener(l.connStr, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		switch ev {
		case pq.ListenerEventConnected:
			l.logger.Debug("notification channel connected")
		case pq.ListenerEventDisconnected:
			l.logger.Warn("notification channel disconnected", zap.Error(err))
		case pq.ListenerEventReconnected:
			l.logger.Info("notification channel reconnected")
		case pq.ListenerEventConnectionAttemptFailed:
			l.logger.Warn("notification channel connection failed", zap.Error(err))
		}
	})
	defer pl.Close()

	if err := pl.Listen(ResyncChannel); err != nil {
		l.logger.Error("failed to listen", zap.String("channel", ResyncChannel), zap.Error(err))
		return
	}

	for {
		select {
		case <-l.shutdownCh:
			return
		case <-ctx.Done():
			return
		case n := <-pl.Notify:
			if n == nil {
				// connection lost
				return
			}
			l.handleNotification(n)
		case <-time.After(90 * time.Second):
			go func() {
				if err := pl.Ping(); err != nil {
					l.logger.Warn("listener ping failed", zap.Error(err))
				}
			}()
		}
	}
}

func (l *ResyncListener) handleNotification(n *pq.Notification) {
	var payload ResyncNotification
	if err := json.Unmarshal([]byte(n.Extra), &payload); err != nil || payload.RequisitionID == "" {
		l.logger.Warn("ignoring malformed notification", zap.String("payload", n.Extra), zap.Error(err))
		return
	}

	// Detached from the listener context so shutdown lets the current resync finish.
	ctx, cancel := context.WithTimeout(context.Background(), resyncTimeout)
	defer cancel()

	res, err := l.resyncer.ResyncRequisition(ctx, payload.RequisitionID)
	if err != nil {
		l.logger.Error("resync failed", zap.String("requisition_id", payload.RequisitionID), zap.Error(err))
		return
	}
	l.logger.Info("resync finished",
		zap.String("requisition_id", payload.RequisitionID),
		zap.String("status", string(res.Status)),
		zap.Bool("pending", res.Pending),
		zap.Int("synced", res.Synced),
		zap.Int("failed", res.Failed),
	)
}

// ErrEmptyRequisitionID is returned by NotifyResync for a blank id.
var ErrEmptyRequisitionID = errors.New("requisition id is required")

// NotifyResync queues a resync for whichever process is listening.
func NotifyResync(ctx context.Context, db execer, requisitionID string) error {
	if requisitionID == "" {
		return ErrEmptyRequisitionID
	}
	payload, err := json.Marshal(ResyncNotification{RequisitionID: requisitionID})
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}
	if _, err := db.ExecContext(ctx, `SELECT pg_notify($1, $2)`, ResyncChannel, string(payload)); err != nil {
		return fmt.Errorf("failed to notify: %w", err)
	}
	return nil
}
