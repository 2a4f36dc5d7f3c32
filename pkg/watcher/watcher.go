// Package watcher observes ledger events and reconciles coordinator state
// with the escrow ledger in the background.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/chainsafe/escrow-middleware/internal/metrics"
	"github.com/chainsafe/escrow-middleware/pkg/ledger"
	"github.com/chainsafe/escrow-middleware/pkg/transfer"
	"github.com/chainsafe/escrow-middleware/pkg/transferstore"
)

// Store is the subset of transfer persistence the watcher needs.
type Store interface {
	MarkDepositObserved(ctx context.Context, transferID, txRef string) error
	ListByStatus(ctx context.Context, status transfer.Status) ([]*transfer.PendingTransfer, error)
	ListExpired(ctx context.Context, asOf time.Time) ([]*transfer.PendingTransfer, error)
}

// Watcher consumes ledger events to mark deposits observed and periodically
// sweeps the store for pending transfers past expiry.
type Watcher struct {
	store         Store
	events        <-chan ledger.Event
	sweepInterval time.Duration
	logger        *zap.Logger
}

// New creates a watcher reading from the given ledger event stream.
func New(store Store, events <-chan ledger.Event, sweepInterval time.Duration, logger *zap.Logger) *Watcher {
	if sweepInterval <= 0 {
		sweepInterval = 5 * time.Minute
	}
	return &Watcher{
		store:         store,
		events:        events,
		sweepInterval: sweepInterval,
		logger:        logger,
	}
}

// Run processes events and sweeps until ctx is canceled or the event stream
// closes.
func (w *Watcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.sweepInterval)
	defer ticker.Stop()

	w.logger.Info("watcher started", zap.Duration("sweep_interval", w.sweepInterval))

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("watcher stopped")
			return nil
		case ev, ok := <-w.events:
			if !ok {
				w.logger.Warn("ledger event stream closed")
				return nil
			}
			w.handleEvent(ctx, ev)
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *Watcher) handleEvent(ctx context.Context, ev ledger.Event) {
	if ev.Type != ledger.EventDeposited {
		return
	}

	txRef := fmt.Sprintf("ledger:%d", ev.Seq)
	err := w.store.MarkDepositObserved(ctx, ev.TransferID.Hex(), txRef)
	if err != nil {
		// Deposits for transfers the coordinator never prepared are normal:
		// signature-mode senders may deposit without involving us.
		if errors.Is(err, transferstore.ErrTransferNotFound) {
			metrics.DepositsObserved.WithLabelValues("unmatched").Inc()
			w.logger.Debug("deposit for unknown transfer",
				zap.String("transfer_id", ev.TransferID.Hex()),
			)
			return
		}
		metrics.DepositsObserved.WithLabelValues("error").Inc()
		w.logger.Error("failed to mark deposit observed",
			zap.String("transfer_id", ev.TransferID.Hex()),
			zap.Error(err),
		)
		return
	}

	metrics.DepositsObserved.WithLabelValues("matched").Inc()
	w.logger.Info("deposit observed",
		zap.String("transfer_id", ev.TransferID.Hex()),
		zap.String("tx_ref", txRef),
	)
}

// sweep refreshes the pending and expired transfer gauges. Expired transfers
// stay pending in the store; expiry only gates which operations remain valid.
func (w *Watcher) sweep(ctx context.Context) {
	pending, err := w.store.ListByStatus(ctx, transfer.StatusPending)
	if err != nil {
		w.logger.Error("sweep failed to list pending transfers", zap.Error(err))
		return
	}
	metrics.PendingTransfers.Set(float64(len(pending)))

	expired, err := w.store.ListExpired(ctx, time.Now())
	if err != nil {
		w.logger.Error("sweep failed to list expired transfers", zap.Error(err))
		return
	}
	metrics.ExpiredTransfers.Set(float64(len(expired)))

	if len(expired) > 0 {
		w.logger.Info("sweep found refundable transfers",
			zap.Int("expired", len(expired)),
		)
	}
}
