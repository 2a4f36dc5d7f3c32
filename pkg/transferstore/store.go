package transferstore

import (
	"context"
	"errors"
	"time"

	"github.com/chainsafe/escrow-middleware/pkg/transfer"
)

var (
	// ErrTransferNotFound is returned when a transfer lookup finds no record.
	ErrTransferNotFound = errors.New("pending transfer not found")
	// ErrDuplicateTransfer is returned when a transfer ID is inserted twice.
	ErrDuplicateTransfer = errors.New("pending transfer already exists")
	// ErrStatusConflict is returned when a guarded status update matched no
	// row, meaning another writer already moved the transfer out of the
	// expected status.
	ErrStatusConflict = errors.New("transfer status changed concurrently")
)

// Store defines the coordinator's persistence interface.
type Store interface {
	CreateTransfer(ctx context.Context, t *transfer.PendingTransfer) error
	GetTransfer(ctx context.Context, opts ...QueryOption) (*transfer.PendingTransfer, error)
	TransferExists(ctx context.Context, transferID string) (bool, error)
	MarkDepositObserved(ctx context.Context, transferID, txRef string) error

	// UpdateStatus moves a transfer from one status to another. The update is
	// guarded on the current status so concurrent claimers cannot both win.
	UpdateStatus(ctx context.Context, transferID string, from, to transfer.Status) error

	ListByStatus(ctx context.Context, status transfer.Status) ([]*transfer.PendingTransfer, error)
	ListByRecipient(ctx context.Context, recipientIdentity string) ([]*transfer.PendingTransfer, error)
	ListExpired(ctx context.Context, asOf time.Time) ([]*transfer.PendingTransfer, error)

	RecordSettlement(ctx context.Context, s *transfer.Settlement) error
	ListSettlements(ctx context.Context, transferID string) ([]*transfer.Settlement, error)

	RecordIssuedNonce(ctx context.Context, recipient string, nonce int64) error
	LastIssuedNonce(ctx context.Context, recipient string) (int64, bool, error)
}

// QueryOptions defines filters for transfer lookups.
type QueryOptions struct {
	TransferID        *string
	RecipientIdentity *string
}

// QueryOption is a functional option for transfer lookups.
type QueryOption func(*QueryOptions)

// WithTransferID filters by transfer identifier.
func WithTransferID(transferID string) QueryOption {
	return func(opts *QueryOptions) {
		opts.TransferID = &transferID
	}
}

// WithRecipientIdentity filters by normalized recipient identity.
func WithRecipientIdentity(identity string) QueryOption {
	return func(opts *QueryOptions) {
		opts.RecipientIdentity = &identity
	}
}
