package transferstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/chainsafe/escrow-middleware/pkg/transfer"
)

type pgStore struct {
	db *bun.DB
}

// NewStore creates a new postgres implementation of the transfer store.
func NewStore(db *bun.DB) *pgStore {
	return &pgStore{db: db}
}

func (s *pgStore) CreateTransfer(ctx context.Context, t *transfer.PendingTransfer) error {
	dao := toTransferDao(t)

	_, err := s.db.NewInsert().
		Model(dao).
		Exec(ctx)
	if err != nil {
		var pgErr pgdriver.Error
		if errors.As(err, &pgErr) && pgErr.IntegrityViolation() {
			return ErrDuplicateTransfer
		}
		return fmt.Errorf("failed to create pending transfer: %w", err)
	}
	return nil
}

func (s *pgStore) GetTransfer(ctx context.Context, opts ...QueryOption) (*transfer.PendingTransfer, error) {
	options := &QueryOptions{}
	for _, opt := range opts {
		opt(options)
	}

	dao := new(PendingTransferDao)
	query := s.db.NewSelect().Model(dao)

	if options.TransferID != nil {
		query = query.Where("transfer_id = ?", *options.TransferID)
	}
	if options.RecipientIdentity != nil {
		query = query.Where("recipient_identity = ?", *options.RecipientIdentity)
	}

	err := query.Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTransferNotFound
		}
		return nil, fmt.Errorf("failed to get pending transfer: %w", err)
	}
	return toTransfer(dao), nil
}

func (s *pgStore) TransferExists(ctx context.Context, transferID string) (bool, error) {
	exists, err := s.db.NewSelect().
		Model((*PendingTransferDao)(nil)).
		Where("transfer_id = ?", transferID).
		Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to check transfer exists: %w", err)
	}
	return exists, nil
}

func (s *pgStore) MarkDepositObserved(ctx context.Context, transferID, txRef string) error {
	res, err := s.db.NewUpdate().
		Model((*PendingTransferDao)(nil)).
		Set("deposit_tx_ref = ?", txRef).
		Set("updated_at = NOW()").
		Where("transfer_id = ?", transferID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to mark deposit observed: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrTransferNotFound
	}
	return nil
}

func (s *pgStore) UpdateStatus(ctx context.Context, transferID string, from, to transfer.Status) error {
	res, err := s.db.NewUpdate().
		Model((*PendingTransferDao)(nil)).
		Set("status = ?", string(to)).
		Set("updated_at = NOW()").
		Where("transfer_id = ?", transferID).
		Where("status = ?", string(from)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update transfer status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		exists, existsErr := s.TransferExists(ctx, transferID)
		if existsErr != nil {
			return existsErr
		}
		if !exists {
			return ErrTransferNotFound
		}
		return ErrStatusConflict
	}
	return nil
}

func (s *pgStore) ListByStatus(ctx context.Context, status transfer.Status) ([]*transfer.PendingTransfer, error) {
	var daos []PendingTransferDao
	err := s.db.NewSelect().
		Model(&daos).
		Where("status = ?", string(status)).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list transfers by status: %w", err)
	}
	return toTransfers(daos), nil
}

func (s *pgStore) ListByRecipient(ctx context.Context, recipientIdentity string) ([]*transfer.PendingTransfer, error) {
	var daos []PendingTransferDao
	err := s.db.NewSelect().
		Model(&daos).
		Where("recipient_identity = ?", recipientIdentity).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list transfers by recipient: %w", err)
	}
	return toTransfers(daos), nil
}

func (s *pgStore) ListExpired(ctx context.Context, asOf time.Time) ([]*transfer.PendingTransfer, error) {
	var daos []PendingTransferDao
	err := s.db.NewSelect().
		Model(&daos).
		Where("status = ?", string(transfer.StatusPending)).
		Where("expiry_date <= ?", asOf).
		Order("expiry_date ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list expired transfers: %w", err)
	}
	return toTransfers(daos), nil
}

func (s *pgStore) RecordSettlement(ctx context.Context, st *transfer.Settlement) error {
	_, err := s.db.NewInsert().
		Model(toSettlementDao(st)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to record settlement: %w", err)
	}
	return nil
}

func (s *pgStore) ListSettlements(ctx context.Context, transferID string) ([]*transfer.Settlement, error) {
	var daos []SettlementDao
	err := s.db.NewSelect().
		Model(&daos).
		Where("transfer_id = ?", transferID).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list settlements: %w", err)
	}
	settlements := make([]*transfer.Settlement, len(daos))
	for i := range daos {
		settlements[i] = toSettlement(&daos[i])
	}
	return settlements, nil
}

func (s *pgStore) RecordIssuedNonce(ctx context.Context, recipient string, nonce int64) error {
	dao := &AuthorityNonceDao{Recipient: recipient, Nonce: nonce}
	_, err := s.db.NewInsert().
		Model(dao).
		On("CONFLICT (recipient) DO UPDATE").
		Set("nonce = EXCLUDED.nonce").
		Set("updated_at = NOW()").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to record issued nonce: %w", err)
	}
	return nil
}

func (s *pgStore) LastIssuedNonce(ctx context.Context, recipient string) (int64, bool, error) {
	dao := new(AuthorityNonceDao)
	err := s.db.NewSelect().
		Model(dao).
		Where("recipient = ?", recipient).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to get issued nonce: %w", err)
	}
	return dao.Nonce, true, nil
}

func toTransfers(daos []PendingTransferDao) []*transfer.PendingTransfer {
	transfers := make([]*transfer.PendingTransfer, len(daos))
	for i := range daos {
		transfers[i] = toTransfer(&daos[i])
	}
	return transfers
}
