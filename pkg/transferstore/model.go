package transferstore

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/chainsafe/escrow-middleware/pkg/transfer"
)

// PendingTransferDao is a data access object that maps directly to the
// 'pending_transfers' table in PostgreSQL.
type PendingTransferDao struct {
	bun.BaseModel       `bun:"table:pending_transfers,alias:pt"`
	TransferID          string    `bun:"transfer_id,pk,type:varchar(66)"`
	SenderIdentity      string    `bun:"sender_identity,notnull,type:varchar(255)"`
	RecipientIdentity   string    `bun:"recipient_identity,notnull,type:varchar(255)"`
	Amount              string    `bun:"amount,notnull,type:numeric(38,18)"`
	ClaimTokenEncrypted string    `bun:"claim_token_encrypted,notnull,type:text"`
	Status              string    `bun:"status,notnull,type:varchar(16)"`
	ExpiryDate          time.Time `bun:"expiry_date,notnull"`
	DepositTxRef        *string   `bun:"deposit_tx_ref,type:varchar(255)"`
	CreatedAt           time.Time `bun:"created_at,nullzero,default:current_timestamp"`
	UpdatedAt           time.Time `bun:"updated_at,nullzero,default:current_timestamp"`
}

// SettlementDao maps to the 'settlements' table: one row per confirmed
// on-ledger release or refund.
type SettlementDao struct {
	bun.BaseModel `bun:"table:settlements,alias:st"`
	ID            string    `bun:"id,pk,type:uuid"`
	TransferID    string    `bun:"transfer_id,notnull,type:varchar(66)"`
	Kind          string    `bun:"kind,notnull,type:varchar(16)"`
	Mode          string    `bun:"mode,notnull,type:varchar(16)"`
	TxRef         string    `bun:"tx_ref,notnull,type:varchar(255)"`
	CreatedAt     time.Time `bun:"created_at,nullzero,default:current_timestamp"`
}

// AuthorityNonceDao maps to the 'authority_nonces' table, recording the last
// nonce the authority issued a signature for, per recipient address.
type AuthorityNonceDao struct {
	bun.BaseModel `bun:"table:authority_nonces,alias:an"`
	Recipient     string    `bun:"recipient,pk,type:varchar(42)"`
	Nonce         int64     `bun:"nonce,notnull"`
	UpdatedAt     time.Time `bun:"updated_at,nullzero,default:current_timestamp"`
}

func toTransferDao(t *transfer.PendingTransfer) *PendingTransferDao {
	dao := &PendingTransferDao{
		TransferID:          t.TransferID,
		SenderIdentity:      t.SenderIdentity,
		RecipientIdentity:   t.RecipientIdentity,
		Amount:              t.Amount,
		ClaimTokenEncrypted: t.ClaimTokenEncrypted,
		Status:              string(t.Status),
		ExpiryDate:          t.ExpiryDate,
	}
	if t.DepositTxRef != "" {
		dao.DepositTxRef = &t.DepositTxRef
	}
	return dao
}

func toTransfer(dao *PendingTransferDao) *transfer.PendingTransfer {
	t := &transfer.PendingTransfer{
		TransferID:          dao.TransferID,
		SenderIdentity:      dao.SenderIdentity,
		RecipientIdentity:   dao.RecipientIdentity,
		Amount:              dao.Amount,
		ClaimTokenEncrypted: dao.ClaimTokenEncrypted,
		Status:              transfer.Status(dao.Status),
		ExpiryDate:          dao.ExpiryDate,
		CreatedAt:           dao.CreatedAt,
		UpdatedAt:           dao.UpdatedAt,
	}
	if dao.DepositTxRef != nil {
		t.DepositTxRef = *dao.DepositTxRef
	}
	return t
}

func toSettlementDao(s *transfer.Settlement) *SettlementDao {
	return &SettlementDao{
		ID:         s.ID,
		TransferID: s.TransferID,
		Kind:       string(s.Kind),
		Mode:       s.Mode,
		TxRef:      s.TxRef,
	}
}

func toSettlement(dao *SettlementDao) *transfer.Settlement {
	return &transfer.Settlement{
		ID:         dao.ID,
		TransferID: dao.TransferID,
		Kind:       transfer.SettlementKind(dao.Kind),
		Mode:       dao.Mode,
		TxRef:      dao.TxRef,
		CreatedAt:  dao.CreatedAt,
	}
}
