// Package ledger implements the escrow ledger: an append-only store of
// deposit entries with one-time release, dispute flagging and timeout-gated
// refund. The ledger knows nothing about off-ledger identities; it only sees
// commitments, signatures and addresses.
package ledger

import (
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"github.com/chainsafe/escrow-middleware/pkg/escrowsig"
)

// Ledger serializes every state-mutating operation under one mutex, so a
// deposit, release or refund is observed as a single atomic step: concurrent
// releases of the same transfer race only up to "first one wins, second sees
// already-claimed". Verification always completes before any fund movement.
type Ledger struct {
	mu sync.Mutex

	params  Params
	bank    *Bank
	entries map[common.Hash]*Entry
	nonces  map[common.Address]uint64
	paused  bool

	subs     []chan Event
	eventSeq uint64

	logger *zap.Logger
	now    func() time.Time
}

// New creates a ledger backed by the given bank.
func New(params Params, bank *Bank, logger *zap.Logger) (*Ledger, error) {
	if err := params.validate(); err != nil {
		return nil, fmt.Errorf("invalid ledger params: %w", err)
	}
	if bank == nil {
		bank = NewBank()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{
		params:  params,
		bank:    bank,
		entries: make(map[common.Hash]*Entry),
		nonces:  make(map[common.Address]uint64),
		logger:  logger,
		now:     time.Now,
	}, nil
}

// Bank returns the custody backend.
func (l *Ledger) Bank() *Bank { return l.bank }

// Address returns the ledger's deployment address. Funds in escrow are held
// on this account.
func (l *Ledger) Address() common.Address { return l.params.Address }

// ChainID returns the chain identifier mixed into authorization digests.
func (l *Ledger) ChainID() uint64 { return l.params.ChainID }

// Deposit escrows amount from the depositor under transferID. The expiry is
// fixed at deposit time as now + timeout. The commitment may be the zero hash
// for deposits that will be released in signature mode.
func (l *Ledger) Deposit(
	depositor common.Address,
	transferID common.Hash,
	amount *big.Int,
	commitment common.Hash,
	timeout time.Duration,
) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.paused {
		return ErrPaused
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrZeroAmount
	}
	if timeout <= 0 || timeout > l.params.MaxTimeout {
		return ErrInvalidTimeout
	}
	if _, exists := l.entries[transferID]; exists {
		return ErrTransferExists
	}

	if err := l.bank.Transfer(depositor, l.params.Address, amount); err != nil {
		return fmt.Errorf("escrow deposit: %w", err)
	}

	entry := &Entry{
		TransferID: transferID,
		Depositor:  depositor,
		Amount:     new(big.Int).Set(amount),
		ExpiresAt:  l.now().Add(timeout),
		Commitment: commitment,
	}
	l.entries[transferID] = entry

	l.logger.Info("deposit escrowed",
		zap.String("transfer_id", transferID.Hex()),
		zap.String("depositor", depositor.Hex()),
		zap.String("amount", amount.String()),
		zap.Time("expires_at", entry.ExpiresAt),
	)
	l.emit(Event{
		Type:       EventDeposited,
		TransferID: transferID,
		Depositor:  depositor,
		Amount:     new(big.Int).Set(amount),
		ExpiresAt:  entry.ExpiresAt,
	})
	return nil
}

// Release verifies the mode-specific proof and, on success, marks the entry
// claimed and pays amount to the recipient. Secret proofs are restricted to
// the coordinator identity; signature proofs are open to any caller holding a
// valid authority signature for (transferID, recipient).
func (l *Ledger) Release(
	caller common.Address,
	transferID common.Hash,
	recipient common.Address,
	proof Proof,
) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.paused {
		return ErrPaused
	}
	entry, err := l.activeEntry(transferID)
	if err != nil {
		return err
	}
	if !l.now().Before(entry.ExpiresAt) {
		return ErrTransferExpired
	}

	switch p := proof.(type) {
	case SecretProof:
		if caller != l.params.Coordinator {
			return ErrNotCoordinator
		}
		if entry.Commitment == (common.Hash{}) {
			return ErrNoCommitment
		}
		if crypto.Keccak256Hash(p.Secret) != entry.Commitment {
			return ErrSecretMismatch
		}
	case SignatureProof:
		if !l.now().Before(p.Deadline) {
			return escrowsig.ErrDeadlinePassed
		}
		auth := escrowsig.Authorization{
			TransferID: transferID,
			Recipient:  recipient,
			Deadline:   p.Deadline,
			Nonce:      l.nonces[recipient],
			LedgerAddr: l.params.Address,
			ChainID:    l.params.ChainID,
		}
		signer, err := escrowsig.Recover(auth, p.Signature)
		if err != nil {
			return err
		}
		if signer != l.params.Authority {
			return escrowsig.ErrUnknownSigner
		}
	default:
		return fmt.Errorf("unsupported proof type %T", proof)
	}

	if err := l.settle(entry, recipient); err != nil {
		return err
	}
	entry.Claimed = true

	// A signature can never authorize a second release: the recipient nonce
	// it was issued against is consumed here.
	if _, ok := proof.(SignatureProof); ok {
		l.nonces[recipient]++
	}

	l.logger.Info("escrow released",
		zap.String("transfer_id", transferID.Hex()),
		zap.String("recipient", recipient.Hex()),
		zap.String("mode", proof.mode()),
	)
	l.emit(Event{
		Type:       EventReleased,
		TransferID: transferID,
		Depositor:  entry.Depositor,
		Recipient:  recipient,
		Amount:     new(big.Int).Set(entry.Amount),
	})
	return nil
}

// Refund returns the escrowed amount to the depositor. Only the depositor may
// call it, and only after expiry or once the entry is disputed.
func (l *Ledger) Refund(caller common.Address, transferID common.Hash) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.paused {
		return ErrPaused
	}
	entry, err := l.activeEntry(transferID)
	if err != nil {
		return err
	}
	if caller != entry.Depositor {
		return ErrNotDepositor
	}
	if l.now().Before(entry.ExpiresAt) && !entry.Disputed {
		return ErrNotExpired
	}
	return l.refundLocked(entry)
}

// Dispute flags an active entry so the depositor can refund before expiry.
// It is one-way, idempotent and moves no funds.
func (l *Ledger) Dispute(caller common.Address, transferID common.Hash) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, err := l.activeEntry(transferID)
	if err != nil {
		return err
	}
	if caller != entry.Depositor {
		return ErrNotDepositor
	}
	if entry.Disputed {
		return nil
	}
	entry.Disputed = true

	l.logger.Info("escrow disputed", zap.String("transfer_id", transferID.Hex()))
	l.emit(Event{
		Type:       EventDisputed,
		TransferID: transferID,
		Depositor:  entry.Depositor,
		Amount:     new(big.Int).Set(entry.Amount),
	})
	return nil
}

// EmergencyRelease pays a stuck entry to recipient without proof or expiry
// checks. Admin only; the claimed/refunded exclusion still holds.
func (l *Ledger) EmergencyRelease(caller common.Address, transferID common.Hash, recipient common.Address) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if caller != l.params.Admin {
		return ErrNotAdmin
	}
	entry, err := l.activeEntry(transferID)
	if err != nil {
		return err
	}
	if err := l.settle(entry, recipient); err != nil {
		return err
	}
	entry.Claimed = true

	l.logger.Warn("emergency release",
		zap.String("transfer_id", transferID.Hex()),
		zap.String("recipient", recipient.Hex()),
	)
	l.emit(Event{
		Type:       EventReleased,
		TransferID: transferID,
		Depositor:  entry.Depositor,
		Recipient:  recipient,
		Amount:     new(big.Int).Set(entry.Amount),
	})
	return nil
}

// EmergencyRefund returns a stuck entry to its depositor without expiry or
// dispute checks. Admin only.
func (l *Ledger) EmergencyRefund(caller common.Address, transferID common.Hash) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if caller != l.params.Admin {
		return ErrNotAdmin
	}
	entry, err := l.activeEntry(transferID)
	if err != nil {
		return err
	}
	l.logger.Warn("emergency refund", zap.String("transfer_id", transferID.Hex()))
	return l.refundLocked(entry)
}

// SetPaused flips the global pause switch. While paused, deposit, release and
// refund are rejected; reads still work.
func (l *Ledger) SetPaused(caller common.Address, paused bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if caller != l.params.Admin {
		return ErrNotAdmin
	}
	l.paused = paused
	l.logger.Info("ledger pause switched", zap.Bool("paused", paused))
	return nil
}

// Paused reports the pause switch state.
func (l *Ledger) Paused() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.paused
}

// Entry returns a copy of the entry for transferID.
func (l *Ledger) Entry(transferID common.Hash) (Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.entries[transferID]
	if !ok {
		return Entry{}, ErrTransferNotFound
	}
	return entry.clone(), nil
}

// IsClaimable reports whether a release could currently succeed for the
// entry, ignoring proof validity.
func (l *Ledger) IsClaimable(transferID common.Hash) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.entries[transferID]
	if !ok {
		return false
	}
	return entry.Active() && l.now().Before(entry.ExpiresAt)
}

// IsRefundable reports whether the depositor could currently refund the entry.
func (l *Ledger) IsRefundable(transferID common.Hash) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.entries[transferID]
	if !ok {
		return false
	}
	return entry.Active() && (entry.Disputed || !l.now().Before(entry.ExpiresAt))
}

// Nonce returns the recipient's current signature-release nonce.
func (l *Ledger) Nonce(recipient common.Address) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.nonces[recipient]
}

// EscrowedBalance returns the ledger account balance, which by invariant
// equals the sum of amounts over all active entries.
func (l *Ledger) EscrowedBalance() *big.Int {
	return l.bank.BalanceOf(l.params.Address)
}

// activeEntry must be called with l.mu held.
func (l *Ledger) activeEntry(transferID common.Hash) (*Entry, error) {
	entry, ok := l.entries[transferID]
	if !ok {
		return nil, ErrTransferNotFound
	}
	if entry.Claimed {
		return nil, ErrAlreadyClaimed
	}
	if entry.Refunded {
		return nil, ErrAlreadyRefunded
	}
	return entry, nil
}

// settle must be called with l.mu held and the entry verified active.
func (l *Ledger) settle(entry *Entry, recipient common.Address) error {
	if err := l.bank.Transfer(l.params.Address, recipient, entry.Amount); err != nil {
		// Structurally impossible while the balance invariant holds.
		l.logger.Error("escrow balance invariant violated",
			zap.String("transfer_id", entry.TransferID.Hex()),
			zap.Error(err),
		)
		return fmt.Errorf("escrow invariant violation: %w", err)
	}
	return nil
}

// refundLocked must be called with l.mu held and the entry verified active.
func (l *Ledger) refundLocked(entry *Entry) error {
	if err := l.settle(entry, entry.Depositor); err != nil {
		return err
	}
	entry.Refunded = true

	l.logger.Info("escrow refunded",
		zap.String("transfer_id", entry.TransferID.Hex()),
		zap.String("depositor", entry.Depositor.Hex()),
	)
	l.emit(Event{
		Type:       EventRefunded,
		TransferID: entry.TransferID,
		Depositor:  entry.Depositor,
		Recipient:  entry.Depositor,
		Amount:     new(big.Int).Set(entry.Amount),
	})
	return nil
}
