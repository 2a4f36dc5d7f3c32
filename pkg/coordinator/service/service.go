// Package service implements the coordinator: the privileged off-ledger
// component that prepares email-addressed transfers, custodies claim secrets,
// and executes releases and refunds against the escrow ledger.
package service

import (
	"context"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/chainsafe/escrow-middleware/internal/metrics"
	apperrors "github.com/chainsafe/escrow-middleware/pkg/app/errors"
	"github.com/chainsafe/escrow-middleware/pkg/auth"
	"github.com/chainsafe/escrow-middleware/pkg/escrowsig"
	"github.com/chainsafe/escrow-middleware/pkg/keys"
	"github.com/chainsafe/escrow-middleware/pkg/ledger"
	"github.com/chainsafe/escrow-middleware/pkg/transfer"
	"github.com/chainsafe/escrow-middleware/pkg/transferstore"
)

// tokenDecimals is the scale between API decimal amounts and ledger base units.
const tokenDecimals = 18

// Ledger is the subset of escrow ledger behavior the coordinator needs.
type Ledger interface {
	Release(caller common.Address, transferID common.Hash, recipient common.Address, proof ledger.Proof) error
	EmergencyRefund(caller common.Address, transferID common.Hash) error
	SetPaused(caller common.Address, paused bool) error
	Entry(transferID common.Hash) (ledger.Entry, error)
	Nonce(recipient common.Address) uint64
	Address() common.Address
	ChainID() uint64
}

// Service defines coordinator operations.
type Service interface {
	// PrepareTransfer mints a transfer record for the authenticated sender and
	// returns the deposit parameters plus the claim token for out-of-band
	// delivery to the recipient.
	PrepareTransfer(ctx context.Context, senderIdentity string, req *transfer.PrepareRequest) (*transfer.PrepareResponse, error)

	// ConfirmDeposit records the observed on-ledger deposit for a prepared
	// transfer.
	ConfirmDeposit(ctx context.Context, transferID, txRef string) error

	// Release executes a gasless secret-mode claim on behalf of the
	// authenticated recipient.
	Release(ctx context.Context, recipientIdentity string, req *transfer.ReleaseRequest) (*transfer.ReleaseResponse, error)

	// Refund returns escrowed funds of an expired or disputed transfer to the
	// depositor. Admin only.
	Refund(ctx context.Context, transferID string) (*transfer.RefundResponse, error)

	// SignAuthorization issues an authority-signed release authorization so
	// the recipient can claim directly on the ledger with their own wallet.
	SignAuthorization(ctx context.Context, recipientIdentity string, req *transfer.AuthorizationRequest) (*transfer.AuthorizationResponse, error)

	// GetTransfer returns the transfer read model. Only the sender and the
	// recipient may view a transfer.
	GetTransfer(ctx context.Context, identity, transferID string) (*transfer.TransferView, error)

	// ListTransfers returns all transfers addressed to the authenticated
	// identity.
	ListTransfers(ctx context.Context, identity string) ([]*transfer.TransferView, error)

	// SetPaused toggles the ledger-wide pause switch. Admin only.
	SetPaused(ctx context.Context, paused bool) error
}

// Config carries the operational limits of the coordinator.
type Config struct {
	// MaxTransferAmount is the per-transfer ceiling in whole token units.
	MaxTransferAmount decimal.Decimal
	// AuthorizationTTL caps the validity window of signed authorizations.
	AuthorizationTTL time.Duration
}

// Escrow is the Service implementation backed by the transfer store and the
// escrow ledger.
type Escrow struct {
	cfg         Config
	store       transferstore.Store
	ledger      Ledger
	cipher      keys.TokenCipher
	authority   *escrowsig.Authority
	coordinator common.Address
	admin       common.Address
	claimSeed   []byte
	logger      *zap.Logger

	locksMu sync.Mutex
	locks   map[string]*transferLock

	now func() time.Time
}

// NewEscrow creates the coordinator service. coordinator and admin are the
// ledger identities the service acts as for releases and refunds.
func NewEscrow(
	cfg Config,
	store transferstore.Store,
	lgr Ledger,
	cipher keys.TokenCipher,
	authority *escrowsig.Authority,
	coordinator, admin common.Address,
	claimSeed []byte,
	logger *zap.Logger,
) *Escrow {
	if cfg.AuthorizationTTL <= 0 {
		cfg.AuthorizationTTL = time.Hour
	}
	return &Escrow{
		cfg:         cfg,
		store:       store,
		ledger:      lgr,
		cipher:      cipher,
		authority:   authority,
		coordinator: coordinator,
		admin:       admin,
		claimSeed:   claimSeed,
		logger:      logger,
		locks:       make(map[string]*transferLock),
		now:         time.Now,
	}
}

// transferLock is a per-transfer mutex with a waiter count so idle entries
// can be dropped from the lock map.
type transferLock struct {
	mu   sync.Mutex
	refs int
}

// lockTransfer serializes coordinator operations per transfer ID so
// concurrent claims against the same transfer cannot interleave between the
// store check and the ledger call. The returned func releases the lock and
// evicts the map entry once no other operation holds or awaits it.
func (s *Escrow) lockTransfer(transferID string) func() {
	s.locksMu.Lock()
	l, ok := s.locks[transferID]
	if !ok {
		l = &transferLock{}
		s.locks[transferID] = l
	}
	l.refs++
	s.locksMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.locksMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, transferID)
		}
		s.locksMu.Unlock()
	}
}

func (s *Escrow) PrepareTransfer(ctx context.Context, senderIdentity string, req *transfer.PrepareRequest) (*transfer.PrepareResponse, error) {
	sender := transfer.NormalizeIdentity(senderIdentity)
	recipient := transfer.NormalizeIdentity(req.RecipientIdentity)

	if transfer.NormalizeIdentity(req.SenderIdentity) != sender {
		return nil, apperrors.ForbiddenError(nil, "sender identity does not match authenticated identity")
	}
	if sender == recipient {
		return nil, apperrors.BadRequestError(nil, "sender and recipient must differ")
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return nil, apperrors.BadRequestError(err, "invalid amount")
	}
	if amount.Sign() <= 0 {
		return nil, apperrors.BadRequestError(nil, "amount must be positive")
	}
	if !s.cfg.MaxTransferAmount.IsZero() && amount.GreaterThan(s.cfg.MaxTransferAmount) {
		return nil, apperrors.BadRequestError(nil,
			fmt.Sprintf("amount exceeds per-transfer maximum of %s", s.cfg.MaxTransferAmount))
	}

	transferID, err := transfer.NewTransferID()
	if err != nil {
		metrics.DepositsTotal.WithLabelValues("error").Inc()
		return nil, apperrors.GeneralError(err)
	}
	claimToken, err := transfer.NewClaimToken(s.claimSeed)
	if err != nil {
		metrics.DepositsTotal.WithLabelValues("error").Inc()
		return nil, apperrors.GeneralError(err)
	}

	secret := transfer.ClaimSecret(recipient, claimToken)
	commitment := transfer.Commitment(secret)

	encryptedToken, err := s.cipher.Encrypt([]byte(claimToken))
	if err != nil {
		metrics.DepositsTotal.WithLabelValues("error").Inc()
		return nil, apperrors.GeneralError(fmt.Errorf("failed to encrypt claim token: %w", err))
	}

	timeout := time.Duration(req.TimeoutDays) * 24 * time.Hour
	now := s.now().UTC()
	record := &transfer.PendingTransfer{
		TransferID:          transferID.Hex(),
		SenderIdentity:      sender,
		RecipientIdentity:   recipient,
		Amount:              amount.String(),
		ClaimTokenEncrypted: encryptedToken,
		Status:              transfer.StatusPending,
		ExpiryDate:          now.Add(timeout),
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	if err := s.store.CreateTransfer(ctx, record); err != nil {
		metrics.DepositsTotal.WithLabelValues("error").Inc()
		if errors.Is(err, transferstore.ErrDuplicateTransfer) {
			return nil, apperrors.ConflictError(err, "transfer already exists")
		}
		return nil, apperrors.GeneralError(err)
	}

	metrics.DepositsTotal.WithLabelValues("prepared").Inc()
	if f, ok := amount.Float64(); ok {
		metrics.TransferAmount.Observe(f)
	}
	s.logger.Info("transfer prepared",
		zap.String("transfer_id", record.TransferID),
		zap.String("sender", sender),
		zap.String("recipient", recipient),
		zap.String("amount", amount.String()),
		zap.Time("expiry_date", record.ExpiryDate),
	)

	return &transfer.PrepareResponse{
		TransferID: record.TransferID,
		Amount:     amount.String(),
		Commitment: commitment.Hex(),
		Timeout:    timeout.String(),
		ExpiryDate: record.ExpiryDate,
		ClaimToken: claimToken,
		ClaimCode:  transfer.NewClaimCode(record.TransferID, claimToken),
	}, nil
}

func (s *Escrow) ConfirmDeposit(ctx context.Context, transferID, txRef string) error {
	id, err := transfer.ParseTransferID(transferID)
	if err != nil {
		return apperrors.BadRequestError(err, "invalid transfer id")
	}

	unlock := s.lockTransfer(id.Hex())
	defer unlock()

	record, err := s.store.GetTransfer(ctx, transferstore.WithTransferID(id.Hex()))
	if err != nil {
		if errors.Is(err, transferstore.ErrTransferNotFound) {
			return apperrors.ResourceNotFoundError(err, "transfer not found")
		}
		return apperrors.GeneralError(err)
	}
	if record.Status != transfer.StatusPending {
		return apperrors.ConflictError(nil, "transfer is not pending")
	}

	entry, err := s.ledger.Entry(id)
	if err != nil {
		return apperrors.ConflictError(err, "no matching escrow deposit on ledger")
	}
	if !entry.Active() {
		return apperrors.ConflictError(nil, "escrow entry already settled")
	}
	expected, convErr := amountToUnits(record.Amount)
	if convErr != nil {
		metrics.ErrorsTotal.WithLabelValues("coordinator", "malformed_amount").Inc()
		return apperrors.GeneralError(fmt.Errorf("stored amount %q is not a valid decimal: %w", record.Amount, convErr))
	}
	if entry.Amount.Cmp(expected) != 0 {
		return apperrors.ConflictError(nil, "escrowed amount does not match prepared transfer")
	}

	if err := s.store.MarkDepositObserved(ctx, id.Hex(), txRef); err != nil {
		return apperrors.GeneralError(err)
	}

	metrics.DepositsTotal.WithLabelValues("confirmed").Inc()
	s.logger.Info("deposit confirmed",
		zap.String("transfer_id", id.Hex()),
		zap.String("tx_ref", txRef),
	)
	return nil
}

func (s *Escrow) Release(ctx context.Context, recipientIdentity string, req *transfer.ReleaseRequest) (*transfer.ReleaseResponse, error) {
	if req.ClaimCode != "" {
		decodedID, decodedToken, err := transfer.ParseClaimCode(req.ClaimCode)
		if err != nil {
			return nil, apperrors.BadRequestError(err, "invalid claim code")
		}
		req.TransferID, req.ClaimToken = decodedID, decodedToken
	}
	if req.ClaimToken == "" {
		return nil, apperrors.BadRequestError(nil, "claim token required")
	}
	id, err := transfer.ParseTransferID(req.TransferID)
	if err != nil {
		return nil, apperrors.BadRequestError(err, "invalid transfer id")
	}
	if !auth.ValidateEVMAddress(req.RecipientAddress) {
		return nil, apperrors.BadRequestError(nil, "invalid recipient address")
	}

	unlock := s.lockTransfer(id.Hex())
	defer unlock()

	record, err := s.store.GetTransfer(ctx, transferstore.WithTransferID(id.Hex()))
	if err != nil {
		if errors.Is(err, transferstore.ErrTransferNotFound) {
			metrics.ReleasesTotal.WithLabelValues("secret", "not_found").Inc()
			return nil, apperrors.ResourceNotFoundError(err, "transfer not found")
		}
		return nil, apperrors.GeneralError(err)
	}

	// A repeated claim of an already-released transfer succeeds without
	// moving funds again.
	if record.Status == transfer.StatusClaimed {
		metrics.ReleasesTotal.WithLabelValues("secret", "already_claimed").Inc()
		return &transfer.ReleaseResponse{
			TransferID:     id.Hex(),
			Status:         transfer.StatusClaimed,
			AlreadyClaimed: true,
		}, nil
	}
	if record.Status == transfer.StatusRefunded {
		metrics.ReleasesTotal.WithLabelValues("secret", "refunded").Inc()
		return nil, apperrors.ConflictError(nil, "transfer was refunded")
	}

	// The identity asserted by the authentication layer must be the identity
	// the transfer is addressed to. The claim token alone is not sufficient.
	identity := transfer.NormalizeIdentity(recipientIdentity)
	if identity != record.RecipientIdentity {
		metrics.ReleasesTotal.WithLabelValues("secret", "identity_mismatch").Inc()
		s.logger.Warn("release identity mismatch",
			zap.String("transfer_id", id.Hex()),
			zap.String("authenticated_identity", identity),
		)
		return nil, apperrors.ForbiddenError(nil, "transfer is not addressed to this identity")
	}

	storedToken, err := s.cipher.Decrypt(record.ClaimTokenEncrypted)
	if err != nil {
		return nil, apperrors.GeneralError(fmt.Errorf("failed to decrypt claim token: %w", err))
	}
	if subtle.ConstantTimeCompare(storedToken, []byte(req.ClaimToken)) != 1 {
		metrics.ReleasesTotal.WithLabelValues("secret", "bad_token").Inc()
		return nil, apperrors.UnAuthorizedError(nil, "invalid claim token")
	}

	if !s.now().Before(record.ExpiryDate) {
		metrics.ReleasesTotal.WithLabelValues("secret", "expired").Inc()
		return nil, apperrors.ConflictError(nil, "transfer has expired")
	}

	recipientAddr := common.HexToAddress(req.RecipientAddress)
	secret := transfer.ClaimSecret(identity, string(storedToken))

	start := s.now()
	err = s.ledger.Release(s.coordinator, id, recipientAddr, ledger.SecretProof{Secret: secret})
	metrics.OperationDuration.WithLabelValues("release").Observe(s.now().Sub(start).Seconds())
	if err != nil {
		// The ledger settled this transfer through another path; surface the
		// idempotent success the same way a store-level hit would.
		if errors.Is(err, ledger.ErrAlreadyClaimed) {
			_ = s.store.UpdateStatus(ctx, id.Hex(), transfer.StatusPending, transfer.StatusClaimed)
			metrics.ReleasesTotal.WithLabelValues("secret", "already_claimed").Inc()
			return &transfer.ReleaseResponse{
				TransferID:     id.Hex(),
				Status:         transfer.StatusClaimed,
				AlreadyClaimed: true,
			}, nil
		}
		metrics.ReleasesTotal.WithLabelValues("secret", "ledger_error").Inc()
		metrics.ErrorsTotal.WithLabelValues("coordinator", "ledger_release").Inc()
		s.logger.Error("ledger release failed",
			zap.String("transfer_id", id.Hex()),
			zap.Error(err),
		)
		switch {
		case errors.Is(err, ledger.ErrTransferExpired):
			return nil, apperrors.ConflictError(err, "transfer has expired")
		case errors.Is(err, ledger.ErrSecretMismatch):
			return nil, apperrors.UnAuthorizedError(err, "invalid claim token")
		case errors.Is(err, ledger.ErrTransferNotFound):
			return nil, apperrors.ConflictError(err, "no matching escrow deposit on ledger")
		case errors.Is(err, ledger.ErrPaused):
			return nil, apperrors.RecoveringError(err, "escrow ledger is paused, retry later")
		default:
			return nil, apperrors.GeneralError(err)
		}
	}

	txRef := newSettlementRef("release")
	if err := s.store.UpdateStatus(ctx, id.Hex(), transfer.StatusPending, transfer.StatusClaimed); err != nil {
		// Funds already moved; a retried claim lands on the ledger's
		// already-claimed path, which repairs the stale row.
		metrics.ErrorsTotal.WithLabelValues("coordinator", "store_update").Inc()
		s.logger.Error("failed to mark transfer claimed after ledger release",
			zap.String("transfer_id", id.Hex()),
			zap.Error(err),
		)
	}
	if err := s.store.RecordSettlement(ctx, &transfer.Settlement{
		ID:         uuid.NewString(),
		TransferID: id.Hex(),
		Kind:       transfer.SettlementRelease,
		Mode:       "secret",
		TxRef:      txRef,
		CreatedAt:  s.now().UTC(),
	}); err != nil {
		s.logger.Warn("failed to record settlement",
			zap.String("transfer_id", id.Hex()),
			zap.Error(err),
		)
	}

	metrics.ReleasesTotal.WithLabelValues("secret", "success").Inc()
	s.logger.Info("transfer released",
		zap.String("transfer_id", id.Hex()),
		zap.String("recipient_address", recipientAddr.Hex()),
	)

	return &transfer.ReleaseResponse{
		TransferID: id.Hex(),
		Status:     transfer.StatusClaimed,
		TxRef:      txRef,
	}, nil
}

func (s *Escrow) Refund(ctx context.Context, transferID string) (*transfer.RefundResponse, error) {
	id, err := transfer.ParseTransferID(transferID)
	if err != nil {
		return nil, apperrors.BadRequestError(err, "invalid transfer id")
	}

	unlock := s.lockTransfer(id.Hex())
	defer unlock()

	record, err := s.store.GetTransfer(ctx, transferstore.WithTransferID(id.Hex()))
	if err != nil {
		if errors.Is(err, transferstore.ErrTransferNotFound) {
			return nil, apperrors.ResourceNotFoundError(err, "transfer not found")
		}
		return nil, apperrors.GeneralError(err)
	}

	if record.Status == transfer.StatusRefunded {
		return &transfer.RefundResponse{
			TransferID: id.Hex(),
			Status:     transfer.StatusRefunded,
		}, nil
	}
	if record.Status == transfer.StatusClaimed {
		metrics.RefundsTotal.WithLabelValues("claimed").Inc()
		return nil, apperrors.ConflictError(nil, "transfer was already claimed")
	}

	// Refunds are gated on expiry unless the depositor disputed the transfer
	// on the ledger.
	disputed := false
	if entry, entryErr := s.ledger.Entry(id); entryErr == nil {
		disputed = entry.Disputed
	}
	if s.now().Before(record.ExpiryDate) && !disputed {
		metrics.RefundsTotal.WithLabelValues("not_refundable").Inc()
		return nil, apperrors.ConflictError(nil, "transfer is neither expired nor disputed")
	}

	start := s.now()
	err = s.ledger.EmergencyRefund(s.admin, id)
	metrics.OperationDuration.WithLabelValues("refund").Observe(s.now().Sub(start).Seconds())
	if err != nil {
		if errors.Is(err, ledger.ErrAlreadyRefunded) {
			_ = s.store.UpdateStatus(ctx, id.Hex(), transfer.StatusPending, transfer.StatusRefunded)
			return &transfer.RefundResponse{
				TransferID: id.Hex(),
				Status:     transfer.StatusRefunded,
			}, nil
		}
		metrics.RefundsTotal.WithLabelValues("ledger_error").Inc()
		metrics.ErrorsTotal.WithLabelValues("coordinator", "ledger_refund").Inc()
		s.logger.Error("ledger refund failed",
			zap.String("transfer_id", id.Hex()),
			zap.Error(err),
		)
		if errors.Is(err, ledger.ErrAlreadyClaimed) {
			return nil, apperrors.ConflictError(err, "transfer was already claimed")
		}
		return nil, apperrors.GeneralError(err)
	}

	txRef := newSettlementRef("refund")
	if err := s.store.UpdateStatus(ctx, id.Hex(), transfer.StatusPending, transfer.StatusRefunded); err != nil {
		metrics.ErrorsTotal.WithLabelValues("coordinator", "store_update").Inc()
		s.logger.Error("failed to mark transfer refunded after ledger refund",
			zap.String("transfer_id", id.Hex()),
			zap.Error(err),
		)
	}
	if err := s.store.RecordSettlement(ctx, &transfer.Settlement{
		ID:         uuid.NewString(),
		TransferID: id.Hex(),
		Kind:       transfer.SettlementRefund,
		TxRef:      txRef,
		CreatedAt:  s.now().UTC(),
	}); err != nil {
		s.logger.Warn("failed to record settlement",
			zap.String("transfer_id", id.Hex()),
			zap.Error(err),
		)
	}

	metrics.RefundsTotal.WithLabelValues("success").Inc()
	s.logger.Info("transfer refunded", zap.String("transfer_id", id.Hex()))

	return &transfer.RefundResponse{
		TransferID: id.Hex(),
		Status:     transfer.StatusRefunded,
		TxRef:      txRef,
	}, nil
}

func (s *Escrow) SignAuthorization(ctx context.Context, recipientIdentity string, req *transfer.AuthorizationRequest) (*transfer.AuthorizationResponse, error) {
	id, err := transfer.ParseTransferID(req.TransferID)
	if err != nil {
		return nil, apperrors.BadRequestError(err, "invalid transfer id")
	}
	if !auth.ValidateEVMAddress(req.RecipientAddress) {
		return nil, apperrors.BadRequestError(nil, "invalid recipient address")
	}

	unlock := s.lockTransfer(id.Hex())
	defer unlock()

	record, err := s.store.GetTransfer(ctx, transferstore.WithTransferID(id.Hex()))
	if err != nil {
		if errors.Is(err, transferstore.ErrTransferNotFound) {
			return nil, apperrors.ResourceNotFoundError(err, "transfer not found")
		}
		return nil, apperrors.GeneralError(err)
	}
	if record.Status != transfer.StatusPending {
		return nil, apperrors.ConflictError(nil, "transfer is not pending")
	}

	identity := transfer.NormalizeIdentity(recipientIdentity)
	if identity != record.RecipientIdentity {
		return nil, apperrors.ForbiddenError(nil, "transfer is not addressed to this identity")
	}
	if !s.now().Before(record.ExpiryDate) {
		return nil, apperrors.ConflictError(nil, "transfer has expired")
	}

	ttl := s.cfg.AuthorizationTTL
	if req.ValidFor != "" {
		requested, parseErr := time.ParseDuration(req.ValidFor)
		if parseErr != nil || requested <= 0 {
			return nil, apperrors.BadRequestError(parseErr, "invalid valid_for duration")
		}
		if requested < ttl {
			ttl = requested
		}
	}

	recipientAddr := common.HexToAddress(req.RecipientAddress)
	authz := escrowsig.Authorization{
		TransferID: id,
		Recipient:  recipientAddr,
		Deadline:   s.now().Add(ttl),
		Nonce:      s.ledger.Nonce(recipientAddr),
		LedgerAddr: s.ledger.Address(),
		ChainID:    s.ledger.ChainID(),
	}

	signature, err := s.authority.Sign(authz)
	if err != nil {
		metrics.ErrorsTotal.WithLabelValues("coordinator", "sign_authorization").Inc()
		return nil, apperrors.GeneralError(fmt.Errorf("failed to sign authorization: %w", err))
	}

	if err := s.store.RecordIssuedNonce(ctx, recipientAddr.Hex(), int64(authz.Nonce)); err != nil {
		s.logger.Warn("failed to record issued nonce",
			zap.String("recipient", recipientAddr.Hex()),
			zap.Error(err),
		)
	}

	metrics.AuthorizationsIssued.Inc()
	s.logger.Info("authorization signed",
		zap.String("transfer_id", id.Hex()),
		zap.String("recipient_address", recipientAddr.Hex()),
		zap.Uint64("nonce", authz.Nonce),
		zap.Time("deadline", authz.Deadline),
	)

	return &transfer.AuthorizationResponse{
		TransferID: id.Hex(),
		Recipient:  recipientAddr.Hex(),
		Deadline:   authz.Deadline,
		Nonce:      authz.Nonce,
		Signature:  "0x" + hex.EncodeToString(signature),
	}, nil
}

func (s *Escrow) GetTransfer(ctx context.Context, identity, transferID string) (*transfer.TransferView, error) {
	id, err := transfer.ParseTransferID(transferID)
	if err != nil {
		return nil, apperrors.BadRequestError(err, "invalid transfer id")
	}

	record, err := s.store.GetTransfer(ctx, transferstore.WithTransferID(id.Hex()))
	if err != nil {
		if errors.Is(err, transferstore.ErrTransferNotFound) {
			return nil, apperrors.ResourceNotFoundError(err, "transfer not found")
		}
		return nil, apperrors.GeneralError(err)
	}

	normalized := transfer.NormalizeIdentity(identity)
	if normalized != record.SenderIdentity && normalized != record.RecipientIdentity {
		return nil, apperrors.ForbiddenError(nil, "transfer does not involve this identity")
	}

	return s.view(record), nil
}

func (s *Escrow) ListTransfers(ctx context.Context, identity string) ([]*transfer.TransferView, error) {
	normalized := transfer.NormalizeIdentity(identity)
	records, err := s.store.ListByRecipient(ctx, normalized)
	if err != nil {
		return nil, apperrors.GeneralError(err)
	}
	views := make([]*transfer.TransferView, len(records))
	for i, record := range records {
		views[i] = s.view(record)
	}
	return views, nil
}

func (s *Escrow) SetPaused(ctx context.Context, paused bool) error {
	if err := s.ledger.SetPaused(s.admin, paused); err != nil {
		metrics.ErrorsTotal.WithLabelValues("coordinator", "ledger_pause").Inc()
		return apperrors.GeneralError(fmt.Errorf("failed to set ledger pause state: %w", err))
	}
	s.logger.Info("ledger pause state changed", zap.Bool("paused", paused))
	return nil
}

func (s *Escrow) view(record *transfer.PendingTransfer) *transfer.TransferView {
	return &transfer.TransferView{
		TransferID:        record.TransferID,
		SenderIdentity:    record.SenderIdentity,
		RecipientIdentity: record.RecipientIdentity,
		Amount:            record.Amount,
		Status:            record.DisplayStatus(s.now()),
		ExpiryDate:        record.ExpiryDate,
		DepositTxRef:      record.DepositTxRef,
		CreatedAt:         record.CreatedAt,
	}
}

// amountToUnits converts a whole-token decimal string to ledger base units.
func amountToUnits(amount string) (*big.Int, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, err
	}
	return d.Shift(tokenDecimals).BigInt(), nil
}

func newSettlementRef(kind string) string {
	return fmt.Sprintf("coordinator:%s:%s", kind, uuid.NewString())
}
