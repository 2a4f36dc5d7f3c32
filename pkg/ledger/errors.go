package ledger

import "errors"

// Errors returned by ledger operations. Release and refund verification
// happens strictly before any fund movement, so an error always means no
// balance changed.
var (
	// ErrTransferExists is returned when a deposit reuses a transfer ID.
	ErrTransferExists = errors.New("transfer already exists")
	// ErrTransferNotFound is returned when no entry exists for a transfer ID.
	ErrTransferNotFound = errors.New("transfer not found")
	// ErrZeroAmount is returned when a deposit carries a zero or negative amount.
	ErrZeroAmount = errors.New("amount must be positive")
	// ErrInvalidTimeout is returned when a deposit timeout is zero or above the maximum.
	ErrInvalidTimeout = errors.New("timeout outside allowed range")
	// ErrAlreadyClaimed is returned for any state transition on a claimed entry.
	ErrAlreadyClaimed = errors.New("transfer already claimed")
	// ErrAlreadyRefunded is returned for any state transition on a refunded entry.
	ErrAlreadyRefunded = errors.New("transfer already refunded")
	// ErrTransferExpired is returned when a release is attempted after expiry.
	ErrTransferExpired = errors.New("transfer expired")
	// ErrNotExpired is returned when a refund is attempted before expiry on an undisputed entry.
	ErrNotExpired = errors.New("transfer not yet refundable")
	// ErrNotDepositor is returned when refund or dispute is called by anyone but the depositor.
	ErrNotDepositor = errors.New("caller is not the depositor")
	// ErrNotCoordinator is returned when a secret release is submitted by a non-privileged caller.
	ErrNotCoordinator = errors.New("caller is not the release coordinator")
	// ErrNotAdmin is returned when an emergency or pause operation is called by a non-admin.
	ErrNotAdmin = errors.New("caller is not the ledger admin")
	// ErrSecretMismatch is returned when the supplied claim secret does not hash to the commitment.
	ErrSecretMismatch = errors.New("claim secret does not match commitment")
	// ErrNoCommitment is returned when a secret release targets an entry deposited without one.
	ErrNoCommitment = errors.New("transfer has no secret commitment")
	// ErrPaused is returned for funds-moving operations while the ledger is paused.
	ErrPaused = errors.New("ledger is paused")
	// ErrInsufficientFunds is returned by the bank when a transfer exceeds the balance.
	ErrInsufficientFunds = errors.New("insufficient balance")
)
