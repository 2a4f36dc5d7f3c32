package ledger

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Entry is a single escrowed deposit keyed by its 32-byte transfer ID.
// The per-entry state machine is nonexistent -> active -> claimed|refunded;
// claimed and refunded are terminal and mutually exclusive. Disputed is an
// orthogonal flag that may only be set while the entry is active.
type Entry struct {
	TransferID common.Hash
	Depositor  common.Address
	Amount     *big.Int
	ExpiresAt  time.Time

	// Commitment is the keccak256 hash of the claim secret for deposits made
	// in secret-release mode. The zero hash means the deposit was made for a
	// signature-mode release and carries no commitment.
	Commitment common.Hash

	Claimed  bool
	Refunded bool
	Disputed bool
}

// Active reports whether the entry can still transition.
func (e *Entry) Active() bool {
	return !e.Claimed && !e.Refunded
}

// clone returns a copy safe to hand out of the ledger's lock.
func (e *Entry) clone() Entry {
	c := *e
	c.Amount = new(big.Int).Set(e.Amount)
	return c
}

// Proof is the mode-specific authorization attached to a release call.
// Modeling the two modes as one tagged variant keeps the claimed/refunded
// invariant enforced in a single Release path.
type Proof interface {
	mode() string
}

// SecretProof authorizes a release by revealing the claim secret whose
// keccak256 hash was committed at deposit time. Only the configured
// coordinator identity may submit it.
type SecretProof struct {
	Secret []byte
}

func (SecretProof) mode() string { return "secret" }

// SignatureProof authorizes a release with a time-bounded signature from the
// designated authority over (transferID, recipient, deadline, nonce,
// ledgerAddr, chainID). Anyone may submit a valid one.
type SignatureProof struct {
	Deadline  time.Time
	Signature []byte
}

func (SignatureProof) mode() string { return "signature" }
