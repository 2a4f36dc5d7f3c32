// Package escrowsig constructs and verifies the replay-protected release
// authorization used when a recipient already controls a wallet address.
package escrowsig

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	// ErrDeadlinePassed is returned when an authorization is presented after
	// its deadline.
	ErrDeadlinePassed = errors.New("authorization deadline passed")
	// ErrUnknownSigner is returned when the recovered signer is not the
	// configured authority.
	ErrUnknownSigner = errors.New("authorization not signed by authority")
	// ErrInvalidSignature is returned for malformed signatures.
	ErrInvalidSignature = errors.New("invalid authorization signature")
)

const signatureLength = 65

// Authorization is the message the authority signs to approve a signature
// release for one (transferID, recipient) pair. Nonce binds it to the
// recipient's current on-ledger counter; LedgerAddr and ChainID bind it to
// one deployment.
type Authorization struct {
	TransferID common.Hash
	Recipient  common.Address
	Deadline   time.Time
	Nonce      uint64
	LedgerAddr common.Address
	ChainID    uint64
}

// Digest returns the signing hash: keccak256 over the packed tuple, wrapped
// in the EIP-191 personal-message prefix so generic message signers can
// produce it.
func (a Authorization) Digest() common.Hash {
	packed := make([]byte, 0, 32+20+8+8+20+8)
	packed = append(packed, a.TransferID.Bytes()...)
	packed = append(packed, a.Recipient.Bytes()...)
	packed = binary.BigEndian.AppendUint64(packed, uint64(a.Deadline.Unix()))
	packed = binary.BigEndian.AppendUint64(packed, a.Nonce)
	packed = append(packed, a.LedgerAddr.Bytes()...)
	packed = binary.BigEndian.AppendUint64(packed, a.ChainID)

	inner := crypto.Keccak256(packed)
	prefixed := fmt.Sprintf("\x19Ethereum Signed Message:\n%d%s", len(inner), inner)
	return crypto.Keccak256Hash([]byte(prefixed))
}

// Recover returns the address that signed the authorization.
func Recover(a Authorization, signature []byte) (common.Address, error) {
	if len(signature) != signatureLength {
		return common.Address{}, fmt.Errorf("%w: expected %d bytes, got %d",
			ErrInvalidSignature, signatureLength, len(signature))
	}

	// Normalize the recovery id: wallets emit 27/28, crypto.SigToPub wants 0/1.
	sig := make([]byte, signatureLength)
	copy(sig, signature)
	if sig[64] >= 27 {
		sig[64] -= 27
	}

	pubKey, err := crypto.SigToPub(a.Digest().Bytes(), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return crypto.PubkeyToAddress(*pubKey), nil
}
