package escrowsig

import (
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Authority holds the designated secp256k1 key trusted to sign release
// authorizations. Signing is serialized so that two authorizations are never
// issued against the same nonce for the same recipient.
type Authority struct {
	mu  sync.Mutex
	key *ecdsa.PrivateKey
}

// NewAuthority wraps an existing private key.
func NewAuthority(key *ecdsa.PrivateKey) *Authority {
	return &Authority{key: key}
}

// AuthorityFromHex loads the authority key from a hex-encoded 32-byte
// private key, with or without a 0x prefix.
func AuthorityFromHex(hexKey string) (*Authority, error) {
	raw := strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	keyBytes, err := hex.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("decode authority key: %w", err)
	}
	key, err := crypto.ToECDSA(keyBytes)
	if err != nil {
		return nil, fmt.Errorf("parse authority key: %w", err)
	}
	return &Authority{key: key}, nil
}

// GenerateAuthority creates a fresh authority key. Used in tests and local
// deployments.
func GenerateAuthority() (*Authority, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("generate authority key: %w", err)
	}
	return &Authority{key: key}, nil
}

// Address returns the authority's signing address, the value the ledger is
// configured to accept.
func (a *Authority) Address() common.Address {
	return crypto.PubkeyToAddress(a.key.PublicKey)
}

// Sign produces a 65-byte recoverable signature over the authorization
// digest.
func (a *Authority) Sign(auth Authorization) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if auth.Deadline.IsZero() || !time.Now().Before(auth.Deadline) {
		return nil, ErrDeadlinePassed
	}
	sig, err := crypto.Sign(auth.Digest().Bytes(), a.key)
	if err != nil {
		return nil, fmt.Errorf("sign authorization: %w", err)
	}
	return sig, nil
}
