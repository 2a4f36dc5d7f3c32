package transfer

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/hkdf"
)

const (
	transferIDLength = 32
	claimTokenLength = 32
)

// NormalizeIdentity canonicalizes an email identity so that case or
// whitespace differences at claim time cannot break the secret match.
func NormalizeIdentity(identity string) string {
	return strings.ToLower(strings.TrimSpace(identity))
}

// ClaimSecret builds the release preimage: the normalized recipient identity
// joined with the random claim token. The plaintext never touches the ledger;
// only its keccak256 hash is committed at deposit time.
func ClaimSecret(recipientIdentity, claimToken string) []byte {
	return []byte(NormalizeIdentity(recipientIdentity) + "|" + claimToken)
}

// Commitment returns the on-ledger commitment for a claim secret.
func Commitment(secret []byte) common.Hash {
	return crypto.Keccak256Hash(secret)
}

// NewTransferID mints a random 32-byte transfer identifier.
func NewTransferID() (common.Hash, error) {
	var id common.Hash
	if _, err := io.ReadFull(rand.Reader, id[:]); err != nil {
		return common.Hash{}, fmt.Errorf("mint transfer id: %w", err)
	}
	return id, nil
}

// NewClaimToken derives an unguessable claim token. Random entropy is
// stretched through HKDF-SHA256 with the per-deployment seed so a weak
// system RNG alone cannot make tokens predictable across deployments.
func NewClaimToken(deploymentSeed []byte) (string, error) {
	entropy := make([]byte, claimTokenLength)
	if _, err := io.ReadFull(rand.Reader, entropy); err != nil {
		return "", fmt.Errorf("mint claim token: %w", err)
	}

	reader := hkdf.New(sha256.New, entropy, deploymentSeed, []byte("escrow-claim-token"))
	token := make([]byte, claimTokenLength)
	if _, err := io.ReadFull(reader, token); err != nil {
		return "", fmt.Errorf("derive claim token: %w", err)
	}
	return hex.EncodeToString(token), nil
}

// NewClaimCode packs a transfer ID and claim token into one opaque string
// suitable for out-of-band delivery to the recipient.
func NewClaimCode(transferID, claimToken string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(transferID + ":" + claimToken))
}

// ParseClaimCode splits a claim code back into its transfer ID and claim
// token.
func ParseClaimCode(code string) (transferID, claimToken string, err error) {
	raw, err := base64.RawURLEncoding.DecodeString(code)
	if err != nil {
		return "", "", fmt.Errorf("malformed claim code: %w", err)
	}
	transferID, claimToken, ok := strings.Cut(string(raw), ":")
	if !ok || transferID == "" || claimToken == "" {
		return "", "", fmt.Errorf("malformed claim code")
	}
	return transferID, claimToken, nil
}

// ParseTransferID parses a 0x-prefixed 32-byte transfer identifier.
func ParseTransferID(s string) (common.Hash, error) {
	raw := strings.TrimPrefix(s, "0x")
	if len(raw) != transferIDLength*2 {
		return common.Hash{}, fmt.Errorf("transfer id must be %d bytes", transferIDLength)
	}
	b, err := hex.DecodeString(raw)
	if err != nil {
		return common.Hash{}, fmt.Errorf("malformed transfer id: %w", err)
	}
	return common.BytesToHash(b), nil
}
