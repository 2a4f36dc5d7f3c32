// Package transfer holds the domain model for coordinator-owned pending
// transfers and the request/response types of the coordinator API.
package transfer

import "time"

// Status is the coordinator-side lifecycle of a pending transfer. The
// coordinator is the sole writer; claimed and refunded are set only after the
// ledger confirms the matching release or refund. Expired is derived for
// display and never persisted as authoritative.
type Status string

const (
	StatusPending  Status = "pending"
	StatusClaimed  Status = "claimed"
	StatusRefunded Status = "refunded"
	StatusExpired  Status = "expired"
)

// PendingTransfer is the off-ledger record of a transfer addressed to an
// email identity. The claim token is a bearer credential: it is persisted
// AES-encrypted and must never appear in logs.
type PendingTransfer struct {
	TransferID          string
	SenderIdentity      string
	RecipientIdentity   string
	Amount              string
	ClaimTokenEncrypted string
	Status              Status
	ExpiryDate          time.Time
	DepositTxRef        string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// DisplayStatus returns the status with expiry derived against now.
func (t *PendingTransfer) DisplayStatus(now time.Time) Status {
	if t.Status == StatusPending && !now.Before(t.ExpiryDate) {
		return StatusExpired
	}
	return t.Status
}

// SettlementKind distinguishes settlement records.
type SettlementKind string

const (
	SettlementRelease SettlementKind = "release"
	SettlementRefund  SettlementKind = "refund"
)

// Settlement records one confirmed on-ledger release or refund.
type Settlement struct {
	ID         string
	TransferID string
	Kind       SettlementKind
	Mode       string
	TxRef      string
	CreatedAt  time.Time
}

// PrepareRequest asks the coordinator to mint a transfer addressed to an
// email identity. Amount is a decimal string of whole token units.
type PrepareRequest struct {
	SenderIdentity    string `json:"sender_identity" validate:"required,email"`
	RecipientIdentity string `json:"recipient_identity" validate:"required,email"`
	Amount            string `json:"amount" validate:"required"`
	TimeoutDays       int    `json:"timeout_days" validate:"required,min=1,max=365"`
}

// PrepareResponse returns the deposit call parameters for the sender's
// custodial signer, plus the claim link components for out-of-band delivery.
type PrepareResponse struct {
	TransferID string    `json:"transfer_id"`
	Amount     string    `json:"amount"`
	Commitment string    `json:"commitment"`
	Timeout    string    `json:"timeout"`
	ExpiryDate time.Time `json:"expiry_date"`
	ClaimToken string    `json:"claim_token"`
	ClaimCode  string    `json:"claim_code"`
}

// ConfirmDepositRequest records the observed deposit transaction.
type ConfirmDepositRequest struct {
	TxRef string `json:"tx_ref" validate:"required"`
}

// PauseRequest toggles the ledger-wide pause switch.
type PauseRequest struct {
	Paused bool `json:"paused"`
}

// PauseResponse reports the resulting pause state.
type PauseResponse struct {
	Paused bool `json:"paused"`
}

// ReleaseRequest is the gasless claim request. The recipient identity checked
// against the stored transfer comes from the authentication layer, never from
// this payload. Clients send either the claim code or the unpacked transfer
// ID and claim token.
type ReleaseRequest struct {
	TransferID       string `json:"transfer_id,omitempty" validate:"omitempty,len=66,startswith=0x"`
	ClaimToken       string `json:"claim_token,omitempty"`
	ClaimCode        string `json:"claim_code,omitempty"`
	RecipientAddress string `json:"recipient_address" validate:"required"`
}

// ReleaseResponse reports the claim outcome. AlreadyClaimed is true when the
// transfer had been released before this request; funds moved exactly once.
type ReleaseResponse struct {
	TransferID     string `json:"transfer_id"`
	Status         Status `json:"status"`
	AlreadyClaimed bool   `json:"already_claimed,omitempty"`
	TxRef          string `json:"tx_ref,omitempty"`
}

// RefundResponse reports the admin refund outcome.
type RefundResponse struct {
	TransferID string `json:"transfer_id"`
	Status     Status `json:"status"`
	TxRef      string `json:"tx_ref,omitempty"`
}

// AuthorizationRequest asks the authority to sign a signature-mode release
// for a recipient wallet address.
type AuthorizationRequest struct {
	TransferID       string `json:"transfer_id" validate:"required,len=66,startswith=0x"`
	RecipientAddress string `json:"recipient_address" validate:"required"`
	ValidFor         string `json:"valid_for,omitempty"`
}

// AuthorizationResponse carries the signed authorization.
type AuthorizationResponse struct {
	TransferID string    `json:"transfer_id"`
	Recipient  string    `json:"recipient"`
	Deadline   time.Time `json:"deadline"`
	Nonce      uint64    `json:"nonce"`
	Signature  string    `json:"signature"`
}

// TransferView is the read model returned to UI layers.
type TransferView struct {
	TransferID        string    `json:"transfer_id"`
	SenderIdentity    string    `json:"sender_identity"`
	RecipientIdentity string    `json:"recipient_identity"`
	Amount            string    `json:"amount"`
	Status            Status    `json:"status"`
	ExpiryDate        time.Time `json:"expiry_date"`
	DepositTxRef      string    `json:"deposit_tx_ref,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}
