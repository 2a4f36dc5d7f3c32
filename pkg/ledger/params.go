package ledger

import (
	"fmt"
	"time"

	"github.com/creasty/defaults"
	"github.com/ethereum/go-ethereum/common"
)

// Params configures a ledger instance. Coordinator is the only identity
// allowed to submit secret releases, Authority is the signer recognised for
// signature releases, and Admin controls pause and emergency recovery.
type Params struct {
	// Address identifies this ledger deployment; it is mixed into every
	// authorization digest to prevent cross-deployment replay.
	Address common.Address

	// ChainID is mixed into authorization digests alongside Address.
	ChainID uint64 `default:"1"`

	Coordinator common.Address
	Authority   common.Address
	Admin       common.Address

	// MaxTimeout bounds the deposit timeout. Requested timeouts must fall in
	// (0, MaxTimeout].
	MaxTimeout time.Duration `default:"8760h"`
}

func (p *Params) validate() error {
	if err := defaults.Set(p); err != nil {
		return fmt.Errorf("apply parameter defaults: %w", err)
	}
	if p.Coordinator == (common.Address{}) {
		return fmt.Errorf("coordinator address is required")
	}
	if p.Authority == (common.Address{}) {
		return fmt.Errorf("authority address is required")
	}
	if p.Admin == (common.Address{}) {
		return fmt.Errorf("admin address is required")
	}
	return nil
}
