package ledger

import (
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Bank holds fungible token balances for the accounts the ledger moves funds
// between. It is the custody backend for the escrow account: deposit moves
// depositor -> escrow, release moves escrow -> recipient, refund moves
// escrow -> depositor.
type Bank struct {
	mu       sync.Mutex
	balances map[common.Address]*big.Int
}

// NewBank creates an empty bank.
func NewBank() *Bank {
	return &Bank{balances: make(map[common.Address]*big.Int)}
}

// Mint credits amount to addr. Used to fund accounts in tests and local
// deployments; a production custody backend would be an external token.
func (b *Bank) Mint(addr common.Address, amount *big.Int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.credit(addr, amount)
}

// BalanceOf returns addr's current balance.
func (b *Bank) BalanceOf(addr common.Address) *big.Int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if bal, ok := b.balances[addr]; ok {
		return new(big.Int).Set(bal)
	}
	return new(big.Int)
}

// Transfer moves amount from one account to another. It fails without any
// movement if the source balance is insufficient.
func (b *Bank) Transfer(from, to common.Address, amount *big.Int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	bal, ok := b.balances[from]
	if !ok || bal.Cmp(amount) < 0 {
		return ErrInsufficientFunds
	}
	bal.Sub(bal, amount)
	b.credit(to, amount)
	return nil
}

func (b *Bank) credit(addr common.Address, amount *big.Int) {
	if bal, ok := b.balances[addr]; ok {
		bal.Add(bal, amount)
		return
	}
	b.balances[addr] = new(big.Int).Set(amount)
}
