package ledger

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// EventType identifies what happened to an entry.
type EventType string

const (
	EventDeposited EventType = "deposited"
	EventReleased  EventType = "released"
	EventRefunded  EventType = "refunded"
	EventDisputed  EventType = "disputed"
)

// Event is emitted after every successful state transition.
type Event struct {
	Seq        uint64
	Type       EventType
	TransferID common.Hash
	Depositor  common.Address
	Recipient  common.Address
	Amount     *big.Int
	ExpiresAt  time.Time
}

const eventBufferSize = 64

// Subscribe registers a new event channel. Events that occur while a
// subscriber's buffer is full are dropped for that subscriber; consumers that
// need completeness must keep up.
func (l *Ledger) Subscribe() <-chan Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	ch := make(chan Event, eventBufferSize)
	l.subs = append(l.subs, ch)
	return ch
}

// emit must be called with l.mu held.
func (l *Ledger) emit(ev Event) {
	l.eventSeq++
	ev.Seq = l.eventSeq
	for _, ch := range l.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
