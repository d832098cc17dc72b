// internal/ledger/ledger.go
package ledger

import (
	"context"
	"errors"
	"sync"
)

// ErrInsufficientFunds is returned by Debit when the player's balance cannot
// cover the amount. The caller must treat it as a rejection with no state
// change.
var ErrInsufficientFunds = errors.New("insufficient funds")

// Ledger is the balance collaborator the room core consumes. Debit is called
// at ready-time to commit a stake; Credit at settlement or refund time. The
// core requires nothing else from the outside world for correctness.
type Ledger interface {
	Debit(ctx context.Context, playerID string, amount int64) error
	Credit(ctx context.Context, playerID string, amount int64) error
	Balance(ctx context.Context, playerID string) (int64, error)
}

// MemoryLedger is an in-memory Ledger used in tests and when the service runs
// without a database.
type MemoryLedger struct {
	mu       sync.Mutex
	balances map[string]int64
	fallback int64
}

// NewMemoryLedger creates a ledger that seeds unknown players with the given
// starting balance on first touch.
func NewMemoryLedger(startingBalance int64) *MemoryLedger {
	return &MemoryLedger{
		balances: make(map[string]int64),
		fallback: startingBalance,
	}
}

// SetBalance fixes a player's balance, mostly for tests.
func (l *MemoryLedger) SetBalance(playerID string, amount int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[playerID] = amount
}

func (l *MemoryLedger) balanceLocked(playerID string) int64 {
	if b, ok := l.balances[playerID]; ok {
		return b
	}
	l.balances[playerID] = l.fallback
	return l.fallback
}

func (l *MemoryLedger) Debit(_ context.Context, playerID string, amount int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	b := l.balanceLocked(playerID)
	if b < amount {
		return ErrInsufficientFunds
	}
	l.balances[playerID] = b - amount
	return nil
}

func (l *MemoryLedger) Credit(_ context.Context, playerID string, amount int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[playerID] = l.balanceLocked(playerID) + amount
	return nil
}

func (l *MemoryLedger) Balance(_ context.Context, playerID string) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balanceLocked(playerID), nil
}
