package token

import (
	"context"
	"fmt"
	"sync"

	"github.com/holiman/uint256"

	id "ingot/pkg/domain"
)

// MemorySyntheticLedger is an in-process SyntheticLedger with a single
// controller. Only holding a reference to this ledger conveys the mint/burn
// capability, mirroring the owned token ledger the engine controls.
type MemorySyntheticLedger struct {
	mu         sync.Mutex
	controller id.AccountID
	balances   map[id.AccountID]*uint256.Int
	supply     *uint256.Int
	failMint   bool
}

// NewMemorySyntheticLedger creates an empty ledger whose Burn debits the
// controller's balance.
func NewMemorySyntheticLedger(controller id.AccountID) *MemorySyntheticLedger {
	return &MemorySyntheticLedger{
		controller: controller,
		balances:   make(map[id.AccountID]*uint256.Int),
		supply:     uint256.NewInt(0),
	}
}

// FailNextMint makes the next Mint report rejection.
func (l *MemorySyntheticLedger) FailNextMint() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failMint = true
}

func (l *MemorySyntheticLedger) Mint(_ context.Context, to id.AccountID, amount *uint256.Int) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.failMint {
		l.failMint = false
		return false, nil
	}
	if to.IsZero() || amount.IsZero() {
		return false, nil
	}

	balance, ok := l.balances[to]
	if !ok {
		balance = uint256.NewInt(0)
		l.balances[to] = balance
	}
	balance.Add(balance, amount)
	l.supply.Add(l.supply, amount)
	return true, nil
}

func (l *MemorySyntheticLedger) Burn(_ context.Context, amount *uint256.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	balance, ok := l.balances[l.controller]
	if !ok || balance.Lt(amount) {
		return fmt.Errorf("burn exceeds controller balance")
	}
	balance.Sub(balance, amount)
	l.supply.Sub(l.supply, amount)
	return nil
}

func (l *MemorySyntheticLedger) TransferFrom(_ context.Context, from, to id.AccountID, amount *uint256.Int) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	fromBalance, ok := l.balances[from]
	if !ok || fromBalance.Lt(amount) {
		return false, nil
	}
	toBalance, ok := l.balances[to]
	if !ok {
		toBalance = uint256.NewInt(0)
		l.balances[to] = toBalance
	}
	fromBalance.Sub(fromBalance, amount)
	toBalance.Add(toBalance, amount)
	return true, nil
}

func (l *MemorySyntheticLedger) BalanceOf(_ context.Context, account id.AccountID) (*uint256.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if balance, ok := l.balances[account]; ok {
		return new(uint256.Int).Set(balance), nil
	}
	return uint256.NewInt(0), nil
}

func (l *MemorySyntheticLedger) TotalSupply(_ context.Context) (*uint256.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return new(uint256.Int).Set(l.supply), nil
}
