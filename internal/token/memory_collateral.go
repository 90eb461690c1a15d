package token

import (
	"context"
	"sync"

	"github.com/holiman/uint256"

	id "ingot/pkg/domain"
)

// MemoryCollateralLedger is an in-process CollateralLedger. It backs local
// deployments and tests; production wires real asset ledger clients behind
// the same interface.
type MemoryCollateralLedger struct {
	mu       sync.Mutex
	custody  id.AccountID
	balances map[id.AssetID]map[id.AccountID]*uint256.Int
	failNext bool
}

// NewMemoryCollateralLedger creates a ledger whose Transfer pays out of the
// custody account.
func NewMemoryCollateralLedger(custody id.AccountID) *MemoryCollateralLedger {
	return &MemoryCollateralLedger{
		custody:  custody,
		balances: make(map[id.AssetID]map[id.AccountID]*uint256.Int),
	}
}

// Credit funds an account out of thin air. Test and bootstrap helper.
func (l *MemoryCollateralLedger) Credit(asset id.AssetID, account id.AccountID, amount *uint256.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.credit(asset, account, amount)
}

// FailNextTransfer makes the next transfer report rejection, so callers can
// exercise the boolean failure path.
func (l *MemoryCollateralLedger) FailNextTransfer() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failNext = true
}

func (l *MemoryCollateralLedger) TransferFrom(_ context.Context, asset id.AssetID, from, to id.AccountID, amount *uint256.Int) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.failNext {
		l.failNext = false
		return false, nil
	}
	if !l.debit(asset, from, amount) {
		return false, nil
	}
	l.credit(asset, to, amount)
	return true, nil
}

func (l *MemoryCollateralLedger) Transfer(ctx context.Context, asset id.AssetID, to id.AccountID, amount *uint256.Int) (bool, error) {
	return l.TransferFrom(ctx, asset, l.custody, to, amount)
}

func (l *MemoryCollateralLedger) BalanceOf(_ context.Context, asset id.AssetID, account id.AccountID) (*uint256.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if holders, ok := l.balances[asset]; ok {
		if balance, ok := holders[account]; ok {
			return new(uint256.Int).Set(balance), nil
		}
	}
	return uint256.NewInt(0), nil
}

func (l *MemoryCollateralLedger) credit(asset id.AssetID, account id.AccountID, amount *uint256.Int) {
	holders, ok := l.balances[asset]
	if !ok {
		holders = make(map[id.AccountID]*uint256.Int)
		l.balances[asset] = holders
	}
	balance, ok := holders[account]
	if !ok {
		balance = uint256.NewInt(0)
		holders[account] = balance
	}
	balance.Add(balance, amount)
}

func (l *MemoryCollateralLedger) debit(asset id.AssetID, account id.AccountID, amount *uint256.Int) bool {
	holders, ok := l.balances[asset]
	if !ok {
		return false
	}
	balance, ok := holders[account]
	if !ok || balance.Lt(amount) {
		return false
	}
	balance.Sub(balance, amount)
	return true
}
