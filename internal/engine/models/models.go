// Package models holds the engine's ledger types. Accounts are plain data
// plus the bookkeeping mutations the engine applies to them; all amounts are
// 18-decimal fixed-point unsigned integers and never go negative.
package models

import (
	"errors"

	"github.com/holiman/uint256"

	id "ingot/pkg/domain"
)

// ErrDebtUnderflow signals an attempt to retire more debt than the ledger
// has recorded. This indicates caller misuse rather than a recoverable
// runtime condition: the debt book is the engine's own ledger.
var ErrDebtUnderflow = errors.New("debt reduction exceeds recorded debt")

// SupportedAsset binds a collateral asset to the price feed that values it.
// The supported list is fixed at engine construction and never changes.
type SupportedAsset struct {
	Asset id.AssetID
	Feed  id.FeedID
}

// Account is one depositor's ledger entry: collateral balances per asset and
// the synthetic debt minted against them. Accounts are created implicitly on
// first deposit and never deleted; balances simply decay to zero.
type Account struct {
	ID         id.AccountID
	Collateral map[id.AssetID]*uint256.Int
	Debt       *uint256.Int
}

// NewAccount returns an empty account for accountID.
func NewAccount(accountID id.AccountID) *Account {
	return &Account{
		ID:         accountID,
		Collateral: make(map[id.AssetID]*uint256.Int),
		Debt:       uint256.NewInt(0),
	}
}

// Clone returns a deep copy. The engine stages transition deltas on clones
// so a failed operation leaves the stored account untouched.
func (a *Account) Clone() *Account {
	clone := &Account{
		ID:         a.ID,
		Collateral: make(map[id.AssetID]*uint256.Int, len(a.Collateral)),
		Debt:       new(uint256.Int).Set(a.Debt),
	}
	for asset, amount := range a.Collateral {
		clone.Collateral[asset] = new(uint256.Int).Set(amount)
	}
	return clone
}

// CollateralOf returns a copy of the balance held in asset; zero when the
// account has never touched the asset.
func (a *Account) CollateralOf(asset id.AssetID) *uint256.Int {
	if balance, ok := a.Collateral[asset]; ok {
		return new(uint256.Int).Set(balance)
	}
	return uint256.NewInt(0)
}

// AddCollateral credits amount of asset to the account.
func (a *Account) AddCollateral(asset id.AssetID, amount *uint256.Int) {
	balance, ok := a.Collateral[asset]
	if !ok {
		balance = uint256.NewInt(0)
		a.Collateral[asset] = balance
	}
	balance.Add(balance, amount)
}

// SubCollateral debits amount of asset. Returns false without mutating when
// the recorded balance is insufficient; callers decide whether that is a
// no-op or an error.
func (a *Account) SubCollateral(asset id.AssetID, amount *uint256.Int) bool {
	balance, ok := a.Collateral[asset]
	if !ok || balance.Lt(amount) {
		return false
	}
	balance.Sub(balance, amount)
	return true
}

// AddDebt records amount of freshly minted debt.
func (a *Account) AddDebt(amount *uint256.Int) {
	a.Debt.Add(a.Debt, amount)
}

// SubDebt retires amount of recorded debt. Underflow is a fatal bookkeeping
// error, not a clamp.
func (a *Account) SubDebt(amount *uint256.Int) error {
	if a.Debt.Lt(amount) {
		return ErrDebtUnderflow
	}
	a.Debt.Sub(a.Debt, amount)
	return nil
}

// Summary is the combined read-model for an account: debt outstanding and
// the USD value of all collateral backing it.
type Summary struct {
	Account            id.AccountID
	DebtMinted         *uint256.Int
	CollateralValueUSD *uint256.Int
}
