// Package token defines the engine's view of the asset ledgers it moves
// value on. Both ledgers signal failure with an explicit boolean alongside
// the transport error, and every call site must check it; the engine never
// infers success from the absence of an error.
package token

import (
	"context"

	"github.com/holiman/uint256"

	id "ingot/pkg/domain"
)

// CollateralLedger is an external fungible-balance ledger holding the
// collateral assets. The engine pulls deposits into its custody with
// TransferFrom and pays withdrawals out of custody with Transfer.
type CollateralLedger interface {
	// TransferFrom moves amount of asset from one account to another.
	// The boolean reports whether the ledger accepted the transfer.
	TransferFrom(ctx context.Context, asset id.AssetID, from, to id.AccountID, amount *uint256.Int) (bool, error)

	// Transfer moves amount of asset out of the engine's custody balance.
	Transfer(ctx context.Context, asset id.AssetID, to id.AccountID, amount *uint256.Int) (bool, error)

	// BalanceOf reports the ledger balance of account in asset.
	BalanceOf(ctx context.Context, asset id.AssetID, account id.AccountID) (*uint256.Int, error)
}

// SyntheticLedger is the owned, mintable/burnable ledger for the synthetic
// asset. Its mint/burn capability is restricted to a single controller: the
// engine. Burn always debits the controller's own balance, so retiring a
// third party's debt first requires a TransferFrom into the controller.
type SyntheticLedger interface {
	// Mint credits amount of freshly issued synthetic asset to account.
	Mint(ctx context.Context, to id.AccountID, amount *uint256.Int) (bool, error)

	// Burn destroys amount from the controller's own balance.
	Burn(ctx context.Context, amount *uint256.Int) error

	// TransferFrom moves amount between holders.
	TransferFrom(ctx context.Context, from, to id.AccountID, amount *uint256.Int) (bool, error)

	// BalanceOf reports the holder's balance.
	BalanceOf(ctx context.Context, account id.AccountID) (*uint256.Int, error)

	// TotalSupply reports the outstanding synthetic supply.
	TotalSupply(ctx context.Context) (*uint256.Int, error)
}
