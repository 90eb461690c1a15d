// Package ledger persists the engine's account book. The engine serializes
// all mutations itself, so stores only need atomic per-call semantics: a
// SaveAccount either lands every balance of the snapshot or none of them.
package ledger

import (
	"context"

	"github.com/holiman/uint256"

	"ingot/internal/engine/models"
	id "ingot/pkg/domain"
)

// Store is the account ledger. GetAccount returns (nil, nil) for accounts
// that have never deposited; accounts are never deleted.
type Store interface {
	// GetAccount loads a detached snapshot of the account, or nil.
	GetAccount(ctx context.Context, accountID id.AccountID) (*models.Account, error)

	// SaveAccount persists the full snapshot atomically, creating the
	// account on first write.
	SaveAccount(ctx context.Context, account *models.Account) error

	// TotalDebt sums recorded debt over all accounts.
	TotalDebt(ctx context.Context) (*uint256.Int, error)

	// TotalCollateral sums recorded balances of asset over all accounts.
	TotalCollateral(ctx context.Context, asset id.AssetID) (*uint256.Int, error)
}
