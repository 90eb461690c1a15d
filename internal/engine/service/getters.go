package service

import (
	"context"

	"github.com/holiman/uint256"

	"ingot/internal/engine/models"
	id "ingot/pkg/domain"
	dErrors "ingot/pkg/domain-errors"
)

// Read-only accessors. None of them validate beyond input shape and none of
// them mutate: an account that has never deposited reads as all zeros. The
// price-dependent getters can still surface oracle unavailability, which is
// reported as such rather than silently skipping assets.

// SupportedAssets returns the asset list in construction order.
func (e *Engine) SupportedAssets() []models.SupportedAsset {
	out := make([]models.SupportedAsset, len(e.assets))
	copy(out, e.assets)
	return out
}

// FeedFor returns the price feed bound to asset.
func (e *Engine) FeedFor(asset id.AssetID) (id.FeedID, error) {
	if feed, ok := e.resolver.FeedFor(asset); ok {
		return feed, nil
	}
	return "", dErrors.Newf(dErrors.CodeNotFound, "no feed for asset %s", asset)
}

// Custody returns the engine's account on the external ledgers.
func (e *Engine) Custody() id.AccountID {
	return e.custody
}

// CollateralBalance returns the recorded balance of account in asset.
func (e *Engine) CollateralBalance(ctx context.Context, accountID id.AccountID, asset id.AssetID) (*uint256.Int, error) {
	if err := e.validateAsset(asset); err != nil {
		return nil, err
	}
	account, err := e.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load account")
	}
	if account == nil {
		return uint256.NewInt(0), nil
	}
	return account.CollateralOf(asset), nil
}

// DebtOf returns the recorded minted debt of account.
func (e *Engine) DebtOf(ctx context.Context, accountID id.AccountID) (*uint256.Int, error) {
	account, err := e.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load account")
	}
	if account == nil {
		return uint256.NewInt(0), nil
	}
	return new(uint256.Int).Set(account.Debt), nil
}

// TotalCollateralValue returns the USD value of all collateral recorded for
// account at current prices.
func (e *Engine) TotalCollateralValue(ctx context.Context, accountID id.AccountID) (*uint256.Int, error) {
	account, err := e.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load account")
	}
	value, err := e.evaluator.TotalCollateralValue(ctx, account)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "collateral cannot be valued")
	}
	return value, nil
}

// HealthFactor returns the account's current health factor.
func (e *Engine) HealthFactor(ctx context.Context, accountID id.AccountID) (*uint256.Int, error) {
	account, err := e.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load account")
	}
	healthFactor, err := e.evaluator.HealthFactor(ctx, account)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "collateral cannot be valued")
	}
	return healthFactor, nil
}

// AccountSummary returns the combined read-model: debt outstanding and
// total collateral value.
func (e *Engine) AccountSummary(ctx context.Context, accountID id.AccountID) (*models.Summary, error) {
	account, err := e.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load account")
	}
	value, err := e.evaluator.TotalCollateralValue(ctx, account)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "collateral cannot be valued")
	}

	summary := &models.Summary{
		Account:            accountID,
		DebtMinted:         uint256.NewInt(0),
		CollateralValueUSD: value,
	}
	if account != nil {
		summary.DebtMinted.Set(account.Debt)
	}
	return summary, nil
}

// SystemSolvency returns the aggregate debt outstanding and the aggregate
// USD value of all custody collateral at current prices. The protocol-wide
// invariant is debt <= collateral value; callers (monitoring, tests) decide
// how to react.
func (e *Engine) SystemSolvency(ctx context.Context) (totalDebt, totalCollateralUSD *uint256.Int, err error) {
	totalDebt, err = e.store.TotalDebt(ctx)
	if err != nil {
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "sum debt")
	}

	totalCollateralUSD = uint256.NewInt(0)
	for _, supported := range e.assets {
		held, err := e.store.TotalCollateral(ctx, supported.Asset)
		if err != nil {
			return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "sum collateral")
		}
		if held.IsZero() {
			continue
		}
		value, err := e.resolver.USDValue(ctx, supported.Asset, held)
		if err != nil {
			return nil, nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "collateral cannot be valued")
		}
		totalCollateralUSD.Add(totalCollateralUSD, value)
	}
	return totalDebt, totalCollateralUSD, nil
}
