// Package risk computes the health factor: the single scalar that decides
// whether an account may mint, withdraw, or be liquidated. The computation
// is integer-only and rounds down at every step, so valuation always favors
// protocol solvency.
package risk

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"

	"ingot/internal/engine/models"
	"ingot/internal/oracle"
	"ingot/internal/protocol"
)

// Evaluator values accounts against the supported asset list. The list is
// fixed at construction and enumerated in construction order.
type Evaluator struct {
	assets   []models.SupportedAsset
	resolver *oracle.Resolver
}

// New creates an Evaluator over the engine's supported assets.
func New(assets []models.SupportedAsset, resolver *oracle.Resolver) (*Evaluator, error) {
	if resolver == nil {
		return nil, fmt.Errorf("price resolver is required")
	}
	return &Evaluator{assets: assets, resolver: resolver}, nil
}

// TotalCollateralValue sums the USD value of the account's balance in every
// supported asset. A stale or invalid feed fails the whole valuation; an
// account must never be valued on partial data.
func (e *Evaluator) TotalCollateralValue(ctx context.Context, account *models.Account) (*uint256.Int, error) {
	total := uint256.NewInt(0)
	if account == nil {
		return total, nil
	}

	for _, supported := range e.assets {
		balance := account.CollateralOf(supported.Asset)
		if balance.IsZero() {
			continue
		}
		value, err := e.resolver.USDValue(ctx, supported.Asset, balance)
		if err != nil {
			return nil, fmt.Errorf("value collateral %s: %w", supported.Asset, err)
		}
		total.Add(total, value)
	}
	return total, nil
}

// HealthFactor returns the account's margin of safety as an 18-decimal
// fixed-point ratio. Scale (1.0) is exactly safe; below Scale the account is
// eligible for liquidation. Debt-free accounts report the maximum
// representable value: no price can make them liquidatable.
func (e *Evaluator) HealthFactor(ctx context.Context, account *models.Account) (*uint256.Int, error) {
	if account == nil || account.Debt.IsZero() {
		return protocol.MaxHealthFactor(), nil
	}

	collateralValue, err := e.TotalCollateralValue(ctx, account)
	if err != nil {
		return nil, err
	}
	return HealthFactorFor(collateralValue, account.Debt)
}

// HealthFactorFor computes the health factor from an already-known
// collateral value and debt. Split out so liquidation sizing can evaluate
// hypothetical states without refetching prices.
func HealthFactorFor(collateralValue, debt *uint256.Int) (*uint256.Int, error) {
	if debt.IsZero() {
		return protocol.MaxHealthFactor(), nil
	}

	// Only the threshold share of raw collateral counts toward coverage;
	// both divisions round down.
	adjusted, overflow := new(uint256.Int).MulDivOverflow(
		collateralValue,
		uint256.NewInt(protocol.LiquidationThresholdPct),
		uint256.NewInt(protocol.PctPrecision),
	)
	if overflow {
		return nil, fmt.Errorf("threshold-adjusted collateral overflows")
	}

	healthFactor, overflow := new(uint256.Int).MulDivOverflow(adjusted, protocol.Scale(), debt)
	if overflow {
		// Far more coverage than debt can express; clamp to the maximum,
		// which is also what a debt-free account reports.
		return protocol.MaxHealthFactor(), nil
	}
	return healthFactor, nil
}

// IsSafe reports whether a health factor meets the minimum.
func IsSafe(healthFactor *uint256.Int) bool {
	return !healthFactor.Lt(protocol.MinHealthFactor())
}
