// Package protocol fixes the economic parameters of the engine. All values
// are package-level constants or immutable uint256 values; nothing here is
// configurable at runtime, so every deployment computes identical results.
package protocol

import "github.com/holiman/uint256"

const (
	// ScaleDecimals is the ledger's fixed-point precision: every collateral
	// amount, debt amount, USD value, and health factor is an unsigned
	// integer scaled by 10^18.
	ScaleDecimals = 18

	// LiquidationThresholdPct is the share of raw collateral value that
	// counts toward debt coverage. 50 means an account must hold at least
	// 2x its debt in collateral to stay safe.
	LiquidationThresholdPct = 50

	// PctPrecision is the denominator for LiquidationThresholdPct.
	PctPrecision = 100

	// LiquidationBonusBps is the collateral bonus awarded to liquidators,
	// in basis points of the seized base amount.
	LiquidationBonusBps = 1000

	// BpsPrecision is the denominator for LiquidationBonusBps.
	BpsPrecision = 10000

	// DefaultFeedDecimals is the native precision of USD price feeds when a
	// feed does not declare its own.
	DefaultFeedDecimals = 8
)

// Scale returns the fixed-point unit 10^18. A health factor equal to Scale
// is exactly 1.0: the boundary between safe and liquidatable.
func Scale() *uint256.Int {
	return uint256.NewInt(1_000_000_000_000_000_000)
}

// MinHealthFactor is the smallest health factor considered safe; alias for
// Scale kept for readability at check sites.
func MinHealthFactor() *uint256.Int {
	return Scale()
}

// MaxHealthFactor is the health factor reported for debt-free accounts: the
// maximum representable value, since no price can make them liquidatable.
func MaxHealthFactor() *uint256.Int {
	return new(uint256.Int).SetAllOne()
}
