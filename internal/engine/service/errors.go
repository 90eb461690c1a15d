package service

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"
)

// Transition failures. Services wrap these with domain-error codes before
// returning, so transports can map them while errors.Is/As still reach the
// underlying value.
var (
	// ErrZeroAmount rejects non-positive amounts before any state change.
	ErrZeroAmount = errors.New("amount must be positive")

	// ErrUnsupportedAsset rejects assets outside the construction-time list.
	ErrUnsupportedAsset = errors.New("unsupported collateral asset")

	// ErrTransferFailed reports an external ledger transfer that signalled
	// rejection.
	ErrTransferFailed = errors.New("transfer rejected by external ledger")

	// ErrMintFailed reports a synthetic mint that signalled rejection.
	ErrMintFailed = errors.New("mint rejected by synthetic ledger")

	// ErrHealthFactorOK rejects liquidation of an account that is still
	// safe.
	ErrHealthFactorOK = errors.New("target account health factor is not below minimum")

	// ErrHealthFactorNotImproved rejects a liquidation that would not
	// strictly improve the target's position.
	ErrHealthFactorNotImproved = errors.New("liquidation did not improve target health factor")

	// ErrReentrantCall rejects nested re-entry into the engine while an
	// operation is in flight.
	ErrReentrantCall = errors.New("reentrant call into engine")
)

// HealthFactorError reports a broken health factor along with the computed
// value so callers can diagnose without retry logic inside the engine.
type HealthFactorError struct {
	HealthFactor *uint256.Int
}

func (e *HealthFactorError) Error() string {
	return fmt.Sprintf("health factor broken: %s", e.HealthFactor.Dec())
}
