package service

import (
	"context"

	"github.com/holiman/uint256"

	"ingot/internal/engine/risk"
	"ingot/internal/events"
	"ingot/internal/protocol"
	id "ingot/pkg/domain"
	dErrors "ingot/pkg/domain-errors"
)

// Liquidate lets a third party retire debtToCover of an unsafe account's
// debt in exchange for the equivalent collateral plus a bonus. The
// liquidator funds the burn from their own synthetic balance and receives
// the seized collateral on the external ledger.
//
// The seize amount is not capped to the target's recorded balance: when the
// balance cannot cover seizeBase plus bonus the collateral leg is skipped
// entirely and only the debt is retired. Liquidators size debtToCover so
// this does not happen; near total collateralization the position cannot be
// fully liquidated.
func (e *Engine) Liquidate(ctx context.Context, liquidator, target id.AccountID, asset id.AssetID, debtToCover *uint256.Int) error {
	if err := validateAmount(debtToCover); err != nil {
		return err
	}
	if err := e.validateAsset(asset); err != nil {
		return err
	}

	ctx, release, err := e.enter(ctx)
	if err != nil {
		return err
	}
	defer release()

	account, err := e.loadOrCreate(ctx, target)
	if err != nil {
		return err
	}

	startingHF, err := e.evaluator.HealthFactor(ctx, account)
	if err != nil {
		if e.metrics != nil {
			e.metrics.OracleFailures.Inc()
		}
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "collateral cannot be valued")
	}
	if risk.IsSafe(startingHF) {
		return dErrors.Wrap(ErrHealthFactorOK, dErrors.CodeUnprocessable, "account is not liquidatable")
	}

	// Size the seize: the USD debt converted to asset units, plus the
	// incentive bonus, both rounding down.
	seizeBase, err := e.resolver.AssetQuantityForUSD(ctx, asset, debtToCover)
	if err != nil {
		if e.metrics != nil {
			e.metrics.OracleFailures.Inc()
		}
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "collateral cannot be valued")
	}
	bonus := new(uint256.Int).Mul(seizeBase, uint256.NewInt(protocol.LiquidationBonusBps))
	bonus.Div(bonus, uint256.NewInt(protocol.BpsPrecision))
	totalSeize := new(uint256.Int).Add(seizeBase, bonus)

	staged := account.Clone()
	seized := staged.SubCollateral(asset, totalSeize)
	if !seized {
		e.log(ctx, "seize beyond recorded balance skipped",
			"account", target, "asset", asset, "seize", totalSeize.Dec())
	}
	if err := staged.SubDebt(debtToCover); err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnprocessable, "cover exceeds recorded debt")
	}

	// The liquidation must leave the target strictly better off. Evaluated
	// on the staged state so no transfer happens for a pointless one.
	stagedValue, err := e.evaluator.TotalCollateralValue(ctx, staged)
	if err != nil {
		if e.metrics != nil {
			e.metrics.OracleFailures.Inc()
		}
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "collateral cannot be valued")
	}
	endingHF, err := risk.HealthFactorFor(stagedValue, staged.Debt)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "health factor computation failed")
	}
	if !endingHF.Gt(startingHF) {
		return dErrors.Wrap(ErrHealthFactorNotImproved, dErrors.CodeUnprocessable, "liquidation would not improve the account")
	}

	// The burn is funded by the liquidator, not by their ledger entry, so
	// their own position is unchanged; the check still runs so a
	// liquidator with an already-broken position cannot act.
	liquidatorAccount, err := e.loadOrCreate(ctx, liquidator)
	if err != nil {
		return err
	}
	if err := e.checkHealth(ctx, liquidatorAccount); err != nil {
		return err
	}

	// External legs, compensating on partial failure: pull the synthetic
	// funding first, then pay out the seized collateral, burn last.
	if err := e.pullSynthFunding(ctx, liquidator, debtToCover); err != nil {
		return err
	}
	if seized {
		if err := e.payCollateral(ctx, asset, liquidator, totalSeize); err != nil {
			e.compensate(ctx, "return liquidator synthetic tokens", func() (bool, error) {
				return e.synth.TransferFrom(ctx, e.custody, liquidator, debtToCover)
			})
			return err
		}
	}
	if err := e.synth.Burn(ctx, debtToCover); err != nil {
		if seized {
			e.compensate(ctx, "recover seized collateral", func() (bool, error) {
				return e.collateral.TransferFrom(ctx, asset, liquidator, e.custody, totalSeize)
			})
		}
		e.compensate(ctx, "return liquidator synthetic tokens", func() (bool, error) {
			return e.synth.TransferFrom(ctx, e.custody, liquidator, debtToCover)
		})
		return dErrors.Wrap(err, dErrors.CodeInternal, "synthetic burn failed")
	}

	if err := e.store.SaveAccount(ctx, staged); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "save account")
	}

	if e.metrics != nil {
		e.metrics.Liquidations.Inc()
	}
	seizedAmount := uint256.NewInt(0)
	if seized {
		seizedAmount.Set(totalSeize)
	}
	e.emit(ctx, events.Event{
		Action:             events.ActionLiquidation,
		Account:            target,
		Asset:              asset,
		Liquidator:         liquidator,
		DebtCovered:        debtToCover.Dec(),
		CollateralSeized:   seizedAmount.Dec(),
		HealthFactorBefore: startingHF.Dec(),
		HealthFactorAfter:  endingHF.Dec(),
	})
	return nil
}

// pullSynthFunding moves the covered debt's worth of synthetic asset from
// the liquidator into custody ahead of the burn.
func (e *Engine) pullSynthFunding(ctx context.Context, liquidator id.AccountID, amount *uint256.Int) error {
	ok, err := e.synth.TransferFrom(ctx, liquidator, e.custody, amount)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "synthetic ledger unavailable")
	}
	if !ok {
		if e.metrics != nil {
			e.metrics.TransferFailures.Inc()
		}
		return dErrors.Wrap(ErrTransferFailed, dErrors.CodeUnprocessable, "synthetic transfer rejected")
	}
	return nil
}
