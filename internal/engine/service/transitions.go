package service

import (
	"context"
	"errors"

	"github.com/holiman/uint256"

	"ingot/internal/events"
	id "ingot/pkg/domain"
	dErrors "ingot/pkg/domain-errors"
	"ingot/pkg/requestcontext"
)

// DepositCollateral pulls amount of asset from the caller's external balance
// into custody and credits the caller's ledger entry. Deposits never require
// a health check: adding collateral can only improve coverage.
func (e *Engine) DepositCollateral(ctx context.Context, caller id.AccountID, asset id.AssetID, amount *uint256.Int) error {
	if err := validateAmount(amount); err != nil {
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

	account, err := e.loadOrCreate(ctx, caller)
	if err != nil {
		return err
	}
	staged := account.Clone()
	staged.AddCollateral(asset, amount)

	if err := e.pullCollateral(ctx, asset, caller, amount); err != nil {
		return err
	}

	if err := e.store.SaveAccount(ctx, staged); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "save account")
	}

	if e.metrics != nil {
		e.metrics.IncDeposits(string(asset))
	}
	e.emit(ctx, events.Event{
		Action:  events.ActionCollateralDeposited,
		Account: caller,
		Asset:   asset,
		Amount:  amount.Dec(),
	})
	return nil
}

// RedeemCollateral pays amount of asset out of custody back to the caller
// and debits the ledger entry, provided the caller's position stays healthy
// afterwards. Redeeming more than the recorded balance is a no-op.
func (e *Engine) RedeemCollateral(ctx context.Context, caller id.AccountID, asset id.AssetID, amount *uint256.Int) error {
	if err := validateAmount(amount); err != nil {
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

	account, err := e.loadOrCreate(ctx, caller)
	if err != nil {
		return err
	}
	staged := account.Clone()
	if !staged.SubCollateral(asset, amount) {
		e.log(ctx, "redeem beyond recorded balance ignored",
			"account", caller, "asset", asset, "amount", amount.Dec())
		return nil
	}

	if err := e.checkHealth(ctx, staged); err != nil {
		return err
	}

	if err := e.payCollateral(ctx, asset, caller, amount); err != nil {
		return err
	}

	if err := e.store.SaveAccount(ctx, staged); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "save account")
	}

	if e.metrics != nil {
		e.metrics.IncRedemptions(string(asset))
	}
	e.emit(ctx, events.Event{
		Action:  events.ActionCollateralRedeemed,
		Account: caller,
		Asset:   asset,
		Amount:  amount.Dec(),
	})
	return nil
}

// Mint issues amount of fresh synthetic asset to the caller and records the
// matching debt, provided the caller's collateral covers the enlarged debt.
func (e *Engine) Mint(ctx context.Context, caller id.AccountID, amount *uint256.Int) error {
	if err := validateAmount(amount); err != nil {
		return err
	}

	ctx, release, err := e.enter(ctx)
	if err != nil {
		return err
	}
	defer release()

	account, err := e.loadOrCreate(ctx, caller)
	if err != nil {
		return err
	}
	staged := account.Clone()
	staged.AddDebt(amount)

	if err := e.checkHealth(ctx, staged); err != nil {
		return err
	}

	if err := e.mintSynth(ctx, caller, amount); err != nil {
		return err
	}

	if err := e.store.SaveAccount(ctx, staged); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "save account")
	}

	if e.metrics != nil {
		e.metrics.Mints.Inc()
	}
	e.emit(ctx, events.Event{
		Action:  events.ActionSynthMinted,
		Account: caller,
		Amount:  amount.Dec(),
	})
	return nil
}

// Burn retires amount of the caller's recorded debt, funded from the
// caller's own synthetic balance. No post-burn health check: retiring debt
// can only improve coverage. Burning beyond recorded debt is a bookkeeping
// fault, never a clamp.
func (e *Engine) Burn(ctx context.Context, caller id.AccountID, amount *uint256.Int) error {
	if err := validateAmount(amount); err != nil {
		return err
	}

	ctx, release, err := e.enter(ctx)
	if err != nil {
		return err
	}
	defer release()

	account, err := e.loadOrCreate(ctx, caller)
	if err != nil {
		return err
	}
	staged := account.Clone()
	if err := staged.SubDebt(amount); err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnprocessable, "burn exceeds recorded debt")
	}

	if err := e.retireSynth(ctx, caller, amount); err != nil {
		return err
	}

	if err := e.store.SaveAccount(ctx, staged); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "save account")
	}

	if e.metrics != nil {
		e.metrics.Burns.Inc()
	}
	e.emit(ctx, events.Event{
		Action:  events.ActionSynthBurned,
		Account: caller,
		Amount:  amount.Dec(),
	})
	return nil
}

// DepositAndMint deposits collateral and mints in one atomic transition:
// both deltas are staged together, the health check sees the combined
// result, and a failed mint unwinds the deposit transfer.
func (e *Engine) DepositAndMint(ctx context.Context, caller id.AccountID, asset id.AssetID, collateralAmount, mintAmount *uint256.Int) error {
	if err := validateAmount(collateralAmount); err != nil {
		return err
	}
	if err := validateAmount(mintAmount); err != nil {
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

	account, err := e.loadOrCreate(ctx, caller)
	if err != nil {
		return err
	}
	staged := account.Clone()
	staged.AddCollateral(asset, collateralAmount)
	staged.AddDebt(mintAmount)

	if err := e.checkHealth(ctx, staged); err != nil {
		return err
	}

	if err := e.pullCollateral(ctx, asset, caller, collateralAmount); err != nil {
		return err
	}
	if err := e.mintSynth(ctx, caller, mintAmount); err != nil {
		// Unwind the deposit so the caller's external balance is whole.
		e.compensate(ctx, "return deposited collateral", func() (bool, error) {
			return e.collateral.Transfer(ctx, asset, caller, collateralAmount)
		})
		return err
	}

	if err := e.store.SaveAccount(ctx, staged); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "save account")
	}

	if e.metrics != nil {
		e.metrics.IncDeposits(string(asset))
		e.metrics.Mints.Inc()
	}
	e.emit(ctx, events.Event{
		Action:  events.ActionCollateralDeposited,
		Account: caller,
		Asset:   asset,
		Amount:  collateralAmount.Dec(),
	})
	e.emit(ctx, events.Event{
		Action:  events.ActionSynthMinted,
		Account: caller,
		Amount:  mintAmount.Dec(),
	})
	return nil
}

// BurnAndRedeem retires burnAmount of debt and then redeems
// collateralAmount of asset, as one atomic transition. The redeem half
// keeps redeem semantics: beyond-balance is a no-op, and the health check
// runs against the combined staged state.
func (e *Engine) BurnAndRedeem(ctx context.Context, caller id.AccountID, asset id.AssetID, collateralAmount, burnAmount *uint256.Int) error {
	if err := validateAmount(collateralAmount); err != nil {
		return err
	}
	if err := validateAmount(burnAmount); err != nil {
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

	account, err := e.loadOrCreate(ctx, caller)
	if err != nil {
		return err
	}
	staged := account.Clone()
	if err := staged.SubDebt(burnAmount); err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnprocessable, "burn exceeds recorded debt")
	}
	redeemed := staged.SubCollateral(asset, collateralAmount)
	if !redeemed {
		e.log(ctx, "redeem beyond recorded balance ignored",
			"account", caller, "asset", asset, "amount", collateralAmount.Dec())
	}

	if err := e.checkHealth(ctx, staged); err != nil {
		return err
	}

	if err := e.retireSynth(ctx, caller, burnAmount); err != nil {
		return err
	}
	if redeemed {
		if err := e.payCollateral(ctx, asset, caller, collateralAmount); err != nil {
			// The burn already destroyed supply; the ledger commit below
			// must not happen, so re-record nothing and surface the
			// failure. The caller's debt book is only updated on commit.
			return err
		}
	}

	if err := e.store.SaveAccount(ctx, staged); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "save account")
	}

	if e.metrics != nil {
		e.metrics.Burns.Inc()
		if redeemed {
			e.metrics.IncRedemptions(string(asset))
		}
	}
	e.emit(ctx, events.Event{
		Action:  events.ActionSynthBurned,
		Account: caller,
		Amount:  burnAmount.Dec(),
	})
	if redeemed {
		e.emit(ctx, events.Event{
			Action:  events.ActionCollateralRedeemed,
			Account: caller,
			Asset:   asset,
			Amount:  collateralAmount.Dec(),
		})
	}
	return nil
}

// pullCollateral moves amount of asset from the caller's external balance
// into custody, mapping both failure modes.
func (e *Engine) pullCollateral(ctx context.Context, asset id.AssetID, from id.AccountID, amount *uint256.Int) error {
	ok, err := e.collateral.TransferFrom(ctx, asset, from, e.custody, amount)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "collateral ledger unavailable")
	}
	if !ok {
		if e.metrics != nil {
			e.metrics.TransferFailures.Inc()
		}
		return dErrors.Wrap(ErrTransferFailed, dErrors.CodeUnprocessable, "collateral transfer rejected")
	}
	return nil
}

// payCollateral moves amount of asset out of custody to the recipient.
func (e *Engine) payCollateral(ctx context.Context, asset id.AssetID, to id.AccountID, amount *uint256.Int) error {
	ok, err := e.collateral.Transfer(ctx, asset, to, amount)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "collateral ledger unavailable")
	}
	if !ok {
		if e.metrics != nil {
			e.metrics.TransferFailures.Inc()
		}
		return dErrors.Wrap(ErrTransferFailed, dErrors.CodeUnprocessable, "collateral transfer rejected")
	}
	return nil
}

// mintSynth issues fresh synthetic asset to the recipient.
func (e *Engine) mintSynth(ctx context.Context, to id.AccountID, amount *uint256.Int) error {
	ok, err := e.synth.Mint(ctx, to, amount)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "synthetic ledger unavailable")
	}
	if !ok {
		if e.metrics != nil {
			e.metrics.TransferFailures.Inc()
		}
		return dErrors.Wrap(ErrMintFailed, dErrors.CodeUnprocessable, "synthetic mint rejected")
	}
	return nil
}

// retireSynth funds a burn from the payer's balance: the synthetic asset is
// first pulled into custody, then destroyed. A burn failure after the pull
// returns the payer's tokens before surfacing.
func (e *Engine) retireSynth(ctx context.Context, payer id.AccountID, amount *uint256.Int) error {
	ok, err := e.synth.TransferFrom(ctx, payer, e.custody, amount)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "synthetic ledger unavailable")
	}
	if !ok {
		if e.metrics != nil {
			e.metrics.TransferFailures.Inc()
		}
		return dErrors.Wrap(ErrTransferFailed, dErrors.CodeUnprocessable, "synthetic transfer rejected")
	}

	if err := e.synth.Burn(ctx, amount); err != nil {
		e.compensate(ctx, "return synthetic tokens", func() (bool, error) {
			return e.synth.TransferFrom(ctx, e.custody, payer, amount)
		})
		return dErrors.Wrap(err, dErrors.CodeInternal, "synthetic burn failed")
	}
	return nil
}

// compensate runs a best-effort unwind transfer after a partial failure and
// logs when the unwind itself does not go through. The transition has
// already failed either way.
func (e *Engine) compensate(ctx context.Context, what string, transfer func() (bool, error)) {
	ok, err := transfer()
	if err == nil && ok {
		return
	}
	if err == nil {
		err = errors.New("transfer rejected")
	}
	e.log(ctx, "compensating transfer failed", "step", what, "error", err)
}

func (e *Engine) log(ctx context.Context, msg string, args ...any) {
	if e.logger == nil {
		return
	}
	e.logger.InfoContext(ctx, msg, args...)
}

func (e *Engine) emit(ctx context.Context, event events.Event) {
	event.RequestID = requestcontext.RequestID(ctx)
	events.Emit(ctx, e.logger, e.publisher, event)
}
