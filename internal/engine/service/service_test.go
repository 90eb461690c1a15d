package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ingot/internal/engine/service"
	"ingot/internal/engine/store/ledger"
	"ingot/internal/events"
	"ingot/internal/oracle"
	"ingot/internal/protocol"
	"ingot/internal/token"
	id "ingot/pkg/domain"
	dErrors "ingot/pkg/domain-errors"
)

const (
	weth     = id.AssetID("weth")
	wethFeed = id.FeedID("weth-usd")
	wbtc     = id.AssetID("wbtc")
	wbtcFeed = id.FeedID("wbtc-usd")

	alice     = id.AccountID("0xa11ce00000000000000000000000000000000001")
	bob       = id.AccountID("0xb0b0000000000000000000000000000000000002")
	custodyID = id.AccountID("0xc0570d0000000000000000000000000000000003")
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	engine     *service.Engine
	store      *ledger.InMemoryStore
	feed       *oracle.MemoryFeed
	collateral *token.MemoryCollateralLedger
	synth      *token.MemorySyntheticLedger
	publisher  *events.MemoryPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		store:      ledger.NewMemory(),
		feed:       oracle.NewMemoryFeed(),
		collateral: token.NewMemoryCollateralLedger(custodyID),
		synth:      token.NewMemorySyntheticLedger(custodyID),
		publisher:  events.NewMemoryPublisher(),
	}
	f.feed.SetRound(wethFeed, feedPrice(2000), 8, testNow)
	f.feed.SetRound(wbtcFeed, feedPrice(30_000), 8, testNow)

	engine, err := service.New(service.Config{
		Assets:      []id.AssetID{weth, wbtc},
		Feeds:       []id.FeedID{wethFeed, wbtcFeed},
		MaxPriceAge: 3 * time.Hour,
		Custody:     custodyID,
		Store:       f.store,
		PriceFeed:   f.feed,
		Collateral:  f.collateral,
		Synthetic:   f.synth,
	},
		service.WithPublisher(f.publisher),
		service.WithResolverOption(oracle.WithNow(func() time.Time { return testNow })),
	)
	require.NoError(t, err)
	f.engine = engine
	return f
}

// fund credits the account on the collateral ledger and deposits part of it.
func (f *fixture) deposit(t *testing.T, account id.AccountID, asset id.AssetID, amount *uint256.Int) {
	t.Helper()
	f.collateral.Credit(asset, account, amount)
	require.NoError(t, f.engine.DepositCollateral(context.Background(), account, asset, amount))
}

func scaled(units uint64) *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(units), protocol.Scale())
}

func feedPrice(usd uint64) *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(usd), uint256.NewInt(100_000_000))
}

func TestNewValidation(t *testing.T) {
	store := ledger.NewMemory()
	feed := oracle.NewMemoryFeed()
	collateral := token.NewMemoryCollateralLedger(custodyID)
	synth := token.NewMemorySyntheticLedger(custodyID)

	valid := service.Config{
		Assets:      []id.AssetID{weth},
		Feeds:       []id.FeedID{wethFeed},
		MaxPriceAge: time.Hour,
		Custody:     custodyID,
		Store:       store,
		PriceFeed:   feed,
		Collateral:  collateral,
		Synthetic:   synth,
	}

	t.Run("accepts a complete config", func(t *testing.T) {
		_, err := service.New(valid)
		assert.NoError(t, err)
	})

	t.Run("rejects mismatched asset and feed lists", func(t *testing.T) {
		cfg := valid
		cfg.Feeds = []id.FeedID{wethFeed, wbtcFeed}
		_, err := service.New(cfg)
		assert.ErrorContains(t, err, "equal length")
	})

	t.Run("rejects an empty asset list", func(t *testing.T) {
		cfg := valid
		cfg.Assets = nil
		cfg.Feeds = nil
		_, err := service.New(cfg)
		assert.Error(t, err)
	})

	t.Run("rejects duplicate assets", func(t *testing.T) {
		cfg := valid
		cfg.Assets = []id.AssetID{weth, weth}
		cfg.Feeds = []id.FeedID{wethFeed, wbtcFeed}
		_, err := service.New(cfg)
		assert.ErrorContains(t, err, "duplicate")
	})

	t.Run("rejects a zero custody account", func(t *testing.T) {
		cfg := valid
		cfg.Custody = ""
		_, err := service.New(cfg)
		assert.Error(t, err)
	})

	t.Run("rejects missing collaborators", func(t *testing.T) {
		cfg := valid
		cfg.Synthetic = nil
		_, err := service.New(cfg)
		assert.Error(t, err)
	})
}

func TestDepositCollateral(t *testing.T) {
	ctx := context.Background()

	t.Run("records the deposit and moves funds to custody", func(t *testing.T) {
		f := newFixture(t)
		f.collateral.Credit(weth, alice, scaled(10))

		require.NoError(t, f.engine.DepositCollateral(ctx, alice, weth, scaled(10)))

		balance, err := f.engine.CollateralBalance(ctx, alice, weth)
		require.NoError(t, err)
		assert.Equal(t, scaled(10), balance)

		custodyBalance, err := f.collateral.BalanceOf(ctx, weth, custodyID)
		require.NoError(t, err)
		assert.Equal(t, scaled(10), custodyBalance)

		last, ok := f.publisher.Last()
		require.True(t, ok)
		assert.Equal(t, events.ActionCollateralDeposited, last.Action)
		assert.Equal(t, alice, last.Account)
	})

	t.Run("rejects a zero amount before any state change", func(t *testing.T) {
		f := newFixture(t)
		err := f.engine.DepositCollateral(ctx, alice, weth, uint256.NewInt(0))
		assert.ErrorIs(t, err, service.ErrZeroAmount)
		assert.Equal(t, dErrors.CodeInvalidInput, dErrors.CodeOf(err))
	})

	t.Run("rejects an unsupported asset", func(t *testing.T) {
		f := newFixture(t)
		err := f.engine.DepositCollateral(ctx, alice, id.AssetID("doge"), scaled(1))
		assert.ErrorIs(t, err, service.ErrUnsupportedAsset)
	})

	t.Run("aborts without state change when the transfer is rejected", func(t *testing.T) {
		f := newFixture(t)
		f.collateral.Credit(weth, alice, scaled(10))
		f.collateral.FailNextTransfer()

		err := f.engine.DepositCollateral(ctx, alice, weth, scaled(10))
		assert.ErrorIs(t, err, service.ErrTransferFailed)

		balance, err := f.engine.CollateralBalance(ctx, alice, weth)
		require.NoError(t, err)
		assert.True(t, balance.IsZero())
	})
}

func TestRedeemCollateral(t *testing.T) {
	ctx := context.Background()

	t.Run("returns funds and debits the ledger", func(t *testing.T) {
		f := newFixture(t)
		f.deposit(t, alice, weth, scaled(10))

		require.NoError(t, f.engine.RedeemCollateral(ctx, alice, weth, scaled(4)))

		balance, err := f.engine.CollateralBalance(ctx, alice, weth)
		require.NoError(t, err)
		assert.Equal(t, scaled(6), balance)

		wallet, err := f.collateral.BalanceOf(ctx, weth, alice)
		require.NoError(t, err)
		assert.Equal(t, scaled(4), wallet)
	})

	t.Run("deposit then full redeem restores the initial state", func(t *testing.T) {
		f := newFixture(t)
		f.deposit(t, alice, weth, scaled(10))
		require.NoError(t, f.engine.RedeemCollateral(ctx, alice, weth, scaled(10)))

		balance, err := f.engine.CollateralBalance(ctx, alice, weth)
		require.NoError(t, err)
		assert.True(t, balance.IsZero())

		wallet, err := f.collateral.BalanceOf(ctx, weth, alice)
		require.NoError(t, err)
		assert.Equal(t, scaled(10), wallet)
	})

	t.Run("redeeming beyond the recorded balance is a no-op", func(t *testing.T) {
		f := newFixture(t)
		f.deposit(t, alice, weth, scaled(10))

		require.NoError(t, f.engine.RedeemCollateral(ctx, alice, weth, scaled(11)))

		balance, err := f.engine.CollateralBalance(ctx, alice, weth)
		require.NoError(t, err)
		assert.Equal(t, scaled(10), balance)
	})

	t.Run("rejects a redemption that would break the health factor", func(t *testing.T) {
		f := newFixture(t)
		f.deposit(t, alice, weth, scaled(1))
		require.NoError(t, f.engine.Mint(ctx, alice, scaled(1000)))

		err := f.engine.RedeemCollateral(ctx, alice, weth, scaled(1))
		var hfErr *service.HealthFactorError
		require.ErrorAs(t, err, &hfErr)
		assert.True(t, hfErr.HealthFactor.Lt(protocol.MinHealthFactor()))
		assert.Equal(t, dErrors.CodeUnprocessable, dErrors.CodeOf(err))

		balance, err := f.engine.CollateralBalance(ctx, alice, weth)
		require.NoError(t, err)
		assert.Equal(t, scaled(1), balance)
	})
}

func TestMint(t *testing.T) {
	ctx := context.Background()

	t.Run("mints to the limit of the threshold", func(t *testing.T) {
		f := newFixture(t)
		// 1 weth at $2000 with a 50% threshold covers exactly $1000.
		f.deposit(t, alice, weth, scaled(1))

		require.NoError(t, f.engine.Mint(ctx, alice, scaled(1000)))

		debt, err := f.engine.DebtOf(ctx, alice)
		require.NoError(t, err)
		assert.Equal(t, scaled(1000), debt)

		wallet, err := f.synth.BalanceOf(ctx, alice)
		require.NoError(t, err)
		assert.Equal(t, scaled(1000), wallet)

		hf, err := f.engine.HealthFactor(ctx, alice)
		require.NoError(t, err)
		assert.Equal(t, protocol.MinHealthFactor(), hf)
	})

	t.Run("rejects a mint one unit over the limit", func(t *testing.T) {
		f := newFixture(t)
		f.deposit(t, alice, weth, scaled(1))

		over := new(uint256.Int).Add(scaled(1000), uint256.NewInt(1))
		err := f.engine.Mint(ctx, alice, over)
		var hfErr *service.HealthFactorError
		require.ErrorAs(t, err, &hfErr)

		debt, err := f.engine.DebtOf(ctx, alice)
		require.NoError(t, err)
		assert.True(t, debt.IsZero())
	})

	t.Run("rejects minting with no collateral", func(t *testing.T) {
		f := newFixture(t)
		var hfErr *service.HealthFactorError
		assert.ErrorAs(t, f.engine.Mint(ctx, alice, scaled(1)), &hfErr)
	})

	t.Run("aborts without state change when the mint is rejected", func(t *testing.T) {
		f := newFixture(t)
		f.deposit(t, alice, weth, scaled(1))
		f.synth.FailNextMint()

		err := f.engine.Mint(ctx, alice, scaled(500))
		assert.ErrorIs(t, err, service.ErrMintFailed)

		debt, err := f.engine.DebtOf(ctx, alice)
		require.NoError(t, err)
		assert.True(t, debt.IsZero())
	})

	t.Run("fails with an unavailability error when the price is stale", func(t *testing.T) {
		f := newFixture(t)
		f.deposit(t, alice, weth, scaled(1))
		f.feed.SetRound(wethFeed, feedPrice(2000), 8, testNow.Add(-4*time.Hour))

		err := f.engine.Mint(ctx, alice, scaled(1))
		assert.ErrorIs(t, err, oracle.ErrStalePrice)
		assert.Equal(t, dErrors.CodeUnavailable, dErrors.CodeOf(err))
	})
}

func TestBurn(t *testing.T) {
	ctx := context.Background()

	t.Run("retires debt and destroys supply", func(t *testing.T) {
		f := newFixture(t)
		f.deposit(t, alice, weth, scaled(1))
		require.NoError(t, f.engine.Mint(ctx, alice, scaled(1000)))

		require.NoError(t, f.engine.Burn(ctx, alice, scaled(400)))

		debt, err := f.engine.DebtOf(ctx, alice)
		require.NoError(t, err)
		assert.Equal(t, scaled(600), debt)

		supply, err := f.synth.TotalSupply(ctx)
		require.NoError(t, err)
		assert.Equal(t, scaled(600), supply)
	})

	t.Run("burning beyond recorded debt is a bookkeeping fault", func(t *testing.T) {
		f := newFixture(t)
		f.deposit(t, alice, weth, scaled(1))
		require.NoError(t, f.engine.Mint(ctx, alice, scaled(100)))

		err := f.engine.Burn(ctx, alice, scaled(101))
		assert.Equal(t, dErrors.CodeUnprocessable, dErrors.CodeOf(err))

		debt, err := f.engine.DebtOf(ctx, alice)
		require.NoError(t, err)
		assert.Equal(t, scaled(100), debt)
	})

	t.Run("aborts when the caller cannot fund the burn", func(t *testing.T) {
		f := newFixture(t)
		f.deposit(t, alice, weth, scaled(1))
		require.NoError(t, f.engine.Mint(ctx, alice, scaled(100)))
		// Alice gives her tokens away; the debt stays on her account.
		ok, err := f.synth.TransferFrom(ctx, alice, bob, scaled(100))
		require.NoError(t, err)
		require.True(t, ok)

		err = f.engine.Burn(ctx, alice, scaled(100))
		assert.ErrorIs(t, err, service.ErrTransferFailed)

		debt, err := f.engine.DebtOf(ctx, alice)
		require.NoError(t, err)
		assert.Equal(t, scaled(100), debt)
	})
}

func TestDepositAndMint(t *testing.T) {
	ctx := context.Background()

	t.Run("stages both legs atomically", func(t *testing.T) {
		f := newFixture(t)
		f.collateral.Credit(weth, alice, scaled(2))

		require.NoError(t, f.engine.DepositAndMint(ctx, alice, weth, scaled(2), scaled(2000)))

		debt, err := f.engine.DebtOf(ctx, alice)
		require.NoError(t, err)
		assert.Equal(t, scaled(2000), debt)
	})

	t.Run("a failed mint unwinds the deposit transfer", func(t *testing.T) {
		f := newFixture(t)
		f.collateral.Credit(weth, alice, scaled(2))
		f.synth.FailNextMint()

		err := f.engine.DepositAndMint(ctx, alice, weth, scaled(2), scaled(1000))
		assert.ErrorIs(t, err, service.ErrMintFailed)

		wallet, err := f.collateral.BalanceOf(ctx, weth, alice)
		require.NoError(t, err)
		assert.Equal(t, scaled(2), wallet)

		balance, err := f.engine.CollateralBalance(ctx, alice, weth)
		require.NoError(t, err)
		assert.True(t, balance.IsZero())
	})

	t.Run("rejects when the combined position is unsafe", func(t *testing.T) {
		f := newFixture(t)
		f.collateral.Credit(weth, alice, scaled(1))

		var hfErr *service.HealthFactorError
		err := f.engine.DepositAndMint(ctx, alice, weth, scaled(1), scaled(1500))
		assert.ErrorAs(t, err, &hfErr)
	})
}

func TestBurnAndRedeem(t *testing.T) {
	ctx := context.Background()

	t.Run("retires debt and returns collateral in one transition", func(t *testing.T) {
		f := newFixture(t)
		f.collateral.Credit(weth, alice, scaled(2))
		require.NoError(t, f.engine.DepositAndMint(ctx, alice, weth, scaled(2), scaled(1000)))

		require.NoError(t, f.engine.BurnAndRedeem(ctx, alice, weth, scaled(1), scaled(1000)))

		debt, err := f.engine.DebtOf(ctx, alice)
		require.NoError(t, err)
		assert.True(t, debt.IsZero())

		balance, err := f.engine.CollateralBalance(ctx, alice, weth)
		require.NoError(t, err)
		assert.Equal(t, scaled(1), balance)

		wallet, err := f.collateral.BalanceOf(ctx, weth, alice)
		require.NoError(t, err)
		assert.Equal(t, scaled(1), wallet)
	})

	t.Run("rejects when the remaining position would be unsafe", func(t *testing.T) {
		f := newFixture(t)
		f.collateral.Credit(weth, alice, scaled(2))
		require.NoError(t, f.engine.DepositAndMint(ctx, alice, weth, scaled(2), scaled(2000)))

		var hfErr *service.HealthFactorError
		err := f.engine.BurnAndRedeem(ctx, alice, weth, scaled(1), scaled(500))
		assert.ErrorAs(t, err, &hfErr)
	})
}

func TestSystemSolvency(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.deposit(t, alice, weth, scaled(10))
	require.NoError(t, f.engine.Mint(ctx, alice, scaled(5000)))
	f.collateral.Credit(wbtc, bob, scaled(1))
	require.NoError(t, f.engine.DepositAndMint(ctx, bob, wbtc, scaled(1), scaled(15_000)))
	require.NoError(t, f.engine.Burn(ctx, alice, scaled(1000)))
	require.NoError(t, f.engine.RedeemCollateral(ctx, alice, weth, scaled(2)))

	totalDebt, totalCollateralUSD, err := f.engine.SystemSolvency(ctx)
	require.NoError(t, err)
	assert.Equal(t, scaled(19_000), totalDebt)
	assert.Equal(t, scaled(46_000), totalCollateralUSD)
	assert.True(t, totalDebt.Lt(totalCollateralUSD))
}

// reentrantLedger calls back into the engine from inside a transfer to
// prove that nested entry is rejected while an operation is in flight.
type reentrantLedger struct {
	*token.MemoryCollateralLedger
	engine *service.Engine
	nested error
}

func (l *reentrantLedger) TransferFrom(ctx context.Context, asset id.AssetID, from, to id.AccountID, amount *uint256.Int) (bool, error) {
	l.nested = l.engine.Mint(ctx, from, uint256.NewInt(1))
	return l.MemoryCollateralLedger.TransferFrom(ctx, asset, from, to, amount)
}

func TestReentrancyRejected(t *testing.T) {
	ctx := context.Background()

	inner := token.NewMemoryCollateralLedger(custodyID)
	reentrant := &reentrantLedger{MemoryCollateralLedger: inner}
	feed := oracle.NewMemoryFeed()
	feed.SetRound(wethFeed, feedPrice(2000), 8, testNow)

	engine, err := service.New(service.Config{
		Assets:      []id.AssetID{weth},
		Feeds:       []id.FeedID{wethFeed},
		MaxPriceAge: 3 * time.Hour,
		Custody:     custodyID,
		Store:       ledger.NewMemory(),
		PriceFeed:   feed,
		Collateral:  reentrant,
		Synthetic:   token.NewMemorySyntheticLedger(custodyID),
	}, service.WithResolverOption(oracle.WithNow(func() time.Time { return testNow })))
	require.NoError(t, err)
	reentrant.engine = engine

	inner.Credit(weth, alice, scaled(1))
	require.NoError(t, engine.DepositCollateral(ctx, alice, weth, scaled(1)))

	require.Error(t, reentrant.nested)
	assert.ErrorIs(t, reentrant.nested, service.ErrReentrantCall)
}

func TestConcurrentDepositsSerialize(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	const workers = 8
	f.collateral.Credit(weth, alice, scaled(workers))

	done := make(chan error, workers)
	for i := 0; i < workers; i++ {
		go func() {
			done <- f.engine.DepositCollateral(ctx, alice, weth, scaled(1))
		}()
	}
	for i := 0; i < workers; i++ {
		require.NoError(t, <-done)
	}

	balance, err := f.engine.CollateralBalance(ctx, alice, weth)
	require.NoError(t, err)
	assert.Equal(t, scaled(workers), balance)
}

func TestHealthFactorReporting(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	t.Run("a debt-free account reports the maximum", func(t *testing.T) {
		hf, err := f.engine.HealthFactor(ctx, alice)
		require.NoError(t, err)
		assert.Equal(t, protocol.MaxHealthFactor(), hf)
	})

	t.Run("an unknown account reads as zeros", func(t *testing.T) {
		debt, err := f.engine.DebtOf(ctx, bob)
		require.NoError(t, err)
		assert.True(t, debt.IsZero())

		summary, err := f.engine.AccountSummary(ctx, bob)
		require.NoError(t, err)
		assert.True(t, summary.DebtMinted.IsZero())
		assert.True(t, summary.CollateralValueUSD.IsZero())
	})
}

func TestSupportedAssets(t *testing.T) {
	f := newFixture(t)

	assets := f.engine.SupportedAssets()
	require.Len(t, assets, 2)
	assert.Equal(t, weth, assets[0].Asset)
	assert.Equal(t, wbtc, assets[1].Asset)

	feedID, err := f.engine.FeedFor(weth)
	require.NoError(t, err)
	assert.Equal(t, wethFeed, feedID)

	_, err = f.engine.FeedFor(id.AssetID("doge"))
	assert.Equal(t, dErrors.CodeNotFound, dErrors.CodeOf(err))
}

func TestErrorCodes(t *testing.T) {
	f := newFixture(t)
	err := f.engine.DepositCollateral(context.Background(), alice, weth, nil)
	var coded *dErrors.Error
	require.True(t, errors.As(err, &coded))
	assert.Equal(t, dErrors.CodeInvalidInput, coded.Code)
}
