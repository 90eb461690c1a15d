package risk

import (
	"context"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ingot/internal/engine/models"
	"ingot/internal/oracle"
	"ingot/internal/protocol"
	id "ingot/pkg/domain"
)

const (
	alice    = id.AccountID("0xab5801a7d398351b8be11c439e05c5b3259aec9b")
	weth     = id.AssetID("weth")
	wbtc     = id.AssetID("wbtc")
	wethFeed = id.FeedID("weth-usd")
	wbtcFeed = id.FeedID("wbtc-usd")
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func scaled(units uint64) *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(units), protocol.Scale())
}

func feedPrice(usd uint64) *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(usd), uint256.NewInt(100_000_000))
}

func newEvaluator(t *testing.T, feed *oracle.MemoryFeed) *Evaluator {
	t.Helper()
	resolver, err := oracle.NewResolver(
		map[id.AssetID]id.FeedID{weth: wethFeed, wbtc: wbtcFeed},
		feed,
		3*time.Hour,
		oracle.WithNow(func() time.Time { return testNow }),
	)
	require.NoError(t, err)

	evaluator, err := New([]models.SupportedAsset{
		{Asset: weth, Feed: wethFeed},
		{Asset: wbtc, Feed: wbtcFeed},
	}, resolver)
	require.NoError(t, err)
	return evaluator
}

func TestTotalCollateralValue(t *testing.T) {
	ctx := context.Background()
	feed := oracle.NewMemoryFeed()
	feed.SetRound(wethFeed, feedPrice(2000), 8, testNow)
	feed.SetRound(wbtcFeed, feedPrice(30_000), 8, testNow)
	evaluator := newEvaluator(t, feed)

	t.Run("nil account has zero value", func(t *testing.T) {
		value, err := evaluator.TotalCollateralValue(ctx, nil)
		require.NoError(t, err)
		assert.True(t, value.IsZero())
	})

	t.Run("sums over every supported asset", func(t *testing.T) {
		account := models.NewAccount(alice)
		account.AddCollateral(weth, scaled(10))
		account.AddCollateral(wbtc, scaled(1))

		value, err := evaluator.TotalCollateralValue(ctx, account)
		require.NoError(t, err)
		assert.Equal(t, scaled(50_000), value)
	})

	t.Run("stale feed fails the whole valuation", func(t *testing.T) {
		staleFeed := oracle.NewMemoryFeed()
		staleFeed.SetRound(wethFeed, feedPrice(2000), 8, testNow)
		staleFeed.SetRound(wbtcFeed, feedPrice(30_000), 8, testNow.Add(-4*time.Hour))
		staleEvaluator := newEvaluator(t, staleFeed)

		account := models.NewAccount(alice)
		account.AddCollateral(weth, scaled(10))
		account.AddCollateral(wbtc, scaled(1))

		_, err := staleEvaluator.TotalCollateralValue(ctx, account)
		require.ErrorIs(t, err, oracle.ErrStalePrice)
	})
}

func TestHealthFactor(t *testing.T) {
	ctx := context.Background()
	feed := oracle.NewMemoryFeed()
	feed.SetRound(wethFeed, feedPrice(2000), 8, testNow)
	evaluator := newEvaluator(t, feed)

	t.Run("zero debt reports the maximum representable value", func(t *testing.T) {
		account := models.NewAccount(alice)
		account.AddCollateral(weth, scaled(10))

		healthFactor, err := evaluator.HealthFactor(ctx, account)
		require.NoError(t, err)
		assert.Equal(t, protocol.MaxHealthFactor(), healthFactor)
	})

	t.Run("10 weth at $2000 against 100 debt is 100x safe", func(t *testing.T) {
		account := models.NewAccount(alice)
		account.AddCollateral(weth, scaled(10))
		account.AddDebt(scaled(100))

		healthFactor, err := evaluator.HealthFactor(ctx, account)
		require.NoError(t, err)
		// (20000 * 50/100) * Scale / 100 = 100 * Scale
		assert.Equal(t, new(uint256.Int).Mul(uint256.NewInt(100), protocol.Scale()), healthFactor)
		assert.True(t, IsSafe(healthFactor))
	})

	t.Run("exactly 2x collateralization sits at the boundary", func(t *testing.T) {
		account := models.NewAccount(alice)
		account.AddCollateral(weth, scaled(1))
		account.AddDebt(scaled(1000))

		healthFactor, err := evaluator.HealthFactor(ctx, account)
		require.NoError(t, err)
		assert.Equal(t, protocol.Scale(), healthFactor)
		assert.True(t, IsSafe(healthFactor))
	})

	t.Run("below the threshold is unsafe", func(t *testing.T) {
		account := models.NewAccount(alice)
		account.AddCollateral(weth, scaled(1))
		account.AddDebt(scaled(1001))

		healthFactor, err := evaluator.HealthFactor(ctx, account)
		require.NoError(t, err)
		assert.True(t, healthFactor.Lt(protocol.Scale()))
		assert.False(t, IsSafe(healthFactor))
	})
}

func TestHealthFactorForRoundsDown(t *testing.T) {
	// 3 units of value, threshold-adjusted to 1 (3*50/100 rounds down),
	// against 2 units of debt: 0.5 in fixed point.
	healthFactor, err := HealthFactorFor(uint256.NewInt(3), uint256.NewInt(2))
	require.NoError(t, err)

	expected := new(uint256.Int).Div(protocol.Scale(), uint256.NewInt(2))
	assert.Equal(t, expected, healthFactor)
}
