package oracle

import (
	"context"
	"fmt"
	"time"

	"github.com/holiman/uint256"

	"ingot/internal/protocol"
	id "ingot/pkg/domain"
)

// Resolver converts between asset quantities and USD values using the latest
// feed reading for each asset. It is pure read plus a fail-fast check: given
// the same reading it is deterministic, and it never caches or repairs bad
// data.
type Resolver struct {
	feeds  map[id.AssetID]id.FeedID
	source PriceFeed
	maxAge time.Duration
	now    func() time.Time
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithNow overrides the staleness clock; tests pin it.
func WithNow(now func() time.Time) ResolverOption {
	return func(r *Resolver) {
		r.now = now
	}
}

// NewResolver builds a Resolver over the given asset→feed bindings.
func NewResolver(feeds map[id.AssetID]id.FeedID, source PriceFeed, maxAge time.Duration, opts ...ResolverOption) (*Resolver, error) {
	if source == nil {
		return nil, fmt.Errorf("price feed source is required")
	}
	if maxAge <= 0 {
		return nil, fmt.Errorf("max price age must be positive")
	}

	r := &Resolver{
		feeds:  feeds,
		source: source,
		maxAge: maxAge,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// USDValue returns the USD value (18-decimal fixed point) of quantity units
// of asset at the latest valid price, rounding down.
func (r *Resolver) USDValue(ctx context.Context, asset id.AssetID, quantity *uint256.Int) (*uint256.Int, error) {
	price, err := r.normalizedPrice(ctx, asset)
	if err != nil {
		return nil, err
	}

	value, overflow := new(uint256.Int).MulDivOverflow(price, quantity, protocol.Scale())
	if overflow {
		return nil, fmt.Errorf("usd value overflows for asset %s", asset)
	}
	return value, nil
}

// AssetQuantityForUSD returns how many units of asset (18-decimal fixed
// point) are worth usdAmount at the latest valid price, rounding down.
func (r *Resolver) AssetQuantityForUSD(ctx context.Context, asset id.AssetID, usdAmount *uint256.Int) (*uint256.Int, error) {
	price, err := r.normalizedPrice(ctx, asset)
	if err != nil {
		return nil, err
	}

	quantity, overflow := new(uint256.Int).MulDivOverflow(usdAmount, protocol.Scale(), price)
	if overflow {
		return nil, fmt.Errorf("asset quantity overflows for asset %s", asset)
	}
	return quantity, nil
}

// FeedFor returns the feed bound to asset.
func (r *Resolver) FeedFor(asset id.AssetID) (id.FeedID, bool) {
	feed, ok := r.feeds[asset]
	return feed, ok
}

// normalizedPrice fetches the latest round for asset, enforces the staleness
// and validity policy, and scales the feed's native decimals up (or down) to
// the ledger's 18-decimal fixed point. The two precisions are never assumed
// equal: the scaling factor is computed from the feed's declared decimals.
func (r *Resolver) normalizedPrice(ctx context.Context, asset id.AssetID) (*uint256.Int, error) {
	feed, ok := r.feeds[asset]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAsset, asset)
	}

	round, err := r.source.LatestRound(ctx, feed)
	if err != nil {
		return nil, fmt.Errorf("feed %s: %w", feed, err)
	}
	if round.Price == nil || round.Price.IsZero() {
		return nil, fmt.Errorf("feed %s: %w", feed, ErrInvalidPrice)
	}
	if age := r.now().Sub(round.UpdatedAt); age > r.maxAge {
		return nil, fmt.Errorf("feed %s: %w: reading is %s old, max %s", feed, ErrStalePrice, age.Truncate(time.Second), r.maxAge)
	}

	price := new(uint256.Int).Set(round.Price)
	switch {
	case round.Decimals < protocol.ScaleDecimals:
		price.Mul(price, pow10(protocol.ScaleDecimals-round.Decimals))
	case round.Decimals > protocol.ScaleDecimals:
		price.Div(price, pow10(round.Decimals-protocol.ScaleDecimals))
		if price.IsZero() {
			return nil, fmt.Errorf("feed %s: %w: price underflows ledger precision", feed, ErrInvalidPrice)
		}
	}
	return price, nil
}

func pow10(n uint8) *uint256.Int {
	return new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(uint64(n)))
}
