// Package oracle values collateral. A PriceFeed reports the latest price
// reading for a feed; the Resolver converts between asset quantities and USD
// values, rejecting stale or invalid readings instead of silently using
// them. All conversions round down so valuation never flatters a position.
package oracle

import (
	"context"
	"errors"
	"time"

	"github.com/holiman/uint256"

	id "ingot/pkg/domain"
)

// Feed read failures. Callers branch on these with errors.Is.
var (
	// ErrStalePrice is returned when the latest reading is older than the
	// configured maximum age.
	ErrStalePrice = errors.New("stale price")

	// ErrInvalidPrice is returned for non-positive readings.
	ErrInvalidPrice = errors.New("invalid price")

	// ErrFeedUnavailable is returned when the feed has no reading at all.
	ErrFeedUnavailable = errors.New("price feed unavailable")

	// ErrUnknownAsset is returned when no feed is registered for an asset.
	ErrUnknownAsset = errors.New("no price feed for asset")
)

// Round is one price reading: the price in the feed's native decimals and
// the time it was reported.
type Round struct {
	Price     *uint256.Int
	Decimals  uint8
	UpdatedAt time.Time
}

// PriceFeed reports the latest round for a feed. Implementations must return
// ErrFeedUnavailable (possibly wrapped) when no reading exists; staleness
// and validity policy belong to the Resolver, not the feed.
type PriceFeed interface {
	LatestRound(ctx context.Context, feed id.FeedID) (Round, error)
}
