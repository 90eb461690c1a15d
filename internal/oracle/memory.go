package oracle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/holiman/uint256"

	id "ingot/pkg/domain"
)

// MemoryFeed is an in-process PriceFeed with settable rounds. It backs
// development deployments and tests; production wires a real oracle client
// behind the same interface.
type MemoryFeed struct {
	mu     sync.RWMutex
	rounds map[id.FeedID]Round
}

// NewMemoryFeed returns an empty feed.
func NewMemoryFeed() *MemoryFeed {
	return &MemoryFeed{
		rounds: make(map[id.FeedID]Round),
	}
}

// SetRound records the latest reading for feed.
func (f *MemoryFeed) SetRound(feed id.FeedID, price *uint256.Int, decimals uint8, updatedAt time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.rounds[feed] = Round{
		Price:     new(uint256.Int).Set(price),
		Decimals:  decimals,
		UpdatedAt: updatedAt,
	}
}

// LatestRound returns the recorded reading for feed.
func (f *MemoryFeed) LatestRound(_ context.Context, feed id.FeedID) (Round, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	round, ok := f.rounds[feed]
	if !ok {
		return Round{}, fmt.Errorf("%w: no round for feed %s", ErrFeedUnavailable, feed)
	}
	return Round{
		Price:     new(uint256.Int).Set(round.Price),
		Decimals:  round.Decimals,
		UpdatedAt: round.UpdatedAt,
	}, nil
}
