package oracle

import (
	"errors"
	"fmt"
	"math/big"
	"sort"
	"sync"
	"time"
)

// ErrUnknownFeed is returned when a quote is requested for a feed that has
// never been posted.
var ErrUnknownFeed = errors.New("oracle: unknown feed")

// ErrStalePrice is returned when a feed's last post is older than the board's
// staleness bound.
var ErrStalePrice = errors.New("oracle: stale price")

type entry struct {
	price    *big.Int
	postedAt time.Time
}

// Board is an in-process price oracle. Posters publish priceScale-scaled
// answers per feed; readers get a copy. A zero MaxAge disables staleness
// checks.
type Board struct {
	mu       sync.RWMutex
	entries  map[string]entry
	maxAge   time.Duration
	clockNow func() time.Time
}

func NewBoard(maxAge time.Duration) *Board {
	return &Board{
		entries:  make(map[string]entry),
		maxAge:   maxAge,
		clockNow: time.Now,
	}
}

// Post publishes a price for the feed, replacing any previous answer.
func (b *Board) Post(feed string, price *big.Int) error {
	if feed == "" {
		return fmt.Errorf("oracle: empty feed name")
	}
	if price == nil || price.Sign() <= 0 {
		return fmt.Errorf("oracle: price for %q must be positive", feed)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries[feed] = entry{price: new(big.Int).Set(price), postedAt: b.clockNow()}
	return nil
}

// Price implements the engine's price source contract.
func (b *Board) Price(feed string) (*big.Int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	found, ok := b.entries[feed]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFeed, feed)
	}
	if b.maxAge > 0 && b.clockNow().Sub(found.postedAt) > b.maxAge {
		return nil, fmt.Errorf("%w: %s", ErrStalePrice, feed)
	}
	return new(big.Int).Set(found.price), nil
}

// Feeds returns the posted feed names in sorted order.
func (b *Board) Feeds() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]string, 0, len(b.entries))
	for feed := range b.entries {
		out = append(out, feed)
	}
	sort.Strings(out)
	return out
}

// Snapshot returns a copy of every posted price.
func (b *Board) Snapshot() map[string]*big.Int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(map[string]*big.Int, len(b.entries))
	for feed, found := range b.entries {
		out[feed] = new(big.Int).Set(found.price)
	}
	return out
}
