package oracle

import (
	"errors"
	"math/big"
	"testing"
	"time"
)

func TestBoardPostAndPrice(t *testing.T) {
	board := NewBoard(0)
	if err := board.Post("weth.usd", big.NewInt(250_000_000_000)); err != nil {
		t.Fatalf("post: %v", err)
	}
	price, err := board.Price("weth.usd")
	if err != nil {
		t.Fatalf("price: %v", err)
	}
	if price.Cmp(big.NewInt(250_000_000_000)) != 0 {
		t.Fatalf("price = %s", price)
	}
	// The returned value is a copy.
	price.SetInt64(1)
	again, err := board.Price("weth.usd")
	if err != nil {
		t.Fatalf("price: %v", err)
	}
	if again.Cmp(big.NewInt(250_000_000_000)) != 0 {
		t.Fatalf("price mutated through alias: %s", again)
	}
}

func TestBoardRejectsBadPosts(t *testing.T) {
	board := NewBoard(0)
	if err := board.Post("", big.NewInt(1)); err == nil {
		t.Fatalf("expected empty feed rejection")
	}
	if err := board.Post("weth.usd", nil); err == nil {
		t.Fatalf("expected nil price rejection")
	}
	if err := board.Post("weth.usd", big.NewInt(0)); err == nil {
		t.Fatalf("expected zero price rejection")
	}
	if _, err := board.Price("weth.usd"); !errors.Is(err, ErrUnknownFeed) {
		t.Fatalf("expected unknown feed, got %v", err)
	}
}

func TestBoardStaleness(t *testing.T) {
	board := NewBoard(time.Minute)
	now := time.Unix(1_700_000_000, 0)
	board.clockNow = func() time.Time { return now }

	if err := board.Post("wbtc.usd", big.NewInt(6_000_000_000_000)); err != nil {
		t.Fatalf("post: %v", err)
	}
	if _, err := board.Price("wbtc.usd"); err != nil {
		t.Fatalf("fresh price: %v", err)
	}

	now = now.Add(2 * time.Minute)
	if _, err := board.Price("wbtc.usd"); !errors.Is(err, ErrStalePrice) {
		t.Fatalf("expected stale price, got %v", err)
	}

	// A fresh post clears the staleness.
	if err := board.Post("wbtc.usd", big.NewInt(6_100_000_000_000)); err != nil {
		t.Fatalf("repost: %v", err)
	}
	if _, err := board.Price("wbtc.usd"); err != nil {
		t.Fatalf("reposted price: %v", err)
	}
}

func TestBoardSnapshotAndFeeds(t *testing.T) {
	board := NewBoard(0)
	_ = board.Post("b.usd", big.NewInt(2))
	_ = board.Post("a.usd", big.NewInt(1))
	feeds := board.Feeds()
	if len(feeds) != 2 || feeds[0] != "a.usd" || feeds[1] != "b.usd" {
		t.Fatalf("feeds = %v", feeds)
	}
	snap := board.Snapshot()
	if snap["a.usd"].Cmp(big.NewInt(1)) != 0 || snap["b.usd"].Cmp(big.NewInt(2)) != 0 {
		t.Fatalf("snapshot = %v", snap)
	}
}
