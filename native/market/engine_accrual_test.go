package market

import (
	"math/big"
	"testing"
)

func TestAccrueAdvancesIndexes(t *testing.T) {
	h := newTestHarness()
	h.engine.SetRateModel(&RateModel{
		Supply: RateCurve{Base: big.NewInt(500_000_000_000), Kink: big.NewInt(0)},
		Borrow: RateCurve{Base: big.NewInt(1_000_000_000_000), Kink: big.NewInt(0)},
	})
	m := h.market()
	m.TotalSupplyBase = big.NewInt(1_000_000_000)
	m.TotalBorrowBase = big.NewInt(500_000_000)
	h.state.market = m

	h.engine.SetTimestamp(100)
	if err := h.engine.Accrue(); err != nil {
		t.Fatalf("accrue: %v", err)
	}

	m = h.market()
	// index += index * rate * dt / factorScale
	wantSupply := big.NewInt(1_000_050_000_000_000)
	wantBorrow := big.NewInt(1_000_100_000_000_000)
	if m.BaseSupplyIndex.Cmp(wantSupply) != 0 {
		t.Fatalf("unexpected supply index: %s", m.BaseSupplyIndex)
	}
	if m.BaseBorrowIndex.Cmp(wantBorrow) != 0 {
		t.Fatalf("unexpected borrow index: %s", m.BaseBorrowIndex)
	}
	if m.LastAccrualTime != 100 {
		t.Fatalf("unexpected accrual time: %d", m.LastAccrualTime)
	}
}

func TestAccrueIdempotentWithinSameSecond(t *testing.T) {
	h := newTestHarness()
	h.engine.SetRateModel(&RateModel{
		Borrow: RateCurve{Base: big.NewInt(1_000_000_000_000), Kink: big.NewInt(0)},
	})
	m := h.market()
	m.TotalSupplyBase = big.NewInt(1_000_000)
	m.TotalBorrowBase = big.NewInt(500_000)
	h.state.market = m

	h.engine.SetTimestamp(50)
	if err := h.engine.Accrue(); err != nil {
		t.Fatalf("accrue: %v", err)
	}
	snapshot := h.market().BaseBorrowIndex.String()
	if err := h.engine.Accrue(); err != nil {
		t.Fatalf("second accrue: %v", err)
	}
	if got := h.market().BaseBorrowIndex.String(); got != snapshot {
		t.Fatalf("index moved without time passing: %s != %s", got, snapshot)
	}
}

func TestAccrueTrackingGatedByMinimum(t *testing.T) {
	h := newTestHarness()
	m := h.market()
	// Below BaseMinForRewards: no tracking accrual.
	m.TotalSupplyBase = big.NewInt(500_000)
	h.state.market = m

	h.engine.SetTimestamp(100)
	if err := h.engine.Accrue(); err != nil {
		t.Fatalf("accrue: %v", err)
	}
	if h.market().TrackingSupplyIndex.Sign() != 0 {
		t.Fatalf("tracking accrued below the minimum: %s", h.market().TrackingSupplyIndex)
	}

	m = h.market()
	m.TotalSupplyBase = big.NewInt(1_000_000_000)
	h.state.market = m

	h.engine.SetTimestamp(200)
	if err := h.engine.Accrue(); err != nil {
		t.Fatalf("accrue: %v", err)
	}
	// delta = speed * dt * baseScale / totalSupply
	want := big.NewInt(200_000_000)
	if h.market().TrackingSupplyIndex.Cmp(want) != 0 {
		t.Fatalf("unexpected tracking index: %s", h.market().TrackingSupplyIndex)
	}
}

func TestAccrueEmptyMarketZeroRewardMinimum(t *testing.T) {
	h := newTestHarness()
	h.engine.params.BaseMinForRewards = big.NewInt(0)

	// A zero reward minimum on an empty market must not divide the supply
	// tracking delta by a zero supply.
	h.engine.SetTimestamp(100)
	if err := h.engine.Accrue(); err != nil {
		t.Fatalf("accrue: %v", err)
	}
	m := h.market()
	if m.TrackingSupplyIndex.Sign() != 0 || m.TrackingBorrowIndex.Sign() != 0 {
		t.Fatalf("tracking accrued on empty market: %s %s", m.TrackingSupplyIndex, m.TrackingBorrowIndex)
	}
	if m.LastAccrualTime != 100 {
		t.Fatalf("unexpected accrual time: %d", m.LastAccrualTime)
	}
}

func TestUtilization(t *testing.T) {
	m := &MarketState{
		TotalSupplyBase: big.NewInt(1000),
		TotalBorrowBase: big.NewInt(250),
		BaseSupplyIndex: new(big.Int).Set(indexScale),
		BaseBorrowIndex: new(big.Int).Set(indexScale),
	}
	if got := m.Utilization(); got.Cmp(factorFrac(1, 4)) != 0 {
		t.Fatalf("unexpected utilization: %s", got)
	}

	m.TotalSupplyBase = big.NewInt(0)
	if got := m.Utilization(); got.Sign() != 0 {
		t.Fatalf("empty market should have zero utilization, got %s", got)
	}
}

func TestRateCurveKink(t *testing.T) {
	curve := RateCurve{
		Base:      big.NewInt(0),
		SlopeLow:  big.NewInt(10),
		SlopeHigh: big.NewInt(100),
		Kink:      factorFrac(4, 5),
	}
	if got := curve.RateAt(factorFrac(2, 5)); got.Cmp(big.NewInt(4)) != 0 {
		t.Fatalf("below kink: %s", got)
	}
	// At the kink the low slope saturates; the high slope prices the excess.
	if got := curve.RateAt(factorFrac(9, 10)); got.Cmp(big.NewInt(18)) != 0 {
		t.Fatalf("above kink: %s", got)
	}
}

func TestPresentValueRounding(t *testing.T) {
	m := &MarketState{
		BaseSupplyIndex: big.NewInt(1_500_000_000_000_000),
		BaseBorrowIndex: big.NewInt(1_500_000_000_000_000),
	}

	// Supply side truncates down: the market never owes more than accrued.
	if got := presentValue(m, big.NewInt(3)); got.Cmp(big.NewInt(4)) != 0 {
		t.Fatalf("supply present: %s", got)
	}
	if got := principalValue(m, big.NewInt(4)); got.Cmp(big.NewInt(2)) != 0 {
		t.Fatalf("supply principal: %s", got)
	}

	// Borrow side truncates toward zero: debt is never overstated.
	if got := presentValue(m, big.NewInt(-3)); got.Cmp(big.NewInt(-4)) != 0 {
		t.Fatalf("borrow present: %s", got)
	}
	if got := principalValue(m, big.NewInt(-4)); got.Cmp(big.NewInt(-2)) != 0 {
		t.Fatalf("borrow principal: %s", got)
	}

	// Round-tripping never grows a supply balance.
	for _, v := range []int64{1, 7, 999, 123456789} {
		principal := principalValue(m, big.NewInt(v))
		back := presentValue(m, principal)
		if back.Cmp(big.NewInt(v)) > 0 {
			t.Fatalf("round trip overstated %d: %s", v, back)
		}
	}
}

func TestPrincipalSplitHelpers(t *testing.T) {
	repay, supply := repayAndSupplyAmount(big.NewInt(-40), big.NewInt(30))
	if repay.Cmp(big.NewInt(40)) != 0 || supply.Cmp(big.NewInt(30)) != 0 {
		t.Fatalf("repay/supply split: %s/%s", repay, supply)
	}
	withdraw, borrow := withdrawAndBorrowAmount(big.NewInt(30), big.NewInt(-40))
	if withdraw.Cmp(big.NewInt(30)) != 0 || borrow.Cmp(big.NewInt(40)) != 0 {
		t.Fatalf("withdraw/borrow split: %s/%s", withdraw, borrow)
	}
}

func TestApplyAggregatesRejectsNegativeTotals(t *testing.T) {
	m := &MarketState{
		TotalSupplyBase: big.NewInt(10),
		TotalBorrowBase: big.NewInt(0),
	}
	if err := applyAggregates(m, big.NewInt(20), big.NewInt(0)); err != ErrInsufficientLiquidity {
		t.Fatalf("expected insufficient liquidity, got %v", err)
	}
}
