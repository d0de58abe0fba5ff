package market

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

// seedBorrower writes a borrower position and matching aggregates directly,
// bypassing the collateralization checks a live borrow would enforce.
func seedBorrower(h *testHarness, addr common.Address, debt int64, collateral map[int]int64) {
	m := h.market()
	pos := &Position{
		Address:             addr,
		Principal:           big.NewInt(-debt),
		BaseTrackingAccrued: big.NewInt(0),
		Collateral:          make([]*big.Int, len(m.Assets)),
	}
	for i := range m.Assets {
		pos.Collateral[i] = big.NewInt(0)
	}
	for offset, amount := range collateral {
		pos.Collateral[offset] = big.NewInt(amount)
		pos.setAssetIn(offset, amount > 0)
		m.TotalSupplyAsset[offset] = new(big.Int).Add(m.TotalSupplyAsset[offset], big.NewInt(amount))
	}
	m.TotalBorrowBase = new(big.Int).Add(m.TotalBorrowBase, big.NewInt(debt))
	h.state.market = m
	h.state.positions[addr] = pos
}

func TestRiskPredicates(t *testing.T) {
	coll := makeAddress(0xaa)
	h := newTestHarness(testAssetConfig(coll))
	bob := makeAddress(0x11)

	// $10 collateral, $6 debt: liquidatable (liqCF 0.5 -> $5 < $6) but not
	// bad debt (LF 0.95 -> $9.50 >= $6).
	seedBorrower(h, bob, 6_000_000, map[int]int64{0: 10_000_000})

	if ok, err := h.engine.IsBorrowCollateralized(bob); err != nil || ok {
		t.Fatalf("expected undercollateralized, got %v %v", ok, err)
	}
	if ok, err := h.engine.IsLiquidatable(bob); err != nil || !ok {
		t.Fatalf("expected liquidatable, got %v %v", ok, err)
	}
	if ok, err := h.engine.IsBadDebt(bob); err != nil || ok {
		t.Fatalf("expected not bad debt, got %v %v", ok, err)
	}
	if ok, err := h.engine.IsPartiallyLiquidatable(bob); err != nil || !ok {
		t.Fatalf("expected partially liquidatable, got %v %v", ok, err)
	}

	// Healthy lender is never liquidatable.
	alice := makeAddress(0x10)
	if err := h.engine.Supply(alice, big.NewInt(1_000_000)); err != nil {
		t.Fatalf("supply: %v", err)
	}
	if ok, _ := h.engine.IsLiquidatable(alice); ok {
		t.Fatalf("lender flagged liquidatable")
	}
	if ok, _ := h.engine.IsBorrowCollateralized(alice); !ok {
		t.Fatalf("lender flagged uncollateralized")
	}
}

func TestRiskFactorMonotonicity(t *testing.T) {
	coll := makeAddress(0xaa)
	h := newTestHarness(testAssetConfig(coll))
	bob := makeAddress(0x11)
	seedBorrower(h, bob, 4_000_000, map[int]int64{0: 10_000_000})

	// At liqCF 0.5 the $4 debt is covered by $5; shrink the factor and the
	// account can only get riskier.
	if ok, _ := h.engine.IsLiquidatable(bob); ok {
		t.Fatalf("unexpectedly liquidatable at full factor")
	}
	m := h.market()
	m.Assets[0].LiquidateCollateralFactor = factorFrac(1, 4)
	h.state.market = m
	if ok, _ := h.engine.IsLiquidatable(bob); !ok {
		t.Fatalf("reducing liquidate factor did not flag the account")
	}

	m = h.market()
	m.Assets[0].LiquidationFactor = factorFrac(1, 10)
	h.state.market = m
	if ok, _ := h.engine.IsBadDebt(bob); !ok {
		t.Fatalf("reducing liquidation factor did not flag bad debt")
	}
}

func TestAbsorbBadDebtSeizesEverything(t *testing.T) {
	coll := makeAddress(0xaa)
	h := newTestHarness(testAssetConfig(coll))
	absorber := makeAddress(0x20)
	bob := makeAddress(0x11)

	// Collateral crashes to $0.50: $5 market value, $4.75 seizable against
	// a $6 debt.
	h.prices.set(collFeed, 50_000_000)
	seedBorrower(h, bob, 6_000_000, map[int]int64{0: 10_000_000})

	if err := h.engine.Absorb(absorber, []common.Address{bob}); err != nil {
		t.Fatalf("absorb: %v", err)
	}

	pos := h.position(bob)
	if pos.Collateral[0].Sign() != 0 || pos.HasAsset(0) {
		t.Fatalf("collateral not fully seized: %s", pos.Collateral[0])
	}
	// basePaid = $4.75 at a $1 base -> 4.75e6 units; debt shrinks to 1.25e6.
	if pos.Principal.Cmp(big.NewInt(-1_250_000)) != 0 {
		t.Fatalf("unexpected principal: %s", pos.Principal)
	}
	m := h.market()
	if m.TotalBorrowBase.Cmp(big.NewInt(1_250_000)) != 0 {
		t.Fatalf("unexpected borrow total: %s", m.TotalBorrowBase)
	}
	if m.TotalSupplyAsset[0].Sign() != 0 {
		t.Fatalf("asset total not reduced: %s", m.TotalSupplyAsset[0])
	}
	if m.ProtocolCollateral[0].Cmp(big.NewInt(10_000_000)) != 0 {
		t.Fatalf("seized collateral not custodied: %s", m.ProtocolCollateral[0])
	}

	points := h.state.points[absorber]
	if points.NumAbsorbs != 1 || points.NumAbsorbed != 1 {
		t.Fatalf("unexpected points: %+v", points)
	}
	if points.ApproxSpend.Cmp(big.NewInt(475_000_000)) != 0 {
		t.Fatalf("unexpected approx spend: %s", points.ApproxSpend)
	}
	if len(h.emitter.byType(TypeAbsorbDebt)) != 1 || len(h.emitter.byType(TypeAbsorbCollateral)) != 1 {
		t.Fatalf("missing absorb events")
	}
}

func TestAbsorbOvercoveredMintsSupply(t *testing.T) {
	coll := makeAddress(0xaa)
	h := newTestHarness(testAssetConfig(coll))
	absorber := makeAddress(0x20)
	bob := makeAddress(0x11)

	// $9.50 seizable against $6 debt: the account flips to a supplier.
	seedBorrower(h, bob, 6_000_000, map[int]int64{0: 10_000_000})

	if err := h.engine.Absorb(absorber, []common.Address{bob}); err != nil {
		t.Fatalf("absorb: %v", err)
	}
	pos := h.position(bob)
	if pos.Principal.Cmp(big.NewInt(3_500_000)) != 0 {
		t.Fatalf("unexpected principal: %s", pos.Principal)
	}
	m := h.market()
	if m.TotalBorrowBase.Sign() != 0 {
		t.Fatalf("borrow total not cleared: %s", m.TotalBorrowBase)
	}
	if m.TotalSupplyBase.Cmp(big.NewInt(3_500_000)) != 0 {
		t.Fatalf("unexpected supply total: %s", m.TotalSupplyBase)
	}
	// The surplus shows up as a mint-style transfer from the zero address.
	transfers := h.emitter.byType(TypeTransfer)
	if len(transfers) != 1 || transfers[0].Attr("from") != (common.Address{}).Hex() {
		t.Fatalf("missing mint transfer event")
	}
	if transfers[0].Attr("amount") != "3500000" {
		t.Fatalf("unexpected minted amount: %s", transfers[0].Attr("amount"))
	}
}

func TestAbsorbRequiresLiquidatable(t *testing.T) {
	coll := makeAddress(0xaa)
	h := newTestHarness(testAssetConfig(coll))
	absorber := makeAddress(0x20)
	bob := makeAddress(0x11)
	seedBorrower(h, bob, 2_000_000, map[int]int64{0: 10_000_000})

	if err := h.engine.Absorb(absorber, []common.Address{bob}); err != ErrNotLiquidatable {
		t.Fatalf("expected not liquidatable, got %v", err)
	}
}

func TestAbsorbPausedBlocked(t *testing.T) {
	coll := makeAddress(0xaa)
	h := newTestHarness(testAssetConfig(coll))
	absorber := makeAddress(0x20)
	bob := makeAddress(0x11)
	seedBorrower(h, bob, 6_000_000, map[int]int64{0: 10_000_000})

	if err := h.engine.PauseAbsorb(testGuardian, true); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if err := h.engine.Absorb(absorber, []common.Address{bob}); err != ErrPaused {
		t.Fatalf("expected paused, got %v", err)
	}
	if err := h.engine.AbsorbPartial(absorber, bob); err != ErrPaused {
		t.Fatalf("expected paused partial, got %v", err)
	}
}

func TestAbsorbSkipsZeroLiquidationFactorAsset(t *testing.T) {
	collA := makeAddress(0xaa)
	collB := makeAddress(0xbb)
	cfgB := testAssetConfig(collB)
	cfgB.PriceFeed = "collb.usd"
	cfgB.LiquidationFactor = big.NewInt(0)
	h := newTestHarness(testAssetConfig(collA), cfgB)
	h.prices.set("collb.usd", 100_000_000)
	absorber := makeAddress(0x20)
	bob := makeAddress(0x11)

	seedBorrower(h, bob, 8_000_000, map[int]int64{0: 10_000_000, 1: 3_000_000})

	if err := h.engine.Absorb(absorber, []common.Address{bob}); err != nil {
		t.Fatalf("absorb: %v", err)
	}
	pos := h.position(bob)
	if pos.Collateral[0].Sign() != 0 {
		t.Fatalf("seizable asset not seized")
	}
	if pos.Collateral[1].Cmp(big.NewInt(3_000_000)) != 0 || !pos.HasAsset(1) {
		t.Fatalf("zero-factor asset touched: %s", pos.Collateral[1])
	}
	if h.market().TotalSupplyAsset[1].Cmp(big.NewInt(3_000_000)) != 0 {
		t.Fatalf("zero-factor asset total changed")
	}
}

func TestAbsorbPartialRestoresHealth(t *testing.T) {
	coll := makeAddress(0xaa)
	h := newTestHarness(testAssetConfig(coll))
	absorber := makeAddress(0x20)
	bob := makeAddress(0x11)
	seedBorrower(h, bob, 6_000_000, map[int]int64{0: 10_000_000})

	if err := h.engine.AbsorbPartial(absorber, bob); err != nil {
		t.Fatalf("absorb partial: %v", err)
	}

	pos := h.position(bob)
	// Post-conditions: strictly smaller but non-zero debt, non-zero
	// collateral, no longer liquidatable.
	if pos.Principal.Sign() >= 0 {
		t.Fatalf("debt fully repaid: %s", pos.Principal)
	}
	if pos.Principal.Cmp(big.NewInt(-6_000_000)) <= 0 {
		t.Fatalf("debt did not shrink: %s", pos.Principal)
	}
	if pos.Collateral[0].Sign() <= 0 || !pos.HasAsset(0) {
		t.Fatalf("collateral exhausted: %s", pos.Collateral[0])
	}
	if ok, err := h.engine.IsLiquidatable(bob); err != nil || ok {
		t.Fatalf("post-state still liquidatable: %v %v", ok, err)
	}

	// Exact schedule for these parameters.
	if pos.Principal.Cmp(big.NewInt(-2_533_334)) != 0 {
		t.Fatalf("unexpected principal: %s", pos.Principal)
	}
	if pos.Collateral[0].Cmp(big.NewInt(6_350_877)) != 0 {
		t.Fatalf("unexpected remaining collateral: %s", pos.Collateral[0])
	}
	m := h.market()
	if m.TotalBorrowBase.Cmp(big.NewInt(2_533_334)) != 0 {
		t.Fatalf("unexpected borrow total: %s", m.TotalBorrowBase)
	}
	if m.ProtocolCollateral[0].Cmp(big.NewInt(3_649_123)) != 0 {
		t.Fatalf("unexpected custodied collateral: %s", m.ProtocolCollateral[0])
	}
	if m.TotalSupplyAsset[0].Cmp(big.NewInt(6_350_877)) != 0 {
		t.Fatalf("unexpected asset total: %s", m.TotalSupplyAsset[0])
	}
	// No base tokens moved.
	if m.BaseHeld.Sign() != 0 {
		t.Fatalf("base held changed: %s", m.BaseHeld)
	}

	points := h.state.points[absorber]
	if points.NumAbsorbs != 1 || points.NumAbsorbed != 1 {
		t.Fatalf("unexpected points: %+v", points)
	}
}

func TestAbsorbPartialRejectsBadDebtAndHealthy(t *testing.T) {
	coll := makeAddress(0xaa)
	h := newTestHarness(testAssetConfig(coll))
	absorber := makeAddress(0x20)

	healthy := makeAddress(0x11)
	seedBorrower(h, healthy, 2_000_000, map[int]int64{0: 10_000_000})
	if err := h.engine.AbsorbPartial(absorber, healthy); err != ErrNotLiquidatable {
		t.Fatalf("expected not liquidatable for healthy account, got %v", err)
	}

	bad := makeAddress(0x12)
	seedBorrower(h, bad, 20_000_000, map[int]int64{0: 10_000_000})
	if err := h.engine.AbsorbPartial(absorber, bad); err != ErrNotLiquidatable {
		t.Fatalf("expected not liquidatable for bad debt, got %v", err)
	}
}

func TestQuoteCollateral(t *testing.T) {
	coll := makeAddress(0xaa)
	h := newTestHarness(testAssetConfig(coll))

	// LF 0.95, storefront 0.5: discount 2.5%, price $0.975.
	quote, err := h.engine.QuoteCollateral(coll, big.NewInt(1_000_000))
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if quote.Cmp(big.NewInt(1_025_641)) != 0 {
		t.Fatalf("unexpected quote: %s", quote)
	}

	// Zero base in, zero collateral out.
	quote, err = h.engine.QuoteCollateral(coll, big.NewInt(0))
	if err != nil {
		t.Fatalf("zero quote: %v", err)
	}
	if quote.Sign() != 0 {
		t.Fatalf("expected zero quote, got %s", quote)
	}
}

func TestQuoteCollateralZeroFactorUndiscounted(t *testing.T) {
	coll := makeAddress(0xaa)
	cfg := testAssetConfig(coll)
	cfg.LiquidationFactor = big.NewInt(0)
	h := newTestHarness(cfg)

	quote, err := h.engine.QuoteCollateral(coll, big.NewInt(1_000_000))
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	// A zero liquidation factor disables the discount entirely: equal
	// prices quote one-for-one.
	if quote.Cmp(big.NewInt(1_000_000)) != 0 {
		t.Fatalf("unexpected undiscounted quote: %s", quote)
	}
}

func TestBuyCollateral(t *testing.T) {
	coll := makeAddress(0xaa)
	h := newTestHarness(testAssetConfig(coll))
	absorber := makeAddress(0x20)
	buyer := makeAddress(0x30)
	bob := makeAddress(0x11)

	h.prices.set(collFeed, 50_000_000)
	seedBorrower(h, bob, 6_000_000, map[int]int64{0: 10_000_000})
	if err := h.engine.Absorb(absorber, []common.Address{bob}); err != nil {
		t.Fatalf("absorb: %v", err)
	}

	quote, err := h.engine.BuyCollateral(buyer, buyer, coll, big.NewInt(1_000_000), nil)
	if err != nil {
		t.Fatalf("buy: %v", err)
	}
	if quote.Sign() <= 0 {
		t.Fatalf("unexpected quote: %s", quote)
	}
	m := h.market()
	if m.BaseHeld.Cmp(big.NewInt(1_000_000)) != 0 {
		t.Fatalf("base not collected: %s", m.BaseHeld)
	}
	want := new(big.Int).Sub(big.NewInt(10_000_000), quote)
	if m.ProtocolCollateral[0].Cmp(want) != 0 {
		t.Fatalf("custody not reduced: %s", m.ProtocolCollateral[0])
	}
	if len(h.emitter.byType(TypeBuyCollateral)) != 1 {
		t.Fatalf("missing buy event")
	}

	// Slippage floor.
	floor := new(big.Int).Add(quote, big.NewInt(1_000_000))
	if _, err := h.engine.BuyCollateral(buyer, buyer, coll, big.NewInt(1_000_000), floor); err != ErrQuoteBelowMinimum {
		t.Fatalf("expected quote below minimum, got %v", err)
	}

	// Paused storefront.
	if err := h.engine.PauseBuy(testGuardian, true); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if _, err := h.engine.BuyCollateral(buyer, buyer, coll, big.NewInt(1_000_000), nil); err != ErrPaused {
		t.Fatalf("expected paused, got %v", err)
	}
}

func TestAbsorbDebtExactlyCovered(t *testing.T) {
	coll := makeAddress(0xaa)
	cfg := testAssetConfig(coll)
	cfg.Decimals = 0
	cfg.LiquidationFactor = new(big.Int).Set(factorScale)
	h := newTestHarness(cfg)
	h.engine.params.BaseDecimals = 0
	absorber := makeAddress(0x20)
	bob := makeAddress(0x11)

	// Debt 100, collateral worth exactly 100 at full liquidation factor.
	seedBorrower(h, bob, 100, map[int]int64{0: 100})

	if err := h.engine.Absorb(absorber, []common.Address{bob}); err != nil {
		t.Fatalf("absorb: %v", err)
	}
	pos := h.position(bob)
	if pos.Principal.Sign() != 0 {
		t.Fatalf("expected exactly cleared principal, got %s", pos.Principal)
	}
	m := h.market()
	if m.TotalBorrowBase.Sign() != 0 {
		t.Fatalf("borrow total not cleared: %s", m.TotalBorrowBase)
	}
	if got := reserves(m); got.Sign() != 0 {
		t.Fatalf("expected zero reserves, got %s", got)
	}
	points := h.state.points[absorber]
	if points.NumAbsorbs != 1 {
		t.Fatalf("unexpected absorbs: %d", points.NumAbsorbs)
	}
}

func TestAbsorbBatchStaggeredDebts(t *testing.T) {
	comp := makeAddress(0xa1)
	weth := makeAddress(0xa2)
	wbtc := makeAddress(0xa3)
	cfgComp := testAssetConfig(comp)
	cfgComp.PriceFeed = "comp.usd"
	cfgWeth := testAssetConfig(weth)
	cfgWeth.PriceFeed = "weth.usd"
	cfgWbtc := testAssetConfig(wbtc)
	cfgWbtc.PriceFeed = "wbtc.usd"
	h := newTestHarness(cfgComp, cfgWeth, cfgWbtc)
	h.prices.set("comp.usd", 100_000_000)
	h.prices.set("weth.usd", 100_000_000)
	h.prices.set("wbtc.usd", 100_000_000)
	absorber := makeAddress(0x20)

	small := makeAddress(0x11)
	medium := makeAddress(0x12)
	large := makeAddress(0x13)
	seedBorrower(h, small, 1_000_000, map[int]int64{0: 500_000})
	seedBorrower(h, medium, 1_000_000_000_000, map[int]int64{1: 500_000_000_000})
	seedBorrower(h, large, 1_000_000_000_000_000_000, map[int]int64{2: 500_000_000_000_000_000})

	if err := h.engine.Absorb(absorber, []common.Address{small, medium, large}); err != nil {
		t.Fatalf("absorb batch: %v", err)
	}

	for i, addr := range []common.Address{small, medium, large} {
		pos := h.position(addr)
		if pos.AssetsIn != 0 {
			t.Fatalf("account %d assetsIn not cleared: %b", i, pos.AssetsIn)
		}
		if h.market().TotalSupplyAsset[i].Sign() != 0 {
			t.Fatalf("asset %d total not reduced", i)
		}
	}
	points := h.state.points[absorber]
	if points.NumAbsorbs != 1 || points.NumAbsorbed != 3 {
		t.Fatalf("unexpected points: %+v", points)
	}
}

func TestAbsorbDuplicateAccountSeizesOnce(t *testing.T) {
	coll := makeAddress(0xaa)
	h := newTestHarness(testAssetConfig(coll))
	absorber := makeAddress(0x20)
	bob := makeAddress(0x11)
	carol := makeAddress(0x12)

	// Crash the price so bob carries bad debt, with a second borrower whose
	// collateral keeps the asset total nonzero.
	h.prices.set(collFeed, 50_000_000)
	seedBorrower(h, bob, 6_000_000, map[int]int64{0: 1_000_000})
	seedBorrower(h, carol, 100_000, map[int]int64{0: 1_000_000})

	if err := h.engine.Absorb(absorber, []common.Address{bob, bob}); err != nil {
		t.Fatalf("absorb: %v", err)
	}

	m := h.market()
	// Listing bob twice must not seize his collateral twice: custody holds
	// exactly what he supplied and the remainder still belongs to carol.
	if m.ProtocolCollateral[0].Cmp(big.NewInt(1_000_000)) != 0 {
		t.Fatalf("unexpected custody: %s", m.ProtocolCollateral[0])
	}
	if m.TotalSupplyAsset[0].Cmp(big.NewInt(1_000_000)) != 0 {
		t.Fatalf("unexpected asset total: %s", m.TotalSupplyAsset[0])
	}
	if h.position(carol).Collateral[0].Cmp(big.NewInt(1_000_000)) != 0 {
		t.Fatalf("bystander collateral touched: %s", h.position(carol).Collateral[0])
	}
	points := h.state.points[absorber]
	if points.NumAbsorbs != 1 {
		t.Fatalf("unexpected absorbs: %d", points.NumAbsorbs)
	}
}

func TestAbsorbDuplicateAccountRecheckedAgainstLiveState(t *testing.T) {
	coll := makeAddress(0xaa)
	h := newTestHarness(testAssetConfig(coll))
	absorber := makeAddress(0x20)
	bob := makeAddress(0x11)

	// $9.50 seizable against $6 debt: one absorption flips bob healthy, so
	// the repeated entry fails the batch instead of seizing stale state.
	seedBorrower(h, bob, 6_000_000, map[int]int64{0: 10_000_000})

	if err := h.engine.Absorb(absorber, []common.Address{bob, bob}); err != ErrNotLiquidatable {
		t.Fatalf("expected not liquidatable, got %v", err)
	}

	pos := h.position(bob)
	if pos.Principal.Cmp(big.NewInt(-6_000_000)) != 0 {
		t.Fatalf("principal changed by failed batch: %s", pos.Principal)
	}
	if pos.Collateral[0].Cmp(big.NewInt(10_000_000)) != 0 {
		t.Fatalf("collateral changed by failed batch: %s", pos.Collateral[0])
	}
	m := h.market()
	if m.ProtocolCollateral[0].Sign() != 0 || m.TotalSupplyAsset[0].Cmp(big.NewInt(10_000_000)) != 0 {
		t.Fatalf("aggregates changed by failed batch")
	}
}

func TestAbsorbBatchFailureLeavesStateUntouched(t *testing.T) {
	coll := makeAddress(0xaa)
	h := newTestHarness(testAssetConfig(coll))
	absorber := makeAddress(0x20)
	bob := makeAddress(0x11)
	carol := makeAddress(0x12)

	seedBorrower(h, bob, 6_000_000, map[int]int64{0: 10_000_000})
	seedBorrower(h, carol, 1_000_000, map[int]int64{0: 10_000_000})

	// bob is liquidatable, carol is healthy: the batch fails on carol and
	// nothing from bob may be persisted.
	if err := h.engine.Absorb(absorber, []common.Address{bob, carol}); err != ErrNotLiquidatable {
		t.Fatalf("expected not liquidatable, got %v", err)
	}

	pos := h.position(bob)
	if pos.Principal.Cmp(big.NewInt(-6_000_000)) != 0 {
		t.Fatalf("position persisted mid-batch: %s", pos.Principal)
	}
	if pos.Collateral[0].Cmp(big.NewInt(10_000_000)) != 0 {
		t.Fatalf("collateral persisted mid-batch: %s", pos.Collateral[0])
	}
	m := h.market()
	if m.ProtocolCollateral[0].Sign() != 0 {
		t.Fatalf("custody persisted mid-batch: %s", m.ProtocolCollateral[0])
	}
	if m.TotalBorrowBase.Cmp(big.NewInt(7_000_000)) != 0 {
		t.Fatalf("borrow total persisted mid-batch: %s", m.TotalBorrowBase)
	}
	if _, ok := h.state.points[absorber]; ok {
		t.Fatalf("points persisted mid-batch")
	}
	if len(h.emitter.byType(TypeAbsorbDebt)) != 0 || len(h.emitter.byType(TypeAbsorbCollateral)) != 0 {
		t.Fatalf("events emitted for failed batch")
	}
}

func TestAbsorbRejectsEmptyBatch(t *testing.T) {
	coll := makeAddress(0xaa)
	h := newTestHarness(testAssetConfig(coll))
	absorber := makeAddress(0x20)

	if err := h.engine.Absorb(absorber, nil); err != ErrInvalidAmount {
		t.Fatalf("expected invalid amount, got %v", err)
	}
	if _, ok := h.state.points[absorber]; ok {
		t.Fatalf("points recorded for empty batch")
	}
}
