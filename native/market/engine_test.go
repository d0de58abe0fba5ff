package market

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"moneta/core/types"
)

type mockEngineState struct {
	market     *MarketState
	positions  map[common.Address]*Position
	points     map[common.Address]*LiquidatorPoints
	allowances map[string]bool
}

func newMockEngineState() *mockEngineState {
	return &mockEngineState{
		positions:  make(map[common.Address]*Position),
		points:     make(map[common.Address]*LiquidatorPoints),
		allowances: make(map[string]bool),
	}
}

func (s *mockEngineState) GetMarket() (*MarketState, error) {
	return s.market.Clone(), nil
}

func (s *mockEngineState) PutMarket(m *MarketState) error {
	s.market = m.Clone()
	return nil
}

func (s *mockEngineState) GetPosition(addr common.Address) (*Position, error) {
	return s.positions[addr].Clone(), nil
}

func (s *mockEngineState) PutPosition(pos *Position) error {
	s.positions[pos.Address] = pos.Clone()
	return nil
}

func (s *mockEngineState) GetLiquidatorPoints(addr common.Address) (*LiquidatorPoints, error) {
	return s.points[addr].Clone(), nil
}

func (s *mockEngineState) PutLiquidatorPoints(addr common.Address, points *LiquidatorPoints) error {
	s.points[addr] = points.Clone()
	return nil
}

func (s *mockEngineState) allowanceKey(owner, manager common.Address) string {
	return owner.Hex() + "/" + manager.Hex()
}

func (s *mockEngineState) GetAllowance(owner, manager common.Address) (bool, error) {
	return s.allowances[s.allowanceKey(owner, manager)], nil
}

func (s *mockEngineState) PutAllowance(owner, manager common.Address, allowed bool) error {
	s.allowances[s.allowanceKey(owner, manager)] = allowed
	return nil
}

type stubPriceSource struct {
	prices map[string]*big.Int
}

func newStubPriceSource() *stubPriceSource {
	return &stubPriceSource{prices: make(map[string]*big.Int)}
}

func (s *stubPriceSource) set(feed string, price int64) {
	s.prices[feed] = big.NewInt(price)
}

func (s *stubPriceSource) Price(feed string) (*big.Int, error) {
	price, ok := s.prices[feed]
	if !ok {
		return nil, fmt.Errorf("stub price source: unknown feed %q", feed)
	}
	return new(big.Int).Set(price), nil
}

type recordingEmitter struct {
	events []*types.Event
}

func (r *recordingEmitter) Emit(evt *types.Event) {
	r.events = append(r.events, evt)
}

func (r *recordingEmitter) byType(eventType string) []*types.Event {
	var out []*types.Event
	for _, evt := range r.events {
		if evt.Type == eventType {
			out = append(out, evt)
		}
	}
	return out
}

func makeAddress(last byte) common.Address {
	var addr common.Address
	addr[0] = 0xfe
	addr[len(addr)-1] = last
	return addr
}

var (
	testGovernor = makeAddress(0x01)
	testGuardian = makeAddress(0x02)
)

const (
	baseFeed = "base.usd"
	collFeed = "coll.usd"
)

func factorFrac(numerator int64, denominator int64) *big.Int {
	out := new(big.Int).Mul(factorScale, big.NewInt(numerator))
	return out.Quo(out, big.NewInt(denominator))
}

func testParams() Params {
	return Params{
		Governor:                testGovernor,
		PauseGuardian:           testGuardian,
		BaseDecimals:            6,
		BasePriceFeed:           baseFeed,
		StoreFrontPriceFactor:   factorFrac(1, 2),
		StorefrontCoefficient:   factorFrac(4, 5),
		BaseBorrowMin:           big.NewInt(1000),
		BaseMinForRewards:       big.NewInt(1_000_000),
		BaseTrackingSupplySpeed: big.NewInt(2_000_000_000),
		BaseTrackingBorrowSpeed: big.NewInt(1_000_000_000),
		RewardScale:             big.NewInt(1_000_000),
		RescaleFactor:           big.NewInt(1),
		RewardMultiplier:        new(big.Int).Set(factorScale),
	}
}

func testAssetConfig(asset common.Address) AssetConfig {
	return AssetConfig{
		Asset:                     asset,
		PriceFeed:                 collFeed,
		Decimals:                  6,
		BorrowCollateralFactor:    factorFrac(1, 5),
		LiquidateCollateralFactor: factorFrac(1, 2),
		LiquidationFactor:         factorFrac(19, 20),
		SupplyCap:                 big.NewInt(0),
	}
}

// zeroRateModel keeps indexes flat so balance arithmetic stays exact.
func zeroRateModel() *RateModel {
	return &RateModel{
		Supply: RateCurve{Base: big.NewInt(0), SlopeLow: big.NewInt(0), SlopeHigh: big.NewInt(0), Kink: big.NewInt(0)},
		Borrow: RateCurve{Base: big.NewInt(0), SlopeLow: big.NewInt(0), SlopeHigh: big.NewInt(0), Kink: big.NewInt(0)},
	}
}

type testHarness struct {
	engine  *Engine
	state   *mockEngineState
	prices  *stubPriceSource
	emitter *recordingEmitter
}

func newTestHarness(assets ...AssetConfig) *testHarness {
	h := &testHarness{
		state:   newMockEngineState(),
		prices:  newStubPriceSource(),
		emitter: &recordingEmitter{},
	}
	h.prices.set(baseFeed, 100_000_000)
	h.prices.set(collFeed, 100_000_000)
	h.engine = NewEngine(testParams())
	h.engine.SetState(h.state)
	h.engine.SetPriceSource(h.prices)
	h.engine.SetEmitter(h.emitter)
	h.engine.SetRateModel(zeroRateModel())
	if err := h.engine.InitMarket(assets); err != nil {
		panic(err)
	}
	return h
}

func (h *testHarness) market() *MarketState {
	return h.state.market
}

func (h *testHarness) position(addr common.Address) *Position {
	return h.state.positions[addr]
}
