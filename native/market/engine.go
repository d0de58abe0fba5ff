package market

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"moneta/core/events"
	"moneta/core/types"
	nativecommon "moneta/native/common"
)

const moduleName = "market"

// Engine orchestrates the state transitions of a single-asset money market:
// base supply and borrow against collateral, interest accrual, solvency
// checks, liquidation and reward tracking. It executes transaction-serially;
// the host guarantees a single writer and the engine only guards against
// re-entrant calls from transfer callbacks.
type Engine struct {
	state   State
	params  Params
	model   *RateModel
	prices  PriceSource
	emitter events.Emitter
	pauses  nativecommon.PauseView
	now     uint64
	locked  bool
}

// NewEngine constructs a market engine with the given governance parameters.
func NewEngine(params Params) *Engine {
	return &Engine{
		params:  params,
		model:   DefaultRateModel.Clone(),
		emitter: events.NoopEmitter{},
	}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state State) { e.state = state }

// SetRateModel configures the interest rate curves used during accrual.
func (e *Engine) SetRateModel(model *RateModel) {
	if e == nil {
		return
	}
	if model != nil {
		e.model = model.Clone()
	} else {
		e.model = DefaultRateModel.Clone()
	}
}

// SetPriceSource injects the oracle the risk evaluator reads from.
func (e *Engine) SetPriceSource(prices PriceSource) {
	if e == nil {
		return
	}
	e.prices = prices
}

// SetEmitter configures the event emitter used by the engine.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if e == nil {
		return
	}
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetPauses wires the host-level module pause view.
func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// SetTimestamp records the execution timestamp used for accrual deltas. The
// host supplies it per call and it must be monotonic.
func (e *Engine) SetTimestamp(now uint64) {
	if e == nil {
		return
	}
	e.now = now
}

// Params returns the engine's governance parameters.
func (e *Engine) Params() Params {
	if e == nil {
		return Params{}
	}
	return e.params
}

func (e *Engine) emit(evt *types.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(evt)
}

// enter acquires the re-entrancy guard spanning a balance-mutating
// operation. Release must happen on every exit path.
func (e *Engine) enter() error {
	if e.locked {
		return ErrReentrantCall
	}
	e.locked = true
	return nil
}

func (e *Engine) exit() { e.locked = false }

// InitMarket writes a fresh market record with unit indexes. It is the only
// way a market comes into existence.
func (e *Engine) InitMarket(assets []AssetConfig) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if len(assets) > MaxAssets {
		return ErrMaxAssets
	}
	m := &MarketState{
		TotalSupplyBase:     big.NewInt(0),
		TotalBorrowBase:     big.NewInt(0),
		BaseSupplyIndex:     new(big.Int).Set(indexScale),
		BaseBorrowIndex:     new(big.Int).Set(indexScale),
		TrackingSupplyIndex: big.NewInt(0),
		TrackingBorrowIndex: big.NewInt(0),
		LastAccrualTime:     e.now,
		BaseHeld:            big.NewInt(0),
	}
	for _, asset := range assets {
		if err := validateAssetConfig(asset); err != nil {
			return err
		}
		m.Assets = append(m.Assets, asset.clone())
		m.TotalSupplyAsset = append(m.TotalSupplyAsset, big.NewInt(0))
	}
	normalizeMarket(m)
	return e.state.PutMarket(m)
}

func (e *Engine) ensureMarket() (*MarketState, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	m, err := e.state.GetMarket()
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, ErrNilMarket
	}
	normalizeMarket(m)
	return m, nil
}

func normalizeMarket(m *MarketState) {
	if m.TotalSupplyBase == nil {
		m.TotalSupplyBase = big.NewInt(0)
	}
	if m.TotalBorrowBase == nil {
		m.TotalBorrowBase = big.NewInt(0)
	}
	if m.BaseSupplyIndex == nil || m.BaseSupplyIndex.Sign() == 0 {
		m.BaseSupplyIndex = new(big.Int).Set(indexScale)
	}
	if m.BaseBorrowIndex == nil || m.BaseBorrowIndex.Sign() == 0 {
		m.BaseBorrowIndex = new(big.Int).Set(indexScale)
	}
	if m.TrackingSupplyIndex == nil {
		m.TrackingSupplyIndex = big.NewInt(0)
	}
	if m.TrackingBorrowIndex == nil {
		m.TrackingBorrowIndex = big.NewInt(0)
	}
	if m.BaseHeld == nil {
		m.BaseHeld = big.NewInt(0)
	}
	for len(m.TotalSupplyAsset) < len(m.Assets) {
		m.TotalSupplyAsset = append(m.TotalSupplyAsset, big.NewInt(0))
	}
	for i, total := range m.TotalSupplyAsset {
		if total == nil {
			m.TotalSupplyAsset[i] = big.NewInt(0)
		}
	}
	for len(m.ProtocolCollateral) < len(m.Assets) {
		m.ProtocolCollateral = append(m.ProtocolCollateral, big.NewInt(0))
	}
	for i, held := range m.ProtocolCollateral {
		if held == nil {
			m.ProtocolCollateral[i] = big.NewInt(0)
		}
	}
	growFlags(&m.Pauses.CollateralAssetSupply, len(m.Assets))
	growFlags(&m.Pauses.CollateralAssetWithdraw, len(m.Assets))
	growFlags(&m.Pauses.CollateralAssetTransfer, len(m.Assets))
}

func growFlags(flags *[]bool, n int) {
	for len(*flags) < n {
		*flags = append(*flags, false)
	}
}

func (e *Engine) ensurePosition(m *MarketState, addr common.Address) (*Position, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	pos, err := e.state.GetPosition(addr)
	if err != nil {
		return nil, err
	}
	if pos == nil {
		pos = &Position{Address: addr}
	}
	if pos.Principal == nil {
		pos.Principal = big.NewInt(0)
	}
	if pos.BaseTrackingAccrued == nil {
		pos.BaseTrackingAccrued = big.NewInt(0)
	}
	for len(pos.Collateral) < len(m.Assets) {
		pos.Collateral = append(pos.Collateral, big.NewInt(0))
	}
	for i, balance := range pos.Collateral {
		if balance == nil {
			pos.Collateral[i] = big.NewInt(0)
		}
	}
	return pos, nil
}

func (e *Engine) ensurePoints(addr common.Address) (*LiquidatorPoints, error) {
	points, err := e.state.GetLiquidatorPoints(addr)
	if err != nil {
		return nil, err
	}
	if points == nil {
		points = &LiquidatorPoints{}
	}
	if points.ApproxSpend == nil {
		points.ApproxSpend = big.NewInt(0)
	}
	return points, nil
}

// Accrue advances the market's interest and tracking indexes to the engine
// timestamp. It is idempotent within a single time unit and never decreases
// an index.
func (e *Engine) Accrue() error {
	m, err := e.ensureMarket()
	if err != nil {
		return err
	}
	e.accrueInternal(m)
	return e.state.PutMarket(m)
}

func (e *Engine) accrueInternal(m *MarketState) {
	if m == nil || e.now <= m.LastAccrualTime {
		return
	}
	dt := new(big.Int).SetUint64(e.now - m.LastAccrualTime)

	utilization := m.Utilization()
	supplyRate := e.model.Supply.RateAt(utilization)
	borrowRate := e.model.Borrow.RateAt(utilization)

	// index *= (1 + rate*dt), truncated toward zero.
	m.BaseSupplyIndex.Add(m.BaseSupplyIndex, mulFactor(m.BaseSupplyIndex, new(big.Int).Mul(supplyRate, dt)))
	m.BaseBorrowIndex.Add(m.BaseBorrowIndex, mulFactor(m.BaseBorrowIndex, new(big.Int).Mul(borrowRate, dt)))

	minRewards := e.params.BaseMinForRewards
	if speed := e.params.BaseTrackingSupplySpeed; speed != nil && speed.Sign() > 0 &&
		minRewards != nil && m.TotalSupplyBase.Sign() > 0 && m.TotalSupplyBase.Cmp(minRewards) >= 0 {
		delta := new(big.Int).Mul(speed, dt)
		delta.Mul(delta, e.params.BaseScale())
		delta.Quo(delta, m.TotalSupplyBase)
		m.TrackingSupplyIndex.Add(m.TrackingSupplyIndex, delta)
	}
	if speed := e.params.BaseTrackingBorrowSpeed; speed != nil && speed.Sign() > 0 &&
		minRewards != nil && m.TotalBorrowBase.Sign() > 0 && m.TotalBorrowBase.Cmp(minRewards) >= 0 {
		delta := new(big.Int).Mul(speed, dt)
		delta.Mul(delta, e.params.BaseScale())
		delta.Quo(delta, m.TotalBorrowBase)
		m.TrackingBorrowIndex.Add(m.TrackingBorrowIndex, delta)
	}

	m.LastAccrualTime = e.now
}

// presentValue converts stored principal into a live balance. Positive
// principal scales by the supply index, negative by the borrow index.
func presentValue(m *MarketState, principal *big.Int) *big.Int {
	if principal == nil || principal.Sign() == 0 {
		return big.NewInt(0)
	}
	index := m.BaseSupplyIndex
	if principal.Sign() < 0 {
		index = m.BaseBorrowIndex
	}
	out := new(big.Int).Mul(principal, index)
	return out.Quo(out, indexScale)
}

// principalValue inverts presentValue. The borrow side truncates toward zero
// and the supply side rounds down; the asymmetry guarantees the market never
// pays out more than it owes.
func principalValue(m *MarketState, present *big.Int) *big.Int {
	if present == nil || present.Sign() == 0 {
		return big.NewInt(0)
	}
	index := m.BaseSupplyIndex
	if present.Sign() < 0 {
		index = m.BaseBorrowIndex
	}
	out := new(big.Int).Mul(present, indexScale)
	return out.Quo(out, index)
}

// repayAndSupplyAmount splits an upward principal move into the borrow
// principal repaid and the supply principal created.
func repayAndSupplyAmount(oldPrincipal, newPrincipal *big.Int) (*big.Int, *big.Int) {
	repay := signedMinZero(newPrincipal)
	repay.Sub(repay, signedMinZero(oldPrincipal))
	supply := signedMaxZero(newPrincipal)
	supply.Sub(supply, signedMaxZero(oldPrincipal))
	return repay, supply
}

// withdrawAndBorrowAmount splits a downward principal move into the supply
// principal withdrawn and the borrow principal created.
func withdrawAndBorrowAmount(oldPrincipal, newPrincipal *big.Int) (*big.Int, *big.Int) {
	withdraw := signedMaxZero(oldPrincipal)
	withdraw.Sub(withdraw, signedMaxZero(newPrincipal))
	borrow := signedMinZero(oldPrincipal)
	borrow.Sub(borrow, signedMinZero(newPrincipal))
	return withdraw, borrow
}

// updateBasePrincipal re-tags the position's principal, settling reward
// tracking against the old sign first and re-snapshotting against the new.
func (e *Engine) updateBasePrincipal(m *MarketState, pos *Position, newPrincipal *big.Int) {
	e.accrueAccountTracking(m, pos)
	pos.Principal = new(big.Int).Set(newPrincipal)
	if pos.Principal.Sign() >= 0 {
		pos.BaseTrackingIndex = new(big.Int).Set(m.TrackingSupplyIndex)
	} else {
		pos.BaseTrackingIndex = new(big.Int).Set(m.TrackingBorrowIndex)
	}
}

func (e *Engine) accrueAccountTracking(m *MarketState, pos *Position) {
	index := m.TrackingSupplyIndex
	magnitude := pos.Principal
	if pos.Principal.Sign() < 0 {
		index = m.TrackingBorrowIndex
		magnitude = new(big.Int).Neg(pos.Principal)
	}
	if pos.BaseTrackingIndex == nil {
		pos.BaseTrackingIndex = new(big.Int).Set(index)
		return
	}
	if index.Cmp(pos.BaseTrackingIndex) <= 0 || magnitude.Sign() == 0 {
		pos.BaseTrackingIndex = new(big.Int).Set(index)
		return
	}
	delta := new(big.Int).Sub(index, pos.BaseTrackingIndex)
	earned := delta.Mul(delta, magnitude)
	earned.Quo(earned, trackingIndexScale)
	pos.BaseTrackingAccrued.Add(pos.BaseTrackingAccrued, earned)
	pos.BaseTrackingIndex = new(big.Int).Set(index)
}

// applyAggregates applies a signed principal move to the mutually exclusive
// supply/borrow totals, rejecting any move that would turn either negative.
func applyAggregates(m *MarketState, oldPrincipal, newPrincipal *big.Int) error {
	if newPrincipal.Cmp(oldPrincipal) >= 0 {
		repay, supply := repayAndSupplyAmount(oldPrincipal, newPrincipal)
		if m.TotalBorrowBase.Cmp(repay) < 0 {
			return ErrInsufficientLiquidity
		}
		m.TotalBorrowBase.Sub(m.TotalBorrowBase, repay)
		m.TotalSupplyBase.Add(m.TotalSupplyBase, supply)
		return nil
	}
	withdraw, borrow := withdrawAndBorrowAmount(oldPrincipal, newPrincipal)
	if m.TotalSupplyBase.Cmp(withdraw) < 0 {
		return ErrInsufficientLiquidity
	}
	m.TotalSupplyBase.Sub(m.TotalSupplyBase, withdraw)
	m.TotalBorrowBase.Add(m.TotalBorrowBase, borrow)
	return nil
}
