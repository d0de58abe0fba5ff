package market

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"moneta/core/types"

	nativecommon "moneta/native/common"
)

// Absorb liquidates underwater accounts in full: all seizable collateral is
// taken into protocol custody and the debt repaid (or over-repaid) against
// its discounted value. Assets with a zero liquidation factor are skipped
// outright, price lookup included.
func (e *Engine) Absorb(absorber common.Address, accounts []common.Address) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if len(accounts) == 0 {
		return ErrInvalidAmount
	}
	if err := e.enter(); err != nil {
		return err
	}
	defer e.exit()

	m, err := e.ensureMarket()
	if err != nil {
		return err
	}
	e.accrueInternal(m)
	if m.Pauses.Absorb {
		return ErrPaused
	}

	points, err := e.ensurePoints(absorber)
	if err != nil {
		return err
	}

	basePrice, err := e.price(e.params.BasePriceFeed)
	if err != nil {
		return err
	}

	// All mutation happens on in-memory copies; nothing is persisted until
	// the whole batch has succeeded, so an error on any account leaves
	// state unchanged. The liquidation check runs against the live copy so
	// an address repeated in the batch is re-evaluated after its first
	// absorption rather than seized again from stale state.
	positions := make(map[common.Address]*Position, len(accounts))
	order := make([]common.Address, 0, len(accounts))
	var emitted []*types.Event
	for _, account := range accounts {
		pos, ok := positions[account]
		if !ok {
			if pos, err = e.ensurePosition(m, account); err != nil {
				return err
			}
			positions[account] = pos
			order = append(order, account)
		}
		liquidatable, err := e.liquidatableAt(m, pos)
		if err != nil {
			return err
		}
		if !liquidatable {
			return ErrNotLiquidatable
		}
		evts, err := e.absorbInternal(m, points, absorber, account, pos, basePrice)
		if err != nil {
			return err
		}
		emitted = append(emitted, evts...)
	}
	points.NumAbsorbs++

	for _, account := range order {
		if err := e.state.PutPosition(positions[account]); err != nil {
			return err
		}
	}
	if err := e.state.PutLiquidatorPoints(absorber, points); err != nil {
		return err
	}
	if err := e.state.PutMarket(m); err != nil {
		return err
	}
	for _, evt := range emitted {
		e.emit(evt)
	}
	return nil
}

func (e *Engine) absorbInternal(m *MarketState, points *LiquidatorPoints, absorber, account common.Address, pos *Position, basePrice *big.Int) ([]*types.Event, error) {
	var emitted []*types.Event

	seizedUSD := big.NewInt(0)
	for offset := range m.Assets {
		if !pos.HasAsset(offset) {
			continue
		}
		cfg := m.Assets[offset]
		if cfg.LiquidationFactor == nil || cfg.LiquidationFactor.Sign() == 0 {
			continue
		}
		price, err := e.price(cfg.PriceFeed)
		if err != nil {
			return nil, err
		}
		seized := pos.Collateral[offset]
		value := mulPrice(seized, price, cfg.Scale())
		seizedUSD.Add(seizedUSD, mulFactor(value, cfg.LiquidationFactor))

		m.TotalSupplyAsset[offset] = new(big.Int).Sub(m.TotalSupplyAsset[offset], seized)
		m.ProtocolCollateral[offset] = new(big.Int).Add(m.ProtocolCollateral[offset], seized)
		pos.Collateral[offset] = big.NewInt(0)
		pos.setAssetIn(offset, false)
		emitted = append(emitted, NewAbsorbCollateralEvent(absorber, account, cfg.Asset, seized, value))
	}

	oldPrincipal := pos.Principal
	oldPresent := presentValue(m, oldPrincipal)
	basePaid := divPrice(seizedUSD, basePrice, e.params.BaseScale())
	newPresent := new(big.Int).Add(oldPresent, basePaid)
	newPrincipal := principalValue(m, newPresent)

	if err := applyAggregates(m, oldPrincipal, newPrincipal); err != nil {
		return nil, err
	}
	e.updateBasePrincipal(m, pos, newPrincipal)

	if newPresent.Sign() > 0 {
		// Over-covered debt: the absorbed account walks away with a
		// small supply balance rather than the excess being lost.
		emitted = append(emitted, NewTransferEvent(common.Address{}, account, newPresent))
	}

	paidValue := mulPrice(basePaid, basePrice, e.params.BaseScale())
	points.NumAbsorbed++
	points.ApproxSpend.Add(points.ApproxSpend, paidValue)
	emitted = append(emitted, NewAbsorbDebtEvent(absorber, account, basePaid, seizedUSD))
	return emitted, nil
}

// partialPlan is a computed partial-absorption schedule. A nil plan means
// the account is outside the partial-liquidation window.
type partialPlan struct {
	offsets      []int
	amounts      []*big.Int
	repayUSD     *big.Int
	repayBase    *big.Int
	newPrincipal *big.Int
}

// partialPlanAt computes the minimal repay restoring the target health
// factor, or nil when partial absorption does not apply: healthy accounts,
// bad debt, or schedules whose post-state would not satisfy the
// liquidation-clearing and strictly-positive-remainder conditions.
func (e *Engine) partialPlanAt(m *MarketState, pos *Position) (*partialPlan, error) {
	liquidatable, err := e.liquidatableAt(m, pos)
	if err != nil || !liquidatable {
		return nil, err
	}
	bad, err := e.badDebtAt(m, pos)
	if err != nil || bad {
		return nil, err
	}

	debt := new(big.Int).Neg(presentValue(m, pos.Principal))
	debtUSD, err := e.debtValue(debt)
	if err != nil {
		return nil, err
	}
	if debtUSD.Sign() == 0 {
		return nil, nil
	}
	borrowUSD, err := e.weightedCollateralValue(m, pos, borrowFactor)
	if err != nil {
		return nil, err
	}
	seizableUSD, err := e.weightedCollateralValue(m, pos, seizeFactor)
	if err != nil {
		return nil, err
	}

	// LHF = seizable/debt; targetHF applies the storefront safety margin.
	lhf := divFactor(seizableUSD, debtUSD)
	targetHF := mulFactor(lhf, e.params.StorefrontCoefficient)
	repayUSD := new(big.Int).Sub(debtUSD, mulFactor(borrowUSD, targetHF))
	if repayUSD.Sign() <= 0 || repayUSD.Cmp(debtUSD) >= 0 || repayUSD.Cmp(seizableUSD) >= 0 {
		return nil, nil
	}

	offsets, amounts, achievedUSD, err := e.collateralForMinimalDebt(m, pos, repayUSD)
	if err != nil {
		return nil, err
	}
	if len(offsets) == 0 || achievedUSD.Sign() == 0 {
		return nil, nil
	}

	basePrice, err := e.price(e.params.BasePriceFeed)
	if err != nil {
		return nil, err
	}
	repayBase := divPrice(achievedUSD, basePrice, e.params.BaseScale())

	// Simulate the post-state: still a debtor, no longer liquidatable,
	// collateral remaining.
	sim := pos.Clone()
	remaining := big.NewInt(0)
	for i, offset := range offsets {
		sim.Collateral[offset] = new(big.Int).Sub(sim.Collateral[offset], amounts[i])
		sim.setAssetIn(offset, sim.Collateral[offset].Sign() > 0)
	}
	for offset := range m.Assets {
		if sim.HasAsset(offset) {
			remaining.Add(remaining, sim.Collateral[offset])
		}
	}
	newPresent := new(big.Int).Add(presentValue(m, pos.Principal), repayBase)
	if newPresent.Sign() >= 0 || remaining.Sign() == 0 {
		return nil, nil
	}
	sim.Principal = principalValue(m, newPresent)
	stillLiquidatable, err := e.liquidatableAt(m, sim)
	if err != nil {
		return nil, err
	}
	if stillLiquidatable {
		return nil, nil
	}

	return &partialPlan{
		offsets:      offsets,
		amounts:      amounts,
		repayUSD:     achievedUSD,
		repayBase:    repayBase,
		newPrincipal: sim.Principal,
	}, nil
}

// collateralForMinimalDebt allocates a seizure across eligible collateral
// assets whose combined discounted value covers targetUSD. The split is
// proportional by discounted value; the truncation remainder lands on the
// largest holding so the total never falls short.
func (e *Engine) collateralForMinimalDebt(m *MarketState, pos *Position, targetUSD *big.Int) ([]int, []*big.Int, *big.Int, error) {
	type eligible struct {
		offset int
		value  *big.Int
		price  *big.Int
	}
	var pool []eligible
	totalValue := big.NewInt(0)
	for offset := range m.Assets {
		if !pos.HasAsset(offset) {
			continue
		}
		cfg := m.Assets[offset]
		if cfg.LiquidationFactor == nil || cfg.LiquidationFactor.Sign() == 0 {
			continue
		}
		price, err := e.price(cfg.PriceFeed)
		if err != nil {
			return nil, nil, nil, err
		}
		value := mulFactor(mulPrice(pos.Collateral[offset], price, cfg.Scale()), cfg.LiquidationFactor)
		if value.Sign() == 0 {
			continue
		}
		pool = append(pool, eligible{offset: offset, value: value, price: price})
		totalValue.Add(totalValue, value)
	}
	if len(pool) == 0 || totalValue.Cmp(targetUSD) < 0 {
		return nil, nil, nil, nil
	}

	offsets := make([]int, 0, len(pool))
	amounts := make([]*big.Int, 0, len(pool))
	achieved := big.NewInt(0)
	largest := 0
	for i, entry := range pool {
		if entry.value.Cmp(pool[largest].value) > 0 {
			largest = i
		}
	}
	discounted := func(i int, amount *big.Int) *big.Int {
		cfg := m.Assets[pool[i].offset]
		return mulFactor(mulPrice(amount, pool[i].price, cfg.Scale()), cfg.LiquidationFactor)
	}
	amountFor := func(i int, valueUSD *big.Int) *big.Int {
		cfg := m.Assets[pool[i].offset]
		undiscounted := divFactor(valueUSD, cfg.LiquidationFactor)
		return divPrice(undiscounted, pool[i].price, cfg.Scale())
	}
	for i, entry := range pool {
		share := new(big.Int).Mul(targetUSD, entry.value)
		share.Quo(share, totalValue)
		amount := minInt(amountFor(i, share), pos.Collateral[entry.offset])
		offsets = append(offsets, entry.offset)
		amounts = append(amounts, new(big.Int).Set(amount))
		achieved.Add(achieved, discounted(i, amount))
	}
	if achieved.Cmp(targetUSD) < 0 {
		// Top up from the largest holding, one extra unit for rounding.
		shortfall := new(big.Int).Sub(targetUSD, achieved)
		extra := new(big.Int).Add(amountFor(largest, shortfall), big.NewInt(1))
		offset := pool[largest].offset
		idx := 0
		for i, o := range offsets {
			if o == offset {
				idx = i
				break
			}
		}
		room := new(big.Int).Sub(pos.Collateral[offset], amounts[idx])
		extra = minInt(extra, room)
		achieved.Sub(achieved, discounted(largest, amounts[idx]))
		amounts[idx] = new(big.Int).Add(amounts[idx], extra)
		achieved.Add(achieved, discounted(largest, amounts[idx]))
	}
	return offsets, amounts, achieved, nil
}

// AbsorbPartial repays the minimal slice of an underwater account's debt to
// restore the storefront target health factor, seizing a matching
// proportional slice of collateral. Bad-debt accounts are rejected; they go
// through full Absorb.
func (e *Engine) AbsorbPartial(absorber, account common.Address) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if err := e.enter(); err != nil {
		return err
	}
	defer e.exit()

	m, err := e.ensureMarket()
	if err != nil {
		return err
	}
	e.accrueInternal(m)
	if m.Pauses.Absorb {
		return ErrPaused
	}

	pos, err := e.ensurePosition(m, account)
	if err != nil {
		return err
	}
	plan, err := e.partialPlanAt(m, pos)
	if err != nil {
		return err
	}
	if plan == nil {
		return ErrNotLiquidatable
	}

	points, err := e.ensurePoints(absorber)
	if err != nil {
		return err
	}

	var emitted []*types.Event
	for i, offset := range plan.offsets {
		amount := plan.amounts[i]
		if amount.Sign() == 0 {
			continue
		}
		cfg := m.Assets[offset]
		price, err := e.price(cfg.PriceFeed)
		if err != nil {
			return err
		}
		pos.Collateral[offset] = new(big.Int).Sub(pos.Collateral[offset], amount)
		pos.setAssetIn(offset, pos.Collateral[offset].Sign() > 0)
		m.TotalSupplyAsset[offset] = new(big.Int).Sub(m.TotalSupplyAsset[offset], amount)
		m.ProtocolCollateral[offset] = new(big.Int).Add(m.ProtocolCollateral[offset], amount)
		emitted = append(emitted, NewAbsorbCollateralEvent(absorber, account, cfg.Asset, amount, mulPrice(amount, price, cfg.Scale())))
	}

	if err := applyAggregates(m, pos.Principal, plan.newPrincipal); err != nil {
		return err
	}
	e.updateBasePrincipal(m, pos, plan.newPrincipal)

	points.NumAbsorbs++
	points.NumAbsorbed++
	points.ApproxSpend.Add(points.ApproxSpend, plan.repayUSD)
	emitted = append(emitted, NewAbsorbDebtEvent(absorber, account, plan.repayBase, plan.repayUSD))

	if err := e.state.PutPosition(pos); err != nil {
		return err
	}
	if err := e.state.PutLiquidatorPoints(absorber, points); err != nil {
		return err
	}
	if err := e.state.PutMarket(m); err != nil {
		return err
	}
	for _, evt := range emitted {
		e.emit(evt)
	}
	return nil
}

// QuoteCollateral prices baseAmount of base tokens in units of the given
// collateral asset at the storefront discount. A zero liquidation factor
// yields no discount: the quote degrades to market price, consistent with
// the liquidation-skip policy for that asset.
func (e *Engine) QuoteCollateral(asset common.Address, baseAmount *big.Int) (*big.Int, error) {
	m, err := e.ensureMarket()
	if err != nil {
		return nil, err
	}
	offset, err := m.assetOffset(asset)
	if err != nil {
		return nil, err
	}
	return e.quoteInternal(m, offset, baseAmount)
}

func (e *Engine) quoteInternal(m *MarketState, offset int, baseAmount *big.Int) (*big.Int, error) {
	if baseAmount == nil || baseAmount.Sign() < 0 {
		return nil, ErrInvalidAmount
	}
	cfg := m.Assets[offset]
	price, err := e.price(cfg.PriceFeed)
	if err != nil {
		return nil, err
	}
	basePrice, err := e.price(e.params.BasePriceFeed)
	if err != nil {
		return nil, err
	}
	// discount = storeFrontPriceFactor * (1 - liquidationFactor); an asset
	// with a zero liquidation factor never reaches the storefront through
	// absorption, so it quotes undiscounted at market price.
	discount := big.NewInt(0)
	if lf := cfg.LiquidationFactor; lf != nil && lf.Sign() > 0 {
		discount = mulFactor(e.params.StoreFrontPriceFactor, new(big.Int).Sub(factorScale, lf))
	}
	discountedPrice := mulFactor(price, new(big.Int).Sub(factorScale, discount))
	if discountedPrice.Sign() == 0 {
		return nil, ErrInvalidAmount
	}
	value := mulPrice(baseAmount, basePrice, e.params.BaseScale())
	return divPrice(value, discountedPrice, cfg.Scale()), nil
}

// BuyCollateral sells seized collateral out of protocol custody at the
// storefront quote, taking base tokens into reserves.
func (e *Engine) BuyCollateral(buyer, recipient, asset common.Address, baseAmount, minAmount *big.Int) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if err := e.enter(); err != nil {
		return nil, err
	}
	defer e.exit()
	if err := validateAmount(baseAmount); err != nil {
		return nil, err
	}

	m, err := e.ensureMarket()
	if err != nil {
		return nil, err
	}
	e.accrueInternal(m)
	if m.Pauses.Buy {
		return nil, ErrPaused
	}
	offset, err := m.assetOffset(asset)
	if err != nil {
		return nil, err
	}

	quote, err := e.quoteInternal(m, offset, baseAmount)
	if err != nil {
		return nil, err
	}
	if minAmount != nil && quote.Cmp(minAmount) < 0 {
		return nil, ErrQuoteBelowMinimum
	}
	if m.ProtocolCollateral[offset].Cmp(quote) < 0 {
		return nil, ErrInsufficientLiquidity
	}

	m.ProtocolCollateral[offset] = new(big.Int).Sub(m.ProtocolCollateral[offset], quote)
	m.BaseHeld.Add(m.BaseHeld, baseAmount)

	if err := e.state.PutMarket(m); err != nil {
		return nil, err
	}
	e.emit(NewBuyCollateralEvent(buyer, recipient, asset, baseAmount, quote))
	return quote, nil
}
