package market

import "math/big"

// RateCurve is a two-segment piecewise-linear per-second rate curve. All
// parameters are expressed at factorScale: Base and the slopes are per-second
// rates, Kink is a utilization ratio.
type RateCurve struct {
	Base      *big.Int
	SlopeLow  *big.Int
	SlopeHigh *big.Int
	Kink      *big.Int
}

// RateModel pairs the supply and borrow curves of a market. The supply curve
// conventionally carries a zero base rate.
type RateModel struct {
	Supply RateCurve
	Borrow RateCurve
}

// Clone returns a deep copy of the rate model.
func (m *RateModel) Clone() *RateModel {
	if m == nil {
		return nil
	}
	return &RateModel{Supply: m.Supply.clone(), Borrow: m.Borrow.clone()}
}

func (c RateCurve) clone() RateCurve {
	return RateCurve{
		Base:      cloneInt(c.Base),
		SlopeLow:  cloneInt(c.SlopeLow),
		SlopeHigh: cloneInt(c.SlopeHigh),
		Kink:      cloneInt(c.Kink),
	}
}

// RateAt evaluates the curve at the given utilization (factorScale). Below
// the kink the low slope applies; at or above it the high slope takes over
// for the excess.
func (c RateCurve) RateAt(utilization *big.Int) *big.Int {
	rate := big.NewInt(0)
	if c.Base != nil {
		rate.Set(c.Base)
	}
	if utilization == nil || utilization.Sign() == 0 {
		return rate
	}
	kink := c.Kink
	if kink == nil {
		kink = big.NewInt(0)
	}
	if kink.Sign() == 0 || utilization.Cmp(kink) < 0 {
		return rate.Add(rate, mulFactor(c.SlopeLow, utilization))
	}
	rate.Add(rate, mulFactor(c.SlopeLow, kink))
	excess := new(big.Int).Sub(utilization, kink)
	return rate.Add(rate, mulFactor(c.SlopeHigh, excess))
}

// Utilization is present-value borrows over present-value supply at
// factorScale, defined as zero when nothing is supplied.
func (m *MarketState) Utilization() *big.Int {
	if m == nil || m.TotalSupplyBase == nil || m.TotalSupplyBase.Sign() == 0 {
		return big.NewInt(0)
	}
	borrows := new(big.Int).Mul(m.TotalBorrowBase, m.BaseBorrowIndex)
	supply := new(big.Int).Mul(m.TotalSupplyBase, m.BaseSupplyIndex)
	if supply.Sign() == 0 {
		return big.NewInt(0)
	}
	out := borrows.Mul(borrows, factorScale)
	return out.Quo(out, supply)
}

// DefaultRateModel is a reasonable starting configuration: 2% APR base and a
// kink at 80% utilization, expressed as per-second factorScale rates.
var DefaultRateModel = &RateModel{
	Supply: RateCurve{
		Base:      big.NewInt(0),
		SlopeLow:  perSecondRate(0.0325),
		SlopeHigh: perSecondRate(0.4),
		Kink:      mustBigInt("800000000000000000"),
	},
	Borrow: RateCurve{
		Base:      perSecondRate(0.015),
		SlopeLow:  perSecondRate(0.035),
		SlopeHigh: perSecondRate(0.25),
		Kink:      mustBigInt("800000000000000000"),
	},
}

const secondsPerYear = 31_536_000

// perSecondRate converts a yearly decimal rate into a factorScale per-second
// rate, truncated.
func perSecondRate(annual float64) *big.Int {
	rat := new(big.Rat).SetFloat64(annual)
	if rat == nil {
		return big.NewInt(0)
	}
	rat.Quo(rat, new(big.Rat).SetInt64(secondsPerYear))
	rat.Mul(rat, new(big.Rat).SetInt(factorScale))
	return new(big.Int).Quo(rat.Num(), rat.Denom())
}
