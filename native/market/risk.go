package market

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

type factorKind int

const (
	borrowFactor factorKind = iota
	liquidateFactor
	seizeFactor
)

func (a AssetConfig) factor(kind factorKind) *big.Int {
	switch kind {
	case borrowFactor:
		return a.BorrowCollateralFactor
	case liquidateFactor:
		return a.LiquidateCollateralFactor
	default:
		return a.LiquidationFactor
	}
}

func (e *Engine) price(feed string) (*big.Int, error) {
	if e.prices == nil {
		return nil, ErrNoPriceSource
	}
	return e.prices.Price(feed)
}

// weightedCollateralValue sums the position's collateral in priceScale USD,
// weighted by the chosen factor. Assets whose factor is zero are skipped
// entirely, price lookup included: a zeroed factor is the standing mitigation
// for an unusable price feed.
func (e *Engine) weightedCollateralValue(m *MarketState, pos *Position, kind factorKind) (*big.Int, error) {
	total := big.NewInt(0)
	for offset := range m.Assets {
		if !pos.HasAsset(offset) {
			continue
		}
		cfg := m.Assets[offset]
		factor := cfg.factor(kind)
		if factor == nil || factor.Sign() == 0 {
			continue
		}
		price, err := e.price(cfg.PriceFeed)
		if err != nil {
			return nil, err
		}
		value := mulPrice(pos.Collateral[offset], price, cfg.Scale())
		total.Add(total, mulFactor(value, factor))
	}
	return total, nil
}

// debtValue converts a present-value debt magnitude into priceScale USD.
func (e *Engine) debtValue(debt *big.Int) (*big.Int, error) {
	basePrice, err := e.price(e.params.BasePriceFeed)
	if err != nil {
		return nil, err
	}
	return mulPrice(debt, basePrice, e.params.BaseScale()), nil
}

// borrowCollateralizedAt evaluates borrow collateralization for a
// hypothetical principal, so mutations can be validated before they land.
func (e *Engine) borrowCollateralizedAt(m *MarketState, pos *Position, principal *big.Int) (bool, error) {
	if principal.Sign() >= 0 {
		return true, nil
	}
	debt := new(big.Int).Neg(presentValue(m, principal))
	debtUSD, err := e.debtValue(debt)
	if err != nil {
		return false, err
	}
	haveUSD, err := e.weightedCollateralValue(m, pos, borrowFactor)
	if err != nil {
		return false, err
	}
	return haveUSD.Cmp(debtUSD) >= 0, nil
}

// IsBorrowCollateralized reports whether the account's debt, if any, is
// covered by borrow-factor-weighted collateral. Non-negative principal is
// always collateralized.
func (e *Engine) IsBorrowCollateralized(addr common.Address) (bool, error) {
	m, err := e.ensureMarket()
	if err != nil {
		return false, err
	}
	pos, err := e.ensurePosition(m, addr)
	if err != nil {
		return false, err
	}
	return e.borrowCollateralizedAt(m, pos, pos.Principal)
}

func (e *Engine) liquidatableAt(m *MarketState, pos *Position) (bool, error) {
	if pos.Principal.Sign() >= 0 {
		return false, nil
	}
	debt := new(big.Int).Neg(presentValue(m, pos.Principal))
	debtUSD, err := e.debtValue(debt)
	if err != nil {
		return false, err
	}
	haveUSD, err := e.weightedCollateralValue(m, pos, liquidateFactor)
	if err != nil {
		return false, err
	}
	return haveUSD.Cmp(debtUSD) < 0, nil
}

// IsLiquidatable reports whether the account has crossed the liquidation
// threshold. Never true for non-negative principal.
func (e *Engine) IsLiquidatable(addr common.Address) (bool, error) {
	m, err := e.ensureMarket()
	if err != nil {
		return false, err
	}
	pos, err := e.ensurePosition(m, addr)
	if err != nil {
		return false, err
	}
	return e.liquidatableAt(m, pos)
}

func (e *Engine) badDebtAt(m *MarketState, pos *Position) (bool, error) {
	liquidatable, err := e.liquidatableAt(m, pos)
	if err != nil || !liquidatable {
		return false, err
	}
	debt := new(big.Int).Neg(presentValue(m, pos.Principal))
	debtUSD, err := e.debtValue(debt)
	if err != nil {
		return false, err
	}
	seizableUSD, err := e.weightedCollateralValue(m, pos, seizeFactor)
	if err != nil {
		return false, err
	}
	return seizableUSD.Cmp(debtUSD) < 0, nil
}

// IsBadDebt reports whether full seizure of all collateral at its discounted
// liquidation value still cannot cover the debt.
func (e *Engine) IsBadDebt(addr common.Address) (bool, error) {
	m, err := e.ensureMarket()
	if err != nil {
		return false, err
	}
	pos, err := e.ensurePosition(m, addr)
	if err != nil {
		return false, err
	}
	return e.badDebtAt(m, pos)
}

// IsPartiallyLiquidatable reports whether a partial absorption can restore
// the account to the storefront-discounted target health factor by repaying
// strictly less than the full debt. Bad-debt accounts are excluded; they go
// through full absorption.
func (e *Engine) IsPartiallyLiquidatable(addr common.Address) (bool, error) {
	m, err := e.ensureMarket()
	if err != nil {
		return false, err
	}
	pos, err := e.ensurePosition(m, addr)
	if err != nil {
		return false, err
	}
	plan, err := e.partialPlanAt(m, pos)
	if err != nil {
		return false, err
	}
	return plan != nil, nil
}
