package market

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// MaxAssets caps the number of collateral assets a market can list. The
// assetsIn bitmask on positions is sized to this capacity.
const MaxAssets = 15

// AssetConfig describes one listed collateral asset. Factors are expressed at
// factorScale; prices resolved through the feed are expected at priceScale.
type AssetConfig struct {
	// Asset is the collateral token identifier.
	Asset common.Address `json:"asset"`
	// PriceFeed names the oracle feed the engine queries for this asset.
	PriceFeed string `json:"priceFeed"`
	// Decimals fixes the asset's native scale (10^Decimals).
	Decimals uint8 `json:"decimals"`
	// BorrowCollateralFactor weights the asset when checking whether a
	// borrow is collateralized. Zero removes the asset from borrow checks.
	BorrowCollateralFactor *big.Int `json:"borrowCollateralFactor"`
	// LiquidateCollateralFactor weights the asset when checking whether a
	// position is liquidatable. Always at or above the borrow factor.
	LiquidateCollateralFactor *big.Int `json:"liquidateCollateralFactor"`
	// LiquidationFactor discounts the asset's value when seized. Zero
	// disables seizure of the asset entirely.
	LiquidationFactor *big.Int `json:"liquidationFactor"`
	// SupplyCap bounds the total collateral the market accepts.
	SupplyCap *big.Int `json:"supplyCap"`
}

// Scale returns the asset's native fixed-point denominator.
func (a AssetConfig) Scale() *big.Int {
	return pow10(a.Decimals)
}

// PauseFlags is the circuit-breaker matrix guarding every mutating operation.
// The flag set is closed and known at design time, so it is a struct of
// explicit fields rather than a generic map.
type PauseFlags struct {
	Supply   bool `json:"supply"`
	Withdraw bool `json:"withdraw"`
	Transfer bool `json:"transfer"`
	Absorb   bool `json:"absorb"`
	Buy      bool `json:"buy"`

	LendersWithdraw   bool `json:"lendersWithdraw"`
	BorrowersWithdraw bool `json:"borrowersWithdraw"`
	LendersTransfer   bool `json:"lendersTransfer"`
	BorrowersTransfer bool `json:"borrowersTransfer"`

	CollateralSupply   bool `json:"collateralSupply"`
	CollateralWithdraw bool `json:"collateralWithdraw"`
	CollateralTransfer bool `json:"collateralTransfer"`

	// Per-asset switches, parallel to the market's asset list.
	CollateralAssetSupply   []bool `json:"collateralAssetSupply"`
	CollateralAssetWithdraw []bool `json:"collateralAssetWithdraw"`
	CollateralAssetTransfer []bool `json:"collateralAssetTransfer"`
}

// PendingUpdate is one staged governance change. Updates take effect only
// when ApplyPendingConfig promotes the staged set.
type PendingUpdate struct {
	Kind       string         `json:"kind"`
	AssetIndex int            `json:"assetIndex,omitempty"`
	Asset      *AssetConfig   `json:"asset,omitempty"`
	Factory    common.Address `json:"factory,omitempty"`
	PriceFeed  string         `json:"priceFeed,omitempty"`
	Factor     *big.Int       `json:"factor,omitempty"`
}

// Staged update kinds.
const (
	UpdateKindFactory          = "factory"
	UpdateKindAddAsset         = "addAsset"
	UpdateKindPriceFeed        = "priceFeed"
	UpdateKindLiquidationFact  = "liquidationFactor"
	UpdateKindBorrowCollateral = "borrowCollateralFactor"
)

// MarketState is the singleton accounting record mutated by every operation.
// Principal aggregates are unsigned and mutually exclusive: supply and borrow
// principal never mix.
type MarketState struct {
	// TotalSupplyBase is the aggregate supply-side principal.
	TotalSupplyBase *big.Int `json:"totalSupplyBase"`
	// TotalBorrowBase is the aggregate borrow-side principal.
	TotalBorrowBase *big.Int `json:"totalBorrowBase"`
	// BaseSupplyIndex is the cumulative interest index applied to supplier
	// principal, at indexScale. Monotonically non-decreasing.
	BaseSupplyIndex *big.Int `json:"baseSupplyIndex"`
	// BaseBorrowIndex is the cumulative interest index applied to borrower
	// principal, at indexScale. Monotonically non-decreasing.
	BaseBorrowIndex *big.Int `json:"baseBorrowIndex"`
	// TrackingSupplyIndex accrues reward entitlement per unit of supply
	// principal.
	TrackingSupplyIndex *big.Int `json:"trackingSupplyIndex"`
	// TrackingBorrowIndex accrues reward entitlement per unit of borrow
	// principal.
	TrackingBorrowIndex *big.Int `json:"trackingBorrowIndex"`
	// LastAccrualTime records when indexes were last refreshed.
	LastAccrualTime uint64 `json:"lastAccrualTime"`
	// BaseHeld is the base-token balance custodied by the market. Reserves
	// are derived from it, never stored.
	BaseHeld *big.Int `json:"baseHeld"`

	// Assets is the fixed-capacity collateral listing; positions index into
	// it by offset.
	Assets []AssetConfig `json:"assets"`
	// TotalSupplyAsset tracks per-asset collateral totals, parallel to
	// Assets.
	TotalSupplyAsset []*big.Int `json:"totalSupplyAsset"`
	// ProtocolCollateral holds seized collateral awaiting storefront
	// resale, parallel to Assets.
	ProtocolCollateral []*big.Int `json:"protocolCollateral"`

	// Factory records the deployment factory bound to this market.
	Factory common.Address `json:"factory"`
	// PendingUpdates holds staged governance changes awaiting promotion.
	PendingUpdates []PendingUpdate `json:"pendingUpdates,omitempty"`

	Pauses PauseFlags `json:"pauses"`
}

// Position is the per-account record. Principal is signed: positive marks a
// net lender, negative a net borrower. Records are created lazily and never
// deleted.
type Position struct {
	Address common.Address `json:"address"`
	// Principal is the stored, time-invariant base position. Present value
	// is always derived from it and the live index, never persisted.
	Principal *big.Int `json:"principal"`
	// BaseTrackingIndex snapshots the tracking index (of the side matching
	// the principal's sign) at the last principal change.
	BaseTrackingIndex *big.Int `json:"baseTrackingIndex"`
	// BaseTrackingAccrued is reward entitlement accrued but not claimed, in
	// tracking units.
	BaseTrackingAccrued *big.Int `json:"baseTrackingAccrued"`
	// AssetsIn marks which collateral offsets hold a non-zero balance.
	AssetsIn uint16 `json:"assetsIn"`
	// Collateral balances, parallel to the market's asset list.
	Collateral []*big.Int `json:"collateral"`
}

// HasAsset reports whether the position holds collateral at the offset.
func (p *Position) HasAsset(offset int) bool {
	if p == nil || offset < 0 || offset >= MaxAssets {
		return false
	}
	return p.AssetsIn&(1<<uint(offset)) != 0
}

func (p *Position) setAssetIn(offset int, in bool) {
	if p == nil || offset < 0 || offset >= MaxAssets {
		return
	}
	if in {
		p.AssetsIn |= 1 << uint(offset)
	} else {
		p.AssetsIn &^= 1 << uint(offset)
	}
}

// LiquidatorPoints are audit counters for absorb activity. They take no part
// in solvency logic.
type LiquidatorPoints struct {
	NumAbsorbs  uint64   `json:"numAbsorbs"`
	NumAbsorbed uint64   `json:"numAbsorbed"`
	ApproxSpend *big.Int `json:"approxSpend"`
}

// Params groups the governance-controlled constants of a market.
type Params struct {
	// Governor may change configuration and withdraw reserves.
	Governor common.Address
	// PauseGuardian may toggle circuit breakers alongside the governor.
	PauseGuardian common.Address
	// BaseDecimals fixes the base token's native scale.
	BaseDecimals uint8
	// BasePriceFeed names the oracle feed for the base token.
	BasePriceFeed string
	// StoreFrontPriceFactor scales the liquidation discount offered when
	// reselling seized collateral, at factorScale.
	StoreFrontPriceFactor *big.Int
	// StorefrontCoefficient is the safety margin applied to the liquidation
	// health factor when computing the partial-absorption target, at
	// factorScale and strictly below one.
	StorefrontCoefficient *big.Int
	// BaseBorrowMin rejects dust borrows, in base units.
	BaseBorrowMin *big.Int
	// BaseMinForRewards gates tracking accrual: below this total principal
	// no rewards accrue.
	BaseMinForRewards *big.Int
	// BaseTrackingSupplySpeed and BaseTrackingBorrowSpeed are reward
	// emission speeds, in tracking units per second.
	BaseTrackingSupplySpeed *big.Int
	BaseTrackingBorrowSpeed *big.Int
	// RewardScale is the reward token's native denominator.
	RewardScale *big.Int
	// RescaleFactor converts tracking units into reward units.
	RescaleFactor *big.Int
	// RewardMultiplier boosts the rescale factor for campaign pools, at
	// factorScale. One (factorScale) means no boost.
	RewardMultiplier *big.Int
}

// BaseScale returns the base token's native fixed-point denominator.
func (p Params) BaseScale() *big.Int {
	return pow10(p.BaseDecimals)
}

// Clone returns a deep copy of the market state.
func (m *MarketState) Clone() *MarketState {
	if m == nil {
		return nil
	}
	clone := &MarketState{
		LastAccrualTime: m.LastAccrualTime,
		Factory:         m.Factory,
		Pauses:          m.Pauses.clone(),
	}
	clone.TotalSupplyBase = cloneInt(m.TotalSupplyBase)
	clone.TotalBorrowBase = cloneInt(m.TotalBorrowBase)
	clone.BaseSupplyIndex = cloneInt(m.BaseSupplyIndex)
	clone.BaseBorrowIndex = cloneInt(m.BaseBorrowIndex)
	clone.TrackingSupplyIndex = cloneInt(m.TrackingSupplyIndex)
	clone.TrackingBorrowIndex = cloneInt(m.TrackingBorrowIndex)
	clone.BaseHeld = cloneInt(m.BaseHeld)
	clone.Assets = make([]AssetConfig, len(m.Assets))
	for i, asset := range m.Assets {
		clone.Assets[i] = asset.clone()
	}
	clone.TotalSupplyAsset = make([]*big.Int, len(m.TotalSupplyAsset))
	for i, total := range m.TotalSupplyAsset {
		clone.TotalSupplyAsset[i] = cloneInt(total)
	}
	clone.ProtocolCollateral = make([]*big.Int, len(m.ProtocolCollateral))
	for i, held := range m.ProtocolCollateral {
		clone.ProtocolCollateral[i] = cloneInt(held)
	}
	if len(m.PendingUpdates) > 0 {
		clone.PendingUpdates = make([]PendingUpdate, len(m.PendingUpdates))
		for i, update := range m.PendingUpdates {
			clone.PendingUpdates[i] = update.clone()
		}
	}
	return clone
}

func (a AssetConfig) clone() AssetConfig {
	clone := a
	clone.BorrowCollateralFactor = cloneInt(a.BorrowCollateralFactor)
	clone.LiquidateCollateralFactor = cloneInt(a.LiquidateCollateralFactor)
	clone.LiquidationFactor = cloneInt(a.LiquidationFactor)
	clone.SupplyCap = cloneInt(a.SupplyCap)
	return clone
}

func (f PauseFlags) clone() PauseFlags {
	clone := f
	clone.CollateralAssetSupply = append([]bool(nil), f.CollateralAssetSupply...)
	clone.CollateralAssetWithdraw = append([]bool(nil), f.CollateralAssetWithdraw...)
	clone.CollateralAssetTransfer = append([]bool(nil), f.CollateralAssetTransfer...)
	return clone
}

func (u PendingUpdate) clone() PendingUpdate {
	clone := u
	clone.Factor = cloneInt(u.Factor)
	if u.Asset != nil {
		cloned := u.Asset.clone()
		clone.Asset = &cloned
	}
	return clone
}

// Clone returns a deep copy of the position.
func (p *Position) Clone() *Position {
	if p == nil {
		return nil
	}
	clone := &Position{Address: p.Address, AssetsIn: p.AssetsIn}
	clone.Principal = cloneInt(p.Principal)
	clone.BaseTrackingIndex = cloneInt(p.BaseTrackingIndex)
	clone.BaseTrackingAccrued = cloneInt(p.BaseTrackingAccrued)
	clone.Collateral = make([]*big.Int, len(p.Collateral))
	for i, balance := range p.Collateral {
		clone.Collateral[i] = cloneInt(balance)
	}
	return clone
}

// Clone returns a deep copy of the liquidator points record.
func (l *LiquidatorPoints) Clone() *LiquidatorPoints {
	if l == nil {
		return nil
	}
	return &LiquidatorPoints{
		NumAbsorbs:  l.NumAbsorbs,
		NumAbsorbed: l.NumAbsorbed,
		ApproxSpend: cloneInt(l.ApproxSpend),
	}
}

func cloneInt(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}
