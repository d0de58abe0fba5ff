package market

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

func validateAssetConfig(cfg AssetConfig) error {
	if (cfg.Asset == common.Address{}) {
		return fmt.Errorf("%w: zero asset address", ErrBadConfig)
	}
	if cfg.PriceFeed == "" {
		return fmt.Errorf("%w: missing price feed", ErrBadConfig)
	}
	if cfg.Decimals > 18 {
		return fmt.Errorf("%w: decimals above 18", ErrBadConfig)
	}
	if err := validateFactor("borrowCollateralFactor", cfg.BorrowCollateralFactor); err != nil {
		return err
	}
	if err := validateFactor("liquidateCollateralFactor", cfg.LiquidateCollateralFactor); err != nil {
		return err
	}
	if err := validateFactor("liquidationFactor", cfg.LiquidationFactor); err != nil {
		return err
	}
	// Borrowing power must stay strictly inside the liquidation threshold,
	// otherwise a max borrow is liquidatable in the same block.
	if cfg.BorrowCollateralFactor.Cmp(cfg.LiquidateCollateralFactor) >= 0 {
		return fmt.Errorf("%w: borrow factor must be below liquidate factor", ErrBadConfig)
	}
	if cfg.SupplyCap != nil && cfg.SupplyCap.Sign() < 0 {
		return fmt.Errorf("%w: negative supply cap", ErrBadConfig)
	}
	return nil
}

func validateFactor(name string, factor *big.Int) error {
	if factor == nil {
		return fmt.Errorf("%w: missing %s", ErrBadConfig, name)
	}
	if factor.Sign() < 0 || factor.Cmp(factorScale) > 0 {
		return fmt.Errorf("%w: %s out of range", ErrBadConfig, name)
	}
	return nil
}

func (e *Engine) requireGovernor(actor common.Address) error {
	if actor != e.params.Governor {
		return ErrUnauthorized
	}
	return nil
}

// SetFactory stages a factory address change.
func (e *Engine) SetFactory(actor, factory common.Address) error {
	return e.stageUpdate(actor, PendingUpdate{Kind: UpdateKindFactory, Factory: factory}, common.Address{})
}

// AddAsset stages a new collateral listing. Capacity is checked against the
// live asset set plus already staged additions so a staged batch can never
// overflow at promotion time.
func (e *Engine) AddAsset(actor common.Address, cfg AssetConfig) error {
	if err := validateAssetConfig(cfg); err != nil {
		return err
	}
	m, err := e.ensureMarket()
	if err != nil {
		return err
	}
	pendingAdds := 0
	for _, update := range m.PendingUpdates {
		if update.Kind == UpdateKindAddAsset {
			pendingAdds++
			if update.Asset != nil && update.Asset.Asset == cfg.Asset {
				return ErrAssetAlreadyListed
			}
		}
	}
	if len(m.Assets)+pendingAdds >= MaxAssets {
		return ErrMaxAssets
	}
	if _, err := m.assetOffset(cfg.Asset); err == nil {
		return ErrAssetAlreadyListed
	}
	cloned := cfg.clone()
	return e.stageUpdate(actor, PendingUpdate{Kind: UpdateKindAddAsset, Asset: &cloned}, cfg.Asset)
}

// UpdateAssetPriceFeed stages a price feed change for a listed asset.
func (e *Engine) UpdateAssetPriceFeed(actor, asset common.Address, feed string) error {
	if feed == "" {
		return fmt.Errorf("%w: missing price feed", ErrBadConfig)
	}
	offset, err := e.listedOffset(asset)
	if err != nil {
		return err
	}
	return e.stageUpdate(actor, PendingUpdate{Kind: UpdateKindPriceFeed, AssetIndex: offset, PriceFeed: feed}, asset)
}

// UpdateAssetLiquidationFactor stages a liquidation factor change.
func (e *Engine) UpdateAssetLiquidationFactor(actor, asset common.Address, factor *big.Int) error {
	if err := validateFactor("liquidationFactor", factor); err != nil {
		return err
	}
	offset, err := e.listedOffset(asset)
	if err != nil {
		return err
	}
	return e.stageUpdate(actor, PendingUpdate{Kind: UpdateKindLiquidationFact, AssetIndex: offset, Factor: new(big.Int).Set(factor)}, asset)
}

// UpdateAssetBorrowCollateralFactor stages a borrow collateral factor change.
func (e *Engine) UpdateAssetBorrowCollateralFactor(actor, asset common.Address, factor *big.Int) error {
	if err := validateFactor("borrowCollateralFactor", factor); err != nil {
		return err
	}
	offset, err := e.listedOffset(asset)
	if err != nil {
		return err
	}
	return e.stageUpdate(actor, PendingUpdate{Kind: UpdateKindBorrowCollateral, AssetIndex: offset, Factor: new(big.Int).Set(factor)}, asset)
}

func (e *Engine) listedOffset(asset common.Address) (int, error) {
	m, err := e.ensureMarket()
	if err != nil {
		return 0, err
	}
	return m.assetOffset(asset)
}

func (e *Engine) stageUpdate(actor common.Address, update PendingUpdate, asset common.Address) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if err := e.requireGovernor(actor); err != nil {
		return err
	}
	m, err := e.ensureMarket()
	if err != nil {
		return err
	}
	m.PendingUpdates = append(m.PendingUpdates, update)
	if err := e.state.PutMarket(m); err != nil {
		return err
	}
	e.emit(NewConfigStagedEvent(actor, update.Kind, asset))
	return nil
}

// ApplyPendingConfig promotes all staged updates in staging order. Interest
// is accrued first so rate-sensitive accounting settles under the old
// configuration.
func (e *Engine) ApplyPendingConfig(actor common.Address) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if err := e.requireGovernor(actor); err != nil {
		return err
	}
	m, err := e.ensureMarket()
	if err != nil {
		return err
	}
	e.accrueInternal(m)

	applied := make([]PendingUpdate, 0, len(m.PendingUpdates))
	for _, update := range m.PendingUpdates {
		switch update.Kind {
		case UpdateKindFactory:
			m.Factory = update.Factory
		case UpdateKindAddAsset:
			if update.Asset == nil {
				return fmt.Errorf("%w: staged listing without config", ErrBadConfig)
			}
			if len(m.Assets) >= MaxAssets {
				return ErrMaxAssets
			}
			m.Assets = append(m.Assets, update.Asset.clone())
			m.TotalSupplyAsset = append(m.TotalSupplyAsset, big.NewInt(0))
			m.ProtocolCollateral = append(m.ProtocolCollateral, big.NewInt(0))
			growFlags(&m.Pauses.CollateralAssetSupply, len(m.Assets))
			growFlags(&m.Pauses.CollateralAssetWithdraw, len(m.Assets))
			growFlags(&m.Pauses.CollateralAssetTransfer, len(m.Assets))
		case UpdateKindPriceFeed:
			if update.AssetIndex < 0 || update.AssetIndex >= len(m.Assets) {
				return ErrInvalidAssetIndex
			}
			m.Assets[update.AssetIndex].PriceFeed = update.PriceFeed
		case UpdateKindLiquidationFact:
			if update.AssetIndex < 0 || update.AssetIndex >= len(m.Assets) {
				return ErrInvalidAssetIndex
			}
			m.Assets[update.AssetIndex].LiquidationFactor = new(big.Int).Set(update.Factor)
		case UpdateKindBorrowCollateral:
			if update.AssetIndex < 0 || update.AssetIndex >= len(m.Assets) {
				return ErrInvalidAssetIndex
			}
			m.Assets[update.AssetIndex].BorrowCollateralFactor = new(big.Int).Set(update.Factor)
		default:
			return fmt.Errorf("%w: unknown update kind %q", ErrBadConfig, update.Kind)
		}
		applied = append(applied, update)
	}
	m.PendingUpdates = nil
	if err := e.state.PutMarket(m); err != nil {
		return err
	}
	for _, update := range applied {
		asset := common.Address{}
		if update.Kind == UpdateKindAddAsset && update.Asset != nil {
			asset = update.Asset.Asset
		} else if update.AssetIndex >= 0 && update.AssetIndex < len(m.Assets) && update.Kind != UpdateKindFactory {
			asset = m.Assets[update.AssetIndex].Asset
		}
		e.emit(NewConfigAppliedEvent(update.Kind, asset))
	}
	return nil
}
