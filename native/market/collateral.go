package market

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	nativecommon "moneta/native/common"
)

func (m *MarketState) assetOffset(asset common.Address) (int, error) {
	for i := range m.Assets {
		if m.Assets[i].Asset == asset {
			return i, nil
		}
	}
	return 0, ErrInvalidAssetIndex
}

// CollateralBalanceOf returns the position's balance of one collateral asset.
func (e *Engine) CollateralBalanceOf(addr, asset common.Address) (*big.Int, error) {
	m, err := e.ensureMarket()
	if err != nil {
		return nil, err
	}
	offset, err := m.assetOffset(asset)
	if err != nil {
		return nil, err
	}
	pos, err := e.ensurePosition(m, addr)
	if err != nil {
		return nil, err
	}
	return new(big.Int).Set(pos.Collateral[offset]), nil
}

// SupplyCollateral deposits collateral for the caller's own account.
func (e *Engine) SupplyCollateral(from, asset common.Address, amount *big.Int) error {
	return e.SupplyCollateralFrom(from, from, from, asset, amount)
}

// SupplyCollateralTo deposits the caller's collateral credited to dst.
func (e *Engine) SupplyCollateralTo(from, dst, asset common.Address, amount *big.Int) error {
	return e.SupplyCollateralFrom(from, from, dst, asset, amount)
}

// SupplyCollateralFrom deposits collateral from a managed account.
func (e *Engine) SupplyCollateralFrom(operator, from, dst, asset common.Address, amount *big.Int) error {
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
	if err := e.requirePermission(from, operator); err != nil {
		return err
	}
	if err := validateAmount(amount); err != nil {
		return err
	}

	m, err := e.ensureMarket()
	if err != nil {
		return err
	}
	e.accrueInternal(m)
	offset, err := m.assetOffset(asset)
	if err != nil {
		return err
	}
	if m.Pauses.Supply {
		return ErrPaused
	}
	if m.Pauses.CollateralSupply {
		return ErrCollateralSupplyPaused
	}
	if m.Pauses.CollateralAssetSupply[offset] {
		return &CollateralAssetPausedError{Op: "supply", Offset: offset}
	}

	cfg := m.Assets[offset]
	newTotal := new(big.Int).Add(m.TotalSupplyAsset[offset], amount)
	if cfg.SupplyCap != nil && cfg.SupplyCap.Sign() > 0 && newTotal.Cmp(cfg.SupplyCap) > 0 {
		return ErrSupplyCapExceeded
	}

	pos, err := e.ensurePosition(m, dst)
	if err != nil {
		return err
	}
	pos.Collateral[offset] = new(big.Int).Add(pos.Collateral[offset], amount)
	pos.setAssetIn(offset, true)
	m.TotalSupplyAsset[offset] = newTotal

	if err := e.state.PutPosition(pos); err != nil {
		return err
	}
	if err := e.state.PutMarket(m); err != nil {
		return err
	}
	e.emit(NewSupplyCollateralEvent(from, dst, asset, amount))
	return nil
}

// WithdrawCollateral releases the caller's collateral back to itself.
func (e *Engine) WithdrawCollateral(src, asset common.Address, amount *big.Int) error {
	return e.WithdrawCollateralFrom(src, src, src, asset, amount)
}

// WithdrawCollateralTo releases collateral from the caller paid out to to.
func (e *Engine) WithdrawCollateralTo(src, to, asset common.Address, amount *big.Int) error {
	return e.WithdrawCollateralFrom(src, src, to, asset, amount)
}

// WithdrawCollateralFrom releases collateral from a managed account while
// keeping the remaining position collateralized.
func (e *Engine) WithdrawCollateralFrom(operator, src, to, asset common.Address, amount *big.Int) error {
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
	if err := e.requirePermission(src, operator); err != nil {
		return err
	}
	if err := validateAmount(amount); err != nil {
		return err
	}

	m, err := e.ensureMarket()
	if err != nil {
		return err
	}
	e.accrueInternal(m)
	offset, err := m.assetOffset(asset)
	if err != nil {
		return err
	}
	if m.Pauses.Withdraw {
		return ErrPaused
	}
	if m.Pauses.CollateralWithdraw {
		return ErrCollateralWithdrawPaused
	}
	if m.Pauses.CollateralAssetWithdraw[offset] {
		return &CollateralAssetPausedError{Op: "withdraw", Offset: offset}
	}

	pos, err := e.ensurePosition(m, src)
	if err != nil {
		return err
	}
	if pos.Collateral[offset].Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	if m.TotalSupplyAsset[offset].Cmp(amount) < 0 {
		return ErrInsufficientLiquidity
	}

	remaining := new(big.Int).Sub(pos.Collateral[offset], amount)
	pos.Collateral[offset] = remaining
	pos.setAssetIn(offset, remaining.Sign() > 0)
	m.TotalSupplyAsset[offset] = new(big.Int).Sub(m.TotalSupplyAsset[offset], amount)

	ok, err := e.borrowCollateralizedAt(m, pos, pos.Principal)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotCollateralized
	}

	if err := e.state.PutPosition(pos); err != nil {
		return err
	}
	if err := e.state.PutMarket(m); err != nil {
		return err
	}
	e.emit(NewWithdrawCollateralEvent(src, to, asset, amount))
	return nil
}

// TransferCollateral moves collateral between accounts inside the market.
func (e *Engine) TransferCollateral(from, dst, asset common.Address, amount *big.Int) error {
	return e.TransferCollateralFrom(from, from, dst, asset, amount)
}

// TransferCollateralFrom moves collateral out of a managed account while
// keeping the source collateralized.
func (e *Engine) TransferCollateralFrom(operator, from, dst, asset common.Address, amount *big.Int) error {
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
	if err := e.requirePermission(from, operator); err != nil {
		return err
	}
	if from == dst {
		return ErrSelfTransfer
	}
	if err := validateAmount(amount); err != nil {
		return err
	}

	m, err := e.ensureMarket()
	if err != nil {
		return err
	}
	e.accrueInternal(m)
	offset, err := m.assetOffset(asset)
	if err != nil {
		return err
	}
	if m.Pauses.Transfer {
		return ErrPaused
	}
	if m.Pauses.CollateralTransfer {
		return ErrCollateralTransferPaused
	}
	if m.Pauses.CollateralAssetTransfer[offset] {
		return &CollateralAssetPausedError{Op: "transfer", Offset: offset}
	}

	srcPos, err := e.ensurePosition(m, from)
	if err != nil {
		return err
	}
	if srcPos.Collateral[offset].Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	dstPos, err := e.ensurePosition(m, dst)
	if err != nil {
		return err
	}

	remaining := new(big.Int).Sub(srcPos.Collateral[offset], amount)
	srcPos.Collateral[offset] = remaining
	srcPos.setAssetIn(offset, remaining.Sign() > 0)
	dstPos.Collateral[offset] = new(big.Int).Add(dstPos.Collateral[offset], amount)
	dstPos.setAssetIn(offset, true)

	ok, err := e.borrowCollateralizedAt(m, srcPos, srcPos.Principal)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotCollateralized
	}

	if err := e.state.PutPosition(srcPos); err != nil {
		return err
	}
	if err := e.state.PutPosition(dstPos); err != nil {
		return err
	}
	if err := e.state.PutMarket(m); err != nil {
		return err
	}
	e.emit(NewTransferCollateralEvent(from, dst, asset, amount))
	return nil
}
