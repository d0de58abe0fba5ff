package market

import (
	"errors"
	"fmt"
)

var (
	// ErrNilState marks a call before the engine was wired to persistence.
	ErrNilState = errors.New("market engine: state not configured")
	// ErrNilMarket marks a market that was never initialised.
	ErrNilMarket = errors.New("market engine: market not initialised")
	// ErrNoPriceSource marks a risk evaluation without an injected oracle.
	ErrNoPriceSource = errors.New("market engine: price source not configured")

	// ErrPaused rejects an operation blocked by a circuit breaker.
	ErrPaused = errors.New("market engine: operation paused")
	// ErrLendersWithdrawPaused rejects lender withdrawals specifically.
	ErrLendersWithdrawPaused = errors.New("market engine: lender withdrawals paused")
	// ErrBorrowersWithdrawPaused rejects borrow-creating withdrawals.
	ErrBorrowersWithdrawPaused = errors.New("market engine: borrower withdrawals paused")
	// ErrLendersTransferPaused rejects lender-side transfers.
	ErrLendersTransferPaused = errors.New("market engine: lender transfers paused")
	// ErrBorrowersTransferPaused rejects borrow-creating transfers.
	ErrBorrowersTransferPaused = errors.New("market engine: borrower transfers paused")
	// ErrCollateralSupplyPaused rejects collateral deposits.
	ErrCollateralSupplyPaused = errors.New("market engine: collateral supply paused")
	// ErrCollateralWithdrawPaused rejects collateral withdrawals.
	ErrCollateralWithdrawPaused = errors.New("market engine: collateral withdrawals paused")
	// ErrCollateralTransferPaused rejects collateral transfers.
	ErrCollateralTransferPaused = errors.New("market engine: collateral transfers paused")

	// ErrNotCollateralized rejects an operation that would leave a borrow
	// under-collateralized.
	ErrNotCollateralized = errors.New("market engine: position not collateralized")
	// ErrNotLiquidatable rejects absorption of a healthy position, or
	// partial absorption of one outside the partial window.
	ErrNotLiquidatable = errors.New("market engine: position not liquidatable")
	// ErrUnauthorized rejects a caller without the required permission.
	ErrUnauthorized = errors.New("market engine: unauthorized")
	// ErrInvalidAssetIndex rejects an asset offset outside the live listing.
	ErrInvalidAssetIndex = errors.New("market engine: invalid asset index")
	// ErrInvalidUInt128 rejects a quantity outside the unsigned 128-bit
	// range the ledger stores.
	ErrInvalidUInt128 = errors.New("market engine: value exceeds uint128")
	// ErrInvalidAmount rejects a nil or non-positive amount.
	ErrInvalidAmount = errors.New("market engine: amount must be positive")
	// ErrSupplyCapExceeded rejects collateral past the per-asset cap.
	ErrSupplyCapExceeded = errors.New("market engine: supply cap exceeded")
	// ErrBorrowTooSmall rejects dust borrows below the configured minimum.
	ErrBorrowTooSmall = errors.New("market engine: borrow below minimum")
	// ErrReentrantCall rejects a nested call into a balance-mutating
	// operation.
	ErrReentrantCall = errors.New("market engine: reentrant call blocked")
	// ErrAlreadySet rejects toggling a pause flag to its current value so
	// every toggle event marks a real transition.
	ErrAlreadySet = errors.New("market engine: offset status already set")
	// ErrCollateralAssetAlreadySet is the per-asset variant of ErrAlreadySet.
	ErrCollateralAssetAlreadySet = errors.New("market engine: collateral asset offset status already set")
	// ErrAssetAlreadyListed rejects adding a collateral asset that is
	// live or staged already.
	ErrAssetAlreadyListed = errors.New("market engine: collateral asset already listed")
	// ErrInsufficientBalance rejects spending more than the account holds.
	ErrInsufficientBalance = errors.New("market engine: insufficient balance")
	// ErrInsufficientLiquidity rejects base outflows beyond market holdings.
	ErrInsufficientLiquidity = errors.New("market engine: insufficient liquidity")
	// ErrMaxAssets rejects listing past the fixed asset capacity.
	ErrMaxAssets = errors.New("market engine: too many assets")
	// ErrBadConfig rejects staged configuration failing validation.
	ErrBadConfig = errors.New("market engine: invalid configuration")
	// ErrSelfTransfer rejects transfers where source and destination match.
	ErrSelfTransfer = errors.New("market engine: no self-transfer")
	// ErrQuoteBelowMinimum rejects storefront purchases quoting under the
	// buyer's slippage floor.
	ErrQuoteBelowMinimum = errors.New("market engine: quote below minimum")
)

// CollateralAssetPausedError carries the asset offset whose per-asset flag
// aborted the call.
type CollateralAssetPausedError struct {
	Op     string
	Offset int
}

// Error implements the error interface.
func (e *CollateralAssetPausedError) Error() string {
	return fmt.Sprintf("market engine: collateral asset %s paused (offset %d)", e.Op, e.Offset)
}

// Is matches the generic ErrPaused family.
func (e *CollateralAssetPausedError) Is(target error) bool {
	return target == ErrPaused
}
