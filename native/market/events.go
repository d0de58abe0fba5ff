package market

import (
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"moneta/core/types"
)

// Event types emitted by the market engine. Attribute values are decimal
// strings for amounts and 0x-hex for addresses.
const (
	TypeApproval           = "market.approval"
	TypeSupply             = "market.supply"
	TypeWithdraw           = "market.withdraw"
	TypeTransfer           = "market.transfer"
	TypeSupplyCollateral   = "market.supply_collateral"
	TypeWithdrawCollateral = "market.withdraw_collateral"
	TypeTransferCollateral = "market.transfer_collateral"
	TypeAbsorbDebt         = "market.absorb_debt"
	TypeAbsorbCollateral   = "market.absorb_collateral"
	TypeBuyCollateral      = "market.buy_collateral"
	TypeWithdrawReserves   = "market.withdraw_reserves"
	TypeRewardClaimed      = "market.reward_claimed"
	TypePauseAction        = "market.pause_action"
	TypeConfigStaged       = "market.config_staged"
	TypeConfigApplied      = "market.config_applied"
)

func amountAttr(amount *big.Int) string {
	if amount == nil {
		return "0"
	}
	return amount.String()
}

// NewApprovalEvent records an operator grant or revocation.
func NewApprovalEvent(owner, manager common.Address, allowed bool) *types.Event {
	return &types.Event{Type: TypeApproval, Attributes: map[string]string{
		"owner":   owner.Hex(),
		"manager": manager.Hex(),
		"allowed": strconv.FormatBool(allowed),
	}}
}

// NewSupplyEvent records base tokens entering the market for dst's benefit.
func NewSupplyEvent(from, dst common.Address, amount *big.Int) *types.Event {
	return &types.Event{Type: TypeSupply, Attributes: map[string]string{
		"from":   from.Hex(),
		"dst":    dst.Hex(),
		"amount": amountAttr(amount),
	}}
}

// NewWithdrawEvent records base tokens leaving the market from src's balance.
func NewWithdrawEvent(src, to common.Address, amount *big.Int) *types.Event {
	return &types.Event{Type: TypeWithdraw, Attributes: map[string]string{
		"src":    src.Hex(),
		"to":     to.Hex(),
		"amount": amountAttr(amount),
	}}
}

// NewTransferEvent records an internal base balance move. The zero address
// as sender marks balances minted during absorption.
func NewTransferEvent(from, to common.Address, amount *big.Int) *types.Event {
	return &types.Event{Type: TypeTransfer, Attributes: map[string]string{
		"from":   from.Hex(),
		"to":     to.Hex(),
		"amount": amountAttr(amount),
	}}
}

func NewSupplyCollateralEvent(from, dst, asset common.Address, amount *big.Int) *types.Event {
	return &types.Event{Type: TypeSupplyCollateral, Attributes: map[string]string{
		"from":   from.Hex(),
		"dst":    dst.Hex(),
		"asset":  asset.Hex(),
		"amount": amountAttr(amount),
	}}
}

func NewWithdrawCollateralEvent(src, to, asset common.Address, amount *big.Int) *types.Event {
	return &types.Event{Type: TypeWithdrawCollateral, Attributes: map[string]string{
		"src":    src.Hex(),
		"to":     to.Hex(),
		"asset":  asset.Hex(),
		"amount": amountAttr(amount),
	}}
}

func NewTransferCollateralEvent(from, to, asset common.Address, amount *big.Int) *types.Event {
	return &types.Event{Type: TypeTransferCollateral, Attributes: map[string]string{
		"from":   from.Hex(),
		"to":     to.Hex(),
		"asset":  asset.Hex(),
		"amount": amountAttr(amount),
	}}
}

// NewAbsorbDebtEvent records the repay side of an absorption: basePaid is
// the base credited to the account, usdValue its oracle valuation.
func NewAbsorbDebtEvent(absorber, account common.Address, basePaid, usdValue *big.Int) *types.Event {
	return &types.Event{Type: TypeAbsorbDebt, Attributes: map[string]string{
		"absorber": absorber.Hex(),
		"account":  account.Hex(),
		"basePaid": amountAttr(basePaid),
		"usdValue": amountAttr(usdValue),
	}}
}

// NewAbsorbCollateralEvent records a collateral seizure. usdValue is the
// undiscounted oracle value of the seized amount.
func NewAbsorbCollateralEvent(absorber, account, asset common.Address, amount, usdValue *big.Int) *types.Event {
	return &types.Event{Type: TypeAbsorbCollateral, Attributes: map[string]string{
		"absorber": absorber.Hex(),
		"account":  account.Hex(),
		"asset":    asset.Hex(),
		"amount":   amountAttr(amount),
		"usdValue": amountAttr(usdValue),
	}}
}

// NewBuyCollateralEvent records a storefront sale of seized collateral.
func NewBuyCollateralEvent(buyer, recipient, asset common.Address, baseAmount, collateralAmount *big.Int) *types.Event {
	return &types.Event{Type: TypeBuyCollateral, Attributes: map[string]string{
		"buyer":            buyer.Hex(),
		"recipient":        recipient.Hex(),
		"asset":            asset.Hex(),
		"baseAmount":       amountAttr(baseAmount),
		"collateralAmount": amountAttr(collateralAmount),
	}}
}

func NewWithdrawReservesEvent(to common.Address, amount *big.Int) *types.Event {
	return &types.Event{Type: TypeWithdrawReserves, Attributes: map[string]string{
		"to":     to.Hex(),
		"amount": amountAttr(amount),
	}}
}

func NewRewardClaimedEvent(account, recipient common.Address, amount *big.Int) *types.Event {
	return &types.Event{Type: TypeRewardClaimed, Attributes: map[string]string{
		"account":   account.Hex(),
		"recipient": recipient.Hex(),
		"amount":    amountAttr(amount),
	}}
}

// NewPauseActionEvent records a pause flag transition. offset is -1 for
// flags not scoped to a collateral asset.
func NewPauseActionEvent(actor common.Address, flag string, offset int, paused bool) *types.Event {
	return &types.Event{Type: TypePauseAction, Attributes: map[string]string{
		"actor":  actor.Hex(),
		"flag":   flag,
		"offset": strconv.Itoa(offset),
		"paused": strconv.FormatBool(paused),
	}}
}

// NewConfigStagedEvent records a governance update queued for the next
// ApplyPendingConfig.
func NewConfigStagedEvent(governor common.Address, kind string, asset common.Address) *types.Event {
	return &types.Event{Type: TypeConfigStaged, Attributes: map[string]string{
		"governor": governor.Hex(),
		"kind":     kind,
		"asset":    asset.Hex(),
	}}
}

// NewConfigAppliedEvent records a staged update taking effect.
func NewConfigAppliedEvent(kind string, asset common.Address) *types.Event {
	return &types.Event{Type: TypeConfigApplied, Attributes: map[string]string{
		"kind":  kind,
		"asset": asset.Hex(),
	}}
}
