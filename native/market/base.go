package market

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	nativecommon "moneta/native/common"
)

// Allow grants or revokes a manager's authority to operate on the owner's
// balances through the *From operation variants.
func (e *Engine) Allow(owner, manager common.Address, allowed bool) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if err := e.state.PutAllowance(owner, manager, allowed); err != nil {
		return err
	}
	e.emit(NewApprovalEvent(owner, manager, allowed))
	return nil
}

// HasPermission reports whether the manager may act for the owner. An owner
// always has permission over itself.
func (e *Engine) HasPermission(owner, manager common.Address) (bool, error) {
	if e == nil || e.state == nil {
		return false, ErrNilState
	}
	if owner == manager {
		return true, nil
	}
	return e.state.GetAllowance(owner, manager)
}

func (e *Engine) requirePermission(owner, operator common.Address) error {
	ok, err := e.HasPermission(owner, operator)
	if err != nil {
		return err
	}
	if !ok {
		return ErrUnauthorized
	}
	return nil
}

// Supply deposits base tokens for the caller's own account.
func (e *Engine) Supply(from common.Address, amount *big.Int) error {
	return e.SupplyFrom(from, from, from, amount)
}

// SupplyTo deposits base tokens from the caller credited to dst.
func (e *Engine) SupplyTo(from, dst common.Address, amount *big.Int) error {
	return e.SupplyFrom(from, from, dst, amount)
}

// SupplyFrom deposits base tokens from a managed account. The operator needs
// prior Allow authorization over from.
func (e *Engine) SupplyFrom(operator, from, dst common.Address, amount *big.Int) error {
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
	if m.Pauses.Supply {
		return ErrPaused
	}

	pos, err := e.ensurePosition(m, dst)
	if err != nil {
		return err
	}

	oldPrincipal := pos.Principal
	newPresent := new(big.Int).Add(presentValue(m, oldPrincipal), amount)
	newPrincipal := principalValue(m, newPresent)

	if err := applyAggregates(m, oldPrincipal, newPrincipal); err != nil {
		return err
	}
	e.updateBasePrincipal(m, pos, newPrincipal)
	m.BaseHeld.Add(m.BaseHeld, amount)

	if err := e.state.PutPosition(pos); err != nil {
		return err
	}
	if err := e.state.PutMarket(m); err != nil {
		return err
	}
	e.emit(NewSupplyEvent(from, dst, amount))
	return nil
}

// Withdraw redeems base tokens to the caller's own account, borrowing when
// the balance flips negative.
func (e *Engine) Withdraw(src common.Address, amount *big.Int) error {
	return e.WithdrawFrom(src, src, src, amount)
}

// WithdrawTo redeems base tokens from the caller paid out to to.
func (e *Engine) WithdrawTo(src, to common.Address, amount *big.Int) error {
	return e.WithdrawFrom(src, src, to, amount)
}

// WithdrawFrom redeems base tokens from a managed account.
func (e *Engine) WithdrawFrom(operator, src, to common.Address, amount *big.Int) error {
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
	if m.Pauses.Withdraw {
		return ErrPaused
	}

	pos, err := e.ensurePosition(m, src)
	if err != nil {
		return err
	}

	oldPrincipal := pos.Principal
	newPresent := new(big.Int).Sub(presentValue(m, oldPrincipal), amount)
	newPrincipal := principalValue(m, newPresent)

	if oldPrincipal.Sign() > 0 && m.Pauses.LendersWithdraw {
		return ErrLendersWithdrawPaused
	}
	if newPrincipal.Sign() < 0 {
		if m.Pauses.BorrowersWithdraw {
			return ErrBorrowersWithdrawPaused
		}
		if err := e.checkBorrow(m, pos, newPrincipal, newPresent); err != nil {
			return err
		}
	}
	if m.BaseHeld.Cmp(amount) < 0 {
		return ErrInsufficientLiquidity
	}

	if err := applyAggregates(m, oldPrincipal, newPrincipal); err != nil {
		return err
	}
	e.updateBasePrincipal(m, pos, newPrincipal)
	m.BaseHeld.Sub(m.BaseHeld, amount)

	if err := e.state.PutPosition(pos); err != nil {
		return err
	}
	if err := e.state.PutMarket(m); err != nil {
		return err
	}
	e.emit(NewWithdrawEvent(src, to, amount))
	return nil
}

// Transfer moves base present value between accounts without tokens leaving
// the market.
func (e *Engine) Transfer(from, dst common.Address, amount *big.Int) error {
	return e.TransferFrom(from, from, dst, amount)
}

// TransferFrom moves base present value out of a managed account.
func (e *Engine) TransferFrom(operator, from, dst common.Address, amount *big.Int) error {
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
	if m.Pauses.Transfer {
		return ErrPaused
	}

	srcPos, err := e.ensurePosition(m, from)
	if err != nil {
		return err
	}
	dstPos, err := e.ensurePosition(m, dst)
	if err != nil {
		return err
	}

	srcOld := srcPos.Principal
	dstOld := dstPos.Principal
	srcPresent := new(big.Int).Sub(presentValue(m, srcOld), amount)
	dstPresent := new(big.Int).Add(presentValue(m, dstOld), amount)
	srcNew := principalValue(m, srcPresent)
	dstNew := principalValue(m, dstPresent)

	if srcOld.Sign() > 0 && m.Pauses.LendersTransfer {
		return ErrLendersTransferPaused
	}
	if srcNew.Sign() < 0 {
		if m.Pauses.BorrowersTransfer {
			return ErrBorrowersTransferPaused
		}
		if err := e.checkBorrow(m, srcPos, srcNew, srcPresent); err != nil {
			return err
		}
	}

	if err := applyAggregates(m, srcOld, srcNew); err != nil {
		return err
	}
	if err := applyAggregates(m, dstOld, dstNew); err != nil {
		return err
	}
	e.updateBasePrincipal(m, srcPos, srcNew)
	e.updateBasePrincipal(m, dstPos, dstNew)

	if err := e.state.PutPosition(srcPos); err != nil {
		return err
	}
	if err := e.state.PutPosition(dstPos); err != nil {
		return err
	}
	if err := e.state.PutMarket(m); err != nil {
		return err
	}
	e.emit(NewTransferEvent(from, dst, amount))
	return nil
}

// checkBorrow validates a position moving to (or deeper into) the borrow
// side: the debt must clear the dust minimum and stay collateralized.
func (e *Engine) checkBorrow(m *MarketState, pos *Position, newPrincipal, newPresent *big.Int) error {
	debt := new(big.Int).Neg(newPresent)
	if min := e.params.BaseBorrowMin; min != nil && debt.Cmp(min) < 0 {
		return ErrBorrowTooSmall
	}
	ok, err := e.borrowCollateralizedAt(m, pos, newPrincipal)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotCollateralized
	}
	return nil
}

// BalanceOf returns the present-value supply balance, zero for borrowers.
func (e *Engine) BalanceOf(addr common.Address) (*big.Int, error) {
	m, err := e.ensureMarket()
	if err != nil {
		return nil, err
	}
	pos, err := e.ensurePosition(m, addr)
	if err != nil {
		return nil, err
	}
	if pos.Principal.Sign() <= 0 {
		return big.NewInt(0), nil
	}
	return presentValue(m, pos.Principal), nil
}

// BorrowBalanceOf returns the present-value debt magnitude, zero for lenders.
func (e *Engine) BorrowBalanceOf(addr common.Address) (*big.Int, error) {
	m, err := e.ensureMarket()
	if err != nil {
		return nil, err
	}
	pos, err := e.ensurePosition(m, addr)
	if err != nil {
		return nil, err
	}
	if pos.Principal.Sign() >= 0 {
		return big.NewInt(0), nil
	}
	return new(big.Int).Neg(presentValue(m, pos.Principal)), nil
}

// Reserves derives the protocol's base surplus: tokens held minus what is
// owed to suppliers plus what borrowers owe.
func (e *Engine) Reserves() (*big.Int, error) {
	m, err := e.ensureMarket()
	if err != nil {
		return nil, err
	}
	return reserves(m), nil
}

func reserves(m *MarketState) *big.Int {
	supplyOwed := new(big.Int).Mul(m.TotalSupplyBase, m.BaseSupplyIndex)
	supplyOwed.Quo(supplyOwed, indexScale)
	borrowOwed := new(big.Int).Mul(m.TotalBorrowBase, m.BaseBorrowIndex)
	borrowOwed.Quo(borrowOwed, indexScale)
	out := new(big.Int).Sub(m.BaseHeld, supplyOwed)
	return out.Add(out, borrowOwed)
}

// WithdrawReserves pays base reserves out to a recipient. Governor only.
func (e *Engine) WithdrawReserves(actor, to common.Address, amount *big.Int) error {
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
	if actor != e.params.Governor {
		return ErrUnauthorized
	}
	if err := validateAmount(amount); err != nil {
		return err
	}

	m, err := e.ensureMarket()
	if err != nil {
		return err
	}
	e.accrueInternal(m)

	if reserves(m).Cmp(amount) < 0 || m.BaseHeld.Cmp(amount) < 0 {
		return ErrInsufficientLiquidity
	}
	m.BaseHeld.Sub(m.BaseHeld, amount)

	if err := e.state.PutMarket(m); err != nil {
		return err
	}
	e.emit(NewWithdrawReservesEvent(to, amount))
	return nil
}

func validateAmount(amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	return checkUint128(amount)
}
