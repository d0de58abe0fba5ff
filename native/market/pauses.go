package market

import "github.com/ethereum/go-ethereum/common"

// Pause flag names used in pause action events.
const (
	FlagSupply             = "supply"
	FlagWithdraw           = "withdraw"
	FlagTransfer           = "transfer"
	FlagAbsorb             = "absorb"
	FlagBuy                = "buy"
	FlagLendersWithdraw    = "lendersWithdraw"
	FlagBorrowersWithdraw  = "borrowersWithdraw"
	FlagLendersTransfer    = "lendersTransfer"
	FlagBorrowersTransfer  = "borrowersTransfer"
	FlagCollateralSupply   = "collateralSupply"
	FlagCollateralWithdraw = "collateralWithdraw"
	FlagCollateralTransfer = "collateralTransfer"
)

func (e *Engine) requirePauseAuthority(actor common.Address) error {
	if actor != e.params.Governor && actor != e.params.PauseGuardian {
		return ErrUnauthorized
	}
	return nil
}

func (e *Engine) setFlag(actor common.Address, flag string, target *bool, paused bool) error {
	if *target == paused {
		return ErrAlreadySet
	}
	*target = paused
	e.emit(NewPauseActionEvent(actor, flag, -1, paused))
	return nil
}

func (e *Engine) togglePause(actor common.Address, apply func(*MarketState) error) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if err := e.requirePauseAuthority(actor); err != nil {
		return err
	}
	m, err := e.ensureMarket()
	if err != nil {
		return err
	}
	if err := apply(m); err != nil {
		return err
	}
	return e.state.PutMarket(m)
}

// PauseSupply halts all base supply operations.
func (e *Engine) PauseSupply(actor common.Address, paused bool) error {
	return e.togglePause(actor, func(m *MarketState) error {
		return e.setFlag(actor, FlagSupply, &m.Pauses.Supply, paused)
	})
}

// PauseWithdraw halts all base withdraw operations.
func (e *Engine) PauseWithdraw(actor common.Address, paused bool) error {
	return e.togglePause(actor, func(m *MarketState) error {
		return e.setFlag(actor, FlagWithdraw, &m.Pauses.Withdraw, paused)
	})
}

// PauseTransfer halts all base transfer operations.
func (e *Engine) PauseTransfer(actor common.Address, paused bool) error {
	return e.togglePause(actor, func(m *MarketState) error {
		return e.setFlag(actor, FlagTransfer, &m.Pauses.Transfer, paused)
	})
}

// PauseAbsorb halts liquidation, both full and partial.
func (e *Engine) PauseAbsorb(actor common.Address, paused bool) error {
	return e.togglePause(actor, func(m *MarketState) error {
		return e.setFlag(actor, FlagAbsorb, &m.Pauses.Absorb, paused)
	})
}

// PauseBuy halts storefront collateral sales.
func (e *Engine) PauseBuy(actor common.Address, paused bool) error {
	return e.togglePause(actor, func(m *MarketState) error {
		return e.setFlag(actor, FlagBuy, &m.Pauses.Buy, paused)
	})
}

// PauseLendersWithdraw halts withdrawals by accounts with positive principal.
func (e *Engine) PauseLendersWithdraw(actor common.Address, paused bool) error {
	return e.togglePause(actor, func(m *MarketState) error {
		return e.setFlag(actor, FlagLendersWithdraw, &m.Pauses.LendersWithdraw, paused)
	})
}

// PauseBorrowersWithdraw halts withdrawals that open or deepen a borrow.
func (e *Engine) PauseBorrowersWithdraw(actor common.Address, paused bool) error {
	return e.togglePause(actor, func(m *MarketState) error {
		return e.setFlag(actor, FlagBorrowersWithdraw, &m.Pauses.BorrowersWithdraw, paused)
	})
}

// PauseLendersTransfer halts base transfers out of lender balances.
func (e *Engine) PauseLendersTransfer(actor common.Address, paused bool) error {
	return e.togglePause(actor, func(m *MarketState) error {
		return e.setFlag(actor, FlagLendersTransfer, &m.Pauses.LendersTransfer, paused)
	})
}

// PauseBorrowersTransfer halts base transfers that open or deepen a borrow.
func (e *Engine) PauseBorrowersTransfer(actor common.Address, paused bool) error {
	return e.togglePause(actor, func(m *MarketState) error {
		return e.setFlag(actor, FlagBorrowersTransfer, &m.Pauses.BorrowersTransfer, paused)
	})
}

// PauseCollateralSupply halts collateral supply across all assets.
func (e *Engine) PauseCollateralSupply(actor common.Address, paused bool) error {
	return e.togglePause(actor, func(m *MarketState) error {
		return e.setFlag(actor, FlagCollateralSupply, &m.Pauses.CollateralSupply, paused)
	})
}

// PauseCollateralWithdraw halts collateral withdrawal across all assets.
func (e *Engine) PauseCollateralWithdraw(actor common.Address, paused bool) error {
	return e.togglePause(actor, func(m *MarketState) error {
		return e.setFlag(actor, FlagCollateralWithdraw, &m.Pauses.CollateralWithdraw, paused)
	})
}

// PauseCollateralTransfer halts collateral transfer across all assets.
func (e *Engine) PauseCollateralTransfer(actor common.Address, paused bool) error {
	return e.togglePause(actor, func(m *MarketState) error {
		return e.setFlag(actor, FlagCollateralTransfer, &m.Pauses.CollateralTransfer, paused)
	})
}

func (e *Engine) setAssetFlag(actor common.Address, flag string, flags []bool, offset int, paused bool) error {
	if offset < 0 || offset >= len(flags) {
		return ErrInvalidAssetIndex
	}
	if flags[offset] == paused {
		return ErrCollateralAssetAlreadySet
	}
	flags[offset] = paused
	e.emit(NewPauseActionEvent(actor, flag, offset, paused))
	return nil
}

// PauseCollateralAssetSupply halts collateral supply for one asset.
func (e *Engine) PauseCollateralAssetSupply(actor common.Address, offset int, paused bool) error {
	return e.togglePause(actor, func(m *MarketState) error {
		return e.setAssetFlag(actor, FlagCollateralSupply, m.Pauses.CollateralAssetSupply, offset, paused)
	})
}

// PauseCollateralAssetWithdraw halts collateral withdrawal for one asset.
func (e *Engine) PauseCollateralAssetWithdraw(actor common.Address, offset int, paused bool) error {
	return e.togglePause(actor, func(m *MarketState) error {
		return e.setAssetFlag(actor, FlagCollateralWithdraw, m.Pauses.CollateralAssetWithdraw, offset, paused)
	})
}

// PauseCollateralAssetTransfer halts collateral transfer for one asset.
func (e *Engine) PauseCollateralAssetTransfer(actor common.Address, offset int, paused bool) error {
	return e.togglePause(actor, func(m *MarketState) error {
		return e.setAssetFlag(actor, FlagCollateralTransfer, m.Pauses.CollateralAssetTransfer, offset, paused)
	})
}
