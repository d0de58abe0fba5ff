package market

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	nativecommon "moneta/native/common"
)

// rewardOwedInternal converts tracking accrual into reward token units.
func (e *Engine) rewardOwedInternal(accrued *big.Int) *big.Int {
	if accrued == nil || accrued.Sign() == 0 {
		return big.NewInt(0)
	}
	owed := new(big.Int).Mul(accrued, e.params.RewardScale)
	owed.Quo(owed, e.params.RescaleFactor)
	owed.Mul(owed, e.params.RewardMultiplier)
	owed.Quo(owed, factorScale)
	return owed
}

// RewardOwed returns the reward tokens claimable by account, accruing market
// and account tracking up to the current timestamp first.
func (e *Engine) RewardOwed(account common.Address) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	m, err := e.ensureMarket()
	if err != nil {
		return nil, err
	}
	e.accrueInternal(m)
	pos, err := e.ensurePosition(m, account)
	if err != nil {
		return nil, err
	}
	e.accrueAccountTracking(m, pos)
	return e.rewardOwedInternal(pos.BaseTrackingAccrued), nil
}

// ClaimReward settles account's tracking accrual and zeroes it, reporting
// the reward amount paid out. The host performs the actual reward token
// transfer to recipient.
func (e *Engine) ClaimReward(account, recipient common.Address) (*big.Int, error) {
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

	m, err := e.ensureMarket()
	if err != nil {
		return nil, err
	}
	e.accrueInternal(m)
	pos, err := e.ensurePosition(m, account)
	if err != nil {
		return nil, err
	}
	e.accrueAccountTracking(m, pos)

	owed := e.rewardOwedInternal(pos.BaseTrackingAccrued)
	pos.BaseTrackingAccrued = big.NewInt(0)

	if err := e.state.PutPosition(pos); err != nil {
		return nil, err
	}
	if err := e.state.PutMarket(m); err != nil {
		return nil, err
	}
	if owed.Sign() > 0 {
		e.emit(NewRewardClaimedEvent(account, recipient, owed))
	}
	return owed, nil
}
