package market

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// State is the persistence boundary the engine operates through. Backends
// must return deep copies so a failed operation never leaves partial
// mutation behind; the engine writes records back explicitly.
type State interface {
	GetMarket() (*MarketState, error)
	PutMarket(*MarketState) error
	GetPosition(addr common.Address) (*Position, error)
	PutPosition(*Position) error
	GetLiquidatorPoints(addr common.Address) (*LiquidatorPoints, error)
	PutLiquidatorPoints(addr common.Address, points *LiquidatorPoints) error
	GetAllowance(owner, manager common.Address) (bool, error)
	PutAllowance(owner, manager common.Address, allowed bool) error
}

// PriceSource resolves oracle feeds to priceScale-scaled prices. The engine
// treats the returned answer as ground truth; staleness is the feed's
// responsibility.
type PriceSource interface {
	Price(feed string) (*big.Int, error)
}
