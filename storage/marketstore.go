package storage

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"moneta/native/market"
)

// Key layout. Addresses are appended raw; the prefixes keep record families
// disjoint.
var (
	keyMarket          = []byte("market/state")
	prefixPosition     = []byte("market/position/")
	prefixPoints       = []byte("market/points/")
	prefixAllowance    = []byte("market/allowance/")
	allowanceSeparator = byte(':')
)

// MarketStore persists market engine records as JSON in a Database. It
// satisfies the engine's state interface: all reads return fresh copies, so
// a failed operation never leaks partial mutation back into storage.
type MarketStore struct {
	db Database
}

// NewMarketStore wraps the given database.
func NewMarketStore(db Database) *MarketStore {
	return &MarketStore{db: db}
}

func positionKey(addr common.Address) []byte {
	return append(append([]byte{}, prefixPosition...), addr.Bytes()...)
}

func pointsKey(addr common.Address) []byte {
	return append(append([]byte{}, prefixPoints...), addr.Bytes()...)
}

func allowanceKey(owner, manager common.Address) []byte {
	key := append(append([]byte{}, prefixAllowance...), owner.Bytes()...)
	key = append(key, allowanceSeparator)
	return append(key, manager.Bytes()...)
}

// GetMarket loads the singleton market record, nil when uninitialized.
func (s *MarketStore) GetMarket() (*market.MarketState, error) {
	raw, err := s.db.Get(keyMarket)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var state market.MarketState
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("storage: decode market: %w", err)
	}
	return &state, nil
}

// PutMarket writes the singleton market record.
func (s *MarketStore) PutMarket(state *market.MarketState) error {
	if state == nil {
		return fmt.Errorf("storage: nil market")
	}
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("storage: encode market: %w", err)
	}
	return s.db.Put(keyMarket, raw)
}

// GetPosition loads an account position, nil when the account is unknown.
func (s *MarketStore) GetPosition(addr common.Address) (*market.Position, error) {
	raw, err := s.db.Get(positionKey(addr))
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var pos market.Position
	if err := json.Unmarshal(raw, &pos); err != nil {
		return nil, fmt.Errorf("storage: decode position: %w", err)
	}
	return &pos, nil
}

// PutPosition writes an account position keyed by its address.
func (s *MarketStore) PutPosition(pos *market.Position) error {
	if pos == nil {
		return fmt.Errorf("storage: nil position")
	}
	raw, err := json.Marshal(pos)
	if err != nil {
		return fmt.Errorf("storage: encode position: %w", err)
	}
	return s.db.Put(positionKey(pos.Address), raw)
}

// GetLiquidatorPoints loads absorb counters, nil for unknown liquidators.
func (s *MarketStore) GetLiquidatorPoints(addr common.Address) (*market.LiquidatorPoints, error) {
	raw, err := s.db.Get(pointsKey(addr))
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var points market.LiquidatorPoints
	if err := json.Unmarshal(raw, &points); err != nil {
		return nil, fmt.Errorf("storage: decode liquidator points: %w", err)
	}
	return &points, nil
}

// PutLiquidatorPoints writes absorb counters for a liquidator.
func (s *MarketStore) PutLiquidatorPoints(addr common.Address, points *market.LiquidatorPoints) error {
	if points == nil {
		return fmt.Errorf("storage: nil liquidator points")
	}
	raw, err := json.Marshal(points)
	if err != nil {
		return fmt.Errorf("storage: encode liquidator points: %w", err)
	}
	return s.db.Put(pointsKey(addr), raw)
}

// GetAllowance reports whether manager may operate on owner's balances.
func (s *MarketStore) GetAllowance(owner, manager common.Address) (bool, error) {
	ok, err := s.db.Has(allowanceKey(owner, manager))
	if err != nil {
		return false, err
	}
	return ok, nil
}

// PutAllowance stores or clears an operator grant. Revocations delete the
// key so the allowance set stays sparse.
func (s *MarketStore) PutAllowance(owner, manager common.Address, allowed bool) error {
	key := allowanceKey(owner, manager)
	if !allowed {
		return s.db.Delete(key)
	}
	return s.db.Put(key, []byte{1})
}
