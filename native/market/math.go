package market

import "math/big"

// Fixed-point denominators. Indexes run at indexScale, risk factors and
// utilization at factorScale, oracle prices at priceScale.
var (
	indexScale         = big.NewInt(1_000_000_000_000_000) // 1e15
	factorScale        = mustBigInt("1000000000000000000") // 1e18
	priceScale         = big.NewInt(100_000_000)           // 1e8
	trackingIndexScale = big.NewInt(1_000_000_000_000_000) // 1e15
	maxUint128         = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))
)

func mustBigInt(value string) *big.Int {
	v, ok := new(big.Int).SetString(value, 10)
	if !ok {
		panic("invalid big integer constant")
	}
	return v
}

func pow10(decimals uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
}

// mulFactor applies a factorScale-scaled factor, truncating toward zero.
func mulFactor(amount, factor *big.Int) *big.Int {
	if amount == nil || factor == nil {
		return big.NewInt(0)
	}
	out := new(big.Int).Mul(amount, factor)
	return out.Quo(out, factorScale)
}

// divFactor divides by a factorScale-scaled factor, truncating toward zero.
func divFactor(amount, factor *big.Int) *big.Int {
	if amount == nil || factor == nil || factor.Sign() == 0 {
		return big.NewInt(0)
	}
	out := new(big.Int).Mul(amount, factorScale)
	return out.Quo(out, factor)
}

// mulPrice converts an asset amount into a priceScale-scaled USD value.
func mulPrice(amount, price, scale *big.Int) *big.Int {
	if amount == nil || price == nil || scale == nil || scale.Sign() == 0 {
		return big.NewInt(0)
	}
	out := new(big.Int).Mul(amount, price)
	return out.Quo(out, scale)
}

// divPrice converts a priceScale-scaled USD value into units at the target
// scale.
func divPrice(value, price, scale *big.Int) *big.Int {
	if value == nil || price == nil || price.Sign() == 0 {
		return big.NewInt(0)
	}
	out := new(big.Int).Mul(value, scale)
	return out.Quo(out, price)
}

func checkUint128(v *big.Int) error {
	if v == nil || v.Sign() < 0 || v.Cmp(maxUint128) > 0 {
		return ErrInvalidUInt128
	}
	return nil
}

func minInt(a, b *big.Int) *big.Int {
	if a.Cmp(b) < 0 {
		return a
	}
	return b
}

// signedMinZero returns min(v, 0).
func signedMinZero(v *big.Int) *big.Int {
	if v.Sign() < 0 {
		return new(big.Int).Set(v)
	}
	return big.NewInt(0)
}

// signedMaxZero returns max(v, 0).
func signedMaxZero(v *big.Int) *big.Int {
	if v.Sign() > 0 {
		return new(big.Int).Set(v)
	}
	return big.NewInt(0)
}
