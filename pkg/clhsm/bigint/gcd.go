package bigint

import (
	"math/big"

	"github.com/cofhe/clhsm-go/pkg/clhsm"
)

// GCD returns gcd(|a|, |b|).
func GCD(a, b *big.Int) *big.Int {
	return new(big.Int).GCD(nil, nil, a, b)
}

// GCDExt returns x, y and g = gcd(a, b) >= 0 with a*x + b*y = g. Zero
// operands follow the usual convention: GCDExt(0, b) = (0, sign(b), |b|),
// GCDExt(a, 0) = (sign(a), 0, |a|) and GCDExt(0, 0) = (1, 0, 0).
func GCDExt(a, b *big.Int) (x, y, g *big.Int) {
	if a.Sign() == 0 && b.Sign() == 0 {
		return big.NewInt(1), new(big.Int), new(big.Int)
	}
	x, y = new(big.Int), new(big.Int)
	g = new(big.Int).GCD(x, y, a, b)
	return x, y, g
}

// ModInverse returns the inverse of a modulo m in [0, m).
func ModInverse(a, m *big.Int) (*big.Int, error) {
	const op = "bigint.ModInverse"
	if m.Sign() <= 0 {
		return nil, clhsm.Errorf(op, clhsm.ErrInvalidArgument, "modulus must be positive")
	}
	if m.Cmp(one) == 0 {
		return new(big.Int), nil
	}
	r := new(big.Int).Mod(a, m)
	if r.Sign() == 0 {
		return nil, clhsm.Wrap(op, clhsm.ErrNoInverse)
	}
	if r.ModInverse(r, m) == nil {
		return nil, clhsm.Wrap(op, clhsm.ErrNoInverse)
	}
	return r, nil
}

// ModInverse2Exp returns the inverse of the odd integer a modulo 2^k in
// [0, 2^k), lifted by Newton iteration r <- r(2 - ra).
func ModInverse2Exp(a *big.Int, k uint) (*big.Int, error) {
	const op = "bigint.ModInverse2Exp"
	if k < 1 {
		return nil, clhsm.Errorf(op, clhsm.ErrInvalidArgument, "k must be at least 1")
	}
	if a.Bit(0) == 0 {
		return nil, clhsm.Wrap(op, clhsm.ErrEvenValue)
	}
	m := Pow2(k)
	aa := new(big.Int).Mod(a, m)
	r := big.NewInt(1)
	t := new(big.Int)
	for i := uint(1); i < k; i <<= 1 {
		t.Mul(r, aa)
		t.Sub(two, t)
		r.Mul(r, t)
		r.Mod(r, Pow2(i<<1))
	}
	return r.Mod(r, m), nil
}
