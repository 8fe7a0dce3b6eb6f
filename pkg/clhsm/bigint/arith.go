package bigint

import (
	"math"
	"math/big"

	"github.com/cofhe/clhsm-go/pkg/clhsm"
)

// Val2Infinity is returned by Val2 for zero, which is divisible by every
// power of two.
const Val2Infinity = math.MaxInt

var (
	zero = big.NewInt(0)
	one  = big.NewInt(1)
	two  = big.NewInt(2)
)

// Abs returns |n| as a new integer.
func Abs(n *big.Int) *big.Int {
	return new(big.Int).Abs(n)
}

// Mod returns n mod d in [0, |d|).
func Mod(n, d *big.Int) (*big.Int, error) {
	if d.Sign() == 0 {
		return nil, clhsm.Wrap("bigint.Mod", clhsm.ErrDivisionByZero)
	}
	return new(big.Int).Mod(n, d), nil
}

// AbsMod returns |n| mod d.
func AbsMod(n, d *big.Int) (*big.Int, error) {
	if d.Sign() == 0 {
		return nil, clhsm.Wrap("bigint.AbsMod", clhsm.ErrDivisionByZero)
	}
	return new(big.Int).Mod(Abs(n), d), nil
}

// FDivQR returns q = floor(n/d) and r = n - q*d.
func FDivQR(n, d *big.Int) (q, r *big.Int, err error) {
	if d.Sign() == 0 {
		return nil, nil, clhsm.Wrap("bigint.FDivQR", clhsm.ErrDivisionByZero)
	}
	q, r = new(big.Int).QuoRem(n, d, new(big.Int))
	// Truncated remainder carries the sign of n; step down when it
	// disagrees with d.
	if r.Sign() != 0 && r.Sign() != d.Sign() {
		q.Sub(q, one)
		r.Add(r, d)
	}
	return q, r, nil
}

// CDivQR returns q = ceil(n/d) and r = n - q*d.
func CDivQR(n, d *big.Int) (q, r *big.Int, err error) {
	if d.Sign() == 0 {
		return nil, nil, clhsm.Wrap("bigint.CDivQR", clhsm.ErrDivisionByZero)
	}
	q, r = new(big.Int).QuoRem(n, d, new(big.Int))
	if r.Sign() != 0 && r.Sign() == d.Sign() {
		q.Add(q, one)
		r.Sub(r, d)
	}
	return q, r, nil
}

// DivBy2 returns floor(n/2).
func DivBy2(n *big.Int) *big.Int {
	return new(big.Int).Rsh(n, 1)
}

// DivBy2k returns floor(n/2^k).
func DivBy2k(n *big.Int, k uint) *big.Int {
	return new(big.Int).Rsh(n, k)
}

// Pow2 returns 2^k.
func Pow2(k uint) *big.Int {
	return new(big.Int).Lsh(one, k)
}

// Mod2kCentered returns the representative of n modulo 2^k in
// [-2^(k-1), 2^(k-1)). For k = 0 the result is 0.
func Mod2kCentered(n *big.Int, k uint) *big.Int {
	if k == 0 {
		return new(big.Int)
	}
	m := Pow2(k)
	r := new(big.Int).Mod(n, m)
	if r.Bit(int(k-1)) == 1 {
		r.Sub(r, m)
	}
	return r
}

// CmpAbs compares |a| and |b|.
func CmpAbs(a, b *big.Int) int {
	return a.CmpAbs(b)
}

// NBits returns the bit length of |n|, with NBits(0) = 1.
func NBits(n *big.Int) int {
	if n.Sign() == 0 {
		return 1
	}
	return n.BitLen()
}

// Val2 returns the 2-adic valuation of n, or Val2Infinity for zero.
func Val2(n *big.Int) int {
	if n.Sign() == 0 {
		return Val2Infinity
	}
	return int(n.TrailingZeroBits())
}

// Log2 returns floor(log2(n)) for n > 0.
func Log2(n *big.Int) (int, error) {
	if n.Sign() <= 0 {
		return 0, clhsm.Errorf("bigint.Log2", clhsm.ErrInvalidArgument, "log2 of nonpositive value")
	}
	return n.BitLen() - 1, nil
}

// TestBit reports bit i of n in two's complement.
func TestBit(n *big.Int, i uint) bool {
	return n.Bit(int(i)) == 1
}

// SetBit returns n with bit i set, in two's complement.
func SetBit(n *big.Int, i uint) *big.Int {
	return new(big.Int).SetBit(n, int(i), 1)
}

// ClearBit returns n with bit i cleared, in two's complement.
func ClearBit(n *big.Int, i uint) *big.Int {
	return new(big.Int).SetBit(n, int(i), 0)
}

// ExtractBits returns the len bits of |n| ending at bit index (inclusive),
// that is bits index-len+1 .. index. Positions below zero read as zero, so
// the window is shifted left when index < len-1. length must not exceed 64.
func ExtractBits(n *big.Int, index, length uint) uint64 {
	if length == 0 {
		return 0
	}
	v := Abs(n)
	if index+1 >= length {
		v.Rsh(v, index+1-length)
	} else {
		v.Lsh(v, length-index-1)
	}
	mask := new(big.Int).Sub(Pow2(length), one)
	v.And(v, mask)
	return v.Uint64()
}
