package bigint

import (
	"math/big"

	"github.com/cofhe/clhsm-go/pkg/clhsm"
)

// Sqrt returns floor(sqrt(a)) for a >= 0.
func Sqrt(a *big.Int) (*big.Int, error) {
	if a.Sign() < 0 {
		return nil, clhsm.Errorf("bigint.Sqrt", clhsm.ErrInvalidArgument, "square root of negative value")
	}
	return new(big.Int).Sqrt(a), nil
}

// FourthRoot returns floor(a^(1/4)) for a >= 0.
func FourthRoot(a *big.Int) (*big.Int, error) {
	if a.Sign() < 0 {
		return nil, clhsm.Errorf("bigint.FourthRoot", clhsm.ErrInvalidArgument, "fourth root of negative value")
	}
	r := new(big.Int).Sqrt(a)
	return r.Sqrt(r), nil
}

// SqrtAbs returns floor(sqrt(|a|)).
func SqrtAbs(a *big.Int) *big.Int {
	return new(big.Int).Sqrt(Abs(a))
}

// FourthRootAbs returns floor(|a|^(1/4)).
func FourthRootAbs(a *big.Int) *big.Int {
	r := SqrtAbs(a)
	return r.Sqrt(r)
}

// SqrtModPrime returns a square root of s modulo the odd prime l using
// Tonelli-Shanks with the smallest quadratic non-residue. s must be a
// quadratic residue; the result is unspecified otherwise.
func SqrtModPrime(s, l *big.Int) (*big.Int, error) {
	const op = "bigint.SqrtModPrime"
	if l.Cmp(two) <= 0 || l.Bit(0) == 0 {
		return nil, clhsm.Errorf(op, clhsm.ErrInvalidArgument, "modulus must be an odd prime")
	}
	q := new(big.Int).Sub(l, one)
	m := q.TrailingZeroBits()
	q.Rsh(q, m)

	z := big.NewInt(1)
	for Kronecker(z, l) != -1 {
		z.Add(z, one)
	}
	c := new(big.Int).Exp(z, q, l)
	ss := new(big.Int).Mod(s, l)
	t := new(big.Int).Exp(ss, q, l)
	e := new(big.Int).Add(q, one)
	e.Rsh(e, 1)
	r := new(big.Int).Exp(ss, e, l)

	tmp, b := new(big.Int), new(big.Int)
	for t.Sign() != 0 && t.Cmp(one) != 0 {
		i := uint(0)
		tmp.Set(t)
		for tmp.Cmp(one) != 0 {
			i++
			if i >= m {
				return nil, clhsm.Errorf(op, clhsm.ErrArithmeticPrecondition, "value is not a quadratic residue")
			}
			tmp.Mul(tmp, tmp).Mod(tmp, l)
		}
		b.Exp(c, Pow2(m-i-1), l)
		m = i
		c.Mul(b, b).Mod(c, l)
		t.Mul(t, c).Mod(t, l)
		r.Mul(r, b).Mod(r, l)
	}
	if t.Sign() == 0 {
		r.SetInt64(0)
	}
	return r, nil
}
