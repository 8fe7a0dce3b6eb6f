package bigint

import (
	"math/big"

	"github.com/cofhe/clhsm-go/pkg/clhsm"
)

// CeilAbsLogSqr returns ceil(ln(|n|)^2). The logarithm is evaluated with
// big.Float at NBits(n)+64 bits of precision so the ceiling is exact for
// every input not within 2^-64 of an integer.
func CeilAbsLogSqr(n *big.Int) (int, error) {
	if n.Sign() == 0 {
		return 0, clhsm.Errorf("bigint.CeilAbsLogSqr", clhsm.ErrInvalidArgument, "logarithm of zero")
	}
	if n.CmpAbs(one) == 0 {
		return 0, nil
	}
	prec := uint(NBits(n))
	if prec < 64 {
		prec = 64
	}
	prec += 64

	// |n| = mant * 2^exp with mant in [0.5, 1).
	x := new(big.Float).SetPrec(prec).SetInt(Abs(n))
	mant := new(big.Float).SetPrec(prec)
	exp := x.MantExp(mant)

	ln := lnNear1(mant, prec)
	ln2 := lnNear1(new(big.Float).SetPrec(prec).SetInt64(2), prec)
	ln2.Mul(ln2, new(big.Float).SetPrec(prec).SetInt64(int64(exp)))
	ln.Add(ln, ln2)
	ln.Mul(ln, ln)

	r, acc := ln.Int(nil)
	if acc == big.Below {
		r.Add(r, one)
	}
	return int(r.Int64()), nil
}

// lnNear1 evaluates ln(x) = 2*atanh((x-1)/(x+1)) by its power series. It
// converges quickly for x in [0.5, 2].
func lnNear1(x *big.Float, prec uint) *big.Float {
	fOne := new(big.Float).SetPrec(prec).SetInt64(1)
	num := new(big.Float).SetPrec(prec).Sub(x, fOne)
	den := new(big.Float).SetPrec(prec).Add(x, fOne)
	y := new(big.Float).SetPrec(prec).Quo(num, den)
	y2 := new(big.Float).SetPrec(prec).Mul(y, y)

	sum := new(big.Float).SetPrec(prec)
	pow := new(big.Float).SetPrec(prec).Set(y)
	term := new(big.Float).SetPrec(prec)
	for j := int64(0); ; j++ {
		term.Quo(pow, new(big.Float).SetPrec(prec).SetInt64(2*j+1))
		if term.Sign() == 0 {
			break
		}
		sum.Add(sum, term)
		if term.MantExp(nil)-sum.MantExp(nil) < -int(prec) {
			break
		}
		pow.Mul(pow, y2)
	}
	return sum.Mul(sum, new(big.Float).SetPrec(prec).SetInt64(2))
}
