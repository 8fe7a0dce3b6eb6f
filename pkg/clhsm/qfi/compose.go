package qfi

import (
	"math/big"

	"github.com/cofhe/clhsm-go/pkg/clhsm/bigint"
)

// euclidBits is the partial Euclid stopping size for a NUCOMP bound L,
// rounded up to whole 64-bit limbs.
func euclidBits(L *big.Int) uint {
	n := uint(bigint.NBits(L))
	return 64 * ((n + 63) / 64)
}

// NuComp returns the reduced composition f1 * f2, or f1 * f2^-1 when negate
// is set. Both forms must be positive definite of the same discriminant; L
// bounds the partial Euclid step and is normally the fourth root of the
// absolute discriminant.
func NuComp(f1, f2 *QFI, L *big.Int, negate bool) *QFI {
	a1, b1, c1 := f1.a, f1.b, f1.c
	a2, b2, c2 := f2.a, f2.b, f2.c

	s := new(big.Int).Add(b1, b2)
	s.Rsh(s, 1)
	m := new(big.Int).Sub(b2, s)
	if negate {
		m, s = s.Neg(s), m.Neg(m)
	}

	u, v, F := bigint.GCDExt(a1, a2)
	var Ax, Bx, By *big.Int
	switch {
	case F.Cmp(one) == 0:
		Ax = big.NewInt(1)
		Bx = mul(m, v)
		By = new(big.Int).Set(a1)
	case new(big.Int).Mod(s, F).Sign() == 0:
		Ax = F
		Bx = mul(m, v)
		By = exact(a1, Ax)
	default:
		var y *big.Int
		_, y, Ax = bigint.GCDExt(F, s)
		H := exact(F, Ax)
		t0 := new(big.Int).Mod(c1, H)
		t1 := new(big.Int).Mod(c2, H)
		t0 = mulAdd(t0, v, t1, u)
		t0.Mod(t0, H)
		l := t0.Mul(t0, y)
		l.Mod(l, H)
		By = exact(a1, Ax)
		Bx = exact(mulAdd(v, m, l, By), H)
	}
	Cy := exact(a2, Ax)
	Dy := exact(s, Ax)
	Bx.Mod(Bx, By)

	Bx, by, M := bigint.PartialEuclid(Bx, By, euclidBits(L))

	Ay := mul(M.M10, Ax)
	Cx := exact(mulSub(Bx, Cy, m, M.M00), By)
	if Bx.Sign() == 0 {
		Cy = exact(mulSub(a2, by, Ay, m), a1)
	} else {
		Cy = exact(mulAdd(Cx, by, m, one), Bx)
	}
	Dx := exact(mulSub(Bx, Dy, c2, M.M00), By)
	Dy = exact(mulAdd(Dx, M.M10, Dy, one), M.M00)
	Ax = mul(Ax, M.M00)

	r := &QFI{
		a: mulSub(by, Cy, Ay, Dy),
		b: new(big.Int).Sub(mulAdd(Ax, Dy, Ay, Dx), mulAdd(Bx, Cy, by, Cx)),
		c: mulSub(Bx, Cx, Ax, Dx),
	}
	r.Reduce()
	return r
}

// NuDupl returns the reduced square of f.
func NuDupl(f *QFI, L *big.Int) *QFI {
	m11, m01, Ax := bigint.GCDExt(f.a, f.b)
	a, b := f.a, f.b
	if Ax.Cmp(one) != 0 {
		a = exact(a, Ax)
		b = exact(b, Ax)
	}
	Dx := mul(f.c, m11)
	Dx.Neg(Dx)
	t0, c := fdivQR(mul(f.c, m01), a)
	Dx.Sub(Dx, t0.Mul(t0, b))

	c, a, M := bigint.PartialEuclid(c, a, euclidBits(L))

	t1 := mul(Ax, M.M10)
	Ax = mul(Ax, M.M00)
	Dx, b = mulAdd(Dx, M.M00, b, M.M01), mulAdd(b, M.M11, Dx, M.M10)

	nb := mulAdd(Ax, b, t1, Dx)
	ac := mul(a, c)
	nb.Sub(nb, ac.Lsh(ac, 1))
	r := &QFI{
		a: mulSub(a, a, t1, b),
		b: nb,
		c: mulSub(c, c, Ax, Dx),
	}
	r.Reduce()
	return r
}
