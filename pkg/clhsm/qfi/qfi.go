package qfi

import (
	"fmt"
	"math/big"

	"github.com/cofhe/clhsm-go/pkg/clhsm"
	"github.com/cofhe/clhsm-go/pkg/clhsm/bigint"
)

// QFI is the binary quadratic form a*x^2 + b*x*y + c*y^2 with negative
// discriminant b^2 - 4ac.
//
// Methods with pointer receivers that return nothing modify the form in place.
// A QFI never shares its coefficients with another QFI or with the caller.
type QFI struct {
	a, b, c *big.Int
}

// New returns the form (a, b, c). The coefficients are copied.
func New(a, b, c *big.Int) *QFI {
	return &QFI{
		a: new(big.Int).Set(a),
		b: new(big.Int).Set(b),
		c: new(big.Int).Set(c),
	}
}

// NewFromDisc returns (a, b, c) with c computed from disc, which must make
// b^2 - disc divisible by 4a.
func NewFromDisc(a, b, disc *big.Int) (*QFI, error) {
	f := &QFI{a: new(big.Int).Set(a), b: new(big.Int).Set(b), c: new(big.Int)}
	if err := f.SetCFromDisc(disc); err != nil {
		return nil, err
	}
	return f, nil
}

// A returns a copy of the first coefficient.
func (f *QFI) A() *big.Int { return new(big.Int).Set(f.a) }

// B returns a copy of the middle coefficient.
func (f *QFI) B() *big.Int { return new(big.Int).Set(f.b) }

// C returns a copy of the last coefficient.
func (f *QFI) C() *big.Int { return new(big.Int).Set(f.c) }

// Clone returns a deep copy of f.
func (f *QFI) Clone() *QFI {
	return New(f.a, f.b, f.c)
}

// Discriminant returns b^2 - 4ac.
func (f *QFI) Discriminant() *big.Int {
	d := new(big.Int).Mul(f.b, f.b)
	ac := new(big.Int).Mul(f.a, f.c)
	return d.Sub(d, ac.Lsh(ac, 2))
}

// IsOne reports whether f is the reduced identity form, which is the only
// reduced form with a = 1.
func (f *QFI) IsOne() bool {
	return f.a.Cmp(one) == 0
}

// Equal reports whether f and g have the same coefficients. Equivalent but
// distinct forms are not equal; reduce both first to compare classes.
func (f *QFI) Equal(g *QFI) bool {
	if f == nil || g == nil {
		return f == g
	}
	return f.a.Cmp(g.a) == 0 && f.b.Cmp(g.b) == 0 && f.c.Cmp(g.c) == 0
}

func (f *QFI) String() string {
	return fmt.Sprintf("(%s, %s, %s)", f.a, f.b, f.c)
}

// Eval returns a*x^2 + b*x*y + c*y^2.
func (f *QFI) Eval(x, y *big.Int) *big.Int {
	r := new(big.Int).Mul(f.a, x)
	r.Add(r, new(big.Int).Mul(f.b, y))
	r.Mul(r, x)
	cy2 := new(big.Int).Mul(f.c, y)
	cy2.Mul(cy2, y)
	return r.Add(r, cy2)
}

// Normalize brings b into (-a, a] with an equivalent form.
func (f *QFI) Normalize() {
	q, r := cdivQR(f.b, f.a)
	if q.Bit(0) == 1 {
		r.Add(r, f.a)
	}
	q.Rsh(q, 1)
	// (b + b') / 2 is exact since b and b' share parity.
	s := new(big.Int).Add(f.b, r)
	s.Rsh(s, 1)
	f.b = r
	f.c.Sub(f.c, s.Mul(s, q))
}

// Rho applies one reduction step: (a, b, c) -> (c, -b, a), normalized.
func (f *QFI) Rho() {
	f.a, f.c = f.c, f.a
	f.b.Neg(f.b)
	f.Normalize()
}

// Reduce replaces f with the unique reduced form of its class:
// |b| <= a <= c, and b >= 0 when |b| = a or a = c.
func (f *QFI) Reduce() {
	f.Normalize()
	for bigint.CmpAbs(f.a, f.c) > 0 {
		f.Rho()
	}
	if bigint.CmpAbs(f.a, f.c) == 0 && f.b.Sign() < 0 {
		f.b.Neg(f.b)
	}
}

// Neg replaces f with its inverse class. Reduced forms with a = b or a = c
// are their own inverse and are left untouched.
func (f *QFI) Neg() {
	if f.a.Cmp(f.c) != 0 && f.a.Cmp(f.b) != 0 {
		f.b.Neg(f.b)
	}
}

// PrimeTo replaces f with an equivalent form whose a is coprime to l.
// It assumes f is reduced and primitive.
func (f *QFI) PrimeTo(l *big.Int) {
	if bigint.GCD(f.a, l).Cmp(one) == 0 {
		return
	}
	if bigint.GCD(f.c, l).Cmp(one) != 0 {
		f.toSumForm()
		return
	}
	f.toSwappedForm()
}

// PrimeTo2Exp is PrimeTo for l a power of two.
func (f *QFI) PrimeTo2Exp() {
	if f.a.Bit(0) == 1 {
		return
	}
	if f.c.Bit(0) == 0 {
		f.toSumForm()
		return
	}
	f.toSwappedForm()
}

// toSumForm maps f to (a + b + c, -b - 2a, a), whose first coefficient is
// f(1, 1).
func (f *QFI) toSumForm() {
	na := new(big.Int).Add(f.a, f.b)
	na.Add(na, f.c)
	nb := new(big.Int).Lsh(f.a, 1)
	nb.Add(nb, f.b)
	nb.Neg(nb)
	f.a, f.b, f.c = na, nb, f.a
}

func (f *QFI) toSwappedForm() {
	f.a, f.c = f.c, f.a
	f.b.Neg(f.b)
}

// SetCFromDisc recomputes c = (b^2 - disc) / 4a.
func (f *QFI) SetCFromDisc(disc *big.Int) error {
	const op = "qfi.SetCFromDisc"
	if f.a.Sign() == 0 {
		return clhsm.Errorf(op, clhsm.ErrDivisionByZero, "a is zero")
	}
	num := new(big.Int).Mul(f.b, f.b)
	num.Sub(num, disc)
	den := new(big.Int).Lsh(f.a, 2)
	q, r := new(big.Int).QuoRem(num, den, new(big.Int))
	if r.Sign() != 0 {
		return clhsm.Errorf(op, clhsm.ErrInvariantViolation, "b^2 - disc is not divisible by 4a")
	}
	f.c = q
	return nil
}

// Lift maps f from the order of conductor 1 to the order of conductor l,
// multiplying the discriminant by l^2. The result is reduced.
func (f *QFI) Lift(l *big.Int) {
	f.PrimeTo(l)
	f.b.Mul(f.b, l)
	f.c.Mul(f.c, l)
	f.c.Mul(f.c, l)
	f.Reduce()
}

// Lift2Exp is Lift for l = 2^k. The result is not reduced.
func (f *QFI) Lift2Exp(k uint) {
	f.PrimeTo2Exp()
	f.b.Lsh(f.b, k)
	f.c.Lsh(f.c, 2*k)
}

// ToMaximalOrder maps f from the order of conductor l to the maximal order
// of discriminant deltaK. l must be odd and larger than 1; deltaK must be
// odd as well. The result is reduced when reduce is set.
func (f *QFI) ToMaximalOrder(l, deltaK *big.Int, reduce bool) error {
	const op = "qfi.ToMaximalOrder"
	if l.Cmp(one) <= 0 {
		return clhsm.Errorf(op, clhsm.ErrInvalidArgument, "conductor must be larger than 1")
	}
	if l.Bit(0) == 0 {
		return clhsm.Errorf(op, clhsm.ErrArithmeticPrecondition, "conductor must be odd, use ToMaximalOrder2Exp")
	}
	if deltaK.Bit(0) == 0 {
		return clhsm.Errorf(op, clhsm.ErrInvalidArgument, "discriminant must be odd")
	}
	f.PrimeTo(l)
	g0, g1, _ := bigint.GCDExt(l, f.a)
	nb := new(big.Int).Mul(f.b, g0)
	nb.Add(nb, g1.Mul(g1, f.a))
	f.b = nb
	if err := f.SetCFromDisc(deltaK); err != nil {
		return clhsm.Wrap(op, err)
	}
	if reduce {
		f.Reduce()
	}
	return nil
}

// ToMaximalOrder2Exp maps f from the order of conductor 2^k to the maximal
// order of the even discriminant deltaK.
func (f *QFI) ToMaximalOrder2Exp(k uint, deltaK *big.Int, reduce bool) error {
	const op = "qfi.ToMaximalOrder2Exp"
	if deltaK.Bit(0) == 1 {
		return clhsm.Errorf(op, clhsm.ErrInvalidArgument, "discriminant must be even")
	}
	f.PrimeTo2Exp()
	inv, err := bigint.ModInverse2Exp(f.a, k)
	if err != nil {
		return clhsm.Wrap(op, err)
	}
	// u = (1 - a * a^-1) / 2^k is exact.
	u := new(big.Int).Mul(f.a, inv)
	u.Sub(one, u)
	u.Rsh(u, k)
	f.b.Mul(f.b, u)
	if err := f.SetCFromDisc(deltaK); err != nil {
		return clhsm.Wrap(op, err)
	}
	if reduce {
		f.Reduce()
	}
	return nil
}

// KernelRepresentative returns t in [0, l) such that f, a form of the order
// of conductor l, is the class of (1 + t*sqrt(deltaK)) in the kernel of the
// map to the maximal order. It fails with ErrNotInKernel otherwise.
func (f *QFI) KernelRepresentative(l, deltaK *big.Int) (*big.Int, error) {
	const op = "qfi.KernelRepresentative"
	ft := f.Clone()
	if err := ft.ToMaximalOrder(l, deltaK, false); err != nil {
		return nil, clhsm.Wrap(op, err)
	}
	g0, g1, err := ft.reduceTracking(deltaK, one)
	if err != nil {
		return nil, clhsm.Wrap(op, err)
	}
	g := bigint.GCD(g0, g1)
	g0.Quo(g0, g)
	g1.Quo(g1, g)
	inv, err := bigint.ModInverse(g0, l)
	if err != nil {
		return nil, clhsm.Wrap(op, err)
	}
	inv.Mul(inv, g1.Neg(g1))
	return inv.Mod(inv, l), nil
}

// KernelRepresentative2Exp is KernelRepresentative for l = 2^k.
func (f *QFI) KernelRepresentative2Exp(k uint, deltaK *big.Int) (*big.Int, error) {
	const op = "qfi.KernelRepresentative2Exp"
	ft := f.Clone()
	if err := ft.ToMaximalOrder2Exp(k, deltaK, false); err != nil {
		return nil, clhsm.Wrap(op, err)
	}
	g0, g1, err := ft.reduceTracking(deltaK, zero)
	if err != nil {
		return nil, clhsm.Wrap(op, err)
	}
	if g0.Sign() == 0 {
		return nil, clhsm.Errorf(op, clhsm.ErrNotInKernel, "degenerate representative")
	}
	v := uint(bigint.Val2(g0))
	g0.Rsh(g0, v)
	g1.Rsh(g1, v)
	inv, err := bigint.ModInverse2Exp(g0, k)
	if err != nil {
		return nil, clhsm.Wrap(op, err)
	}
	inv.Mul(inv, g1.Neg(g1))
	return inv.Mod(inv, bigint.Pow2(k)), nil
}

// reduceTracking reduces f while following the element g0 + g1*omega whose
// ideal f represents, and checks that f ends on the principal form with
// middle coefficient wantB.
func (f *QFI) reduceTracking(deltaK, wantB *big.Int) (g0, g1 *big.Int, err error) {
	g0, g1 = big.NewInt(1), new(big.Int)
	f.Normalize()
	for bigint.CmpAbs(f.a, f.c) > 0 {
		tmp := new(big.Int).Mul(g1, deltaK)
		g1.Mul(g1, f.b)
		g1.Add(g1, g0)
		g0.Mul(g0, f.b)
		g0.Add(g0, tmp)
		f.Rho()
	}
	if f.a.Cmp(one) != 0 || f.b.Cmp(wantB) != 0 {
		return nil, nil, clhsm.Errorf("qfi.reduceTracking", clhsm.ErrNotInKernel, "reduced to %s", f)
	}
	return g0, g1, nil
}

// Identity returns the principal form (1, disc mod 2, (disc mod 2 - disc)/4).
func Identity(disc *big.Int) *QFI {
	b := big.NewInt(int64(disc.Bit(0)))
	c := new(big.Int).Sub(b, disc)
	c.Rsh(c, 2)
	return &QFI{a: big.NewInt(1), b: b, c: c}
}
