package qfi

import (
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cofhe/clhsm-go/pkg/clhsm"
	"github.com/cofhe/clhsm-go/pkg/clhsm/bigint"
	"github.com/cofhe/clhsm-go/pkg/clhsm/random"
)

func bi(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("bad integer " + s)
	}
	return v
}

func isReduced(f *QFI) bool {
	if f.b.CmpAbs(f.a) > 0 || f.a.Cmp(f.c) > 0 {
		return false
	}
	if (f.b.CmpAbs(f.a) == 0 || f.a.Cmp(f.c) == 0) && f.b.Sign() < 0 {
		return false
	}
	return true
}

// testDiscriminant is 2^(2(k+1)) * -8n for n = 10007 * 10009 and k = 16.
func testDiscriminant() *big.Int {
	n := big.NewInt(10007 * 10009)
	d := new(big.Int).Mul(n, big.NewInt(-8))
	return d.Lsh(d, 2*(16+1))
}

// primeForms returns the first count prime forms of cg with odd norm.
func primeForms(t *testing.T, cg *ClassGroup, count int) []*QFI {
	t.Helper()
	var out []*QFI
	for l := int64(3); len(out) < count; l += 2 {
		lb := big.NewInt(l)
		if !bigint.IsPrime(random.Default(), lb) || bigint.Kronecker(cg.Disc(), lb) != 1 {
			continue
		}
		f, err := cg.PrimeForm(lb)
		require.NoError(t, err)
		out = append(out, f)
	}
	return out
}

func TestNormalizeAndReduce(t *testing.T) {
	disc := big.NewInt(-47)
	// (2, 1, 6) transformed by x -> x + 5y.
	f := New(big.NewInt(2), big.NewInt(21), big.NewInt(61))
	require.Zero(t, f.Discriminant().Cmp(disc))

	f.Normalize()
	require.Equal(t, "(2, 1, 6)", f.String())

	g := New(big.NewInt(6), big.NewInt(-1), big.NewInt(2))
	g.Reduce()
	require.Equal(t, "(2, 1, 6)", g.String())
	require.Zero(t, g.Discriminant().Cmp(disc))
}

func TestReduceAmbiguousSign(t *testing.T) {
	// a == c forces b >= 0.
	f := New(big.NewInt(3), big.NewInt(-2), big.NewInt(3))
	f.Reduce()
	require.Equal(t, "(3, 2, 3)", f.String())
}

func TestIdentity(t *testing.T) {
	for _, d := range []int64{-3, -4, -23, -120} {
		id := Identity(big.NewInt(d))
		require.True(t, id.IsOne())
		require.Zero(t, id.Discriminant().Cmp(big.NewInt(d)), "disc %d", d)
		require.True(t, isReduced(id))
	}
}

func TestEvalAndClone(t *testing.T) {
	f := New(big.NewInt(2), big.NewInt(1), big.NewInt(6))
	require.Equal(t, int64(2*9+1*3*-2+6*4), f.Eval(big.NewInt(3), big.NewInt(-2)).Int64())

	g := f.Clone()
	g.Neg()
	require.Equal(t, "(2, 1, 6)", f.String())
	require.Equal(t, "(2, -1, 6)", g.String())
	require.False(t, f.Equal(g))
}

func TestNegSelfInverse(t *testing.T) {
	f := New(big.NewInt(2), big.NewInt(2), big.NewInt(3))
	f.Neg()
	require.Equal(t, "(2, 2, 3)", f.String())
	g := New(big.NewInt(3), big.NewInt(1), big.NewInt(3))
	g.Neg()
	require.Equal(t, "(3, 1, 3)", g.String())
}

func TestSetCFromDisc(t *testing.T) {
	f, err := NewFromDisc(big.NewInt(2), big.NewInt(1), big.NewInt(-47))
	require.NoError(t, err)
	require.Equal(t, "(2, 1, 6)", f.String())

	_, err = NewFromDisc(big.NewInt(5), big.NewInt(1), big.NewInt(-47))
	require.ErrorIs(t, err, clhsm.ErrInvariantViolation)

	_, err = NewFromDisc(big.NewInt(0), big.NewInt(1), big.NewInt(-47))
	require.ErrorIs(t, err, clhsm.ErrDivisionByZero)
}

func TestPrimeTo(t *testing.T) {
	f := New(big.NewInt(6), big.NewInt(5), big.NewInt(7))
	disc := f.Discriminant()
	f.PrimeTo(big.NewInt(3))
	require.Zero(t, bigint.GCD(f.a, big.NewInt(3)).Cmp(big.NewInt(1)))
	require.Zero(t, f.Discriminant().Cmp(disc))

	g := New(big.NewInt(6), big.NewInt(5), big.NewInt(9))
	disc = g.Discriminant()
	g.PrimeTo(big.NewInt(3))
	require.Zero(t, bigint.GCD(g.a, big.NewInt(3)).Cmp(big.NewInt(1)))
	require.Zero(t, g.Discriminant().Cmp(disc))

	h := New(big.NewInt(4), big.NewInt(3), big.NewInt(8))
	disc = h.Discriminant()
	h.PrimeTo2Exp()
	require.Equal(t, uint(1), h.a.Bit(0))
	require.Zero(t, h.Discriminant().Cmp(disc))
}

func TestLift(t *testing.T) {
	f := New(big.NewInt(2), big.NewInt(1), big.NewInt(6))
	l := big.NewInt(3)
	want := new(big.Int).Mul(big.NewInt(-47), big.NewInt(9))
	g := f.Clone()
	g.Lift(l)
	require.Zero(t, g.Discriminant().Cmp(want))
	require.True(t, isReduced(g))

	h := f.Clone()
	h.Lift2Exp(3)
	require.Zero(t, h.Discriminant().Cmp(new(big.Int).Lsh(big.NewInt(-47), 6)))
}

func TestToMaximalOrderArguments(t *testing.T) {
	f := New(big.NewInt(2), big.NewInt(1), big.NewInt(6))
	err := f.Clone().ToMaximalOrder(big.NewInt(1), big.NewInt(-47), true)
	require.ErrorIs(t, err, clhsm.ErrInvalidArgument)
	err = f.Clone().ToMaximalOrder(big.NewInt(8), big.NewInt(-47), true)
	require.ErrorIs(t, err, clhsm.ErrArithmeticPrecondition)
	err = f.Clone().ToMaximalOrder(big.NewInt(3), big.NewInt(-48), true)
	require.ErrorIs(t, err, clhsm.ErrInvalidArgument)
	err = f.Clone().ToMaximalOrder2Exp(2, big.NewInt(-47), true)
	require.ErrorIs(t, err, clhsm.ErrInvalidArgument)
}

func TestToMaximalOrderRoundTrip(t *testing.T) {
	deltaK := big.NewInt(-47)
	cg, err := NewClassGroup(deltaK)
	require.NoError(t, err)
	f, err := cg.PrimeForm(big.NewInt(2))
	require.NoError(t, err)

	l := big.NewInt(3)
	lifted := f.Clone()
	lifted.Lift(l)
	back := lifted.Clone()
	require.NoError(t, back.ToMaximalOrder(l, deltaK, true))
	require.Zero(t, back.Discriminant().Cmp(deltaK))
	require.True(t, back.Equal(f), "got %s want %s", back, f)
}

func TestKernelRepresentativeRejectsNonKernel(t *testing.T) {
	deltaK := big.NewInt(-47)
	cg, err := NewClassGroup(deltaK)
	require.NoError(t, err)
	f, err := cg.PrimeForm(big.NewInt(2))
	require.NoError(t, err)
	f.Lift(big.NewInt(3))
	_, err = f.KernelRepresentative(big.NewInt(3), deltaK)
	require.ErrorIs(t, err, clhsm.ErrNotInKernel)
	require.True(t, errors.Is(err, clhsm.ErrInvariantViolation))
}
