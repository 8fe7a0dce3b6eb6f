package qfi

import (
	"math/big"
	"sync"

	"github.com/cofhe/clhsm-go/pkg/clhsm"
	"github.com/cofhe/clhsm-go/pkg/clhsm/bigint"
)

// ClassGroup is the class group of imaginary quadratic forms of a fixed
// discriminant. It is safe for concurrent use.
type ClassGroup struct {
	disc *big.Int
	// nucompBound is floor(|disc|^(1/4)).
	nucompBound *big.Int

	boundOnce sync.Once
	bound     *big.Int
	boundErr  error
}

// Option configures a ClassGroup.
type Option func(*ClassGroup)

// WithClassNumberBound supplies a precomputed class number bound, skipping
// the Euler product on first use. Nil or nonpositive values are ignored.
func WithClassNumberBound(b *big.Int) Option {
	return func(cg *ClassGroup) {
		if b != nil && b.Sign() > 0 {
			cg.bound = new(big.Int).Set(b)
		}
	}
}

// NewClassGroup returns the class group of discriminant disc, which must be
// negative and congruent to 0 or 1 modulo 4.
func NewClassGroup(disc *big.Int, opts ...Option) (*ClassGroup, error) {
	const op = "qfi.NewClassGroup"
	if disc.Sign() >= 0 {
		return nil, clhsm.Errorf(op, clhsm.ErrInvalidArgument, "discriminant must be negative, got %s", disc)
	}
	if r := new(big.Int).Mod(disc, big.NewInt(4)).Int64(); r != 0 && r != 1 {
		return nil, clhsm.Errorf(op, clhsm.ErrInvalidArgument, "discriminant must be 0 or 1 mod 4, got %s", disc)
	}
	cg := &ClassGroup{
		disc:        new(big.Int).Set(disc),
		nucompBound: bigint.FourthRootAbs(disc),
	}
	for _, opt := range opts {
		opt(cg)
	}
	return cg, nil
}

// Disc returns the discriminant.
func (cg *ClassGroup) Disc() *big.Int { return new(big.Int).Set(cg.disc) }

// DefaultNucompBound returns the partial Euclid bound used by the group
// operations.
func (cg *ClassGroup) DefaultNucompBound() *big.Int { return new(big.Int).Set(cg.nucompBound) }

// One returns the identity form.
func (cg *ClassGroup) One() *QFI { return Identity(cg.disc) }

// Contains reports whether f is a positive definite form of this
// discriminant.
func (cg *ClassGroup) Contains(f *QFI) bool {
	return f.a.Sign() > 0 && f.c.Sign() > 0 && f.Discriminant().Cmp(cg.disc) == 0
}

// PrimeForm returns the reduced form of norm l, for l a prime with
// kronecker(disc, l) = 1.
func (cg *ClassGroup) PrimeForm(l *big.Int) (*QFI, error) {
	const op = "qfi.ClassGroup.PrimeForm"
	if bigint.Kronecker(cg.disc, l) != 1 {
		return nil, clhsm.Errorf(op, clhsm.ErrInvalidArgument, "discriminant is not a nonzero square modulo %s", l)
	}
	var b *big.Int
	if l.Cmp(big.NewInt(2)) == 0 {
		// disc = 1 mod 8 here.
		b = big.NewInt(1)
	} else {
		var err error
		if b, err = bigint.SqrtModPrime(cg.disc, l); err != nil {
			return nil, clhsm.Wrap(op, err)
		}
		if b.Bit(0) != cg.disc.Bit(0) {
			b.Sub(l, b)
		}
	}
	f, err := NewFromDisc(l, b, cg.disc)
	if err != nil {
		return nil, clhsm.Wrap(op, err)
	}
	f.Reduce()
	return f, nil
}

// ClassNumberBound returns an upper bound on the class number,
//
//	ceil(21 * isqrt(|disc|) / 88 * prod_{l < ln^2|disc|} l / (l - kronecker(disc, l)))
//
// over primes l. It is computed once per group unless supplied with
// WithClassNumberBound.
func (cg *ClassGroup) ClassNumberBound() (*big.Int, error) {
	cg.boundOnce.Do(func() {
		if cg.bound != nil {
			return
		}
		cg.bound, cg.boundErr = classNumberBound(cg.disc)
	})
	if cg.boundErr != nil {
		return nil, cg.boundErr
	}
	return new(big.Int).Set(cg.bound), nil
}

func classNumberBound(disc *big.Int) (*big.Int, error) {
	primeBound, err := bigint.CeilAbsLogSqr(disc)
	if err != nil {
		return nil, clhsm.Wrap("qfi.ClassGroup.ClassNumberBound", err)
	}
	prec := uint(bigint.NBits(disc)) + 64
	acc := new(big.Float).SetPrec(prec).SetInt64(1)
	num, den := new(big.Float).SetPrec(prec), new(big.Float).SetPrec(prec)
	for _, l := range bigint.PrimesBelow(primeBound) {
		k := bigint.Kronecker(disc, big.NewInt(l))
		num.SetInt64(l)
		den.SetInt64(l - int64(k))
		acc.Mul(acc, num.Quo(num, den))
	}
	t := new(big.Float).SetPrec(prec).SetInt(bigint.SqrtAbs(disc))
	t.Mul(t, big.NewFloat(21))
	t.Mul(t, acc)
	t.Quo(t, big.NewFloat(88))
	r, accuracy := t.Int(nil)
	if accuracy == big.Below {
		r.Add(r, one)
	}
	return r, nil
}

// NuComp returns f1 * f2.
func (cg *ClassGroup) NuComp(f1, f2 *QFI) *QFI {
	return NuComp(f1, f2, cg.nucompBound, false)
}

// NuCompInv returns f1 * f2^-1.
func (cg *ClassGroup) NuCompInv(f1, f2 *QFI) *QFI {
	return NuComp(f1, f2, cg.nucompBound, true)
}

// NuDupl returns f^2.
func (cg *ClassGroup) NuDupl(f *QFI) *QFI {
	return NuDupl(f, cg.nucompBound)
}

// NuDuplN returns f^(2^n).
func (cg *ClassGroup) NuDuplN(f *QFI, n int) *QFI {
	return NuDuplN(f, n, cg.nucompBound)
}

// NuPow returns f^n.
func (cg *ClassGroup) NuPow(f *QFI, n *big.Int) *QFI {
	return NuPow(f, n, cg.nucompBound)
}

// NuPow2Forms returns f0^n0 * f1^n1.
func (cg *ClassGroup) NuPow2Forms(f0 *QFI, n0 *big.Int, f1 *QFI, n1 *big.Int) *QFI {
	return NuPow2Forms(f0, n0, f1, n1, cg.nucompBound)
}

// NewLadder precomputes the powers of f needed to raise it to exponents up
// to bound with NuPow2Forms2Exp.
func (cg *ClassGroup) NewLadder(f *QFI, bound *big.Int) *Ladder {
	return NewLadder(f, bound, cg.nucompBound)
}

// NuPow2Forms2Exp returns lad.F^n.
func (cg *ClassGroup) NuPow2Forms2Exp(lad *Ladder, n *big.Int) *QFI {
	return NuPow2Forms2Exp(lad, n, cg.nucompBound)
}
