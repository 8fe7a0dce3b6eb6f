package clhsm2k

import (
	"context"
	"math/big"
	"time"

	"github.com/cofhe/clhsm-go/pkg/clhsm"
	"github.com/cofhe/clhsm-go/pkg/clhsm/bigint"
	"github.com/cofhe/clhsm-go/pkg/clhsm/logging"
	"github.com/cofhe/clhsm-go/pkg/clhsm/qfi"
	"github.com/cofhe/clhsm-go/pkg/clhsm/random"
)

var (
	one = big.NewInt(1)
	two = big.NewInt(2)
)

// System is a CL-HSM2k instance for a fixed modulus n and cleartext size k.
// All derived state is fixed at construction, so a System is safe for
// concurrent use.
type System struct {
	n      *big.Int
	k      uint
	m      *big.Int // 2^k
	deltaK *big.Int // -8n
	delta  *big.Int // 2^(2(k+1)) * deltaK

	clDeltaK *qfi.ClassGroup
	clDelta  *qfi.ClassGroup

	h       *qfi.QFI
	hLadder *qfi.Ladder

	distance      int
	exponentBound *big.Int
	large         bool

	src random.Source
	log logging.Logger
}

type settings struct {
	bound    *big.Int
	distance int
	src      random.Source
	log      logging.Logger
}

// Option configures New and Generate.
type Option func(*settings)

// WithClassNumberBound supplies the class number bound of the discriminant
// -8n instead of computing it.
func WithClassNumberBound(b *big.Int) Option {
	return func(s *settings) {
		if b != nil {
			s.bound = new(big.Int).Set(b)
		}
	}
}

// WithDistance sets the statistical distance parameter in bits. The
// exponent bound is the class number bound times 2^(distance-2).
func WithDistance(d int) Option {
	return func(s *settings) { s.distance = d }
}

// WithRandom sets the randomness used for keys, encryption randomness and
// prime generation. Defaults to random.Default().
func WithRandom(src random.Source) Option {
	return func(s *settings) { s.src = src }
}

// WithLogger sets the logger. Defaults to logging.Discard().
func WithLogger(l logging.Logger) Option {
	return func(s *settings) { s.log = l }
}

func newSettings(opts []Option) *settings {
	s := &settings{distance: clhsm.DefaultDistance}
	for _, opt := range opts {
		opt(s)
	}
	s.src = random.OrDefault(s.src)
	if s.log == nil {
		s.log = logging.Discard()
	}
	return s
}

// New builds the system for the odd modulus n > 1 and cleartexts in
// [0, 2^k).
//
// The generator h of the subgroup of 2^k-th powers is the square of the
// smallest odd split prime form of Cl(Delta), raised to 2^k by k
// duplications. Its exponentiation ladder is precomputed for exponents up to
// the exponent bound.
func New(n *big.Int, k int, opts ...Option) (*System, error) {
	const op = "clhsm2k.New"
	if n == nil || n.Cmp(one) <= 0 || n.Bit(0) == 0 {
		return nil, clhsm.Errorf(op, clhsm.ErrInvalidArgument, "modulus must be an odd integer larger than 1")
	}
	if k < 1 {
		return nil, clhsm.Errorf(op, clhsm.ErrInvalidArgument, "k must be at least 1, got %d", k)
	}
	st := newSettings(opts)
	if st.distance < 2 {
		return nil, clhsm.Errorf(op, clhsm.ErrInvalidArgument, "distance must be at least 2, got %d", st.distance)
	}
	start := time.Now()
	ctx := context.Background()

	s := &System{
		n:        new(big.Int).Set(n),
		k:        uint(k),
		m:        bigint.Pow2(uint(k)),
		distance: st.distance,
		src:      st.src,
		log:      st.log.With("component", "clhsm2k"),
	}
	s.deltaK = new(big.Int).Lsh(s.n, 3)
	s.deltaK.Neg(s.deltaK)
	s.delta = new(big.Int).Lsh(s.deltaK, 2*(s.k+1))

	var err error
	s.clDeltaK, err = qfi.NewClassGroup(s.deltaK, qfi.WithClassNumberBound(st.bound))
	if err != nil {
		return nil, clhsm.Wrap(op, err)
	}
	s.clDelta, err = qfi.NewClassGroup(s.delta)
	if err != nil {
		return nil, clhsm.Wrap(op, err)
	}

	// M^2 - 1 + deltaK > 0
	lhs := new(big.Int).Mul(s.m, s.m)
	lhs.Sub(lhs, one)
	s.large = lhs.Add(lhs, s.deltaK).Sign() > 0

	l, pf, err := s.smallestSplitPrime()
	if err != nil {
		return nil, clhsm.Wrap(op, err)
	}
	s.h = s.clDelta.NuDuplN(s.clDelta.NuDupl(pf), k)

	cnb, err := s.clDeltaK.ClassNumberBound()
	if err != nil {
		return nil, clhsm.Wrap(op, err)
	}
	s.exponentBound = new(big.Int).Lsh(cnb, uint(s.distance-2))
	s.hLadder = s.clDelta.NewLadder(s.h, s.exponentBound)

	s.log.Info(ctx, "system ready",
		logging.BitLen("n_bits", s.n),
		"k", k,
		logging.BitLen("delta_bits", s.delta),
		logging.BitLen("exponent_bound_bits", s.exponentBound),
		"l", l.String(),
		"large_message_variant", s.large,
		"elapsed", time.Since(start),
	)
	return s, nil
}

// smallestSplitPrime returns the smallest odd prime l with
// kronecker(Delta, l) = 1 and its reduced prime form.
func (s *System) smallestSplitPrime() (*big.Int, *qfi.QFI, error) {
	for l := big.NewInt(3); ; l = bigint.NextPrime(s.src, l) {
		if bigint.Kronecker(s.delta, l) != 1 {
			continue
		}
		pf, err := s.clDelta.PrimeForm(l)
		if err != nil {
			return nil, nil, err
		}
		return l, pf, nil
	}
}

// Generate draws n = p*q of secBits bits with p = 3 and q = 5 modulo 8 (in
// either order) and returns New(n, k, opts...).
func Generate(secBits, k int, opts ...Option) (*System, error) {
	const op = "clhsm2k.Generate"
	if secBits < 16 {
		return nil, clhsm.Errorf(op, clhsm.ErrInvalidArgument, "security_bits must be at least 16, got %d", secBits)
	}
	st := newSettings(opts)
	ctx := context.Background()
	start := time.Now()

	p, err := primeCongruent(st.src, (secBits+1)/2, 3, 5)
	if err != nil {
		return nil, clhsm.Wrap(op, err)
	}
	want := int64(5)
	if p.Bit(1) == 0 {
		want = 3
	}
	q, err := primeCongruent(st.src, secBits/2, want)
	if err != nil {
		return nil, clhsm.Wrap(op, err)
	}
	n := new(big.Int).Mul(p, q)
	clhsm.ZeroizeInt(p)
	clhsm.ZeroizeInt(q)
	st.log.Debug(ctx, "modulus generated", logging.BitLen("n_bits", n), "elapsed", time.Since(start))

	return New(n, k, append(opts, WithRandom(st.src), WithLogger(st.log))...)
}

// primeCongruent draws nbits-bit primes until one is congruent to one of
// residues modulo 8.
func primeCongruent(src random.Source, nbits int, residues ...int64) (*big.Int, error) {
	eight := big.NewInt(8)
	r := new(big.Int)
	for {
		p, err := bigint.RandomPrime(src, nbits)
		if err != nil {
			return nil, err
		}
		r.Mod(p, eight)
		for _, want := range residues {
			if r.Int64() == want {
				return p, nil
			}
		}
	}
}

// N returns the modulus.
func (s *System) N() *big.Int { return new(big.Int).Set(s.n) }

// K returns the cleartext bit size.
func (s *System) K() int { return int(s.k) }

// M returns 2^k, the cleartext modulus.
func (s *System) M() *big.Int { return new(big.Int).Set(s.m) }

// DeltaK returns the fundamental discriminant -8n.
func (s *System) DeltaK() *big.Int { return new(big.Int).Set(s.deltaK) }

// Delta returns the discriminant 2^(2(k+1)) * DeltaK of the ciphertext group.
func (s *System) Delta() *big.Int { return new(big.Int).Set(s.delta) }

// ClDeltaK returns the class group of the maximal order.
func (s *System) ClDeltaK() *qfi.ClassGroup { return s.clDeltaK }

// ClDelta returns the class group ciphertexts live in.
func (s *System) ClDelta() *qfi.ClassGroup { return s.clDelta }

// H returns the generator of the subgroup of 2^k-th powers.
func (s *System) H() *qfi.QFI { return s.h.Clone() }

// SecretKeyBound returns the inclusive upper bound of secret keys.
func (s *System) SecretKeyBound() *big.Int { return new(big.Int).Set(s.exponentBound) }

// EncryptRandomnessBound returns the inclusive upper bound of encryption
// randomness. It equals SecretKeyBound.
func (s *System) EncryptRandomnessBound() *big.Int { return new(big.Int).Set(s.exponentBound) }

// CleartextBound returns the exclusive upper bound 2^k of cleartexts.
func (s *System) CleartextBound() *big.Int { return s.M() }

// Distance returns the statistical distance parameter.
func (s *System) Distance() int { return s.distance }

// LargeMessageVariant reports whether 2^(2k) - 1 + DeltaK > 0, in which case
// DlogInF goes through the maximal order.
func (s *System) LargeMessageVariant() bool { return s.large }

// PowerOfH returns h^e using the precomputed ladder.
func (s *System) PowerOfH(e *big.Int) *qfi.QFI {
	return s.clDelta.NuPow2Forms2Exp(s.hLadder, e)
}

// PowerOfF returns f^m, where f generates the subgroup of order 2^k, for m
// taken modulo 2^k. The form is computed in closed form as
//
//	(2^(2(k-v)), 2^(k-v+1)*t, 2^(2v+3)*n + t^2)
//
// with v = val2(m) and t derived from the m-th power of a 2x2 matrix over
// Z/2^k.
func (s *System) PowerOfF(m *big.Int) (*qfi.QFI, error) {
	mm := new(big.Int).Mod(m, s.m)
	v := bigint.Val2(mm)
	if v >= int(s.k) {
		return s.clDelta.One(), nil
	}
	minusQ := new(big.Int).Sub(s.deltaK, one)
	m00, m01, m10, m11 := big.NewInt(1), new(big.Int), new(big.Int), big.NewInt(1)
	for i := s.k; i > 0; i-- {
		t0 := s.mod(mulAdd(m00, m00, m01, m10))
		t1 := s.mod(mulAdd(m00, m01, m01, m11))
		t2 := s.mod(mulAdd(m10, m00, m11, m10))
		t3 := s.mod(mulAdd(m10, m01, m11, m11))
		m00, m01, m10, m11 = t0, t1, t2, t3
		if mm.Bit(int(i-1)) == 1 {
			r0 := s.mod(mulAdd(m00, minusQ, two, m10))
			r1 := s.mod(mulAdd(m01, minusQ, two, m11))
			m00, m01, m10, m11 = m10, m11, r0, r1
		}
	}
	kv := s.k - uint(v)
	t := new(big.Int).Add(m00, m01)
	inv, err := bigint.ModInverse2Exp(new(big.Int).Rsh(m01, uint(v)), kv)
	if err != nil {
		// m01 / 2^v is odd for every m of valuation v.
		return nil, clhsm.Errorf("clhsm2k.PowerOfF", clhsm.ErrInvariantViolation, "matrix entry not invertible: %v", err)
	}
	t = bigint.Mod2kCentered(t.Mul(t, inv), kv)

	a := bigint.Pow2(2 * kv)
	b := new(big.Int).Lsh(t, kv+1)
	c := new(big.Int).Lsh(s.n, 2*uint(v)+3)
	c.Add(c, t.Mul(t, t))
	f := qfi.New(a, b, c)
	f.Reduce()
	return f, nil
}

// DlogInF returns m in [0, 2^k) with f^m = fm. It fails with
// ErrNotInKernel when fm is not in the subgroup generated by f.
func (s *System) DlogInF(fm *qfi.QFI) (*big.Int, error) {
	const op = "clhsm2k.DlogInF"
	if fm.IsOne() {
		return new(big.Int), nil
	}
	var tm *big.Int
	if s.large {
		var err error
		tm, err = fm.KernelRepresentative2Exp(s.k+1, s.deltaK)
		if err != nil {
			return nil, clhsm.Wrap(op, err)
		}
	} else {
		b := fm.B()
		j := bigint.Val2(b) - 1
		if j < 1 || j > int(s.k) {
			return nil, clhsm.Errorf(op, clhsm.ErrNotInKernel, "b has 2-adic valuation %d", j+1)
		}
		inv, err := bigint.ModInverse2Exp(b.Rsh(b, uint(j+1)), uint(j))
		if err != nil {
			return nil, clhsm.Wrap(op, err)
		}
		tm = inv.Lsh(inv, s.k-uint(j))
	}
	tm.Mod(tm, s.m)

	m := new(big.Int)
	t := big.NewInt(1)
	var err error
	for i := 0; i < int(s.k); i++ {
		if tm.Sign() > 0 && bigint.Val2(tm) == i {
			m.SetBit(m, i, 1)
			if tm, err = s.kdiv(tm, t); err != nil {
				return nil, clhsm.Wrap(op, err)
			}
		}
		if t, err = s.ksq(t); err != nil {
			return nil, clhsm.Wrap(op, err)
		}
	}
	return m, nil
}

// ksq returns the tangent of the doubled angle, 2t / (1 + deltaK*t^2) mod 2^k.
func (s *System) ksq(t *big.Int) (*big.Int, error) {
	d := s.mod(new(big.Int).Mul(t, t))
	d.Mul(d, s.deltaK)
	d.Add(d, one)
	inv, err := bigint.ModInverse2Exp(s.mod(d), s.k)
	if err != nil {
		return nil, err
	}
	r := new(big.Int).Lsh(t, 1)
	return s.mod(r.Mul(r, inv)), nil
}

// kdiv returns (t - u) / (1 - deltaK*t*u) mod 2^k.
func (s *System) kdiv(t, u *big.Int) (*big.Int, error) {
	d := s.mod(new(big.Int).Mul(t, u))
	d.Mul(d, s.deltaK)
	d.Sub(one, d)
	inv, err := bigint.ModInverse2Exp(s.mod(d), s.k)
	if err != nil {
		return nil, err
	}
	r := new(big.Int).Sub(t, u)
	return s.mod(r.Mul(r, inv)), nil
}

// LiftFromDeltaK maps a form of Cl(DeltaK) into the subgroup of 2^k-th
// powers of Cl(Delta): lift to conductor 2^(k+1), raise to 2^k, then fix the
// residue of the outer coefficients modulo 4 with (4, 4, 1 - 2^(2(k-1))*DeltaK).
func (s *System) LiftFromDeltaK(f *qfi.QFI) (*qfi.QFI, error) {
	const op = "clhsm2k.LiftFromDeltaK"
	if !s.clDeltaK.Contains(f) {
		return nil, clhsm.Errorf(op, clhsm.ErrInvalidArgument, "form %s is not in Cl(DeltaK)", f)
	}
	g := f.Clone()
	g.Lift2Exp(s.k + 1)
	g.Reduce()
	g = s.clDelta.NuDuplN(g, int(s.k))

	four := big.NewInt(4)
	three := big.NewInt(3)
	r := new(big.Int)
	if r.Mod(g.A(), four).Cmp(three) == 0 || r.Mod(g.C(), four).Cmp(three) == 0 {
		c := new(big.Int).Lsh(s.deltaK, 2*(s.k-1))
		c.Sub(one, c)
		g = s.clDelta.NuComp(g, qfi.New(four, four, c))
	}
	return g, nil
}

func (s *System) mod(x *big.Int) *big.Int {
	return x.Mod(x, s.m)
}

// mulAdd returns x*y + z*w.
func mulAdd(x, y, z, w *big.Int) *big.Int {
	r := new(big.Int).Mul(x, y)
	return r.Add(r, new(big.Int).Mul(z, w))
}
