package bigint

import (
	"math/big"
	"math/bits"
)

const (
	limbBits     = 64
	halfLimbBits = limbBits / 2

	// Below lowHalfThreshold the double-limb loop folds into a single limb.
	lowHalfThreshold = uint64(1) << halfLimbBits
	// The single-limb loop stops once a value drops below singleThreshold.
	singleThreshold = uint64(1) << (halfLimbBits + 1)
)

// Matrix2 is a 2x2 matrix of machine words. Arithmetic on its entries wraps
// modulo 2^64, so it only carries meaning while the entries stay below 2^64.
type Matrix2 struct {
	M00, M01, M10, M11 uint64
}

// HGCD2 runs the Euclidean algorithm on the 128-bit values a = ah:al and
// b = bh:bl as long as the quotients are determined by these top bits. On
// success it returns M with [a; b] = M * [a'; b'] where a', b' are the reduced
// values; the same transform applies to the full-width numbers these limbs
// were taken from. It returns false when no step can be certified, which
// happens when either high limb is below 2.
func HGCD2(ah, al, bh, bl uint64) (Matrix2, bool) {
	var m Matrix2
	if ah < 2 || bh < 2 {
		return m, false
	}

	if ah > bh || (ah == bh && al > bl) {
		ah, al = sub2(ah, al, bh, bl)
		if ah < 2 {
			return m, false
		}
		m = Matrix2{M00: 1, M01: 1, M10: 0, M11: 1}
	} else {
		bh, bl = sub2(bh, bl, ah, al)
		if bh < 2 {
			return m, false
		}
		m = Matrix2{M00: 1, M01: 0, M10: 1, M11: 1}
	}

	skipFirst := ah < bh
	skipSingle := false

doubleLoop:
	for {
		if !skipFirst {
			if ah == bh {
				return m, true
			}
			if ah < lowHalfThreshold {
				ah = ah<<halfLimbBits + al>>halfLimbBits
				bh = bh<<halfLimbBits + bl>>halfLimbBits
				break doubleLoop
			}
			ah, al = sub2(ah, al, bh, bl)
			if ah < 2 {
				return m, true
			}
			if ah <= bh {
				m.M01 += m.M00
				m.M11 += m.M10
			} else {
				var q uint64
				q, ah, al = div2(ah, al, bh, bl)
				if ah < 2 {
					m.M01 += q * m.M00
					m.M11 += q * m.M10
					return m, true
				}
				q++
				m.M01 += q * m.M00
				m.M11 += q * m.M10
			}
		}
		skipFirst = false

		if ah == bh {
			return m, true
		}
		if bh < lowHalfThreshold {
			ah = ah<<halfLimbBits + al>>halfLimbBits
			bh = bh<<halfLimbBits + bl>>halfLimbBits
			skipSingle = true
			break doubleLoop
		}
		bh, bl = sub2(bh, bl, ah, al)
		if bh < 2 {
			return m, true
		}
		if bh <= ah {
			m.M00 += m.M01
			m.M10 += m.M11
		} else {
			var q uint64
			q, bh, bl = div2(bh, bl, ah, al)
			if bh < 2 {
				m.M00 += q * m.M01
				m.M10 += q * m.M11
				return m, true
			}
			q++
			m.M00 += q * m.M01
			m.M10 += q * m.M11
		}
	}

	for {
		if !skipSingle {
			ah -= bh
			if ah < singleThreshold {
				break
			}
			if ah <= bh {
				m.M01 += m.M00
				m.M11 += m.M10
			} else {
				q := ah / bh
				ah -= q * bh
				if ah < singleThreshold {
					m.M01 += q * m.M00
					m.M11 += q * m.M10
					break
				}
				q++
				m.M01 += q * m.M00
				m.M11 += q * m.M10
			}
		}
		skipSingle = false

		bh -= ah
		if bh < singleThreshold {
			break
		}
		if bh <= ah {
			m.M00 += m.M01
			m.M10 += m.M11
		} else {
			q := bh / ah
			bh -= q * ah
			if bh < singleThreshold {
				m.M00 += q * m.M01
				m.M10 += q * m.M11
				break
			}
			q++
			m.M00 += q * m.M01
			m.M10 += q * m.M11
		}
	}
	return m, true
}

// sub2 returns (ah:al) - (bh:bl) modulo 2^128.
func sub2(ah, al, bh, bl uint64) (uint64, uint64) {
	lo, borrow := bits.Sub64(al, bl, 0)
	hi, _ := bits.Sub64(ah, bh, borrow)
	return hi, lo
}

// div2 divides nh:nl by dh:dl with dh != 0 and nh >= dh, so the quotient
// fits a single limb. It returns the quotient and the remainder.
func div2(nh, nl, dh, dl uint64) (q, rh, rl uint64) {
	shift := uint(bits.LeadingZeros64(dh) - bits.LeadingZeros64(nh))
	dh = dh<<shift | dl>>(limbBits-shift)
	dl <<= shift
	for i := uint(0); i <= shift; i++ {
		q <<= 1
		if nh > dh || (nh == dh && nl >= dl) {
			nh, nl = sub2(nh, nl, dh, dl)
			q |= 1
		}
		dl = dl>>1 | dh<<(limbBits-1)
		dh >>= 1
	}
	return q, nh, nl
}

// Matrix is a 2x2 integer matrix.
type Matrix struct {
	M00, M01, M10, M11 *big.Int
}

// Identity returns the 2x2 identity matrix.
func Identity() Matrix {
	return Matrix{M00: big.NewInt(1), M01: new(big.Int), M10: new(big.Int), M11: big.NewInt(1)}
}

// Apply returns M * [a; b].
func (m Matrix) Apply(a, b *big.Int) (*big.Int, *big.Int) {
	x := new(big.Int).Mul(m.M00, a)
	x.Add(x, new(big.Int).Mul(m.M01, b))
	y := new(big.Int).Mul(m.M10, a)
	y.Add(y, new(big.Int).Mul(m.M11, b))
	return x, y
}

// Det returns the determinant of m.
func (m Matrix) Det() *big.Int {
	d := new(big.Int).Mul(m.M00, m.M11)
	return d.Sub(d, new(big.Int).Mul(m.M01, m.M10))
}

// PartialEuclid runs the Euclidean algorithm on (a, b) until both values have
// absolute value below 2^targetBits, or one of them reaches zero. It returns
// the reduced pair and the unimodular matrix M with [a'; b'] = M * [a; b].
// The signs of the inputs are kept on the outputs.
//
// Each round certifies as many quotients as the top 128 bits allow with
// HGCD2 and applies them to the full values at once; a plain division step
// is taken whenever HGCD2 cannot make progress.
func PartialEuclid(a, b *big.Int, targetBits uint) (*big.Int, *big.Int, Matrix) {
	x, y := Abs(a), Abs(b)
	negA, negB := a.Sign() < 0, b.Sign() < 0

	// u maps the reduced pair back to the input pair: [x0; y0] = u * [x; y].
	u00, u01 := big.NewInt(1), new(big.Int)
	u10, u11 := new(big.Int), big.NewInt(1)

	bound := Pow2(targetBits)
	q, r, t := new(big.Int), new(big.Int), new(big.Int)
	for (x.Cmp(bound) >= 0 || y.Cmp(bound) >= 0) && x.Sign() != 0 && y.Sign() != 0 {
		ah, al, bh, bl := topLimbs(x, y)
		if hm, ok := HGCD2(ah, al, bh, bl); ok {
			h00 := new(big.Int).SetUint64(hm.M00)
			h01 := new(big.Int).SetUint64(hm.M01)
			h10 := new(big.Int).SetUint64(hm.M10)
			h11 := new(big.Int).SetUint64(hm.M11)
			nx := new(big.Int).Mul(h11, x)
			nx.Sub(nx, t.Mul(h01, y))
			ny := new(big.Int).Mul(h00, y)
			ny.Sub(ny, t.Mul(h10, x))
			if nx.Sign() >= 0 && ny.Sign() >= 0 {
				x, y = nx, ny
				u00, u01 = addMul(u00, h00, u01, h10), addMul(u00, h01, u01, h11)
				u10, u11 = addMul(u10, h00, u11, h10), addMul(u10, h01, u11, h11)
				continue
			}
		}
		if x.Cmp(y) >= 0 {
			q.QuoRem(x, y, r)
			x.Set(r)
			u01.Add(u01, t.Mul(q, u00))
			u11.Add(u11, t.Mul(q, u10))
		} else {
			q.QuoRem(y, x, r)
			y.Set(r)
			u00.Add(u00, t.Mul(q, u01))
			u10.Add(u10, t.Mul(q, u11))
		}
	}

	// Forward matrix is the inverse of u, which has determinant 1.
	m := Matrix{
		M00: u11,
		M01: new(big.Int).Neg(u01),
		M10: new(big.Int).Neg(u10),
		M11: u00,
	}
	// [a'; b'] = diag(sa, sb) * m * diag(sa, sb) * [a; b], which flips the
	// off-diagonal entries when exactly one input is negative.
	if negA {
		x.Neg(x)
	}
	if negB {
		y.Neg(y)
	}
	if negA != negB {
		m.M01.Neg(m.M01)
		m.M10.Neg(m.M10)
	}
	return x, y, m
}

func addMul(a, b, c, d *big.Int) *big.Int {
	r := new(big.Int).Mul(a, b)
	return r.Add(r, new(big.Int).Mul(c, d))
}

// topLimbs aligns x and y so the larger has its top bit at position 127 and
// returns the two highest limbs of each.
func topLimbs(x, y *big.Int) (ah, al, bh, bl uint64) {
	n := x.BitLen()
	if y.BitLen() > n {
		n = y.BitLen()
	}
	sx, sy := new(big.Int), new(big.Int)
	if n > 2*limbBits {
		sx.Rsh(x, uint(n-2*limbBits))
		sy.Rsh(y, uint(n-2*limbBits))
	} else {
		sx.Lsh(x, uint(2*limbBits-n))
		sy.Lsh(y, uint(2*limbBits-n))
	}
	ah, al = split128(sx)
	bh, bl = split128(sy)
	return ah, al, bh, bl
}

func split128(v *big.Int) (hi, lo uint64) {
	mask := new(big.Int).SetUint64(^uint64(0))
	lo = new(big.Int).And(v, mask).Uint64()
	hi = new(big.Int).Rsh(v, limbBits).Uint64()
	return hi, lo
}
