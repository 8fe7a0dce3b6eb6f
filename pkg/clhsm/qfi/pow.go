package qfi

import (
	"math/big"

	"github.com/cofhe/clhsm-go/pkg/clhsm/bigint"
)

const (
	// windowBits is the width of the signed window used by NuPow.
	windowBits = 7
	// windowTable is the number of odd powers precomputed by NuPow.
	windowTable = 1 << (windowBits - 2)
)

// NuPow returns f^n. It uses a left-to-right signed sliding window over n
// with the odd powers f, f^3, ..., f^(2^(w-1)-1) precomputed.
func NuPow(f *QFI, n, L *big.Int) *QFI {
	if n.Sign() == 0 {
		return Identity(f.Discriminant())
	}
	e := bigint.Abs(n)

	ff := NuDupl(f, L)
	tab := make([]*QFI, windowTable)
	tab[0] = f.Clone()
	for i := 1; i < windowTable; i++ {
		tab[i] = NuComp(tab[i-1], ff, L, false)
	}
	// t is an even or odd window value in [1, 2^w]; t = 2 stands for ff.
	pick := func(t uint64) *QFI {
		if t == 2 {
			return ff
		}
		return tab[t>>1]
	}

	j := bigint.NBits(e) - 1
	m := bigint.ExtractBits(e, uint(j), windowBits)
	c := m & 1
	t := m + c
	tau := trailingZeros(t)
	t >>= tau
	r := pick(t).Clone()
	r = NuDuplN(r, windowShift(tau, j), L)
	j -= windowBits

	for j >= 0 {
		m = bigint.ExtractBits(e, uint(j), windowBits)
		dj := (m >> (windowBits - 1)) & 1
		low := m & 1
		if c == dj {
			r = NuDupl(r, L)
			j--
			continue
		}
		negate := c == 1
		t = m + low
		if c == 1 {
			t = 1<<windowBits - t
		}
		c = low
		tau = trailingZeros(t)
		t >>= tau
		r = NuDuplN(r, windowBits-tau, L)
		r = NuComp(r, pick(t), L, negate)
		r = NuDuplN(r, windowShift(tau, j), L)
		j -= windowBits
	}
	if c == 1 {
		r = NuComp(r, tab[0], L, true)
	}
	if n.Sign() < 0 {
		r.Neg()
	}
	return r
}

// trailingZeros returns the 2-adic valuation of a window value, capped at
// windowBits-1. Zero maps to the cap.
func trailingZeros(t uint64) int {
	tau := 0
	for tau < windowBits-1 && t&(1<<tau) == 0 {
		tau++
	}
	return tau
}

// windowShift is the number of squarings that follow a window ending at bit
// index j with tau trailing zeros.
func windowShift(tau, j int) int {
	if j < windowBits-1 {
		return tau + 1 + j - windowBits
	}
	return tau
}

// NuDuplN squares f n times.
func NuDuplN(f *QFI, n int, L *big.Int) *QFI {
	r := f
	for i := 0; i < n; i++ {
		r = NuDupl(r, L)
	}
	if r == f {
		return f.Clone()
	}
	return r
}

// NuPow2Forms returns f0^n0 * f1^n1 using the joint sparse form of the
// exponents.
func NuPow2Forms(f0 *QFI, n0 *big.Int, f1 *QFI, n1, L *big.Int) *QFI {
	switch {
	case n0.Sign() == 0 && n1.Sign() == 0:
		return Identity(f0.Discriminant())
	case n0.Sign() == 0:
		return NuPow(f1, n1, L)
	case n1.Sign() == 0:
		return NuPow(f0, n0, L)
	}
	f0, e0 := positiveExponent(f0, n0)
	f1, e1 := positiveExponent(f1, n1)

	tab := [4]*QFI{
		f0,
		f1,
		NuComp(f0, f1, L, false),
		NuComp(f0, f1, L, true),
	}
	digits := JSF(e0, e1)

	var r *QFI
	switch digits[len(digits)-1] {
	case 0x01:
		r = tab[0].Clone()
	case 0x10:
		r = tab[1].Clone()
	default:
		r = tab[2].Clone()
	}
	for j := len(digits) - 1; j > 0; j-- {
		r = NuDupl(r, L)
		switch digits[j-1] {
		case 0x01:
			r = NuComp(r, tab[0], L, false)
		case 0x03:
			r = NuComp(r, tab[0], L, true)
		case 0x10:
			r = NuComp(r, tab[1], L, false)
		case 0x30:
			r = NuComp(r, tab[1], L, true)
		case 0x11:
			r = NuComp(r, tab[2], L, false)
		case 0x13:
			r = NuComp(r, tab[3], L, true)
		case 0x31:
			r = NuComp(r, tab[3], L, false)
		case 0x33:
			r = NuComp(r, tab[2], L, true)
		}
	}
	return r
}

// positiveExponent returns (f, n) or (f^-1, -n) so the exponent is
// positive.
func positiveExponent(f *QFI, n *big.Int) (*QFI, *big.Int) {
	g := f.Clone()
	if n.Sign() < 0 {
		g.Neg()
	}
	return g, bigint.Abs(n)
}

// Ladder caches the powers of a fixed base f used by NuPow2Forms2Exp:
// FE = f^(2^E), FD = f^(2^D) and FDE = f^(2^(D+E)).
type Ladder struct {
	D, E        uint
	F           *QFI
	FE, FD, FDE *QFI
}

// NewLadder precomputes the ladder of f for exponents up to bound.
func NewLadder(f *QFI, bound, L *big.Int) *Ladder {
	d := uint(bigint.NBits(bound)+1) / 2
	e := d/2 + 1
	lad := &Ladder{D: d, E: e, F: f.Clone()}
	cur := f.Clone()
	for i := uint(0); i < d+e; i++ {
		if i == e {
			lad.FE = cur.Clone()
		}
		if i == d {
			lad.FD = cur.Clone()
		}
		cur = NuDupl(cur, L)
	}
	lad.FDE = cur
	return lad
}

// NuPow2Forms2Exp returns f^n for the base of lad. The exponent is split as
// n = n0 + 2^D*n1, the joint sparse form of (n0, n1) is read two digits at a
// time E positions apart, and every combination of the four digits selects
// one of 40 precomputed products of F, FD, FE and FDE or its inverse.
func NuPow2Forms2Exp(lad *Ladder, n, L *big.Int) *QFI {
	f := lad.F
	if n.Sign() == 0 {
		return Identity(f.Discriminant())
	}
	if bigint.NBits(n) < int(lad.E) {
		return NuPow(f, n, L)
	}
	e := bigint.Abs(n)
	lo := new(big.Int).Mod(e, bigint.Pow2(lad.D))
	hi := bigint.DivBy2k(e, lad.D)
	digits := JSF(lo, hi)
	digit := func(i int) uint8 {
		if i < 0 || i >= len(digits) {
			return 0
		}
		return digits[i]
	}

	var tab [40]*QFI
	tab[0] = f
	tab[2] = lad.FD
	tab[8] = lad.FE
	tab[26] = lad.FDE
	for _, s := range [...]struct{ count, pow3 int }{{1, 3}, {4, 9}, {13, 27}} {
		for k := 0; k < s.count; k++ {
			tab[s.pow3+k] = NuComp(tab[s.pow3-1], tab[k], L, false)
			tab[s.pow3-k-2] = NuComp(tab[s.pow3-1], tab[k], L, true)
		}
	}

	r := Identity(f.Discriminant())
	compose := func(idx int) {
		switch {
		case idx > 0:
			r = NuComp(r, tab[idx-1], L, false)
		case idx < 0:
			r = NuComp(r, tab[-idx-1], L, true)
		}
	}
	E := int(lad.E)
	for j := len(digits); j > 2*E; j-- {
		r = NuDupl(r, L)
		compose(digitWeight(digit(j-1), 9, 27))
	}
	for j := 2 * E; j > E; j-- {
		r = NuDupl(r, L)
		compose(digitWeight(digit(j-E-1), 1, 3) + digitWeight(digit(j-1), 9, 27))
	}
	if n.Sign() < 0 {
		r.Neg()
	}
	return r
}

// digitWeight maps a JSF digit pair to lowW*u0 + highW*u1 with u0, u1 in
// {-1, 0, 1}.
func digitWeight(d uint8, lowW, highW int) int {
	w := 0
	switch {
	case d&0x02 != 0:
		w -= lowW
	case d&0x01 != 0:
		w += lowW
	}
	switch {
	case d&0x20 != 0:
		w -= highW
	case d&0x10 != 0:
		w += highW
	}
	return w
}

// JSF returns the joint sparse form of the nonnegative integers n0 and n1,
// least significant digit first. Each byte packs the digit of n0 in its low
// nibble and the digit of n1 in its high nibble, with 1 meaning +1 and 3
// meaning -1. Among any three consecutive digit pairs at least one is zero.
func JSF(n0, n1 *big.Int) []uint8 {
	size := bigint.NBits(n0)
	if s := bigint.NBits(n1); s > size {
		size = s
	}
	size++
	out := make([]uint8, size)

	bit := func(n *big.Int, i int) uint8 { return uint8(n.Bit(i)) }
	var d0, d1 uint8
	n0j, n0j1, n0j2 := bit(n0, 0), bit(n0, 1), bit(n0, 2)
	n1j, n1j1, n1j2 := bit(n1, 0), bit(n1, 1), bit(n1, 2)
	for j := 0; j < size; j++ {
		b0 := flag(d0 == n0j) & (n0j1 ^ d0)
		b1 := flag(d1 == n1j) & (n1j1 ^ d1)
		var u0, u1 uint8
		if d0 != n0j {
			u0 = 1
			if n0j1^((n0j2^n0j1)&b1) != 0 {
				u0 = 3
			}
			d0 = u0 >> 1
		}
		if d1 != n1j {
			u1 = 1
			if n1j1^((n1j2^n1j1)&b0) != 0 {
				u1 = 3
			}
			d1 = u1 >> 1
		}
		out[j] = u0 | u1<<4
		n0j, n0j1, n0j2 = n0j1, n0j2, bit(n0, j+3)
		n1j, n1j1, n1j2 = n1j1, n1j2, bit(n1, j+3)
	}
	if out[size-1] == 0 {
		out = out[:size-1]
	}
	return out
}

func flag(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
