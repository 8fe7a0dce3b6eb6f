package qfi

import "math/big"

var (
	zero = big.NewInt(0)
	one  = big.NewInt(1)
)

// The helpers below run on coefficients of positive definite forms, whose a
// and c are never zero, so they skip the division-by-zero checks of the
// bigint package.

// cdivQR returns q = ceil(n/d) and r = n - q*d.
func cdivQR(n, d *big.Int) (q, r *big.Int) {
	q, r = new(big.Int).QuoRem(n, d, new(big.Int))
	if r.Sign() != 0 && (r.Sign() > 0) == (d.Sign() > 0) {
		q.Add(q, one)
		r.Sub(r, d)
	}
	return q, r
}

// fdivQR returns q = floor(n/d) and r = n - q*d.
func fdivQR(n, d *big.Int) (q, r *big.Int) {
	q, r = new(big.Int).QuoRem(n, d, new(big.Int))
	if r.Sign() != 0 && (r.Sign() < 0) != (d.Sign() < 0) {
		q.Sub(q, one)
		r.Add(r, d)
	}
	return q, r
}

// exact returns n/d for d dividing n.
func exact(n, d *big.Int) *big.Int {
	return new(big.Int).Quo(n, d)
}

func mul(x, y *big.Int) *big.Int {
	return new(big.Int).Mul(x, y)
}

// mulSub returns x*y - z*w.
func mulSub(x, y, z, w *big.Int) *big.Int {
	r := new(big.Int).Mul(x, y)
	return r.Sub(r, new(big.Int).Mul(z, w))
}

// mulAdd returns x*y + z*w.
func mulAdd(x, y, z, w *big.Int) *big.Int {
	r := new(big.Int).Mul(x, y)
	return r.Add(r, new(big.Int).Mul(z, w))
}
