package bigint

import (
	"math/big"

	"github.com/cofhe/clhsm-go/pkg/clhsm"
)

// Jacobi returns the Jacobi symbol (a/n) for positive odd n.
func Jacobi(a, n *big.Int) (int, error) {
	if n.Sign() <= 0 || n.Bit(0) == 0 {
		return 0, clhsm.Errorf("bigint.Jacobi", clhsm.ErrInvalidArgument, "n must be a positive odd integer")
	}
	return big.Jacobi(a, n), nil
}

// Kronecker returns the Kronecker symbol (a/n), defined for every n. It
// agrees with Jacobi whenever n is positive and odd.
func Kronecker(a, n *big.Int) int {
	if n.Sign() == 0 {
		if a.CmpAbs(one) == 0 {
			return 1
		}
		return 0
	}
	if a.Bit(0) == 0 && n.Bit(0) == 0 {
		return 0
	}
	k := 1
	nn := new(big.Int).Set(n)
	v := nn.TrailingZeroBits()
	nn.Rsh(nn, v)
	if v%2 == 1 {
		// (a/2) = -1 exactly when a = 3, 5 mod 8.
		switch new(big.Int).Mod(a, big.NewInt(8)).Int64() {
		case 3, 5:
			k = -1
		}
	}
	if nn.Sign() < 0 {
		nn.Neg(nn)
		if a.Sign() < 0 {
			k = -k
		}
	}
	return k * big.Jacobi(a, nn)
}
