package bigint

import (
	"math/big"

	"github.com/cofhe/clhsm-go/pkg/clhsm"
	"github.com/cofhe/clhsm-go/pkg/clhsm/random"
)

const (
	// TrialDivisionCutoff bounds the values tested deterministically.
	TrialDivisionCutoff = 10000

	// MillerRabinRounds gives a false positive rate below 4^-20.
	MillerRabinRounds = 20
)

var (
	three  = big.NewInt(3)
	cutoff = big.NewInt(TrialDivisionCutoff)
)

// IsPrime tests n for primality. Values below TrialDivisionCutoff are
// decided by trial division; larger ones by MillerRabinRounds rounds of
// Miller-Rabin with witnesses drawn from src. A nil src uses the system
// CSPRNG.
func IsPrime(src random.Source, n *big.Int) bool {
	if n.Cmp(one) <= 0 {
		return false
	}
	if n.Cmp(three) <= 0 {
		return true
	}
	if n.Bit(0) == 0 || new(big.Int).Mod(n, three).Sign() == 0 {
		return false
	}
	if n.Cmp(cutoff) < 0 {
		return isPrimeTrialDivision(n.Int64())
	}
	return isPrimeMillerRabin(random.OrDefault(src), n, MillerRabinRounds)
}

// isPrimeTrialDivision expects n > 3 and coprime to 6.
func isPrimeTrialDivision(n int64) bool {
	for i := int64(5); i*i <= n; i += 6 {
		if n%i == 0 || n%(i+2) == 0 {
			return false
		}
	}
	return true
}

// isPrimeMillerRabin expects n odd and > 3.
func isPrimeMillerRabin(src random.Source, n *big.Int, rounds int) bool {
	nm1 := new(big.Int).Sub(n, one)
	d := new(big.Int).Set(nm1)
	s := d.TrailingZeroBits()
	d.Rsh(d, s)

	span := new(big.Int).Sub(n, three) // witnesses in [2, n-2]
	x := new(big.Int)
	for iter := 0; iter < rounds; iter++ {
		a := random.Below(src, span)
		a.Add(a, two)
		x.Exp(a, d, n)
		if x.Cmp(one) == 0 || x.Cmp(nm1) == 0 {
			continue
		}
		composite := true
		for r := uint(1); r < s; r++ {
			x.Mul(x, x).Mod(x, n)
			if x.Cmp(nm1) == 0 {
				composite = false
				break
			}
			if x.Cmp(one) == 0 {
				return false
			}
		}
		if composite {
			return false
		}
	}
	return true
}

// NextPrime returns the smallest prime strictly greater than n.
func NextPrime(src random.Source, n *big.Int) *big.Int {
	if n.Cmp(two) < 0 {
		return big.NewInt(2)
	}
	if n.Cmp(two) == 0 {
		return big.NewInt(3)
	}
	c := new(big.Int).Add(n, one)
	if c.Bit(0) == 0 {
		c.Add(c, one)
	}
	for !IsPrime(src, c) {
		c.Add(c, two)
	}
	return c
}

// RandomPrime returns a prime of exactly nbits bits: a random nbits-bit
// value with its top bit set, advanced with NextPrime. The result may
// exceed nbits bits only if no prime lies between the draw and 2^nbits.
func RandomPrime(src random.Source, nbits int) (*big.Int, error) {
	if nbits < 2 {
		return nil, clhsm.Errorf("bigint.RandomPrime", clhsm.ErrInvalidArgument, "prime size must be at least 2 bits, got %d", nbits)
	}
	src = random.OrDefault(src)
	for {
		c := random.Bits(src, nbits)
		c.SetBit(c, nbits-1, 1)
		p := NextPrime(src, new(big.Int).Sub(c, one))
		if p.BitLen() == nbits {
			return p, nil
		}
	}
}

// PrimesBelow returns every prime p < bound in increasing order.
func PrimesBelow(bound int) []int64 {
	if bound <= 2 {
		return nil
	}
	composite := make([]bool, bound)
	var primes []int64
	for i := 2; i < bound; i++ {
		if composite[i] {
			continue
		}
		primes = append(primes, int64(i))
		for j := i * i; j < bound; j += i {
			composite[j] = true
		}
	}
	return primes
}
