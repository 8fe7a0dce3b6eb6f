// Package bigint implements the number theory used by the class group
// arithmetic: floor and ceiling division, 2-adic helpers, extended GCD,
// modular and 2-adic inverses, integer and modular square roots, primality,
// Jacobi and Kronecker symbols, and a partial Euclidean algorithm driven by
// a two-limb half-GCD step.
//
// All functions work on *big.Int and leave their arguments untouched. Bit
// operations follow two's complement semantics for negative values, like
// big.Int.Bit.
//
// # Partial Euclid
//
// PartialEuclid reduces a pair (a, b) and returns the unimodular matrix M
// with [a'; b'] = M * [a; b]:
//
//	a2, b2, m := bigint.PartialEuclid(a, b, 64)
//	x, y := m.Apply(a, b) // x == a2, y == b2
//
// NUCOMP and NUDUPL use it to keep intermediate coefficients near the fourth
// root of the discriminant.
//
// # Errors
//
// Division by zero, missing inverses and out-of-domain arguments are
// reported as *clhsm.Error values wrapping the clhsm error kinds.
package bigint
