// Package qfi implements positive definite binary quadratic forms of
// negative discriminant and the arithmetic of their class groups.
//
// A QFI (a, b, c) stands for a*x^2 + b*x*y + c*y^2. Reduce maps a form to
// the unique reduced representative of its class, so two forms are in the
// same class exactly when their reductions are Equal.
//
// # Composition
//
// NuComp and NuDupl implement Shanks' NUCOMP and NUDUPL. A partial Euclidean
// step bounded by L, the fourth root of the absolute discriminant, keeps the
// intermediate coefficients small; the result is always reduced.
//
// # Exponentiation
//
//   - NuPow: signed sliding window of width 7.
//   - NuPow2Forms: f0^n0 * f1^n1 driven by the joint sparse form of (n0, n1).
//   - NuPow2Forms2Exp: f^n for a fixed base with a precomputed Ladder, which
//     splits n in two halves and reads four digits per squaring.
//
// # Class groups
//
// ClassGroup binds a discriminant to its NUCOMP bound and lazily computes an
// upper bound on the class number:
//
//	cg, err := qfi.NewClassGroup(big.NewInt(-47))
//	if err != nil {
//	    return err
//	}
//	f, err := cg.PrimeForm(big.NewInt(2))
//	if err != nil {
//	    return err
//	}
//	g := cg.NuPow(f, big.NewInt(5)) // g.Equal(cg.One())
//
// # Wire format
//
// MarshalBinary writes an 8-byte little-endian header holding three sign bits
// and the byte lengths of |a| and |b|, followed by the three magnitudes in
// little-endian order.
package qfi
