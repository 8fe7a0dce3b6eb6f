// Package clhsm is the root of a pure-Go implementation of the CL-HSM2k
// linearly homomorphic encryption scheme over class groups of imaginary
// quadratic orders, with (t, n) threshold decryption.
//
// The root package holds what every subpackage shares: the error taxonomy,
// deployment configuration, version information, zeroization helpers and the
// Transport contract used by threshold sessions. The cryptography lives in
// subpackages layered leaves first:
//
//   - bigint: number theory over math/big, including the half-GCD accelerated
//     partial Euclidean algorithm.
//   - qfi: binary quadratic forms, class groups and their exponentiation
//     algorithms.
//   - accessstructure: threshold access structures and their integer span
//     programs.
//   - clhsm2k: the cryptosystem itself.
//   - cryptosystem, reencrypt, session: the surfaces used by applications.
//   - mocknet, tlsnet: Transport implementations, in memory and over mutual
//     TLS.
//
// # Errors
//
// Failures are reported as *Error values whose cause wraps one of four kinds:
// ErrInvalidArgument, ErrArithmeticPrecondition, ErrInvariantViolation and
// ErrMalformedWireData. Use errors.Is to classify them:
//
//	if errors.Is(err, clhsm.ErrMalformedWireData) {
//	    // reject the peer's message
//	}
//
// # Configuration
//
// Config can be built in code or loaded from YAML with LoadConfig:
//
//	security_bits: 128
//	k: 128
//	threshold: {t: 2, n: 3}
//	reencryption: {scheme: ecies}
package clhsm
