// Package cryptosystem defines the capability interface that the threshold
// decryption network programs against, and its CPU implementation backed by
// package clhsm2k.
//
// Callers that only move ciphertexts around depend on CryptoSystem and its
// serialize/deserialize pairs; the concrete key and ciphertext types stay
// opaque to them.
package cryptosystem
