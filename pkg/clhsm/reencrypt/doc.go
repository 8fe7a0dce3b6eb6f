// Package reencrypt carries partial decryptions from the parties to the
// decrypting client without exposing them to the transport.
//
// Each party seals its serialized partial decryption to a one-time
// recipient key of the client with Reencrypt. The client frames the sealed
// results of one combination with Concatenate and recovers the cleartext
// with Decrypt.
//
// Two schemes are provided:
//   - RSA: RSA-OAEP (SHA-256) key wrap, key-bound label, ChaCha20-Poly1305
//     payload, so partial decryptions of any size fit
//   - ECIES: secp256k1 ECDH, HKDF-SHA256, ChaCha20-Poly1305
//
// Neither is a general-purpose encryption API: the payload is opaque
// transport confidentiality for one protocol round.
package reencrypt
