// Package clhsm2k implements the CL-HSM2k linearly homomorphic encryption
// scheme over class groups of imaginary quadratic orders, with cleartexts in
// Z/2^k and threshold decryption.
//
// A System fixes the modulus n, the fundamental discriminant DeltaK = -8n
// and the ciphertext discriminant Delta = 2^(2(k+1)) * DeltaK. Messages are
// encoded in the subgroup F of Cl(Delta) of order 2^k, where discrete
// logarithms are computed in closed form; randomness lives in the subgroup
// generated by h.
//
// # Key Operations
//
//   - New(), Generate(): Build a system from a modulus, or draw one
//   - GenerateSecretKey(), DerivePublicKey(), SplitIntoShares(): Keys
//   - Encrypt(), Decrypt(): c = (h^r, f^m * pk^r)
//   - AddCiphertexts(), ScalCiphertexts(): Homomorphic operations with
//     rerandomization
//   - PartialDecrypt(), CombinePartialDecryptions(): Threshold decryption
//   - MarshalBinary()/UnmarshalBinary(): Wire formats
//
// # Threshold Decryption
//
// SplitIntoShares uses the (t, n) span program of package accessstructure.
// Each party keeps one share per t-subset containing it. To decrypt, the
// members of one subset, in increasing order, each compute PartialDecrypt
// with SecretKeyShare.For(subset), and anyone combines the results:
//
//	shares, err := sys.SplitIntoShares(sk, 2, 3)
//	subset := []int{0, 2}
//	var pds []*clhsm2k.PartialDecryption
//	for _, p := range subset {
//	    x, _ := shares[p].For(subset)
//	    pd, _ := sys.PartialDecrypt(x, ct)
//	    pds = append(pds, pd)
//	}
//	m, err := sys.CombinePartialDecryptions(ct, pds)
//
// Mixing partial decryptions of different subsets is not detected and
// yields a wrong cleartext or an error.
package clhsm2k
