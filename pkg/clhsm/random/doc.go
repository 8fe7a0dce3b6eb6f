// Package random provides the randomness capability consumed by clhsm.
//
// Every component that needs random values takes a Source explicitly; there
// is no package-level generator to swap out.
//
//	src := random.Default()            // crypto/rand
//	det := random.NewSHAKE([]byte("t")) // reproducible, tests only
//	r := random.Int(src, bound)         // uniform in [0, bound]
//
// Int and Below use rejection sampling, so their output is exactly uniform
// provided the Source is.
package random
