// Package internalcheck holds source policy tests for the clhsm packages.
//
// The tests load the library with golang.org/x/tools/go/packages and walk
// its syntax trees. Secrets must not reach format strings or loggers, and
// byte comparisons must go through crypto/subtle.
//
// The package has no exported API.
package internalcheck
