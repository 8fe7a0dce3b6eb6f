// Package accessstructure builds integer span programs for linear secret
// sharing over the integers.
//
// # Building Access Structures
//
// The package provides four expression types:
//   - Leaf(name): A party identified by name
//   - And(children...): Requires ALL children to satisfy the policy
//   - Or(children...): Requires ANY child to satisfy the policy
//   - AtLeast(k, children...): Requires k of n children to satisfy the policy
//
// Compile turns an expression into an ISP, the distribution matrix M with
// the owner of every row:
//
//	isp, err := ac.Compile(ac.And(ac.Leaf("alice"), ac.Or(ac.Leaf("bob"), ac.Leaf("carol"))))
//	shares, err := isp.Share(rho) // rho[0] is the secret
//
// # Threshold structures
//
// Threshold is the (t, n) structure used for key shares. Its span program is
// the OR over all t-subsets, in lexicographic order, of the AND of their
// members, so every party receives one share per subset it belongs to:
//
//	th, _ := ac.NewThreshold(2, 3)
//	rows, _ := th.ISP().Share(rho)
//	perParty, _ := th.Distribute(rows)
//
// Within one subset the shares recombine with the fixed coefficients
// Lambda(t) = (1, -1, ..., -1): the first member holds the secret plus the
// sum of the subset's randomness, every other member one of those random
// values. Shares from different subsets must not be mixed.
package accessstructure
