package accessstructure

import (
	"math/big"
	"slices"
	"strconv"

	"github.com/cofhe/clhsm-go/pkg/clhsm"
)

// MaxCombinations caps C(n, t) for a threshold structure. Every combination
// adds t rows to the span program and one share to each of its members.
const MaxCombinations = 1 << 16

// Threshold is the (t, n) access structure: any t of the n parties,
// numbered 0..n-1, can decrypt.
type Threshold struct {
	T, N int
}

// NewThreshold validates 1 <= t <= n and the size of the resulting span
// program.
func NewThreshold(t, n int) (Threshold, error) {
	const op = "accessstructure.NewThreshold"
	if t < 1 || n < t {
		return Threshold{}, clhsm.Errorf(op, clhsm.ErrInvalidArgument, "need 1 <= t <= n, got t=%d n=%d", t, n)
	}
	if c := Binomial(n, t); !c.IsInt64() || c.Int64() > MaxCombinations {
		return Threshold{}, clhsm.Errorf(op, clhsm.ErrInvalidArgument, "C(%d, %d) exceeds %d combinations", n, t, MaxCombinations)
	}
	return Threshold{T: t, N: n}, nil
}

// Combinations returns C(N, T).
func (th Threshold) Combinations() int {
	return int(Binomial(th.N, th.T).Int64())
}

// ISP returns the span program OR over all T-subsets of AND over their
// members. Rows T*i .. T*i+T-1 belong to the i-th subset in lexicographic
// order, the j-th of them to its j-th smallest party.
func (th Threshold) ISP() *ISP {
	unit := &ISP{M: [][]int64{{1}}, Owners: []string{""}}
	mt := unit
	for i := 1; i < th.T; i++ {
		mt = and(mt, unit)
	}
	combos := Combinations(th.N, th.T)
	var isp *ISP
	for _, c := range combos {
		term := &ISP{M: mt.M, Owners: make([]string, th.T)}
		for j, p := range c {
			term.Owners[j] = strconv.Itoa(p)
		}
		if isp == nil {
			isp = &ISP{M: cloneMatrix(term.M), Owners: term.Owners}
			continue
		}
		isp = or(isp, term)
	}
	isp.Sie = make([][]int, len(combos))
	row := 0
	for i := range combos {
		isp.Sie[i] = make([]int, th.T)
		for j := range isp.Sie[i] {
			isp.Sie[i][j] = row
			row++
		}
	}
	return isp
}

// Distribute hands the row shares of th.ISP() to the parties. Party p
// receives, in lexicographic order of the subsets containing p, the share of
// its row in each subset.
func (th Threshold) Distribute(rowShares []*big.Int) ([][]*big.Int, error) {
	combos := Combinations(th.N, th.T)
	if len(rowShares) != len(combos)*th.T {
		return nil, clhsm.Errorf("accessstructure.Threshold.Distribute", clhsm.ErrInvalidArgument,
			"got %d row shares, want %d", len(rowShares), len(combos)*th.T)
	}
	out := make([][]*big.Int, th.N)
	for i, c := range combos {
		for j, p := range c {
			out[p] = append(out[p], rowShares[i*th.T+j])
		}
	}
	return out, nil
}

// ShareIndex returns the position, within the shares of party, of the share
// used when decrypting with combination, and the position of party inside
// combination.
func (th Threshold) ShareIndex(party int, combination []int) (share, position int, err error) {
	const op = "accessstructure.Threshold.ShareIndex"
	if err := th.validCombination(combination); err != nil {
		return 0, 0, err
	}
	position = -1
	for j, p := range combination {
		if p == party {
			position = j
		}
	}
	if position < 0 {
		return 0, 0, clhsm.Errorf(op, clhsm.ErrInvalidArgument, "party %d is not in %v", party, combination)
	}
	c := FirstCombination(th.T)
	for {
		if slices.Equal(c, combination) {
			return share, position, nil
		}
		if slices.Contains(c, party) {
			share++
		}
		if !NextCombination(c, th.N) {
			return 0, 0, clhsm.Errorf(op, clhsm.ErrInvariantViolation, "combination %v not enumerated", combination)
		}
	}
}

func (th Threshold) validCombination(c []int) error {
	const op = "accessstructure.Threshold"
	if len(c) != th.T {
		return clhsm.Errorf(op, clhsm.ErrInvalidArgument, "combination has %d parties, want %d", len(c), th.T)
	}
	for i, p := range c {
		if p < 0 || p >= th.N {
			return clhsm.Errorf(op, clhsm.ErrInvalidArgument, "party %d out of range [0, %d)", p, th.N)
		}
		if i > 0 && c[i-1] >= p {
			return clhsm.Errorf(op, clhsm.ErrInvalidArgument, "combination %v is not strictly increasing", c)
		}
	}
	return nil
}

// Lambda returns the reconstruction coefficients (1, -1, ..., -1) of a
// T-subset of the threshold span program.
func Lambda(t int) []int64 {
	l := make([]int64, t)
	for i := range l {
		l[i] = -1
	}
	if t > 0 {
		l[0] = 1
	}
	return l
}

// Binomial returns C(n, r), or zero when r is out of [0, n].
func Binomial(n, r int) *big.Int {
	if r < 0 || r > n {
		return new(big.Int)
	}
	return new(big.Int).Binomial(int64(n), int64(r))
}

// FirstCombination returns [0, 1, ..., t-1].
func FirstCombination(t int) []int {
	c := make([]int, t)
	for i := range c {
		c[i] = i
	}
	return c
}

// NextCombination advances c to the next t-subset of [0, n) in
// lexicographic order. It returns false, leaving c untouched, when c is the
// last one.
func NextCombination(c []int, n int) bool {
	t := len(c)
	j := t - 1
	for j >= 0 && c[j] == n-t+j {
		j--
	}
	if j < 0 {
		return false
	}
	c[j]++
	for k := j + 1; k < t; k++ {
		c[k] = c[j] + k - j
	}
	return true
}

// Combinations returns every t-subset of [0, n) in lexicographic order.
func Combinations(n, t int) [][]int {
	if t < 0 || t > n {
		return nil
	}
	var out [][]int
	c := FirstCombination(t)
	for {
		out = append(out, slices.Clone(c))
		if !NextCombination(c, n) {
			return out
		}
	}
}

func cloneMatrix(m [][]int64) [][]int64 {
	out := make([][]int64, len(m))
	for i, row := range m {
		out[i] = slices.Clone(row)
	}
	return out
}
