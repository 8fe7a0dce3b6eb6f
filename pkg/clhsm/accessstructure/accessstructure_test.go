package accessstructure

import (
	"math/big"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cofhe/clhsm-go/pkg/clhsm"
)

func ints(vs ...int64) []*big.Int {
	out := make([]*big.Int, len(vs))
	for i, v := range vs {
		out[i] = big.NewInt(v)
	}
	return out
}

func TestAndTwoLeaves(t *testing.T) {
	isp, err := Compile(And(Leaf("alice"), Leaf("bob")))
	require.NoError(t, err)
	require.Equal(t, [][]int64{{1, 1}, {0, 1}}, isp.M)
	require.Equal(t, []string{"alice", "bob"}, isp.Owners)

	shares, err := isp.Share(ints(100, 7))
	require.NoError(t, err)
	require.Equal(t, int64(107), shares[0].Int64())
	require.Equal(t, int64(7), shares[1].Int64())
}

func TestAndThreeLeaves(t *testing.T) {
	isp, err := Compile(And(Leaf("a"), Leaf("b"), Leaf("c")))
	require.NoError(t, err)
	require.Equal(t, [][]int64{{1, 1, 1}, {0, 0, 1}, {0, 1, 0}}, isp.M)

	// Shares are sk+r1+r2, r2 and r1.
	shares, err := isp.Share(ints(1000, 20, 3))
	require.NoError(t, err)
	require.Equal(t, []int64{1023, 3, 20}, []int64{shares[0].Int64(), shares[1].Int64(), shares[2].Int64()})
}

func TestOrSharesSecretColumn(t *testing.T) {
	isp, err := Compile(Or(And(Leaf("a"), Leaf("b")), Leaf("c")))
	require.NoError(t, err)
	require.Equal(t, [][]int64{{1, 1}, {0, 1}, {1, 0}}, isp.M)
	require.Equal(t, 3, isp.Rows())
	require.Equal(t, 2, isp.Cols())
	require.True(t, strings.HasPrefix(isp.String(), "ISP 3x2"))
	require.Contains(t, isp.String(), "c: [1 0]")
}

func TestAtLeastMatchesThreshold(t *testing.T) {
	isp, err := Compile(AtLeast(2, Leaf("0"), Leaf("1"), Leaf("2")))
	require.NoError(t, err)
	th, err := NewThreshold(2, 3)
	require.NoError(t, err)
	want := th.ISP()
	require.Equal(t, want.M, isp.M)
	require.Equal(t, want.Owners, isp.Owners)
}

func TestCompileErrors(t *testing.T) {
	for name, e := range map[string]Expr{
		"nil":        nil,
		"empty leaf": Leaf(""),
		"empty and":  And(),
		"empty or":   Or(),
		"k zero":     AtLeast(0, Leaf("a")),
		"k too big":  AtLeast(3, Leaf("a"), Leaf("b")),
		"nested":     And(Leaf("a"), Or(Leaf(""))),
	} {
		_, err := Compile(e)
		require.ErrorIs(t, err, clhsm.ErrInvalidArgument, name)
	}
}

func TestShareLength(t *testing.T) {
	isp, err := Compile(Leaf("a"))
	require.NoError(t, err)
	_, err = isp.Share(ints(1, 2))
	require.ErrorIs(t, err, clhsm.ErrInvalidArgument)
}

func TestNewThreshold(t *testing.T) {
	for _, tc := range [][2]int{{0, 3}, {4, 3}, {-1, -1}, {20, 40}} {
		_, err := NewThreshold(tc[0], tc[1])
		require.ErrorIs(t, err, clhsm.ErrInvalidArgument, "t=%d n=%d", tc[0], tc[1])
	}
	th, err := NewThreshold(3, 5)
	require.NoError(t, err)
	require.Equal(t, 10, th.Combinations())
}

func TestThresholdISPShape(t *testing.T) {
	th, err := NewThreshold(2, 3)
	require.NoError(t, err)
	isp := th.ISP()
	require.Equal(t, [][]int64{
		{1, 1, 0, 0},
		{0, 1, 0, 0},
		{1, 0, 1, 0},
		{0, 0, 1, 0},
		{1, 0, 0, 1},
		{0, 0, 0, 1},
	}, isp.M)
	require.Equal(t, []string{"0", "1", "0", "2", "1", "2"}, isp.Owners)
	require.Equal(t, [][]int{{0, 1}, {2, 3}, {4, 5}}, isp.Sie)
}

func TestThresholdReconstruction(t *testing.T) {
	for _, tc := range [][2]int{{1, 1}, {1, 3}, {2, 3}, {3, 5}, {4, 4}} {
		th, err := NewThreshold(tc[0], tc[1])
		require.NoError(t, err)
		isp := th.ISP()
		secret := big.NewInt(987654321)
		rho := []*big.Int{secret}
		for j := 1; j < isp.Cols(); j++ {
			rho = append(rho, big.NewInt(int64(1000*j+17)))
		}
		rows, err := isp.Share(rho)
		require.NoError(t, err)
		parties, err := th.Distribute(rows)
		require.NoError(t, err)
		for p := range parties {
			require.Len(t, parties[p], int(Binomial(tc[1]-1, tc[0]-1).Int64()))
		}

		lambda := Lambda(th.T)
		for _, combo := range Combinations(th.N, th.T) {
			sum := new(big.Int)
			for _, p := range combo {
				idx, pos, err := th.ShareIndex(p, combo)
				require.NoError(t, err)
				term := new(big.Int).Mul(parties[p][idx], big.NewInt(lambda[pos]))
				sum.Add(sum, term)
			}
			require.Zero(t, sum.Cmp(secret), "t=%d n=%d combo %v", tc[0], tc[1], combo)
		}
	}
}

func TestShareIndexErrors(t *testing.T) {
	th, err := NewThreshold(2, 4)
	require.NoError(t, err)
	_, _, err = th.ShareIndex(3, []int{0, 1})
	require.ErrorIs(t, err, clhsm.ErrInvalidArgument)
	_, _, err = th.ShareIndex(0, []int{1, 0})
	require.ErrorIs(t, err, clhsm.ErrInvalidArgument)
	_, _, err = th.ShareIndex(0, []int{0, 4})
	require.ErrorIs(t, err, clhsm.ErrInvalidArgument)
	_, _, err = th.ShareIndex(0, []int{0})
	require.ErrorIs(t, err, clhsm.ErrInvalidArgument)

	share, pos, err := th.ShareIndex(2, []int{2, 3})
	require.NoError(t, err)
	// Party 2 appears in {0,2}, {1,2} and {2,3}.
	require.Equal(t, 2, share)
	require.Equal(t, 0, pos)
}

func TestCombinations(t *testing.T) {
	require.Equal(t, [][]int{{0, 1}, {0, 2}, {0, 3}, {1, 2}, {1, 3}, {2, 3}}, Combinations(4, 2))
	require.Nil(t, Combinations(2, 3))
	require.Len(t, Combinations(7, 3), 35)

	c := []int{2, 3}
	require.False(t, NextCombination(c, 4))
	require.Equal(t, []int{2, 3}, c)

	require.Equal(t, int64(35), Binomial(7, 3).Int64())
	require.Zero(t, Binomial(3, 4).Sign())
	require.Equal(t, []int64{1, -1, -1}, Lambda(3))
}
