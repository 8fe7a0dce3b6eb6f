package qfi

import (
	"math/big"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cofhe/clhsm-go/pkg/clhsm"
)

func TestNewClassGroupValidation(t *testing.T) {
	for _, d := range []int64{0, 5, -2, -5, -7 * 3} {
		_, err := NewClassGroup(big.NewInt(d))
		require.ErrorIs(t, err, clhsm.ErrInvalidArgument, "disc %d", d)
	}
	cg, err := NewClassGroup(big.NewInt(-23))
	require.NoError(t, err)
	require.Equal(t, int64(-23), cg.Disc().Int64())
	require.Equal(t, int64(2), cg.DefaultNucompBound().Int64())
	require.Equal(t, "(1, 1, 6)", cg.One().String())
}

// reducedForms enumerates the primitive reduced forms of a small
// discriminant.
func reducedForms(disc int64) int {
	count := 0
	for a := int64(1); 3*a*a <= -disc; a++ {
		for b := -a + 1; b <= a; b++ {
			num := b*b - disc
			if num%(4*a) != 0 {
				continue
			}
			c := num / (4 * a)
			if c < a || (c == a && b < 0) {
				continue
			}
			if gcd3(a, b, c) != 1 {
				continue
			}
			count++
		}
	}
	return count
}

func gcd3(a, b, c int64) int64 {
	g := new(big.Int).GCD(nil, nil, big.NewInt(a), big.NewInt(b))
	return g.GCD(nil, nil, g, big.NewInt(c)).Int64()
}

func TestPrimeFormOrder(t *testing.T) {
	// h(-47) = 5 and h(-71) = 7 are prime, so every non-identity form
	// generates the group.
	for _, tc := range []struct {
		disc, l int64
	}{
		{-47, 2},
		{-47, 3},
		{-71, 2},
		{-71, 5},
	} {
		cg, err := NewClassGroup(big.NewInt(tc.disc))
		require.NoError(t, err)
		h := reducedForms(tc.disc)

		f, err := cg.PrimeForm(big.NewInt(tc.l))
		require.NoError(t, err)
		require.True(t, isReduced(f))
		require.Zero(t, f.Discriminant().Cmp(cg.Disc()))

		seen := map[string]bool{}
		for k := 1; k <= h; k++ {
			g := cg.NuPow(f, big.NewInt(int64(k)))
			seen[g.String()] = true
			require.Equal(t, k == h, g.IsOne(), "disc %d l %d k %d", tc.disc, tc.l, k)
		}
		require.Len(t, seen, h)
	}
}

func TestPrimeFormRejectsNonSplitPrime(t *testing.T) {
	cg, err := NewClassGroup(big.NewInt(-47))
	require.NoError(t, err)
	// kronecker(-47, 5) = -1.
	_, err = cg.PrimeForm(big.NewInt(5))
	require.ErrorIs(t, err, clhsm.ErrInvalidArgument)

	cg, err = NewClassGroup(big.NewInt(-20))
	require.NoError(t, err)
	_, err = cg.PrimeForm(big.NewInt(2))
	require.ErrorIs(t, err, clhsm.ErrInvalidArgument)
}

func TestClassNumberBound(t *testing.T) {
	for _, tc := range []struct {
		disc string
		want int64
	}{
		{"-23", 3},
		{"-47", 4},
		{"-199", 7},
		{"-801280504", 6802},
	} {
		cg, err := NewClassGroup(bi(tc.disc))
		require.NoError(t, err)
		got, err := cg.ClassNumberBound()
		require.NoError(t, err)
		require.Equal(t, tc.want, got.Int64(), "disc %s", tc.disc)
	}
}

func TestClassNumberBoundSupplied(t *testing.T) {
	cg, err := NewClassGroup(big.NewInt(-23), WithClassNumberBound(big.NewInt(1000)))
	require.NoError(t, err)
	got, err := cg.ClassNumberBound()
	require.NoError(t, err)
	require.Equal(t, int64(1000), got.Int64())

	got.SetInt64(1)
	again, err := cg.ClassNumberBound()
	require.NoError(t, err)
	require.Equal(t, int64(1000), again.Int64())
}

func TestClassNumberBoundConcurrent(t *testing.T) {
	cg, err := NewClassGroup(bi("-801280504"))
	require.NoError(t, err)
	var wg sync.WaitGroup
	results := make([]int64, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			b, err := cg.ClassNumberBound()
			if err == nil {
				results[i] = b.Int64()
			}
		}(i)
	}
	wg.Wait()
	for _, r := range results {
		require.Equal(t, int64(6802), r)
	}
}

func TestNuDuplN(t *testing.T) {
	cg := testGroup(t)
	f := primeForms(t, cg, 1)[0]
	want := f
	for i := 0; i < 5; i++ {
		want = cg.NuDupl(want)
	}
	require.True(t, cg.NuDuplN(f, 5).Equal(want))
	zero := cg.NuDuplN(f, 0)
	require.True(t, zero.Equal(f))
	require.NotSame(t, f, zero)
}
