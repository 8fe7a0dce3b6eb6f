package clhsm2k

import (
	"bytes"
	"log/slog"
	"math/big"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cofhe/clhsm-go/pkg/clhsm"
	"github.com/cofhe/clhsm-go/pkg/clhsm/accessstructure"
	"github.com/cofhe/clhsm-go/pkg/clhsm/bigint"
	"github.com/cofhe/clhsm-go/pkg/clhsm/logging"
	"github.com/cofhe/clhsm-go/pkg/clhsm/random"
)

func testSource(label string) random.Source {
	return random.NewSHAKE([]byte("clhsm2k test " + label))
}

func newTestSystem(t *testing.T, bits, k int) *System {
	t.Helper()
	label := big.NewInt(int64(bits*1000 + k)).String()
	s, err := Generate(bits, k, WithRandom(testSource(label)))
	require.NoError(t, err)
	return s
}

func cleartext(t *testing.T, s *System, m *big.Int) *Cleartext {
	t.Helper()
	c, err := s.NewCleartext(m)
	require.NoError(t, err)
	return c
}

func testMessages(s *System, src random.Source) []*big.Int {
	msgs := []*big.Int{big.NewInt(0), big.NewInt(1)}
	if s.K() > 1 {
		msgs = append(msgs, big.NewInt(2))
	}
	msgs = append(msgs,
		new(big.Int).Sub(s.M(), big.NewInt(1)),
		new(big.Int).Rsh(s.M(), 1),
	)
	for i := 0; i < 3; i++ {
		msgs = append(msgs, random.Below(src, s.M()))
	}
	return msgs
}

var variants = []struct {
	name    string
	bits, k int
	large   bool
}{
	{"small k=16", 64, 16, false},
	{"large k=40", 64, 40, true},
	{"k=1", 40, 1, false},
	{"k=2", 40, 2, false},
}

func TestNewValidation(t *testing.T) {
	for _, n := range []*big.Int{nil, big.NewInt(1), big.NewInt(0), big.NewInt(-15), big.NewInt(143 * 2)} {
		_, err := New(n, 8)
		require.ErrorIs(t, err, clhsm.ErrInvalidArgument)
	}
	_, err := New(big.NewInt(143), 0)
	require.ErrorIs(t, err, clhsm.ErrInvalidArgument)
	_, err = New(big.NewInt(143), 8, WithDistance(1))
	require.ErrorIs(t, err, clhsm.ErrInvalidArgument)
	_, err = Generate(8, 8)
	require.ErrorIs(t, err, clhsm.ErrInvalidArgument)
}

func TestParameters(t *testing.T) {
	for _, v := range variants {
		t.Run(v.name, func(t *testing.T) {
			s := newTestSystem(t, v.bits, v.k)
			n := s.N()
			require.Equal(t, uint(1), n.Bit(0))
			require.Equal(t, v.k, s.K())
			require.Equal(t, v.large, s.LargeMessageVariant())

			// n = p*q with p, q = 3, 5 mod 8 gives n = 7 mod 8.
			require.Equal(t, int64(7), new(big.Int).Mod(n, big.NewInt(8)).Int64())

			deltaK := new(big.Int).Mul(n, big.NewInt(-8))
			require.Zero(t, s.DeltaK().Cmp(deltaK))
			delta := new(big.Int).Lsh(deltaK, uint(2*(v.k+1)))
			require.Zero(t, s.Delta().Cmp(delta))
			require.Zero(t, s.ClDelta().Disc().Cmp(delta))
			require.Zero(t, s.ClDeltaK().Disc().Cmp(deltaK))
			require.Zero(t, s.M().Cmp(new(big.Int).Lsh(big.NewInt(1), uint(v.k))))
			require.Zero(t, s.CleartextBound().Cmp(s.M()))

			cnb, err := s.ClDeltaK().ClassNumberBound()
			require.NoError(t, err)
			require.Zero(t, s.SecretKeyBound().Cmp(new(big.Int).Lsh(cnb, 40)))
			require.Zero(t, s.EncryptRandomnessBound().Cmp(s.SecretKeyBound()))
			require.Equal(t, clhsm.DefaultDistance, s.Distance())

			require.True(t, s.ClDelta().Contains(s.H()))
			require.False(t, s.H().IsOne())
		})
	}
}

func TestDeterministicGeneration(t *testing.T) {
	a := newTestSystem(t, 64, 16)
	b := newTestSystem(t, 64, 16)
	require.Zero(t, a.N().Cmp(b.N()))
	require.True(t, a.H().Equal(b.H()))
}

func TestSuppliedBoundAndDistance(t *testing.T) {
	ref := newTestSystem(t, 64, 16)
	bound := big.NewInt(1 << 20)
	s, err := New(ref.N(), 16, WithClassNumberBound(bound), WithDistance(10))
	require.NoError(t, err)
	require.Zero(t, s.SecretKeyBound().Cmp(big.NewInt(1<<28)))
	require.True(t, s.H().Equal(ref.H()))
}

func TestPowerOfF(t *testing.T) {
	for _, v := range variants {
		t.Run(v.name, func(t *testing.T) {
			s := newTestSystem(t, v.bits, v.k)
			src := testSource("messages " + v.name)
			msgs := testMessages(s, src)
			for _, m := range msgs {
				fm, err := s.PowerOfF(m)
				require.NoError(t, err)
				require.True(t, s.ClDelta().Contains(fm), "f^%s", m)
				got, err := s.DlogInF(fm)
				require.NoError(t, err)
				require.Zero(t, got.Cmp(m), "dlog(f^%s) = %s", m, got)
			}

			one, err := s.PowerOfF(s.M())
			require.NoError(t, err)
			require.True(t, one.IsOne())

			f1, err := s.PowerOfF(big.NewInt(1))
			require.NoError(t, err)
			for _, m := range msgs {
				fm, err := s.PowerOfF(m)
				require.NoError(t, err)
				next, err := s.PowerOfF(new(big.Int).Add(m, big.NewInt(1)))
				require.NoError(t, err)
				require.True(t, s.ClDelta().NuComp(fm, f1).Equal(next), "f^%s * f", m)
			}

			// f has order exactly 2^k.
			require.True(t, s.ClDelta().NuDuplN(f1, v.k).IsOne())
			if v.k > 1 {
				require.False(t, s.ClDelta().NuDuplN(f1, v.k-1).IsOne())
			}
		})
	}
}

func TestEncryptDecrypt(t *testing.T) {
	for _, v := range variants {
		t.Run(v.name, func(t *testing.T) {
			s := newTestSystem(t, v.bits, v.k)
			sk := s.GenerateSecretKey()
			require.True(t, sk.Int().Cmp(s.SecretKeyBound()) <= 0)
			pk := s.DerivePublicKey(sk)
			require.True(t, pk.Form().Equal(s.PowerOfH(sk.Int())))

			src := testSource("encrypt " + v.name)
			for _, m := range testMessages(s, src) {
				ct, err := s.Encrypt(pk, cleartext(t, s, m))
				require.NoError(t, err)
				got, err := s.Decrypt(sk, ct)
				require.NoError(t, err)
				require.Zero(t, got.Int().Cmp(m), "decrypt(encrypt(%s)) = %s", m, got)
			}
		})
	}
}

func TestEncryptWithRandomness(t *testing.T) {
	s := newTestSystem(t, 64, 16)
	sk := s.GenerateSecretKey()
	pk := s.DerivePublicKey(sk)
	m := cleartext(t, s, big.NewInt(4242))
	r := big.NewInt(123456789)

	ct1, err := s.EncryptWithRandomness(pk, m, r)
	require.NoError(t, err)
	ct2, err := s.EncryptWithRandomness(pk, m, r)
	require.NoError(t, err)
	require.True(t, ct1.Equal(ct2))
	require.True(t, ct1.C1().Equal(s.PowerOfH(r)))

	_, err = s.EncryptWithRandomness(pk, m, big.NewInt(-1))
	require.ErrorIs(t, err, clhsm.ErrInvalidArgument)

	// r = 0 leaves f^m in the clear.
	ct0, err := s.EncryptWithRandomness(pk, m, new(big.Int))
	require.NoError(t, err)
	require.True(t, ct0.C1().IsOne())
	fm, err := s.PowerOfF(m.Int())
	require.NoError(t, err)
	require.True(t, ct0.C2().Equal(fm))
}

func TestNewCleartextRange(t *testing.T) {
	s := newTestSystem(t, 40, 2)
	for _, m := range []*big.Int{nil, big.NewInt(-1), big.NewInt(4), big.NewInt(100)} {
		_, err := s.NewCleartext(m)
		require.ErrorIs(t, err, clhsm.ErrInvalidArgument)
	}
	c, err := s.NewCleartext(big.NewInt(3))
	require.NoError(t, err)
	require.Equal(t, "3", c.String())
}

func TestHomomorphicOperations(t *testing.T) {
	for _, v := range variants {
		t.Run(v.name, func(t *testing.T) {
			s := newTestSystem(t, v.bits, v.k)
			sk := s.GenerateSecretKey()
			pk := s.DerivePublicKey(sk)
			src := testSource("homomorphic " + v.name)

			for i := 0; i < 3; i++ {
				m1, m2 := random.Below(src, s.M()), random.Below(src, s.M())
				a, err := s.Encrypt(pk, cleartext(t, s, m1))
				require.NoError(t, err)
				b, err := s.Encrypt(pk, cleartext(t, s, m2))
				require.NoError(t, err)

				sum, err := s.AddCiphertexts(pk, a, b)
				require.NoError(t, err)
				got, err := s.Decrypt(sk, sum)
				require.NoError(t, err)
				want := new(big.Int).Add(m1, m2)
				require.Zero(t, got.Int().Cmp(want.Mod(want, s.M())))

				sc := random.Below(src, s.M())
				prod, err := s.ScalCiphertexts(pk, cleartext(t, s, sc), a)
				require.NoError(t, err)
				got, err = s.Decrypt(sk, prod)
				require.NoError(t, err)
				want = new(big.Int).Mul(m1, sc)
				require.Zero(t, got.Int().Cmp(want.Mod(want, s.M())))
			}
		})
	}
}

func TestAddRerandomizes(t *testing.T) {
	s := newTestSystem(t, 64, 16)
	sk := s.GenerateSecretKey()
	pk := s.DerivePublicKey(sk)
	a, err := s.Encrypt(pk, cleartext(t, s, big.NewInt(5)))
	require.NoError(t, err)
	zero, err := s.EncryptWithRandomness(pk, cleartext(t, s, big.NewInt(0)), new(big.Int))
	require.NoError(t, err)
	sum, err := s.AddCiphertexts(pk, a, zero)
	require.NoError(t, err)
	require.False(t, sum.Equal(a))
	got, err := s.Decrypt(sk, sum)
	require.NoError(t, err)
	require.Equal(t, int64(5), got.Int().Int64())
}

func TestThresholdDecryption(t *testing.T) {
	s := newTestSystem(t, 64, 16)
	sk := s.GenerateSecretKey()
	pk := s.DerivePublicKey(sk)
	m := big.NewInt(31337)
	ct, err := s.Encrypt(pk, cleartext(t, s, m))
	require.NoError(t, err)

	for _, tc := range []struct{ t, n int }{{1, 1}, {2, 3}, {3, 4}, {1, 3}} {
		shares, err := s.SplitIntoShares(sk, tc.t, tc.n)
		require.NoError(t, err)
		require.Len(t, shares, tc.n)
		for _, combo := range accessstructure.Combinations(tc.n, tc.t) {
			var pds []*PartialDecryption
			for _, p := range combo {
				x, err := shares[p].For(combo)
				require.NoError(t, err)
				pd, err := s.PartialDecrypt(x, ct)
				require.NoError(t, err)
				pds = append(pds, pd)
			}
			got, err := s.CombinePartialDecryptions(ct, pds)
			require.NoError(t, err)
			require.Zero(t, got.Int().Cmp(m), "(%d, %d) combination %v", tc.t, tc.n, combo)
		}
	}
}

func TestThresholdMismatchedShares(t *testing.T) {
	s := newTestSystem(t, 64, 16)
	sk := s.GenerateSecretKey()
	pk := s.DerivePublicKey(sk)
	m := big.NewInt(777)
	ct, err := s.Encrypt(pk, cleartext(t, s, m))
	require.NoError(t, err)
	shares, err := s.SplitIntoShares(sk, 2, 3)
	require.NoError(t, err)

	// Party 0's share for {0, 1} with party 2's share for {0, 2}.
	x0, err := shares[0].For([]int{0, 1})
	require.NoError(t, err)
	x2, err := shares[2].For([]int{0, 2})
	require.NoError(t, err)
	pd0, err := s.PartialDecrypt(x0, ct)
	require.NoError(t, err)
	pd2, err := s.PartialDecrypt(x2, ct)
	require.NoError(t, err)
	got, err := s.CombinePartialDecryptions(ct, []*PartialDecryption{pd0, pd2})
	if err == nil {
		require.NotZero(t, got.Int().Cmp(m))
	}

	_, err = s.CombinePartialDecryptions(ct, nil)
	require.ErrorIs(t, err, clhsm.ErrInvalidArgument)
	_, err = shares[1].For([]int{0, 2})
	require.ErrorIs(t, err, clhsm.ErrInvalidArgument)
	_, err = s.SplitIntoShares(sk, 3, 2)
	require.ErrorIs(t, err, clhsm.ErrInvalidArgument)
}

func TestRejectsForeignForms(t *testing.T) {
	s := newTestSystem(t, 64, 16)
	other := newTestSystem(t, 40, 2)
	sk := s.GenerateSecretKey()
	foreignPK := other.DerivePublicKey(other.GenerateSecretKey())
	ct, err := other.Encrypt(foreignPK, cleartext(t, other, big.NewInt(1)))
	require.NoError(t, err)

	_, err = s.Decrypt(sk, ct)
	require.ErrorIs(t, err, clhsm.ErrInvalidArgument)
	_, err = s.PartialDecrypt(big.NewInt(1), ct)
	require.ErrorIs(t, err, clhsm.ErrInvalidArgument)
	_, err = s.Decrypt(sk, nil)
	require.ErrorIs(t, err, clhsm.ErrInvalidArgument)

	data, err := foreignPK.MarshalBinary()
	require.NoError(t, err)
	_, err = s.UnmarshalPublicKey(data)
	require.ErrorIs(t, err, clhsm.ErrInvalidArgument)
}

func TestLiftFromDeltaK(t *testing.T) {
	for _, v := range variants[:2] {
		t.Run(v.name, func(t *testing.T) {
			s := newTestSystem(t, v.bits, v.k)
			cgK := s.ClDeltaK()

			lone, err := s.LiftFromDeltaK(cgK.One())
			require.NoError(t, err)
			require.True(t, lone.IsOne())

			var forms []*big.Int
			for _, l := range bigint.PrimesBelow(1000)[1:] {
				if _, err := cgK.PrimeForm(big.NewInt(l)); err == nil {
					forms = append(forms, big.NewInt(l))
				}
			}
			require.GreaterOrEqual(t, len(forms), 2)
			a, err := cgK.PrimeForm(forms[0])
			require.NoError(t, err)
			b, err := cgK.PrimeForm(forms[1])
			require.NoError(t, err)

			la, err := s.LiftFromDeltaK(a)
			require.NoError(t, err)
			lb, err := s.LiftFromDeltaK(b)
			require.NoError(t, err)
			lab, err := s.LiftFromDeltaK(cgK.NuComp(a, b))
			require.NoError(t, err)
			require.True(t, s.ClDelta().Contains(la))
			require.True(t, lab.Equal(s.ClDelta().NuComp(la, lb)))

			_, err = s.LiftFromDeltaK(s.H())
			require.ErrorIs(t, err, clhsm.ErrInvalidArgument)
		})
	}
}

func TestSerialization(t *testing.T) {
	s := newTestSystem(t, 64, 16)
	sk := s.GenerateSecretKey()
	pk := s.DerivePublicKey(sk)

	pkData, err := pk.MarshalBinary()
	require.NoError(t, err)
	pk2, err := s.UnmarshalPublicKey(pkData)
	require.NoError(t, err)
	require.True(t, pk2.Equal(pk))

	ct, err := s.Encrypt(pk2, cleartext(t, s, big.NewInt(9001)))
	require.NoError(t, err)
	ctData, err := ct.MarshalBinary()
	require.NoError(t, err)
	c1Data, err := ct.C1().MarshalBinary()
	require.NoError(t, err)
	require.Equal(t, uint64(len(c1Data)), leUint64(ctData[:8]))

	ct2 := new(Ciphertext)
	require.NoError(t, ct2.UnmarshalBinary(ctData))
	require.True(t, ct2.Equal(ct))
	got, err := s.Decrypt(sk, ct2)
	require.NoError(t, err)
	require.Equal(t, int64(9001), got.Int().Int64())

	shares, err := s.SplitIntoShares(sk, 2, 3)
	require.NoError(t, err)
	combo := []int{1, 2}
	var pds []*PartialDecryption
	for _, p := range combo {
		data, err := shares[p].MarshalBinary()
		require.NoError(t, err)
		back := new(SecretKeyShare)
		require.NoError(t, back.UnmarshalBinary(data))
		require.Equal(t, shares[p].Party, back.Party)
		require.Equal(t, shares[p].Threshold, back.Threshold)
		require.Len(t, back.Values, len(shares[p].Values))

		x, err := back.For(combo)
		require.NoError(t, err)
		pd, err := s.PartialDecrypt(x, ct2)
		require.NoError(t, err)
		pdData, err := pd.MarshalBinary()
		require.NoError(t, err)
		pd2 := new(PartialDecryption)
		require.NoError(t, pd2.UnmarshalBinary(pdData))
		require.True(t, pd2.Form().Equal(pd.Form()))
		pds = append(pds, pd2)
	}
	got, err = s.CombinePartialDecryptions(ct2, pds)
	require.NoError(t, err)
	require.Equal(t, int64(9001), got.Int().Int64())
}

func TestSerializationMalformed(t *testing.T) {
	ct := new(Ciphertext)
	require.ErrorIs(t, ct.UnmarshalBinary([]byte{1, 2}), clhsm.ErrShortBuffer)
	require.ErrorIs(t, ct.UnmarshalBinary([]byte{0xff, 0, 0, 0, 0, 0, 0, 0, 1}), clhsm.ErrMalformedWireData)

	sh := new(SecretKeyShare)
	require.ErrorIs(t, sh.UnmarshalBinary(make([]byte, 15)), clhsm.ErrShortBuffer)
	// t = 0
	require.ErrorIs(t, sh.UnmarshalBinary(make([]byte, 16)), clhsm.ErrMalformedWireData)

	good := &SecretKeyShare{
		Party:     1,
		Threshold: accessstructure.Threshold{T: 2, N: 3},
		Values:    []*big.Int{big.NewInt(5), big.NewInt(70000)},
	}
	data, err := good.MarshalBinary()
	require.NoError(t, err)
	require.NoError(t, sh.UnmarshalBinary(data))
	require.ErrorIs(t, sh.UnmarshalBinary(data[:len(data)-1]), clhsm.ErrMalformedWireData)
	require.ErrorIs(t, sh.UnmarshalBinary(append(data, 0)), clhsm.ErrMalformedWireData)

	bad := *good
	bad.Values = []*big.Int{big.NewInt(-1), big.NewInt(1)}
	_, err = bad.MarshalBinary()
	require.ErrorIs(t, err, clhsm.ErrInvalidArgument)
}

func TestSecretsStayOutOfLogs(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.New(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	s, err := Generate(40, 2, WithRandom(testSource("logs")), WithLogger(logger))
	require.NoError(t, err)
	require.Contains(t, buf.String(), "system ready")

	sk := s.GenerateSecretKey()
	shares, err := s.SplitIntoShares(sk, 2, 3)
	require.NoError(t, err)
	out := buf.String()
	require.Contains(t, out, logging.Placeholder())
	require.NotContains(t, out, sk.Int().String())
	for _, v := range shares[0].Values {
		require.NotContains(t, out, v.String())
	}
	require.True(t, strings.HasPrefix(sk.String(), "SecretKey("))
	require.NotContains(t, sk.String(), sk.Int().String())

	sk.Destroy()
	require.Zero(t, sk.Int().Sign())
}

func Test128BitRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("128-bit parameters")
	}
	s := newTestSystem(t, 128, 128)
	require.True(t, s.LargeMessageVariant())
	sk := s.GenerateSecretKey()
	pk := s.DerivePublicKey(sk)
	src := testSource("128")
	for _, m := range []*big.Int{new(big.Int), random.Below(src, s.M())} {
		ct, err := s.Encrypt(pk, cleartext(t, s, m))
		require.NoError(t, err)
		got, err := s.Decrypt(sk, ct)
		require.NoError(t, err)
		require.Zero(t, got.Int().Cmp(m))
	}

	shares, err := s.SplitIntoShares(sk, 2, 3)
	require.NoError(t, err)
	m := random.Below(src, s.M())
	ct, err := s.Encrypt(pk, cleartext(t, s, m))
	require.NoError(t, err)
	combo := []int{0, 2}
	var pds []*PartialDecryption
	for _, p := range combo {
		x, err := shares[p].For(combo)
		require.NoError(t, err)
		pd, err := s.PartialDecrypt(x, ct)
		require.NoError(t, err)
		pds = append(pds, pd)
	}
	got, err := s.CombinePartialDecryptions(ct, pds)
	require.NoError(t, err)
	require.Zero(t, got.Int().Cmp(m))
}

func leUint64(b []byte) uint64 {
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}
