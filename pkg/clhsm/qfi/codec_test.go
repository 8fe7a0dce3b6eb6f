package qfi

import (
	"encoding/hex"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cofhe/clhsm-go/pkg/clhsm"
)

func TestMarshalVector(t *testing.T) {
	f := New(big.NewInt(5), big.NewInt(-3), big.NewInt(0))
	data, err := f.MarshalBinary()
	require.NoError(t, err)
	require.Equal(t, "0200008000000060"+"05"+"03"+"00", hex.EncodeToString(data))

	g, err := Unmarshal(data)
	require.NoError(t, err)
	require.True(t, g.Equal(f))
}

func TestMarshalRoundTrip(t *testing.T) {
	// b needs 40 bytes, a one byte.
	b := new(big.Int).Lsh(big.NewInt(1), 319)
	b.Sub(big.NewInt(12345), b)
	forms := []*QFI{
		New(big.NewInt(1), b, big.NewInt(300)),
		New(big.NewInt(-7), big.NewInt(0), bi("-123456789012345678901234567890")),
		New(big.NewInt(0), big.NewInt(0), big.NewInt(0)),
		Identity(testDiscriminant()),
	}
	for _, f := range forms {
		data, err := f.MarshalBinary()
		require.NoError(t, err)
		g := new(QFI)
		require.NoError(t, g.UnmarshalBinary(data))
		require.True(t, g.Equal(f), "got %s want %s", g, f)
	}

	data, err := forms[0].MarshalBinary()
	require.NoError(t, err)
	require.Len(t, data, 8+1+40+2)
	require.Equal(t, "5000008000000040", hex.EncodeToString(data[:8]))
}

func TestMarshalGroupElements(t *testing.T) {
	cg := testGroup(t)
	for _, f := range primeForms(t, cg, 3) {
		g := cg.NuPow(f, big.NewInt(987654321))
		data, err := g.MarshalBinary()
		require.NoError(t, err)
		back, err := Unmarshal(data)
		require.NoError(t, err)
		require.True(t, back.Equal(g))
		require.True(t, cg.Contains(back))
	}
}

func TestUnmarshalMalformed(t *testing.T) {
	_, err := Unmarshal([]byte{1, 2, 3})
	require.ErrorIs(t, err, clhsm.ErrShortBuffer)
	require.ErrorIs(t, err, clhsm.ErrMalformedWireData)

	f := New(big.NewInt(1000), big.NewInt(1), big.NewInt(1))
	data, err := f.MarshalBinary()
	require.NoError(t, err)
	// Drop the payload of c and one byte of a.
	_, err = Unmarshal(data[:8+1])
	require.ErrorIs(t, err, clhsm.ErrMalformedWireData)

	// Empty c decodes as zero.
	g, err := Unmarshal(data[:8+2+1])
	require.NoError(t, err)
	require.Zero(t, g.C().Sign())
}
