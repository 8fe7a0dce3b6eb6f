package random

import (
	"crypto/rand"
	"io"
	"math/big"
)

// Source fills buffers with random bytes. Implementations used for key
// material must be cryptographically secure.
type Source interface {
	Fill(buf []byte)
}

type systemSource struct{}

func (systemSource) Fill(buf []byte) {
	// crypto/rand.Read never returns an error on supported platforms.
	_, _ = rand.Read(buf)
}

// Default returns the operating system CSPRNG.
func Default() Source {
	return systemSource{}
}

// OrDefault returns src, or Default() when src is nil.
func OrDefault(src Source) Source {
	if src == nil {
		return Default()
	}
	return src
}

type reader struct {
	src Source
}

func (r reader) Read(p []byte) (int, error) {
	r.src.Fill(p)
	return len(p), nil
}

// Reader adapts src to io.Reader for APIs such as crypto/rsa that consume one.
func Reader(src Source) io.Reader {
	return reader{src: OrDefault(src)}
}

// Bytes returns n fresh bytes from src.
func Bytes(src Source, n int) []byte {
	buf := make([]byte, n)
	OrDefault(src).Fill(buf)
	return buf
}

// Int returns a uniform integer in the closed interval [0, n]. A nil or
// negative n yields 0.
func Int(src Source, n *big.Int) *big.Int {
	if n == nil || n.Sign() <= 0 {
		return new(big.Int)
	}
	return uniform(OrDefault(src), n, true)
}

// Below returns a uniform integer in [0, n). n must be positive; a nil or
// nonpositive n yields 0.
func Below(src Source, n *big.Int) *big.Int {
	if n == nil || n.Sign() <= 0 {
		return new(big.Int)
	}
	return uniform(OrDefault(src), n, false)
}

// Bits returns a uniform integer in [0, 2^nbits).
func Bits(src Source, nbits int) *big.Int {
	if nbits <= 0 {
		return new(big.Int)
	}
	buf := make([]byte, (nbits+7)/8)
	OrDefault(src).Fill(buf)
	if excess := len(buf)*8 - nbits; excess > 0 {
		buf[0] &= byte(0xff >> excess)
	}
	return new(big.Int).SetBytes(buf)
}

// uniform rejection-samples bitlen(n) bits until the candidate falls in range.
func uniform(src Source, n *big.Int, inclusive bool) *big.Int {
	nbits := n.BitLen()
	for {
		v := Bits(src, nbits)
		c := v.Cmp(n)
		if c < 0 || (inclusive && c == 0) {
			return v
		}
	}
}
