package qfi

import (
	"encoding/binary"
	"math/big"

	"github.com/cofhe/clhsm-go/pkg/clhsm"
	"github.com/cofhe/clhsm-go/pkg/clhsm/bigint"
)

// Wire layout of a form:
//
//	header  uint64 little endian
//	        bit 63, 62, 61: a, b, c is nonpositive
//	        bits 31..60:    byte length of |a|
//	        bits 1..30:     byte length of |b|
//	|a|     little endian
//	|b|     little endian
//	|c|     little endian, the rest of the buffer
//
// Each magnitude takes ceil(nbits/8) bytes, so zero takes one byte.
const (
	headerSize = 8
	lenMask    = 1<<30 - 1
	signA      = 1 << 63
	signB      = 1 << 62
	signC      = 1 << 61
	lenAShift  = 31
	lenBShift  = 1
)

// MarshalBinary implements encoding.BinaryMarshaler.
func (f *QFI) MarshalBinary() ([]byte, error) {
	const op = "qfi.MarshalBinary"
	la, lb, lc := magnitudeLen(f.a), magnitudeLen(f.b), magnitudeLen(f.c)
	if la > lenMask || lb > lenMask {
		return nil, clhsm.Errorf(op, clhsm.ErrInvalidArgument, "coefficient too large to encode")
	}
	var h uint64
	if f.a.Sign() <= 0 {
		h |= signA
	}
	if f.b.Sign() <= 0 {
		h |= signB
	}
	if f.c.Sign() <= 0 {
		h |= signC
	}
	h |= uint64(la) << lenAShift
	h |= uint64(lb) << lenBShift

	buf := make([]byte, headerSize+la+lb+lc)
	binary.LittleEndian.PutUint64(buf, h)
	off := headerSize
	for _, x := range []struct {
		v *big.Int
		n int
	}{{f.a, la}, {f.b, lb}, {f.c, lc}} {
		putMagnitude(buf[off:off+x.n], x.v)
		off += x.n
	}
	return buf, nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler. It checks the
// framing only; use ClassGroup.Contains to validate the decoded form.
func (f *QFI) UnmarshalBinary(data []byte) error {
	const op = "qfi.UnmarshalBinary"
	if len(data) < headerSize {
		return clhsm.Errorf(op, clhsm.ErrShortBuffer, "need %d header bytes, got %d", headerSize, len(data))
	}
	h := binary.LittleEndian.Uint64(data)
	la := int((h >> lenAShift) & lenMask)
	lb := int((h >> lenBShift) & lenMask)
	rest := len(data) - headerSize
	if la+lb > rest {
		return clhsm.Errorf(op, clhsm.ErrMalformedWireData, "lengths %d+%d exceed %d payload bytes", la, lb, rest)
	}
	body := data[headerSize:]
	a := getMagnitude(body[:la], h&signA != 0)
	b := getMagnitude(body[la:la+lb], h&signB != 0)
	c := getMagnitude(body[la+lb:], h&signC != 0)
	f.a, f.b, f.c = a, b, c
	return nil
}

// Unmarshal decodes a form.
func Unmarshal(data []byte) (*QFI, error) {
	f := new(QFI)
	if err := f.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	return f, nil
}

func magnitudeLen(x *big.Int) int {
	return (bigint.NBits(x) + 7) / 8
}

// putMagnitude writes |x| little endian into dst, which is exactly
// magnitudeLen(x) bytes long.
func putMagnitude(dst []byte, x *big.Int) {
	new(big.Int).Abs(x).FillBytes(dst)
	reverse(dst)
}

func getMagnitude(src []byte, negative bool) *big.Int {
	be := make([]byte, len(src))
	copy(be, src)
	reverse(be)
	v := new(big.Int).SetBytes(be)
	if negative {
		v.Neg(v)
	}
	return v
}

func reverse(b []byte) {
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
}
