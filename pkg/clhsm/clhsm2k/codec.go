package clhsm2k

import (
	"encoding/binary"
	"math/big"

	"github.com/cofhe/clhsm-go/pkg/clhsm"
	"github.com/cofhe/clhsm-go/pkg/clhsm/accessstructure"
	"github.com/cofhe/clhsm-go/pkg/clhsm/qfi"
)

// MarshalBinary encodes the public key as its form.
func (pk *PublicKey) MarshalBinary() ([]byte, error) {
	return pk.pk.MarshalBinary()
}

// UnmarshalPublicKey decodes a public key, checks that it lies in Cl(Delta)
// and rebuilds its ladder.
func (s *System) UnmarshalPublicKey(data []byte) (*PublicKey, error) {
	const op = "clhsm2k.UnmarshalPublicKey"
	f, err := qfi.Unmarshal(data)
	if err != nil {
		return nil, clhsm.Wrap(op, err)
	}
	if !s.clDelta.Contains(f) {
		return nil, clhsm.Errorf(op, clhsm.ErrInvalidArgument, "public key is not in Cl(Delta)")
	}
	return s.newPublicKey(f), nil
}

// MarshalBinary encodes the ciphertext as
//
//	u64le len(c1) || c1 || c2
//
// with both forms in the qfi wire format.
func (ct *Ciphertext) MarshalBinary() ([]byte, error) {
	b1, err := ct.c1.MarshalBinary()
	if err != nil {
		return nil, err
	}
	b2, err := ct.c2.MarshalBinary()
	if err != nil {
		return nil, err
	}
	out := make([]byte, 8, 8+len(b1)+len(b2))
	binary.LittleEndian.PutUint64(out, uint64(len(b1)))
	out = append(out, b1...)
	return append(out, b2...), nil
}

// UnmarshalBinary decodes the MarshalBinary encoding. It does not check
// group membership; every System operation does.
func (ct *Ciphertext) UnmarshalBinary(data []byte) error {
	const op = "clhsm2k.Ciphertext.UnmarshalBinary"
	if len(data) < 8 {
		return clhsm.Wrap(op, clhsm.ErrShortBuffer)
	}
	n := binary.LittleEndian.Uint64(data)
	rest := data[8:]
	if n > uint64(len(rest)) {
		return clhsm.Errorf(op, clhsm.ErrMalformedWireData, "c1 length %d exceeds %d remaining bytes", n, len(rest))
	}
	c1, err := qfi.Unmarshal(rest[:n])
	if err != nil {
		return clhsm.Wrap(op, err)
	}
	c2, err := qfi.Unmarshal(rest[n:])
	if err != nil {
		return clhsm.Wrap(op, err)
	}
	ct.c1, ct.c2 = c1, c2
	return nil
}

// MarshalBinary encodes the partial decryption as a single form.
func (pd *PartialDecryption) MarshalBinary() ([]byte, error) {
	return pd.d.MarshalBinary()
}

// UnmarshalBinary decodes a single form.
func (pd *PartialDecryption) UnmarshalBinary(data []byte) error {
	d, err := qfi.Unmarshal(data)
	if err != nil {
		return clhsm.Wrap("clhsm2k.PartialDecryption.UnmarshalBinary", err)
	}
	pd.d = d
	return nil
}

// MarshalBinary encodes the share set as u32le party, t, n and value count
// followed by each value as u32le length || big-endian magnitude.
func (s *SecretKeyShare) MarshalBinary() ([]byte, error) {
	out := make([]byte, 16)
	binary.LittleEndian.PutUint32(out[0:], uint32(s.Party))
	binary.LittleEndian.PutUint32(out[4:], uint32(s.Threshold.T))
	binary.LittleEndian.PutUint32(out[8:], uint32(s.Threshold.N))
	binary.LittleEndian.PutUint32(out[12:], uint32(len(s.Values)))
	for i, v := range s.Values {
		if v.Sign() < 0 {
			return nil, clhsm.Errorf("clhsm2k.SecretKeyShare.MarshalBinary", clhsm.ErrInvalidArgument, "share %d is negative", i)
		}
		b := v.Bytes()
		out = binary.LittleEndian.AppendUint32(out, uint32(len(b)))
		out = append(out, b...)
	}
	return out, nil
}

// UnmarshalBinary decodes the MarshalBinary encoding and checks the share
// count against the threshold structure.
func (s *SecretKeyShare) UnmarshalBinary(data []byte) error {
	const op = "clhsm2k.SecretKeyShare.UnmarshalBinary"
	if len(data) < 16 {
		return clhsm.Wrap(op, clhsm.ErrShortBuffer)
	}
	party := int(binary.LittleEndian.Uint32(data[0:]))
	th, err := accessstructure.NewThreshold(int(binary.LittleEndian.Uint32(data[4:])), int(binary.LittleEndian.Uint32(data[8:])))
	if err != nil {
		return clhsm.Errorf(op, clhsm.ErrMalformedWireData, "threshold: %v", err)
	}
	if party >= th.N {
		return clhsm.Errorf(op, clhsm.ErrMalformedWireData, "party %d out of range", party)
	}
	count := binary.LittleEndian.Uint32(data[12:])
	if want := accessstructure.Binomial(th.N-1, th.T-1); !want.IsInt64() || int64(count) != want.Int64() {
		return clhsm.Errorf(op, clhsm.ErrMalformedWireData, "%d shares for a (%d, %d) structure", count, th.T, th.N)
	}
	rest := data[16:]
	values := make([]*big.Int, 0, count)
	for i := uint32(0); i < count; i++ {
		if len(rest) < 4 {
			return clhsm.Wrap(op, clhsm.ErrShortBuffer)
		}
		l := binary.LittleEndian.Uint32(rest)
		rest = rest[4:]
		if uint64(l) > uint64(len(rest)) {
			return clhsm.Errorf(op, clhsm.ErrMalformedWireData, "share %d length %d exceeds %d remaining bytes", i, l, len(rest))
		}
		values = append(values, new(big.Int).SetBytes(rest[:l]))
		rest = rest[l:]
	}
	if len(rest) != 0 {
		return clhsm.Errorf(op, clhsm.ErrMalformedWireData, "%d trailing bytes", len(rest))
	}
	s.Party, s.Threshold, s.Values = party, th, values
	return nil
}
