package reencrypt

import (
	"encoding/binary"

	"github.com/cofhe/clhsm-go/pkg/clhsm"
	"github.com/cofhe/clhsm-go/pkg/clhsm/clhsm2k"
	"github.com/cofhe/clhsm-go/pkg/clhsm/cryptosystem"
)

// KeyPair is a recipient key pair in the encoding of its Reencryptor.
type KeyPair struct {
	Private []byte
	Public  []byte
}

// Destroy zeroizes the private key.
func (kp *KeyPair) Destroy() {
	clhsm.ZeroizeBytes(kp.Private)
}

// Reencryptor is public-key encryption used only to keep partial
// decryptions confidential on their way from a party to the client.
type Reencryptor interface {
	// Name identifies the scheme in configuration ("rsa", "ecies").
	Name() string
	GenerateKeyPair() (*KeyPair, error)
	// Seal encrypts msg to the recipient public key.
	Seal(recipientPub, msg []byte) ([]byte, error)
	// Open decrypts a Seal output with the matching private key.
	Open(recipientPriv, sealed []byte) ([]byte, error)
}

// New returns the reencryptor named by scheme: "rsa" with rsaBits-bit keys,
// or "ecies".
func New(scheme string, rsaBits int, opts ...Option) (Reencryptor, error) {
	switch scheme {
	case "rsa":
		return NewRSA(rsaBits, opts...)
	case "ecies":
		return NewECIES(opts...), nil
	default:
		return nil, clhsm.Errorf("reencrypt.New", clhsm.ErrInvalidArgument, "unknown scheme %q", scheme)
	}
}

// Reencrypt serializes pd and seals it to recipientPub.
func Reencrypt(r Reencryptor, cs cryptosystem.CL, pd *clhsm2k.PartialDecryption, recipientPub []byte) ([]byte, error) {
	data, err := cs.SerializePartialDecryption(pd)
	if err != nil {
		return nil, clhsm.Wrap("reencrypt.Reencrypt", err)
	}
	return r.Seal(recipientPub, data)
}

// Decrypt opens every reencrypted partial decryption of batch, a
// Concatenate output in combination order, and combines them for ct.
func Decrypt(r Reencryptor, cs cryptosystem.CL, batch []byte, ct *clhsm2k.Ciphertext, recipientPriv []byte) (*clhsm2k.Cleartext, error) {
	const op = "reencrypt.Decrypt"
	parts, err := Split(batch)
	if err != nil {
		return nil, clhsm.Wrap(op, err)
	}
	pds := make([]*clhsm2k.PartialDecryption, len(parts))
	for i, p := range parts {
		data, err := r.Open(recipientPriv, p)
		if err != nil {
			return nil, clhsm.Wrap(op, err)
		}
		if pds[i], err = cs.DeserializePartialDecryption(data); err != nil {
			return nil, clhsm.Wrap(op, err)
		}
	}
	return cs.CombinePartialDecryptions(ct, pds)
}

// Concatenate frames parts as
//
//	u64le count || count * u64le offset || payloads
//
// where every offset is absolute and the last payload runs to the end.
func Concatenate(parts [][]byte) []byte {
	header := 8 * (1 + len(parts))
	size := header
	for _, p := range parts {
		size += len(p)
	}
	out := make([]byte, header, size)
	binary.LittleEndian.PutUint64(out, uint64(len(parts)))
	off := header
	for i, p := range parts {
		binary.LittleEndian.PutUint64(out[8*(i+1):], uint64(off))
		off += len(p)
	}
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// Split inverts Concatenate. The returned slices alias blob.
func Split(blob []byte) ([][]byte, error) {
	const op = "reencrypt.Split"
	if len(blob) < 8 {
		return nil, clhsm.Wrap(op, clhsm.ErrShortBuffer)
	}
	count := binary.LittleEndian.Uint64(blob)
	if count > uint64(len(blob)-8)/8 {
		return nil, clhsm.Errorf(op, clhsm.ErrMalformedWireData, "count %d does not fit in %d bytes", count, len(blob))
	}
	header := 8 * (count + 1)
	offsets := make([]uint64, count+1)
	for i := uint64(0); i < count; i++ {
		offsets[i] = binary.LittleEndian.Uint64(blob[8*(i+1):])
	}
	offsets[count] = uint64(len(blob))
	if count == 0 && len(blob) != 8 {
		return nil, clhsm.Errorf(op, clhsm.ErrMalformedWireData, "%d trailing bytes", len(blob)-8)
	}
	if count > 0 && offsets[0] != header {
		return nil, clhsm.Errorf(op, clhsm.ErrMalformedWireData, "first offset %d, want %d", offsets[0], header)
	}
	parts := make([][]byte, count)
	for i := range parts {
		lo, hi := offsets[i], offsets[i+1]
		if lo > hi || hi > uint64(len(blob)) {
			return nil, clhsm.Errorf(op, clhsm.ErrMalformedWireData, "offsets %d..%d out of order", lo, hi)
		}
		parts[i] = blob[lo:hi:hi]
	}
	return parts, nil
}
