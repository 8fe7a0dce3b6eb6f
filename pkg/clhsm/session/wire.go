package session

import (
	"encoding/binary"

	"github.com/cofhe/clhsm-go/pkg/clhsm"
)

const (
	statusOK    byte = 0
	statusError byte = 1
)

// request is the client's message to one member of the subset:
//
//	u32le len(combination) || u32le party... || u32le len(ct) || ct || recipient public key
type request struct {
	combination []int
	ciphertext  []byte
	recipient   []byte
}

func (r *request) marshal() []byte {
	out := make([]byte, 0, 8+4*len(r.combination)+len(r.ciphertext)+len(r.recipient))
	out = binary.LittleEndian.AppendUint32(out, uint32(len(r.combination)))
	for _, p := range r.combination {
		out = binary.LittleEndian.AppendUint32(out, uint32(p))
	}
	out = binary.LittleEndian.AppendUint32(out, uint32(len(r.ciphertext)))
	out = append(out, r.ciphertext...)
	return append(out, r.recipient...)
}

func parseRequest(data []byte) (*request, error) {
	const op = "session.parseRequest"
	if len(data) < 4 {
		return nil, clhsm.Wrap(op, clhsm.ErrShortBuffer)
	}
	n := binary.LittleEndian.Uint32(data)
	data = data[4:]
	if uint64(n)*4+4 > uint64(len(data)) {
		return nil, clhsm.Errorf(op, clhsm.ErrMalformedWireData, "combination of %d parties exceeds %d bytes", n, len(data))
	}
	combo := make([]int, n)
	for i := range combo {
		combo[i] = int(binary.LittleEndian.Uint32(data))
		data = data[4:]
	}
	l := binary.LittleEndian.Uint32(data)
	data = data[4:]
	if uint64(l) > uint64(len(data)) {
		return nil, clhsm.Errorf(op, clhsm.ErrMalformedWireData, "ciphertext length %d exceeds %d bytes", l, len(data))
	}
	if uint64(l) == uint64(len(data)) {
		return nil, clhsm.Errorf(op, clhsm.ErrMalformedWireData, "missing recipient key")
	}
	return &request{combination: combo, ciphertext: data[:l], recipient: data[l:]}, nil
}

// reply is a status byte followed by the sealed partial decryption, or by
// an error text when the party refused.
func okReply(sealed []byte) []byte {
	return append([]byte{statusOK}, sealed...)
}

func errorReply(err error) []byte {
	return append([]byte{statusError}, err.Error()...)
}

func parseReply(party int, data []byte) ([]byte, error) {
	const op = "session.parseReply"
	if len(data) == 0 {
		return nil, clhsm.Wrap(op, clhsm.ErrShortBuffer)
	}
	switch data[0] {
	case statusOK:
		return data[1:], nil
	case statusError:
		return nil, clhsm.Errorf(op, ErrRefused, "party %d: %s", party, data[1:])
	default:
		return nil, clhsm.Errorf(op, clhsm.ErrMalformedWireData, "party %d sent status %d", party, data[0])
	}
}
