package random

import (
	"sync"

	"golang.org/x/crypto/sha3"
)

// SHAKE is a deterministic Source expanding a seed with SHAKE256. It is NOT
// suitable for key material; use it for reproducible tests and demos.
type SHAKE struct {
	mu sync.Mutex
	h  sha3.ShakeHash
}

// NewSHAKE seeds a deterministic stream. Equal seeds produce equal streams.
func NewSHAKE(seed []byte) *SHAKE {
	h := sha3.NewShake256()
	_, _ = h.Write([]byte("clhsm-go/random/shake"))
	_, _ = h.Write(seed)
	return &SHAKE{h: h}
}

// Fill implements Source.
func (s *SHAKE) Fill(buf []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = s.h.Read(buf)
}
