package clhsm2k

import (
	"math/big"

	"github.com/cofhe/clhsm-go/pkg/clhsm"
	"github.com/cofhe/clhsm-go/pkg/clhsm/accessstructure"
	"github.com/cofhe/clhsm-go/pkg/clhsm/qfi"
	"github.com/cofhe/clhsm-go/pkg/clhsm/random"
)

// Cleartext is an element of Z/2^k.
type Cleartext struct {
	v *big.Int
}

// NewCleartext validates m in [0, 2^k).
func (s *System) NewCleartext(m *big.Int) (*Cleartext, error) {
	if m == nil || m.Sign() < 0 || m.Cmp(s.m) >= 0 {
		return nil, clhsm.Errorf("clhsm2k.NewCleartext", clhsm.ErrInvalidArgument, "cleartext must lie in [0, 2^%d)", s.k)
	}
	return &Cleartext{v: new(big.Int).Set(m)}, nil
}

// Int returns a copy of the value.
func (c *Cleartext) Int() *big.Int { return new(big.Int).Set(c.v) }

func (c *Cleartext) String() string { return c.v.String() }

// Ciphertext is the pair (h^r, f^m * pk^r).
type Ciphertext struct {
	c1, c2 *qfi.QFI
}

// NewCiphertext builds a ciphertext from its two forms.
func NewCiphertext(c1, c2 *qfi.QFI) *Ciphertext {
	return &Ciphertext{c1: c1.Clone(), c2: c2.Clone()}
}

// C1 returns a copy of h^r.
func (ct *Ciphertext) C1() *qfi.QFI { return ct.c1.Clone() }

// C2 returns a copy of f^m * pk^r.
func (ct *Ciphertext) C2() *qfi.QFI { return ct.c2.Clone() }

// Equal compares both components.
func (ct *Ciphertext) Equal(other *Ciphertext) bool {
	return ct.c1.Equal(other.c1) && ct.c2.Equal(other.c2)
}

// PartialDecryption is c1^share for one party's share.
type PartialDecryption struct {
	d *qfi.QFI
}

// NewPartialDecryption wraps a form.
func NewPartialDecryption(d *qfi.QFI) *PartialDecryption {
	return &PartialDecryption{d: d.Clone()}
}

// Form returns a copy of c1^share.
func (pd *PartialDecryption) Form() *qfi.QFI { return pd.d.Clone() }

// Encrypt encrypts m under pk with fresh randomness.
func (s *System) Encrypt(pk *PublicKey, m *Cleartext) (*Ciphertext, error) {
	return s.EncryptWithRandomness(pk, m, random.Int(s.src, s.exponentBound))
}

// EncryptWithRandomness returns (h^r, f^m * pk^r).
func (s *System) EncryptWithRandomness(pk *PublicKey, m *Cleartext, r *big.Int) (*Ciphertext, error) {
	const op = "clhsm2k.Encrypt"
	if r == nil || r.Sign() < 0 {
		return nil, clhsm.Errorf(op, clhsm.ErrInvalidArgument, "randomness must be nonnegative")
	}
	fm, err := s.PowerOfF(m.v)
	if err != nil {
		return nil, clhsm.Wrap(op, err)
	}
	return &Ciphertext{
		c1: s.PowerOfH(r),
		c2: s.clDelta.NuComp(fm, s.clDelta.NuPow2Forms2Exp(pk.ladder, r)),
	}, nil
}

// Decrypt returns dlog_f(c2 * c1^-sk).
func (s *System) Decrypt(sk *SecretKey, ct *Ciphertext) (*Cleartext, error) {
	const op = "clhsm2k.Decrypt"
	if err := s.checkCiphertext(ct); err != nil {
		return nil, clhsm.Wrap(op, err)
	}
	fm := s.clDelta.NuCompInv(ct.c2, s.clDelta.NuPow(ct.c1, sk.x))
	m, err := s.DlogInF(fm)
	if err != nil {
		return nil, clhsm.Wrap(op, err)
	}
	return &Cleartext{v: m}, nil
}

// PartialDecrypt returns c1^share. Shares have no precomputed ladder, so
// this is a plain windowed exponentiation.
func (s *System) PartialDecrypt(share *big.Int, ct *Ciphertext) (*PartialDecryption, error) {
	const op = "clhsm2k.PartialDecrypt"
	if share == nil {
		return nil, clhsm.Errorf(op, clhsm.ErrInvalidArgument, "nil share")
	}
	if err := s.checkCiphertext(ct); err != nil {
		return nil, clhsm.Wrap(op, err)
	}
	return &PartialDecryption{d: s.clDelta.NuPow(ct.c1, share)}, nil
}

// CombinePartialDecryptions recovers the cleartext from the partial
// decryptions of the members of one t-subset, given in increasing party
// order. It combines them with the coefficients (1, -1, ..., -1): shares of
// different subsets, or of the right subset in the wrong order, yield an
// unrelated value or an ErrNotInKernel failure.
func (s *System) CombinePartialDecryptions(ct *Ciphertext, pds []*PartialDecryption) (*Cleartext, error) {
	const op = "clhsm2k.CombinePartialDecryptions"
	if len(pds) == 0 {
		return nil, clhsm.Errorf(op, clhsm.ErrInvalidArgument, "no partial decryptions")
	}
	if err := s.checkCiphertext(ct); err != nil {
		return nil, clhsm.Wrap(op, err)
	}
	lambda := accessstructure.Lambda(len(pds))
	d := s.clDelta.One()
	for i, pd := range pds {
		if pd == nil || !s.clDelta.Contains(pd.d) {
			return nil, clhsm.Errorf(op, clhsm.ErrInvalidArgument, "partial decryption %d is not in Cl(Delta)", i)
		}
		if lambda[i] > 0 {
			d = s.clDelta.NuComp(d, pd.d)
		} else {
			d = s.clDelta.NuCompInv(d, pd.d)
		}
	}
	m, err := s.DlogInF(s.clDelta.NuCompInv(ct.c2, d))
	if err != nil {
		return nil, clhsm.Wrap(op, err)
	}
	return &Cleartext{v: m}, nil
}

// AddCiphertexts returns an encryption of ma + mb, rerandomized with a
// fresh r: (c1a * c1b * h^r, c2a * c2b * pk^r).
func (s *System) AddCiphertexts(pk *PublicKey, a, b *Ciphertext) (*Ciphertext, error) {
	const op = "clhsm2k.AddCiphertexts"
	if err := s.checkCiphertext(a); err != nil {
		return nil, clhsm.Wrap(op, err)
	}
	if err := s.checkCiphertext(b); err != nil {
		return nil, clhsm.Wrap(op, err)
	}
	r := random.Int(s.src, s.exponentBound)
	c1 := s.clDelta.NuComp(s.clDelta.NuComp(a.c1, b.c1), s.PowerOfH(r))
	c2 := s.clDelta.NuComp(s.clDelta.NuComp(a.c2, b.c2), s.clDelta.NuPow2Forms2Exp(pk.ladder, r))
	return &Ciphertext{c1: c1, c2: c2}, nil
}

// ScalCiphertexts returns an encryption of m * ct's cleartext, rerandomized
// with a fresh r: (h^r * c1^m, c2^m * pk^r).
func (s *System) ScalCiphertexts(pk *PublicKey, m *Cleartext, ct *Ciphertext) (*Ciphertext, error) {
	const op = "clhsm2k.ScalCiphertexts"
	if err := s.checkCiphertext(ct); err != nil {
		return nil, clhsm.Wrap(op, err)
	}
	r := random.Int(s.src, s.exponentBound)
	c1 := s.clDelta.NuComp(s.PowerOfH(r), s.clDelta.NuPow(ct.c1, m.v))
	c2 := s.clDelta.NuComp(s.clDelta.NuPow(ct.c2, m.v), s.clDelta.NuPow2Forms2Exp(pk.ladder, r))
	return &Ciphertext{c1: c1, c2: c2}, nil
}

func (s *System) checkCiphertext(ct *Ciphertext) error {
	if ct == nil || ct.c1 == nil || ct.c2 == nil {
		return clhsm.Errorf("clhsm2k.Ciphertext", clhsm.ErrInvalidArgument, "nil ciphertext")
	}
	if !s.clDelta.Contains(ct.c1) || !s.clDelta.Contains(ct.c2) {
		return clhsm.Errorf("clhsm2k.Ciphertext", clhsm.ErrInvalidArgument, "ciphertext is not in Cl(Delta)")
	}
	return nil
}
