package cryptosystem

import (
	"math/big"

	"github.com/cofhe/clhsm-go/pkg/clhsm"
	"github.com/cofhe/clhsm-go/pkg/clhsm/clhsm2k"
)

// CryptoSystem is a linearly homomorphic encryption scheme with threshold
// decryption. Implementations must be safe for concurrent use.
type CryptoSystem[SK, Share, PK, PT, CT, PD any] interface {
	GenerateSecretKey() SK
	DerivePublicKey(sk SK) PK
	// SplitIntoShares returns one share set per party; any t parties can
	// decrypt together.
	SplitIntoShares(sk SK, t, n int) ([]Share, error)

	NewPlaintext(m *big.Int) (PT, error)
	Encrypt(pk PK, m PT) (CT, error)
	Decrypt(sk SK, ct CT) (PT, error)

	// PartialDecrypt is the contribution of share's owner when decrypting
	// with the parties of combination.
	PartialDecrypt(share Share, combination []int, ct CT) (PD, error)
	// CombinePartialDecryptions expects the partial decryptions of one
	// combination in increasing party order.
	CombinePartialDecryptions(ct CT, pds []PD) (PT, error)

	AddCiphertexts(pk PK, a, b CT) (CT, error)
	ScalCiphertexts(pk PK, m PT, ct CT) (CT, error)

	SerializePublicKey(pk PK) ([]byte, error)
	DeserializePublicKey(data []byte) (PK, error)
	SerializeCiphertext(ct CT) ([]byte, error)
	DeserializeCiphertext(data []byte) (CT, error)
	SerializePartialDecryption(pd PD) ([]byte, error)
	DeserializePartialDecryption(data []byte) (PD, error)
}

// CL is the CryptoSystem instantiated with the CL-HSM2k types.
type CL = CryptoSystem[
	*clhsm2k.SecretKey,
	*clhsm2k.SecretKeyShare,
	*clhsm2k.PublicKey,
	*clhsm2k.Cleartext,
	*clhsm2k.Ciphertext,
	*clhsm2k.PartialDecryption,
]

var _ CL = (*CPU)(nil)

// CPU runs CL-HSM2k on the host CPU.
type CPU struct {
	sys *clhsm2k.System
}

// NewCPU wraps an existing system.
func NewCPU(sys *clhsm2k.System) *CPU {
	return &CPU{sys: sys}
}

// CreateFromN builds the system for modulus n and cleartext size k. A nil
// bound computes the class number bound.
func CreateFromN(n *big.Int, k int, bound *big.Int, opts ...clhsm2k.Option) (*CPU, error) {
	sys, err := clhsm2k.New(n, k, append([]clhsm2k.Option{clhsm2k.WithClassNumberBound(bound)}, opts...)...)
	if err != nil {
		return nil, err
	}
	return NewCPU(sys), nil
}

// FromConfig validates cfg and builds its system, generating a modulus when
// cfg.Modulus is empty.
func FromConfig(cfg clhsm.Config, opts ...clhsm2k.Option) (*CPU, error) {
	const op = "cryptosystem.FromConfig"
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	n, err := cfg.ModulusInt()
	if err != nil {
		return nil, err
	}
	bound, err := cfg.ClassNumberBoundInt()
	if err != nil {
		return nil, err
	}
	all := append([]clhsm2k.Option{
		clhsm2k.WithDistance(cfg.Distance),
		clhsm2k.WithClassNumberBound(bound),
	}, opts...)
	var sys *clhsm2k.System
	if n != nil {
		sys, err = clhsm2k.New(n, cfg.K, all...)
	} else {
		sys, err = clhsm2k.Generate(cfg.SecurityBits, cfg.K, all...)
	}
	if err != nil {
		return nil, clhsm.Wrap(op, err)
	}
	return NewCPU(sys), nil
}

// System returns the underlying system.
func (c *CPU) System() *clhsm2k.System { return c.sys }

func (c *CPU) GenerateSecretKey() *clhsm2k.SecretKey { return c.sys.GenerateSecretKey() }

func (c *CPU) DerivePublicKey(sk *clhsm2k.SecretKey) *clhsm2k.PublicKey {
	return c.sys.DerivePublicKey(sk)
}

func (c *CPU) SplitIntoShares(sk *clhsm2k.SecretKey, t, n int) ([]*clhsm2k.SecretKeyShare, error) {
	return c.sys.SplitIntoShares(sk, t, n)
}

func (c *CPU) NewPlaintext(m *big.Int) (*clhsm2k.Cleartext, error) { return c.sys.NewCleartext(m) }

func (c *CPU) Encrypt(pk *clhsm2k.PublicKey, m *clhsm2k.Cleartext) (*clhsm2k.Ciphertext, error) {
	return c.sys.Encrypt(pk, m)
}

func (c *CPU) Decrypt(sk *clhsm2k.SecretKey, ct *clhsm2k.Ciphertext) (*clhsm2k.Cleartext, error) {
	return c.sys.Decrypt(sk, ct)
}

func (c *CPU) PartialDecrypt(share *clhsm2k.SecretKeyShare, combination []int, ct *clhsm2k.Ciphertext) (*clhsm2k.PartialDecryption, error) {
	x, err := share.For(combination)
	if err != nil {
		return nil, err
	}
	defer clhsm.ZeroizeInt(x)
	return c.sys.PartialDecrypt(x, ct)
}

func (c *CPU) CombinePartialDecryptions(ct *clhsm2k.Ciphertext, pds []*clhsm2k.PartialDecryption) (*clhsm2k.Cleartext, error) {
	return c.sys.CombinePartialDecryptions(ct, pds)
}

func (c *CPU) AddCiphertexts(pk *clhsm2k.PublicKey, a, b *clhsm2k.Ciphertext) (*clhsm2k.Ciphertext, error) {
	return c.sys.AddCiphertexts(pk, a, b)
}

func (c *CPU) ScalCiphertexts(pk *clhsm2k.PublicKey, m *clhsm2k.Cleartext, ct *clhsm2k.Ciphertext) (*clhsm2k.Ciphertext, error) {
	return c.sys.ScalCiphertexts(pk, m, ct)
}

func (c *CPU) SerializePublicKey(pk *clhsm2k.PublicKey) ([]byte, error) { return pk.MarshalBinary() }

func (c *CPU) DeserializePublicKey(data []byte) (*clhsm2k.PublicKey, error) {
	return c.sys.UnmarshalPublicKey(data)
}

func (c *CPU) SerializeCiphertext(ct *clhsm2k.Ciphertext) ([]byte, error) { return ct.MarshalBinary() }

func (c *CPU) DeserializeCiphertext(data []byte) (*clhsm2k.Ciphertext, error) {
	ct := new(clhsm2k.Ciphertext)
	if err := ct.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	return ct, nil
}

func (c *CPU) SerializePartialDecryption(pd *clhsm2k.PartialDecryption) ([]byte, error) {
	return pd.MarshalBinary()
}

func (c *CPU) DeserializePartialDecryption(data []byte) (*clhsm2k.PartialDecryption, error) {
	pd := new(clhsm2k.PartialDecryption)
	if err := pd.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	return pd, nil
}
