package clhsm2k

import (
	"context"
	"math/big"

	"github.com/cofhe/clhsm-go/pkg/clhsm"
	"github.com/cofhe/clhsm-go/pkg/clhsm/accessstructure"
	"github.com/cofhe/clhsm-go/pkg/clhsm/logging"
	"github.com/cofhe/clhsm-go/pkg/clhsm/qfi"
	"github.com/cofhe/clhsm-go/pkg/clhsm/random"
)

// SecretKey is an exponent in [0, SecretKeyBound].
type SecretKey struct {
	x *big.Int
}

// NewSecretKey wraps x, which must be nonnegative.
func NewSecretKey(x *big.Int) (*SecretKey, error) {
	if x == nil || x.Sign() < 0 {
		return nil, clhsm.Errorf("clhsm2k.NewSecretKey", clhsm.ErrInvalidArgument, "secret key must be nonnegative")
	}
	return &SecretKey{x: new(big.Int).Set(x)}, nil
}

// Int returns a copy of the exponent.
func (sk *SecretKey) Int() *big.Int { return new(big.Int).Set(sk.x) }

// Destroy zeroizes the key. The key must not be used afterwards.
func (sk *SecretKey) Destroy() {
	clhsm.ZeroizeInt(sk.x)
}

// String never prints the key.
func (sk *SecretKey) String() string { return "SecretKey(" + logging.Placeholder() + ")" }

// PublicKey is h^sk together with its exponentiation ladder.
type PublicKey struct {
	pk     *qfi.QFI
	ladder *qfi.Ladder
}

// Form returns a copy of h^sk.
func (pk *PublicKey) Form() *qfi.QFI { return pk.pk.Clone() }

// Equal reports whether both keys are the same form.
func (pk *PublicKey) Equal(other *PublicKey) bool { return pk.pk.Equal(other.pk) }

// SecretKeyShare holds the shares of one party: one value per t-subset of
// the parties containing it, in lexicographic order of the subsets.
type SecretKeyShare struct {
	Party     int
	Threshold accessstructure.Threshold
	Values    []*big.Int
}

// For returns the share to use when decrypting together with combination,
// a strictly increasing list of T parties containing Party.
func (s *SecretKeyShare) For(combination []int) (*big.Int, error) {
	idx, _, err := s.Threshold.ShareIndex(s.Party, combination)
	if err != nil {
		return nil, err
	}
	if idx >= len(s.Values) {
		return nil, clhsm.Errorf("clhsm2k.SecretKeyShare.For", clhsm.ErrInvalidArgument,
			"party %d holds %d shares, need index %d", s.Party, len(s.Values), idx)
	}
	return new(big.Int).Set(s.Values[idx]), nil
}

// Destroy zeroizes every share.
func (s *SecretKeyShare) Destroy() {
	for _, v := range s.Values {
		clhsm.ZeroizeInt(v)
	}
}

// GenerateSecretKey draws a secret key uniformly from [0, SecretKeyBound].
func (s *System) GenerateSecretKey() *SecretKey {
	return &SecretKey{x: random.Int(s.src, s.exponentBound)}
}

// DerivePublicKey returns h^sk and precomputes its ladder for encryption.
func (s *System) DerivePublicKey(sk *SecretKey) *PublicKey {
	return s.newPublicKey(s.PowerOfH(sk.x))
}

func (s *System) newPublicKey(f *qfi.QFI) *PublicKey {
	return &PublicKey{pk: f, ladder: s.clDelta.NewLadder(f, s.exponentBound)}
}

// SplitIntoShares shares sk among n parties so that any t of them can
// decrypt. The span program is the (t, n) threshold structure; rho is sk
// followed by values drawn from [0, EncryptRandomnessBound].
func (s *System) SplitIntoShares(sk *SecretKey, t, n int) ([]*SecretKeyShare, error) {
	const op = "clhsm2k.SplitIntoShares"
	th, err := accessstructure.NewThreshold(t, n)
	if err != nil {
		return nil, clhsm.Wrap(op, err)
	}
	isp := th.ISP()
	rho := make([]*big.Int, isp.Cols())
	rho[0] = sk.x
	for i := 1; i < len(rho); i++ {
		rho[i] = random.Int(s.src, s.exponentBound)
	}
	rows, err := isp.Share(rho)
	if err != nil {
		return nil, clhsm.Wrap(op, err)
	}
	for _, r := range rho[1:] {
		clhsm.ZeroizeInt(r)
	}
	perParty, err := th.Distribute(rows)
	if err != nil {
		return nil, clhsm.Wrap(op, err)
	}
	out := make([]*SecretKeyShare, n)
	for p := range out {
		out[p] = &SecretKeyShare{Party: p, Threshold: th, Values: perParty[p]}
	}
	s.log.Debug(context.Background(), "secret key split",
		"t", t, "n", n, "rows", isp.Rows(), logging.Redacted("shares"))
	return out, nil
}
