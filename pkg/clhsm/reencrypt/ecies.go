package reencrypt

import (
	"crypto/sha256"
	"io"

	"github.com/btcsuite/btcd/btcec/v2"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"github.com/cofhe/clhsm-go/pkg/clhsm"
	"github.com/cofhe/clhsm-go/pkg/clhsm/random"
)

const eciesInfo = "clhsm/reencrypt/ecies"

// ECIES seals over secp256k1: an ephemeral key agrees on a secret with the
// recipient, HKDF-SHA256 expands it into a ChaCha20-Poly1305 key and nonce.
// Private keys are 32-byte scalars, public keys 33-byte compressed points.
//
// Sealed format: ephemeral public key || AEAD ciphertext.
type ECIES struct {
	src random.Source
}

// NewECIES returns the secp256k1 reencryptor.
func NewECIES(opts ...Option) *ECIES {
	o := newOptions(opts)
	return &ECIES{src: o.src}
}

func (e *ECIES) Name() string { return "ecies" }

// GenerateKeyPair draws a private scalar in [1, N).
func (e *ECIES) GenerateKeyPair() (*KeyPair, error) {
	priv := e.newPrivateKey()
	defer priv.Zero()
	return &KeyPair{Private: priv.Serialize(), Public: priv.PubKey().SerializeCompressed()}, nil
}

func (e *ECIES) newPrivateKey() *btcec.PrivateKey {
	buf := make([]byte, btcec.PrivKeyBytesLen)
	defer clhsm.ZeroizeBytes(buf)
	for {
		e.src.Fill(buf)
		var s btcec.ModNScalar
		if overflow := s.SetByteSlice(buf); overflow || s.IsZero() {
			continue
		}
		priv, _ := btcec.PrivKeyFromBytes(buf)
		return priv
	}
}

func eciesKeys(shared, ephPub, recipientPub []byte) (key, nonce []byte, err error) {
	salt := make([]byte, 0, len(ephPub)+len(recipientPub))
	salt = append(salt, ephPub...)
	salt = append(salt, recipientPub...)
	out := make([]byte, chacha20poly1305.KeySize+chacha20poly1305.NonceSize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, shared, salt, []byte(eciesInfo)), out); err != nil {
		return nil, nil, err
	}
	return out[:chacha20poly1305.KeySize], out[chacha20poly1305.KeySize:], nil
}

// Seal encrypts msg to the compressed public key recipientPub.
func (e *ECIES) Seal(recipientPub, msg []byte) ([]byte, error) {
	const op = "reencrypt.ECIES.Seal"
	pub, err := btcec.ParsePubKey(recipientPub)
	if err != nil {
		return nil, clhsm.Errorf(op, clhsm.ErrInvalidArgument, "parse public key: %v", err)
	}
	eph := e.newPrivateKey()
	defer eph.Zero()
	ephPub := eph.PubKey().SerializeCompressed()
	shared := btcec.GenerateSharedSecret(eph, pub)
	defer clhsm.ZeroizeBytes(shared)

	key, nonce, err := eciesKeys(shared, ephPub, pub.SerializeCompressed())
	if err != nil {
		return nil, clhsm.Wrap(op, err)
	}
	defer clhsm.ZeroizeBytes(key)
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, clhsm.Wrap(op, err)
	}
	return aead.Seal(ephPub, nonce, msg, nil), nil
}

// Open decrypts a Seal output with the 32-byte private scalar.
func (e *ECIES) Open(recipientPriv, sealed []byte) ([]byte, error) {
	const op = "reencrypt.ECIES.Open"
	if len(recipientPriv) != btcec.PrivKeyBytesLen {
		return nil, clhsm.Errorf(op, clhsm.ErrInvalidArgument, "private key must be %d bytes", btcec.PrivKeyBytesLen)
	}
	if len(sealed) < btcec.PubKeyBytesLenCompressed+chacha20poly1305.Overhead {
		return nil, clhsm.Wrap(op, clhsm.ErrShortBuffer)
	}
	priv, pub := btcec.PrivKeyFromBytes(recipientPriv)
	defer priv.Zero()
	ephPub := sealed[:btcec.PubKeyBytesLenCompressed]
	eph, err := btcec.ParsePubKey(ephPub)
	if err != nil {
		return nil, clhsm.Errorf(op, clhsm.ErrMalformedWireData, "parse ephemeral key: %v", err)
	}
	shared := btcec.GenerateSharedSecret(priv, eph)
	defer clhsm.ZeroizeBytes(shared)

	key, nonce, err := eciesKeys(shared, ephPub, pub.SerializeCompressed())
	if err != nil {
		return nil, clhsm.Wrap(op, err)
	}
	defer clhsm.ZeroizeBytes(key)
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, clhsm.Wrap(op, err)
	}
	msg, err := aead.Open(nil, nonce, sealed[btcec.PubKeyBytesLenCompressed:], nil)
	if err != nil {
		return nil, clhsm.Errorf(op, clhsm.ErrMalformedWireData, "open payload: %v", err)
	}
	return msg, nil
}
