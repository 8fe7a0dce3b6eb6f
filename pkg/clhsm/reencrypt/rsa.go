package reencrypt

import (
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/binary"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/cofhe/clhsm-go/pkg/clhsm"
	"github.com/cofhe/clhsm-go/pkg/clhsm/random"
)

const rsaLabelPrefix = "clhsm/reencrypt/rsa-oaep:"

type options struct {
	src random.Source
}

// Option configures a Reencryptor.
type Option func(*options)

// WithRandom sets the randomness for key generation and sealing. Defaults
// to random.Default().
func WithRandom(src random.Source) Option {
	return func(o *options) { o.src = src }
}

func newOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	o.src = random.OrDefault(o.src)
	return o
}

// RSA seals with a fresh ChaCha20-Poly1305 key wrapped by RSA-OAEP
// (SHA-256). The OAEP label binds the wrapped key to the recipient public
// key. Keys are PKCS#8 (private) and PKIX (public) DER.
//
// Sealed format: u16le len(wrapped) || wrapped || nonce || AEAD ciphertext.
type RSA struct {
	keySize int
	src     random.Source
}

// NewRSA validates the key size: at least 2048 bits and a multiple of 1024.
func NewRSA(keySize int, opts ...Option) (*RSA, error) {
	const op = "reencrypt.NewRSA"
	if keySize < 2048 {
		return nil, clhsm.Errorf(op, clhsm.ErrInvalidArgument, "key size must be at least 2048 bits")
	}
	if keySize%1024 != 0 {
		return nil, clhsm.Errorf(op, clhsm.ErrInvalidArgument, "key size must be a multiple of 1024")
	}
	o := newOptions(opts)
	return &RSA{keySize: keySize, src: o.src}, nil
}

func (r *RSA) Name() string { return "rsa" }

// GenerateKeyPair returns a fresh RSA key pair.
func (r *RSA) GenerateKeyPair() (*KeyPair, error) {
	const op = "reencrypt.RSA.GenerateKeyPair"
	key, err := rsa.GenerateKey(random.Reader(r.src), r.keySize)
	if err != nil {
		return nil, clhsm.Wrap(op, err)
	}
	priv, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, clhsm.Wrap(op, err)
	}
	pub, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return nil, clhsm.Wrap(op, err)
	}
	return &KeyPair{Private: priv, Public: pub}, nil
}

func parseRSAPublic(op string, der []byte) (*rsa.PublicKey, error) {
	k, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, clhsm.Errorf(op, clhsm.ErrInvalidArgument, "parse public key: %v", err)
	}
	pub, ok := k.(*rsa.PublicKey)
	if !ok {
		return nil, clhsm.Errorf(op, clhsm.ErrInvalidArgument, "not an RSA public key")
	}
	if pub.Size() < 256 {
		return nil, clhsm.Errorf(op, clhsm.ErrInvalidArgument, "public key too small: %d bytes (minimum 256 bytes)", pub.Size())
	}
	return pub, nil
}

func rsaLabel(pubDER []byte) []byte {
	h := sha256.Sum256(pubDER)
	return append([]byte(rsaLabelPrefix), h[:]...)
}

// Seal encrypts msg to recipientPub.
func (r *RSA) Seal(recipientPub, msg []byte) ([]byte, error) {
	const op = "reencrypt.RSA.Seal"
	pub, err := parseRSAPublic(op, recipientPub)
	if err != nil {
		return nil, err
	}
	key := random.Bytes(r.src, chacha20poly1305.KeySize)
	defer clhsm.ZeroizeBytes(key)
	label := rsaLabel(recipientPub)
	wrapped, err := rsa.EncryptOAEP(sha256.New(), random.Reader(r.src), pub, key, label)
	if err != nil {
		return nil, clhsm.Wrap(op, err)
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, clhsm.Wrap(op, err)
	}
	nonce := random.Bytes(r.src, aead.NonceSize())

	out := binary.LittleEndian.AppendUint16(nil, uint16(len(wrapped)))
	out = append(out, wrapped...)
	out = append(out, nonce...)
	return aead.Seal(out, nonce, msg, label), nil
}

// Open decrypts a Seal output with the PKCS#8 private key.
func (r *RSA) Open(recipientPriv, sealed []byte) ([]byte, error) {
	const op = "reencrypt.RSA.Open"
	k, err := x509.ParsePKCS8PrivateKey(recipientPriv)
	if err != nil {
		return nil, clhsm.Errorf(op, clhsm.ErrInvalidArgument, "parse private key: %v", err)
	}
	priv, ok := k.(*rsa.PrivateKey)
	if !ok {
		return nil, clhsm.Errorf(op, clhsm.ErrInvalidArgument, "not an RSA private key")
	}
	pubDER, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		return nil, clhsm.Wrap(op, err)
	}

	if len(sealed) < 2 {
		return nil, clhsm.Wrap(op, clhsm.ErrShortBuffer)
	}
	wl := int(binary.LittleEndian.Uint16(sealed))
	rest := sealed[2:]
	if len(rest) < wl+chacha20poly1305.NonceSize+chacha20poly1305.Overhead {
		return nil, clhsm.Wrap(op, clhsm.ErrShortBuffer)
	}
	label := rsaLabel(pubDER)
	key, err := rsa.DecryptOAEP(sha256.New(), nil, priv, rest[:wl], label)
	if err != nil {
		return nil, clhsm.Errorf(op, clhsm.ErrMalformedWireData, "unwrap key: %v", err)
	}
	defer clhsm.ZeroizeBytes(key)
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, clhsm.Wrap(op, err)
	}
	rest = rest[wl:]
	msg, err := aead.Open(nil, rest[:aead.NonceSize()], rest[aead.NonceSize():], label)
	if err != nil {
		return nil, clhsm.Errorf(op, clhsm.ErrMalformedWireData, "open payload: %v", err)
	}
	return msg, nil
}
