package tlsnet

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cofhe/clhsm-go/pkg/clhsm"
)

// Authority is an in-memory certificate authority for party certificates.
type Authority struct {
	cert *x509.Certificate
	der  []byte
	key  *ecdsa.PrivateKey
	pool *x509.CertPool

	mu     sync.Mutex
	serial int64
}

// NewAuthority creates a self-signed P-256 CA valid for validity.
func NewAuthority(name string, validity time.Duration) (*Authority, error) {
	const op = "tlsnet.NewAuthority"
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, clhsm.Wrap(op, err)
	}
	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: name},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(validity),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
		BasicConstraintsValid: true,
		IsCA:                  true,
		MaxPathLenZero:        true,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		return nil, clhsm.Wrap(op, err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, clhsm.Wrap(op, err)
	}
	pool := x509.NewCertPool()
	pool.AddCert(cert)
	return &Authority{cert: cert, der: der, key: key, pool: pool, serial: 1}, nil
}

// Pool returns the pool trusting only this authority.
func (a *Authority) Pool() *x509.CertPool { return a.pool }

// Issue returns a certificate for name usable as TLS client and server. It
// also covers localhost and 127.0.0.1.
func (a *Authority) Issue(name string) (tls.Certificate, error) {
	const op = "tlsnet.Authority.Issue"
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return tls.Certificate{}, clhsm.Wrap(op, err)
	}
	a.mu.Lock()
	a.serial++
	serial := a.serial
	a.mu.Unlock()
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(serial),
		Subject:      pkix.Name{CommonName: name},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     a.cert.NotAfter,
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
		DNSNames:     []string{name, "localhost"},
		IPAddresses:  []net.IP{net.ParseIP("127.0.0.1")},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, a.cert, &key.PublicKey, a.key)
	if err != nil {
		return tls.Certificate{}, clhsm.Wrap(op, err)
	}
	leaf, err := x509.ParseCertificate(der)
	if err != nil {
		return tls.Certificate{}, clhsm.Wrap(op, err)
	}
	return tls.Certificate{Certificate: [][]byte{der}, PrivateKey: key, Leaf: leaf}, nil
}

// WriteFiles writes the CA as rootCA.pem and, for every name, name-cert.pem
// and name-key.pem into dir, which must lie under the working directory.
func (a *Authority) WriteFiles(dir string, names []string) error {
	abs, err := clhsm.SecurePath(dir)
	if err != nil {
		return fmt.Errorf("resolve output dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	if err := writePEM(filepath.Join(abs, "rootCA.pem"), "CERTIFICATE", a.der); err != nil {
		return err
	}
	for _, name := range names {
		c, err := a.Issue(name)
		if err != nil {
			return err
		}
		key, err := x509.MarshalPKCS8PrivateKey(c.PrivateKey)
		if err != nil {
			return fmt.Errorf("marshal key for %s: %w", name, err)
		}
		if err := writePEM(filepath.Join(abs, name+"-cert.pem"), "CERTIFICATE", c.Certificate[0]); err != nil {
			return err
		}
		if err := writePEM(filepath.Join(abs, name+"-key.pem"), "PRIVATE KEY", key); err != nil {
			return err
		}
	}
	return nil
}

func writePEM(path, typ string, der []byte) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600) // #nosec G304 -- under a SecurePath directory
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	if err := pem.Encode(f, &pem.Block{Type: typ, Bytes: der}); err != nil {
		_ = f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}
