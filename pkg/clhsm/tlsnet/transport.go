package tlsnet

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"slices"
	"sync"
	"time"

	"github.com/cofhe/clhsm-go/pkg/clhsm"
	"github.com/cofhe/clhsm-go/pkg/clhsm/logging"
)

// MaxFrame bounds the size of a single message.
const MaxFrame = 64 << 20

const defaultConnectTimeout = 10 * time.Second

var (
	// ErrClosed is returned once the transport or a peer connection is
	// closed.
	ErrClosed = errors.New("tlsnet: connection closed")

	// ErrPeerIdentity reports a peer whose certificate does not match the
	// name configured for the role it claims.
	ErrPeerIdentity = errors.New("tlsnet: peer identity mismatch")
)

// Peer locates one role.
type Peer struct {
	Role clhsm.RoleID
	// Name must appear in the peer's certificate.
	Name    string
	Address string
}

// Config configures one endpoint.
type Config struct {
	Self clhsm.RoleID
	// Peers lists every role the endpoint talks to, itself included.
	Peers       []Peer
	Certificate tls.Certificate
	RootCAs     *x509.CertPool

	// Listener, when set, replaces listening on the address of Self. It is
	// wrapped in TLS by the transport.
	Listener net.Listener

	// ConnectTimeout bounds New. Zero means ten seconds.
	ConnectTimeout time.Duration

	Log logging.Logger
}

// Transport is an mTLS clhsm.Transport.
type Transport struct {
	self  clhsm.RoleID
	peers map[clhsm.RoleID]Peer
	log   logging.Logger

	mu    sync.RWMutex
	conns map[clhsm.RoleID]*peerConn

	listener  net.Listener
	done      chan struct{}
	closeOnce sync.Once
}

// New connects to every configured peer and returns once all connections
// are authenticated, ctx ends or the connect timeout expires.
func New(ctx context.Context, cfg Config) (*Transport, error) {
	const op = "tlsnet.New"
	if cfg.RootCAs == nil {
		return nil, clhsm.Errorf(op, clhsm.ErrInvalidArgument, "root CA pool required")
	}
	peers := make(map[clhsm.RoleID]Peer, len(cfg.Peers))
	for _, p := range cfg.Peers {
		if _, dup := peers[p.Role]; dup {
			return nil, clhsm.Errorf(op, clhsm.ErrInvalidArgument, "duplicate role %d", p.Role)
		}
		peers[p.Role] = p
	}
	me, ok := peers[cfg.Self]
	if !ok {
		return nil, clhsm.Errorf(op, clhsm.ErrInvalidArgument, "role %d missing from peers", cfg.Self)
	}
	if len(peers) < 2 {
		return nil, clhsm.Errorf(op, clhsm.ErrInvalidArgument, "at least one peer required")
	}
	delete(peers, cfg.Self)

	log := cfg.Log
	if log == nil {
		log = logging.Discard()
	}
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	t := &Transport{
		self:  cfg.Self,
		peers: peers,
		log:   log.With("role", cfg.Self),
		conns: make(map[clhsm.RoleID]*peerConn, len(peers)),
		done:  make(chan struct{}),
	}

	var lower, higher []Peer
	for _, p := range peers {
		if p.Role < cfg.Self {
			lower = append(lower, p)
		} else {
			higher = append(higher, p)
		}
	}

	errCh := make(chan error, len(peers)+1)
	ready := make(chan struct{}, len(peers))

	if len(lower) > 0 {
		ln := cfg.Listener
		if ln == nil {
			var err error
			if ln, err = net.Listen("tcp", me.Address); err != nil {
				return nil, clhsm.Wrap(op, fmt.Errorf("listen: %w", err))
			}
		}
		t.listener = tls.NewListener(ln, &tls.Config{
			Certificates: []tls.Certificate{cfg.Certificate},
			ClientAuth:   tls.RequireAndVerifyClientCert,
			ClientCAs:    cfg.RootCAs,
			MinVersion:   tls.VersionTLS12,
		})
		go t.acceptLoop(timeout, ready, errCh)
	} else if cfg.Listener != nil {
		t.listener = cfg.Listener
	}

	base := &tls.Config{
		Certificates: []tls.Certificate{cfg.Certificate},
		RootCAs:      cfg.RootCAs,
		MinVersion:   tls.VersionTLS12,
	}
	for _, p := range higher {
		go func() {
			if err := t.dial(ctx, p, base); err != nil {
				notify(errCh, err)
				return
			}
			notify(ready, struct{}{})
		}()
	}

	for n := 0; n < len(peers); {
		select {
		case <-ready:
			n++
		case err := <-errCh:
			_ = t.Close()
			return nil, clhsm.Wrap(op, err)
		case <-ctx.Done():
			_ = t.Close()
			return nil, clhsm.Wrap(op, fmt.Errorf("waiting for peers: %w", ctx.Err()))
		}
	}
	t.log.Debug(context.Background(), "transport ready", "peers", len(peers))
	return t, nil
}

func (t *Transport) acceptLoop(timeout time.Duration, ready chan<- struct{}, errCh chan<- error) {
	for {
		conn, err := t.listener.Accept()
		if err != nil {
			select {
			case <-t.done:
			default:
				notify(errCh, fmt.Errorf("accept: %w", err))
			}
			return
		}
		if err := t.admit(conn.(*tls.Conn), timeout); err != nil {
			_ = conn.Close()
			t.log.Warn(context.Background(), "peer rejected", "remote", conn.RemoteAddr().String(), "error", err)
			notify(errCh, err)
			continue
		}
		notify(ready, struct{}{})
	}
}

// notify never blocks: once New has returned nobody drains the channels.
func notify[T any](ch chan<- T, v T) {
	select {
	case ch <- v:
	default:
	}
}

// admit authenticates an accepted connection and registers it.
func (t *Transport) admit(conn *tls.Conn, timeout time.Duration) error {
	if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		return err
	}
	if err := conn.Handshake(); err != nil {
		return fmt.Errorf("handshake: %w", err)
	}
	var buf [4]byte
	if _, err := io.ReadFull(conn, buf[:]); err != nil {
		return fmt.Errorf("read role: %w", err)
	}
	if err := conn.SetDeadline(time.Time{}); err != nil {
		return err
	}
	role := clhsm.RoleID(binary.BigEndian.Uint32(buf[:]))
	p, ok := t.peers[role]
	if !ok || role > t.self {
		return clhsm.Errorf("tlsnet.accept", ErrPeerIdentity, "unexpected role %d", role)
	}
	if err := verifyName(conn, p.Name); err != nil {
		return err
	}
	return t.register(role, conn)
}

func (t *Transport) dial(ctx context.Context, p Peer, base *tls.Config) error {
	cfg := base.Clone()
	cfg.ServerName = p.Name
	d := &tls.Dialer{Config: cfg}
	for {
		conn, err := d.DialContext(ctx, "tcp", p.Address)
		if err == nil {
			var buf [4]byte
			binary.BigEndian.PutUint32(buf[:], uint32(t.self))
			if _, err = conn.Write(buf[:]); err == nil {
				return t.register(p.Role, conn)
			}
			_ = conn.Close()
		}
		t.log.Debug(ctx, "dial retry", "peer", p.Role, "error", err)
		select {
		case <-ctx.Done():
			return fmt.Errorf("dial role %d: %w", p.Role, err)
		case <-t.done:
			return ErrClosed
		case <-time.After(100 * time.Millisecond):
		}
	}
}

func verifyName(conn *tls.Conn, name string) error {
	certs := conn.ConnectionState().PeerCertificates
	if len(certs) == 0 {
		return clhsm.Errorf("tlsnet.accept", ErrPeerIdentity, "no client certificate")
	}
	if err := certs[0].VerifyHostname(name); err != nil {
		return clhsm.Errorf("tlsnet.accept", ErrPeerIdentity, "certificate is not issued to %q", name)
	}
	return nil
}

func (t *Transport) register(role clhsm.RoleID, conn net.Conn) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	select {
	case <-t.done:
		return ErrClosed
	default:
	}
	if _, dup := t.conns[role]; dup {
		return clhsm.Errorf("tlsnet.register", ErrPeerIdentity, "duplicate connection from role %d", role)
	}
	t.conns[role] = newPeerConn(conn)
	t.log.Debug(context.Background(), "peer connected", "peer", role)
	return nil
}

func (t *Transport) peer(op string, role clhsm.RoleID) (*peerConn, error) {
	if role == t.self {
		return nil, clhsm.Errorf(op, clhsm.ErrInvalidArgument, "role %d is the endpoint itself", role)
	}
	t.mu.RLock()
	pc, ok := t.conns[role]
	t.mu.RUnlock()
	if !ok {
		return nil, clhsm.Errorf(op, clhsm.ErrInvalidArgument, "unknown peer %d", role)
	}
	return pc, nil
}

// Send queues msg for to.
func (t *Transport) Send(ctx context.Context, to clhsm.RoleID, msg []byte) error {
	const op = "tlsnet.Send"
	if len(msg) > MaxFrame {
		return clhsm.Errorf(op, clhsm.ErrInvalidArgument, "message of %d bytes exceeds %d", len(msg), MaxFrame)
	}
	pc, err := t.peer(op, to)
	if err != nil {
		return err
	}
	return pc.sendOne(ctx, slices.Clone(msg))
}

// Receive returns the next message from from.
func (t *Transport) Receive(ctx context.Context, from clhsm.RoleID) ([]byte, error) {
	pc, err := t.peer("tlsnet.Receive", from)
	if err != nil {
		return nil, err
	}
	return pc.recvOne(ctx)
}

// ReceiveAll returns the next message of every role in from.
func (t *Transport) ReceiveAll(ctx context.Context, from []clhsm.RoleID) (map[clhsm.RoleID][]byte, error) {
	const op = "tlsnet.ReceiveAll"
	conns := make([]*peerConn, len(from))
	seen := make(map[clhsm.RoleID]struct{}, len(from))
	for i, role := range from {
		if _, dup := seen[role]; dup {
			return nil, clhsm.Errorf(op, clhsm.ErrInvalidArgument, "duplicate role %d", role)
		}
		seen[role] = struct{}{}
		pc, err := t.peer(op, role)
		if err != nil {
			return nil, err
		}
		conns[i] = pc
	}
	out := make(map[clhsm.RoleID][]byte, len(from))
	for i, role := range from {
		msg, err := conns[i].recvOne(ctx)
		if err != nil {
			return nil, err
		}
		out[role] = msg
	}
	return out, nil
}

// Close tears down the listener and every connection.
func (t *Transport) Close() error {
	t.closeOnce.Do(func() {
		t.mu.Lock()
		close(t.done)
		for _, pc := range t.conns {
			pc.fail(ErrClosed)
		}
		t.mu.Unlock()
		if t.listener != nil {
			_ = t.listener.Close()
		}
	})
	return nil
}

type peerConn struct {
	conn net.Conn
	send chan []byte
	recv chan []byte

	done chan struct{}
	once sync.Once
	err  error
}

func newPeerConn(conn net.Conn) *peerConn {
	pc := &peerConn{
		conn: conn,
		send: make(chan []byte, 16),
		recv: make(chan []byte, 16),
		done: make(chan struct{}),
	}
	go pc.writer()
	go pc.reader()
	return pc
}

// fail records the first error and closes the connection.
func (pc *peerConn) fail(err error) {
	pc.once.Do(func() {
		pc.err = err
		close(pc.done)
		_ = pc.conn.Close()
	})
}

func (pc *peerConn) writer() {
	for {
		select {
		case <-pc.done:
			return
		case msg := <-pc.send:
			if err := writeFrame(pc.conn, msg); err != nil {
				pc.fail(err)
				return
			}
		}
	}
}

func (pc *peerConn) reader() {
	for {
		msg, err := readFrame(pc.conn)
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = ErrClosed
			}
			pc.fail(err)
			return
		}
		select {
		case pc.recv <- msg:
		case <-pc.done:
			return
		}
	}
}

func (pc *peerConn) sendOne(ctx context.Context, msg []byte) error {
	select {
	case <-pc.done:
		return pc.err
	default:
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-pc.done:
		return pc.err
	case pc.send <- msg:
		return nil
	}
}

func (pc *peerConn) recvOne(ctx context.Context) ([]byte, error) {
	select {
	case msg := <-pc.recv:
		return msg, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-pc.done:
		// frames read before the failure are still delivered
		select {
		case msg := <-pc.recv:
			return msg, nil
		default:
			return nil, pc.err
		}
	}
}

func writeFrame(w io.Writer, payload []byte) error {
	buf := make([]byte, 4, 4+len(payload))
	binary.BigEndian.PutUint32(buf, uint32(len(payload)))
	_, err := w.Write(append(buf, payload...))
	return err
}

func readFrame(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n > MaxFrame {
		return nil, clhsm.Errorf("tlsnet.readFrame", clhsm.ErrMalformedWireData, "frame of %d bytes exceeds %d", n, MaxFrame)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

var _ clhsm.Transport = (*Transport)(nil)
