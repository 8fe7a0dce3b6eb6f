package mocknet

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/cofhe/clhsm-go/pkg/clhsm"
)

// ErrClosed is returned by operations on a closed Net.
var ErrClosed = errors.New("mocknet: network closed")

type link struct {
	from, to clhsm.RoleID
}

// Net is a set of in-memory links between roles.
type Net struct {
	mu     sync.Mutex
	queues map[link][][]byte
	wake   map[link]chan struct{}
	closed chan struct{}
	once   sync.Once
}

// New returns an empty network.
func New() *Net {
	return &Net{
		queues: make(map[link][][]byte),
		wake:   make(map[link]chan struct{}),
		closed: make(chan struct{}),
	}
}

// Close shuts the network down. Blocked receivers return ErrClosed.
func (n *Net) Close() {
	n.once.Do(func() { close(n.closed) })
}

// notifier returns the channel closed on the next delivery to l. Callers
// hold n.mu.
func (n *Net) notifier(l link) chan struct{} {
	ch := n.wake[l]
	if ch == nil {
		ch = make(chan struct{})
		n.wake[l] = ch
	}
	return ch
}

func (n *Net) deliver(l link, msg []byte) error {
	select {
	case <-n.closed:
		return ErrClosed
	default:
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.queues[l] = append(n.queues[l], slices.Clone(msg))
	if ch := n.wake[l]; ch != nil {
		close(ch)
		delete(n.wake, l)
	}
	return nil
}

func (n *Net) await(ctx context.Context, l link) ([]byte, error) {
	for {
		n.mu.Lock()
		if q := n.queues[l]; len(q) > 0 {
			msg := q[0]
			q[0] = nil
			if len(q) == 1 {
				delete(n.queues, l)
			} else {
				n.queues[l] = q[1:]
			}
			n.mu.Unlock()
			return msg, nil
		}
		wake := n.notifier(l)
		n.mu.Unlock()

		select {
		case <-wake:
		case <-n.closed:
			return nil, ErrClosed
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Endpoint is one role's view of a Net. It only talks to its peers.
type Endpoint struct {
	net   *Net
	self  clhsm.RoleID
	peers map[clhsm.RoleID]struct{}
	// serializes receivers per peer so concurrent Receive calls consume
	// messages in order
	mu    sync.Mutex
	locks map[clhsm.RoleID]*sync.Mutex
}

// Endpoint returns the endpoint of self, connected to peers. self is
// dropped from peers.
func (n *Net) Endpoint(self clhsm.RoleID, peers []clhsm.RoleID) *Endpoint {
	set := make(map[clhsm.RoleID]struct{}, len(peers))
	for _, p := range peers {
		if p != self {
			set[p] = struct{}{}
		}
	}
	return &Endpoint{net: n, self: self, peers: set, locks: make(map[clhsm.RoleID]*sync.Mutex)}
}

// Self returns the role of the endpoint.
func (e *Endpoint) Self() clhsm.RoleID { return e.self }

func (e *Endpoint) checkPeer(op string, role clhsm.RoleID) error {
	if role == e.self {
		return clhsm.Errorf(op, clhsm.ErrInvalidArgument, "role %d is the endpoint itself", role)
	}
	if _, ok := e.peers[role]; !ok {
		return clhsm.Errorf(op, clhsm.ErrInvalidArgument, "unknown peer %d", role)
	}
	return nil
}

func (e *Endpoint) recvLock(role clhsm.RoleID) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l := e.locks[role]
	if l == nil {
		l = &sync.Mutex{}
		e.locks[role] = l
	}
	return l
}

// Send queues a copy of msg for to.
func (e *Endpoint) Send(ctx context.Context, to clhsm.RoleID, msg []byte) error {
	const op = "mocknet.Send"
	if err := e.checkPeer(op, to); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return e.net.deliver(link{from: e.self, to: to}, msg)
}

// Receive returns the next message from from.
func (e *Endpoint) Receive(ctx context.Context, from clhsm.RoleID) ([]byte, error) {
	if err := e.checkPeer("mocknet.Receive", from); err != nil {
		return nil, err
	}
	l := e.recvLock(from)
	l.Lock()
	defer l.Unlock()
	return e.net.await(ctx, link{from: from, to: e.self})
}

// ReceiveAll returns the next message of every role in from.
func (e *Endpoint) ReceiveAll(ctx context.Context, from []clhsm.RoleID) (map[clhsm.RoleID][]byte, error) {
	const op = "mocknet.ReceiveAll"
	seen := make(map[clhsm.RoleID]struct{}, len(from))
	for _, r := range from {
		if err := e.checkPeer(op, r); err != nil {
			return nil, err
		}
		if _, dup := seen[r]; dup {
			return nil, clhsm.Errorf(op, clhsm.ErrInvalidArgument, "duplicate role %d", r)
		}
		seen[r] = struct{}{}
	}
	roles := slices.Clone(from)
	slices.Sort(roles)

	out := make(map[clhsm.RoleID][]byte, len(roles))
	for _, r := range roles {
		msg, err := e.Receive(ctx, r)
		if err != nil {
			return nil, err
		}
		out[r] = msg
	}
	return out, nil
}

var _ clhsm.Transport = (*Endpoint)(nil)
