package clhsm

import "context"

// RoleID identifies a participant of a threshold session. Parties holding key
// shares use 0..n-1; the decrypting client conventionally takes n.
type RoleID uint32

// Transport captures the messaging contract used by threshold sessions.
//
// Concurrency: implementations MUST be safe for concurrent use by multiple
// goroutines.
//
// Semantics: messages between a given ordered pair of roles are delivered in
// order. For ReceiveAll, the returned map MUST contain exactly one entry per
// requested role.
type Transport interface {
	Send(ctx context.Context, to RoleID, msg []byte) error
	Receive(ctx context.Context, from RoleID) ([]byte, error)
	ReceiveAll(ctx context.Context, from []RoleID) (map[RoleID][]byte, error)
}
