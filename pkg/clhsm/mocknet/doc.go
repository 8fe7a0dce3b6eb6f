// Package mocknet provides an in-memory clhsm.Transport for tests and
// examples.
//
// A Net connects any number of endpoints. Each ordered pair of roles has its
// own FIFO queue, so messages between two roles arrive in the order they were
// sent and never block the sender:
//
//	net := mocknet.New()
//	client := net.Endpoint(3, []clhsm.RoleID{0, 1, 2})
//	party := net.Endpoint(0, []clhsm.RoleID{3})
//
// Receive blocks until a message is queued or the context ends. Close wakes
// every blocked receiver with ErrClosed.
//
// Mocknet has no authentication or confidentiality and is not meant for
// production use.
package mocknet
