// Package session runs threshold decryption over a clhsm.Transport.
//
// The client picks a T-subset of the parties, draws a one-time reencryption
// key pair and sends each member the ciphertext together with the subset and
// the public key. Every member answers with its partial decryption sealed to
// that key; the client opens the batch and combines it. Key shares never
// leave the parties and partial decryptions never cross the transport in the
// clear.
//
//	net := mocknet.New()
//	go party.Serve(ctx, net.Endpoint(0, []clhsm.RoleID{3}), 3)
//	...
//	m, err := client.Decrypt(ctx, net.Endpoint(3, parties), []int{0, 2}, ct)
package session
