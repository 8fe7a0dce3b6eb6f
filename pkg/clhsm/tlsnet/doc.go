// Package tlsnet implements clhsm.Transport over mutually authenticated TLS.
//
// Every endpoint knows the role, certificate name and address of the peers
// it talks to. The lower role of each pair dials the higher one, sends its
// role and is accepted only if its certificate is issued to the name
// configured for that role. Messages travel as u32be length-prefixed frames
// over one long-lived connection per pair.
//
// Authority issues the short-lived certificates used by tests and the demo
// command.
package tlsnet
