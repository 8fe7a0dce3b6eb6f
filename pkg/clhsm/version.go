package clhsm

var (
	Version = "v0.0.0-in-progress"
	// WireFormat names the serialization layout for forms and ciphertexts.
	WireFormat = "qfi-le-v1"
)

// LibraryVersion returns the semantic version populated at build time via
// ldflags. In development it defaults to v0.0.0-in-progress.
func LibraryVersion() string {
	return Version
}
