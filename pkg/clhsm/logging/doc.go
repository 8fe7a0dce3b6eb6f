// Package logging provides a minimal logging facade for clhsm.
//
// This package defines a Logger interface that wraps a subset of the standard
// library's log/slog functionality. The interface is intentionally small to
// allow applications to provide custom implementations for testing, redaction,
// or integration with existing logging systems.
//
// # Default Implementation
//
//	// Use default logger (slog.Default())
//	logger := logging.New(nil)
//
//	// Use custom slog.Logger
//	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: logging.ParseLevel("debug"),
//	})
//	customLogger := logging.New(slog.New(handler))
//
// # Redaction Support
//
// Secret keys and key shares are never logged. Mark their presence instead:
//
//	logger.Info(ctx, "secret key generated", logging.Redacted("sk"))
//	// Logs: sk="[redacted]"
//
// Public parameters are large integers; log their size:
//
//	logger.Debug(ctx, "class group ready", logging.BitLen("disc", disc))
//
// # Security Considerations
//
//   - Never log secret keys, key shares, or partial decryptions
//   - Use logging.Redacted() to mark sensitive attributes
//   - Ensure log storage is secure and access-controlled
package logging
