package logging

import (
	"bytes"
	"context"
	"log/slog"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoggerWritesStructuredRecords(t *testing.T) {
	var buf bytes.Buffer
	l := New(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	l = l.With("component", "test")

	ctx := context.Background()
	l.Debug(ctx, "size", BitLen("disc", big.NewInt(255)))
	l.Info(ctx, "secret", Redacted("sk"))

	out := buf.String()
	require.Contains(t, out, "component=test")
	require.Contains(t, out, "disc=8")
	require.Contains(t, out, "sk="+Placeholder())
}

func TestDiscardDropsRecords(t *testing.T) {
	l := Discard()
	l.Error(context.Background(), "ignored", "k", 1)
	l.With("a", 1).Warn(context.Background(), "ignored")
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	require.Equal(t, slog.LevelWarn, ParseLevel("warn"))
	require.Equal(t, slog.LevelError, ParseLevel("error"))
	require.Equal(t, slog.LevelInfo, ParseLevel(""))
	require.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestBitLenNil(t *testing.T) {
	require.Equal(t, int64(0), BitLen("x", nil).Value.Int64())
}
