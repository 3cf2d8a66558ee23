package ctxlog

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNew_JSONFormatAndLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New("warn", "json", &buf)

	logger.Info("hidden")
	logger.Warn("shown", "k", "v")

	out := buf.String()
	require.NotContains(t, out, "hidden")
	require.Contains(t, out, `"msg":"shown"`)
	require.Contains(t, out, `"k":"v"`)
}

func TestParseLevel_UnknownFallsBackToInfo(t *testing.T) {
	require.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
	require.Equal(t, slog.LevelDebug, ParseLevel(" DEBUG "))
}

func TestFromContext_RoundTripAndDefault(t *testing.T) {
	logger := Discard()
	ctx := WithLogger(context.Background(), logger)
	require.Same(t, logger, FromContext(ctx))
	require.Same(t, slog.Default(), FromContext(context.Background()))
}
