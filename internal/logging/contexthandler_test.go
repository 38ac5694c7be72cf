package logging_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/myrjola/lifeplan/internal/logging"
	"github.com/stretchr/testify/require"
)

func TestContextHandler(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(logging.NewContextHandler(slog.NewTextHandler(&buf, nil))).With("source", "test")

	ctx := logging.WithAttrs(context.Background(), slog.String("request_id", "r1"))
	sibling := logging.WithAttrs(ctx, slog.String("user_id", "u1"))
	other := logging.WithAttrs(ctx, slog.String("user_id", "u2"))

	logger.InfoContext(sibling, "first")
	logger.InfoContext(other, "second")
	logger.Info("no context")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 3)
	require.Contains(t, string(lines[0]), "request_id=r1")
	require.Contains(t, string(lines[0]), "user_id=u1")
	require.Contains(t, string(lines[0]), "source=test")
	require.Contains(t, string(lines[1]), "user_id=u2")
	require.NotContains(t, string(lines[1]), "user_id=u1")
	require.NotContains(t, string(lines[2]), "request_id")
}
