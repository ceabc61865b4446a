package logger

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromContextFallsBackToDefault(t *testing.T) {
	//nolint:staticcheck // nil context is part of the contract
	assert.Same(t, Default(), FromContext(nil))
	assert.Same(t, Default(), FromContext(context.Background()))
}

func TestWithContextRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(slog.NewTextHandler(&buf, nil)).With("client_id", "c1")

	ctx := WithContext(context.Background(), l)
	assert.Same(t, l, FromContext(ctx))

	FromContext(ctx).Info("joined")
	assert.Contains(t, buf.String(), "client_id=c1")
	assert.Contains(t, buf.String(), "msg=joined")
}

func TestWithAddsFieldsToDefault(t *testing.T) {
	var buf bytes.Buffer
	prev := Default()
	SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { SetDefault(prev) })

	With("room", "doc-1").Warn("idle")
	assert.Contains(t, buf.String(), "room=doc-1")
	assert.Contains(t, buf.String(), "level=WARN")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelWarn, parseLevel(" Warning ", slog.LevelInfo))
	assert.Equal(t, slog.LevelError, parseLevel("error", slog.LevelInfo))
	assert.Equal(t, slog.LevelInfo, parseLevel("bogus", slog.LevelInfo))
}
