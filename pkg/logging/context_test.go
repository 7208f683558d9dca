package logging

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromContextFallsBackToDefault(t *testing.T) {
	assert.Equal(t, Default(), FromContext(context.Background()))
	assert.Equal(t, Default(), FromContext(nil)) //nolint:staticcheck // nil context is part of the contract
}

func TestWithLoggerRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf)

	ctx := WithLogger(context.Background(), &logger)
	Ctx(ctx).Info().Msg("hello from context")

	assert.Contains(t, buf.String(), "hello from context")
}

func TestWithRunID(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSON(&buf)

	ctx := WithLogger(context.Background(), &logger)
	ctx = WithRunID(ctx, "run-123")

	assert.Equal(t, "run-123", RunID(ctx))

	Ctx(ctx).Info().Msg("stage complete")
	assert.True(t, strings.Contains(buf.String(), `"run_id":"run-123"`))
}

func TestRunIDMissing(t *testing.T) {
	assert.Equal(t, "", RunID(context.Background()))
}
