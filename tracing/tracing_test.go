package tracing

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracingFile(t *testing.T) {
	fname := filepath.Join(t.TempDir(), "span_test.txt")
	require.NoError(t, Init("kcore", "0.0.1", fname))

	ctx, span := StartSpan(context.Background(), "fork")
	span.WithProcess(3, "sh", 1).WithAttributes(map[string]string{"queue": "rr"})
	ctx = WithSpan(ctx, span)
	current, ok := SpanFromContext(ctx)
	require.True(t, ok)

	_, child := StartSpan(ctx, "wait")
	EndSpan(child, errors.New("no children"))
	EndSpan(current, nil)

	data, err := os.ReadFile(fname)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"fork"`)
	assert.Contains(t, string(data), "parent.span_id")
	assert.Contains(t, string(data), "no children")
}

func TestSpanFromContext_Empty(t *testing.T) {
	_, ok := SpanFromContext(context.Background())
	assert.False(t, ok)
}
