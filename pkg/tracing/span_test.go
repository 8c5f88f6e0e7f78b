package tracing

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpanTree(t *testing.T) {
	ctx, root := StartSpan(context.Background(), "query", "abc")
	childCtx, parse := StartChildSpan(ctx, "parse")
	parse.SetAttr("nodes", 4)
	parse.End()
	_, eval := StartChildSpan(ctx, "evaluate")
	eval.End()

	require.Len(t, root.Children, 2)
	assert.Equal(t, "abc", root.Children[0].TraceID)
	assert.Same(t, parse, SpanFromContext(childCtx))
	assert.Nil(t, SpanFromContext(context.Background()))
}

func TestTracerFinish(t *testing.T) {
	var buf bytes.Buffer
	tr := NewTracer(true, 1)
	tr.logger = slog.New(slog.NewTextHandler(&buf, nil))

	ctx, root := StartSpan(context.Background(), "query", NewTraceID())
	_, child := StartChildSpan(ctx, "diversify")
	child.SetAttr("algorithm", "PM2")
	child.End()
	tr.Finish(root)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], "algorithm=PM2")
	assert.Contains(t, lines[1], "depth=1")
}

func TestTracerDisabled(t *testing.T) {
	var buf bytes.Buffer
	tr := NewTracer(false, 1)
	tr.logger = slog.New(slog.NewTextHandler(&buf, nil))
	_, root := StartSpan(context.Background(), "query", "x")
	tr.Finish(root)
	assert.Empty(t, buf.String())

	var nilTracer *Tracer
	nilTracer.Finish(root)
}
