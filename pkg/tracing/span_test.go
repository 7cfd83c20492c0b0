package tracing

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpanTree(t *testing.T) {
	ctx, root := StartSpan(context.Background(), "build", "")
	require.Len(t, root.TraceID, 32)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, child := StartChildSpan(ctx, "document")
			child.SetAttr("pages", 3)
			child.End()
		}()
	}
	wg.Wait()
	root.End()

	children := root.Children()
	assert.Len(t, children, 8)
	for _, c := range children {
		assert.Equal(t, root.TraceID, c.TraceID)
	}
}

func TestStartChildSpan_WithoutParent(t *testing.T) {
	_, span := StartChildSpan(context.Background(), "orphan")
	assert.NotEmpty(t, span.TraceID)
}

func TestLog_FailedSpanIsWarning(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))

	ctx, root := StartSpan(context.Background(), "build", "trace-1")
	_, child := StartChildSpan(ctx, "render")
	child.RecordError(errors.New("mupdf failed"))
	child.End()
	root.End()
	root.Log(l)

	out := buf.String()
	assert.Equal(t, 1, strings.Count(out, "span="))
	assert.Contains(t, out, "span=render")
	assert.Contains(t, out, "mupdf failed")
}
