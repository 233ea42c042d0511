package trace

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	oteltrace "go.opentelemetry.io/otel/trace"
)

func startSampledSpan(ctx context.Context) (context.Context, oteltrace.Span) {
	tp := tracesdk.NewTracerProvider(tracesdk.WithSampler(tracesdk.AlwaysSample()))
	return tp.Tracer("test").Start(ctx, "enqueue")
}

// TestMarshalCurrentSpanRoundTripsThroughTraceLink covers the persisted
// payload surviving Enqueue -> job.Job.TraceLink -> dispatch unchanged.
func TestMarshalCurrentSpanRoundTripsThroughTraceLink(t *testing.T) {
	ctx, span := startSampledSpan(context.Background())
	defer span.End()
	original := span.SpanContext()

	raw := MarshalCurrentSpan(ctx)
	require.NotEmpty(t, raw)

	restoredCtx := ContextWithStoredLink(context.Background(), raw)
	link, ok := LinkFromContext(restoredCtx)
	require.True(t, ok)

	assert.Equal(t, original.TraceID(), link.SpanContext.TraceID())
	assert.Equal(t, original.SpanID(), link.SpanContext.SpanID())
	assert.True(t, link.SpanContext.IsRemote())
}

func TestMarshalCurrentSpanWithNoActiveSpanReturnsNil(t *testing.T) {
	raw := MarshalCurrentSpan(context.Background())
	assert.Nil(t, raw)
}

func TestContextWithStoredLinkIgnoresMalformedPayload(t *testing.T) {
	ctx := ContextWithStoredLink(context.Background(), []byte(`not json`))
	_, ok := LinkFromContext(ctx)
	assert.False(t, ok)
}

// TestStartSpanDropsParentButKeepsLink covers the no-parent-across-the-queue
// invariant: a span already on ctx when StartSpan runs, alongside a stored
// link, must not become the parent of the new span. Recovery of the link
// onto ctx is covered by TestMarshalCurrentSpanRoundTripsThroughTraceLink.
func TestStartSpanDropsParentButKeepsLink(t *testing.T) {
	enqueueCtx, enqueueSpan := startSampledSpan(context.Background())
	defer enqueueSpan.End()
	raw := MarshalCurrentSpan(enqueueCtx)
	require.NotEmpty(t, raw)

	dispatchCtx := ContextWithStoredLink(enqueueCtx, raw)
	_, dispatchSpan := StartSpan(dispatchCtx, "dispatch")
	defer dispatchSpan.End()

	assert.NotEqual(t, enqueueSpan.SpanContext().TraceID(), dispatchSpan.SpanContext().TraceID(),
		"dispatch span must start a fresh trace, not extend the enqueue caller's trace")
}
