// Package trace propagates an OpenTelemetry span link from Enqueue through
// to the handler invocation that eventually dispatches the job, without
// creating a parent-child relationship across the async queue boundary
// (a job can sit pending for an arbitrary time, which would otherwise make
// for a misleadingly long-lived parent span).
package trace

import (
	"context"
	"encoding/json"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// Tracer is the scheduler's shared tracer.
var Tracer = otel.Tracer("jobqueue")

type linkContextKey struct{}

// ContextWithLink stores a link on the context without setting a parent.
func ContextWithLink(ctx context.Context, sc trace.SpanContext) context.Context {
	if !sc.IsValid() {
		return ctx
	}
	return context.WithValue(ctx, linkContextKey{}, trace.Link{SpanContext: makeRemote(sc)})
}

// LinkFromContext retrieves a span link added by ContextWithLink, if present.
func LinkFromContext(ctx context.Context) (trace.Link, bool) {
	link, ok := ctx.Value(linkContextKey{}).(trace.Link)
	return link, ok
}

// StartSpan starts a span linked (not parented) to the link stored on ctx by
// ContextWithLink, if any. Any parent span on ctx is dropped first so that
// dispatch spans never nest under the enqueue call that happened to be
// in-flight when the job was created.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	if link, ok := LinkFromContext(ctx); ok {
		opts = append(opts, trace.WithLinks(link))
	}
	ctx = trace.ContextWithSpanContext(ctx, trace.SpanContext{})
	return Tracer.Start(ctx, name, opts...)
}

func makeRemote(sc trace.SpanContext) trace.SpanContext {
	return trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    sc.TraceID(),
		SpanID:     sc.SpanID(),
		TraceFlags: sc.TraceFlags(),
		TraceState: sc.TraceState(),
		Remote:     true,
	})
}

// SpanContextPayload is the persistable form of a span context, stored on
// job.Job.TraceLink so it survives the gap between Enqueue and dispatch.
type SpanContextPayload struct {
	TraceID    string `json:"trace_id"`
	SpanID     string `json:"span_id"`
	TraceFlags uint8  `json:"trace_flags,omitempty"`
	TraceState string `json:"trace_state,omitempty"`
}

func payloadFromSpanContext(sc trace.SpanContext) *SpanContextPayload {
	if !sc.IsValid() {
		return nil
	}
	p := &SpanContextPayload{TraceID: sc.TraceID().String(), SpanID: sc.SpanID().String()}
	if sc.TraceFlags() != 0 {
		p.TraceFlags = uint8(sc.TraceFlags())
	}
	if ts := sc.TraceState().String(); ts != "" {
		p.TraceState = ts
	}
	return p
}

func spanContextFromPayload(p *SpanContextPayload) (trace.SpanContext, bool) {
	if p == nil {
		return trace.SpanContext{}, false
	}
	traceID, err := trace.TraceIDFromHex(p.TraceID)
	if err != nil {
		return trace.SpanContext{}, false
	}
	spanID, err := trace.SpanIDFromHex(p.SpanID)
	if err != nil {
		return trace.SpanContext{}, false
	}
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.TraceFlags(p.TraceFlags),
	})
	if p.TraceState != "" {
		if ts, err := trace.ParseTraceState(p.TraceState); err == nil {
			sc = sc.WithTraceState(ts)
		}
	}
	return sc, sc.IsValid()
}

// MarshalCurrentSpan captures the span on ctx (if any) as a json payload
// suitable for job.Job.TraceLink.
func MarshalCurrentSpan(ctx context.Context) json.RawMessage {
	payload := payloadFromSpanContext(trace.SpanFromContext(ctx).SpanContext())
	if payload == nil {
		return nil
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return nil
	}
	return b
}

// ContextWithStoredLink unmarshals a job's TraceLink and attaches it to ctx
// as a link, ready for StartSpan.
func ContextWithStoredLink(ctx context.Context, raw json.RawMessage) context.Context {
	if len(raw) == 0 {
		return ctx
	}
	var payload SpanContextPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return ctx
	}
	sc, ok := spanContextFromPayload(&payload)
	if !ok {
		return ctx
	}
	return ContextWithLink(ctx, sc)
}
