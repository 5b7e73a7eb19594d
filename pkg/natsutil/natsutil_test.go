package natsutil

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/WessleyAI/orggraph/pkg/logging"
	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

type testMsg struct {
	Kind  string `json:"kind"`
	Value int    `json:"value"`
}

type fakeConn struct {
	msgs     []*nats.Msg
	err      error
	flushErr error
}

func (f *fakeConn) PublishMsg(msg *nats.Msg) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msg)
	return nil
}

func (f *fakeConn) FlushTimeout(time.Duration) error { return f.flushErr }

func quiet() *slog.Logger { return logging.Discard() }

func TestNatsHeaderCarrier(t *testing.T) {
	msg := &nats.Msg{}
	carrier := (*natsHeaderCarrier)(msg)

	carrier.Set("traceparent", "00-abc-def-01")
	if got := carrier.Get("traceparent"); got != "00-abc-def-01" {
		t.Fatalf("expected traceparent, got %q", got)
	}

	keys := carrier.Keys()
	if len(keys) != 1 {
		t.Fatalf("unexpected keys: %v", keys)
	}
}

func TestNatsHeaderCarrierNilHeader(t *testing.T) {
	msg := &nats.Msg{}
	carrier := (*natsHeaderCarrier)(msg)

	if got := carrier.Get("missing"); got != "" {
		t.Fatalf("expected empty, got %q", got)
	}
	if keys := carrier.Keys(); keys != nil {
		t.Fatalf("expected nil keys, got %v", keys)
	}
}

func withPropagator(t *testing.T) {
	t.Helper()
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prev) })
}

func sampledContext() context.Context {
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16},
		SpanID:     trace.SpanID{1, 2, 3, 4, 5, 6, 7, 8},
		TraceFlags: trace.FlagsSampled,
	})
	return trace.ContextWithSpanContext(context.Background(), sc)
}

func TestPublishInjectsTraceContext(t *testing.T) {
	withPropagator(t)
	conn := &fakeConn{}

	if err := Publish(sampledContext(), conn, "orggraph.events.record", testMsg{Kind: "record", Value: 42}); err != nil {
		t.Fatal(err)
	}
	if len(conn.msgs) != 1 {
		t.Fatalf("msgs = %d", len(conn.msgs))
	}
	msg := conn.msgs[0]
	if msg.Subject != "orggraph.events.record" {
		t.Errorf("subject = %q", msg.Subject)
	}
	var decoded testMsg
	if err := json.Unmarshal(msg.Data, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.Value != 42 {
		t.Errorf("decoded = %+v", decoded)
	}
	if tp := msg.Header.Get("traceparent"); !strings.HasPrefix(tp, "00-0102030405060708090a0b0c0d0e0f10-") {
		t.Errorf("traceparent = %q", tp)
	}
}

func TestHandlerExtractsTraceContext(t *testing.T) {
	withPropagator(t)
	msg, err := NewMsg(sampledContext(), "s", testMsg{Kind: "k"})
	if err != nil {
		t.Fatal(err)
	}

	var got testMsg
	var traceID trace.TraceID
	Handler(func(ctx context.Context, v testMsg) {
		got = v
		traceID = trace.SpanContextFromContext(ctx).TraceID()
	})(msg)

	if got.Kind != "k" {
		t.Errorf("got %+v", got)
	}
	if traceID[0] != 1 || traceID[15] != 16 {
		t.Errorf("trace id = %s", traceID)
	}
}

func TestHandlerDropsMalformed(t *testing.T) {
	called := false
	Handler(func(context.Context, testMsg) { called = true })(&nats.Msg{Data: []byte("{invalid json")})
	if called {
		t.Fatal("handler should not have been called for malformed message")
	}
}

func TestPublisher(t *testing.T) {
	conn := &fakeConn{}
	p := NewPublisher(conn, func(m testMsg) string { return "events." + m.Kind }, quiet())

	p.Handle(context.Background(), testMsg{Kind: "record"})
	p.Handle(context.Background(), testMsg{Kind: "completed"})

	sent, failed := p.Stats()
	if sent != 2 || failed != 0 || p.Err() != nil {
		t.Fatalf("sent=%d failed=%d err=%v", sent, failed, p.Err())
	}
	if conn.msgs[1].Subject != "events.completed" {
		t.Errorf("subject = %q", conn.msgs[1].Subject)
	}
	if err := p.Flush(time.Second); err != nil {
		t.Errorf("flush: %v", err)
	}
}

func TestPublisherRemembersFirstError(t *testing.T) {
	conn := &fakeConn{err: nats.ErrConnectionClosed}
	p := NewPublisher(conn, func(testMsg) string { return "events" }, quiet())

	p.Handle(context.Background(), testMsg{})
	p.Handle(context.Background(), testMsg{})

	sent, failed := p.Stats()
	if sent != 0 || failed != 2 {
		t.Errorf("sent=%d failed=%d", sent, failed)
	}
	if !errors.Is(p.Err(), nats.ErrConnectionClosed) {
		t.Errorf("err = %v", p.Err())
	}
}

func TestPublisherFlushError(t *testing.T) {
	conn := &fakeConn{flushErr: nats.ErrTimeout}
	p := NewPublisher(conn, func(testMsg) string { return "events" }, quiet())
	if err := p.Flush(time.Millisecond); !errors.Is(err, nats.ErrTimeout) {
		t.Errorf("err = %v", err)
	}
}
