// Package natsutil publishes and consumes JSON messages over NATS with
// OpenTelemetry trace propagation.
package natsutil

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
)

// natsHeaderCarrier adapts nats.Msg headers for OTel TextMapCarrier.
type natsHeaderCarrier nats.Msg

func (c *natsHeaderCarrier) Get(key string) string {
	if c.Header == nil {
		return ""
	}
	return c.Header.Get(key)
}

func (c *natsHeaderCarrier) Set(key, val string) {
	if c.Header == nil {
		c.Header = make(nats.Header)
	}
	c.Header.Set(key, val)
}

func (c *natsHeaderCarrier) Keys() []string {
	if c.Header == nil {
		return nil
	}
	keys := make([]string, 0, len(c.Header))
	for k := range c.Header {
		keys = append(keys, k)
	}
	return keys
}

// MsgPublisher is the publishing half of *nats.Conn.
type MsgPublisher interface {
	PublishMsg(msg *nats.Msg) error
}

// Connect dials url with reconnects enabled.
func Connect(url, name string) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(10),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("natsutil: connect %s: %w", url, err)
	}
	return nc, nil
}

// NewMsg serializes v as JSON into a message for subject, injecting the
// trace context from ctx into its headers.
func NewMsg[T any](ctx context.Context, subject string, v T) (*nats.Msg, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	msg := &nats.Msg{
		Subject: subject,
		Data:    data,
	}
	otel.GetTextMapPropagator().Inject(ctx, (*natsHeaderCarrier)(msg))
	return msg, nil
}

// Publish serializes v as JSON and publishes to the given subject.
// Trace context from ctx is injected into NATS message headers.
func Publish[T any](ctx context.Context, nc MsgPublisher, subject string, v T) error {
	msg, err := NewMsg(ctx, subject, v)
	if err != nil {
		return err
	}
	return nc.PublishMsg(msg)
}

// Subscribe registers a handler that deserializes JSON messages of type T.
// Trace context is extracted from NATS message headers and passed to the handler.
// Malformed messages are silently dropped.
func Subscribe[T any](nc *nats.Conn, subject string, handler func(context.Context, T)) (*nats.Subscription, error) {
	return nc.Subscribe(subject, Handler(handler))
}

// Handler wraps a typed handler as a nats.MsgHandler.
func Handler[T any](handler func(context.Context, T)) nats.MsgHandler {
	return func(msg *nats.Msg) {
		var v T
		if err := json.Unmarshal(msg.Data, &v); err != nil {
			return // drop malformed messages
		}
		ctx := otel.GetTextMapPropagator().Extract(context.Background(), (*natsHeaderCarrier)(msg))
		handler(ctx, v)
	}
}

// Publisher publishes values to a subject derived from each value. A failed
// publish is logged and remembered; it never interrupts the caller.
type Publisher[T any] struct {
	nc      MsgPublisher
	subject func(T) string
	log     *slog.Logger

	mu     sync.Mutex
	sent   int
	failed int
	err    error
}

// NewPublisher creates a Publisher.
func NewPublisher[T any](nc MsgPublisher, subject func(T) string, log *slog.Logger) *Publisher[T] {
	if log == nil {
		log = slog.Default()
	}
	return &Publisher[T]{nc: nc, subject: subject, log: log}
}

// Handle publishes v.
func (p *Publisher[T]) Handle(ctx context.Context, v T) {
	subject := p.subject(v)
	err := Publish(ctx, p.nc, subject, v)

	p.mu.Lock()
	defer p.mu.Unlock()
	if err != nil {
		p.failed++
		if p.err == nil {
			p.err = fmt.Errorf("natsutil: publish %s: %w", subject, err)
		}
		p.log.Warn("event publish failed", "subject", subject, "error", err)
		return
	}
	p.sent++
}

// Stats returns how many publishes succeeded and failed.
func (p *Publisher[T]) Stats() (sent, failed int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sent, p.failed
}

// Err returns the first publish error, if any.
func (p *Publisher[T]) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// Flush waits for buffered messages to reach the server when nc supports it.
func (p *Publisher[T]) Flush(timeout time.Duration) error {
	f, ok := p.nc.(interface{ FlushTimeout(time.Duration) error })
	if !ok {
		return nil
	}
	if err := f.FlushTimeout(timeout); err != nil {
		return errors.Join(p.Err(), fmt.Errorf("natsutil: flush: %w", err))
	}
	return nil
}
