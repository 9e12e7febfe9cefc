// Package bus is a process-local topic broker: named topics carrying named
// events, with at-least-once synchronous delivery to every subscriber.
// Ordering across producers is not guaranteed; handler failures are logged
// and never propagate to the emitter.
package bus

import (
	"context"
	"sync"
)

// Handler consumes one event payload.
type Handler func(ctx context.Context, payload any) error

// Logger is the minimal logging surface the broker needs.
type Logger interface {
	Warn(msg string, args ...any)
	Debug(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Debug(string, ...any) {}

// Topic is a named event stream.
type Topic struct {
	name   string
	logger Logger

	mu   sync.RWMutex
	subs map[string][]Handler
}

// Name returns the topic name.
func (t *Topic) Name() string { return t.name }

// Subscribe registers a handler for the named event.
func (t *Topic) Subscribe(event string, h Handler) {
	if h == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.subs[event] = append(t.subs[event], h)
}

// Emit delivers the payload to every subscriber of the named event. A failing
// handler does not stop delivery to the remaining ones.
func (t *Topic) Emit(ctx context.Context, event string, payload any) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	t.mu.RLock()
	handlers := make([]Handler, len(t.subs[event]))
	copy(handlers, t.subs[event])
	t.mu.RUnlock()

	for _, h := range handlers {
		if err := h(ctx, payload); err != nil {
			t.logger.Warn("event handler failed",
				"topic", t.name, "event", event, "error", err)
		}
	}

	return nil
}

// Broker hands out topics by name, creating them on first use.
type Broker struct {
	logger Logger

	mu     sync.Mutex
	topics map[string]*Topic
}

// Option customizes broker construction.
type Option func(*Broker)

// WithLogger sets the logger used for handler failures.
func WithLogger(l Logger) Option {
	return func(b *Broker) {
		if l != nil {
			b.logger = l
		}
	}
}

// New builds an empty broker.
func New(opts ...Option) *Broker {
	b := &Broker{
		logger: noopLogger{},
		topics: map[string]*Topic{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

// Topic returns the named topic, creating it if needed.
func (b *Broker) Topic(name string) *Topic {
	b.mu.Lock()
	defer b.mu.Unlock()

	if t, ok := b.topics[name]; ok {
		return t
	}

	t := &Topic{
		name:   name,
		logger: b.logger,
		subs:   map[string][]Handler{},
	}
	b.topics[name] = t
	return t
}
