// Package events carries domain notifications from the services to the
// real-time layer.
package events

import (
	"sync"

	evbus "github.com/asaskevich/EventBus"
	"github.com/talkincode/smartcart/internal/domain"
	"go.uber.org/zap"
)

const topic = "smartcart:event"

// Publisher is implemented by anything that accepts domain events.
type Publisher interface {
	Publish(event domain.Event)
}

// Bus delivers every published event to every subscriber.
type Bus struct {
	bus evbus.Bus
}

var _ Publisher = (*Bus)(nil)

func NewBus() *Bus {
	return &Bus{bus: evbus.New()}
}

// Publish hands event to every subscriber. It waits for an asynchronous
// subscriber only while that subscriber is still busy with the previous event.
func (b *Bus) Publish(event domain.Event) {
	zap.L().Debug("publish event", zap.String("namespace", "events"), zap.String("event", string(event.Kind)))
	b.bus.Publish(topic, event)
}

// Subscribe runs fn synchronously inside Publish.
func (b *Bus) Subscribe(fn func(domain.Event)) (func(), error) {
	if err := b.bus.Subscribe(topic, fn); err != nil {
		return nil, err
	}
	return func() { _ = b.bus.Unsubscribe(topic, fn) }, nil
}

// SubscribeAsync runs fn on a separate goroutine. Events are handed to fn
// one at a time in publish order.
func (b *Bus) SubscribeAsync(fn func(domain.Event)) (func(), error) {
	if err := b.bus.SubscribeAsync(topic, fn, true); err != nil {
		return nil, err
	}
	return func() { _ = b.bus.Unsubscribe(topic, fn) }, nil
}

// Wait blocks until asynchronous handlers have finished.
func (b *Bus) Wait() {
	b.bus.WaitAsync()
}

// Recorder collects published events. Tests use it in place of a Bus.
type Recorder struct {
	mu     sync.Mutex
	Events []domain.Event
}

func (r *Recorder) Publish(event domain.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Events = append(r.Events, event)
}

// Kinds lists the recorded event kinds in order.
func (r *Recorder) Kinds() []domain.EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.EventKind, 0, len(r.Events))
	for _, e := range r.Events {
		out = append(out, e.Kind)
	}
	return out
}

// Reset drops the recorded events.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Events = nil
}
