package events

import (
	EventBus "github.com/asaskevich/EventBus"
	"go.uber.org/zap"
)

const (
	TopicOrderCreated       = "order:created"
	TopicOrderStatusChanged = "order:status"
	TopicPaymentReceived    = "payment:received"
	TopicStockLow           = "stock:low"
)

// Bus in-process publish/subscribe used to decouple side effects
// (mail, metrics) from request handlers.
type Bus struct {
	bus EventBus.Bus
}

func NewBus() *Bus {
	return &Bus{bus: EventBus.New()}
}

// Subscribe registers a synchronous handler
func (b *Bus) Subscribe(topic string, fn interface{}) {
	if err := b.bus.Subscribe(topic, fn); err != nil {
		zap.L().Error("event subscribe failed", zap.String("topic", topic), zap.Error(err))
	}
}

// SubscribeAsync registers a handler running in its own goroutine
func (b *Bus) SubscribeAsync(topic string, fn interface{}) {
	if err := b.bus.SubscribeAsync(topic, fn, false); err != nil {
		zap.L().Error("event subscribe failed", zap.String("topic", topic), zap.Error(err))
	}
}

func (b *Bus) Publish(topic string, args ...interface{}) {
	b.bus.Publish(topic, args...)
}

// Wait blocks until async handlers are done
func (b *Bus) Wait() {
	b.bus.WaitAsync()
}
