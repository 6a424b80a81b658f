package events

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPublishReachesSubscribers(t *testing.T) {
	b := NewBus()
	var syncCalls, asyncCalls int32
	b.Subscribe(TopicOrderCreated, func(number string) {
		assert.Equal(t, "CD1", number)
		atomic.AddInt32(&syncCalls, 1)
	})
	b.SubscribeAsync(TopicOrderCreated, func(number string) {
		atomic.AddInt32(&asyncCalls, 1)
	})

	b.Publish(TopicOrderCreated, "CD1")
	b.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&syncCalls))
	assert.Equal(t, int32(1), atomic.LoadInt32(&asyncCalls))
}
