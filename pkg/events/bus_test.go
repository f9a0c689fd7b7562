package events

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hewenyu/modularity/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusDeliversInOrder(t *testing.T) {
	bus := NewBus(16, config.NewNopLogger())

	var mu sync.Mutex
	var got []string
	bus.Subscribe(TopicServiceRegistered, func(e Event) {
		mu.Lock()
		got = append(got, e.ServiceID)
		mu.Unlock()
	})

	for _, id := range []string{"a", "b", "c"} {
		bus.Publish(Event{Topic: TopicServiceRegistered, ServiceID: id})
	}
	bus.Close()

	assert.Equal(t, []string{"a", "b", "c"}, got)
}

func TestBusRecoversHandlerPanic(t *testing.T) {
	bus := NewBus(16, config.NewNopLogger())

	var calls int32
	bus.Subscribe(TopicServiceUnregistered, func(e Event) {
		panic("boom")
	})
	bus.Subscribe(TopicServiceUnregistered, func(e Event) {
		atomic.AddInt32(&calls, 1)
	})

	bus.Publish(Event{Topic: TopicServiceUnregistered, ServiceID: "a"})
	bus.Publish(Event{Topic: TopicServiceUnregistered, ServiceID: "b"})
	bus.Close()

	assert.Equal(t, int32(2), atomic.LoadInt32(&calls), "panic不应影响其他处理函数和后续事件")
}

func TestBusDropsWhenFull(t *testing.T) {
	bus := NewBus(1, config.NewNopLogger())

	release := make(chan struct{})
	started := make(chan struct{}, 1)
	bus.Subscribe(TopicServiceStatusChanged, func(e Event) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
	})

	bus.Publish(Event{Topic: TopicServiceStatusChanged, ServiceID: "first"})
	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("分发协程未启动")
	}

	// 第一个事件正在处理，队列容量为1
	done := make(chan struct{})
	go func() {
		bus.Publish(Event{Topic: TopicServiceStatusChanged, ServiceID: "second"})
		bus.Publish(Event{Topic: TopicServiceStatusChanged, ServiceID: "third"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish不应阻塞")
	}

	assert.Equal(t, uint64(1), bus.Dropped(TopicServiceStatusChanged))
	close(release)
	bus.Close()
}

func TestBusPublishWithoutSubscribers(t *testing.T) {
	bus := NewBus(0, config.NewNopLogger())
	bus.Publish(Event{Topic: TopicServiceRegistered, ServiceID: "a"})
	assert.Equal(t, uint64(0), bus.Dropped(TopicServiceRegistered))
	bus.Close()

	// 关闭后发布和订阅都是空操作
	bus.Publish(Event{Topic: TopicServiceRegistered, ServiceID: "b"})
	bus.Subscribe(TopicServiceRegistered, func(Event) {})
}

func TestSubscribeAll(t *testing.T) {
	bus := NewBus(8, config.NewNopLogger())

	var count int32
	bus.SubscribeAll(func(Event) { atomic.AddInt32(&count, 1) })

	bus.Publish(Event{Topic: TopicServiceRegistered})
	bus.Publish(Event{Topic: TopicServiceUnregistered})
	bus.Publish(Event{Topic: TopicServiceStatusChanged})
	bus.Close()

	require.Equal(t, int32(3), atomic.LoadInt32(&count))
}
