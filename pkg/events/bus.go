package events

import (
	"fmt"
	"sync"
	"time"

	"github.com/hewenyu/modularity/internal/config"
	"go.uber.org/zap"
)

// Topic 事件主题
type Topic string

const (
	// TopicServiceRegistered 服务注册或重新注册
	TopicServiceRegistered Topic = "service.registered"
	// TopicServiceUnregistered 服务注销
	TopicServiceUnregistered Topic = "service.unregistered"
	// TopicServiceStatusChanged 服务在active与inactive之间切换
	TopicServiceStatusChanged Topic = "service.status_changed"
)

// DefaultQueueSize 每个主题的默认队列长度
const DefaultQueueSize = 256

// Event 注册中心发布的事件
type Event struct {
	Topic     Topic     `json:"topic"`
	ServiceID string    `json:"service_id"`
	Status    string    `json:"status,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Handler 事件处理函数
type Handler func(Event)

// Publisher 事件发布接口，注册中心和健康检查只依赖这个接口
type Publisher interface {
	Publish(Event)
}

// Bus 有界事件总线
//
// 每个主题一个带缓冲的队列和一个分发协程。Publish从不阻塞，
// 队列满时丢弃事件并记录警告。
type Bus struct {
	mu        sync.RWMutex
	queueSize int
	topics    map[Topic]*topic
	closed    bool
	logger    config.Logger
	wg        sync.WaitGroup
}

type topic struct {
	queue    chan Event
	mu       sync.RWMutex
	handlers []Handler
	dropped  uint64
}

// NewBus 创建事件总线
func NewBus(queueSize int, logger config.Logger) *Bus {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Bus{
		queueSize: queueSize,
		topics:    make(map[Topic]*topic),
		logger:    logger,
	}
}

// Subscribe 订阅主题，首次订阅时启动该主题的分发协程
func (b *Bus) Subscribe(t Topic, h Handler) {
	tp := b.topicFor(t)
	if tp == nil {
		return
	}
	tp.mu.Lock()
	tp.handlers = append(tp.handlers, h)
	tp.mu.Unlock()
}

// SubscribeAll 订阅所有已知主题
func (b *Bus) SubscribeAll(h Handler) {
	for _, t := range []Topic{TopicServiceRegistered, TopicServiceUnregistered, TopicServiceStatusChanged} {
		b.Subscribe(t, h)
	}
}

// Publish 投递事件，不会阻塞调用方
func (b *Bus) Publish(e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}

	tp, ok := b.topics[e.Topic]
	if !ok {
		// 没有订阅者
		return
	}

	select {
	case tp.queue <- e:
	default:
		tp.mu.Lock()
		tp.dropped++
		tp.mu.Unlock()
		b.logger.Warn("事件队列已满，丢弃事件",
			zap.String("topic", string(e.Topic)),
			zap.String("service_id", e.ServiceID))
	}
}

// Dropped 返回某个主题被丢弃的事件数
func (b *Bus) Dropped(t Topic) uint64 {
	b.mu.RLock()
	tp, ok := b.topics[t]
	b.mu.RUnlock()
	if !ok {
		return 0
	}
	tp.mu.RLock()
	defer tp.mu.RUnlock()
	return tp.dropped
}

// Close 停止接收新事件，处理完队列中剩余事件后返回
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	for _, tp := range b.topics {
		close(tp.queue)
	}
	b.mu.Unlock()

	b.wg.Wait()
}

func (b *Bus) topicFor(t Topic) *topic {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	if tp, ok := b.topics[t]; ok {
		return tp
	}

	tp := &topic{queue: make(chan Event, b.queueSize)}
	b.topics[t] = tp
	b.wg.Add(1)
	go b.dispatch(t, tp)
	return tp
}

func (b *Bus) dispatch(t Topic, tp *topic) {
	defer b.wg.Done()
	for e := range tp.queue {
		tp.mu.RLock()
		handlers := append([]Handler(nil), tp.handlers...)
		tp.mu.RUnlock()

		for _, h := range handlers {
			b.invoke(t, h, e)
		}
	}
}

func (b *Bus) invoke(t Topic, h Handler, e Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("事件处理函数发生panic",
				zap.String("topic", string(t)),
				zap.String("panic", fmt.Sprint(r)))
		}
	}()
	h(e)
}
