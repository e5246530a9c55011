package events

import (
	"sort"
	"sync"
	"time"
)

// Event 事件接口
type Event interface {
	Type() string
	Data() map[string]any
	Timestamp() time.Time
}

// Handler 事件处理器
type Handler interface {
	// CanHandle 检查是否可以处理该事件
	CanHandle(event Event) bool

	Handle(event Event) error

	// Priority 处理优先级，数值越小优先级越高
	Priority() int
}

// HandlerFunc 把普通函数包装成优先级为 0 的处理器
type HandlerFunc func(event Event) error

func (f HandlerFunc) CanHandle(Event) bool     { return true }
func (f HandlerFunc) Handle(event Event) error { return f(event) }
func (f HandlerFunc) Priority() int            { return 0 }

// Bus 事件总线接口
type Bus interface {
	// Subscribe 订阅事件，返回取消订阅函数
	Subscribe(eventType string, handler Handler) func()
	Publish(event Event)
	Clear()
}

// BaseEvent 基础事件实现
type BaseEvent struct {
	eventType string
	data      map[string]any
	timestamp time.Time
}

// NewBaseEvent 创建基础事件
func NewBaseEvent(eventType string, data map[string]any) *BaseEvent {
	return &BaseEvent{
		eventType: eventType,
		data:      data,
		timestamp: time.Now(),
	}
}

func (e *BaseEvent) Type() string         { return e.eventType }
func (e *BaseEvent) Data() map[string]any { return e.data }
func (e *BaseEvent) Timestamp() time.Time { return e.timestamp }

type subscription struct {
	id      uint64
	handler Handler
}

// MemoryBus 内存事件总线实现，处理器同步执行
type MemoryBus struct {
	mu       sync.RWMutex
	nextID   uint64
	handlers map[string][]subscription
	onError  func(event Event, err error)
}

// NewMemoryBus 创建内存事件总线，onError 可以为 nil
func NewMemoryBus(onError func(event Event, err error)) *MemoryBus {
	return &MemoryBus{
		handlers: make(map[string][]subscription),
		onError:  onError,
	}
}

func (bus *MemoryBus) Subscribe(eventType string, handler Handler) func() {
	bus.mu.Lock()
	defer bus.mu.Unlock()

	bus.nextID++
	id := bus.nextID

	subs := append(bus.handlers[eventType], subscription{id: id, handler: handler})
	// 按优先级排序，同优先级保持订阅顺序
	sort.SliceStable(subs, func(i, j int) bool {
		return subs[i].handler.Priority() < subs[j].handler.Priority()
	})
	bus.handlers[eventType] = subs

	var once sync.Once
	return func() {
		once.Do(func() { bus.unsubscribe(eventType, id) })
	}
}

func (bus *MemoryBus) unsubscribe(eventType string, id uint64) {
	bus.mu.Lock()
	defer bus.mu.Unlock()

	subs := bus.handlers[eventType]
	for i, s := range subs {
		if s.id == id {
			// 复制一份，正在发布的快照不受影响
			next := make([]subscription, 0, len(subs)-1)
			next = append(next, subs[:i]...)
			next = append(next, subs[i+1:]...)
			bus.handlers[eventType] = next
			return
		}
	}
}

// Publish 发布事件
func (bus *MemoryBus) Publish(event Event) {
	bus.mu.RLock()
	subs := make([]subscription, len(bus.handlers[event.Type()]))
	copy(subs, bus.handlers[event.Type()])
	bus.mu.RUnlock()

	for _, s := range subs {
		if !s.handler.CanHandle(event) {
			continue
		}
		if err := s.handler.Handle(event); err != nil && bus.onError != nil {
			bus.onError(event, err)
		}
	}
}

// Clear 清空所有订阅
func (bus *MemoryBus) Clear() {
	bus.mu.Lock()
	defer bus.mu.Unlock()

	bus.handlers = make(map[string][]subscription)
}
