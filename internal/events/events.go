package events

import (
	"sync"

	"github.com/wfunc/slot-simulator/internal/logger"
	"go.uber.org/zap"
)

// EventType 事件类型
type EventType string

const (
	SessionStarted     EventType = "session_started"
	SpinCompleted      EventType = "spin_completed"
	SessionEnded       EventType = "session_ended"
	FreeSpinsTriggered EventType = "free_spins_triggered"
	BigWin             EventType = "big_win"
)

// Event 会话生命周期事件
type Event struct {
	Type      EventType              `json:"type"`
	SessionID string                 `json:"session_id"`
	PlayerID  string                 `json:"player_id"`
	MachineID string                 `json:"machine_id"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
}

// Handler 事件处理函数
type Handler func(Event)

// Dispatcher 事件分发器
// 单个处理器的panic不会中断会话，也不会影响其他处理器
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
	log      *zap.Logger
}

// NewDispatcher 创建事件分发器
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		handlers: make(map[EventType][]Handler),
		log:      logger.GetModuleLogger("events"),
	}
}

// Subscribe 订阅指定类型的事件
func (d *Dispatcher) Subscribe(eventType EventType, handler Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[eventType] = append(d.handlers[eventType], handler)
}

// SubscribeAll 订阅全部事件类型
func (d *Dispatcher) SubscribeAll(handler Handler) {
	for _, t := range []EventType{SessionStarted, SpinCompleted, SessionEnded, FreeSpinsTriggered, BigWin} {
		d.Subscribe(t, handler)
	}
}

// Dispatch 同步分发事件到所有订阅者
func (d *Dispatcher) Dispatch(event Event) {
	d.mu.RLock()
	handlers := d.handlers[event.Type]
	d.mu.RUnlock()

	for _, handler := range handlers {
		d.safeCall(handler, event)
	}
}

// safeCall 调用处理器并吞掉panic
func (d *Dispatcher) safeCall(handler Handler, event Event) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("事件处理器panic",
				zap.String("event_type", string(event.Type)),
				zap.Any("panic", r),
			)
		}
	}()
	handler(event)
}
