package events

import "testing"

// TestDispatchToSubscribers 测试事件分发到订阅者
func TestDispatchToSubscribers(t *testing.T) {
	d := NewDispatcher()

	var received []Event
	d.Subscribe(SpinCompleted, func(e Event) {
		received = append(received, e)
	})

	d.Dispatch(Event{Type: SpinCompleted, SessionID: "s1"})
	d.Dispatch(Event{Type: SessionEnded, SessionID: "s1"}) // 未订阅，应忽略

	if len(received) != 1 {
		t.Fatalf("收到事件数 = %d, 期望 1", len(received))
	}
	if received[0].SessionID != "s1" {
		t.Errorf("会话ID = %s, 期望 s1", received[0].SessionID)
	}
}

// TestDispatchMultipleHandlers 测试同一事件的多个处理器依次调用
func TestDispatchMultipleHandlers(t *testing.T) {
	d := NewDispatcher()

	count := 0
	d.Subscribe(BigWin, func(e Event) { count++ })
	d.Subscribe(BigWin, func(e Event) { count++ })

	d.Dispatch(Event{Type: BigWin})

	if count != 2 {
		t.Errorf("处理器调用次数 = %d, 期望 2", count)
	}
}

// TestDispatchPanicIsolation 测试处理器panic不影响其他处理器
func TestDispatchPanicIsolation(t *testing.T) {
	d := NewDispatcher()

	called := false
	d.Subscribe(SessionStarted, func(e Event) { panic("处理器故障") })
	d.Subscribe(SessionStarted, func(e Event) { called = true })

	d.Dispatch(Event{Type: SessionStarted})

	if !called {
		t.Error("panic之后的处理器应被调用")
	}
}

// TestSubscribeAll 测试订阅全部事件类型
func TestSubscribeAll(t *testing.T) {
	d := NewDispatcher()

	var types []EventType
	d.SubscribeAll(func(e Event) { types = append(types, e.Type) })

	all := []EventType{SessionStarted, SpinCompleted, SessionEnded, FreeSpinsTriggered, BigWin}
	for _, et := range all {
		d.Dispatch(Event{Type: et})
	}

	if len(types) != len(all) {
		t.Fatalf("收到事件数 = %d, 期望 %d", len(types), len(all))
	}
}
