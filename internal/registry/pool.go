package registry

import (
	"sync"
	"time"

	"github.com/wfunc/slot-simulator/internal/errors"
)

// Pool 泛型实例池
// 借出的实例归持有者独占，必须通过Lease.Release归还；
// 同一实例绝不会同时被两个会话持有
type Pool[T any] struct {
	items  chan T
	mu     sync.Mutex
	closed bool
}

// Lease 实例租约
// Release归还实例并使租约失效，重复归还是无操作
type Lease[T any] struct {
	pool     *Pool[T]
	value    T
	released bool
	mu       sync.Mutex
}

// Value 返回借出的实例
func (l *Lease[T]) Value() T {
	return l.value
}

// Release 归还实例
func (l *Lease[T]) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.released {
		return
	}
	l.released = true
	l.pool.put(l.value)
}

// NewPool 创建容量固定的实例池
func NewPool[T any](capacity int) *Pool[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &Pool[T]{
		items: make(chan T, capacity),
	}
}

// Put 放入实例
// 池已满时丢弃，池已关闭时返回错误
func (p *Pool[T]) Put(item T) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return errors.New(errors.ErrPoolClosed)
	}
	p.mu.Unlock()

	select {
	case p.items <- item:
		return nil
	default:
		return errors.New(errors.ErrPoolExhausted, "池容量已满")
	}
}

func (p *Pool[T]) put(item T) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	select {
	case p.items <- item:
	default:
	}
}

// Acquire 借出实例，超时返回错误
// timeout ≤ 0 表示非阻塞尝试
func (p *Pool[T]) Acquire(timeout time.Duration) (*Lease[T], error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, errors.New(errors.ErrPoolClosed)
	}
	p.mu.Unlock()

	if timeout <= 0 {
		select {
		case item := <-p.items:
			return &Lease[T]{pool: p, value: item}, nil
		default:
			return nil, errors.New(errors.ErrPoolExhausted)
		}
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case item := <-p.items:
		return &Lease[T]{pool: p, value: item}, nil
	case <-timer.C:
		return nil, errors.Newf(errors.ErrPoolExhausted, "等待%s后仍无可用实例", timeout)
	}
}

// Size 返回当前空闲实例数
func (p *Pool[T]) Size() int {
	return len(p.items)
}

// Close 关闭池，之后的借出和归还都被拒绝
func (p *Pool[T]) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
}
