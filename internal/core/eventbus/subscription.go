package eventbus

import (
	"reflect"
	"sync"
)

// ============================================================================
// Subscription 实现
// ============================================================================

// Subscription 订阅
//
// 事件先进入无界队列，再由后台 goroutine 按顺序转发到 Out()。
type Subscription struct {
	bus  *Bus
	typs []reflect.Type
	out  chan interface{}

	mu     sync.Mutex
	queue  []interface{}
	ended  bool
	signal chan struct{}

	cancel    chan struct{}
	closeOnce sync.Once
}

func newSubscription(b *Bus, typs []reflect.Type) *Subscription {
	s := &Subscription{
		bus:    b,
		typs:   typs,
		out:    make(chan interface{}),
		signal: make(chan struct{}, 1),
		cancel: make(chan struct{}),
	}
	go s.pump()
	return s
}

// Out 返回事件通道，流结束时通道被关闭
func (s *Subscription) Out() <-chan interface{} {
	return s.out
}

// Close 取消订阅，丢弃尚未投递的事件
//
// Close 是并发安全的，可以多次调用。
func (s *Subscription) Close() error {
	s.closeOnce.Do(func() {
		s.bus.removeSub(s)
		close(s.cancel)
	})
	return nil
}

// push 入队事件
func (s *Subscription) push(event interface{}) {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return
	}
	s.queue = append(s.queue, event)
	s.mu.Unlock()
	s.wake()
}

// end 标记流结束，已入队的事件仍会投递
func (s *Subscription) end() {
	s.mu.Lock()
	s.ended = true
	s.mu.Unlock()
	s.wake()
}

func (s *Subscription) wake() {
	select {
	case s.signal <- struct{}{}:
	default:
	}
}

// pump 将队列中的事件按序转发到 out
func (s *Subscription) pump() {
	defer close(s.out)

	for {
		s.mu.Lock()
		for len(s.queue) == 0 && !s.ended {
			s.mu.Unlock()
			select {
			case <-s.signal:
			case <-s.cancel:
				return
			}
			s.mu.Lock()
		}
		if len(s.queue) == 0 {
			s.mu.Unlock()
			return
		}
		event := s.queue[0]
		s.queue[0] = nil
		s.queue = s.queue[1:]
		s.mu.Unlock()

		select {
		case s.out <- event:
		case <-s.cancel:
			return
		}
	}
}
