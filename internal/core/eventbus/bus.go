package eventbus

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/dep2p/go-dat/pkg/lib/log"
)

var logger = log.Logger("core/eventbus")

// ============================================================================
// 错误定义
// ============================================================================

var (
	// ErrClosed 事件总线已关闭
	ErrClosed = errors.New("eventbus closed")
	// ErrInvalidEventType 无效的事件类型
	ErrInvalidEventType = errors.New("invalid event type")
	// ErrNonPointerType 非指针类型
	ErrNonPointerType = errors.New("subscribe called with non-pointer type")
)

// ============================================================================
// Bus 实现
// ============================================================================

// Bus 事件总线
type Bus struct {
	mu     sync.RWMutex
	closed bool

	// sinks 事件类型 → 订阅者
	sinks map[reflect.Type][]*Subscription
}

// NewBus 创建新的事件总线
func NewBus() *Bus {
	return &Bus{
		sinks: make(map[reflect.Type][]*Subscription),
	}
}

// Subscribe 订阅一个或多个事件类型
//
// 参数为事件类型的指针，例如 new(types.EvtPeerConnected)。
func (b *Bus) Subscribe(eventTypes ...interface{}) (*Subscription, error) {
	return b.SubscribeWithReplay(nil, eventTypes...)
}

// SubscribeWithReplay 订阅并在后续事件之前先投递 replay 中的事件
//
// replay 与注册在同一把锁内完成，调用方可借此把当前状态与后续事件
// 无缝衔接（例如订阅时补发已建立连接的事件）。
func (b *Bus) SubscribeWithReplay(replay []interface{}, eventTypes ...interface{}) (*Subscription, error) {
	if len(eventTypes) == 0 {
		return nil, ErrInvalidEventType
	}
	typs := make([]reflect.Type, 0, len(eventTypes))
	for _, et := range eventTypes {
		typ, err := elemType(et)
		if err != nil {
			return nil, err
		}
		typs = append(typs, typ)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}

	sub := newSubscription(b, typs)
	for _, event := range replay {
		sub.push(event)
	}
	for _, typ := range typs {
		b.sinks[typ] = append(b.sinks[typ], sub)
	}
	return sub, nil
}

// Emitter 获取指定事件类型的发射器
func (b *Bus) Emitter(eventType interface{}) (*Emitter, error) {
	typ, err := elemType(eventType)
	if err != nil {
		return nil, err
	}
	return &Emitter{bus: b, typ: typ}, nil
}

// Close 关闭总线
//
// 已排队的事件继续投递，投递完毕后订阅通道被关闭。重复调用返回 nil。
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	seen := make(map[*Subscription]struct{})
	for _, subs := range b.sinks {
		for _, sub := range subs {
			seen[sub] = struct{}{}
		}
	}
	b.sinks = make(map[reflect.Type][]*Subscription)
	b.mu.Unlock()

	for sub := range seen {
		sub.end()
	}
	logger.Debug("事件总线已关闭", "subscriptions", len(seen))
	return nil
}

// removeSub 移除订阅
func (b *Bus) removeSub(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, typ := range sub.typs {
		subs := b.sinks[typ]
		for i, s := range subs {
			if s == sub {
				subs = append(subs[:i], subs[i+1:]...)
				break
			}
		}
		if len(subs) == 0 {
			delete(b.sinks, typ)
		} else {
			b.sinks[typ] = subs
		}
	}
}

// emit 发射事件到所有订阅者
func (b *Bus) emit(typ reflect.Type, event interface{}) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}
	for _, sub := range b.sinks[typ] {
		sub.push(event)
	}
	return nil
}

func elemType(eventType interface{}) (reflect.Type, error) {
	if eventType == nil {
		return nil, ErrInvalidEventType
	}
	typ := reflect.TypeOf(eventType)
	if typ.Kind() != reflect.Ptr {
		return nil, fmt.Errorf("%w: %s", ErrNonPointerType, typ)
	}
	return typ.Elem(), nil
}

// ============================================================================
// Emitter 实现
// ============================================================================

// Emitter 事件发射器
type Emitter struct {
	bus *Bus
	typ reflect.Type
}

// Emit 发射事件，事件的动态类型必须与发射器类型一致
func (e *Emitter) Emit(event interface{}) error {
	if t := reflect.TypeOf(event); t != e.typ {
		return fmt.Errorf("%w: emitter for %s got %v", ErrInvalidEventType, e.typ, t)
	}
	return e.bus.emit(e.typ, event)
}
