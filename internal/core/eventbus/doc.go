// Package eventbus 实现进程内事件总线
//
// 提供类型安全的事件发布/订阅机制：
//   - 一个订阅可以覆盖多个事件类型
//   - 每个订阅者拥有独立的无界队列，发射永不阻塞、永不丢弃
//   - Close 结束总线：已排队的事件仍会投递，之后所有 Out() 通道被关闭
//
// # 快速开始
//
//	bus := eventbus.NewBus()
//
//	sub, _ := bus.Subscribe(new(types.EvtPeerConnected), new(types.EvtPeerDisconnected))
//	defer sub.Close()
//
//	go func() {
//	    for evt := range sub.Out() {
//	        switch e := evt.(type) {
//	        case types.EvtPeerConnected:
//	            // 处理事件
//	        }
//	    }
//	}()
//
//	em, _ := bus.Emitter(new(types.EvtPeerConnected))
//	em.Emit(types.EvtPeerConnected{...})
//
// # 并发安全
//
// 订阅者不读取时事件在其队列中累积，消费者必须持续读取 Out() 或调用 Close。
package eventbus
