package eventbus

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type evtA struct{ Value int }
type evtB struct{ Name string }

func recv(t *testing.T, sub *Subscription) interface{} {
	t.Helper()
	select {
	case evt, ok := <-sub.Out():
		require.True(t, ok, "stream ended unexpectedly")
		return evt
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestBus_EmitAndReceive(t *testing.T) {
	bus := NewBus()
	sub, err := bus.Subscribe(new(evtA), new(evtB))
	require.NoError(t, err)
	defer sub.Close()

	emA, err := bus.Emitter(new(evtA))
	require.NoError(t, err)
	emB, err := bus.Emitter(new(evtB))
	require.NoError(t, err)

	require.NoError(t, emA.Emit(evtA{Value: 1}))
	require.NoError(t, emB.Emit(evtB{Name: "b"}))

	assert.Equal(t, evtA{Value: 1}, recv(t, sub))
	assert.Equal(t, evtB{Name: "b"}, recv(t, sub))
}

func TestBus_InvalidTypes(t *testing.T) {
	bus := NewBus()

	_, err := bus.Subscribe()
	assert.ErrorIs(t, err, ErrInvalidEventType)
	_, err = bus.Subscribe(evtA{})
	assert.ErrorIs(t, err, ErrNonPointerType)
	_, err = bus.Emitter(nil)
	assert.ErrorIs(t, err, ErrInvalidEventType)

	em, err := bus.Emitter(new(evtA))
	require.NoError(t, err)
	assert.ErrorIs(t, em.Emit(evtB{}), ErrInvalidEventType)
}

// TestBus_Unbounded 测试慢消费者不丢事件、发射者不阻塞
func TestBus_Unbounded(t *testing.T) {
	bus := NewBus()
	sub, err := bus.Subscribe(new(evtA))
	require.NoError(t, err)
	defer sub.Close()

	em, err := bus.Emitter(new(evtA))
	require.NoError(t, err)

	const n = 1000
	for i := 0; i < n; i++ {
		require.NoError(t, em.Emit(evtA{Value: i}))
	}
	for i := 0; i < n; i++ {
		assert.Equal(t, evtA{Value: i}, recv(t, sub))
	}
}

// TestBus_CloseEndsStream 测试关闭总线后先投递剩余事件再结束流
func TestBus_CloseEndsStream(t *testing.T) {
	bus := NewBus()
	sub, err := bus.Subscribe(new(evtA))
	require.NoError(t, err)

	em, err := bus.Emitter(new(evtA))
	require.NoError(t, err)
	require.NoError(t, em.Emit(evtA{Value: 7}))

	require.NoError(t, bus.Close())
	require.NoError(t, bus.Close())

	assert.Equal(t, evtA{Value: 7}, recv(t, sub))
	select {
	case _, ok := <-sub.Out():
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("stream not closed")
	}

	assert.ErrorIs(t, em.Emit(evtA{}), ErrClosed)
	_, err = bus.Subscribe(new(evtA))
	assert.ErrorIs(t, err, ErrClosed)
}

func TestSubscription_Close(t *testing.T) {
	bus := NewBus()
	sub, err := bus.Subscribe(new(evtA))
	require.NoError(t, err)

	em, err := bus.Emitter(new(evtA))
	require.NoError(t, err)
	require.NoError(t, em.Emit(evtA{}))

	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close())

	// 通道最终关闭
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-sub.Out():
			if !ok {
				bus.mu.RLock()
				assert.Empty(t, bus.sinks)
				bus.mu.RUnlock()
				return
			}
		case <-deadline:
			t.Fatal("subscription channel not closed")
		}
	}
}

func TestBus_ConcurrentEmitters(t *testing.T) {
	bus := NewBus()
	sub, err := bus.Subscribe(new(evtA))
	require.NoError(t, err)
	defer sub.Close()

	const emitters, each = 10, 50
	var wg sync.WaitGroup
	for i := 0; i < emitters; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			em, _ := bus.Emitter(new(evtA))
			for j := 0; j < each; j++ {
				_ = em.Emit(evtA{Value: id*1000 + j})
			}
		}(i)
	}
	wg.Wait()

	seen := make(map[int]bool)
	for i := 0; i < emitters*each; i++ {
		evt := recv(t, sub).(evtA)
		seen[evt.Value] = true
	}
	assert.Len(t, seen, emitters*each)
}

func TestBus_SubscribeWithReplay(t *testing.T) {
	bus := NewBus()
	em, err := bus.Emitter(new(evtA))
	require.NoError(t, err)

	sub, err := bus.SubscribeWithReplay([]interface{}{evtA{Value: 1}, evtA{Value: 2}}, new(evtA))
	require.NoError(t, err)
	defer sub.Close()
	require.NoError(t, em.Emit(evtA{Value: 3}))

	assert.Equal(t, evtA{Value: 1}, recv(t, sub))
	assert.Equal(t, evtA{Value: 2}, recv(t, sub))
	assert.Equal(t, evtA{Value: 3}, recv(t, sub))

	require.NoError(t, bus.Close())
	_, err = bus.SubscribeWithReplay([]interface{}{evtA{}}, new(evtA))
	assert.ErrorIs(t, err, ErrClosed)
}
