package replicate

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/dep2p/go-dat/internal/core/archive"
	"github.com/dep2p/go-dat/pkg/lib/log"
	"github.com/dep2p/go-dat/pkg/types"
)

var logger = log.Logger("protocol/replicate")

// ProtocolID 复制协议标识
const ProtocolID = "/dat/replicate/1.0.0"

// sendQueueSize 发送队列容量
//
// 请求逐条发出，因此队列中最多是一个 Data、一个 Request 与若干 Status。
const sendQueueSize = 32

// Replicator 单条连接上的复制状态
type Replicator struct {
	archive *archive.Archive
	rw      io.ReadWriteCloser
	remote  types.PeerID

	sendq chan *Message

	mu             sync.Mutex
	remoteLength   uint64
	remoteWritable bool
	pending        bool
	pendingSeq     uint64
	received       uint64
	served         uint64
}

// New 在已建立的流上创建复制器
func New(a *archive.Archive, rw io.ReadWriteCloser, remote types.PeerID) *Replicator {
	return &Replicator{
		archive: a,
		rw:      rw,
		remote:  remote,
		sendq:   make(chan *Message, sendQueueSize),
	}
}

// Stats 复制统计
type Stats struct {
	RemoteLength   uint64
	RemoteWritable bool
	Received       uint64
	Served         uint64
}

// Stats 返回当前统计
func (r *Replicator) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Stats{
		RemoteLength:   r.remoteLength,
		RemoteWritable: r.remoteWritable,
		Received:       r.received,
		Served:         r.served,
	}
}

// Run 运行复制直到 ctx 取消或流出错
//
// 返回前关闭流。ctx 取消与对端正常关闭都返回 nil。
func (r *Replicator) Run(ctx context.Context) error {
	parent := ctx
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// 长度增长时重新通告。回调在归档写锁内调用，只做非阻塞通知
	appended := make(chan struct{}, 1)
	stop := r.archive.OnAppend(func(uint64) {
		select {
		case appended <- struct{}{}:
		default:
		}
	})
	defer stop()

	errCh := make(chan error, 2)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		errCh <- r.writeLoop(ctx)
		cancel()
	}()
	go func() {
		defer wg.Done()
		errCh <- r.readLoop(ctx)
		cancel()
	}()

	r.enqueue(ctx, r.statusMessage())

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-appended:
			r.enqueue(ctx, r.statusMessage())
			r.maybeRequest(ctx)
		}
	}

	_ = r.rw.Close()
	wg.Wait()
	close(errCh)

	if parent.Err() != nil {
		return nil
	}
	for err := range errCh {
		if err != nil && !isClosedErr(err) {
			return err
		}
	}
	return nil
}

func (r *Replicator) statusMessage() *Message {
	return &Message{Type: TypeStatus, Length: r.archive.Len(), Writable: r.archive.Writable()}
}

func (r *Replicator) enqueue(ctx context.Context, m *Message) {
	select {
	case r.sendq <- m:
	case <-ctx.Done():
	}
}

func (r *Replicator) writeLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case m := <-r.sendq:
			if err := WriteMessage(r.rw, m); err != nil {
				return fmt.Errorf("write %s: %w", m.Type, err)
			}
		}
	}
}

func (r *Replicator) readLoop(ctx context.Context) error {
	br := bufio.NewReader(r.rw)
	for {
		m, err := ReadMessage(br)
		if err != nil {
			return err
		}
		if err := r.handle(ctx, m); err != nil {
			return err
		}
	}
}

func (r *Replicator) handle(ctx context.Context, m *Message) error {
	switch m.Type {
	case TypeStatus:
		r.mu.Lock()
		if m.Length > r.remoteLength {
			r.remoteLength = m.Length
		}
		r.remoteWritable = m.Writable
		r.mu.Unlock()
		logger.Debug("收到对端状态", "peer", r.remote.ShortString(), "length", m.Length, "writable", m.Writable)
		r.maybeRequest(ctx)

	case TypeRequest:
		if m.Seq >= r.archive.Len() {
			// 尚无该条目，长度增长后对端会通过 Status 重新请求
			return nil
		}
		e, err := r.archive.Entry(m.Seq)
		if err != nil {
			return fmt.Errorf("serve seq %d: %w", m.Seq, err)
		}
		data, err := r.archive.Content(e.Hash)
		if err != nil {
			return fmt.Errorf("serve seq %d: %w", m.Seq, err)
		}
		r.mu.Lock()
		r.served++
		r.mu.Unlock()
		r.enqueue(ctx, &Message{Type: TypeData, Seq: m.Seq, Entry: e.Marshal(), Content: data})

	case TypeData:
		r.mu.Lock()
		expected := r.pending && r.pendingSeq == m.Seq
		r.pending = false
		r.mu.Unlock()
		if !expected {
			return fmt.Errorf("%w: data for seq %d", ErrUnexpectedMessage, m.Seq)
		}

		e, err := archive.UnmarshalEntry(m.Entry)
		if err != nil {
			return err
		}
		if e.Seq != m.Seq {
			return fmt.Errorf("%w: entry seq %d in frame %d", ErrUnexpectedMessage, e.Seq, m.Seq)
		}
		// 其他连接可能已先写入该条目，ErrOutOfOrder 时按当前长度重新请求
		if err := r.archive.Put(e, m.Content); err != nil && !errors.Is(err, archive.ErrOutOfOrder) {
			return fmt.Errorf("store seq %d: %w", m.Seq, err)
		}
		r.mu.Lock()
		r.received++
		r.mu.Unlock()
		r.maybeRequest(ctx)
	}
	return nil
}

// maybeRequest 本地落后于对端且没有进行中的请求时，请求下一条
func (r *Replicator) maybeRequest(ctx context.Context) {
	if r.archive.Writable() {
		return
	}
	local := r.archive.Len()

	r.mu.Lock()
	if r.pending || local >= r.remoteLength {
		r.mu.Unlock()
		return
	}
	r.pending = true
	r.pendingSeq = local
	r.mu.Unlock()

	r.enqueue(ctx, &Message{Type: TypeRequest, Seq: local})
}

func isClosedErr(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) || errors.Is(err, net.ErrClosed)
}
