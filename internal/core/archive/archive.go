package archive

import (
	"bytes"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/dep2p/go-dat/internal/core/identity"
	"github.com/dep2p/go-dat/internal/core/storage"
	"github.com/dep2p/go-dat/internal/core/storage/kv"
	"github.com/dep2p/go-dat/pkg/lib/log"
	"github.com/dep2p/go-dat/pkg/types"
)

var logger = log.Logger("core/archive")

var (
	prefixEntries = []byte("e/")
	prefixContent = []byte("c/")
	prefixMeta    = []byte("m/")

	keyLength = []byte("len")
)

// File 归档中的文件（同名文件的最新条目）
type File struct {
	Name string
	Size uint64
	Hash Hash
	Seq  uint64
}

// Archive 签名追加日志
type Archive struct {
	kr  *identity.Keyring
	eng storage.Engine

	entries *storage.KVStore
	content *storage.KVStore
	meta    *storage.KVStore

	// mu 串行化写入，保证 seq 连续
	mu     sync.Mutex
	length atomic.Uint64
	closed atomic.Bool

	listenersMu sync.Mutex
	listeners   map[int]func(length uint64)
	nextID      int
}

// Open 打开归档存储
func Open(kr *identity.Keyring, cfg storage.Config) (*Archive, error) {
	if kr == nil {
		return nil, errors.New("archive: nil keyring")
	}
	eng, err := storage.Open(cfg)
	if err != nil {
		return nil, err
	}

	a := &Archive{
		kr:        kr,
		eng:       eng,
		entries:   storage.NewKVStore(eng, prefixEntries),
		content:   storage.NewKVStore(eng, prefixContent),
		meta:      storage.NewKVStore(eng, prefixMeta),
		listeners: make(map[int]func(uint64)),
	}

	n, err := a.meta.GetUint64(keyLength)
	switch {
	case storage.IsNotFound(err):
	case err != nil:
		_ = eng.Close()
		return nil, fmt.Errorf("读取归档长度失败: %w", err)
	default:
		a.length.Store(n)
	}

	logger.Debug("归档已打开", "key", kr.Key.ShortString(), "length", n, "writable", kr.Writable())
	return a, nil
}

// Key 返回归档密钥
func (a *Archive) Key() types.ArchiveKey {
	return a.kr.Key
}

// Writable 是否可写
func (a *Archive) Writable() bool {
	return a.kr.Writable()
}

// Len 返回日志长度（即下一个条目的 seq）
func (a *Archive) Len() uint64 {
	return a.length.Load()
}

// Append 写入文件内容并追加签名条目
func (a *Archive) Append(name string, data []byte) (*Entry, error) {
	if !a.Writable() {
		return nil, ErrReadOnly
	}
	name, err := cleanName(name)
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed.Load() {
		return nil, ErrClosed
	}

	e := &Entry{
		Seq:  a.length.Load(),
		Name: name,
		Hash: HashContent(data),
		Size: uint64(len(data)),
	}
	e.Signature, err = a.kr.Sign(e.SigningBytes())
	if err != nil {
		return nil, err
	}

	if err := a.commit(e, data); err != nil {
		return nil, err
	}
	logger.Debug("已追加条目", "seq", e.Seq, "name", name, "size", e.Size)
	a.notify(e.Seq + 1)
	return e, nil
}

// Put 插入从对端接收的条目
//
// 条目必须通过签名和内容校验，且 seq 等于当前长度。
// 已存在且相同的条目视为成功。
func (a *Archive) Put(e *Entry, data []byte) error {
	if e == nil {
		return ErrInvalidEntry
	}
	if err := a.Verify(e, data); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed.Load() {
		return ErrClosed
	}

	n := a.length.Load()
	switch {
	case e.Seq < n:
		have, err := a.Entry(e.Seq)
		if err != nil {
			return err
		}
		if !bytes.Equal(have.Marshal(), e.Marshal()) {
			return fmt.Errorf("%w: conflicting entry at seq %d", ErrInvalidEntry, e.Seq)
		}
		return nil
	case e.Seq > n:
		return fmt.Errorf("%w: got seq %d, want %d", ErrOutOfOrder, e.Seq, n)
	}

	if err := a.commit(e, data); err != nil {
		return err
	}
	a.notify(e.Seq + 1)
	return nil
}

// Verify 校验条目签名与内容
func (a *Archive) Verify(e *Entry, data []byte) error {
	if !a.kr.Verify(e.SigningBytes(), e.Signature) {
		return fmt.Errorf("%w: bad signature at seq %d", ErrInvalidEntry, e.Seq)
	}
	if uint64(len(data)) != e.Size || HashContent(data) != e.Hash {
		return fmt.Errorf("%w: content does not match hash at seq %d", ErrInvalidEntry, e.Seq)
	}
	return nil
}

// commit 在一个事务中写入内容、条目和长度，调用方持有 a.mu
func (a *Archive) commit(e *Entry, data []byte) error {
	txn := a.entries.NewTransaction(true)
	defer txn.Discard()

	if err := txn.Set(kv.Uint64Key(e.Seq), e.Marshal()); err != nil {
		return fmt.Errorf("写入条目失败: %w", err)
	}
	if err := txn.Bind(a.content).Set(e.Hash[:], data); err != nil {
		return fmt.Errorf("写入内容失败: %w", err)
	}
	if err := txn.Bind(a.meta).Set(keyLength, kv.EncodeUint64(e.Seq+1)); err != nil {
		return fmt.Errorf("写入长度失败: %w", err)
	}
	if err := txn.Commit(); err != nil {
		return fmt.Errorf("提交条目失败: %w", err)
	}
	a.length.Store(e.Seq + 1)
	return nil
}

// Entry 读取指定序号的条目
func (a *Archive) Entry(seq uint64) (*Entry, error) {
	if a.closed.Load() {
		return nil, ErrClosed
	}
	data, err := a.entries.Get(kv.Uint64Key(seq))
	if storage.IsNotFound(err) {
		return nil, fmt.Errorf("%w: seq %d", ErrEntryNotFound, seq)
	}
	if err != nil {
		return nil, err
	}
	return UnmarshalEntry(data)
}

// Content 读取内容块
func (a *Archive) Content(h Hash) ([]byte, error) {
	if a.closed.Load() {
		return nil, ErrClosed
	}
	data, err := a.content.Get(h[:])
	if storage.IsNotFound(err) {
		return nil, fmt.Errorf("%w: %s", ErrContentNotFound, h)
	}
	return data, err
}

// Files 返回所有文件的最新版本，按名称排序
func (a *Archive) Files() ([]File, error) {
	if a.closed.Load() {
		return nil, ErrClosed
	}
	latest := make(map[string]File)
	var decodeErr error
	err := a.entries.PrefixScan(nil, func(_, value []byte) bool {
		e, err := UnmarshalEntry(value)
		if err != nil {
			decodeErr = err
			return false
		}
		latest[e.Name] = File{Name: e.Name, Size: e.Size, Hash: e.Hash, Seq: e.Seq}
		return true
	})
	if err == nil {
		err = decodeErr
	}
	if err != nil {
		return nil, err
	}

	files := make([]File, 0, len(latest))
	for _, f := range latest {
		files = append(files, f)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

// ReadFile 读取文件的最新内容
func (a *Archive) ReadFile(name string) ([]byte, error) {
	name, err := cleanName(name)
	if err != nil {
		return nil, err
	}
	files, err := a.Files()
	if err != nil {
		return nil, err
	}
	i := sort.Search(len(files), func(i int) bool { return files[i].Name >= name })
	if i == len(files) || files[i].Name != name {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, name)
	}
	return a.Content(files[i].Hash)
}

// OnAppend 注册长度增长回调，返回取消函数
//
// 回调在写入锁内同步调用，不得阻塞或回调归档写入方法。
func (a *Archive) OnAppend(fn func(length uint64)) (cancel func()) {
	a.listenersMu.Lock()
	id := a.nextID
	a.nextID++
	a.listeners[id] = fn
	a.listenersMu.Unlock()

	return func() {
		a.listenersMu.Lock()
		delete(a.listeners, id)
		a.listenersMu.Unlock()
	}
}

func (a *Archive) notify(length uint64) {
	a.listenersMu.Lock()
	fns := make([]func(uint64), 0, len(a.listeners))
	for _, fn := range a.listeners {
		fns = append(fns, fn)
	}
	a.listenersMu.Unlock()

	for _, fn := range fns {
		fn(length)
	}
}

// Close 关闭归档存储，重复调用返回 nil
func (a *Archive) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed.Swap(true) {
		return nil
	}
	logger.Debug("正在关闭归档", "key", a.kr.Key.ShortString())
	return a.eng.Close()
}

// cleanName 规范化文件名为不含 ".." 的相对路径
func cleanName(name string) (string, error) {
	name = strings.TrimPrefix(path.Clean("/"+strings.ReplaceAll(name, "\\", "/")), "/")
	if name == "" || name == "." {
		return "", ErrInvalidName
	}
	return name, nil
}
