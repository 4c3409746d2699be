// Package engine 定义存储引擎接口
//
// # 线程安全
//
// 所有实现必须保证线程安全。事务在提交前与其他并发操作相互隔离。
package engine

// Engine 存储引擎
type Engine interface {
	// Get 读取值，键不存在时返回 ErrNotFound
	Get(key []byte) ([]byte, error)

	// Put 写入键值对
	Put(key, value []byte) error

	// Has 检查键是否存在
	Has(key []byte) (bool, error)

	// Delete 删除键
	Delete(key []byte) error

	// NewPrefixIterator 创建前缀迭代器，调用者负责 Close
	NewPrefixIterator(prefix []byte) Iterator

	// NewTransaction 创建事务，调用者负责 Commit 或 Discard
	NewTransaction(writable bool) Transaction

	// Sync 同步数据到磁盘
	Sync() error

	// Close 关闭引擎，重复调用返回 nil
	Close() error
}

// Iterator 迭代器
//
// 迭代器持有创建时的快照视图。
//
//	iter := eng.NewPrefixIterator(prefix)
//	defer iter.Close()
//
//	for iter.First(); iter.Valid(); iter.Next() {
//	    key, value := iter.Key(), iter.Value()
//	}
//	if err := iter.Error(); err != nil {
//	    return err
//	}
type Iterator interface {
	First() bool
	Next() bool
	Valid() bool

	// Key 返回当前键的副本
	Key() []byte

	// Value 返回当前值的副本
	Value() []byte

	Close()
	Error() error
}

// Transaction 事务
//
//	txn := eng.NewTransaction(true)
//	defer txn.Discard()
//
//	if err := txn.Set(key, value); err != nil {
//	    return err
//	}
//	return txn.Commit()
type Transaction interface {
	Get(key []byte) ([]byte, error)
	Set(key, value []byte) error
	Delete(key []byte) error

	// Commit 提交事务，写冲突时返回 ErrTransactionConflict
	Commit() error

	// Discard 丢弃事务，多次调用是安全的
	Discard()
}
