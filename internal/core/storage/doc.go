// Package storage 提供归档的持久化存储
//
// 存储分三层：
//
//	engine          - 存储引擎接口（Get/Put/迭代器/事务）
//	engine/badger   - 基于 BadgerDB 的实现
//	kv              - 带前缀隔离的 KV 存储
//
// 归档目录下只有一个引擎实例（<root>/.dat/content.db），
// 归档的条目、内容块和元数据通过不同的 kv 前缀共享同一个引擎。
package storage
