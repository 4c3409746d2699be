package storage

import (
	"time"

	"github.com/dep2p/go-dat/internal/core/storage/engine"
	"github.com/dep2p/go-dat/internal/core/storage/engine/badger"
	"github.com/dep2p/go-dat/internal/core/storage/kv"
	"github.com/dep2p/go-dat/pkg/lib/log"
)

var logger = log.Logger("core/storage")

// Config 存储配置
type Config struct {
	// Path BadgerDB 数据库目录（必需）
	Path string

	// SyncWrites 是否同步写入
	SyncWrites bool

	// GCInterval 值日志垃圾回收间隔，0 表示禁用
	GCInterval time.Duration
}

// DefaultConfig 返回默认配置
func DefaultConfig(path string) Config {
	return Config{
		Path:       path,
		SyncWrites: true,
		GCInterval: 10 * time.Minute,
	}
}

// Open 打开（必要时创建）存储引擎
func Open(cfg Config) (engine.Engine, error) {
	engCfg := engine.DefaultConfig(cfg.Path)
	engCfg.SyncWrites = cfg.SyncWrites
	engCfg.GCInterval = cfg.GCInterval

	logger.Debug("打开存储引擎", "path", cfg.Path)
	eng, err := badger.New(engCfg)
	if err != nil {
		logger.Error("打开存储引擎失败", "path", cfg.Path, "error", err)
		return nil, err
	}
	return eng, nil
}

// NewKVStore 创建带前缀的 KVStore
func NewKVStore(eng engine.Engine, prefix []byte) *kv.Store {
	return kv.New(eng, prefix)
}

// 类型别名（便于外部使用）
type (
	Engine  = engine.Engine
	KVStore = kv.Store
)
