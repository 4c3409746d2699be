package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config 存储引擎配置
type Config struct {
	// Path 数据目录路径（必需）
	Path string

	// SyncWrites 每次写入是否同步到磁盘
	SyncWrites bool

	// MemTableSize 内存表大小（字节）
	MemTableSize int64

	// ValueLogFileSize 值日志文件大小（字节）
	ValueLogFileSize int64

	// BlockCacheSize 块缓存大小（字节）
	BlockCacheSize int64

	// NumCompactors 压缩器数量，0 或至少 2
	NumCompactors int

	// GCInterval 值日志 GC 间隔，0 表示禁用
	GCInterval time.Duration

	// GCDiscardRatio 值日志 GC 丢弃比例
	GCDiscardRatio float64
}

// DefaultConfig 返回默认配置
//
// 归档通常较小，内存表和缓存按单目录工作负载缩小。
func DefaultConfig(path string) *Config {
	return &Config{
		Path:             path,
		SyncWrites:       true,
		MemTableSize:     8 << 20,
		ValueLogFileSize: 64 << 20,
		BlockCacheSize:   8 << 20,
		NumCompactors:    2,
		GCInterval:       10 * time.Minute,
		GCDiscardRatio:   0.5,
	}
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c.Path == "" {
		return fmt.Errorf("%w: path is required", ErrInvalidConfig)
	}
	if c.MemTableSize < 1<<20 {
		return fmt.Errorf("%w: memtable size below 1MB", ErrInvalidConfig)
	}
	if c.ValueLogFileSize < 1<<20 {
		return fmt.Errorf("%w: value log file size below 1MB", ErrInvalidConfig)
	}
	if c.NumCompactors == 1 || c.NumCompactors < 0 {
		return fmt.Errorf("%w: compactors must be 0 or at least 2", ErrInvalidConfig)
	}
	if c.GCInterval > 0 && (c.GCDiscardRatio <= 0 || c.GCDiscardRatio >= 1) {
		return fmt.Errorf("%w: gc discard ratio must be in (0, 1)", ErrInvalidConfig)
	}
	return nil
}

// EnsureDir 确保数据目录存在，并将路径转换为绝对路径
func (c *Config) EnsureDir() error {
	absPath, err := filepath.Abs(c.Path)
	if err != nil {
		return err
	}
	c.Path = absPath
	return os.MkdirAll(c.Path, 0755)
}
