package config

import (
	"fmt"
	"time"
)

// StorageConfig 存储配置
//
// 归档数据位于 <root>/.dat/ 下，DataDir 只是命令行未给出目录时的默认根目录。
type StorageConfig struct {
	// DataDir 默认归档根目录
	// 默认值: "."
	DataDir string `json:"data_dir"`

	// SyncWrites 每次写入是否同步落盘
	SyncWrites bool `json:"sync_writes"`

	// GCInterval 值日志垃圾回收间隔，0 表示禁用
	GCInterval Duration `json:"gc_interval"`
}

// DefaultStorageConfig 返回默认的存储配置
func DefaultStorageConfig() StorageConfig {
	return StorageConfig{
		DataDir:    ".",
		SyncWrites: true,
		GCInterval: Duration(10 * time.Minute),
	}
}

// Validate 验证存储配置的有效性
func (c *StorageConfig) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("storage: data_dir cannot be empty")
	}
	if c.GCInterval < 0 {
		return fmt.Errorf("storage: gc_interval cannot be negative")
	}
	return nil
}
