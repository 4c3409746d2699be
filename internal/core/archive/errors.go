package archive

import "errors"

var (
	// ErrReadOnly 归档没有写入能力
	ErrReadOnly = errors.New("archive is read-only")

	// ErrEntryNotFound 条目不存在
	ErrEntryNotFound = errors.New("archive entry not found")

	// ErrContentNotFound 内容块不存在
	ErrContentNotFound = errors.New("archive content not found")

	// ErrFileNotFound 文件不存在
	ErrFileNotFound = errors.New("file not found in archive")

	// ErrInvalidEntry 条目签名或内容校验失败
	ErrInvalidEntry = errors.New("invalid archive entry")

	// ErrOutOfOrder 条目序号不连续
	ErrOutOfOrder = errors.New("archive entry out of order")

	// ErrInvalidName 文件名无效
	ErrInvalidName = errors.New("invalid file name")

	// ErrClosed 归档已关闭
	ErrClosed = errors.New("archive closed")
)
