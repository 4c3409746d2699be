// Package dat 提供点对点归档节点
//
// 归档是以公钥标识的磁盘目录，通过发现与连接网络复制到其他节点。
// 本包负责节点生命周期：打开或创建归档、由密钥决定读写能力、
// 加入与离开网络，以及在并发操作下安全地关闭。
//
// # 快速开始
//
//	import "github.com/dep2p/go-dat"
//
//	// 1. 创建可写归档
//	node, err := dat.Open(ctx, "./photos")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer node.Close()
//
//	// 2. 写入文件并加入网络
//	_ = node.WriteFile("cat.jpg", data)
//	network, err := node.JoinNetwork(ctx)
//
//	// 3. 另一台机器用相同密钥打开只读镜像
//	mirror, err := dat.Open(ctx, "./mirror", dat.WithKey(node.Key()))
//
// # 生命周期
//
//	Opening → Open → Closing → Closed
//
// Close 不是幂等的：第二次调用返回 ErrAlreadyClosed，
// 在第一次调用进行中发起的调用等待其完成后同样返回 ErrAlreadyClosed。
// Leave 在未加入网络时为空操作。
//
// # 文件组织
//
//	dat/
//	├── dat.go              # 版本信息
//	├── errors.go           # 公共错误
//	├── options.go          # Option 与 Options
//	├── fx.go               # 组件装配
//	├── node.go             # Node、Open、文件读写
//	├── node_lifecycle.go   # Close、JoinNetwork、Leave
//	└── network.go          # Network：连接计数与事件
package dat
