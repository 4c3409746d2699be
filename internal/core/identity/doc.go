// Package identity 实现归档的密钥解析与能力判定
//
// 每个归档目录由一个 32 字节的 ed25519 公钥标识（types.ArchiveKey），
// 持有对应私钥的节点可以写入归档，其余节点只能作为只读镜像。
//
// # 持久化布局
//
//	<root>/.dat/metadata.key      PEM "DAT ARCHIVE KEY"     0644，存在即表示归档已创建
//	<root>/.dat/metadata.secret   PEM "DAT ARCHIVE SECRET"  0600，仅可写归档
//	<root>/.dat/content.db/       归档内容数据库（由 archive 包管理）
//
// 空的 .dat 目录视为"尚未创建"。
//
// # 快速开始
//
//	kr, _, err := identity.Resolve(root, identity.ResolveOptions{})
//	if err != nil {
//	    return err
//	}
//	fmt.Println(kr.Key, kr.Writable())
package identity
