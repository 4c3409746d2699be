// Package archive 实现归档的签名追加日志与内容存储
//
// 归档是一个只追加的条目日志，每个条目记录一次文件写入：
//
//	Entry{Seq, Name, Hash(BLAKE3), Size, Signature(ed25519)}
//
// 条目签名覆盖除签名外的所有字段，由归档私钥生成、归档公钥验证，
// 因此只读镜像可以从任意对端接收条目而无需信任对端。
//
// 内容块按 BLAKE3 哈希寻址，同一内容只存储一次。
//
// # 键空间
//
//	e/<seq 大端>   条目
//	c/<hash>       内容块
//	m/len          日志长度
package archive
