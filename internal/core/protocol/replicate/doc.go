// Package replicate 实现归档日志复制协议
//
// 每条对等连接上运行一个双向流，消息以 unsigned varint 长度前缀分帧，
// 负载为 protobuf wire 编码：
//
//	Status  { length, writable }   通告本地日志长度
//	Request { seq }                请求指定序号的条目
//	Data    { seq, entry, content } 返回条目与内容
//
// 连接建立后双方先交换 Status。本地长度小于远端时逐条请求缺失条目，
// 收到的条目经签名与内容校验后写入归档。本地长度增长时向对端重新通告 Status。
package replicate
