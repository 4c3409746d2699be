// Package noise 实现基于 Noise XX 的安全通道
//
// 握手流程：
//
//	-> e
//	<- e, ee, s, es
//	-> s, se
//
// 每个网络会话生成一个临时 Curve25519 静态密钥，静态公钥即 types.PeerID，
// Noise 握手保证远端确实持有其声明的 PeerID。
//
// 握手完成后双方在第一个加密帧中交换能力证明：
//
//	proof = BLAKE2b-256(key=archiveKey, role || handshakeHash)
//
// 证明只能由知道归档密钥的一方计算，且与本次握手绑定，
// 无法重放到其他连接。发现密钥作为 Noise prologue，
// 不同归档的节点在握手阶段即失败。
package noise
