package identity

import "go.uber.org/fx"

// Module 将已解析的密钥环注入 fx 容器
//
// 密钥解析发生在容器构建之前，错误类型不会被 fx 包装。
func Module(kr *Keyring) fx.Option {
	return fx.Module("identity",
		fx.Supply(kr),
	)
}
